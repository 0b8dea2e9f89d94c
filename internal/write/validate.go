package write

import (
	"fmt"
	"sort"
	"strings"

	"dogovor/internal/apperr"
	"dogovor/internal/catalog"
	"dogovor/internal/reference"
)

type mode int

const (
	modeInsert mode = iota
	modeUpdate
)

// prepared — колонки и приведённые значения в порядке полей сущности
type prepared struct {
	cols   []string
	vals   []any
	byName map[string]any
}

// prepare проверяет values против описания сущности.
// prefix добавляется к имени поля в ошибках ("stages[1].").
// skip — поля, которые заполняет сам координатор.
func prepare(e *catalog.Entity, values map[string]any, m mode, prefix string, skip ...string) (prepared, []apperr.FieldError) {
	var errs []apperr.FieldError
	p := prepared{byName: map[string]any{}}
	pk := e.PrimaryKey()

	skipSet := map[string]bool{}
	for _, s := range skip {
		skipSet[s] = true
	}

	// 1) неизвестные поля, стабильный порядок ошибок
	var unknown []string
	for k := range values {
		if _, ok := e.Field(k); !ok {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	for _, k := range unknown {
		errs = append(errs, apperr.Field(apperr.ErrUnknownField, prefix+k, "Field '"+k+"' is not defined on "+e.Name))
	}

	for _, f := range e.Fields {
		if skipSet[f.Name] {
			continue
		}
		raw, present := values[f.Name]

		// 2) pk: генерируется при вставке, при обновлении передаётся отдельно
		if f.Name == pk.Name {
			if m == modeUpdate || !present {
				continue
			}
			if f.Generated && raw != nil && raw != "" {
				errs = append(errs, apperr.Field(apperr.ErrReadOnly, prefix+f.Name, "Field '"+f.Name+"' is generated"))
				continue
			}
		}

		// 3) readonly
		if f.Readonly {
			if present {
				errs = append(errs, apperr.Field(apperr.ErrReadOnly, prefix+f.Name, "Field '"+f.Name+"' is read-only"))
			}
			continue
		}

		// 4) приведение типов
		v, err := f.Coerce(raw)
		if err != nil {
			errs = append(errs, apperr.Field(apperr.ErrTypeMismatch, prefix+f.Name, "Field '"+f.Name+"' "+err.Error()))
			continue
		}

		// 5) required: при вставке обязателен, при обновлении нельзя очистить
		if f.Required && v == nil && (m == modeInsert || present) {
			errs = append(errs, apperr.Field(apperr.ErrRequired, prefix+f.Name, "Field '"+f.Label+"' is required"))
			continue
		}

		if !present {
			continue
		}
		// при вставке пустые значения не пишем — сработают default
		if m == modeInsert && v == nil {
			continue
		}
		p.cols = append(p.cols, f.Name)
		p.vals = append(p.vals, v)
		p.byName[f.Name] = v
	}
	return p, errs
}

// duplicateKeys ищет повторы бизнес-ключа внутри пачки зависимых строк:
// unique-наборы, содержащие fkField, без самого fkField (он у всех строк общий).
// Строки с пустой частью ключа не сравниваются.
func duplicateKeys(e *catalog.Entity, rows []prepared, fkField, prefix string) []apperr.FieldError {
	var errs []apperr.FieldError
	for _, set := range e.Unique {
		var rest []string
		hasFK := false
		for _, name := range set {
			if name == fkField {
				hasFK = true
				continue
			}
			rest = append(rest, name)
		}
		if !hasFK || len(rest) == 0 {
			continue
		}

		seen := map[string]int{}
		for i, r := range rows {
			parts := make([]string, 0, len(rest))
			complete := true
			for _, name := range rest {
				v := r.byName[name]
				if v == nil {
					complete = false
					break
				}
				parts = append(parts, reference.CodeKey(v))
			}
			if !complete {
				continue
			}
			k := strings.Join(parts, "\x00")
			if first, dup := seen[k]; dup {
				f, _ := e.Field(rest[0])
				errs = append(errs, apperr.Field(apperr.ErrDuplicateKey,
					fmt.Sprintf("%s[%d].%s", prefix, i, rest[0]),
					fmt.Sprintf("'%s' duplicates row %d", f.Label, first)))
				continue
			}
			seen[k] = i
		}
	}
	return errs
}
