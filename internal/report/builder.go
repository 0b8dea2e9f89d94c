package report

import (
	"fmt"
	"strings"

	"github.com/huandu/go-sqlbuilder"

	"dogovor/internal/apperr"
	"dogovor/internal/catalog"
	"dogovor/internal/store"
)

// MaxFilters — сколько условий принимает отчёт
const MaxFilters = 2

// Fragments — готовые WHERE/ORDER BY и параметры в порядке плейсхолдеров
type Fragments struct {
	Where   string
	OrderBy string
	Args    []any
}

// Builder собирает фрагменты запроса строго из выражений белого списка
type Builder struct {
	flavor sqlbuilder.Flavor
}

func NewBuilder(flavor sqlbuilder.Flavor) *Builder {
	return &Builder{flavor: flavor}
}

// Build: 1) проверка и приведение фильтров 2) WHERE с плейсхолдерами 3) сортировка.
// Выключенные фильтры, неизвестные подписи и пустые значения пропускаются.
// Ошибка приведения или недопустимый оператор прерывают сборку целиком.
func (b *Builder) Build(def *Definition, filters []catalog.FilterSpec, sortLabel, sortDir string) (Fragments, error) {
	if len(filters) > MaxFilters {
		return Fragments{}, apperr.Validation(apperr.Field(apperr.ErrTooManyFilters, "filters",
			fmt.Sprintf("at most %d filters are allowed", MaxFilters)))
	}

	var conds []string
	var args []any
	var errs []apperr.FieldError
	for _, f := range filters {
		if !f.Active() {
			continue
		}
		fd, ok := def.Field(f.Field)
		if !ok {
			continue
		}
		cond, arg, fe := b.condition(fd, f)
		if fe != nil {
			errs = append(errs, *fe)
			continue
		}
		conds = append(conds, cond)
		args = append(args, arg)
	}
	if len(errs) > 0 {
		return Fragments{}, apperr.Validation(errs...)
	}

	var out Fragments
	if len(conds) > 0 {
		out.Where, out.Args = sqlbuilder.Build("WHERE "+strings.Join(conds, " AND "), args...).BuildWithFlavor(b.flavor)
	}

	expr, desc := def.DefaultSort.Expr, def.DefaultSort.Desc()
	if fd, ok := def.Field(sortLabel); ok {
		expr = fd.Expr
		desc = strings.EqualFold(strings.TrimSpace(sortDir), "desc")
	}
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	out.OrderBy = "ORDER BY " + expr + " " + dir
	return out, nil
}

// condition — фрагмент с плейсхолдером $? и приведённое значение
func (b *Builder) condition(fd FieldDef, f catalog.FilterSpec) (string, any, *apperr.FieldError) {
	raw := strings.TrimSpace(f.Value)
	op := catalog.ParseOperator(string(f.Op))

	badOp := func() (string, any, *apperr.FieldError) {
		fe := apperr.Field(apperr.ErrInvalidOperator, fd.Label,
			fmt.Sprintf("operator %q is not allowed for %s field", f.Op, fd.Type))
		return "", nil, &fe
	}
	badValue := func(msg string) (string, any, *apperr.FieldError) {
		fe := apperr.Field(apperr.ErrTypeMismatch, fd.Label, fmt.Sprintf("invalid value %q: %s", raw, msg))
		return "", nil, &fe
	}

	if fd.Type == TypeText {
		switch op {
		case catalog.OpEq:
			return fd.Expr + " = $?", raw, nil
		case catalog.OpContains:
			return b.like(fd.Expr), "%" + escapeLike(raw) + "%", nil
		case catalog.OpStarts:
			return b.like(fd.Expr), escapeLike(raw) + "%", nil
		}
		return badOp()
	}

	var sqlOp string
	switch op {
	case catalog.OpEq, catalog.OpGte, catalog.OpLte:
		sqlOp = string(op)
	default:
		return badOp()
	}

	var val any
	switch fd.Type {
	case TypeInteger:
		n, err := catalog.ParseInteger(raw)
		if err != nil {
			return badValue(err.Error())
		}
		val = n
	case TypeNumeric:
		n, err := catalog.ParseDecimal(raw)
		if err != nil {
			return badValue(err.Error())
		}
		val = n
	case TypeDate:
		t, err := catalog.ParseDate(raw)
		if err != nil {
			return badValue(err.Error())
		}
		val = t
	}
	return fd.Expr + " " + sqlOp + " $?", val, nil
}

// like — регистронезависимое сравнение по шаблону; в sqlite через FoldFunc, LOWER там только для ASCII
func (b *Builder) like(expr string) string {
	if b.flavor == sqlbuilder.PostgreSQL {
		return expr + ` ILIKE $? ESCAPE '\'`
	}
	return store.FoldFunc + "(" + expr + ") LIKE " + store.FoldFunc + `($?) ESCAPE '\'`
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
