package reference

import (
	"database/sql/driver"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Entry — снимок справочника: код → метка, метка → код, отсортированные метки.
// Собирается целиком и после этого не меняется.
type Entry struct {
	codes   map[string]string
	reverse map[string]any
	labels  []string
}

// Pair — пара (код, метка) в порядке загрузки
type Pair struct {
	Code  any
	Label any
}

// NewEntry строит запись; пары с nil-кодом или nil-меткой пропускаются.
// При повторе метки в reverse остаётся первый код.
func NewEntry(pairs []Pair) *Entry {
	e := &Entry{
		codes:   make(map[string]string, len(pairs)),
		reverse: make(map[string]any, len(pairs)),
	}
	seen := make(map[string]struct{}, len(pairs))
	for _, p := range pairs {
		if p.Code == nil || p.Label == nil {
			continue
		}
		label := Render(p.Label)
		e.codes[CodeKey(p.Code)] = label
		if _, ok := e.reverse[label]; !ok {
			e.reverse[label] = p.Code
		}
		if _, ok := seen[label]; !ok {
			seen[label] = struct{}{}
			e.labels = append(e.labels, label)
		}
	}
	sort.Strings(e.labels)
	return e
}

func (e *Entry) Label(code any) (string, bool) {
	l, ok := e.codes[CodeKey(code)]
	return l, ok
}

func (e *Entry) Code(label string) (any, bool) {
	c, ok := e.reverse[label]
	return c, ok
}

// Labels — копия отсортированного набора меток
func (e *Entry) Labels() []string {
	return append([]string(nil), e.labels...)
}

func (e *Entry) Len() int { return len(e.codes) }

// CodeKey — каноническая строка кода: 1, int64(1), 1.0 и "1" дают один ключ
func CodeKey(v any) string {
	switch t := v.(type) {
	case float64:
		if t == math.Trunc(t) && !math.IsInf(t, 0) {
			return strconv.FormatInt(int64(t), 10)
		}
	case string:
		return strings.TrimSpace(t)
	}
	return Render(v)
}

// Render — текстовое представление сырого значения
func Render(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case driver.Valuer:
		dv, err := t.Value()
		if err != nil || dv == nil {
			return ""
		}
		return Render(dv)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
