package rowset

import (
	"database/sql/driver"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// SortBy — устойчивая сортировка копии rows по полю.
// nil и отсутствующие значения меньше любых: первые при возрастании, последние при убывании.
func SortBy(rows []Row, field string, ascending bool) []Row {
	out := append([]Row(nil), rows...)
	sort.SliceStable(out, func(i, j int) bool {
		c := compare(out[i][field], out[j][field])
		if ascending {
			return c < 0
		}
		return c > 0
	})
	return out
}

// compare: nil < значение; числа, время, bool сравниваются по типу, остальное — строкой
func compare(a, b any) int {
	na, nb := a == nil, b == nil
	switch {
	case na && nb:
		return 0
	case na:
		return -1
	case nb:
		return +1
	}

	if fa, ok := numeric(a); ok {
		if fb, ok := numeric(b); ok {
			return fa.Cmp(fb)
		}
	}
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Compare(tb)
		}
	}
	if ba, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			switch {
			case ba == bb:
				return 0
			case !ba:
				return -1
			default:
				return +1
			}
		}
	}
	return strings.Compare(Render(a), Render(b))
}

func numeric(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case int64:
		return decimal.NewFromInt(t), true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int32:
		return decimal.NewFromInt32(t), true
	case float64:
		return decimal.NewFromFloat(t), true
	case decimal.Decimal:
		return t, true
	}
	// numeric-колонки приходят как pgtype.Numeric и подобные Valuer
	if _, ok := v.(driver.Valuer); !ok {
		return decimal.Decimal{}, false
	}
	return parseDecimal(v)
}

// Sorter помнит направление отдельно для каждого поля.
// Первый вызов по полю — по убыванию, следующий — по возрастанию, и так далее.
type Sorter struct {
	mu    sync.Mutex
	state map[string]bool // поле → последнее направление (true = asc)
}

func NewSorter() *Sorter { return &Sorter{state: map[string]bool{}} }

// Toggle переключает направление по field и сортирует
func (s *Sorter) Toggle(rows []Row, field string) ([]Row, bool) {
	s.mu.Lock()
	asc, seen := s.state[field]
	asc = seen && !asc
	s.state[field] = asc
	s.mu.Unlock()
	return SortBy(rows, field, asc), asc
}

// Direction — текущее направление поля; false во втором значении, если поле ещё не сортировали
func (s *Sorter) Direction(field string) (ascending bool, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	asc, ok := s.state[field]
	return asc, ok
}
