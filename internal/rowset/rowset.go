package rowset

import (
	"strings"

	"dogovor/internal/catalog"
	"dogovor/internal/store"
)

type Row = store.Row

// RowSet — загруженные строки (All) и их текущее представление (View).
// View всегда выводится из All и не содержит чужих строк.
type RowSet struct {
	Entity string
	All    []Row
	View   []Row
}

func New(entity string, rows []Row) *RowSet {
	return &RowSet{Entity: entity, All: rows, View: append([]Row(nil), rows...)}
}

// FreeText — строки, где хотя бы одно непустое поле содержит needle без учёта регистра.
// Пустой needle возвращает вход без изменений.
func FreeText(rows []Row, needle string) []Row {
	needle = strings.TrimSpace(needle)
	if needle == "" {
		return rows
	}
	n := strings.ToLower(needle)
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		for _, v := range r {
			if v == nil {
				continue
			}
			if strings.Contains(strings.ToLower(Render(v)), n) {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// FieldFilter — подстрока по одному полю, найденному по подписи.
// Неизвестная подпись, выключенный фильтр или пустое значение — фильтр не действует.
func FieldFilter(rows []Row, e *catalog.Entity, spec catalog.FilterSpec) []Row {
	if e == nil || !spec.Active() {
		return rows
	}
	f, ok := e.FieldByLabel(spec.Field)
	if !ok {
		return rows
	}
	n := strings.ToLower(strings.TrimSpace(spec.Value))
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		v := r[f.Name]
		if v == nil {
			continue
		}
		if strings.Contains(strings.ToLower(Render(v)), n) {
			out = append(out, r)
		}
	}
	return out
}

// Query — параметры представления: поиск, фильтр по полю, сортировка
type Query struct {
	FreeText  string
	Filter    catalog.FilterSpec
	SortField string
	Ascending bool
}

// FilterAndSort пересобирает View из All: сначала поиск, затем фильтр по полю (AND), затем сортировка.
// Хранилище не трогается.
func (rs *RowSet) FilterAndSort(e *catalog.Entity, q Query) []Row {
	view := FreeText(rs.All, q.FreeText)
	view = FieldFilter(view, e, q.Filter)
	if q.SortField != "" {
		view = SortBy(view, q.SortField, q.Ascending)
	} else {
		view = append([]Row(nil), view...)
	}
	rs.View = view
	return view
}
