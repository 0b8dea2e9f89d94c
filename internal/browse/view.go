package browse

import (
	"context"
	"sync"

	"dogovor/internal/catalog"
	"dogovor/internal/rowset"
)

// View — открытое окно просмотра одной сущности: загруженные строки,
// строка поиска, фильтр по полю и направление сортировки по каждому полю.
type View struct {
	svc    *Service
	entity *catalog.Entity

	mu     sync.Mutex
	rs     *rowset.RowSet
	sorter *rowset.Sorter
	query  rowset.Query
}

// Open загружает строки сущности и возвращает окно с пустым поиском
func (s *Service) Open(ctx context.Context, entity string) (*View, error) {
	e, err := s.cat.Entity(entity)
	if err != nil {
		return nil, err
	}
	rs, err := s.LoadRows(ctx, e.Name)
	if err != nil {
		return nil, err
	}
	return &View{svc: s, entity: e, rs: rs, sorter: rowset.NewSorter()}, nil
}

func (v *View) Entity() *catalog.Entity { return v.entity }

// Rows — текущее представление
func (v *View) Rows() []rowset.Row {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.rs.View
}

// Search задаёт строку поиска и пересобирает представление
func (v *View) Search(text string) []rowset.Row {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.query.FreeText = text
	return v.rs.FilterAndSort(v.entity, v.query)
}

// Filter задаёт фильтр по полю (по подписи)
func (v *View) Filter(spec catalog.FilterSpec) []rowset.Row {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.query.Filter = spec
	return v.rs.FilterAndSort(v.entity, v.query)
}

// ToggleSort — клик по заголовку колонки
func (v *View) ToggleSort(field string) ([]rowset.Row, bool, error) {
	if _, ok := v.entity.Field(field); !ok {
		return nil, false, unknownField(v.entity.Name, field)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	view := v.rs.FilterAndSort(v.entity, rowset.Query{FreeText: v.query.FreeText, Filter: v.query.Filter})
	sorted, asc := v.sorter.Toggle(view, field)
	v.query.SortField, v.query.Ascending = field, asc
	v.rs.View = sorted
	return sorted, asc, nil
}

// Refresh перечитывает строки из хранилища и применяет текущие поиск, фильтр и сортировку
func (v *View) Refresh(ctx context.Context) ([]rowset.Row, error) {
	rs, err := v.svc.LoadRows(ctx, v.entity.Name)
	if err != nil {
		return nil, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rs = rs
	return v.rs.FilterAndSort(v.entity, v.query), nil
}
