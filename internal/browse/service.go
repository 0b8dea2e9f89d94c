package browse

import (
	"context"
	"errors"
	"fmt"

	"github.com/huandu/go-sqlbuilder"
	"go.uber.org/zap"

	"dogovor/internal/apperr"
	"dogovor/internal/catalog"
	"dogovor/internal/reference"
	"dogovor/internal/report"
	"dogovor/internal/rowset"
	"dogovor/internal/store"
	"dogovor/internal/write"
)

const (
	ContractsEntity = "contracts"
	StagesEntity    = "contract_stages"
	StagesFK        = "contract_code"
)

// Store — то, что сервису нужно от хранилища
type Store interface {
	store.Querier
	store.Beginner
	DescribeColumns(ctx context.Context, table string) ([]string, error)
	Flavor() sqlbuilder.Flavor
	Ping(ctx context.Context) error
}

// Service — операции для слоя представления: строки, метки, фильтры, отчёты, сохранение
type Service struct {
	cat      *catalog.Catalog
	db       Store
	resolver *reference.Resolver
	reports  *report.Registry
	builder  *report.Builder
	runner   *report.Runner
	writer   *write.Coordinator
	log      *zap.Logger
}

// New собирает сервис; кэш и метрики живут в resolver
func New(cat *catalog.Catalog, db Store, reports *report.Registry, resolver *reference.Resolver, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		cat:      cat,
		db:       db,
		resolver: resolver,
		reports:  reports,
		builder:  report.NewBuilder(db.Flavor()),
		runner:   report.NewRunner(db, log.Named("report")),
		writer:   write.NewCoordinator(cat, db, db.Flavor(), resolver, log.Named("write")),
		log:      log,
	}
}

func (s *Service) Catalog() *catalog.Catalog { return s.cat }

func (s *Service) Reports() *report.Registry { return s.reports }

func (s *Service) Resolver() *reference.Resolver { return s.resolver }

// Ping — доступность хранилища
func (s *Service) Ping(ctx context.Context) error { return s.db.Ping(ctx) }

// LoadRows — все строки сущности как есть, без подстановки меток
func (s *Service) LoadRows(ctx context.Context, entity string) (*rowset.RowSet, error) {
	e, err := s.cat.Entity(entity)
	if err != nil {
		return nil, err
	}
	sb := s.db.Flavor().NewSelectBuilder()
	sb.Select(e.Columns()...).From(e.Name).OrderBy(e.PrimaryKey().Name).Asc()
	query, args := sb.Build()
	res, err := s.db.Execute(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", e.Name, err)
	}
	for _, r := range res.Rows {
		normalizeRow(e, r)
	}
	return rowset.New(e.Name, res.Rows), nil
}

// GetRow — одна строка по первичному ключу; apperr.ErrNotFound, если её нет
func (s *Service) GetRow(ctx context.Context, entity string, pk any) (store.Row, error) {
	e, err := s.cat.Entity(entity)
	if err != nil {
		return nil, err
	}
	f := e.PrimaryKey()
	key, err := f.Coerce(pk)
	if err != nil {
		return nil, apperr.Validation(apperr.Field(apperr.ErrTypeMismatch, f.Name, "Field '"+f.Name+"' "+err.Error()))
	}
	if key == nil {
		return nil, apperr.ErrNotFound
	}
	sb := s.db.Flavor().NewSelectBuilder()
	sb.Select(e.Columns()...).From(e.Name).Where(sb.Equal(f.Name, key)).Limit(1)
	query, args := sb.Build()
	row, ok, err := s.db.ExecuteReturningOne(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", e.Name, err)
	}
	if !ok {
		return nil, apperr.ErrNotFound
	}
	normalizeRow(e, row)
	return row, nil
}

// normalizeRow: numeric из pgx приходит строкой — переводим в точное десятичное
func normalizeRow(e *catalog.Entity, r store.Row) {
	for _, f := range e.Fields {
		if f.Kind != catalog.KindNumber || f.Integer {
			continue
		}
		if str, ok := r[f.Name].(string); ok {
			if n, err := catalog.ParseDecimal(str); err == nil {
				r[f.Name] = n
			}
		}
	}
}

// ResolveForDisplay — метка для значения поля; не ссылочное поле отдаётся текстом
func (s *Service) ResolveForDisplay(ctx context.Context, entity, field string, code any) (string, error) {
	e, err := s.cat.Entity(entity)
	if err != nil {
		return "", err
	}
	f, ok := e.Field(field)
	if !ok {
		return "", unknownField(entity, field)
	}
	if f.Ref == nil {
		return rowset.Render(code), nil
	}
	return s.resolver.ResolveLabel(ctx, *f.Ref, code), nil
}

// FilterAndSort пересобирает View набора строк
func (s *Service) FilterAndSort(rs *rowset.RowSet, q rowset.Query) ([]store.Row, error) {
	e, err := s.cat.Entity(rs.Entity)
	if err != nil {
		return nil, err
	}
	if q.SortField != "" {
		if _, ok := e.Field(q.SortField); !ok {
			return nil, unknownField(rs.Entity, q.SortField)
		}
	}
	return rs.FilterAndSort(e, q), nil
}

// PickList — варианты меток для ссылочного поля
func (s *Service) PickList(ctx context.Context, entity, field string) ([]string, error) {
	m, ok := s.cat.Mapping(entity, field)
	if !ok {
		return nil, apperr.Unknown("reference field", entity+"."+field)
	}
	return s.resolver.DisplayUniverse(ctx, m)
}

// Describe — колонки таблицы по данным хранилища
func (s *Service) Describe(ctx context.Context, entity string) ([]string, error) {
	e, err := s.cat.Entity(entity)
	if err != nil {
		return nil, err
	}
	return s.db.DescribeColumns(ctx, e.Name)
}

// BuildReport — фрагменты WHERE/ORDER BY и параметры; до двух фильтров
func (s *Service) BuildReport(key string, f1, f2 catalog.FilterSpec, sortLabel, sortDir string) (report.Fragments, error) {
	def, err := s.reports.Get(key)
	if err != nil {
		return report.Fragments{}, err
	}
	return s.builder.Build(def, []catalog.FilterSpec{f1, f2}, sortLabel, sortDir)
}

type ReportResult struct {
	Key     string      `json:"key"`
	Title   string      `json:"title"`
	Columns []string    `json:"columns"`
	Rows    []store.Row `json:"rows"`
}

// RunReport собирает и выполняет отчёт
func (s *Service) RunReport(ctx context.Context, key string, filters []catalog.FilterSpec, sortLabel, sortDir string) (*ReportResult, error) {
	def, err := s.reports.Get(key)
	if err != nil {
		return nil, err
	}
	fr, err := s.builder.Build(def, filters, sortLabel, sortDir)
	if err != nil {
		return nil, err
	}
	res, err := s.runner.Run(ctx, def, fr)
	if err != nil {
		return nil, err
	}
	return &ReportResult{Key: def.Key, Title: def.Title, Columns: res.Columns, Rows: res.Rows}, nil
}

// Delete удаляет строку по ключу
func (s *Service) Delete(ctx context.Context, entity string, pk any) error {
	return s.writer.Delete(ctx, entity, pk)
}

func unknownField(entity, field string) error { return apperr.Unknown("field", entity+"."+field) }

// isNotFound — для ResolveCode: метка не найдена, ключ считаем пустым
func isNotFound(err error) bool { return errors.Is(err, apperr.ErrNotFound) }
