package reference

import (
	"context"
	"fmt"
	"strings"

	"github.com/huandu/go-sqlbuilder"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"dogovor/internal/apperr"
	"dogovor/internal/catalog"
	"dogovor/internal/store"
)

// Resolver переводит коды внешних ключей в метки и обратно через Cache
type Resolver struct {
	q      store.Querier
	flavor sqlbuilder.Flavor
	cache  *Cache
	group  singleflight.Group
	log    *zap.Logger
}

func NewResolver(q store.Querier, flavor sqlbuilder.Flavor, cache *Cache, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{q: q, flavor: flavor, cache: cache, log: log}
}

func (r *Resolver) Cache() *Cache { return r.cache }

// Invalidate сбрасывает кэш сущности после подтверждённой записи
func (r *Resolver) Invalidate(entity string) {
	touched := r.cache.Invalidate(entity)
	r.log.Debug("reference cache invalidated", zap.String("entity", entity), zap.Strings("touched", touched))
}

// ResolveLabel — метка для кода. Пустой код → "". Не удалось загрузить или код не найден → сам код текстом.
func (r *Resolver) ResolveLabel(ctx context.Context, m catalog.ReferenceMapping, code any) string {
	if code == nil || CodeKey(code) == "" {
		return ""
	}
	e, err := r.entry(ctx, m)
	if err != nil {
		r.log.Warn("reference load failed, showing raw code",
			zap.String("key", m.Key().String()), zap.Error(err))
		return Render(code)
	}
	if label, ok := e.Label(code); ok {
		return label
	}
	return Render(code)
}

// ResolveCode — код по метке. Сначала кэш, потом точечный запрос LIMIT 1.
// Нет совпадения → apperr.ErrNotFound; ошибка хранилища возвращается как есть.
func (r *Resolver) ResolveCode(ctx context.Context, m catalog.ReferenceMapping, label string) (any, error) {
	if strings.TrimSpace(label) == "" {
		return nil, apperr.ErrNotFound
	}
	if e, ok := r.cache.Get(m.Key()); ok {
		if code, ok := e.Code(label); ok {
			return code, nil
		}
	}

	sb := r.flavor.NewSelectBuilder()
	sb.Select(m.CodeColumn).From(m.Entity).Where(sb.Equal(m.LabelColumn, label)).OrderBy(m.CodeColumn).Asc().Limit(1)
	query, args := sb.Build()
	row, ok, err := r.q.ExecuteReturningOne(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("resolve %s = %q: %w", m.Key(), label, err)
	}
	if !ok || row[m.CodeColumn] == nil {
		return nil, apperr.ErrNotFound
	}
	return row[m.CodeColumn], nil
}

// DisplayUniverse — отсортированные уникальные метки для выпадающих списков
func (r *Resolver) DisplayUniverse(ctx context.Context, m catalog.ReferenceMapping) ([]string, error) {
	e, err := r.entry(ctx, m)
	if err != nil {
		return nil, err
	}
	return e.Labels(), nil
}

func (r *Resolver) entry(ctx context.Context, m catalog.ReferenceMapping) (*Entry, error) {
	key := m.Key()
	if e, ok := r.cache.Get(key); ok {
		return e, nil
	}
	// поколение в ключе: вызов после инвалидации не присоединяется к старой загрузке
	gen := r.cache.generation(key.Entity)
	flight := fmt.Sprintf("%s#%d", key, gen)
	v, err, _ := r.group.Do(flight, func() (any, error) {
		// общая загрузка не зависит от отмены первого вызывающего
		return r.load(context.WithoutCancel(ctx), m, gen)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Entry), nil
}

// load читает справочник целиком. Если сущность успели инвалидировать во время чтения,
// результат отдаётся вызывающему, но в кэш не кладётся.
func (r *Resolver) load(ctx context.Context, m catalog.ReferenceMapping, gen uint64) (*Entry, error) {
	key := m.Key()

	sb := r.flavor.NewSelectBuilder()
	sb.Select(m.CodeColumn, m.LabelColumn).From(m.Entity).OrderBy(m.CodeColumn).Asc()
	query, args := sb.Build()
	res, err := r.q.Execute(ctx, query, args...)
	if err != nil {
		r.cache.metrics.loads.WithLabelValues("error").Inc()
		return nil, err
	}

	pairs := make([]Pair, 0, len(res.Rows))
	for _, row := range res.Rows {
		pairs = append(pairs, Pair{Code: row[m.CodeColumn], Label: row[m.LabelColumn]})
	}
	e := NewEntry(pairs)
	if !r.cache.putIfCurrent(key, e, gen) {
		r.log.Debug("reference load raced with invalidation", zap.String("key", key.String()))
	}
	r.cache.metrics.loads.WithLabelValues("ok").Inc()
	return e, nil
}
