package reference

import (
	"sync"

	"dogovor/internal/catalog"
)

// Cache хранит записи справочников по CacheKey. Без TTL и вытеснения:
// запись живёт до инвалидации своей сущности.
type Cache struct {
	mu         sync.Mutex
	entries    map[catalog.CacheKey]*Entry
	gens       map[string]uint64
	dependents map[string][]string
	metrics    *Metrics
}

// NewCache; dependents — кого ещё сбрасывать при записи в сущность (contract_stages → contracts)
func NewCache(dependents map[string][]string, m *Metrics) *Cache {
	if m == nil {
		m = NewMetrics(nil)
	}
	deps := make(map[string][]string, len(dependents))
	for k, v := range dependents {
		deps[k] = append([]string(nil), v...)
	}
	return &Cache{
		entries:    map[catalog.CacheKey]*Entry{},
		gens:       map[string]uint64{},
		dependents: deps,
		metrics:    m,
	}
}

func (c *Cache) Get(key catalog.CacheKey) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if ok {
		c.metrics.hits.Inc()
	} else {
		c.metrics.misses.Inc()
	}
	return e, ok
}

// Put заменяет запись целиком
func (c *Cache) Put(key catalog.CacheKey, e *Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = e
}

// Invalidate удаляет все записи сущности и её зависимых.
// Возвращает список затронутых сущностей.
func (c *Cache) Invalidate(entity string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var touched []string
	visited := map[string]bool{}
	queue := []string{entity}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if visited[name] {
			continue
		}
		visited[name] = true
		touched = append(touched, name)

		c.gens[name]++
		for key := range c.entries {
			if key.Entity == name {
				delete(c.entries, key)
			}
		}
		c.metrics.invalidations.WithLabelValues(name).Inc()
		queue = append(queue, c.dependents[name]...)
	}
	return touched
}

// Keys — текущие ключи, для диагностики
func (c *Cache) Keys() []catalog.CacheKey {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]catalog.CacheKey, 0, len(c.entries))
	for k := range c.entries {
		out = append(out, k)
	}
	return out
}

func (c *Cache) generation(entity string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[entity]
}

// putIfCurrent кладёт запись, только если сущность не инвалидировали после начала загрузки
func (c *Cache) putIfCurrent(key catalog.CacheKey, e *Entry, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[key.Entity] != gen {
		return false
	}
	c.entries[key] = e
	return true
}
