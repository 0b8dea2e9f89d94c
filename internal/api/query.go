package api

import (
	"net/url"
	"strconv"
	"strings"

	"dogovor/internal/catalog"
	"dogovor/internal/rowset"
)

// ListParams — параметры листинга строк
type ListParams struct {
	Limit   int
	Offset  int
	Query   rowset.Query
	Display bool
}

// parseListParams: q, filter_field/filter_value, sort (-field = по убыванию), limit/offset, display
func parseListParams(q url.Values) ListParams {
	// limit
	limit := 0
	lv := q.Get("_limit")
	if lv == "" {
		lv = q.Get("limit")
	}
	if lv != "" {
		if n, err := strconv.Atoi(lv); err == nil && n >= 0 && n <= 1000 {
			limit = n
		}
	}

	// offset
	offset := 0
	ov := q.Get("_offset")
	if ov == "" {
		ov = q.Get("offset")
	}
	if ov != "" {
		if n, err := strconv.Atoi(ov); err == nil && n >= 0 {
			offset = n
		}
	}

	lp := ListParams{Limit: limit, Offset: offset}
	lp.Query.FreeText = strings.TrimSpace(q.Get("q"))

	// фильтр по одному полю (подпись)
	if ff := strings.TrimSpace(q.Get("filter_field")); ff != "" {
		lp.Query.Filter = catalog.FilterSpec{
			Enabled: true,
			Field:   ff,
			Op:      catalog.ParseOperator(q.Get("filter_op")),
			Value:   q.Get("filter_value"),
		}
	}

	// sort
	sv := strings.TrimSpace(q.Get("_sort"))
	if sv == "" {
		sv = strings.TrimSpace(q.Get("sort"))
	}
	if sv != "" {
		asc := true
		if strings.HasPrefix(sv, "-") {
			asc = false
			sv = strings.TrimPrefix(sv, "-")
		} else {
			sv = strings.TrimPrefix(sv, "+")
		}
		lp.Query.SortField = sv
		lp.Query.Ascending = asc
	}

	switch strings.ToLower(q.Get("display")) {
	case "1", "true", "yes":
		lp.Display = true
	}
	return lp
}

func page[T any](rows []T, offset, limit int) []T {
	start := offset
	if start > len(rows) {
		start = len(rows)
	}
	end := len(rows)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	return rows[start:end]
}
