package browse

import (
	"context"

	"dogovor/internal/catalog"
	"dogovor/internal/rowset"
	"dogovor/internal/store"
)

// DisplayRows — строки для показа: метки вместо кодов, даты ДД.ММ.ГГГГ, суммы с двумя знаками
func (s *Service) DisplayRows(ctx context.Context, entity string, rows []store.Row) ([]map[string]string, error) {
	e, err := s.cat.Entity(entity)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]string, 0, len(rows))
	for _, r := range rows {
		d := make(map[string]string, len(e.Fields))
		for _, f := range e.Fields {
			d[f.Name] = s.displayValue(ctx, f, r[f.Name])
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *Service) displayValue(ctx context.Context, f catalog.Field, v any) string {
	if v == nil {
		return ""
	}
	switch f.Kind {
	case catalog.KindForeignKey:
		return s.resolver.ResolveLabel(ctx, *f.Ref, v)
	case catalog.KindDate:
		if f.DateTime {
			return rowset.FormatDateTime(v)
		}
		return rowset.FormatDate(v)
	case catalog.KindNumber:
		if f.Integer {
			return rowset.Render(v)
		}
		return rowset.FormatMoney(v)
	case catalog.KindBoolean:
		// sqlite отдаёт boolean как 0/1
		switch b := v.(type) {
		case bool:
			return yesNo(b)
		case int64:
			return yesNo(b != 0)
		}
	}
	return rowset.Render(v)
}

func yesNo(b bool) string {
	if b {
		return "да"
	}
	return "нет"
}
