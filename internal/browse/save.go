package browse

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"dogovor/internal/apperr"
	"dogovor/internal/catalog"
)

type Mode string

const (
	ModeAdd  Mode = "add"
	ModeEdit Mode = "edit"
)

// Input — значения формы. RefLabels: ссылочные поля, заданные меткой, а не кодом.
type Input struct {
	Values    map[string]any    `json:"values"`
	RefLabels map[string]string `json:"refLabels,omitempty"`
}

// Save добавляет или обновляет строку. Для add возвращает сгенерированный ключ, для edit — pk.
func (s *Service) Save(ctx context.Context, entity string, mode Mode, in Input, pk any) (any, error) {
	e, err := s.cat.Entity(entity)
	if err != nil {
		return nil, err
	}
	values, err := s.resolveLabels(ctx, e, in, "")
	if err != nil {
		return nil, err
	}
	switch mode {
	case ModeAdd:
		return s.writer.Insert(ctx, e.Name, values)
	case ModeEdit:
		if err := s.writer.Update(ctx, e.Name, pk, values); err != nil {
			return nil, err
		}
		return pk, nil
	default:
		return nil, apperr.Validation(apperr.Field(apperr.ErrTypeMismatch, "mode", fmt.Sprintf("unknown mode %q", mode)))
	}
}

// SaveContractWithStages — договор и его этапы одной транзакцией; возвращает код договора
func (s *Service) SaveContractWithStages(ctx context.Context, contract Input, stages []Input) (any, error) {
	ce, err := s.cat.Entity(ContractsEntity)
	if err != nil {
		return nil, err
	}
	se, err := s.cat.Entity(StagesEntity)
	if err != nil {
		return nil, err
	}
	cv, err := s.resolveLabels(ctx, ce, contract, "")
	if err != nil {
		return nil, err
	}
	rows := make([]map[string]any, 0, len(stages))
	for i, st := range stages {
		sv, err := s.resolveLabels(ctx, se, st, fmt.Sprintf("%s[%d].", StagesEntity, i))
		if err != nil {
			return nil, err
		}
		rows = append(rows, sv)
	}
	return s.writer.InsertWithDependents(ctx, ce.Name, cv, se.Name, rows, StagesFK)
}

// resolveLabels переводит метки ссылочных полей в коды.
// Пустая или ненайденная метка — ключ пустой. Ошибка хранилища прерывает сохранение.
func (s *Service) resolveLabels(ctx context.Context, e *catalog.Entity, in Input, prefix string) (map[string]any, error) {
	values := make(map[string]any, len(in.Values)+len(in.RefLabels))
	for k, v := range in.Values {
		values[k] = v
	}
	if len(in.RefLabels) == 0 {
		return values, nil
	}

	names := make([]string, 0, len(in.RefLabels))
	for k := range in.RefLabels {
		names = append(names, k)
	}
	sort.Strings(names)

	var errs []apperr.FieldError
	for _, name := range names {
		f, ok := e.Field(name)
		if !ok || f.Ref == nil {
			errs = append(errs, apperr.Field(apperr.ErrUnknownField, prefix+name, "Field '"+name+"' is not a reference"))
			continue
		}
		label := strings.TrimSpace(in.RefLabels[name])
		if label == "" {
			values[name] = nil
			continue
		}
		code, err := s.resolver.ResolveCode(ctx, *f.Ref, label)
		switch {
		case err == nil:
			values[name] = code
		case isNotFound(err):
			s.log.Debug("reference label not found, key left empty",
				zap.String("entity", e.Name), zap.String("field", name))
			values[name] = nil
		default:
			return nil, err
		}
	}
	if len(errs) > 0 {
		return nil, apperr.Validation(errs...)
	}
	return values, nil
}
