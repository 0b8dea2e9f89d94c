package report

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"dogovor/internal/store"
)

// Runner выполняет собранный отчёт
type Runner struct {
	q   store.Querier
	log *zap.Logger
}

func NewRunner(q store.Querier, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{q: q, log: log}
}

// SQL — полный текст запроса: база отчёта + WHERE + ORDER BY
func SQL(def *Definition, fr Fragments) string {
	parts := []string{strings.TrimSpace(def.Query)}
	if fr.Where != "" {
		parts = append(parts, fr.Where)
	}
	parts = append(parts, fr.OrderBy)
	return strings.Join(parts, "\n")
}

func (r *Runner) Run(ctx context.Context, def *Definition, fr Fragments) (*store.Result, error) {
	res, err := r.q.Execute(ctx, SQL(def, fr), fr.Args...)
	if err != nil {
		return nil, fmt.Errorf("report %s: %w", def.Key, err)
	}
	r.log.Debug("report executed", zap.String("report", def.Key), zap.Int("rows", len(res.Rows)))
	return res, nil
}
