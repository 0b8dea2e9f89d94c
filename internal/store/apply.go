package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"dogovor/internal/catalog"
)

// ApplyDDL выполняет операторы по порядку. Ожидается idempotent DDL (create ... if not exists).
func (d *DB) ApplyDDL(ctx context.Context, stmts []string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	for _, sqlText := range stmts {
		sqlText = strings.TrimSpace(sqlText)
		if sqlText == "" {
			continue
		}
		if _, err := d.db.ExecContext(ctx, sqlText); err != nil {
			// duplicate_object (42710) — объект уже есть
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "42710" {
				d.log.Info("DDL skipped (already exists)",
					zap.String("constraint", pgErr.ConstraintName), zap.String("message", strings.TrimSpace(pgErr.Message)))
				continue
			}
			e := strings.ToLower(err.Error())
			if strings.Contains(e, "already exists") || strings.Contains(e, "duplicate") {
				d.log.Info("DDL skipped (already exists)", zap.Error(err))
				continue
			}
			return fmt.Errorf("DDL apply failed: %w", err)
		}
	}
	return nil
}

// Migrate создаёт таблицы каталога
func (d *DB) Migrate(ctx context.Context, cat *catalog.Catalog) error {
	stmts, err := GenerateDDL(cat, d.flavor)
	if err != nil {
		return err
	}
	if err := d.ApplyDDL(ctx, stmts); err != nil {
		return err
	}
	d.log.Info("schema applied", zap.Int("statements", len(stmts)))
	return nil
}
