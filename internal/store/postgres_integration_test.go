//go:build integration

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"dogovor/internal/apperr"
	"dogovor/internal/catalog"
)

func startPostgres(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("dogovor"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	db, err := Open(ctx, DriverPostgres, dsn, Options{MaxOpenConns: 4}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestPostgresRoundTrip(t *testing.T) {
	db := startPostgres(t)
	ctx := context.Background()
	cat, err := catalog.Default()
	require.NoError(t, err)

	require.NoError(t, db.Migrate(ctx, cat))
	require.NoError(t, db.Migrate(ctx, cat))

	cols, err := db.DescribeColumns(ctx, "contract_stages")
	require.NoError(t, err)
	assert.Equal(t, "stage_id", cols[0])

	row, ok, err := db.ExecuteReturningOne(ctx,
		`INSERT INTO contracts (topic, total_amount, conclusion_date) VALUES ($1, $2, $3) RETURNING contract_code`,
		"Поставка", "1234.5", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), row["contract_code"])

	res, err := db.Execute(ctx, `SELECT total_amount, conclusion_date, created_at FROM contracts`)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "1234.50", res.Rows[0]["total_amount"])
	assert.IsType(t, time.Time{}, res.Rows[0]["conclusion_date"])
	assert.NotNil(t, res.Rows[0]["created_at"])

	insertStage := `INSERT INTO contract_stages (contract_code, stage_number) VALUES ($1, $2) RETURNING stage_id`
	_, _, err = db.ExecuteReturningOne(ctx, insertStage, 1, 1)
	require.NoError(t, err)

	var se *apperr.StoreError
	_, _, err = db.ExecuteReturningOne(ctx, insertStage, 1, 1)
	require.True(t, errors.As(err, &se))
	assert.Equal(t, apperr.StoreUnique, se.Code)

	_, _, err = db.ExecuteReturningOne(ctx, insertStage, 99, 1)
	require.True(t, errors.As(err, &se))
	assert.Equal(t, apperr.StoreReference, se.Code)

	tx, err := db.Begin(ctx)
	require.NoError(t, err)
	n, err := tx.Exec(ctx, `DELETE FROM contracts WHERE contract_code = $1`, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.NoError(t, tx.Rollback())

	res, err = db.Execute(ctx, `SELECT COUNT(*) AS n FROM contract_stages`)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Rows[0]["n"])
}
