package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"dogovor/internal/apperr"
)

const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

// Row — одна строка результата: колонка → значение
type Row = map[string]any

// Result — упорядоченные колонки и строки
type Result struct {
	Columns []string
	Rows    []Row
}

// Querier — чтение и вставка с возвратом ключа
type Querier interface {
	Execute(ctx context.Context, query string, args ...any) (*Result, error)
	ExecuteReturningOne(ctx context.Context, query string, args ...any) (Row, bool, error)
}

// Tx — явная транзакция: один Commit в конце или Rollback
type Tx interface {
	Querier
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	Commit() error
	Rollback() error
}

type Beginner interface {
	Begin(ctx context.Context) (Tx, error)
}

type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type DB struct {
	db     *sqlx.DB
	flavor sqlbuilder.Flavor
	log    *zap.Logger
}

// Open подключается к pgx или sqlite и проверяет связь
func Open(ctx context.Context, driver, dsn string, opts Options, log *zap.Logger) (*DB, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if _, err := FlavorOf(driver); err != nil {
		return nil, err
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		// sqlite: одно соединение, иначе :memory: у каждого своя база
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		if opts.MaxOpenConns <= 0 {
			opts.MaxOpenConns = 10
		}
		if opts.MaxIdleConns <= 0 {
			opts.MaxIdleConns = 5
		}
		if opts.ConnMaxLifetime <= 0 {
			opts.ConnMaxLifetime = 30 * time.Minute
		}
		db.SetMaxOpenConns(opts.MaxOpenConns)
		db.SetMaxIdleConns(opts.MaxIdleConns)
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if driver == DriverSQLite {
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return New(db, log), nil
}

// New оборачивает готовый *sqlx.DB; диалект выбирается по имени драйвера
func New(db *sqlx.DB, log *zap.Logger) *DB {
	if log == nil {
		log = zap.NewNop()
	}
	flavor, err := FlavorOf(db.DriverName())
	if err != nil {
		flavor = sqlbuilder.PostgreSQL
	}
	return &DB{db: db, flavor: flavor, log: log}
}

// FlavorOf — диалект go-sqlbuilder для имени драйвера
func FlavorOf(driver string) (sqlbuilder.Flavor, error) {
	switch driver {
	case DriverPostgres:
		return sqlbuilder.PostgreSQL, nil
	case DriverSQLite:
		return sqlbuilder.SQLite, nil
	default:
		return 0, &apperr.ConfigError{Kind: "driver", Name: driver, Err: errors.New("expected pgx or sqlite")}
	}
}

func (d *DB) Flavor() sqlbuilder.Flavor { return d.flavor }

func (d *DB) SQLX() *sqlx.DB { return d.db }

func (d *DB) Close() error { return d.db.Close() }

func (d *DB) Ping(ctx context.Context) error { return d.db.PingContext(ctx) }

func (d *DB) Execute(ctx context.Context, query string, args ...any) (*Result, error) {
	d.log.Debug("sql", zap.String("query", query), zap.Int("args", len(args)))
	res, err := queryRows(ctx, d.db, query, args)
	if err != nil {
		return nil, classify("execute", err)
	}
	return res, nil
}

func (d *DB) ExecuteReturningOne(ctx context.Context, query string, args ...any) (Row, bool, error) {
	d.log.Debug("sql", zap.String("query", query), zap.Int("args", len(args)))
	row, ok, err := queryOne(ctx, d.db, query, args)
	if err != nil {
		return nil, false, classify("execute", err)
	}
	return row, ok, nil
}

func (d *DB) Begin(ctx context.Context) (Tx, error) {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, classify("begin", err)
	}
	return &sqlTx{tx: tx, log: d.log}, nil
}

// DescribeColumns — имена колонок таблицы в порядке объявления
func (d *DB) DescribeColumns(ctx context.Context, table string) ([]string, error) {
	var q string
	if d.flavor == sqlbuilder.SQLite {
		q = "SELECT name FROM pragma_table_info(?) ORDER BY cid"
	} else {
		q = "SELECT column_name FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = $1 ORDER BY ordinal_position"
	}
	var cols []string
	if err := d.db.SelectContext(ctx, &cols, q, table); err != nil {
		return nil, classify("describe", err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("describe %s: %w", table, apperr.ErrNotFound)
	}
	return cols, nil
}

type sqlTx struct {
	tx   *sqlx.Tx
	log  *zap.Logger
	done bool
}

func (t *sqlTx) Execute(ctx context.Context, query string, args ...any) (*Result, error) {
	t.log.Debug("sql tx", zap.String("query", query), zap.Int("args", len(args)))
	res, err := queryRows(ctx, t.tx, query, args)
	if err != nil {
		return nil, classify("execute", err)
	}
	return res, nil
}

func (t *sqlTx) ExecuteReturningOne(ctx context.Context, query string, args ...any) (Row, bool, error) {
	t.log.Debug("sql tx", zap.String("query", query), zap.Int("args", len(args)))
	row, ok, err := queryOne(ctx, t.tx, query, args)
	if err != nil {
		return nil, false, classify("execute", err)
	}
	return row, ok, nil
}

func (t *sqlTx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	t.log.Debug("sql tx", zap.String("query", query), zap.Int("args", len(args)))
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, classify("exec", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, classify("exec", err)
	}
	return n, nil
}

func (t *sqlTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return classify("commit", err)
	}
	t.done = true
	return nil
}

// Rollback после Commit — no-op
func (t *sqlTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return classify("rollback", err)
	}
	return nil
}

func queryRows(ctx context.Context, q sqlx.QueryerContext, query string, args []any) (*Result, error) {
	rows, err := q.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	res := &Result{Columns: cols}
	for rows.Next() {
		m := make(Row, len(cols))
		if err := rows.MapScan(m); err != nil {
			return nil, err
		}
		normalize(m)
		res.Rows = append(res.Rows, m)
	}
	return res, rows.Err()
}

func queryOne(ctx context.Context, q sqlx.QueryerContext, query string, args []any) (Row, bool, error) {
	res, err := queryRows(ctx, q, query, args)
	if err != nil {
		return nil, false, err
	}
	if len(res.Rows) == 0 {
		return nil, false, nil
	}
	return res.Rows[0], true, nil
}

// []byte от драйвера → string
func normalize(m Row) {
	for k, v := range m {
		if b, ok := v.([]byte); ok {
			m[k] = string(b)
		}
	}
}

// classify заворачивает ошибку драйвера в StoreError с кодом
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *apperr.StoreError
	if errors.As(err, &se) {
		return err
	}
	code := apperr.StoreFailure

	var pgErr *pgconn.PgError
	var liteErr *sqlite.Error
	switch {
	case errors.As(err, &pgErr):
		switch pgErr.Code {
		case "23505":
			code = apperr.StoreUnique
		case "23503":
			code = apperr.StoreReference
		}
	case errors.As(err, &liteErr):
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			code = apperr.StoreUnique
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			code = apperr.StoreReference
		}
	default:
		// подстраховка по фразе
		e := strings.ToLower(err.Error())
		if strings.Contains(e, "unique constraint") {
			code = apperr.StoreUnique
		} else if strings.Contains(e, "foreign key constraint") {
			code = apperr.StoreReference
		}
	}
	return &apperr.StoreError{Op: op, Code: code, Err: err}
}
