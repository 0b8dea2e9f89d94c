package write

import (
	"context"
	"fmt"

	"github.com/huandu/go-sqlbuilder"
	"go.uber.org/zap"

	"dogovor/internal/apperr"
	"dogovor/internal/catalog"
	"dogovor/internal/store"
)

// Invalidator — сброс кэша справочников после подтверждённой записи
type Invalidator interface {
	Invalidate(entity string)
}

// Coordinator выполняет INSERT/UPDATE/DELETE в одной транзакции и после commit сбрасывает кэш.
// При ошибке — rollback, кэш не трогается.
type Coordinator struct {
	cat    *catalog.Catalog
	db     store.Beginner
	flavor sqlbuilder.Flavor
	inv    Invalidator
	log    *zap.Logger
}

func NewCoordinator(cat *catalog.Catalog, db store.Beginner, flavor sqlbuilder.Flavor, inv Invalidator, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{cat: cat, db: db, flavor: flavor, inv: inv, log: log}
}

// Insert добавляет строку и возвращает сгенерированный ключ
func (c *Coordinator) Insert(ctx context.Context, entity string, values map[string]any) (any, error) {
	e, err := c.cat.Entity(entity)
	if err != nil {
		return nil, err
	}
	p, errs := prepare(e, values, modeInsert, "")
	if len(errs) > 0 {
		return nil, apperr.Validation(errs...)
	}

	var key any
	err = c.inTx(ctx, []string{e.Name}, func(tx store.Tx) error {
		key, err = c.insert(ctx, tx, e, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	c.log.Info("row inserted", zap.String("entity", e.Name), zap.Any("key", key))
	return key, nil
}

// Update меняет переданные поля строки с ключом pk
func (c *Coordinator) Update(ctx context.Context, entity string, pk any, values map[string]any) error {
	e, err := c.cat.Entity(entity)
	if err != nil {
		return err
	}
	key, fe := c.primaryKey(e, pk)
	p, errs := prepare(e, values, modeUpdate, "")
	if fe != nil {
		errs = append([]apperr.FieldError{*fe}, errs...)
	}
	if len(errs) == 0 && len(p.cols) == 0 {
		errs = append(errs, apperr.Field(apperr.ErrRequired, "values", "nothing to update"))
	}
	if len(errs) > 0 {
		return apperr.Validation(errs...)
	}

	ub := c.flavor.NewUpdateBuilder()
	ub.Update(e.Name)
	assigns := make([]string, 0, len(p.cols))
	for i, col := range p.cols {
		assigns = append(assigns, ub.Assign(col, p.vals[i]))
	}
	ub.Set(assigns...)
	ub.Where(ub.Equal(e.PrimaryKey().Name, key))
	query, args := ub.Build()

	err = c.inTx(ctx, []string{e.Name}, func(tx store.Tx) error {
		n, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("update %s %v: %w", e.Name, key, apperr.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return err
	}
	c.log.Info("row updated", zap.String("entity", e.Name), zap.Any("key", key))
	return nil
}

// Delete удаляет строку; каскадно затронутые сущности тоже сбрасываются в кэше
func (c *Coordinator) Delete(ctx context.Context, entity string, pk any) error {
	e, err := c.cat.Entity(entity)
	if err != nil {
		return err
	}
	key, fe := c.primaryKey(e, pk)
	if fe != nil {
		return apperr.Validation(*fe)
	}

	db := c.flavor.NewDeleteBuilder()
	db.DeleteFrom(e.Name).Where(db.Equal(e.PrimaryKey().Name, key))
	query, args := db.Build()

	affected := append([]string{e.Name}, c.cascades(e.Name)...)
	err = c.inTx(ctx, affected, func(tx store.Tx) error {
		n, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("delete %s %v: %w", e.Name, key, apperr.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return err
	}
	c.log.Info("row deleted", zap.String("entity", e.Name), zap.Any("key", key))
	return nil
}

// InsertWithDependents вставляет родителя и все зависимые строки одной транзакцией.
// fkField каждой зависимой строки заполняется ключом родителя.
// Повтор бизнес-ключа внутри пачки отклоняется до первого запроса.
func (c *Coordinator) InsertWithDependents(ctx context.Context, parent string, parentValues map[string]any,
	dependent string, rows []map[string]any, fkField string) (any, error) {
	pe, err := c.cat.Entity(parent)
	if err != nil {
		return nil, err
	}
	de, err := c.cat.Entity(dependent)
	if err != nil {
		return nil, err
	}
	fk, ok := de.Field(fkField)
	if !ok || fk.Ref == nil || fk.Ref.Entity != pe.Name {
		return nil, &apperr.ConfigError{Kind: "field", Name: dependent + "." + fkField,
			Err: fmt.Errorf("must reference %s", parent)}
	}

	pp, errs := prepare(pe, parentValues, modeInsert, "")
	dps := make([]prepared, 0, len(rows))
	for i, r := range rows {
		dp, rerrs := prepare(de, r, modeInsert, fmt.Sprintf("%s[%d].", dependent, i), fkField)
		errs = append(errs, rerrs...)
		dps = append(dps, dp)
	}
	errs = append(errs, duplicateKeys(de, dps, fkField, dependent)...)
	if len(errs) > 0 {
		return nil, apperr.Validation(errs...)
	}

	var parentKey any
	err = c.inTx(ctx, []string{pe.Name, de.Name}, func(tx store.Tx) error {
		parentKey, err = c.insert(ctx, tx, pe, pp)
		if err != nil {
			return err
		}
		for _, dp := range dps {
			dp.cols = append(dp.cols, fkField)
			dp.vals = append(dp.vals, parentKey)
			if _, err := c.insert(ctx, tx, de, dp); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.log.Info("row inserted with dependents",
		zap.String("entity", pe.Name), zap.Any("key", parentKey),
		zap.String("dependent", de.Name), zap.Int("rows", len(dps)))
	return parentKey, nil
}

// inTx: begin → fn → commit → invalidate. Любая ошибка — rollback без инвалидации.
func (c *Coordinator) inTx(ctx context.Context, affected []string, fn func(tx store.Tx) error) error {
	tx, err := c.db.Begin(ctx)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil {
				c.log.Warn("rollback failed", zap.Error(rbErr))
			}
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true

	for _, name := range affected {
		c.inv.Invalidate(name)
	}
	return nil
}

func (c *Coordinator) insert(ctx context.Context, tx store.Tx, e *catalog.Entity, p prepared) (any, error) {
	pk := e.PrimaryKey().Name
	var query string
	var args []any
	if len(p.cols) == 0 {
		query = "INSERT INTO " + e.Name + " DEFAULT VALUES RETURNING " + pk
	} else {
		ib := c.flavor.NewInsertBuilder()
		ib.InsertInto(e.Name).Cols(p.cols...).Values(p.vals...)
		ib.SQL("RETURNING " + pk)
		query, args = ib.Build()
	}

	row, ok, err := tx.ExecuteReturningOne(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &apperr.StoreError{Op: "insert " + e.Name, Code: apperr.StoreFailure,
			Err: fmt.Errorf("no key returned")}
	}
	return row[pk], nil
}

func (c *Coordinator) primaryKey(e *catalog.Entity, pk any) (any, *apperr.FieldError) {
	f := e.PrimaryKey()
	v, err := f.Coerce(pk)
	if err != nil {
		fe := apperr.Field(apperr.ErrTypeMismatch, f.Name, "Field '"+f.Name+"' "+err.Error())
		return nil, &fe
	}
	if v == nil {
		fe := apperr.Field(apperr.ErrRequired, f.Name, "primary key is required")
		return nil, &fe
	}
	return v, nil
}

// cascades — сущности, чьи строки меняются при удалении из entity (on_delete cascade/set_null)
func (c *Coordinator) cascades(entity string) []string {
	var out []string
	for _, e := range c.cat.Entities() {
		for _, f := range e.Fields {
			if f.Ref != nil && f.Ref.Entity == entity && (f.OnDelete == "cascade" || f.OnDelete == "set_null") {
				out = append(out, e.Name)
				break
			}
		}
	}
	return out
}
