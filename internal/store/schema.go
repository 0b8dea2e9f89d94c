package store

import (
	"fmt"
	"strings"

	"github.com/huandu/go-sqlbuilder"

	"dogovor/internal/catalog"
)

type OnDeletePolicy string

const (
	OnDeleteRestrict OnDeletePolicy = "RESTRICT"
	OnDeleteSetNull  OnDeletePolicy = "SET NULL"
	OnDeleteCascade  OnDeletePolicy = "CASCADE"
)

func sqlIdent(s string) string { return `"` + strings.ToLower(s) + `"` }

func mapType(f catalog.Field, flavor sqlbuilder.Flavor) string {
	lite := flavor == sqlbuilder.SQLite
	switch f.Kind {
	case catalog.KindPrimaryKey, catalog.KindForeignKey:
		if lite {
			return "integer"
		}
		return "bigint"
	case catalog.KindNumber:
		if f.Integer {
			if lite {
				return "integer"
			}
			return "bigint"
		}
		if lite {
			return "numeric"
		}
		return "numeric(18,2)"
	case catalog.KindDate:
		if f.DateTime {
			if lite {
				return "datetime"
			}
			return "timestamp with time zone"
		}
		return "date"
	case catalog.KindBoolean:
		return "boolean"
	default:
		return "text"
	}
}

func onDeletePolicy(f catalog.Field) OnDeletePolicy {
	switch f.OnDelete {
	case "set_null":
		return OnDeleteSetNull
	case "cascade":
		return OnDeleteCascade
	default:
		return OnDeleteRestrict
	}
}

func defaultClause(f catalog.Field) string {
	dv := strings.TrimSpace(f.Default)
	if dv == "" {
		return ""
	}
	if strings.EqualFold(dv, "now") {
		return " default CURRENT_TIMESTAMP"
	}
	switch f.Kind {
	case catalog.KindBoolean:
		if strings.EqualFold(dv, "true") {
			return " default TRUE"
		}
		return " default FALSE"
	case catalog.KindNumber:
		if _, err := catalog.ParseDecimal(dv); err == nil {
			return " default " + dv
		}
		return ""
	}
	return " default '" + strings.ReplaceAll(dv, "'", "''") + "'"
}

// GenerateDDL — CREATE TABLE/INDEX по каталогу; таблицы идут после тех, на кого ссылаются
func GenerateDDL(cat *catalog.Catalog, flavor sqlbuilder.Flavor) ([]string, error) {
	ordered, err := dependencyOrder(cat.Entities())
	if err != nil {
		return nil, err
	}

	var out []string
	for _, e := range ordered {
		cols := make([]string, 0, len(e.Fields))
		for _, f := range e.Fields {
			name := sqlIdent(f.Name)
			if f.Kind == catalog.KindPrimaryKey {
				switch {
				case f.Generated && flavor == sqlbuilder.SQLite:
					cols = append(cols, name+" integer primary key autoincrement")
				case f.Generated:
					cols = append(cols, name+" bigint generated by default as identity primary key")
				default:
					cols = append(cols, name+" "+mapType(f, flavor)+" primary key")
				}
				continue
			}

			null := "null"
			if f.Required {
				null = "not null"
			}
			col := fmt.Sprintf("%s %s %s%s", name, mapType(f, flavor), null, defaultClause(f))
			if f.Ref != nil {
				col += fmt.Sprintf(" references %s(%s) on delete %s",
					sqlIdent(f.Ref.Entity), sqlIdent(f.Ref.CodeColumn), onDeletePolicy(f))
			}
			cols = append(cols, col)
		}
		out = append(out, fmt.Sprintf("create table if not exists %s (\n  %s\n)",
			sqlIdent(e.Name), strings.Join(cols, ",\n  ")))

		// UNIQUE составные
		for _, set := range e.Unique {
			idxName := strings.ToLower(e.Name + "_" + strings.Join(set, "_") + "_uq")
			parts := make([]string, 0, len(set))
			for _, p := range set {
				parts = append(parts, sqlIdent(p))
			}
			out = append(out, fmt.Sprintf("create unique index if not exists %s on %s(%s)",
				sqlIdent(idxName), sqlIdent(e.Name), strings.Join(parts, ", ")))
		}
	}
	return out, nil
}

// dependencyOrder — топологическая сортировка по ref; самоссылки не мешают
func dependencyOrder(entities []*catalog.Entity) ([]*catalog.Entity, error) {
	byName := make(map[string]*catalog.Entity, len(entities))
	for _, e := range entities {
		byName[e.Name] = e
	}
	const (
		white = iota
		grey
		black
	)
	state := make(map[string]int, len(entities))
	out := make([]*catalog.Entity, 0, len(entities))

	var visit func(e *catalog.Entity) error
	visit = func(e *catalog.Entity) error {
		switch state[e.Name] {
		case black:
			return nil
		case grey:
			return fmt.Errorf("reference cycle through %s", e.Name)
		}
		state[e.Name] = grey
		for _, f := range e.Fields {
			if f.Ref == nil || f.Ref.Entity == e.Name {
				continue
			}
			if err := visit(byName[f.Ref.Entity]); err != nil {
				return err
			}
		}
		state[e.Name] = black
		out = append(out, e)
		return nil
	}
	for _, e := range entities {
		if err := visit(e); err != nil {
			return nil, err
		}
	}
	return out, nil
}
