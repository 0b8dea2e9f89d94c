package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"dogovor/internal/apperr"
	"dogovor/internal/dsl"
)

//go:embed contracts.dsl
var contractsDSL string

// Kind — явный тип поля, решается при сборке каталога
type Kind string

const (
	KindPrimaryKey Kind = "pk"
	KindForeignKey Kind = "ref"
	KindText       Kind = "text"
	KindNumber     Kind = "number"
	KindDate       Kind = "date"
	KindBoolean    Kind = "bool"
)

// CacheKey — ключ записи кэша справочника: (сущность, поле-метка)
type CacheKey struct {
	Entity     string
	LabelField string
}

func (k CacheKey) String() string { return k.Entity + "." + k.LabelField }

// ReferenceMapping описывает, как код из Entity.CodeColumn превращается в метку из LabelColumn
type ReferenceMapping struct {
	Entity      string
	CodeColumn  string
	LabelColumn string
}

func (m ReferenceMapping) Key() CacheKey {
	return CacheKey{Entity: m.Entity, LabelField: m.LabelColumn}
}

type Field struct {
	Name      string
	Label     string
	Kind      Kind
	Integer   bool // pk/ref/int хранятся как bigint
	DateTime  bool // date с временем суток
	Ref       *ReferenceMapping
	Required  bool
	Readonly  bool
	Generated bool
	Default   string
	OnDelete  string
}

type Entity struct {
	Name        string
	Label       string
	Fields      []Field
	Unique      [][]string
	Invalidates []string

	pk      int
	byName  map[string]int
	byLabel map[string]int
}

func (e *Entity) PrimaryKey() Field { return e.Fields[e.pk] }

func (e *Entity) Field(name string) (Field, bool) {
	i, ok := e.byName[name]
	if !ok {
		return Field{}, false
	}
	return e.Fields[i], true
}

// FieldByLabel ищет поле по отображаемой подписи
func (e *Entity) FieldByLabel(label string) (Field, bool) {
	i, ok := e.byLabel[strings.TrimSpace(label)]
	if !ok {
		return Field{}, false
	}
	return e.Fields[i], true
}

// Columns — имена колонок в порядке объявления
func (e *Entity) Columns() []string {
	out := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		out = append(out, f.Name)
	}
	return out
}

func (e *Entity) Labels() []string {
	out := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		out = append(out, f.Label)
	}
	return out
}

// Catalog — неизменяемое описание сущностей
type Catalog struct {
	entities   []*Entity
	byName     map[string]*Entity
	dependents map[string][]string
}

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Build собирает каталог из разобранного DSL
func Build(defs []*dsl.Entity) (*Catalog, error) {
	c := &Catalog{
		byName:     make(map[string]*Entity, len(defs)),
		dependents: map[string][]string{},
	}
	// 1) сущности и их поля без ссылок
	for _, d := range defs {
		if d == nil || !identRe.MatchString(d.Name) {
			return nil, badCatalog(entityName(d), fmt.Errorf("invalid entity name"))
		}
		if _, dup := c.byName[d.Name]; dup {
			return nil, badCatalog(d.Name, fmt.Errorf("duplicate entity"))
		}
		e, err := buildEntity(d)
		if err != nil {
			return nil, badCatalog(d.Name, err)
		}
		c.entities = append(c.entities, e)
		c.byName[e.Name] = e
	}

	// 2) ссылки: целевая сущность и поле-метка должны существовать
	for ei, d := range defs {
		e := c.entities[ei]
		for i, f := range d.Fields {
			if f.Type != "ref" {
				continue
			}
			target, label, ok := strings.Cut(f.RefTarget, ".")
			if !ok || label == "" {
				return nil, badCatalog(e.Name, fmt.Errorf("field %s: ref must be ref[entity.label_field]", f.Name))
			}
			te, exists := c.byName[target]
			if !exists {
				return nil, badCatalog(e.Name, fmt.Errorf("field %s: unknown target entity %q", f.Name, target))
			}
			if _, exists := te.Field(label); !exists {
				return nil, badCatalog(e.Name, fmt.Errorf("field %s: unknown label field %s.%s", f.Name, target, label))
			}
			e.Fields[i].Ref = &ReferenceMapping{
				Entity:      te.Name,
				CodeColumn:  te.PrimaryKey().Name,
				LabelColumn: label,
			}
		}
	}

	// 3) межсущностная инвалидация
	for _, e := range c.entities {
		for _, dep := range e.Invalidates {
			if _, ok := c.byName[dep]; !ok {
				return nil, badCatalog(e.Name, fmt.Errorf("invalidates unknown entity %q", dep))
			}
			c.dependents[e.Name] = append(c.dependents[e.Name], dep)
		}
	}
	return c, nil
}

func buildEntity(d *dsl.Entity) (*Entity, error) {
	e := &Entity{
		Name:    d.Name,
		Label:   d.Option("label"),
		Unique:  d.Constraints.Unique,
		pk:      -1,
		byName:  make(map[string]int, len(d.Fields)),
		byLabel: make(map[string]int, len(d.Fields)),
	}
	if e.Label == "" {
		e.Label = e.Name
	}
	if inv := strings.TrimSpace(d.Option("invalidates")); inv != "" {
		e.Invalidates = strings.FieldsFunc(inv, func(r rune) bool { return r == ' ' || r == ',' || r == '|' })
	}

	for i, f := range d.Fields {
		if !identRe.MatchString(f.Name) {
			return nil, fmt.Errorf("invalid field name %q", f.Name)
		}
		if _, dup := e.byName[f.Name]; dup {
			return nil, fmt.Errorf("duplicate field %q", f.Name)
		}
		fd, err := buildField(f)
		if err != nil {
			return nil, err
		}
		if fd.Kind == KindPrimaryKey {
			if e.pk >= 0 {
				return nil, fmt.Errorf("multiple primary keys: %s, %s", e.Fields[e.pk].Name, f.Name)
			}
			e.pk = i
		}
		if _, dup := e.byLabel[fd.Label]; dup {
			return nil, fmt.Errorf("duplicate label %q", fd.Label)
		}
		e.byName[fd.Name] = i
		e.byLabel[fd.Label] = i
		e.Fields = append(e.Fields, fd)
	}
	if e.pk < 0 {
		return nil, fmt.Errorf("no primary key")
	}

	for _, set := range e.Unique {
		for _, name := range set {
			if _, ok := e.byName[name]; !ok {
				return nil, fmt.Errorf("unique(%s): unknown field %q", strings.Join(set, ", "), name)
			}
		}
	}
	return e, nil
}

func buildField(f dsl.Field) (Field, error) {
	fd := Field{
		Name:      f.Name,
		Label:     f.Option("label"),
		Required:  f.Flag("required"),
		Readonly:  f.Flag("readonly"),
		Generated: f.Flag("generated"),
		Default:   f.Option("default"),
		OnDelete:  strings.ToLower(f.Option("on_delete")),
	}
	if fd.Label == "" {
		fd.Label = f.Name
	}
	switch f.Type {
	case "pk":
		fd.Kind, fd.Integer = KindPrimaryKey, true
	case "ref":
		fd.Kind, fd.Integer = KindForeignKey, true
	case "text", "string":
		fd.Kind = KindText
	case "int":
		fd.Kind, fd.Integer = KindNumber, true
	case "number", "money", "float":
		fd.Kind = KindNumber
	case "date":
		fd.Kind = KindDate
	case "datetime":
		fd.Kind, fd.DateTime = KindDate, true
	case "bool":
		fd.Kind = KindBoolean
	default:
		return Field{}, fmt.Errorf("field %s: unknown type %q", f.Name, f.Type)
	}
	switch fd.OnDelete {
	case "", "restrict", "set_null", "cascade":
	default:
		return Field{}, fmt.Errorf("field %s: unknown on_delete %q", f.Name, fd.OnDelete)
	}
	return fd, nil
}

func entityName(d *dsl.Entity) string {
	if d == nil {
		return ""
	}
	return d.Name
}

func badCatalog(name string, err error) error {
	return &apperr.ConfigError{Kind: "entity", Name: name, Err: err}
}

// Default — встроенный каталог договоров
func Default() (*Catalog, error) {
	defs, err := dsl.Parse(strings.NewReader(contractsDSL))
	if err != nil {
		return nil, err
	}
	return Build(defs)
}

// Load читает каталог из файла или каталога .dsl; пустой путь — встроенный каталог
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	var defs []*dsl.Entity
	if st.IsDir() {
		defs, err = dsl.LoadAllEntities(path)
	} else {
		defs, err = dsl.LoadEntities(path)
	}
	if err != nil {
		return nil, err
	}
	return Build(defs)
}

// Entity возвращает описание сущности или ConfigError
func (c *Catalog) Entity(name string) (*Entity, error) {
	e, ok := c.byName[name]
	if !ok {
		return nil, apperr.Unknown("entity", name)
	}
	return e, nil
}

func (c *Catalog) Entities() []*Entity { return c.entities }

// Mapping — ReferenceMapping для ref-поля; false, если поле не ссылочное
func (c *Catalog) Mapping(entity, field string) (ReferenceMapping, bool) {
	e, ok := c.byName[entity]
	if !ok {
		return ReferenceMapping{}, false
	}
	f, ok := e.Field(field)
	if !ok || f.Ref == nil {
		return ReferenceMapping{}, false
	}
	return *f.Ref, true
}

// Dependents — сущности, чей кэш сбрасывается вместе с entity
func (c *Catalog) Dependents(entity string) []string {
	return c.dependents[entity]
}

// DependencyMap — копия всех связей invalidates=
func (c *Catalog) DependencyMap() map[string][]string {
	out := make(map[string][]string, len(c.dependents))
	for k, v := range c.dependents {
		out[k] = append([]string(nil), v...)
	}
	return out
}
