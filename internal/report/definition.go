package report

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"dogovor/internal/apperr"
)

//go:embed reports.yaml
var defaultReports []byte

type ValueType string

const (
	TypeInteger ValueType = "integer"
	TypeNumeric ValueType = "numeric"
	TypeText    ValueType = "text"
	TypeDate    ValueType = "date"
)

// FieldDef — одна строка белого списка: подпись → SQL-выражение и тип
type FieldDef struct {
	Label string    `yaml:"label" json:"label"`
	Expr  string    `yaml:"expr" json:"-"`
	Type  ValueType `yaml:"type" json:"type"`
}

type SortDef struct {
	Expr string `yaml:"expr"`
	Dir  string `yaml:"dir"`
}

func (s SortDef) Desc() bool { return strings.EqualFold(strings.TrimSpace(s.Dir), "desc") }

// Definition — неизменяемое описание отчёта. Fields и есть белый список.
type Definition struct {
	Key         string     `yaml:"key"`
	Title       string     `yaml:"title"`
	Query       string     `yaml:"query"`
	Fields      []FieldDef `yaml:"fields"`
	DefaultSort SortDef    `yaml:"default_sort"`

	byLabel map[string]int
}

// Field — описание поля по подписи
func (d *Definition) Field(label string) (FieldDef, bool) {
	i, ok := d.byLabel[strings.TrimSpace(label)]
	if !ok {
		return FieldDef{}, false
	}
	return d.Fields[i], true
}

// Exprs — все разрешённые выражения
func (d *Definition) Exprs() []string {
	out := make([]string, 0, len(d.Fields))
	for _, f := range d.Fields {
		out = append(out, f.Expr)
	}
	return out
}

var keyRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func (d *Definition) validate() error {
	if !keyRe.MatchString(d.Key) {
		return errors.New("invalid key")
	}
	if strings.TrimSpace(d.Query) == "" {
		return errors.New("empty query")
	}
	// $ зарезервирован под плейсхолдеры sqlbuilder, ; — под склейку запросов
	if strings.ContainsAny(d.Query, "$;") {
		return errors.New("query must not contain '$' or ';'")
	}
	if len(d.Fields) == 0 {
		return errors.New("no fields")
	}
	d.byLabel = make(map[string]int, len(d.Fields))
	exprs := map[string]bool{}
	for i, f := range d.Fields {
		if strings.TrimSpace(f.Label) == "" || strings.TrimSpace(f.Expr) == "" {
			return fmt.Errorf("field %d: label and expr are required", i)
		}
		if strings.ContainsAny(f.Expr, "$;") {
			return fmt.Errorf("field %q: expr must not contain '$' or ';'", f.Label)
		}
		switch f.Type {
		case TypeInteger, TypeNumeric, TypeText, TypeDate:
		default:
			return fmt.Errorf("field %q: unknown type %q", f.Label, f.Type)
		}
		if _, dup := d.byLabel[f.Label]; dup {
			return fmt.Errorf("duplicate label %q", f.Label)
		}
		d.byLabel[f.Label] = i
		exprs[f.Expr] = true
	}
	if !exprs[d.DefaultSort.Expr] {
		return fmt.Errorf("default sort %q is not a registered expression", d.DefaultSort.Expr)
	}
	switch strings.ToLower(strings.TrimSpace(d.DefaultSort.Dir)) {
	case "", "asc", "desc":
	default:
		return fmt.Errorf("default sort: unknown direction %q", d.DefaultSort.Dir)
	}
	return nil
}

// Registry — отчёты по ключу, порядок объявления сохраняется
type Registry struct {
	defs  map[string]*Definition
	order []string
}

type file struct {
	Reports []*Definition `yaml:"reports"`
}

// Parse читает YAML со списком отчётов
func Parse(r io.Reader) ([]*Definition, error) {
	var f file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, err
	}
	for _, d := range f.Reports {
		if err := d.validate(); err != nil {
			return nil, &apperr.ConfigError{Kind: "report", Name: d.Key, Err: err}
		}
	}
	return f.Reports, nil
}

func NewRegistry(defs ...*Definition) (*Registry, error) {
	reg := &Registry{defs: make(map[string]*Definition, len(defs))}
	for _, d := range defs {
		if d.byLabel == nil {
			if err := d.validate(); err != nil {
				return nil, &apperr.ConfigError{Kind: "report", Name: d.Key, Err: err}
			}
		}
		if _, dup := reg.defs[d.Key]; dup {
			return nil, &apperr.ConfigError{Kind: "report", Name: d.Key, Err: errors.New("duplicate key")}
		}
		reg.defs[d.Key] = d
		reg.order = append(reg.order, d.Key)
	}
	return reg, nil
}

// Default — встроенные отчёты
func Default() (*Registry, error) {
	defs, err := Parse(bytes.NewReader(defaultReports))
	if err != nil {
		return nil, err
	}
	return NewRegistry(defs...)
}

// LoadDir читает все *.yaml / *.yml из папки; пустой путь — встроенные отчёты
func LoadDir(dir string) (*Registry, error) {
	if strings.TrimSpace(dir) == "" {
		return Default()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && (strings.HasSuffix(e.Name(), ".yaml") || strings.HasSuffix(e.Name(), ".yml")) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var all []*Definition
	for _, name := range names {
		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		defs, err := Parse(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		all = append(all, defs...)
	}
	return NewRegistry(all...)
}

// Get — отчёт по ключу или ConfigError
func (r *Registry) Get(key string) (*Definition, error) {
	d, ok := r.defs[key]
	if !ok {
		return nil, apperr.Unknown("report", key)
	}
	return d, nil
}

func (r *Registry) List() []*Definition {
	out := make([]*Definition, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.defs[k])
	}
	return out
}
