package dsl

// Entity описывает структуру сущности из DSL
type Entity struct {
	Module      string
	Name        string
	Options     map[string]string // label, invalidates
	Fields      []Field
	Constraints Constraints
}

// Constraints — блок constraints: внутри сущности
type Constraints struct {
	Unique [][]string
}

// Field описывает поле сущности
type Field struct {
	Name      string
	Type      string            // pk, ref, text, int, number, date, datetime, bool
	RefTarget string            // для ref: "<entity>.<label_field>"
	Options   map[string]string // required, readonly, generated, default, label, on_delete
}

// Option возвращает значение опции или "".
func (f Field) Option(k string) string {
	if f.Options == nil {
		return ""
	}
	return f.Options[k]
}

// Flag — опция-флаг без значения (required, readonly, generated).
func (f Field) Flag(k string) bool {
	v := f.Option(k)
	return v == "true" || v == "1" || v == "yes"
}

func (e Entity) Option(k string) string {
	if e.Options == nil {
		return ""
	}
	return e.Options[k]
}
