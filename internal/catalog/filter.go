package catalog

import "strings"

// Operator — оператор фильтра
type Operator string

const (
	OpEq       Operator = "="
	OpGte      Operator = ">="
	OpLte      Operator = "<="
	OpContains Operator = "contains"
	OpStarts   Operator = "starts"
)

// ParseOperator нормализует запись оператора; startsWith — синоним starts
func ParseOperator(s string) Operator {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "startswith", "starts_with", "starts":
		return OpStarts
	case "contains":
		return OpContains
	}
	return Operator(s)
}

// FilterSpec — одно условие фильтра по подписи поля
type FilterSpec struct {
	Enabled bool     `json:"enabled"`
	Field   string   `json:"field"`
	Op      Operator `json:"op"`
	Value   string   `json:"value"`
}

// Active — включён и имеет непустое значение
func (s FilterSpec) Active() bool {
	return s.Enabled && strings.TrimSpace(s.Field) != "" && strings.TrimSpace(s.Value) != ""
}
