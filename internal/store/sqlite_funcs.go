package store

import (
	"database/sql/driver"
	"strings"

	"modernc.org/sqlite"
)

// FoldFunc — регистронезависимое приведение текста в sqlite.
// Встроенный LOWER складывает только ASCII, кириллица остаётся как есть.
const FoldFunc = "ulower"

func init() {
	sqlite.MustRegisterDeterministicScalarFunction(FoldFunc, 1, foldCase)
}

func foldCase(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		// NULL и числа отдаём без изменений
		return v, nil
	}
}
