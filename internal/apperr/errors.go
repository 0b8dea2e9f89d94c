package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// FieldError — ошибка по конкретному полю, в том же виде уходит клиенту.
type FieldError struct {
	Code    string `json:"code"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Коды ошибок
const (
	ErrRequired        = "required"
	ErrTypeMismatch    = "type_mismatch"
	ErrUnknownField    = "unknown_field"
	ErrReadOnly        = "readonly_field"
	ErrInvalidOperator = "invalid_operator"
	ErrTooManyFilters  = "too_many_filters"
	ErrDuplicateKey    = "duplicate_key"
	ErrUniqueViolation = "unique_violation"
	ErrRefViolation    = "ref_violation"
)

func Field(code, field, msg string) FieldError {
	return FieldError{Code: code, Field: field, Message: msg}
}

// ErrNotFound — запись или метка не найдены.
var ErrNotFound = errors.New("not found")

// ValidationError собирает все ошибки входных данных разом.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Validation возвращает nil, если ошибок нет.
func Validation(errs ...FieldError) error {
	if len(errs) == 0 {
		return nil
	}
	return &ValidationError{Errors: errs}
}

// ConfigError — неизвестная сущность, отчёт, поле или битое описание каталога.
type ConfigError struct {
	Kind string
	Name string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %q: %v", e.Kind, e.Name, e.Err)
	}
	return fmt.Sprintf("unknown %s %q", e.Kind, e.Name)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func Unknown(kind, name string) error { return &ConfigError{Kind: kind, Name: name} }

// Коды StoreError
const (
	StoreFailure   = "store_failure"
	StoreUnique    = "unique_violation"
	StoreReference = "ref_violation"
)

// StoreError — отказ хранилища (связь, ограничение, синтаксис).
type StoreError struct {
	Op   string
	Code string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Conflict — нарушение уникальности или ссылочной целостности.
func (e *StoreError) Conflict() bool {
	return e.Code == StoreUnique || e.Code == StoreReference
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
