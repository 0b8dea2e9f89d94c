package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

const (
	DateLayout    = "2006-01-02"
	RuDateLayout  = "02.01.2006"
	DateTimeRFC   = time.RFC3339
	numericNaNErr = "must be a finite decimal"
)

// ParseDate принимает ДД.ММ.ГГГГ (если есть точка) или ГГГГ-ММ-ДД
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	layout := DateLayout
	if strings.Contains(s, ".") {
		layout = RuDateLayout
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, errors.New("must be a date DD.MM.YYYY or YYYY-MM-DD")
	}
	return t, nil
}

// ParseDecimal — точное десятичное число; NaN и бесконечности не принимаем
func ParseDecimal(s string) (pgtype.Numeric, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	var n pgtype.Numeric
	if s == "" {
		return n, errors.New("must be a decimal number")
	}
	if err := n.Scan(s); err != nil {
		return pgtype.Numeric{}, errors.New("must be a decimal number")
	}
	if n.NaN || n.InfinityModifier != pgtype.Finite {
		return pgtype.Numeric{}, errors.New(numericNaNErr)
	}
	return n, nil
}

// ParseInteger — целое со знаком
func ParseInteger(s string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, errors.New("must be integer")
	}
	return n, nil
}

// Coerce приводит входное значение к типу поля. nil и "" — отсутствие значения.
func (f Field) Coerce(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return nil, nil
	}
	switch f.Kind {
	case KindText:
		return toStringStrict(v)
	case KindBoolean:
		return toBoolStrict(v)
	case KindDate:
		switch t := v.(type) {
		case time.Time:
			return t, nil
		case string:
			if f.DateTime {
				if ts, err := time.Parse(DateTimeRFC, strings.TrimSpace(t)); err == nil {
					return ts, nil
				}
			}
			return ParseDate(t)
		}
		return nil, errors.New("must be a date string")
	case KindPrimaryKey, KindForeignKey, KindNumber:
		if f.Integer {
			return toIntStrict(v)
		}
		return toDecimal(v)
	}
	return v, nil
}

func toStringStrict(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case []byte:
		return string(t), nil
	default:
		// числа как строки автоматически не форматируем
		return "", errors.New("must be string")
	}
}

func toIntStrict(v any) (int64, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case float64:
		// JSON числа приходят как float64 — проверяем целостность
		if t != math.Trunc(t) || math.IsInf(t, 0) {
			return 0, errors.New("must be integer")
		}
		return int64(t), nil
	case json.Number:
		return ParseInteger(t.String())
	case string:
		return ParseInteger(t)
	default:
		return 0, errors.New("must be integer")
	}
}

func toDecimal(v any) (pgtype.Numeric, error) {
	switch t := v.(type) {
	case pgtype.Numeric:
		return t, nil
	case string:
		return ParseDecimal(t)
	case json.Number:
		return ParseDecimal(t.String())
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return pgtype.Numeric{}, errors.New(numericNaNErr)
		}
		return ParseDecimal(strconv.FormatFloat(t, 'f', -1, 64))
	case int64, int:
		return ParseDecimal(fmt.Sprint(t))
	default:
		return pgtype.Numeric{}, errors.New("must be a decimal number")
	}
}

func toBoolStrict(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case int64:
		return t != 0, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes", "y", "on", "да":
			return true, nil
		case "false", "0", "no", "n", "off", "нет":
			return false, nil
		default:
			return false, errors.New("must be boolean")
		}
	default:
		return false, errors.New("must be boolean")
	}
}
