package rowset

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Render — строковое представление значения для поиска и сравнения
func Render(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
			return t.Format("2006-01-02")
		}
		return t.Format(time.RFC3339)
	case driver.Valuer:
		dv, err := t.Value()
		if err != nil || dv == nil {
			return ""
		}
		return Render(dv)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// FormatDate — ДД.ММ.ГГГГ; строки в ISO тоже переводим
func FormatDate(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case time.Time:
		return t.Format("02.01.2006")
	case string:
		if len(t) >= 10 {
			if d, err := time.Parse("2006-01-02", t[:10]); err == nil {
				return d.Format("02.01.2006")
			}
		}
		return t
	}
	return Render(v)
}

// FormatDateTime — ДД.ММ.ГГГГ ЧЧ:ММ
func FormatDateTime(v any) string {
	if t, ok := v.(time.Time); ok {
		return t.Format("02.01.2006 15:04")
	}
	return FormatDate(v)
}

// FormatMoney — два знака после запятой; нечисловое значение отдаётся как есть
func FormatMoney(v any) string {
	if v == nil {
		return ""
	}
	d, ok := numeric(v)
	if !ok {
		if d, ok = parseDecimal(v); !ok {
			return Render(v)
		}
	}
	return d.StringFixed(2)
}

// parseDecimal читает десятичную запись из строки, []byte или Valuer (pgtype.Numeric отдаёт строку)
func parseDecimal(v any) (decimal.Decimal, bool) {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case []byte:
		s = string(t)
	case driver.Valuer:
		dv, err := t.Value()
		if err != nil {
			return decimal.Decimal{}, false
		}
		str, ok := dv.(string)
		if !ok {
			return decimal.Decimal{}, false
		}
		s = str
	default:
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}
