package catalog

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func numericFloat(t *testing.T, v any) float64 {
	t.Helper()
	n, ok := v.(pgtype.Numeric)
	require.True(t, ok, "want pgtype.Numeric, got %T", v)
	f, err := n.Float64Value()
	require.NoError(t, err)
	return f.Float64
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	d, err := ParseDate("15.03.2024")
	require.NoError(t, err)
	assert.True(t, want.Equal(d))

	d, err = ParseDate(" 2024-03-15 ")
	require.NoError(t, err)
	assert.True(t, want.Equal(d))

	for _, bad := range []string{"2024/03/15", "15-03-2024", "32.01.2024", "2024-13-01", "yesterday"} {
		_, err := ParseDate(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseDecimal(t *testing.T) {
	n, err := ParseDecimal("1234,50")
	require.NoError(t, err)
	assert.InDelta(t, 1234.5, numericFloat(t, n), 1e-9)

	n, err = ParseDecimal("-0.01")
	require.NoError(t, err)
	assert.InDelta(t, -0.01, numericFloat(t, n), 1e-9)

	for _, bad := range []string{"", "abc", "NaN", "Infinity", "-Infinity"} {
		_, err := ParseDecimal(bad)
		assert.Error(t, err, bad)
	}
}

func TestCoerce(t *testing.T) {
	text := Field{Name: "topic", Kind: KindText}
	integer := Field{Name: "stage_number", Kind: KindNumber, Integer: true}
	money := Field{Name: "total_amount", Kind: KindNumber}
	date := Field{Name: "conclusion_date", Kind: KindDate}
	stamp := Field{Name: "created_at", Kind: KindDate, DateTime: true}
	flag := Field{Name: "is_active", Kind: KindBoolean}
	ref := Field{Name: "customer_code", Kind: KindForeignKey, Integer: true}

	t.Run("empty is absent", func(t *testing.T) {
		for _, f := range []Field{text, integer, money, date, flag, ref} {
			v, err := f.Coerce(nil)
			require.NoError(t, err)
			assert.Nil(t, v)
			v, err = f.Coerce("  ")
			require.NoError(t, err)
			assert.Nil(t, v)
		}
	})

	t.Run("text", func(t *testing.T) {
		v, err := text.Coerce("Поставка")
		require.NoError(t, err)
		assert.Equal(t, "Поставка", v)
		_, err = text.Coerce(42.0)
		assert.Error(t, err)
	})

	t.Run("integer", func(t *testing.T) {
		for _, in := range []any{3, int64(3), 3.0, "3", json.Number("3")} {
			v, err := integer.Coerce(in)
			require.NoError(t, err, "%v", in)
			assert.Equal(t, int64(3), v)
		}
		for _, in := range []any{3.5, "3.5", "три", true} {
			_, err := integer.Coerce(in)
			assert.Error(t, err, "%v", in)
		}
		v, err := ref.Coerce(7.0)
		require.NoError(t, err)
		assert.Equal(t, int64(7), v)
	})

	t.Run("decimal", func(t *testing.T) {
		for _, in := range []any{"100,25", 100.25, json.Number("100.25")} {
			v, err := money.Coerce(in)
			require.NoError(t, err, "%v", in)
			assert.InDelta(t, 100.25, numericFloat(t, v), 1e-9)
		}
		v, err := money.Coerce(int64(10))
		require.NoError(t, err)
		assert.InDelta(t, 10.0, numericFloat(t, v), 1e-9)

		_, err = money.Coerce("NaN")
		assert.Error(t, err)
		_, err = money.Coerce(false)
		assert.Error(t, err)
	})

	t.Run("date", func(t *testing.T) {
		v, err := date.Coerce("01.02.2024")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), v)

		_, err = date.Coerce(20240201)
		assert.Error(t, err)

		v, err = stamp.Coerce("2024-02-01T10:30:00Z")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 2, 1, 10, 30, 0, 0, time.UTC), v)
	})

	t.Run("bool", func(t *testing.T) {
		for in, want := range map[any]bool{true: true, "да": true, "нет": false, "0": false, int64(1): true} {
			v, err := flag.Coerce(in)
			require.NoError(t, err, "%v", in)
			assert.Equal(t, want, v)
		}
		_, err := flag.Coerce("может быть")
		assert.Error(t, err)
	})
}

func TestParseOperator(t *testing.T) {
	assert.Equal(t, OpStarts, ParseOperator("startsWith"))
	assert.Equal(t, OpStarts, ParseOperator("starts_with"))
	assert.Equal(t, OpContains, ParseOperator(" Contains "))
	assert.Equal(t, OpGte, ParseOperator(">="))
	assert.Equal(t, Operator("like"), ParseOperator("like"))
}

func TestFilterSpecActive(t *testing.T) {
	assert.True(t, FilterSpec{Enabled: true, Field: "Тема", Op: OpEq, Value: "x"}.Active())
	assert.False(t, FilterSpec{Enabled: false, Field: "Тема", Value: "x"}.Active())
	assert.False(t, FilterSpec{Enabled: true, Field: "Тема", Value: "  "}.Active())
	assert.False(t, FilterSpec{Enabled: true, Field: "", Value: "x"}.Active())
}
