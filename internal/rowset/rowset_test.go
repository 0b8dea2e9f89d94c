package rowset

import (
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dogovor/internal/catalog"
	"dogovor/internal/dsl"
)

func orgEntity(t *testing.T) *catalog.Entity {
	t.Helper()
	defs, err := dsl.Parse(strings.NewReader(`
entity organizations:
  organization_code: pk label="Код"
  name: text label="Наименование"
  inn: text label="ИНН"
  total: number label="Оборот"
`))
	require.NoError(t, err)
	cat, err := catalog.Build(defs)
	require.NoError(t, err)
	e, err := cat.Entity("organizations")
	require.NoError(t, err)
	return e
}

func sampleRows() []Row {
	return []Row{
		{"organization_code": int64(1), "name": "Acme Corp", "inn": "7701", "total": 10.5},
		{"organization_code": int64(2), "name": "Globex", "inn": nil, "total": int64(3)},
		{"organization_code": int64(3), "name": "ACME Trading", "inn": "7702", "total": nil},
		{"organization_code": int64(4), "name": "Initech", "inn": "5001", "total": 100.0},
	}
}

func codes(rows []Row) []int64 {
	out := make([]int64, 0, len(rows))
	for _, r := range rows {
		out = append(out, r["organization_code"].(int64))
	}
	return out
}

func TestFreeText(t *testing.T) {
	rows := sampleRows()

	assert.Equal(t, []int64{1, 3}, codes(FreeText(rows, "acme")))
	assert.Equal(t, []int64{3}, codes(FreeText(rows, "  TRADING ")))
	// числа ищутся по тексту
	assert.Equal(t, []int64{4}, codes(FreeText(rows, "5001")))
	assert.Empty(t, FreeText(rows, "umbrella"))

	same := FreeText(rows, "")
	assert.Equal(t, rows, same)
}

func TestFreeTextIdempotent(t *testing.T) {
	once := FreeText(sampleRows(), "77")
	twice := FreeText(once, "77")
	assert.Equal(t, once, twice)
}

func TestFieldFilter(t *testing.T) {
	e := orgEntity(t)
	rows := sampleRows()

	got := FieldFilter(rows, e, catalog.FilterSpec{Enabled: true, Field: "ИНН", Op: catalog.OpEq, Value: "770"})
	// оператор не влияет: всегда подстрока
	assert.Equal(t, []int64{1, 3}, codes(got))

	got = FieldFilter(rows, e, catalog.FilterSpec{Enabled: true, Field: "Наименование", Value: "acme"})
	assert.Equal(t, []int64{1, 3}, codes(got))

	// выключен, пустое значение или неизвестная подпись — без изменений
	assert.Len(t, FieldFilter(rows, e, catalog.FilterSpec{Enabled: false, Field: "ИНН", Value: "770"}), 4)
	assert.Len(t, FieldFilter(rows, e, catalog.FilterSpec{Enabled: true, Field: "ИНН", Value: " "}), 4)
	assert.Len(t, FieldFilter(rows, e, catalog.FilterSpec{Enabled: true, Field: "Телефон", Value: "1"}), 4)
}

func TestFilterAndSortComposes(t *testing.T) {
	e := orgEntity(t)
	rs := New(e.Name, sampleRows())

	view := rs.FilterAndSort(e, Query{
		FreeText:  "acme",
		Filter:    catalog.FilterSpec{Enabled: true, Field: "ИНН", Value: "7702"},
		SortField: "name",
		Ascending: true,
	})
	assert.Equal(t, []int64{3}, codes(view))
	assert.Equal(t, view, rs.View)
	assert.Len(t, rs.All, 4, "All is never touched")

	view = rs.FilterAndSort(e, Query{SortField: "organization_code", Ascending: false})
	assert.Equal(t, []int64{4, 3, 2, 1}, codes(view))

	view = rs.FilterAndSort(e, Query{})
	assert.Equal(t, []int64{1, 2, 3, 4}, codes(view))
}

func TestSortByNullsAndTypes(t *testing.T) {
	rows := sampleRows()

	asc := SortBy(rows, "total", true)
	assert.Equal(t, []int64{3, 2, 1, 4}, codes(asc), "nil first, then 3 < 10.5 < 100")

	desc := SortBy(rows, "total", false)
	assert.Equal(t, []int64{4, 1, 2, 3}, codes(desc), "nil last when descending")

	// входной срез не меняется
	assert.Equal(t, []int64{1, 2, 3, 4}, codes(rows))

	// отсутствующее поле равно nil
	missing := SortBy(rows, "phone", true)
	assert.Equal(t, []int64{1, 2, 3, 4}, codes(missing))
}

func TestSortByStable(t *testing.T) {
	rows := []Row{
		{"organization_code": int64(1), "city": "Тверь"},
		{"organization_code": int64(2), "city": "Москва"},
		{"organization_code": int64(3), "city": "Тверь"},
		{"organization_code": int64(4), "city": "Москва"},
	}
	assert.Equal(t, []int64{2, 4, 1, 3}, codes(SortBy(rows, "city", true)))
	assert.Equal(t, []int64{1, 3, 2, 4}, codes(SortBy(rows, "city", false)))
}

func TestCompare(t *testing.T) {
	d1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	var big, small pgtype.Numeric
	require.NoError(t, big.Scan("1000.01"))
	require.NoError(t, small.Scan("999.99"))

	assert.Equal(t, -1, compare(d1, d2))
	assert.Equal(t, +1, compare(big, small))
	assert.Equal(t, -1, compare(int64(9), 10.0))
	assert.Equal(t, -1, compare(false, true))
	assert.Equal(t, 0, compare(nil, nil))
	assert.Equal(t, -1, compare(nil, ""))
	// строки сравниваются как строки, даже если похожи на числа
	assert.Equal(t, -1, compare("10", "9"))
}

func TestCompareDecimalExact(t *testing.T) {
	var a, b pgtype.Numeric
	require.NoError(t, a.Scan("12345678901234567890.01"))
	require.NoError(t, b.Scan("12345678901234567890.02"))

	assert.Equal(t, -1, compare(a, b))
	assert.Equal(t, 0, compare(a, a))
	assert.Equal(t, -1, compare(int64(1000), b))
	assert.Equal(t, +1, compare(a, 0.5))
	assert.Equal(t, "12345678901234567890.02", FormatMoney(b))
	assert.Equal(t, "0.13", FormatMoney("0.125"))
	assert.Equal(t, "-5.00", FormatMoney(" -5 "))
}

func TestSorterToggle(t *testing.T) {
	rows := sampleRows()
	s := NewSorter()

	_, ok := s.Direction("name")
	assert.False(t, ok)

	sorted, asc := s.Toggle(rows, "name")
	assert.False(t, asc)
	assert.Equal(t, []int64{4, 2, 1, 3}, codes(sorted))

	sorted, asc = s.Toggle(rows, "name")
	assert.True(t, asc)
	assert.Equal(t, []int64{3, 1, 2, 4}, codes(sorted))

	// у другого поля своё состояние
	_, asc = s.Toggle(rows, "inn")
	assert.False(t, asc)
	dir, ok := s.Direction("name")
	require.True(t, ok)
	assert.True(t, dir)

	_, asc = s.Toggle(rows, "name")
	assert.False(t, asc)
}

func TestRenderAndFormat(t *testing.T) {
	day := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	stamp := time.Date(2024, 3, 5, 14, 7, 0, 0, time.UTC)
	var n pgtype.Numeric
	require.NoError(t, n.Scan("1234.5"))

	assert.Equal(t, "", Render(nil))
	assert.Equal(t, "2024-03-05", Render(day))
	assert.Equal(t, "2024-03-05T14:07:00Z", Render(stamp))
	assert.Equal(t, "abc", Render([]byte("abc")))
	assert.Equal(t, "true", Render(true))
	assert.Equal(t, "1234.5", Render(n))

	assert.Equal(t, "05.03.2024", FormatDate(day))
	assert.Equal(t, "05.03.2024", FormatDate("2024-03-05"))
	assert.Equal(t, "not a date", FormatDate("not a date"))
	assert.Equal(t, "05.03.2024 14:07", FormatDateTime(stamp))

	assert.Equal(t, "1234.50", FormatMoney(n))
	assert.Equal(t, "10.00", FormatMoney(int64(10)))
	assert.Equal(t, "0.10", FormatMoney(0.1))
	assert.Equal(t, "99.99", FormatMoney("99.99"))
	assert.Equal(t, "n/a", FormatMoney("n/a"))
	assert.Equal(t, "", FormatMoney(nil))
}
