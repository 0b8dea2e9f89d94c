package browse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dogovor/internal/apperr"
	"dogovor/internal/catalog"
	"dogovor/internal/reference"
	"dogovor/internal/report"
	"dogovor/internal/rowset"
	"dogovor/internal/store"
)

func newService(t *testing.T) *Service {
	t.Helper()
	ctx := context.Background()
	db, err := store.Open(ctx, store.DriverSQLite, "file::memory:?_pragma=foreign_keys(1)", store.Options{}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cat, err := catalog.Default()
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx, cat))
	reg, err := report.Default()
	require.NoError(t, err)

	cache := reference.NewCache(cat.DependencyMap(), nil)
	res := reference.NewResolver(db, db.Flavor(), cache, nil)
	return New(cat, db, reg, res, nil)
}

func add(t *testing.T, s *Service, entity string, values map[string]any) any {
	t.Helper()
	id, err := s.Save(context.Background(), entity, ModeAdd, Input{Values: values}, nil)
	require.NoError(t, err)
	return id
}

var orgName = catalog.CacheKey{Entity: "organizations", LabelField: "name"}

func TestResolveAfterDelete(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	add(t, s, "organizations", map[string]any{"name": "Альфа"})
	add(t, s, "organizations", map[string]any{"name": "Бета"})

	label, err := s.ResolveForDisplay(ctx, "contracts", "customer_code", int64(1))
	require.NoError(t, err)
	assert.Equal(t, "Альфа", label)
	_, cached := s.Resolver().Cache().Get(orgName)
	require.True(t, cached)

	require.NoError(t, s.Delete(ctx, "organizations", 1))
	_, cached = s.Resolver().Cache().Get(orgName)
	assert.False(t, cached)

	label, err = s.ResolveForDisplay(ctx, "contracts", "customer_code", "2")
	require.NoError(t, err)
	assert.Equal(t, "Бета", label)
	label, err = s.ResolveForDisplay(ctx, "contracts", "customer_code", 1)
	require.NoError(t, err)
	assert.Equal(t, "1", label)
	_, cached = s.Resolver().Cache().Get(orgName)
	assert.True(t, cached)
}

func TestResolveForDisplayEdges(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	label, err := s.ResolveForDisplay(ctx, "contracts", "customer_code", nil)
	require.NoError(t, err)
	assert.Empty(t, label)

	label, err = s.ResolveForDisplay(ctx, "contracts", "topic", "Поставка")
	require.NoError(t, err)
	assert.Equal(t, "Поставка", label)

	_, err = s.ResolveForDisplay(ctx, "contracts", "nope", 1)
	assert.True(t, apperr.IsConfig(err))
	_, err = s.ResolveForDisplay(ctx, "nope", "x", 1)
	assert.True(t, apperr.IsConfig(err))
}

func TestSaveWithReferenceLabels(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	add(t, s, "organizations", map[string]any{"name": "Альфа"})
	add(t, s, "organizations", map[string]any{"name": "Бета"})

	id, err := s.Save(ctx, "contracts", ModeAdd, Input{
		Values:    map[string]any{"topic": "Поставка"},
		RefLabels: map[string]string{"customer_code": "Бета", "executor_code": "Гамма"},
	}, nil)
	require.NoError(t, err)

	rs, err := s.LoadRows(ctx, "contracts")
	require.NoError(t, err)
	require.Len(t, rs.All, 1)
	assert.Equal(t, int64(2), rs.All[0]["customer_code"])
	assert.Nil(t, rs.All[0]["executor_code"])

	_, err = s.Save(ctx, "contracts", ModeEdit, Input{RefLabels: map[string]string{"executor_code": "Альфа"}}, id)
	require.NoError(t, err)
	rs, err = s.LoadRows(ctx, "contracts")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rs.All[0]["executor_code"])
	assert.Equal(t, "Поставка", rs.All[0]["topic"])

	_, err = s.Save(ctx, "contracts", ModeEdit, Input{RefLabels: map[string]string{"topic": "x"}}, id)
	require.True(t, apperr.IsValidation(err))

	_, err = s.Save(ctx, "contracts", Mode("upsert"), Input{}, nil)
	require.True(t, apperr.IsValidation(err))
}

func TestSaveContractWithStages(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	add(t, s, "execution_stages", map[string]any{"stage_name": "Исполнение"})

	id, err := s.SaveContractWithStages(ctx,
		Input{Values: map[string]any{"topic": "Поставка", "total_amount": "300"}},
		[]Input{
			{Values: map[string]any{"stage_number": 1, "stage_amount": "100"}, RefLabels: map[string]string{"stage_code": "Исполнение"}},
			{Values: map[string]any{"stage_number": 2, "stage_amount": "200"}},
		})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	rs, err := s.LoadRows(ctx, "contract_stages")
	require.NoError(t, err)
	require.Len(t, rs.All, 2)
	assert.Equal(t, int64(1), rs.All[0]["stage_code"])
	assert.Nil(t, rs.All[1]["stage_code"])

	_, err = s.SaveContractWithStages(ctx,
		Input{Values: map[string]any{"topic": "Повтор"}},
		[]Input{
			{Values: map[string]any{"stage_number": 1}},
			{Values: map[string]any{"stage_number": 1}},
		})
	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, apperr.ErrDuplicateKey, ve.Errors[0].Code)

	rs, err = s.LoadRows(ctx, "contracts")
	require.NoError(t, err)
	assert.Len(t, rs.All, 1)
}

func TestDisplayRows(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	add(t, s, "organizations", map[string]any{"name": "Альфа"})
	add(t, s, "contracts", map[string]any{
		"topic":           "Поставка",
		"customer_code":   1,
		"conclusion_date": "05.03.2024",
		"total_amount":    "1234.5",
	})

	rs, err := s.LoadRows(ctx, "contracts")
	require.NoError(t, err)
	out, err := s.DisplayRows(ctx, "contracts", rs.All)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Альфа", out[0]["customer_code"])
	assert.Equal(t, "", out[0]["executor_code"])
	assert.Equal(t, "05.03.2024", out[0]["conclusion_date"])
	assert.Equal(t, "1234.50", out[0]["total_amount"])
	assert.Equal(t, "", out[0]["notes"])

	orgs, err := s.LoadRows(ctx, "organizations")
	require.NoError(t, err)
	out, err = s.DisplayRows(ctx, "organizations", orgs.All)
	require.NoError(t, err)
	assert.Equal(t, "да", out[0]["is_active"])
}

func TestFilterAndSortAndPickList(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	for _, name := range []string{"Бета", "Альфа", "Гамма"} {
		add(t, s, "organizations", map[string]any{"name": name})
	}

	rs, err := s.LoadRows(ctx, "organizations")
	require.NoError(t, err)
	view, err := s.FilterAndSort(rs, rowset.Query{FreeText: "а", SortField: "name"})
	require.NoError(t, err)
	names := make([]string, 0, len(view))
	for _, r := range view {
		names = append(names, r["name"].(string))
	}
	assert.Equal(t, []string{"Гамма", "Бета", "Альфа"}, names)

	_, err = s.FilterAndSort(rs, rowset.Query{SortField: "salary", Ascending: true})
	assert.True(t, apperr.IsConfig(err))

	labels, err := s.PickList(ctx, "contracts", "customer_code")
	require.NoError(t, err)
	assert.Equal(t, []string{"Альфа", "Бета", "Гамма"}, labels)
	_, err = s.PickList(ctx, "contracts", "topic")
	assert.True(t, apperr.IsConfig(err))

	cols, err := s.Describe(ctx, "organizations")
	require.NoError(t, err)
	assert.Equal(t, "organization_code", cols[0])
}

func TestGetRow(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	add(t, s, "organizations", map[string]any{"name": "Альфа"})
	id := add(t, s, "contracts", map[string]any{"topic": "Поставка", "total_amount": "1234.5"})

	row, err := s.GetRow(ctx, "contracts", id)
	require.NoError(t, err)
	assert.Equal(t, "Поставка", row["topic"])
	assert.Equal(t, "1234.50", rowset.FormatMoney(row["total_amount"]))

	// ключ из URL приходит строкой
	row, err = s.GetRow(ctx, "organizations", "1")
	require.NoError(t, err)
	assert.Equal(t, "Альфа", row["name"])

	_, err = s.GetRow(ctx, "organizations", "9")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = s.GetRow(ctx, "organizations", "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = s.GetRow(ctx, "organizations", "abc")
	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, apperr.ErrTypeMismatch, ve.Errors[0].Code)

	_, err = s.GetRow(ctx, "nope", "1")
	var ce *apperr.ConfigError
	assert.ErrorAs(t, err, &ce)
}

func TestView(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	for _, topic := range []string{"Поставка", "Аренда", "Ремонт"} {
		add(t, s, "contracts", map[string]any{"topic": topic})
	}

	v, err := s.Open(ctx, "contracts")
	require.NoError(t, err)
	assert.Len(t, v.Rows(), 3)

	rows, asc, err := v.ToggleSort("topic")
	require.NoError(t, err)
	assert.False(t, asc)
	assert.Equal(t, "Ремонт", rows[0]["topic"])

	rows, asc, err = v.ToggleSort("topic")
	require.NoError(t, err)
	assert.True(t, asc)
	assert.Equal(t, "Аренда", rows[0]["topic"])

	rows = v.Search("ПОСТ")
	require.Len(t, rows, 1)

	_, _, err = v.ToggleSort("nope")
	assert.Error(t, err)

	add(t, s, "contracts", map[string]any{"topic": "Постройка"})
	rows, err = v.Refresh(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Поставка", rows[0]["topic"])
	assert.Equal(t, "Постройка", rows[1]["topic"])
}

func TestReports(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	_, err := s.SaveContractWithStages(ctx,
		Input{Values: map[string]any{"topic": "Поставка", "total_amount": "300"}},
		[]Input{
			{Values: map[string]any{"stage_number": 1, "stage_amount": "100", "stage_execution_date": "2024-02-01"}},
			{Values: map[string]any{"stage_number": 2, "stage_amount": "200", "stage_execution_date": "2024-01-01"}},
		})
	require.NoError(t, err)

	res, err := s.RunReport(ctx, "planned", []catalog.FilterSpec{
		{Enabled: true, Field: "Сумма этапа", Op: catalog.OpGte, Value: "150"},
	}, "", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Код договора", "Тема", "План. дата", "Сумма этапа"}, res.Columns)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "Поставка", res.Rows[0]["Тема"])

	res, err = s.RunReport(ctx, "planned", nil, "№ этапа", "desc")
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)

	res, err = s.RunReport(ctx, "contract_details", []catalog.FilterSpec{
		{Enabled: true, Field: "Тема", Op: catalog.OpContains, Value: "остав"},
	}, "№ этапа", "DESC")
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, int64(2), res.Rows[0]["№ этапа"])

	// кириллица без учёта регистра
	for _, needle := range []string{"остав", "Пост", "пост", "ПОСТАВКА", "пОсТаВкА"} {
		res, err = s.RunReport(ctx, "planned", []catalog.FilterSpec{
			{Enabled: true, Field: "Тема", Op: catalog.OpContains, Value: needle},
		}, "", "")
		require.NoError(t, err, needle)
		assert.Len(t, res.Rows, 2, needle)
	}
	res, err = s.RunReport(ctx, "planned", []catalog.FilterSpec{
		{Enabled: true, Field: "Тема", Op: "startsWith", Value: "пос"},
	}, "", "")
	require.NoError(t, err)
	assert.Len(t, res.Rows, 2)
	res, err = s.RunReport(ctx, "planned", []catalog.FilterSpec{
		{Enabled: true, Field: "Тема", Op: "startsWith", Value: "ставка"},
	}, "", "")
	require.NoError(t, err)
	assert.Empty(t, res.Rows)

	_, err = s.RunReport(ctx, "planned", []catalog.FilterSpec{
		{Enabled: true, Field: "Сумма этапа", Op: catalog.OpContains, Value: "100"},
	}, "", "")
	require.True(t, apperr.IsValidation(err))

	_, err = s.RunReport(ctx, "salaries", nil, "", "")
	require.True(t, apperr.IsConfig(err))

	fr, err := s.BuildReport("actual",
		catalog.FilterSpec{Enabled: true, Field: "Вид оплаты", Op: "startsWith", Value: "Нал"},
		catalog.FilterSpec{}, "Сумма платежа", "desc")
	require.NoError(t, err)
	assert.Contains(t, fr.Where, "LIKE")
	assert.Equal(t, "ORDER BY p.payment_amount DESC", fr.OrderBy)
}
