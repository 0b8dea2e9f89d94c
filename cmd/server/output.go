package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"dogovor/internal/catalog"
	"dogovor/internal/rowset"
)

var bold = lipgloss.NewStyle().Bold(true)

// printTable выводит строки с заголовками headers; cols — ключи в строке
func printTable(w io.Writer, title string, headers, cols []string, rows []map[string]string) {
	data := make([][]string, 0, len(rows))
	for _, r := range rows {
		line := make([]string, len(cols))
		for i, c := range cols {
			line[i] = r[c]
		}
		data = append(data, line)
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(data...)

	if title != "" {
		fmt.Fprintln(w, bold.Render(title))
	}
	fmt.Fprintln(w, t.String())
	fmt.Fprintf(w, "%d row(s)\n", len(rows))
}

func renderRows(cols []string, rows []rowset.Row) []map[string]string {
	out := make([]map[string]string, 0, len(rows))
	for _, r := range rows {
		m := make(map[string]string, len(cols))
		for _, c := range cols {
			m[c] = rowset.Render(r[c])
		}
		out = append(out, m)
	}
	return out
}

// parseFilter разбирает "Подпись|оператор|значение"
func parseFilter(s string) (catalog.FilterSpec, error) {
	parts := strings.SplitN(s, "|", 3)
	if len(parts) != 3 {
		return catalog.FilterSpec{}, fmt.Errorf("filter %q: expected label|op|value", s)
	}
	return catalog.FilterSpec{
		Enabled: true,
		Field:   strings.TrimSpace(parts[0]),
		Op:      catalog.ParseOperator(parts[1]),
		Value:   parts[2],
	}, nil
}
