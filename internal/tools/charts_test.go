package tools

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateChart_Unsupported(t *testing.T) {
	e := newEnv(t)
	path := e.book("chart.xlsx")
	e.write(path, "Data", "A1", [][]any{{"month", "sales"}, {"jan", 10}})
	before, err := os.Stat(path)
	require.NoError(t, err)

	args := func(sheet, kind, rng, cell string) map[string]any {
		return map[string]any{
			"file_path": path, "sheet_name": sheet, "chart_type": kind, "data_range": rng,
			"position": map[string]any{"cell": cell},
		}
	}
	msg := mustFail(t, e.call("create_chart", args("Data", "line", "A1:B2", "D2")), "UNSUPPORTED_OPERATION")
	require.Contains(t, msg, "line chart of A1:B2")

	mustFail(t, e.call("create_chart", args("Data", "radar", "A1:B2", "D2")), "VALIDATION")
	mustFail(t, e.call("create_chart", args("Data", "bar", "A1:", "D2")), "INVALID_REFERENCE")
	mustFail(t, e.call("create_chart", args("Data", "bar", "A1:B2", "d2")), "INVALID_REFERENCE")
	mustFail(t, e.call("create_chart", args("Charts", "bar", "A1:B2", "D2")), "NOT_FOUND")

	after, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, before.ModTime(), after.ModTime())
}

func TestCreatePivotTable_Unsupported(t *testing.T) {
	e := newEnv(t)
	path := e.book("pivot.xlsx")
	sheetCall(e, "create_worksheet", map[string]any{"file_path": path, "sheet_name": "Pivot"})

	args := map[string]any{
		"file_path":    path,
		"source_sheet": "Data",
		"source_range": "A1:C20",
		"target_sheet": "Pivot",
		"rows":         []string{"region"},
		"values":       []map[string]any{{"field": "sales", "function": "sum"}},
	}
	mustFail(t, e.call("create_pivot_table", args), "UNSUPPORTED_OPERATION")

	args["target_sheet"] = "Missing"
	mustFail(t, e.call("create_pivot_table", args), "NOT_FOUND")

	args["target_sheet"] = "Pivot"
	args["values"] = []map[string]any{{"field": "sales", "function": "median"}}
	mustFail(t, e.call("create_pivot_table", args), "VALIDATION")
}
