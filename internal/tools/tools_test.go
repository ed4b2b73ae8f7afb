package tools

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/shmaxi/excel-mcp-server/internal/registry"
	"github.com/shmaxi/excel-mcp-server/internal/runtime"
	"github.com/shmaxi/excel-mcp-server/internal/security"
	"github.com/shmaxi/excel-mcp-server/internal/workbooks"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type env struct {
	t   *testing.T
	dir string
	reg *registry.Registry
}

func newEnv(t *testing.T, tweak ...func(*runtime.Limits)) *env {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	sec, err := security.NewManager([]string{dir}, nil)
	require.NoError(t, err)

	limits := runtime.NewLimits(4, 4)
	for _, fn := range tweak {
		fn(&limits)
	}
	b := registry.NewBuilder()
	Register(b, Deps{
		Workbooks: workbooks.NewManager(workbooks.Options{Validator: sec}),
		Limits:    limits,
	})
	reg, err := b.Build()
	require.NoError(t, err)
	return &env{t: t, dir: dir, reg: reg}
}

func (e *env) call(name string, args map[string]any) *mcp.CallToolResult {
	e.t.Helper()
	res, err := e.reg.Call(context.Background(), name, args)
	require.NoError(e.t, err)
	require.NotNil(e.t, res)
	return res
}

// book creates a workbook with a single sheet named Data.
func (e *env) book(name string) string {
	e.t.Helper()
	path := filepath.Join(e.dir, name)
	mustOK[CreateWorkbookOutput](e.t, e.call("create_workbook", map[string]any{"file_path": path, "sheet_name": "Data"}))
	return path
}

func (e *env) write(path, sheet, start string, data [][]any) {
	e.t.Helper()
	mustOK[WriteDataOutput](e.t, e.call("write_data_to_excel", map[string]any{
		"file_path": path, "sheet_name": sheet, "start_cell": start, "data": data,
	}))
}

func mustOK[T any](t *testing.T, res *mcp.CallToolResult) T {
	t.Helper()
	if res.IsError {
		t.Fatalf("unexpected error result: %s", text(res))
	}
	out, ok := res.StructuredContent.(T)
	require.True(t, ok, "structured content is %T", res.StructuredContent)
	return out
}

// mustFail asserts an error result carrying code and returns its text.
func mustFail(t *testing.T, res *mcp.CallToolResult, code string) string {
	t.Helper()
	require.True(t, res.IsError, "expected %s, got success: %s", code, text(res))
	msg := text(res)
	require.True(t, strings.HasPrefix(msg, code+":"), "expected %s, got %q", code, msg)
	return msg
}

func text(res *mcp.CallToolResult) string {
	if len(res.Content) == 0 {
		return ""
	}
	if tc, ok := res.Content[0].(mcp.TextContent); ok {
		return tc.Text
	}
	return ""
}

func open(t *testing.T, path string) *excelize.File {
	t.Helper()
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestRegister_Catalog(t *testing.T) {
	e := newEnv(t)
	require.Equal(t, []string{
		"apply_formula",
		"copy_range",
		"copy_worksheet",
		"create_chart",
		"create_pivot_table",
		"create_workbook",
		"create_worksheet",
		"delete_range",
		"delete_worksheet",
		"format_range",
		"get_merged_cells",
		"get_workbook_metadata",
		"merge_cells",
		"read_data_from_excel",
		"rename_worksheet",
		"unmerge_cells",
		"validate_excel_range",
		"validate_formula_syntax",
		"write_data_to_excel",
	}, e.reg.Names())

	readOnly := map[string]bool{
		"get_workbook_metadata":   true,
		"read_data_from_excel":    true,
		"get_merged_cells":        true,
		"validate_formula_syntax": true,
		"validate_excel_range":    true,
		"create_chart":            true,
		"create_pivot_table":      true,
	}
	for _, name := range e.reg.Names() {
		entry, ok := e.reg.Get(name)
		require.True(t, ok)
		require.Equal(t, !readOnly[name], entry.Mutates, name)
		require.NotEmpty(t, entry.Tool.Description, name)
	}

	// read-only mode keeps the unsupported tools listed
	all, err := e.reg.Tools(context.Background())
	require.NoError(t, err)
	var listed []string
	for _, tool := range registry.NewReadOnlyFilter(e.reg, true).FilterTools(context.Background(), all) {
		listed = append(listed, tool.Name)
	}
	require.Len(t, listed, len(readOnly))
	require.Contains(t, listed, "create_chart")
	require.Contains(t, listed, "create_pivot_table")
}

func TestSuggestSheets(t *testing.T) {
	sheets := []string{"Data", "Summary", "Data 2024"}
	require.Contains(t, suggestSheets(sheets, "Dta"), "Data")
	require.Contains(t, suggestSheets(sheets, "summary"), "Summary")
	require.Empty(t, suggestSheets(sheets, "Zzz"))
	require.LessOrEqual(t, len(suggestSheets([]string{"a1", "a2", "a3", "a4"}, "a")), 3)
}

func TestNotFoundError_Message(t *testing.T) {
	err := &NotFoundError{Kind: "worksheet", Name: "Dta", Suggestions: []string{"Data", "Data 2"}}
	require.Equal(t, `worksheet "Dta" not found; did you mean "Data", "Data 2"?`, err.Error())
	require.Equal(t, `worksheet "X" not found`, (&NotFoundError{Kind: "worksheet", Name: "X"}).Error())
}

func TestBindFailure(t *testing.T) {
	e := newEnv(t)
	res := e.call("write_data_to_excel", map[string]any{"file_path": "x.xlsx", "sheet_name": "S", "data": "not rows"})
	require.True(t, res.IsError)
}
