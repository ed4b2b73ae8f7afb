package tools

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sheetCall(e *env, tool string, args map[string]any) WorksheetOutput {
	e.t.Helper()
	return mustOK[WorksheetOutput](e.t, e.call(tool, args))
}

func TestWorksheetLifecycle(t *testing.T) {
	e := newEnv(t)
	path := e.book("sheets.xlsx")

	out := sheetCall(e, "create_worksheet", map[string]any{"file_path": path, "sheet_name": "Summary"})
	require.True(t, out.Success)
	require.Equal(t, []string{"Data", "Summary"}, out.Sheets)

	out = sheetCall(e, "rename_worksheet", map[string]any{"file_path": path, "old_name": "Summary", "new_name": "Totals"})
	require.Equal(t, []string{"Data", "Totals"}, out.Sheets)

	out = sheetCall(e, "delete_worksheet", map[string]any{"file_path": path, "sheet_name": "Totals"})
	require.Equal(t, []string{"Data"}, out.Sheets)
	require.Equal(t, []string{"Data"}, open(t, path).GetSheetList())
}

func TestCreateWorksheet_Conflicts(t *testing.T) {
	e := newEnv(t)
	path := e.book("dup.xlsx")

	mustFail(t, e.call("create_worksheet", map[string]any{"file_path": path, "sheet_name": "data"}), "ALREADY_EXISTS")
	mustFail(t, e.call("create_worksheet", map[string]any{"file_path": path, "sheet_name": "bad/name"}), "VALIDATION")
	mustFail(t, e.call("create_worksheet", map[string]any{"file_path": path, "sheet_name": "this name is far longer than allowed"}), "VALIDATION")
	require.Equal(t, []string{"Data"}, open(t, path).GetSheetList())
}

func TestCopyWorksheet(t *testing.T) {
	e := newEnv(t)
	path := e.book("copy.xlsx")
	e.write(path, "Data", "A1", [][]any{{"name", "qty"}, {"bolt", 12}, {"total", "=SUM(B2:B2)"}})

	out := sheetCall(e, "copy_worksheet", map[string]any{"file_path": path, "source_sheet": "Data", "target_sheet": "Backup"})
	require.Equal(t, []string{"Data", "Backup"}, out.Sheets)

	got := read(e, map[string]any{"file_path": path, "sheet_name": "Backup", "range": "A1:B3", "include_formulas": true})
	require.Equal(t, [][]any{{"name", "qty"}, {"bolt", float64(12)}, {"total", "=SUM(B2:B2)"}}, got.Data)

	mustFail(t, e.call("copy_worksheet", map[string]any{"file_path": path, "source_sheet": "Data", "target_sheet": "BACKUP"}), "ALREADY_EXISTS")
	msg := mustFail(t, e.call("copy_worksheet", map[string]any{"file_path": path, "source_sheet": "Dat", "target_sheet": "Other"}), "NOT_FOUND")
	require.Contains(t, msg, `"Data"`)
}

func TestDeleteWorksheet_LastSheet(t *testing.T) {
	e := newEnv(t)
	path := e.book("last.xlsx")

	msg := mustFail(t, e.call("delete_worksheet", map[string]any{"file_path": path, "sheet_name": "Data"}), "VALIDATION")
	require.Contains(t, msg, "at least one worksheet")
	mustFail(t, e.call("delete_worksheet", map[string]any{"file_path": path, "sheet_name": "Ghost"}), "NOT_FOUND")
}

func TestRenameWorksheet(t *testing.T) {
	e := newEnv(t)
	path := e.book("rename.xlsx")
	sheetCall(e, "create_worksheet", map[string]any{"file_path": path, "sheet_name": "Other"})

	// case-only rename of the same sheet, addressed with a different case
	out := sheetCall(e, "rename_worksheet", map[string]any{"file_path": path, "old_name": "data", "new_name": "DATA"})
	require.Equal(t, []string{"DATA", "Other"}, out.Sheets)

	mustFail(t, e.call("rename_worksheet", map[string]any{"file_path": path, "old_name": "DATA", "new_name": "other"}), "ALREADY_EXISTS")
	mustFail(t, e.call("rename_worksheet", map[string]any{"file_path": path, "old_name": "Missing", "new_name": "X"}), "NOT_FOUND")
	mustFail(t, e.call("rename_worksheet", map[string]any{"file_path": path, "old_name": "Other", "new_name": "a:b"}), "VALIDATION")
}
