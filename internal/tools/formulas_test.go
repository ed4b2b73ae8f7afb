package tools

import (
	"testing"

	"github.com/shmaxi/excel-mcp-server/internal/cellref"
	"github.com/stretchr/testify/require"
)

func TestApplyFormula(t *testing.T) {
	e := newEnv(t)
	path := e.book("apply.xlsx")
	e.write(path, "Data", "A1", [][]any{{1}, {2}, {3}})

	out := mustOK[ApplyFormulaOutput](t, e.call("apply_formula", map[string]any{
		"file_path": path, "sheet_name": "Data", "cell": "A4", "formula": "=ROUND(SUM(A1:A3)/COUNT(A1:A3),2)",
	}))
	require.True(t, out.Success)
	require.Equal(t, "A4", out.Cell)
	require.Equal(t, []string{"ROUND", "SUM", "COUNT"}, out.Functions)

	formula, err := open(t, path).GetCellFormula("Data", "A4")
	require.NoError(t, err)
	require.Equal(t, "ROUND(SUM(A1:A3)/COUNT(A1:A3),2)", formula)
}

func TestApplyFormula_Rejected(t *testing.T) {
	e := newEnv(t)
	path := e.book("apply-bad.xlsx")

	args := func(sheet, cell, formula string) map[string]any {
		return map[string]any{"file_path": path, "sheet_name": sheet, "cell": cell, "formula": formula}
	}
	require.Contains(t, mustFail(t, e.call("apply_formula", args("Data", "A1", "SUM(A1:A3)")), "VALIDATION"), "must start with =")
	require.Contains(t, mustFail(t, e.call("apply_formula", args("Data", "A1", "=SUM(A1:A3))")), "VALIDATION"), "balanced parentheses")
	require.Contains(t, mustFail(t, e.call("apply_formula", args("Data", "A1", "=")), "VALIDATION"), "no body")
	mustFail(t, e.call("apply_formula", args("Data", "1A", "=1")), "INVALID_REFERENCE")
	mustFail(t, e.call("apply_formula", args("Sheet9", "A1", "=1")), "NOT_FOUND")

	formula, err := open(t, path).GetCellFormula("Data", "A1")
	require.NoError(t, err)
	require.Empty(t, formula)
}

func TestValidateFormulaSyntax(t *testing.T) {
	e := newEnv(t)

	chk := mustOK[cellref.FormulaCheck](t, e.call("validate_formula_syntax", map[string]any{"formula": "=IF(A1>0,SUM(B1:B9),0)"}))
	require.True(t, chk.Valid)
	require.Equal(t, []string{"IF", "SUM"}, chk.Functions)
	require.Equal(t, cellref.FormulaNote, chk.Note)

	// invalid input is a successful check
	chk = mustOK[cellref.FormulaCheck](t, e.call("validate_formula_syntax", map[string]any{"formula": "=SUM((A1)"}))
	require.False(t, chk.Valid)
	require.Equal(t, "unbalanced parentheses", chk.Error)

	chk = mustOK[cellref.FormulaCheck](t, e.call("validate_formula_syntax", map[string]any{"formula": ""}))
	require.False(t, chk.Valid)
	require.NotNil(t, chk.Functions)
}
