package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/shmaxi/excel-mcp-server/internal/cellref"
	"github.com/shmaxi/excel-mcp-server/internal/registry"
	"github.com/shmaxi/excel-mcp-server/internal/workbooks"
	"github.com/shmaxi/excel-mcp-server/pkg/mcperr"
)

// ApplyFormulaInput defines parameters for apply_formula.
type ApplyFormulaInput struct {
	FilePath  string `json:"file_path" validate:"required,xlsx_path" jsonschema_description:"Path of the workbook"`
	SheetName string `json:"sheet_name" validate:"required" jsonschema_description:"Worksheet name"`
	Cell      string `json:"cell" validate:"required,a1cell" jsonschema_description:"Target cell such as C10"`
	Formula   string `json:"formula" validate:"required,formula" jsonschema_description:"Formula text starting with =, e.g. =SUM(A1:A9)"`
}

// ApplyFormulaOutput reports the stored formula.
type ApplyFormulaOutput struct {
	result
	Cell      string   `json:"cell"`
	Formula   string   `json:"formula"`
	Functions []string `json:"functions"`
}

// ValidateFormulaInput defines parameters for validate_formula_syntax.
type ValidateFormulaInput struct {
	Formula string `json:"formula" jsonschema_description:"Formula text to check"`
}

func (h *handlers) registerFormulas(b *registry.Builder) {
	b.Add(mcp.NewTool(
		"apply_formula",
		mcp.WithDescription("Store a formula in a single cell. The formula must start with = and have balanced parentheses; it is checked before the workbook is opened. Values are computed by Excel on next recalculation."),
		mcp.WithInputSchema[ApplyFormulaInput](),
		mcp.WithOutputSchema[ApplyFormulaOutput](),
	), typed(mcperr.WriteFailed, h.applyFormula), true)

	b.Add(mcp.NewTool(
		"validate_formula_syntax",
		mcp.WithDescription("Check formula syntax without touching a workbook: a leading = and balanced parentheses. Reports the function names used in order of appearance. "+cellref.FormulaNote),
		mcp.WithInputSchema[ValidateFormulaInput](),
		mcp.WithOutputSchema[cellref.FormulaCheck](),
	), typed(mcperr.Validation, h.validateFormula), false)
}

func (h *handlers) applyFormula(ctx context.Context, in ApplyFormulaInput) (ApplyFormulaOutput, string, error) {
	cell, err := cellref.ParseCell(in.Cell)
	if err != nil {
		return ApplyFormulaOutput{}, "", err
	}
	body, ok := formulaBody(in.Formula)
	if !ok {
		return ApplyFormulaOutput{}, "", mcperr.Errorf(mcperr.Validation, "formula %q has no body after =", in.Formula)
	}
	chk := cellref.CheckFormula(in.Formula)
	err = h.wb.Update(ctx, in.FilePath, func(wb *workbooks.Workbook) error {
		if err := requireSheet(wb.File, in.SheetName); err != nil {
			return err
		}
		return setFormula(wb.File, in.SheetName, cell.String(), body)
	})
	if err != nil {
		return ApplyFormulaOutput{}, "", err
	}
	out := ApplyFormulaOutput{
		result:    ok("applied formula %s to %s!%s", in.Formula, in.SheetName, cell),
		Cell:      cell.String(),
		Formula:   in.Formula,
		Functions: chk.Functions,
	}
	return out, out.Message, nil
}

// validateFormula never fails: an invalid formula is a successful check with
// valid=false.
func (h *handlers) validateFormula(_ context.Context, in ValidateFormulaInput) (cellref.FormulaCheck, string, error) {
	chk := cellref.CheckFormula(in.Formula)
	if !chk.Valid {
		return chk, "invalid: " + chk.Error, nil
	}
	return chk, "valid", nil
}
