package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/shmaxi/excel-mcp-server/internal/registry"
	"github.com/shmaxi/excel-mcp-server/internal/workbooks"
	"github.com/shmaxi/excel-mcp-server/pkg/mcperr"
)

// SheetInput identifies one worksheet.
type SheetInput struct {
	FilePath  string `json:"file_path" validate:"required,xlsx_path" jsonschema_description:"Path of the workbook"`
	SheetName string `json:"sheet_name" validate:"required,max=31" jsonschema_description:"Worksheet name"`
}

// CopyWorksheetInput defines parameters for copy_worksheet.
type CopyWorksheetInput struct {
	FilePath    string `json:"file_path" validate:"required,xlsx_path" jsonschema_description:"Path of the workbook"`
	SourceSheet string `json:"source_sheet" validate:"required" jsonschema_description:"Worksheet to copy"`
	TargetSheet string `json:"target_sheet" validate:"required,max=31" jsonschema_description:"Name of the new worksheet"`
}

// RenameWorksheetInput defines parameters for rename_worksheet.
type RenameWorksheetInput struct {
	FilePath string `json:"file_path" validate:"required,xlsx_path" jsonschema_description:"Path of the workbook"`
	OldName  string `json:"old_name" validate:"required" jsonschema_description:"Current worksheet name"`
	NewName  string `json:"new_name" validate:"required,max=31" jsonschema_description:"New worksheet name"`
}

// WorksheetOutput reports a worksheet change and the resulting sheet order.
type WorksheetOutput struct {
	result
	Sheets []string `json:"sheets"`
}

func (h *handlers) registerWorksheets(b *registry.Builder) {
	b.Add(mcp.NewTool(
		"create_worksheet",
		mcp.WithDescription("Add an empty worksheet to an existing workbook. Fails with ALREADY_EXISTS when a sheet of that name (ignoring case) exists."),
		mcp.WithInputSchema[SheetInput](),
		mcp.WithOutputSchema[WorksheetOutput](),
	), typed(mcperr.WriteFailed, h.createWorksheet), true)

	b.Add(mcp.NewTool(
		"copy_worksheet",
		mcp.WithDescription("Duplicate a worksheet within the same workbook, including values, formulas, styles, merged cells and column widths. Charts and tables are not copied."),
		mcp.WithInputSchema[CopyWorksheetInput](),
		mcp.WithOutputSchema[WorksheetOutput](),
	), typed(mcperr.WriteFailed, h.copyWorksheet), true)

	b.Add(mcp.NewTool(
		"delete_worksheet",
		mcp.WithDescription("Remove a worksheet. A workbook must keep at least one worksheet, so deleting the last one fails with VALIDATION."),
		mcp.WithInputSchema[SheetInput](),
		mcp.WithOutputSchema[WorksheetOutput](),
	), typed(mcperr.WriteFailed, h.deleteWorksheet), true)

	b.Add(mcp.NewTool(
		"rename_worksheet",
		mcp.WithDescription("Rename a worksheet. References to the old name inside formulas are not rewritten."),
		mcp.WithInputSchema[RenameWorksheetInput](),
		mcp.WithOutputSchema[WorksheetOutput](),
	), typed(mcperr.WriteFailed, h.renameWorksheet), true)
}

func (h *handlers) createWorksheet(ctx context.Context, in SheetInput) (WorksheetOutput, string, error) {
	var out WorksheetOutput
	err := h.wb.Update(ctx, in.FilePath, func(wb *workbooks.Workbook) error {
		if hasSheet(wb.File, in.SheetName) {
			return fmt.Errorf("worksheet %q %w", in.SheetName, ErrAlreadyExists)
		}
		if _, err := wb.File.NewSheet(in.SheetName); err != nil {
			return mcperr.Wrap(mcperr.Validation, err, "invalid sheet name")
		}
		out.Sheets = wb.File.GetSheetList()
		return nil
	})
	if err != nil {
		return WorksheetOutput{}, "", err
	}
	out.result = ok("worksheet %s created", in.SheetName)
	return out, out.Message, nil
}

func (h *handlers) copyWorksheet(ctx context.Context, in CopyWorksheetInput) (WorksheetOutput, string, error) {
	var out WorksheetOutput
	err := h.wb.Update(ctx, in.FilePath, func(wb *workbooks.Workbook) error {
		f := wb.File
		if err := requireSheet(f, in.SourceSheet); err != nil {
			return err
		}
		if hasSheet(f, in.TargetSheet) {
			return fmt.Errorf("worksheet %q %w", in.TargetSheet, ErrAlreadyExists)
		}
		from, err := f.GetSheetIndex(in.SourceSheet)
		if err != nil {
			return err
		}
		to, err := f.NewSheet(in.TargetSheet)
		if err != nil {
			return mcperr.Wrap(mcperr.Validation, err, "invalid sheet name")
		}
		if err := f.CopySheet(from, to); err != nil {
			return fmt.Errorf("copy %s to %s: %w", in.SourceSheet, in.TargetSheet, err)
		}
		out.Sheets = f.GetSheetList()
		return nil
	})
	if err != nil {
		return WorksheetOutput{}, "", err
	}
	out.result = ok("worksheet %s copied to %s", in.SourceSheet, in.TargetSheet)
	return out, out.Message, nil
}

func (h *handlers) deleteWorksheet(ctx context.Context, in SheetInput) (WorksheetOutput, string, error) {
	var out WorksheetOutput
	err := h.wb.Update(ctx, in.FilePath, func(wb *workbooks.Workbook) error {
		f := wb.File
		if err := requireSheet(f, in.SheetName); err != nil {
			return err
		}
		if f.SheetCount <= 1 {
			return mcperr.Errorf(mcperr.Validation, "cannot delete %q: a workbook needs at least one worksheet", in.SheetName)
		}
		if err := f.DeleteSheet(in.SheetName); err != nil {
			return fmt.Errorf("delete %s: %w", in.SheetName, err)
		}
		out.Sheets = f.GetSheetList()
		return nil
	})
	if err != nil {
		return WorksheetOutput{}, "", err
	}
	out.result = ok("worksheet %s deleted", in.SheetName)
	return out, out.Message, nil
}

func (h *handlers) renameWorksheet(ctx context.Context, in RenameWorksheetInput) (WorksheetOutput, string, error) {
	var out WorksheetOutput
	err := h.wb.Update(ctx, in.FilePath, func(wb *workbooks.Workbook) error {
		f := wb.File
		if err := requireSheet(f, in.OldName); err != nil {
			return err
		}
		// a case-only rename targets the same sheet
		if !strings.EqualFold(in.OldName, in.NewName) && hasSheet(f, in.NewName) {
			return fmt.Errorf("worksheet %q %w", in.NewName, ErrAlreadyExists)
		}
		if err := f.SetSheetName(canonicalSheet(f.GetSheetList(), in.OldName), in.NewName); err != nil {
			return mcperr.Wrap(mcperr.Validation, err, "invalid sheet name")
		}
		out.Sheets = f.GetSheetList()
		return nil
	})
	if err != nil {
		return WorksheetOutput{}, "", err
	}
	out.result = ok("worksheet renamed from %s to %s", in.OldName, in.NewName)
	return out, out.Message, nil
}

// canonicalSheet returns the stored spelling of name.
func canonicalSheet(sheets []string, name string) string {
	for _, s := range sheets {
		if strings.EqualFold(s, name) {
			return s
		}
	}
	return name
}
