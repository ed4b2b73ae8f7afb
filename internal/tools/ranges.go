package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/shmaxi/excel-mcp-server/internal/cellref"
	"github.com/shmaxi/excel-mcp-server/internal/registry"
	"github.com/shmaxi/excel-mcp-server/internal/workbooks"
	"github.com/shmaxi/excel-mcp-server/pkg/mcperr"
	"github.com/xuri/excelize/v2"
)

// RangeInput identifies a range on one worksheet.
type RangeInput struct {
	FilePath  string `json:"file_path" validate:"required,xlsx_path" jsonschema_description:"Path of the workbook"`
	SheetName string `json:"sheet_name" validate:"required" jsonschema_description:"Worksheet name"`
	Range     string `json:"range" validate:"required,a1range" jsonschema_description:"A1 range such as A1:C3"`
}

// RangeOutput reports a change to one range.
type RangeOutput struct {
	result
	Range string `json:"range"`
	Count int    `json:"count,omitempty"`
}

// MergedRange is one merged block.
type MergedRange struct {
	Range string `json:"range"`
	Start string `json:"start"`
	End   string `json:"end"`
	Value string `json:"value" jsonschema_description:"Formatted value of the top-left cell"`
}

// MergedCellsOutput lists merged blocks of a worksheet.
type MergedCellsOutput struct {
	Sheet  string        `json:"sheet"`
	Merged []MergedRange `json:"merged"`
}

// CopyRangeInput defines parameters for copy_range.
type CopyRangeInput struct {
	FilePath    string `json:"file_path" validate:"required,xlsx_path" jsonschema_description:"Path of the workbook"`
	SourceSheet string `json:"source_sheet" validate:"required" jsonschema_description:"Worksheet holding the source range"`
	SourceRange string `json:"source_range" validate:"required,a1range" jsonschema_description:"Range to copy such as A1:C10"`
	TargetSheet string `json:"target_sheet" validate:"required" jsonschema_description:"Destination worksheet; may equal source_sheet"`
	TargetCell  string `json:"target_cell" validate:"required,a1cell" jsonschema_description:"Top-left cell of the destination such as E1"`
}

// CopyRangeOutput reports the copied block.
type CopyRangeOutput struct {
	result
	Source      string `json:"source"`
	Destination string `json:"destination"`
	CellsCopied int    `json:"cells_copied"`
}

// DeleteRangeInput defines parameters for delete_range.
type DeleteRangeInput struct {
	FilePath  string `json:"file_path" validate:"required,xlsx_path" jsonschema_description:"Path of the workbook"`
	SheetName string `json:"sheet_name" validate:"required" jsonschema_description:"Worksheet name"`
	Range     string `json:"range" validate:"required,a1range" jsonschema_description:"Range to clear"`
	Shift     string `json:"shift,omitempty" validate:"omitempty,oneof=none up left" jsonschema:"enum=none,enum=up,enum=left,default=none" jsonschema_description:"Only none is supported; up and left fail with UNSUPPORTED_OPERATION"`
}

// ValidateRangeInput defines parameters for validate_excel_range.
type ValidateRangeInput struct {
	Range string `json:"range" jsonschema_description:"Reference to check such as A1:C10 or B2"`
}

func (h *handlers) registerRanges(b *registry.Builder) {
	b.Add(mcp.NewTool(
		"merge_cells",
		mcp.WithDescription("Merge a range into a single cell. Only the top-left value is kept. Fails with VALIDATION when the range overlaps an existing merged block."),
		mcp.WithInputSchema[RangeInput](),
		mcp.WithOutputSchema[RangeOutput](),
	), typed(mcperr.WriteFailed, h.mergeCells), true)

	b.Add(mcp.NewTool(
		"unmerge_cells",
		mcp.WithDescription("Unmerge every merged block overlapping the range. count reports how many blocks were removed."),
		mcp.WithInputSchema[RangeInput](),
		mcp.WithOutputSchema[RangeOutput](),
	), typed(mcperr.WriteFailed, h.unmergeCells), true)

	b.Add(mcp.NewTool(
		"get_merged_cells",
		mcp.WithDescription("List the merged blocks of a worksheet with their top-left values."),
		mcp.WithInputSchema[SheetInput](),
		mcp.WithOutputSchema[MergedCellsOutput](),
	), typed(mcperr.ReadFailed, h.mergedCells), false)

	b.Add(mcp.NewTool(
		"copy_range",
		mcp.WithDescription("Copy values, formulas and styles of a range to another location anchored at target_cell, on the same or another worksheet. Formulas are copied verbatim without adjusting relative references. Overlapping source and destination are handled by reading the source first. Merged blocks are not copied."),
		mcp.WithInputSchema[CopyRangeInput](),
		mcp.WithOutputSchema[CopyRangeOutput](),
	), typed(mcperr.WriteFailed, h.copyRange), true)

	b.Add(mcp.NewTool(
		"delete_range",
		mcp.WithDescription("Clear values, formulas and styles of every cell in a range. Shifting the remaining cells (shift=up or left) is not supported and fails with UNSUPPORTED_OPERATION before anything is changed."),
		mcp.WithInputSchema[DeleteRangeInput](),
		mcp.WithOutputSchema[RangeOutput](),
	), typed(mcperr.WriteFailed, h.deleteRange), true)

	b.Add(mcp.NewTool(
		"validate_excel_range",
		mcp.WithDescription("Check an A1 reference without touching a workbook. Returns the normalized corners, row and column counts and whether inverted corners were swapped; invalid input yields valid=false with the reason."),
		mcp.WithInputSchema[ValidateRangeInput](),
		mcp.WithOutputSchema[cellref.Validation](),
	), typed(mcperr.Validation, h.validateRange), false)
}

func (h *handlers) mergeCells(ctx context.Context, in RangeInput) (RangeOutput, string, error) {
	rng, err := cellref.ParseRange(in.Range)
	if err != nil {
		return RangeOutput{}, "", err
	}
	if rng.IsCell() {
		return RangeOutput{}, "", mcperr.Errorf(mcperr.Validation, "range %s is a single cell", rng)
	}
	err = h.wb.Update(ctx, in.FilePath, func(wb *workbooks.Workbook) error {
		f := wb.File
		if err := requireSheet(f, in.SheetName); err != nil {
			return err
		}
		if err := checkMergeable(f, in.SheetName, rng); err != nil {
			return err
		}
		return f.MergeCell(in.SheetName, rng.Start.String(), rng.End.String())
	})
	if err != nil {
		return RangeOutput{}, "", err
	}
	out := RangeOutput{result: ok("merged %s!%s", in.SheetName, rng), Range: rng.String()}
	return out, out.Message, nil
}

func (h *handlers) unmergeCells(ctx context.Context, in RangeInput) (RangeOutput, string, error) {
	rng, err := cellref.ParseRange(in.Range)
	if err != nil {
		return RangeOutput{}, "", err
	}
	out := RangeOutput{Range: rng.String()}
	err = h.wb.Update(ctx, in.FilePath, func(wb *workbooks.Workbook) error {
		f := wb.File
		if err := requireSheet(f, in.SheetName); err != nil {
			return err
		}
		existing, err := mergedRanges(f, in.SheetName)
		if err != nil {
			return err
		}
		for _, m := range existing {
			if m.Overlaps(rng) {
				out.Count++
			}
		}
		if out.Count == 0 {
			return nil
		}
		return f.UnmergeCell(in.SheetName, rng.Start.String(), rng.End.String())
	})
	if err != nil {
		return RangeOutput{}, "", err
	}
	out.result = ok("unmerged %d blocks in %s!%s", out.Count, in.SheetName, rng)
	return out, out.Message, nil
}

func (h *handlers) mergedCells(ctx context.Context, in SheetInput) (MergedCellsOutput, string, error) {
	out := MergedCellsOutput{Sheet: in.SheetName, Merged: []MergedRange{}}
	err := h.wb.View(ctx, in.FilePath, func(wb *workbooks.Workbook) error {
		if err := requireSheet(wb.File, in.SheetName); err != nil {
			return err
		}
		cells, err := wb.File.GetMergeCells(in.SheetName)
		if err != nil {
			return err
		}
		for _, mc := range cells {
			out.Merged = append(out.Merged, MergedRange{
				Range: mc.GetStartAxis() + ":" + mc.GetEndAxis(),
				Start: mc.GetStartAxis(),
				End:   mc.GetEndAxis(),
				Value: mc.GetCellValue(),
			})
		}
		return nil
	})
	if err != nil {
		return MergedCellsOutput{}, "", err
	}
	return out, fmt.Sprintf("%d merged ranges in %s", len(out.Merged), in.SheetName), nil
}

// checkMergeable rejects rng when it overlaps an existing merged block.
func checkMergeable(f *excelize.File, sheet string, rng cellref.Range) error {
	existing, err := mergedRanges(f, sheet)
	if err != nil {
		return err
	}
	for _, m := range existing {
		if m.Overlaps(rng) {
			return mcperr.Errorf(mcperr.Validation, "%s overlaps merged range %s; unmerge it first", rng, m)
		}
	}
	return nil
}

// mergedRanges parses the merged blocks of sheet.
func mergedRanges(f *excelize.File, sheet string) ([]cellref.Range, error) {
	cells, err := f.GetMergeCells(sheet)
	if err != nil {
		return nil, err
	}
	out := make([]cellref.Range, 0, len(cells))
	for _, mc := range cells {
		r, err := cellref.ParseRange(mc.GetStartAxis() + ":" + mc.GetEndAxis())
		if err != nil {
			return nil, mcperr.Wrap(mcperr.ReadFailed, err, "merged range")
		}
		out = append(out, r)
	}
	return out, nil
}

// snapshot is the copyable content of one cell.
type snapshot struct {
	formula string
	value   any
	style   int
}

func (h *handlers) copyRange(ctx context.Context, in CopyRangeInput) (CopyRangeOutput, string, error) {
	src, err := cellref.ParseRange(in.SourceRange)
	if err != nil {
		return CopyRangeOutput{}, "", err
	}
	target, err := cellref.ParseCell(in.TargetCell)
	if err != nil {
		return CopyRangeOutput{}, "", err
	}
	dst, err := src.Translate(target)
	if err != nil {
		return CopyRangeOutput{}, "", err
	}
	if err := h.checkCells(src.Size()); err != nil {
		return CopyRangeOutput{}, "", err
	}

	dr, dc := src.Offset(target)
	err = h.wb.Update(ctx, in.FilePath, func(wb *workbooks.Workbook) error {
		f := wb.File
		if err := requireSheet(f, in.SourceSheet); err != nil {
			return err
		}
		if err := requireSheet(f, in.TargetSheet); err != nil {
			return err
		}
		// read everything first so an overlapping destination sees the
		// original source
		buf := make([]snapshot, 0, src.Size())
		for cell := range src.Cells() {
			if shouldPoll(len(buf)) {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			s, err := readSnapshot(f, in.SourceSheet, cell.String())
			if err != nil {
				return fmt.Errorf("read %s: %w", cell, err)
			}
			buf = append(buf, s)
		}
		i := 0
		for cell := range src.Cells() {
			to := cellref.Cell{Row: cell.Row + dr, Col: cell.Col + dc}
			if err := writeSnapshot(f, in.TargetSheet, to.String(), buf[i]); err != nil {
				return fmt.Errorf("write %s: %w", to, err)
			}
			i++
		}
		return nil
	})
	if err != nil {
		return CopyRangeOutput{}, "", err
	}
	out := CopyRangeOutput{
		result:      ok("copied %s!%s to %s!%s", in.SourceSheet, src, in.TargetSheet, dst),
		Source:      src.String(),
		Destination: dst.String(),
		CellsCopied: src.Size(),
	}
	return out, out.Message, nil
}

func readSnapshot(f *excelize.File, sheet, cell string) (snapshot, error) {
	var s snapshot
	var err error
	if s.style, err = f.GetCellStyle(sheet, cell); err != nil {
		return s, err
	}
	if s.formula, err = f.GetCellFormula(sheet, cell); err != nil {
		return s, err
	}
	if s.formula != "" {
		return s, nil
	}
	s.value, err = readValue(f, sheet, cell, false)
	return s, err
}

func writeSnapshot(f *excelize.File, sheet, cell string, s snapshot) error {
	if err := f.SetCellFormula(sheet, cell, ""); err != nil {
		return err
	}
	var err error
	switch v := s.value.(type) {
	case nil:
		err = f.SetCellDefault(sheet, cell, "")
	case bool:
		err = f.SetCellBool(sheet, cell, v)
	case float64:
		err = f.SetCellFloat(sheet, cell, v, -1, 64)
	case string:
		err = f.SetCellStr(sheet, cell, v)
	}
	if err != nil {
		return err
	}
	if s.formula != "" {
		if err := f.SetCellFormula(sheet, cell, s.formula); err != nil {
			return err
		}
	}
	return f.SetCellStyle(sheet, cell, cell, s.style)
}

func (h *handlers) deleteRange(ctx context.Context, in DeleteRangeInput) (RangeOutput, string, error) {
	rng, err := cellref.ParseRange(in.Range)
	if err != nil {
		return RangeOutput{}, "", err
	}
	if in.Shift == "up" || in.Shift == "left" {
		// report a missing sheet ahead of the unsupported shift
		if err := h.requireSheets(ctx, in.FilePath, in.SheetName); err != nil {
			return RangeOutput{}, "", err
		}
		return RangeOutput{}, "", fmt.Errorf("delete_range with shift=%s: %w", in.Shift, ErrUnsupported)
	}
	if err := h.checkCells(rng.Size()); err != nil {
		return RangeOutput{}, "", err
	}

	out := RangeOutput{Range: rng.String()}
	err = h.wb.Update(ctx, in.FilePath, func(wb *workbooks.Workbook) error {
		f := wb.File
		if err := requireSheet(f, in.SheetName); err != nil {
			return err
		}
		for cell := range rng.Cells() {
			if shouldPoll(out.Count) {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			ref := cell.String()
			if err := f.SetCellFormula(in.SheetName, ref, ""); err != nil {
				return err
			}
			if err := f.SetCellDefault(in.SheetName, ref, ""); err != nil {
				return err
			}
			out.Count++
		}
		return f.SetCellStyle(in.SheetName, rng.Start.String(), rng.End.String(), 0)
	})
	if err != nil {
		return RangeOutput{}, "", err
	}
	out.result = ok("cleared %s!%s", in.SheetName, rng)
	return out, out.Message, nil
}

// validateRange never fails: a malformed reference is reported with valid=false.
func (h *handlers) validateRange(_ context.Context, in ValidateRangeInput) (cellref.Validation, string, error) {
	v := cellref.Validate(in.Range)
	if !v.Valid {
		return v, "invalid: " + v.Error, nil
	}
	return v, fmt.Sprintf("valid %dx%d", v.Rows, v.Columns), nil
}
