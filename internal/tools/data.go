package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/shmaxi/excel-mcp-server/internal/cellref"
	"github.com/shmaxi/excel-mcp-server/internal/registry"
	"github.com/shmaxi/excel-mcp-server/internal/workbooks"
	"github.com/shmaxi/excel-mcp-server/pkg/mcperr"
	"github.com/shmaxi/excel-mcp-server/pkg/pagination"
)

// WriteDataInput defines parameters for write_data_to_excel.
type WriteDataInput struct {
	FilePath  string  `json:"file_path" validate:"required,xlsx_path" jsonschema_description:"Path of the workbook"`
	SheetName string  `json:"sheet_name" validate:"required" jsonschema_description:"Target worksheet; created when missing"`
	Data      [][]any `json:"data" validate:"required,min=1" jsonschema_description:"Rows of values. Strings starting with = are written as formulas; RFC 3339 timestamps as dates; null clears a cell"`
	StartCell string  `json:"start_cell,omitempty" validate:"omitempty,a1cell" jsonschema:"default=A1" jsonschema_description:"Top-left cell of the written block"`
}

// WriteDataOutput reports the written block.
type WriteDataOutput struct {
	result
	Sheet        string `json:"sheet"`
	Range        string `json:"range" jsonschema_description:"Bounding range of the written block"`
	RowsWritten  int    `json:"rows_written"`
	CellsWritten int    `json:"cells_written"`
	SheetCreated bool   `json:"sheet_created,omitempty"`
}

// ReadDataInput defines parameters for read_data_from_excel.
type ReadDataInput struct {
	FilePath        string `json:"file_path" validate:"required,xlsx_path" jsonschema_description:"Path of the workbook"`
	SheetName       string `json:"sheet_name,omitempty" validate:"required_without=Cursor" jsonschema_description:"Worksheet to read; not needed with a cursor"`
	Range           string `json:"range,omitempty" validate:"omitempty,a1range" jsonschema_description:"A1 range such as A1:D50; defaults to the sheet's used range"`
	Cursor          string `json:"cursor,omitempty" validate:"omitempty,cursor" jsonschema_description:"Continuation token from a previous page; takes precedence over sheet_name and range"`
	PageRows        int    `json:"page_rows,omitempty" validate:"omitempty,min=1,max=100000" jsonschema_description:"Maximum rows per page"`
	IncludeFormulas bool   `json:"include_formulas,omitempty" jsonschema_description:"Return formula text (with leading =) instead of cached values for formula cells"`
}

// ReadDataOutput is one page of cell values.
type ReadDataOutput struct {
	Sheet      string  `json:"sheet"`
	Range      string  `json:"range" jsonschema_description:"Range covered by this page"`
	Requested  string  `json:"requested_range" jsonschema_description:"Full range being paged through"`
	Data       [][]any `json:"data" jsonschema_description:"Row-major values: numbers, booleans, strings or null"`
	Rows       int     `json:"rows"`
	Columns    int     `json:"columns"`
	Offset     int     `json:"offset" jsonschema_description:"Rows of the requested range preceding this page"`
	Truncated  bool    `json:"truncated" jsonschema_description:"More rows remain; pass next_cursor to continue"`
	NextCursor string  `json:"next_cursor,omitempty"`
}

func (h *handlers) registerData(b *registry.Builder) {
	b.Add(mcp.NewTool(
		"write_data_to_excel",
		mcp.WithDescription("Write a 2D array of values starting at start_cell (default A1). The worksheet is created when missing. Strings beginning with = are stored as formulas after a syntax check. Every reference and value is validated before the workbook is touched; the write fails with LIMIT_EXCEEDED above the per-operation cell limit."),
		mcp.WithInputSchema[WriteDataInput](),
		mcp.WithOutputSchema[WriteDataOutput](),
	), typed(mcperr.WriteFailed, h.writeData), true)

	b.Add(mcp.NewTool(
		"read_data_from_excel",
		mcp.WithDescription("Read typed cell values from a range (or the used range) of a worksheet. Results are paged by rows within payload and cell limits; when truncated=true pass next_cursor back as cursor to continue. Cursors are bound to the workbook's modification time and fail with CURSOR_INVALID after an edit."),
		mcp.WithInputSchema[ReadDataInput](),
		mcp.WithOutputSchema[ReadDataOutput](),
	), typed(mcperr.ReadFailed, h.readData), false)
}

func (h *handlers) writeData(ctx context.Context, in WriteDataInput) (WriteDataOutput, string, error) {
	start := cellref.Cell{Row: 1, Col: 1}
	if in.StartCell != "" {
		c, err := cellref.ParseCell(in.StartCell)
		if err != nil {
			return WriteDataOutput{}, "", err
		}
		start = c
	}

	cols, cells := 0, 0
	for _, row := range in.Data {
		cols = max(cols, len(row))
		cells += len(row)
	}
	if cols == 0 {
		return WriteDataOutput{}, "", mcperr.Errorf(mcperr.Validation, "data has no values")
	}
	end, err := start.Offset(len(in.Data)-1, cols-1)
	if err != nil {
		return WriteDataOutput{}, "", fmt.Errorf("%d x %d block at %s: %w", len(in.Data), cols, start, err)
	}
	if err := h.checkCells(cells); err != nil {
		return WriteDataOutput{}, "", err
	}
	for i, row := range in.Data {
		for j, v := range row {
			if err := checkValue(cellref.Cell{Row: start.Row + i, Col: start.Col + j}, v); err != nil {
				return WriteDataOutput{}, "", err
			}
		}
	}

	block := cellref.NewRange(start, end)
	out := WriteDataOutput{Sheet: in.SheetName, Range: block.String(), RowsWritten: len(in.Data), CellsWritten: cells}
	err = h.wb.Update(ctx, in.FilePath, func(wb *workbooks.Workbook) error {
		f := wb.File
		if !hasSheet(f, in.SheetName) {
			if _, err := f.NewSheet(in.SheetName); err != nil {
				return mcperr.Wrap(mcperr.Validation, err, "create worksheet")
			}
			out.SheetCreated = true
		}
		n := 0
		for i, row := range in.Data {
			for j, v := range row {
				if shouldPoll(n) {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				n++
				cell := cellref.Cell{Row: start.Row + i, Col: start.Col + j}
				if err := writeValue(f, in.SheetName, cell.String(), v); err != nil {
					return fmt.Errorf("write %s: %w", cell, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return WriteDataOutput{}, "", err
	}
	out.result = ok("wrote %d cells to %s!%s", cells, in.SheetName, out.Range)
	return out, out.Message, nil
}

// page is the resolved position of a paged read.
type page struct {
	sheet    string
	rng      cellref.Range
	offset   int
	size     int
	formulas bool
}

func (h *handlers) readData(ctx context.Context, in ReadDataInput) (ReadDataOutput, string, error) {
	var (
		cur *pagination.Cursor
		rng *cellref.Range
	)
	if in.Cursor != "" {
		c, err := pagination.DecodeCursor(in.Cursor)
		if err != nil {
			return ReadDataOutput{}, "", mcperr.Wrap(mcperr.CursorInvalid, err, "decode cursor")
		}
		cur = c
	} else if in.Range != "" {
		r, err := cellref.ParseRange(in.Range)
		if err != nil {
			return ReadDataOutput{}, "", err
		}
		rng = &r
	}

	var out ReadDataOutput
	err := h.wb.View(ctx, in.FilePath, func(wb *workbooks.Workbook) error {
		p, err := h.resolvePage(wb, in, cur, rng)
		if err != nil {
			return err
		}
		out.Sheet = p.sheet
		out.Data = [][]any{}
		if p.rng == (cellref.Range{}) {
			return nil
		}
		return h.fillPage(ctx, wb, p, &out)
	})
	if err != nil {
		return ReadDataOutput{}, "", err
	}
	summary := fmt.Sprintf("%s!%s rows=%d cols=%d truncated=%v", out.Sheet, out.Range, out.Rows, out.Columns, out.Truncated)
	return out, summary, nil
}

// resolvePage determines what to read, from the cursor when present. An
// empty sheet without an explicit range yields a page with a zero range.
func (h *handlers) resolvePage(wb *workbooks.Workbook, in ReadDataInput, cur *pagination.Cursor, rng *cellref.Range) (*page, error) {
	if cur != nil {
		if err := cur.Check(wb.Path, wb.Version); err != nil {
			return nil, mcperr.Wrap(mcperr.CursorInvalid, err, "restart pagination")
		}
		r, err := cellref.ParseRange(cur.R)
		if err != nil {
			return nil, mcperr.Wrap(mcperr.CursorInvalid, err, "cursor range")
		}
		if err := requireSheet(wb.File, cur.S); err != nil {
			return nil, err
		}
		if cur.Off >= r.Rows() {
			return nil, mcperr.Errorf(mcperr.CursorInvalid, "cursor offset %d is past the end of %s", cur.Off, cur.R)
		}
		return &page{sheet: cur.S, rng: r, offset: cur.Off, size: cur.Ps, formulas: cur.F}, nil
	}

	if err := requireSheet(wb.File, in.SheetName); err != nil {
		return nil, err
	}
	p := &page{sheet: in.SheetName, size: in.PageRows, formulas: in.IncludeFormulas}
	if p.size <= 0 {
		p.size = h.limits.PageRows
	}
	if rng != nil {
		p.rng = *rng
		return p, nil
	}
	used, err := usedRange(wb.File, in.SheetName)
	if err != nil {
		return nil, err
	}
	if used != nil {
		p.rng = *used
	}
	return p, nil
}

// fillPage reads rows of p into out until the page size, the cell limit or
// the payload budget is reached. At least one row is always returned.
func (h *handlers) fillPage(ctx context.Context, wb *workbooks.Workbook, p *page, out *ReadDataOutput) error {
	cols := p.rng.Cols()
	rows := p.size
	if h.limits.MaxCellsPerOp > 0 {
		perOp := h.limits.MaxCellsPerOp / cols
		if perOp < 1 {
			return h.checkCells(cols)
		}
		rows = min(rows, perOp)
	}

	first := p.rng.Start.Row + p.offset
	last := min(p.rng.End.Row, first+rows-1)
	budget := h.limits.MaxPayloadBytes
	used := 0
	for row := first; row <= last; row++ {
		if shouldPoll(row - first) {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		values := make([]any, 0, cols)
		for col := p.rng.Start.Col; col <= p.rng.End.Col; col++ {
			cell := cellref.Cell{Row: row, Col: col}
			v, err := readValue(wb.File, p.sheet, cell.String(), p.formulas)
			if err != nil {
				return fmt.Errorf("read %s: %w", cell, err)
			}
			values = append(values, v)
		}
		if budget > 0 {
			b, err := json.Marshal(values)
			if err != nil {
				return err
			}
			if used+len(b) > budget && len(out.Data) > 0 {
				break
			}
			used += len(b)
		}
		out.Data = append(out.Data, values)
	}

	n := len(out.Data)
	pageRange := cellref.NewRange(
		cellref.Cell{Row: first, Col: p.rng.Start.Col},
		cellref.Cell{Row: first + n - 1, Col: p.rng.End.Col},
	)
	out.Range = pageRange.String()
	out.Requested = p.rng.String()
	out.Rows, out.Columns = n, cols
	out.Offset = p.offset

	next := pagination.NextOffset(p.offset, n)
	if next >= p.rng.Rows() {
		return nil
	}
	token, err := pagination.EncodeCursor(pagination.Cursor{
		P:   wb.Path,
		S:   p.sheet,
		R:   p.rng.String(),
		Off: next,
		Ps:  p.size,
		Wbv: wb.Version,
		F:   p.formulas,
	})
	if err != nil {
		return err
	}
	out.Truncated = true
	out.NextCursor = token
	return nil
}
