package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/shmaxi/excel-mcp-server/config"
	"github.com/shmaxi/excel-mcp-server/internal/cellref"
	"github.com/shmaxi/excel-mcp-server/internal/registry"
	"github.com/shmaxi/excel-mcp-server/internal/workbooks"
	"github.com/shmaxi/excel-mcp-server/pkg/mcperr"
	"github.com/xuri/excelize/v2"
)

// CreateWorkbookInput defines parameters for create_workbook.
type CreateWorkbookInput struct {
	FilePath  string `json:"file_path" validate:"required,xlsx_path" jsonschema_description:"Path of the workbook to create (.xlsx)"`
	SheetName string `json:"sheet_name,omitempty" validate:"omitempty,max=31" jsonschema:"default=Sheet1" jsonschema_description:"Name of the initial worksheet"`
	Overwrite bool   `json:"overwrite,omitempty" jsonschema_description:"Replace an existing file"`
}

// CreateWorkbookOutput reports the created workbook.
type CreateWorkbookOutput struct {
	result
	Path  string `json:"path" jsonschema_description:"Canonical path of the new workbook"`
	Sheet string `json:"sheet" jsonschema_description:"Name of the initial worksheet"`
}

// WorkbookMetadataInput defines parameters for get_workbook_metadata.
type WorkbookMetadataInput struct {
	FilePath      string `json:"file_path" validate:"required,xlsx_path" jsonschema_description:"Path of the workbook"`
	IncludeRanges bool   `json:"include_ranges,omitempty" jsonschema_description:"Include the used range of every worksheet"`
}

// SheetMetadata summarizes one worksheet.
type SheetMetadata struct {
	Name      string `json:"name"`
	Index     int    `json:"index"`
	UsedRange string `json:"used_range,omitempty" jsonschema_description:"Bounding range from A1 to the last populated cell; empty for blank sheets"`
	Rows      int    `json:"rows,omitempty"`
	Columns   int    `json:"columns,omitempty"`
}

// WorkbookProperties are the core document properties.
type WorkbookProperties struct {
	Creator        string `json:"creator,omitempty"`
	LastModifiedBy string `json:"last_modified_by,omitempty"`
	Created        string `json:"created,omitempty"`
	Modified       string `json:"modified,omitempty"`
	Title          string `json:"title,omitempty"`
}

// WorkbookMetadataOutput describes a workbook without cell data.
type WorkbookMetadataOutput struct {
	Path        string             `json:"path"`
	Sheets      []SheetMetadata    `json:"sheets"`
	ActiveSheet string             `json:"active_sheet"`
	Properties  WorkbookProperties `json:"properties"`
	Version     int64              `json:"version" jsonschema_description:"File modification time in unix nanoseconds"`
}

func (h *handlers) registerWorkbook(b *registry.Builder) {
	b.Add(mcp.NewTool(
		"create_workbook",
		mcp.WithDescription("Create a new Excel workbook with a single worksheet. Missing parent directories are created. Fails with ALREADY_EXISTS when the file exists unless overwrite=true."),
		mcp.WithInputSchema[CreateWorkbookInput](),
		mcp.WithOutputSchema[CreateWorkbookOutput](),
	), typed(mcperr.WriteFailed, h.createWorkbook), true)

	b.Add(mcp.NewTool(
		"get_workbook_metadata",
		mcp.WithDescription("Return workbook structure: worksheet names in order, the active sheet and document properties. Set include_ranges to also report each sheet's used range and dimensions. No cell data is returned; use read_data_from_excel for values."),
		mcp.WithInputSchema[WorkbookMetadataInput](),
		mcp.WithOutputSchema[WorkbookMetadataOutput](),
	), typed(mcperr.ReadFailed, h.workbookMetadata), false)
}

func (h *handlers) createWorkbook(ctx context.Context, in CreateWorkbookInput) (CreateWorkbookOutput, string, error) {
	sheet := in.SheetName
	if sheet == "" {
		sheet = config.DefaultSheetName
	}
	path, err := h.wb.Create(ctx, in.FilePath, sheet, in.Overwrite)
	if err != nil {
		return CreateWorkbookOutput{}, "", err
	}
	out := CreateWorkbookOutput{
		result: ok("created workbook %s", path),
		Path:   path,
		Sheet:  sheet,
	}
	return out, out.Message, nil
}

func (h *handlers) workbookMetadata(ctx context.Context, in WorkbookMetadataInput) (WorkbookMetadataOutput, string, error) {
	var out WorkbookMetadataOutput
	err := h.wb.View(ctx, in.FilePath, func(wb *workbooks.Workbook) error {
		f := wb.File
		out.Path = wb.Path
		out.Version = wb.Version
		out.ActiveSheet = f.GetSheetName(f.GetActiveSheetIndex())
		for i, name := range f.GetSheetList() {
			sm := SheetMetadata{Name: name, Index: i}
			if in.IncludeRanges {
				used, err := usedRange(f, name)
				if err != nil {
					return err
				}
				if used != nil {
					sm.UsedRange = used.String()
					sm.Rows, sm.Columns = used.Dimensions()
				}
			}
			out.Sheets = append(out.Sheets, sm)
		}
		props, err := f.GetDocProps()
		if err != nil {
			return mcperr.Wrap(mcperr.ReadFailed, err, "read document properties")
		}
		out.Properties = WorkbookProperties{
			Creator:        props.Creator,
			LastModifiedBy: props.LastModifiedBy,
			Created:        props.Created,
			Modified:       props.Modified,
			Title:          props.Title,
		}
		return nil
	})
	if err != nil {
		return WorkbookMetadataOutput{}, "", err
	}
	return out, fmt.Sprintf("sheets=%d active=%s", len(out.Sheets), out.ActiveSheet), nil
}

// usedRange returns the block from A1 to the last row and column holding a
// value or formula, or nil for an empty sheet.
func usedRange(f *excelize.File, sheet string) (*cellref.Range, error) {
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}
	cols := 0
	for _, row := range rows {
		cols = max(cols, len(row))
	}
	if len(rows) == 0 || cols == 0 {
		return nil, nil
	}
	r := cellref.NewRange(cellref.Cell{Row: 1, Col: 1}, cellref.Cell{Row: len(rows), Col: cols})
	return &r, nil
}
