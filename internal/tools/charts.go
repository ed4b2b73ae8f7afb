package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/shmaxi/excel-mcp-server/internal/cellref"
	"github.com/shmaxi/excel-mcp-server/internal/registry"
	"github.com/shmaxi/excel-mcp-server/internal/workbooks"
	"github.com/shmaxi/excel-mcp-server/pkg/mcperr"
)

// ChartPosition anchors a chart.
type ChartPosition struct {
	Cell   string `json:"cell" validate:"required,a1cell" jsonschema_description:"Top-left cell of the chart"`
	Width  int    `json:"width,omitempty" validate:"omitempty,gt=0" jsonschema:"default=600"`
	Height int    `json:"height,omitempty" validate:"omitempty,gt=0" jsonschema:"default=400"`
}

// AxisOptions titles an axis.
type AxisOptions struct {
	Title string `json:"title,omitempty"`
}

// LegendOptions places the legend.
type LegendOptions struct {
	Position string `json:"position,omitempty" validate:"omitempty,oneof=top bottom left right"`
}

// ChartOptions are presentation settings of a chart.
type ChartOptions struct {
	Title  string         `json:"title,omitempty"`
	XAxis  *AxisOptions   `json:"x_axis,omitempty"`
	YAxis  *AxisOptions   `json:"y_axis,omitempty"`
	Legend *LegendOptions `json:"legend,omitempty"`
}

// CreateChartInput defines parameters for create_chart.
type CreateChartInput struct {
	FilePath  string        `json:"file_path" validate:"required,xlsx_path" jsonschema_description:"Path of the workbook"`
	SheetName string        `json:"sheet_name" validate:"required" jsonschema_description:"Worksheet holding the data"`
	ChartType string        `json:"chart_type" validate:"required,oneof=column bar line pie area scatter" jsonschema:"enum=column,enum=bar,enum=line,enum=pie,enum=area,enum=scatter"`
	DataRange string        `json:"data_range" validate:"required,a1range" jsonschema_description:"Data range such as A1:B10"`
	Position  ChartPosition `json:"position"`
	Options   *ChartOptions `json:"options,omitempty"`
}

// PivotValue aggregates one field.
type PivotValue struct {
	Field    string `json:"field" validate:"required"`
	Function string `json:"function,omitempty" validate:"omitempty,oneof=sum count average min max" jsonschema:"enum=sum,enum=count,enum=average,enum=min,enum=max,default=sum"`
}

// CreatePivotTableInput defines parameters for create_pivot_table.
type CreatePivotTableInput struct {
	FilePath    string       `json:"file_path" validate:"required,xlsx_path" jsonschema_description:"Path of the workbook"`
	SourceSheet string       `json:"source_sheet" validate:"required" jsonschema_description:"Worksheet holding the source data"`
	SourceRange string       `json:"source_range" validate:"required,a1range" jsonschema_description:"Source data range including the header row"`
	TargetSheet string       `json:"target_sheet" validate:"required" jsonschema_description:"Worksheet receiving the pivot table"`
	TargetCell  string       `json:"target_cell,omitempty" validate:"omitempty,a1cell" jsonschema:"default=A1"`
	Rows        []string     `json:"rows,omitempty" jsonschema_description:"Row fields"`
	Columns     []string     `json:"columns,omitempty" jsonschema_description:"Column fields"`
	Values      []PivotValue `json:"values,omitempty" validate:"dive"`
}

// UnsupportedOutput documents the shape of tools that always fail with
// UNSUPPORTED_OPERATION after validating their inputs.
type UnsupportedOutput struct {
	result
}

func (h *handlers) registerUnsupported(b *registry.Builder) {
	b.Add(mcp.NewTool(
		"create_chart",
		mcp.WithDescription("Chart creation is not supported by this server. References and worksheets are validated, then the call fails with UNSUPPORTED_OPERATION; no file is modified."),
		mcp.WithInputSchema[CreateChartInput](),
		mcp.WithOutputSchema[UnsupportedOutput](),
	), typed(mcperr.UnsupportedOperation, h.createChart), false)

	b.Add(mcp.NewTool(
		"create_pivot_table",
		mcp.WithDescription("Pivot tables are not supported by this server. References and worksheets are validated, then the call fails with UNSUPPORTED_OPERATION; no file is modified."),
		mcp.WithInputSchema[CreatePivotTableInput](),
		mcp.WithOutputSchema[UnsupportedOutput](),
	), typed(mcperr.UnsupportedOperation, h.createPivotTable), false)
}

func (h *handlers) createChart(ctx context.Context, in CreateChartInput) (UnsupportedOutput, string, error) {
	if _, err := cellref.ParseRange(in.DataRange); err != nil {
		return UnsupportedOutput{}, "", err
	}
	if _, err := cellref.ParseCell(in.Position.Cell); err != nil {
		return UnsupportedOutput{}, "", err
	}
	if err := h.requireSheets(ctx, in.FilePath, in.SheetName); err != nil {
		return UnsupportedOutput{}, "", err
	}
	return UnsupportedOutput{}, "", fmt.Errorf("create_chart (%s chart of %s): %w", in.ChartType, in.DataRange, ErrUnsupported)
}

func (h *handlers) createPivotTable(ctx context.Context, in CreatePivotTableInput) (UnsupportedOutput, string, error) {
	if _, err := cellref.ParseRange(in.SourceRange); err != nil {
		return UnsupportedOutput{}, "", err
	}
	if in.TargetCell != "" {
		if _, err := cellref.ParseCell(in.TargetCell); err != nil {
			return UnsupportedOutput{}, "", err
		}
	}
	if err := h.requireSheets(ctx, in.FilePath, in.SourceSheet, in.TargetSheet); err != nil {
		return UnsupportedOutput{}, "", err
	}
	return UnsupportedOutput{}, "", fmt.Errorf("create_pivot_table (source %s!%s): %w", in.SourceSheet, in.SourceRange, ErrUnsupported)
}

// requireSheets opens the workbook read-only and checks every sheet exists.
func (h *handlers) requireSheets(ctx context.Context, path string, sheets ...string) error {
	return h.wb.View(ctx, path, func(wb *workbooks.Workbook) error {
		for _, s := range sheets {
			if err := requireSheet(wb.File, s); err != nil {
				return err
			}
		}
		return nil
	})
}
