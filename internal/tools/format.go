package tools

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/shmaxi/excel-mcp-server/internal/cellref"
	"github.com/shmaxi/excel-mcp-server/internal/registry"
	"github.com/shmaxi/excel-mcp-server/internal/workbooks"
	"github.com/shmaxi/excel-mcp-server/pkg/mcperr"
	"github.com/xuri/excelize/v2"
)

// FontFormat sets font properties. Unset fields keep the cell's current value.
type FontFormat struct {
	Bold      *bool   `json:"bold,omitempty"`
	Italic    *bool   `json:"italic,omitempty"`
	Underline *bool   `json:"underline,omitempty"`
	Strike    *bool   `json:"strike,omitempty"`
	Size      float64 `json:"size,omitempty" validate:"omitempty,gt=0,lte=409"`
	Color     string  `json:"color,omitempty" jsonschema_description:"RGB hex such as FF0000 or #FF0000"`
	Family    string  `json:"family,omitempty"`
}

// FillFormat sets a background fill.
type FillFormat struct {
	Color   string `json:"color" validate:"required" jsonschema_description:"RGB hex background color"`
	Pattern string `json:"pattern,omitempty" validate:"omitempty,oneof=solid darkGray mediumGray lightGray gray125 gray0625 darkHorizontal darkVertical darkDown darkUp darkGrid darkTrellis lightHorizontal lightVertical lightDown lightUp lightGrid lightTrellis" jsonschema:"default=solid"`
}

// AlignmentFormat sets cell alignment.
type AlignmentFormat struct {
	Horizontal string `json:"horizontal,omitempty" validate:"omitempty,oneof=general left center right fill justify centerContinuous distributed"`
	Vertical   string `json:"vertical,omitempty" validate:"omitempty,oneof=top middle center bottom justify distributed" jsonschema_description:"middle is accepted as an alias for center"`
	WrapText   *bool  `json:"wrap_text,omitempty"`
	Rotation   *int   `json:"rotation,omitempty" validate:"omitempty,gte=0,lte=180"`
	Indent     *int   `json:"indent,omitempty" validate:"omitempty,gte=0,lte=250"`
}

// BorderFormat draws borders on the chosen sides of every cell.
type BorderFormat struct {
	Style string   `json:"style,omitempty" validate:"omitempty,oneof=thin medium dashed dotted thick double hair" jsonschema:"default=thin"`
	Color string   `json:"color,omitempty" jsonschema:"default=000000"`
	Sides []string `json:"sides,omitempty" validate:"omitempty,dive,oneof=top bottom left right" jsonschema_description:"Defaults to all four sides"`
}

// ProtectionFormat sets cell protection flags, effective once the sheet is protected.
type ProtectionFormat struct {
	Locked *bool `json:"locked,omitempty"`
	Hidden *bool `json:"hidden,omitempty"`
}

// CellFormat groups the properties applied by format_range.
type CellFormat struct {
	Font       *FontFormat       `json:"font,omitempty"`
	Fill       *FillFormat       `json:"fill,omitempty"`
	Alignment  *AlignmentFormat  `json:"alignment,omitempty"`
	Border     *BorderFormat     `json:"border,omitempty"`
	Protection *ProtectionFormat `json:"protection,omitempty"`
	NumFmt     string            `json:"num_fmt,omitempty" jsonschema_description:"Excel number format code such as 0.00% or yyyy-mm-dd"`
}

func (c CellFormat) empty() bool {
	return c.Font == nil && c.Fill == nil && c.Alignment == nil && c.Border == nil && c.Protection == nil && c.NumFmt == ""
}

// FormatRangeInput defines parameters for format_range.
type FormatRangeInput struct {
	FilePath  string     `json:"file_path" validate:"required,xlsx_path" jsonschema_description:"Path of the workbook"`
	SheetName string     `json:"sheet_name" validate:"required" jsonschema_description:"Worksheet name"`
	Range     string     `json:"range" validate:"required,a1range" jsonschema_description:"A1 range to format"`
	Format    CellFormat `json:"format" jsonschema_description:"Style properties; unspecified properties keep their current values"`
	Merge     bool       `json:"merge,omitempty" jsonschema_description:"Also merge the range into one cell"`
}

// FormatRangeOutput reports the formatted block.
type FormatRangeOutput struct {
	result
	Range          string `json:"range"`
	CellsFormatted int    `json:"cells_formatted"`
	StylesCreated  int    `json:"styles_created"`
	Merged         bool   `json:"merged,omitempty"`
}

func (h *handlers) registerFormat(b *registry.Builder) {
	b.Add(mcp.NewTool(
		"format_range",
		mcp.WithDescription("Apply font, fill, alignment, border, protection and number format properties to every cell of a range. Requested properties are merged over each cell's existing style, so unrelated formatting is preserved. Colors are RGB hex with or without a leading #."),
		mcp.WithInputSchema[FormatRangeInput](),
		mcp.WithOutputSchema[FormatRangeOutput](),
	), typed(mcperr.WriteFailed, h.formatRange), true)
}

func (h *handlers) formatRange(ctx context.Context, in FormatRangeInput) (FormatRangeOutput, string, error) {
	rng, err := cellref.ParseRange(in.Range)
	if err != nil {
		return FormatRangeOutput{}, "", err
	}
	if in.Format.empty() {
		return FormatRangeOutput{}, "", mcperr.Errorf(mcperr.Validation, "format has no properties")
	}
	patch, err := stylePatch(in.Format)
	if err != nil {
		return FormatRangeOutput{}, "", err
	}
	if err := h.checkCells(rng.Size()); err != nil {
		return FormatRangeOutput{}, "", err
	}

	out := FormatRangeOutput{Range: rng.String()}
	err = h.wb.Update(ctx, in.FilePath, func(wb *workbooks.Workbook) error {
		f := wb.File
		if err := requireSheet(f, in.SheetName); err != nil {
			return err
		}
		if in.Merge && !rng.IsCell() {
			if err := checkMergeable(f, in.SheetName, rng); err != nil {
				return err
			}
		}
		// cells sharing a style share the merged result
		merged := map[int]int{}
		i := 0
		for cell := range rng.Cells() {
			if shouldPoll(i) {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			i++
			ref := cell.String()
			current, err := f.GetCellStyle(in.SheetName, ref)
			if err != nil {
				return fmt.Errorf("style of %s: %w", ref, err)
			}
			id, seen := merged[current]
			if !seen {
				base := &excelize.Style{}
				if current != 0 {
					if base, err = f.GetStyle(current); err != nil {
						return fmt.Errorf("style %d: %w", current, err)
					}
				}
				if id, err = f.NewStyle(applyPatch(base, patch)); err != nil {
					return mcperr.Wrap(mcperr.Validation, err, "invalid style")
				}
				merged[current] = id
			}
			if err := f.SetCellStyle(in.SheetName, ref, ref, id); err != nil {
				return fmt.Errorf("apply style to %s: %w", ref, err)
			}
		}
		out.CellsFormatted = i
		out.StylesCreated = len(merged)
		if in.Merge && !rng.IsCell() {
			if err := f.MergeCell(in.SheetName, rng.Start.String(), rng.End.String()); err != nil {
				return fmt.Errorf("merge %s: %w", rng, err)
			}
			out.Merged = true
		}
		return nil
	})
	if err != nil {
		return FormatRangeOutput{}, "", err
	}
	out.result = ok("formatted %d cells in %s!%s", out.CellsFormatted, in.SheetName, out.Range)
	return out, out.Message, nil
}

var patternTypes = map[string]int{
	"solid": 1, "darkGray": 2, "mediumGray": 3, "lightGray": 4, "gray125": 5, "gray0625": 6,
	"darkHorizontal": 7, "darkVertical": 8, "darkDown": 9, "darkUp": 10, "darkGrid": 11,
	"darkTrellis": 12, "lightHorizontal": 13, "lightVertical": 14, "lightDown": 15,
	"lightUp": 16, "lightGrid": 17, "lightTrellis": 18,
}

var borderStyles = map[string]int{
	"thin": 1, "medium": 2, "dashed": 3, "dotted": 4, "thick": 5, "double": 6, "hair": 7,
}

// patch is a CellFormat with colors normalized and names resolved.
type patch struct {
	CellFormat
	fontColor  string
	fill       *excelize.Fill
	borders    []excelize.Border
	vertical   string
	horizontal string
}

func stylePatch(c CellFormat) (*patch, error) {
	p := &patch{CellFormat: c}
	if c.Font != nil && c.Font.Color != "" {
		col, err := parseColor(c.Font.Color)
		if err != nil {
			return nil, err
		}
		p.fontColor = col
	}
	if c.Fill != nil {
		col, err := parseColor(c.Fill.Color)
		if err != nil {
			return nil, err
		}
		pattern := patternTypes["solid"]
		if c.Fill.Pattern != "" {
			pattern = patternTypes[c.Fill.Pattern]
		}
		p.fill = &excelize.Fill{Type: "pattern", Pattern: pattern, Color: []string{col}}
	}
	if c.Border != nil {
		col := "000000"
		if c.Border.Color != "" {
			var err error
			if col, err = parseColor(c.Border.Color); err != nil {
				return nil, err
			}
		}
		style := borderStyles["thin"]
		if c.Border.Style != "" {
			style = borderStyles[c.Border.Style]
		}
		sides := c.Border.Sides
		if len(sides) == 0 {
			sides = []string{"left", "top", "right", "bottom"}
		}
		for _, side := range sides {
			p.borders = append(p.borders, excelize.Border{Type: side, Color: col, Style: style})
		}
	}
	if c.Alignment != nil {
		p.horizontal = c.Alignment.Horizontal
		p.vertical = c.Alignment.Vertical
		if p.vertical == "middle" {
			p.vertical = "center"
		}
	}
	return p, nil
}

// parseColor accepts RRGGBB with an optional leading # and returns it
// upper-cased without the #.
func parseColor(s string) (string, error) {
	c := strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(s), "#"))
	if len(c) != 6 {
		return "", mcperr.Errorf(mcperr.Validation, "color %q must be six hex digits such as FF0000", s)
	}
	if _, err := strconv.ParseUint(c, 16, 32); err != nil {
		return "", mcperr.Errorf(mcperr.Validation, "color %q must be six hex digits such as FF0000", s)
	}
	return c, nil
}

// rgb drops the alpha channel from ARGB colors read back from a workbook.
func rgb(c string) string {
	if len(c) == 8 {
		return c[2:]
	}
	return c
}

// applyPatch returns base with the properties of p layered on top.
func applyPatch(base *excelize.Style, p *patch) *excelize.Style {
	out := *base
	if base.Font != nil {
		font := *base.Font
		font.Color = rgb(font.Color)
		out.Font = &font
	}
	if len(base.Fill.Color) > 0 {
		colors := make([]string, len(base.Fill.Color))
		for i, c := range base.Fill.Color {
			colors[i] = rgb(c)
		}
		out.Fill.Color = colors
	}
	if len(base.Border) > 0 {
		out.Border = make([]excelize.Border, len(base.Border))
		for i, b := range base.Border {
			b.Color = rgb(b.Color)
			out.Border[i] = b
		}
	}

	if font := p.Font; font != nil {
		if out.Font == nil {
			out.Font = &excelize.Font{}
		}
		if font.Bold != nil {
			out.Font.Bold = *font.Bold
		}
		if font.Italic != nil {
			out.Font.Italic = *font.Italic
		}
		if font.Underline != nil {
			out.Font.Underline = ""
			if *font.Underline {
				out.Font.Underline = "single"
			}
		}
		if font.Strike != nil {
			out.Font.Strike = *font.Strike
		}
		if font.Size > 0 {
			out.Font.Size = font.Size
		}
		if font.Family != "" {
			out.Font.Family = font.Family
		}
		if p.fontColor != "" {
			out.Font.Color = p.fontColor
		}
	}
	if p.fill != nil {
		out.Fill = *p.fill
	}
	if len(p.borders) > 0 {
		sides := map[string]excelize.Border{}
		var order []string
		for _, b := range append(out.Border, p.borders...) {
			if _, ok := sides[b.Type]; !ok {
				order = append(order, b.Type)
			}
			sides[b.Type] = b
		}
		out.Border = make([]excelize.Border, 0, len(order))
		for _, side := range order {
			out.Border = append(out.Border, sides[side])
		}
	}
	if a := p.Alignment; a != nil {
		align := excelize.Alignment{}
		if out.Alignment != nil {
			align = *out.Alignment
		}
		if p.horizontal != "" {
			align.Horizontal = p.horizontal
		}
		if p.vertical != "" {
			align.Vertical = p.vertical
		}
		if a.WrapText != nil {
			align.WrapText = *a.WrapText
		}
		if a.Rotation != nil {
			align.TextRotation = *a.Rotation
		}
		if a.Indent != nil {
			align.Indent = *a.Indent
		}
		out.Alignment = &align
	}
	if pr := p.Protection; pr != nil {
		prot := excelize.Protection{Locked: true}
		if out.Protection != nil {
			prot = *out.Protection
		}
		if pr.Locked != nil {
			prot.Locked = *pr.Locked
		}
		if pr.Hidden != nil {
			prot.Hidden = *pr.Hidden
		}
		out.Protection = &prot
	}
	if p.NumFmt != "" {
		numFmt := p.NumFmt
		out.CustomNumFmt = &numFmt
		out.NumFmt = 0
	}
	return &out
}
