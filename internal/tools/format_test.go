package tools

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func format(e *env, path, rng string, format map[string]any) FormatRangeOutput {
	e.t.Helper()
	return mustOK[FormatRangeOutput](e.t, e.call("format_range", map[string]any{
		"file_path": path, "sheet_name": "Data", "range": rng, "format": format,
	}))
}

func TestFormatRange_FontAndFill(t *testing.T) {
	e := newEnv(t)
	path := e.book("fmt.xlsx")
	e.write(path, "Data", "A1", [][]any{{"a", "b"}, {"c", "d"}})

	out := format(e, path, "A1:B2", map[string]any{
		"font": map[string]any{"bold": true, "color": "#1f4e79"},
		"fill": map[string]any{"color": "FFFF00"},
	})
	require.True(t, out.Success)
	require.Equal(t, "A1:B2", out.Range)
	require.Equal(t, 4, out.CellsFormatted)
	require.Equal(t, 1, out.StylesCreated)

	f := open(t, path)
	id, err := f.GetCellStyle("Data", "B2")
	require.NoError(t, err)
	style, err := f.GetStyle(id)
	require.NoError(t, err)
	require.NotNil(t, style.Font)
	require.True(t, style.Font.Bold)
	require.Equal(t, "1F4E79", rgb(style.Font.Color))
	require.Len(t, style.Fill.Color, 1)
	require.Equal(t, "FFFF00", rgb(style.Fill.Color[0]))

	// values are untouched
	v, err := f.GetCellValue("Data", "B2")
	require.NoError(t, err)
	require.Equal(t, "d", v)
}

func TestFormatRange_MergesExistingStyle(t *testing.T) {
	e := newEnv(t)
	path := e.book("layer.xlsx")
	format(e, path, "A1:B1", map[string]any{"font": map[string]any{"bold": true}})

	out := format(e, path, "A1:A2", map[string]any{"font": map[string]any{"italic": true}})
	// A1 carried the bold style, A2 had none
	require.Equal(t, 2, out.StylesCreated)

	f := open(t, path)
	font := func(cell string) (bold, italic bool) {
		id, err := f.GetCellStyle("Data", cell)
		require.NoError(t, err)
		style, err := f.GetStyle(id)
		require.NoError(t, err)
		if style.Font == nil {
			return false, false
		}
		return style.Font.Bold, style.Font.Italic
	}
	bold, italic := font("A1")
	require.True(t, bold)
	require.True(t, italic)
	bold, italic = font("A2")
	require.False(t, bold)
	require.True(t, italic)
	bold, italic = font("B1")
	require.True(t, bold)
	require.False(t, italic)

	// properties can be switched off again
	format(e, path, "A1", map[string]any{"font": map[string]any{"bold": false}})
	f = open(t, path)
	bold, italic = font("A1")
	require.False(t, bold)
	require.True(t, italic)
}

func TestFormatRange_NumberFormat(t *testing.T) {
	e := newEnv(t)
	path := e.book("numfmt.xlsx")
	e.write(path, "Data", "A1", [][]any{{0.5}})
	format(e, path, "A1", map[string]any{"num_fmt": "0.0%"})

	v, err := open(t, path).GetCellValue("Data", "A1")
	require.NoError(t, err)
	require.Equal(t, "50.0%", v)
}

func TestFormatRange_AlignmentAndMerge(t *testing.T) {
	e := newEnv(t)
	path := e.book("align.xlsx")

	out := mustOK[FormatRangeOutput](t, e.call("format_range", map[string]any{
		"file_path":  path,
		"sheet_name": "Data",
		"range":      "A1:C1",
		"merge":      true,
		"format": map[string]any{
			"alignment": map[string]any{"horizontal": "center", "vertical": "middle", "wrap_text": true},
			"border":    map[string]any{"style": "thick", "sides": []string{"bottom"}},
		},
	}))
	require.True(t, out.Merged)

	f := open(t, path)
	id, err := f.GetCellStyle("Data", "B1")
	require.NoError(t, err)
	style, err := f.GetStyle(id)
	require.NoError(t, err)
	require.NotNil(t, style.Alignment)
	require.Equal(t, "center", style.Alignment.Horizontal)
	require.Equal(t, "center", style.Alignment.Vertical)
	require.True(t, style.Alignment.WrapText)
	sides := map[string]int{}
	for _, b := range style.Border {
		sides[b.Type] = b.Style
	}
	require.Equal(t, 5, sides["bottom"])
	require.Zero(t, sides["top"])

	merged, err := f.GetMergeCells("Data")
	require.NoError(t, err)
	require.Len(t, merged, 1)
	require.Equal(t, "A1", merged[0].GetStartAxis())
	require.Equal(t, "C1", merged[0].GetEndAxis())
}

func TestFormatRange_Rejected(t *testing.T) {
	e := newEnv(t)
	path := e.book("bad.xlsx")

	call := func(args map[string]any) string {
		base := map[string]any{"file_path": path, "sheet_name": "Data", "range": "A1:B2"}
		for k, v := range args {
			base[k] = v
		}
		return text(e.call("format_range", base))
	}

	require.Contains(t, call(map[string]any{"format": map[string]any{}}), "VALIDATION: format has no properties")
	require.Contains(t, call(map[string]any{"format": map[string]any{"fill": map[string]any{"color": "red"}}}), "VALIDATION")
	require.Contains(t, call(map[string]any{"format": map[string]any{"font": map[string]any{"color": "#12345G"}}}), "VALIDATION")
	require.Contains(t, call(map[string]any{"format": map[string]any{"border": map[string]any{"sides": []string{"diagonal"}}}}), "VALIDATION")
	require.Contains(t, call(map[string]any{"range": "B:B", "format": map[string]any{"font": map[string]any{"bold": true}}}), "INVALID_REFERENCE")
	require.Contains(t, call(map[string]any{"sheet_name": "Nope", "format": map[string]any{"font": map[string]any{"bold": true}}}), "NOT_FOUND")
}

func TestFormatRange_MergeOverlapRejected(t *testing.T) {
	e := newEnv(t)
	path := e.book("fmt-overlap.xlsx")
	mustOK[RangeOutput](t, e.call("merge_cells", map[string]any{"file_path": path, "sheet_name": "Data", "range": "A1:B2"}))

	msg := mustFail(t, e.call("format_range", map[string]any{
		"file_path": path, "sheet_name": "Data", "range": "B2:C3", "merge": true,
		"format": map[string]any{"font": map[string]any{"bold": true}},
	}), "VALIDATION")
	require.Contains(t, msg, "overlaps merged range A1:B2")

	f := open(t, path)
	style, err := f.GetCellStyle("Data", "C3")
	require.NoError(t, err)
	require.Zero(t, style)
	merged, err := f.GetMergeCells("Data")
	require.NoError(t, err)
	require.Len(t, merged, 1)
}
