// Package cellref parses and manipulates A1-style cell and range references.
//
// Every function in this package is pure: no I/O, no shared state. Handlers
// resolve all user-supplied references here before touching a workbook, so a
// malformed reference aborts the operation before any mutation happens.
package cellref

import (
	"errors"
	"fmt"
	"iter"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Grid bounds of an xlsx worksheet.
const (
	MaxRows    = excelize.TotalRows
	MaxColumns = excelize.MaxColumns
)

// ErrInvalidReference is the sentinel matched by every parse failure.
var ErrInvalidReference = errors.New("invalid reference")

// ReferenceError describes why a reference could not be parsed.
type ReferenceError struct {
	Input  string
	Reason string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("invalid reference %q: %s", e.Input, e.Reason)
}

// Is reports ErrInvalidReference as the error's kind.
func (e *ReferenceError) Is(target error) bool {
	return target == ErrInvalidReference
}

func invalid(input, format string, args ...any) error {
	return &ReferenceError{Input: input, Reason: fmt.Sprintf(format, args...)}
}

var cellPattern = regexp.MustCompile(`^([A-Z]+)([0-9]+)$`)

// Cell is a 1-based (row, column) coordinate.
type Cell struct {
	Row int `json:"row"`
	Col int `json:"column"`
}

// ParseCell parses a single reference such as "A1" or "AB27".
func ParseCell(text string) (Cell, error) {
	if text == "" {
		return Cell{}, invalid(text, "empty reference")
	}
	m := cellPattern.FindStringSubmatch(text)
	if m == nil {
		return Cell{}, invalid(text, "expected column letters followed by a row number")
	}
	col, reason := columnIndex(m[1])
	if reason != "" {
		return Cell{}, invalid(text, "%s", reason)
	}
	row, err := strconv.Atoi(m[2])
	if err != nil || row > MaxRows {
		return Cell{}, invalid(text, "row exceeds %d", MaxRows)
	}
	if row < 1 {
		return Cell{}, invalid(text, "row must be at least 1")
	}
	return Cell{Row: row, Col: col}, nil
}

func columnIndex(letters string) (int, string) {
	if letters == "" {
		return 0, "empty column"
	}
	col := 0
	for i := 0; i < len(letters); i++ {
		ch := letters[i]
		if ch < 'A' || ch > 'Z' {
			return 0, "column letters must be A-Z"
		}
		col = col*26 + int(ch-'A'+1)
		if col > MaxColumns {
			return 0, "column exceeds " + ColumnName(MaxColumns)
		}
	}
	return col, ""
}

// ColumnName converts a 1-based column index to its letter run. It returns ""
// for indexes below 1.
func ColumnName(col int) string {
	var buf [16]byte
	i := len(buf)
	for col > 0 {
		col--
		i--
		buf[i] = byte('A' + col%26)
		col /= 26
	}
	return string(buf[i:])
}

// String returns the canonical A1 form.
func (c Cell) String() string {
	return ColumnName(c.Col) + strconv.Itoa(c.Row)
}

// Valid reports whether c lies inside the worksheet grid.
func (c Cell) Valid() bool {
	return c.Row >= 1 && c.Row <= MaxRows && c.Col >= 1 && c.Col <= MaxColumns
}

// Offset moves c by the given deltas.
func (c Cell) Offset(rows, cols int) (Cell, error) {
	out := Cell{Row: c.Row + rows, Col: c.Col + cols}
	if !out.Valid() {
		return Cell{}, invalid(c.String(), "offset (%d,%d) leaves the worksheet", rows, cols)
	}
	return out, nil
}

// Range is a rectangular block. Ranges built by ParseRange or NewRange always
// have Start at the top-left and End at the bottom-right.
type Range struct {
	Start Cell `json:"start"`
	End   Cell `json:"end"`
}

// NewRange builds a range from two corners in any order.
func NewRange(a, b Cell) Range {
	r := Range{Start: a, End: b}
	if r.Start.Row > r.End.Row {
		r.Start.Row, r.End.Row = r.End.Row, r.Start.Row
	}
	if r.Start.Col > r.End.Col {
		r.Start.Col, r.End.Col = r.End.Col, r.Start.Col
	}
	return r
}

// ParseRange parses "A1:D10" or a bare cell, which denotes a 1x1 range.
// Inverted corners ("D10:A1") are normalized.
func ParseRange(text string) (Range, error) {
	r, _, err := parseRange(text)
	return r, err
}

func parseRange(text string) (Range, bool, error) {
	if text == "" {
		return Range{}, false, invalid(text, "empty range")
	}
	parts := strings.Split(text, ":")
	switch len(parts) {
	case 1:
		c, err := ParseCell(parts[0])
		if err != nil {
			return Range{}, false, rangeErr(text, err)
		}
		return Range{Start: c, End: c}, false, nil
	case 2:
		start, err := ParseCell(parts[0])
		if err != nil {
			return Range{}, false, rangeErr(text, err)
		}
		end, err := ParseCell(parts[1])
		if err != nil {
			return Range{}, false, rangeErr(text, err)
		}
		r := NewRange(start, end)
		return r, r.Start != start, nil
	default:
		return Range{}, false, invalid(text, "expected at most one ':'")
	}
}

func rangeErr(text string, err error) error {
	var re *ReferenceError
	if errors.As(err, &re) && re.Input != text {
		return invalid(text, "%s: %s", re.Input, re.Reason)
	}
	return err
}

// Rows is the number of rows spanned.
func (r Range) Rows() int { return r.End.Row - r.Start.Row + 1 }

// Cols is the number of columns spanned.
func (r Range) Cols() int { return r.End.Col - r.Start.Col + 1 }

// Dimensions returns (rows, columns). A result <= 0 means r was built by hand
// with inverted corners.
func (r Range) Dimensions() (rows, cols int) { return r.Rows(), r.Cols() }

// Size is the number of cells in the block.
func (r Range) Size() int { return r.Rows() * r.Cols() }

// IsCell reports whether the range covers exactly one cell.
func (r Range) IsCell() bool { return r.Start == r.End }

// Overlaps reports whether r and o share at least one cell.
func (r Range) Overlaps(o Range) bool {
	return r.Start.Row <= o.End.Row && o.Start.Row <= r.End.Row &&
		r.Start.Col <= o.End.Col && o.Start.Col <= r.End.Col
}

// String returns "A1:C3", or "B2" for a single cell.
func (r Range) String() string {
	if r.IsCell() {
		return r.Start.String()
	}
	return r.Start.String() + ":" + r.End.String()
}

// Cells yields every cell of r in row-major order. The sequence can be
// ranged over any number of times.
func (r Range) Cells() iter.Seq[Cell] {
	return func(yield func(Cell) bool) {
		for row := r.Start.Row; row <= r.End.Row; row++ {
			for col := r.Start.Col; col <= r.End.Col; col++ {
				if !yield(Cell{Row: row, Col: col}) {
					return
				}
			}
		}
	}
}

// Offset is the (rows, cols) delta that moves r.Start onto target.
func (r Range) Offset(target Cell) (rows, cols int) {
	return target.Row - r.Start.Row, target.Col - r.Start.Col
}

// Translate returns the block with r's dimensions anchored at target.
func (r Range) Translate(target Cell) (Range, error) {
	dr, dc := r.Offset(target)
	start, err := r.Start.Offset(dr, dc)
	if err != nil {
		return Range{}, invalid(r.String(), "destination %s is outside the worksheet", target)
	}
	end, err := r.End.Offset(dr, dc)
	if err != nil {
		return Range{}, invalid(r.String(), "destination anchored at %s does not fit in the worksheet", target)
	}
	return Range{Start: start, End: end}, nil
}
