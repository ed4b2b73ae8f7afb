package tools

import (
	"strconv"
	"strings"
	"time"

	"github.com/shmaxi/excel-mcp-server/internal/cellref"
	"github.com/shmaxi/excel-mcp-server/pkg/mcperr"
	"github.com/xuri/excelize/v2"
)

// readValue returns the typed value of a cell: float64 for numbers, bool for
// booleans, nil for empty cells and string otherwise. With formulas set, a
// cell holding a formula is returned as its "=" prefixed text.
func readValue(f *excelize.File, sheet, cell string, formulas bool) (any, error) {
	if formulas {
		formula, err := f.GetCellFormula(sheet, cell)
		if err != nil {
			return nil, err
		}
		if formula != "" {
			return "=" + strings.TrimPrefix(formula, "="), nil
		}
	}
	raw, err := f.GetCellValue(sheet, cell, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}
	typ, err := f.GetCellType(sheet, cell)
	if err != nil {
		return nil, err
	}
	switch typ {
	case excelize.CellTypeBool:
		return raw == "1" || strings.EqualFold(raw, "true"), nil
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			return n, nil
		}
	}
	// shared and inline strings need the formatted value
	return f.GetCellValue(sheet, cell)
}

// checkValue rejects values a cell cannot hold and formulas that fail the
// syntax check.
func checkValue(cell cellref.Cell, v any) error {
	switch x := v.(type) {
	case nil, bool, float64, float32, int, int64, int32, uint, uint64, uint32:
		return nil
	case string:
		if strings.HasPrefix(x, "=") {
			if chk := cellref.CheckFormula(x); !chk.Valid {
				return mcperr.Errorf(mcperr.Validation, "cell %s: %s", cell, chk.Error)
			}
			if _, ok := formulaBody(x); !ok {
				return mcperr.Errorf(mcperr.Validation, "cell %s: formula has no body after =", cell)
			}
		}
		return nil
	default:
		return mcperr.Errorf(mcperr.Validation, "cell %s: unsupported value type %T", cell, v)
	}
}

// writeValue stores v in cell. nil clears the value, "=" prefixed strings
// become formulas and RFC 3339 timestamps become dates.
func writeValue(f *excelize.File, sheet, cell string, v any) error {
	// a previous formula would otherwise survive a plain value
	if err := f.SetCellFormula(sheet, cell, ""); err != nil {
		return err
	}
	switch x := v.(type) {
	case nil:
		return f.SetCellDefault(sheet, cell, "")
	case string:
		if body, ok := formulaBody(x); ok {
			return setFormula(f, sheet, cell, body)
		}
		if t, err := time.Parse(time.RFC3339, x); err == nil {
			return f.SetCellValue(sheet, cell, t)
		}
		return f.SetCellStr(sheet, cell, x)
	default:
		return f.SetCellValue(sheet, cell, x)
	}
}

// formulaBody strips the leading "=" of s and reports whether s is a formula
// with something after it.
func formulaBody(s string) (string, bool) {
	if !strings.HasPrefix(s, "=") {
		return "", false
	}
	body := strings.TrimPrefix(s, "=")
	return body, strings.TrimSpace(body) != ""
}

// setFormula stores formula in cell and drops the cell's cached value, which
// would otherwise be read back until Excel recalculates.
func setFormula(f *excelize.File, sheet, cell, formula string) error {
	if err := f.SetCellDefault(sheet, cell, ""); err != nil {
		return err
	}
	return f.SetCellFormula(sheet, cell, formula)
}
