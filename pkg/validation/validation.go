package validation

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shmaxi/excel-mcp-server/internal/cellref"
	"github.com/shmaxi/excel-mcp-server/pkg/pagination"
)

var (
	v    *validator.Validate
	once sync.Once
)

// Validator returns a singleton validator with custom rules registered.
func Validator() *validator.Validate {
	once.Do(func() {
		v = validator.New()
		// report fields by their JSON argument names
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("xlsx_path", func(fl validator.FieldLevel) bool {
			switch strings.ToLower(filepath.Ext(strings.TrimSpace(fl.Field().String()))) {
			case ".xlsx", ".xlsm", ".xltx", ".xltm":
				return true
			}
			return false
		})
		_ = v.RegisterValidation("a1cell", func(fl validator.FieldLevel) bool {
			_, err := cellref.ParseCell(fl.Field().String())
			return err == nil
		})
		_ = v.RegisterValidation("a1range", func(fl validator.FieldLevel) bool {
			_, err := cellref.ParseRange(fl.Field().String())
			return err == nil
		})
		_ = v.RegisterValidation("formula", func(fl validator.FieldLevel) bool {
			return cellref.CheckFormula(fl.Field().String()).Valid
		})
		// empty is allowed; combine with omitempty
		_ = v.RegisterValidation("cursor", func(fl validator.FieldLevel) bool {
			s := strings.TrimSpace(fl.Field().String())
			if s == "" {
				return true
			}
			_, err := pagination.DecodeCursor(s)
			return err == nil
		})
	})
	return v
}

// ValidateStruct validates a struct and returns a "CODE: message" string
// suitable for mcperr.FromText. Returns empty string when valid.
func ValidateStruct(s any) string {
	err := Validator().Struct(s)
	if err == nil {
		return ""
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return "VALIDATION: invalid inputs"
	}
	fe := ve[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("VALIDATION: %s is required", field)
	case "required_without":
		return fmt.Sprintf("VALIDATION: %s is required unless %s is supplied", field, strings.ToLower(fe.Param()))
	case "xlsx_path":
		return "UNSUPPORTED_FORMAT: path must be an Excel workbook (.xlsx, .xlsm)"
	case "a1cell":
		return fmt.Sprintf("INVALID_REFERENCE: %s %q is not a cell reference such as B2", field, fe.Value())
	case "a1range":
		return fmt.Sprintf("INVALID_REFERENCE: %s %q is not a range such as A1:C10", field, fe.Value())
	case "formula":
		return fmt.Sprintf("VALIDATION: %s must start with = and have balanced parentheses", field)
	case "cursor":
		return "CURSOR_INVALID: failed to decode cursor; restart pagination"
	case "oneof":
		return fmt.Sprintf("VALIDATION: %s must be one of [%s]", field, fe.Param())
	case "min", "max", "gte", "lte":
		return fmt.Sprintf("VALIDATION: %s must satisfy %s=%s", field, fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("VALIDATION: invalid %s", field)
}
