// Package tools implements the Excel MCP tool handlers. Each handler binds a
// typed input, validates it, resolves every cell reference up front and then
// runs against a workbook through workbooks.Manager.
package tools

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/sahilm/fuzzy"
	"github.com/shmaxi/excel-mcp-server/internal/cellref"
	"github.com/shmaxi/excel-mcp-server/internal/registry"
	"github.com/shmaxi/excel-mcp-server/internal/runtime"
	"github.com/shmaxi/excel-mcp-server/internal/security"
	"github.com/shmaxi/excel-mcp-server/internal/workbooks"
	"github.com/shmaxi/excel-mcp-server/pkg/mcperr"
	"github.com/shmaxi/excel-mcp-server/pkg/pagination"
	"github.com/shmaxi/excel-mcp-server/pkg/validation"
	"github.com/xuri/excelize/v2"
)

var (
	// ErrUnsupported marks operations this server deliberately does not perform.
	ErrUnsupported = errors.New("operation not supported")
	// ErrAlreadyExists marks a worksheet name collision.
	ErrAlreadyExists = errors.New("already exists")
	// ErrLimitExceeded marks requests touching more cells than configured.
	ErrLimitExceeded = errors.New("limit exceeded")
)

// NotFoundError reports a missing worksheet, with close matches when any.
type NotFoundError struct {
	Kind        string
	Name        string
	Suggestions []string
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("%s %q not found", e.Kind, e.Name)
	if len(e.Suggestions) > 0 {
		quoted := make([]string, len(e.Suggestions))
		for i, s := range e.Suggestions {
			quoted[i] = strconv.Quote(s)
		}
		msg += "; did you mean " + strings.Join(quoted, ", ") + "?"
	}
	return msg
}

// Deps are the collaborators shared by all handlers.
type Deps struct {
	Workbooks *workbooks.Manager
	Limits    runtime.Limits
}

type handlers struct {
	wb     *workbooks.Manager
	limits runtime.Limits
}

// Register adds every Excel tool to b.
func Register(b *registry.Builder, d Deps) {
	h := &handlers{wb: d.Workbooks, limits: d.Limits}
	h.registerWorkbook(b)
	h.registerData(b)
	h.registerFormat(b)
	h.registerFormulas(b)
	h.registerWorksheets(b)
	h.registerRanges(b)
	h.registerUnsupported(b)
}

// typed adapts fn into a tool handler: arguments are bound and validated,
// errors are translated into catalog results with fallback as the default
// code, and successful outputs become structured results.
func typed[In, Out any](fallback mcperr.Code, fn func(context.Context, In) (Out, string, error)) server.ToolHandlerFunc {
	return mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in In) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcperr.FromText(msg), nil
		}
		out, summary, err := fn(ctx, in)
		if err != nil {
			zerolog.Ctx(ctx).Debug().Err(err).Msg("tool failed")
			return toolError(err, fallback), nil
		}
		return mcp.NewToolResultStructured(out, summary), nil
	})
}

// toolError maps err onto the error catalog. A code carried by an
// *mcperr.Error wins over the sentinel classification.
func toolError(err error, fallback mcperr.Code) *mcp.CallToolResult {
	return mcperr.Result(err, classify(err, fallback))
}

func classify(err error, fallback mcperr.Code) mcperr.Code {
	var notFound *NotFoundError
	switch {
	case errors.Is(err, cellref.ErrInvalidReference):
		return mcperr.InvalidReference
	case errors.As(err, &notFound), errors.Is(err, security.ErrNotFound):
		return mcperr.NotFound
	case errors.Is(err, ErrUnsupported):
		return mcperr.UnsupportedOperation
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, workbooks.ErrExists):
		return mcperr.AlreadyExists
	case errors.Is(err, ErrLimitExceeded):
		return mcperr.LimitExceeded
	case errors.Is(err, security.ErrNotAllowed):
		return mcperr.PermissionDenied
	case errors.Is(err, security.ErrUnsupportedExtension):
		return mcperr.UnsupportedFormat
	case errors.Is(err, workbooks.ErrBusy):
		return mcperr.BusyResource
	case errors.Is(err, context.DeadlineExceeded):
		return mcperr.Timeout
	case errors.Is(err, pagination.ErrStale):
		return mcperr.CursorInvalid
	case mcperr.IsInvalidSheet(err):
		return mcperr.NotFound
	}
	return fallback
}

// requireSheet fails with a NotFoundError when sheet is absent from f.
func requireSheet(f *excelize.File, sheet string) error {
	if hasSheet(f, sheet) {
		return nil
	}
	return &NotFoundError{Kind: "worksheet", Name: sheet, Suggestions: suggestSheets(f.GetSheetList(), sheet)}
}

func hasSheet(f *excelize.File, sheet string) bool {
	idx, err := f.GetSheetIndex(sheet)
	return err == nil && idx >= 0
}

// suggestSheets returns up to three sheet names resembling name.
func suggestSheets(sheets []string, name string) []string {
	const limit = 3
	var out []string
	seen := map[string]bool{}
	add := func(s string) {
		if !seen[s] && len(out) < limit {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, m := range fuzzy.Find(name, sheets) {
		add(m.Str)
	}
	// the sheet may be a subsequence of what was asked for ("Data" for "Data 2")
	for _, s := range sheets {
		if len(fuzzy.Find(s, []string{name})) > 0 {
			add(s)
		}
	}
	for _, s := range sheets {
		if strings.EqualFold(s, name) {
			add(s)
		}
	}
	return out
}

// checkCells enforces the per-operation cell budget.
func (h *handlers) checkCells(n int) error {
	if h.limits.MaxCellsPerOp > 0 && n > h.limits.MaxCellsPerOp {
		return fmt.Errorf("%w: %d cells requested, max %d per operation", ErrLimitExceeded, n, h.limits.MaxCellsPerOp)
	}
	return nil
}

// shouldPoll reports whether ctx should be checked at iteration i.
func shouldPoll(i int) bool { return i&1023 == 0 }

// result is embedded in outputs of mutating tools.
type result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func ok(format string, args ...any) result {
	return result{Success: true, Message: fmt.Sprintf(format, args...)}
}
