package mcperr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Code defines a canonical MCP error code used across tools.
type Code string

const (
	// Validation & Input
	Validation       Code = "VALIDATION"
	InvalidReference Code = "INVALID_REFERENCE"
	NotFound         Code = "NOT_FOUND"
	AlreadyExists    Code = "ALREADY_EXISTS"
	CursorInvalid    Code = "CURSOR_INVALID"

	// Capability
	UnsupportedOperation Code = "UNSUPPORTED_OPERATION"
	PermissionDenied     Code = "PERMISSION_DENIED"
	UnsupportedFormat    Code = "UNSUPPORTED_FORMAT"

	// Resource & Limits
	BusyResource  Code = "BUSY_RESOURCE"
	Timeout       Code = "TIMEOUT"
	LimitExceeded Code = "LIMIT_EXCEEDED"

	// IO
	OpenFailed  Code = "OPEN_FAILED"
	ReadFailed  Code = "READ_FAILED"
	WriteFailed Code = "WRITE_FAILED"
)

// Entry documents a code's standard message and next steps.
type Entry struct {
	Code      Code
	Message   string
	NextSteps []string
}

// catalog maps canonical codes to guidance. Messages can be overridden per error.
var catalog = map[Code]Entry{
	Validation:       {Code: Validation, Message: "invalid inputs", NextSteps: []string{"Correct the inputs per schema and retry"}},
	InvalidReference: {Code: InvalidReference, Message: "invalid cell or range reference", NextSteps: []string{"Use uppercase A1 notation such as B2 or A1:C10", "Call validate_excel_range to check a reference"}},
	NotFound:         {Code: NotFound, Message: "resource not found", NextSteps: []string{"Call get_workbook_metadata to list sheets", "Check case and spacing"}},
	AlreadyExists:    {Code: AlreadyExists, Message: "resource already exists", NextSteps: []string{"Choose a different name or pass overwrite=true"}},
	CursorInvalid:    {Code: CursorInvalid, Message: "cursor is invalid for current context", NextSteps: []string{"Restart pagination from the first page", "Avoid edits between pages"}},

	UnsupportedOperation: {Code: UnsupportedOperation, Message: "operation is not supported by this server", NextSteps: []string{"Perform the operation in Excel directly"}},
	PermissionDenied:     {Code: PermissionDenied, Message: "insufficient permissions to access path", NextSteps: []string{"Choose a path under an allowed directory"}},
	UnsupportedFormat:    {Code: UnsupportedFormat, Message: "unsupported workbook format", NextSteps: []string{"Convert to .xlsx and retry"}},

	BusyResource:  {Code: BusyResource, Message: "resource is busy", NextSteps: []string{"Retry after a short delay"}},
	Timeout:       {Code: Timeout, Message: "operation exceeded configured time limit", NextSteps: []string{"Narrow the range or use pagination"}},
	LimitExceeded: {Code: LimitExceeded, Message: "operation exceeded configured limits", NextSteps: []string{"Narrow the range or split into batches"}},

	OpenFailed:  {Code: OpenFailed, Message: "failed to open workbook", NextSteps: []string{"Verify path, permissions, and format"}},
	ReadFailed:  {Code: ReadFailed, Message: "failed to read range", NextSteps: []string{"Verify A1 range and retry"}},
	WriteFailed: {Code: WriteFailed, Message: "failed to write workbook", NextSteps: []string{"Check the file is not open elsewhere", "Validate range and values"}},
}

// normalize builds a standard error string including next steps for MCP clients that
// surface only a message string. Format: "CODE: message" followed by a guidance tail.
func normalize(code Code, msg string) string {
	base := strings.TrimSpace(msg)
	e, ok := catalog[code]
	if !ok {
		if base == "" {
			return string(code)
		}
		return fmt.Sprintf("%s: %s", string(code), base)
	}
	if base == "" {
		base = e.Message
	}
	guidance := ""
	if len(e.NextSteps) > 0 {
		guidance = " | nextSteps: " + strings.Join(e.NextSteps, "; ")
	}
	return fmt.Sprintf("%s: %s%s", e.Code, base, guidance)
}

// FromText parses a "CODE: message" string, enriches it with catalog guidance,
// and returns an MCP tool error result.
func FromText(text string) *mcp.CallToolResult {
	t := strings.TrimSpace(text)
	if t == "" {
		return mcp.NewToolResultError(normalize(Validation, ""))
	}
	code, msg, _ := strings.Cut(t, ":")
	return mcp.NewToolResultError(normalize(Code(strings.TrimSpace(code)), strings.TrimSpace(msg)))
}

// New returns an MCP error result for a given code and optional message override.
func New(code Code, message string) *mcp.CallToolResult {
	return mcp.NewToolResultError(normalize(code, message))
}

// Wrapf formats details and returns an MCP error result for the code.
func Wrapf(code Code, format string, args ...any) *mcp.CallToolResult {
	return mcp.NewToolResultError(normalize(code, fmt.Sprintf(format, args...)))
}

// Error carries a Code through ordinary error returns so that a handler can
// translate it into a tool result at the boundary.
type Error struct {
	Code Code
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return e.Msg + ": " + e.Err.Error()
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf returns an *Error with a formatted message.
func Errorf(code Code, format string, args ...any) error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches code to err. A nil err yields nil.
func Wrap(code Code, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Msg: msg, Err: err}
}

// CodeOf returns the code carried by err, or fallback when none is present.
func CodeOf(err error, fallback Code) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return fallback
}

// Result converts err into an MCP error result, using fallback when err
// carries no code.
func Result(err error, fallback Code) *mcp.CallToolResult {
	return New(CodeOf(err, fallback), err.Error())
}

// IsInvalidSheet returns true if an error matches common excelize "sheet does not exist" messages.
func IsInvalidSheet(err error) bool {
	if err == nil {
		return false
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "doesn't exist") || strings.Contains(low, "does not exist")
}
