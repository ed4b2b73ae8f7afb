package registry

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/shmaxi/excel-mcp-server/pkg/mcperr"
)

// ReadOnlyFilter hides mutating tools from discovery and rejects calls to
// them when the server runs read-only.
type ReadOnlyFilter struct {
	reg      *Registry
	readOnly bool
}

// NewReadOnlyFilter builds a filter over reg.
func NewReadOnlyFilter(reg *Registry, readOnly bool) *ReadOnlyFilter {
	return &ReadOnlyFilter{reg: reg, readOnly: readOnly}
}

func (f *ReadOnlyFilter) blocked(name string) bool {
	if !f.readOnly {
		return false
	}
	e, ok := f.reg.Get(name)
	return ok && e.Mutates
}

// FilterTools implements server tool filtering semantics.
func (f *ReadOnlyFilter) FilterTools(ctx context.Context, tools []mcp.Tool) []mcp.Tool {
	if !f.readOnly {
		return tools
	}
	out := make([]mcp.Tool, 0, len(tools))
	for _, t := range tools {
		if f.blocked(t.Name) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// ToolMiddleware rejects calls to mutating tools in read-only mode.
func (f *ReadOnlyFilter) ToolMiddleware(next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if f.blocked(req.Params.Name) {
			return mcperr.Wrapf(mcperr.PermissionDenied, "%s is disabled: server is read-only", req.Params.Name), nil
		}
		return next(ctx, req)
	}
}
