package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/tmc/langchaingo/llms"
)

// ErrUnknownTool is returned by Call for names that were never registered.
var ErrUnknownTool = errors.New("registry: unknown tool")

// Entry pairs a tool definition with its handler.
type Entry struct {
	Tool    mcp.Tool
	Handler server.ToolHandlerFunc
	// Mutates marks tools that write to disk.
	Mutates bool
}

// Builder collects tool entries before the registry is frozen.
type Builder struct {
	entries map[string]Entry
	errs    []error
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{entries: map[string]Entry{}}
}

// Add registers a tool. Duplicate or empty names are reported by Build.
func (b *Builder) Add(tool mcp.Tool, handler server.ToolHandlerFunc, mutates bool) *Builder {
	switch {
	case tool.Name == "":
		b.errs = append(b.errs, errors.New("registry: tool with empty name"))
	case handler == nil:
		b.errs = append(b.errs, fmt.Errorf("registry: tool %q has no handler", tool.Name))
	default:
		if _, dup := b.entries[tool.Name]; dup {
			b.errs = append(b.errs, fmt.Errorf("registry: duplicate tool %q", tool.Name))
			return b
		}
		b.entries[tool.Name] = Entry{Tool: tool, Handler: handler, Mutates: mutates}
	}
	return b
}

// Build freezes the collected entries into a Registry.
func (b *Builder) Build() (*Registry, error) {
	if err := errors.Join(b.errs...); err != nil {
		return nil, err
	}
	entries := make(map[string]Entry, len(b.entries))
	names := make([]string, 0, len(b.entries))
	for name, e := range b.entries {
		entries[name] = e
		names = append(names, name)
	}
	sort.Strings(names)
	return &Registry{entries: entries, names: names}, nil
}

// Registry is an immutable set of tools. It is safe for concurrent use.
type Registry struct {
	entries map[string]Entry
	names   []string
}

// Get returns a tool entry by name when present.
func (r *Registry) Get(name string) (Entry, bool) {
	e, ok := r.entries[name]
	return e, ok
}

// Names returns tool names in sorted order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Tools returns a stable-sorted list of registered tool definitions.
func (r *Registry) Tools(ctx context.Context) ([]mcp.Tool, error) {
	tools := make([]mcp.Tool, 0, len(r.names))
	for _, name := range r.names {
		tools = append(tools, r.entries[name].Tool)
	}
	return tools, nil
}

// Mount adds every tool to the MCP server.
func (r *Registry) Mount(s *server.MCPServer) {
	st := make([]server.ServerTool, 0, len(r.names))
	for _, name := range r.names {
		e := r.entries[name]
		st = append(st, server.ServerTool{Tool: e.Tool, Handler: e.Handler})
	}
	s.AddTools(st...)
}

// Call dispatches directly to a tool handler with the given arguments,
// bypassing the transport. Server middleware is not applied.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return e.Handler(ctx, req)
}

// TokenCost estimates how many tokens the tool catalog adds to a model's
// context when advertised via tools/list.
func (r *Registry) TokenCost(model string) (int, error) {
	tools, _ := r.Tools(context.Background())
	b, err := json.Marshal(tools)
	if err != nil {
		return 0, err
	}
	return llms.CountTokens(model, string(b)), nil
}

// ModelContextSize exposes the model's context window when known.
func (r *Registry) ModelContextSize(modelName string) int {
	return llms.GetModelContextSize(modelName)
}
