package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
)

// Hooks implements mcp-go server lifecycle callbacks for logging and per-tool
// call accounting.
type Hooks struct {
	logger zerolog.Logger

	mu      sync.Mutex
	started map[callKey]time.Time
	stats   map[string]*ToolStats
}

// callKey identifies an in-flight call. JSON-RPC ids are only unique within
// a session.
type callKey struct {
	session string
	id      string
}

func keyOf(ctx context.Context, id any) callKey {
	k := callKey{id: fmt.Sprint(id)}
	if s := server.ClientSessionFromContext(ctx); s != nil {
		k.session = s.SessionID()
	}
	return k
}

// ToolStats aggregates outcomes for a single tool.
type ToolStats struct {
	Calls  int
	Errors int
	Total  time.Duration
}

// NewHooks constructs a Hooks instance with the provided logger.
func NewHooks(logger zerolog.Logger) *Hooks {
	return &Hooks{
		logger:  logger,
		started: make(map[callKey]time.Time),
		stats:   make(map[string]*ToolStats),
	}
}

// Server returns the mcp-go hook set wired to h.
func (h *Hooks) Server() *server.Hooks {
	hooks := &server.Hooks{}

	hooks.AddOnRegisterSession(func(ctx context.Context, session server.ClientSession) {
		h.logger.Info().Str("session_id", session.SessionID()).Msg("session registered")
	})

	hooks.AddOnUnregisterSession(func(ctx context.Context, session server.ClientSession) {
		h.logger.Info().Str("session_id", session.SessionID()).Msg("session unregistered")
	})

	hooks.AddAfterListTools(func(ctx context.Context, id any, req *mcp.ListToolsRequest, res *mcp.ListToolsResult) {
		h.logger.Debug().Int("tools", len(res.Tools)).Msg("list_tools served")
	})

	hooks.AddBeforeCallTool(func(ctx context.Context, id any, req *mcp.CallToolRequest) {
		h.begin(keyOf(ctx, id))
	})

	hooks.AddAfterCallTool(func(ctx context.Context, id any, req *mcp.CallToolRequest, res *mcp.CallToolResult) {
		h.end(keyOf(ctx, id), req.Params.Name, res != nil && res.IsError)
	})

	hooks.AddOnError(func(ctx context.Context, id any, method mcp.MCPMethod, message any, err error) {
		h.logger.Error().Str("method", string(method)).Err(err).Msg("request error")
		// AfterCallTool does not run for calls that fail at the protocol level
		if req, ok := message.(*mcp.CallToolRequest); ok && method == mcp.MethodToolsCall && req.Params.Name != "" {
			h.end(keyOf(ctx, id), req.Params.Name, true)
		}
	})

	return hooks
}

func (h *Hooks) begin(k callKey) {
	h.mu.Lock()
	h.started[k] = time.Now()
	h.mu.Unlock()
}

func (h *Hooks) end(k callKey, tool string, failed bool) {
	h.mu.Lock()
	start, ok := h.started[k]
	delete(h.started, k)
	s := h.stats[tool]
	if s == nil {
		s = &ToolStats{}
		h.stats[tool] = s
	}
	var d time.Duration
	if ok {
		d = time.Since(start)
	}
	s.Calls++
	s.Total += d
	if failed {
		s.Errors++
	}
	h.mu.Unlock()

	evt := h.logger.Info()
	if failed {
		evt = h.logger.Warn()
	}
	evt.Str("tool", tool).Dur("duration", d).Bool("tool_error", failed).Msg("tool call served")
}

// Snapshot returns a copy of the per-tool statistics.
func (h *Hooks) Snapshot() map[string]ToolStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]ToolStats, len(h.stats))
	for k, v := range h.stats {
		out[k] = *v
	}
	return out
}
