// Package tools implements the Tool Registry and the four core
// agent-callable operations (spec §4.7): heartbeat, checkpoint,
// send-message, complete. Each tool converts expected domain failures
// into an isError:true rpc.ToolResult rather than a transport error,
// per the tool error discipline in spec §4.6.
package tools

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/apmas/apmas/internal/apmaserr"
	"github.com/apmas/apmas/internal/rpc"
)

// Handler executes one tool call against its raw JSON arguments.
type Handler func(ctx context.Context, args json.RawMessage) (rpc.ToolResult, error)

// Definition describes one registrable tool.
type Definition struct {
	Name        string
	Description string
	InputSchema map[string]interface{}
	Handler     Handler
}

// Registry implements rpc.ToolCaller. Registration order is preserved
// for tools/list; duplicate names are rejected (first-registered wins).
type Registry struct {
	mu    sync.RWMutex
	defs  map[string]Definition
	order []string
	log   *zap.SugaredLogger
}

// NewRegistry constructs an empty Registry.
func NewRegistry(log *zap.SugaredLogger) *Registry {
	return &Registry{defs: make(map[string]Definition), log: log}
}

// Register adds a tool. If a tool with the same name is already
// registered, the new definition is dropped and a warning logged.
func (r *Registry) Register(def Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[def.Name]; exists {
		if r.log != nil {
			r.log.Warnw("tool already registered, keeping first registration", "name", def.Name)
		}
		return
	}
	r.defs[def.Name] = def
	r.order = append(r.order, def.Name)
}

// ListTools implements rpc.ToolCaller.
func (r *Registry) ListTools() []rpc.ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]rpc.ToolDescriptor, 0, len(r.order))
	for _, name := range r.order {
		def := r.defs[name]
		out = append(out, rpc.ToolDescriptor{Name: def.Name, Description: def.Description, InputSchema: def.InputSchema})
	}
	return out
}

// CallTool implements rpc.ToolCaller.
func (r *Registry) CallTool(ctx context.Context, name string, args json.RawMessage) (rpc.ToolResult, error) {
	r.mu.RLock()
	def, ok := r.defs[name]
	r.mu.RUnlock()
	if !ok {
		return rpc.ToolResult{}, apmaserr.NotFound("unknown tool %q", name)
	}
	return def.Handler(ctx, args)
}
