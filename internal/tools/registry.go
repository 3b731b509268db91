package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Handler executes one built-in tool.
type Handler interface {
	Execute(ctx context.Context, args json.RawMessage) (json.RawMessage, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, args json.RawMessage) (json.RawMessage, error)

// Execute calls f.
func (f HandlerFunc) Execute(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	return f(ctx, args)
}

// Registry stores tool handlers keyed by tool name.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty tool handler registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register adds a new handler for a tool name.
func (r *Registry) Register(toolName string, h Handler) error {
	if toolName == "" {
		return fmt.Errorf("tool name is required")
	}
	if h == nil {
		return fmt.Errorf("handler is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[toolName]; exists {
		return fmt.Errorf("handler already registered for %s", toolName)
	}
	r.handlers[toolName] = h
	return nil
}

// MustRegister adds a handler or panics.
func (r *Registry) MustRegister(toolName string, h Handler) {
	if err := r.Register(toolName, h); err != nil {
		panic(err)
	}
}

// Lookup returns the handler for the tool name.
func (r *Registry) Lookup(toolName string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[toolName]
	return h, ok
}

// Names returns the registered tool names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	return names
}
