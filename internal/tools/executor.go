package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
)

// Executor runs built-in tools. Execute never returns a Go error: every
// failure becomes a {"status":"error"} result the model can read.
type Executor struct {
	catalog  *Catalog
	registry *Registry
	logger   *slog.Logger
}

// NewExecutor creates an executor over a catalog and registry.
func NewExecutor(catalog *Catalog, registry *Registry, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{catalog: catalog, registry: registry, logger: logger}
}

// Catalog returns the executor's catalog.
func (e *Executor) Catalog() *Catalog {
	return e.catalog
}

// Execute validates args and dispatches to the registered handler.
func (e *Executor) Execute(ctx context.Context, name string, args json.RawMessage) (result json.RawMessage) {
	h, ok := e.registry.Lookup(name)
	if !ok {
		return ErrorResult("Unknown tool: " + name)
	}
	if err := e.catalog.Validate(name, args); err != nil {
		return ErrorResult(err.Error())
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("tool handler panicked", "tool", name, "panic", r, "stack", string(debug.Stack()))
			result = ErrorResult(fmt.Sprintf("tool %s failed: %v", name, r))
		}
	}()

	out, err := h.Execute(ctx, args)
	if err != nil {
		e.logger.Warn("tool execution failed", "tool", name, "error", err)
		return ErrorResult(err.Error())
	}
	if len(out) == 0 {
		return json.RawMessage(`{"status":"success"}`)
	}
	return out
}

// ErrorResult builds the standard error result.
func ErrorResult(message string) json.RawMessage {
	out, _ := json.Marshal(map[string]string{"status": "error", "error": message})
	return out
}

// IsErrorResult reports whether a result carries status "error".
func IsErrorResult(result json.RawMessage) bool {
	var probe struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(result, &probe); err != nil {
		return false
	}
	return probe.Status == "error"
}

func marshalResult(v any) (json.RawMessage, error) {
	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return out, nil
}
