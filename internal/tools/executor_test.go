package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExecutor(t *testing.T, register func(*Registry)) *Executor {
	t.Helper()
	registry := NewRegistry()
	register(registry)
	return NewExecutor(MustLoadCatalog(), registry, nil)
}

func resultMap(t *testing.T, raw json.RawMessage) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()
	h := HandlerFunc(func(context.Context, json.RawMessage) (json.RawMessage, error) { return nil, nil })

	require.NoError(t, r.Register("web_search", h))
	assert.Error(t, r.Register("web_search", h))
	assert.Error(t, r.Register("", h))
	assert.Error(t, r.Register("other", nil))
	assert.Panics(t, func() { r.MustRegister("web_search", h) })

	_, ok := r.Lookup("web_search")
	assert.True(t, ok)
	assert.Equal(t, []string{"web_search"}, r.Names())
}

func TestExecutorUnknownTool(t *testing.T) {
	exec := newTestExecutor(t, func(*Registry) {})
	got := resultMap(t, exec.Execute(context.Background(), "launch_rocket", nil))
	assert.Equal(t, "error", got["status"])
	assert.Equal(t, "Unknown tool: launch_rocket", got["error"])
}

func TestExecutorConvertsFailures(t *testing.T) {
	exec := newTestExecutor(t, func(r *Registry) {
		r.MustRegister("web_search", HandlerFunc(func(context.Context, json.RawMessage) (json.RawMessage, error) {
			return nil, errors.New("upstream exploded")
		}))
		r.MustRegister("draft_email", HandlerFunc(func(context.Context, json.RawMessage) (json.RawMessage, error) {
			panic("nil map")
		}))
		r.MustRegister("check_calendar", HandlerFunc(func(context.Context, json.RawMessage) (json.RawMessage, error) {
			return nil, nil
		}))
	})
	ctx := context.Background()

	got := resultMap(t, exec.Execute(ctx, "web_search", json.RawMessage(`{"query":"x"}`)))
	assert.Equal(t, map[string]any{"status": "error", "error": "upstream exploded"}, got)

	got = resultMap(t, exec.Execute(ctx, "draft_email", json.RawMessage(`{"to":"a@b.c","subject":"hi"}`)))
	assert.Equal(t, "error", got["status"])
	assert.Contains(t, got["error"], "nil map")

	got = resultMap(t, exec.Execute(ctx, "web_search", json.RawMessage(`{}`)))
	assert.Equal(t, "error", got["status"])
	assert.Contains(t, got["error"], "invalid arguments")

	assert.JSONEq(t, `{"status":"success"}`, string(exec.Execute(ctx, "check_calendar", json.RawMessage(`{"start_date":"2026-01-01"}`))))
}

func TestIsErrorResult(t *testing.T) {
	assert.True(t, IsErrorResult(ErrorResult("x")))
	assert.False(t, IsErrorResult(json.RawMessage(`{"status":"success"}`)))
	assert.False(t, IsErrorResult(json.RawMessage(`not json`)))
}
