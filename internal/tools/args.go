package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

func decodeArgs(args json.RawMessage, v any) error {
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

type workspaceKey struct{}

// WithWorkspace attaches the session's workspace to ctx for CRM tools.
func WithWorkspace(ctx context.Context, workspaceID string) context.Context {
	return context.WithValue(ctx, workspaceKey{}, workspaceID)
}

// WorkspaceFromContext returns the workspace attached by WithWorkspace.
func WorkspaceFromContext(ctx context.Context) string {
	id, _ := ctx.Value(workspaceKey{}).(string)
	return id
}
