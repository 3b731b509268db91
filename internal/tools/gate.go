package tools

import (
	"context"
	"strings"
)

// DynamicPolicy decides confirmation for dynamically discovered tools.
type DynamicPolicy interface {
	RequiresConfirmation(ctx context.Context, toolName string) bool
}

var writeKeywords = []string{"send", "create", "update", "delete", "schedule", "submit", "post"}

// Gate answers whether a tool call must wait for the user's confirmation.
type Gate struct {
	catalog *Catalog
	dynamic DynamicPolicy
}

// NewGate creates a gate. dynamic may be nil, in which case dynamic tools
// fall back to the keyword heuristic.
func NewGate(catalog *Catalog, dynamic DynamicPolicy) *Gate {
	return &Gate{catalog: catalog, dynamic: dynamic}
}

// RequiresConfirmation never fails; a panicking policy counts as "confirm".
func (g *Gate) RequiresConfirmation(ctx context.Context, name string, isDynamic bool) (required bool) {
	defer func() {
		if r := recover(); r != nil {
			required = true
		}
	}()

	if isDynamic && g.dynamic != nil {
		return g.dynamic.RequiresConfirmation(ctx, name)
	}
	if !isDynamic && g.catalog != nil {
		if d, ok := g.catalog.Lookup(name); ok {
			return d.RequiresConfirmation
		}
	}
	return LooksLikeWrite(name)
}

// LooksLikeWrite reports whether the tool name suggests a write operation.
func LooksLikeWrite(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range writeKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
