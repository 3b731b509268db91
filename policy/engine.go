// Package policy evaluates the rego policy that decides whether a
// connected-app action needs the user's confirmation before it runs.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/rego"
)

const (
	DecisionAllow               = "allow"
	DecisionRequireConfirmation = "require_confirmation"
)

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.tool_policy.decision"),
		rego.Module("tool_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Evaluate returns the policy decision for the input document.
// Input keys: tool_name, app, user_id.
func (e *Engine) Evaluate(ctx context.Context, input map[string]interface{}) (string, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return DecisionAllow, nil
	}

	if s, ok := results[0].Expressions[0].Value.(string); ok {
		return s, nil
	}
	return DecisionAllow, nil
}

// RequiresConfirmation evaluates the policy for a tool name. Evaluation
// failures fail closed.
func (e *Engine) RequiresConfirmation(ctx context.Context, toolName string) bool {
	decision, err := e.Evaluate(ctx, map[string]interface{}{"tool_name": toolName})
	if err != nil {
		return true
	}
	return decision == DecisionRequireConfirmation
}

// DefaultPolicy classifies connected-app actions by the verbs in their names.
// Read-only verbs win over mutating ones, so "gmail-find-email" is allowed
// while "gmail-send-email" needs confirmation.
const DefaultPolicy = `
package tool_policy

import rego.v1

default decision := "allow"

mutating_verbs := {
	"send", "create", "update", "delete", "remove", "post", "reply",
	"schedule", "submit", "upload", "archive", "move", "add", "invite",
	"cancel", "approve", "publish", "transfer", "pay", "charge",
}

read_only_verbs := {
	"get", "list", "find", "search", "read", "retrieve", "fetch", "lookup", "query", "describe",
}

words contains w if {
	some w in regex.split("[-_ .]+", lower(input.tool_name))
	w != ""
}

read_only if {
	some w in words
	read_only_verbs[w]
}

mutating if {
	some w in words
	mutating_verbs[w]
}

decision := "require_confirmation" if {
	mutating
	not read_only
}
`
