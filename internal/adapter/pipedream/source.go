package pipedream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rooftopsai/rooftopsgpt-sub002/internal/domain"
	"github.com/rooftopsai/rooftopsgpt-sub002/internal/observability"
)

const sourceName = "pipedream"

var emptySchema = json.RawMessage(`{"type":"object","properties":{}}`)

// AppLister returns the apps a user has enabled.
type AppLister interface {
	ListDataSources(ctx context.Context, userID string) ([]domain.DataSource, error)
}

// ConfirmationPolicy decides whether a remote tool needs user confirmation.
type ConfirmationPolicy interface {
	RequiresConfirmation(ctx context.Context, toolName string) bool
}

// Source exposes the user's connected apps as agent tools. Every failure is
// logged and absorbed; the worst case is an empty toolset.
type Source struct {
	cache   *ConnectionCache
	apps    AppLister
	policy  ConfirmationPolicy
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewSource creates a dynamic tool source.
func NewSource(cache *ConnectionCache, apps AppLister, policy ConfirmationPolicy, logger *slog.Logger, metrics *observability.Metrics) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{cache: cache, apps: apps, policy: policy, logger: logger, metrics: metrics}
}

// Toolset is the set of remote tools discovered for one turn.
type Toolset struct {
	source  *Source
	session Session
	userID  string
	chatID  string

	Tools         []domain.ToolDescriptor
	ConnectedApps []string
}

// Has reports whether name is one of the discovered tools.
func (t *Toolset) Has(name string) bool {
	if t == nil {
		return false
	}
	for _, tool := range t.Tools {
		if tool.Name == name {
			return true
		}
	}
	return false
}

// Invoke calls a discovered tool and shapes the outcome as a tool result.
func (t *Toolset) Invoke(ctx context.Context, name string, args json.RawMessage) json.RawMessage {
	if t == nil || t.session == nil {
		return unavailableResult(name)
	}
	return t.source.call(ctx, t.session, name, args)
}

// Discover connects for (userID, chatID), narrows the server to the user's
// enabled apps and lists the usable tools.
func (s *Source) Discover(ctx context.Context, userID, chatID string) *Toolset {
	ts := &Toolset{source: s, userID: userID, chatID: chatID}
	if s == nil || s.cache == nil {
		return ts
	}

	sources, err := s.apps.ListDataSources(ctx, userID)
	if err != nil {
		s.logger.Warn("failed to load connected apps", "user_id", userID, "error", err)
		s.metrics.DynamicSourceFailure("list")
		return ts
	}
	if len(sources) == 0 {
		return ts
	}

	slugs := make([]string, 0, len(sources))
	for _, ds := range sources {
		slugs = append(slugs, ds.AppSlug)
		name := ds.AppName
		if name == "" {
			name = ds.AppSlug
		}
		ts.ConnectedApps = append(ts.ConnectedApps, name)
	}

	session, err := s.cache.Get(ctx, userID, chatID)
	if err != nil {
		s.logger.Warn("failed to connect to pipedream", "user_id", userID, "session_id", chatID, "error", err)
		s.metrics.DynamicSourceFailure("connect")
		return ts
	}
	ts.session = session

	if err := session.SelectApps(ctx, slugs); err != nil {
		s.logger.Warn("failed to select apps", "user_id", userID, "apps", slugs, "error", err)
		s.metrics.DynamicSourceFailure("list")
		return ts
	}
	remote, err := session.ListTools(ctx)
	if err != nil {
		s.logger.Warn("failed to list pipedream tools", "user_id", userID, "error", err)
		s.metrics.DynamicSourceFailure("list")
		return ts
	}

	usable := Filter(remote)
	if len(usable) == 0 && len(remote) > 0 {
		s.logger.Info("all connected app tools require configuration", "user_id", userID)
	}
	for _, tool := range usable {
		schema := tool.InputSchema
		if len(schema) == 0 || string(schema) == "null" {
			schema = emptySchema
		}
		ts.Tools = append(ts.Tools, domain.ToolDescriptor{
			Name:                 tool.Name,
			Description:          tool.Description,
			Category:             sourceName,
			Parameters:           schema,
			RequiresConfirmation: s.RequiresConfirmation(ctx, tool.Name),
			Dynamic:              true,
		})
	}
	s.logger.Debug("discovered pipedream tools", "user_id", userID, "count", len(ts.Tools))
	return ts
}

// Invoke calls a remote tool outside of a discovered toolset, connecting
// through the cache when needed.
func (s *Source) Invoke(ctx context.Context, userID, chatID, name string, args json.RawMessage) json.RawMessage {
	if s == nil || s.cache == nil {
		return unavailableResult(name)
	}
	session, err := s.cache.Get(ctx, userID, chatID)
	if err != nil {
		s.logger.Warn("failed to connect to pipedream", "user_id", userID, "session_id", chatID, "error", err)
		s.metrics.DynamicSourceFailure("connect")
		return unavailableResult(name)
	}
	// The cached connection may be fresh, so narrow it to the user's apps again.
	if sources, err := s.apps.ListDataSources(ctx, userID); err == nil && len(sources) > 0 {
		slugs := make([]string, 0, len(sources))
		for _, ds := range sources {
			slugs = append(slugs, ds.AppSlug)
		}
		if err := session.SelectApps(ctx, slugs); err != nil {
			s.logger.Warn("failed to select apps", "user_id", userID, "apps", slugs, "error", err)
		}
	}
	return s.call(ctx, session, name, args)
}

// Evict drops the cached connection for one conversation.
func (s *Source) Evict(userID, chatID string) {
	if s != nil && s.cache != nil {
		s.cache.Evict(userID, chatID)
	}
}

// RequiresConfirmation consults the policy. Without a policy every remote
// tool needs confirmation.
func (s *Source) RequiresConfirmation(ctx context.Context, name string) bool {
	if s == nil || s.policy == nil {
		return true
	}
	return s.policy.RequiresConfirmation(ctx, name)
}

// Close releases cached connections.
func (s *Source) Close() {
	if s != nil && s.cache != nil {
		s.cache.Close()
	}
}

func (s *Source) call(ctx context.Context, session Session, name string, args json.RawMessage) json.RawMessage {
	params := map[string]any{}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &params); err != nil {
			params = map[string]any{}
		}
	}

	start := time.Now()
	res, err := session.CallTool(ctx, name, params)
	if err == nil && res.IsError {
		err = errors.New(strings.Join(res.Text, "\n"))
	}
	if err != nil {
		s.logger.Warn("pipedream tool call failed", "tool", name, "error", err)
		s.metrics.DynamicSourceFailure("invoke")
		return ShapeError(name, err.Error())
	}
	s.logger.Debug("pipedream tool call completed", "tool", name, "duration", time.Since(start))

	out, _ := json.Marshal(map[string]any{
		"status": "success",
		"source": sourceName,
		"data":   strings.Join(res.Text, "\n"),
	})
	return out
}

// Filter drops setup and discovery tools that the model should not call.
func Filter(tools []Tool) []Tool {
	out := make([]Tool, 0, len(tools))
	for _, t := range tools {
		if strings.HasPrefix(t.Name, "begin_configuration_") ||
			strings.Contains(t.Name, "_configure_") ||
			t.Name == selectAppsTool {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Suggestion picks the remediation hint for a remote error message.
func Suggestion(message string) string {
	msg := strings.ToLower(message)
	switch {
	case strings.Contains(msg, "not found"), strings.Contains(msg, "-32602"), strings.Contains(msg, "unsupported"):
		return "This tool may require additional setup. Please check your Connected Apps settings to ensure the app is properly authorized."
	case strings.Contains(msg, "unauthorized"), strings.Contains(msg, "401"):
		return "The app connection may have expired. Please reconnect the app in your Connected Apps settings."
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "429"):
		return "The service is rate limited. Please try again in a moment."
	default:
		return "If the issue persists, try disconnecting and reconnecting the app in Connected Apps settings."
	}
}

// ShapeError builds the structured error result for a failed remote call.
func ShapeError(toolName, message string) json.RawMessage {
	return errorResult(toolName, message, Suggestion(message))
}

func unavailableResult(name string) json.RawMessage {
	return errorResult(name,
		fmt.Sprintf("The tool %q requires a connected app that isn't currently available.", name),
		"Please connect the required app in your Connected Apps settings to use this feature.")
}

func errorResult(toolName, message, suggestion string) json.RawMessage {
	out, _ := json.Marshal(map[string]any{
		"status":     "error",
		"source":     sourceName,
		"message":    message,
		"suggestion": suggestion,
		"toolName":   toolName,
	})
	return out
}
