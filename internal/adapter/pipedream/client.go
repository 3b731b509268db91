// Package pipedream connects the agent to a user's connected apps through
// Pipedream's remote MCP server.
package pipedream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	clientName    = "RooftopsGPT"
	clientVersion = "1.0.0"

	selectAppsTool = "select_apps"
)

// Tool is a tool advertised by the remote server.
type Tool struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// CallResult is the raw outcome of a remote tool call.
type CallResult struct {
	Text    []string
	IsError bool
}

// Session is a live connection scoped to one user conversation.
type Session interface {
	SelectApps(ctx context.Context, slugs []string) error
	ListTools(ctx context.Context) ([]Tool, error)
	CallTool(ctx context.Context, name string, args map[string]any) (*CallResult, error)
	Healthy() bool
	Close() error
}

// Connector opens sessions.
type Connector interface {
	Connect(ctx context.Context, userID, chatID string) (Session, error)
}

// Config holds Pipedream project credentials.
type Config struct {
	ServerURL    string
	TokenURL     string
	ClientID     string
	ClientSecret string
	ProjectID    string
	Environment  string
}

// MCPConnector opens streamable HTTP MCP sessions authenticated with a
// client-credentials access token.
type MCPConnector struct {
	cfg    Config
	tokens oauth2.TokenSource
	logger *slog.Logger
}

// NewMCPConnector creates a connector. Tokens are cached and refreshed by the token source.
func NewMCPConnector(cfg Config, logger *slog.Logger) *MCPConnector {
	if logger == nil {
		logger = slog.Default()
	}
	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	return &MCPConnector{
		cfg:    cfg,
		tokens: cc.TokenSource(context.Background()),
		logger: logger,
	}
}

// Connect opens and initializes a session for the user's conversation.
func (c *MCPConnector) Connect(ctx context.Context, userID, chatID string) (Session, error) {
	s := &mcpSession{connector: c, userID: userID, chatID: chatID}
	if err := s.connect(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (c *MCPConnector) headers(userID, chatID string) (map[string]string, error) {
	token, err := c.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to get access token: %w", err)
	}
	return map[string]string{
		"Authorization":         "Bearer " + token.AccessToken,
		"x-pd-project-id":       c.cfg.ProjectID,
		"x-pd-environment":      c.cfg.Environment,
		"x-pd-external-user-id": userID,
		"x-pd-tool-mode":        "full-config",
		"x-pd-app-discovery":    "true",
		"x-pd-mcp-chat-id":      chatID,
	}, nil
}

type mcpSession struct {
	connector *MCPConnector
	userID    string
	chatID    string

	mu      sync.Mutex
	client  *client.Client
	lastErr error
}

func (s *mcpSession) connect(ctx context.Context) error {
	headers, err := s.connector.headers(s.userID, s.chatID)
	if err != nil {
		return err
	}

	c, err := client.NewStreamableHttpClient(s.connector.cfg.ServerURL, transport.WithHTTPHeaders(headers))
	if err != nil {
		return fmt.Errorf("failed to create mcp client: %w", err)
	}
	if err := c.Start(ctx); err != nil {
		_ = c.Close()
		return fmt.Errorf("failed to start mcp client: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: clientName, Version: clientVersion}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		_ = c.Close()
		return fmt.Errorf("failed to establish mcp connection: %w", err)
	}

	s.mu.Lock()
	s.client = c
	s.lastErr = nil
	s.mu.Unlock()
	return nil
}

func (s *mcpSession) reconnect(ctx context.Context) error {
	s.connector.logger.Info("reconnecting mcp session", "user_id", s.userID, "chat_id", s.chatID)
	_ = s.Close()
	return s.connect(ctx)
}

func (s *mcpSession) current(ctx context.Context) (*client.Client, error) {
	if !s.Healthy() {
		if err := s.reconnect(ctx); err != nil {
			return nil, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil, errors.New("mcp client not initialized")
	}
	return s.client, nil
}

func (s *mcpSession) fail(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

// withRetry runs fn once, and on failure reconnects and runs it once more.
func (s *mcpSession) withRetry(ctx context.Context, fn func(*client.Client) error) error {
	c, err := s.current(ctx)
	if err != nil {
		return err
	}
	if err = fn(c); err == nil {
		return nil
	}
	s.fail(err)
	if ctx.Err() != nil {
		return err
	}
	if err := s.reconnect(ctx); err != nil {
		return err
	}
	c, err = s.current(ctx)
	if err != nil {
		return err
	}
	if err := fn(c); err != nil {
		s.fail(err)
		return err
	}
	return nil
}

// SelectApps narrows the server's tool list to the given app slugs.
func (s *mcpSession) SelectApps(ctx context.Context, slugs []string) error {
	return s.withRetry(ctx, func(c *client.Client) error {
		req := mcp.CallToolRequest{}
		req.Params.Name = selectAppsTool
		req.Params.Arguments = map[string]any{"apps": slugs}
		_, err := c.CallTool(ctx, req)
		return err
	})
}

// ListTools lists the tools currently exposed for the session.
func (s *mcpSession) ListTools(ctx context.Context) ([]Tool, error) {
	var tools []Tool
	err := s.withRetry(ctx, func(c *client.Client) error {
		res, err := c.ListTools(ctx, mcp.ListToolsRequest{})
		if err != nil {
			return err
		}
		tools = tools[:0]
		for _, t := range res.Tools {
			schema := t.RawInputSchema
			if len(schema) == 0 {
				schema, _ = json.Marshal(t.InputSchema)
			}
			tools = append(tools, Tool{Name: t.Name, Description: t.Description, InputSchema: schema})
		}
		return nil
	})
	return tools, err
}

// CallTool invokes a remote tool.
func (s *mcpSession) CallTool(ctx context.Context, name string, args map[string]any) (*CallResult, error) {
	var out *CallResult
	err := s.withRetry(ctx, func(c *client.Client) error {
		req := mcp.CallToolRequest{}
		req.Params.Name = name
		req.Params.Arguments = args
		res, err := c.CallTool(ctx, req)
		if err != nil {
			return err
		}
		out = &CallResult{IsError: res.IsError}
		for _, content := range res.Content {
			out.Text = append(out.Text, contentText(content))
		}
		return nil
	})
	return out, err
}

func contentText(content mcp.Content) string {
	switch c := content.(type) {
	case mcp.TextContent:
		return c.Text
	case *mcp.TextContent:
		return c.Text
	default:
		b, _ := json.Marshal(content)
		return string(b)
	}
}

// Healthy reports whether the session has a client and no recorded failure.
func (s *mcpSession) Healthy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client != nil && s.lastErr == nil
}

// Close releases the underlying client.
func (s *mcpSession) Close() error {
	s.mu.Lock()
	c := s.client
	s.client = nil
	s.mu.Unlock()
	if c == nil {
		return nil
	}
	return c.Close()
}
