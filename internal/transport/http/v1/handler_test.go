package v1

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rooftopsai/rooftopsgpt-sub002/internal/adapter/llm"
	"github.com/rooftopsai/rooftopsgpt-sub002/internal/config"
	"github.com/rooftopsai/rooftopsgpt-sub002/internal/domain"
	store "github.com/rooftopsai/rooftopsgpt-sub002/internal/repository"
	"github.com/rooftopsai/rooftopsgpt-sub002/internal/service"
	"github.com/rooftopsai/rooftopsgpt-sub002/internal/tools"
	"github.com/rooftopsai/rooftopsgpt-sub002/tests/helpers"
)

func newTestHandler(t *testing.T, turns ...llm.MockTurn) (*Handler, *store.SQLStore) {
	t.Helper()
	ctx := context.Background()
	db := helpers.NewTestSQLiteStore(t)

	executor, err := tools.NewBuiltinExecutor(tools.Deps{CRM: db}, nil)
	require.NoError(t, err)

	require.NoError(t, db.UpsertSubscription(ctx, &domain.Subscription{UserID: "u1", Tier: "premium_monthly", Status: "active"}))
	require.NoError(t, db.UpsertSubscription(ctx, &domain.Subscription{UserID: "free-user", Tier: "free", Status: "active"}))
	require.NoError(t, db.CreateSession(ctx, &domain.Session{
		ID:     "s1",
		UserID: "u1",
		Name:   domain.DefaultSessionName,
		Status: domain.SessionStatusActive,
		Model:  "gpt-4o",
	}))

	cfg := &config.Config{MaxIterations: 5, HistoryLimit: 50}
	svc := service.New(db, llm.NewMockClient(turns...), executor, nil, cfg, nil, nil)
	return NewHandler(svc, nil), db
}

func newContext(e *echo.Echo, method, target, body, user string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

type sseEvent struct {
	Name string
	Data string
}

func parseSSE(t *testing.T, body string) []sseEvent {
	t.Helper()
	var events []sseEvent
	var cur sseEvent
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			cur.Name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			cur.Data = strings.TrimPrefix(line, "data: ")
		case line == "":
			if cur.Name != "" {
				events = append(events, cur)
			}
			cur = sseEvent{}
		}
	}
	require.NoError(t, scanner.Err())
	return events
}

func TestStreamChatWritesEventStream(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t, llm.MockTurn{Text: "Hi! Ready to help.", Usage: llm.Usage{PromptTokens: 3, CompletionTokens: 4}})

	c, rec := newContext(e, http.MethodPost, "/api/agent/chat/stream", `{"session_id":"s1","message":"hello"}`, "u1")
	require.NoError(t, h.StreamChat(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "keep-alive", rec.Header().Get("Connection"))

	events := parseSSE(t, rec.Body.String())
	require.NotEmpty(t, events)
	assert.Equal(t, "start", events[0].Name)
	assert.JSONEq(t, `{"session_id":"s1"}`, events[0].Data)

	var text strings.Builder
	for _, ev := range events {
		if ev.Name == "token" {
			var tok domain.TokenEventData
			require.NoError(t, json.Unmarshal([]byte(ev.Data), &tok))
			text.WriteString(tok.Content)
		}
	}
	assert.Equal(t, "Hi! Ready to help.", text.String())

	last := events[len(events)-1]
	assert.Equal(t, "done", last.Name)
	var done domain.DoneEventData
	require.NoError(t, json.Unmarshal([]byte(last.Data), &done))
	assert.Equal(t, "Hi! Ready to help.", done.Response)
	assert.Equal(t, domain.TokenUsage{Input: 3, Output: 4, Total: 7}, done.TokensUsed)
	assert.Contains(t, last.Data, `"tool_calls":[]`)
}

func TestStreamChatRejectionIsAnErrorEvent(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		user    string
		message string
	}{
		{"anonymous", `{"session_id":"s1","message":"hi"}`, "", "Not authenticated"},
		{"free tier", `{"session_id":"s1","message":"hi"}`, "free-user", "Agent feature requires Premium or Business subscription"},
		{"missing message", `{"session_id":"s1"}`, "u1", "session_id and message are required"},
		{"unknown session", `{"session_id":"nope","message":"hi"}`, "u1", "Session not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			h, _ := newTestHandler(t)

			c, rec := newContext(e, http.MethodPost, "/api/agent/chat/stream", tt.body, tt.user)
			require.NoError(t, h.StreamChat(c))

			events := parseSSE(t, rec.Body.String())
			require.Len(t, events, 1)
			assert.Equal(t, "error", events[0].Name)
			assert.JSONEq(t, `{"message":"`+tt.message+`"}`, events[0].Data)
		})
	}
}

func TestStreamChatInvalidBody(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t)

	c, rec := newContext(e, http.MethodPost, "/api/agent/chat/stream", `{"session_id":`, "u1")
	require.NoError(t, h.StreamChat(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	events := parseSSE(t, rec.Body.String())
	require.Len(t, events, 1)
	assert.Equal(t, "error", events[0].Name)
	assert.JSONEq(t, `{"message":"session_id and message are required"}`, events[0].Data)
}

func TestConfirmStatusCodes(t *testing.T) {
	tests := []struct {
		name string
		body string
		user string
		want int
	}{
		{"anonymous", `{"session_id":"s1","tool_call_id":"c1","action":"confirm"}`, "", http.StatusUnauthorized},
		{"free tier", `{"session_id":"s1","tool_call_id":"c1","action":"confirm"}`, "free-user", http.StatusForbidden},
		{"missing fields", `{"session_id":"s1"}`, "u1", http.StatusBadRequest},
		{"bad action", `{"session_id":"s1","tool_call_id":"c1","action":"later"}`, "u1", http.StatusBadRequest},
		{"no pending call", `{"session_id":"s1","tool_call_id":"c1","action":"confirm"}`, "u1", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			h, _ := newTestHandler(t)

			c, rec := newContext(e, http.MethodPost, "/api/agent/confirm", tt.body, tt.user)
			require.NoError(t, h.Confirm(c))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestConfirmPendingToolCall(t *testing.T) {
	e := echo.New()
	h, db := newTestHandler(t, llm.MockTurn{ToolCalls: []llm.ToolCall{{
		ID:       "call_1",
		Type:     "function",
		Function: llm.ToolCallFunction{Name: "send_email", Arguments: `{"to":"owner@example.com","subject":"Estimate","body":"Attached."}`},
	}}})

	c, rec := newContext(e, http.MethodPost, "/api/agent/chat/stream", `{"session_id":"s1","message":"Send the estimate to the owner"}`, "u1")
	require.NoError(t, h.StreamChat(c))
	events := parseSSE(t, rec.Body.String())
	var names []string
	for _, ev := range events {
		names = append(names, ev.Name)
	}
	assert.Contains(t, names, "tool_pending")

	c, rec = newContext(e, http.MethodPost, "/api/agent/confirm", `{"session_id":"s1","tool_call_id":"call_1","action":"cancel"}`, "u1")
	require.NoError(t, h.Confirm(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"status":"cancelled","message":"Action cancelled"}`, rec.Body.String())

	exec, err := db.GetToolExecution(context.Background(), "s1", "call_1")
	require.NoError(t, err)
	assert.Equal(t, domain.ToolStatusCancelled, exec.Status)
}

func TestSessionRoutes(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t)

	c, rec := newContext(e, http.MethodPost, "/api/agent/sessions", `{"description":"Storm season"}`, "u1")
	require.NoError(t, h.CreateSession(c))
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		Session domain.Session `json:"session"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, domain.DefaultSessionName, created.Session.Name)

	c, rec = newContext(e, http.MethodPatch, "/api/agent/sessions/"+created.Session.ID, `{"name":"Storm leads"}`, "u1")
	c.SetParamNames("id")
	c.SetParamValues(created.Session.ID)
	require.NoError(t, h.UpdateSession(c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Storm leads"`)

	c, rec = newContext(e, http.MethodGet, "/api/agent/sessions?limit=10", "", "u1")
	require.NoError(t, h.ListSessions(c))
	var list struct {
		Sessions []domain.Session `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Sessions, 2)

	c, rec = newContext(e, http.MethodGet, "/api/agent/sessions/missing", "", "u1")
	c.SetParamNames("id")
	c.SetParamValues("missing")
	require.NoError(t, h.GetSession(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Session not found"}`, rec.Body.String())

	c, rec = newContext(e, http.MethodDelete, "/api/agent/sessions/"+created.Session.ID, "", "u1")
	c.SetParamNames("id")
	c.SetParamValues(created.Session.ID)
	require.NoError(t, h.DeleteSession(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	c, rec = newContext(e, http.MethodGet, "/api/agent/sessions?status=archived", "", "u1")
	require.NoError(t, h.ListSessions(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMessageRoutes(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t, llm.MockTurn{Text: "Sure thing."})

	c, _ := newContext(e, http.MethodPost, "/api/agent/chat/stream", `{"session_id":"s1","message":"hello"}`, "u1")
	require.NoError(t, h.StreamChat(c))

	c, rec := newContext(e, http.MethodGet, "/api/agent/messages?session_id=s1", "", "u1")
	require.NoError(t, h.ListMessages(c))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Messages []domain.Message `json:"messages"`
		HasMore  bool             `json:"has_more"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, domain.RoleUser, resp.Messages[0].Role)
	assert.False(t, resp.HasMore)

	c, rec = newContext(e, http.MethodGet, "/api/agent/messages", "", "u1")
	require.NoError(t, h.ListMessages(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = newContext(e, http.MethodDelete, "/api/agent/messages?session_id=s1", "", "u1")
	require.NoError(t, h.ClearMessages(c))
	assert.JSONEq(t, `{"success":true,"deleted":2}`, rec.Body.String())
}

func TestUsageAndActivityRoutes(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t, llm.MockTurn{Text: "ok", Usage: llm.Usage{PromptTokens: 1000, CompletionTokens: 500}})

	c, _ := newContext(e, http.MethodPost, "/api/agent/chat/stream", `{"session_id":"s1","message":"hello"}`, "u1")
	require.NoError(t, h.StreamChat(c))

	c, rec := newContext(e, http.MethodGet, "/api/agent/usage", "", "u1")
	require.NoError(t, h.GetUsage(c))
	require.Equal(t, http.StatusOK, rec.Code)
	var usage service.UsageSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &usage))
	assert.True(t, usage.HasAccess)
	assert.Equal(t, domain.TierPremium, usage.Tier)
	assert.Equal(t, 1500, usage.Usage.Tokens.Total)
	assert.Equal(t, 500000, usage.Limits.MaxTokensPerMonth)

	c, rec = newContext(e, http.MethodGet, "/api/agent/usage", "", "free-user")
	require.NoError(t, h.GetUsage(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	c, rec = newContext(e, http.MethodGet, "/api/agent/activity?session_id=s1&limit=5", "", "u1")
	require.NoError(t, h.ListActivity(c))
	require.Equal(t, http.StatusOK, rec.Code)
	var activity struct {
		Activity []domain.ActivityEntry `json:"activity"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &activity))
	require.NotEmpty(t, activity.Activity)
	assert.Equal(t, domain.ActivityMessageSent, activity.Activity[0].ActionType)
}

func TestTaskRoutes(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t)

	c, rec := newContext(e, http.MethodPost, "/api/agent/tasks", `{"session_id":"s1","title":"Measure roof","priority":2}`, "u1")
	require.NoError(t, h.CreateTask(c))
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		Task domain.Task `json:"task"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, domain.TaskStatusPending, created.Task.Status)
	assert.Equal(t, 2, created.Task.Priority)

	c, rec = newContext(e, http.MethodPost, "/api/agent/tasks", `{"session_id":"s1"}`, "u1")
	require.NoError(t, h.CreateTask(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"session_id and title are required"}`, rec.Body.String())

	c, rec = newContext(e, http.MethodPost, "/api/agent/tasks", `{"session_id":"other","title":"Measure roof"}`, "u1")
	require.NoError(t, h.CreateTask(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	c, rec = newContext(e, http.MethodPatch, "/api/agent/tasks", `{"task_id":"`+created.Task.ID+`","status":"in_progress"}`, "u1")
	require.NoError(t, h.UpdateTask(c))
	require.Equal(t, http.StatusOK, rec.Code)
	var updated struct {
		Task domain.Task `json:"task"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, domain.TaskStatusInProgress, updated.Task.Status)
	assert.NotNil(t, updated.Task.StartedAt)

	c, rec = newContext(e, http.MethodPatch, "/api/agent/tasks", `{"task_id":"missing","status":"completed"}`, "u1")
	require.NoError(t, h.UpdateTask(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Task not found"}`, rec.Body.String())

	c, rec = newContext(e, http.MethodGet, "/api/agent/tasks?session_id=s1&status=in_progress&limit=10&offset=0", "", "u1")
	require.NoError(t, h.ListTasks(c))
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Tasks []domain.Task `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Tasks, 1)
	assert.Equal(t, created.Task.ID, list.Tasks[0].ID)

	c, rec = newContext(e, http.MethodDelete, "/api/agent/tasks", "", "u1")
	require.NoError(t, h.DeleteTask(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = newContext(e, http.MethodDelete, "/api/agent/tasks?task_id="+created.Task.ID, "", "u1")
	require.NoError(t, h.DeleteTask(c))
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
}

func TestHealth(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t)

	c, rec := newContext(e, http.MethodGet, "/health", "", "")
	require.NoError(t, h.Health(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}
