package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rooftopsai/rooftopsgpt-sub002/internal/adapter/llm"
	"github.com/rooftopsai/rooftopsgpt-sub002/internal/adapter/pipedream"
	"github.com/rooftopsai/rooftopsgpt-sub002/internal/config"
	"github.com/rooftopsai/rooftopsgpt-sub002/internal/domain"
	store "github.com/rooftopsai/rooftopsgpt-sub002/internal/repository"
	"github.com/rooftopsai/rooftopsgpt-sub002/internal/tools"
	"github.com/rooftopsai/rooftopsgpt-sub002/policy"
	"github.com/rooftopsai/rooftopsgpt-sub002/tests/helpers"
)

const testUser = "u1"

type recordedEvent struct {
	Type domain.EventType
	Data any
}

type recordingSink struct {
	mu     sync.Mutex
	events []recordedEvent
	failOn domain.EventType
}

func (r *recordingSink) Emit(event domain.EventType, data any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{Type: event, Data: data})
	if r.failOn != "" && r.failOn == event {
		return errClientGone
	}
	return nil
}

var errClientGone = errors.New("client went away")

// types returns the event sequence without token events.
func (r *recordingSink) types() []domain.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.EventType
	for _, e := range r.events {
		if e.Type != domain.EventToken {
			out = append(out, e.Type)
		}
	}
	return out
}

func (r *recordingSink) tokens() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var text string
	for _, e := range r.events {
		if e.Type == domain.EventToken {
			text += e.Data.(domain.TokenEventData).Content
		}
	}
	return text
}

func (r *recordingSink) last() recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func (r *recordingSink) done(t *testing.T) domain.DoneEventData {
	t.Helper()
	last := r.last()
	require.Equal(t, domain.EventDone, last.Type)
	return last.Data.(domain.DoneEventData)
}

type fixture struct {
	svc     *Service
	store   *store.SQLStore
	llm     *llm.MockClient
	session *domain.Session
}

type fixtureOption func(*fixtureSetup)

type fixtureSetup struct {
	cfg    *config.Config
	source func(*store.SQLStore) *pipedream.Source
	tier   string
}

func withConfig(cfg *config.Config) fixtureOption {
	return func(s *fixtureSetup) { s.cfg = cfg }
}

func withTier(tier string) fixtureOption {
	return func(s *fixtureSetup) { s.tier = tier }
}

func withSource(build func(*store.SQLStore) *pipedream.Source) fixtureOption {
	return func(s *fixtureSetup) { s.source = build }
}

func newFixture(t *testing.T, client *llm.MockClient, opts ...fixtureOption) *fixture {
	t.Helper()
	ctx := context.Background()
	db := helpers.NewTestSQLiteStore(t)

	setup := &fixtureSetup{
		cfg:  &config.Config{MaxIterations: 5, HistoryLimit: 50},
		tier: "premium_monthly",
	}
	for _, opt := range opts {
		opt(setup)
	}

	weather := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unknown location", http.StatusNotFound)
	}))
	t.Cleanup(weather.Close)

	executor, err := tools.NewBuiltinExecutor(tools.Deps{Weather: weather.URL, CRM: db}, nil)
	require.NoError(t, err)

	require.NoError(t, db.UpsertSubscription(ctx, &domain.Subscription{UserID: testUser, Tier: setup.tier, Status: "active"}))

	session := &domain.Session{
		ID:     "s1",
		UserID: testUser,
		Name:   domain.DefaultSessionName,
		Status: domain.SessionStatusActive,
		Model:  "gpt-4o",
	}
	require.NoError(t, db.CreateSession(ctx, session))

	var source *pipedream.Source
	if setup.source != nil {
		source = setup.source(db)
	}

	return &fixture{
		svc:     New(db, client, executor, source, setup.cfg, nil, nil),
		store:   db,
		llm:     client,
		session: session,
	}
}

func (f *fixture) chat(t *testing.T, message string) *recordingSink {
	t.Helper()
	sink := &recordingSink{}
	_ = f.svc.StreamChat(context.Background(), testUser, domain.ChatRequest{SessionID: f.session.ID, Message: message}, sink)
	return sink
}

func (f *fixture) messages(t *testing.T) []domain.Message {
	t.Helper()
	msgs, err := f.store.GetMessages(context.Background(), f.session.ID, 0)
	require.NoError(t, err)
	return msgs
}

func toolCall(id, name, args string) llm.ToolCall {
	return llm.ToolCall{ID: id, Type: "function", Function: llm.ToolCallFunction{Name: name, Arguments: args}}
}

func decodeMap(t *testing.T, raw json.RawMessage) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	return m
}

// fakeRemote is a connected-app session with a fixed tool list.
type fakeRemote struct {
	mu     sync.Mutex
	tools  []pipedream.Tool
	calls  []string
	result *pipedream.CallResult
	err    error
}

func (f *fakeRemote) SelectApps(context.Context, []string) error { return nil }

func (f *fakeRemote) ListTools(context.Context) ([]pipedream.Tool, error) {
	return f.tools, nil
}

func (f *fakeRemote) CallTool(_ context.Context, name string, _ map[string]any) (*pipedream.CallResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	return f.result, f.err
}

func (f *fakeRemote) Healthy() bool { return true }
func (f *fakeRemote) Close() error  { return nil }

type fakeConnector struct{ session *fakeRemote }

func (c fakeConnector) Connect(context.Context, string, string) (pipedream.Session, error) {
	return c.session, nil
}

func newDynamicSource(t *testing.T, db *store.SQLStore, remote *fakeRemote) *pipedream.Source {
	t.Helper()
	engine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	require.NoError(t, err)
	require.NoError(t, db.UpsertDataSource(context.Background(), &domain.DataSource{UserID: testUser, AppSlug: "gmail", AppName: "Gmail", Enabled: true}))
	cache := pipedream.NewConnectionCache(fakeConnector{session: remote}, time.Minute)
	return pipedream.NewSource(cache, db, engine, nil, nil)
}
