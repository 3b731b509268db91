package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rooftopsai/rooftopsgpt-sub002/internal/domain"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func createSession(t *testing.T, store *SQLStore, id, userID string) *domain.Session {
	t.Helper()
	session := &domain.Session{
		ID:     id,
		UserID: userID,
		Name:   domain.DefaultSessionName,
		Status: domain.SessionStatusActive,
		Model:  "gpt-4o",
	}
	if err := store.CreateSession(context.Background(), session); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	return session
}

func TestSQLiteStoreSessionScopedToOwner(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	createSession(t, store, "s1", "u1")

	got, err := store.GetSession(ctx, "s1", "u1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got == nil || got.Name != domain.DefaultSessionName || got.Status != domain.SessionStatusActive {
		t.Fatalf("unexpected session: %+v", got)
	}

	other, err := store.GetSession(ctx, "s1", "u2")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if other != nil {
		t.Fatalf("expected nil session for another user, got %+v", other)
	}
}

func TestSQLiteStoreSessionCounters(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	createSession(t, store, "s1", "u1")

	if err := store.AddSessionTokens(ctx, "s1", 120); err != nil {
		t.Fatalf("AddSessionTokens failed: %v", err)
	}
	if err := store.AddSessionTokens(ctx, "s1", 30); err != nil {
		t.Fatalf("AddSessionTokens failed: %v", err)
	}
	if err := store.IncrementSessionTasks(ctx, "s1", 2); err != nil {
		t.Fatalf("IncrementSessionTasks failed: %v", err)
	}
	if err := store.RenameSession(ctx, "s1", "Weather in Dallas"); err != nil {
		t.Fatalf("RenameSession failed: %v", err)
	}

	got, _ := store.GetSession(ctx, "s1", "u1")
	if got.TotalTokensUsed != 150 {
		t.Fatalf("expected 150 tokens, got %d", got.TotalTokensUsed)
	}
	if got.TotalTasksCompleted != 2 {
		t.Fatalf("expected 2 tasks, got %d", got.TotalTasksCompleted)
	}
	if got.Name != "Weather in Dallas" {
		t.Fatalf("unexpected name %q", got.Name)
	}
}

func TestSQLiteStoreListSessionsFilters(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	createSession(t, store, "s1", "u1")
	s2 := createSession(t, store, "s2", "u1")
	createSession(t, store, "s3", "u2")

	s2.Status = domain.SessionStatusCompleted
	if err := store.UpdateSession(ctx, s2); err != nil {
		t.Fatalf("UpdateSession failed: %v", err)
	}

	all, err := store.ListSessions(ctx, "u1", domain.SessionFilter{})
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(all))
	}
	if all[0].ID != "s2" {
		t.Fatalf("expected most recently updated first, got %s", all[0].ID)
	}

	completed, err := store.ListSessions(ctx, "u1", domain.SessionFilter{Status: domain.SessionStatusCompleted})
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(completed) != 1 || completed[0].ID != "s2" {
		t.Fatalf("unexpected filtered sessions: %+v", completed)
	}
}

func TestSQLiteStoreMessagesRecentAscending(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	createSession(t, store, "s1", "u1")

	base := time.Now().UTC().Add(-time.Hour)
	for i, content := range []string{"one", "two", "three", "four"} {
		msg := &domain.Message{
			ID:        "m" + content,
			SessionID: "s1",
			UserID:    "u1",
			Role:      domain.RoleUser,
			Content:   content,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := store.CreateMessage(ctx, msg); err != nil {
			t.Fatalf("CreateMessage failed: %v", err)
		}
	}

	messages, err := store.GetMessages(ctx, "s1", 3)
	if err != nil {
		t.Fatalf("GetMessages failed: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(messages))
	}
	if messages[0].Content != "two" || messages[2].Content != "four" {
		t.Fatalf("unexpected order: %s, %s, %s", messages[0].Content, messages[1].Content, messages[2].Content)
	}
}

func TestSQLiteStoreToolMessageRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	createSession(t, store, "s1", "u1")

	calls := json.RawMessage(`[{"id":"call_1","type":"function","function":{"name":"schedule_appointment","arguments":"{}"}}]`)
	if err := store.CreateMessage(ctx, &domain.Message{
		ID: "m1", SessionID: "s1", UserID: "u1", Role: domain.RoleAssistant, ToolCalls: calls,
	}); err != nil {
		t.Fatalf("CreateMessage failed: %v", err)
	}
	if err := store.CreateMessage(ctx, &domain.Message{
		ID: "m2", SessionID: "s1", UserID: "u1", Role: domain.RoleTool, ToolCallID: "call_1",
		Content: `{"status":"pending_confirmation"}`, CreatedAt: time.Now().UTC().Add(time.Millisecond),
	}); err != nil {
		t.Fatalf("CreateMessage failed: %v", err)
	}

	updated, err := store.UpdateToolMessage(ctx, "s1", "call_1", `{"status":"cancelled"}`)
	if err != nil {
		t.Fatalf("UpdateToolMessage failed: %v", err)
	}
	if !updated {
		t.Fatalf("expected tool message to be updated")
	}

	messages, err := store.GetMessages(ctx, "s1", 50)
	if err != nil {
		t.Fatalf("GetMessages failed: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[0].Content != "" || string(messages[0].ToolCalls) != string(calls) {
		t.Fatalf("unexpected assistant message: %+v", messages[0])
	}
	if messages[1].ToolCallID != "call_1" || messages[1].Content != `{"status":"cancelled"}` {
		t.Fatalf("unexpected tool message: %+v", messages[1])
	}
}

func TestSQLiteStoreDeleteSessionCascades(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	createSession(t, store, "s1", "u1")

	if err := store.CreateMessage(ctx, &domain.Message{ID: "m1", SessionID: "s1", UserID: "u1", Role: domain.RoleUser, Content: "hi"}); err != nil {
		t.Fatalf("CreateMessage failed: %v", err)
	}
	if err := store.CreateToolExecution(ctx, &domain.ToolExecution{
		ID: "te1", SessionID: "s1", UserID: "u1", ToolCallID: "call_1", ToolName: "web_search", Status: domain.ToolStatusCompleted,
	}); err != nil {
		t.Fatalf("CreateToolExecution failed: %v", err)
	}
	if err := store.CreateActivity(ctx, &domain.ActivityEntry{
		ID: "a1", UserID: "u1", SessionID: "s1", ActionType: domain.ActivityMessageSent, Title: "Message Sent",
	}); err != nil {
		t.Fatalf("CreateActivity failed: %v", err)
	}

	deleted, err := store.DeleteSession(ctx, "s1", "u2")
	if err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if deleted {
		t.Fatalf("another user must not delete the session")
	}

	deleted, err = store.DeleteSession(ctx, "s1", "u1")
	if err != nil || !deleted {
		t.Fatalf("DeleteSession failed: deleted=%v err=%v", deleted, err)
	}

	messages, _ := store.GetMessages(ctx, "s1", 10)
	if len(messages) != 0 {
		t.Fatalf("expected messages to cascade, got %d", len(messages))
	}
	exec, _ := store.GetToolExecution(ctx, "s1", "call_1")
	if exec != nil {
		t.Fatalf("expected tool execution to cascade")
	}
	activity, _ := store.ListActivity(ctx, "u1", "", 10)
	if len(activity) != 0 {
		t.Fatalf("expected activity to cascade, got %d", len(activity))
	}
}

func TestSQLiteStoreToolExecutionLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	createSession(t, store, "s1", "u1")

	exec := &domain.ToolExecution{
		ID:         "te1",
		SessionID:  "s1",
		UserID:     "u1",
		ToolCallID: "call_1",
		ToolName:   "send_email",
		ToolInput:  json.RawMessage(`{"to":"a@b.com"}`),
		Status:     domain.ToolStatusPending,
		CreatedAt:  time.Now().UTC().Add(-48 * time.Hour),
	}
	if err := store.CreateToolExecution(ctx, exec); err != nil {
		t.Fatalf("CreateToolExecution failed: %v", err)
	}

	expired, err := store.ListExpiredToolExecutions(ctx, time.Now().Add(-24*time.Hour), 10)
	if err != nil {
		t.Fatalf("ListExpiredToolExecutions failed: %v", err)
	}
	if len(expired) != 1 || expired[0].ID != "te1" {
		t.Fatalf("unexpected expired executions: %+v", expired)
	}

	claimed, err := store.ClaimToolExecution(ctx, "te1")
	if err != nil || !claimed {
		t.Fatalf("ClaimToolExecution failed: ok=%v err=%v", claimed, err)
	}
	claimed, err = store.ClaimToolExecution(ctx, "te1")
	if err != nil || claimed {
		t.Fatalf("expected second claim to fail: ok=%v err=%v", claimed, err)
	}

	exec.Status = domain.ToolStatusCompleted
	exec.ToolOutput = json.RawMessage(`{"status":"info"}`)
	exec.ExecutionTimeMs = 42
	ok, err := store.CompleteToolExecution(ctx, exec)
	if err != nil || !ok {
		t.Fatalf("CompleteToolExecution failed: ok=%v err=%v", ok, err)
	}

	ok, err = store.CompleteToolExecution(ctx, exec)
	if err != nil {
		t.Fatalf("CompleteToolExecution failed: %v", err)
	}
	if ok {
		t.Fatalf("expected second completion to be a no-op")
	}

	got, err := store.GetToolExecution(ctx, "s1", "call_1")
	if err != nil {
		t.Fatalf("GetToolExecution failed: %v", err)
	}
	if got.Status != domain.ToolStatusCompleted || got.ExecutionTimeMs != 42 || got.CompletedAt == nil {
		t.Fatalf("unexpected execution: %+v", got)
	}
	if string(got.ToolOutput) != `{"status":"info"}` {
		t.Fatalf("unexpected output: %s", got.ToolOutput)
	}
}

func TestSQLiteStoreIncrementUsage(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	missing, err := store.GetUsage(ctx, "u1", "2026-10")
	if err != nil {
		t.Fatalf("GetUsage failed: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected no usage row yet")
	}

	if err := store.IncrementUsage(ctx, "u1", "2026-10", domain.UsageDelta{TokensInput: 100, TokensOutput: 20, ToolCalls: 1}); err != nil {
		t.Fatalf("IncrementUsage failed: %v", err)
	}
	if err := store.IncrementUsage(ctx, "u1", "2026-10", domain.UsageDelta{TokensInput: 50, TokensOutput: 5, Sessions: 1, CostCents: 3}); err != nil {
		t.Fatalf("IncrementUsage failed: %v", err)
	}

	usage, err := store.GetUsage(ctx, "u1", "2026-10")
	if err != nil {
		t.Fatalf("GetUsage failed: %v", err)
	}
	if usage.TotalTokensInput != 150 || usage.TotalTokensOutput != 25 || usage.TotalToolCalls != 1 ||
		usage.TotalSessions != 1 || usage.EstimatedCostCents != 3 {
		t.Fatalf("unexpected usage: %+v", usage)
	}
}

func TestSQLiteStoreSubscriptionAndDataSources(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.UpsertSubscription(ctx, &domain.Subscription{UserID: "u1", Tier: "premium_monthly", Status: "active"}); err != nil {
		t.Fatalf("UpsertSubscription failed: %v", err)
	}
	if err := store.UpsertSubscription(ctx, &domain.Subscription{UserID: "u1", Tier: "business_monthly", Status: "trialing"}); err != nil {
		t.Fatalf("UpsertSubscription failed: %v", err)
	}
	sub, err := store.GetSubscription(ctx, "u1")
	if err != nil {
		t.Fatalf("GetSubscription failed: %v", err)
	}
	if sub.Tier != "business_monthly" || sub.Status != "trialing" {
		t.Fatalf("unexpected subscription: %+v", sub)
	}

	for _, ds := range []domain.DataSource{
		{UserID: "u1", AppSlug: "gmail", AppName: "Gmail", Enabled: true},
		{UserID: "u1", AppSlug: "slack", AppName: "Slack", Enabled: false},
		{UserID: "u2", AppSlug: "hubspot", AppName: "HubSpot", Enabled: true},
	} {
		ds := ds
		if err := store.UpsertDataSource(ctx, &ds); err != nil {
			t.Fatalf("UpsertDataSource failed: %v", err)
		}
	}
	sources, err := store.ListDataSources(ctx, "u1")
	if err != nil {
		t.Fatalf("ListDataSources failed: %v", err)
	}
	if len(sources) != 1 || sources[0].AppSlug != "gmail" {
		t.Fatalf("unexpected data sources: %+v", sources)
	}
}

func TestSQLiteStoreCRMSearch(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	customers := []domain.Customer{
		{ID: "c1", WorkspaceID: "w1", Name: "Jane Smith", Email: "jane@example.com", City: "Austin", Tags: []string{"storm"}},
		{ID: "c2", WorkspaceID: "w1", Name: "Bob Jones", Phone: "512-555-0101"},
		{ID: "c3", WorkspaceID: "w2", Name: "Jane Other"},
	}
	for i := range customers {
		if err := store.CreateCustomer(ctx, &customers[i]); err != nil {
			t.Fatalf("CreateCustomer failed: %v", err)
		}
	}
	cost := 12500.0
	if err := store.CreateJob(ctx, &domain.Job{
		ID: "j1", WorkspaceID: "w1", CustomerID: "c1", Title: "Full roof replacement", Status: "scheduled", EstimatedCost: &cost,
	}); err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}
	if err := store.CreateJob(ctx, &domain.Job{
		ID: "j2", WorkspaceID: "w1", Title: "Gutter repair", Status: "lead",
	}); err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}

	found, err := store.SearchCustomers(ctx, "w1", "jane", 10)
	if err != nil {
		t.Fatalf("SearchCustomers failed: %v", err)
	}
	if len(found) != 1 || found[0].ID != "c1" || len(found[0].Tags) != 1 {
		t.Fatalf("unexpected customers: %+v", found)
	}

	all, err := store.SearchCustomers(ctx, "w1", "", 10)
	if err != nil {
		t.Fatalf("SearchCustomers failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 customers in workspace, got %d", len(all))
	}

	missing, err := store.GetCustomer(ctx, "w1", "c3")
	if err != nil {
		t.Fatalf("GetCustomer failed: %v", err)
	}
	if missing != nil {
		t.Fatalf("customer from another workspace must not be visible")
	}

	jobs, err := store.ListJobsForCustomer(ctx, "c1")
	if err != nil {
		t.Fatalf("ListJobsForCustomer failed: %v", err)
	}
	if len(jobs) != 1 || jobs[0].CustomerName != "Jane Smith" || jobs[0].EstimatedCost == nil || *jobs[0].EstimatedCost != cost {
		t.Fatalf("unexpected jobs: %+v", jobs)
	}

	scheduled, err := store.SearchJobs(ctx, "w1", domain.JobFilter{Status: "scheduled"})
	if err != nil {
		t.Fatalf("SearchJobs failed: %v", err)
	}
	if len(scheduled) != 1 || scheduled[0].ID != "j1" {
		t.Fatalf("unexpected jobs: %+v", scheduled)
	}

	gutters, err := store.SearchJobs(ctx, "w1", domain.JobFilter{Query: "GUTTER"})
	if err != nil {
		t.Fatalf("SearchJobs failed: %v", err)
	}
	if len(gutters) != 1 || gutters[0].ID != "j2" {
		t.Fatalf("unexpected jobs: %+v", gutters)
	}
}
