package rpc

import (
	"context"
	"net/rpc"
	"net/rpc/jsonrpc"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rooftopsai/rooftopsgpt-sub002/internal/adapter/llm"
	"github.com/rooftopsai/rooftopsgpt-sub002/internal/config"
	"github.com/rooftopsai/rooftopsgpt-sub002/internal/domain"
	"github.com/rooftopsai/rooftopsgpt-sub002/internal/service"
	"github.com/rooftopsai/rooftopsgpt-sub002/internal/tools"
	"github.com/rooftopsai/rooftopsgpt-sub002/tests/helpers"
)

// startServer seeds a premium user with one pending confirmation and dials
// a running RPC server.
func startServer(t *testing.T) *rpc.Client {
	t.Helper()
	ctx := context.Background()
	db := helpers.NewTestSQLiteStore(t)
	require.NoError(t, db.UpsertSubscription(ctx, &domain.Subscription{UserID: "u1", Tier: "premium_monthly", Status: "active"}))
	require.NoError(t, db.CreateSession(ctx, &domain.Session{ID: "s1", UserID: "u1", Name: "Storm leads", Status: domain.SessionStatusActive, Model: "gpt-4o"}))
	require.NoError(t, db.IncrementUsage(ctx, "u1", time.Now().UTC().Format("2006-01"), domain.UsageDelta{TokensInput: 1000, TokensOutput: 500}))

	executor, err := tools.NewBuiltinExecutor(tools.Deps{}, nil)
	require.NoError(t, err)
	client := llm.NewMockClient(llm.MockTurn{
		ToolCalls: []llm.ToolCall{{
			ID:   "call_1",
			Type: "function",
			Function: llm.ToolCallFunction{
				Name:      "schedule_appointment",
				Arguments: `{"title":"Roof inspection","date":"2026-10-20","time":"09:00"}`,
			},
		}},
	})
	svc := service.New(db, client, executor, nil, &config.Config{MaxIterations: 5, HistoryLimit: 50}, nil, nil)

	sink := service.EventSinkFunc(func(domain.EventType, any) error { return nil })
	require.NoError(t, svc.StreamChat(ctx, "u1", domain.ChatRequest{SessionID: "s1", Message: "Book the inspection"}, sink))

	srv, err := NewServer(svc, nil)
	require.NoError(t, err)
	go func() { _ = srv.Start("127.0.0.1:0") }()

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	addr, err := srv.Addr(waitCtx)
	require.NoError(t, err)
	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, srv.Shutdown(shutdownCtx))
	})

	conn, err := jsonrpc.Dial("tcp", addr.String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestRPCConfirm(t *testing.T) {
	conn := startServer(t)

	var resp domain.ConfirmResponse
	err := conn.Call(ServiceName+".Confirm", &ConfirmArgs{
		UserID:  "u1",
		Request: domain.ConfirmRequest{SessionID: "s1", ToolCallID: "call_1", Action: "Approved"},
	}, &resp)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, domain.ToolStatusCompleted, resp.Status)

	err = conn.Call(ServiceName+".Confirm", &ConfirmArgs{
		UserID:  "u1",
		Request: domain.ConfirmRequest{SessionID: "s1", ToolCallID: "call_1", Action: domain.ConfirmActionConfirm},
	}, &resp)
	require.Error(t, err)
	assert.Equal(t, "No pending action found", err.Error())
}

func TestRPCConfirmRequiresUser(t *testing.T) {
	conn := startServer(t)

	var resp domain.ConfirmResponse
	err := conn.Call(ServiceName+".Confirm", &ConfirmArgs{
		Request: domain.ConfirmRequest{SessionID: "s1", ToolCallID: "call_1", Action: "reject"},
	}, &resp)
	require.Error(t, err)
	assert.Equal(t, "Not authenticated", err.Error())
}

func TestRPCUsageAndActivity(t *testing.T) {
	conn := startServer(t)

	var usage service.UsageSummary
	require.NoError(t, conn.Call(ServiceName+".Usage", &UsageArgs{UserID: "u1"}, &usage))
	assert.True(t, usage.HasAccess)
	assert.Equal(t, domain.TierPremium, usage.Tier)
	assert.GreaterOrEqual(t, usage.Usage.Tokens.Input, 1000)

	var activity ActivityResponse
	require.NoError(t, conn.Call(ServiceName+".Activity", &ActivityArgs{UserID: "u1", SessionID: "s1"}, &activity))
	assert.NotEmpty(t, activity.Activity)

	var sessions SessionsResponse
	require.NoError(t, conn.Call(ServiceName+".Sessions", &SessionsArgs{UserID: "u1"}, &sessions))
	require.Len(t, sessions.Sessions, 1)
	assert.Equal(t, "s1", sessions.Sessions[0].ID)
}

func TestRPCExpireConfirmationsWithoutTTL(t *testing.T) {
	conn := startServer(t)

	var resp ExpireResponse
	require.NoError(t, conn.Call(ServiceName+".ExpireConfirmations", &ExpireArgs{}, &resp))
	assert.Zero(t, resp.Expired)
}

func TestNormalizeAction(t *testing.T) {
	tests := map[domain.ConfirmAction]domain.ConfirmAction{
		"confirm":   domain.ConfirmActionConfirm,
		" Approve ": domain.ConfirmActionConfirm,
		"approved":  domain.ConfirmActionConfirm,
		"CANCEL":    domain.ConfirmActionCancel,
		"rejected":  domain.ConfirmActionCancel,
		"maybe":     "maybe",
		"":          "",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizeAction(in), "action %q", in)
	}
}
