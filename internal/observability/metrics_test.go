package observability

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecordToRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	m.TurnFinished("done", 2)
	m.TurnFinished("pending", 1)
	m.ToolExecuted("web_search", false, "completed", 120*time.Millisecond)
	m.ToolExecuted("gmail-send-email", true, "pending", 0)
	m.DynamicSourceFailure("connect")
	m.ModelCall("gpt-4o", time.Second, 100, 20, nil)
	m.ModelCall("gpt-4o", time.Second, 0, 0, errors.New("boom"))

	expected := `
		# HELP agent_tool_executions_total Total number of tool executions by tool, source and status
		# TYPE agent_tool_executions_total counter
		agent_tool_executions_total{source="builtin",status="completed",tool_name="web_search"} 1
		agent_tool_executions_total{source="dynamic",status="pending",tool_name="gmail-send-email"} 1
	`
	if err := testutil.CollectAndCompare(m.ToolExecutionCounter, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected metric value: %v", err)
	}

	if got := testutil.ToFloat64(m.TokensUsed.WithLabelValues("gpt-4o", "input")); got != 100 {
		t.Errorf("expected 100 input tokens, got %v", got)
	}
	if got := testutil.ToFloat64(m.TurnCounter.WithLabelValues("done")); got != 1 {
		t.Errorf("expected 1 done turn, got %v", got)
	}
	if got := testutil.ToFloat64(m.DynamicSourceFailures.WithLabelValues("connect")); got != 1 {
		t.Errorf("expected 1 connect failure, got %v", got)
	}
	if count := testutil.CollectAndCount(m.ModelCallDuration); count != 2 {
		t.Errorf("expected 2 label combinations, got %d", count)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.TurnFinished("done", 1)
	m.ToolExecuted("x", false, "completed", time.Millisecond)
	m.DynamicSourceFailure("list")
	m.ModelCall("gpt-4o", time.Second, 1, 1, nil)
}
