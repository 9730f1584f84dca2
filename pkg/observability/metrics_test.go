package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics_DisabledReturnsNil(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	if m != nil {
		t.Fatalf("expected nil metrics when disabled")
	}
}

func TestNewMetrics_NilSafeObservers(t *testing.T) {
	var m *Metrics
	m.ObserveChatTurn("qa", 0.1)
	m.ObserveChatError("UpstreamTransient")
	m.ObserveRouterTarget("rag", "llm")
	m.ObserveToolCall("get_current_weather", "ok", 0.01)
	m.ObserveUsage("deepseek-chat", 10, 20)
	m.ObserveIngestionJob("indexed", "kb-1", 5.0, 3)
}

func TestNewMetrics_EnabledRecordsObservations(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	if m == nil {
		t.Fatalf("expected non-nil metrics when enabled")
	}
	m.ObserveChatTurn("qa", 0.25)
	m.ObserveRouterTarget("qa", "keyword")
	m.ObserveUsage("deepseek-chat", 5, 10)

	if got := testutil.ToFloat64(m.chatTurns.WithLabelValues("qa")); got != 1 {
		t.Fatalf("expected 1 chat turn recorded, got %v", got)
	}
}
