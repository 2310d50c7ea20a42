package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Records(t *testing.T) {
	m := New()
	m.SetActiveAgents(2)
	m.SetHeldLocks(3)
	m.AdmissionRejected()
	m.LockConflict()
	m.LockConflict()
	m.Turn("mention")
	m.Turn("mention")
	m.Turn("review")
	m.Rescheduled("lock")
	m.ToolCall("fs", true)
	m.ToolCall("fs", false)
	m.EventDropped()

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"active agents", testutil.ToFloat64(m.activeAgents), 2},
		{"held locks", testutil.ToFloat64(m.heldLocks), 3},
		{"admission rejections", testutil.ToFloat64(m.admissionRejections), 1},
		{"lock conflicts", testutil.ToFloat64(m.lockConflicts), 2},
		{"mention turns", testutil.ToFloat64(m.turns.WithLabelValues("mention")), 2},
		{"review turns", testutil.ToFloat64(m.turns.WithLabelValues("review")), 1},
		{"lock reschedules", testutil.ToFloat64(m.reschedules.WithLabelValues("lock")), 1},
		{"tool successes", testutil.ToFloat64(m.toolCalls.WithLabelValues("fs", "true")), 1},
		{"tool failures", testutil.ToFloat64(m.toolCalls.WithLabelValues("fs", "false")), 1},
		{"dropped events", testutil.ToFloat64(m.droppedEvents), 1},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, tt.got)
		}
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.SetActiveAgents(1)
	m.Turn("init")
	m.ToolCall("fs", true)
	m.EventDropped()
	if m.Registry() != nil {
		t.Error("expected nil registry")
	}
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 404 {
		t.Errorf("expected 404 from nil metrics, got %d", rec.Code)
	}
}

func TestHandler_ServesCollectors(t *testing.T) {
	m := New()
	m.Turn("init")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	for _, name := range []string{"crew_turns_total", "crew_active_agents", "crew_lock_conflicts_total"} {
		if !strings.Contains(string(body), name) {
			t.Errorf("expected %s in output", name)
		}
	}
}
