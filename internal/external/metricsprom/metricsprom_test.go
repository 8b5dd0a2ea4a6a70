package metricsprom

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersIncrementPerLabel(t *testing.T) {
	s := New("apmastest")

	s.IncSpawn("dev")
	s.IncSpawn("dev")
	s.IncSpawn("reviewer")
	s.IncCompletion("dev")
	s.IncFailure("reviewer")
	s.IncTimeout("reviewer")
	s.IncMessage("progress")
	s.IncMessage("progress")
	s.IncCheckpoint("dev")

	if got := testutil.ToFloat64(s.spawns.WithLabelValues("dev")); got != 2 {
		t.Fatalf("spawns[dev] = %v, want 2", got)
	}
	if got := testutil.ToFloat64(s.spawns.WithLabelValues("reviewer")); got != 1 {
		t.Fatalf("spawns[reviewer] = %v, want 1", got)
	}
	if got := testutil.ToFloat64(s.completions.WithLabelValues("dev")); got != 1 {
		t.Fatalf("completions[dev] = %v, want 1", got)
	}
	if got := testutil.ToFloat64(s.failures.WithLabelValues("reviewer")); got != 1 {
		t.Fatalf("failures[reviewer] = %v, want 1", got)
	}
	if got := testutil.ToFloat64(s.timeouts.WithLabelValues("reviewer")); got != 1 {
		t.Fatalf("timeouts[reviewer] = %v, want 1", got)
	}
	if got := testutil.ToFloat64(s.messages.WithLabelValues("progress")); got != 2 {
		t.Fatalf("messages[progress] = %v, want 2", got)
	}
	if got := testutil.ToFloat64(s.checkpoints.WithLabelValues("dev")); got != 1 {
		t.Fatalf("checkpoints[dev] = %v, want 1", got)
	}
}

func TestHistogramsRecordObservations(t *testing.T) {
	s := New("apmastest")

	s.ObserveHeartbeatInterval("dev", 5*time.Second)
	s.ObserveHeartbeatInterval("dev", 10*time.Second)
	s.ObserveAgentDuration("dev", 90*time.Second)

	if got := testutil.CollectAndCount(s.heartbeatInterval); got != 1 {
		t.Fatalf("expected exactly one heartbeat interval series, got %d", got)
	}
	if got := testutil.CollectAndCount(s.agentDuration); got != 1 {
		t.Fatalf("expected exactly one agent duration series, got %d", got)
	}
}

func TestHandlerExposesRegisteredMetrics(t *testing.T) {
	s := New("apmastest")
	s.IncSpawn("dev")

	if s.Handler() == nil {
		t.Fatal("expected a non-nil metrics handler")
	}

	count, err := testutil.GatherAndCount(s.registry)
	if err != nil {
		t.Fatalf("GatherAndCount: %v", err)
	}
	if count == 0 {
		t.Fatal("expected at least one sample after incrementing a counter")
	}
}
