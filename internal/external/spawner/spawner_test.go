package spawner

import (
	"context"
	"testing"
	"time"
)

func TestSpawnStartsProcessAndTracksIt(t *testing.T) {
	p := New("sh", []string{"-c", "sleep 0.2"}, t.TempDir())
	result, err := p.Spawn(context.Background(), "dev", "go-developer", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success || result.ProcessID == 0 {
		t.Fatalf("expected a successful spawn with a PID, got %+v", result)
	}
	if !p.IsRunning("dev") {
		t.Fatalf("expected dev to be tracked as running immediately after spawn")
	}

	time.Sleep(400 * time.Millisecond)
	if p.IsRunning("dev") {
		t.Fatalf("expected dev to be untracked once the process exits")
	}
}

func TestSpawnReturnsFailureResultForMissingBinary(t *testing.T) {
	p := New("definitely-not-a-real-binary-xyz", nil, t.TempDir())
	result, err := p.Spawn(context.Background(), "dev", "go-developer", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Fatalf("expected Success=false for a missing binary")
	}
	if result.ErrorMessage == "" {
		t.Fatalf("expected a non-empty error message")
	}
}

func TestStopKillsTrackedProcess(t *testing.T) {
	p := New("sh", []string{"-c", "sleep 5"}, t.TempDir())
	if _, err := p.Spawn(context.Background(), "dev", "go-developer", ""); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if err := p.Stop("dev"); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestStopUnknownRoleIsNotFound(t *testing.T) {
	p := New("sh", nil, t.TempDir())
	if err := p.Stop("ghost"); err == nil {
		t.Fatalf("expected error stopping an untracked role")
	}
}

func TestRoleAndSubagentTypeSubstitution(t *testing.T) {
	got := substitute("--role {{role}} --type {{subagentType}}", "dev", "go-developer")
	want := "--role dev --type go-developer"
	if got != want {
		t.Fatalf("substitute() = %q, want %q", got, want)
	}
}
