package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/apmas/apmas/internal/apmaserr"
	"github.com/apmas/apmas/internal/types"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestProjectStateRoundTrip(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.GetProjectState()
	if !apmaserr.Is(err, apmaserr.KindNotFound) {
		t.Fatalf("expected NotFound before first save, got %v", err)
	}

	p := &types.ProjectState{
		Name:       "widget-factory",
		WorkingDir: "/work/widget-factory",
		Phase:      types.PhasePlanning,
		StartedAt:  time.Now().UTC().Truncate(time.Second),
		Brief:      "build the thing",
	}
	if err := s.SaveProjectState(p); err != nil {
		t.Fatalf("SaveProjectState failed: %v", err)
	}

	got, err := s.GetProjectState()
	if err != nil {
		t.Fatalf("GetProjectState failed: %v", err)
	}
	if got.Name != p.Name || got.Phase != p.Phase || got.Brief != p.Brief {
		t.Errorf("round-tripped state = %+v, want %+v", got, p)
	}
	if !got.StartedAt.Equal(p.StartedAt) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, p.StartedAt)
	}

	p.Phase = types.PhaseBuilding
	if err := s.SaveProjectState(p); err != nil {
		t.Fatalf("second SaveProjectState failed: %v", err)
	}
	got, err = s.GetProjectState()
	if err != nil {
		t.Fatalf("GetProjectState after update failed: %v", err)
	}
	if got.Phase != types.PhaseBuilding {
		t.Errorf("Phase after update = %v, want building", got.Phase)
	}
}

func TestAgentStateUpsertAndList(t *testing.T) {
	s := setupTestStore(t)

	now := time.Now().UTC().Truncate(time.Second)
	a := &types.AgentState{
		Role:         "developer",
		Status:       types.StatusRunning,
		SubagentType: "general-purpose",
		SpawnedAt:    &now,
		Artifacts:    []string{"main.go"},
		Dependencies: []string{"architect"},
	}
	if err := s.SaveAgentState(a); err != nil {
		t.Fatalf("SaveAgentState failed: %v", err)
	}

	got, err := s.GetAgentState("developer")
	if err != nil {
		t.Fatalf("GetAgentState failed: %v", err)
	}
	if got.Status != types.StatusRunning || len(got.Artifacts) != 1 || got.Artifacts[0] != "main.go" {
		t.Errorf("GetAgentState = %+v, unexpected", got)
	}

	a.Status = types.StatusCompleted
	if err := s.SaveAgentState(a); err != nil {
		t.Fatalf("upsert SaveAgentState failed: %v", err)
	}
	got, err = s.GetAgentState("developer")
	if err != nil {
		t.Fatalf("GetAgentState after upsert failed: %v", err)
	}
	if got.Status != types.StatusCompleted {
		t.Errorf("Status after upsert = %v, want completed", got.Status)
	}

	if err := s.SaveAgentState(&types.AgentState{Role: "reviewer", Status: types.StatusPending}); err != nil {
		t.Fatalf("SaveAgentState reviewer failed: %v", err)
	}

	all, err := s.ListAgentStates()
	if err != nil {
		t.Fatalf("ListAgentStates failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("ListAgentStates returned %d roles, want 2", len(all))
	}
}

func TestGetAgentStateNotFound(t *testing.T) {
	s := setupTestStore(t)
	_, err := s.GetAgentState("ghost")
	if !apmaserr.Is(err, apmaserr.KindNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestListStaleAgents(t *testing.T) {
	s := setupTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)
	stale := now.Add(-10 * time.Minute)
	fresh := now.Add(-10 * time.Second)

	if err := s.SaveAgentState(&types.AgentState{Role: "stale-one", Status: types.StatusRunning, LastHeartbeat: &stale}); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveAgentState(&types.AgentState{Role: "fresh-one", Status: types.StatusRunning, LastHeartbeat: &fresh}); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveAgentState(&types.AgentState{Role: "done-one", Status: types.StatusCompleted, LastHeartbeat: &stale}); err != nil {
		t.Fatal(err)
	}

	got, err := s.ListStaleAgents(time.Minute, now)
	if err != nil {
		t.Fatalf("ListStaleAgents failed: %v", err)
	}
	if len(got) != 1 || got[0].Role != "stale-one" {
		t.Errorf("ListStaleAgents = %+v, want only stale-one", got)
	}
}

func TestMessageAppendAndQuery(t *testing.T) {
	s := setupTestStore(t)

	m1 := &types.AgentMessage{
		ID: "m1", Timestamp: time.Now().UTC().Add(-time.Minute).Truncate(time.Second),
		From: "architect", To: "developer", Type: types.MsgAssignment, Content: "build it",
	}
	m2 := &types.AgentMessage{
		ID: "m2", Timestamp: time.Now().UTC().Truncate(time.Second),
		From: "developer", To: types.RecipientAll, Type: types.MsgInfo, Content: "starting",
	}
	if err := s.AppendMessage(m1); err != nil {
		t.Fatalf("AppendMessage m1 failed: %v", err)
	}
	if err := s.AppendMessage(m2); err != nil {
		t.Fatalf("AppendMessage m2 failed: %v", err)
	}

	forDev, err := s.ListMessagesForRole("developer", nil, 0, false)
	if err != nil {
		t.Fatalf("ListMessagesForRole failed: %v", err)
	}
	if len(forDev) != 2 {
		t.Fatalf("ListMessagesForRole returned %d, want 2 (direct + broadcast, including developer's own sent message)", len(forDev))
	}
	if forDev[0].ID != "m2" {
		t.Errorf("expected newest-first ordering, got %s first", forDev[0].ID)
	}

	sinceM1 := m1.Timestamp
	afterM1, err := s.ListMessagesForRole("developer", &sinceM1, 0, false)
	if err != nil {
		t.Fatalf("ListMessagesForRole since failed: %v", err)
	}
	if len(afterM1) != 1 || afterM1[0].ID != "m2" {
		t.Errorf("messages since m1 = %+v, want only m2", afterM1)
	}

	limited, err := s.ListMessagesForRole("developer", nil, 1, false)
	if err != nil {
		t.Fatalf("ListMessagesForRole limit failed: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "m2" {
		t.Errorf("limited messages = %+v, want only newest (m2)", limited)
	}

	if err := s.MarkMessageProcessed("m1", time.Now().UTC()); err != nil {
		t.Fatalf("MarkMessageProcessed failed: %v", err)
	}
	unprocessed, err := s.ListMessagesForRole("developer", nil, 0, true)
	if err != nil {
		t.Fatalf("ListMessagesForRole unprocessed failed: %v", err)
	}
	if len(unprocessed) != 1 || unprocessed[0].ID != "m2" {
		t.Errorf("unprocessed messages = %+v, want only m2", unprocessed)
	}

	got, err := s.GetMessage("m2")
	if err != nil {
		t.Fatalf("GetMessage failed: %v", err)
	}
	if got.Content != "starting" {
		t.Errorf("GetMessage content = %q, want %q", got.Content, "starting")
	}
}

func TestListUnprocessedByType(t *testing.T) {
	s := setupTestStore(t)

	cr := &types.AgentMessage{
		ID: "cr1", Timestamp: time.Now().UTC().Truncate(time.Second),
		From: "reviewer", To: "developer", Type: types.MsgChangesRequested, Content: "fix X",
	}
	other := &types.AgentMessage{
		ID: "info1", Timestamp: time.Now().UTC().Truncate(time.Second),
		From: "developer", To: types.RecipientAll, Type: types.MsgInfo, Content: "fyi",
	}
	if err := s.AppendMessage(cr); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendMessage(other); err != nil {
		t.Fatal(err)
	}

	got, err := s.ListUnprocessedByType(types.MsgChangesRequested)
	if err != nil {
		t.Fatalf("ListUnprocessedByType failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "cr1" {
		t.Errorf("ListUnprocessedByType = %+v, want only cr1", got)
	}
}

func TestMarkMessageProcessedNotFound(t *testing.T) {
	s := setupTestStore(t)
	err := s.MarkMessageProcessed("nope", time.Now())
	if !apmaserr.Is(err, apmaserr.KindNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestCheckpointAppendAndLatest(t *testing.T) {
	s := setupTestStore(t)

	c1 := &types.Checkpoint{Role: "developer", CreatedAt: time.Now().UTC().Add(-time.Hour).Truncate(time.Second), Summary: "first pass", CompletedTaskCount: 1, TotalTaskCount: 4}
	c2 := &types.Checkpoint{Role: "developer", CreatedAt: time.Now().UTC().Truncate(time.Second), Summary: "second pass", CompletedTaskCount: 3, TotalTaskCount: 4}
	if err := s.AppendCheckpoint(c1); err != nil {
		t.Fatalf("AppendCheckpoint c1 failed: %v", err)
	}
	if err := s.AppendCheckpoint(c2); err != nil {
		t.Fatalf("AppendCheckpoint c2 failed: %v", err)
	}

	latest, err := s.LatestCheckpoint("developer")
	if err != nil {
		t.Fatalf("LatestCheckpoint failed: %v", err)
	}
	if latest.Summary != "second pass" {
		t.Errorf("LatestCheckpoint = %q, want %q", latest.Summary, "second pass")
	}

	all, err := s.ListCheckpoints("developer")
	if err != nil {
		t.Fatalf("ListCheckpoints failed: %v", err)
	}
	if len(all) != 2 || all[0].Summary != "first pass" {
		t.Errorf("ListCheckpoints = %+v, want oldest-first pair", all)
	}
}

func TestLatestCheckpointNotFound(t *testing.T) {
	s := setupTestStore(t)
	_, err := s.LatestCheckpoint("nobody")
	if !apmaserr.Is(err, apmaserr.KindNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}
