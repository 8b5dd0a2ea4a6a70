// Package types holds the shared data model for the supervisor control plane:
// ProjectState, AgentState, AgentMessage and Checkpoint, plus the enums that
// constrain their fields. These are process-owned records — the State Store
// is the single source of truth and every in-memory copy is derived from it.
package types

import "time"

// ProjectPhase is the lifecycle phase of the whole project.
type ProjectPhase string

const (
	PhaseInitializing ProjectPhase = "initializing"
	PhasePlanning      ProjectPhase = "planning"
	PhaseBuilding      ProjectPhase = "building"
	PhaseTesting       ProjectPhase = "testing"
	PhaseReviewing     ProjectPhase = "reviewing"
	PhaseCompleting    ProjectPhase = "completing"
	PhaseCompleted     ProjectPhase = "completed"
	PhaseFailed        ProjectPhase = "failed"
	PhasePaused        ProjectPhase = "paused"
)

// AgentStatus is the lifecycle state of a single agent. See spec §4.4 for
// the full transition diagram.
type AgentStatus string

const (
	StatusPending   AgentStatus = "pending"
	StatusQueued    AgentStatus = "queued"
	StatusSpawning  AgentStatus = "spawning"
	StatusRunning   AgentStatus = "running"
	StatusPaused    AgentStatus = "paused"
	StatusCompleted AgentStatus = "completed"
	StatusFailed    AgentStatus = "failed"
	StatusTimedOut  AgentStatus = "timed_out"
	StatusEscalated AgentStatus = "escalated"
)

// IsTerminal reports whether status only leaves via an explicit reset
// (the rework protocol) or never leaves at all.
func (s AgentStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusEscalated:
		return true
	default:
		return false
	}
}

// MessageType enumerates the kinds of AgentMessage content.
type MessageType string

const (
	MsgAssignment       MessageType = "assignment"
	MsgProgress         MessageType = "progress"
	MsgQuestion         MessageType = "question"
	MsgAnswer           MessageType = "answer"
	MsgHeartbeat        MessageType = "heartbeat"
	MsgCheckpoint       MessageType = "checkpoint"
	MsgDone             MessageType = "done"
	MsgNeedsReview      MessageType = "needs_review"
	MsgApproved         MessageType = "approved"
	MsgChangesRequested MessageType = "changes_requested"
	MsgBlocked          MessageType = "blocked"
	MsgContextLimit     MessageType = "context_limit"
	MsgError            MessageType = "error"
	MsgInfo             MessageType = "info"
	MsgRequest          MessageType = "request"
)

// ValidMessageTypes is used by the send-message tool to reject unknown types.
var ValidMessageTypes = map[MessageType]bool{
	MsgAssignment: true, MsgProgress: true, MsgQuestion: true, MsgAnswer: true,
	MsgHeartbeat: true, MsgCheckpoint: true, MsgDone: true, MsgNeedsReview: true,
	MsgApproved: true, MsgChangesRequested: true, MsgBlocked: true,
	MsgContextLimit: true, MsgError: true, MsgInfo: true, MsgRequest: true,
}

// Reserved recipient identifiers for AgentMessage.To.
const (
	RecipientSupervisor = "supervisor"
	RecipientAll        = "all"
)

// ProjectState is the single per-process record describing the project as a
// whole.
type ProjectState struct {
	Name        string       `json:"name"`
	WorkingDir  string       `json:"workingDir"`
	Phase       ProjectPhase `json:"phase"`
	StartedAt   time.Time    `json:"startedAt"`
	CompletedAt *time.Time   `json:"completedAt,omitempty"`
	Brief       string       `json:"brief,omitempty"`
}

// AgentState is the per-role record tracked by the Agent State Manager.
// Fields are mutated only through agentmgr.Manager.Update; callers outside
// that critical section always receive a copy (see SPEC_FULL.md Open
// Question #1).
type AgentState struct {
	Role                  string      `json:"role"`
	Status                AgentStatus `json:"status"`
	SubagentType          string      `json:"subagentType"`
	SpawnedAt             *time.Time  `json:"spawnedAt,omitempty"`
	CompletedAt           *time.Time  `json:"completedAt,omitempty"`
	TimeoutAt             *time.Time  `json:"timeoutAt,omitempty"`
	LastHeartbeat         *time.Time  `json:"lastHeartbeat,omitempty"`
	TaskID                string      `json:"taskId,omitempty"`
	ProcessID             int         `json:"processId,omitempty"`
	RetryCount            int         `json:"retryCount"`
	ReviewIterationCount  int         `json:"reviewIterationCount"`
	Artifacts             []string    `json:"artifacts,omitempty"`
	Dependencies          []string    `json:"dependencies,omitempty"`
	LastProgressMessage   string      `json:"lastProgressMessage,omitempty"`
	LastError             string      `json:"lastError,omitempty"`
	EstimatedContextUsage int         `json:"estimatedContextUsage,omitempty"`
	RecoveryContext       string      `json:"recoveryContext,omitempty"`
}

// Clone returns a deep copy suitable for returning from a read API.
func (a *AgentState) Clone() *AgentState {
	if a == nil {
		return nil
	}
	cp := *a
	if a.SpawnedAt != nil {
		t := *a.SpawnedAt
		cp.SpawnedAt = &t
	}
	if a.CompletedAt != nil {
		t := *a.CompletedAt
		cp.CompletedAt = &t
	}
	if a.TimeoutAt != nil {
		t := *a.TimeoutAt
		cp.TimeoutAt = &t
	}
	if a.LastHeartbeat != nil {
		t := *a.LastHeartbeat
		cp.LastHeartbeat = &t
	}
	cp.Artifacts = append([]string(nil), a.Artifacts...)
	cp.Dependencies = append([]string(nil), a.Dependencies...)
	return &cp
}

// AgentMessage is an append-only entry in the Message Bus log.
type AgentMessage struct {
	ID          string                 `json:"id"`
	Timestamp   time.Time              `json:"timestamp"`
	From        string                 `json:"from"`
	To          string                 `json:"to"`
	Type        MessageType            `json:"type"`
	Content     string                 `json:"content"`
	Artifacts   []string               `json:"artifacts,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	ProcessedAt *time.Time             `json:"processedAt,omitempty"`
}

// Checkpoint is an append-only per-agent progress snapshot.
type Checkpoint struct {
	Role                  string    `json:"role"`
	CreatedAt             time.Time `json:"createdAt"`
	Summary               string    `json:"summary"`
	CompletedTaskCount    int       `json:"completedTaskCount"`
	TotalTaskCount        int       `json:"totalTaskCount"`
	CompletedItems        []string  `json:"completedItems,omitempty"`
	PendingItems          []string  `json:"pendingItems,omitempty"`
	ActiveFiles           []string  `json:"activeFiles,omitempty"`
	Notes                 string    `json:"notes,omitempty"`
	EstimatedContextUsage int       `json:"estimatedContextUsage,omitempty"`
}

// PercentComplete derives the checkpoint's completion percentage.
func (c *Checkpoint) PercentComplete() int {
	if c.TotalTaskCount <= 0 {
		return 0
	}
	return 100 * c.CompletedTaskCount / c.TotalTaskCount
}

// EscalationNotification is the payload delivered to the external
// NotificationService when an agent reaches Escalated.
type EscalationNotification struct {
	Role               string      `json:"role"`
	FailureCount       int         `json:"failureCount"`
	LastError          string      `json:"lastError"`
	LatestCheckpoint   *Checkpoint `json:"latestCheckpoint,omitempty"`
	Artifacts          []string    `json:"artifacts,omitempty"`
	SynthesizedContext string      `json:"synthesizedContext"`
	Timestamp          time.Time   `json:"timestamp"`
}

// DashboardEventType enumerates the kinds of events published to the
// external DashboardPublisher.
type DashboardEventType string

const (
	EventAgentUpdate   DashboardEventType = "agent-update"
	EventMessage       DashboardEventType = "message"
	EventCheckpoint    DashboardEventType = "checkpoint"
	EventProjectUpdate DashboardEventType = "project-update"
)

// DashboardEvent is the payload published to the external DashboardPublisher.
type DashboardEvent struct {
	Type      DashboardEventType `json:"type"`
	Timestamp time.Time          `json:"timestamp"`
	Data      interface{}        `json:"data"`
}
