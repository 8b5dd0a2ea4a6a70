package supervisor

import (
	"context"
	"time"

	"github.com/apmas/apmas/internal/types"
)

// SpawnResult is the outcome of a single Spawner.Spawn call.
type SpawnResult struct {
	TaskID       string
	ProcessID    int
	Success      bool
	ErrorMessage string
}

// Spawner is the external process-launching collaborator (spec §6). The
// supervisor never blocks on the spawned agent itself, only on this call.
type Spawner interface {
	Spawn(ctx context.Context, role, subagentType, recoveryContext string) (SpawnResult, error)
}

// NotificationService delivers an EscalationNotification to a human or an
// external paging system.
type NotificationService interface {
	Notify(ctx context.Context, n types.EscalationNotification) error
}

// DashboardPublisher fans out DashboardEvents to any live observers.
type DashboardPublisher interface {
	Publish(ctx context.Context, e types.DashboardEvent) error
}

// MetricsSink is the counter/histogram surface named in spec §6.
type MetricsSink interface {
	IncSpawn(role string)
	IncCompletion(role string)
	IncFailure(role string)
	IncTimeout(role string)
	IncMessage(msgType string)
	IncCheckpoint(role string)
	ObserveHeartbeatInterval(role string, d time.Duration)
	ObserveAgentDuration(role string, d time.Duration)
}
