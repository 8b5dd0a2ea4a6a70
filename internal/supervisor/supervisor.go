// Package supervisor is the heart of the control plane: a single
// cooperative loop that drives every agent lifecycle transition (spec
// §4.4). It ticks on a fixed cadence, and every step within a tick is
// independent — a failure in one is logged and does not block the rest.
package supervisor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/apmas/apmas/internal/agentmgr"
	"github.com/apmas/apmas/internal/bus"
	"github.com/apmas/apmas/internal/checkpoint"
	"github.com/apmas/apmas/internal/types"
)

// Supervisor implements the Supervisor Loop.
type Supervisor struct {
	agents       *agentmgr.Manager
	bus          *bus.Bus
	checkpoints  *checkpoint.Recorder
	projectStore projectStore

	spawner   Spawner
	notifier  NotificationService
	dashboard DashboardPublisher
	metrics   MetricsSink

	cfg Config
	log *zap.SugaredLogger
	now func() time.Time

	roleOrder []string

	escalationMu      sync.Mutex
	notifiedEscalated map[string]bool

	runningMu sync.Mutex
	running   bool
}

// New constructs a Supervisor. notifier, dashboard and metrics may be nil,
// in which case their calls are skipped. New does not default spawner: a
// nil Spawner is a configuration mistake, and it panics on the first
// spawn attempt rather than being silently swallowed.
func New(
	agents *agentmgr.Manager,
	messageBus *bus.Bus,
	checkpoints *checkpoint.Recorder,
	projStore projectStore,
	spawner Spawner,
	notifier NotificationService,
	dashboard DashboardPublisher,
	metrics MetricsSink,
	cfg Config,
	log *zap.SugaredLogger,
) *Supervisor {
	return &Supervisor{
		agents:            agents,
		bus:               messageBus,
		checkpoints:       checkpoints,
		projectStore:      projStore,
		spawner:           spawner,
		notifier:          notifier,
		dashboard:         dashboard,
		metrics:           metrics,
		cfg:               cfg.withDefaults(),
		log:               log,
		now:               time.Now,
		notifiedEscalated: make(map[string]bool),
	}
}

// Run ticks every cfg.PollInterval until ctx is cancelled, running an
// initial tick immediately (mirroring the teacher's run-now-then-ticker
// pattern).
func (s *Supervisor) Run(ctx context.Context) {
	s.runningMu.Lock()
	s.running = true
	s.runningMu.Unlock()
	defer func() {
		s.runningMu.Lock()
		s.running = false
		s.runningMu.Unlock()
	}()

	s.Tick(ctx)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs exactly one supervisor cycle: dependency promotion, spawning,
// timeout sweep, review-feedback scan, escalation scan, terminal-phase
// check — in that order, each independently recoverable.
func (s *Supervisor) Tick(ctx context.Context) {
	s.runStep(ctx, "promote", s.promoteDependencies)
	s.runStep(ctx, "spawn", s.spawnQueued)
	s.runStep(ctx, "timeout", s.sweepTimeouts)
	s.runStep(ctx, "rework", s.scanReviewFeedback)
	s.runStep(ctx, "escalate", s.scanEscalations)
	s.runStep(ctx, "phase", s.checkTerminalPhase)
}

func (s *Supervisor) runStep(ctx context.Context, name string, fn func(context.Context) error) {
	if err := fn(ctx); err != nil {
		if s.log != nil {
			s.log.Warnw("supervisor tick step failed, will retry next tick", "step", name, "error", err)
		}
	}
}

func (s *Supervisor) publishDashboard(ctx context.Context, eventType types.DashboardEventType, data interface{}) {
	if s.dashboard == nil {
		return
	}
	if err := s.dashboard.Publish(ctx, types.DashboardEvent{Type: eventType, Timestamp: s.now(), Data: data}); err != nil && s.log != nil {
		s.log.Warnw("dashboard publish failed", "type", eventType, "error", err)
	}
}
