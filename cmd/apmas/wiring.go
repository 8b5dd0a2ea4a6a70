package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/apmas/apmas/internal/agentmgr"
	"github.com/apmas/apmas/internal/bus"
	"github.com/apmas/apmas/internal/checkpoint"
	"github.com/apmas/apmas/internal/config"
	"github.com/apmas/apmas/internal/external/dashboardbus"
	"github.com/apmas/apmas/internal/external/metricsprom"
	"github.com/apmas/apmas/internal/external/notify"
	"github.com/apmas/apmas/internal/external/spawner"
	"github.com/apmas/apmas/internal/resources"
	"github.com/apmas/apmas/internal/rpc"
	"github.com/apmas/apmas/internal/store"
	"github.com/apmas/apmas/internal/supervisor"
	"github.com/apmas/apmas/internal/tools"
	"github.com/apmas/apmas/internal/types"
)

// app bundles every wired component a serve/resume run needs, so the two
// commands can share setup and differ only in whether they call
// InitializeProject.
type app struct {
	cfg     config.Config
	log     *zap.SugaredLogger
	st      *store.Store
	agents  *agentmgr.Manager
	msgBus  *bus.Bus
	cps     *checkpoint.Recorder
	spawn   *spawner.ProcessSpawner
	dash    *dashboardbus.Publisher
	metrics *metricsprom.Sink
	sup     *supervisor.Supervisor
	toolReg *tools.Registry
	resReg  *resources.Registry
}

// noopDashboard is used when no DashboardURL is configured or the NATS
// connection could not be established at startup, so callers never have
// to nil-check the DashboardPublisher.
type noopDashboard struct{}

func (noopDashboard) Publish(ctx context.Context, e types.DashboardEvent) error { return nil }

// newApp opens the store and wires every collaborator named in spec §6.
// The caller is responsible for calling close() when done.
func newApp(cfg config.Config) (*app, error) {
	log, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	sugar := log.Sugar()

	dbPath := filepath.Join(cfg.DataDirectory, "apmas.db")
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}

	agents := agentmgr.New(st, cfg.AgentCacheTTL.Duration(), cfg.MaxReviewIterations)
	msgBus := bus.New(st)
	cps := checkpoint.New(st)

	socketDir := filepath.Join(cfg.DataDirectory, "sockets")
	if err := os.MkdirAll(socketDir, 0o755); err != nil {
		return nil, fmt.Errorf("create socket directory: %w", err)
	}
	spawn := spawner.New(cfg.SpawnCommand, cfg.SpawnArgs, socketDir)

	var dashboard supervisor.DashboardPublisher = noopDashboard{}
	var dash *dashboardbus.Publisher
	if cfg.DashboardURL != "" {
		dash, err = dashboardbus.Connect(cfg.DashboardURL)
		if err != nil {
			sugar.Warnw("dashboard publisher unavailable, continuing without it", "error", err)
		} else {
			dashboard = dash
		}
	}

	metrics := metricsprom.New(cfg.MetricsNamespace)

	sup := supervisor.New(
		agents, msgBus, cps, st,
		spawn,
		buildNotifier(cfg),
		dashboard,
		metrics,
		cfg.SupervisorConfig(),
		sugar,
	)

	toolReg := tools.NewRegistry(sugar)
	toolReg.Register(tools.NewHeartbeatDefinition(agents, cfg.HeartbeatGrace.Duration(), metrics, time.Now))
	toolReg.Register(tools.NewCheckpointDefinition(cps, metrics))
	toolReg.Register(tools.NewSendMessageDefinition(agents, msgBus, metrics))
	toolReg.Register(tools.NewCompleteDefinition(agents, time.Now, metrics))

	resReg := resources.New(st, agents, msgBus, cps, cfg.ResourceCacheTTL.Duration())

	if cfg.MetricsListenAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(cfg.MetricsListenAddr, mux); err != nil {
				sugar.Warnw("metrics listener stopped", "error", err)
			}
		}()
	}

	return &app{
		cfg: cfg, log: sugar, st: st, agents: agents, msgBus: msgBus, cps: cps,
		spawn: spawn, dash: dash, metrics: metrics, sup: sup, toolReg: toolReg, resReg: resReg,
	}, nil
}

func (a *app) close() {
	if a.dash != nil {
		a.dash.Close()
	}
	a.st.Close()
	a.log.Sync()
}

// buildNotifier composes the configured NotificationService(s): a webhook
// when WebhookURL is set, a best-effort desktop toast otherwise/always.
func buildNotifier(cfg config.Config) *notify.Multi {
	toast := notify.NewToastNotifier(cfg.ToastAppID, "")
	if cfg.WebhookURL == "" {
		return notify.NewMulti(toast)
	}
	return notify.NewMulti(toast, notify.NewWebhookNotifier(cfg.WebhookURL))
}

// runAgentHosts listens on a per-role Unix socket for every known agent
// role and serves a fresh JSON-RPC Host over each accepted connection,
// binding the caller's role into the connection's context so
// send-message can trust "from" without a forgeable client-supplied
// field. Each connection gets its own Host (and so its own
// initialize/notifications-initialized gate, spec §4.6): sharing one
// Host instance across connections would let one role's handshake
// silently initialize every other role's socket.
func (a *app) runAgentHosts(ctx context.Context) {
	roles, err := a.agents.List()
	if err != nil {
		a.log.Warnw("could not list agent roles for RPC listeners", "error", err)
		return
	}
	for _, agentState := range roles {
		role := agentState.Role
		socketPath := a.spawn.SocketPath(role)
		os.Remove(socketPath)

		ln, err := net.Listen("unix", socketPath)
		if err != nil {
			a.log.Warnw("could not listen for agent role", "role", role, "error", err)
			continue
		}
		go a.serveRoleListener(ctx, role, ln)
	}
}

func (a *app) serveRoleListener(ctx context.Context, role string, ln net.Listener) {
	defer ln.Close()
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				a.log.Warnw("accept failed", "role", role, "error", err)
				return
			}
		}
		connCtx := tools.WithCallerRole(ctx, role)
		go func() {
			defer conn.Close()
			host := rpc.New(a.toolReg, a.resReg, a.cfg.ProtocolVersion, a.log)
			if err := host.Serve(connCtx, conn, conn); err != nil {
				a.log.Infow("agent connection closed", "role", role, "error", err)
			}
		}()
	}
}
