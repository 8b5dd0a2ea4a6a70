// Package dashboardbus implements the external DashboardPublisher
// collaborator (spec §6) over NATS: each DashboardEvent is published as
// JSON to a subject keyed by its event type, so any number of live
// dashboard subscribers can fan in without the supervisor knowing who, or
// how many, are listening.
package dashboardbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	nc "github.com/nats-io/nats.go"

	"github.com/apmas/apmas/internal/types"
)

// Subject patterns, one per DashboardEventType, grounded on the teacher's
// "agent.%s.status"-style sprintf subject constants.
const (
	SubjectAgentUpdate   = "apmas.dashboard.agent-update"
	SubjectMessage       = "apmas.dashboard.message"
	SubjectCheckpoint    = "apmas.dashboard.checkpoint"
	SubjectProjectUpdate = "apmas.dashboard.project-update"
)

func subjectFor(t types.DashboardEventType) string {
	switch t {
	case types.EventAgentUpdate:
		return SubjectAgentUpdate
	case types.EventMessage:
		return SubjectMessage
	case types.EventCheckpoint:
		return SubjectCheckpoint
	case types.EventProjectUpdate:
		return SubjectProjectUpdate
	default:
		return "apmas.dashboard.unknown"
	}
}

// Publisher implements supervisor.DashboardPublisher over a NATS
// connection.
type Publisher struct {
	conn *nc.Conn
}

// Connect dials url with indefinite-reconnect options, matching the
// teacher's NewClient.
func Connect(url string) (*Publisher, error) {
	opts := []nc.Option{
		nc.ReconnectWait(2 * time.Second),
		nc.MaxReconnects(-1),
	}
	conn, err := nc.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}
	return &Publisher{conn: conn}, nil
}

// Close closes the underlying connection (a plain Close, not a Drain).
func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}

// Publish implements supervisor.DashboardPublisher.
func (p *Publisher) Publish(ctx context.Context, e types.DashboardEvent) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal dashboard event: %w", err)
	}
	if err := p.conn.Publish(subjectFor(e.Type), data); err != nil {
		return fmt.Errorf("publish dashboard event to %s: %w", subjectFor(e.Type), err)
	}
	return nil
}
