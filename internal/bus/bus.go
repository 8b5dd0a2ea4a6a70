// Package bus is the append-only communication log between agents and the
// supervisor (spec §4.3). Every publish persists first, then fans out a
// best-effort notification to subscribers — the dashboard publisher and the
// supervisor's own change signal — with bounded backpressure retries before
// a slow subscriber's notification is dropped (the log entry itself is
// never lost; only the live-notification side can drop).
package bus

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/apmas/apmas/internal/apmaserr"
	"github.com/apmas/apmas/internal/types"
)

const (
	subscriberBuffer       = 100
	maxBackpressureRetries = 3
	backpressureRetryDelay = 10 * time.Millisecond
)

type messageStore interface {
	AppendMessage(m *types.AgentMessage) error
	ListMessagesForRole(role string, since *time.Time, limit int, unprocessedOnly bool) ([]*types.AgentMessage, error)
	ListAllMessages() ([]*types.AgentMessage, error)
	ListUnprocessedByType(msgType types.MessageType) ([]*types.AgentMessage, error)
	GetMessage(id string) (*types.AgentMessage, error)
	MarkMessageProcessed(id string, at time.Time) error
}

type subscription struct {
	ch chan types.AgentMessage
}

// Bus implements the Message Bus.
type Bus struct {
	store messageStore

	mu          sync.RWMutex
	subscribers []*subscription
	dropped     uint64

	now func() time.Time
}

// New constructs a Bus over the given store.
func New(store messageStore) *Bus {
	return &Bus{store: store, now: time.Now}
}

// Subscribe returns a channel that receives every future published
// message. Callers must eventually Unsubscribe to release the channel.
func (b *Bus) Subscribe() <-chan types.AgentMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := &subscription{ch: make(chan types.AgentMessage, subscriberBuffer)}
	b.subscribers = append(b.subscribers, sub)
	return sub.ch
}

// Unsubscribe removes and closes a previously returned channel.
func (b *Bus) Unsubscribe(ch <-chan types.AgentMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subscribers {
		if sub.ch == ch {
			close(sub.ch)
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			return
		}
	}
}

// Publish assigns an id/timestamp if missing, validates the message type,
// persists it, and notifies subscribers.
func (b *Bus) Publish(m *types.AgentMessage) (*types.AgentMessage, error) {
	if !types.ValidMessageTypes[m.Type] {
		return nil, apmaserr.Validation("unknown message type %q", m.Type)
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = b.now()
	}

	if err := b.store.AppendMessage(m); err != nil {
		return nil, err
	}

	b.notify(*m)
	return m, nil
}

func (b *Bus) notify(m types.AgentMessage) {
	b.mu.RLock()
	subs := append([]*subscription(nil), b.subscribers...)
	b.mu.RUnlock()

	for _, sub := range subs {
		b.sendWithBackpressure(sub, m)
	}
}

func (b *Bus) sendWithBackpressure(sub *subscription, m types.AgentMessage) {
	select {
	case sub.ch <- m:
		return
	default:
	}
	for i := 0; i < maxBackpressureRetries; i++ {
		time.Sleep(backpressureRetryDelay)
		select {
		case sub.ch <- m:
			return
		default:
		}
	}
	atomic.AddUint64(&b.dropped, 1)
}

// DroppedNotifications returns how many live-notifications were dropped
// due to a full subscriber channel. The persisted log is unaffected.
func (b *Bus) DroppedNotifications() uint64 {
	return atomic.LoadUint64(&b.dropped)
}

// QueryForRole returns messages role sent or received (direct or
// broadcast), optionally bounded to those after since and capped at limit
// (limit <= 0 means unbounded), newest first — the store's getMessages
// contract (spec §4.1).
func (b *Bus) QueryForRole(role string, since *time.Time, limit int, unprocessedOnly bool) ([]*types.AgentMessage, error) {
	return b.store.ListMessagesForRole(role, since, limit, unprocessedOnly)
}

// QueryAll returns the entire message log, oldest first.
func (b *Bus) QueryAll() ([]*types.AgentMessage, error) {
	return b.store.ListAllMessages()
}

// UnprocessedByType returns unprocessed messages of a given type, oldest
// first — used by the supervisor's review-feedback scan.
func (b *Bus) UnprocessedByType(msgType types.MessageType) ([]*types.AgentMessage, error) {
	return b.store.ListUnprocessedByType(msgType)
}

// MarkProcessed is idempotent: marking an already-processed message is a
// no-op rather than an error.
func (b *Bus) MarkProcessed(id string) error {
	msg, err := b.store.GetMessage(id)
	if err != nil {
		return err
	}
	if msg.ProcessedAt != nil {
		return nil
	}
	return b.store.MarkMessageProcessed(id, b.now())
}
