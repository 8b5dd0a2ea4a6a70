package bus

import (
	"sync"
	"testing"
	"time"

	"github.com/apmas/apmas/internal/apmaserr"
	"github.com/apmas/apmas/internal/types"
)

type fakeMessageStore struct {
	mu       sync.Mutex
	messages map[string]*types.AgentMessage
	order    []string
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{messages: make(map[string]*types.AgentMessage)}
}

func (f *fakeMessageStore) AppendMessage(m *types.AgentMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *m
	f.messages[m.ID] = &cp
	f.order = append(f.order, m.ID)
	return nil
}

func (f *fakeMessageStore) ListMessagesForRole(role string, since *time.Time, limit int, unprocessedOnly bool) ([]*types.AgentMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.AgentMessage
	for i := len(f.order) - 1; i >= 0; i-- {
		m := f.messages[f.order[i]]
		if m.From != role && m.To != role && m.To != types.RecipientAll {
			continue
		}
		if since != nil && !m.Timestamp.After(*since) {
			continue
		}
		if unprocessedOnly && m.ProcessedAt != nil {
			continue
		}
		out = append(out, m)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeMessageStore) ListAllMessages() ([]*types.AgentMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.AgentMessage
	for _, id := range f.order {
		out = append(out, f.messages[id])
	}
	return out, nil
}

func (f *fakeMessageStore) ListUnprocessedByType(msgType types.MessageType) ([]*types.AgentMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.AgentMessage
	for _, id := range f.order {
		m := f.messages[id]
		if m.Type == msgType && m.ProcessedAt == nil {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMessageStore) GetMessage(id string) (*types.AgentMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[id]
	if !ok {
		return nil, apmaserr.NotFound("message %q", id)
	}
	return m, nil
}

func (f *fakeMessageStore) MarkMessageProcessed(id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[id]
	if !ok {
		return apmaserr.NotFound("message %q", id)
	}
	t := at
	m.ProcessedAt = &t
	return nil
}

func TestPublishAssignsIDAndTimestamp(t *testing.T) {
	b := New(newFakeMessageStore())
	m, err := b.Publish(&types.AgentMessage{From: "architect", To: "developer", Type: types.MsgAssignment, Content: "build it"})
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if m.ID == "" {
		t.Error("expected Publish to assign an ID")
	}
	if m.Timestamp.IsZero() {
		t.Error("expected Publish to stamp a timestamp")
	}
}

func TestPublishRejectsUnknownType(t *testing.T) {
	b := New(newFakeMessageStore())
	_, err := b.Publish(&types.AgentMessage{From: "a", To: "b", Type: types.MessageType("bogus")})
	if !apmaserr.Is(err, apmaserr.KindValidationError) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestSubscribeReceivesPublishedMessage(t *testing.T) {
	b := New(newFakeMessageStore())
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	if _, err := b.Publish(&types.AgentMessage{From: "a", To: "b", Type: types.MsgInfo, Content: "hi"}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case got := <-ch:
		if got.Content != "hi" {
			t.Errorf("received content %q, want %q", got.Content, "hi")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for subscriber notification")
	}
}

func TestMarkProcessedIsIdempotent(t *testing.T) {
	store := newFakeMessageStore()
	b := New(store)
	m, err := b.Publish(&types.AgentMessage{From: "a", To: "b", Type: types.MsgInfo, Content: "hi"})
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	if err := b.MarkProcessed(m.ID); err != nil {
		t.Fatalf("first MarkProcessed failed: %v", err)
	}
	first, _ := store.GetMessage(m.ID)
	firstProcessedAt := *first.ProcessedAt

	if err := b.MarkProcessed(m.ID); err != nil {
		t.Fatalf("second MarkProcessed failed: %v", err)
	}
	second, _ := store.GetMessage(m.ID)
	if !second.ProcessedAt.Equal(firstProcessedAt) {
		t.Errorf("MarkProcessed re-stamped an already-processed message: %v -> %v", firstProcessedAt, *second.ProcessedAt)
	}
}

func TestUnprocessedByTypeReturnsAllUnprocessed(t *testing.T) {
	b := New(newFakeMessageStore())
	base := time.Now().UTC()
	b.Publish(&types.AgentMessage{ID: "later", From: "reviewer", To: "developer", Type: types.MsgChangesRequested, Timestamp: base.Add(time.Minute)})
	b.Publish(&types.AgentMessage{ID: "earlier", From: "reviewer", To: "developer", Type: types.MsgChangesRequested, Timestamp: base})

	got, err := b.UnprocessedByType(types.MsgChangesRequested)
	if err != nil {
		t.Fatalf("UnprocessedByType failed: %v", err)
	}
	// Our fake store doesn't re-sort by timestamp (the real store does via
	// SQL ORDER BY); this test only verifies both survive the round trip
	// and the bus doesn't filter anything out incorrectly.
	if len(got) != 2 {
		t.Fatalf("UnprocessedByType returned %d messages, want 2", len(got))
	}
}
