// Package resources implements the Resource Registry (spec §4.8): a
// read-only, URI-addressed view over the State Store, served with a short
// in-memory cache so a burst of reads within the cache window never hits
// the store twice for the same URI.
package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/apmas/apmas/internal/agentmgr"
	"github.com/apmas/apmas/internal/apmaserr"
	"github.com/apmas/apmas/internal/bus"
	"github.com/apmas/apmas/internal/checkpoint"
	"github.com/apmas/apmas/internal/rpc"
	"github.com/apmas/apmas/internal/types"
)

const (
	uriProjectState    = "apmas://project/state"
	uriMessages        = "apmas://messages"
	uriMessagesPrefix  = "apmas://messages/"
	uriCheckpointsPref = "apmas://checkpoints/"

	defaultMessageCap = 100
)

type projectStore interface {
	GetProjectState() (*types.ProjectState, error)
}

type cacheEntry struct {
	body      string
	expiresAt time.Time
}

// Registry implements rpc.ResourceReader. Entries are cached per-URI for
// ttl, mirroring the teacher's debounced-save idea applied to reads
// instead of writes: a burst of reads within the window is served from
// memory, and the very next read past the window goes to the store.
type Registry struct {
	project     projectStore
	agents      *agentmgr.Manager
	messageBus  *bus.Bus
	checkpoints *checkpoint.Recorder
	ttl         time.Duration
	now         func() time.Time

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// New constructs a Registry. ttl is the per-entry cache lifetime (spec §4.8
// calls for 2-5s).
func New(project projectStore, agents *agentmgr.Manager, b *bus.Bus, checkpoints *checkpoint.Recorder, ttl time.Duration) *Registry {
	return &Registry{
		project:     project,
		agents:      agents,
		messageBus:  b,
		checkpoints: checkpoints,
		ttl:         ttl,
		now:         time.Now,
		cache:       make(map[string]cacheEntry),
	}
}

// ListResources implements rpc.ResourceReader: one project/state instance
// plus one messages/checkpoints pair per known agent role.
func (r *Registry) ListResources() []rpc.ResourceDescriptor {
	out := []rpc.ResourceDescriptor{
		{URI: uriProjectState, Name: "project state", Description: "Current project phase and metadata.", MimeType: "application/json"},
		{URI: uriMessages, Name: "recent messages", Description: "Most recent messages across all roles.", MimeType: "application/json"},
	}

	roles, err := r.agents.List()
	if err != nil {
		return out
	}
	for _, a := range roles {
		out = append(out,
			rpc.ResourceDescriptor{URI: uriMessagesPrefix + a.Role, Name: "messages for " + a.Role, MimeType: "application/json"},
			rpc.ResourceDescriptor{URI: uriCheckpointsPref + a.Role, Name: "latest checkpoint for " + a.Role, MimeType: "application/json"},
		)
	}
	return out
}

// ReadResource implements rpc.ResourceReader.
func (r *Registry) ReadResource(ctx context.Context, uri string) (rpc.ResourceContent, error) {
	if cached, ok := r.cacheGet(uri); ok {
		return rpc.ResourceContent{URI: uri, MimeType: "application/json", Text: cached}, nil
	}

	body, err := r.render(uri)
	if err != nil {
		return rpc.ResourceContent{}, err
	}
	r.cacheSet(uri, body)
	return rpc.ResourceContent{URI: uri, MimeType: "application/json", Text: body}, nil
}

func (r *Registry) render(uri string) (string, error) {
	switch {
	case uri == uriProjectState:
		return r.renderProjectState()
	case uri == uriMessages:
		return r.renderMessages("")
	case strings.HasPrefix(uri, uriMessagesPrefix):
		return r.renderMessages(strings.TrimPrefix(uri, uriMessagesPrefix))
	case strings.HasPrefix(uri, uriCheckpointsPref):
		return r.renderCheckpoint(strings.TrimPrefix(uri, uriCheckpointsPref))
	default:
		return "", apmaserr.Validation("no resource matches URI %q", uri)
	}
}

func (r *Registry) renderProjectState() (string, error) {
	p, err := r.project.GetProjectState()
	if err != nil {
		return "", err
	}
	return marshalIndented(p)
}

func (r *Registry) renderMessages(role string) (string, error) {
	var msgs []*types.AgentMessage
	var err error
	if role == "" {
		msgs, err = r.messageBus.QueryAll()
		if err == nil && len(msgs) > defaultMessageCap {
			msgs = msgs[len(msgs)-defaultMessageCap:]
		}
	} else {
		msgs, err = r.messageBus.QueryForRole(role, nil, defaultMessageCap, false)
	}
	if err != nil {
		return "", err
	}
	return marshalIndented(msgs)
}

func (r *Registry) renderCheckpoint(role string) (string, error) {
	if role == "" {
		return "", apmaserr.Validation("checkpoint resource URI missing role")
	}
	c, err := r.checkpoints.Latest(role)
	if err != nil {
		return "", err
	}
	return marshalIndented(c)
}

func marshalIndented(v interface{}) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal resource body: %w", err)
	}
	return string(b), nil
}

func (r *Registry) cacheGet(uri string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.cache[uri]
	if !ok || r.now().After(entry.expiresAt) {
		return "", false
	}
	return entry.body, true
}

func (r *Registry) cacheSet(uri, body string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[uri] = cacheEntry{body: body, expiresAt: r.now().Add(r.ttl)}
}
