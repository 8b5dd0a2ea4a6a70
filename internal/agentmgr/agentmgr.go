// Package agentmgr is the thin read-through cache over the state store that
// serializes read-modify-write of a single AgentState (spec §4.2). It is
// the only path that mutates AgentState; every other component reads
// through Get/List or proposes a change through Update.
package agentmgr

import (
	"sync"
	"time"

	"github.com/apmas/apmas/internal/apmaserr"
	"github.com/apmas/apmas/internal/types"
)

// agentStore is the subset of store.Store the manager depends on, so tests
// can swap in a fake without a real SQLite file.
type agentStore interface {
	GetAgentState(role string) (*types.AgentState, error)
	SaveAgentState(a *types.AgentState) error
	ListAgentStates() ([]*types.AgentState, error)
}

// allowedTransitions enumerates every legal AgentStatus change. A mutator
// that leaves Status unchanged always passes; Completed->Queued and
// Completed->Pending are the two sanctioned back-transitions from a
// terminal status (the rework protocol resetting, respectively, the
// developer and the reviewer — see spec §4.4 step 4).
var allowedTransitions = map[types.AgentStatus][]types.AgentStatus{
	types.StatusPending:   {types.StatusQueued, types.StatusEscalated},
	types.StatusQueued:    {types.StatusSpawning, types.StatusRunning, types.StatusFailed, types.StatusEscalated},
	types.StatusSpawning:  {types.StatusRunning, types.StatusQueued, types.StatusFailed, types.StatusTimedOut, types.StatusEscalated},
	types.StatusRunning:   {types.StatusPaused, types.StatusCompleted, types.StatusFailed, types.StatusTimedOut, types.StatusEscalated},
	types.StatusPaused:    {types.StatusRunning, types.StatusEscalated},
	types.StatusTimedOut:  {types.StatusQueued, types.StatusFailed, types.StatusEscalated},
	types.StatusCompleted: {types.StatusQueued, types.StatusPending, types.StatusEscalated},
	types.StatusFailed:    {},
	types.StatusEscalated: {},
}

type cacheEntry struct {
	state     *types.AgentState
	expiresAt time.Time
}

// Manager implements the Agent State Manager.
type Manager struct {
	store               agentStore
	cacheTTL            time.Duration
	maxReviewIterations int

	roleLocksMu sync.Mutex
	roleLocks   map[string]*sync.Mutex

	cacheMu sync.RWMutex
	cache   map[string]cacheEntry

	now func() time.Time
}

// New constructs a Manager. cacheTTL of zero disables caching (every Get
// hits the store); maxReviewIterations bounds the rework protocol's retry
// count invariant.
func New(s agentStore, cacheTTL time.Duration, maxReviewIterations int) *Manager {
	return &Manager{
		store:               s,
		cacheTTL:            cacheTTL,
		maxReviewIterations: maxReviewIterations,
		roleLocks:           make(map[string]*sync.Mutex),
		cache:               make(map[string]cacheEntry),
		now:                 time.Now,
	}
}

// Seed persists a role's initial state directly, bypassing transition
// validation — used only at project initialization, before any state
// machine history exists for the role.
func (m *Manager) Seed(a *types.AgentState) error {
	lock := m.lockFor(a.Role)
	lock.Lock()
	defer lock.Unlock()
	if err := m.store.SaveAgentState(a); err != nil {
		return err
	}
	m.cacheSet(a.Role, a)
	return nil
}

// Get returns a snapshot of role's current state, serving from cache when
// the entry is still fresh.
func (m *Manager) Get(role string) (*types.AgentState, error) {
	if cached := m.cacheGet(role); cached != nil {
		return cached.Clone(), nil
	}
	a, err := m.store.GetAgentState(role)
	if err != nil {
		return nil, err
	}
	m.cacheSet(role, a)
	return a.Clone(), nil
}

// List returns a snapshot of every tracked role. It always reads through
// to the store, since callers scanning the whole roster need a consistent
// view rather than a possibly-stale per-role cache mix.
func (m *Manager) List() ([]*types.AgentState, error) {
	all, err := m.store.ListAgentStates()
	if err != nil {
		return nil, err
	}
	out := make([]*types.AgentState, len(all))
	for i, a := range all {
		out[i] = a.Clone()
	}
	return out, nil
}

// Update acquires role's lock, loads the latest persisted state, applies
// mutator to a private copy, validates the resulting transition, persists
// it, and invalidates the cache entry. It returns the new state on success.
func (m *Manager) Update(role string, mutator func(*types.AgentState) error) (*types.AgentState, error) {
	lock := m.lockFor(role)
	lock.Lock()
	defer lock.Unlock()

	current, err := m.store.GetAgentState(role)
	if err != nil {
		return nil, err
	}

	next := current.Clone()
	if err := mutator(next); err != nil {
		return nil, err
	}

	if err := m.validate(current, next); err != nil {
		return nil, err
	}

	if err := m.store.SaveAgentState(next); err != nil {
		return nil, err
	}
	m.cacheSet(role, next)
	return next.Clone(), nil
}

func (m *Manager) validate(old, next *types.AgentState) error {
	if next.Status != old.Status {
		allowed := allowedTransitions[old.Status]
		ok := false
		for _, s := range allowed {
			if s == next.Status {
				ok = true
				break
			}
		}
		if !ok {
			return apmaserr.InvalidState("role %q: illegal transition %s -> %s", old.Role, old.Status, next.Status)
		}
	}
	if next.ReviewIterationCount > m.maxReviewIterations && next.Status != types.StatusEscalated {
		return apmaserr.InvalidState("role %q: reviewIterationCount %d exceeds cap %d without escalating",
			next.Role, next.ReviewIterationCount, m.maxReviewIterations)
	}
	return nil
}

func (m *Manager) lockFor(role string) *sync.Mutex {
	m.roleLocksMu.Lock()
	defer m.roleLocksMu.Unlock()
	l, ok := m.roleLocks[role]
	if !ok {
		l = &sync.Mutex{}
		m.roleLocks[role] = l
	}
	return l
}

func (m *Manager) cacheGet(role string) *types.AgentState {
	if m.cacheTTL <= 0 {
		return nil
	}
	m.cacheMu.RLock()
	defer m.cacheMu.RUnlock()
	entry, ok := m.cache[role]
	if !ok || m.now().After(entry.expiresAt) {
		return nil
	}
	return entry.state
}

func (m *Manager) cacheSet(role string, a *types.AgentState) {
	if m.cacheTTL <= 0 {
		return
	}
	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()
	m.cache[role] = cacheEntry{state: a.Clone(), expiresAt: m.now().Add(m.cacheTTL)}
}
