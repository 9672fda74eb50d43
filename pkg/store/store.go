// Package store holds the authoritative in-memory state of every research
// session plus the event fan-out that lets any number of subscribers observe
// it live. It is the only shared mutable state in the system: every other
// package reaches a Session only through the Store's API, never by holding a
// *model.Session directly across a suspension point.
package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tarsy-labs/deepresearch/pkg/model"
)

// ErrSessionNotFound is returned by any lookup against an unknown session id.
type ErrSessionNotFound struct{ SessionID string }

func (e *ErrSessionNotFound) Error() string {
	return fmt.Sprintf("session not found: %s", e.SessionID)
}

// entry bundles one session's state with its own lock and subscriber set.
// Locks are per-session so operations on different sessions never contend,
// per the concurrency model in SPEC_FULL.md section 5.
type entry struct {
	mu      sync.Mutex
	session *model.Session

	// subs is guarded by mu, the same lock that guards session state.
	// Registration, backlog delivery and live publishing all happen as
	// non-blocking channel operations (buffered channel + select/default),
	// so holding mu across them never stalls on subscriber I/O; it only
	// ever buys the ordering guarantee that a subscriber's backlog and the
	// live events published after it registers can never interleave or
	// duplicate.
	subs      map[int]*subscriber
	nextSubID int

	nextAgentNum int
	nextStepNum  int
}

// Store is the session table. Its own lock only ever guards the map itself;
// it is held just long enough to look up or insert an *entry; it is never
// held across a session mutation.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry

	bufferSize int
}

// New creates an empty Store. bufferSize is the per-subscriber channel
// capacity described in SPEC_FULL.md section 4.1 (config Limits.SubscriberBufferSize).
func New(bufferSize int) *Store {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Store{
		sessions:   make(map[string]*entry),
		bufferSize: bufferSize,
	}
}

// Create allocates a new session in the "initializing" status with its
// orchestrator pseudo-agent already present and running, and registers the
// orchestrator node in the flow graph. It returns the new session id.
func (s *Store) Create(query, clarification string, models model.ModelSelection) string {
	id := uuid.NewString()
	now := time.Now()

	sess := &model.Session{
		ID:            id,
		Query:         query,
		Clarification: clarification,
		Models:        models,
		Status:        model.SessionInitializing,
		CreatedAt:     now,
		UpdatedAt:     now,
		Agents:        make(map[string]*model.Agent),
		PlanSteps:     make(map[string]*model.PlanStep),
	}
	sess.Agents[model.OrchestratorAgentID] = &model.Agent{
		ID:           model.OrchestratorAgentID,
		Task:         query,
		Status:       model.AgentRunning,
		CreatedAt:    now,
		UpdatedAt:    now,
		LastActivity: now,
	}

	e := &entry{
		session: sess,
		subs:    make(map[int]*subscriber),
	}

	s.mu.Lock()
	s.sessions[id] = e
	s.mu.Unlock()

	return id
}

// Get returns a consistent snapshot of the session, or ErrSessionNotFound.
func (s *Store) Get(sessionID string) (*model.Session, error) {
	e, err := s.entry(sessionID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Snapshot(), nil
}

func (s *Store) entry(sessionID string) (*entry, error) {
	s.mu.RLock()
	e, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, &ErrSessionNotFound{SessionID: sessionID}
	}
	return e, nil
}

// nextAgentID returns the next monotonically-increasing agent id for this
// session. Caller must hold e.mu.
func (e *entry) nextAgentID() string {
	e.nextAgentNum++
	return fmt.Sprintf("agent_%d", e.nextAgentNum)
}

// nextStepID returns the next monotonically-increasing plan step id. Caller
// must hold e.mu.
func (e *entry) nextStepID() string {
	e.nextStepNum++
	return fmt.Sprintf("step_%d", e.nextStepNum)
}
