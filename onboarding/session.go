package onboarding

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/youcodecowboy/disco-grid/contract"
	"github.com/youcodecowboy/disco-grid/storage"
)

// SessionsBucket is the KV bucket holding onboarding sessions.
const SessionsBucket = "DISCOGRID_SESSIONS"

// Session is one user's pass through the onboarding questionnaire.
type Session struct {
	// ID uniquely identifies the session (format: s-{uuid}).
	ID string `json:"id"`

	// Contract holds the answers collected so far.
	Contract *contract.Contract `json:"contract"`

	// Completed is set once every required visible question was answered.
	Completed bool `json:"completed"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Revision is the store revision the session was read at.
	Revision uint64 `json:"-"`
}

// NewSession creates an empty session with a generated ID.
func NewSession() *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        "s-" + uuid.New().String(),
		Contract:  contract.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SessionStore persists sessions.
// Update must fail with storage.ErrConflict when s.Revision is stale.
type SessionStore interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Update(ctx context.Context, s *Session) error
}

// MemorySessionStore keeps sessions in process memory.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]memoryEntry
}

type memoryEntry struct {
	session  *Session
	revision uint64
}

// NewMemorySessionStore creates an empty in-memory store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]memoryEntry)}
}

// Create stores a new session.
func (m *MemorySessionStore) Create(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[s.ID]; ok {
		return storage.ErrExists
	}
	s.Revision = 1
	m.sessions[s.ID] = memoryEntry{session: cloneSession(s), revision: 1}
	return nil
}

// Get returns a copy of the stored session.
func (m *MemorySessionStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.sessions[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	s := cloneSession(e.session)
	s.Revision = e.revision
	return s, nil
}

// Update replaces a session if its revision is current.
func (m *MemorySessionStore) Update(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[s.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if e.revision != s.Revision {
		return storage.ErrConflict
	}
	s.Revision = e.revision + 1
	m.sessions[s.ID] = memoryEntry{session: cloneSession(s), revision: s.Revision}
	return nil
}

func cloneSession(s *Session) *Session {
	out := *s
	out.Contract = s.Contract.Clone()
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}

// KVSessionStore keeps sessions in a NATS JetStream KV bucket.
type KVSessionStore struct {
	bucket *storage.Bucket
}

// NewKVSessionStore opens (or creates) the sessions bucket.
func NewKVSessionStore(ctx context.Context, js jetstream.JetStream, ttl time.Duration) (*KVSessionStore, error) {
	b, err := storage.OpenBucket(ctx, js, storage.BucketConfig{
		Name:        SessionsBucket,
		Description: "Onboarding sessions and their answer contracts",
		TTL:         ttl,
	})
	if err != nil {
		return nil, err
	}
	return &KVSessionStore{bucket: b}, nil
}

// Create stores a new session.
func (k *KVSessionStore) Create(ctx context.Context, s *Session) error {
	rev, err := k.bucket.Create(ctx, s.ID, s)
	if err != nil {
		return err
	}
	s.Revision = rev
	return nil
}

// Get loads a session.
func (k *KVSessionStore) Get(ctx context.Context, id string) (*Session, error) {
	var s Session
	rev, err := k.bucket.Get(ctx, id, &s)
	if err != nil {
		return nil, err
	}
	if s.Contract == nil {
		s.Contract = contract.New()
	}
	s.Revision = rev
	return &s, nil
}

// Update stores the session if its revision is current.
func (k *KVSessionStore) Update(ctx context.Context, s *Session) error {
	rev, err := k.bucket.Update(ctx, s.ID, s, s.Revision)
	if err != nil {
		return fmt.Errorf("update session %s: %w", s.ID, err)
	}
	s.Revision = rev
	return nil
}
