package recording

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// Repository is the concurrency-safe contract for session state.
type Repository interface {
	// Create stores a new session. The ID must be unused.
	Create(s Session) error

	// Get returns a copy of the session.
	Get(id SessionID) (Session, bool)

	// List returns copies of all sessions, newest first.
	List() []Session

	// Open returns sessions that are not finished, oldest first.
	Open() []Session

	// MarkStopping records that stop was requested. Stopping an already
	// stopping session is a no-op.
	MarkStopping(id SessionID, at time.Time) error

	// Finish closes the session with its final encoder frame count.
	// Finishing twice is a no-op.
	Finish(id SessionID, at time.Time, frames uint64) error

	// OpenCount is the number of sessions not finished. Used for metrics.
	OpenCount() int
}

var (
	// ErrSessionExists is returned by Create for a duplicate ID.
	ErrSessionExists = errors.New("session already exists")

	// ErrSessionNotFound is returned for unknown IDs.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionFinished is returned when stopping a finished session.
	ErrSessionFinished = errors.New("session already finished")
)

// InMemoryRepository implements Repository over a Store.
type InMemoryRepository struct {
	mu    sync.RWMutex
	store Store
}

// NewInMemoryRepository returns a repository backed by an InMemoryStore.
func NewInMemoryRepository() *InMemoryRepository {
	return NewInMemoryRepositoryWithStore(NewInMemoryStore())
}

// NewInMemoryRepositoryWithStore returns a repository backed by store.
func NewInMemoryRepositoryWithStore(store Store) *InMemoryRepository {
	return &InMemoryRepository{store: store}
}

func (r *InMemoryRepository) Create(s Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.store.GetSession(s.ID); exists {
		return ErrSessionExists
	}
	r.store.SetSession(&s)
	return nil
}

func (r *InMemoryRepository) Get(id SessionID) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.store.GetSession(id)
	if !ok {
		return Session{}, false
	}
	return *s, true
}

func (r *InMemoryRepository) List() []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := r.snapshotLocked(func(*Session) bool { return true })
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

func (r *InMemoryRepository) Open() []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := r.snapshotLocked(func(s *Session) bool { return !s.Done() })
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

func (r *InMemoryRepository) MarkStopping(id SessionID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.store.GetSession(id)
	if !ok {
		return ErrSessionNotFound
	}
	switch s.State {
	case StateFinished:
		return ErrSessionFinished
	case StateStopping:
		return nil
	}
	s.State = StateStopping
	at = at.UTC()
	s.StoppedAt = &at
	return nil
}

func (r *InMemoryRepository) Finish(id SessionID, at time.Time, frames uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.store.GetSession(id)
	if !ok {
		return ErrSessionNotFound
	}
	if s.Done() {
		return nil
	}
	at = at.UTC()
	if s.StoppedAt == nil {
		s.StoppedAt = &at
	}
	s.State = StateFinished
	s.FinishedAt = &at
	s.EncoderFrames = frames
	return nil
}

func (r *InMemoryRepository) OpenCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, id := range r.store.ListSessionIDs() {
		if s, ok := r.store.GetSession(id); ok && !s.Done() {
			n++
		}
	}
	return n
}

// snapshotLocked copies the sessions keep accepts. Caller must hold r.mu.
func (r *InMemoryRepository) snapshotLocked(keep func(*Session) bool) []Session {
	ids := r.store.ListSessionIDs()
	out := make([]Session, 0, len(ids))
	for _, id := range ids {
		if s, ok := r.store.GetSession(id); ok && keep(s) {
			out = append(out, *s)
		}
	}
	return out
}
