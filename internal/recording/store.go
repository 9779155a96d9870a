package recording

// Store is the persistence abstraction for sessions. The Repository owns
// locking; stores need not be safe for concurrent use.
type Store interface {
	GetSession(id SessionID) (*Session, bool)
	SetSession(s *Session)
	ListSessionIDs() []SessionID
}

// InMemoryStore keeps sessions in a map.
type InMemoryStore struct {
	sessions map[SessionID]*Session
}

// NewInMemoryStore returns an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[SessionID]*Session)}
}

func (s *InMemoryStore) GetSession(id SessionID) (*Session, bool) {
	sess, ok := s.sessions[id]
	return sess, ok
}

func (s *InMemoryStore) SetSession(sess *Session) {
	s.sessions[sess.ID] = sess
}

func (s *InMemoryStore) ListSessionIDs() []SessionID {
	ids := make([]SessionID, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}
