package recording

import (
	"testing"
	"time"
)

func TestInMemoryStore_GetSetSession(t *testing.T) {
	store := NewInMemoryStore()

	_, ok := store.GetSession(SessionID("a"))
	if ok {
		t.Error("expected not found for empty store")
	}

	s := &Session{ID: SessionID("a"), State: StateRecording}
	store.SetSession(s)

	got, ok := store.GetSession(SessionID("a"))
	if !ok || got != s {
		t.Errorf("GetSession: ok=%v, got %p want %p", ok, got, s)
	}
}

func TestInMemoryStore_SetSession_replaces(t *testing.T) {
	store := NewInMemoryStore()
	s1 := &Session{ID: SessionID("a"), State: StateRecording}
	s2 := &Session{ID: SessionID("a"), State: StateFinished}
	store.SetSession(s1)
	store.SetSession(s2)

	got, ok := store.GetSession(SessionID("a"))
	if !ok || got != s2 {
		t.Errorf("SetSession should replace: got %p want %p", got, s2)
	}
}

func TestInMemoryStore_ListSessionIDs(t *testing.T) {
	store := NewInMemoryStore()
	if ids := store.ListSessionIDs(); len(ids) != 0 {
		t.Errorf("expected no ids, got %v", ids)
	}
	store.SetSession(&Session{ID: "a", StartedAt: time.Unix(1, 0)})
	store.SetSession(&Session{ID: "b", StartedAt: time.Unix(2, 0)})

	ids := store.ListSessionIDs()
	if len(ids) != 2 {
		t.Fatalf("expected 2 ids, got %v", ids)
	}
	seen := map[SessionID]bool{}
	for _, id := range ids {
		seen[id] = true
	}
	if !seen["a"] || !seen["b"] {
		t.Errorf("missing ids: %v", ids)
	}
}
