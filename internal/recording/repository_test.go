package recording

import (
	"errors"
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func session(id string, startedAfter time.Duration) Session {
	return Session{ID: SessionID(id), State: StateRecording, StartedAt: epoch.Add(startedAfter)}
}

func TestInMemoryRepository_Create(t *testing.T) {
	repo := NewInMemoryRepository()

	t.Run("success", func(t *testing.T) {
		if err := repo.Create(session("a", 0)); err != nil {
			t.Fatalf("Create: %v", err)
		}
		got, ok := repo.Get("a")
		if !ok {
			t.Fatal("Get: ok false")
		}
		if got.State != StateRecording || !got.StartedAt.Equal(epoch) {
			t.Errorf("Get: got %+v", got)
		}
	})

	t.Run("duplicate", func(t *testing.T) {
		err := repo.Create(session("a", time.Second))
		if !errors.Is(err, ErrSessionExists) {
			t.Errorf("expected ErrSessionExists, got %v", err)
		}
		got, _ := repo.Get("a")
		if !got.StartedAt.Equal(epoch) {
			t.Error("duplicate create must not replace the session")
		}
	})
}

func TestInMemoryRepository_Get_returns_copy(t *testing.T) {
	repo := NewInMemoryRepository()
	_ = repo.Create(session("a", 0))

	got, _ := repo.Get("a")
	got.State = StateFinished

	again, _ := repo.Get("a")
	if again.State != StateRecording {
		t.Errorf("mutating a copy leaked into the repository: %s", again.State)
	}
}

func TestInMemoryRepository_Get_not_found(t *testing.T) {
	repo := NewInMemoryRepository()
	if _, ok := repo.Get("missing"); ok {
		t.Error("expected not found")
	}
}

func TestInMemoryRepository_List_newest_first(t *testing.T) {
	repo := NewInMemoryRepository()
	_ = repo.Create(session("old", 0))
	_ = repo.Create(session("new", 2*time.Second))
	_ = repo.Create(session("mid", time.Second))

	got := repo.List()
	if len(got) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(got))
	}
	if got[0].ID != "new" || got[1].ID != "mid" || got[2].ID != "old" {
		t.Errorf("unexpected order: %s %s %s", got[0].ID, got[1].ID, got[2].ID)
	}
}

func TestInMemoryRepository_Open(t *testing.T) {
	repo := NewInMemoryRepository()
	_ = repo.Create(session("b", time.Second))
	_ = repo.Create(session("a", 0))
	_ = repo.Create(session("c", 2*time.Second))
	if err := repo.Finish("c", epoch.Add(3*time.Second), 10); err != nil {
		t.Fatal(err)
	}

	got := repo.Open()
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Errorf("expected open sessions a, b oldest first, got %v", got)
	}
	if n := repo.OpenCount(); n != 2 {
		t.Errorf("OpenCount = %d, want 2", n)
	}
}

func TestInMemoryRepository_MarkStopping(t *testing.T) {
	repo := NewInMemoryRepository()
	_ = repo.Create(session("a", 0))
	stopAt := epoch.Add(5 * time.Second)

	t.Run("success", func(t *testing.T) {
		if err := repo.MarkStopping("a", stopAt); err != nil {
			t.Fatalf("MarkStopping: %v", err)
		}
		got, _ := repo.Get("a")
		if got.State != StateStopping {
			t.Errorf("state = %s, want stopping", got.State)
		}
		if got.StoppedAt == nil || !got.StoppedAt.Equal(stopAt) {
			t.Errorf("StoppedAt = %v, want %v", got.StoppedAt, stopAt)
		}
	})

	t.Run("twice_is_noop", func(t *testing.T) {
		if err := repo.MarkStopping("a", stopAt.Add(time.Minute)); err != nil {
			t.Fatalf("second MarkStopping: %v", err)
		}
		got, _ := repo.Get("a")
		if !got.StoppedAt.Equal(stopAt) {
			t.Errorf("second stop moved StoppedAt to %v", got.StoppedAt)
		}
	})

	t.Run("not_found", func(t *testing.T) {
		if err := repo.MarkStopping("missing", stopAt); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("finished", func(t *testing.T) {
		_ = repo.Finish("a", stopAt, 3)
		if err := repo.MarkStopping("a", stopAt); !errors.Is(err, ErrSessionFinished) {
			t.Errorf("expected ErrSessionFinished, got %v", err)
		}
	})
}

func TestInMemoryRepository_Finish(t *testing.T) {
	repo := NewInMemoryRepository()
	_ = repo.Create(session("a", 0))
	at := epoch.Add(time.Minute)

	if err := repo.Finish("a", at, 42); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	got, _ := repo.Get("a")
	if !got.Done() || got.EncoderFrames != 42 {
		t.Errorf("Finish: got %+v", got)
	}
	if got.StoppedAt == nil || !got.StoppedAt.Equal(at) {
		t.Errorf("Finish without stop should set StoppedAt, got %v", got.StoppedAt)
	}
	if got.FinishedAt == nil || !got.FinishedAt.Equal(at) {
		t.Errorf("FinishedAt = %v, want %v", got.FinishedAt, at)
	}

	if err := repo.Finish("a", at.Add(time.Hour), 99); err != nil {
		t.Fatalf("second Finish: %v", err)
	}
	again, _ := repo.Get("a")
	if again.EncoderFrames != 42 || !again.FinishedAt.Equal(at) {
		t.Errorf("second Finish must be a no-op, got %+v", again)
	}

	if err := repo.Finish("missing", at, 0); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestNewInMemoryRepositoryWithStore(t *testing.T) {
	store := NewInMemoryStore()
	repo := NewInMemoryRepositoryWithStore(store)
	_ = repo.Create(session("a", 0))

	if _, ok := store.GetSession("a"); !ok {
		t.Error("repository should write through to the given store")
	}
}
