package recording

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"video-compositor/internal/platform/metrics"
	"video-compositor/internal/render"
)

func newTestHandler(t *testing.T, video render.Size) (*Handler, *fixture) {
	t.Helper()
	f := newFixture(video)
	return NewHandler(f.svc, discardLogger(), nil), f
}

func newTestRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	h.Routes(r)
	return r
}

func do(r http.Handler, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandler_StartRecording(t *testing.T) {
	h, _ := newTestHandler(t, render.Size{Width: 1920, Height: 1080})
	r := newTestRouter(h)

	rec := do(r, http.MethodPost, "/recordings")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected json content type, got %s", ct)
	}
	var sess Session
	if err := json.NewDecoder(rec.Body).Decode(&sess); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sess.ID == "" || sess.State != StateRecording {
		t.Errorf("unexpected session: %+v", sess)
	}
	if sess.RecordingSize != (render.Size{Width: 1280, Height: 720}) {
		t.Errorf("recording size = %v", sess.RecordingSize)
	}
}

func TestHandler_StartRecording_conflicts(t *testing.T) {
	t.Run("already_recording", func(t *testing.T) {
		h, _ := newTestHandler(t, render.Size{Width: 640, Height: 480})
		r := newTestRouter(h)
		if rec := do(r, http.MethodPost, "/recordings"); rec.Code != http.StatusCreated {
			t.Fatalf("first start: expected 201, got %d", rec.Code)
		}
		rec := do(r, http.MethodPost, "/recordings")
		if rec.Code != http.StatusConflict {
			t.Errorf("expected 409, got %d", rec.Code)
		}
		if !bytes.Contains(rec.Body.Bytes(), []byte(render.ErrAlreadyRecording.Error())) {
			t.Errorf("unexpected body: %s", rec.Body.String())
		}
	})

	t.Run("unknown_video_size", func(t *testing.T) {
		h, _ := newTestHandler(t, render.Size{})
		rec := do(newTestRouter(h), http.MethodPost, "/recordings")
		if rec.Code != http.StatusConflict {
			t.Errorf("expected 409, got %d", rec.Code)
		}
	})
}

func TestHandler_StopRecording(t *testing.T) {
	h, f := newTestHandler(t, render.Size{Width: 640, Height: 480})
	r := newTestRouter(h)

	if rec := do(r, http.MethodPost, "/recordings/stop"); rec.Code != http.StatusConflict {
		t.Errorf("stop while idle: expected 409, got %d", rec.Code)
	}

	_ = do(r, http.MethodPost, "/recordings")
	rec := do(r, http.MethodPost, "/recordings/stop")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var sess Session
	_ = json.NewDecoder(rec.Body).Decode(&sess)
	if sess.State != StateStopping {
		t.Errorf("expected stopping, got %s", sess.State)
	}
	if f.renderer.RecordingRequested() {
		t.Error("renderer should no longer be recording")
	}
}

func TestHandler_ListAndGetRecording(t *testing.T) {
	h, _ := newTestHandler(t, render.Size{Width: 640, Height: 480})
	r := newTestRouter(h)

	rec := do(r, http.MethodGet, "/recordings")
	if rec.Code != http.StatusOK || !bytes.HasPrefix(bytes.TrimSpace(rec.Body.Bytes()), []byte("[]")) {
		t.Errorf("empty list: got %d %s", rec.Code, rec.Body.String())
	}

	var created Session
	_ = json.NewDecoder(do(r, http.MethodPost, "/recordings").Body).Decode(&created)

	rec = do(r, http.MethodGet, "/recordings")
	var list []Session
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 || list[0].ID != created.ID {
		t.Errorf("unexpected list: %+v", list)
	}

	rec = do(r, http.MethodGet, "/recordings/"+string(created.ID))
	if rec.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rec.Code)
	}
	var got Session
	_ = json.NewDecoder(rec.Body).Decode(&got)
	if got.ID != created.ID {
		t.Errorf("get returned %s, want %s", got.ID, created.ID)
	}
}

func TestHandler_GetRecording_not_found(t *testing.T) {
	h, _ := newTestHandler(t, render.Size{Width: 640, Height: 480})

	rec := do(newTestRouter(h), http.MethodGet, "/recordings/missing")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestHandler_GetStatus(t *testing.T) {
	h, _ := newTestHandler(t, render.Size{Width: 1280, Height: 720})
	r := newTestRouter(h)
	_ = do(r, http.MethodPost, "/recordings")

	rec := do(r, http.MethodGet, "/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var st render.Status
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.VideoSize != (render.Size{Width: 1280, Height: 720}) || !st.Recording {
		t.Errorf("unexpected status: %+v", st)
	}
}

func TestHandler_GetRecordingSize(t *testing.T) {
	h, _ := newTestHandler(t, render.Size{})
	r := newTestRouter(h)

	tests := []struct {
		name     string
		query    string
		bucket   string
		portrait bool
		size     render.Size
	}{
		{"1080p landscape", "width=1920&height=1080", "9:16", false, render.Size{Width: 1280, Height: 720}},
		{"4:3 landscape", "width=640&height=480", "3:4", false, render.Size{Width: 640, Height: 480}},
		{"1080p portrait", "width=1080&height=1920", "9:16", true, render.Size{Width: 1280, Height: 2240}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(r, http.MethodGet, "/recording-size?"+tt.query)
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rec.Code)
			}
			var got sizeResponse
			if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got.Bucket != tt.bucket || got.Portrait != tt.portrait || got.RecordingSize != tt.size {
				t.Errorf("got bucket=%s portrait=%v size=%v", got.Bucket, got.Portrait, got.RecordingSize)
			}
			if got.Viewport != render.LetterboxViewport(got.Source, got.RecordingSize) {
				t.Errorf("viewport %v does not letterbox %v into %v", got.Viewport, got.Source, got.RecordingSize)
			}
		})
	}
}

func TestHandler_GetRecordingSize_bad_request(t *testing.T) {
	h, _ := newTestHandler(t, render.Size{})
	r := newTestRouter(h)

	for _, q := range []string{"", "width=1920", "width=abc&height=1080", "width=0&height=1080", "width=1920&height=-2"} {
		rec := do(r, http.MethodGet, "/recording-size?"+q)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("query %q: expected 400, got %d", q, rec.Code)
		}
	}
}

func TestHandler_StartRecording_counts_metric(t *testing.T) {
	f := newFixture(render.Size{Width: 640, Height: 480})
	m := metrics.New()
	r := newTestRouter(NewHandler(f.svc, discardLogger(), m))

	_ = do(r, http.MethodPost, "/recordings")
	_ = do(r, http.MethodPost, "/recordings")

	rec := do(m.Handler(nil), http.MethodGet, "/metrics")
	if !bytes.Contains(rec.Body.Bytes(), []byte("compositor_recordings_started_total 1")) {
		t.Errorf("expected one started recording, got:\n%s", rec.Body.String())
	}
}
