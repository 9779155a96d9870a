package recording

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"video-compositor/internal/platform/metrics"
	"video-compositor/internal/render"
)

// Handler exposes the control API using go-chi.
type Handler struct {
	svc     *Service
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewHandler returns a Handler. m may be nil to disable metrics (e.g. in
// tests).
func NewHandler(svc *Service, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{svc: svc, log: log, metrics: m}
}

// Routes mounts the control endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/status", h.GetStatus)
	r.Get("/recording-size", h.GetRecordingSize)
	r.Route("/recordings", func(r chi.Router) {
		r.Get("/", h.ListRecordings)
		r.Post("/", h.StartRecording)
		r.Post("/stop", h.StopRecording)
		r.Get("/{id}", h.GetRecording)
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Debug("write response failed", slog.String("error", err.Error()))
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// GetStatus handles GET /status.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.svc.Status())
}

// StartRecording handles POST /recordings.
func (h *Handler) StartRecording(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.Start()
	if err != nil {
		switch {
		case errors.Is(err, render.ErrAlreadyRecording), errors.Is(err, render.ErrUnknownVideoSize):
			h.log.Info("recording start rejected", slog.String("error", err.Error()))
			h.writeJSON(w, http.StatusConflict, errorBody{err.Error()})
		default:
			h.log.Error("recording start failed", slog.String("error", err.Error()))
			h.writeJSON(w, http.StatusInternalServerError, errorBody{err.Error()})
		}
		return
	}
	h.writeJSON(w, http.StatusCreated, sess)
	if h.metrics != nil {
		h.metrics.IncRecordingsStarted()
	}
}

// StopRecording handles POST /recordings/stop.
func (h *Handler) StopRecording(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.Stop()
	if err != nil {
		if errors.Is(err, render.ErrNotRecording) {
			h.writeJSON(w, http.StatusConflict, errorBody{err.Error()})
			return
		}
		h.log.Error("recording stop failed", slog.String("error", err.Error()))
		h.writeJSON(w, http.StatusInternalServerError, errorBody{err.Error()})
		return
	}
	h.writeJSON(w, http.StatusOK, sess)
}

// ListRecordings handles GET /recordings.
func (h *Handler) ListRecordings(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.svc.List())
}

// GetRecording handles GET /recordings/{id}.
func (h *Handler) GetRecording(w http.ResponseWriter, r *http.Request) {
	id := SessionID(chi.URLParam(r, "id"))
	sess, ok := h.svc.Get(id)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, sess)
}

type sizeResponse struct {
	Source        render.Size     `json:"source"`
	Bucket        string          `json:"bucket"`
	Portrait      bool            `json:"portrait"`
	RecordingSize render.Size     `json:"recording_size"`
	Viewport      render.Viewport `json:"viewport"`
}

// GetRecordingSize handles GET /recording-size?width=&height=.
func (h *Handler) GetRecordingSize(w http.ResponseWriter, r *http.Request) {
	width, errW := strconv.Atoi(r.URL.Query().Get("width"))
	height, errH := strconv.Atoi(r.URL.Query().Get("height"))
	if errW != nil || errH != nil || width <= 0 || height <= 0 {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	src := render.Size{Width: width, Height: height}
	bucket, portrait := render.SelectBucket(width, height)
	rec := render.ComputeRecordingSize(width, height)
	h.writeJSON(w, http.StatusOK, sizeResponse{
		Source:        src,
		Bucket:        bucket.String(),
		Portrait:      portrait,
		RecordingSize: rec,
		Viewport:      render.LetterboxViewport(src, rec),
	})
}
