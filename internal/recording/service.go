package recording

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"k8s.io/utils/clock"

	"video-compositor/internal/render"
)

// Renderer is the part of render.Renderer the service drives.
type Renderer interface {
	RecordingSize() render.Size
	StartRecording(encoder render.Surface) error
	StopRecording() error
	RecordingRequested() bool
	Status() render.Status
}

// EncoderProvider hands out the surface the encoder consumes.
type EncoderProvider interface {
	NewSurface(size render.Size) (render.Surface, error)
}

// EncoderFunc adapts a function to EncoderProvider.
type EncoderFunc func(size render.Size) (render.Surface, error)

func (f EncoderFunc) NewSurface(size render.Size) (render.Surface, error) {
	return f(size)
}

// Service starts and stops recordings on the renderer and tracks them as
// sessions.
type Service struct {
	repo     Repository
	renderer Renderer
	encoders EncoderProvider
	clock    clock.PassiveClock
	log      *slog.Logger

	// mu serializes start/stop so the active session and the renderer agree.
	mu     sync.Mutex
	active SessionID
}

// NewService returns a Service. clk may be nil for the real clock.
func NewService(repo Repository, renderer Renderer, encoders EncoderProvider, clk clock.PassiveClock, log *slog.Logger) *Service {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Service{
		repo:     repo,
		renderer: renderer,
		encoders: encoders,
		clock:    clk,
		log:      log,
	}
}

// Start begins a recording sized for the current source.
func (s *Service) Start() (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != "" {
		return Session{}, render.ErrAlreadyRecording
	}
	st := s.renderer.Status()
	size := s.renderer.RecordingSize()
	if size.Empty() {
		return Session{}, render.ErrUnknownVideoSize
	}

	surface, err := s.encoders.NewSurface(size)
	if err != nil {
		return Session{}, err
	}
	if err := s.renderer.StartRecording(surface); err != nil {
		return Session{}, err
	}

	sess := Session{
		ID:            SessionID(uuid.NewString()),
		State:         StateRecording,
		SourceSize:    st.VideoSize,
		RecordingSize: size,
		Viewport:      render.LetterboxViewport(st.VideoSize, size),
		StartedAt:     s.clock.Now().UTC(),
	}
	if err := s.repo.Create(sess); err != nil {
		_ = s.renderer.StopRecording()
		return Session{}, err
	}
	s.active = sess.ID
	s.log.Info("recording session started",
		slog.String("session_id", string(sess.ID)),
		slog.Int("recording_width", size.Width),
		slog.Int("recording_height", size.Height))
	return sess, nil
}

// Stop ends the active recording. The session finishes once the render loop
// reports the encoder surface released.
func (s *Service) Stop() (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == "" {
		return Session{}, render.ErrNotRecording
	}
	id := s.active
	if err := s.renderer.StopRecording(); err != nil && !errors.Is(err, render.ErrNotRecording) {
		return Session{}, err
	}
	s.active = ""
	if err := s.repo.MarkStopping(id, s.clock.Now()); err != nil {
		return Session{}, err
	}
	sess, _ := s.repo.Get(id)
	s.log.Info("recording session stopping", slog.String("session_id", string(id)))
	return sess, nil
}

// RecordingFinished is the render loop's OnRecordingFinished hook. Stopping
// sessions are finished, and so is the active one if the renderer dropped it
// on its own.
func (s *Service) RecordingFinished() {
	s.mu.Lock()
	defer s.mu.Unlock()

	frames := s.renderer.Status().EncoderFrames
	now := s.clock.Now()
	for _, sess := range s.repo.Open() {
		if sess.ID == s.active && s.renderer.RecordingRequested() {
			continue
		}
		if err := s.repo.Finish(sess.ID, now, frames); err != nil {
			s.log.Error("finish session failed", slog.String("session_id", string(sess.ID)), slog.String("error", err.Error()))
			continue
		}
		if sess.ID == s.active {
			s.active = ""
		}
		s.log.Info("recording session finished",
			slog.String("session_id", string(sess.ID)),
			slog.Uint64("encoder_frames", frames))
	}
}

// Active returns the recording session, if any.
func (s *Service) Active() (Session, bool) {
	s.mu.Lock()
	id := s.active
	s.mu.Unlock()
	if id == "" {
		return Session{}, false
	}
	return s.repo.Get(id)
}

// Get returns a session by ID.
func (s *Service) Get(id SessionID) (Session, bool) {
	return s.repo.Get(id)
}

// List returns all sessions, newest first.
func (s *Service) List() []Session {
	return s.repo.List()
}

// Status is the renderer status.
func (s *Service) Status() render.Status {
	return s.renderer.Status()
}
