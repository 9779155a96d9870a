package recording

import (
	"time"

	"video-compositor/internal/render"
)

// SessionID uniquely identifies a recording session.
type SessionID string

// State is where a session is in its life.
type State string

const (
	// StateRecording means frames are being presented to the encoder.
	StateRecording State = "recording"
	// StateStopping means stop was requested and the render loop has not yet
	// released the encoder surface.
	StateStopping State = "stopping"
	// StateFinished means the encoder surface is released.
	StateFinished State = "finished"
)

// Session is one start/stop recording cycle.
type Session struct {
	ID            SessionID       `json:"id"`
	State         State           `json:"state"`
	SourceSize    render.Size     `json:"source_size"`
	RecordingSize render.Size     `json:"recording_size"`
	Viewport      render.Viewport `json:"viewport"`
	EncoderFrames uint64          `json:"encoder_frames"`

	StartedAt  time.Time  `json:"started_at"`
	StoppedAt  *time.Time `json:"stopped_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Done reports whether the session is finished.
func (s Session) Done() bool {
	return s.State == StateFinished
}
