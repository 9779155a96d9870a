package render

import (
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"
)

// Frame is an image consumed from an ImageSource.
type Frame struct {
	Texture   TextureID
	Transform mgl32.Mat4
	Seq       uint64
}

// SynchronizerStats is a snapshot of synchronizer counters.
// Once producers are quiet, Signals == Coalesced + Consumed + (1 if pending).
type SynchronizerStats struct {
	Signals   uint64
	Coalesced uint64
	Consumed  uint64
}

// FrameSynchronizer hands "a new image is ready" from producer goroutines to
// the render goroutine. At most one notification is ever pending; repeated
// signals between consumptions collapse into one.
type FrameSynchronizer struct {
	source  ImageSource
	pending atomic.Bool

	signals   atomic.Uint64
	coalesced atomic.Uint64
	consumed  atomic.Uint64
}

// NewFrameSynchronizer wraps source. It does not install itself as the
// source's frame listener; callers do that with Attach.
func NewFrameSynchronizer(source ImageSource) *FrameSynchronizer {
	return &FrameSynchronizer{source: source}
}

// Attach routes the source's producer notifications to OnFrameProduced.
func (s *FrameSynchronizer) Attach() {
	s.source.SetFrameListener(s.OnFrameProduced)
}

// Detach removes the producer listener.
func (s *FrameSynchronizer) Detach() {
	s.source.SetFrameListener(nil)
}

// OnFrameProduced marks a frame as pending. Safe from any goroutine.
func (s *FrameSynchronizer) OnFrameProduced() {
	s.signals.Add(1)
	if s.pending.Swap(true) {
		s.coalesced.Add(1)
	}
}

// Pending reports whether a frame is waiting to be consumed.
func (s *FrameSynchronizer) Pending() bool {
	return s.pending.Load()
}

// TryConsume latches the newest image if one is pending. It never blocks and
// must only be called from the render goroutine. A signal arriving after the
// flag is cleared stays pending for the next call.
func (s *FrameSynchronizer) TryConsume() (Frame, bool) {
	if !s.pending.CompareAndSwap(true, false) {
		return Frame{}, false
	}
	s.source.Latch()
	return Frame{
		Texture:   s.source.Texture(),
		Transform: s.source.TransformMatrix(),
		Seq:       s.consumed.Add(1),
	}, true
}

// Stats returns the counters.
func (s *FrameSynchronizer) Stats() SynchronizerStats {
	return SynchronizerStats{
		Signals:   s.signals.Load(),
		Coalesced: s.coalesced.Load(),
		Consumed:  s.consumed.Load(),
	}
}
