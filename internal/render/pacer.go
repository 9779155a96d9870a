package render

import (
	"context"
	"time"

	"k8s.io/utils/clock"
)

// DefaultFrameInterval targets 60 ticks per second.
const DefaultFrameInterval = 16 * time.Millisecond

// pacer holds the render loop to a fixed tick interval.
type pacer struct {
	clock    clock.Clock
	interval time.Duration
}

// remaining is the unused budget of a tick that began at start.
func (p pacer) remaining(start time.Time) time.Duration {
	return p.interval - p.clock.Since(start)
}

// wait sleeps out the remaining budget. A negative remainder does not sleep,
// and cancellation cuts the sleep short without error.
func (p pacer) wait(ctx context.Context, start time.Time) {
	d := p.remaining(start)
	if d <= 0 {
		return
	}
	t := p.clock.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C():
	case <-ctx.Done():
	}
}

// fpsMeter counts ticks per wall-clock second.
type fpsMeter struct {
	clock  clock.PassiveClock
	start  time.Time
	frames int
}

// tick records a frame and returns the rate once a full second has elapsed.
func (m *fpsMeter) tick() (fps float64, ok bool) {
	now := m.clock.Now()
	if m.start.IsZero() {
		m.start = now
	}
	m.frames++
	elapsed := now.Sub(m.start)
	if elapsed < time.Second {
		return 0, false
	}
	fps = float64(m.frames) / elapsed.Seconds()
	m.start, m.frames = now, 0
	return fps, true
}
