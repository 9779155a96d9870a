package producer

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"

	"video-compositor/internal/render"
)

type recordingSink struct {
	mu     sync.Mutex
	frames int
	last   []byte
	size   render.Size
}

func (s *recordingSink) Publish(pix []byte, size render.Size) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++
	s.last = append(s.last[:0], pix...)
	s.size = size
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

func TestRunPublishesOnTicks(t *testing.T) {
	fc := testingclock.NewFakeClock(time.Unix(1700000000, 0))
	sink := &recordingSink{}
	p := New(sink, Options{
		Size:   render.Size{Width: 8, Height: 4},
		FPS:    25,
		Clock:  fc,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, time.Millisecond)
	for i := 2; i <= 4; i++ {
		require.Eventually(t, fc.HasWaiters, time.Second, time.Millisecond)
		fc.Step(40 * time.Millisecond)
		want := i
		require.Eventually(t, func() bool { return sink.count() == want }, time.Second, time.Millisecond)
	}

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, uint64(4), p.Frames())
	assert.Equal(t, render.Size{Width: 8, Height: 4}, sink.size)
	assert.Len(t, sink.last, 8*4*4)
}

func TestRunWithoutSizeWaitsForCancel(t *testing.T) {
	sink := &recordingSink{}
	p := New(sink, Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, p.Run(ctx))
	assert.Zero(t, sink.count())
}

func TestDrawBarsMarkerSweeps(t *testing.T) {
	size := render.Size{Width: 7, Height: 2}
	pix := make([]byte, size.Width*size.Height*4)

	Draw(Bars, pix, size, 3)
	assert.Equal(t, []byte{255, 255, 255, 255}, pix[3*4:3*4+4])
	assert.Equal(t, bars[0][:], pix[0:4])
	assert.Equal(t, bars[6][:], pix[6*4:6*4+4])

	Draw(Bars, pix, size, 10)
	assert.Equal(t, []byte{255, 255, 255, 255}, pix[3*4:3*4+4], "marker wraps at the width")
}

func TestDrawBadgeIsTranslucent(t *testing.T) {
	size := render.Size{Width: 16, Height: 16}
	pix := make([]byte, size.Width*size.Height*4)
	Draw(Badge, pix, size, 0)

	assert.Equal(t, []byte{128, 128, 128, 128}, pix[0:4])
	outside := (15*size.Width + 15) * 4
	assert.Equal(t, []byte{0, 0, 0, 0}, pix[outside:outside+4])
}

func TestBounce(t *testing.T) {
	assert.Equal(t, 0, bounce(0, 10))
	assert.Equal(t, 7, bounce(7, 10))
	assert.Equal(t, 8, bounce(12, 10))
	assert.Equal(t, 0, bounce(20, 10))
	assert.Equal(t, 0, bounce(5, 0))
}
