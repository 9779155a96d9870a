// Package producer generates synthetic RGBA frames in place of a decoder.
package producer

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"k8s.io/utils/clock"

	"video-compositor/internal/render"
)

// Sink receives frames. Publish must copy pix before returning.
type Sink interface {
	Publish(pix []byte, size render.Size)
}

// Pattern selects what is drawn.
type Pattern int

const (
	// Bars draws color bars with a sweeping marker.
	Bars Pattern = iota
	// Badge draws a translucent box bouncing over a transparent background,
	// for the overlay layer.
	Badge
)

// Options configures a TestPattern.
type Options struct {
	Pattern Pattern
	Size    render.Size
	FPS     int
	Clock   clock.WithTicker
	Logger  *slog.Logger
}

// TestPattern publishes frames to a sink at a fixed rate.
type TestPattern struct {
	sink    Sink
	pattern Pattern
	size    render.Size
	period  time.Duration
	clock   clock.WithTicker
	log     *slog.Logger

	frames atomic.Uint64
}

// New returns a producer for sink. FPS defaults to 30.
func New(sink Sink, opts Options) *TestPattern {
	if opts.FPS <= 0 {
		opts.FPS = 30
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &TestPattern{
		sink:    sink,
		pattern: opts.Pattern,
		size:    opts.Size,
		period:  time.Second / time.Duration(opts.FPS),
		clock:   opts.Clock,
		log:     opts.Logger.With(slog.String("component", "producer")),
	}
}

// Frames is the number of frames published so far.
func (p *TestPattern) Frames() uint64 {
	return p.frames.Load()
}

// Run publishes until ctx is cancelled.
func (p *TestPattern) Run(ctx context.Context) error {
	if p.size.Empty() {
		p.log.Warn("producer has no frame size, not publishing")
		<-ctx.Done()
		return nil
	}
	p.log.Info("producer started",
		slog.Int("width", p.size.Width),
		slog.Int("height", p.size.Height),
		slog.Duration("period", p.period))

	pix := make([]byte, p.size.Width*p.size.Height*4)
	t := p.clock.NewTicker(p.period)
	defer t.Stop()

	for {
		n := p.frames.Load()
		Draw(p.pattern, pix, p.size, n)
		p.sink.Publish(pix, p.size)
		p.frames.Add(1)

		select {
		case <-ctx.Done():
			p.log.Info("producer stopped", slog.Uint64("frames", p.frames.Load()))
			return nil
		case <-t.C():
		}
	}
}

var bars = [][4]byte{
	{192, 192, 192, 255},
	{192, 192, 0, 255},
	{0, 192, 192, 255},
	{0, 192, 0, 255},
	{192, 0, 192, 255},
	{192, 0, 0, 255},
	{0, 0, 192, 255},
}

// Draw renders frame n of pattern into pix, which must hold size RGBA pixels.
func Draw(pattern Pattern, pix []byte, size render.Size, n uint64) {
	switch pattern {
	case Badge:
		drawBadge(pix, size, n)
	default:
		drawBars(pix, size, n)
	}
}

func drawBars(pix []byte, size render.Size, n uint64) {
	marker := int(n % uint64(size.Width))
	for y := 0; y < size.Height; y++ {
		row := pix[y*size.Width*4:]
		for x := 0; x < size.Width; x++ {
			c := bars[x*len(bars)/size.Width]
			if x == marker {
				c = [4]byte{255, 255, 255, 255}
			}
			copy(row[x*4:x*4+4], c[:])
		}
	}
}

func drawBadge(pix []byte, size render.Size, n uint64) {
	clear(pix)
	side := min(size.Width, size.Height) / 4
	if side == 0 {
		return
	}
	x0 := bounce(int(n)*4, size.Width-side)
	y0 := bounce(int(n)*3, size.Height-side)
	for y := y0; y < y0+side; y++ {
		row := pix[y*size.Width*4:]
		for x := x0; x < x0+side; x++ {
			// premultiplied white at half opacity
			copy(row[x*4:x*4+4], []byte{128, 128, 128, 128})
		}
	}
}

// bounce folds v into [0, span] back and forth.
func bounce(v, span int) int {
	if span <= 0 {
		return 0
	}
	v %= 2 * span
	if v > span {
		return 2*span - v
	}
	return v
}
