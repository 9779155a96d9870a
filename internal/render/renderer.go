package render

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"k8s.io/utils/clock"
)

var (
	ErrAlreadyRunning   = errors.New("render: renderer already started")
	ErrAlreadyRecording = errors.New("render: already recording")
	ErrNotRecording     = errors.New("render: not recording")
	ErrUnknownVideoSize = errors.New("render: video size unknown")
)

// State is the lifecycle of a Renderer.
type State int32

const (
	StateUninitialized State = iota
	StateRunning
	StateStopping
	StateTornDown
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateTornDown:
		return "torn_down"
	default:
		return "uninitialized"
	}
}

// Listener receives lifecycle callbacks on the render goroutine.
type Listener interface {
	// OnGraphicsInitialized fires once the context is ready and the image
	// sources can be bound to producers.
	OnGraphicsInitialized(r *Renderer)
	// OnRecordingFinished fires after the encoder surface is released.
	OnRecordingFinished(r *Renderer)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	GraphicsInitialized func(r *Renderer)
	RecordingFinished   func(r *Renderer)
}

func (l ListenerFuncs) OnGraphicsInitialized(r *Renderer) {
	if l.GraphicsInitialized != nil {
		l.GraphicsInitialized(r)
	}
}

func (l ListenerFuncs) OnRecordingFinished(r *Renderer) {
	if l.RecordingFinished != nil {
		l.RecordingFinished(r)
	}
}

// Recorder receives render loop measurements.
type Recorder interface {
	IncTicks()
	ObserveTick(d time.Duration)
	IncFramesConsumed()
	AddFramesCoalesced(n uint64)
	IncEncoderFrames()
	AddGPUErrors(n int)
	SetRecording(active bool)
	IncRecordingsFinished()
	SetFPS(fps float64)
}

type nopRecorder struct{}

func (nopRecorder) IncTicks()                 {}
func (nopRecorder) ObserveTick(time.Duration) {}
func (nopRecorder) IncFramesConsumed()        {}
func (nopRecorder) AddFramesCoalesced(uint64) {}
func (nopRecorder) IncEncoderFrames()         {}
func (nopRecorder) AddGPUErrors(int)          {}
func (nopRecorder) SetRecording(bool)         {}
func (nopRecorder) IncRecordingsFinished()    {}
func (nopRecorder) SetFPS(float64)            {}

// Options configures a Renderer. Zero values pick defaults.
type Options struct {
	Variant       Variant
	FrameInterval time.Duration
	Shaders       ShaderSet
	Clock         clock.Clock
	Logger        *slog.Logger
	Metrics       Recorder
	Listener      Listener
}

// Status is a point-in-time view of the renderer for hosts.
type Status struct {
	State           string   `json:"state"`
	Variant         string   `json:"variant"`
	VideoSize       Size     `json:"video_size"`
	OutputSize      Size     `json:"output_size"`
	RecordingSize   Size     `json:"recording_size"`
	EncoderViewport Viewport `json:"encoder_viewport"`
	Recording       bool     `json:"recording"`
	EncoderFrames   uint64   `json:"encoder_frames"`
	FramesConsumed  uint64   `json:"frames_consumed"`
	FramesCoalesced uint64   `json:"frames_coalesced"`
}

// settings are written by hosts and applied by the render goroutine at the
// start of each tick.
type settings struct {
	video     Size
	output    Size
	encoder   Surface
	recording bool

	// generation counts StartRecording calls so every start and stop landing
	// between two ticks still produces a finished notification.
	generation uint64
}

// Renderer drives composition and presentation on a single goroutine.
type Renderer struct {
	platform Platform
	variant  Variant
	shaders  ShaderSet
	clock    clock.Clock
	interval time.Duration
	log      *slog.Logger
	rec      Recorder
	listener Listener

	state atomic.Int32

	startedMu sync.Mutex
	started   bool
	onReady   func()
	stopCtx   context.Context
	stop      context.CancelFunc
	done      chan struct{}
	runErr    error

	mu            sync.Mutex
	want          settings
	videoSource   ImageSource
	overlaySource ImageSource
	videoSync     *FrameSynchronizer

	encoderFrames atomic.Uint64
	recordingLive atomic.Bool

	// Owned by the render goroutine.
	cm              *ContextManager
	dev             Device
	programs        *Programs
	compositor      *Compositor
	presenter       *Presenter
	overlaySync     *FrameSynchronizer
	frame           Frame
	overlayFrame    Frame
	applied         settings
	encoderViewport Viewport
	encoderSize     Size
	recording       bool
	coalescedSeen   uint64
	fps             fpsMeter
}

// NewRenderer returns a renderer that will create its context on platform.
func NewRenderer(platform Platform, opts Options) *Renderer {
	r := &Renderer{
		platform: platform,
		variant:  opts.Variant,
		shaders:  opts.Shaders,
		clock:    opts.Clock,
		interval: opts.FrameInterval,
		log:      opts.Logger,
		rec:      opts.Metrics,
		listener: opts.Listener,
		done:     make(chan struct{}),
	}
	if r.shaders == (ShaderSet{}) {
		r.shaders = ESShaders
	}
	if r.clock == nil {
		r.clock = clock.RealClock{}
	}
	if r.interval <= 0 {
		r.interval = DefaultFrameInterval
	}
	if r.log == nil {
		r.log = slog.Default()
	}
	if r.rec == nil {
		r.rec = nopRecorder{}
	}
	if r.listener == nil {
		r.listener = ListenerFuncs{}
	}
	r.stopCtx, r.stop = context.WithCancel(context.Background())
	r.fps.clock = r.clock
	r.log = r.log.With(slog.String("component", "renderer"), slog.String("variant", r.variant.String()))
	return r
}

// State returns the lifecycle state.
func (r *Renderer) State() State {
	return State(r.state.Load())
}

// Variant returns the composition variant.
func (r *Renderer) Variant() Variant {
	return r.variant
}

// SetVideoSize sets the source resolution. The framebuffer and recording
// size follow on the next tick.
func (r *Renderer) SetVideoSize(width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.want.video = Size{Width: width, Height: height}
}

// SetOutputSize sets the display surface size.
func (r *Renderer) SetOutputSize(width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.want.output = Size{Width: width, Height: height}
}

// SetSize sets display and source sizes together.
func (r *Renderer) SetSize(surfaceWidth, surfaceHeight, videoWidth, videoHeight int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.want.output = Size{Width: surfaceWidth, Height: surfaceHeight}
	r.want.video = Size{Width: videoWidth, Height: videoHeight}
}

// RecordingSize is the encoder resolution for the current source size.
func (r *Renderer) RecordingSize() Size {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ComputeRecordingSize(r.want.video.Width, r.want.video.Height)
}

// StartRecording begins presenting every tick to encoder as well. encoder
// should be sized to RecordingSize.
func (r *Renderer) StartRecording(encoder Surface) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.want.recording {
		return ErrAlreadyRecording
	}
	if r.want.video.Empty() {
		return ErrUnknownVideoSize
	}
	r.want.recording = true
	r.want.encoder = encoder
	r.want.generation++
	return nil
}

// StopRecording ends the recording; OnRecordingFinished follows from the
// render goroutine.
func (r *Renderer) StopRecording() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.want.recording {
		return ErrNotRecording
	}
	r.want.recording = false
	r.want.encoder = nil
	return nil
}

// RecordingRequested reports whether a recording has been started and not
// stopped. It turns false on its own when the encoder surface cannot be
// attached or the renderer tears down.
func (r *Renderer) RecordingRequested() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.want.recording
}

// VideoSource is the image source the decoder renders into. Nil until
// graphics are initialized.
func (r *Renderer) VideoSource() ImageSource {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.videoSource
}

// OverlaySource is the overlay image source; nil unless VideoWithOverlay.
func (r *Renderer) OverlaySource() ImageSource {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.overlaySource
}

// Status reports current sizes, recording state and counters.
func (r *Renderer) Status() Status {
	r.mu.Lock()
	want := r.want
	vs := r.videoSync
	r.mu.Unlock()

	recSize := ComputeRecordingSize(want.video.Width, want.video.Height)
	st := Status{
		State:           r.State().String(),
		Variant:         r.variant.String(),
		VideoSize:       want.video,
		OutputSize:      want.output,
		RecordingSize:   recSize,
		EncoderViewport: LetterboxViewport(want.video, recSize),
		Recording:       r.recordingLive.Load(),
		EncoderFrames:   r.encoderFrames.Load(),
	}
	if vs != nil {
		stats := vs.Stats()
		st.FramesConsumed = stats.Consumed
		st.FramesCoalesced = stats.Coalesced
	}
	return st
}

func (r *Renderer) claim() error {
	r.startedMu.Lock()
	defer r.startedMu.Unlock()
	if r.started {
		return ErrAlreadyRunning
	}
	r.started = true
	return nil
}

// StartRenderingToOutput runs the renderer on its own goroutine against
// display. onReady, if not nil, is called on that goroutine after graphics
// are initialized. Use Stop to end it.
func (r *Renderer) StartRenderingToOutput(display Surface, onReady func()) error {
	if err := r.claim(); err != nil {
		return err
	}
	r.startedMu.Lock()
	r.onReady = onReady
	r.startedMu.Unlock()

	go func() {
		if err := r.run(context.Background(), display); err != nil {
			r.log.Error("render loop aborted", slog.String("error", err.Error()))
		}
	}()
	return nil
}

// Run initializes graphics on display and renders until ctx is cancelled or
// Stop is called. It locks the calling goroutine to its OS thread. The
// returned error is non-nil only for fatal conditions.
func (r *Renderer) Run(ctx context.Context, display Surface) error {
	if err := r.claim(); err != nil {
		return err
	}
	return r.run(ctx, display)
}

// Stop signals the loop and waits for teardown. It returns the error Run
// ended with. Safe to call more than once and before start.
func (r *Renderer) Stop() error {
	r.stop()
	r.startedMu.Lock()
	started := r.started
	r.startedMu.Unlock()
	if !started {
		return nil
	}
	<-r.done
	return r.runErr
}

// Done is closed once the renderer is torn down.
func (r *Renderer) Done() <-chan struct{} {
	return r.done
}

func (r *Renderer) run(parent context.Context, display Surface) (err error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	defer context.AfterFunc(r.stopCtx, cancel)()
	r.startedMu.Lock()
	onReady := r.onReady
	r.startedMu.Unlock()

	defer func() {
		r.runErr = err
		close(r.done)
	}()

	if err = r.initialize(display); err != nil {
		r.teardown()
		r.state.Store(int32(StateTornDown))
		return err
	}
	r.state.Store(int32(StateRunning))
	r.log.Info("graphics initialized",
		slog.Int("display_width", display.Size().Width),
		slog.Int("display_height", display.Size().Height))

	r.listener.OnGraphicsInitialized(r)
	if onReady != nil {
		onReady()
	}

	err = r.loop(ctx)

	r.state.Store(int32(StateStopping))
	r.teardown()
	r.state.Store(int32(StateTornDown))
	r.log.Info("renderer torn down")
	return err
}

func (r *Renderer) initialize(display Surface) error {
	r.cm = NewContextManager(r.platform, r.log)
	gctx, err := r.cm.Initialize(display, true)
	if err != nil {
		return err
	}
	r.dev = gctx.Device()

	if r.programs, err = LoadPrograms(r.dev, r.shaders, r.log); err != nil {
		return err
	}

	video, err := gctx.CreateImageSource()
	if err != nil {
		return errors.Wrap(err, "video image source")
	}
	videoSync := NewFrameSynchronizer(video)
	videoSync.Attach()

	var overlay ImageSource
	if r.variant == VideoWithOverlay {
		if overlay, err = gctx.CreateImageSource(); err != nil {
			videoSync.Detach()
			video.Release()
			return errors.Wrap(err, "overlay image source")
		}
		r.overlaySync = NewFrameSynchronizer(overlay)
		r.overlaySync.Attach()
		r.overlayFrame = Frame{Texture: overlay.Texture(), Transform: mgl32.Ident4()}
	}
	if n := logErrors(r.dev, r.log, "texture setup"); n > 0 {
		r.rec.AddGPUErrors(n)
	}

	r.frame = Frame{Texture: video.Texture(), Transform: mgl32.Ident4()}
	r.compositor = NewCompositor(r.dev, r.programs, r.variant, r.log)
	r.presenter = NewPresenter(r.dev, r.programs, r.variant)

	r.mu.Lock()
	r.videoSource = video
	r.overlaySource = overlay
	r.videoSync = videoSync
	if r.want.output.Empty() {
		r.want.output = display.Size()
	}
	r.mu.Unlock()
	return nil
}

func (r *Renderer) loop(ctx context.Context) error {
	p := pacer{clock: r.clock, interval: r.interval}
	for ctx.Err() == nil {
		start := r.clock.Now()
		if err := r.tick(); err != nil {
			return err
		}
		r.cm.PollEvents()
		r.rec.ObserveTick(r.clock.Since(start))
		p.wait(ctx, start)
	}
	return nil
}

func (r *Renderer) snapshot() settings {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.want
}

// apply brings render-side state in line with what hosts asked for.
func (r *Renderer) apply(s settings) {
	if s.video != r.applied.video {
		r.compositor.ReleaseFramebuffer()
		// The render goroutine is the only writer of the sources.
		r.videoSource.SetDefaultBufferSize(s.video)
		if r.overlaySource != nil {
			r.overlaySource.SetDefaultBufferSize(s.video)
		}
		recSize := ComputeRecordingSize(s.video.Width, s.video.Height)
		if r.recording {
			// The attached encoder surface keeps its size until the next start.
			r.encoderViewport = LetterboxViewport(s.video, r.encoderSize)
		}
		r.log.Info("source size changed",
			slog.Int("video_width", s.video.Width),
			slog.Int("video_height", s.video.Height),
			slog.Int("recording_width", recSize.Width),
			slog.Int("recording_height", recSize.Height),
			slog.Bool("recording", r.recording))
	}

	// Every StartRecording since the last tick bumps the generation. All of
	// them except a still wanted last one were stopped before they attached.
	started := s.generation - r.applied.generation
	if r.recording && (started > 0 || !s.recording) {
		r.finishRecording()
	}
	skipped := started
	if s.recording && started > 0 {
		skipped--
	}
	if skipped > 0 {
		r.encoderFrames.Store(0)
		for i := uint64(0); i < skipped; i++ {
			r.log.Info("recording stopped before it started")
			r.listener.OnRecordingFinished(r)
		}
	}
	if s.recording && !r.recording && started > 0 {
		r.beginRecording(s.encoder, s.video)
	}

	r.applied = s
}

func (r *Renderer) beginRecording(encoder Surface, video Size) {
	if _, err := r.cm.AttachSecondarySurface(encoder); err != nil {
		r.log.Error("attach encoder surface failed", slog.String("error", err.Error()))
		r.mu.Lock()
		r.want.recording = false
		r.want.encoder = nil
		r.mu.Unlock()
		r.listener.OnRecordingFinished(r)
		return
	}
	r.recording = true
	r.encoderSize = encoder.Size()
	r.encoderViewport = LetterboxViewport(video, r.encoderSize)
	r.encoderFrames.Store(0)
	r.recordingLive.Store(true)
	r.rec.SetRecording(true)
	r.log.Info("recording started",
		slog.Int("encoder_width", r.encoderSize.Width),
		slog.Int("encoder_height", r.encoderSize.Height))
}

func (r *Renderer) finishRecording() {
	r.cm.DetachSecondarySurface()
	r.recording = false
	r.recordingLive.Store(false)
	r.rec.SetRecording(false)
	r.rec.IncRecordingsFinished()
	r.log.Info("recording finished", slog.Uint64("encoder_frames", r.encoderFrames.Load()))
	r.listener.OnRecordingFinished(r)
}

func (r *Renderer) tick() error {
	r.apply(r.snapshot())

	if f, ok := r.videoSync.TryConsume(); ok {
		r.frame = f
		r.rec.IncFramesConsumed()
	}
	if seen := r.videoSync.Stats().Coalesced; seen > r.coalescedSeen {
		r.rec.AddFramesCoalesced(seen - r.coalescedSeen)
		r.coalescedSeen = seen
	}

	var overlay *Layer
	if r.overlaySync != nil {
		if f, ok := r.overlaySync.TryConsume(); ok {
			r.overlayFrame = f
		}
		overlay = &Layer{Texture: r.overlayFrame.Texture, Kind: TextureExternal}
	}

	if !r.compositor.Prepared() {
		if err := r.compositor.PrepareFramebuffer(r.applied.video); err != nil {
			return err
		}
	}

	off, drawn := r.compositor.Composite(r.frame, overlay)
	if drawn {
		r.presenter.Present(off, r.frame.Transform, FullViewport(r.applied.output))
		if err := r.cm.SwapBuffers(TargetDisplay); err != nil {
			r.log.Warn("display swap failed", slog.String("error", err.Error()))
		}
		if r.recording {
			r.presentToEncoder(off)
		}
	}

	if n := logErrors(r.dev, r.log, "tick"); n > 0 {
		r.rec.AddGPUErrors(n)
	}
	r.rec.IncTicks()
	if fps, ok := r.fps.tick(); ok {
		r.rec.SetFPS(fps)
	}
	return nil
}

// presentToEncoder blits to the encoder surface, then hands the context back
// to the display surface.
func (r *Renderer) presentToEncoder(off *Offscreen) {
	if err := r.cm.MakeCurrent(TargetEncoder); err != nil {
		r.log.Warn("encoder make current failed", slog.String("error", err.Error()))
		return
	}
	r.presenter.Present(off, r.frame.Transform, r.encoderViewport)
	if err := r.cm.SwapBuffers(TargetEncoder); err != nil {
		r.log.Warn("encoder swap failed", slog.String("error", err.Error()))
	} else {
		r.encoderFrames.Add(1)
		r.rec.IncEncoderFrames()
	}
	if err := r.cm.MakeCurrent(TargetDisplay); err != nil {
		r.log.Warn("display make current failed", slog.String("error", err.Error()))
	}
}

// teardown releases GPU resources, then the encoder surface, then the
// context. Handles partially initialized state.
func (r *Renderer) teardown() {
	if r.videoSync != nil {
		r.videoSync.Detach()
	}
	if r.overlaySync != nil {
		r.overlaySync.Detach()
	}

	if r.dev != nil {
		r.mu.Lock()
		video, overlay := r.videoSource, r.overlaySource
		r.mu.Unlock()
		if video != nil {
			video.Release()
		}
		if overlay != nil {
			overlay.Release()
		}
		r.programs.Release(r.dev)
		if r.compositor != nil {
			r.compositor.ReleaseFramebuffer()
		}
	}

	if r.cm == nil {
		return
	}
	r.mu.Lock()
	pending := !r.recording && r.want.generation != r.applied.generation
	r.want.recording = false
	r.want.encoder = nil
	r.mu.Unlock()
	switch {
	case r.recording:
		r.finishRecording()
	case pending:
		r.cm.DetachSecondarySurface()
		r.listener.OnRecordingFinished(r)
	default:
		r.cm.DetachSecondarySurface()
	}
	r.cm.Teardown()
}
