package render

import (
	"log/slog"

	"github.com/pkg/errors"
)

// EGL-style attribute keys used by ConfigRequest.Attributes.
const (
	AttrAlphaSize   int32 = 0x3021
	AttrBlueSize    int32 = 0x3022
	AttrGreenSize   int32 = 0x3023
	AttrRedSize     int32 = 0x3024
	AttrDepthSize   int32 = 0x3025
	AttrStencilSize int32 = 0x3026
	AttrNone        int32 = 0x3038
	// AttrRecordable marks a config usable as video encoder input.
	AttrRecordable int32 = 0x3142
)

var (
	// ErrConfigUnsupported means the platform could not provide the requested
	// pixel format. There is no fallback.
	ErrConfigUnsupported = errors.New("render: context configuration unsupported")
	// ErrNoContext is returned by operations that need an initialized context.
	ErrNoContext = errors.New("render: context not initialized")
	// ErrNoSecondarySurface is returned when targeting the encoder without one.
	ErrNoSecondarySurface = errors.New("render: no secondary surface attached")
)

// ConfigError is returned when the platform refuses the requested config. It
// matches ErrConfigUnsupported and unwraps to the platform error.
type ConfigError struct {
	Config ConfigRequest
	Err    error
}

func (e *ConfigError) Error() string {
	return ErrConfigUnsupported.Error() + ": " + e.Err.Error()
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfigUnsupported }

func (e *ConfigError) Unwrap() error { return e.Err }

// ConfigRequest is the pixel format asked of the platform.
type ConfigRequest struct {
	Red, Green, Blue, Alpha int
	Depth, Stencil          int
	// Recordable requests a config the encoder can consume.
	Recordable bool
}

// DefaultConfig is 8-bit RGBA, 8-bit depth and no stencil.
func DefaultConfig(recordable bool) ConfigRequest {
	return ConfigRequest{Red: 8, Green: 8, Blue: 8, Alpha: 8, Depth: 8, Stencil: 0, Recordable: recordable}
}

// Attributes renders the request as a key/value list terminated by AttrNone.
func (c ConfigRequest) Attributes() []int32 {
	attrs := []int32{
		AttrRedSize, int32(c.Red),
		AttrGreenSize, int32(c.Green),
		AttrBlueSize, int32(c.Blue),
		AttrAlphaSize, int32(c.Alpha),
		AttrDepthSize, int32(c.Depth),
		AttrStencilSize, int32(c.Stencil),
	}
	if c.Recordable {
		attrs = append(attrs, AttrRecordable, 1)
	}
	return append(attrs, AttrNone)
}

// Surface is a presentable destination owned by the host or the encoder.
type Surface interface {
	Size() Size
}

// SurfaceHandle is a platform binding of a Surface to a context.
type SurfaceHandle interface{}

// Context is a graphics context bound to a primary display surface.
type Context interface {
	Device() Device
	Primary() SurfaceHandle
	CreateSurface(s Surface) (SurfaceHandle, error)
	DestroySurface(h SurfaceHandle)
	MakeCurrent(h SurfaceHandle) error
	SwapBuffers(h SurfaceHandle) error
	CreateImageSource() (ImageSource, error)
	Destroy()
}

// EventPoller is implemented by contexts whose windows need their event
// queue drained on the render goroutine.
type EventPoller interface {
	PollEvents()
}

// Platform creates contexts.
type Platform interface {
	CreateContext(display Surface, cfg ConfigRequest) (Context, error)
}

// Target names one of the two destinations.
type Target int

const (
	TargetDisplay Target = iota
	TargetEncoder
)

func (t Target) String() string {
	if t == TargetEncoder {
		return "encoder"
	}
	return "display"
}

// ContextManager owns the context and its display and encoder surfaces.
type ContextManager struct {
	platform  Platform
	log       *slog.Logger
	ctx       Context
	secondary SurfaceHandle
}

// NewContextManager returns a manager for platform.
func NewContextManager(platform Platform, log *slog.Logger) *ContextManager {
	return &ContextManager{platform: platform, log: log}
}

// Initialize creates the context on display and makes it current.
func (m *ContextManager) Initialize(display Surface, recordable bool) (Context, error) {
	cfg := DefaultConfig(recordable)
	ctx, err := m.platform.CreateContext(display, cfg)
	if err != nil {
		return nil, errors.WithStack(&ConfigError{Config: cfg, Err: err})
	}
	if err := ctx.MakeCurrent(ctx.Primary()); err != nil {
		ctx.Destroy()
		return nil, errors.Wrap(err, "make primary current")
	}
	m.ctx = ctx
	m.log.Debug("graphics context created",
		slog.Int("display_width", display.Size().Width),
		slog.Int("display_height", display.Size().Height),
		slog.Bool("recordable", recordable))
	return ctx, nil
}

// PollEvents drains window events if the context has any.
func (m *ContextManager) PollEvents() {
	if p, ok := m.ctx.(EventPoller); ok {
		p.PollEvents()
	}
}

// Context returns the live context or nil.
func (m *ContextManager) Context() Context {
	return m.ctx
}

// AttachSecondarySurface binds the encoder surface, replacing any previous one.
func (m *ContextManager) AttachSecondarySurface(s Surface) (SurfaceHandle, error) {
	if m.ctx == nil {
		return nil, ErrNoContext
	}
	m.DetachSecondarySurface()
	h, err := m.ctx.CreateSurface(s)
	if err != nil {
		return nil, errors.Wrap(err, "create secondary surface")
	}
	m.secondary = h
	return h, nil
}

// HasSecondarySurface reports whether an encoder surface is attached.
func (m *ContextManager) HasSecondarySurface() bool {
	return m.secondary != nil
}

// DetachSecondarySurface destroys the encoder surface if there is one.
func (m *ContextManager) DetachSecondarySurface() {
	if m.ctx == nil || m.secondary == nil {
		return
	}
	m.ctx.DestroySurface(m.secondary)
	m.secondary = nil
}

func (m *ContextManager) handle(t Target) (SurfaceHandle, error) {
	if m.ctx == nil {
		return nil, ErrNoContext
	}
	if t == TargetEncoder {
		if m.secondary == nil {
			return nil, ErrNoSecondarySurface
		}
		return m.secondary, nil
	}
	return m.ctx.Primary(), nil
}

// MakeCurrent binds the context to the surface of t.
func (m *ContextManager) MakeCurrent(t Target) error {
	h, err := m.handle(t)
	if err != nil {
		return err
	}
	return errors.Wrapf(m.ctx.MakeCurrent(h), "make %s current", t)
}

// SwapBuffers presents the surface of t.
func (m *ContextManager) SwapBuffers(t Target) error {
	h, err := m.handle(t)
	if err != nil {
		return err
	}
	return errors.Wrapf(m.ctx.SwapBuffers(h), "swap %s", t)
}

// Teardown releases the encoder surface, then the context. Safe to call
// repeatedly.
func (m *ContextManager) Teardown() {
	if m.ctx == nil {
		return
	}
	m.DetachSecondarySurface()
	m.ctx.Destroy()
	m.ctx = nil
	m.log.Debug("graphics context destroyed")
}
