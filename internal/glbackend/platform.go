// Package glbackend implements the render platform with GLFW windows and an
// OpenGL 4.1 core context.
//
// GLFW requires window and event calls on the main OS thread. The render loop
// must therefore be run with Renderer.Run from the main goroutine, locked to
// the main thread in an init function.
package glbackend

import (
	"log/slog"
	"sync"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/pkg/errors"

	"video-compositor/internal/render"
)

// Init initializes GLFW. Call Terminate when done.
func Init() error {
	return errors.Wrap(glfw.Init(), "glfw init")
}

// Terminate releases GLFW.
func Terminate() {
	glfw.Terminate()
}

// Display is the visible window the compositor presents to. The window is
// created by Platform.CreateContext so the pixel format can follow the
// requested config.
type Display struct {
	Title  string
	Width  int
	Height int

	mu       sync.Mutex
	onResize func(width, height int)
	onClose  func()
}

// NewDisplay describes a window of the given size.
func NewDisplay(title string, width, height int) *Display {
	return &Display{Title: title, Width: width, Height: height}
}

// Size is the framebuffer size once the window exists, else the requested size.
func (d *Display) Size() render.Size {
	d.mu.Lock()
	defer d.mu.Unlock()
	return render.Size{Width: d.Width, Height: d.Height}
}

// OnResize registers fn for framebuffer size changes. It runs on the render
// goroutine while events are polled.
func (d *Display) OnResize(fn func(width, height int)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onResize = fn
}

// OnClose registers fn for the window close button.
func (d *Display) OnClose(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onClose = fn
}

func (d *Display) attach(w *glfw.Window) {
	width, height := w.GetFramebufferSize()
	d.mu.Lock()
	d.Width, d.Height = width, height
	d.mu.Unlock()

	w.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		d.mu.Lock()
		d.Width, d.Height = width, height
		fn := d.onResize
		d.mu.Unlock()
		if fn != nil {
			fn(width, height)
		}
	})
	w.SetCloseCallback(func(*glfw.Window) {
		d.mu.Lock()
		fn := d.onClose
		d.mu.Unlock()
		if fn != nil {
			fn()
		}
	})
}

// EncoderSurface is an off-screen destination sized for the encoder. It is
// backed by a hidden window sharing the display context.
type EncoderSurface struct {
	Width, Height int
}

// Size implements render.Surface.
func (s EncoderSurface) Size() render.Size {
	return render.Size{Width: s.Width, Height: s.Height}
}

// Platform creates GLFW-backed contexts.
type Platform struct {
	log *slog.Logger
}

// NewPlatform returns a platform logging to log.
func NewPlatform(log *slog.Logger) *Platform {
	return &Platform{log: log.With(slog.String("component", "glbackend"))}
}

type hint struct {
	key   glfw.Hint
	value int
}

// hintsFor maps an attribute list to window hints. The recordable flag has no
// desktop equivalent and is dropped.
func hintsFor(attrs []int32) []hint {
	keys := map[int32]glfw.Hint{
		render.AttrRedSize:     glfw.RedBits,
		render.AttrGreenSize:   glfw.GreenBits,
		render.AttrBlueSize:    glfw.BlueBits,
		render.AttrAlphaSize:   glfw.AlphaBits,
		render.AttrDepthSize:   glfw.DepthBits,
		render.AttrStencilSize: glfw.StencilBits,
	}
	hints := []hint{
		{glfw.ContextVersionMajor, 4},
		{glfw.ContextVersionMinor, 1},
		{glfw.OpenGLProfile, glfw.OpenGLCoreProfile},
		{glfw.OpenGLForwardCompatible, glfw.True},
	}
	for i := 0; i+1 < len(attrs) && attrs[i] != render.AttrNone; i += 2 {
		if key, ok := keys[attrs[i]]; ok {
			hints = append(hints, hint{key, int(attrs[i+1])})
		}
	}
	return hints
}

func applyHints(hints []hint) {
	glfw.DefaultWindowHints()
	for _, h := range hints {
		glfw.WindowHint(h.key, h.value)
	}
}

// CreateContext opens the display window and makes its context current.
// display must be a *Display.
func (p *Platform) CreateContext(display render.Surface, cfg render.ConfigRequest) (render.Context, error) {
	d, ok := display.(*Display)
	if !ok {
		return nil, errors.Errorf("glbackend: display must be *Display, got %T", display)
	}
	hints := hintsFor(cfg.Attributes())
	applyHints(hints)

	size := d.Size()
	w, err := glfw.CreateWindow(size.Width, size.Height, d.Title, nil, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create window")
	}
	w.MakeContextCurrent()
	if err := gl.Init(); err != nil {
		w.Destroy()
		return nil, errors.Wrap(err, "gl init")
	}
	glfw.SwapInterval(0)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	d.attach(w)

	p.log.Info("opengl context created",
		slog.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		slog.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
		slog.Bool("recordable_requested", cfg.Recordable))

	c := &Context{
		log:     p.log,
		primary: w,
		hints:   hints,
		dev:     newDevice(),
	}
	c.dev.bindQuad(w)
	return c, nil
}

// Context is a GLFW context with the display window as primary surface.
type Context struct {
	log     *slog.Logger
	primary *glfw.Window
	hints   []hint
	dev     *Device
}

func (c *Context) Device() render.Device         { return c.dev }
func (c *Context) Primary() render.SurfaceHandle { return c.primary }

// CreateSurface opens a hidden window sharing this context's objects.
func (c *Context) CreateSurface(s render.Surface) (render.SurfaceHandle, error) {
	size := s.Size()
	if size.Empty() {
		return nil, errors.Errorf("surface size %dx%d", size.Width, size.Height)
	}
	applyHints(append(c.hints[:len(c.hints):len(c.hints)], hint{glfw.Visible, glfw.False}))
	w, err := glfw.CreateWindow(size.Width, size.Height, "encoder", nil, c.primary)
	if err != nil {
		return nil, errors.Wrap(err, "create encoder window")
	}
	w.MakeContextCurrent()
	glfw.SwapInterval(0)
	c.dev.bindQuad(w)
	c.primary.MakeContextCurrent()
	return w, nil
}

func (c *Context) DestroySurface(h render.SurfaceHandle) {
	w, ok := h.(*glfw.Window)
	if !ok || w == c.primary {
		return
	}
	w.MakeContextCurrent()
	c.dev.forget(w)
	c.primary.MakeContextCurrent()
	w.Destroy()
}

func (c *Context) MakeCurrent(h render.SurfaceHandle) error {
	w, ok := h.(*glfw.Window)
	if !ok {
		return errors.Errorf("unknown surface handle %T", h)
	}
	w.MakeContextCurrent()
	c.dev.bindQuad(w)
	return nil
}

func (c *Context) SwapBuffers(h render.SurfaceHandle) error {
	w, ok := h.(*glfw.Window)
	if !ok {
		return errors.Errorf("unknown surface handle %T", h)
	}
	w.SwapBuffers()
	return nil
}

// PollEvents runs the display window's resize and close callbacks. GLFW only
// allows it on the main thread, so the render loop must own it.
func (c *Context) PollEvents() {
	glfw.PollEvents()
}

func (c *Context) CreateImageSource() (render.ImageSource, error) {
	return newPixelImageSource(), nil
}

// Destroy deletes shared buffers and closes the display window.
func (c *Context) Destroy() {
	c.primary.MakeContextCurrent()
	c.dev.forget(c.primary)
	c.dev.release()
	glfw.DetachCurrentContext()
	c.primary.Destroy()
	c.log.Debug("display window destroyed")
}
