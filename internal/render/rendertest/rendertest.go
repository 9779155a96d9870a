// Package rendertest provides recording fakes of the render platform for
// tests. Every call is appended to a shared journal so tests can assert on
// ordering across the context, device and image sources.
package rendertest

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"

	"video-compositor/internal/render"
)

// Journal is an ordered, concurrency-safe log of calls.
type Journal struct {
	mu  sync.Mutex
	ops []string
}

func (j *Journal) add(format string, args ...any) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ops = append(j.ops, fmt.Sprintf(format, args...))
}

// Ops returns a copy of the journal.
func (j *Journal) Ops() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.ops...)
}

// Count returns how many entries start with prefix.
func (j *Journal) Count(prefix string) int {
	n := 0
	for _, op := range j.Ops() {
		if strings.HasPrefix(op, prefix) {
			n++
		}
	}
	return n
}

// Index returns the position of the first entry equal to op, or -1.
func (j *Journal) Index(op string) int {
	for i, o := range j.Ops() {
		if o == op {
			return i
		}
	}
	return -1
}

// Reset clears the journal.
func (j *Journal) Reset() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ops = nil
}

// Surface is a fixed-size presentable target.
type Surface struct {
	Name string
	W, H int
}

// Size implements render.Surface.
func (s *Surface) Size() render.Size {
	return render.Size{Width: s.W, Height: s.H}
}

// NewSurface returns a named surface.
func NewSurface(name string, w, h int) *Surface {
	return &Surface{Name: name, W: w, H: h}
}

// handle is the fake surface binding.
type handle struct {
	name string
}

// Platform is a fake render.Platform.
type Platform struct {
	Journal *Journal

	// CreateErr fails CreateContext.
	CreateErr error
	// SurfaceErr fails Context.CreateSurface.
	SurfaceErr error

	Device *Device

	mu       sync.Mutex
	configs  []render.ConfigRequest
	contexts []*Context
	polls    atomic.Int64
}

// NewPlatform returns a platform whose device reports complete framebuffers.
func NewPlatform() *Platform {
	j := &Journal{}
	return &Platform{
		Journal: j,
		Device:  &Device{journal: j, Status: render.FramebufferComplete},
	}
}

// CreateContext implements render.Platform.
func (p *Platform) CreateContext(display render.Surface, cfg render.ConfigRequest) (render.Context, error) {
	p.mu.Lock()
	p.configs = append(p.configs, cfg)
	p.mu.Unlock()
	if p.CreateErr != nil {
		p.Journal.add("create_context_failed")
		return nil, p.CreateErr
	}
	size := display.Size()
	p.Journal.add("create_context:%dx%d", size.Width, size.Height)
	c := &Context{platform: p, primary: &handle{name: "display"}}
	p.mu.Lock()
	p.contexts = append(p.contexts, c)
	p.mu.Unlock()
	return c, nil
}

// Polls is how many times any context polled for window events.
func (p *Platform) Polls() int64 {
	return p.polls.Load()
}

// Configs returns every config requested.
func (p *Platform) Configs() []render.ConfigRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]render.ConfigRequest(nil), p.configs...)
}

// Sources returns every image source created, in order.
func (p *Platform) Sources() []*ImageSource {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*ImageSource
	for _, c := range p.contexts {
		out = append(out, c.sources...)
	}
	return out
}

// Context is a fake render.Context.
type Context struct {
	platform *Platform
	primary  *handle
	surfaces int
	sources  []*ImageSource
}

func (c *Context) Device() render.Device         { return c.platform.Device }
func (c *Context) Primary() render.SurfaceHandle { return c.primary }

func (c *Context) CreateSurface(s render.Surface) (render.SurfaceHandle, error) {
	if c.platform.SurfaceErr != nil {
		return nil, c.platform.SurfaceErr
	}
	c.surfaces++
	name := fmt.Sprintf("encoder%d", c.surfaces)
	size := s.Size()
	c.platform.Journal.add("create_surface:%s:%dx%d", name, size.Width, size.Height)
	return &handle{name: name}, nil
}

func (c *Context) DestroySurface(h render.SurfaceHandle) {
	c.platform.Journal.add("destroy_surface:%s", h.(*handle).name)
}

func (c *Context) MakeCurrent(h render.SurfaceHandle) error {
	c.platform.Journal.add("make_current:%s", h.(*handle).name)
	return nil
}

func (c *Context) SwapBuffers(h render.SurfaceHandle) error {
	c.platform.Journal.add("swap:%s", h.(*handle).name)
	return nil
}

func (c *Context) CreateImageSource() (render.ImageSource, error) {
	tex, _ := c.platform.Device.CreateTexture(render.Size{})
	src := NewImageSource(c.platform.Journal, tex)
	c.platform.mu.Lock()
	c.sources = append(c.sources, src)
	c.platform.mu.Unlock()
	return src, nil
}

// PollEvents implements render.EventPoller.
func (c *Context) PollEvents() {
	c.platform.polls.Add(1)
}

func (c *Context) Destroy() {
	c.platform.Journal.add("destroy_context")
}

// Device is a fake render.Device.
type Device struct {
	journal *Journal

	// Status is reported by CreateFramebuffer.
	Status render.FramebufferStatus

	mu      sync.Mutex
	nextID  uint32
	draws   []render.QuadPass
	pending []error
}

func (d *Device) id() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

// InjectError queues err for the next DrainErrors.
func (d *Device) InjectError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = append(d.pending, err)
}

// Draws returns every quad drawn.
func (d *Device) Draws() []render.QuadPass {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]render.QuadPass(nil), d.draws...)
}

func (d *Device) CreateProgram(vertex, fragment string) (render.ProgramID, error) {
	if vertex == "" || fragment == "" {
		return 0, errors.New("empty shader source")
	}
	id := render.ProgramID(d.id())
	d.journal.add("create_program:%d", id)
	return id, nil
}

func (d *Device) DeleteProgram(p render.ProgramID) {
	d.journal.add("delete_program:%d", p)
}

func (d *Device) CreateTexture(size render.Size) (render.TextureID, error) {
	id := render.TextureID(d.id())
	d.journal.add("create_texture:%d:%dx%d", id, size.Width, size.Height)
	return id, nil
}

func (d *Device) DeleteTexture(t render.TextureID) {
	d.journal.add("delete_texture:%d", t)
}

func (d *Device) CreateDepthBuffer(size render.Size) (render.RenderbufferID, error) {
	id := render.RenderbufferID(d.id())
	d.journal.add("create_depth:%d:%dx%d", id, size.Width, size.Height)
	return id, nil
}

func (d *Device) DeleteRenderbuffer(r render.RenderbufferID) {
	d.journal.add("delete_renderbuffer:%d", r)
}

func (d *Device) CreateFramebuffer(color render.TextureID, depth render.RenderbufferID) (render.FramebufferID, render.FramebufferStatus, error) {
	id := render.FramebufferID(d.id())
	d.journal.add("create_framebuffer:%d", id)
	d.mu.Lock()
	status := d.Status
	d.mu.Unlock()
	return id, status, nil
}

// SetStatus changes the status reported by later CreateFramebuffer calls.
func (d *Device) SetStatus(s render.FramebufferStatus) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Status = s
}

func (d *Device) DeleteFramebuffer(f render.FramebufferID) {
	d.journal.add("delete_framebuffer:%d", f)
}

func (d *Device) BindFramebuffer(f render.FramebufferID) {
	d.journal.add("bind_framebuffer:%d", f)
}

func (d *Device) SetViewport(v render.Viewport) {
	d.journal.add("viewport:%d,%d,%d,%d", v.X, v.Y, v.Width, v.Height)
}

func (d *Device) Clear() {
	d.journal.add("clear")
}

func (d *Device) DrawQuad(p render.QuadPass) {
	d.mu.Lock()
	d.draws = append(d.draws, p)
	d.mu.Unlock()
	d.journal.add("draw:%d:%s", p.Texture, p.Blend)
}

func (d *Device) DrainErrors() []error {
	d.mu.Lock()
	defer d.mu.Unlock()
	errs := d.pending
	d.pending = nil
	return errs
}

// ImageSource is a fake render.ImageSource whose producer side is driven by
// Produce.
type ImageSource struct {
	journal *Journal
	tex     render.TextureID

	mu        sync.Mutex
	listener  func()
	transform mgl32.Mat4
	next      mgl32.Mat4
	hasNext   bool
	latches   int
	size      render.Size
	released  bool
}

// NewImageSource returns a source bound to tex that journals into j.
func NewImageSource(j *Journal, tex render.TextureID) *ImageSource {
	return &ImageSource{journal: j, tex: tex, transform: mgl32.Ident4()}
}

// Produce simulates the producer delivering an image with transform.
func (s *ImageSource) Produce(transform mgl32.Mat4) {
	s.mu.Lock()
	s.next, s.hasNext = transform, true
	fn := s.listener
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (s *ImageSource) Texture() render.TextureID { return s.tex }

func (s *ImageSource) Latch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latches++
	if s.hasNext {
		s.transform, s.hasNext = s.next, false
	}
}

func (s *ImageSource) TransformMatrix() mgl32.Mat4 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transform
}

func (s *ImageSource) SetFrameListener(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = fn
}

// HasListener reports whether a frame listener is installed.
func (s *ImageSource) HasListener() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener != nil
}

func (s *ImageSource) SetDefaultBufferSize(size render.Size) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.size = size
}

// BufferSize returns the last size hint.
func (s *ImageSource) BufferSize() render.Size {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Latches returns how many times Latch ran.
func (s *ImageSource) Latches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latches
}

func (s *ImageSource) Release() {
	s.mu.Lock()
	s.released = true
	s.mu.Unlock()
	s.journal.add("release_source:%d", s.tex)
}

// Released reports whether Release ran.
func (s *ImageSource) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}
