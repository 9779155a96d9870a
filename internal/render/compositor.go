package render

import (
	"fmt"
	"log/slog"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

// ErrFramebufferIncomplete aborts the pipeline.
var ErrFramebufferIncomplete = errors.New("render: framebuffer incomplete")

// Variant selects the composition layers.
type Variant int

const (
	// PlainVideo draws only the video layer.
	PlainVideo Variant = iota
	// VideoWithOverlay draws an alpha-blended overlay above the video.
	VideoWithOverlay
)

func (v Variant) String() string {
	if v == VideoWithOverlay {
		return "overlay"
	}
	return "plain"
}

// ParseVariant accepts "plain" and "overlay".
func ParseVariant(s string) (Variant, error) {
	switch s {
	case "plain", "":
		return PlainVideo, nil
	case "overlay":
		return VideoWithOverlay, nil
	}
	return PlainVideo, fmt.Errorf("unknown render variant %q", s)
}

// modelView is the translation-only model view for the variant.
func (v Variant) modelView() mgl32.Mat4 {
	if v == VideoWithOverlay {
		return mgl32.Translate3D(0, 0, -0.5)
	}
	return mgl32.Ident4()
}

// presentBlend is the blend used when blitting the composited buffer.
func (v Variant) presentBlend() BlendMode {
	if v == VideoWithOverlay {
		return BlendAlpha
	}
	return BlendPremultiplied
}

// projection is shared by every pass.
var projection = mgl32.Ortho(-1, 1, -1, 1, -1, 1)

// Layer is an extra texture composited over the video.
type Layer struct {
	Texture TextureID
	Kind    TextureKind
}

// Offscreen is the intermediate render target sized to the source video.
type Offscreen struct {
	Color       TextureID
	Depth       RenderbufferID
	Framebuffer FramebufferID
	Width       int
	Height      int
}

// Size returns the allocated dimensions.
func (o Offscreen) Size() Size {
	return Size{Width: o.Width, Height: o.Height}
}

// Compositor draws the current frame into the offscreen framebuffer.
type Compositor struct {
	dev       Device
	programs  *Programs
	modelView mgl32.Mat4
	log       *slog.Logger

	fb       Offscreen
	prepared bool
}

// NewCompositor returns a compositor for variant.
func NewCompositor(dev Device, programs *Programs, variant Variant, log *slog.Logger) *Compositor {
	return &Compositor{
		dev:       dev,
		programs:  programs,
		modelView: variant.modelView(),
		log:       log,
	}
}

// Prepared reports whether a complete framebuffer is allocated.
func (c *Compositor) Prepared() bool {
	return c.prepared
}

// Offscreen returns the current framebuffer; meaningful only when Prepared.
func (c *Compositor) Offscreen() Offscreen {
	return c.fb
}

// PrepareFramebuffer allocates the framebuffer at size. A zero dimension is a
// no-op. An allocation of the same size is kept.
func (c *Compositor) PrepareFramebuffer(size Size) error {
	if size.Empty() {
		return nil
	}
	if c.prepared && c.fb.Size() == size {
		return nil
	}
	c.ReleaseFramebuffer()

	color, err := c.dev.CreateTexture(size)
	if err != nil {
		return errors.Wrap(err, "offscreen color texture")
	}
	logErrors(c.dev, c.log, "texture setup")

	depth, err := c.dev.CreateDepthBuffer(size)
	if err != nil {
		c.dev.DeleteTexture(color)
		return errors.Wrap(err, "offscreen depth buffer")
	}

	fbo, status, err := c.dev.CreateFramebuffer(color, depth)
	if err != nil {
		c.dev.DeleteRenderbuffer(depth)
		c.dev.DeleteTexture(color)
		return errors.Wrap(err, "offscreen framebuffer")
	}
	c.fb = Offscreen{Color: color, Depth: depth, Framebuffer: fbo, Width: size.Width, Height: size.Height}
	if status != FramebufferComplete {
		c.ReleaseFramebuffer()
		return errors.Wrapf(ErrFramebufferIncomplete, "status=0x%x size=%dx%d", uint32(status), size.Width, size.Height)
	}

	c.prepared = true
	c.log.Debug("offscreen framebuffer prepared",
		slog.Int("width", size.Width), slog.Int("height", size.Height))
	return nil
}

// ReleaseFramebuffer deletes whatever is allocated. Idempotent.
func (c *Compositor) ReleaseFramebuffer() {
	if c.fb.Color != 0 {
		c.dev.DeleteTexture(c.fb.Color)
	}
	if c.fb.Depth != 0 {
		c.dev.DeleteRenderbuffer(c.fb.Depth)
	}
	if c.fb.Framebuffer != 0 {
		c.dev.DeleteFramebuffer(c.fb.Framebuffer)
	}
	c.fb = Offscreen{}
	c.prepared = false
}

// Composite renders the frame's texture, then overlay if given, into the
// offscreen framebuffer. It returns false when no framebuffer is prepared.
// The base layer is drawn with an identity texture transform; the frame's
// own transform is applied when presenting.
func (c *Compositor) Composite(frame Frame, overlay *Layer) (*Offscreen, bool) {
	if !c.prepared {
		return nil, false
	}

	c.dev.BindFramebuffer(c.fb.Framebuffer)
	c.dev.SetViewport(FullViewport(c.fb.Size()))
	c.dev.Clear()

	c.dev.DrawQuad(QuadPass{
		Program:      c.programs.External,
		Texture:      frame.Texture,
		Kind:         TextureExternal,
		Unit:         0,
		Projection:   projection,
		ModelView:    c.modelView,
		TexTransform: mgl32.Ident4(),
		Blend:        BlendPremultiplied,
	})

	if overlay != nil {
		c.dev.DrawQuad(QuadPass{
			Program:      c.programs.For(overlay.Kind),
			Texture:      overlay.Texture,
			Kind:         overlay.Kind,
			Unit:         1,
			Projection:   projection,
			ModelView:    c.modelView,
			TexTransform: mgl32.Ident4(),
			Blend:        BlendAlpha,
		})
	}

	c.dev.BindFramebuffer(DefaultFramebuffer)
	fb := c.fb
	return &fb, true
}
