package render

import (
	"github.com/go-gl/mathgl/mgl32"
)

// GPU object names. Zero is never a live object; for framebuffers zero is the
// default framebuffer of whichever surface is current.
type (
	TextureID      uint32
	RenderbufferID uint32
	FramebufferID  uint32
	ProgramID      uint32
)

// DefaultFramebuffer targets the current surface.
const DefaultFramebuffer FramebufferID = 0

// TextureKind selects the sampler binding point.
type TextureKind int

const (
	// TextureExternal is an image populated by an outside producer.
	TextureExternal TextureKind = iota
	// Texture2D is an ordinary 2D texture owned by the renderer.
	Texture2D
)

// BlendMode selects the blend equation for a quad pass.
type BlendMode int

const (
	// BlendPremultiplied is (ONE, ONE_MINUS_SRC_ALPHA).
	BlendPremultiplied BlendMode = iota
	// BlendAlpha is (SRC_ALPHA, ONE_MINUS_SRC_ALPHA).
	BlendAlpha
)

func (b BlendMode) String() string {
	if b == BlendAlpha {
		return "alpha"
	}
	return "premultiplied"
}

// FramebufferStatus is the result of a completeness check.
type FramebufferStatus uint32

// FramebufferComplete matches GL_FRAMEBUFFER_COMPLETE.
const FramebufferComplete FramebufferStatus = 0x8CD5

// QuadPass describes one full-screen textured quad draw.
type QuadPass struct {
	Program      ProgramID
	Texture      TextureID
	Kind         TextureKind
	Unit         int
	Projection   mgl32.Mat4
	ModelView    mgl32.Mat4
	TexTransform mgl32.Mat4
	Blend        BlendMode
}

// Device is the subset of the GPU API the pipeline drives. Every method must be
// called from the goroutine that owns the current context.
type Device interface {
	CreateProgram(vertex, fragment string) (ProgramID, error)
	DeleteProgram(p ProgramID)

	CreateTexture(size Size) (TextureID, error)
	DeleteTexture(t TextureID)

	CreateDepthBuffer(size Size) (RenderbufferID, error)
	DeleteRenderbuffer(r RenderbufferID)

	// CreateFramebuffer attaches color and depth to a new framebuffer and
	// reports its completeness. The default framebuffer is bound on return.
	CreateFramebuffer(color TextureID, depth RenderbufferID) (FramebufferID, FramebufferStatus, error)
	DeleteFramebuffer(f FramebufferID)
	BindFramebuffer(f FramebufferID)

	SetViewport(v Viewport)
	Clear()
	DrawQuad(p QuadPass)

	// DrainErrors empties the error queue.
	DrainErrors() []error
}

// ImageSource is an externally populated texture plus its per-frame transform.
// The producer side lives outside this package and signals through the
// listener passed to SetFrameListener.
type ImageSource interface {
	Texture() TextureID
	// Latch makes the newest produced image the one sampled by Texture.
	// Render goroutine only.
	Latch()
	// TransformMatrix is the texture-coordinate transform of the latched image.
	TransformMatrix() mgl32.Mat4
	// SetFrameListener installs fn to be called from the producer goroutine
	// whenever a new image is available. nil removes it.
	SetFrameListener(fn func())
	// SetDefaultBufferSize hints the producer at the expected image size.
	SetDefaultBufferSize(size Size)
	Release()
}
