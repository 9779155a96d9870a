package glbackend

import (
	"sync"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"

	"video-compositor/internal/render"
)

// flipY maps top-down pixel rows onto GL's bottom-up texture space.
var flipY = mgl32.Translate3D(0, 1, 0).Mul4(mgl32.Scale3D(1, -1, 1))

// PixelImageSource is an image source fed with RGBA pixels from a producer
// goroutine. Publish copies into a back buffer; Latch uploads the newest
// buffer on the render goroutine.
type PixelImageSource struct {
	tex uint32

	mu          sync.Mutex
	listener    func()
	back        []byte
	backSize    render.Size
	dirty       bool
	defaultSize render.Size

	// render goroutine only
	front     []byte
	allocated render.Size
}

func newPixelImageSource() *PixelImageSource {
	return &PixelImageSource{tex: newTexture(render.Size{})}
}

// Publish hands over one RGBA frame of size. Safe from any goroutine; pix is
// copied.
func (s *PixelImageSource) Publish(pix []byte, size render.Size) {
	if size.Empty() || len(pix) < size.Width*size.Height*4 {
		return
	}
	s.mu.Lock()
	s.back = append(s.back[:0], pix[:size.Width*size.Height*4]...)
	s.backSize = size
	s.dirty = true
	fn := s.listener
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// DefaultBufferSize is the size the consumer last asked producers to use.
func (s *PixelImageSource) DefaultBufferSize() render.Size {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.defaultSize
}

func (s *PixelImageSource) Texture() render.TextureID {
	return render.TextureID(s.tex)
}

func (s *PixelImageSource) Latch() {
	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return
	}
	s.front, s.back = s.back, s.front
	size := s.backSize
	s.dirty = false
	s.mu.Unlock()

	gl.BindTexture(gl.TEXTURE_2D, s.tex)
	if size != s.allocated {
		gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA, int32(size.Width), int32(size.Height), 0,
			gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(s.front))
		s.allocated = size
	} else {
		gl.TexSubImage2D(gl.TEXTURE_2D, 0, 0, 0, int32(size.Width), int32(size.Height),
			gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(s.front))
	}
	gl.BindTexture(gl.TEXTURE_2D, 0)
}

func (s *PixelImageSource) TransformMatrix() mgl32.Mat4 {
	return flipY
}

func (s *PixelImageSource) SetFrameListener(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = fn
}

func (s *PixelImageSource) SetDefaultBufferSize(size render.Size) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultSize = size
}

func (s *PixelImageSource) Release() {
	if s.tex != 0 {
		gl.DeleteTextures(1, &s.tex)
		s.tex = 0
	}
}
