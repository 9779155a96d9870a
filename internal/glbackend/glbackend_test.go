package glbackend

import (
	"strings"
	"testing"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"

	"video-compositor/internal/render"
)

func TestHintsForDefaultConfig(t *testing.T) {
	hints := hintsFor(render.DefaultConfig(true).Attributes())

	got := make(map[glfw.Hint]int, len(hints))
	for _, h := range hints {
		got[h.key] = h.value
	}
	assert.Equal(t, 4, got[glfw.ContextVersionMajor])
	assert.Equal(t, 1, got[glfw.ContextVersionMinor])
	assert.Equal(t, glfw.OpenGLCoreProfile, got[glfw.OpenGLProfile])
	for _, k := range []glfw.Hint{glfw.RedBits, glfw.GreenBits, glfw.BlueBits, glfw.AlphaBits, glfw.DepthBits} {
		assert.Equal(t, 8, got[k])
	}
	assert.Equal(t, 0, got[glfw.StencilBits])
	assert.Len(t, hints, 10, "recordable flag has no hint")
}

func TestHintsForTruncatedList(t *testing.T) {
	hints := hintsFor([]int32{render.AttrRedSize, 5, render.AttrNone, render.AttrGreenSize, 6})
	assert.Len(t, hints, 5)
	assert.Equal(t, hint{glfw.RedBits, 5}, hints[4])
}

func TestBlendFactors(t *testing.T) {
	src, dst := blendFactors(render.BlendPremultiplied)
	assert.Equal(t, uint32(gl.ONE), src)
	assert.Equal(t, uint32(gl.ONE_MINUS_SRC_ALPHA), dst)

	src, dst = blendFactors(render.BlendAlpha)
	assert.Equal(t, uint32(gl.SRC_ALPHA), src)
	assert.Equal(t, uint32(gl.ONE_MINUS_SRC_ALPHA), dst)
}

func TestDepthFuncPassesEqualDepth(t *testing.T) {
	assert.Equal(t, uint32(gl.LEQUAL), uint32(depthFunc))
}

func TestFlipY(t *testing.T) {
	top := flipY.Mul4x1(mgl32.Vec4{0.25, 0, 0, 1})
	assert.InDelta(t, 0.25, top.X(), 1e-6)
	assert.InDelta(t, 1, top.Y(), 1e-6)

	bottom := flipY.Mul4x1(mgl32.Vec4{0.75, 1, 0, 1})
	assert.InDelta(t, 0.75, bottom.X(), 1e-6)
	assert.InDelta(t, 0, bottom.Y(), 1e-6)
}

func TestShadersDeclareBoundNames(t *testing.T) {
	for _, name := range []string{"vPosition", "vTexCoordinate", "projection", "modelView", "textureTransform"} {
		assert.True(t, strings.Contains(Shaders.Vertex, name), name)
	}
	assert.Contains(t, Shaders.Fragment2D, "u_texture")
	assert.True(t, strings.HasPrefix(Shaders.Vertex, "#version 410"))
}

func TestEncoderSurfaceSize(t *testing.T) {
	s := EncoderSurface{Width: 1280, Height: 720}
	assert.Equal(t, render.Size{Width: 1280, Height: 720}, s.Size())

	d := NewDisplay("test", 800, 600)
	assert.Equal(t, render.Size{Width: 800, Height: 600}, d.Size())
}
