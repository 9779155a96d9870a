package glbackend

import (
	_ "embed"

	"video-compositor/internal/render"
)

var (
	//go:embed shaders/quad.vert
	vertexSource string
	//go:embed shaders/texture.frag
	fragmentSource string
)

// Shaders is the GLSL 4.10 dialect. Desktop GL has no external image type, so
// both fragment programs sample a plain 2D texture.
var Shaders = render.ShaderSet{
	Vertex:           vertexSource,
	ExternalFragment: fragmentSource,
	Fragment2D:       fragmentSource,
}
