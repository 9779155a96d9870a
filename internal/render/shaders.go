package render

import (
	_ "embed"
	"log/slog"

	"github.com/pkg/errors"
)

// ShaderSet is the shader source for one GLSL dialect. Sources are opaque to
// the pipeline; they only have to agree on the uniform and attribute names
// the Device binds (vPosition, vTexCoordinate, projection, modelView,
// textureTransform, u_texture).
type ShaderSet struct {
	Vertex           string
	ExternalFragment string
	Fragment2D       string
}

var (
	//go:embed shaders/quad.vert
	esVertex string
	//go:embed shaders/external.frag
	esExternalFragment string
	//go:embed shaders/texture2d.frag
	esFragment2D string
)

// ESShaders is the OpenGL ES 2 dialect with external image sampling.
var ESShaders = ShaderSet{
	Vertex:           esVertex,
	ExternalFragment: esExternalFragment,
	Fragment2D:       esFragment2D,
}

// Programs holds the linked programs, created once per context.
type Programs struct {
	External ProgramID
	Blit     ProgramID
}

// LoadPrograms compiles and links both programs. GL errors raised during setup
// are logged, not returned; a failed link is returned.
func LoadPrograms(dev Device, set ShaderSet, log *slog.Logger) (*Programs, error) {
	external, err := dev.CreateProgram(set.Vertex, set.ExternalFragment)
	if err != nil {
		return nil, errors.Wrap(err, "external program")
	}
	blit, err := dev.CreateProgram(set.Vertex, set.Fragment2D)
	if err != nil {
		dev.DeleteProgram(external)
		return nil, errors.Wrap(err, "blit program")
	}
	logErrors(dev, log, "program setup")
	return &Programs{External: external, Blit: blit}, nil
}

// For returns the program that samples kind.
func (p *Programs) For(kind TextureKind) ProgramID {
	if kind == Texture2D {
		return p.Blit
	}
	return p.External
}

// Release deletes both programs.
func (p *Programs) Release(dev Device) {
	if p == nil {
		return
	}
	dev.DeleteProgram(p.External)
	dev.DeleteProgram(p.Blit)
	p.External, p.Blit = 0, 0
}

// logErrors drains the device error queue into the log and returns the count.
func logErrors(dev Device, log *slog.Logger, op string) int {
	errs := dev.DrainErrors()
	for _, err := range errs {
		log.Warn("gpu error", slog.String("op", op), slog.String("error", err.Error()))
	}
	return len(errs)
}
