package glbackend

import (
	"strings"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/pkg/errors"

	"video-compositor/internal/render"
)

// Attribute locations bound before linking.
const (
	attribPosition = 0
	attribTexCoord = 1
)

// quadVertices is a full-screen triangle strip: x, y, z, u, v.
var quadVertices = []float32{
	-1, -1, 0, 0, 0,
	1, -1, 0, 1, 0,
	-1, 1, 0, 0, 1,
	1, 1, 0, 1, 1,
}

type uniforms struct {
	projection       int32
	modelView        int32
	textureTransform int32
	texture          int32
}

// Device implements render.Device on an OpenGL 4.1 core context. Vertex
// array objects are per context, so one is kept for each window that has
// been made current.
type Device struct {
	programs map[render.ProgramID]uniforms
	vbo      uint32
	vaos     map[*glfw.Window]uint32
}

func newDevice() *Device {
	return &Device{
		programs: make(map[render.ProgramID]uniforms),
		vaos:     make(map[*glfw.Window]uint32),
	}
}

// bindQuad binds the quad vertex array for the current window, creating it on
// first use.
func (d *Device) bindQuad(w *glfw.Window) {
	if d.vbo == 0 {
		gl.GenBuffers(1, &d.vbo)
		gl.BindBuffer(gl.ARRAY_BUFFER, d.vbo)
		gl.BufferData(gl.ARRAY_BUFFER, len(quadVertices)*4, gl.Ptr(quadVertices), gl.STATIC_DRAW)
	}
	vao, ok := d.vaos[w]
	if !ok {
		gl.GenVertexArrays(1, &vao)
		gl.BindVertexArray(vao)
		gl.BindBuffer(gl.ARRAY_BUFFER, d.vbo)
		gl.EnableVertexAttribArray(attribPosition)
		gl.VertexAttribPointerWithOffset(attribPosition, 3, gl.FLOAT, false, 5*4, 0)
		gl.EnableVertexAttribArray(attribTexCoord)
		gl.VertexAttribPointerWithOffset(attribTexCoord, 2, gl.FLOAT, false, 5*4, 3*4)
		d.vaos[w] = vao
	}
	gl.BindVertexArray(vao)
}

// forget drops the vertex array of a window about to be destroyed. The window
// must be current.
func (d *Device) forget(w *glfw.Window) {
	if vao, ok := d.vaos[w]; ok {
		gl.DeleteVertexArrays(1, &vao)
		delete(d.vaos, w)
	}
}

func (d *Device) release() {
	if d.vbo != 0 {
		gl.DeleteBuffers(1, &d.vbo)
		d.vbo = 0
	}
}

func compileShader(source string, kind uint32) (uint32, error) {
	shader := gl.CreateShader(kind)
	csources, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csources, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)
		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(shader, logLength, nil, gl.Str(log))
		gl.DeleteShader(shader)
		return 0, errors.Errorf("compile shader: %s", strings.TrimRight(log, "\x00"))
	}
	return shader, nil
}

func (d *Device) CreateProgram(vertex, fragment string) (render.ProgramID, error) {
	vs, err := compileShader(vertex, gl.VERTEX_SHADER)
	if err != nil {
		return 0, errors.Wrap(err, "vertex")
	}
	defer gl.DeleteShader(vs)
	fs, err := compileShader(fragment, gl.FRAGMENT_SHADER)
	if err != nil {
		return 0, errors.Wrap(err, "fragment")
	}
	defer gl.DeleteShader(fs)

	program := gl.CreateProgram()
	gl.AttachShader(program, vs)
	gl.AttachShader(program, fs)
	gl.BindAttribLocation(program, attribPosition, gl.Str("vPosition\x00"))
	gl.BindAttribLocation(program, attribTexCoord, gl.Str("vTexCoordinate\x00"))
	gl.LinkProgram(program)

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLength)
		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(program, logLength, nil, gl.Str(log))
		gl.DeleteProgram(program)
		return 0, errors.Errorf("link program: %s", strings.TrimRight(log, "\x00"))
	}

	id := render.ProgramID(program)
	d.programs[id] = uniforms{
		projection:       gl.GetUniformLocation(program, gl.Str("projection\x00")),
		modelView:        gl.GetUniformLocation(program, gl.Str("modelView\x00")),
		textureTransform: gl.GetUniformLocation(program, gl.Str("textureTransform\x00")),
		texture:          gl.GetUniformLocation(program, gl.Str("u_texture\x00")),
	}
	return id, nil
}

func (d *Device) DeleteProgram(p render.ProgramID) {
	if p == 0 {
		return
	}
	gl.DeleteProgram(uint32(p))
	delete(d.programs, p)
}

// newTexture allocates an RGBA texture with linear filtering. A zero size
// leaves storage unallocated.
func newTexture(size render.Size) uint32 {
	var tex uint32
	gl.GenTextures(1, &tex)
	gl.BindTexture(gl.TEXTURE_2D, tex)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	if !size.Empty() {
		gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA, int32(size.Width), int32(size.Height), 0, gl.RGBA, gl.UNSIGNED_BYTE, nil)
	}
	gl.BindTexture(gl.TEXTURE_2D, 0)
	return tex
}

func (d *Device) CreateTexture(size render.Size) (render.TextureID, error) {
	return render.TextureID(newTexture(size)), nil
}

func (d *Device) DeleteTexture(t render.TextureID) {
	tex := uint32(t)
	gl.DeleteTextures(1, &tex)
}

func (d *Device) CreateDepthBuffer(size render.Size) (render.RenderbufferID, error) {
	var rb uint32
	gl.GenRenderbuffers(1, &rb)
	gl.BindRenderbuffer(gl.RENDERBUFFER, rb)
	gl.RenderbufferStorage(gl.RENDERBUFFER, gl.DEPTH_COMPONENT16, int32(size.Width), int32(size.Height))
	gl.BindRenderbuffer(gl.RENDERBUFFER, 0)
	return render.RenderbufferID(rb), nil
}

func (d *Device) DeleteRenderbuffer(r render.RenderbufferID) {
	rb := uint32(r)
	gl.DeleteRenderbuffers(1, &rb)
}

func (d *Device) CreateFramebuffer(color render.TextureID, depth render.RenderbufferID) (render.FramebufferID, render.FramebufferStatus, error) {
	var fbo uint32
	gl.GenFramebuffers(1, &fbo)
	gl.BindFramebuffer(gl.FRAMEBUFFER, fbo)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, uint32(color), 0)
	gl.FramebufferRenderbuffer(gl.FRAMEBUFFER, gl.DEPTH_ATTACHMENT, gl.RENDERBUFFER, uint32(depth))
	status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	return render.FramebufferID(fbo), render.FramebufferStatus(status), nil
}

func (d *Device) DeleteFramebuffer(f render.FramebufferID) {
	fbo := uint32(f)
	gl.DeleteFramebuffers(1, &fbo)
}

func (d *Device) BindFramebuffer(f render.FramebufferID) {
	gl.BindFramebuffer(gl.FRAMEBUFFER, uint32(f))
}

func (d *Device) SetViewport(v render.Viewport) {
	gl.Viewport(int32(v.X), int32(v.Y), int32(v.Width), int32(v.Height))
}

func (d *Device) Clear() {
	gl.ClearColor(0, 0, 0, 1)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
}

// DrawQuad draws one textured quad. External textures are plain 2D textures
// on desktop GL.
func (d *Device) DrawQuad(p render.QuadPass) {
	u, ok := d.programs[p.Program]
	if !ok {
		return
	}
	gl.UseProgram(uint32(p.Program))

	gl.Enable(gl.BLEND)
	src, dst := blendFactors(p.Blend)
	gl.BlendFunc(src, dst)

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(depthFunc)
	gl.DepthMask(true)

	gl.ActiveTexture(gl.TEXTURE0 + uint32(p.Unit))
	gl.BindTexture(gl.TEXTURE_2D, uint32(p.Texture))
	gl.Uniform1i(u.texture, int32(p.Unit))
	gl.UniformMatrix4fv(u.projection, 1, false, &p.Projection[0])
	gl.UniformMatrix4fv(u.modelView, 1, false, &p.ModelView[0])
	gl.UniformMatrix4fv(u.textureTransform, 1, false, &p.TexTransform[0])

	gl.BindVertexArray(d.currentVAO())
	gl.DrawArrays(gl.TRIANGLE_STRIP, 0, 4)
}

func (d *Device) currentVAO() uint32 {
	return d.vaos[glfw.GetCurrentContext()]
}

// depthFunc lets the overlay pass, drawn at the video layer's depth, land on
// top of it.
const depthFunc = gl.LEQUAL

func blendFactors(m render.BlendMode) (src, dst uint32) {
	if m == render.BlendAlpha {
		return gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA
	}
	return gl.ONE, gl.ONE_MINUS_SRC_ALPHA
}

// DrainErrors empties the GL error queue. GetError keeps returning the same
// code on a lost context, so the drain is bounded.
func (d *Device) DrainErrors() []error {
	var errs []error
	for i := 0; i < 16; i++ {
		code := gl.GetError()
		if code == gl.NO_ERROR {
			break
		}
		errs = append(errs, errors.Errorf("gl error 0x%04x", code))
	}
	return errs
}
