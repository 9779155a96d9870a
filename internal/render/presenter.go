package render

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Presenter blits the offscreen color buffer to whichever surface is current.
type Presenter struct {
	dev       Device
	programs  *Programs
	modelView mgl32.Mat4
	blend     BlendMode
}

// NewPresenter returns a presenter for variant.
func NewPresenter(dev Device, programs *Programs, variant Variant) *Presenter {
	return &Presenter{
		dev:       dev,
		programs:  programs,
		modelView: variant.modelView(),
		blend:     variant.presentBlend(),
	}
}

// Present draws off into vp of the default framebuffer, sampling through the
// decoder-reported transform.
func (p *Presenter) Present(off *Offscreen, transform mgl32.Mat4, vp Viewport) {
	p.dev.BindFramebuffer(DefaultFramebuffer)
	p.dev.SetViewport(vp)
	p.dev.Clear()
	p.dev.DrawQuad(QuadPass{
		Program:      p.programs.Blit,
		Texture:      off.Color,
		Kind:         Texture2D,
		Unit:         0,
		Projection:   projection,
		ModelView:    p.modelView,
		TexTransform: transform,
		Blend:        p.blend,
	})
}
