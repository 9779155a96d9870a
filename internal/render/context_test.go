package render_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"video-compositor/internal/render"
	"video-compositor/internal/render/rendertest"
)

func TestConfigAttributes(t *testing.T) {
	got := render.DefaultConfig(true).Attributes()
	want := []int32{
		0x3024, 8, 0x3023, 8, 0x3022, 8, 0x3021, 8,
		0x3025, 8, 0x3026, 0,
		0x3142, 1,
		0x3038,
	}
	assert.Equal(t, want, got)

	plain := render.DefaultConfig(false).Attributes()
	assert.Len(t, plain, len(want)-2)
	assert.Equal(t, render.AttrNone, plain[len(plain)-1])
}

func TestContextManagerInitialize(t *testing.T) {
	p := rendertest.NewPlatform()
	m := render.NewContextManager(p, discardLogger())

	ctx, err := m.Initialize(rendertest.NewSurface("display", 800, 600), true)
	require.NoError(t, err)
	assert.NotNil(t, ctx)
	assert.Same(t, ctx, m.Context())
	assert.Equal(t, []string{"create_context:800x600", "make_current:display"}, p.Journal.Ops())

	cfgs := p.Configs()
	require.Len(t, cfgs, 1)
	assert.True(t, cfgs[0].Recordable)
	assert.Equal(t, 8, cfgs[0].Depth)
	assert.Equal(t, 0, cfgs[0].Stencil)
}

func TestContextManagerConfigUnsupported(t *testing.T) {
	p := rendertest.NewPlatform()
	p.CreateErr = errors.New("no matching config")
	m := render.NewContextManager(p, discardLogger())

	_, err := m.Initialize(rendertest.NewSurface("display", 800, 600), true)
	require.ErrorIs(t, err, render.ErrConfigUnsupported)
	assert.ErrorIs(t, err, p.CreateErr)

	var cfgErr *render.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.True(t, cfgErr.Config.Recordable)
	assert.Contains(t, err.Error(), "no matching config")
	assert.Nil(t, m.Context())
	assert.ErrorIs(t, m.MakeCurrent(render.TargetDisplay), render.ErrNoContext)
}

func TestContextManagerSecondarySurface(t *testing.T) {
	p := rendertest.NewPlatform()
	m := render.NewContextManager(p, discardLogger())
	_, err := m.Initialize(rendertest.NewSurface("display", 800, 600), true)
	require.NoError(t, err)

	assert.ErrorIs(t, m.MakeCurrent(render.TargetEncoder), render.ErrNoSecondarySurface)

	_, err = m.AttachSecondarySurface(rendertest.NewSurface("enc", 1280, 720))
	require.NoError(t, err)
	assert.True(t, m.HasSecondarySurface())

	_, err = m.AttachSecondarySurface(rendertest.NewSurface("enc", 640, 480))
	require.NoError(t, err)
	assert.Equal(t, 1, p.Journal.Count("destroy_surface:encoder1"), "attach replaces the previous surface")

	require.NoError(t, m.MakeCurrent(render.TargetEncoder))
	require.NoError(t, m.SwapBuffers(render.TargetEncoder))
	require.NoError(t, m.MakeCurrent(render.TargetDisplay))

	m.DetachSecondarySurface()
	m.DetachSecondarySurface()
	assert.False(t, m.HasSecondarySurface())
	assert.Equal(t, 1, p.Journal.Count("destroy_surface:encoder2"))
}

func TestContextManagerSurfaceFailure(t *testing.T) {
	p := rendertest.NewPlatform()
	m := render.NewContextManager(p, discardLogger())
	_, err := m.Initialize(rendertest.NewSurface("display", 800, 600), true)
	require.NoError(t, err)

	p.SurfaceErr = errors.New("surface lost")
	_, err = m.AttachSecondarySurface(rendertest.NewSurface("enc", 1280, 720))
	assert.Error(t, err)
	assert.False(t, m.HasSecondarySurface())
}

func TestContextManagerTeardownOrder(t *testing.T) {
	p := rendertest.NewPlatform()
	m := render.NewContextManager(p, discardLogger())
	_, err := m.Initialize(rendertest.NewSurface("display", 800, 600), true)
	require.NoError(t, err)
	_, err = m.AttachSecondarySurface(rendertest.NewSurface("enc", 1280, 720))
	require.NoError(t, err)

	m.Teardown()
	m.Teardown()

	surface := p.Journal.Index("destroy_surface:encoder1")
	context := p.Journal.Index("destroy_context")
	require.NotEqual(t, -1, surface)
	assert.Less(t, surface, context)
	assert.Equal(t, 1, p.Journal.Count("destroy_context"))
	assert.Nil(t, m.Context())
}
