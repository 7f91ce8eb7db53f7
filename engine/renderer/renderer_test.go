package renderer_test

import (
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/components"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu/gputest"
	"github.com/spaghettifunk/lumen/engine/scene"
)

func newRenderer(t *testing.T) (*renderer.Renderer, *gputest.Device) {
	t.Helper()
	inst := gputest.NewInstance(gputest.NewAdapter("software", false), gputest.NewAdapter("virtual gpu", true))
	r, err := renderer.New(renderer.Config{
		Instance: inst,
		Compiler: &gputest.Compiler{},
		Renderer: core.DefaultConfig().Renderer,
		Width:    1440,
		Height:   704,
	})
	require.NoError(t, err)
	return r, inst.AdapterList[1].Device
}

func view() components.ViewData {
	return components.NewCamera().ViewData(1440, 704)
}

func TestRenderFramesCycleSlots(t *testing.T) {
	r, dev := newRenderer(t)
	require.NoError(t, r.LoadScene(scene.Triangle()))
	for i := 0; i < 6; i++ {
		require.NoError(t, r.RenderFrame(view()))
	}

	assert.Equal(t, uint64(7), r.Tick())
	fence := dev.Fences[0]
	assert.Equal(t, []uint64{1, 2, 3, 4, 5, 6, 7}, fence.Signals)
	require.Len(t, dev.Swapchains, 1)
	assert.Equal(t, 6, dev.Swapchains[0].Begins)
	assert.Equal(t, 6, dev.Swapchains[0].Presents)

	require.Len(t, dev.Allocators, 2, "one allocator per frame in flight")
	assert.Equal(t, 4, dev.Allocators[0].Resets)
	assert.Equal(t, 3, dev.Allocators[1].Resets)
	assert.Equal(t, 4, dev.Lists[0].Submissions)
	assert.Equal(t, 3, dev.Lists[1].Submissions)

	last := dev.Lists[0]
	assert.Len(t, last.Find(gputest.OpDrawIndexed), 1)
	assert.Len(t, last.Find(gputest.OpDispatch), 1)
	heaps := last.Find(gputest.OpSetDescriptorHeaps)
	require.Len(t, heaps, 1)
	assert.Len(t, heaps[0].Heaps, 2)

	ring := dev.ResourceByLabel("view data ring")
	decoded := components.DecodeViewData(ring.Data[:components.ViewDataSize])
	assert.Equal(t, view(), decoded)
}

func TestRenderFrameWithoutScene(t *testing.T) {
	r, dev := newRenderer(t)
	require.NoError(t, r.RenderFrame(view()))
	assert.Empty(t, dev.Lists[0].Find(gputest.OpDrawIndexed))
	assert.Len(t, dev.Lists[0].Find(gputest.OpDispatch), 1)
	require.NoError(t, r.Shutdown())
}

func TestRenderFrameTimesOut(t *testing.T) {
	r, dev := newRenderer(t)
	dev.FakeQueue().AutoComplete = false

	require.NoError(t, r.RenderFrame(view()))
	require.NoError(t, r.RenderFrame(view()))
	err := r.RenderFrame(view())
	var timeout *core.DeviceTimeoutError
	require.True(t, errors.As(err, &timeout))
	assert.Equal(t, uint64(1), timeout.Target)
	assert.Equal(t, uint64(2), r.Tick(), "nothing is recorded after a timeout")
}

func TestReloadRewindsDescriptors(t *testing.T) {
	r, dev := newRenderer(t)
	require.NoError(t, r.LoadScene(scene.Triangle()))
	first := r.Scene()
	rv, smp := r.Descriptors().Cursors()
	vertices := dev.ResourceByLabel("scene vertices")

	for i := 0; i < 3; i++ {
		require.NoError(t, r.LoadScene(scene.Triangle()))
		require.NoError(t, r.RenderFrame(view()))
		gotRV, gotSmp := r.Descriptors().Cursors()
		assert.Equal(t, rv, gotRV)
		assert.Equal(t, smp, gotSmp)
		assert.Equal(t, first.SceneTable, r.Scene().SceneTable)
	}
	assert.True(t, vertices.Released, "the first scene is freed once retired")
	require.NoError(t, r.Shutdown())
}

func TestUndecodableTextureKeepsSceneAndDescriptors(t *testing.T) {
	inst := gputest.NewInstance(gputest.NewAdapter("virtual gpu", true))
	r, err := renderer.New(renderer.Config{
		Instance: inst,
		Compiler: &gputest.Compiler{},
		Renderer: core.DefaultConfig().Renderer,
		Width:    1440,
		Height:   704,
		Images: func(string) (image.Image, error) {
			return nil, errors.New("decode failed")
		},
	})
	require.NoError(t, err)
	require.NoError(t, r.LoadScene(scene.Triangle()))
	current := r.Scene()
	rv, smp := r.Descriptors().Cursors()

	textured := scene.Triangle()
	textured.Meshes[0].Texture = "broken.png"
	err = r.LoadScene(textured)
	require.ErrorIs(t, err, core.ErrSceneLoad)
	assert.Same(t, current, r.Scene())
	gotRV, gotSmp := r.Descriptors().Cursors()
	assert.Equal(t, rv, gotRV)
	assert.Equal(t, smp, gotSmp)
	require.NoError(t, r.RenderFrame(view()))
	require.NoError(t, r.Shutdown())
}

func TestUnavailableBackBufferSkipsFrame(t *testing.T) {
	r, dev := newRenderer(t)
	require.NoError(t, r.LoadScene(scene.Triangle()))
	tick := r.Tick()

	sc := dev.Swapchains[0]
	for _, err := range []error{core.ErrSwapchainNotReady, core.ErrSwapchainOutOfDate} {
		sc.BeginErr = err
		require.NoError(t, r.RenderFrame(view()))
		assert.Equal(t, tick, r.Tick(), "a skipped frame submits nothing")
		assert.Zero(t, sc.Presents)
	}

	sc.BeginErr = errors.New("device lost")
	assert.Error(t, r.RenderFrame(view()))

	sc.BeginErr = nil
	require.NoError(t, r.RenderFrame(view()))
	assert.Equal(t, tick+1, r.Tick())
	require.NoError(t, r.Shutdown())
}

func TestShutdownReleasesEverything(t *testing.T) {
	r, dev := newRenderer(t)
	require.NoError(t, r.LoadScene(scene.Triangle()))
	require.NoError(t, r.RenderFrame(view()))
	require.NoError(t, r.Shutdown())

	assert.Equal(t, 0, dev.LiveResources())
	assert.True(t, dev.Released)
	assert.True(t, dev.Fences[0].Released)
	assert.True(t, dev.Swapchains[0].Released)
	for _, p := range dev.Pipelines {
		assert.True(t, p.Released, p.Label())
	}
}

func TestNewRejectsBadSetup(t *testing.T) {
	_, err := renderer.New(renderer.Config{
		Instance: gputest.NewInstance(gputest.NewAdapter("gpu", true)),
		Compiler: &gputest.Compiler{},
		Renderer: core.DefaultConfig().Renderer,
		Width:    1000,
		Height:   704,
	})
	assert.ErrorIs(t, err, core.ErrInitialization)

	_, err = renderer.New(renderer.Config{
		Instance: gputest.NewInstance(gputest.NewAdapter("gpu", false)),
		Compiler: &gputest.Compiler{},
		Renderer: core.DefaultConfig().Renderer,
		Width:    1440,
		Height:   704,
	})
	assert.ErrorIs(t, err, core.ErrInitialization)
}

func TestNewReleasesOnShaderFailure(t *testing.T) {
	inst := gputest.NewInstance(gputest.NewAdapter("gpu", true))
	_, err := renderer.New(renderer.Config{
		Instance: inst,
		Compiler: &gputest.Compiler{Err: &core.ShaderCompileError{Message: "bad"}},
		Renderer: core.DefaultConfig().Renderer,
		Width:    1440,
		Height:   704,
	})
	var sce *core.ShaderCompileError
	require.True(t, errors.As(err, &sce))
	dev := inst.AdapterList[0].Device
	assert.Equal(t, 0, dev.LiveResources())
	assert.True(t, dev.Released)
}
