package passes_test

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/descriptor"
	"github.com/spaghettifunk/lumen/engine/renderer/frame"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu/gputest"
	"github.com/spaghettifunk/lumen/engine/renderer/passes"
	"github.com/spaghettifunk/lumen/engine/renderer/shader"
	"github.com/spaghettifunk/lumen/engine/renderer/upload"
	"github.com/spaghettifunk/lumen/engine/scene"
)

const (
	width  = 1440
	height = 704
)

type rig struct {
	dev   *gputest.Device
	heap  gpu.DescriptorHeap
	alloc *descriptor.Allocator
	lib   *shader.Library
}

func newRig(t *testing.T, compiler *gputest.Compiler) *rig {
	t.Helper()
	dev := gputest.NewDevice()
	heap, err := dev.CreateDescriptorHeap(gpu.DescriptorHeapDesc{Kind: gpu.HeapKindResourceView, Capacity: 2048})
	require.NoError(t, err)
	return &rig{dev: dev, heap: heap, alloc: descriptor.New(descriptor.DefaultConfig()), lib: shader.NewBuiltinLibrary(compiler)}
}

func (r *rig) setConfig(w, h uint32) passes.SetConfig {
	return passes.SetConfig{
		Device: r.dev, Heap: r.heap, Descriptors: r.alloc, Shaders: r.lib,
		Width: w, Height: h, BackBufferFormat: gpu.FormatBGRA8UnormSRGB,
	}
}

func (r *rig) list(t *testing.T) *gputest.CommandList {
	t.Helper()
	alloc, err := r.dev.CreateCommandAllocator()
	require.NoError(t, err)
	cl, err := r.dev.CreateCommandList(alloc)
	require.NoError(t, err)
	return cl.(*gputest.CommandList)
}

func TestNewSetBuildsEveryPass(t *testing.T) {
	r := newRig(t, &gputest.Compiler{})
	set, err := passes.NewSet(r.setConfig(width, height))
	require.NoError(t, err)
	defer set.Release()

	require.Len(t, r.dev.Pipelines, 3)
	geo := r.dev.Pipelines[0].Graphics
	require.NotNil(t, geo)
	assert.Equal(t, []gpu.Format{passes.VisibilityFormat}, geo.RTVFormats)
	assert.Equal(t, passes.DepthFormat, geo.DSVFormat)
	assert.Equal(t, gpu.DepthState{Test: true, Write: true, Compare: gpu.CompareLess}, geo.Depth)
	assert.Equal(t, "vs_main", geo.VS.EntryPoint)
	assert.Equal(t, "ps_main", geo.PS.EntryPoint)
	assert.True(t, r.dev.Pipelines[1].Compute())
	assert.Equal(t, []gpu.Format{gpu.FormatBGRA8UnormSRGB}, r.dev.Pipelines[2].Graphics.RTVFormats)

	assert.Equal(t, uint32(4), gpu.ResolveLayout(passes.GeometrySignature()).PushWords)
	assert.Equal(t, uint32(6), gpu.ResolveLayout(passes.LightingSignature()).PushWords)
	assert.Equal(t, uint32(1), gpu.ResolveLayout(passes.PostProcessSignature()).PushWords)

	heap := r.heap.(*gputest.DescriptorHeap)
	tg := set.Targets
	assert.Equal(t, "SRV", heap.Slots[tg.VisibilitySRV].Kind)
	assert.Equal(t, "UAV", heap.Slots[tg.LightingUAV].Kind)
	assert.Equal(t, "SRV", heap.Slots[tg.LightingSRV].Kind)
	assert.Equal(t, passes.VisibilityState, r.dev.ResourceByLabel("visibility buffer").Initial)
	assert.Equal(t, passes.LightingState, r.dev.ResourceByLabel("lighting buffer").Initial)
	assert.Equal(t, float32(1), r.dev.ResourceByLabel("depth buffer").Clear.Depth)
}

func TestShaderFailureAbortsPass(t *testing.T) {
	r := newRig(t, &gputest.Compiler{Err: &core.ShaderCompileError{Message: "error: expected ';'"}})
	_, err := passes.NewGeometryPass(passes.GeometryConfig{Device: r.dev, Shaders: r.lib})
	require.Error(t, err)

	var sce *core.ShaderCompileError
	require.True(t, errors.As(err, &sce))
	assert.Equal(t, passes.GeometryVS.Name, sce.Name)
	assert.Equal(t, "error: expected ';'", sce.Message)
	require.Len(t, r.dev.Signatures, 1)
	assert.True(t, r.dev.Signatures[0].Released, "the signature created before the failure is released")
	assert.Empty(t, r.dev.Pipelines)
}

func TestNewSetFailureReleasesEverything(t *testing.T) {
	r := newRig(t, &gputest.Compiler{})
	r.dev.Fail["CreateComputePipeline"] = errors.New("device lost")

	_, err := passes.NewSet(r.setConfig(width, height))
	var rce *core.ResourceCreationError
	require.True(t, errors.As(err, &rce))
	assert.Equal(t, 0, r.dev.LiveResources())
	for _, p := range r.dev.Pipelines {
		assert.True(t, p.Released, p.Label())
	}
	for _, s := range r.dev.Signatures {
		assert.True(t, s.Released)
	}
}

func TestNewSetRejectsUnalignedResolution(t *testing.T) {
	r := newRig(t, &gputest.Compiler{})
	_, err := passes.NewSet(r.setConfig(1000, 704))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lighting tile")
	assert.Empty(t, r.dev.Resources)

	assert.NoError(t, passes.ValidateTileAlignment(1920, 1088))
	assert.Error(t, passes.ValidateTileAlignment(1920, 1080))
}

func TestDispatchSize(t *testing.T) {
	x, y := passes.DispatchSize(1440, 704)
	assert.Equal(t, uint32(90), x)
	assert.Equal(t, uint32(44), y)
	x, y = passes.DispatchSize(17, 1)
	assert.Equal(t, uint32(2), x)
	assert.Equal(t, uint32(1), y)
}

func TestFirstFrame(t *testing.T) {
	r := newRig(t, &gputest.Compiler{})
	set, err := passes.NewSet(r.setConfig(width, height))
	require.NoError(t, err)
	defer set.Release()

	loader := upload.NewLoader(upload.Config{
		Device: r.dev, Heap: r.heap, Descriptors: r.alloc,
		Releases: frame.NewReleaseQueue(), Retire: func() uint64 { return 0 },
	})
	setup := r.list(t)
	sc, staging, err := loader.Load(scene.Triangle(), setup)
	require.NoError(t, err)
	defer staging.Release()
	require.NoError(t, setup.Close())
	require.NoError(t, r.dev.Queue().Submit(setup))

	swapchain, err := r.dev.CreateSwapchain(&gputest.Surface{Width: width, Height: height},
		gpu.SwapchainDesc{BufferCount: 2, Width: width, Height: height, Format: gpu.FormatBGRA8UnormSRGB})
	require.NoError(t, err)
	index, err := swapchain.BeginFrame()
	require.NoError(t, err)
	backBuffer, rtv := swapchain.RenderTarget(index)
	ring, err := frame.NewViewRing(r.dev, 2, 256)
	require.NoError(t, err)
	defer ring.Release()

	cl := r.list(t)
	set.Record(cl, passes.FrameInputs{
		Scene: sc, ViewData: ring.Resource(), ViewOffset: ring.Offset(0),
		BackBuffer: backBuffer, RTV: rtv,
	})
	require.NoError(t, cl.Close())

	draws := cl.Find(gputest.OpDrawIndexed)
	require.Len(t, draws, 1)
	assert.Equal(t, gputest.DrawArgs{IndexCount: 3, InstanceCount: 1}, draws[0].Draw)

	var drawRecord, drawID []uint32
	for _, c := range cl.Find(gputest.OpSetRootConstants) {
		if c.Compute {
			continue
		}
		switch c.Param {
		case 2:
			drawRecord = c.Values
		case 3:
			drawID = c.Values
		}
	}
	assert.Equal(t, []uint32{0, 0}, drawRecord, "base_index and base_vertex of the only geometry")
	assert.Equal(t, []uint32{0}, drawID)

	dispatches := cl.Find(gputest.OpDispatch)
	require.Len(t, dispatches, 1)
	assert.Equal(t, [3]uint32{90, 44, 1}, dispatches[0].Groups)

	vis := set.Targets.Visibility
	lit := set.Targets.Lighting
	visReadable := cl.IndexOf(func(c gputest.Command) bool {
		return c.Op == gputest.OpBarrier && c.Barriers[0].Resource == vis && c.Barriers[0].After == gpu.StateNonPixelShaderResource
	})
	dispatch := cl.IndexOf(func(c gputest.Command) bool { return c.Op == gputest.OpDispatch })
	require.NotEqual(t, -1, visReadable)
	assert.Less(t, visReadable, dispatch, "visibility becomes readable before lighting runs")

	uav := cl.IndexOf(func(c gputest.Command) bool {
		return c.Op == gputest.OpBarrier && c.Barriers[0].Type == gpu.BarrierUAV
	})
	assert.Greater(t, uav, dispatch)

	type step struct {
		r             gpu.Resource
		before, after gpu.ResourceState
	}
	var got []step
	for _, b := range cl.Transitions() {
		got = append(got, step{b.Resource, b.Before, b.After})
	}
	assert.Equal(t, []step{
		{vis, gpu.StateNonPixelShaderResource, gpu.StateRenderTarget},
		{vis, gpu.StateRenderTarget, gpu.StateNonPixelShaderResource},
		{lit, gpu.StatePixelShaderResource, gpu.StateUnorderedAccess},
		{lit, gpu.StateUnorderedAccess, gpu.StatePixelShaderResource},
		{backBuffer, gpu.StatePresent, gpu.StateRenderTarget},
		{backBuffer, gpu.StateRenderTarget, gpu.StatePresent},
	}, got)

	full := cl.Find(gputest.OpDraw)
	require.Len(t, full, 1)
	assert.Equal(t, gputest.DrawArgs{VertexCount: 3, InstanceCount: 1}, full[0].Draw)

	cbvs := cl.Find(gputest.OpSetRootCBV)
	require.Len(t, cbvs, 1)
	assert.Same(t, ring.Resource(), cbvs[0].Resource)
}

func TestGeometryWithoutSceneOnlyClears(t *testing.T) {
	r := newRig(t, &gputest.Compiler{})
	set, err := passes.NewSet(r.setConfig(64, 64))
	require.NoError(t, err)
	defer set.Release()
	ring, err := frame.NewViewRing(r.dev, 1, 256)
	require.NoError(t, err)
	defer ring.Release()

	cl := r.list(t)
	set.Geometry.Record(cl, passes.GeometryInputs{Targets: set.Targets, ViewData: ring.Resource()})
	require.NoError(t, cl.Close())

	assert.Empty(t, cl.Find(gputest.OpDrawIndexed))
	begin := cl.Find(gputest.OpBeginRenderPass)
	require.Len(t, begin, 1)
	assert.Equal(t, gpu.LoadOpClear, begin[0].RenderPass.Colors[0].Load)
	assert.Equal(t, float32(1), begin[0].RenderPass.Depth.ClearDepth)
	assert.Len(t, cl.Transitions(), 2)
}

func TestBuiltinShadersCompileToSPIRV(t *testing.T) {
	lib := shader.NewBuiltinLibrary(shader.NewCompiler(false))
	for _, key := range passes.Shaders() {
		t.Run(key.String(), func(t *testing.T) {
			code, err := lib.Resolve(key)
			require.NoError(t, err)
			require.GreaterOrEqual(t, len(code), 20, "a module has at least a header")
			assert.Zero(t, len(code)%4, "SPIR-V is a stream of words")
			assert.Equal(t, uint32(0x07230203), binary.LittleEndian.Uint32(code))
		})
	}
	assert.Empty(t, lib.Check(passes.Shaders()))
}
