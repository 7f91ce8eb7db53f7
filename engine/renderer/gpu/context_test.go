package gpu_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu/gputest"
)

func defaultContextConfig() gpu.ContextConfig {
	return gpu.ContextConfig{
		FrameLatency:  2,
		ResourceViews: 2048,
		Samplers:      128,
		Adapter:       -1,
		Compiler:      &gputest.Compiler{},
	}
}

func TestSelectAdapterIsFirstMatch(t *testing.T) {
	software := gputest.NewAdapter("software", false)
	integrated := gputest.NewAdapter("integrated", true)
	discrete := gputest.NewAdapter("discrete", true)

	a, dev, err := gpu.SelectAdapter([]gpu.Adapter{software, integrated, discrete}, gpu.FeatureLevelBindless)
	require.NoError(t, err)
	assert.Same(t, integrated, a)
	assert.Same(t, integrated.Device, dev)
	assert.Equal(t, 1, software.Opened)
	assert.Equal(t, 1, integrated.Opened)
	assert.Equal(t, 0, discrete.Opened, "adapters after the first match are never opened")
}

func TestSelectAdapterFailsWhenNoneQualify(t *testing.T) {
	_, _, err := gpu.SelectAdapter([]gpu.Adapter{gputest.NewAdapter("a", false), gputest.NewAdapter("b", false)}, gpu.FeatureLevelBindless)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInitialization)
	assert.Contains(t, err.Error(), "a:")
	assert.Contains(t, err.Error(), "b:")

	_, _, err = gpu.SelectAdapter(nil, gpu.FeatureLevelBindless)
	assert.ErrorIs(t, err, core.ErrInitialization)
}

func TestNewContextCreatesHeapsAndFence(t *testing.T) {
	adapter := gputest.NewAdapter("gpu", true)
	ctx, err := gpu.NewContext(gputest.NewInstance(adapter), defaultContextConfig())
	require.NoError(t, err)

	assert.Equal(t, gpu.HeapKindResourceView, ctx.ResourceHeap.Kind())
	assert.Equal(t, uint32(2048), ctx.ResourceHeap.Capacity())
	assert.Equal(t, gpu.HeapKindSampler, ctx.SamplerHeap.Kind())
	assert.Equal(t, uint32(128), ctx.SamplerHeap.Capacity())
	assert.Equal(t, uint64(0), ctx.Fence.Completed())
	assert.Equal(t, []gpu.DescriptorHeap{ctx.ResourceHeap, ctx.SamplerHeap}, ctx.Heaps())

	code, err := ctx.CompileShader("src", "vs_main", "vs_6_0")
	require.NoError(t, err)
	assert.NotEmpty(t, code)

	ctx.Release()
	assert.True(t, adapter.Device.Released)
	assert.True(t, adapter.Device.Fences[0].Released)
}

func TestNewContextForcedAdapter(t *testing.T) {
	first := gputest.NewAdapter("first", true)
	second := gputest.NewAdapter("second", true)
	cfg := defaultContextConfig()
	cfg.Adapter = 1

	ctx, err := gpu.NewContext(gputest.NewInstance(first, second), cfg)
	require.NoError(t, err)
	assert.Same(t, second, ctx.Adapter)
	assert.Equal(t, 0, first.Opened)

	cfg.Adapter = 5
	_, err = gpu.NewContext(gputest.NewInstance(first, second), cfg)
	assert.ErrorIs(t, err, core.ErrInitialization)
}

func TestNewContextReleasesOnFailure(t *testing.T) {
	_, err := gpu.NewContext(gputest.NewInstance(), defaultContextConfig())
	assert.ErrorIs(t, err, core.ErrInitialization)

	dev := gputest.NewDevice()
	dev.Fail["CreateFence"] = errors.New("fence pool exhausted")
	_, err = gpu.NewContext(&singleDeviceInstance{dev: dev}, defaultContextConfig())
	var rce *core.ResourceCreationError
	require.ErrorAs(t, err, &rce)
	assert.True(t, dev.Released)
	assert.True(t, dev.Heaps[0].Released)
	assert.True(t, dev.Heaps[1].Released)
}

type singleDeviceInstance struct{ dev *gputest.Device }

func (i *singleDeviceInstance) Adapters() ([]gpu.Adapter, error) {
	return []gpu.Adapter{&fixedAdapter{dev: i.dev}}, nil
}
func (i *singleDeviceInstance) Surface() gpu.Surface { return &gputest.Surface{Width: 16, Height: 16} }
func (i *singleDeviceInstance) Release()             {}

type fixedAdapter struct{ dev *gputest.Device }

func (a *fixedAdapter) Info() gpu.AdapterInfo { return gpu.AdapterInfo{Name: "fixed"} }
func (a *fixedAdapter) Open(gpu.FeatureLevel) (gpu.Device, error) {
	return a.dev, nil
}

func TestNewContextWithoutCompiler(t *testing.T) {
	cfg := defaultContextConfig()
	cfg.Compiler = nil
	ctx, err := gpu.NewContext(gputest.NewInstance(gputest.NewAdapter("gpu", true)), cfg)
	require.NoError(t, err)
	_, err = ctx.CompileShader("", "main", "cs_6_0")
	var sce *core.ShaderCompileError
	assert.ErrorAs(t, err, &sce)
}
