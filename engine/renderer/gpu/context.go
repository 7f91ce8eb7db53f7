package gpu

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/lumen/engine/core"
)

type ContextConfig struct {
	FrameLatency  uint32
	ResourceViews uint32
	Samplers      uint32
	FeatureLevel  FeatureLevel
	// Adapter forces the adapter at this enumeration index. Negative means
	// first match.
	Adapter  int
	Compiler ShaderCompiler
}

// Context owns the device, its queue, the two shader visible heaps and the
// frame fence.
type Context struct {
	Adapter      Adapter
	Device       Device
	Queue        Queue
	ResourceHeap DescriptorHeap
	SamplerHeap  DescriptorHeap
	Fence        Fence
	FrameLatency uint32

	compiler ShaderCompiler
}

// SelectAdapter opens a device on the first adapter, in enumeration order,
// that supports level. Later adapters are never tried once one succeeds.
func SelectAdapter(adapters []Adapter, level FeatureLevel) (Adapter, Device, error) {
	var errs []error
	for i, a := range adapters {
		dev, err := a.Open(level)
		if err != nil {
			core.LogDebug("adapter %d (%s) rejected: %v", i, a.Info().Name, err)
			errs = append(errs, fmt.Errorf("%s: %w", a.Info().Name, err))
			continue
		}
		core.LogInfo("selected adapter %d: %s", i, a.Info().Name)
		return a, dev, nil
	}
	if len(adapters) == 0 {
		return nil, nil, fmt.Errorf("%w: no adapters found", core.ErrInitialization)
	}
	return nil, nil, fmt.Errorf("%w: %w", core.ErrInitialization, errors.Join(errs...))
}

func NewContext(instance Instance, cfg ContextConfig) (*Context, error) {
	if cfg.FrameLatency == 0 {
		return nil, fmt.Errorf("%w: frame latency must be at least 1", core.ErrInitialization)
	}
	adapters, err := instance.Adapters()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrInitialization, err)
	}
	if cfg.Adapter >= 0 {
		if cfg.Adapter >= len(adapters) {
			return nil, fmt.Errorf("%w: adapter %d not found (%d available)", core.ErrInitialization, cfg.Adapter, len(adapters))
		}
		adapters = adapters[cfg.Adapter : cfg.Adapter+1]
	}
	level := cfg.FeatureLevel
	if level == 0 {
		level = FeatureLevelBindless
	}
	adapter, device, err := SelectAdapter(adapters, level)
	if err != nil {
		return nil, err
	}

	c := &Context{
		Adapter:      adapter,
		Device:       device,
		Queue:        device.Queue(),
		FrameLatency: cfg.FrameLatency,
		compiler:     cfg.Compiler,
	}
	if c.ResourceHeap, err = device.CreateDescriptorHeap(DescriptorHeapDesc{Kind: HeapKindResourceView, Capacity: cfg.ResourceViews}); err != nil {
		c.Release()
		return nil, err
	}
	if c.SamplerHeap, err = device.CreateDescriptorHeap(DescriptorHeapDesc{Kind: HeapKindSampler, Capacity: cfg.Samplers}); err != nil {
		c.Release()
		return nil, err
	}
	if c.Fence, err = device.CreateFence(0); err != nil {
		c.Release()
		return nil, err
	}
	return c, nil
}

// CompileShader compiles source with the configured compiler.
func (c *Context) CompileShader(source, entryPoint, profile string) (Bytecode, error) {
	if c.compiler == nil {
		return nil, &core.ShaderCompileError{Message: "no shader compiler configured"}
	}
	return c.compiler.Compile(source, entryPoint, profile)
}

// Heaps returns the shader visible heaps in binding order.
func (c *Context) Heaps() []DescriptorHeap {
	return []DescriptorHeap{c.ResourceHeap, c.SamplerHeap}
}

// Release destroys the context. The caller must have drained the queue.
func (c *Context) Release() {
	if c.Fence != nil {
		c.Fence.Release()
		c.Fence = nil
	}
	if c.SamplerHeap != nil {
		c.SamplerHeap.Release()
		c.SamplerHeap = nil
	}
	if c.ResourceHeap != nil {
		c.ResourceHeap.Release()
		c.ResourceHeap = nil
	}
	if c.Device != nil {
		c.Device.Release()
		c.Device = nil
	}
}
