// Package descriptor hands out slots of the two shader visible heaps.
package descriptor

import (
	"fmt"

	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

// Config holds the heap capacities.
type Config struct {
	ResourceViews uint32
	Samplers      uint32
}

func DefaultConfig() Config {
	return Config{ResourceViews: 2048, Samplers: 128}
}

// Allocator is a bump allocator over both heaps. Ranges never overlap and
// are never freed; Reset is the only way to reclaim slots. It is not safe
// for concurrent use.
type Allocator struct {
	cfg        Config
	nextRV     uint32
	nextSample uint32
}

func New(cfg Config) *Allocator {
	return &Allocator{cfg: cfg}
}

// Allocate reserves resourceViews and samplers contiguous slots and returns
// the first slot of each range. A zero count returns the current cursor
// and reserves nothing. Exceeding a heap capacity is a programming error
// and panics.
func (a *Allocator) Allocate(resourceViews, samplers uint32) (uint32, uint32) {
	if uint64(a.nextRV)+uint64(resourceViews) > uint64(a.cfg.ResourceViews) {
		panic(fmt.Sprintf("descriptor: resource view heap exhausted: %d in use, %d requested, capacity %d",
			a.nextRV, resourceViews, a.cfg.ResourceViews))
	}
	if uint64(a.nextSample)+uint64(samplers) > uint64(a.cfg.Samplers) {
		panic(fmt.Sprintf("descriptor: sampler heap exhausted: %d in use, %d requested, capacity %d",
			a.nextSample, samplers, a.cfg.Samplers))
	}
	rv, smp := a.nextRV, a.nextSample
	a.nextRV += resourceViews
	a.nextSample += samplers
	return rv, smp
}

// Reset moves both cursors back. Every view above the new cursors becomes
// invalid.
func (a *Allocator) Reset(resourceViews, samplers uint32) {
	if resourceViews > a.cfg.ResourceViews || samplers > a.cfg.Samplers {
		panic(fmt.Sprintf("descriptor: reset to %d/%d beyond capacity %d/%d",
			resourceViews, samplers, a.cfg.ResourceViews, a.cfg.Samplers))
	}
	a.nextRV = resourceViews
	a.nextSample = samplers
}

// Cursors returns the next free slot of each heap.
func (a *Allocator) Cursors() (uint32, uint32) {
	return a.nextRV, a.nextSample
}

func (a *Allocator) Config() Config {
	return a.cfg
}

// View is one written heap slot.
type View struct {
	Kind     gpu.HeapKind
	Index    uint32
	Resource gpu.Resource
}

// CreateSRV writes a shader resource view of r at index.
func CreateSRV(dev gpu.Device, heap gpu.DescriptorHeap, index uint32, r gpu.Resource, desc gpu.ShaderResourceViewDesc) (View, error) {
	if err := dev.CreateShaderResourceView(r, desc, heap, index); err != nil {
		return View{}, err
	}
	return View{Kind: heap.Kind(), Index: index, Resource: r}, nil
}

// CreateUAV writes an unordered access view of r at index.
func CreateUAV(dev gpu.Device, heap gpu.DescriptorHeap, index uint32, r gpu.Resource, desc gpu.UnorderedAccessViewDesc) (View, error) {
	if err := dev.CreateUnorderedAccessView(r, desc, heap, index); err != nil {
		return View{}, err
	}
	return View{Kind: heap.Kind(), Index: index, Resource: r}, nil
}

func CreateSampler(dev gpu.Device, heap gpu.DescriptorHeap, index uint32, desc gpu.SamplerDesc) (View, error) {
	if err := dev.CreateSampler(desc, heap, index); err != nil {
		return View{}, err
	}
	return View{Kind: heap.Kind(), Index: index}, nil
}
