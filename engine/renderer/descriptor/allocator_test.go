package descriptor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu/gputest"
)

type span struct{ base, count uint32 }

func overlaps(a, b span) bool {
	if a.count == 0 || b.count == 0 {
		return false
	}
	return a.base < b.base+b.count && b.base < a.base+a.count
}

func TestAllocationsNeverOverlap(t *testing.T) {
	a := New(DefaultConfig())
	requests := []struct{ rv, smp uint32 }{
		{3, 0}, {1, 1}, {0, 2}, {17, 0}, {2, 5}, {100, 0}, {0, 0}, {1, 1},
	}
	var rvs, smps []span
	for _, r := range requests {
		rv, smp := a.Allocate(r.rv, r.smp)
		rvs = append(rvs, span{rv, r.rv})
		smps = append(smps, span{smp, r.smp})
	}
	for i := range rvs {
		for j := i + 1; j < len(rvs); j++ {
			assert.False(t, overlaps(rvs[i], rvs[j]), "resource view ranges %d and %d overlap", i, j)
			assert.False(t, overlaps(smps[i], smps[j]), "sampler ranges %d and %d overlap", i, j)
		}
	}
	rv, smp := a.Cursors()
	assert.Equal(t, uint32(124), rv)
	assert.Equal(t, uint32(9), smp)
}

func TestAllocateZeroDoesNotAdvance(t *testing.T) {
	a := New(DefaultConfig())
	a.Allocate(5, 2)
	rv, smp := a.Allocate(0, 0)
	assert.Equal(t, uint32(5), rv)
	assert.Equal(t, uint32(2), smp)
	rv, smp = a.Cursors()
	assert.Equal(t, uint32(5), rv)
	assert.Equal(t, uint32(2), smp)
}

func TestAllocateUpToCapacity(t *testing.T) {
	a := New(Config{ResourceViews: 4, Samplers: 2})
	rv, smp := a.Allocate(4, 2)
	assert.Equal(t, uint32(0), rv)
	assert.Equal(t, uint32(0), smp)

	// A full heap still hands out empty ranges.
	assert.NotPanics(t, func() { a.Allocate(0, 0) })
}

func TestAllocateOverflowPanics(t *testing.T) {
	a := New(Config{ResourceViews: 4, Samplers: 2})
	a.Allocate(3, 0)
	assert.PanicsWithValue(t,
		"descriptor: resource view heap exhausted: 3 in use, 2 requested, capacity 4",
		func() { a.Allocate(2, 0) })

	b := New(Config{ResourceViews: 4, Samplers: 2})
	assert.Panics(t, func() { b.Allocate(0, 3) })

	c := New(Config{ResourceViews: 4, Samplers: 2})
	assert.Panics(t, func() { c.Allocate(^uint32(0), 0) })
}

func TestDefaultCapacitiesExhaust(t *testing.T) {
	a := New(DefaultConfig())
	for i := 0; i < 2048; i++ {
		a.Allocate(1, 0)
	}
	for i := 0; i < 128; i++ {
		a.Allocate(0, 1)
	}
	assert.Panics(t, func() { a.Allocate(1, 0) })
	assert.Panics(t, func() { a.Allocate(0, 1) })
}

func TestReset(t *testing.T) {
	a := New(DefaultConfig())
	a.Allocate(10, 1)
	markRV, markSmp := a.Cursors()
	a.Allocate(20, 3)

	a.Reset(markRV, markSmp)
	rv, smp := a.Allocate(2, 1)
	assert.Equal(t, markRV, rv)
	assert.Equal(t, markSmp, smp)

	assert.Panics(t, func() { a.Reset(4096, 0) })
}

func TestCreateViews(t *testing.T) {
	dev := gputest.NewDevice()
	rvHeap, err := dev.CreateDescriptorHeap(gpu.DescriptorHeapDesc{Kind: gpu.HeapKindResourceView, Capacity: 8})
	require.NoError(t, err)
	smpHeap, err := dev.CreateDescriptorHeap(gpu.DescriptorHeapDesc{Kind: gpu.HeapKindSampler, Capacity: 2})
	require.NoError(t, err)
	buf, err := dev.CreateBuffer(gpu.HeapDefault, gpu.BufferDesc{Size: 64}, gpu.StateCommon)
	require.NoError(t, err)

	v, err := CreateSRV(dev, rvHeap, 3, buf, gpu.BufferSRV(16, 4))
	require.NoError(t, err)
	assert.Equal(t, View{Kind: gpu.HeapKindResourceView, Index: 3, Resource: buf}, v)
	assert.Equal(t, "SRV", rvHeap.(*gputest.DescriptorHeap).Slots[3].Kind)

	_, err = CreateUAV(dev, rvHeap, 8, buf, gpu.UnorderedAccessViewDesc{})
	assert.Error(t, err)

	s, err := CreateSampler(dev, smpHeap, 1, gpu.SamplerDesc{Filter: gpu.FilterLinear})
	require.NoError(t, err)
	assert.Equal(t, gpu.HeapKindSampler, s.Kind)
}
