package gpu_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu/gputest"
)

func TestSharedFreesOnLastRelease(t *testing.T) {
	dev := gputest.NewDevice()
	r, err := dev.CreateBuffer(gpu.HeapDefault, gpu.BufferDesc{Size: 64, Label: "vertices"}, gpu.StateCopyDest)
	require.NoError(t, err)

	scene := gpu.NewShared(r)
	lighting := scene.Clone()
	assert.Equal(t, int32(2), scene.Owners())
	assert.Same(t, r, lighting.Resource())

	scene.Release()
	assert.False(t, r.(*gputest.Resource).Released)
	lighting.Release()
	assert.True(t, r.(*gputest.Resource).Released)
}

func TestSharedDoubleReleasePanics(t *testing.T) {
	dev := gputest.NewDevice()
	r, err := dev.CreateBuffer(gpu.HeapDefault, gpu.BufferDesc{Size: 4}, gpu.StateCommon)
	require.NoError(t, err)
	s := gpu.NewShared(r)
	other := s.Clone()
	s.Release()
	assert.Panics(t, func() { s.Release() })
	assert.Panics(t, func() { s.Clone() })
	other.Release()
}
