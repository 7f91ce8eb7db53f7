package math

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClamp(t *testing.T) {
	assert.Equal(t, 5, Clamp(7, 0, 5))
	assert.Equal(t, 0, Clamp(-1, 0, 5))
	assert.InDelta(t, 0.5, Clamp(float32(0.5), 0, 1), 1e-9)
}

func TestDivCeil(t *testing.T) {
	assert.Equal(t, uint32(90), DivCeil(uint32(1440), 16))
	assert.Equal(t, uint32(91), DivCeil(uint32(1441), 16))
	assert.Equal(t, uint32(1), DivCeil(uint32(1), 16))
	assert.Equal(t, uint32(0), DivCeil(uint32(0), 16))
}

func TestAlignUp(t *testing.T) {
	assert.Equal(t, uint64(256), AlignUp(uint64(1), 256))
	assert.Equal(t, uint64(256), AlignUp(uint64(256), 256))
	assert.Equal(t, uint64(512), AlignUp(uint64(257), 256))
	assert.Equal(t, uint64(7), AlignUp(uint64(7), 0))
}
