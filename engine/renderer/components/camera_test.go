package components

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"

	"github.com/spaghettifunk/lumen/engine/core"
)

func TestCameraDefaults(t *testing.T) {
	c := NewCamera()
	assert.Equal(t, mgl32.Vec3{0, 100, 0}, c.Position)
	assert.InDelta(t, -1.2, c.Yaw, 1e-6)
	assert.InDelta(t, 1.0, c.Forward().Len(), 1e-5)
}

func TestCameraMovesAlongForward(t *testing.T) {
	c := NewCamera()
	c.Yaw = 0
	in := core.NewInput(nil, nil)
	in.ProcessKey(core.KEY_W, true)

	c.Update(in, 0.5)
	assert.InDelta(t, -150, c.Position.Z(), 1e-3)
	assert.InDelta(t, 100, c.Position.Y(), 1e-3)

	in.ProcessKey(core.KEY_W, false)
	in.ProcessKey(core.KEY_LEFT, true)
	c.Update(in, 0.25)
	assert.InDelta(t, 0.25, c.Yaw, 1e-6)
}

func TestCameraPitchIsClamped(t *testing.T) {
	c := NewCamera()
	in := core.NewInput(nil, nil)
	in.ProcessKey(core.KEY_UP, true)
	c.Update(in, 10)
	assert.Less(t, c.Pitch, float32(1.5708))
}

func TestProjectionMapsNearToZeroDepth(t *testing.T) {
	c := NewCamera()
	c.Position = mgl32.Vec3{}
	c.Yaw = 0
	vd := c.ViewData(1440, 704)

	near := vd.ViewProj.Mul4x1(mgl32.Vec4{0, 0, -c.Near, 1})
	far := vd.ViewProj.Mul4x1(mgl32.Vec4{0, 0, -c.Far, 1})
	assert.InDelta(t, 0, near.Z()/near.W(), 1e-4)
	assert.InDelta(t, 1, far.Z()/far.W(), 1e-4)

	// Up in the world is up on screen, which is negative Y in clip space.
	up := vd.ViewProj.Mul4x1(mgl32.Vec4{0, 1, -10, 1})
	assert.Less(t, up.Y(), float32(0))
}

func TestViewDataBytesRoundTrip(t *testing.T) {
	vd := NewCamera().ViewData(1440, 704)
	b := vd.Bytes()
	assert.Len(t, b, ViewDataSize)
	assert.Equal(t, vd, DecodeViewData(b))
}
