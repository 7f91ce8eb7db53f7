package components

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/lumen/engine/core"
)

// Camera is a yaw/pitch fly camera. The view direction is the yaw rotation
// around Y applied after the pitch rotation around X to -Z.
type Camera struct {
	Position mgl32.Vec3
	Yaw      float32
	Pitch    float32

	FovY float32
	Near float32
	Far  float32

	MoveSpeed     float32
	RotationSpeed float32
}

func NewCamera() *Camera {
	c := &Camera{}
	c.Reset()
	return c
}

func (c *Camera) Reset() {
	c.Position = mgl32.Vec3{0, 100, 0}
	c.Yaw = -1.2
	c.Pitch = 0
	c.FovY = mgl32.DegToRad(60)
	c.Near = 1
	c.Far = 8192
	c.MoveSpeed = 300
	c.RotationSpeed = 1
}

func (c *Camera) rotation() mgl32.Quat {
	yaw := mgl32.QuatRotate(c.Yaw, mgl32.Vec3{0, 1, 0})
	pitch := mgl32.QuatRotate(c.Pitch, mgl32.Vec3{1, 0, 0})
	return yaw.Mul(pitch)
}

// Forward is the unit view direction.
func (c *Camera) Forward() mgl32.Vec3 {
	return c.rotation().Rotate(mgl32.Vec3{0, 0, -1})
}

// Update applies the held actions for dt seconds.
func (c *Camera) Update(input *core.Input, dt float32) {
	if input.Held(core.ActionYawLeft) {
		c.Yaw += c.RotationSpeed * dt
	}
	if input.Held(core.ActionYawRight) {
		c.Yaw -= c.RotationSpeed * dt
	}
	if input.Held(core.ActionPitchUp) {
		c.Pitch += c.RotationSpeed * dt
	}
	if input.Held(core.ActionPitchDown) {
		c.Pitch -= c.RotationSpeed * dt
	}
	limit := float32(math.Pi/2 - 0.01)
	c.Pitch = mgl32.Clamp(c.Pitch, -limit, limit)

	forward := c.Forward()
	if input.Held(core.ActionMoveForward) {
		c.Position = c.Position.Add(forward.Mul(c.MoveSpeed * dt))
	}
	if input.Held(core.ActionMoveBackward) {
		c.Position = c.Position.Sub(forward.Mul(c.MoveSpeed * dt))
	}
}

func (c *Camera) View() mgl32.Mat4 {
	return mgl32.LookAtV(c.Position, c.Position.Add(c.Forward()), mgl32.Vec3{0, 1, 0})
}

// clipCorrection maps OpenGL clip space (Y up, Z in [-1, 1]) to Vulkan
// clip space (Y down, Z in [0, 1]).
var clipCorrection = mgl32.Mat4{
	1, 0, 0, 0,
	0, -1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

func (c *Camera) Projection(width, height uint32) mgl32.Mat4 {
	aspect := float32(width) / float32(height)
	return clipCorrection.Mul4(mgl32.Perspective(c.FovY, aspect, c.Near, c.Far))
}

// ViewData returns the per-frame constants of the camera.
func (c *Camera) ViewData(width, height uint32) ViewData {
	view := c.View()
	proj := c.Projection(width, height)
	return ViewData{
		View:     view,
		Proj:     proj,
		ViewProj: proj.Mul4(view),
		Position: c.Position.Vec4(1),
		Screen:   mgl32.Vec4{float32(width), float32(height), 1 / float32(width), 1 / float32(height)},
	}
}

// ViewDataSize is the size of one constant buffer slot.
const ViewDataSize = 256

// ViewData is the constant buffer read by the geometry pass.
type ViewData struct {
	View     mgl32.Mat4
	Proj     mgl32.Mat4
	ViewProj mgl32.Mat4
	Position mgl32.Vec4
	Screen   mgl32.Vec4
}

// Bytes encodes v in the shader layout, padded to ViewDataSize.
func (v ViewData) Bytes() []byte {
	buf := make([]byte, ViewDataSize)
	off := 0
	put := func(fs ...float32) {
		for _, f := range fs {
			binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(f))
			off += 4
		}
	}
	put(v.View[:]...)
	put(v.Proj[:]...)
	put(v.ViewProj[:]...)
	put(v.Position[:]...)
	put(v.Screen[:]...)
	return buf
}

// DecodeViewData is the inverse of ViewData.Bytes.
func DecodeViewData(b []byte) ViewData {
	var v ViewData
	off := 0
	get := func(fs []float32) {
		for i := range fs {
			fs[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
			off += 4
		}
	}
	get(v.View[:])
	get(v.Proj[:])
	get(v.ViewProj[:])
	get(v.Position[:])
	get(v.Screen[:])
	return v
}
