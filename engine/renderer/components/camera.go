package components

import (
	gomath "math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/lantern/engine/math"
)

// 89 degrees
const pitchLimit = float32(1.55334306)

// Camera is a free-fly camera. Position and rotation setters mark the view
// matrix dirty so it is rebuilt on the next View call.
type Camera struct {
	Position      mgl32.Vec3
	EulerRotation mgl32.Vec3 // pitch, yaw, roll
	FovY          float32    // radians
	Near, Far     float32

	dirty bool
	view  mgl32.Mat4
}

func NewCamera() *Camera {
	c := &Camera{}
	c.Reset()
	return c
}

func (c *Camera) Reset() {
	c.Position = mgl32.Vec3{}
	c.EulerRotation = mgl32.Vec3{}
	c.FovY = mgl32.DegToRad(70)
	c.Near = 0.1
	c.Far = 10000
	c.view = mgl32.Ident4()
	c.dirty = false
}

func (c *Camera) SetPosition(position mgl32.Vec3) {
	c.Position = position
	c.dirty = true
}

func (c *Camera) SetEulerRotation(rotation mgl32.Vec3) {
	c.EulerRotation = rotation
	c.dirty = true
}

// View returns the world to camera transform.
func (c *Camera) View() mgl32.Mat4 {
	if c.dirty {
		rotation := mgl32.HomogRotate3DY(c.EulerRotation.Y()).Mul4(mgl32.HomogRotate3DX(c.EulerRotation.X()))
		translation := mgl32.Translate3D(c.Position.X(), c.Position.Y(), c.Position.Z())
		c.view = translation.Mul4(rotation).Inv()
		c.dirty = false
	}
	return c.view
}

// Projection is a right handed perspective with Vulkan clip space: Y points
// down and depth is reversed, mapping Near to 1 and Far to 0.
func (c *Camera) Projection(aspect float32) mgl32.Mat4 {
	f := float32(1 / gomath.Tan(float64(c.FovY)/2))
	a := c.Near / (c.Far - c.Near)
	b := c.Near * c.Far / (c.Far - c.Near)
	return mgl32.Mat4{
		f / aspect, 0, 0, 0,
		0, -f, 0, 0,
		0, 0, a, -1,
		0, 0, b, 0,
	}
}

func (c *Camera) Forward() mgl32.Vec3 {
	v := c.View().Inv()
	return v.Mul4x1(mgl32.Vec4{0, 0, -1, 0}).Vec3().Normalize()
}

func (c *Camera) Right() mgl32.Vec3 {
	v := c.View().Inv()
	return v.Mul4x1(mgl32.Vec4{1, 0, 0, 0}).Vec3().Normalize()
}

func (c *Camera) move(direction mgl32.Vec3, amount float32) {
	c.Position = c.Position.Add(direction.Mul(amount))
	c.dirty = true
}

func (c *Camera) MoveForward(amount float32)  { c.move(c.Forward(), amount) }
func (c *Camera) MoveBackward(amount float32) { c.move(c.Forward(), -amount) }
func (c *Camera) MoveLeft(amount float32)     { c.move(c.Right(), -amount) }
func (c *Camera) MoveRight(amount float32)    { c.move(c.Right(), amount) }
func (c *Camera) MoveUp(amount float32)       { c.move(mgl32.Vec3{0, 1, 0}, amount) }
func (c *Camera) MoveDown(amount float32)     { c.move(mgl32.Vec3{0, 1, 0}, -amount) }

func (c *Camera) Yaw(amount float32) {
	c.EulerRotation[1] += amount
	c.dirty = true
}

// Pitch rotates around the camera X axis, clamped short of straight up or
// down to avoid gimbal lock.
func (c *Camera) Pitch(amount float32) {
	c.EulerRotation[0] = math.Clamp(c.EulerRotation[0]+amount, -pitchLimit, pitchLimit)
	c.dirty = true
}
