package components

import (
	gomath "math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func near(a, b float32) bool {
	return gomath.Abs(float64(a-b)) < 1e-4
}

func TestProjectionReversedDepth(t *testing.T) {
	c := NewCamera()
	proj := c.Projection(16.0 / 9.0)

	for _, tc := range []struct {
		z, depth float32
	}{
		{-c.Near, 1},
		{-c.Far, 0},
	} {
		clip := proj.Mul4x1(mgl32.Vec4{0, 0, tc.z, 1})
		if got := clip.Z() / clip.W(); !near(got, tc.depth) {
			t.Fatalf("depth at z=%v: got %v, want %v", tc.z, got, tc.depth)
		}
	}

	// Y is flipped for Vulkan clip space
	clip := proj.Mul4x1(mgl32.Vec4{0, 1, -1, 1})
	if clip.Y() >= 0 {
		t.Fatalf("up projected to %v, want negative clip y", clip.Y())
	}
}

func TestViewFollowsPosition(t *testing.T) {
	c := NewCamera()
	c.SetPosition(mgl32.Vec3{0, 0, 5})
	p := c.View().Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	if !near(p.Z(), -5) {
		t.Fatalf("origin in view space: got %v, want z=-5", p)
	}

	c.MoveForward(2)
	if !near(c.Position.Z(), 3) {
		t.Fatalf("after MoveForward: got %v, want z=3", c.Position)
	}
}

func TestPitchClamped(t *testing.T) {
	c := NewCamera()
	c.Pitch(10)
	if c.EulerRotation.X() != pitchLimit {
		t.Fatalf("got %v, want %v", c.EulerRotation.X(), pitchLimit)
	}
	c.Pitch(-20)
	if c.EulerRotation.X() != -pitchLimit {
		t.Fatalf("got %v, want %v", c.EulerRotation.X(), -pitchLimit)
	}
}
