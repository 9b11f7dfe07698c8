package engine

import (
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/spaghettifunk/lantern/engine/renderer/components"
)

const (
	moveSpeed = float32(5.0)
	turnSpeed = float32(1.0)
)

// keyState is the part of the platform the camera controls read.
type keyState interface {
	KeyDown(k glfw.Key) bool
}

// updateCamera applies the fly controls held down during the last delta
// seconds.
func updateCamera(cam *components.Camera, keys keyState, delta float32) {
	if keys.KeyDown(glfw.KeyA) || keys.KeyDown(glfw.KeyLeft) {
		cam.Yaw(turnSpeed * delta)
	}
	if keys.KeyDown(glfw.KeyD) || keys.KeyDown(glfw.KeyRight) {
		cam.Yaw(-turnSpeed * delta)
	}
	if keys.KeyDown(glfw.KeyUp) {
		cam.Pitch(turnSpeed * delta)
	}
	if keys.KeyDown(glfw.KeyDown) {
		cam.Pitch(-turnSpeed * delta)
	}
	if keys.KeyDown(glfw.KeyW) {
		cam.MoveForward(moveSpeed * delta)
	}
	if keys.KeyDown(glfw.KeyS) {
		cam.MoveBackward(moveSpeed * delta)
	}
	if keys.KeyDown(glfw.KeyQ) {
		cam.MoveLeft(moveSpeed * delta)
	}
	if keys.KeyDown(glfw.KeyE) {
		cam.MoveRight(moveSpeed * delta)
	}
	if keys.KeyDown(glfw.KeySpace) {
		cam.MoveUp(moveSpeed * delta)
	}
	if keys.KeyDown(glfw.KeyX) {
		cam.MoveDown(moveSpeed * delta)
	}
}
