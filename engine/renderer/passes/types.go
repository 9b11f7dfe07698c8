package passes

import (
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

// MaxLights is the size of the light array in the scene uniform block.
const MaxLights = 8

// ComputePushConstants is the payload of every background effect.
type ComputePushConstants struct {
	Data [4]mgl32.Vec4
}

// MeshPushConstants places one draw: its world transform and where the
// shader fetches vertices from.
type MeshPushConstants struct {
	World        mgl32.Mat4
	VertexBuffer uint64
}

type Light struct {
	Position mgl32.Vec4
	Color    mgl32.Vec4
}

// SceneData is the per frame uniform block. Every member is 16 byte
// aligned so the Go layout matches std140.
type SceneData struct {
	View         mgl32.Mat4
	Proj         mgl32.Mat4
	ViewProj     mgl32.Mat4
	CameraPos    mgl32.Vec4
	AmbientColor mgl32.Vec4
	// HeightScale, ParallaxLayers, ParallaxMode, LightIntensity
	Parallax   mgl32.Vec4
	LightCount [4]uint32
	Lights     [MaxLights]Light
}

func asBytes[T any](v *T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), unsafe.Sizeof(*v))
}
