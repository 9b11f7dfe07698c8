package assets

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/lantern/engine/renderer/upload"
)

// Sphere builds a UV sphere of the given radius. rings counts latitude
// bands, segments longitude bands.
func Sphere(radius float32, rings, segments uint32) ([]upload.Vertex, []uint32) {
	rings = max(rings, 2)
	segments = max(segments, 3)

	vertices := make([]upload.Vertex, 0, (rings+1)*(segments+1))
	for r := uint32(0); r <= rings; r++ {
		v := float32(r) / float32(rings)
		theta := float64(v) * math.Pi
		for s := uint32(0); s <= segments; s++ {
			u := float32(s) / float32(segments)
			phi := float64(u) * 2 * math.Pi
			n := mgl32.Vec3{
				float32(math.Sin(theta) * math.Cos(phi)),
				float32(math.Cos(theta)),
				float32(math.Sin(theta) * math.Sin(phi)),
			}
			vertices = append(vertices, upload.Vertex{
				Position: n.Mul(radius),
				UVX:      u,
				Normal:   n,
				UVY:      v,
				Color:    mgl32.Vec4{1, 1, 1, 1},
			})
		}
	}

	stride := segments + 1
	indices := make([]uint32, 0, rings*segments*6)
	for r := uint32(0); r < rings; r++ {
		for s := uint32(0); s < segments; s++ {
			a := r*stride + s
			b := a + stride
			indices = append(indices, a, b, a+1, a+1, b, b+1)
		}
	}
	return vertices, indices
}

// Cube builds a unit cube centred on the origin with outward normals and
// one quad per face.
func Cube() ([]upload.Vertex, []uint32) {
	faces := [6]struct{ normal, up, right mgl32.Vec3 }{
		{mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}, mgl32.Vec3{0, 0, -1}},
		{mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 1, 0}, mgl32.Vec3{0, 0, 1}},
		{mgl32.Vec3{0, 1, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{1, 0, 0}},
		{mgl32.Vec3{0, -1, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}},
		{mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0}},
		{mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}, mgl32.Vec3{-1, 0, 0}},
	}
	corners := [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}

	vertices := make([]upload.Vertex, 0, 24)
	indices := make([]uint32, 0, 36)
	for _, f := range faces {
		base := uint32(len(vertices))
		centre := f.normal.Mul(0.5)
		for _, c := range corners {
			p := centre.Add(f.right.Mul(c[0] * 0.5)).Add(f.up.Mul(c[1] * 0.5))
			vertices = append(vertices, upload.Vertex{
				Position: p,
				UVX:      (c[0] + 1) / 2,
				Normal:   f.normal,
				UVY:      (1 - c[1]) / 2,
				Color:    mgl32.Vec4{1, 1, 1, 1},
			})
		}
		indices = append(indices, base, base+1, base+2, base, base+2, base+3)
	}
	return vertices, indices
}
