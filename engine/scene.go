package engine

import (
	gomath "math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/lantern/engine/assets"
	"github.com/spaghettifunk/lantern/engine/core"
	"github.com/spaghettifunk/lantern/engine/math"
	"github.com/spaghettifunk/lantern/engine/renderer/passes"
)

const (
	lightOrbitRadius = float32(3.0)
	lightHeight      = float32(1.5)
	// radians per second
	lightOrbitSpeed = float32(0.3)
	meshSpinSpeed   = float32(0.5)
)

var lightPalette = []mgl32.Vec4{
	{1, 0.85, 0.7, 1},
	{0.6, 0.75, 1, 1},
	{1, 0.4, 0.3, 1},
	{0.5, 1, 0.6, 1},
}

// orbitLights spreads count lights evenly on a ring above the mesh and
// turns the ring by elapsed seconds. Count is clamped to what the scene
// uniform block holds.
func orbitLights(count int, elapsed float32) []passes.Light {
	count = math.Clamp(count, 0, passes.MaxLights)
	lights := make([]passes.Light, count)
	for i := range lights {
		angle := float64(lightOrbitSpeed*elapsed) + 2*gomath.Pi*float64(i)/float64(count)
		lights[i] = passes.Light{
			Position: mgl32.Vec4{
				lightOrbitRadius * float32(gomath.Cos(angle)),
				lightHeight,
				lightOrbitRadius * float32(gomath.Sin(angle)),
				1,
			},
			Color: lightPalette[i%len(lightPalette)],
		}
	}
	return lights
}

// loadSceneAssets decodes the configured textures. Anything that fails to
// load is left nil for the checkerboard fallback.
func loadSceneAssets(cfg core.SceneConfig) passes.SceneAssets {
	load := func(path string) *assets.Image {
		if path == "" {
			return nil
		}
		return assets.LoadImage(path)
	}
	a := passes.SceneAssets{
		Albedo:     load(cfg.Albedo),
		Normal:     load(cfg.Normal),
		MetalRough: load(cfg.MetalRough),
		Height:     load(cfg.Height),
	}
	if cfg.Skybox[0] != "" {
		faces, err := assets.LoadCubemap(cfg.Skybox)
		if err != nil {
			core.LogError("failed to load skybox: %v", err)
		} else {
			a.Skybox = faces
		}
	}
	return a
}
