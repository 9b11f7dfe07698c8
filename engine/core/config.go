package core

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spaghettifunk/lantern/engine/math"
)

type WindowConfig struct {
	Title  string `toml:"title"`
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
	X      int    `toml:"x"`
	Y      int    `toml:"y"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type RendererConfig struct {
	Validation  bool   `toml:"validation"`
	PresentMode string `toml:"present_mode"`
	// GPUTimeoutMS bounds every CPU wait on the device.
	GPUTimeoutMS          int    `toml:"gpu_timeout_ms"`
	DescriptorSetsPerPool uint32 `toml:"descriptor_sets_per_pool"`
	ShaderDir             string `toml:"shader_dir"`
}

func (c RendererConfig) GPUTimeout() time.Duration {
	return time.Duration(c.GPUTimeoutMS) * time.Millisecond
}

// SceneConfig names the textures of the fixed scene. Skybox faces are in
// +X, -X, +Y, -Y, +Z, -Z order. Empty paths fall back to the checkerboard.
type SceneConfig struct {
	Albedo     string    `toml:"albedo"`
	Normal     string    `toml:"normal"`
	MetalRough string    `toml:"metal_rough"`
	Height     string    `toml:"height"`
	Skybox     [6]string `toml:"skybox"`
	Lights     int       `toml:"lights"`
}

// Tunables are the scalars the debug UI edits between frames.
type Tunables struct {
	Effect         int           `toml:"effect"`
	EffectData     [4][4]float32 `toml:"effect_data"`
	HeightScale    float32       `toml:"height_scale"`
	ParallaxLayers uint32        `toml:"parallax_layers"`
	ParallaxMode   int           `toml:"parallax_mode"`
	LightIntensity float32       `toml:"light_intensity"`
}

const (
	ParallaxOff = iota
	ParallaxSimple
	ParallaxSteep
	ParallaxOcclusion
)

// Sanitize clamps values into the ranges the shaders accept.
func (t Tunables) Sanitize() Tunables {
	t.HeightScale = math.Clamp(t.HeightScale, 0, 0.25)
	t.ParallaxLayers = math.Clamp(t.ParallaxLayers, 1, 64)
	t.ParallaxMode = math.Clamp(t.ParallaxMode, ParallaxOff, ParallaxOcclusion)
	t.LightIntensity = math.Clamp(t.LightIntensity, 0, 1000)
	if t.Effect < 0 {
		t.Effect = 0
	}
	return t
}

type Config struct {
	Window   WindowConfig   `toml:"window"`
	Log      LogConfig      `toml:"log"`
	Renderer RendererConfig `toml:"renderer"`
	Scene    SceneConfig    `toml:"scene"`
	Tunables Tunables       `toml:"tunables"`
}

func DefaultConfig() Config {
	return Config{
		Window: WindowConfig{
			Title:  "Lantern",
			Width:  1700,
			Height: 900,
			X:      100,
			Y:      100,
		},
		Log: LogConfig{Level: "info"},
		Renderer: RendererConfig{
			Validation:            true,
			PresentMode:           "fifo",
			GPUTimeoutMS:          1000,
			DescriptorSetsPerPool: 1000,
			ShaderDir:             "assets/shaders",
		},
		Scene: SceneConfig{Lights: 4},
		Tunables: Tunables{
			Effect: 0,
			EffectData: [4][4]float32{
				{1, 0, 0, 1},
				{0, 0, 1, 1},
				{0.1, 0.2, 0.4, 0.97},
			},
			HeightScale:    0.05,
			ParallaxLayers: 16,
			ParallaxMode:   ParallaxOcclusion,
			LightIntensity: 10,
		},
	}
}

// LoadConfig overlays the TOML file at path on DefaultConfig. A missing
// file yields the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		LogWarn("config file %s not found, using defaults", path)
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	cfg.Tunables = cfg.Tunables.Sanitize()
	return cfg, nil
}

func (c Config) validate() error {
	if c.Window.Width == 0 || c.Window.Height == 0 {
		return fmt.Errorf("window size %dx%d", c.Window.Width, c.Window.Height)
	}
	if c.Renderer.GPUTimeoutMS <= 0 {
		return fmt.Errorf("gpu_timeout_ms must be positive, got %d", c.Renderer.GPUTimeoutMS)
	}
	if c.Renderer.DescriptorSetsPerPool == 0 {
		return errors.New("descriptor_sets_per_pool must be positive")
	}
	switch c.Renderer.PresentMode {
	case "fifo", "mailbox", "immediate":
	default:
		return fmt.Errorf("unknown present_mode %q", c.Renderer.PresentMode)
	}
	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}
