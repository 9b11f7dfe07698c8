package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Window.Width != 1700 || cfg.Window.Height != 900 {
		t.Fatalf("window: got %dx%d, want 1700x900", cfg.Window.Width, cfg.Window.Height)
	}
	if cfg.Renderer.GPUTimeout() != time.Second {
		t.Fatalf("gpu timeout: got %v, want 1s", cfg.Renderer.GPUTimeout())
	}
}

func TestLoadConfigOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lantern.toml")
	writeFile(t, path, `
[window]
width = 800
height = 600

[renderer]
present_mode = "mailbox"

[tunables]
effect = 1
parallax_layers = 500
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Window.Width != 800 || cfg.Window.Height != 600 {
		t.Fatalf("window: got %dx%d, want 800x600", cfg.Window.Width, cfg.Window.Height)
	}
	if cfg.Window.Title != "Lantern" {
		t.Fatalf("title default lost: got %q", cfg.Window.Title)
	}
	if cfg.Renderer.PresentMode != "mailbox" {
		t.Fatalf("present mode: got %q, want mailbox", cfg.Renderer.PresentMode)
	}
	if cfg.Tunables.Effect != 1 {
		t.Fatalf("effect: got %d, want 1", cfg.Tunables.Effect)
	}
	if cfg.Tunables.ParallaxLayers != 64 {
		t.Fatalf("parallax layers not clamped: got %d, want 64", cfg.Tunables.ParallaxLayers)
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"zero width", "[window]\nwidth = 0\n"},
		{"bad present mode", "[renderer]\npresent_mode = \"vsync\"\n"},
		{"bad log level", "[log]\nlevel = \"loud\"\n"},
		{"negative timeout", "[renderer]\ngpu_timeout_ms = -1\n"},
		{"malformed", "[window\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "lantern.toml")
			writeFile(t, path, tt.content)
			if _, err := LoadConfig(path); err == nil {
				t.Fatalf("LoadConfig(%q): expected error", tt.content)
			}
		})
	}
}

func TestTunablesWatcherPublishesEdits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lantern.toml")
	writeFile(t, path, "[tunables]\neffect = 0\n")

	w, err := WatchTunables(path)
	if err != nil {
		t.Fatalf("WatchTunables: %v", err)
	}
	defer w.Close()

	writeFile(t, path, "[tunables]\neffect = 1\nheight_scale = 0.1\n")

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if got, ok := w.Poll(); ok && got.Effect == 1 {
			if got.HeightScale != 0.1 {
				t.Fatalf("height scale: got %v, want 0.1", got.HeightScale)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("no tunables update observed")
}
