// Package config handles terrain pipeline and viewer configuration.
package config

import (
	"fmt"

	"github.com/66OJ66/meshlet-terrain-testing/pkg/meshlet"
)

// Config holds all settings.
type Config struct {
	Assets   AssetsConfig   `yaml:"assets"`
	Build    BuildConfig    `yaml:"build"`
	Graphics GraphicsConfig `yaml:"graphics"`
	Startup  StartupConfig  `yaml:"startup"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// AssetsConfig holds asset locations.
type AssetsConfig struct {
	Roots      []string `yaml:"roots"`      // Asset root directories, last = highest priority
	Terrain    string   `yaml:"terrain"`    // Artifact loaded at startup
	Descriptor string   `yaml:"descriptor"` // Descriptor built by default
	OutputDir  string   `yaml:"output_dir"` // Where built artifacts go; empty = next to the descriptor
}

// BuildConfig holds artifact build settings.
type BuildConfig struct {
	CompressionLevel    int `yaml:"compression_level"`
	MaxClusterVertices  int `yaml:"max_cluster_vertices"`
	MaxClusterTriangles int `yaml:"max_cluster_triangles"`
	Workers             int `yaml:"workers"` // 0 = one per CPU
}

// GraphicsConfig holds display and rendering settings.
type GraphicsConfig struct {
	Width      int  `yaml:"width"`
	Height     int  `yaml:"height"`
	Fullscreen bool `yaml:"fullscreen"`
	VSync      bool `yaml:"vsync"`
	Headless   bool `yaml:"headless"`
}

// StartupConfig holds startup tick settings.
type StartupConfig struct {
	TickRate int `yaml:"tick_rate"` // Ticks per second
	MaxTicks int `yaml:"max_ticks"` // Headless tick budget, 0 = unlimited
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Assets: AssetsConfig{
			Roots:      []string{"assets"},
			Terrain:    "default.terrain.bin",
			Descriptor: "default.terrain.yaml",
		},
		Build: BuildConfig{
			CompressionLevel:    19,
			MaxClusterVertices:  meshlet.DefaultMaxVertices,
			MaxClusterTriangles: meshlet.DefaultMaxTriangles,
			Workers:             0,
		},
		Graphics: GraphicsConfig{
			Width:      1280,
			Height:     720,
			Fullscreen: false,
			VSync:      true,
			Headless:   false,
		},
		Startup: StartupConfig{
			TickRate: 60,
			MaxTicks: 600,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// MeshletOptions returns the cluster limits as meshlet build options.
func (c *Config) MeshletOptions() meshlet.Options {
	return meshlet.Options{
		MaxVertices:  c.Build.MaxClusterVertices,
		MaxTriangles: c.Build.MaxClusterTriangles,
	}
}

// Validate checks settings that would otherwise fail deep inside a build.
func (c *Config) Validate() error {
	if l := c.Build.CompressionLevel; l < 1 || l > 22 {
		return fmt.Errorf("build.compression_level %d not in [1, 22]", l)
	}
	if c.Build.MaxClusterVertices < 3 || c.Build.MaxClusterVertices > 255 {
		return fmt.Errorf("build.max_cluster_vertices %d not in [3, 255]", c.Build.MaxClusterVertices)
	}
	if c.Build.MaxClusterTriangles < 1 || c.Build.MaxClusterTriangles > 255 {
		return fmt.Errorf("build.max_cluster_triangles %d not in [1, 255]", c.Build.MaxClusterTriangles)
	}
	if c.Build.Workers < 0 {
		return fmt.Errorf("build.workers %d is negative", c.Build.Workers)
	}
	if c.Startup.TickRate <= 0 {
		return fmt.Errorf("startup.tick_rate %d must be positive", c.Startup.TickRate)
	}
	if c.Startup.MaxTicks < 0 {
		return fmt.Errorf("startup.max_ticks %d is negative", c.Startup.MaxTicks)
	}
	if !c.Graphics.Headless && (c.Graphics.Width <= 0 || c.Graphics.Height <= 0) {
		return fmt.Errorf("graphics size %dx%d is invalid", c.Graphics.Width, c.Graphics.Height)
	}
	return nil
}
