// Package config handles viewer and tool configuration loading and management.
package config

// Config holds all settings.
type Config struct {
	Window  WindowConfig  `yaml:"window"`
	Meshlet MeshletConfig `yaml:"meshlet"`
	Data    DataConfig    `yaml:"data"`
	Viewer  ViewerConfig  `yaml:"viewer"`
	Logging LoggingConfig `yaml:"logging"`
}

// WindowConfig holds display settings.
type WindowConfig struct {
	Width      int  `yaml:"width"`
	Height     int  `yaml:"height"`
	Fullscreen bool `yaml:"fullscreen"`
	VSync      bool `yaml:"vsync"`
}

// MeshletConfig holds mesh-shader limits and loader bounds.
type MeshletConfig struct {
	MaxGroupVerts uint32 `yaml:"max_group_verts"`
	MaxGroupPrims uint32 `yaml:"max_group_prims"`
	MaxBufferSize uint32 `yaml:"max_buffer_size"` // bytes; 0 uses the loader default
}

// DataConfig holds model file paths.
type DataConfig struct {
	ModelPaths []string `yaml:"model_paths"`
	LODPaths   []string `yaml:"lod_paths"` // most detailed first
}

// ViewerConfig holds viewer behavior.
type ViewerConfig struct {
	Watch            bool   `yaml:"watch"` // reload models when they change on disk
	InstanceLevel    uint32 `yaml:"instance_level"`
	ScreenshotDir    string `yaml:"screenshot_dir"`
	ScreenshotFormat string `yaml:"screenshot_format"` // png or bmp
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Window: WindowConfig{
			Width:      1280,
			Height:     720,
			Fullscreen: false,
			VSync:      true,
		},
		Meshlet: MeshletConfig{
			MaxGroupVerts: 64,
			MaxGroupPrims: 126,
		},
		Data: DataConfig{
			ModelPaths: []string{"assets/model.bin"},
		},
		Viewer: ViewerConfig{
			Watch:            false,
			ScreenshotDir:    "screenshots",
			ScreenshotFormat: "png",
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// ModelChain returns the files the viewer shows: the LOD chain when one is
// configured, otherwise the first model path as a single level.
func (c *Config) ModelChain() []string {
	if len(c.Data.LODPaths) > 0 {
		return c.Data.LODPaths
	}
	if len(c.Data.ModelPaths) > 0 {
		return c.Data.ModelPaths[:1]
	}
	return nil
}
