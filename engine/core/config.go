package core

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// TileSize is the edge, in pixels, of one lighting compute tile.
const TileSize = 16

// Duration is a time.Duration that reads from TOML strings like "5s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

type WindowConfig struct {
	Title  string `toml:"title"`
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
}

type RendererConfig struct {
	FrameLatency  uint32   `toml:"frame_latency"`
	BufferCount   uint32   `toml:"buffer_count"`
	VSync         bool     `toml:"vsync"`
	FenceTimeout  Duration `toml:"fence_timeout"`
	ResourceViews uint32   `toml:"resource_views"`
	Samplers      uint32   `toml:"samplers"`
	Validation    bool     `toml:"validation"`
	// Adapter restricts selection to the adapter at this enumeration index.
	// Negative means first match.
	Adapter int `toml:"adapter"`
}

type SceneConfig struct {
	// Assets is the asset root, Path a scene manifest inside it. An empty
	// Path renders a single built-in triangle.
	Assets string `toml:"assets"`
	Path   string `toml:"path"`
	Watch  bool   `toml:"watch"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type Config struct {
	Window   WindowConfig   `toml:"window"`
	Renderer RendererConfig `toml:"renderer"`
	Scene    SceneConfig    `toml:"scene"`
	Log      LogConfig      `toml:"log"`
}

func DefaultConfig() *Config {
	return &Config{
		Window: WindowConfig{
			Title:  "Lumen",
			Width:  1440,
			Height: 704,
		},
		Renderer: RendererConfig{
			FrameLatency:  2,
			BufferCount:   2,
			VSync:         false,
			FenceTimeout:  Duration{5 * time.Second},
			ResourceViews: 2048,
			Samplers:      128,
			Adapter:       -1,
		},
		Scene: SceneConfig{
			Assets: "assets",
			Path:   "scenes/default.toml",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig reads a TOML file on top of DefaultConfig. Keys that are not
// part of Config are rejected.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ValidateResolution rejects sizes the tiled lighting pass cannot cover
// exactly.
func ValidateResolution(width, height uint32) error {
	if width == 0 || height == 0 {
		return fmt.Errorf("invalid resolution %dx%d", width, height)
	}
	if width%TileSize != 0 || height%TileSize != 0 {
		return fmt.Errorf("resolution %dx%d is not a multiple of the %dx%d lighting tile", width, height, TileSize, TileSize)
	}
	return nil
}

func (c *Config) Validate() error {
	if err := ValidateResolution(c.Window.Width, c.Window.Height); err != nil {
		return err
	}
	r := c.Renderer
	if r.FrameLatency == 0 {
		return fmt.Errorf("frame_latency must be at least 1")
	}
	if r.BufferCount < 2 {
		return fmt.Errorf("buffer_count must be at least 2, got %d", r.BufferCount)
	}
	if r.FenceTimeout.Duration <= 0 {
		return fmt.Errorf("fence_timeout must be positive")
	}
	if r.ResourceViews == 0 || r.Samplers == 0 {
		return fmt.Errorf("descriptor heap capacities must be positive")
	}
	return nil
}
