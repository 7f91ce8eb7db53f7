package cmd

import (
	"github.com/urfave/cli"

	"github.com/spaghettifunk/lumen/engine/core"
)

// ConfigFlags override values of the configuration file.
func ConfigFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "TOML configuration file",
		},
		cli.StringFlag{
			Name:  "assets",
			Usage: "asset root directory",
		},
		cli.StringFlag{
			Name:  "scene, s",
			Usage: "scene manifest, relative to the asset root",
		},
		cli.BoolFlag{
			Name:  "watch",
			Usage: "reload the scene when its files change",
		},
		cli.UintFlag{
			Name:  "width",
			Usage: "frame width, a multiple of 16",
		},
		cli.UintFlag{
			Name:  "height",
			Usage: "frame height, a multiple of 16",
		},
		cli.BoolFlag{
			Name:  "vsync",
			Usage: "wait for vertical blank when presenting",
		},
		cli.BoolFlag{
			Name:  "validation",
			Usage: "enable the Vulkan validation layer",
		},
		cli.IntFlag{
			Name:  "adapter",
			Value: -1,
			Usage: "use the adapter at this index instead of the first compatible one",
		},
		cli.StringFlag{
			Name:  "log-level",
			Usage: "debug, info, warn or error",
		},
	}
}

// flags reads a flag from the command or, failing that, the application.
type flags struct {
	ctx *cli.Context
}

func (f flags) isSet(name string) bool {
	return f.ctx.IsSet(name) || f.ctx.GlobalIsSet(name)
}

func (f flags) string(name string) string {
	if f.ctx.IsSet(name) {
		return f.ctx.String(name)
	}
	return f.ctx.GlobalString(name)
}

func (f flags) bool(name string) bool {
	if f.ctx.IsSet(name) {
		return f.ctx.Bool(name)
	}
	return f.ctx.GlobalBool(name)
}

func (f flags) uint(name string) uint32 {
	if f.ctx.IsSet(name) {
		return uint32(f.ctx.Uint(name))
	}
	return uint32(f.ctx.GlobalUint(name))
}

func (f flags) int(name string) int {
	if f.ctx.IsSet(name) {
		return f.ctx.Int(name)
	}
	return f.ctx.GlobalInt(name)
}

// loadConfig layers defaults, the configuration file and the flags that
// were given explicitly.
func loadConfig(ctx *cli.Context) (*core.Config, error) {
	f := flags{ctx: ctx}
	cfg := core.DefaultConfig()
	if path := f.string("config"); path != "" {
		var err error
		if cfg, err = core.LoadConfig(path); err != nil {
			return nil, err
		}
	}
	if f.isSet("assets") {
		cfg.Scene.Assets = f.string("assets")
	}
	if f.isSet("scene") {
		cfg.Scene.Path = f.string("scene")
	}
	if f.isSet("watch") {
		cfg.Scene.Watch = f.bool("watch")
	}
	if f.isSet("width") {
		cfg.Window.Width = f.uint("width")
	}
	if f.isSet("height") {
		cfg.Window.Height = f.uint("height")
	}
	if f.isSet("vsync") {
		cfg.Renderer.VSync = f.bool("vsync")
	}
	if f.isSet("validation") {
		cfg.Renderer.Validation = f.bool("validation")
	}
	if f.isSet("adapter") {
		cfg.Renderer.Adapter = f.int("adapter")
	}
	if f.isSet("log-level") {
		cfg.Log.Level = f.string("log-level")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
