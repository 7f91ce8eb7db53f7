/*
Lumen renders a scene with a visibility buffer, tiled compute lighting and
a display mapping pass on Vulkan.
*/
package main

import (
	"os"

	"github.com/urfave/cli"

	"github.com/spaghettifunk/lumen/cmd"
	"github.com/spaghettifunk/lumen/engine/core"
)

func main() {
	app := cli.NewApp()
	app.Name = "lumen"
	app.Usage = "visibility buffer deferred renderer"
	app.Version = "0.1.0"
	app.Flags = cmd.ConfigFlags()
	app.Action = cmd.Run
	app.Commands = []cli.Command{
		{
			Name:  "run",
			Usage: "render the configured scene in a window (default)",
			Description: `
Open a window, upload the scene manifest and render until the window is
closed. W/S move the camera, the arrow keys rotate it, R resets it and F1
reloads the scene.`,
			Flags:  cmd.ConfigFlags(),
			Action: cmd.Run,
		},
		{
			Name:   "devices",
			Usage:  "list Vulkan adapters and the one that would be selected",
			Action: cmd.ListDevices,
		},
		{
			Name:   "check-shaders",
			Usage:  "compile every built-in shader and report diagnostics",
			Action: cmd.CheckShaders,
		},
	}

	if err := app.Run(os.Args); err != nil {
		core.LogError("%v", err)
		os.Exit(1)
	}
}
