package cmd

import (
	"github.com/urfave/cli"

	"github.com/spaghettifunk/lumen/engine"
	"github.com/spaghettifunk/lumen/engine/core"
)

// Run opens the window and renders the configured scene until the window
// closes or the process is interrupted.
func Run(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	e, err := engine.New(cfg)
	if err != nil {
		return err
	}
	if err := e.Initialize(); err != nil {
		core.LogError("initialization failed: %v", err)
		if serr := e.Shutdown(); serr != nil {
			core.LogError("shutdown failed: %v", serr)
		}
		return err
	}

	stop := core.OnQuitSignal(e.Quit)
	defer stop()

	runErr := e.Run()
	if runErr != nil {
		core.LogError("frame loop stopped: %v", runErr)
	}
	if err := e.Shutdown(); err != nil && runErr == nil {
		return err
	}
	return runErr
}
