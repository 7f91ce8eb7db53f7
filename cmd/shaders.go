package cmd

import (
	"errors"
	"fmt"

	"github.com/urfave/cli"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/passes"
	"github.com/spaghettifunk/lumen/engine/renderer/shader"
)

// CheckShaders compiles every built-in entry point and prints the
// diagnostics of those that fail. No GPU is needed.
func CheckShaders(ctx *cli.Context) error {
	lib := shader.NewBuiltinLibrary(shader.NewCompiler(false))
	keys := passes.Shaders()
	errs := lib.Check(keys)
	for _, err := range errs {
		var sce *core.ShaderCompileError
		if errors.As(err, &sce) {
			fmt.Printf("%s:\n%s\n\n", sce.Name, sce.Message)
		} else {
			fmt.Println(err)
		}
	}
	if len(errs) > 0 {
		return cli.NewExitError(fmt.Sprintf("%d of %d shaders failed", len(errs), len(keys)), 1)
	}
	fmt.Printf("%d shaders compiled\n", len(keys))
	return nil
}
