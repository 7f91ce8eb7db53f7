//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Checks the shaders and runs the renderer with scene hot reload.
func (Run) Engine() error {
	if err := checkShaders(); err != nil {
		return err
	}
	fmt.Println("Run engine...")
	args := []string{"run", "--watch"}
	if mg.Verbose() {
		args = append(args, "--log-level", "debug", "--validation")
	}
	return lumen(args...)
}

// Lists the Vulkan adapters.
func (Run) Devices() error {
	return lumen("devices")
}
