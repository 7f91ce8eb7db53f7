//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// Builds the renderer binary into bin/.
func (Build) Engine() error {
	return goCmd("build", []string{"."}, withFlags("-o", "bin/lumen"))
}

// Runs every package test. Verbose mode disables the test cache.
func (Build) Test() error {
	var opts []goOption
	if mg.Verbose() {
		opts = append(opts, withFlags("-v"), withEnv("GOFLAGS", "-count=1"))
	}
	return goCmd("test", []string{"./..."}, opts...)
}

type Shaders mg.Namespace

// Compiles the built-in WGSL shaders and reports diagnostics.
func (Shaders) Check() error {
	return checkShaders()
}

func checkShaders() error {
	return lumen("check-shaders")
}
