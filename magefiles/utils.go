//go:build mage

package main

import (
	"fmt"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

type goOptions struct {
	env   map[string]string
	flags []string
}

type goOption func(*goOptions)

// withEnv sets one environment variable for the go tool.
func withEnv(key, value string) goOption {
	return func(o *goOptions) {
		o.env[key] = value
	}
}

// withFlags adds flags after the verb, before the packages.
func withFlags(flags ...string) goOption {
	return func(o *goOptions) {
		o.flags = append(o.flags, flags...)
	}
}

// goCmd runs `go verb [flags] args...` and streams its output. cgo is
// always on: glfw and the Vulkan loader bindings need it.
func goCmd(verb string, args []string, options ...goOption) error {
	opts := &goOptions{env: map[string]string{"CGO_ENABLED": "1"}}
	for _, o := range options {
		o(opts)
	}
	full := append([]string{verb}, opts.flags...)
	full = append(full, args...)

	fmt.Printf("Executing: %s %s\n", mg.GoCmd(), strings.Join(full, " "))
	if err := sh.RunWithV(opts.env, mg.GoCmd(), full...); err != nil {
		return fmt.Errorf("go %s: %w", verb, err)
	}
	return nil
}

// lumen runs the renderer binary from source with args.
func lumen(args ...string) error {
	return goCmd("run", append([]string{"."}, args...))
}
