package core

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInitialization is returned when no adapter can open a device at the
	// required feature level.
	ErrInitialization = errors.New("no suitable graphics device")
	// ErrSceneLoad wraps every failure produced while importing a scene.
	ErrSceneLoad = errors.New("scene load failed")
	// ErrSwapchainOutOfDate is returned by the swapchain when the surface
	// changed under it and the frame has to be skipped.
	ErrSwapchainOutOfDate = errors.New("swapchain out of date")
	// ErrSwapchainNotReady is returned when no back-buffer became available
	// in time; the frame is skipped.
	ErrSwapchainNotReady = errors.New("no swapchain image available")
)

// ResourceCreationError is the generic failure of any GPU object creation.
type ResourceCreationError struct {
	Op  string
	Err error
}

func (e *ResourceCreationError) Error() string {
	return fmt.Sprintf("failed to create %s: %v", e.Op, e.Err)
}

func (e *ResourceCreationError) Unwrap() error {
	return e.Err
}

// NewResourceCreationError logs and returns a ResourceCreationError.
func NewResourceCreationError(op string, err error) error {
	e := &ResourceCreationError{Op: op, Err: err}
	LogError("%s", e)
	return e
}

// ShaderCompileError carries the compiler diagnostic untouched.
type ShaderCompileError struct {
	Name    string
	Message string
}

func (e *ShaderCompileError) Error() string {
	if e.Name == "" {
		return "shader compilation failed: " + e.Message
	}
	return fmt.Sprintf("shader %q compilation failed: %s", e.Name, e.Message)
}

// RootSignatureError is returned when a root signature cannot be serialized.
type RootSignatureError struct {
	Message string
}

func (e *RootSignatureError) Error() string {
	return "root signature serialization failed: " + e.Message
}

// DeviceTimeoutError is returned when a fence wait exceeds its bound. It
// usually means the GPU hung or the device was lost.
type DeviceTimeoutError struct {
	Waited    time.Duration
	Target    uint64
	Completed uint64
}

func (e *DeviceTimeoutError) Error() string {
	return fmt.Sprintf("device timeout: waited %s for fence value %d (completed %d)", e.Waited, e.Target, e.Completed)
}
