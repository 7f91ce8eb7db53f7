// Package vulkan implements the gpu interfaces on top of Vulkan 1.2 with
// descriptor indexing.
package vulkan

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

// Window is the native window the instance presents to.
type Window interface {
	RequiredInstanceExtensions() []string
	// CreateSurface returns the VkSurfaceKHR handle created for instance.
	CreateSurface(instance interface{}) (uintptr, error)
	FramebufferSize() (uint32, uint32)
}

type Config struct {
	AppName    string
	Validation bool
}

const validationLayer = "VK_LAYER_KHRONOS_validation"

// Instance is a Vulkan instance bound to one window surface.
type Instance struct {
	handle  vk.Instance
	debug   vk.DebugReportCallback
	surface *Surface
}

var _ gpu.Instance = (*Instance)(nil)

// Surface is the presentation surface of the window.
type Surface struct {
	handle vk.Surface
	window Window
}

func (s *Surface) Size() (uint32, uint32) {
	return s.window.FramebufferSize()
}

func NewInstance(window Window, cfg Config) (*Instance, error) {
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		return nil, fmt.Errorf("%w: vkGetInstanceProcAddr is not available", core.ErrInitialization)
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrInitialization, err)
	}

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 2, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   safeString(cfg.AppName),
		PEngineName:        safeString("Lumen"),
	}
	extensions := append([]string{"VK_KHR_surface"}, window.RequiredInstanceExtensions()...)
	var flags vk.InstanceCreateFlags
	if runtime.GOOS == "darwin" {
		extensions = append(extensions, "VK_KHR_portability_enumeration", "VK_KHR_get_physical_device_properties2")
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		flags |= 1
	}
	var layers []string
	if cfg.Validation {
		if hasLayer(validationLayer) {
			extensions = append(extensions, vk.ExtDebugReportExtensionName)
			layers = append(layers, validationLayer)
		} else {
			core.LogWarn("validation requested but %s is not installed", validationLayer)
		}
	}
	for _, e := range extensions {
		core.LogDebug("instance extension: %s", e)
	}

	var inst vk.Instance
	res := vk.CreateInstance(&vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		Flags:                   flags,
		PApplicationInfo:        appInfo,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: safeStrings(extensions),
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     safeStrings(layers),
	}, nil, &inst)
	if err := check("vkCreateInstance", res); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrInitialization, err)
	}
	if err := vk.InitInstance(inst); err != nil {
		vk.DestroyInstance(inst, nil)
		return nil, fmt.Errorf("%w: %w", core.ErrInitialization, err)
	}
	i := &Instance{handle: inst}
	core.LogInfo("Vulkan instance created")

	if len(layers) > 0 {
		var cb vk.DebugReportCallback
		res := vk.CreateDebugReportCallback(inst, &vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: debugReport,
		}, nil, &cb)
		if err := check("vkCreateDebugReportCallbackEXT", res); err != nil {
			core.LogWarn("validation messages disabled: %v", err)
		} else {
			i.debug = cb
		}
	}

	handle, err := window.CreateSurface(inst)
	if err != nil {
		i.Release()
		return nil, fmt.Errorf("%w: window surface: %w", core.ErrInitialization, err)
	}
	i.surface = &Surface{handle: vk.SurfaceFromPointer(handle), window: window}
	return i, nil
}

func hasLayer(name string) bool {
	var count uint32
	if vk.EnumerateInstanceLayerProperties(&count, nil) != vk.Success {
		return false
	}
	layers := make([]vk.LayerProperties, count)
	if vk.EnumerateInstanceLayerProperties(&count, layers) != vk.Success {
		return false
	}
	for _, l := range layers {
		l.Deref()
		if cString(l.LayerName[:]) == name {
			return true
		}
	}
	return false
}

// Adapters lists the physical devices in driver order.
func (i *Instance) Adapters() ([]gpu.Adapter, error) {
	var count uint32
	if err := check("vkEnumeratePhysicalDevices", vk.EnumeratePhysicalDevices(i.handle, &count, nil)); err != nil {
		return nil, err
	}
	devices := make([]vk.PhysicalDevice, count)
	if err := check("vkEnumeratePhysicalDevices", vk.EnumeratePhysicalDevices(i.handle, &count, devices)); err != nil {
		return nil, err
	}
	adapters := make([]gpu.Adapter, 0, count)
	for _, pd := range devices[:count] {
		adapters = append(adapters, newAdapter(i, pd))
	}
	return adapters, nil
}

func (i *Instance) Surface() gpu.Surface {
	return i.surface
}

func (i *Instance) Release() {
	if i.surface != nil {
		vk.DestroySurface(i.handle, i.surface.handle, nil)
		i.surface = nil
	}
	if i.debug != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(i.handle, i.debug, nil)
		i.debug = vk.NullDebugReportCallback
	}
	if i.handle != nil {
		vk.DestroyInstance(i.handle, nil)
		i.handle = nil
	}
}

func debugReport(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("[%s] %d: %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit|vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("[%s] %d: %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogDebug("[%s] %d: %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
