package vulkan

import (
	"errors"
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

// Adapter is one physical device.
type Adapter struct {
	instance *Instance
	handle   vk.PhysicalDevice
	props    vk.PhysicalDeviceProperties
	memory   vk.PhysicalDeviceMemoryProperties
}

var _ gpu.Adapter = (*Adapter)(nil)

func newAdapter(i *Instance, pd vk.PhysicalDevice) *Adapter {
	a := &Adapter{instance: i, handle: pd}
	vk.GetPhysicalDeviceProperties(pd, &a.props)
	a.props.Deref()
	a.props.Limits.Deref()
	vk.GetPhysicalDeviceMemoryProperties(pd, &a.memory)
	a.memory.Deref()
	return a
}

func (a *Adapter) Info() gpu.AdapterInfo {
	return gpu.AdapterInfo{
		Name:       cString(a.props.DeviceName[:]),
		VendorID:   a.props.VendorID,
		DeviceID:   a.props.DeviceID,
		Type:       fromDeviceType(a.props.DeviceType),
		APIVersion: versionString(a.props.ApiVersion),
	}
}

// Memory returns the local and shared heap sizes in bytes.
func (a *Adapter) Memory() (local, shared uint64) {
	for i := uint32(0); i < a.memory.MemoryHeapCount; i++ {
		h := a.memory.MemoryHeaps[i]
		h.Deref()
		if vk.MemoryHeapFlagBits(h.Flags)&vk.MemoryHeapDeviceLocalBit != 0 {
			local += uint64(h.Size)
		} else {
			shared += uint64(h.Size)
		}
	}
	return local, shared
}

// Open creates the logical device. It fails when the adapter cannot
// present to the instance surface or lacks the bindless features.
func (a *Adapter) Open(level gpu.FeatureLevel) (gpu.Device, error) {
	if v := vk.Version(a.props.ApiVersion); v.Major() < 1 || (v.Major() == 1 && v.Minor() < 2) {
		return nil, fmt.Errorf("Vulkan %s, 1.2 is required", versionString(a.props.ApiVersion))
	}
	family, err := a.queueFamily()
	if err != nil {
		return nil, err
	}
	if err := a.requireExtension(vk.KhrSwapchainExtensionName); err != nil {
		return nil, err
	}
	if level >= gpu.FeatureLevelBindless {
		if err := a.requireBindless(); err != nil {
			return nil, err
		}
	}

	extensions := []string{vk.KhrSwapchainExtensionName}
	if a.requireExtension("VK_KHR_portability_subset") == nil {
		core.LogInfo("adding required extension VK_KHR_portability_subset")
		extensions = append(extensions, "VK_KHR_portability_subset")
	}

	features12 := vk.PhysicalDeviceVulkan12Features{
		SType:                           vk.StructureTypePhysicalDeviceVulkan12Features,
		DescriptorIndexing:              vk.True,
		RuntimeDescriptorArray:          vk.True,
		DescriptorBindingPartiallyBound: vk.True,
		DescriptorBindingUpdateUnusedWhilePending:     vk.True,
		ShaderSampledImageArrayNonUniformIndexing:     vk.True,
		DescriptorBindingSampledImageUpdateAfterBind:  vk.True,
		DescriptorBindingStorageImageUpdateAfterBind:  vk.True,
		DescriptorBindingStorageBufferUpdateAfterBind: vk.True,
		ShaderStorageBufferArrayNonUniformIndexing:    vk.True,
		ShaderStorageImageArrayNonUniformIndexing:     vk.True,
	}
	next, _ := features12.PassRef()

	var handle vk.Device
	res := vk.CreateDevice(a.handle, &vk.DeviceCreateInfo{
		SType:                vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount: 1,
		PQueueCreateInfos: []vk.DeviceQueueCreateInfo{{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: family,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: safeStrings(extensions),
		PEnabledFeatures: []vk.PhysicalDeviceFeatures{{
			GeometryShader:                          vk.True,
			SamplerAnisotropy:                       vk.True,
			ShaderSampledImageArrayDynamicIndexing:  vk.True,
			ShaderStorageBufferArrayDynamicIndexing: vk.True,
			ShaderStorageImageArrayDynamicIndexing:  vk.True,
		}},
		PNext: unsafe.Pointer(next),
	}, nil, &handle)
	if err := check("vkCreateDevice", res); err != nil {
		return nil, err
	}
	core.LogInfo("logical device created on %s (%s, driver %s)",
		a.Info().Name, a.Info().Type, versionString(a.props.DriverVersion))
	local, shared := a.Memory()
	core.LogDebug("local memory %d MiB, shared memory %d MiB", local>>20, shared>>20)
	return newDevice(a, handle, family)
}

// queueFamily finds a family that does graphics, compute and presents.
func (a *Adapter) queueFamily() (uint32, error) {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(a.handle, &count, nil)
	families := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(a.handle, &count, families)
	want := vk.QueueFlags(vk.QueueGraphicsBit | vk.QueueComputeBit)
	for i := uint32(0); i < count; i++ {
		families[i].Deref()
		if families[i].QueueFlags&want != want {
			continue
		}
		var present vk.Bool32
		if vk.GetPhysicalDeviceSurfaceSupport(a.handle, i, a.instance.surface.handle, &present) != vk.Success {
			continue
		}
		if present == vk.True {
			return i, nil
		}
	}
	return 0, errors.New("no queue family supports graphics, compute and present")
}

func (a *Adapter) requireExtension(name string) error {
	var count uint32
	if err := check("vkEnumerateDeviceExtensionProperties", vk.EnumerateDeviceExtensionProperties(a.handle, "", &count, nil)); err != nil {
		return err
	}
	exts := make([]vk.ExtensionProperties, count)
	if err := check("vkEnumerateDeviceExtensionProperties", vk.EnumerateDeviceExtensionProperties(a.handle, "", &count, exts)); err != nil {
		return err
	}
	for _, e := range exts {
		e.Deref()
		if cString(e.ExtensionName[:]) == name {
			return nil
		}
	}
	return fmt.Errorf("extension %s not supported", name)
}

// requireBindless checks runtime sized, partially bound descriptor arrays
// and the primitive id used by the visibility pass.
func (a *Adapter) requireBindless() error {
	features12 := vk.PhysicalDeviceVulkan12Features{
		SType: vk.StructureTypePhysicalDeviceVulkan12Features,
	}
	next, _ := features12.PassRef()
	features := vk.PhysicalDeviceFeatures2{
		SType: vk.StructureTypePhysicalDeviceFeatures2,
		PNext: unsafe.Pointer(next),
	}
	vk.GetPhysicalDeviceFeatures2(a.handle, &features)
	features.Deref()
	features.Features.Deref()
	features12.Deref()

	missing := []string{}
	if features.Features.GeometryShader != vk.True {
		missing = append(missing, "geometryShader")
	}
	if features12.DescriptorIndexing != vk.True {
		missing = append(missing, "descriptorIndexing")
	}
	if features12.RuntimeDescriptorArray != vk.True {
		missing = append(missing, "runtimeDescriptorArray")
	}
	if features12.DescriptorBindingPartiallyBound != vk.True {
		missing = append(missing, "descriptorBindingPartiallyBound")
	}
	if features12.DescriptorBindingUpdateUnusedWhilePending != vk.True {
		missing = append(missing, "descriptorBindingUpdateUnusedWhilePending")
	}
	if features12.DescriptorBindingSampledImageUpdateAfterBind != vk.True ||
		features12.DescriptorBindingStorageImageUpdateAfterBind != vk.True ||
		features12.DescriptorBindingStorageBufferUpdateAfterBind != vk.True {
		missing = append(missing, "descriptorBinding*UpdateAfterBind")
	}
	if features12.ShaderSampledImageArrayNonUniformIndexing != vk.True {
		missing = append(missing, "shaderSampledImageArrayNonUniformIndexing")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing bindless features %v", missing)
	}
	return nil
}
