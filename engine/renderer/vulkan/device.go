package vulkan

import (
	"errors"
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

// cbvRange is the size bound by a root constant buffer view. Dynamic
// offsets move it through the buffer.
const cbvRange = gpu.ConstantBufferAlignment

// maxRootCBVs bounds the number of buffers ever bound as root constant
// buffer views.
const maxRootCBVs = 64

// Device is a logical device with a single graphics and compute queue.
type Device struct {
	adapter *Adapter
	handle  vk.Device
	family  uint32
	queue   *Queue

	// Set layouts of the shader visible heaps, created with the heaps.
	heapLayouts  [2]vk.DescriptorSetLayout
	heapCapacity [2]uint32
	heaps        [2]*descriptorHeap

	cbvLayout vk.DescriptorSetLayout
	cbvPool   vk.DescriptorPool

	passes *passCache
	locks  lockPool
}

var _ gpu.Device = (*Device)(nil)

func newDevice(a *Adapter, handle vk.Device, family uint32) (*Device, error) {
	d := &Device{adapter: a, handle: handle, family: family}
	var q vk.Queue
	vk.GetDeviceQueue(handle, family, 0, &q)
	d.queue = &Queue{dev: d, handle: q}
	d.passes = newPassCache(d)

	res := vk.CreateDescriptorSetLayout(handle, &vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: 1,
		PBindings: []vk.DescriptorSetLayoutBinding{{
			Binding:         0,
			DescriptorType:  vk.DescriptorTypeUniformBufferDynamic,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageAll),
		}},
	}, nil, &d.cbvLayout)
	if err := creation("root constant buffer layout", "vkCreateDescriptorSetLayout", res); err != nil {
		d.Release()
		return nil, err
	}
	res = vk.CreateDescriptorPool(handle, &vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit),
		MaxSets:       maxRootCBVs,
		PoolSizeCount: 1,
		PPoolSizes: []vk.DescriptorPoolSize{{
			Type:            vk.DescriptorTypeUniformBufferDynamic,
			DescriptorCount: maxRootCBVs,
		}},
	}, nil, &d.cbvPool)
	if err := creation("root constant buffer pool", "vkCreateDescriptorPool", res); err != nil {
		d.Release()
		return nil, err
	}
	return d, nil
}

func (d *Device) Queue() gpu.Queue {
	return d.queue
}

// findMemoryIndex returns the first memory type allowed by typeFilter
// with every property bit set.
func (d *Device) findMemoryIndex(typeFilter uint32, props vk.MemoryPropertyFlagBits) (uint32, error) {
	mem := d.adapter.memory
	for i := uint32(0); i < mem.MemoryTypeCount; i++ {
		mem.MemoryTypes[i].Deref()
		flags := vk.MemoryPropertyFlagBits(mem.MemoryTypes[i].PropertyFlags)
		if typeFilter&(1<<i) != 0 && flags&props == props {
			return i, nil
		}
	}
	return 0, fmt.Errorf("no memory type with properties %#x", uint32(props))
}

func (d *Device) allocate(reqs vk.MemoryRequirements, heap gpu.HeapType) (vk.DeviceMemory, error) {
	reqs.Deref()
	index, err := d.findMemoryIndex(reqs.MemoryTypeBits, memoryProperties(heap))
	if err != nil {
		return nil, err
	}
	var mem vk.DeviceMemory
	res := vk.AllocateMemory(d.handle, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: index,
	}, nil, &mem)
	if err := check("vkAllocateMemory", res); err != nil {
		return nil, err
	}
	return mem, nil
}

func (d *Device) CreateFence(initial uint64) (gpu.Fence, error) {
	return &Fence{dev: d, completed: initial, signaled: initial}, nil
}

func (d *Device) WaitIdle() error {
	return check("vkDeviceWaitIdle", vk.DeviceWaitIdle(d.handle))
}

func (d *Device) Release() {
	if d.handle == nil {
		return
	}
	vk.DeviceWaitIdle(d.handle)
	d.passes.release()
	for _, h := range d.heaps {
		if h != nil {
			h.Release()
		}
	}
	if d.cbvPool != nil {
		vk.DestroyDescriptorPool(d.handle, d.cbvPool, nil)
	}
	if d.cbvLayout != nil {
		vk.DestroyDescriptorSetLayout(d.handle, d.cbvLayout, nil)
	}
	for i, l := range d.heapLayouts {
		if l != nil {
			vk.DestroyDescriptorSetLayout(d.handle, l, nil)
			d.heapLayouts[i] = nil
		}
	}
	core.LogDebug("destroying logical device")
	vk.DestroyDevice(d.handle, nil)
	d.handle = nil
}

func asResource(r gpu.Resource) (*resource, error) {
	res, ok := r.(*resource)
	if !ok || res == nil {
		return nil, errors.New("resource was not created by this device")
	}
	return res, nil
}
