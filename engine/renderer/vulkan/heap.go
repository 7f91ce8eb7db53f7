package vulkan

import (
	"errors"
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

// Bindings of the resource view heap set. A slot index is shared by every
// binding; the view type picks which array the descriptor is written to.
const (
	bindingTextures uint32 = iota
	bindingUintTextures
	bindingImages
	bindingBuffers
)

var resourceBindings = []vk.DescriptorType{
	bindingTextures:     vk.DescriptorTypeSampledImage,
	bindingUintTextures: vk.DescriptorTypeSampledImage,
	bindingImages:       vk.DescriptorTypeStorageImage,
	bindingBuffers:      vk.DescriptorTypeStorageBuffer,
}

// descriptorHeap is one update-after-bind descriptor set of capacity slots
// per binding.
type descriptorHeap struct {
	dev      *Device
	kind     gpu.HeapKind
	capacity uint32
	pool     vk.DescriptorPool
	set      vk.DescriptorSet
	// samplers created in the heap, destroyed with it.
	samplers []vk.Sampler
}

var _ gpu.DescriptorHeap = (*descriptorHeap)(nil)

func (h *descriptorHeap) Kind() gpu.HeapKind { return h.kind }
func (h *descriptorHeap) Capacity() uint32   { return h.capacity }

func (h *descriptorHeap) Release() {
	d := h.dev
	if d.heaps[h.kind] != h {
		return
	}
	for _, s := range h.samplers {
		vk.DestroySampler(d.handle, s, nil)
	}
	h.samplers = nil
	if h.pool != nil {
		vk.DestroyDescriptorPool(d.handle, h.pool, nil)
		h.pool = nil
	}
	d.heaps[h.kind] = nil
}

func heapTypes(kind gpu.HeapKind) []vk.DescriptorType {
	if kind == gpu.HeapKindSampler {
		return []vk.DescriptorType{vk.DescriptorTypeSampler}
	}
	return resourceBindings
}

// heapLayout creates the set layout of kind on first use. Every later heap
// of the same kind must keep its capacity so pipeline layouts stay valid.
func (d *Device) heapLayout(kind gpu.HeapKind, capacity uint32) (vk.DescriptorSetLayout, error) {
	if l := d.heapLayouts[kind]; l != nil {
		return l, nil
	}
	types := heapTypes(kind)
	bindings := make([]vk.DescriptorSetLayoutBinding, len(types))
	flags := make([]vk.DescriptorBindingFlags, len(types))
	for i, t := range types {
		bindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         uint32(i),
			DescriptorType:  t,
			DescriptorCount: capacity,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageAll),
		}
		flags[i] = vk.DescriptorBindingFlags(vk.DescriptorBindingPartiallyBoundBit |
			vk.DescriptorBindingUpdateAfterBindBit | vk.DescriptorBindingUpdateUnusedWhilePendingBit)
	}
	bindingFlags := vk.DescriptorSetLayoutBindingFlagsCreateInfo{
		SType:         vk.StructureTypeDescriptorSetLayoutBindingFlagsCreateInfo,
		BindingCount:  uint32(len(flags)),
		PBindingFlags: flags,
	}
	next, _ := bindingFlags.PassRef()

	var layout vk.DescriptorSetLayout
	res := vk.CreateDescriptorSetLayout(d.handle, &vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		PNext:        unsafe.Pointer(next),
		Flags:        vk.DescriptorSetLayoutCreateFlags(vk.DescriptorSetLayoutCreateUpdateAfterBindPoolBit),
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}, nil, &layout)
	if err := check("vkCreateDescriptorSetLayout", res); err != nil {
		return nil, err
	}
	d.heapLayouts[kind] = layout
	d.heapCapacity[kind] = capacity
	return layout, nil
}

// CreateDescriptorHeap creates the shader visible heap of desc.Kind. A
// device has at most one live heap per kind.
func (d *Device) CreateDescriptorHeap(desc gpu.DescriptorHeapDesc) (gpu.DescriptorHeap, error) {
	op := desc.Kind.String() + " descriptor heap"
	if desc.Kind > gpu.HeapKindSampler {
		return nil, core.NewResourceCreationError(op, fmt.Errorf("unknown heap kind %d", desc.Kind))
	}
	if desc.Capacity == 0 {
		return nil, core.NewResourceCreationError(op, errors.New("zero capacity"))
	}
	if d.heaps[desc.Kind] != nil {
		return nil, core.NewResourceCreationError(op, errors.New("the device already has a heap of this kind"))
	}
	if d.heapLayouts[desc.Kind] != nil && d.heapCapacity[desc.Kind] != desc.Capacity {
		return nil, core.NewResourceCreationError(op, fmt.Errorf("capacity %d differs from the first heap (%d)",
			desc.Capacity, d.heapCapacity[desc.Kind]))
	}
	layout, err := d.heapLayout(desc.Kind, desc.Capacity)
	if err != nil {
		return nil, core.NewResourceCreationError(op, err)
	}

	h := &descriptorHeap{dev: d, kind: desc.Kind, capacity: desc.Capacity}
	types := heapTypes(desc.Kind)
	sizes := make([]vk.DescriptorPoolSize, len(types))
	for i, t := range types {
		sizes[i] = vk.DescriptorPoolSize{Type: t, DescriptorCount: desc.Capacity}
	}
	res := vk.CreateDescriptorPool(d.handle, &vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateUpdateAfterBindBit),
		MaxSets:       1,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}, nil, &h.pool)
	if err := creation(op, "vkCreateDescriptorPool", res); err != nil {
		return nil, err
	}
	res = vk.AllocateDescriptorSets(d.handle, &vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     h.pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout},
	}, &h.set)
	if err := creation(op, "vkAllocateDescriptorSets", res); err != nil {
		vk.DestroyDescriptorPool(d.handle, h.pool, nil)
		return nil, err
	}
	d.heaps[desc.Kind] = h
	core.LogDebug("%s created with %d slots", op, desc.Capacity)
	return h, nil
}

func (d *Device) heapSlot(heap gpu.DescriptorHeap, kind gpu.HeapKind, index uint32) (*descriptorHeap, error) {
	h, ok := heap.(*descriptorHeap)
	if !ok || h == nil || h.dev != d {
		return nil, errors.New("descriptor heap was not created by this device")
	}
	if h.kind != kind {
		return nil, fmt.Errorf("%s heap used for a %s descriptor", h.kind, kind)
	}
	if index >= h.capacity {
		return nil, fmt.Errorf("slot %d out of range, capacity %d", index, h.capacity)
	}
	return h, nil
}

func (h *descriptorHeap) write(w vk.WriteDescriptorSet) {
	w.SType = vk.StructureTypeWriteDescriptorSet
	w.DstSet = h.set
	w.DescriptorCount = 1
	h.dev.locks.safeCall(lockDescriptors, func() error {
		vk.UpdateDescriptorSets(h.dev.handle, 1, []vk.WriteDescriptorSet{w}, 0, nil)
		return nil
	})
}

func (h *descriptorHeap) writeImage(binding, index uint32, typ vk.DescriptorType, view vk.ImageView, layout vk.ImageLayout) {
	h.write(vk.WriteDescriptorSet{
		DstBinding:      binding,
		DstArrayElement: index,
		DescriptorType:  typ,
		PImageInfo: []vk.DescriptorImageInfo{{
			ImageView:   view,
			ImageLayout: layout,
		}},
	})
}

func (h *descriptorHeap) writeBuffer(index uint32, buf vk.Buffer, offset, size uint64) {
	h.write(vk.WriteDescriptorSet{
		DstBinding:      bindingBuffers,
		DstArrayElement: index,
		DescriptorType:  vk.DescriptorTypeStorageBuffer,
		PBufferInfo: []vk.DescriptorBufferInfo{{
			Buffer: buf,
			Offset: vk.DeviceSize(offset),
			Range:  vk.DeviceSize(size),
		}},
	})
}

// bufferRange checks a structured view against the buffer and returns its
// byte range. A zero element count views the rest of the buffer.
func bufferRange(r *resource, first uint64, count, stride uint32) (uint64, uint64, error) {
	if r.buffer == vk.NullBuffer {
		return 0, 0, fmt.Errorf("resource %q is not a buffer", r.label)
	}
	if stride == 0 {
		stride = 4
	}
	offset := first * uint64(stride)
	size := uint64(count) * uint64(stride)
	if count == 0 && offset < r.size {
		size = r.size - offset
	}
	if offset+size > r.size {
		return 0, 0, fmt.Errorf("view [%d, %d) outside buffer %q of %d bytes", offset, offset+size, r.label, r.size)
	}
	return offset, size, nil
}

func (d *Device) CreateShaderResourceView(r gpu.Resource, desc gpu.ShaderResourceViewDesc, heap gpu.DescriptorHeap, index uint32) error {
	h, err := d.heapSlot(heap, gpu.HeapKindResourceView, index)
	if err != nil {
		return core.NewResourceCreationError("shader resource view", err)
	}
	res, err := asResource(r)
	if err != nil {
		return core.NewResourceCreationError("shader resource view", err)
	}
	op := "shader resource view " + res.label
	switch desc.Dimension {
	case gpu.ViewBuffer:
		offset, size, err := bufferRange(res, desc.FirstElement, desc.NumElements, desc.StructureByteStride)
		if err != nil {
			return core.NewResourceCreationError(op, err)
		}
		h.writeBuffer(index, res.buffer, offset, size)
	case gpu.ViewTexture2D:
		view, err := res.imageView(desc.Format)
		if err != nil {
			return core.NewResourceCreationError(op, err)
		}
		format := desc.Format
		if format == gpu.FormatUnknown {
			format = res.texture.Format
		}
		binding := bindingTextures
		if format.IsInteger() {
			binding = bindingUintTextures
		}
		layout := vk.ImageLayoutShaderReadOnlyOptimal
		if format.IsDepth() {
			layout = vk.ImageLayoutDepthStencilReadOnlyOptimal
		}
		h.writeImage(binding, index, vk.DescriptorTypeSampledImage, view, layout)
	default:
		return core.NewResourceCreationError(op, fmt.Errorf("unknown view dimension %d", desc.Dimension))
	}
	return nil
}

func (d *Device) CreateUnorderedAccessView(r gpu.Resource, desc gpu.UnorderedAccessViewDesc, heap gpu.DescriptorHeap, index uint32) error {
	h, err := d.heapSlot(heap, gpu.HeapKindResourceView, index)
	if err != nil {
		return core.NewResourceCreationError("unordered access view", err)
	}
	res, err := asResource(r)
	if err != nil {
		return core.NewResourceCreationError("unordered access view", err)
	}
	op := "unordered access view " + res.label
	switch desc.Dimension {
	case gpu.ViewBuffer:
		offset, size, err := bufferRange(res, desc.FirstElement, desc.NumElements, desc.StructureByteStride)
		if err != nil {
			return core.NewResourceCreationError(op, err)
		}
		h.writeBuffer(index, res.buffer, offset, size)
	case gpu.ViewTexture2D:
		view, err := res.imageView(desc.Format)
		if err != nil {
			return core.NewResourceCreationError(op, err)
		}
		h.writeImage(bindingImages, index, vk.DescriptorTypeStorageImage, view, vk.ImageLayoutGeneral)
	default:
		return core.NewResourceCreationError(op, fmt.Errorf("unknown view dimension %d", desc.Dimension))
	}
	return nil
}

func (d *Device) newSampler(desc gpu.SamplerDesc) (vk.Sampler, error) {
	filter, mip := toFilter(desc.Filter)
	address := toAddress(desc.Address)
	var s vk.Sampler
	res := vk.CreateSampler(d.handle, &vk.SamplerCreateInfo{
		SType:            vk.StructureTypeSamplerCreateInfo,
		MagFilter:        filter,
		MinFilter:        filter,
		MipmapMode:       mip,
		AddressModeU:     address,
		AddressModeV:     address,
		AddressModeW:     address,
		MaxAnisotropy:    1,
		CompareOp:        vk.CompareOpAlways,
		MaxLod:           1,
		BorderColor:      toBorder(desc.Border),
		AnisotropyEnable: vk.False,
	}, nil, &s)
	if err := check("vkCreateSampler", res); err != nil {
		return nil, err
	}
	return s, nil
}

func (d *Device) CreateSampler(desc gpu.SamplerDesc, heap gpu.DescriptorHeap, index uint32) error {
	h, err := d.heapSlot(heap, gpu.HeapKindSampler, index)
	if err != nil {
		return core.NewResourceCreationError("sampler", err)
	}
	s, err := d.newSampler(desc)
	if err != nil {
		return core.NewResourceCreationError("sampler", err)
	}
	h.samplers = append(h.samplers, s)
	h.write(vk.WriteDescriptorSet{
		DstArrayElement: index,
		DescriptorType:  vk.DescriptorTypeSampler,
		PImageInfo:      []vk.DescriptorImageInfo{{Sampler: s}},
	})
	return nil
}
