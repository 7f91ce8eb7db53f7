package vulkan

import (
	"errors"
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

// resource is a buffer or a 2D texture with its own memory allocation.
type resource struct {
	dev   *Device
	label string
	heap  gpu.HeapType
	size  uint64

	buffer  vk.Buffer
	image   vk.Image
	memory  vk.DeviceMemory
	texture *gpu.TextureDesc

	// views are destroyed with the resource.
	views  []vk.ImageView
	mapped []byte

	// initialized is false until the first barrier or render pass gives
	// the image a defined layout.
	initialized bool
	// swapchainOwned images are destroyed by the swapchain.
	swapchainOwned bool
	// cbvSet binds the buffer as a root constant buffer view.
	cbvSet vk.DescriptorSet

	released bool
}

var _ gpu.Resource = (*resource)(nil)

func (r *resource) Label() string      { return r.label }
func (r *resource) Heap() gpu.HeapType { return r.heap }
func (r *resource) Size() uint64       { return r.size }

func (r *resource) Texture() (gpu.TextureDesc, bool) {
	if r.texture == nil {
		return gpu.TextureDesc{}, false
	}
	return *r.texture, true
}

func (r *resource) subresource() vk.ImageSubresourceRange {
	return vk.ImageSubresourceRange{
		AspectMask: aspectOf(r.texture.Format),
		LevelCount: 1,
		LayerCount: 1,
	}
}

// Map keeps the memory mapped until Unmap. Repeated calls return the same
// slice.
func (r *resource) Map() ([]byte, error) {
	if r.heap == gpu.HeapDefault {
		return nil, fmt.Errorf("resource %q is not CPU visible", r.label)
	}
	if r.mapped != nil {
		return r.mapped, nil
	}
	var ptr unsafe.Pointer
	res := vk.MapMemory(r.dev.handle, r.memory, 0, vk.DeviceSize(r.size), 0, &ptr)
	if err := check("vkMapMemory", res); err != nil {
		return nil, err
	}
	r.mapped = unsafe.Slice((*byte)(ptr), r.size)
	return r.mapped, nil
}

func (r *resource) Unmap() {
	if r.mapped == nil {
		return
	}
	vk.UnmapMemory(r.dev.handle, r.memory)
	r.mapped = nil
}

func (r *resource) Release() {
	if r.released {
		return
	}
	r.released = true
	d := r.dev.handle
	r.Unmap()
	for _, v := range r.views {
		r.dev.passes.forget(v)
		vk.DestroyImageView(d, v, nil)
	}
	r.views = nil
	if r.cbvSet != nil {
		r.dev.locks.safeCall(lockDescriptors, func() error {
			return check("vkFreeDescriptorSets", vk.FreeDescriptorSets(d, r.dev.cbvPool, 1, &r.cbvSet))
		})
		r.cbvSet = nil
	}
	if r.swapchainOwned {
		return
	}
	if r.buffer != vk.NullBuffer {
		vk.DestroyBuffer(d, r.buffer, nil)
		r.buffer = vk.NullBuffer
	}
	if r.image != nil {
		vk.DestroyImage(d, r.image, nil)
		r.image = nil
	}
	if r.memory != vk.NullDeviceMemory {
		vk.FreeMemory(d, r.memory, nil)
		r.memory = vk.NullDeviceMemory
	}
}

// constantSet returns the descriptor set binding the buffer as a dynamic
// uniform buffer, creating it on first use.
func (r *resource) constantSet() (vk.DescriptorSet, error) {
	if r.cbvSet != nil {
		return r.cbvSet, nil
	}
	if r.buffer == vk.NullBuffer {
		return nil, fmt.Errorf("resource %q is not a buffer", r.label)
	}
	var set vk.DescriptorSet
	err := r.dev.locks.safeCall(lockDescriptors, func() error {
		res := vk.AllocateDescriptorSets(r.dev.handle, &vk.DescriptorSetAllocateInfo{
			SType:              vk.StructureTypeDescriptorSetAllocateInfo,
			DescriptorPool:     r.dev.cbvPool,
			DescriptorSetCount: 1,
			PSetLayouts:        []vk.DescriptorSetLayout{r.dev.cbvLayout},
		}, &set)
		if err := check("vkAllocateDescriptorSets", res); err != nil {
			return err
		}
		rng := uint64(cbvRange)
		if r.size < rng {
			rng = r.size
		}
		vk.UpdateDescriptorSets(r.dev.handle, 1, []vk.WriteDescriptorSet{{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeUniformBufferDynamic,
			PBufferInfo: []vk.DescriptorBufferInfo{{
				Buffer: r.buffer,
				Range:  vk.DeviceSize(rng),
			}},
		}}, 0, nil)
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.cbvSet = set
	return set, nil
}

func (d *Device) CreateBuffer(heap gpu.HeapType, desc gpu.BufferDesc, initial gpu.ResourceState) (gpu.Resource, error) {
	op := "buffer " + desc.Label
	if desc.Size == 0 {
		return nil, core.NewResourceCreationError(op, errors.New("zero sized buffer"))
	}
	r := &resource{dev: d, label: desc.Label, heap: heap, size: desc.Size}
	res := vk.CreateBuffer(d.handle, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(desc.Size),
		Usage:       vk.BufferUsageFlags(bufferUsage),
		SharingMode: vk.SharingModeExclusive,
	}, nil, &r.buffer)
	if err := creation(op, "vkCreateBuffer", res); err != nil {
		return nil, err
	}
	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.handle, r.buffer, &reqs)
	mem, err := d.allocate(reqs, heap)
	if err != nil {
		r.Release()
		return nil, core.NewResourceCreationError(op, err)
	}
	r.memory = mem
	if err := creation(op, "vkBindBufferMemory", vk.BindBufferMemory(d.handle, r.buffer, r.memory, 0)); err != nil {
		r.Release()
		return nil, err
	}
	return r, nil
}

// CreateTexture creates a single mip 2D texture. Vulkan has no optimized
// clear value so clear is ignored.
func (d *Device) CreateTexture(heap gpu.HeapType, desc gpu.TextureDesc, initial gpu.ResourceState, clear *gpu.ClearValue) (gpu.Resource, error) {
	op := "texture " + desc.Label
	format := toFormat(desc.Format)
	if format == vk.FormatUndefined {
		return nil, core.NewResourceCreationError(op, fmt.Errorf("unsupported format %s", desc.Format))
	}
	if desc.Width == 0 || desc.Height == 0 {
		return nil, core.NewResourceCreationError(op, fmt.Errorf("invalid size %dx%d", desc.Width, desc.Height))
	}
	if heap != gpu.HeapDefault {
		return nil, core.NewResourceCreationError(op, errors.New("textures live in the default heap"))
	}
	tex := desc
	r := &resource{dev: d, label: desc.Label, heap: heap, texture: &tex}
	res := vk.CreateImage(d.handle, &vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    format,
		Extent: vk.Extent3D{
			Width:  desc.Width,
			Height: desc.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         toImageUsage(desc.Usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}, nil, &r.image)
	if err := creation(op, "vkCreateImage", res); err != nil {
		return nil, err
	}
	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.handle, r.image, &reqs)
	mem, err := d.allocate(reqs, heap)
	if err != nil {
		r.Release()
		return nil, core.NewResourceCreationError(op, err)
	}
	r.memory = mem
	reqs.Deref()
	r.size = uint64(reqs.Size)
	if err := creation(op, "vkBindImageMemory", vk.BindImageMemory(d.handle, r.image, r.memory, 0)); err != nil {
		r.Release()
		return nil, err
	}
	return r, nil
}

// imageView creates a view of r owned by r.
func (r *resource) imageView(format gpu.Format) (vk.ImageView, error) {
	if r.texture == nil {
		return nil, fmt.Errorf("resource %q is not a texture", r.label)
	}
	if format == gpu.FormatUnknown {
		format = r.texture.Format
	}
	vkFormat := toFormat(format)
	if vkFormat == vk.FormatUndefined {
		return nil, fmt.Errorf("unsupported view format %s", format)
	}
	var view vk.ImageView
	res := vk.CreateImageView(r.dev.handle, &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    r.image,
		ViewType: vk.ImageViewType2d,
		Format:   vkFormat,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: aspectOf(format),
			LevelCount: 1,
			LayerCount: 1,
		},
	}, nil, &view)
	if err := check("vkCreateImageView", res); err != nil {
		return nil, err
	}
	r.views = append(r.views, view)
	return view, nil
}

// targetView is a render target or depth stencil view.
type targetView struct {
	res    *resource
	view   vk.ImageView
	format gpu.Format
}

func (v *targetView) Resource() gpu.Resource { return v.res }
func (v *targetView) Format() gpu.Format     { return v.format }

func (v *targetView) size() (uint32, uint32) {
	return v.res.texture.Width, v.res.texture.Height
}

func (d *Device) CreateRenderTargetView(r gpu.Resource, format gpu.Format) (gpu.RenderTargetView, error) {
	return d.targetView("render target view", r, format)
}

func (d *Device) CreateDepthStencilView(r gpu.Resource, format gpu.Format) (gpu.DepthStencilView, error) {
	if !format.IsDepth() {
		return nil, core.NewResourceCreationError("depth stencil view", fmt.Errorf("%s is not a depth format", format))
	}
	return d.targetView("depth stencil view", r, format)
}

func (d *Device) targetView(op string, r gpu.Resource, format gpu.Format) (*targetView, error) {
	res, err := asResource(r)
	if err != nil {
		return nil, core.NewResourceCreationError(op, err)
	}
	if format == gpu.FormatUnknown && res.texture != nil {
		format = res.texture.Format
	}
	view, err := res.imageView(format)
	if err != nil {
		return nil, core.NewResourceCreationError(op+" "+res.label, err)
	}
	return &targetView{res: res, view: view, format: format}, nil
}
