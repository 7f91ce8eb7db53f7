// Package gputest is an in-memory gpu.Device that records every command
// instead of executing it. Copies between buffers are carried out on
// submission so uploaded contents can be inspected.
package gputest

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

type Instance struct {
	AdapterList []*Adapter
	surface     *Surface
}

func NewInstance(adapters ...*Adapter) *Instance {
	return &Instance{AdapterList: adapters, surface: &Surface{Width: 1440, Height: 704}}
}

func (i *Instance) Adapters() ([]gpu.Adapter, error) {
	out := make([]gpu.Adapter, len(i.AdapterList))
	for n, a := range i.AdapterList {
		out[n] = a
	}
	return out, nil
}

func (i *Instance) Surface() gpu.Surface { return i.surface }
func (i *Instance) Release()             {}

type Surface struct {
	Width, Height uint32
}

func (s *Surface) Size() (uint32, uint32) { return s.Width, s.Height }

type Adapter struct {
	Name      string
	Supported bool
	Opened    int
	Device    *Device
}

func NewAdapter(name string, supported bool) *Adapter {
	return &Adapter{Name: name, Supported: supported}
}

func (a *Adapter) Info() gpu.AdapterInfo {
	return gpu.AdapterInfo{Name: a.Name, Type: "virtual", APIVersion: "test"}
}

func (a *Adapter) Open(level gpu.FeatureLevel) (gpu.Device, error) {
	a.Opened++
	if !a.Supported {
		return nil, fmt.Errorf("feature level %d not supported", level)
	}
	a.Device = NewDevice()
	return a.Device, nil
}

// Device records created objects. Fail injects an error into the named
// factory method, e.g. Fail["CreateBuffer"].
type Device struct {
	Fail map[string]error

	Resources  []*Resource
	Lists      []*CommandList
	Allocators []*CommandAllocator
	Fences     []*Fence
	Heaps      []*DescriptorHeap
	Signatures []*RootSignature
	Pipelines  []*Pipeline
	Swapchains []*Swapchain
	WaitIdles  int
	Released   bool

	queue *Queue
}

func NewDevice() *Device {
	d := &Device{Fail: map[string]error{}}
	d.queue = &Queue{device: d, AutoComplete: true}
	return d
}

func (d *Device) failure(op string) error {
	if err, ok := d.Fail[op]; ok {
		return core.NewResourceCreationError(op, err)
	}
	return nil
}

func (d *Device) Queue() gpu.Queue { return d.queue }

// FakeQueue exposes the recording queue.
func (d *Device) FakeQueue() *Queue { return d.queue }

func (d *Device) CreateBuffer(heap gpu.HeapType, desc gpu.BufferDesc, initial gpu.ResourceState) (gpu.Resource, error) {
	if err := d.failure("CreateBuffer"); err != nil {
		return nil, err
	}
	if desc.Size == 0 {
		return nil, core.NewResourceCreationError("buffer "+desc.Label, errors.New("zero sized buffer"))
	}
	r := &Resource{label: desc.Label, heap: heap, Initial: initial, Data: make([]byte, desc.Size)}
	d.Resources = append(d.Resources, r)
	return r, nil
}

func (d *Device) CreateTexture(heap gpu.HeapType, desc gpu.TextureDesc, initial gpu.ResourceState, clear *gpu.ClearValue) (gpu.Resource, error) {
	if err := d.failure("CreateTexture"); err != nil {
		return nil, err
	}
	if desc.Width == 0 || desc.Height == 0 || desc.Format == gpu.FormatUnknown {
		return nil, core.NewResourceCreationError("texture "+desc.Label, errors.New("invalid description"))
	}
	size := uint64(desc.Width) * uint64(desc.Height) * uint64(desc.Format.Size())
	tex := desc
	r := &Resource{label: desc.Label, heap: heap, Initial: initial, Data: make([]byte, size), tex: &tex}
	if clear != nil {
		c := *clear
		r.Clear = &c
	}
	d.Resources = append(d.Resources, r)
	return r, nil
}

func (d *Device) CreateCommandAllocator() (gpu.CommandAllocator, error) {
	if err := d.failure("CreateCommandAllocator"); err != nil {
		return nil, err
	}
	a := &CommandAllocator{}
	d.Allocators = append(d.Allocators, a)
	return a, nil
}

func (d *Device) CreateCommandList(alloc gpu.CommandAllocator) (gpu.CommandList, error) {
	if err := d.failure("CreateCommandList"); err != nil {
		return nil, err
	}
	l := &CommandList{Allocator: alloc.(*CommandAllocator), Open: true}
	d.Lists = append(d.Lists, l)
	return l, nil
}

func (d *Device) CreateFence(initial uint64) (gpu.Fence, error) {
	if err := d.failure("CreateFence"); err != nil {
		return nil, err
	}
	f := &Fence{completed: initial}
	d.Fences = append(d.Fences, f)
	return f, nil
}

func (d *Device) CreateDescriptorHeap(desc gpu.DescriptorHeapDesc) (gpu.DescriptorHeap, error) {
	if err := d.failure("CreateDescriptorHeap"); err != nil {
		return nil, err
	}
	h := &DescriptorHeap{kind: desc.Kind, capacity: desc.Capacity, Slots: map[uint32]Descriptor{}}
	d.Heaps = append(d.Heaps, h)
	return h, nil
}

func (d *Device) CreateRootSignature(blob []byte) (gpu.RootSignature, error) {
	if err := d.failure("CreateRootSignature"); err != nil {
		return nil, err
	}
	desc, err := gpu.DeserializeRootSignature(blob)
	if err != nil {
		return nil, core.NewResourceCreationError("root signature", err)
	}
	s := &RootSignature{desc: desc}
	d.Signatures = append(d.Signatures, s)
	return s, nil
}

func (d *Device) CreateGraphicsPipeline(desc gpu.GraphicsPipelineDesc) (gpu.Pipeline, error) {
	if err := d.failure("CreateGraphicsPipeline"); err != nil {
		return nil, err
	}
	p := &Pipeline{label: desc.Label, Graphics: &desc}
	d.Pipelines = append(d.Pipelines, p)
	return p, nil
}

func (d *Device) CreateComputePipeline(desc gpu.ComputePipelineDesc) (gpu.Pipeline, error) {
	if err := d.failure("CreateComputePipeline"); err != nil {
		return nil, err
	}
	p := &Pipeline{label: desc.Label, ComputeDesc: &desc}
	d.Pipelines = append(d.Pipelines, p)
	return p, nil
}

func (d *Device) CreateSwapchain(surface gpu.Surface, desc gpu.SwapchainDesc) (gpu.Swapchain, error) {
	if err := d.failure("CreateSwapchain"); err != nil {
		return nil, err
	}
	sc := &Swapchain{Desc: desc}
	for i := uint32(0); i < desc.BufferCount; i++ {
		r := &Resource{
			label: fmt.Sprintf("back-buffer %d", i),
			heap:  gpu.HeapDefault,
			tex: &gpu.TextureDesc{
				Width: desc.Width, Height: desc.Height, Format: desc.Format,
				Usage: gpu.TextureUsageRenderTarget,
			},
			Initial: gpu.StatePresent,
		}
		sc.Buffers = append(sc.Buffers, r)
		sc.Views = append(sc.Views, &View{resource: r, format: desc.Format})
	}
	d.Swapchains = append(d.Swapchains, sc)
	return sc, nil
}

func (d *Device) CreateShaderResourceView(r gpu.Resource, desc gpu.ShaderResourceViewDesc, heap gpu.DescriptorHeap, index uint32) error {
	return d.writeDescriptor("CreateShaderResourceView", heap, index, Descriptor{Kind: "SRV", Resource: r, SRV: desc})
}

func (d *Device) CreateUnorderedAccessView(r gpu.Resource, desc gpu.UnorderedAccessViewDesc, heap gpu.DescriptorHeap, index uint32) error {
	return d.writeDescriptor("CreateUnorderedAccessView", heap, index, Descriptor{Kind: "UAV", Resource: r, UAV: desc})
}

func (d *Device) CreateSampler(desc gpu.SamplerDesc, heap gpu.DescriptorHeap, index uint32) error {
	return d.writeDescriptor("CreateSampler", heap, index, Descriptor{Kind: "Sampler", Sampler: desc})
}

func (d *Device) writeDescriptor(op string, heap gpu.DescriptorHeap, index uint32, desc Descriptor) error {
	if err := d.failure(op); err != nil {
		return err
	}
	h := heap.(*DescriptorHeap)
	if index >= h.capacity {
		return core.NewResourceCreationError(op, fmt.Errorf("slot %d out of %s heap capacity %d", index, h.kind, h.capacity))
	}
	if (desc.Kind == "Sampler") != (h.kind == gpu.HeapKindSampler) {
		return core.NewResourceCreationError(op, fmt.Errorf("%s descriptor written to %s heap", desc.Kind, h.kind))
	}
	h.Slots[index] = desc
	return nil
}

func (d *Device) CreateRenderTargetView(r gpu.Resource, format gpu.Format) (gpu.RenderTargetView, error) {
	if err := d.failure("CreateRenderTargetView"); err != nil {
		return nil, err
	}
	return &View{resource: r, format: format}, nil
}

func (d *Device) CreateDepthStencilView(r gpu.Resource, format gpu.Format) (gpu.DepthStencilView, error) {
	if err := d.failure("CreateDepthStencilView"); err != nil {
		return nil, err
	}
	return &View{resource: r, format: format}, nil
}

func (d *Device) WaitIdle() error {
	d.WaitIdles++
	return nil
}

func (d *Device) Release() { d.Released = true }

// LiveResources counts resources that were created and not yet released.
func (d *Device) LiveResources() int {
	n := 0
	for _, r := range d.Resources {
		if !r.Released {
			n++
		}
	}
	return n
}

// ResourceByLabel returns the most recent resource created with label.
func (d *Device) ResourceByLabel(label string) *Resource {
	for i := len(d.Resources) - 1; i >= 0; i-- {
		if d.Resources[i].label == label {
			return d.Resources[i]
		}
	}
	return nil
}
