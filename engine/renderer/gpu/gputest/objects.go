package gputest

import (
	"errors"
	"fmt"
	"time"

	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

type Resource struct {
	label    string
	heap     gpu.HeapType
	tex      *gpu.TextureDesc
	Initial  gpu.ResourceState
	Clear    *gpu.ClearValue
	Data     []byte
	Mapped   bool
	Released bool
}

func (r *Resource) Label() string      { return r.label }
func (r *Resource) Heap() gpu.HeapType { return r.heap }
func (r *Resource) Size() uint64       { return uint64(len(r.Data)) }

func (r *Resource) Texture() (gpu.TextureDesc, bool) {
	if r.tex == nil {
		return gpu.TextureDesc{}, false
	}
	return *r.tex, true
}

func (r *Resource) Map() ([]byte, error) {
	if r.heap == gpu.HeapDefault {
		return nil, fmt.Errorf("resource %q is not CPU visible", r.label)
	}
	r.Mapped = true
	return r.Data, nil
}

func (r *Resource) Unmap() { r.Mapped = false }

func (r *Resource) Release() {
	if r.Released {
		panic(fmt.Sprintf("gputest: resource %q released twice", r.label))
	}
	r.Released = true
}

type View struct {
	resource gpu.Resource
	format   gpu.Format
}

func (v *View) Resource() gpu.Resource { return v.resource }
func (v *View) Format() gpu.Format     { return v.format }

// Descriptor is the content of one heap slot.
type Descriptor struct {
	Kind     string
	Resource gpu.Resource
	SRV      gpu.ShaderResourceViewDesc
	UAV      gpu.UnorderedAccessViewDesc
	Sampler  gpu.SamplerDesc
}

type DescriptorHeap struct {
	kind     gpu.HeapKind
	capacity uint32
	Slots    map[uint32]Descriptor
	Released bool
}

func (h *DescriptorHeap) Kind() gpu.HeapKind { return h.kind }
func (h *DescriptorHeap) Capacity() uint32   { return h.capacity }
func (h *DescriptorHeap) Release()           { h.Released = true }

type CommandAllocator struct {
	Resets   int
	Released bool
}

func (a *CommandAllocator) Reset() error {
	a.Resets++
	return nil
}

func (a *CommandAllocator) Release() { a.Released = true }

// Fence completes values either when the queue signals them (AutoComplete)
// or when the test calls Complete. OnWait runs when a wait would block and
// may advance the fence.
type Fence struct {
	completed uint64
	pending   []uint64
	Signals   []uint64
	Waits     []uint64
	OnWait    func(f *Fence, value uint64)
	Released  bool
}

func (f *Fence) Completed() uint64 { return f.completed }

// Complete marks value as reached by the GPU.
func (f *Fence) Complete(value uint64) {
	if value > f.completed {
		f.completed = value
	}
	kept := f.pending[:0]
	for _, p := range f.pending {
		if p > f.completed {
			kept = append(kept, p)
		}
	}
	f.pending = kept
}

// CompletePending completes every value signaled so far.
func (f *Fence) CompletePending() {
	for _, p := range f.pending {
		f.Complete(p)
	}
}

func (f *Fence) Wait(value uint64, timeout time.Duration) (bool, error) {
	f.Waits = append(f.Waits, value)
	if f.completed >= value {
		return true, nil
	}
	if f.OnWait != nil {
		f.OnWait(f, value)
	}
	return f.completed >= value, nil
}

func (f *Fence) Release() { f.Released = true }

// Queue records submissions. With AutoComplete set, a signal completes
// immediately as if the GPU were infinitely fast.
type Queue struct {
	device       *Device
	AutoComplete bool
	Submitted    []*CommandList
}

func (q *Queue) Submit(lists ...gpu.CommandList) error {
	for _, l := range lists {
		cl := l.(*CommandList)
		if cl.Open {
			return errors.New("gputest: submitted a command list that is still recording")
		}
		cl.execute()
		cl.Submissions++
		q.Submitted = append(q.Submitted, cl)
	}
	return nil
}

func (q *Queue) Signal(f gpu.Fence, value uint64) error {
	fence := f.(*Fence)
	fence.Signals = append(fence.Signals, value)
	if q.AutoComplete {
		fence.Complete(value)
	} else {
		fence.pending = append(fence.pending, value)
	}
	return nil
}

type Swapchain struct {
	Desc     gpu.SwapchainDesc
	Buffers  []*Resource
	Views    []*View
	Current  uint32
	Begins   int
	Presents int
	Released bool
	// BeginErr is returned by BeginFrame when set.
	BeginErr error
}

func (s *Swapchain) BeginFrame() (uint32, error) {
	if s.BeginErr != nil {
		return 0, s.BeginErr
	}
	s.Current = uint32(s.Begins) % s.Desc.BufferCount
	s.Begins++
	return s.Current, nil
}

func (s *Swapchain) EndFrame() error {
	s.Presents++
	return nil
}

func (s *Swapchain) RenderTarget(i uint32) (gpu.Resource, gpu.RenderTargetView) {
	return s.Buffers[i], s.Views[i]
}

func (s *Swapchain) BufferCount() uint32 { return s.Desc.BufferCount }
func (s *Swapchain) Format() gpu.Format  { return s.Desc.Format }
func (s *Swapchain) Release()            { s.Released = true }

type Pipeline struct {
	label       string
	Graphics    *gpu.GraphicsPipelineDesc
	ComputeDesc *gpu.ComputePipelineDesc
	Released    bool
}

func (p *Pipeline) Label() string { return p.label }
func (p *Pipeline) Compute() bool { return p.ComputeDesc != nil }
func (p *Pipeline) Release()      { p.Released = true }

type RootSignature struct {
	desc     gpu.RootSignatureDesc
	Released bool
}

func (s *RootSignature) Desc() gpu.RootSignatureDesc { return s.desc }
func (s *RootSignature) Release()                    { s.Released = true }

// Compiler returns fixed bytecode, or Err when set.
type Compiler struct {
	Err   error
	Calls []string
}

func (c *Compiler) Compile(source, entryPoint, profile string) (gpu.Bytecode, error) {
	c.Calls = append(c.Calls, entryPoint+"/"+profile)
	if c.Err != nil {
		return nil, c.Err
	}
	return gpu.Bytecode{0x03, 0x02, 0x23, 0x07}, nil
}
