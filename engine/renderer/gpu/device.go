package gpu

import "time"

// FeatureLevel is the minimum capability set a device must expose.
type FeatureLevel uint32

const (
	// FeatureLevelBindless requires descriptor indexing with partially
	// bound, runtime sized arrays in every shader stage.
	FeatureLevelBindless FeatureLevel = 1
)

// ConstantBufferAlignment is the offset granularity of a root constant
// buffer view.
const ConstantBufferAlignment = 256

type AdapterInfo struct {
	Name       string
	VendorID   uint32
	DeviceID   uint32
	Type       string
	APIVersion string
}

// Instance enumerates adapters in platform order.
type Instance interface {
	Adapters() ([]Adapter, error)
	Surface() Surface
	Release()
}

type Adapter interface {
	Info() AdapterInfo
	// Open creates a device at the requested feature level or fails.
	Open(level FeatureLevel) (Device, error)
}

// Surface is the presentation target of a window.
type Surface interface {
	Size() (uint32, uint32)
}

// Device is the factory of every GPU object. All Create* calls return a
// *core.ResourceCreationError on failure.
type Device interface {
	Queue() Queue

	CreateBuffer(heap HeapType, desc BufferDesc, initial ResourceState) (Resource, error)
	CreateTexture(heap HeapType, desc TextureDesc, initial ResourceState, clear *ClearValue) (Resource, error)
	CreateCommandAllocator() (CommandAllocator, error)
	CreateCommandList(alloc CommandAllocator) (CommandList, error)
	CreateFence(initial uint64) (Fence, error)
	CreateDescriptorHeap(desc DescriptorHeapDesc) (DescriptorHeap, error)
	// CreateRootSignature takes the output of SerializeRootSignature.
	CreateRootSignature(blob []byte) (RootSignature, error)
	CreateGraphicsPipeline(desc GraphicsPipelineDesc) (Pipeline, error)
	CreateComputePipeline(desc ComputePipelineDesc) (Pipeline, error)
	CreateSwapchain(surface Surface, desc SwapchainDesc) (Swapchain, error)

	CreateShaderResourceView(r Resource, desc ShaderResourceViewDesc, heap DescriptorHeap, index uint32) error
	CreateUnorderedAccessView(r Resource, desc UnorderedAccessViewDesc, heap DescriptorHeap, index uint32) error
	CreateSampler(desc SamplerDesc, heap DescriptorHeap, index uint32) error
	CreateRenderTargetView(r Resource, format Format) (RenderTargetView, error)
	CreateDepthStencilView(r Resource, format Format) (DepthStencilView, error)

	WaitIdle() error
	Release()
}

// Resource is a committed allocation exclusively owned by whoever created
// it. Use Shared when more than one owner must keep it alive.
type Resource interface {
	Label() string
	Heap() HeapType
	// Size is the allocation size in bytes.
	Size() uint64
	// Texture returns the description of a texture resource.
	Texture() (TextureDesc, bool)
	// Map returns the CPU view of an upload or readback resource.
	Map() ([]byte, error)
	Unmap()
	Release()
}

type RenderTargetView interface {
	Resource() Resource
	Format() Format
}

type DepthStencilView interface {
	Resource() Resource
	Format() Format
}

type DescriptorHeap interface {
	Kind() HeapKind
	Capacity() uint32
	Release()
}

type CommandAllocator interface {
	// Reset recycles the memory of every list recorded from the allocator.
	// The caller guarantees none of them is still executing.
	Reset() error
	Release()
}

// Queue executes command lists in submission order.
type Queue interface {
	Submit(lists ...CommandList) error
	// Signal sets the fence to value once all prior submissions complete.
	Signal(f Fence, value uint64) error
}

// Fence is a monotonically increasing completion counter.
type Fence interface {
	Completed() uint64
	// Wait blocks until Completed() >= value or the timeout expires. It
	// returns false on timeout.
	Wait(value uint64, timeout time.Duration) (bool, error)
	Release()
}

type Swapchain interface {
	// BeginFrame returns the index of the next writable back-buffer.
	BeginFrame() (uint32, error)
	// EndFrame presents the back-buffer returned by the last BeginFrame.
	EndFrame() error
	RenderTarget(index uint32) (Resource, RenderTargetView)
	BufferCount() uint32
	Format() Format
	Release()
}

type Pipeline interface {
	Label() string
	Compute() bool
	Release()
}

type RootSignature interface {
	Desc() RootSignatureDesc
	Release()
}

type Bytecode []byte

// ShaderCompiler turns source text into device bytecode. Failures are
// *core.ShaderCompileError with the compiler diagnostic untouched.
type ShaderCompiler interface {
	Compile(source, entryPoint, profile string) (Bytecode, error)
}

type ShaderStage struct {
	Bytecode   Bytecode
	EntryPoint string
}

type InputElement struct {
	Semantic string
	Format   Format
	Offset   uint32
}

type CullMode uint8

const (
	CullNone CullMode = iota
	CullBack
	CullFront
)

type CompareFunc uint8

const (
	CompareNever CompareFunc = iota
	CompareLess
	CompareLessEqual
	CompareEqual
	CompareGreater
	CompareAlways
)

type DepthState struct {
	Test    bool
	Write   bool
	Compare CompareFunc
}

type GraphicsPipelineDesc struct {
	Label        string
	Signature    RootSignature
	VS           ShaderStage
	PS           ShaderStage
	InputLayout  []InputElement
	VertexStride uint32
	Cull         CullMode
	Depth        DepthState
	RTVFormats   []Format
	DSVFormat    Format
}

type ComputePipelineDesc struct {
	Label     string
	Signature RootSignature
	CS        ShaderStage
}

// CommandList records GPU work. Root setters index the parameters of the
// bound root signature.
type CommandList interface {
	Reset(alloc CommandAllocator) error
	Close() error

	ResourceBarrier(barriers ...Barrier)
	SetDescriptorHeaps(heaps ...DescriptorHeap)
	BeginRenderPass(desc RenderPassDesc)
	EndRenderPass()
	SetPipeline(p Pipeline)

	SetGraphicsRootSignature(s RootSignature)
	SetComputeRootSignature(s RootSignature)
	SetGraphicsRoot32BitConstants(param uint32, values []uint32, offset uint32)
	SetComputeRoot32BitConstants(param uint32, values []uint32, offset uint32)
	SetGraphicsRootDescriptorTable(param uint32, baseIndex uint32)
	SetComputeRootDescriptorTable(param uint32, baseIndex uint32)
	SetGraphicsRootConstantBufferView(param uint32, r Resource, offset uint64)

	SetViewport(v Viewport)
	SetScissor(r Rect)
	SetVertexBuffer(slot uint32, r Resource, offset uint64, stride uint32)
	SetIndexBuffer(r Resource, offset uint64, format IndexFormat)

	DrawInstanced(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	DrawIndexedInstanced(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32)
	Dispatch(x, y, z uint32)

	CopyBufferRegion(dst Resource, dstOffset uint64, src Resource, srcOffset uint64, size uint64)
	// CopyBufferToTexture copies tightly packed rows starting at srcOffset
	// into the whole texture.
	CopyBufferToTexture(dst Resource, src Resource, srcOffset uint64)

	Release()
}
