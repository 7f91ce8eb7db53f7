package gpu

import "strings"

// HeapType selects the memory a committed resource lives in.
type HeapType uint8

const (
	// HeapDefault is device local and not CPU visible.
	HeapDefault HeapType = iota
	// HeapUpload is CPU writable and GPU readable.
	HeapUpload
	// HeapReadback is GPU writable and CPU readable.
	HeapReadback
)

func (h HeapType) String() string {
	switch h {
	case HeapDefault:
		return "default"
	case HeapUpload:
		return "upload"
	case HeapReadback:
		return "readback"
	}
	return "unknown"
}

// ResourceState is a bitmask describing how a resource is about to be used.
type ResourceState uint32

const (
	StateCommon                  ResourceState = 0
	StateVertexAndConstantBuffer ResourceState = 1 << 0
	StateIndexBuffer             ResourceState = 1 << 1
	StateRenderTarget            ResourceState = 1 << 2
	StateUnorderedAccess         ResourceState = 1 << 3
	StateDepthWrite              ResourceState = 1 << 4
	StateDepthRead               ResourceState = 1 << 5
	StateNonPixelShaderResource  ResourceState = 1 << 6
	StatePixelShaderResource     ResourceState = 1 << 7
	StateCopyDest                ResourceState = 1 << 8
	StateCopySource              ResourceState = 1 << 9
	StatePresent                 ResourceState = 1 << 10

	StateShaderResource = StateNonPixelShaderResource | StatePixelShaderResource
	StateGenericRead    = StateVertexAndConstantBuffer | StateIndexBuffer | StateShaderResource | StateCopySource
)

var stateNames = []struct {
	state ResourceState
	name  string
}{
	{StateVertexAndConstantBuffer, "VertexAndConstantBuffer"},
	{StateIndexBuffer, "IndexBuffer"},
	{StateRenderTarget, "RenderTarget"},
	{StateUnorderedAccess, "UnorderedAccess"},
	{StateDepthWrite, "DepthWrite"},
	{StateDepthRead, "DepthRead"},
	{StateNonPixelShaderResource, "NonPixelShaderResource"},
	{StatePixelShaderResource, "PixelShaderResource"},
	{StateCopyDest, "CopyDest"},
	{StateCopySource, "CopySource"},
	{StatePresent, "Present"},
}

func (s ResourceState) String() string {
	if s == StateCommon {
		return "Common"
	}
	var parts []string
	for _, n := range stateNames {
		if s&n.state != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// Has reports whether every bit of other is set in s.
func (s ResourceState) Has(other ResourceState) bool {
	return s&other == other
}

type Format uint8

const (
	FormatUnknown Format = iota
	FormatRGBA8Unorm
	FormatRGBA8UnormSRGB
	FormatBGRA8Unorm
	FormatBGRA8UnormSRGB
	FormatRGBA16Uint
	FormatRGBA16Float
	FormatR32Uint
	FormatR32Float
	FormatRGB32Float
	FormatD32Float
)

var formatInfo = [...]struct {
	name  string
	bytes uint32
}{
	FormatUnknown:        {"Unknown", 0},
	FormatRGBA8Unorm:     {"RGBA8Unorm", 4},
	FormatRGBA8UnormSRGB: {"RGBA8UnormSRGB", 4},
	FormatBGRA8Unorm:     {"BGRA8Unorm", 4},
	FormatBGRA8UnormSRGB: {"BGRA8UnormSRGB", 4},
	FormatRGBA16Uint:     {"RGBA16Uint", 8},
	FormatRGBA16Float:    {"RGBA16Float", 8},
	FormatR32Uint:        {"R32Uint", 4},
	FormatR32Float:       {"R32Float", 4},
	FormatRGB32Float:     {"RGB32Float", 12},
	FormatD32Float:       {"D32Float", 4},
}

func (f Format) String() string {
	if int(f) < len(formatInfo) {
		return formatInfo[f].name
	}
	return "Invalid"
}

// Size is the number of bytes of one texel or vertex element.
func (f Format) Size() uint32 {
	if int(f) < len(formatInfo) {
		return formatInfo[f].bytes
	}
	return 0
}

func (f Format) IsDepth() bool {
	return f == FormatD32Float
}

func (f Format) IsInteger() bool {
	return f == FormatRGBA16Uint || f == FormatR32Uint
}

type TextureUsage uint8

const (
	TextureUsageShaderResource TextureUsage = 1 << iota
	TextureUsageRenderTarget
	TextureUsageDepthStencil
	TextureUsageUnorderedAccess
	TextureUsageCopyDest
)

type BufferDesc struct {
	Size  uint64
	Label string
}

type TextureDesc struct {
	Width  uint32
	Height uint32
	Format Format
	Usage  TextureUsage
	Label  string
}

// ClearValue is the optimized clear value of a render target or depth
// texture.
type ClearValue struct {
	Color   [4]float32
	Depth   float32
	Stencil uint8
}

type ViewDimension uint8

const (
	ViewBuffer ViewDimension = iota
	ViewTexture2D
)

// ShaderResourceViewDesc describes a read-only view. Buffers are viewed as
// NumElements elements of StructureByteStride bytes starting at
// FirstElement.
type ShaderResourceViewDesc struct {
	Dimension           ViewDimension
	Format              Format
	FirstElement        uint64
	NumElements         uint32
	StructureByteStride uint32
}

type UnorderedAccessViewDesc struct {
	Dimension           ViewDimension
	Format              Format
	FirstElement        uint64
	NumElements         uint32
	StructureByteStride uint32
}

// BufferSRV views count elements of stride bytes.
func BufferSRV(count, stride uint32) ShaderResourceViewDesc {
	return ShaderResourceViewDesc{Dimension: ViewBuffer, NumElements: count, StructureByteStride: stride}
}

// TextureSRV views the single mip of a 2D texture.
func TextureSRV(format Format) ShaderResourceViewDesc {
	return ShaderResourceViewDesc{Dimension: ViewTexture2D, Format: format}
}

type Filter uint8

const (
	FilterPoint Filter = iota
	FilterLinear
)

type AddressMode uint8

const (
	AddressWrap AddressMode = iota
	AddressClamp
	AddressBorder
)

type BorderColor uint8

const (
	BorderTransparentBlack BorderColor = iota
	BorderOpaqueBlack
	BorderOpaqueWhite
)

type SamplerDesc struct {
	Filter  Filter
	Address AddressMode
	Border  BorderColor
}

type HeapKind uint8

const (
	HeapKindResourceView HeapKind = iota
	HeapKindSampler
)

func (k HeapKind) String() string {
	if k == HeapKindSampler {
		return "sampler"
	}
	return "resource-view"
}

type DescriptorHeapDesc struct {
	Kind     HeapKind
	Capacity uint32
}

type IndexFormat uint8

const (
	IndexUint32 IndexFormat = iota
	IndexUint16
)

type Viewport struct {
	X, Y, Width, Height float32
	MinDepth, MaxDepth  float32
}

type Rect struct {
	X, Y          int32
	Width, Height uint32
}

type LoadOp uint8

const (
	LoadOpLoad LoadOp = iota
	LoadOpClear
	LoadOpDontCare
)

type ColorAttachment struct {
	View       RenderTargetView
	Load       LoadOp
	ClearColor [4]float32
}

type DepthAttachment struct {
	View       DepthStencilView
	Load       LoadOp
	ClearDepth float32
}

// RenderPassDesc lists the targets a sequence of draws writes. Targets
// must already be in the RenderTarget or DepthWrite state.
type RenderPassDesc struct {
	Colors []ColorAttachment
	Depth  *DepthAttachment
}

type BarrierType uint8

const (
	BarrierTransition BarrierType = iota
	BarrierUAV
)

// Barrier is a resource state transition or an unordered access barrier.
type Barrier struct {
	Type     BarrierType
	Resource Resource
	Before   ResourceState
	After    ResourceState
}

func TransitionBarrier(r Resource, before, after ResourceState) Barrier {
	return Barrier{Type: BarrierTransition, Resource: r, Before: before, After: after}
}

func UAVBarrier(r Resource) Barrier {
	return Barrier{Type: BarrierUAV, Resource: r}
}

type SwapchainDesc struct {
	BufferCount uint32
	Width       uint32
	Height      uint32
	Format      Format
	VSync       bool
}
