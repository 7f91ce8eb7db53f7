package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

var formats = map[gpu.Format]vk.Format{
	gpu.FormatRGBA8Unorm:     vk.FormatR8g8b8a8Unorm,
	gpu.FormatRGBA8UnormSRGB: vk.FormatR8g8b8a8Srgb,
	gpu.FormatBGRA8Unorm:     vk.FormatB8g8r8a8Unorm,
	gpu.FormatBGRA8UnormSRGB: vk.FormatB8g8r8a8Srgb,
	gpu.FormatRGBA16Uint:     vk.FormatR16g16b16a16Uint,
	gpu.FormatRGBA16Float:    vk.FormatR16g16b16a16Sfloat,
	gpu.FormatR32Uint:        vk.FormatR32Uint,
	gpu.FormatR32Float:       vk.FormatR32Sfloat,
	gpu.FormatRGB32Float:     vk.FormatR32g32b32Sfloat,
	gpu.FormatD32Float:       vk.FormatD32Sfloat,
}

func toFormat(f gpu.Format) vk.Format {
	if v, ok := formats[f]; ok {
		return v
	}
	return vk.FormatUndefined
}

func aspectOf(f gpu.Format) vk.ImageAspectFlags {
	if f.IsDepth() {
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	}
	return vk.ImageAspectFlags(vk.ImageAspectColorBit)
}

func toImageUsage(u gpu.TextureUsage) vk.ImageUsageFlags {
	var flags vk.ImageUsageFlagBits
	if u&gpu.TextureUsageShaderResource != 0 {
		flags |= vk.ImageUsageSampledBit
	}
	if u&gpu.TextureUsageRenderTarget != 0 {
		flags |= vk.ImageUsageColorAttachmentBit
	}
	if u&gpu.TextureUsageDepthStencil != 0 {
		flags |= vk.ImageUsageDepthStencilAttachmentBit
	}
	if u&gpu.TextureUsageUnorderedAccess != 0 {
		flags |= vk.ImageUsageStorageBit
	}
	if u&gpu.TextureUsageCopyDest != 0 {
		flags |= vk.ImageUsageTransferDstBit
	}
	return vk.ImageUsageFlags(flags)
}

// bufferUsage is shared by every buffer. Views decide how a buffer is read.
const bufferUsage = vk.BufferUsageTransferSrcBit | vk.BufferUsageTransferDstBit |
	vk.BufferUsageUniformBufferBit | vk.BufferUsageStorageBufferBit |
	vk.BufferUsageIndexBufferBit | vk.BufferUsageVertexBufferBit

func memoryProperties(h gpu.HeapType) vk.MemoryPropertyFlagBits {
	switch h {
	case gpu.HeapUpload:
		return vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit
	case gpu.HeapReadback:
		return vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCachedBit
	}
	return vk.MemoryPropertyDeviceLocalBit
}

func toCompare(c gpu.CompareFunc) vk.CompareOp {
	switch c {
	case gpu.CompareLess:
		return vk.CompareOpLess
	case gpu.CompareLessEqual:
		return vk.CompareOpLessOrEqual
	case gpu.CompareEqual:
		return vk.CompareOpEqual
	case gpu.CompareGreater:
		return vk.CompareOpGreater
	case gpu.CompareAlways:
		return vk.CompareOpAlways
	}
	return vk.CompareOpNever
}

func toCull(c gpu.CullMode) vk.CullModeFlags {
	switch c {
	case gpu.CullBack:
		return vk.CullModeFlags(vk.CullModeBackBit)
	case gpu.CullFront:
		return vk.CullModeFlags(vk.CullModeFrontBit)
	}
	return vk.CullModeFlags(vk.CullModeNone)
}

func toFilter(f gpu.Filter) (vk.Filter, vk.SamplerMipmapMode) {
	if f == gpu.FilterLinear {
		return vk.FilterLinear, vk.SamplerMipmapModeLinear
	}
	return vk.FilterNearest, vk.SamplerMipmapModeNearest
}

func toAddress(a gpu.AddressMode) vk.SamplerAddressMode {
	switch a {
	case gpu.AddressClamp:
		return vk.SamplerAddressModeClampToEdge
	case gpu.AddressBorder:
		return vk.SamplerAddressModeClampToBorder
	}
	return vk.SamplerAddressModeRepeat
}

func toBorder(b gpu.BorderColor) vk.BorderColor {
	switch b {
	case gpu.BorderOpaqueBlack:
		return vk.BorderColorFloatOpaqueBlack
	case gpu.BorderOpaqueWhite:
		return vk.BorderColorFloatOpaqueWhite
	}
	return vk.BorderColorFloatTransparentBlack
}

func toIndexType(f gpu.IndexFormat) vk.IndexType {
	if f == gpu.IndexUint16 {
		return vk.IndexTypeUint16
	}
	return vk.IndexTypeUint32
}

func toLoadOp(op gpu.LoadOp) vk.AttachmentLoadOp {
	switch op {
	case gpu.LoadOpClear:
		return vk.AttachmentLoadOpClear
	case gpu.LoadOpDontCare:
		return vk.AttachmentLoadOpDontCare
	}
	return vk.AttachmentLoadOpLoad
}

func toStages(v gpu.ShaderVisibility) vk.ShaderStageFlags {
	switch v {
	case gpu.VisibilityVertex:
		return vk.ShaderStageFlags(vk.ShaderStageVertexBit)
	case gpu.VisibilityPixel:
		return vk.ShaderStageFlags(vk.ShaderStageFragmentBit)
	case gpu.VisibilityCompute:
		return vk.ShaderStageFlags(vk.ShaderStageComputeBit)
	}
	return vk.ShaderStageFlags(vk.ShaderStageAll)
}

func fromDeviceType(t vk.PhysicalDeviceType) string {
	switch t {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return "integrated"
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return "discrete"
	case vk.PhysicalDeviceTypeVirtualGpu:
		return "virtual"
	case vk.PhysicalDeviceTypeCpu:
		return "cpu"
	}
	return "other"
}
