package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

// stateUsage is the synchronization scope of one resource state bit.
type stateUsage struct {
	state  gpu.ResourceState
	stages vk.PipelineStageFlagBits
	access vk.AccessFlagBits
}

var stateUsages = []stateUsage{
	{gpu.StateVertexAndConstantBuffer,
		vk.PipelineStageVertexInputBit | vk.PipelineStageVertexShaderBit | vk.PipelineStageFragmentShaderBit | vk.PipelineStageComputeShaderBit,
		vk.AccessVertexAttributeReadBit | vk.AccessUniformReadBit},
	{gpu.StateIndexBuffer, vk.PipelineStageVertexInputBit, vk.AccessIndexReadBit},
	{gpu.StateRenderTarget, vk.PipelineStageColorAttachmentOutputBit,
		vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit},
	{gpu.StateUnorderedAccess, vk.PipelineStageComputeShaderBit | vk.PipelineStageFragmentShaderBit,
		vk.AccessShaderReadBit | vk.AccessShaderWriteBit},
	{gpu.StateDepthWrite, vk.PipelineStageEarlyFragmentTestsBit | vk.PipelineStageLateFragmentTestsBit,
		vk.AccessDepthStencilAttachmentReadBit | vk.AccessDepthStencilAttachmentWriteBit},
	{gpu.StateDepthRead, vk.PipelineStageEarlyFragmentTestsBit | vk.PipelineStageLateFragmentTestsBit,
		vk.AccessDepthStencilAttachmentReadBit},
	{gpu.StateNonPixelShaderResource, vk.PipelineStageVertexShaderBit | vk.PipelineStageComputeShaderBit, vk.AccessShaderReadBit},
	{gpu.StatePixelShaderResource, vk.PipelineStageFragmentShaderBit, vk.AccessShaderReadBit},
	{gpu.StateCopyDest, vk.PipelineStageTransferBit, vk.AccessTransferWriteBit},
	{gpu.StateCopySource, vk.PipelineStageTransferBit, vk.AccessTransferReadBit},
	{gpu.StatePresent, vk.PipelineStageBottomOfPipeBit, 0},
}

// scope returns the stages and accesses covered by state. Common waits on
// everything.
func scope(state gpu.ResourceState) (vk.PipelineStageFlagBits, vk.AccessFlagBits) {
	if state == gpu.StateCommon {
		return vk.PipelineStageAllCommandsBit, vk.AccessMemoryReadBit | vk.AccessMemoryWriteBit
	}
	var stages vk.PipelineStageFlagBits
	var access vk.AccessFlagBits
	for _, u := range stateUsages {
		if state&u.state != 0 {
			stages |= u.stages
			access |= u.access
		}
	}
	if stages == 0 {
		stages = vk.PipelineStageTopOfPipeBit
	}
	return stages, access
}

// layoutOf is the image layout a texture must be in for state. Writable
// states win over read states.
func layoutOf(state gpu.ResourceState) vk.ImageLayout {
	switch {
	case state.Has(gpu.StateRenderTarget):
		return vk.ImageLayoutColorAttachmentOptimal
	case state.Has(gpu.StateDepthWrite):
		return vk.ImageLayoutDepthStencilAttachmentOptimal
	case state.Has(gpu.StateUnorderedAccess):
		return vk.ImageLayoutGeneral
	case state.Has(gpu.StateCopyDest):
		return vk.ImageLayoutTransferDstOptimal
	case state.Has(gpu.StatePresent):
		return vk.ImageLayoutPresentSrc
	case state.Has(gpu.StateCopySource):
		return vk.ImageLayoutTransferSrcOptimal
	case state.Has(gpu.StateDepthRead):
		return vk.ImageLayoutDepthStencilReadOnlyOptimal
	case state&gpu.StateShaderResource != 0:
		return vk.ImageLayoutShaderReadOnlyOptimal
	}
	return vk.ImageLayoutGeneral
}

// barrierBatch collects the barriers of one ResourceBarrier call into a
// single vkCmdPipelineBarrier.
type barrierBatch struct {
	srcStages vk.PipelineStageFlagBits
	dstStages vk.PipelineStageFlagBits
	memory    []vk.MemoryBarrier
	buffers   []vk.BufferMemoryBarrier
	images    []vk.ImageMemoryBarrier
}

func (b *barrierBatch) empty() bool {
	return len(b.memory) == 0 && len(b.buffers) == 0 && len(b.images) == 0
}

// uav orders every shader write before every later shader access.
func (b *barrierBatch) uav() {
	stages := vk.PipelineStageComputeShaderBit | vk.PipelineStageFragmentShaderBit
	b.srcStages |= stages
	b.dstStages |= stages
	b.memory = append(b.memory, vk.MemoryBarrier{
		SType:         vk.StructureTypeMemoryBarrier,
		SrcAccessMask: vk.AccessFlags(vk.AccessShaderWriteBit),
		DstAccessMask: vk.AccessFlags(vk.AccessShaderReadBit | vk.AccessShaderWriteBit),
	})
}

func (b *barrierBatch) buffer(buf vk.Buffer, before, after gpu.ResourceState) {
	srcStages, srcAccess := scope(before)
	dstStages, dstAccess := scope(after)
	b.srcStages |= srcStages
	b.dstStages |= dstStages
	b.buffers = append(b.buffers, vk.BufferMemoryBarrier{
		SType:               vk.StructureTypeBufferMemoryBarrier,
		SrcAccessMask:       vk.AccessFlags(srcAccess),
		DstAccessMask:       vk.AccessFlags(dstAccess),
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Buffer:              buf,
		Offset:              0,
		Size:                vk.DeviceSize(vk.WholeSize),
	})
}

// image transitions tex. A texture that was never used starts from an
// undefined layout and its previous contents are discarded.
func (b *barrierBatch) image(tex *resource, before, after gpu.ResourceState) {
	srcStages, srcAccess := scope(before)
	dstStages, dstAccess := scope(after)
	oldLayout := layoutOf(before)
	if !tex.initialized {
		oldLayout = vk.ImageLayoutUndefined
		srcStages, srcAccess = vk.PipelineStageTopOfPipeBit, 0
		tex.initialized = true
	}
	b.srcStages |= srcStages
	b.dstStages |= dstStages
	b.images = append(b.images, vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       vk.AccessFlags(srcAccess),
		DstAccessMask:       vk.AccessFlags(dstAccess),
		OldLayout:           oldLayout,
		NewLayout:           layoutOf(after),
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               tex.image,
		SubresourceRange:    tex.subresource(),
	})
}

func (b *barrierBatch) record(cmd vk.CommandBuffer) {
	if b.empty() {
		return
	}
	vk.CmdPipelineBarrier(cmd,
		vk.PipelineStageFlags(b.srcStages),
		vk.PipelineStageFlags(b.dstStages),
		0,
		uint32(len(b.memory)), b.memory,
		uint32(len(b.buffers)), b.buffers,
		uint32(len(b.images)), b.images)
}
