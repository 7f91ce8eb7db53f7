package vulkan

import (
	"errors"
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

// Queue is the graphics and compute queue of a device.
type Queue struct {
	dev    *Device
	handle vk.Queue

	// Semaphores handed over by the swapchain, consumed by the next Submit.
	waits      []vk.Semaphore
	waitStages []vk.PipelineStageFlags
	signals    []vk.Semaphore
}

var _ gpu.Queue = (*Queue)(nil)

// waitFor makes the next submission wait on s before writing color
// attachments.
func (q *Queue) waitFor(s vk.Semaphore) {
	q.waits = append(q.waits, s)
	q.waitStages = append(q.waitStages, vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit))
}

// signalOnSubmit makes the next submission signal s.
func (q *Queue) signalOnSubmit(s vk.Semaphore) {
	q.signals = append(q.signals, s)
}

func (q *Queue) Submit(lists ...gpu.CommandList) error {
	buffers := make([]vk.CommandBuffer, 0, len(lists))
	for _, l := range lists {
		cl, ok := l.(*commandList)
		if !ok || cl == nil {
			return errors.New("command list was not created by this device")
		}
		if cl.open {
			return errors.New("submitted command list is still recording")
		}
		buffers = append(buffers, cl.handle)
	}
	return q.dev.locks.safeCall(lockQueue, func() error {
		info := vk.SubmitInfo{
			SType:                vk.StructureTypeSubmitInfo,
			WaitSemaphoreCount:   uint32(len(q.waits)),
			PWaitSemaphores:      q.waits,
			PWaitDstStageMask:    q.waitStages,
			CommandBufferCount:   uint32(len(buffers)),
			PCommandBuffers:      buffers,
			SignalSemaphoreCount: uint32(len(q.signals)),
			PSignalSemaphores:    q.signals,
		}
		q.waits, q.waitStages, q.signals = nil, nil, nil
		return check("vkQueueSubmit", vk.QueueSubmit(q.handle, 1, []vk.SubmitInfo{info}, vk.NullFence))
	})
}

// Signal submits an empty batch whose binary fence completes once every
// earlier submission has.
func (q *Queue) Signal(f gpu.Fence, value uint64) error {
	fence, ok := f.(*Fence)
	if !ok || fence == nil {
		return errors.New("fence was not created by this device")
	}
	fence.mu.Lock()
	defer fence.mu.Unlock()
	if value <= fence.signaled {
		return fmt.Errorf("fence value %d is not above the last signaled value %d", value, fence.signaled)
	}
	handle, err := fence.acquire()
	if err != nil {
		return err
	}
	err = q.dev.locks.safeCall(lockQueue, func() error {
		return check("vkQueueSubmit", vk.QueueSubmit(q.handle, 0, nil, handle))
	})
	if err != nil {
		fence.free = append(fence.free, handle)
		return err
	}
	fence.signaled = value
	fence.pending = append(fence.pending, pendingSignal{value: value, handle: handle})
	return nil
}
