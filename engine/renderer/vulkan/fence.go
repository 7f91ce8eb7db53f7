package vulkan

import (
	"sync"
	"time"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

type pendingSignal struct {
	value  uint64
	handle vk.Fence
}

// Fence is a 64-bit completion counter built from binary fences, one per
// queued Signal. Signals complete in submission order.
type Fence struct {
	dev *Device

	mu        sync.Mutex
	completed uint64
	signaled  uint64
	pending   []pendingSignal
	free      []vk.Fence
}

var _ gpu.Fence = (*Fence)(nil)

// acquire returns an unsignaled binary fence. Callers hold mu.
func (f *Fence) acquire() (vk.Fence, error) {
	if n := len(f.free); n > 0 {
		h := f.free[n-1]
		f.free = f.free[:n-1]
		return h, nil
	}
	var h vk.Fence
	res := vk.CreateFence(f.dev.handle, &vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}, nil, &h)
	if err := creation("fence", "vkCreateFence", res); err != nil {
		return vk.NullFence, err
	}
	return h, nil
}

// poll retires the signals that completed. Callers hold mu.
func (f *Fence) poll() {
	for len(f.pending) > 0 {
		p := f.pending[0]
		if vk.GetFenceStatus(f.dev.handle, p.handle) != vk.Success {
			return
		}
		f.retire()
	}
}

func (f *Fence) retire() {
	p := f.pending[0]
	f.pending = f.pending[1:]
	f.completed = p.value
	if vk.ResetFences(f.dev.handle, 1, []vk.Fence{p.handle}) == vk.Success {
		f.free = append(f.free, p.handle)
	} else {
		vk.DestroyFence(f.dev.handle, p.handle, nil)
	}
}

func (f *Fence) Completed() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.poll()
	return f.completed
}

// Wait blocks until value completes or timeout passes. Signals are queued
// from the waiting goroutine, so a value not signaled yet cannot complete
// and reports false at once.
func (f *Fence) Wait(value uint64, timeout time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.poll()
	if f.completed >= value {
		return true, nil
	}
	target := -1
	for i, p := range f.pending {
		if p.value >= value {
			target = i
			break
		}
	}
	if target < 0 {
		return false, nil
	}
	res := vk.WaitForFences(f.dev.handle, 1, []vk.Fence{f.pending[target].handle}, vk.True, uint64(timeout.Nanoseconds()))
	if res == vk.Timeout {
		return false, nil
	}
	if err := check("vkWaitForFences", res); err != nil {
		return false, err
	}
	// Earlier signals completed too, the queue retires them in order.
	for i := 0; i <= target; i++ {
		f.retire()
	}
	return true, nil
}

// Release destroys the binary fences. The queue must be idle.
func (f *Fence) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.pending {
		vk.DestroyFence(f.dev.handle, p.handle, nil)
	}
	for _, h := range f.free {
		vk.DestroyFence(f.dev.handle, h, nil)
	}
	f.pending, f.free = nil, nil
}
