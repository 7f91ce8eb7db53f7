// Package frame paces CPU recording against GPU completion.
package frame

import (
	"fmt"
	"time"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

// Synchronizer owns the tick counter. Frame t signals fence value t+1 when
// it completes, so at most Latency frames are ever in flight.
type Synchronizer struct {
	queue   gpu.Queue
	fence   gpu.Fence
	latency uint64
	timeout time.Duration
	tick    uint64
}

func NewSynchronizer(queue gpu.Queue, fence gpu.Fence, latency uint32, timeout time.Duration) *Synchronizer {
	if latency == 0 {
		panic("frame: latency must be at least 1")
	}
	return &Synchronizer{queue: queue, fence: fence, latency: uint64(latency), timeout: timeout}
}

// Tick is the number of frames submitted so far, which is also the index of
// the frame about to be recorded.
func (s *Synchronizer) Tick() uint64 {
	return s.tick
}

func (s *Synchronizer) Latency() uint32 {
	return uint32(s.latency)
}

// Slot is the per-frame resource slot of the frame about to be recorded.
func (s *Synchronizer) Slot() uint32 {
	return uint32(s.tick % s.latency)
}

// FenceValue is the value frame t signals on completion.
func FenceValue(t uint64) uint64 {
	return t + 1
}

// WaitForSlot blocks until frame Tick()-Latency() has completed, which is
// the last user of Slot(). It returns *core.DeviceTimeoutError when the
// bounded wait expires.
func (s *Synchronizer) WaitForSlot() error {
	if s.tick < s.latency {
		return nil
	}
	return s.wait(FenceValue(s.tick - s.latency))
}

// Submit executes lists, advances the tick and signals its fence value.
// It returns the fence value of the submitted frame.
func (s *Synchronizer) Submit(lists ...gpu.CommandList) (uint64, error) {
	if err := s.queue.Submit(lists...); err != nil {
		return 0, fmt.Errorf("failed to submit frame %d: %w", s.tick, err)
	}
	value := FenceValue(s.tick)
	if err := s.queue.Signal(s.fence, value); err != nil {
		return 0, fmt.Errorf("failed to signal frame %d: %w", s.tick, err)
	}
	s.tick++
	return value, nil
}

// Signal advances the fence without submitting work. Used for one-off
// uploads that must be tracked like a frame.
func (s *Synchronizer) Signal() (uint64, error) {
	return s.Submit()
}

// LastSubmitted is the fence value that retires every frame submitted so
// far.
func (s *Synchronizer) LastSubmitted() uint64 {
	return s.tick
}

// Completed is the last fence value the GPU reached.
func (s *Synchronizer) Completed() uint64 {
	return s.fence.Completed()
}

// Drain waits for every submitted frame with one bounded wait.
func (s *Synchronizer) Drain() error {
	if s.tick == 0 {
		return nil
	}
	return s.wait(FenceValue(s.tick - 1))
}

func (s *Synchronizer) wait(value uint64) error {
	if s.fence.Completed() >= value {
		return nil
	}
	start := time.Now()
	ok, err := s.fence.Wait(value, s.timeout)
	if err != nil {
		return fmt.Errorf("failed to wait for fence value %d: %w", value, err)
	}
	if !ok {
		err := &core.DeviceTimeoutError{Waited: time.Since(start), Target: value, Completed: s.fence.Completed()}
		core.LogError("%v", err)
		return err
	}
	return nil
}
