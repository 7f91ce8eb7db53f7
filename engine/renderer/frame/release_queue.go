package frame

import (
	"github.com/spaghettifunk/lumen/engine/containers"
)

// Releaser is anything owning GPU memory.
type Releaser interface {
	Release()
}

type pendingRelease struct {
	value    uint64
	releaser Releaser
}

// ReleaseQueue defers releases until the fence reaches the value of the
// last frame that may use the object. Values are expected in increasing
// order, matching submission order.
type ReleaseQueue struct {
	pending *containers.RingQueue[pendingRelease]
}

func NewReleaseQueue() *ReleaseQueue {
	return &ReleaseQueue{pending: containers.NewGrowableRingQueue[pendingRelease](16)}
}

// Defer releases every r once the fence reaches value.
func (q *ReleaseQueue) Defer(value uint64, rs ...Releaser) {
	for _, r := range rs {
		if r == nil {
			continue
		}
		// A growable queue never reports full.
		_ = q.pending.Enqueue(pendingRelease{value: value, releaser: r})
	}
}

// Collect releases everything retired at completed and returns how many
// objects were freed.
func (q *ReleaseQueue) Collect(completed uint64) int {
	n := 0
	for !q.pending.IsEmpty() {
		head, _ := q.pending.Peek()
		if head.value > completed {
			break
		}
		_, _ = q.pending.Dequeue()
		head.releaser.Release()
		n++
	}
	return n
}

// Flush releases everything. The caller must have drained the queue.
func (q *ReleaseQueue) Flush() int {
	n := q.pending.Len()
	for !q.pending.IsEmpty() {
		p, _ := q.pending.Dequeue()
		p.releaser.Release()
	}
	return n
}

func (q *ReleaseQueue) Len() int {
	return q.pending.Len()
}
