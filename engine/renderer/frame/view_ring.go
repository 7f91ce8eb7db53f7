package frame

import (
	"fmt"

	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

// ViewRing is a persistently mapped upload buffer with one constant buffer
// slot per frame in flight. Slot t mod latency is only rewritten once the
// synchronizer confirmed frame t-latency completed. Slots are rounded up
// to the constant buffer alignment.
type ViewRing struct {
	buffer   gpu.Resource
	mapped   []byte
	slotSize uint64
	slots    uint32
}

func NewViewRing(dev gpu.Device, slots uint32, slotSize uint64) (*ViewRing, error) {
	slotSize = math.AlignUp(slotSize, gpu.ConstantBufferAlignment)
	buf, err := dev.CreateBuffer(gpu.HeapUpload, gpu.BufferDesc{
		Size:  slotSize * uint64(slots),
		Label: "view data ring",
	}, gpu.StateGenericRead)
	if err != nil {
		return nil, err
	}
	mapped, err := buf.Map()
	if err != nil {
		buf.Release()
		return nil, err
	}
	return &ViewRing{buffer: buf, mapped: mapped, slotSize: slotSize, slots: slots}, nil
}

func (r *ViewRing) Resource() gpu.Resource {
	return r.buffer
}

func (r *ViewRing) Slots() uint32 {
	return r.slots
}

// Offset is the byte offset of slot in the buffer.
func (r *ViewRing) Offset(slot uint32) uint64 {
	return uint64(slot) * r.slotSize
}

func (r *ViewRing) Write(slot uint32, data []byte) error {
	if slot >= r.slots {
		return fmt.Errorf("view ring slot %d out of %d", slot, r.slots)
	}
	if uint64(len(data)) > r.slotSize {
		return fmt.Errorf("view data of %d bytes exceeds slot size %d", len(data), r.slotSize)
	}
	copy(r.mapped[r.Offset(slot):], data)
	return nil
}

// Read returns a copy of slot.
func (r *ViewRing) Read(slot uint32) []byte {
	out := make([]byte, r.slotSize)
	copy(out, r.mapped[r.Offset(slot):r.Offset(slot)+r.slotSize])
	return out
}

func (r *ViewRing) Release() {
	r.buffer.Unmap()
	r.buffer.Release()
	r.mapped = nil
}
