package vulkan

import "sync"

// lockGroup names objects Vulkan requires to be externally synchronized.
type lockGroup uint8

const (
	// Queue submission, signaling and presentation.
	lockQueue lockGroup = iota
	// Descriptor pools and writes to the shader visible sets.
	lockDescriptors
	// The render pass and framebuffer cache.
	lockPasses
	numLockGroups
)

// lockPool serializes access to each group. Recording a command list needs
// no lock, a list is used by one goroutine at a time.
type lockPool struct {
	locks [numLockGroups]sync.Mutex
}

func (p *lockPool) safeCall(group lockGroup, fn func() error) error {
	p.locks[group].Lock()
	defer p.locks[group].Unlock()
	return fn()
}

// lock takes the group lock and returns its unlock.
func (p *lockPool) lock(group lockGroup) func() {
	p.locks[group].Lock()
	return p.locks[group].Unlock
}
