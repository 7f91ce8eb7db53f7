package gpu

import "sync/atomic"

type sharedState struct {
	res  Resource
	refs atomic.Int32
}

// Shared is one co-owner's handle on a resource. Every handle is released
// exactly once; the resource is freed by the last release.
type Shared struct {
	state    *sharedState
	released bool
}

func NewShared(r Resource) *Shared {
	s := &sharedState{res: r}
	s.refs.Store(1)
	return &Shared{state: s}
}

// Clone returns a new owner handle on the same resource.
func (s *Shared) Clone() *Shared {
	if s.released {
		panic("gpu: clone of a released shared resource")
	}
	s.state.refs.Add(1)
	return &Shared{state: s.state}
}

func (s *Shared) Resource() Resource {
	return s.state.res
}

// Owners is the number of live handles.
func (s *Shared) Owners() int32 {
	return s.state.refs.Load()
}

func (s *Shared) Release() {
	if s.released {
		panic("gpu: shared resource released twice by the same owner")
	}
	s.released = true
	if s.state.refs.Add(-1) == 0 {
		s.state.res.Release()
	}
}
