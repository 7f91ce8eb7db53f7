package passes

import (
	"github.com/spaghettifunk/lumen/engine/renderer/descriptor"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
	"github.com/spaghettifunk/lumen/engine/renderer/upload"
)

type SetConfig struct {
	Device      gpu.Device
	Heap        gpu.DescriptorHeap
	Descriptors *descriptor.Allocator
	Shaders     Resolver
	Width       uint32
	Height      uint32
	// BackBufferFormat is the swapchain format.
	BackBufferFormat gpu.Format
}

// Set is every pass of a frame with the targets they share.
type Set struct {
	Targets  *Targets
	Geometry *GeometryPass
	Lighting *LightingPass
	Post     *PostProcessPass
}

// NewSet builds the targets and the three passes. Nothing survives a
// failure.
func NewSet(cfg SetConfig) (*Set, error) {
	var err error
	s := &Set{}
	if s.Targets, err = NewTargets(TargetsConfig{
		Device: cfg.Device, Heap: cfg.Heap, Descriptors: cfg.Descriptors,
		Width: cfg.Width, Height: cfg.Height,
	}); err != nil {
		return nil, err
	}
	if s.Geometry, err = NewGeometryPass(GeometryConfig{Device: cfg.Device, Shaders: cfg.Shaders}); err != nil {
		s.Release()
		return nil, err
	}
	if s.Lighting, err = NewLightingPass(LightingConfig{Device: cfg.Device, Shaders: cfg.Shaders}); err != nil {
		s.Release()
		return nil, err
	}
	if s.Post, err = NewPostProcessPass(PostProcessConfig{Device: cfg.Device, Shaders: cfg.Shaders, Format: cfg.BackBufferFormat}); err != nil {
		s.Release()
		return nil, err
	}
	return s, nil
}

// FrameInputs is everything a frame reads besides the passes themselves.
type FrameInputs struct {
	Scene      *upload.SceneGPU
	ViewData   gpu.Resource
	ViewOffset uint64
	BackBuffer gpu.Resource
	RTV        gpu.RenderTargetView
}

// Record records geometry, lighting and postprocess in that order.
func (s *Set) Record(cl gpu.CommandList, in FrameInputs) {
	s.Geometry.Record(cl, GeometryInputs{Targets: s.Targets, Scene: in.Scene, ViewData: in.ViewData, ViewOffset: in.ViewOffset})
	s.Lighting.Record(cl, LightingInputs{Targets: s.Targets, Scene: in.Scene})
	s.Post.Record(cl, PostProcessInputs{Targets: s.Targets, BackBuffer: in.BackBuffer, RTV: in.RTV})
}

func (s *Set) Release() {
	if s.Post != nil {
		s.Post.Release()
	}
	if s.Lighting != nil {
		s.Lighting.Release()
	}
	if s.Geometry != nil {
		s.Geometry.Release()
	}
	if s.Targets != nil {
		s.Targets.Release()
	}
	*s = Set{}
}
