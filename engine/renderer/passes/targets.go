package passes

import (
	"fmt"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/descriptor"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

const (
	VisibilityFormat = gpu.FormatRGBA16Uint
	DepthFormat      = gpu.FormatD32Float
	LightingFormat   = gpu.FormatRGBA16Float
)

// Resting states between frames.
const (
	VisibilityState = gpu.StateNonPixelShaderResource
	LightingState   = gpu.StatePixelShaderResource
	DepthState      = gpu.StateDepthWrite
)

// ValidateTileAlignment rejects resolutions the lighting dispatch would
// not cover exactly.
func ValidateTileAlignment(width, height uint32) error {
	return core.ValidateResolution(width, height)
}

// Targets are the intermediate textures of a frame and their views.
type Targets struct {
	Width  uint32
	Height uint32

	Visibility    gpu.Resource
	VisibilityRTV gpu.RenderTargetView
	Depth         gpu.Resource
	DepthDSV      gpu.DepthStencilView
	Lighting      gpu.Resource

	// Resource view slots.
	VisibilitySRV uint32
	LightingUAV   uint32
	LightingSRV   uint32
}

type TargetsConfig struct {
	Device      gpu.Device
	Heap        gpu.DescriptorHeap
	Descriptors *descriptor.Allocator
	Width       uint32
	Height      uint32
}

func NewTargets(cfg TargetsConfig) (*Targets, error) {
	if err := ValidateTileAlignment(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}
	t := &Targets{Width: cfg.Width, Height: cfg.Height}
	if err := t.create(cfg); err != nil {
		t.Release()
		return nil, err
	}
	core.LogDebug("frame targets created at %dx%d", cfg.Width, cfg.Height)
	return t, nil
}

func (t *Targets) create(cfg TargetsConfig) error {
	var err error
	dev := cfg.Device
	desc := func(label string, format gpu.Format, usage gpu.TextureUsage) gpu.TextureDesc {
		return gpu.TextureDesc{Width: t.Width, Height: t.Height, Format: format, Usage: usage, Label: label}
	}

	t.Visibility, err = dev.CreateTexture(gpu.HeapDefault,
		desc("visibility buffer", VisibilityFormat, gpu.TextureUsageRenderTarget|gpu.TextureUsageShaderResource),
		VisibilityState, &gpu.ClearValue{})
	if err != nil {
		return err
	}
	t.Depth, err = dev.CreateTexture(gpu.HeapDefault,
		desc("depth buffer", DepthFormat, gpu.TextureUsageDepthStencil),
		DepthState, &gpu.ClearValue{Depth: 1})
	if err != nil {
		return err
	}
	t.Lighting, err = dev.CreateTexture(gpu.HeapDefault,
		desc("lighting buffer", LightingFormat, gpu.TextureUsageUnorderedAccess|gpu.TextureUsageShaderResource),
		LightingState, nil)
	if err != nil {
		return err
	}

	if t.VisibilityRTV, err = dev.CreateRenderTargetView(t.Visibility, VisibilityFormat); err != nil {
		return err
	}
	if t.DepthDSV, err = dev.CreateDepthStencilView(t.Depth, DepthFormat); err != nil {
		return err
	}

	base, _ := cfg.Descriptors.Allocate(3, 0)
	t.VisibilitySRV, t.LightingUAV, t.LightingSRV = base, base+1, base+2
	if _, err = descriptor.CreateSRV(dev, cfg.Heap, t.VisibilitySRV, t.Visibility, gpu.TextureSRV(VisibilityFormat)); err != nil {
		return err
	}
	if _, err = descriptor.CreateUAV(dev, cfg.Heap, t.LightingUAV, t.Lighting,
		gpu.UnorderedAccessViewDesc{Dimension: gpu.ViewTexture2D, Format: LightingFormat}); err != nil {
		return err
	}
	if _, err = descriptor.CreateSRV(dev, cfg.Heap, t.LightingSRV, t.Lighting, gpu.TextureSRV(LightingFormat)); err != nil {
		return fmt.Errorf("lighting view: %w", err)
	}
	return nil
}

func (t *Targets) Release() {
	for _, r := range []gpu.Resource{t.Visibility, t.Depth, t.Lighting} {
		if r != nil {
			r.Release()
		}
	}
	t.Visibility, t.Depth, t.Lighting = nil, nil, nil
	t.VisibilityRTV, t.DepthDSV = nil, nil
}
