// Package renderer drives a visibility buffer frame: it owns the device
// context, the passes and the per-slot command recording.
package renderer

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/components"
	"github.com/spaghettifunk/lumen/engine/renderer/descriptor"
	"github.com/spaghettifunk/lumen/engine/renderer/frame"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
	"github.com/spaghettifunk/lumen/engine/renderer/passes"
	"github.com/spaghettifunk/lumen/engine/renderer/shader"
	"github.com/spaghettifunk/lumen/engine/renderer/upload"
	"github.com/spaghettifunk/lumen/engine/scene"
)

// BackBufferFormat is the swapchain format. The sRGB view applies the
// transfer function after tone mapping.
const BackBufferFormat = gpu.FormatBGRA8UnormSRGB

type Config struct {
	Instance gpu.Instance
	Compiler gpu.ShaderCompiler
	Renderer core.RendererConfig
	Width    uint32
	Height   uint32
	// Images decodes scene textures.
	Images upload.ImageSource
}

type Renderer struct {
	ctx         *gpu.Context
	descriptors *descriptor.Allocator
	shaders     *shader.Library
	swapchain   gpu.Swapchain
	passes      *passes.Set
	sync        *frame.Synchronizer
	views       *frame.ViewRing
	releases    *frame.ReleaseQueue
	loader      *upload.Loader

	allocators []gpu.CommandAllocator
	lists      []gpu.CommandList

	// Descriptor cursors once every static view is written. Scene loads
	// rewind to them.
	staticViews    uint32
	staticSamplers uint32

	width  uint32
	height uint32
}

// contextCompiler routes library compiles through the device context.
type contextCompiler struct {
	ctx *gpu.Context
}

func (c contextCompiler) Compile(source, entryPoint, profile string) (gpu.Bytecode, error) {
	return c.ctx.CompileShader(source, entryPoint, profile)
}

// New creates every long lived GPU object. Any failure releases what was
// created and is fatal for the caller.
func New(cfg Config) (*Renderer, error) {
	rc := cfg.Renderer
	if err := passes.ValidateTileAlignment(cfg.Width, cfg.Height); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrInitialization, err)
	}
	ctx, err := gpu.NewContext(cfg.Instance, gpu.ContextConfig{
		FrameLatency:  rc.FrameLatency,
		ResourceViews: rc.ResourceViews,
		Samplers:      rc.Samplers,
		Adapter:       rc.Adapter,
		Compiler:      cfg.Compiler,
	})
	if err != nil {
		return nil, err
	}

	r := &Renderer{
		ctx:         ctx,
		descriptors: descriptor.New(descriptor.Config{ResourceViews: rc.ResourceViews, Samplers: rc.Samplers}),
		shaders:     shader.NewBuiltinLibrary(contextCompiler{ctx: ctx}),
		releases:    frame.NewReleaseQueue(),
		width:       cfg.Width,
		height:      cfg.Height,
	}
	if err := r.create(cfg); err != nil {
		r.release()
		return nil, err
	}
	r.staticViews, r.staticSamplers = r.descriptors.Cursors()
	r.loader = upload.NewLoader(upload.Config{
		Device:      ctx.Device,
		Heap:        ctx.ResourceHeap,
		Descriptors: r.descriptors,
		Releases:    r.releases,
		Retire:      r.sync.LastSubmitted,
		Images:      cfg.Images,
	})
	core.LogInfo("renderer ready: %dx%d, %d frames in flight, %d back-buffers",
		cfg.Width, cfg.Height, rc.FrameLatency, rc.BufferCount)
	return r, nil
}

func (r *Renderer) create(cfg Config) error {
	var err error
	dev := r.ctx.Device
	rc := cfg.Renderer

	if r.swapchain, err = dev.CreateSwapchain(cfg.Instance.Surface(), gpu.SwapchainDesc{
		BufferCount: rc.BufferCount,
		Width:       cfg.Width,
		Height:      cfg.Height,
		Format:      BackBufferFormat,
		VSync:       rc.VSync,
	}); err != nil {
		return err
	}
	if r.passes, err = passes.NewSet(passes.SetConfig{
		Device:           dev,
		Heap:             r.ctx.ResourceHeap,
		Descriptors:      r.descriptors,
		Shaders:          r.shaders,
		Width:            cfg.Width,
		Height:           cfg.Height,
		BackBufferFormat: BackBufferFormat,
	}); err != nil {
		return err
	}
	if r.views, err = frame.NewViewRing(dev, rc.FrameLatency, components.ViewDataSize); err != nil {
		return err
	}
	for i := uint32(0); i < rc.FrameLatency; i++ {
		alloc, err := dev.CreateCommandAllocator()
		if err != nil {
			return err
		}
		r.allocators = append(r.allocators, alloc)
		list, err := dev.CreateCommandList(alloc)
		if err != nil {
			return err
		}
		r.lists = append(r.lists, list)
		// Lists are created recording.
		if err := list.Close(); err != nil {
			return err
		}
	}
	r.sync = frame.NewSynchronizer(r.ctx.Queue, r.ctx.Fence, rc.FrameLatency, rc.FenceTimeout.Duration)
	return nil
}

func (r *Renderer) Size() (uint32, uint32) {
	return r.width, r.height
}

// Tick is the number of submissions so far, scene uploads included.
func (r *Renderer) Tick() uint64 {
	return r.sync.Tick()
}

func (r *Renderer) Scene() *upload.SceneGPU {
	return r.loader.Scene()
}

func (r *Renderer) Shaders() *shader.Library {
	return r.shaders
}

func (r *Renderer) Descriptors() *descriptor.Allocator {
	return r.descriptors
}

// begin waits for the next slot and reopens its list.
func (r *Renderer) begin() (gpu.CommandList, error) {
	if err := r.sync.WaitForSlot(); err != nil {
		return nil, err
	}
	r.releases.Collect(r.sync.Completed())
	slot := r.sync.Slot()
	if err := r.allocators[slot].Reset(); err != nil {
		return nil, err
	}
	list := r.lists[slot]
	if err := list.Reset(r.allocators[slot]); err != nil {
		return nil, err
	}
	return list, nil
}

// LoadScene replaces the scene. Every frame in flight is drained first so
// the descriptor range of the old scene can be rewritten. A failure that
// keeps the old scene keeps its descriptors allocated.
func (r *Renderer) LoadScene(src *scene.Source) error {
	if err := r.sync.Drain(); err != nil {
		return err
	}
	r.releases.Collect(r.sync.Completed())
	previous := r.loader.Scene()
	views, samplers := r.descriptors.Cursors()
	r.descriptors.Reset(r.staticViews, r.staticSamplers)

	list, err := r.begin()
	if err != nil {
		return err
	}
	_, staging, err := r.loader.Load(src, list)
	if cerr := list.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		if staging != nil {
			staging.Release()
		}
		if previous != nil && r.loader.Scene() == previous {
			r.descriptors.Reset(views, samplers)
		}
		return err
	}
	value, err := r.sync.Submit(list)
	if err != nil {
		r.releases.Defer(r.sync.LastSubmitted(), staging)
		return err
	}
	r.releases.Defer(value, staging)
	return nil
}

// RenderFrame records, submits and presents one frame seen through view.
func (r *Renderer) RenderFrame(view components.ViewData) error {
	list, err := r.begin()
	if err != nil {
		return err
	}
	slot := r.sync.Slot()

	index, err := r.swapchain.BeginFrame()
	if err != nil {
		_ = list.Close()
		if errors.Is(err, core.ErrSwapchainOutOfDate) || errors.Is(err, core.ErrSwapchainNotReady) {
			core.LogWarn("%v, skipping frame %d", err, r.sync.Tick())
			return nil
		}
		return err
	}
	if err := r.views.Write(slot, view.Bytes()); err != nil {
		_ = list.Close()
		return err
	}
	backBuffer, rtv := r.swapchain.RenderTarget(index)

	list.SetDescriptorHeaps(r.ctx.Heaps()...)
	r.passes.Record(list, passes.FrameInputs{
		Scene:      r.loader.Scene(),
		ViewData:   r.views.Resource(),
		ViewOffset: r.views.Offset(slot),
		BackBuffer: backBuffer,
		RTV:        rtv,
	})
	if err := list.Close(); err != nil {
		return err
	}
	if _, err := r.sync.Submit(list); err != nil {
		return err
	}
	return r.swapchain.EndFrame()
}

// Shutdown waits for the GPU once and releases everything. The drain error
// is returned after resources are freed.
func (r *Renderer) Shutdown() error {
	err := r.sync.Drain()
	if err != nil {
		core.LogError("final drain failed: %v", err)
		// The device may still reference resources; wait for it before
		// freeing anything.
		if werr := r.ctx.Device.WaitIdle(); werr != nil {
			core.LogError("device wait idle failed: %v", werr)
		}
	}
	r.loader.Unload()
	r.releases.Flush()
	r.release()
	core.LogInfo("renderer shut down after %d submissions", r.sync.Tick())
	return err
}

func (r *Renderer) release() {
	for _, l := range r.lists {
		l.Release()
	}
	for _, a := range r.allocators {
		a.Release()
	}
	r.lists, r.allocators = nil, nil
	if r.views != nil {
		r.views.Release()
		r.views = nil
	}
	if r.passes != nil {
		r.passes.Release()
		r.passes = nil
	}
	if r.swapchain != nil {
		r.swapchain.Release()
		r.swapchain = nil
	}
	r.ctx.Release()
}
