package vulkan

import (
	"errors"
	"fmt"
	"math"
	"time"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
	emath "github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

// swapchain presents through the device queue. Out of date surfaces are
// recreated in place; the frame that noticed it is skipped.
type swapchain struct {
	dev     *Device
	surface *Surface
	desc    gpu.SwapchainDesc

	handle  vk.Swapchain
	format  vk.SurfaceFormat
	extent  vk.Extent2D
	buffers []*resource
	views   []*targetView

	// acquired rotates through one more semaphore than there are images,
	// renderDone has one per image.
	acquired   []vk.Semaphore
	renderDone []vk.Semaphore
	next       int
	current    uint32
	inFrame    bool
}

var _ gpu.Swapchain = (*swapchain)(nil)

type surfaceSupport struct {
	capabilities vk.SurfaceCapabilities
	formats      []vk.SurfaceFormat
	presentModes []vk.PresentMode
}

func (d *Device) querySurface(s *Surface) (*surfaceSupport, error) {
	pd := d.adapter.handle
	info := &surfaceSupport{}
	res := vk.GetPhysicalDeviceSurfaceCapabilities(pd, s.handle, &info.capabilities)
	if err := check("vkGetPhysicalDeviceSurfaceCapabilitiesKHR", res); err != nil {
		return nil, err
	}
	info.capabilities.Deref()
	info.capabilities.CurrentExtent.Deref()
	info.capabilities.MinImageExtent.Deref()
	info.capabilities.MaxImageExtent.Deref()

	var count uint32
	vk.GetPhysicalDeviceSurfaceFormats(pd, s.handle, &count, nil)
	info.formats = make([]vk.SurfaceFormat, count)
	vk.GetPhysicalDeviceSurfaceFormats(pd, s.handle, &count, info.formats)
	for i := range info.formats {
		info.formats[i].Deref()
	}
	count = 0
	vk.GetPhysicalDeviceSurfacePresentModes(pd, s.handle, &count, nil)
	info.presentModes = make([]vk.PresentMode, count)
	vk.GetPhysicalDeviceSurfacePresentModes(pd, s.handle, &count, info.presentModes)
	if len(info.formats) == 0 || len(info.presentModes) == 0 {
		return nil, errors.New("surface has no formats or present modes")
	}
	return info, nil
}

// presentMode waits for vertical blank with vsync, otherwise it prefers
// mailbox, then immediate. FIFO is always available.
func presentMode(modes []vk.PresentMode, vsync bool) vk.PresentMode {
	if vsync {
		return vk.PresentModeFifo
	}
	for _, want := range []vk.PresentMode{vk.PresentModeMailbox, vk.PresentModeImmediate} {
		for _, m := range modes {
			if m == want {
				return m
			}
		}
	}
	return vk.PresentModeFifo
}

// clamp bounds a surface limit. Vulkan reports a zero maximum when there
// is none.
func clamp(v, lo, hi uint32) uint32 {
	if hi == 0 {
		return max(v, lo)
	}
	return emath.Clamp(v, lo, hi)
}

func (d *Device) CreateSwapchain(surface gpu.Surface, desc gpu.SwapchainDesc) (gpu.Swapchain, error) {
	s, ok := surface.(*Surface)
	if !ok || s == nil {
		return nil, core.NewResourceCreationError("swapchain", errors.New("surface was not created by this instance"))
	}
	if desc.BufferCount < 2 {
		return nil, core.NewResourceCreationError("swapchain", fmt.Errorf("%d back-buffers, at least 2 are required", desc.BufferCount))
	}
	sc := &swapchain{dev: d, surface: s, desc: desc}
	if err := sc.create(desc.Width, desc.Height); err != nil {
		sc.Release()
		return nil, core.NewResourceCreationError("swapchain", err)
	}
	return sc, nil
}

func (sc *swapchain) create(width, height uint32) error {
	d := sc.dev
	info, err := d.querySurface(sc.surface)
	if err != nil {
		return err
	}

	want := toFormat(sc.desc.Format)
	found := false
	for _, f := range info.formats {
		if f.Format == want && f.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			sc.format = f
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("surface does not support %s", sc.desc.Format)
	}

	caps := info.capabilities
	if caps.CurrentExtent.Width != math.MaxUint32 {
		sc.extent = caps.CurrentExtent
	} else {
		sc.extent = vk.Extent2D{
			Width:  clamp(width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
			Height: clamp(height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
		}
	}
	if sc.extent.Width == 0 || sc.extent.Height == 0 {
		return core.ErrSwapchainOutOfDate
	}
	imageCount := clamp(sc.desc.BufferCount, caps.MinImageCount, caps.MaxImageCount)
	mode := presentMode(info.presentModes, sc.desc.VSync)

	old := sc.handle
	var handle vk.Swapchain
	res := vk.CreateSwapchain(d.handle, &vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          sc.surface.handle,
		MinImageCount:    imageCount,
		ImageFormat:      sc.format.Format,
		ImageColorSpace:  sc.format.ColorSpace,
		ImageExtent:      sc.extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferDstBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      mode,
		Clipped:          vk.True,
		OldSwapchain:     old,
	}, nil, &handle)
	sc.releaseBuffers()
	if old != vk.NullSwapchain {
		vk.DestroySwapchain(d.handle, old, nil)
		sc.handle = vk.NullSwapchain
	}
	if err := check("vkCreateSwapchainKHR", res); err != nil {
		return err
	}
	sc.handle = handle

	var count uint32
	if err := check("vkGetSwapchainImagesKHR", vk.GetSwapchainImages(d.handle, handle, &count, nil)); err != nil {
		return err
	}
	images := make([]vk.Image, count)
	if err := check("vkGetSwapchainImagesKHR", vk.GetSwapchainImages(d.handle, handle, &count, images)); err != nil {
		return err
	}
	for i, img := range images {
		r := &resource{
			dev:            d,
			label:          fmt.Sprintf("back-buffer %d", i),
			heap:           gpu.HeapDefault,
			image:          img,
			swapchainOwned: true,
			texture: &gpu.TextureDesc{
				Width:  sc.extent.Width,
				Height: sc.extent.Height,
				Format: sc.desc.Format,
				Usage:  gpu.TextureUsageRenderTarget | gpu.TextureUsageCopyDest,
				Label:  fmt.Sprintf("back-buffer %d", i),
			},
		}
		r.size = uint64(sc.extent.Width) * uint64(sc.extent.Height) * uint64(sc.desc.Format.Size())
		view, err := r.imageView(sc.desc.Format)
		if err != nil {
			return err
		}
		sc.buffers = append(sc.buffers, r)
		sc.views = append(sc.views, &targetView{res: r, view: view, format: sc.desc.Format})
	}
	if err := sc.createSemaphores(len(images)); err != nil {
		return err
	}
	core.LogInfo("swapchain created: %dx%d, %d images, %s", sc.extent.Width, sc.extent.Height, len(images), presentModeName(mode))
	return nil
}

func presentModeName(m vk.PresentMode) string {
	switch m {
	case vk.PresentModeFifo:
		return "fifo"
	case vk.PresentModeMailbox:
		return "mailbox"
	case vk.PresentModeImmediate:
		return "immediate"
	}
	return fmt.Sprintf("mode %d", m)
}

func (sc *swapchain) createSemaphores(images int) error {
	sc.releaseSemaphores()
	newSemaphore := func() (vk.Semaphore, error) {
		var s vk.Semaphore
		res := vk.CreateSemaphore(sc.dev.handle, &vk.SemaphoreCreateInfo{
			SType: vk.StructureTypeSemaphoreCreateInfo,
		}, nil, &s)
		return s, check("vkCreateSemaphore", res)
	}
	for i := 0; i < images+1; i++ {
		s, err := newSemaphore()
		if err != nil {
			return err
		}
		sc.acquired = append(sc.acquired, s)
	}
	for i := 0; i < images; i++ {
		s, err := newSemaphore()
		if err != nil {
			return err
		}
		sc.renderDone = append(sc.renderDone, s)
	}
	sc.next = 0
	return nil
}

// recreate rebuilds the swapchain at the current surface size once the
// queue is idle.
func (sc *swapchain) recreate() error {
	if err := sc.dev.WaitIdle(); err != nil {
		return err
	}
	w, h := sc.surface.Size()
	if err := sc.create(w, h); err != nil && !errors.Is(err, core.ErrSwapchainOutOfDate) {
		return err
	}
	return nil
}

// acquireTimeout bounds the wait for a presentable image, so BeginFrame
// never stalls the loop on the presentation engine.
const acquireTimeout = 100 * time.Millisecond

// acquireOutcome classifies a vkAcquireNextImageKHR result. A timeout
// leaves the acquire semaphore unsignaled, so the slot can be reused.
func acquireOutcome(res vk.Result) error {
	switch res {
	case vk.Success, vk.Suboptimal:
		return nil
	case vk.ErrorOutOfDate:
		return core.ErrSwapchainOutOfDate
	case vk.Timeout, vk.NotReady:
		return core.ErrSwapchainNotReady
	}
	return check("vkAcquireNextImageKHR", res)
}

// BeginFrame acquires the next image. The next queue submission waits for
// it and signals the semaphore EndFrame presents with.
func (sc *swapchain) BeginFrame() (uint32, error) {
	if sc.handle == vk.NullSwapchain {
		// Minimized, try again at the current size.
		if err := sc.recreate(); err != nil {
			return 0, err
		}
		if sc.handle == vk.NullSwapchain {
			return 0, core.ErrSwapchainOutOfDate
		}
	}
	acquired := sc.acquired[sc.next]
	var index uint32
	res := vk.AcquireNextImage(sc.dev.handle, sc.handle, uint64(acquireTimeout.Nanoseconds()), acquired, vk.NullFence, &index)
	if err := acquireOutcome(res); err != nil {
		if errors.Is(err, core.ErrSwapchainOutOfDate) {
			if rerr := sc.recreate(); rerr != nil {
				return 0, rerr
			}
		}
		return 0, err
	}
	sc.next = (sc.next + 1) % len(sc.acquired)
	sc.current = index
	sc.inFrame = true
	q := sc.dev.queue
	q.waitFor(acquired)
	q.signalOnSubmit(sc.renderDone[index])
	return index, nil
}

// EndFrame presents the current image. An out of date surface is
// recreated and the frame still counts as presented.
func (sc *swapchain) EndFrame() error {
	if !sc.inFrame {
		return errors.New("EndFrame without BeginFrame")
	}
	sc.inFrame = false
	var res vk.Result
	sc.dev.locks.safeCall(lockQueue, func() error {
		res = vk.QueuePresent(sc.dev.queue.handle, &vk.PresentInfo{
			SType:              vk.StructureTypePresentInfo,
			WaitSemaphoreCount: 1,
			PWaitSemaphores:    []vk.Semaphore{sc.renderDone[sc.current]},
			SwapchainCount:     1,
			PSwapchains:        []vk.Swapchain{sc.handle},
			PImageIndices:      []uint32{sc.current},
		})
		return nil
	})
	switch res {
	case vk.Success, vk.Suboptimal:
		return nil
	case vk.ErrorOutOfDate:
		core.LogDebug("swapchain out of date at present, recreating")
		return sc.recreate()
	}
	return check("vkQueuePresentKHR", res)
}

func (sc *swapchain) RenderTarget(index uint32) (gpu.Resource, gpu.RenderTargetView) {
	return sc.buffers[index], sc.views[index]
}

func (sc *swapchain) BufferCount() uint32 {
	return uint32(len(sc.buffers))
}

func (sc *swapchain) Format() gpu.Format {
	return sc.desc.Format
}

func (sc *swapchain) releaseBuffers() {
	for _, r := range sc.buffers {
		r.Release()
	}
	sc.buffers, sc.views = nil, nil
}

func (sc *swapchain) releaseSemaphores() {
	for _, s := range sc.acquired {
		vk.DestroySemaphore(sc.dev.handle, s, nil)
	}
	for _, s := range sc.renderDone {
		vk.DestroySemaphore(sc.dev.handle, s, nil)
	}
	sc.acquired, sc.renderDone = nil, nil
}

// Release destroys the swapchain. The queue must be idle.
func (sc *swapchain) Release() {
	sc.releaseBuffers()
	sc.releaseSemaphores()
	if sc.handle != vk.NullSwapchain {
		vk.DestroySwapchain(sc.dev.handle, sc.handle, nil)
		sc.handle = vk.NullSwapchain
	}
}
