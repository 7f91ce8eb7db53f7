package vulkan

import (
	"errors"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

const maxColorTargets = 8

// passKey identifies a render pass. Passes differing only in load ops are
// compatible, so pipelines are built against the all-load variant.
type passKey struct {
	colors     [maxColorTargets]vk.Format
	colorLoads [maxColorTargets]gpu.LoadOp
	numColors  int
	depth      vk.Format
	depthLoad  gpu.LoadOp
}

type framebufferKey struct {
	pass   vk.RenderPass
	views  [maxColorTargets + 1]vk.ImageView
	width  uint32
	height uint32
}

// passCache owns every render pass and framebuffer of the device. Targets
// keep their attachment layout across the pass; barriers move them in and
// out.
type passCache struct {
	dev          *Device
	passes       map[passKey]vk.RenderPass
	framebuffers map[framebufferKey]vk.Framebuffer
}

func newPassCache(d *Device) *passCache {
	return &passCache{
		dev:          d,
		passes:       make(map[passKey]vk.RenderPass),
		framebuffers: make(map[framebufferKey]vk.Framebuffer),
	}
}

func formatsKey(colors []gpu.Format, depth gpu.Format) (passKey, error) {
	var key passKey
	if len(colors) > maxColorTargets {
		return key, errors.New("too many color targets")
	}
	for i, f := range colors {
		key.colors[i] = toFormat(f)
		if key.colors[i] == vk.FormatUndefined {
			return key, errors.New("unsupported color target format " + f.String())
		}
	}
	key.numColors = len(colors)
	key.depth = toFormat(depth)
	return key, nil
}

func (c *passCache) renderPass(key passKey) (vk.RenderPass, error) {
	if rp, ok := c.passes[key]; ok {
		return rp, nil
	}
	var attachments []vk.AttachmentDescription
	var colorRefs []vk.AttachmentReference
	for i := 0; i < key.numColors; i++ {
		colorRefs = append(colorRefs, vk.AttachmentReference{
			Attachment: uint32(len(attachments)),
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		})
		attachments = append(attachments, vk.AttachmentDescription{
			Format:         key.colors[i],
			Samples:        vk.SampleCount1Bit,
			LoadOp:         toLoadOp(key.colorLoads[i]),
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutColorAttachmentOptimal,
			FinalLayout:    vk.ImageLayoutColorAttachmentOptimal,
		})
	}
	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: uint32(len(colorRefs)),
		PColorAttachments:    colorRefs,
	}
	if key.depth != vk.FormatUndefined {
		subpass.PDepthStencilAttachment = &vk.AttachmentReference{
			Attachment: uint32(len(attachments)),
			Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
		}
		attachments = append(attachments, vk.AttachmentDescription{
			Format:         key.depth,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         toLoadOp(key.depthLoad),
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutDepthStencilAttachmentOptimal,
			FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
		})
	}

	var rp vk.RenderPass
	res := vk.CreateRenderPass(c.dev.handle, &vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
	}, nil, &rp)
	if err := creation("render pass", "vkCreateRenderPass", res); err != nil {
		return nil, err
	}
	c.passes[key] = rp
	core.LogDebug("render pass created (%d color targets, depth %t), %d cached",
		key.numColors, key.depth != vk.FormatUndefined, len(c.passes))
	return rp, nil
}

// compatible returns the render pass pipelines for these target formats
// are built against.
func (c *passCache) compatible(colors []gpu.Format, depth gpu.Format) (vk.RenderPass, error) {
	defer c.dev.locks.lock(lockPasses)()
	key, err := formatsKey(colors, depth)
	if err != nil {
		return nil, core.NewResourceCreationError("render pass", err)
	}
	return c.renderPass(key)
}

// begin resolves the render pass and framebuffer of desc.
func (c *passCache) begin(desc gpu.RenderPassDesc) (vk.RenderPass, vk.Framebuffer, uint32, uint32, error) {
	defer c.dev.locks.lock(lockPasses)()
	var fbKey framebufferKey
	var formats []gpu.Format
	var depthFormat gpu.Format
	var views []vk.ImageView
	width, height := uint32(0), uint32(0)
	setSize := func(v *targetView) {
		w, h := v.size()
		if width == 0 || w < width {
			width = w
		}
		if height == 0 || h < height {
			height = h
		}
	}
	for _, a := range desc.Colors {
		v, ok := a.View.(*targetView)
		if !ok {
			return nil, nil, 0, 0, errors.New("render target view was not created by this device")
		}
		formats = append(formats, v.format)
		views = append(views, v.view)
		setSize(v)
	}
	if desc.Depth != nil {
		v, ok := desc.Depth.View.(*targetView)
		if !ok {
			return nil, nil, 0, 0, errors.New("depth stencil view was not created by this device")
		}
		depthFormat = v.format
		views = append(views, v.view)
		setSize(v)
	}
	key, err := formatsKey(formats, depthFormat)
	if err != nil {
		return nil, nil, 0, 0, err
	}
	for i, a := range desc.Colors {
		key.colorLoads[i] = a.Load
	}
	if desc.Depth != nil {
		key.depthLoad = desc.Depth.Load
	}
	rp, err := c.renderPass(key)
	if err != nil {
		return nil, nil, 0, 0, err
	}

	fbKey.pass = rp
	copy(fbKey.views[:], views)
	fbKey.width, fbKey.height = width, height
	if fb, ok := c.framebuffers[fbKey]; ok {
		return rp, fb, width, height, nil
	}
	var fb vk.Framebuffer
	res := vk.CreateFramebuffer(c.dev.handle, &vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      rp,
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           width,
		Height:          height,
		Layers:          1,
	}, nil, &fb)
	if err := check("vkCreateFramebuffer", res); err != nil {
		return nil, nil, 0, 0, err
	}
	c.framebuffers[fbKey] = fb
	return rp, fb, width, height, nil
}

// forget destroys the framebuffers using view.
func (c *passCache) forget(view vk.ImageView) {
	defer c.dev.locks.lock(lockPasses)()
	for key, fb := range c.framebuffers {
		for _, v := range key.views {
			if v == view {
				vk.DestroyFramebuffer(c.dev.handle, fb, nil)
				delete(c.framebuffers, key)
				break
			}
		}
	}
}

func (c *passCache) release() {
	for key, fb := range c.framebuffers {
		vk.DestroyFramebuffer(c.dev.handle, fb, nil)
		delete(c.framebuffers, key)
	}
	for key, rp := range c.passes {
		vk.DestroyRenderPass(c.dev.handle, rp, nil)
		delete(c.passes, key)
	}
}
