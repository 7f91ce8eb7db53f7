package upload

import (
	"fmt"
	"image"

	"github.com/google/uuid"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/descriptor"
	"github.com/spaghettifunk/lumen/engine/renderer/frame"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
	"github.com/spaghettifunk/lumen/engine/scene"
)

type State uint8

const (
	StateEmpty State = iota
	StateLoading
	StateReady
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	}
	return "unknown"
}

// ImageSource decodes a texture path of a scene.
type ImageSource func(path string) (image.Image, error)

type Config struct {
	Device      gpu.Device
	Heap        gpu.DescriptorHeap
	Descriptors *descriptor.Allocator
	// Releases receives the previous scene on reload, keyed by Retire().
	Releases *frame.ReleaseQueue
	// Retire returns the fence value after which nothing submitted so far
	// reads the current scene.
	Retire func() uint64
	// Images decodes mesh textures. When nil every mesh uses the white
	// fallback.
	Images ImageSource
}

// Loader owns the entity graph and the Ready scene. It does not reclaim
// descriptor slots: a caller reloading many times resets the allocator.
type Loader struct {
	cfg     Config
	state   State
	graph   *scene.Graph
	current *SceneGPU
}

func NewLoader(cfg Config) *Loader {
	return &Loader{cfg: cfg, graph: scene.NewGraph()}
}

func (l *Loader) State() State {
	return l.state
}

// Scene is the Ready scene, nil otherwise.
func (l *Loader) Scene() *SceneGPU {
	return l.current
}

func (l *Loader) Graph() *scene.Graph {
	return l.graph
}

// Unload tears down the Ready scene and returns to Empty.
func (l *Loader) Unload() {
	l.graph.Clear()
	if l.current != nil {
		core.LogDebug("retiring scene %q (%s)", l.current.Name, l.current.Generation)
		l.cfg.Releases.Defer(l.cfg.Retire(), l.current)
		l.current = nil
	}
	l.state = StateEmpty
}

// Load replaces the current scene with src. Copies and barriers are
// recorded into cl; the returned Staging must outlive their execution. An
// invalid src or an undecodable texture leaves the current scene untouched;
// any later failure leaves the loader Empty with nothing leaked.
func (l *Loader) Load(src *scene.Source, cl gpu.CommandList) (*SceneGPU, *Staging, error) {
	if err := src.Validate(); err != nil {
		return nil, nil, err
	}
	images, textureOf, err := loadTextures(src, l.cfg.Images)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %q: %w", core.ErrSceneLoad, src.Name, err)
	}

	l.Unload()
	l.state = StateLoading

	if err := l.graph.Load(src); err != nil {
		l.state = StateEmpty
		return nil, nil, err
	}

	b := &build{dev: l.cfg.Device, staging: &Staging{}}
	s, err := b.scene(src, l.graph, l.cfg, cl, images, textureOf)
	if err != nil {
		b.abort()
		l.graph.Clear()
		l.state = StateEmpty
		return nil, nil, fmt.Errorf("%w: %q: %w", core.ErrSceneLoad, src.Name, err)
	}

	l.current = s
	l.state = StateReady
	core.LogInfo("scene %q loaded (%s): %d geometries, %d instances, %d lights, %d textures",
		src.Name, s.Generation, len(s.Geometries), len(s.Instances), s.NumLights, s.TextureCount)
	return s, b.staging, nil
}

// build tracks what a load created so a failure can release it.
type build struct {
	dev     gpu.Device
	staging *Staging
	owned   []gpu.Resource
}

func (b *build) abort() {
	b.staging.Release()
	for _, r := range b.owned {
		r.Release()
	}
	b.owned = nil
}

// buffer creates a default heap buffer filled from a staging copy. Empty
// data still gets one element so every view is valid.
func (b *build) buffer(cl gpu.CommandList, label string, data []byte, minSize uint64) (gpu.Resource, error) {
	size := uint64(len(data))
	if size < minSize {
		size = minSize
	}
	dst, err := b.dev.CreateBuffer(gpu.HeapDefault, gpu.BufferDesc{Size: size, Label: label}, gpu.StateCopyDest)
	if err != nil {
		return nil, err
	}
	b.owned = append(b.owned, dst)
	if len(data) == 0 {
		return dst, nil
	}
	src, err := b.mapped(label+" staging", data, gpu.StateGenericRead)
	if err != nil {
		return nil, err
	}
	b.staging.resources = append(b.staging.resources, src)
	cl.CopyBufferRegion(dst, 0, src, 0, uint64(len(data)))
	return dst, nil
}

// mapped creates an upload heap buffer holding data.
func (b *build) mapped(label string, data []byte, state gpu.ResourceState) (gpu.Resource, error) {
	r, err := b.dev.CreateBuffer(gpu.HeapUpload, gpu.BufferDesc{Size: uint64(len(data)), Label: label}, state)
	if err != nil {
		return nil, err
	}
	mem, err := r.Map()
	if err != nil {
		r.Release()
		return nil, err
	}
	copy(mem, data)
	r.Unmap()
	return r, nil
}

func (b *build) texture(cl gpu.CommandList, label string, img *image.RGBA) (gpu.Resource, error) {
	dst, err := b.dev.CreateTexture(gpu.HeapDefault, gpu.TextureDesc{
		Width:  uint32(img.Rect.Dx()),
		Height: uint32(img.Rect.Dy()),
		Format: gpu.FormatRGBA8UnormSRGB,
		Usage:  gpu.TextureUsageShaderResource | gpu.TextureUsageCopyDest,
		Label:  label,
	}, gpu.StateCopyDest, nil)
	if err != nil {
		return nil, err
	}
	b.owned = append(b.owned, dst)
	src, err := b.mapped(label+" staging", img.Pix, gpu.StateGenericRead)
	if err != nil {
		return nil, err
	}
	b.staging.resources = append(b.staging.resources, src)
	cl.CopyBufferToTexture(dst, src, 0)
	return dst, nil
}

func (b *build) scene(src *scene.Source, graph *scene.Graph, cfg Config, cl gpu.CommandList, images []*image.RGBA, textureOf func(int) uint32) (*SceneGPU, error) {
	geometries, vertexCount, indexCount := scene.Layout(src.Meshes)
	instances := graph.Instances()

	s := &SceneGPU{
		Generation:   uuid.New(),
		Name:         src.Name,
		Geometries:   geometries,
		Instances:    instances,
		NumLights:    uint32(len(src.Lights)),
		VertexCount:  vertexCount,
		IndexCount:   indexCount,
		TextureCount: uint32(len(images)),
	}

	vertices, err := b.buffer(cl, "scene vertices", encodeVertices(src.Meshes, vertexCount), VertexStride)
	if err != nil {
		return nil, err
	}
	indices, err := b.buffer(cl, "scene indices", encodeIndices(src.Meshes, indexCount), 4)
	if err != nil {
		return nil, err
	}
	draws, err := b.buffer(cl, "scene draw data", encodeDraws(geometries), scene.DrawRecordSize)
	if err != nil {
		return nil, err
	}
	instanceData, err := b.buffer(cl, "scene instances", encodeInstances(instances, textureOf), InstanceSize)
	if err != nil {
		return nil, err
	}
	lightData := encodeLights(src.Lights)
	if len(lightData) == 0 {
		lightData = make([]byte, scene.PointLightSize)
	}
	lights, err := b.mapped("scene lights", lightData, gpu.StateGenericRead)
	if err != nil {
		return nil, err
	}
	b.owned = append(b.owned, lights)

	textures := make([]gpu.Resource, len(images))
	for i, img := range images {
		if textures[i], err = b.texture(cl, fmt.Sprintf("scene texture %d", i), img); err != nil {
			return nil, err
		}
	}

	transitions := []gpu.Barrier{
		gpu.TransitionBarrier(vertices, gpu.StateCopyDest, gpu.StateVertexAndConstantBuffer|gpu.StateShaderResource),
		gpu.TransitionBarrier(indices, gpu.StateCopyDest, gpu.StateIndexBuffer|gpu.StateShaderResource),
		gpu.TransitionBarrier(draws, gpu.StateCopyDest, gpu.StateShaderResource),
		gpu.TransitionBarrier(instanceData, gpu.StateCopyDest, gpu.StateShaderResource),
	}
	for _, t := range textures {
		transitions = append(transitions, gpu.TransitionBarrier(t, gpu.StateCopyDest, gpu.StateShaderResource))
	}
	cl.ResourceBarrier(transitions...)

	// Scene table, light table and texture table in one contiguous range.
	base, _ := cfg.Descriptors.Allocate(SceneTableSize+1+uint32(len(textures)), 0)
	s.SceneTable = base
	s.LightTable = base + SceneTableSize
	s.TextureTable = s.LightTable + 1

	views := []struct {
		r    gpu.Resource
		desc gpu.ShaderResourceViewDesc
		slot uint32
	}{
		{indices, gpu.BufferSRV(max(indexCount, 1), 4), s.SceneTable + SceneIndices},
		{vertices, gpu.BufferSRV(max(vertexCount, 1), VertexStride), s.SceneTable + SceneVertices},
		{draws, gpu.BufferSRV(uint32(max(len(geometries), 1)), scene.DrawRecordSize), s.SceneTable + SceneDraws},
		{instanceData, gpu.BufferSRV(uint32(max(len(instances), 1)), InstanceSize), s.SceneTable + SceneInstances},
		{lights, gpu.BufferSRV(max(s.NumLights, 1), scene.PointLightSize), s.LightTable},
	}
	for i, t := range textures {
		views = append(views, struct {
			r    gpu.Resource
			desc gpu.ShaderResourceViewDesc
			slot uint32
		}{t, gpu.TextureSRV(gpu.FormatRGBA8UnormSRGB), s.TextureTable + uint32(i)})
	}
	for _, v := range views {
		if _, err := descriptor.CreateSRV(cfg.Device, cfg.Heap, v.slot, v.r, v.desc); err != nil {
			return nil, err
		}
	}

	s.VertexBuffer = gpu.NewShared(vertices)
	s.IndexBuffer = gpu.NewShared(indices)
	s.DrawBuffer = gpu.NewShared(draws)
	s.InstanceBuffer = gpu.NewShared(instanceData)
	s.LightBuffer = lights
	s.Textures = textures
	b.owned = nil
	return s, nil
}

// loadTextures decodes the distinct texture paths of src. Slot 0 is always
// a white pixel; textureOf maps a geometry to its slot.
func loadTextures(src *scene.Source, images ImageSource) ([]*image.RGBA, func(int) uint32, error) {
	out := []*image.RGBA{whitePixel()}
	slots := map[string]uint32{}
	perMesh := make([]uint32, len(src.Meshes))
	for i, m := range src.Meshes {
		if m.Texture == "" || images == nil {
			continue
		}
		slot, ok := slots[m.Texture]
		if !ok {
			img, err := images(m.Texture)
			if err != nil {
				return nil, nil, fmt.Errorf("texture %q of mesh %q: %w", m.Texture, m.Name, err)
			}
			slot = uint32(len(out))
			slots[m.Texture] = slot
			out = append(out, toRGBA(img))
		}
		perMesh[i] = slot
	}
	return out, func(geometry int) uint32 { return perMesh[geometry] }, nil
}
