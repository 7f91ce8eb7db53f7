package upload_test

import (
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/descriptor"
	"github.com/spaghettifunk/lumen/engine/renderer/frame"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu/gputest"
	"github.com/spaghettifunk/lumen/engine/renderer/upload"
	"github.com/spaghettifunk/lumen/engine/scene"
)

type fixture struct {
	dev      *gputest.Device
	heap     *gputest.DescriptorHeap
	alloc    *descriptor.Allocator
	releases *frame.ReleaseQueue
	retire   uint64
	loader   *upload.Loader
}

func newFixture(t *testing.T, images upload.ImageSource) *fixture {
	t.Helper()
	f := &fixture{dev: gputest.NewDevice(), alloc: descriptor.New(descriptor.DefaultConfig()), releases: frame.NewReleaseQueue()}
	heap, err := f.dev.CreateDescriptorHeap(gpu.DescriptorHeapDesc{Kind: gpu.HeapKindResourceView, Capacity: 2048})
	require.NoError(t, err)
	f.heap = heap.(*gputest.DescriptorHeap)
	f.loader = upload.NewLoader(upload.Config{
		Device:      f.dev,
		Heap:        heap,
		Descriptors: f.alloc,
		Releases:    f.releases,
		Retire:      func() uint64 { return f.retire },
		Images:      images,
	})
	return f
}

func (f *fixture) list(t *testing.T) *gputest.CommandList {
	t.Helper()
	alloc, err := f.dev.CreateCommandAllocator()
	require.NoError(t, err)
	cl, err := f.dev.CreateCommandList(alloc)
	require.NoError(t, err)
	return cl.(*gputest.CommandList)
}

func (f *fixture) load(t *testing.T, src *scene.Source) (*upload.SceneGPU, *upload.Staging) {
	t.Helper()
	cl := f.list(t)
	s, staging, err := f.loader.Load(src, cl)
	require.NoError(t, err)
	require.NoError(t, cl.Close())
	require.NoError(t, f.dev.Queue().Submit(cl))
	return s, staging
}

func quad(id uint32, name string) scene.Mesh {
	return scene.Mesh{
		ID:        id,
		Name:      name,
		Positions: [][3]float32{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}},
		Triangles: [][3]uint32{{0, 1, 2}, {0, 2, 3}},
	}
}

// threeMeshes has a triangle, a quad and a second triangle, each on its
// own node.
func threeMeshes() *scene.Source {
	tri := scene.Triangle().Meshes[0]
	second := tri
	second.ID, second.Name = 2, "second"
	return &scene.Source{
		Name:   "three",
		Meshes: []scene.Mesh{tri, quad(1, "quad"), second},
		Nodes: []scene.Node{
			{Name: "root", Transform: mgl32.Ident4(), Meshes: []int{0}, Children: []int{1, 2}},
			{Name: "a", Transform: mgl32.Translate3D(10, 0, 0), Meshes: []int{1}},
			{Name: "b", Transform: mgl32.Translate3D(0, 5, 0), Meshes: []int{2}},
		},
		Roots:  []int{0},
		Lights: scene.DefaultLights(3),
	}
}

func words(b []byte) []uint32 {
	out := make([]uint32, len(b)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return out
}

func TestLoadDrawRecordsHaveCumulativeOffsets(t *testing.T) {
	f := newFixture(t, nil)
	s, staging := f.load(t, threeMeshes())
	defer staging.Release()

	require.Len(t, s.Geometries, 3)
	assert.Equal(t, scene.Geometry{ID: 0, BaseIndex: 0, IndexCount: 3, BaseVertex: 0}, s.Geometries[0])
	assert.Equal(t, scene.Geometry{ID: 1, BaseIndex: 3, IndexCount: 6, BaseVertex: 3}, s.Geometries[1])
	assert.Equal(t, scene.Geometry{ID: 2, BaseIndex: 9, IndexCount: 3, BaseVertex: 7}, s.Geometries[2])
	assert.Equal(t, uint32(10), s.VertexCount)
	assert.Equal(t, uint32(12), s.IndexCount)

	draws := s.DrawBuffer.Resource().(*gputest.Resource)
	assert.Equal(t, []uint32{0, 0, 3, 3, 9, 7}, words(draws.Data))

	indices := s.IndexBuffer.Resource().(*gputest.Resource)
	assert.Equal(t, []uint32{0, 1, 2, 0, 1, 2, 0, 2, 3, 0, 1, 2}, words(indices.Data), "indices stay mesh local")
}

func TestLoadInstancesCarryWorldTransforms(t *testing.T) {
	f := newFixture(t, nil)
	s, staging := f.load(t, threeMeshes())
	defer staging.Release()

	require.Len(t, s.Instances, 3)
	data := s.InstanceBuffer.Resource().(*gputest.Resource).Data
	require.Len(t, data, 3*upload.InstanceSize)

	for n, inst := range s.Instances {
		rec := words(data[n*upload.InstanceSize : (n+1)*upload.InstanceSize])
		// Translation sits in the last column of the row-major rows.
		assert.Equal(t, inst.World.At(0, 3), math.Float32frombits(rec[3]))
		assert.Equal(t, inst.World.At(1, 3), math.Float32frombits(rec[7]))
		assert.Equal(t, uint32(inst.Geometry), rec[12])
		assert.Equal(t, uint32(0), rec[13], "untextured meshes use the fallback slot")
	}
	assert.Equal(t, float32(10), math.Float32frombits(words(data[upload.InstanceSize:])[3]))
}

func TestLoadRecordsCopiesThenTransitions(t *testing.T) {
	f := newFixture(t, nil)
	cl := f.list(t)
	s, staging, err := f.loader.Load(scene.Triangle(), cl)
	require.NoError(t, err)
	defer staging.Release()

	barrier := cl.IndexOf(func(c gputest.Command) bool { return c.Op == gputest.OpBarrier })
	lastCopy := -1
	for i, c := range cl.Commands {
		if c.Op == gputest.OpCopyBuffer || c.Op == gputest.OpCopyBufferToTexture {
			lastCopy = i
		}
	}
	require.NotEqual(t, -1, barrier)
	assert.Greater(t, barrier, lastCopy, "copies complete before the buffers become readable")

	after := map[string]gpu.ResourceState{}
	for _, b := range cl.Transitions() {
		assert.Equal(t, gpu.StateCopyDest, b.Before)
		after[b.Resource.Label()] = b.After
	}
	assert.True(t, after["scene vertices"].Has(gpu.StateVertexAndConstantBuffer|gpu.StateShaderResource))
	assert.True(t, after["scene indices"].Has(gpu.StateIndexBuffer|gpu.StateShaderResource))
	assert.Equal(t, gpu.StateShaderResource, after["scene draw data"])
	assert.Equal(t, gpu.StateShaderResource, after["scene instances"])
	assert.Equal(t, gpu.StateShaderResource, after["scene texture 0"])

	assert.Equal(t, gpu.HeapUpload, s.LightBuffer.Heap())
	assert.Equal(t, uint32(1), s.NumLights)
	assert.Equal(t, 5, staging.Len(), "four buffers and the fallback texture are staged")
}

func TestLoadWritesContiguousTables(t *testing.T) {
	f := newFixture(t, nil)
	f.alloc.Allocate(7, 0)
	s, staging := f.load(t, scene.Triangle())
	defer staging.Release()

	assert.Equal(t, uint32(7), s.SceneTable)
	assert.Equal(t, s.SceneTable+upload.SceneTableSize, s.LightTable)
	assert.Equal(t, s.LightTable+1, s.TextureTable)

	labels := map[uint32]string{}
	for slot, d := range f.heap.Slots {
		require.Equal(t, "SRV", d.Kind)
		labels[slot] = d.Resource.Label()
	}
	assert.Equal(t, "scene indices", labels[s.SceneTable+upload.SceneIndices])
	assert.Equal(t, "scene vertices", labels[s.SceneTable+upload.SceneVertices])
	assert.Equal(t, "scene draw data", labels[s.SceneTable+upload.SceneDraws])
	assert.Equal(t, "scene instances", labels[s.SceneTable+upload.SceneInstances])
	assert.Equal(t, "scene lights", labels[s.LightTable])
	assert.Equal(t, "scene texture 0", labels[s.TextureTable])

	rv, _ := f.alloc.Cursors()
	assert.Equal(t, s.TextureTable+s.TextureCount, rv)
}

func TestReloadWithAllocatorResetIsStable(t *testing.T) {
	f := newFixture(t, nil)
	f.alloc.Allocate(3, 1)
	markRV, markSmp := f.alloc.Cursors()

	first, staging := f.load(t, threeMeshes())
	staging.Release()
	firstVertices := first.VertexBuffer.Resource().(*gputest.Resource)
	rvAfterFirst, _ := f.alloc.Cursors()

	for i := 0; i < 5; i++ {
		f.retire = uint64(i + 1)
		f.alloc.Reset(markRV, markSmp)
		s, staging := f.load(t, threeMeshes())
		staging.Release()

		assert.Equal(t, first.SceneTable, s.SceneTable)
		assert.Equal(t, first.LightTable, s.LightTable)
		rv, smp := f.alloc.Cursors()
		assert.Equal(t, rvAfterFirst, rv)
		assert.Equal(t, markSmp, smp)
		assert.NotEqual(t, first.Generation, s.Generation)
		assert.Equal(t, upload.StateReady, f.loader.State())
		assert.Equal(t, 6, f.loader.Graph().Len(), "entities of the previous scene are cleared")
	}

	assert.False(t, firstVertices.Released, "retired scenes wait for the fence")
	assert.Equal(t, 5, f.releases.Len())
	f.releases.Collect(5)
	assert.True(t, firstVertices.Released)
}

func TestLoadEmptyScene(t *testing.T) {
	f := newFixture(t, nil)
	s, staging := f.load(t, &scene.Source{Name: "empty"})
	defer staging.Release()
	assert.Empty(t, s.Geometries)
	assert.Empty(t, s.Instances)
	assert.Equal(t, uint32(0), s.NumLights)
	assert.Equal(t, upload.StateReady, f.loader.State())
}

func TestInvalidSourceKeepsCurrentScene(t *testing.T) {
	f := newFixture(t, nil)
	s, staging := f.load(t, scene.Triangle())
	defer staging.Release()

	bad := scene.Triangle()
	bad.Meshes[0].Triangles = [][3]uint32{{0, 1, 9}}
	_, _, err := f.loader.Load(bad, f.list(t))
	require.ErrorIs(t, err, core.ErrSceneLoad)
	assert.Same(t, s, f.loader.Scene())
	assert.Equal(t, upload.StateReady, f.loader.State())
}

func TestUndecodableTextureKeepsCurrentScene(t *testing.T) {
	f := newFixture(t, func(string) (image.Image, error) {
		return nil, errors.New("decode failed")
	})
	s, staging := f.load(t, scene.Triangle())
	defer staging.Release()
	live := f.dev.LiveResources()

	textured := scene.Triangle()
	textured.Meshes[0].Texture = "broken.png"
	_, _, err := f.loader.Load(textured, f.list(t))
	require.ErrorIs(t, err, core.ErrSceneLoad)
	assert.ErrorContains(t, err, "decode failed")
	assert.Same(t, s, f.loader.Scene())
	assert.Equal(t, upload.StateReady, f.loader.State())
	assert.Equal(t, live, f.dev.LiveResources())
	assert.Positive(t, f.loader.Graph().Len())
}

func TestLoadFailureReleasesEverything(t *testing.T) {
	f := newFixture(t, nil)
	f.dev.Fail["CreateShaderResourceView"] = errors.New("out of descriptors")

	_, _, err := f.loader.Load(threeMeshes(), f.list(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrSceneLoad)
	var rce *core.ResourceCreationError
	assert.True(t, errors.As(err, &rce))
	assert.Equal(t, upload.StateEmpty, f.loader.State())
	assert.Nil(t, f.loader.Scene())
	assert.Equal(t, 0, f.dev.LiveResources())
	assert.Equal(t, 0, f.loader.Graph().Len())
}

func TestLoadTextures(t *testing.T) {
	checker := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	checker.Set(0, 0, color.NRGBA{R: 255, A: 255})
	decoded := 0
	f := newFixture(t, func(path string) (image.Image, error) {
		decoded++
		if path != "brick.png" {
			return nil, errors.New("missing")
		}
		return checker, nil
	})

	src := threeMeshes()
	src.Meshes[1].Texture = "brick.png"
	src.Meshes[2].Texture = "brick.png"
	s, staging := f.load(t, src)
	defer staging.Release()

	assert.Equal(t, 1, decoded, "a path shared by meshes is decoded once")
	assert.Equal(t, uint32(2), s.TextureCount)
	desc, ok := s.Textures[1].Texture()
	require.True(t, ok)
	assert.Equal(t, uint32(2), desc.Width)
	assert.Equal(t, []byte{255, 0, 0, 255}, s.Textures[1].(*gputest.Resource).Data[:4])
	assert.Equal(t, []byte{255, 255, 255, 255}, s.Textures[0].(*gputest.Resource).Data)

	data := s.InstanceBuffer.Resource().(*gputest.Resource).Data
	for n, inst := range s.Instances {
		slot := words(data[n*upload.InstanceSize:])[13]
		if inst.Geometry == 0 {
			assert.Equal(t, uint32(0), slot)
		} else {
			assert.Equal(t, uint32(1), slot)
		}
	}

	src.Meshes[0].Texture = "missing.png"
	_, _, err := f.loader.Load(src, f.list(t))
	require.ErrorIs(t, err, core.ErrSceneLoad)
}
