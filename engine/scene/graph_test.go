package scene

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/lumen/engine/core"
)

func TestResolveAppliesParentsFirst(t *testing.T) {
	g := NewGraph()
	// Children are added before their parents to exercise the ordering.
	leaf := g.Add("leaf", NoEntity, mgl32.Translate3D(0, 0, 1))
	mid := g.Add("mid", NoEntity, mgl32.Translate3D(0, 1, 0))
	root := g.Add("root", NoEntity, mgl32.Translate3D(1, 0, 0))
	g.SetParent(leaf, mid)
	g.SetParent(mid, root)

	require.NoError(t, g.Resolve())
	pos := g.Worlds[leaf].Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	assert.Equal(t, mgl32.Vec4{1, 1, 1, 1}, pos)

	g.SetLocal(root, mgl32.Translate3D(5, 0, 0))
	require.NoError(t, g.Resolve())
	pos = g.Worlds[leaf].Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	assert.Equal(t, mgl32.Vec4{5, 1, 1, 1}, pos)
}

func TestResolveDetectsCycles(t *testing.T) {
	g := NewGraph()
	a := g.Add("a", NoEntity, mgl32.Ident4())
	b := g.Add("b", a, mgl32.Ident4())
	c := g.Add("c", b, mgl32.Ident4())
	g.SetParent(a, c)

	assert.ErrorIs(t, g.Resolve(), ErrTransformCycle)

	self := NewGraph()
	s := self.Add("self", NoEntity, mgl32.Ident4())
	self.SetParent(s, s)
	assert.ErrorIs(t, self.Resolve(), ErrTransformCycle)
}

func twoLevelSource() *Source {
	return &Source{
		Meshes: []Mesh{
			{ID: 10, Name: "a", Positions: make([][3]float32, 3), Triangles: [][3]uint32{{0, 1, 2}}},
			{ID: 11, Name: "b", Positions: make([][3]float32, 4), Triangles: [][3]uint32{{0, 1, 2}, {1, 2, 3}}},
		},
		Nodes: []Node{
			{Name: "root", Transform: mgl32.Translate3D(0, 0, -10), Meshes: []int{0}, Children: []int{1}},
			{Name: "child", Transform: mgl32.Translate3D(2, 0, 0), Meshes: []int{0, 1}},
		},
		Roots: []int{0},
	}
}

func TestBuildGraphCreatesInstancePerMeshRef(t *testing.T) {
	src := twoLevelSource()
	require.NoError(t, src.Validate())
	g, err := BuildGraph(src)
	require.NoError(t, err)

	// 2 nodes + 3 mesh references.
	assert.Equal(t, 5, g.Len())
	inst := g.Instances()
	require.Len(t, inst, 3)
	assert.Equal(t, []int{0, 0, 1}, []int{inst[0].Geometry, inst[1].Geometry, inst[2].Geometry})

	origin := inst[2].World.Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	assert.Equal(t, mgl32.Vec4{2, 0, -10, 1}, origin)
}

func TestBuildGraphRejectsNodeCycles(t *testing.T) {
	src := twoLevelSource()
	src.Nodes[1].Children = []int{0}
	_, err := BuildGraph(src)
	assert.ErrorIs(t, err, core.ErrSceneLoad)
	assert.ErrorIs(t, err, ErrTransformCycle)
}

func TestBuildGraphRejectsSharedNodes(t *testing.T) {
	src := twoLevelSource()
	src.Roots = []int{0, 1}
	_, err := BuildGraph(src)
	assert.ErrorIs(t, err, core.ErrSceneLoad)
}

func TestSourceValidate(t *testing.T) {
	src := twoLevelSource()
	src.Meshes[0].Triangles = [][3]uint32{{0, 1, 3}}
	assert.ErrorIs(t, src.Validate(), core.ErrSceneLoad)

	src = twoLevelSource()
	src.Meshes[1].ID = 10
	assert.ErrorContains(t, src.Validate(), "duplicate id")

	src = twoLevelSource()
	src.Nodes[0].Meshes = []int{7}
	assert.ErrorIs(t, src.Validate(), core.ErrSceneLoad)

	assert.NoError(t, Triangle().Validate())
}

func TestLayoutCumulativeOffsets(t *testing.T) {
	meshes := []Mesh{
		{Positions: make([][3]float32, 3), Triangles: make([][3]uint32, 1)},
		{Positions: make([][3]float32, 8), Triangles: make([][3]uint32, 12)},
		{Positions: make([][3]float32, 5), Triangles: make([][3]uint32, 2)},
	}
	geos, vertices, indices := Layout(meshes)
	assert.Equal(t, uint32(16), vertices)
	assert.Equal(t, uint32(45), indices)
	assert.Equal(t, []Geometry{
		{ID: 0, BaseIndex: 0, IndexCount: 3, BaseVertex: 0},
		{ID: 1, BaseIndex: 3, IndexCount: 36, BaseVertex: 3},
		{ID: 2, BaseIndex: 39, IndexCount: 6, BaseVertex: 11},
	}, geos)
	assert.Equal(t, DrawRecord{BaseIndex: 39, BaseVertex: 11}, geos[2].Record())
}

func TestDefaultLights(t *testing.T) {
	lights := DefaultLights(10)
	require.Len(t, lights, 10)
	assert.Equal(t, [3]float32{-1100, 80, 0}, lights[0].Position)
	assert.Equal(t, float32(0), lights[0].Intensity)
	assert.Equal(t, [3]float32{1150, 80, 0}, lights[9].Position)
	assert.Equal(t, float32(9000), lights[9].Intensity)
}
