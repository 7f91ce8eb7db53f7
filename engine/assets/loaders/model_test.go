package loaders

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quadOBJ = `# a unit quad
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vt 0 0
vn 0 0 1
f 1/1/1 2/1/1 3/1/1 4/1/1
`

func TestParseOBJTriangulatesPolygons(t *testing.T) {
	meshes, err := ParseOBJ(strings.NewReader(quadOBJ), "quad")
	require.NoError(t, err)
	require.Len(t, meshes, 1)

	m := meshes[0]
	assert.Equal(t, "quad", m.Name)
	assert.Len(t, m.Positions, 4)
	assert.Equal(t, [][3]uint32{{0, 1, 2}, {0, 2, 3}}, m.Triangles)
}

func TestParseOBJSplitsObjectsWithLocalIndices(t *testing.T) {
	src := `
v 0 0 0
v 1 0 0
v 0 1 0
v 5 5 5
o first
f 1 2 3
o second
f 4 -3 -2
`
	meshes, err := ParseOBJ(strings.NewReader(src), "pair")
	require.NoError(t, err)
	require.Len(t, meshes, 2)

	assert.Equal(t, "pair/first", meshes[0].Name)
	assert.Equal(t, [][3]uint32{{0, 1, 2}}, meshes[0].Triangles)

	second := meshes[1]
	assert.Equal(t, "pair/second", second.Name)
	// Only the referenced vertices are copied, in first use order.
	assert.Equal(t, [][3]float32{{5, 5, 5}, {1, 0, 0}, {0, 1, 0}}, second.Positions)
	assert.Equal(t, [][3]uint32{{0, 1, 2}}, second.Triangles)
}

func TestParseOBJErrors(t *testing.T) {
	cases := map[string]string{
		"out of range": "v 0 0 0\nf 1 2 3\n",
		"zero index":   "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 0 1 2\n",
		"short face":   "v 0 0 0\nv 1 0 0\nf 1 2\n",
		"bad vertex":   "v 0 zero 0\n",
		"no faces":     "v 0 0 0\n",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseOBJ(strings.NewReader(src), "broken")
			assert.Error(t, err)
		})
	}
}

func TestModelLoaderReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quad.obj")
	require.NoError(t, os.WriteFile(path, []byte(quadOBJ), 0o644))

	res, err := (&ModelLoader{}).Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "quad", res.Name)
	assert.Equal(t, uint64(len(quadOBJ)), res.DataSize)
	assert.Equal(t, ResourceTypeMesh, TypeOf(path))
}
