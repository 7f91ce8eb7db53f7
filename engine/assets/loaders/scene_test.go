package loaders

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/scene"
)

const hierarchyScene = `
name = "hierarchy"

[[meshes]]
name = "tri"
texture = "textures/tri.png"
positions = [[0.0, 0.0, 0.0], [1.0, 0.0, 0.0], [0.0, 1.0, 0.0]]
triangles = [[0, 1, 2]]

[[meshes]]
name = "quad"
file = "quad.obj"

[[nodes]]
name = "root"
meshes = ["tri"]
children = ["child"]
translation = [0.0, 2.0, 0.0]

[[nodes]]
name = "child"
meshes = ["quad", "tri"]
scale = [2.0, 2.0, 2.0]

[[lights]]
position = [0.0, 5.0, 0.0]
intensity = 40.0
`

func writeScene(t *testing.T, manifest string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "quad.obj"), []byte(quadOBJ), 0o644))
	path := filepath.Join(dir, "scene.toml")
	require.NoError(t, os.WriteFile(path, []byte(manifest), 0o644))
	return path
}

func TestSceneLoaderBuildsHierarchy(t *testing.T) {
	path := writeScene(t, hierarchyScene)
	res, err := (&SceneLoader{}).Load(path, nil)
	require.NoError(t, err)

	src := res.Data.(*scene.Source)
	assert.Equal(t, "hierarchy", src.Name)
	require.Len(t, src.Meshes, 2)
	for i, m := range src.Meshes {
		assert.Equal(t, uint32(i), m.ID)
	}
	assert.Equal(t, filepath.Join(filepath.Dir(path), "textures/tri.png"), src.Meshes[0].Texture)
	assert.Empty(t, src.Meshes[1].Texture)
	assert.Len(t, src.Meshes[1].Triangles, 2)

	require.Len(t, src.Nodes, 2)
	assert.Equal(t, []int{0}, src.Roots)
	assert.Equal(t, []int{1}, src.Nodes[0].Children)
	assert.Equal(t, []int{1, 0}, src.Nodes[1].Meshes)
	assert.Equal(t, mgl32.Translate3D(0, 2, 0), src.Nodes[0].Transform)
	assert.Equal(t, mgl32.Scale3D(2, 2, 2), src.Nodes[1].Transform)

	assert.Equal(t, []scene.PointLight{{Position: [3]float32{0, 5, 0}, Intensity: 40}}, src.Lights)
}

func TestSceneLoaderDefaults(t *testing.T) {
	path := writeScene(t, `
default_lights = 3

[[meshes]]
name = "quad"
file = "quad.obj"
`)
	res, err := (&SceneLoader{}).Load(path, nil)
	require.NoError(t, err)

	src := res.Data.(*scene.Source)
	assert.Equal(t, "scene", src.Name, "name falls back to the file name")
	require.Len(t, src.Nodes, 1)
	assert.Equal(t, []int{0}, src.Roots)
	assert.Equal(t, []int{0}, src.Nodes[0].Meshes)
	assert.Equal(t, mgl32.Ident4(), src.Nodes[0].Transform)
	assert.Equal(t, scene.DefaultLights(3), src.Lights)
}

func TestSceneLoaderErrors(t *testing.T) {
	cases := map[string]string{
		"unknown key":      "colour = 1\n",
		"unknown mesh":     "[[nodes]]\nname = \"a\"\nmeshes = [\"missing\"]\n",
		"unknown child":    "[[nodes]]\nname = \"a\"\nchildren = [\"b\"]\n",
		"duplicate mesh":   "[[meshes]]\nname = \"q\"\nfile = \"quad.obj\"\n[[meshes]]\nname = \"q\"\nfile = \"quad.obj\"\n",
		"empty mesh":       "[[meshes]]\nname = \"q\"\n",
		"missing file":     "[[meshes]]\nname = \"q\"\nfile = \"nope.obj\"\n",
		"no root":          "[[nodes]]\nname = \"a\"\nchildren = [\"b\"]\n[[nodes]]\nname = \"b\"\nchildren = [\"a\"]\n",
		"bad index":        "[[meshes]]\nname = \"t\"\npositions = [[0.0, 0.0, 0.0]]\ntriangles = [[0, 1, 2]]\n",
		"unnamed node":     "[[nodes]]\nmeshes = []\n",
		"duplicate node":   "[[nodes]]\nname = \"a\"\n[[nodes]]\nname = \"a\"\n",
		"unnamed mesh":     "[[meshes]]\nfile = \"quad.obj\"\n",
		"malformed toml":   "[[meshes\n",
		"self referencing": "[[nodes]]\nname = \"a\"\n[[nodes]]\nname = \"b\"\nchildren = [\"b\"]\n",
	}
	for name, manifest := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := (&SceneLoader{}).Load(writeScene(t, manifest), nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrSceneLoad)
		})
	}
}
