package assets

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/lumen/engine/core"
)

const triangleScene = `
name = "triangle"
default_lights = 1

[[meshes]]
name = "tri"
positions = [[-1.0, 0.0, -5.0], [1.0, 0.0, -5.0], [0.0, 1.0, -5.0]]
triangles = [[0, 1, 2]]
`

func newManager(t *testing.T) (*AssetManager, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "scenes"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scenes", "triangle.toml"), []byte(triangleScene), 0o644))
	am, err := NewAssetManager(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = am.Shutdown() })
	return am, dir
}

func TestLoadSceneResolvesAgainstRoot(t *testing.T) {
	am, dir := newManager(t)

	src, err := am.LoadScene("scenes/triangle.toml")
	require.NoError(t, err)
	assert.Equal(t, "triangle", src.Name)
	assert.Len(t, src.Meshes, 1)
	assert.Len(t, src.Lights, 1)

	loaded := am.Loaded()
	require.Len(t, loaded, 1)
	assert.Equal(t, filepath.Join(dir, "scenes", "triangle.toml"), loaded[0].Path)
}

func TestLoadSceneRejectsOtherTypes(t *testing.T) {
	am, _ := newManager(t)
	_, err := am.LoadScene("scenes/triangle.obj")
	assert.ErrorIs(t, err, core.ErrSceneLoad)

	_, err = am.LoadImage("scenes/triangle.toml")
	assert.Error(t, err)

	_, err = am.LoadAsset("readme.txt", nil)
	assert.Error(t, err)
}

func TestWatchReportsChangedScene(t *testing.T) {
	am, dir := newManager(t)
	require.NoError(t, am.Watch())
	assert.Error(t, am.Watch())

	// Files of unknown types are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	path := filepath.Join(dir, "scenes", "triangle.toml")
	require.NoError(t, os.WriteFile(path, []byte(triangleScene+"\n"), 0o644))

	select {
	case changed := <-am.Changes():
		assert.Equal(t, path, changed)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}

	require.NoError(t, am.Shutdown())
	require.NoError(t, am.Shutdown())
}
