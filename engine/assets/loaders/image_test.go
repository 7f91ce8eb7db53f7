package loaders

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

func checker() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 4; x++ {
			if (x+y)%2 == 0 {
				img.Set(x, y, color.NRGBA{R: 255, A: 255})
			} else {
				img.Set(x, y, color.NRGBA{B: 255, A: 255})
			}
		}
	}
	return img
}

func TestImageLoaderDecodesRegisteredFormats(t *testing.T) {
	dir := t.TempDir()
	encoders := map[string]func(*os.File, image.Image) error{
		"checker.png": func(f *os.File, img image.Image) error { return png.Encode(f, img) },
		"checker.bmp": func(f *os.File, img image.Image) error { return bmp.Encode(f, img) },
	}
	for name, encode := range encoders {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			f, err := os.Create(path)
			require.NoError(t, err)
			require.NoError(t, encode(f, checker()))
			require.NoError(t, f.Close())

			assert.Equal(t, ResourceTypeImage, TypeOf(path))
			res, err := (&ImageLoader{}).Load(path, nil)
			require.NoError(t, err)

			img := res.Data.(image.Image)
			assert.Equal(t, image.Rect(0, 0, 4, 2), img.Bounds())
			r, g, b, a := img.At(0, 0).RGBA()
			assert.Equal(t, [4]uint32{0xffff, 0, 0, 0xffff}, [4]uint32{r, g, b, a})
			r, g, b, a = img.At(1, 0).RGBA()
			assert.Equal(t, [4]uint32{0, 0, 0xffff, 0xffff}, [4]uint32{r, g, b, a})
		})
	}
}

func TestImageLoaderRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "noise.png")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o644))
	_, err := (&ImageLoader{}).Load(path, nil)
	assert.Error(t, err)
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, ResourceTypeScene, TypeOf("scenes/default.toml"))
	assert.Equal(t, ResourceTypeImage, TypeOf("a/B.JPG"))
	assert.Equal(t, ResourceTypeNone, TypeOf("notes.txt"))
	assert.Equal(t, "mesh", ResourceTypeMesh.String())
}
