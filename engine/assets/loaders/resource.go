package loaders

import (
	"path/filepath"
	"strings"
)

type ResourceType int

const (
	ResourceTypeNone ResourceType = iota
	// Scene manifest, Data is *scene.Source.
	ResourceTypeScene
	// Wavefront geometry, Data is []scene.Mesh.
	ResourceTypeMesh
	// Decoded image, Data is image.Image.
	ResourceTypeImage
)

func (t ResourceType) String() string {
	switch t {
	case ResourceTypeScene:
		return "scene"
	case ResourceTypeMesh:
		return "mesh"
	case ResourceTypeImage:
		return "image"
	}
	return "none"
}

// Resource is what every loader produces.
type Resource struct {
	Name     string
	FullPath string
	// DataSize is the size of the file the resource was read from.
	DataSize uint64
	Data     interface{}
}

// TypeOf picks the resource type from the file extension.
func TypeOf(path string) ResourceType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return ResourceTypeScene
	case ".obj":
		return ResourceTypeMesh
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp":
		return ResourceTypeImage
	}
	return ResourceTypeNone
}

func resourceName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
