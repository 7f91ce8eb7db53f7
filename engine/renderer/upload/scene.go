// Package upload moves an imported scene into GPU memory.
package upload

import (
	"github.com/google/uuid"

	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
	"github.com/spaghettifunk/lumen/engine/scene"
)

// Slots of the scene table, in the order the shaders expect.
const (
	SceneIndices uint32 = iota
	SceneVertices
	SceneDraws
	SceneInstances
	SceneTableSize
)

const (
	// VertexStride is one packed float3 position.
	VertexStride = 12
	// InstanceSize is a 3x4 world matrix, geometry id, texture slot and
	// padding.
	InstanceSize = 64
)

// SceneGPU is a Ready scene. The mesh buffers are shared so passes can
// keep them alive across a reload until their last frame retires.
type SceneGPU struct {
	Generation uuid.UUID
	Name       string

	VertexBuffer   *gpu.Shared
	IndexBuffer    *gpu.Shared
	DrawBuffer     *gpu.Shared
	InstanceBuffer *gpu.Shared
	LightBuffer    gpu.Resource
	Textures       []gpu.Resource

	Geometries []scene.Geometry
	Instances  []scene.Instance

	// First resource view slot of each table.
	SceneTable   uint32
	LightTable   uint32
	TextureTable uint32

	TextureCount uint32
	NumLights    uint32
	VertexCount  uint32
	IndexCount   uint32
}

// Release frees every GPU object of the scene. Only call it once the fence
// passed the last frame drawing the scene.
func (s *SceneGPU) Release() {
	for _, b := range []*gpu.Shared{s.VertexBuffer, s.IndexBuffer, s.DrawBuffer, s.InstanceBuffer} {
		if b != nil {
			b.Release()
		}
	}
	if s.LightBuffer != nil {
		s.LightBuffer.Release()
	}
	for _, t := range s.Textures {
		t.Release()
	}
	s.VertexBuffer, s.IndexBuffer, s.DrawBuffer, s.InstanceBuffer = nil, nil, nil, nil
	s.LightBuffer, s.Textures = nil, nil
}

// Staging holds the upload heap copies of a load. It must stay alive until
// the fence passes the submission that executes the copies.
type Staging struct {
	resources []gpu.Resource
}

func (s *Staging) Len() int {
	return len(s.resources)
}

func (s *Staging) Release() {
	for _, r := range s.resources {
		r.Release()
	}
	s.resources = nil
}
