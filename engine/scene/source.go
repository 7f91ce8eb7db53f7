// Package scene holds imported scene data and the entity graph built from
// it.
package scene

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/lumen/engine/core"
)

// Mesh is one sub-mesh as produced by an importer.
type Mesh struct {
	ID        uint32
	Name      string
	Positions [][3]float32
	Triangles [][3]uint32
	// Texture is an optional image path, already resolved by the importer.
	Texture string
}

// Node is one element of the imported hierarchy. Children and Meshes are
// indices into Source.Nodes and Source.Meshes.
type Node struct {
	Name      string
	Transform mgl32.Mat4
	Meshes    []int
	Children  []int
}

// Source is everything the upload layer needs from a scene file.
type Source struct {
	Name   string
	Meshes []Mesh
	Nodes  []Node
	// Roots are the top level nodes.
	Roots  []int
	Lights []PointLight
}

// Validate checks references and index ranges. Errors wrap
// core.ErrSceneLoad.
func (s *Source) Validate() error {
	fail := func(format string, args ...interface{}) error {
		return fmt.Errorf("%w: %s", core.ErrSceneLoad, fmt.Sprintf(format, args...))
	}
	ids := map[uint32]bool{}
	for i, m := range s.Meshes {
		if ids[m.ID] {
			return fail("mesh %d: duplicate id %d", i, m.ID)
		}
		ids[m.ID] = true
		for t, tri := range m.Triangles {
			for _, idx := range tri {
				if int(idx) >= len(m.Positions) {
					return fail("mesh %q triangle %d: index %d out of %d vertices", m.Name, t, idx, len(m.Positions))
				}
			}
		}
	}
	for i, n := range s.Nodes {
		for _, m := range n.Meshes {
			if m < 0 || m >= len(s.Meshes) {
				return fail("node %q: mesh reference %d out of range", n.Name, m)
			}
		}
		for _, c := range n.Children {
			if c < 0 || c >= len(s.Nodes) || c == i {
				return fail("node %q: child reference %d invalid", n.Name, c)
			}
		}
	}
	for _, r := range s.Roots {
		if r < 0 || r >= len(s.Nodes) {
			return fail("root reference %d out of range", r)
		}
	}
	return nil
}

// Triangle returns a single triangle scene with one light, mostly useful
// for smoke tests.
func Triangle() *Source {
	return &Source{
		Name: "triangle",
		Meshes: []Mesh{{
			ID:        0,
			Name:      "triangle",
			Positions: [][3]float32{{-1, 0, -5}, {1, 0, -5}, {0, 1, -5}},
			Triangles: [][3]uint32{{0, 1, 2}},
		}},
		Nodes: []Node{{Name: "root", Transform: mgl32.Ident4(), Meshes: []int{0}}},
		Roots: []int{0},
		Lights: []PointLight{{
			Position:  [3]float32{0, 2, -3},
			Intensity: 10,
		}},
	}
}
