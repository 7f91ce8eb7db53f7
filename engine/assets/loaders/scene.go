package loaders

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/jobs"
	"github.com/spaghettifunk/lumen/engine/scene"
)

// manifest is the TOML layout of a scene file:
//
//	name = "courtyard"
//	default_lights = 8
//
//	[[meshes]]
//	name = "floor"
//	file = "meshes/floor.obj"
//	texture = "textures/stone.png"
//
//	[[nodes]]
//	name = "root"
//	meshes = ["floor"]
//	translation = [0.0, -1.0, 0.0]
type manifest struct {
	Name   string       `toml:"name"`
	Meshes []meshEntry  `toml:"meshes"`
	Nodes  []nodeEntry  `toml:"nodes"`
	Lights []lightEntry `toml:"lights"`
	// DefaultLights generates a row of lights when Lights is empty.
	DefaultLights int `toml:"default_lights"`
}

// meshEntry reads its geometry from File, or inline from Positions and
// Triangles. A file can expand into several sub-meshes.
type meshEntry struct {
	Name      string       `toml:"name"`
	File      string       `toml:"file"`
	Texture   string       `toml:"texture"`
	Positions [][3]float32 `toml:"positions"`
	Triangles [][3]uint32  `toml:"triangles"`
}

type nodeEntry struct {
	Name        string     `toml:"name"`
	Translation [3]float32 `toml:"translation"`
	// Rotation is in degrees, applied X then Y then Z.
	Rotation [3]float32  `toml:"rotation"`
	Scale    *[3]float32 `toml:"scale"`
	Meshes   []string    `toml:"meshes"`
	Children []string    `toml:"children"`
}

type lightEntry struct {
	Position  [3]float32 `toml:"position"`
	Intensity float32    `toml:"intensity"`
}

// SceneLoader builds a scene.Source from a manifest. Relative mesh and
// texture paths are resolved against the manifest directory.
type SceneLoader struct {
	Models *ModelLoader
}

func (sl *SceneLoader) Load(path string, params interface{}) (*Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrSceneLoad, err)
	}
	src, err := sl.Parse(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if src.Name == "" {
		src.Name = resourceName(path)
	}
	return &Resource{
		Name:     src.Name,
		FullPath: path,
		DataSize: uint64(len(data)),
		Data:     src,
	}, nil
}

func (sl *SceneLoader) Unload(*Resource) error {
	return nil
}

// Parse decodes a manifest. dir is the base of relative paths.
func (sl *SceneLoader) Parse(data []byte, dir string) (*scene.Source, error) {
	fail := func(format string, args ...interface{}) error {
		return fmt.Errorf("%w: %s", core.ErrSceneLoad, fmt.Sprintf(format, args...))
	}
	var m manifest
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrSceneLoad, err)
	}

	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}

	for i, e := range m.Meshes {
		if e.Name == "" {
			return nil, fail("mesh %d has no name", i)
		}
		if e.File == "" && len(e.Triangles) == 0 {
			return nil, fail("mesh %q has neither a file nor triangles", e.Name)
		}
	}

	// Mesh files are parsed concurrently; ids follow manifest order.
	loaded := make([][]scene.Mesh, len(m.Meshes))
	err := jobs.Each(len(m.Meshes), runtime.GOMAXPROCS(0), func(i int) error {
		e := m.Meshes[i]
		if e.File == "" {
			loaded[i] = []scene.Mesh{{Name: e.Name, Positions: e.Positions, Triangles: e.Triangles}}
			return nil
		}
		res, err := sl.models().Load(resolve(e.File), nil)
		if err != nil {
			return fmt.Errorf("%w: mesh %q: %w", core.ErrSceneLoad, e.Name, err)
		}
		loaded[i] = res.Data.([]scene.Mesh)
		return nil
	})
	if err != nil {
		return nil, err
	}

	src := &scene.Source{Name: m.Name}
	// Every manifest mesh maps to the sub-meshes it produced.
	byName := map[string][]int{}
	for i, e := range m.Meshes {
		if _, ok := byName[e.Name]; ok {
			return nil, fail("duplicate mesh %q", e.Name)
		}
		for _, sub := range loaded[i] {
			sub.ID = uint32(len(src.Meshes))
			sub.Texture = resolve(e.Texture)
			byName[e.Name] = append(byName[e.Name], len(src.Meshes))
			src.Meshes = append(src.Meshes, sub)
		}
	}

	if len(m.Nodes) == 0 {
		// Without a hierarchy every mesh hangs off one identity root.
		root := scene.Node{Name: "root", Transform: mgl32.Ident4()}
		for i := range src.Meshes {
			root.Meshes = append(root.Meshes, i)
		}
		src.Nodes = []scene.Node{root}
		src.Roots = []int{0}
	} else if err := buildNodes(src, m.Nodes, byName); err != nil {
		return nil, err
	}

	for _, l := range m.Lights {
		src.Lights = append(src.Lights, scene.PointLight{Position: l.Position, Intensity: l.Intensity})
	}
	if len(src.Lights) == 0 && m.DefaultLights > 0 {
		src.Lights = scene.DefaultLights(m.DefaultLights)
	}

	if err := src.Validate(); err != nil {
		return nil, err
	}
	return src, nil
}

func (sl *SceneLoader) models() *ModelLoader {
	if sl.Models == nil {
		return &ModelLoader{}
	}
	return sl.Models
}

// buildNodes resolves names into indices. Nodes nobody lists as a child are
// roots, in declaration order.
func buildNodes(src *scene.Source, entries []nodeEntry, meshes map[string][]int) error {
	index := make(map[string]int, len(entries))
	for i, n := range entries {
		if n.Name == "" {
			return fmt.Errorf("%w: node %d has no name", core.ErrSceneLoad, i)
		}
		if _, ok := index[n.Name]; ok {
			return fmt.Errorf("%w: duplicate node %q", core.ErrSceneLoad, n.Name)
		}
		index[n.Name] = i
	}
	isChild := make([]bool, len(entries))
	for _, n := range entries {
		node := scene.Node{Name: n.Name, Transform: nodeTransform(n)}
		for _, name := range n.Meshes {
			refs, ok := meshes[name]
			if !ok {
				return fmt.Errorf("%w: node %q references unknown mesh %q", core.ErrSceneLoad, n.Name, name)
			}
			node.Meshes = append(node.Meshes, refs...)
		}
		for _, name := range n.Children {
			c, ok := index[name]
			if !ok {
				return fmt.Errorf("%w: node %q references unknown child %q", core.ErrSceneLoad, n.Name, name)
			}
			isChild[c] = true
			node.Children = append(node.Children, c)
		}
		src.Nodes = append(src.Nodes, node)
	}
	for i, child := range isChild {
		if !child {
			src.Roots = append(src.Roots, i)
		}
	}
	if len(src.Roots) == 0 {
		return fmt.Errorf("%w: node hierarchy has no root", core.ErrSceneLoad)
	}
	return nil
}

// nodeTransform is translation * rotation * scale.
func nodeTransform(n nodeEntry) mgl32.Mat4 {
	scale := mgl32.Vec3{1, 1, 1}
	if n.Scale != nil {
		scale = mgl32.Vec3(*n.Scale)
	}
	r := n.Rotation
	rotation := mgl32.AnglesToQuat(mgl32.DegToRad(r[0]), mgl32.DegToRad(r[1]), mgl32.DegToRad(r[2]), mgl32.XYZ)
	t := n.Translation
	return mgl32.Translate3D(t[0], t[1], t[2]).
		Mul4(rotation.Mat4()).
		Mul4(mgl32.Scale3D(scale[0], scale[1], scale[2]))
}
