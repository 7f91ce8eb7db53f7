package loaders

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spaghettifunk/lumen/engine/scene"
)

// ModelLoader reads the geometry of Wavefront OBJ files. Every `o` or `g`
// statement starts a new sub-mesh; texture coordinates, normals and
// materials are skipped.
type ModelLoader struct{}

func (ml *ModelLoader) Load(path string, params interface{}) (*Resource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	name := resourceName(path)
	meshes, err := ParseOBJ(f, name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &Resource{
		Name:     name,
		FullPath: path,
		DataSize: uint64(info.Size()),
		Data:     meshes,
	}, nil
}

func (ml *ModelLoader) Unload(*Resource) error {
	return nil
}

// objMesh collects one sub-mesh. OBJ indices are global to the file, remap
// turns them into indices local to the sub-mesh.
type objMesh struct {
	mesh  scene.Mesh
	remap map[int]uint32
}

func (m *objMesh) vertex(global int, positions [][3]float32) uint32 {
	if local, ok := m.remap[global]; ok {
		return local
	}
	local := uint32(len(m.mesh.Positions))
	m.mesh.Positions = append(m.mesh.Positions, positions[global])
	m.remap[global] = local
	return local
}

// ParseOBJ returns the sub-meshes of r in file order. Sub-meshes without
// faces are dropped. Mesh IDs are left to the caller.
func ParseOBJ(r io.Reader, name string) ([]scene.Mesh, error) {
	var positions [][3]float32
	var meshes []scene.Mesh
	current := &objMesh{mesh: scene.Mesh{Name: name}, remap: map[int]uint32{}}
	flush := func() {
		if len(current.mesh.Triangles) > 0 {
			meshes = append(meshes, current.mesh)
		}
	}

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		switch fields[0] {
		case "v":
			if len(fields) < 4 {
				return nil, fmt.Errorf("line %d: vertex needs 3 coordinates", line)
			}
			var p [3]float32
			for i := 0; i < 3; i++ {
				v, err := strconv.ParseFloat(fields[i+1], 32)
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", line, err)
				}
				p[i] = float32(v)
			}
			positions = append(positions, p)
		case "o", "g":
			flush()
			sub := name
			if len(fields) > 1 {
				sub = name + "/" + strings.Join(fields[1:], " ")
			}
			current = &objMesh{mesh: scene.Mesh{Name: sub}, remap: map[int]uint32{}}
		case "f":
			if len(fields) < 4 {
				return nil, fmt.Errorf("line %d: face needs at least 3 vertices", line)
			}
			corners := make([]uint32, 0, len(fields)-1)
			for _, tok := range fields[1:] {
				global, err := faceIndex(tok, len(positions))
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", line, err)
				}
				corners = append(corners, current.vertex(global, positions))
			}
			// Polygons are triangulated as a fan around the first corner.
			for i := 1; i+1 < len(corners); i++ {
				current.mesh.Triangles = append(current.mesh.Triangles, [3]uint32{corners[0], corners[i], corners[i+1]})
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()
	if len(meshes) == 0 {
		return nil, fmt.Errorf("no faces in %s", name)
	}
	return meshes, nil
}

// faceIndex resolves the position part of "v", "v/vt", "v//vn" or
// "v/vt/vn". Negative indices count back from the last vertex.
func faceIndex(tok string, count int) (int, error) {
	if i := strings.IndexByte(tok, '/'); i >= 0 {
		tok = tok[:i]
	}
	idx, err := strconv.Atoi(tok)
	if err != nil {
		return 0, fmt.Errorf("invalid face index %q", tok)
	}
	switch {
	case idx > 0:
		idx--
	case idx < 0:
		idx += count
	default:
		return 0, fmt.Errorf("face index 0 is invalid")
	}
	if idx < 0 || idx >= count {
		return 0, fmt.Errorf("face index %s out of %d vertices", tok, count)
	}
	return idx, nil
}
