package scene

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/lumen/engine/core"
)

// ErrTransformCycle is returned when a parent chain loops back on itself.
var ErrTransformCycle = errors.New("transform hierarchy has a cycle")

// EntityID indexes every per-entity slice of a Graph.
type EntityID int32

const NoEntity EntityID = -1

// NoGeometry marks entities that are not drawn.
const NoGeometry = -1

// Graph stores entities as parallel slices. World transforms are resolved
// in topological order by Resolve.
type Graph struct {
	Names      []string
	Parents    []EntityID
	Locals     []mgl32.Mat4
	Worlds     []mgl32.Mat4
	Geometries []int

	order []EntityID
	dirty bool
}

func NewGraph() *Graph {
	return &Graph{}
}

// Instance is a drawn entity joined with its geometry and world transform.
type Instance struct {
	Entity   EntityID
	Geometry int
	World    mgl32.Mat4
}

func (g *Graph) Len() int {
	return len(g.Parents)
}

func (g *Graph) Add(name string, parent EntityID, local mgl32.Mat4) EntityID {
	id := EntityID(len(g.Parents))
	g.Names = append(g.Names, name)
	g.Parents = append(g.Parents, parent)
	g.Locals = append(g.Locals, local)
	g.Worlds = append(g.Worlds, local)
	g.Geometries = append(g.Geometries, NoGeometry)
	g.dirty = true
	return id
}

func (g *Graph) SetParent(e, parent EntityID) {
	g.Parents[e] = parent
	g.dirty = true
}

func (g *Graph) SetLocal(e EntityID, local mgl32.Mat4) {
	g.Locals[e] = local
	g.dirty = true
}

func (g *Graph) SetGeometry(e EntityID, geometry int) {
	g.Geometries[e] = geometry
}

// Clear removes every entity.
func (g *Graph) Clear() {
	g.Names = g.Names[:0]
	g.Parents = g.Parents[:0]
	g.Locals = g.Locals[:0]
	g.Worlds = g.Worlds[:0]
	g.Geometries = g.Geometries[:0]
	g.order = g.order[:0]
	g.dirty = false
}

// Resolve recomputes every world transform. Parents are always resolved
// before their children; a cycle returns ErrTransformCycle.
func (g *Graph) Resolve() error {
	if g.dirty {
		order, err := g.topologicalOrder()
		if err != nil {
			return err
		}
		g.order = order
		g.dirty = false
	}
	for _, e := range g.order {
		if p := g.Parents[e]; p != NoEntity {
			g.Worlds[e] = g.Worlds[p].Mul4(g.Locals[e])
		} else {
			g.Worlds[e] = g.Locals[e]
		}
	}
	return nil
}

const (
	unvisited uint8 = iota
	visiting
	done
)

func (g *Graph) topologicalOrder() ([]EntityID, error) {
	n := len(g.Parents)
	state := make([]uint8, n)
	order := make([]EntityID, 0, n)
	var chain []EntityID
	for start := 0; start < n; start++ {
		chain = chain[:0]
		for e := EntityID(start); e != NoEntity && state[e] != done; e = g.Parents[e] {
			if e < 0 || int(e) >= n {
				return nil, fmt.Errorf("entity %d: parent %d does not exist", chain[len(chain)-1], e)
			}
			if state[e] == visiting {
				return nil, fmt.Errorf("%w: entity %d (%s)", ErrTransformCycle, e, g.Names[e])
			}
			state[e] = visiting
			chain = append(chain, e)
		}
		for i := len(chain) - 1; i >= 0; i-- {
			state[chain[i]] = done
			order = append(order, chain[i])
		}
	}
	return order, nil
}

// Instances joins the drawn entities with their world transforms, in
// entity order.
func (g *Graph) Instances() []Instance {
	var out []Instance
	for i, geo := range g.Geometries {
		if geo == NoGeometry {
			continue
		}
		out = append(out, Instance{Entity: EntityID(i), Geometry: geo, World: g.Worlds[i]})
	}
	return out
}

// BuildGraph creates one entity per node and one child entity per mesh
// reference, then resolves world transforms. Errors wrap
// core.ErrSceneLoad.
func BuildGraph(src *Source) (*Graph, error) {
	g := NewGraph()
	if err := g.Load(src); err != nil {
		return nil, err
	}
	return g, nil
}

// Load replaces the content of g with the hierarchy of src.
func (g *Graph) Load(src *Source) error {
	g.Clear()
	entities := make([]EntityID, len(src.Nodes))
	for i := range entities {
		entities[i] = NoEntity
	}
	onPath := make([]bool, len(src.Nodes))

	var visit func(node int, parent EntityID) error
	visit = func(node int, parent EntityID) error {
		if onPath[node] {
			return fmt.Errorf("%w: %w: node %q", core.ErrSceneLoad, ErrTransformCycle, src.Nodes[node].Name)
		}
		if entities[node] != NoEntity {
			return fmt.Errorf("%w: node %q has more than one parent", core.ErrSceneLoad, src.Nodes[node].Name)
		}
		n := src.Nodes[node]
		e := g.Add(n.Name, parent, n.Transform)
		entities[node] = e
		for _, m := range n.Meshes {
			inst := g.Add(fmt.Sprintf("%s/%s", n.Name, src.Meshes[m].Name), e, mgl32.Ident4())
			g.SetGeometry(inst, m)
		}
		onPath[node] = true
		for _, c := range n.Children {
			if err := visit(c, e); err != nil {
				return err
			}
		}
		onPath[node] = false
		return nil
	}
	for _, r := range src.Roots {
		if err := visit(r, NoEntity); err != nil {
			return err
		}
	}
	if err := g.Resolve(); err != nil {
		return fmt.Errorf("%w: %w", core.ErrSceneLoad, err)
	}
	return nil
}
