package scene

// Geometry is a sub-range of the scene wide vertex and index buffers.
type Geometry struct {
	ID         uint32
	BaseIndex  uint32
	IndexCount uint32
	BaseVertex uint32
}

// DrawRecord is the per geometry record the shaders read.
type DrawRecord struct {
	BaseIndex  uint32
	BaseVertex uint32
}

// DrawRecordSize is the size of a DrawRecord in the draw data buffer.
const DrawRecordSize = 8

// Layout packs meshes back to back and returns one Geometry per mesh, in
// mesh order, with the totals.
func Layout(meshes []Mesh) (geometries []Geometry, vertices, indices uint32) {
	geometries = make([]Geometry, len(meshes))
	for i, m := range meshes {
		geometries[i] = Geometry{
			ID:         uint32(i),
			BaseIndex:  indices,
			IndexCount: uint32(len(m.Triangles) * 3),
			BaseVertex: vertices,
		}
		vertices += uint32(len(m.Positions))
		indices += uint32(len(m.Triangles) * 3)
	}
	return geometries, vertices, indices
}

func (g Geometry) Record() DrawRecord {
	return DrawRecord{BaseIndex: g.BaseIndex, BaseVertex: g.BaseVertex}
}
