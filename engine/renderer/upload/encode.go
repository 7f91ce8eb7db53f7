package upload

import (
	"encoding/binary"
	"image"
	"math"

	"golang.org/x/image/draw"

	"github.com/spaghettifunk/lumen/engine/scene"
)

func putF32(b []byte, v float32) {
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
}

func encodeVertices(meshes []scene.Mesh, count uint32) []byte {
	out := make([]byte, 0, int(count)*VertexStride)
	for _, m := range meshes {
		for _, p := range m.Positions {
			var v [VertexStride]byte
			putF32(v[0:], p[0])
			putF32(v[4:], p[1])
			putF32(v[8:], p[2])
			out = append(out, v[:]...)
		}
	}
	return out
}

// encodeIndices keeps indices local to their mesh; BaseVertex is applied
// by the draw.
func encodeIndices(meshes []scene.Mesh, count uint32) []byte {
	out := make([]byte, 0, int(count)*4)
	for _, m := range meshes {
		for _, t := range m.Triangles {
			for _, i := range t {
				out = binary.LittleEndian.AppendUint32(out, i)
			}
		}
	}
	return out
}

func encodeDraws(geometries []scene.Geometry) []byte {
	out := make([]byte, 0, len(geometries)*scene.DrawRecordSize)
	for _, g := range geometries {
		r := g.Record()
		out = binary.LittleEndian.AppendUint32(out, r.BaseIndex)
		out = binary.LittleEndian.AppendUint32(out, r.BaseVertex)
	}
	return out
}

func encodeInstances(instances []scene.Instance, textureOf func(geometry int) uint32) []byte {
	out := make([]byte, len(instances)*InstanceSize)
	for n, inst := range instances {
		rec := out[n*InstanceSize:]
		for row := 0; row < 3; row++ {
			for col := 0; col < 4; col++ {
				putF32(rec[(row*4+col)*4:], inst.World.At(row, col))
			}
		}
		binary.LittleEndian.PutUint32(rec[48:], uint32(inst.Geometry))
		binary.LittleEndian.PutUint32(rec[52:], textureOf(inst.Geometry))
	}
	return out
}

func encodeLights(lights []scene.PointLight) []byte {
	out := make([]byte, len(lights)*scene.PointLightSize)
	for n, l := range lights {
		rec := out[n*scene.PointLightSize:]
		putF32(rec[0:], l.Position[0])
		putF32(rec[4:], l.Position[1])
		putF32(rec[8:], l.Position[2])
		putF32(rec[12:], l.Intensity)
	}
	return out
}

// toRGBA converts any decoded image into tightly packed RGBA8 rows.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Stride == rgba.Rect.Dx()*4 && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}

func whitePixel() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	copy(img.Pix, []byte{0xFF, 0xFF, 0xFF, 0xFF})
	return img
}
