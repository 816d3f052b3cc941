// Package meshslice computes planar cross-sections of triangle meshes and
// packs the enclosed volume with layered sphere placements.
package meshslice

import (
	"io"
	"math"

	"github.com/soypat/meshslice/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// Triangle is a 3D triangle defined by three vertices in world coordinates.
// It has no identity beyond its vertices.
type Triangle struct {
	V [3]r3.Vec
}

// Normal returns the triangle's unit normal calculated with the right hand
// rule from the vertex ordering. Degenerate triangles return the zero vector.
func (t Triangle) Normal() r3.Vec {
	n := r3.Cross(r3.Sub(t.V[1], t.V[0]), r3.Sub(t.V[2], t.V[0]))
	norm := r3.Norm(n)
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return r3.Vec{}
	}
	return r3.Scale(1/norm, n)
}

// TriangleSource is a source of triangles in world coordinates.
// Implementations stream a mesh without exposing its storage, so the
// slicing and packing entry points never depend on a scene or file type.
type TriangleSource interface {
	// ReadTriangles reads up to len(dst) triangles into dst and returns
	// the number read. It returns io.EOF once the source is exhausted.
	ReadTriangles(dst []Triangle) (int, error)
}

// ReadAll reads the full contents of a TriangleSource and returns the slice
// read. It does not return error on io.EOF, like the io.ReadAll implementation.
func ReadAll(src TriangleSource) ([]Triangle, error) {
	var err error
	var nt int
	result := make([]Triangle, 0, 1<<12)
	buf := make([]Triangle, 1024)
	for {
		nt, err = src.ReadTriangles(buf)
		result = append(result, buf[:nt]...)
		if err != nil {
			break
		}
	}
	if err == io.EOF {
		return result, nil
	}
	return result, err
}

// Buffer is an in-memory TriangleSource backed by a triangle slice.
// Reading consumes the buffer.
type Buffer struct {
	buf []Triangle
}

// NewBuffer returns a Buffer that reads from tris. The slice is not copied.
func NewBuffer(tris []Triangle) *Buffer {
	return &Buffer{buf: tris}
}

// ReadTriangles reads from this buffer.
func (b *Buffer) ReadTriangles(dst []Triangle) (int, error) {
	if len(b.buf) == 0 {
		return 0, io.EOF
	}
	n := copy(dst, b.buf)
	b.buf = b.buf[n:]
	return n, nil
}

// Len returns the number of unread triangles.
func (b *Buffer) Len() int { return len(b.buf) }

// FromIndexed assembles triangles from shared vertex positions and an index
// buffer, three indices per triangle. It panics on a malformed index buffer;
// readers of untrusted data validate indices before calling.
func FromIndexed(vertices []r3.Vec, indices []int) []Triangle {
	if len(indices)%3 != 0 {
		panic("index count not a multiple of 3")
	}
	tris := make([]Triangle, len(indices)/3)
	for i := range tris {
		for j := 0; j < 3; j++ {
			tris[i].V[j] = vertices[indices[i*3+j]]
		}
	}
	return tris
}

// Bounds returns the axis aligned bounding box of the triangle set. Vertices
// with non-finite coordinates are ignored. ok is false when no finite vertex
// exists.
func Bounds(tris []Triangle) (bb r3.Box, ok bool) {
	bb.Min = d3.Elem(math.Inf(1))
	bb.Max = d3.Elem(math.Inf(-1))
	for i := range tris {
		for _, v := range tris[i].V {
			if bad3(v) {
				continue
			}
			bb.Min = d3.MinElem(bb.Min, v)
			bb.Max = d3.MaxElem(bb.Max, v)
			ok = true
		}
	}
	if !ok {
		return r3.Box{}, false
	}
	return bb, ok
}

func bad3(v r3.Vec) bool {
	return math.IsNaN(v.X) || math.IsInf(v.X, 0) ||
		math.IsNaN(v.Y) || math.IsInf(v.Y, 0) ||
		math.IsNaN(v.Z) || math.IsInf(v.Z, 0)
}
