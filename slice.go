package meshslice

import (
	"io"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// DefaultMergeTol is the endpoint merge tolerance used by the zero value
// Slicer. See Slicer.MergeTol.
const DefaultMergeTol = 1e-5

// Slicer computes horizontal cross-sections of triangle meshes. It is an
// immutable configuration value and holds no state between calls, so a single
// Slicer may be shared freely.
type Slicer struct {
	// MergeTol is the quantization pitch used to merge coincident segment
	// endpoints while stitching contours. Endpoints are binned on a grid of
	// this spacing: the tolerance must be coarse enough to merge points that
	// are mathematically identical but differ by floating point noise, yet
	// fine enough not to merge genuinely distinct vertices. Points within
	// tolerance that straddle a grid cell boundary may legitimately not
	// merge. Zero or negative means DefaultMergeTol.
	MergeTol float64
}

// Segment is an ordered pair of points produced by intersecting one triangle
// with a horizontal plane. Its points live on the slicing plane.
type Segment struct {
	A, B r2.Vec
}

// Segments intersects every triangle read from src with the plane at height z
// and returns one segment per triangle whose boundary crosses it. Heights
// outside the mesh z range simply yield no segments. Triangles producing
// non-finite intersection points are skipped.
func (s Slicer) Segments(src TriangleSource, z float64) ([]Segment, error) {
	var err error
	var nt int
	segs := make([]Segment, 0, 256)
	buf := make([]Triangle, 1024)
	for {
		nt, err = src.ReadTriangles(buf)
		for _, t := range buf[:nt] {
			if seg, ok := intersectTriangle(t, z); ok {
				segs = append(segs, seg)
			}
		}
		if err != nil {
			break
		}
	}
	if err == io.EOF {
		return segs, nil
	}
	return segs, err
}

// Slice computes the contour loops of the mesh cross-section at height z.
// It is shorthand for Segments followed by Stitch.
func (s Slicer) Slice(src TriangleSource, z float64) ([]Contour, error) {
	segs, err := s.Segments(src, z)
	if err != nil {
		return nil, err
	}
	return s.Stitch(segs), nil
}

// intersectTriangle returns the segment in which the plane z=const crosses
// the triangle's boundary. A vertex lying exactly on the plane is emitted
// once and deduplicated; an edge lying entirely on the plane is skipped since
// the remaining two edges supply its endpoints. The crossing test is
// half-open (one endpoint above or on the plane, the other strictly below)
// so that a vertex on the plane is never counted as both above and below.
// ok is false unless exactly two distinct finite points were collected.
func intersectTriangle(tri Triangle, z float64) (seg Segment, ok bool) {
	var pts [2]r2.Vec
	n := 0
	for i := 0; i < 3; i++ {
		a := tri.V[i]
		b := tri.V[(i+1)%3]
		switch {
		case a.Z == z && b.Z == z:
			continue
		case a.Z == z:
			n = collect(&pts, n, r2.Vec{X: a.X, Y: a.Y})
		case b.Z == z:
			n = collect(&pts, n, r2.Vec{X: b.X, Y: b.Y})
		case (a.Z > z) != (b.Z > z):
			t := (z - a.Z) / (b.Z - a.Z)
			n = collect(&pts, n, r2.Vec{
				X: a.X + t*(b.X-a.X),
				Y: a.Y + t*(b.Y-a.Y),
			})
		}
	}
	if n != 2 {
		return Segment{}, false
	}
	return Segment{A: pts[0], B: pts[1]}, true
}

// collect appends p to the triangle's crossing points unless p is non-finite
// or already present. Collection is capped at the two points a plane can cut
// from a triangle boundary; numeric freaks beyond that keep the first two.
func collect(pts *[2]r2.Vec, n int, p r2.Vec) int {
	if bad2(p) {
		return n
	}
	for i := 0; i < n; i++ {
		if pts[i] == p {
			return n
		}
	}
	if n < 2 {
		pts[n] = p
		n++
	}
	return n
}

func bad2(p r2.Vec) bool {
	return math.IsNaN(p.X) || math.IsInf(p.X, 0) ||
		math.IsNaN(p.Y) || math.IsInf(p.Y, 0)
}
