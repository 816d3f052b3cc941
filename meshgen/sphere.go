// Package meshgen generates triangle meshes for simple solids. The
// constructors return triangle sources or buffers ready for slicing,
// packing and STL/OBJ output.
package meshgen

import (
	"io"
	"math"

	"github.com/soypat/meshslice"
	"gonum.org/v1/gonum/spatial/r3"
)

// Sphere streams the surface triangles of a sphere, optionally truncated by
// a horizontal plane. It implements meshslice.TriangleSource and is drained
// by reading, like meshslice.Buffer.
type Sphere struct {
	pole   r3.Vec     // north pole, on the surface
	bottom r3.Vec     // south pole, or cut face center when truncated
	rings  [][]r3.Vec // latitude rings from pole towards bottom
	cut    bool       // bottom closes a flat cut face
	nlon   int
	next   int // next triangle index
}

// NewSphere constructs a sphere of given center and radius tessellated with
// nlat latitude divisions and nlon longitude divisions. cutAngle is the
// polar angle from the top of the sphere at which the surface stops; math.Pi
// yields the whole sphere, smaller values cut the bottom off with a flat
// horizontal face. Geometry matches meshslice.SpherePlacement so packed
// spheres can be meshed directly.
func NewSphere(center r3.Vec, radius, cutAngle float64, nlat, nlon int) *Sphere {
	switch {
	case radius <= 0 || math.IsInf(radius, 0) || math.IsNaN(radius):
		panic("radius <= 0 or not finite")
	case nlat < 2:
		panic("latitude divisions < 2")
	case nlon < 3:
		panic("longitude divisions < 3")
	case !(cutAngle > 0) || cutAngle > math.Pi:
		panic("cut angle outside (0, pi]")
	}
	cut := cutAngle != math.Pi
	// The last ring sits on the cut plane when truncated. For the whole
	// sphere the bottom pole takes its place.
	nrings := nlat
	if !cut {
		nrings = nlat - 1
	}
	rings := make([][]r3.Vec, nrings)
	for i := range rings {
		phi := cutAngle * float64(i+1) / float64(nlat)
		ring := make([]r3.Vec, nlon)
		for j := range ring {
			psi := 2 * math.Pi * float64(j) / float64(nlon)
			ring[j] = r3.Add(center, r3.Vec{
				X: radius * math.Sin(phi) * math.Cos(psi),
				Y: radius * math.Sin(phi) * math.Sin(psi),
				Z: radius * math.Cos(phi),
			})
		}
		rings[i] = ring
	}
	bottom := r3.Add(center, r3.Vec{Z: -radius})
	if cut {
		bottom = r3.Add(center, r3.Vec{Z: radius * math.Cos(cutAngle)})
	}
	return &Sphere{
		pole:   r3.Add(center, r3.Vec{Z: radius}),
		bottom: bottom,
		rings:  rings,
		cut:    cut,
		nlon:   nlon,
	}
}

// Len returns the number of triangles not yet read from the sphere.
func (s *Sphere) Len() int { return s.total() - s.next }

func (s *Sphere) total() int { return 2 * s.nlon * len(s.rings) }

// ReadTriangles implements meshslice.TriangleSource.
func (s *Sphere) ReadTriangles(dst []meshslice.Triangle) (int, error) {
	total := s.total()
	if s.next >= total {
		return 0, io.EOF
	}
	n := 0
	for n < len(dst) && s.next < total {
		dst[n] = s.triangleAt(s.next)
		n++
		s.next++
	}
	return n, nil
}

// triangleAt computes triangle k of the tessellation: a fan around the top
// pole, quad bands between consecutive rings, and a closing fan around the
// bottom pole or across the cut face. All triangles wind counterclockwise
// seen from outside the solid.
func (s *Sphere) triangleAt(k int) meshslice.Triangle {
	nlon := s.nlon
	if k < nlon {
		j := k
		ring := s.rings[0]
		return meshslice.Triangle{V: [3]r3.Vec{s.pole, ring[j], ring[(j+1)%nlon]}}
	}
	k -= nlon
	bands := 2 * nlon * (len(s.rings) - 1)
	if k < bands {
		q := k / (2 * nlon)
		r := k % (2 * nlon)
		j, j1 := r/2, (r/2+1)%nlon
		a, b := s.rings[q], s.rings[q+1]
		if r%2 == 0 {
			return meshslice.Triangle{V: [3]r3.Vec{a[j], b[j], b[j1]}}
		}
		return meshslice.Triangle{V: [3]r3.Vec{a[j], b[j1], a[j1]}}
	}
	k -= bands
	// Reversed winding so the closing fan faces away from the sphere body.
	ring := s.rings[len(s.rings)-1]
	return meshslice.Triangle{V: [3]r3.Vec{s.bottom, ring[(k+1)%nlon], ring[k]}}
}
