package meshgen

import (
	"math"

	"github.com/soypat/meshslice"
	"gonum.org/v1/gonum/spatial/r3"
)

// NewTorus constructs a torus centered at the origin around the Z axis.
// major is the distance from the torus center to the tube center, minor the
// tube radius. nmaj and nmin are the divisions around the main ring and
// around the tube.
func NewTorus(major, minor float64, nmaj, nmin int) *meshslice.Buffer {
	switch {
	case minor <= 0:
		panic("minor radius <= 0")
	case major <= minor:
		panic("major radius <= minor radius")
	case nmaj < 3 || nmin < 3:
		panic("torus divisions < 3")
	}
	verts := make([]r3.Vec, 0, nmaj*nmin)
	for i := 0; i < nmaj; i++ {
		u := 2 * math.Pi * float64(i) / float64(nmaj)
		for j := 0; j < nmin; j++ {
			v := 2 * math.Pi * float64(j) / float64(nmin)
			verts = append(verts, r3.Vec{
				X: (major + minor*math.Cos(v)) * math.Cos(u),
				Y: (major + minor*math.Cos(v)) * math.Sin(u),
				Z: minor * math.Sin(v),
			})
		}
	}
	at := func(i, j int) int { return (i%nmaj)*nmin + j%nmin }
	indices := make([]int, 0, 6*nmaj*nmin)
	for i := 0; i < nmaj; i++ {
		for j := 0; j < nmin; j++ {
			indices = append(indices,
				at(i, j), at(i+1, j), at(i+1, j+1),
				at(i, j), at(i+1, j+1), at(i, j+1),
			)
		}
	}
	return meshslice.NewBuffer(meshslice.FromIndexed(verts, indices))
}
