package meshslice

import (
	"github.com/soypat/meshslice/internal/d2"
	"gonum.org/v1/gonum/spatial/r2"
)

// Contour is an ordered chain of points on a slicing plane. Chains emitted by
// Stitch have at least 3 points and repeat the first point at the end when
// they close; meshes with gaps produce open chains, which are emitted as-is
// without repair. Contours are not modified after being returned.
type Contour []r2.Vec

// Closed reports whether the contour ends within tol of its starting point.
func (c Contour) Closed(tol float64) bool {
	return len(c) > 2 && d2.EqualWithin(c[0], c[len(c)-1], tol)
}

// Bounds returns the bounding box of the contour's points.
func (c Contour) Bounds() r2.Box {
	if len(c) == 0 {
		return r2.Box{}
	}
	return r2.Box{Min: d2.Set(c).Min(), Max: d2.Set(c).Max()}
}

// Contains reports whether p lies inside the contour under the even-odd rule,
// counting the crossings of a ray cast from p along +X over the wrap-around
// edges of the chain. Points on the boundary have unspecified containment.
func (c Contour) Contains(p r2.Vec) bool {
	inside := false
	for i, j := 0, len(c)-1; i < len(c); j, i = i, i+1 {
		vi, vj := c[i], c[j]
		if (vi.Y > p.Y) != (vj.Y > p.Y) &&
			p.X < (vj.X-vi.X)*(p.Y-vi.Y)/(vj.Y-vi.Y)+vi.X {
			inside = !inside
		}
	}
	return inside
}

// Inside reports whether p lies inside the region bounded by loops by
// aggregating the even-odd result over all of them, so that a point inside an
// odd number of nested loops counts as inside. Winding order is never
// inspected; nested loops act as holes regardless of orientation.
func Inside(loops []Contour, p r2.Vec) bool {
	inside := false
	for _, c := range loops {
		if c.Contains(p) {
			inside = !inside
		}
	}
	return inside
}
