package meshgen

import (
	"io"

	"github.com/soypat/meshslice"
)

// PlacementSource streams the surface triangles of a sphere packing, one
// sphere mesh after another. Placements whose cut angle leaves no surface
// are skipped.
type PlacementSource struct {
	placements []meshslice.SpherePlacement
	nlat, nlon int
	cur        *Sphere
	next       int
}

// PlacementMesh meshes the result of meshslice.PackSpheres. Every placement
// is tessellated with NewSphere at the given divisions, honoring per
// placement cut angles so flattened bottom layers come out flat.
func PlacementMesh(placements []meshslice.SpherePlacement, nlat, nlon int) *PlacementSource {
	return &PlacementSource{placements: placements, nlat: nlat, nlon: nlon}
}

// ReadTriangles implements meshslice.TriangleSource.
func (ps *PlacementSource) ReadTriangles(dst []meshslice.Triangle) (int, error) {
	n := 0
	for n < len(dst) {
		if ps.cur == nil {
			for ps.next < len(ps.placements) && ps.placements[ps.next].CutAngle <= 0 {
				ps.next++
			}
			if ps.next == len(ps.placements) {
				if n == 0 {
					return 0, io.EOF
				}
				return n, nil
			}
			p := ps.placements[ps.next]
			ps.cur = NewSphere(p.Center, p.Radius, p.CutAngle, ps.nlat, ps.nlon)
			ps.next++
		}
		nt, err := ps.cur.ReadTriangles(dst[n:])
		n += nt
		if err == io.EOF {
			ps.cur = nil
			continue
		}
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
