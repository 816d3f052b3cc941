package meshslice

import (
	"errors"
	"math"

	"github.com/soypat/meshslice/internal/d2"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// maxPackLayers bounds the packing layer loop so degenerate configurations
// (a near-zero vertical step) terminate instead of looping forever.
const maxPackLayers = 10000

// maxOverlapPct is the upper clamp for overlap percentages. Keeping it under
// 100 keeps both step sizes strictly positive.
const maxOverlapPct = 99.99

// ErrTooManyLayers reports that sphere packing stopped at its layer safety
// cap. It is returned together with the placements packed so far, so the
// caller receives a truncated but usable result.
var ErrTooManyLayers = errors.New("sphere packing: layer safety cap reached, placements truncated")

// PackConfig configures PackSpheres. All percentage parameters are clamped
// into their documented ranges rather than rejected.
type PackConfig struct {
	// Radius of the packed spheres. Must be positive and finite.
	Radius float64
	// VerticalOverlap is the percentage by which consecutive layers
	// interpenetrate: 0 stacks layers a full diameter apart, higher values
	// pack tighter. Clamped to [0,100).
	VerticalOverlap float64
	// HorizontalOverlap is the in-layer equivalent of VerticalOverlap,
	// controlling the grid spacing between sphere centers. Clamped to
	// [0,100).
	HorizontalOverlap float64
	// BaseFlatten is the percentage of the bottom layer's spheres sliced off
	// their south pole so the flat face rests on the solid's floor: 0 leaves
	// full spheres tangent to the floor, 100 sinks the centers a full radius
	// below it. Clamped to [0,100].
	BaseFlatten float64
	// MergeTol is forwarded to the Slicer used for per-layer cross-sections.
	// Zero means DefaultMergeTol.
	MergeTol float64
}

// VerticalStep returns the exact center-to-center distance between
// consecutive layers, 2r·(1 − VerticalOverlap/100).
func (c PackConfig) VerticalStep() float64 {
	return 2 * c.Radius * (1 - clampPct(c.VerticalOverlap, maxOverlapPct)/100)
}

// HorizontalStep returns the exact grid spacing between sphere centers within
// a layer, 2r·(1 − HorizontalOverlap/100).
func (c PackConfig) HorizontalStep() float64 {
	return 2 * c.Radius * (1 - clampPct(c.HorizontalOverlap, maxOverlapPct)/100)
}

// CutAngle returns the polar angle θ = π·(1 − BaseFlatten/100) of the
// spherical cap kept on layer-0 spheres. θ is measured from the +Z pole, so
// π keeps the whole sphere and smaller angles cut higher above the south
// pole. The cut face of a layer-0 sphere centered at z sits at z + r·cos θ.
func (c PackConfig) CutAngle() float64 {
	return math.Pi * (1 - clampPct(c.BaseFlatten, 100)/100)
}

// SpherePlacement is one sphere of a packing: where it goes and how much of
// it is kept. Placements are plain values owned by the caller once returned.
type SpherePlacement struct {
	Center r3.Vec
	Radius float64
	// Layer is the zero-based index of the layer the sphere belongs to.
	Layer int
	// CutAngle is the polar angle of the kept spherical cap measured from
	// the +Z pole. π means the sphere is whole; only layer 0 is ever cut.
	CutAngle float64
}

// PackSpheres approximates the interior of the solid bounded by src with
// layers of sphere placements. Layer 0 sits on the solid's floor, flattened
// per PackConfig.BaseFlatten so its cut face rests exactly at the mesh's
// minimum z; each further layer is one VerticalStep up, and within a layer
// candidate centers lie on an absolute grid anchored at the world origin with
// HorizontalStep spacing, kept when they fall inside the cross-section at the
// layer's height. Anchoring the grid at the origin rather than the bounding
// box makes reruns and mesh edits reproduce the same lattice.
//
// An empty placement list with nil error means the solid enclosed no grid
// candidates; it is not a failure. ErrTooManyLayers is returned alongside the
// truncated list when the layer safety cap fires.
func PackSpheres(src TriangleSource, cfg PackConfig) ([]SpherePlacement, error) {
	r := cfg.Radius
	if r <= 0 || math.IsNaN(r) || math.IsInf(r, 0) {
		return nil, errors.New("sphere packing: radius must be positive and finite")
	}
	tris, err := ReadAll(src)
	if err != nil {
		return nil, err
	}
	bb, ok := Bounds(tris)
	if !ok {
		return nil, nil
	}
	minZ, maxZ := bb.Min.Z, bb.Max.Z
	vStep := cfg.VerticalStep()
	hStep := cfg.HorizontalStep()
	theta := cfg.CutAngle()
	// Place the cut face of layer 0 exactly at the floor: the face sits at
	// r·cosθ above the center, so the center starts cosθ radii below minZ.
	centerZ0 := minZ - r*math.Cos(theta)
	// Cross-sections are sampled strictly inside the z range; exactly at
	// minZ or maxZ a flat-capped solid degenerates to zero crossings.
	eps := 1e-7 * (maxZ - minZ)
	slicer := Slicer{MergeTol: cfg.MergeTol}

	var placements []SpherePlacement
	for i := 0; ; i++ {
		if i >= maxPackLayers {
			return placements, ErrTooManyLayers
		}
		centerZ := centerZ0 + float64(i)*vStep
		if centerZ-r > maxZ {
			break
		}
		loops, err := slicer.Slice(NewBuffer(tris), clamp(centerZ, minZ+eps, maxZ-eps))
		if err != nil {
			return placements, err
		}
		if len(loops) == 0 {
			// The plane missed the solid at this height; the layer is
			// empty but packing continues.
			continue
		}
		cut := math.Pi
		if i == 0 {
			cut = theta
		}
		gb := d2.Box(loops[0].Bounds())
		for _, c := range loops[1:] {
			gb = gb.Extend(d2.Box(c.Bounds()))
		}
		kx0 := int(math.Ceil(gb.Min.X / hStep))
		kx1 := int(math.Floor(gb.Max.X / hStep))
		ky0 := int(math.Ceil(gb.Min.Y / hStep))
		ky1 := int(math.Floor(gb.Max.Y / hStep))
		for ky := ky0; ky <= ky1; ky++ {
			for kx := kx0; kx <= kx1; kx++ {
				p := r2.Vec{X: float64(kx) * hStep, Y: float64(ky) * hStep}
				if !Inside(loops, p) {
					continue
				}
				placements = append(placements, SpherePlacement{
					Center:   r3.Vec{X: p.X, Y: p.Y, Z: centerZ},
					Radius:   r,
					Layer:    i,
					CutAngle: cut,
				})
			}
		}
	}
	return placements, nil
}

// clamp x between lo and hi, assume lo <= hi.
func clamp(x, lo, hi float64) float64 {
	return math.Min(hi, math.Max(x, lo))
}

// clampPct clamps a percentage to [0, hi], mapping NaN to 0.
func clampPct(v, hi float64) float64 {
	if !(v > 0) {
		return 0
	}
	if v > hi {
		return hi
	}
	return v
}
