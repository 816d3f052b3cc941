package meshgen

import (
	"github.com/soypat/meshslice"
	"gonum.org/v1/gonum/spatial/r3"
)

// boxFaces indexes boxCorners as two triangles per face, counterclockwise
// seen from outside the box.
var boxFaces = [36]int{
	0, 2, 1, 0, 3, 2, // bottom
	4, 5, 6, 4, 6, 7, // top
	0, 1, 5, 0, 5, 4,
	1, 2, 6, 1, 6, 5,
	2, 3, 7, 2, 7, 6,
	3, 0, 4, 3, 4, 7,
}

// NewBox constructs the 12 triangle surface of an axis aligned box.
func NewBox(b r3.Box) *meshslice.Buffer {
	if b.Max.X <= b.Min.X || b.Max.Y <= b.Min.Y || b.Max.Z <= b.Min.Z {
		panic("box with zero or negative extent")
	}
	corners := []r3.Vec{
		{X: b.Min.X, Y: b.Min.Y, Z: b.Min.Z},
		{X: b.Max.X, Y: b.Min.Y, Z: b.Min.Z},
		{X: b.Max.X, Y: b.Max.Y, Z: b.Min.Z},
		{X: b.Min.X, Y: b.Max.Y, Z: b.Min.Z},
		{X: b.Min.X, Y: b.Min.Y, Z: b.Max.Z},
		{X: b.Max.X, Y: b.Min.Y, Z: b.Max.Z},
		{X: b.Max.X, Y: b.Max.Y, Z: b.Max.Z},
		{X: b.Min.X, Y: b.Max.Y, Z: b.Max.Z},
	}
	return meshslice.NewBuffer(meshslice.FromIndexed(corners, boxFaces[:]))
}
