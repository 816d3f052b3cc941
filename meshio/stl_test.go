package meshio_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"os"
	"strings"
	"testing"

	"github.com/deadsy/sdfx/obj"
	sdfxrender "github.com/deadsy/sdfx/render"
	"github.com/soypat/meshslice"
	"github.com/soypat/meshslice/internal/d3"
	"github.com/soypat/meshslice/meshgen"
	"github.com/soypat/meshslice/meshio"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestSTLWriteReadback(t *testing.T) {
	const tol = 1e-5 // float32 storage rounds the coordinates
	input, err := meshslice.ReadAll(meshgen.NewTorus(3, 1, 32, 16))
	if err != nil {
		t.Fatal(err)
	}
	var b bytes.Buffer
	err = meshio.WriteSTL(&b, input)
	if err != nil {
		t.Fatal(err)
	}
	output, err := meshio.ReadSTL(&b)
	if err != nil && !errors.Is(err, meshio.ErrNormalMismatch) {
		t.Fatal(err)
	}
	if len(output) != len(input) {
		t.Fatal("length of triangles written/read not equal")
	}
	mismatches := 0
	for iface, expect := range input {
		got := output[iface]
		for i := range expect.V {
			if !d3.EqualWithin(got.V[i], expect.V[i], tol) {
				mismatches++
				t.Errorf("%dth triangle equality out of tolerance. got vertex %0.5g, want %0.5g", iface, got.V[i], expect.V[i])
			}
		}
		if mismatches > 10 {
			t.Fatal("too many mismatches")
		}
	}
}

func TestSTLCreateWriteRead(t *testing.T) {
	const output = "torus.stl"
	err := meshio.CreateSTL(output, meshgen.NewTorus(3, 1, 24, 12))
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(output)
	fp, err := os.Open(output)
	if err != nil {
		t.Fatal(err)
	}
	defer fp.Close()
	bfile, err := io.ReadAll(fp)
	if err != nil {
		t.Fatal(err)
	}
	model, err := meshslice.ReadAll(meshgen.NewTorus(3, 1, 24, 12))
	if err != nil {
		t.Fatal(err)
	}
	var b bytes.Buffer
	err = meshio.WriteSTL(&b, model)
	if err != nil {
		t.Fatal(err)
	}
	if b.Len() != len(bfile) {
		t.Fatal("WriteSTL and CreateSTL output length mismatch")
	}
	if b.String() != string(bfile) {
		t.Fatal("WriteSTL and CreateSTL output mismatch")
	}
	readback, err := meshio.ReadSTLFile(output)
	if err != nil && !errors.Is(err, meshio.ErrNormalMismatch) {
		t.Fatal(err)
	}
	if len(readback) != len(model) {
		t.Fatalf("file readback triangle count. got %d. want %d", len(readback), len(model))
	}
}

const asciiSTL = `solid tetra
facet normal 0 0 -1
 outer loop
  vertex 0 0 0
  vertex 0 1 0
  vertex 1 0 0
 endloop
endfacet
facet normal 0 -1 0
 outer loop
  vertex 0 0 0
  vertex 1 0 0
  vertex 0 0 1.5e-1
 endloop
endfacet
endsolid tetra
`

func TestSTLASCII(t *testing.T) {
	model, err := meshio.ReadSTL(strings.NewReader(asciiSTL))
	if err != nil && !errors.Is(err, meshio.ErrNormalMismatch) {
		t.Fatal(err)
	}
	if len(model) != 2 {
		t.Fatalf("ascii triangle count. got %d. want 2", len(model))
	}
	want := r3.Vec{Z: 0.15}
	if got := model[1].V[2]; !d3.EqualWithin(got, want, 1e-9) {
		t.Errorf("ascii vertex. got %+v. want %+v", got, want)
	}
}

func TestSTLASCIIStreaming(t *testing.T) {
	src, err := meshio.NewSTLSource(strings.NewReader(asciiSTL))
	if err != nil {
		t.Fatal(err)
	}
	dst := make([]meshslice.Triangle, 1)
	var got int
	for {
		nt, err := src.ReadTriangles(dst)
		got += nt
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
	}
	if got != 2 {
		t.Fatalf("streamed ascii triangle count. got %d. want 2", got)
	}
}

func TestSTLBinaryStreaming(t *testing.T) {
	input, err := meshslice.ReadAll(meshgen.NewTorus(3, 1, 12, 6))
	if err != nil {
		t.Fatal(err)
	}
	var b bytes.Buffer
	if err := meshio.WriteSTL(&b, input); err != nil {
		t.Fatal(err)
	}
	src, err := meshio.NewSTLSource(&b)
	if err != nil {
		t.Fatal(err)
	}
	dst := make([]meshslice.Triangle, 7)
	var got int
	for {
		nt, err := src.ReadTriangles(dst)
		got += nt
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
	}
	if got != len(input) {
		t.Fatalf("streamed triangle count. got %d. want %d", got, len(input))
	}
	if src.NormalMismatches() != 0 {
		t.Errorf("unexpected normal mismatches: %d", src.NormalMismatches())
	}
}

func TestSTLNormalMismatch(t *testing.T) {
	model := meshslice.FromIndexed([]r3.Vec{
		{X: 0, Y: 0, Z: 0},
		{X: 1, Y: 0, Z: 0},
		{X: 0, Y: 1, Z: 0},
	}, []int{0, 1, 2})
	var b bytes.Buffer
	if err := meshio.WriteSTL(&b, model); err != nil {
		t.Fatal(err)
	}
	raw := b.Bytes()
	// Overwrite the stored normal of the first record, which starts right
	// after the 84 byte header, with a vector far from ±(0,0,1).
	binary.LittleEndian.PutUint32(raw[84:], math.Float32bits(0.7))
	binary.LittleEndian.PutUint32(raw[88:], math.Float32bits(0.7))
	binary.LittleEndian.PutUint32(raw[92:], math.Float32bits(0))
	got, err := meshio.ReadSTL(bytes.NewReader(raw))
	if !errors.Is(err, meshio.ErrNormalMismatch) {
		t.Fatalf("expected normal mismatch sentinel, got %v", err)
	}
	if len(got) != len(model) {
		t.Fatalf("mismatched model still parses. got %d triangles. want %d", len(got), len(model))
	}
}

func TestSTLDegenerate(t *testing.T) {
	model := []meshslice.Triangle{{V: [3]r3.Vec{
		{X: 1}, {X: 1}, {Y: 1},
	}}}
	var b bytes.Buffer
	if err := meshio.WriteSTL(&b, model); err != nil {
		t.Fatal(err)
	}
	_, err := meshio.ReadSTL(&b)
	if err == nil || errors.Is(err, meshio.ErrNormalMismatch) {
		t.Fatalf("degenerate triangle must be a hard error, got %v", err)
	}
}

func TestSTLTruncated(t *testing.T) {
	input, err := meshslice.ReadAll(meshgen.NewBox(r3.Box{
		Min: r3.Vec{X: -1, Y: -1, Z: -1},
		Max: r3.Vec{X: 1, Y: 1, Z: 1},
	}))
	if err != nil {
		t.Fatal(err)
	}
	var b bytes.Buffer
	if err := meshio.WriteSTL(&b, input); err != nil {
		t.Fatal(err)
	}
	raw := b.Bytes()
	cut := raw[:84+2*50] // header claims 12 triangles, keep 2
	model, err := meshio.ReadSTL(bytes.NewReader(cut))
	if err == nil {
		t.Fatal("truncated STL parsed without error")
	}
	if len(model) != 2 {
		t.Fatalf("triangles before truncation. got %d. want 2", len(model))
	}
}

func TestSTLEmptyInputs(t *testing.T) {
	if err := meshio.WriteSTL(io.Discard, nil); err == nil {
		t.Error("writing an empty model must fail")
	}
	if _, err := meshio.NewSTLSource(bytes.NewReader(make([]byte, 84))); err == nil {
		t.Error("header with zero triangle count must fail")
	}
	if _, err := meshio.NewSTLSource(bytes.NewReader(nil)); err == nil {
		t.Error("empty stream must fail")
	}
}

func TestSDFXBoltImport(t *testing.T) {
	stdout := os.Stdout
	defer func() {
		os.Stdout = stdout // pesky sdfx prints out stuff
	}()
	os.Stdout, _ = os.Open(os.DevNull)
	const output = "sdfx_bolt.stl"
	object, _ := obj.Bolt(&obj.BoltParms{
		Thread:      "npt_1/2",
		Style:       "hex",
		Tolerance:   0.1,
		TotalLength: 20,
		ShankLength: 10,
	})
	sdfxrender.ToSTL(object, 100, output, &sdfxrender.MarchingCubesOctree{})
	defer os.Remove(output)
	model, err := meshio.ReadSTLFile(output)
	if err != nil && !errors.Is(err, meshio.ErrNormalMismatch) {
		t.Fatal(err)
	}
	if len(model) == 0 {
		t.Fatal("no triangles imported from marching cubes output")
	}
	bb, ok := meshslice.Bounds(model)
	if !ok {
		t.Fatal("imported bolt has no bounds")
	}
	var sl meshslice.Slicer
	loops, err := sl.Slice(meshslice.NewBuffer(model), (bb.Min.Z+bb.Max.Z)/2)
	if err != nil {
		t.Fatal(err)
	}
	if len(loops) == 0 {
		t.Fatal("no cross-section through the middle of the bolt")
	}
	for i, loop := range loops {
		if !loop.Closed(1e-9) {
			t.Errorf("bolt cross-section loop %d not closed", i)
		}
	}
}

func BenchmarkSTLWriteRead(b *testing.B) {
	model, err := meshslice.ReadAll(meshgen.NewTorus(30, 8, 64, 32))
	if err != nil {
		b.Fatal(err)
	}
	var buf bytes.Buffer
	for i := 0; i < b.N; i++ {
		buf.Reset()
		if err := meshio.WriteSTL(&buf, model); err != nil {
			b.Fatal(err)
		}
		if _, err := meshio.ReadSTL(bytes.NewReader(buf.Bytes())); err != nil {
			b.Fatal(err)
		}
	}
}
