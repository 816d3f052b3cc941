package meshio_test

import (
	"bytes"
	"io"
	"os"
	"reflect"
	"strings"
	"testing"

	"github.com/soypat/meshslice"
	"github.com/soypat/meshslice/meshgen"
	"github.com/soypat/meshslice/meshio"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestOBJWriteRead(t *testing.T) {
	// %g output round trips float64 exactly, so the readback must be
	// identical bit for bit even for irrational torus coordinates.
	model, err := meshslice.ReadAll(meshgen.NewTorus(3, 1, 16, 8))
	if err != nil {
		t.Fatal(err)
	}
	var b bytes.Buffer
	if err := meshio.WriteOBJ(&b, model); err != nil {
		t.Fatal(err)
	}
	got, err := meshio.ReadOBJ(&b)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, model) {
		t.Fatal("OBJ round trip changed the model")
	}
}

func TestOBJSharedVertices(t *testing.T) {
	model, err := meshslice.ReadAll(meshgen.NewBox(r3.Box{
		Min: r3.Vec{X: -1, Y: -1, Z: -1},
		Max: r3.Vec{X: 1, Y: 1, Z: 1},
	}))
	if err != nil {
		t.Fatal(err)
	}
	var b bytes.Buffer
	if err := meshio.WriteOBJ(&b, model); err != nil {
		t.Fatal(err)
	}
	var vlines, flines int
	for _, line := range strings.Split(b.String(), "\n") {
		switch {
		case strings.HasPrefix(line, "v "):
			vlines++
		case strings.HasPrefix(line, "f "):
			flines++
		}
	}
	if vlines != 8 {
		t.Errorf("deduplicated vertex lines. got %d. want 8", vlines)
	}
	if flines != 12 {
		t.Errorf("face lines. got %d. want 12", flines)
	}
}

func TestOBJParse(t *testing.T) {
	const src = `# triangulated unit square with decorations
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vt 0 0
vn 0 0 1
usemtl steel
f 1/1/1 2/1/1 3/1/1
f 1 3 4
`
	model, err := meshio.ReadOBJ(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	if len(model) != 2 {
		t.Fatalf("triangle count. got %d. want 2", len(model))
	}
	want := meshslice.Triangle{V: [3]r3.Vec{
		{X: 0, Y: 0, Z: 0},
		{X: 1, Y: 0, Z: 0},
		{X: 1, Y: 1, Z: 0},
	}}
	if model[0] != want {
		t.Errorf("first triangle. got %+v. want %+v", model[0], want)
	}
}

func TestOBJQuadFan(t *testing.T) {
	const src = `v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
f 1 2 3 4
`
	model, err := meshio.ReadOBJ(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	if len(model) != 2 {
		t.Fatalf("fan triangle count. got %d. want 2", len(model))
	}
	if model[0].V[0] != model[1].V[0] {
		t.Error("fan triangles do not share the first vertex")
	}
}

func TestOBJNegativeIndices(t *testing.T) {
	const src = `v 0 0 0
v 1 0 0
v 0 1 0
f -3 -2 -1
`
	model, err := meshio.ReadOBJ(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	if len(model) != 1 {
		t.Fatalf("triangle count. got %d. want 1", len(model))
	}
	if model[0].V[1] != (r3.Vec{X: 1}) {
		t.Errorf("negative reference resolution. got %+v. want (1,0,0)", model[0].V[1])
	}
}

func TestOBJErrors(t *testing.T) {
	for _, tc := range []struct {
		name string
		src  string
	}{
		{name: "no faces", src: "v 0 0 0\nv 1 0 0\nv 0 1 0\n"},
		{name: "short vertex", src: "v 0 0\nf 1 1 1\n"},
		{name: "short face", src: "v 0 0 0\nf 1 1\n"},
		{name: "bad float", src: "v a b c\nf 1 1 1\n"},
		{name: "reference out of range", src: "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 9\n"},
		{name: "zero reference", src: "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 0 1 2\n"},
		{name: "empty", src: ""},
	} {
		if _, err := meshio.ReadOBJ(strings.NewReader(tc.src)); err == nil {
			t.Errorf("%s: parsed without error", tc.name)
		}
	}
	if err := meshio.WriteOBJ(io.Discard, nil); err == nil {
		t.Error("writing an empty model must fail")
	}
}

func TestOBJFileRoundTrip(t *testing.T) {
	const path = "box.obj"
	model, err := meshslice.ReadAll(meshgen.NewBox(r3.Box{
		Min: r3.Vec{X: 0, Y: 0, Z: 0},
		Max: r3.Vec{X: 2, Y: 1, Z: 1},
	}))
	if err != nil {
		t.Fatal(err)
	}
	fp, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	err = meshio.WriteOBJ(fp, model)
	fp.Close()
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(path)
	got, err := meshio.ReadOBJFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, model) {
		t.Fatal("OBJ file round trip changed the model")
	}
}
