package meshio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/soypat/meshslice"
	"gonum.org/v1/gonum/spatial/r3"
)

// ReadOBJ parses a Wavefront OBJ stream. Only geometric vertices and faces
// are interpreted; texture coordinates, normals, groups and materials are
// skipped. Faces with more than three vertices are fan triangulated.
func ReadOBJ(r io.Reader) ([]meshslice.Triangle, error) {
	var (
		verts   []r3.Vec
		indices []int
	)
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		f := strings.Fields(sc.Text())
		if len(f) == 0 || strings.HasPrefix(f[0], "#") {
			continue
		}
		switch f[0] {
		case "v":
			if len(f) < 4 {
				return nil, fmt.Errorf("OBJ line %d: vertex needs 3 coordinates", line)
			}
			var v r3.Vec
			var err error
			if v.X, err = strconv.ParseFloat(f[1], 64); err == nil {
				if v.Y, err = strconv.ParseFloat(f[2], 64); err == nil {
					v.Z, err = strconv.ParseFloat(f[3], 64)
				}
			}
			if err != nil {
				return nil, fmt.Errorf("OBJ line %d: %w", line, err)
			}
			verts = append(verts, v)
		case "f":
			if len(f) < 4 {
				return nil, fmt.Errorf("OBJ line %d: face needs at least 3 vertices", line)
			}
			idx := make([]int, len(f)-1)
			for i, ref := range f[1:] {
				v, err := parseOBJIndex(ref, len(verts))
				if err != nil {
					return nil, fmt.Errorf("OBJ line %d: %w", line, err)
				}
				idx[i] = v
			}
			for i := 1; i < len(idx)-1; i++ {
				indices = append(indices, idx[0], idx[i], idx[i+1])
			}
		default:
			// vt, vn, g, o, s, usemtl, mtllib and friends.
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(indices) == 0 {
		return nil, errors.New("OBJ contains no faces")
	}
	return meshslice.FromIndexed(verts, indices), nil
}

// parseOBJIndex resolves a face vertex reference such as "7", "7/1" or
// "7//3" to a zero based vertex index. Negative references count back from
// the most recently declared vertex.
func parseOBJIndex(ref string, nverts int) (int, error) {
	if i := strings.IndexByte(ref, '/'); i >= 0 {
		ref = ref[:i]
	}
	v, err := strconv.Atoi(ref)
	if err != nil {
		return 0, fmt.Errorf("bad face vertex reference %q: %w", ref, err)
	}
	switch {
	case v > 0 && v <= nverts:
		return v - 1, nil
	case v < 0 && -v <= nverts:
		return nverts + v, nil
	}
	return 0, fmt.Errorf("face vertex reference %d out of range", v)
}

// ReadOBJFile reads the OBJ model stored at path.
func ReadOBJFile(path string) ([]meshslice.Triangle, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	return ReadOBJ(fp)
}

// WriteOBJ writes model triangles to a writer in Wavefront OBJ format.
// Identical vertices are emitted once and shared between faces.
func WriteOBJ(w io.Writer, model []meshslice.Triangle) error {
	if len(model) == 0 {
		return errors.New("empty triangle slice")
	}
	bw := bufio.NewWriter(w)
	vertIdx := make(map[r3.Vec]int, 3*len(model))
	lookup := func(v r3.Vec) int {
		n, ok := vertIdx[v]
		if !ok {
			n = len(vertIdx) + 1 // OBJ indices are 1 based.
			vertIdx[v] = n
			fmt.Fprintf(bw, "v %g %g %g\n", v.X, v.Y, v.Z)
		}
		return n
	}
	for _, t := range model {
		a := lookup(t.V[0])
		b := lookup(t.V[1])
		c := lookup(t.V[2])
		fmt.Fprintf(bw, "f %d %d %d\n", a, b, c)
	}
	return bw.Flush()
}
