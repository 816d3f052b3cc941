package meshio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/chewxy/math32"
	"github.com/soypat/meshslice"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrNormalMismatch reports STL records whose stored normal is not
// approximately equal to the normal calculated from the record's vertices.
// It accompanies otherwise valid triangles; ignore it if the model is OK.
var ErrNormalMismatch = errors.New("triangle normal not approximately equal to calculated normal from vertices. Ignore this error if model is OK")

const trianglesInBuffer = 1 << 10

// STLSource streams triangles from STL data record by record, so large
// models can be sliced without holding the whole file in memory. Both the
// binary and ASCII variants are handled; NewSTLSource detects which.
type STLSource struct {
	ascii      bool
	r          io.Reader // binary variant
	remaining  uint32
	sc         *bufio.Scanner // ascii variant
	done       bool
	mismatches int
}

// NewSTLSource prepares an STLSource reading from r. The STL variant is
// detected from the stream head: ASCII files open with a "solid" line
// followed by facet records, anything else is treated as binary.
func NewSTLSource(r io.Reader) (*STLSource, error) {
	br := bufio.NewReaderSize(r, 1<<16)
	head, err := br.Peek(512)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if isASCIISTL(head) {
		return &STLSource{ascii: true, sc: bufio.NewScanner(br)}, nil
	}
	var header stlHeader
	if err := binary.Read(br, binary.LittleEndian, &header); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, errors.New("encountered EOF while reading STL header")
		}
		return nil, errors.New("STL header read failed: " + err.Error())
	}
	if header.Count == 0 {
		return nil, errors.New("STL header indicates 0 triangles present")
	}
	return &STLSource{r: br, remaining: header.Count}, nil
}

// isASCIISTL sniffs the head of an STL stream. Binary files may also begin
// with "solid", so the facet keyword is required as well.
func isASCIISTL(head []byte) bool {
	head = bytes.TrimLeft(head, " \t\r\n")
	return bytes.HasPrefix(head, []byte("solid")) && bytes.Contains(head, []byte("facet"))
}

// NormalMismatches returns how many records read so far carried a stored
// normal that disagreed with the one calculated from the vertices.
func (s *STLSource) NormalMismatches() int { return s.mismatches }

// ReadTriangles implements meshslice.TriangleSource.
func (s *STLSource) ReadTriangles(dst []meshslice.Triangle) (int, error) {
	if s.ascii {
		return s.readASCII(dst)
	}
	return s.readBinary(dst)
}

func (s *STLSource) readBinary(dst []meshslice.Triangle) (int, error) {
	if s.remaining == 0 {
		return 0, io.EOF
	}
	var (
		buf [50]byte
		d   stlTriangle
		n   int
	)
	for n < len(dst) && s.remaining > 0 {
		if _, err := io.ReadFull(s.r, buf[:]); err != nil {
			return n, fmt.Errorf("%d STL triangles short of header count: %w", s.remaining, err)
		}
		d.get(buf[:])
		if err := s.validateRecord(d); err != nil {
			return n, err
		}
		dst[n] = d.triangle()
		n++
		s.remaining--
	}
	return n, nil
}

func (s *STLSource) readASCII(dst []meshslice.Triangle) (int, error) {
	if s.done {
		return 0, io.EOF
	}
	var (
		d stlTriangle
		n int
	)
	for n < len(dst) {
		ok, err := s.scanFacet(&d)
		if err != nil {
			return n, err
		}
		if !ok {
			s.done = true
			if n == 0 {
				return 0, io.EOF
			}
			break
		}
		if err := s.validateRecord(d); err != nil {
			return n, err
		}
		dst[n] = d.triangle()
		n++
	}
	return n, nil
}

// scanFacet parses the next complete facet of an ASCII STL stream into d.
// ok is false at end of solid or end of stream.
func (s *STLSource) scanFacet(d *stlTriangle) (ok bool, err error) {
	vert := 0
	started := false
	for s.sc.Scan() {
		f := strings.Fields(s.sc.Text())
		if len(f) == 0 {
			continue
		}
		switch f[0] {
		case "solid", "outer", "endloop":
		case "facet":
			if started || len(f) != 5 || f[1] != "normal" {
				return false, errors.New("malformed facet line in ASCII STL")
			}
			if err := parse3F32(f[2:], &d.Normal); err != nil {
				return false, err
			}
			started = true
		case "vertex":
			if !started || vert == 3 || len(f) != 4 {
				return false, errors.New("unexpected vertex line in ASCII STL")
			}
			var v [3]float32
			if err := parse3F32(f[1:], &v); err != nil {
				return false, err
			}
			switch vert {
			case 0:
				d.Vertex1 = v
			case 1:
				d.Vertex2 = v
			case 2:
				d.Vertex3 = v
			}
			vert++
		case "endfacet":
			if vert != 3 {
				return false, fmt.Errorf("ASCII STL facet has %d vertices", vert)
			}
			return true, nil
		case "endsolid":
			return false, nil
		default:
			return false, fmt.Errorf("unknown ASCII STL keyword %q", f[0])
		}
	}
	return false, s.sc.Err()
}

func parse3F32(fields []string, dst *[3]float32) error {
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return fmt.Errorf("parsing ASCII STL coordinate %q: %w", fields[i], err)
		}
		dst[i] = float32(v)
	}
	return nil
}

// validateRecord applies record validation, turning normal mismatches into a
// running count instead of a failure so imperfect but usable models load.
func (s *STLSource) validateRecord(d stlTriangle) error {
	err := d.validate()
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNormalMismatch) {
		return err
	}
	s.mismatches++
	if s.mismatches > 10_000 {
		return fmt.Errorf("got too many normal vector mismatches (%d)", s.mismatches)
	}
	return nil
}

// ReadSTL parses a whole STL stream, binary or ASCII. When the only defects
// found are stored normals disagreeing with the vertex data the parsed
// triangles are returned together with ErrNormalMismatch, since such models
// are usually fine.
func ReadSTL(r io.Reader) ([]meshslice.Triangle, error) {
	src, err := NewSTLSource(r)
	if err != nil {
		return nil, err
	}
	model, err := meshslice.ReadAll(src)
	if err != nil {
		return model, err
	}
	if src.NormalMismatches() > 0 {
		return model, ErrNormalMismatch
	}
	return model, nil
}

// ReadSTLFile reads the STL model stored at path.
func ReadSTLFile(path string) ([]meshslice.Triangle, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	return ReadSTL(fp)
}

// WriteSTL writes model triangles to a writer in binary STL file format.
func WriteSTL(w io.Writer, model []meshslice.Triangle) error {
	if len(model) == 0 {
		return errors.New("empty triangle slice")
	}
	header := stlHeader{
		Count: uint32(len(model)),
	}
	if err := binary.Write(w, binary.LittleEndian, &header); err != nil {
		return err
	}
	var (
		b [50]byte
		d stlTriangle
	)
	for _, triangle := range model {
		d.from(triangle)
		d.put(b[:])
		if _, err := w.Write(b[:]); err != nil {
			return err
		}
	}
	return nil
}

// CreateSTL streams the contents of a TriangleSource to a binary STL file at
// path. The header's triangle count is backpatched once the source reports
// io.EOF, so the source's length need not be known up front.
func CreateSTL(path string, src meshslice.TriangleSource) error {
	const sizeOfSTLHeader = 84
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	// Header written last, when the count is known.
	if _, err = file.Seek(sizeOfSTLHeader, 0); err != nil {
		return err
	}
	var (
		w     = bufio.NewWriterSize(file, 50*trianglesInBuffer)
		buf   = make([]meshslice.Triangle, trianglesInBuffer)
		b     [50]byte
		d     stlTriangle
		count uint32
		rdErr error
		nt    int
	)
	for rdErr == nil {
		nt, rdErr = src.ReadTriangles(buf)
		for _, triangle := range buf[:nt] {
			d.from(triangle)
			d.put(b[:])
			if _, err := w.Write(b[:]); err != nil {
				return err
			}
			count++
		}
	}
	if rdErr != io.EOF {
		return rdErr
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if _, err := file.Seek(0, 0); err != nil {
		return err
	}
	header := stlHeader{Count: count}
	return binary.Write(file, binary.LittleEndian, &header)
}

// stlHeader defines the STL file header.
type stlHeader struct {
	_     [80]uint8 // Header
	Count uint32    // Number of triangles
}

// stlTriangle defines the triangle data within an STL file.
type stlTriangle struct {
	Normal  [3]float32
	Vertex1 [3]float32
	Vertex2 [3]float32
	Vertex3 [3]float32
	_       uint16 // Attribute byte count
}

func (t *stlTriangle) from(tri meshslice.Triangle) {
	n := tri.Normal()
	t.Normal = [3]float32{float32(n.X), float32(n.Y), float32(n.Z)}
	t.Vertex1 = [3]float32{float32(tri.V[0].X), float32(tri.V[0].Y), float32(tri.V[0].Z)}
	t.Vertex2 = [3]float32{float32(tri.V[1].X), float32(tri.V[1].Y), float32(tri.V[1].Z)}
	t.Vertex3 = [3]float32{float32(tri.V[2].X), float32(tri.V[2].Y), float32(tri.V[2].Z)}
}

func (t stlTriangle) triangle() meshslice.Triangle {
	return meshslice.Triangle{V: [3]r3.Vec{
		r3From3F32(t.Vertex1),
		r3From3F32(t.Vertex2),
		r3From3F32(t.Vertex3),
	}}
}

func (t stlTriangle) put(b []byte) {
	if len(b) < 50 {
		panic("need length 50 to marshal stlTriangle")
	}
	put3F32(b, t.Normal)
	put3F32(b[12:], t.Vertex1)
	put3F32(b[24:], t.Vertex2)
	put3F32(b[36:], t.Vertex3)
	binary.LittleEndian.PutUint16(b[48:], 0)
}

func (t *stlTriangle) get(b []byte) {
	if len(b) < 50 {
		panic("need length 50 to unmarshal stlTriangle")
	}
	get3F32(b, &t.Normal)
	get3F32(b[12:], &t.Vertex1)
	get3F32(b[24:], &t.Vertex2)
	get3F32(b[36:], &t.Vertex3)
	// no attributes supported yet.
}

func put3F32(b []byte, f [3]float32) {
	_ = b[11] // early bounds check
	binary.LittleEndian.PutUint32(b, math.Float32bits(f[0]))
	binary.LittleEndian.PutUint32(b[4:], math.Float32bits(f[1]))
	binary.LittleEndian.PutUint32(b[8:], math.Float32bits(f[2]))
}

func get3F32(b []byte, f *[3]float32) {
	_ = b[11] // early bounds check
	f[0] = math.Float32frombits(binary.LittleEndian.Uint32(b))
	f[1] = math.Float32frombits(binary.LittleEndian.Uint32(b[4:]))
	f[2] = math.Float32frombits(binary.LittleEndian.Uint32(b[8:]))
}

func bad3F32(f [3]float32) bool {
	return math32.IsNaN(f[0]) || math32.IsInf(f[0], 0) ||
		math32.IsNaN(f[1]) || math32.IsInf(f[1], 0) ||
		math32.IsNaN(f[2]) || math32.IsInf(f[2], 0)
}

func (t stlTriangle) validate() error {
	const epsilon = 1e-12
	const normTol = 5e-2
	if bad3F32(t.Normal) {
		return errors.New("inf/NaN STL triangle normal")
	}
	if bad3F32(t.Vertex1) || bad3F32(t.Vertex2) || bad3F32(t.Vertex3) {
		return errors.New("inf/NaN STL triangle vertex")
	}
	if t.degenerate(epsilon) {
		return errors.New("triangle is degenerate")
	}
	calcNormal := t.normalFromVertices()
	calcNormalNeg := [3]float32{-calcNormal[0], -calcNormal[1], -calcNormal[2]}
	if !equalWithin3F32(calcNormal, t.Normal, normTol) && !equalWithin3F32(calcNormalNeg, t.Normal, normTol) {
		return ErrNormalMismatch // sometimes may fail
	}
	return nil
}

func r3From3F32(f [3]float32) r3.Vec {
	return r3.Vec{X: float64(f[0]), Y: float64(f[1]), Z: float64(f[2])}
}

func (t stlTriangle) normalFromVertices() [3]float32 {
	v1 := r3.Scale(10, r3From3F32(t.Vertex1))
	v2 := r3.Scale(10, r3From3F32(t.Vertex2))
	v3 := r3.Scale(10, r3From3F32(t.Vertex3))
	e1 := r3.Sub(v2, v1)
	e2 := r3.Sub(v3, v1)
	n := r3.Unit(r3.Cross(e1, e2))
	return [3]float32{float32(n.X), float32(n.Y), float32(n.Z)}
}

// degenerate returns true if the triangle is degenerate.
func (t stlTriangle) degenerate(tol float32) bool {
	// check for identical vertices.
	return equalWithin3F32(t.Vertex1, t.Vertex2, tol) ||
		equalWithin3F32(t.Vertex2, t.Vertex3, tol) ||
		equalWithin3F32(t.Vertex3, t.Vertex1, tol)
}

func equalWithin3F32(a, b [3]float32, tol float32) bool {
	return math32.Abs(a[0]-b[0]) <= tol &&
		math32.Abs(a[1]-b[1]) <= tol &&
		math32.Abs(a[2]-b[2]) <= tol
}
