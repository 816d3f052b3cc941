package meshio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/soypat/meshslice"
)

// FileSource is a TriangleSource reading from a mesh file opened with
// OpenFile. Close it after draining.
type FileSource struct {
	src meshslice.TriangleSource
	fp  *os.File // nil once the file is no longer needed
}

// OpenFile opens the mesh file at path as a streaming TriangleSource with
// the format chosen by file extension. STL streams record by record and
// holds the file open until Close; OBJ is buffered whole on open.
func OpenFile(path string) (*FileSource, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".stl":
		src, err := NewSTLSource(fp)
		if err != nil {
			fp.Close()
			return nil, err
		}
		return &FileSource{src: src, fp: fp}, nil
	case ".obj":
		model, err := ReadOBJ(fp)
		fp.Close()
		if err != nil {
			return nil, err
		}
		return &FileSource{src: meshslice.NewBuffer(model)}, nil
	default:
		fp.Close()
		return nil, fmt.Errorf("unsupported mesh file extension %q (expected .stl or .obj)", ext)
	}
}

// ReadTriangles implements meshslice.TriangleSource.
func (f *FileSource) ReadTriangles(dst []meshslice.Triangle) (int, error) {
	return f.src.ReadTriangles(dst)
}

// Close releases the underlying file if still open. STL reads fail after
// Close; a buffered OBJ source remains readable.
func (f *FileSource) Close() error {
	if f.fp == nil {
		return nil
	}
	err := f.fp.Close()
	f.fp = nil
	return err
}
