package meshslice

import "gonum.org/v1/gonum/spatial/r2"

// vertexKey is a segment endpoint quantized to the merge grid. Two endpoints
// share a key exactly when they fall in the same grid cell, which is what
// joins segments computed from different triangles along a shared edge.
type vertexKey [2]int64

// incidence is one segment touching a grid key, recorded in insertion order.
type incidence struct {
	seg   int
	other vertexKey
}

// Stitch assembles the unordered segments of one cross-section into contour
// loops. Segment endpoints are merged on the Slicer's quantization grid and
// chained through shared keys: every unvisited segment starts a chain which
// is extended by the first unvisited segment incident to its running end, in
// insertion order, with no look-ahead. Where more than two segments meet at a
// key the choice is therefore arbitrary. Chains shorter than 3 points are
// dropped; longer chains are emitted whether or not they close, so callers
// that need closure must check Contour.Closed themselves. A closed chain
// repeats its first point at the end.
func (s Slicer) Stitch(segs []Segment) []Contour {
	ri := 1 / s.mergeTol()
	keys := make([][2]vertexKey, len(segs))
	rep := make(map[vertexKey]r2.Vec, len(segs))
	adj := make(map[vertexKey][]incidence, len(segs))
	visited := make([]bool, len(segs))
	for i, seg := range segs {
		if bad2(seg.A) || bad2(seg.B) {
			visited[i] = true
			continue
		}
		ka := quantize(seg.A, ri)
		kb := quantize(seg.B, ri)
		keys[i] = [2]vertexKey{ka, kb}
		if _, ok := rep[ka]; !ok {
			rep[ka] = seg.A
		}
		if _, ok := rep[kb]; !ok {
			rep[kb] = seg.B
		}
		adj[ka] = append(adj[ka], incidence{seg: i, other: kb})
		adj[kb] = append(adj[kb], incidence{seg: i, other: ka})
	}

	var loops []Contour
	for i := range segs {
		if visited[i] {
			continue
		}
		visited[i] = true
		chain := Contour{rep[keys[i][0]], rep[keys[i][1]]}
		cur := keys[i][1]
		for {
			extended := false
			for _, inc := range adj[cur] {
				if visited[inc.seg] {
					continue
				}
				visited[inc.seg] = true
				chain = append(chain, rep[inc.other])
				cur = inc.other
				extended = true
				break
			}
			if !extended {
				break
			}
		}
		if len(chain) >= 3 {
			loops = append(loops, chain)
		}
	}
	return loops
}

func (s Slicer) mergeTol() float64 {
	if s.MergeTol <= 0 {
		return DefaultMergeTol
	}
	return s.MergeTol
}

func quantize(p r2.Vec, ri float64) vertexKey {
	v := r2.Scale(ri, p)
	return vertexKey{int64(v.X), int64(v.Y)}
}
