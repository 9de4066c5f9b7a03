package gallery

import (
	"sort"

	"github.com/coder/hnsw"
	"gonum.org/v1/gonum/floats"
)

const (
	// auditNeighbors is how many nearest neighbours are inspected per entry.
	auditNeighbors = 8
	// auditMaxNeighbors is the HNSW M parameter (max connections per node).
	auditMaxNeighbors = 16
)

// NearDuplicate is a pair of identities whose reference embeddings lie closer
// than the match threshold. A live face close to both may be attributed to
// either of them.
type NearDuplicate struct {
	A        Identity `json:"a"`
	B        Identity `json:"b"`
	Distance float64  `json:"distance"`
}

// Audit reports identity pairs closer than threshold, nearest pair first.
// Neighbours are found through an HNSW graph, so very large galleries may miss
// a pair that exact search would find.
func Audit(g *Gallery, threshold float64) []NearDuplicate {
	if g.Len() < 2 {
		return nil
	}

	graph := hnsw.NewGraph[int]()
	graph.M = auditMaxNeighbors
	graph.Ml = 1.0 / float64(auditMaxNeighbors)
	graph.Distance = hnsw.EuclideanDistance

	vectors := make([][]float32, g.Len())
	for i, e := range g.entries {
		vectors[i] = toFloat32(e.Embedding)
		graph.Add(hnsw.MakeNode(i, vectors[i]))
	}

	k := min(auditNeighbors, g.Len()-1) + 1 // +1 for the entry itself
	seen := make(map[[2]int]struct{})
	var out []NearDuplicate

	for i := range g.entries {
		for _, n := range graph.Search(vectors[i], k) {
			j := n.Key
			if j == i {
				continue
			}
			pair := [2]int{min(i, j), max(i, j)}
			if _, ok := seen[pair]; ok {
				continue
			}
			seen[pair] = struct{}{}

			// Re-measure in float64 so the reported distance equals the matcher's.
			d := floats.Distance(g.entries[pair[0]].Embedding, g.entries[pair[1]].Embedding, 2)
			if d < threshold {
				out = append(out, NearDuplicate{
					A:        g.entries[pair[0]].Identity,
					B:        g.entries[pair[1]].Identity,
					Distance: d,
				})
			}
		}
	}

	sort.SliceStable(out, func(a, b int) bool { return out[a].Distance < out[b].Distance })
	return out
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
