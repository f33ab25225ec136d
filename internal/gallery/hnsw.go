package gallery

import (
	"sort"

	"github.com/coder/hnsw"
)

// HNSW parameters for face embeddings.
const (
	hnswMaxNeighbors     = 16
	hnswMinSize          = 64 // below this a linear scan is both exact and fast
	hnswSearchCandidates = 24 // candidates fetched for exact re-ranking
)

// hnswIndex maps gallery entry positions into an HNSW graph so BestMatch can
// search a candidate set instead of the whole gallery.
type hnswIndex struct {
	graph *hnsw.Graph[int]
	size  int
}

func newHNSWIndex() *hnswIndex {
	g := hnsw.NewGraph[int]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors)
	g.Distance = hnsw.CosineDistance
	return &hnswIndex{graph: g}
}

func (h *hnswIndex) add(pos int, vector []float32) {
	if len(vector) == 0 {
		return
	}
	h.graph.Add(hnsw.MakeNode(pos, vector))
	h.size++
}

func (h *hnswIndex) ready() bool {
	return h.size >= hnswMinSize
}

// candidates returns entry positions near the query, in ascending position
// order so the caller's tie-break stays stable.
func (h *hnswIndex) candidates(vector []float32, k int) []int {
	neighbors := h.graph.Search(vector, k)
	positions := make([]int, 0, len(neighbors))
	for _, n := range neighbors {
		positions = append(positions, n.Key)
	}
	sort.Ints(positions)
	return positions
}

// bestMatchHNSW answers a best-match query through the index, re-ranking the
// candidate set with exact cosine similarity.
func (g *Gallery) bestMatchHNSW(vector []float32) (Match, bool) {
	if len(vector) == 0 {
		return Match{}, false
	}
	cands := g.index.candidates(vector, hnswSearchCandidates)
	if len(cands) < 2 {
		return Match{}, false
	}
	return g.scan(vector, cands), true
}
