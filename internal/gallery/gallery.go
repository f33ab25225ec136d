// Package gallery holds the session's appearance memory: every known
// (person, embedding) pair, answering best/second-best similarity queries
// and gating gallery growth with a diversity filter.
package gallery

import (
	"context"

	"go.uber.org/zap"

	"github.com/kozaktomas/face-tracker/internal/store"
)

// recentEmbeddingsLimit is how many of a person's newest stored embeddings
// the diversity filter compares against.
const recentEmbeddingsLimit = 10

// RecentFetcher provides a person's most recent stored embeddings,
// newest first. Satisfied by store.Store.
type RecentFetcher interface {
	RecentEmbeddings(ctx context.Context, personID string, limit int) ([][]float32, error)
}

// Entry is one known embedding and its owner.
type Entry struct {
	PersonID string
	Vector   []float32
}

// Match is the result of a best-match query.
type Match struct {
	PersonID      string
	BestSim       float64
	SecondBestSim float64
}

// Gallery is the in-memory embedding set, kept in insertion order so that
// similarity ties deterministically favor the first-encountered candidate.
// It is owned by the frame-processing goroutine and must not be shared.
type Gallery struct {
	entries            []Entry
	diversityThreshold float64
	recent             RecentFetcher
	index              *hnswIndex // nil unless HNSW acceleration is enabled
	logger             *zap.Logger
}

// Option configures a Gallery.
type Option func(*Gallery)

// WithHNSW enables approximate-nearest-neighbor acceleration for BestMatch.
// Candidates found by the graph are re-ranked with exact cosine similarity.
// Note that an approximate index may miss the true best match; the default
// linear scan is exact.
func WithHNSW() Option {
	return func(g *Gallery) {
		g.index = newHNSWIndex()
	}
}

// New creates an empty gallery. The diversity threshold gates ShouldRetain.
func New(recent RecentFetcher, diversityThreshold float64, logger *zap.Logger, opts ...Option) *Gallery {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Gallery{
		diversityThreshold: diversityThreshold,
		recent:             recent,
		logger:             logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Add appends an embedding to the gallery. Callers must only Add after the
// corresponding store write succeeded, so the in-memory gallery never runs
// ahead of the persistent one.
func (g *Gallery) Add(personID string, vector []float32) {
	g.entries = append(g.entries, Entry{PersonID: personID, Vector: vector})
	if g.index != nil {
		g.index.add(len(g.entries)-1, vector)
	}
}

// Len returns the number of embeddings held.
func (g *Gallery) Len() int {
	return len(g.entries)
}

// BestMatch returns the best and second-best cosine similarity over all
// known embeddings. With an empty gallery it returns an empty PersonID and
// similarities of -1. Ties favor the first-encountered entry.
func (g *Gallery) BestMatch(vector []float32) Match {
	if g.index != nil && g.index.ready() {
		if m, ok := g.bestMatchHNSW(vector); ok {
			return m
		}
	}
	return g.scan(vector, nil)
}

// scan runs the exact selection loop over the gallery, or over the subset of
// entry positions given by candidates (which must be in ascending order to
// preserve the first-encountered tie-break).
func (g *Gallery) scan(vector []float32, candidates []int) Match {
	m := Match{BestSim: -1, SecondBestSim: -1}

	consider := func(e Entry) {
		sim := store.CosineSimilarity(vector, e.Vector)
		if sim > m.BestSim {
			m.SecondBestSim = m.BestSim
			m.BestSim = sim
			m.PersonID = e.PersonID
		} else if sim > m.SecondBestSim {
			m.SecondBestSim = sim
		}
	}

	if candidates == nil {
		for _, e := range g.entries {
			consider(e)
		}
		return m
	}
	for _, i := range candidates {
		if i >= 0 && i < len(g.entries) {
			consider(g.entries[i])
		}
	}
	return m
}

// ShouldRetain decides whether a re-identified person's new embedding is
// diverse enough to persist. With no stored history it retains
// unconditionally; otherwise it retains only when the maximum similarity
// against the person's 10 most recent embeddings stays strictly below the
// diversity threshold. A store read failure retains by default.
func (g *Gallery) ShouldRetain(ctx context.Context, personID string, vector []float32) bool {
	existing, err := g.recent.RecentEmbeddings(ctx, personID, recentEmbeddingsLimit)
	if err != nil {
		g.logger.Error("recent embeddings lookup failed, retaining by default",
			zap.String("person_id", personID), zap.Error(err))
		return true
	}

	if len(existing) == 0 {
		return true
	}

	maxSim := 0.0
	for _, vec := range existing {
		if sim := store.CosineSimilarity(vector, vec); sim > maxSim {
			maxSim = sim
		}
	}

	retain := maxSim < g.diversityThreshold
	if retain {
		g.logger.Debug("storing diverse embedding",
			zap.String("person_id", personID), zap.Float64("max_sim", maxSim))
	}
	return retain
}
