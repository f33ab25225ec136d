package resolve

import (
	"context"
	"errors"
	"image"
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/face-tracker/internal/gallery"
	"github.com/kozaktomas/face-tracker/internal/geometry"
	"github.com/kozaktomas/face-tracker/internal/model"
	"github.com/kozaktomas/face-tracker/internal/store"
	"github.com/kozaktomas/face-tracker/internal/store/mock"
	"github.com/kozaktomas/face-tracker/internal/track"
)

// stubEmbedder returns a fixed embedding, or absent/error.
type stubEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (s *stubEmbedder) Embed(ctx context.Context, crop image.Image) ([]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.vector, nil
}

func testFrame() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 640, 480))
}

func det(x, y, w, h int, conf float64) model.Detection {
	return model.Detection{Box: geometry.Box{X: x, Y: y, W: w, H: h}, Confidence: conf}
}

func newResolver(st store.Store, emb model.Embedder) (*Resolver, *track.Tracker, *gallery.Gallery) {
	tr := track.NewTracker()
	g := gallery.New(st, 0.8, nil)
	r := New(tr, g, st, emb, nil, 0.6, 0.5, nil)
	return r, tr, g
}

func TestResolve_FirstDetectionMintsNewPerson(t *testing.T) {
	st := mock.New()
	emb := &stubEmbedder{vector: []float32{1, 0, 0}}
	r, tr, g := newResolver(st, emb)

	entries := r.Resolve(context.Background(), testFrame(), []model.Detection{det(100, 100, 50, 50, 0.9)}, 1)

	if len(entries) != 1 {
		t.Fatalf("expected 1 entry record, got %d", len(entries))
	}
	if entries[0].PersonID != "person1" || entries[0].Action != store.ActionEntry {
		t.Errorf("unexpected entry %+v", entries[0])
	}
	if tr.Len() != 1 || !tr.Has("person1") {
		t.Errorf("expected person1 tracked, tracked set size %d", tr.Len())
	}
	if g.Len() != 1 {
		t.Errorf("expected 1 gallery embedding, got %d", g.Len())
	}
	if n, _ := st.CountPeople(context.Background()); n != 1 {
		t.Errorf("expected 1 registered person, got %d", n)
	}
}

func TestResolve_LowConfidenceSkipped(t *testing.T) {
	st := mock.New()
	emb := &stubEmbedder{vector: []float32{1, 0, 0}}
	r, tr, _ := newResolver(st, emb)

	entries := r.Resolve(context.Background(), testFrame(), []model.Detection{det(100, 100, 50, 50, 0.4)}, 1)

	if len(entries) != 0 || tr.Len() != 0 || emb.calls != 0 {
		t.Error("a below-threshold detection must have no side effects")
	}
}

func TestResolve_CarryOverSkipsGallery(t *testing.T) {
	st := mock.New()
	emb := &stubEmbedder{vector: []float32{1, 0, 0}}
	r, tr, _ := newResolver(st, emb)

	// Track matched this frame at (100,100); the detection center is 7px off.
	tr.Register("person7", geometry.Box{X: 100, Y: 100, W: 50, H: 50}, nil, 0.9, 1)

	entries := r.Resolve(context.Background(), testFrame(), []model.Detection{det(105, 105, 50, 50, 0.9)}, 2)

	if len(entries) != 0 {
		t.Error("carry-over of a tracked person is not a fresh presence")
	}
	if emb.calls != 0 {
		t.Error("carry-over must not touch the embedding model")
	}
	if tr.Len() != 1 || !tr.Has("person7") {
		t.Error("carry-over must keep the existing identity")
	}
	if tr.Get("person7").LastSeenFrame != 2 {
		t.Error("carry-over must refresh the track")
	}
}

func TestResolve_ReIdentificationIsFreshPresence(t *testing.T) {
	st := mock.New()
	// Person P exited earlier; gallery retains their embedding.
	_ = st.RegisterPerson(context.Background(), "personP", []float32{1, 0, 0}, time.Now())
	emb := &stubEmbedder{vector: []float32{0.9, 0.1, 0}} // sim ≈ 0.995 against personP

	// Seed the in-memory gallery the way the pipeline bootstraps it.
	tr := track.NewTracker()
	g := gallery.New(st, 0.8, nil)
	all, _ := st.AllEmbeddings(context.Background())
	for _, e := range all {
		g.Add(e.PersonID, e.Vector)
	}
	r := New(tr, g, st, emb, nil, 0.6, 0.5, nil)

	entries := r.Resolve(context.Background(), testFrame(), []model.Detection{det(300, 300, 50, 50, 0.9)}, 10)

	if len(entries) != 1 {
		t.Fatalf("re-entry must emit an entry record, got %d", len(entries))
	}
	if entries[0].PersonID != "personP" {
		t.Errorf("expected re-identified personP, got '%s'", entries[0].PersonID)
	}
	if n, _ := st.CountPeople(context.Background()); n != 1 {
		t.Errorf("re-identification must not mint a duplicate identity, people=%d", n)
	}
}

func TestResolve_MissingEmbeddingSkipsDetection(t *testing.T) {
	st := mock.New()
	emb := &stubEmbedder{vector: nil} // absent: no confident face in crop
	r, tr, g := newResolver(st, emb)

	entries := r.Resolve(context.Background(), testFrame(), []model.Detection{det(100, 100, 50, 50, 0.9)}, 1)

	if len(entries) != 0 || tr.Len() != 0 || g.Len() != 0 {
		t.Error("a detection without an embedding must be skipped without side effects")
	}
	if n, _ := st.CountPeople(context.Background()); n != 0 {
		t.Error("no person may be registered without an embedding")
	}
}

func TestResolve_EmbedderErrorIsolatedToDetection(t *testing.T) {
	st := mock.New()
	emb := &stubEmbedder{err: errors.New("model server down")}
	r, tr, _ := newResolver(st, emb)

	entries := r.Resolve(context.Background(), testFrame(), []model.Detection{
		det(100, 100, 50, 50, 0.9),
		det(300, 300, 50, 50, 0.9),
	}, 1)

	if len(entries) != 0 || tr.Len() != 0 {
		t.Error("embedder failures must not create identities")
	}
	if emb.calls != 2 {
		t.Errorf("each detection is attempted independently, got %d calls", emb.calls)
	}
}

func TestResolve_CounterFailureFallsBackToLocalID(t *testing.T) {
	st := mock.New()
	st.NextPersonIDError = errors.New("counter unavailable")
	emb := &stubEmbedder{vector: []float32{1, 0, 0}}
	r, tr, _ := newResolver(st, emb)

	entries := r.Resolve(context.Background(), testFrame(), []model.Detection{det(100, 100, 50, 50, 0.9)}, 1)

	if len(entries) != 1 {
		t.Fatalf("expected resolution despite counter failure, got %d entries", len(entries))
	}
	id := entries[0].PersonID
	if !strings.HasPrefix(id, "person_") || len(id) != len("person_")+8 {
		t.Errorf("expected fallback identifier person_<8 hex>, got '%s'", id)
	}
	if !tr.Has(id) {
		t.Error("fallback identity must still be tracked")
	}
}

func TestResolve_RegistrationFailureHasNoSideEffects(t *testing.T) {
	st := mock.New()
	st.RegisterPersonError = errors.New("insert failed")
	emb := &stubEmbedder{vector: []float32{1, 0, 0}}
	r, tr, g := newResolver(st, emb)

	entries := r.Resolve(context.Background(), testFrame(), []model.Detection{det(100, 100, 50, 50, 0.9)}, 1)

	if len(entries) != 0 || tr.Len() != 0 || g.Len() != 0 {
		t.Error("memory must not advance past a failed registration")
	}
}

func TestResolve_DiverseEmbeddingRetained(t *testing.T) {
	st := mock.New()
	_ = st.RegisterPerson(context.Background(), "personP", []float32{1, 0, 0}, time.Now())

	// Similar enough to re-identify (threshold 0.5) but diverse enough to
	// retain (max sim < 0.8): cos ≈ 0.707.
	emb := &stubEmbedder{vector: []float32{1, 1, 0}}

	tr := track.NewTracker()
	g := gallery.New(st, 0.8, nil)
	all, _ := st.AllEmbeddings(context.Background())
	for _, e := range all {
		g.Add(e.PersonID, e.Vector)
	}
	r := New(tr, g, st, emb, nil, 0.6, 0.5, nil)

	r.Resolve(context.Background(), testFrame(), []model.Detection{det(100, 100, 50, 50, 0.9)}, 1)

	if st.EmbeddingCount() != 2 {
		t.Errorf("expected diverse embedding persisted, store has %d", st.EmbeddingCount())
	}
	if g.Len() != 2 {
		t.Errorf("expected gallery to grow to 2, got %d", g.Len())
	}
}

func TestResolve_FailedInsertNotAddedToGallery(t *testing.T) {
	st := mock.New()
	_ = st.RegisterPerson(context.Background(), "personP", []float32{1, 0, 0}, time.Now())
	st.InsertEmbeddingError = errors.New("disk full")

	emb := &stubEmbedder{vector: []float32{1, 1, 0}}

	tr := track.NewTracker()
	g := gallery.New(st, 0.8, nil)
	all, _ := st.AllEmbeddings(context.Background())
	for _, e := range all {
		g.Add(e.PersonID, e.Vector)
	}
	r := New(tr, g, st, emb, nil, 0.6, 0.5, nil)

	r.Resolve(context.Background(), testFrame(), []model.Detection{det(100, 100, 50, 50, 0.9)}, 1)

	if g.Len() != 1 {
		t.Errorf("a failed insert must not reach the in-memory gallery, got %d", g.Len())
	}
	if !tr.Has("personP") {
		t.Error("the person remains tracked despite the failed gallery write")
	}
}

func TestResolve_NearDuplicateEmbeddingNotRetained(t *testing.T) {
	st := mock.New()
	_ = st.RegisterPerson(context.Background(), "personP", []float32{1, 0, 0}, time.Now())

	emb := &stubEmbedder{vector: []float32{1, 0.01, 0}} // sim ≈ 1 ≥ diversity 0.8

	tr := track.NewTracker()
	g := gallery.New(st, 0.8, nil)
	all, _ := st.AllEmbeddings(context.Background())
	for _, e := range all {
		g.Add(e.PersonID, e.Vector)
	}
	r := New(tr, g, st, emb, nil, 0.6, 0.5, nil)

	r.Resolve(context.Background(), testFrame(), []model.Detection{det(100, 100, 50, 50, 0.9)}, 1)

	if st.EmbeddingCount() != 1 {
		t.Errorf("near-duplicate embedding must not be persisted, store has %d", st.EmbeddingCount())
	}
}
