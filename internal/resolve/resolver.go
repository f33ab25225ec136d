// Package resolve assigns a durable identity to every detection that
// spatial tracking did not already account for, using a strict precedence:
// spatial carry-over, then embedding re-identification, then new
// registration.
package resolve

import (
	"context"
	"image"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kozaktomas/face-tracker/internal/evidence"
	"github.com/kozaktomas/face-tracker/internal/gallery"
	"github.com/kozaktomas/face-tracker/internal/model"
	"github.com/kozaktomas/face-tracker/internal/store"
	"github.com/kozaktomas/face-tracker/internal/track"
)

// carryOverRadius is the center distance within which a detection reuses a
// current track's identity without consulting the gallery. Deliberately
// tighter than the tracker's 100 px assignment radius: it only guards
// against re-processing a face that is already resolved this frame.
const carryOverRadius = 50.0

// Resolver decides identities for qualifying detections and performs the
// gallery and persistence updates those decisions imply.
type Resolver struct {
	tracker  *track.Tracker
	gallery  *gallery.Gallery
	store    store.Store
	embedder model.Embedder
	evidence track.EvidenceSaver
	logger   *zap.Logger

	confThreshold float64
	simThreshold  float64
}

// New creates a resolver. evidence may be nil when crop capture is disabled.
func New(
	tracker *track.Tracker,
	g *gallery.Gallery,
	st store.Store,
	embedder model.Embedder,
	ev track.EvidenceSaver,
	confThreshold, simThreshold float64,
	logger *zap.Logger,
) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		tracker:       tracker,
		gallery:       g,
		store:         st,
		embedder:      embedder,
		evidence:      ev,
		logger:        logger,
		confThreshold: confThreshold,
		simThreshold:  simThreshold,
	}
}

// Resolve runs identity resolution for every qualifying detection in the
// frame and returns the entry records emitted for fresh presences.
// Per-detection failures are isolated: a detection that cannot be resolved
// is skipped without identity side effects.
func (r *Resolver) Resolve(ctx context.Context, frame image.Image, detections []model.Detection, frameIndex int) []store.VisitRecord {
	var entries []store.VisitRecord

	for _, det := range detections {
		if det.Confidence < r.confThreshold {
			continue
		}
		if rec := r.resolveDetection(ctx, frame, det, frameIndex); rec != nil {
			entries = append(entries, *rec)
		}
	}
	return entries
}

// resolveDetection resolves one detection. Returns the entry record when the
// resolution is a fresh presence, nil otherwise.
func (r *Resolver) resolveDetection(ctx context.Context, frame image.Image, det model.Detection, frameIndex int) *store.VisitRecord {
	bounds := frame.Bounds()
	pad := int(0.1 * float64(max(det.Box.W, det.Box.H)))
	crop := evidence.Crop(frame, det.Box.Pad(pad, bounds.Dx(), bounds.Dy()))
	if crop == nil {
		return nil
	}

	assignedID := ""
	isNewPerson := false

	// Identity carry-over: the nearest tracked person within 50 px keeps
	// their identity, no gallery involved. All tracked people participate,
	// matched this frame or not. Guards against re-processing a face as
	// "new" just because it landed on the sampling cadence.
	if id, ok := r.tracker.NearestWithin(det.Box.Center(), carryOverRadius, false); ok {
		assignedID = id
		r.logger.Debug("position match", zap.String("person_id", id))
	}

	var emb []float32
	if assignedID == "" {
		var err error
		emb, err = r.embedder.Embed(ctx, crop)
		if err != nil {
			r.logger.Error("embedding extraction failed", zap.Error(err))
			return nil
		}
		if emb == nil {
			// No confident face in the crop: skip, not an error.
			return nil
		}

		m := r.gallery.BestMatch(emb)
		if m.BestSim >= r.simThreshold && m.PersonID != "" {
			assignedID = m.PersonID
			r.logger.Info("embedding match",
				zap.String("person_id", assignedID),
				zap.Float64("sim", m.BestSim),
				zap.Float64("second_sim", m.SecondBestSim))
		} else {
			assignedID = r.mintPersonID(ctx)
			isNewPerson = true
			if err := r.store.RegisterPerson(ctx, assignedID, emb, time.Now().UTC()); err != nil {
				// Registration failed: abandon the detection so memory
				// never advances past the failed write. The person will
				// be re-attempted on the next cadence frame.
				r.logger.Error("person registration failed",
					zap.String("person_id", assignedID), zap.Error(err))
				return nil
			}
			r.gallery.Add(assignedID, emb)
			r.logger.Info("new person",
				zap.String("person_id", assignedID), zap.Float64("sim", m.BestSim))
		}
	}

	var entry *store.VisitRecord
	if !r.tracker.Has(assignedID) {
		entry = r.recordEntry(ctx, assignedID, crop)
	}

	// Offer re-identification embeddings to the diversity filter. Brand-new
	// people already stored their first sample during registration.
	if !isNewPerson && emb != nil && r.gallery.ShouldRetain(ctx, assignedID, emb) {
		if err := r.store.InsertEmbedding(ctx, assignedID, emb, time.Now().UTC()); err != nil {
			// A failed insert must not reach the in-memory gallery.
			r.logger.Error("embedding insert failed",
				zap.String("person_id", assignedID), zap.Error(err))
		} else {
			r.gallery.Add(assignedID, emb)
		}
	}

	if err := r.store.UpdateLastSeen(ctx, assignedID, time.Now().UTC()); err != nil {
		r.logger.Error("last seen update failed",
			zap.String("person_id", assignedID), zap.Error(err))
	}

	r.tracker.Register(assignedID, det.Box, crop, det.Confidence, frameIndex)
	return entry
}

// mintPersonID draws the next sequential identifier from the store counter,
// falling back to a locally-generated identifier when the counter fails.
// The fallback loses sequential numbering for that one identity but never
// collides.
func (r *Resolver) mintPersonID(ctx context.Context) string {
	id, err := r.store.NextPersonID(ctx)
	if err != nil {
		fallback := "person_" + uuid.NewString()[:8]
		r.logger.Error("person counter failed, using fallback id",
			zap.String("person_id", fallback), zap.Error(err))
		return fallback
	}
	return id
}

// recordEntry emits the entry fact for a fresh presence.
func (r *Resolver) recordEntry(ctx context.Context, personID string, crop image.Image) *store.VisitRecord {
	evidencePath := ""
	if r.evidence != nil {
		path, err := r.evidence.Save(crop, "entries")
		if err != nil {
			r.logger.Error("entry evidence save failed", zap.String("person_id", personID), zap.Error(err))
		} else {
			evidencePath = path
		}
	}

	now := time.Now().UTC()
	if err := r.store.RecordVisit(ctx, personID, store.ActionEntry, now, evidencePath); err != nil {
		r.logger.Error("entry record failed", zap.String("person_id", personID), zap.Error(err))
	} else {
		r.logger.Info("entry saved", zap.String("person_id", personID))
	}

	return &store.VisitRecord{
		PersonID:     personID,
		Action:       store.ActionEntry,
		Timestamp:    now,
		EvidencePath: evidencePath,
	}
}
