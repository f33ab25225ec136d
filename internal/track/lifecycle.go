package track

import (
	"context"
	"image"
	"time"

	"go.uber.org/zap"

	"github.com/kozaktomas/face-tracker/internal/store"
)

// VisitRecorder persists entry/exit facts. Satisfied by store.Store.
type VisitRecorder interface {
	RecordVisit(ctx context.Context, personID string, action store.VisitAction, ts time.Time, evidencePath string) error
}

// EvidenceSaver writes a face crop under the given category ("entries" or
// "exits") and returns its path, or an empty path when saving is disabled.
type EvidenceSaver interface {
	Save(img image.Image, category string) (string, error)
}

// Lifecycle is the only component authorized to emit exit events and prune
// tracks. A person moves untracked → tracked on resolution, stays tracked
// while matched, and returns to untracked only here. There is no tentative
// state; a single missed frame never exits anyone.
type Lifecycle struct {
	tracker  *Tracker
	visits   VisitRecorder
	evidence EvidenceSaver
	logger   *zap.Logger
}

// NewLifecycle creates the lifecycle manager. evidence may be nil when
// evidence capture is disabled.
func NewLifecycle(tracker *Tracker, visits VisitRecorder, evidence EvidenceSaver, logger *zap.Logger) *Lifecycle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Lifecycle{tracker: tracker, visits: visits, evidence: evidence, logger: logger}
}

// CheckExits emits an exit record for every tracked person whose absence
// exceeds exitThreshold frames and removes them from the tracked set.
// Called with exitThreshold 0 at end-of-stream it drains the whole set, so
// tracks and exit records reconcile at shutdown. Returns the emitted
// records.
func (l *Lifecycle) CheckExits(ctx context.Context, currentFrame, exitThreshold int) []store.VisitRecord {
	var exited []store.VisitRecord

	for _, id := range l.tracker.IDs() {
		p := l.tracker.Get(id)
		if p == nil {
			continue
		}
		if currentFrame-p.LastSeenFrame <= exitThreshold {
			continue
		}

		l.logger.Info("person exit",
			zap.String("person_id", id), zap.Int("frame", currentFrame))

		evidencePath := ""
		if l.evidence != nil && p.LastCrop != nil {
			path, err := l.evidence.Save(p.LastCrop, "exits")
			if err != nil {
				l.logger.Error("exit evidence save failed", zap.String("person_id", id), zap.Error(err))
			} else {
				evidencePath = path
			}
		}

		now := time.Now().UTC()
		if err := l.visits.RecordVisit(ctx, id, store.ActionExit, now, evidencePath); err != nil {
			l.logger.Error("exit record failed", zap.String("person_id", id), zap.Error(err))
		} else {
			l.logger.Info("exit saved", zap.String("person_id", id))
		}

		l.tracker.remove(id)
		exited = append(exited, store.VisitRecord{
			PersonID:     id,
			Action:       store.ActionExit,
			Timestamp:    now,
			EvidencePath: evidencePath,
		})
	}

	return exited
}
