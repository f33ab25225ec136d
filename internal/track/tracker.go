// Package track maintains the set of currently-tracked people. The tracker
// provides short-horizon identity continuity through positional proximity,
// which is cheaper and more stable than re-running appearance matching on
// every frame; the lifecycle check turns cumulative absence into exit events.
package track

import (
	"image"
	"sync"

	"github.com/kozaktomas/face-tracker/internal/geometry"
	"github.com/kozaktomas/face-tracker/internal/model"
)

// assignRadius is the maximum center distance for a track to claim a
// detection during per-frame assignment.
const assignRadius = 100.0

// TrackedPerson is one active tracking session. Owned by the Tracker;
// other components mutate it by reference, never by copy.
type TrackedPerson struct {
	PersonID string
	// CurrentBox is the bounding box for the present frame, nil when the
	// person was not matched this frame.
	CurrentBox *geometry.Box
	// LastKnownBox is the most recent non-absent box; it persists across
	// unmatched frames and anchors spatial matching.
	LastKnownBox geometry.Box
	// LastSeenFrame is the frame index of the most recent successful match.
	LastSeenFrame int
	// LastCrop is the most recent face image region, overwritten on each
	// match; retained only for exit-event evidence.
	LastCrop image.Image
	// Confidence of the most recent matching detection.
	Confidence float64
}

// Tracker owns the live {personID → TrackedPerson} mapping. All mutation
// happens on the frame-processing goroutine; the RWMutex exists so the
// dashboard can take consistent snapshots while a run is active.
type Tracker struct {
	mu     sync.RWMutex
	people map[string]*TrackedPerson
	// order fixes track iteration for the greedy assignment so matching
	// stays deterministic (map iteration order is randomized in Go).
	order []string
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{people: make(map[string]*TrackedPerson)}
}

// BeginFrame clears every tracked person's current box, marking them as
// not-yet-matched for the new frame.
func (t *Tracker) BeginFrame() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range t.people {
		p.CurrentBox = nil
	}
}

// Assign greedily matches detections to existing tracks. Tracks are visited
// in insertion order and each claims its minimum-distance unconsumed
// detection when the center distance is under 100 px. A track may steal a
// detection that would fit a later track better; each detection is consumed
// at most once. This is intentionally not a globally optimal assignment.
func (t *Tracker) Assign(detections []model.Detection, frameIndex int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	consumed := make(map[int]bool, len(detections))

	for _, id := range t.order {
		p := t.people[id]

		bestIdx := -1
		bestDistance := assignRadius
		lastCenter := p.LastKnownBox.Center()

		for i, det := range detections {
			if consumed[i] {
				continue
			}
			distance := geometry.Distance(lastCenter, det.Box.Center())
			if distance < bestDistance {
				bestDistance = distance
				bestIdx = i
			}
		}

		if bestIdx == -1 {
			continue
		}

		det := detections[bestIdx]
		box := det.Box
		p.CurrentBox = &box
		p.LastKnownBox = box
		p.LastSeenFrame = frameIndex
		p.Confidence = det.Confidence
		consumed[bestIdx] = true
	}
}

// Register (re)establishes a track for the person with fresh observation
// data. Used by identity resolution for new and re-identified people alike.
func (t *Tracker) Register(personID string, box geometry.Box, crop image.Image, conf float64, frameIndex int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if p, ok := t.people[personID]; ok {
		b := box
		p.CurrentBox = &b
		p.LastKnownBox = box
		p.LastCrop = crop
		p.Confidence = conf
		p.LastSeenFrame = frameIndex
		return
	}

	b := box
	t.people[personID] = &TrackedPerson{
		PersonID:      personID,
		CurrentBox:    &b,
		LastKnownBox:  box,
		LastCrop:      crop,
		Confidence:    conf,
		LastSeenFrame: frameIndex,
	}
	t.order = append(t.order, personID)
}

// remove drops a track. Only the lifecycle check calls this.
func (t *Tracker) remove(personID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.people, personID)
	for i, id := range t.order {
		if id == personID {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

// Has reports whether the person is currently tracked.
func (t *Tracker) Has(personID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.people[personID]
	return ok
}

// Len returns the number of tracked people.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.people)
}

// IDs returns the tracked person IDs in insertion order.
func (t *Tracker) IDs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]string, len(t.order))
	copy(ids, t.order)
	return ids
}

// Get returns the live track for a person, or nil. The pointer is shared
// with the tracker; only the frame-processing goroutine may mutate it.
func (t *Tracker) Get(personID string) *TrackedPerson {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.people[personID]
}

// NearestWithin returns the tracked person whose box center is closest to
// the given point within radius pixels. With requireCurrentBox only people
// matched this frame participate; otherwise every track is measured against
// its last known position. Ties favor the earlier-inserted track.
func (t *Tracker) NearestWithin(center geometry.Point, radius float64, requireCurrentBox bool) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	bestID := ""
	bestDistance := radius
	for _, id := range t.order {
		p := t.people[id]
		if requireCurrentBox && p.CurrentBox == nil {
			continue
		}
		if d := geometry.Distance(p.LastKnownBox.Center(), center); d < bestDistance {
			bestDistance = d
			bestID = id
		}
	}
	return bestID, bestID != ""
}

// InFrameCount counts people matched in the present frame.
func (t *Tracker) InFrameCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := 0
	for _, p := range t.people {
		if p.CurrentBox != nil {
			n++
		}
	}
	return n
}

// PersonView is a value snapshot of one track for rendering and dashboards.
type PersonView struct {
	PersonID      string        `json:"person_id"`
	CurrentBox    *geometry.Box `json:"current_box,omitempty"`
	LastKnownBox  geometry.Box  `json:"last_known_box"`
	LastSeenFrame int           `json:"last_seen_frame"`
	Confidence    float64       `json:"confidence"`
}

// Snapshot returns a consistent value copy of the tracked set in insertion
// order, safe to hand to other goroutines.
func (t *Tracker) Snapshot() []PersonView {
	t.mu.RLock()
	defer t.mu.RUnlock()

	views := make([]PersonView, 0, len(t.order))
	for _, id := range t.order {
		p := t.people[id]
		view := PersonView{
			PersonID:      p.PersonID,
			LastKnownBox:  p.LastKnownBox,
			LastSeenFrame: p.LastSeenFrame,
			Confidence:    p.Confidence,
		}
		if p.CurrentBox != nil {
			b := *p.CurrentBox
			view.CurrentBox = &b
		}
		views = append(views, view)
	}
	return views
}
