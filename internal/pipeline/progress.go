package pipeline

import "sync"

// Progress is a point-in-time view of a running pipeline.
type Progress struct {
	CurrentFrame int     `json:"current_frame"`
	TotalFrames  int     `json:"total_frames"`
	Percent      float64 `json:"percent"`
}

// ProgressState holds the pipeline's progress behind a mutex so the
// dashboard can read it while a run is active.
type ProgressState struct {
	mu      sync.RWMutex
	current int
	total   int
}

// NewProgressState creates a progress state for a run of total frames.
func NewProgressState(total int) *ProgressState {
	return &ProgressState{total: total}
}

// Update records the current frame index.
func (p *ProgressState) Update(current int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = current
}

// Snapshot returns a consistent copy of the progress.
func (p *ProgressState) Snapshot() Progress {
	p.mu.RLock()
	defer p.mu.RUnlock()

	pct := 0.0
	if p.total > 0 {
		pct = float64(p.current) / float64(p.total) * 100
		if pct > 100 {
			pct = 100
		}
	}
	return Progress{CurrentFrame: p.current, TotalFrames: p.total, Percent: pct}
}
