// Package pipeline drives the frame loop: detection, spatial assignment,
// identity resolution on the sampling cadence, exit lifecycle, and frame
// sink handoff, strictly sequential per frame.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/kozaktomas/face-tracker/internal/gallery"
	"github.com/kozaktomas/face-tracker/internal/model"
	"github.com/kozaktomas/face-tracker/internal/resolve"
	"github.com/kozaktomas/face-tracker/internal/store"
	"github.com/kozaktomas/face-tracker/internal/track"
	"github.com/kozaktomas/face-tracker/internal/video"
)

// Summary describes a completed (or cancelled) run.
type Summary struct {
	TotalFrames     int `json:"total_frames"`
	ProcessedFrames int `json:"processed_frames"`
	UniquePeople    int `json:"unique_people"`
	TotalDetections int `json:"total_detections"`
}

// Options configures an Orchestrator run.
type Options struct {
	// SkipFrames is the identity-resolution cadence: resolution runs on
	// every Nth frame, or unconditionally while nobody is tracked.
	SkipFrames int
	// ExitThreshold is the consecutive-absence frame count after which a
	// tracked person exits.
	ExitThreshold int
	// ShowProgress renders a terminal progress bar.
	ShowProgress bool
	// OnEvent, when set, receives every entry and exit record as it is
	// emitted. Called on the frame-processing goroutine.
	OnEvent func(store.VisitRecord)
}

// Orchestrator owns one processing run over a frame source.
type Orchestrator struct {
	source    video.FrameSource
	detector  model.Detector
	resolver  *resolve.Resolver
	tracker   *track.Tracker
	lifecycle *track.Lifecycle
	gallery   *gallery.Gallery
	store     store.Store
	sink      FrameSink
	logger    *zap.Logger
	opts      Options

	progress *ProgressState
}

// New creates an orchestrator. sink may be nil for a discard sink.
func New(
	source video.FrameSource,
	detector model.Detector,
	resolver *resolve.Resolver,
	tracker *track.Tracker,
	lifecycle *track.Lifecycle,
	g *gallery.Gallery,
	st store.Store,
	sink FrameSink,
	logger *zap.Logger,
	opts Options,
) *Orchestrator {
	if sink == nil {
		sink = NopSink{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.SkipFrames <= 0 {
		opts.SkipFrames = 1
	}

	total := source.TotalFrames()
	if total <= 0 {
		total = 1000
	}

	return &Orchestrator{
		source:    source,
		detector:  detector,
		resolver:  resolver,
		tracker:   tracker,
		lifecycle: lifecycle,
		gallery:   g,
		store:     st,
		sink:      sink,
		logger:    logger,
		opts:      opts,
		progress:  NewProgressState(total),
	}
}

// Progress returns the live progress state for dashboard reads.
func (o *Orchestrator) Progress() *ProgressState {
	return o.progress
}

// Run processes the stream until it ends or ctx is cancelled. Cancellation
// still drains the tracked set through the forced exit pass, so entry and
// exit records reconcile. The summary is valid in both cases.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	if err := o.bootstrapGallery(ctx); err != nil {
		return Summary{}, err
	}

	total := o.progress.Snapshot().TotalFrames
	var bar *progressbar.ProgressBar
	if o.opts.ShowProgress {
		bar = progressbar.NewOptions(total,
			progressbar.OptionSetDescription("Processing frames"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("frames"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionFullWidth(),
		)
	}

	summary := Summary{TotalFrames: total}
	frameIndex := 0
	started := time.Now()

loop:
	for {
		select {
		case <-ctx.Done():
			o.logger.Info("run cancelled", zap.Int("frame", frameIndex))
			break loop
		default:
		}

		frame, err := o.source.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			o.logger.Error("frame read failed, stopping",
				zap.Int("frame", frameIndex+1), zap.Error(err))
			break
		}
		frameIndex++

		summary.TotalDetections += o.processFrame(ctx, frame, frameIndex)

		o.progress.Update(frameIndex)
		if bar != nil {
			_ = bar.Add(1)
		}
		if frameIndex%100 == 0 {
			o.logger.Info("progress",
				zap.Int("frame", frameIndex),
				zap.Int("total", total),
				zap.Int("tracked", o.tracker.Len()))
		}
	}

	// Forced exit pass: everyone still tracked leaves now.
	for _, rec := range o.lifecycle.CheckExits(ctx, frameIndex+1, 0) {
		o.emit(rec)
	}

	if bar != nil {
		_ = bar.Finish()
		fmt.Println()
	}

	summary.ProcessedFrames = frameIndex
	if n, err := o.store.CountPeople(ctx); err == nil {
		summary.UniquePeople = n
	}

	o.logger.Info("run finished",
		zap.Int("frames", summary.ProcessedFrames),
		zap.Int("detections", summary.TotalDetections),
		zap.Int("unique_people", summary.UniquePeople),
		zap.Duration("elapsed", time.Since(started)))
	return summary, nil
}

// processFrame runs the per-frame stages and returns the detection count.
func (o *Orchestrator) processFrame(ctx context.Context, frame image.Image, frameIndex int) int {
	detections, err := o.detector.Detect(ctx, frame)
	if err != nil {
		o.logger.Error("detection failed", zap.Int("frame", frameIndex), zap.Error(err))
		detections = nil
	}

	o.tracker.BeginFrame()
	if len(detections) > 0 {
		o.tracker.Assign(detections, frameIndex)
	} else {
		// Nobody detected: keep every tracked person's last-seen fresh in
		// the store without a position update.
		now := time.Now().UTC()
		for _, id := range o.tracker.IDs() {
			if err := o.store.UpdateLastSeen(ctx, id, now); err != nil {
				o.logger.Error("last seen refresh failed",
					zap.String("person_id", id), zap.Error(err))
			}
		}
	}

	if frameIndex%o.opts.SkipFrames == 0 || o.tracker.Len() == 0 {
		for _, rec := range o.resolver.Resolve(ctx, frame, detections, frameIndex) {
			o.emit(rec)
		}
	}

	for _, rec := range o.lifecycle.CheckExits(ctx, frameIndex, o.opts.ExitThreshold) {
		o.emit(rec)
	}

	if err := o.sink.Render(frame, o.tracker.Snapshot(), frameIndex); err != nil {
		o.logger.Error("frame sink failed", zap.Int("frame", frameIndex), zap.Error(err))
	}

	return len(detections)
}

// bootstrapGallery loads every stored embedding so re-identification works
// across runs.
func (o *Orchestrator) bootstrapGallery(ctx context.Context) error {
	embeddings, err := o.store.AllEmbeddings(ctx)
	if err != nil {
		return fmt.Errorf("load gallery embeddings: %w", err)
	}
	for _, e := range embeddings {
		o.gallery.Add(e.PersonID, e.Vector)
	}
	o.logger.Info("gallery loaded", zap.Int("embeddings", len(embeddings)))
	return nil
}

func (o *Orchestrator) emit(rec store.VisitRecord) {
	if o.opts.OnEvent != nil {
		o.opts.OnEvent(rec)
	}
}
