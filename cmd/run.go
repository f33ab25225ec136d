package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-tracker/internal/config"
	"github.com/kozaktomas/face-tracker/internal/evidence"
	"github.com/kozaktomas/face-tracker/internal/gallery"
	"github.com/kozaktomas/face-tracker/internal/logging"
	"github.com/kozaktomas/face-tracker/internal/model"
	"github.com/kozaktomas/face-tracker/internal/pipeline"
	"github.com/kozaktomas/face-tracker/internal/resolve"
	"github.com/kozaktomas/face-tracker/internal/track"
	"github.com/kozaktomas/face-tracker/internal/video"
	"github.com/kozaktomas/face-tracker/internal/web"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process a video stream and track face identities",
	Long: `Process a video file or a directory of frame images.
Each frame is run through face detection; detected faces are matched to
tracked people by position, re-identified against the embedding gallery,
or registered as new. Entry and exit events are recorded to the database
together with evidence crops.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("source", "", "Video file or frame directory to process (required)")
	runCmd.Flags().Int("max-frames", 0, "Stop after this many frames (0 = whole stream)")
	runCmd.Flags().String("output", "", "Directory for annotated output frames (empty = no rendering)")
	runCmd.Flags().Bool("no-progress", false, "Disable the terminal progress bar")
	runCmd.Flags().Bool("debug", false, "Enable debug logging")
	runCmd.Flags().Bool("web", false, "Serve the dashboard with a live view during the run")
}

func runRun(cmd *cobra.Command, args []string) error {
	videoPath := mustGetString(cmd, "source")
	if videoPath == "" {
		return errors.New("--source is required")
	}

	cfg := config.Load()

	maxFrames := mustGetInt(cmd, "max-frames")
	outputDir := mustGetString(cmd, "output")
	noProgress := mustGetBool(cmd, "no-progress")
	debug := mustGetBool(cmd, "debug")
	withWeb := mustGetBool(cmd, "web")

	logger, err := logging.New(cfg.Pipeline.LogsFolder, debug)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	client := model.NewClient(cfg.Model.URL)

	tracker := track.NewTracker()

	var galleryOpts []gallery.Option
	if cfg.Database.HNSWEnabled {
		galleryOpts = append(galleryOpts, gallery.WithHNSW())
	}
	g := gallery.New(st, cfg.Pipeline.DiversityThreshold, logger, galleryOpts...)

	saver := evidence.NewSaver(cfg.Pipeline.LogsFolder, cfg.Pipeline.SaveCropped)
	resolver := resolve.New(tracker, g, st, client, saver,
		cfg.Pipeline.DetectionConfThreshold, cfg.Pipeline.SimilarityThreshold, logger)
	lifecycle := track.NewLifecycle(tracker, st, saver, logger)

	source, err := video.Open(videoPath, maxFrames)
	if err != nil {
		return fmt.Errorf("failed to open video source: %w", err)
	}
	defer source.Close()

	var sink pipeline.FrameSink
	if outputDir != "" {
		sink, err = pipeline.NewJPEGSink(outputDir)
		if err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	opts := pipeline.Options{
		SkipFrames:    cfg.Pipeline.DetectionSkipFrames,
		ExitThreshold: cfg.Pipeline.ExitFrameThreshold,
		ShowProgress:  !noProgress && !withWeb,
	}

	var hub *web.EventHub
	if withWeb {
		hub = web.NewEventHub()
		opts.OnEvent = hub.Publish
	}

	orch := pipeline.New(source, client, resolver, tracker, lifecycle, g, st, sink, logger, opts)

	// Set up context with signal handling for graceful cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle Ctrl+C
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nReceived interrupt signal...")
		cancel()
	}()

	var server *web.Server
	if withWeb {
		server = web.NewServer(&cfg.Web, st, tracker, orch.Progress(), hub, logger)
		go func() {
			if err := server.Start(); err != nil {
				fmt.Printf("Web server error: %v\n", err)
			}
		}()
		fmt.Printf("Dashboard running on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	}

	fmt.Printf("Processing %s\n", videoPath)
	summary, err := orch.Run(ctx)
	if err != nil {
		return fmt.Errorf("processing failed: %w", err)
	}

	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}

	fmt.Printf("\nProcessed: %d frames\n", summary.ProcessedFrames)
	fmt.Printf("Detections: %d\n", summary.TotalDetections)
	fmt.Printf("Unique people: %d\n", summary.UniquePeople)
	return nil
}
