package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-tracker/internal/config"
	"github.com/kozaktomas/face-tracker/internal/logging"
	"github.com/kozaktomas/face-tracker/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web dashboard",
	Long: `Start the Face Tracker dashboard server.
The dashboard exposes run statistics, known people, visit history and a
server-sent event stream of entry/exit events over a JSON API. Without an
active processing run in this process the live view reports inactive.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Bool("debug", false, "Enable debug logging")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	debug := mustGetBool(cmd, "debug")

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

	server := web.NewServer(&cfg.Web, st, nil, nil, nil, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Face Tracker dashboard on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
