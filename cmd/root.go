package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "face-tracker",
	Short: "A CLI tool for tracking face identities across video streams",
	Long: `Face Tracker processes a video stream (or a directory of frames),
detects faces, assigns each one a durable identity using spatial tracking
and embedding re-identification, and records entry/exit events with
evidence crops. A web dashboard exposes statistics and a live view.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
