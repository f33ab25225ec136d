package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-tracker/internal/config"
	"github.com/kozaktomas/face-tracker/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print tracking statistics",
	Long:  `Print the number of known people and recorded entry/exit events.`,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()

	people, err := st.CountPeople(ctx)
	if err != nil {
		return fmt.Errorf("failed to count people: %w", err)
	}
	entries, err := st.CountVisits(ctx, store.ActionEntry)
	if err != nil {
		return fmt.Errorf("failed to count entries: %w", err)
	}
	exits, err := st.CountVisits(ctx, store.ActionExit)
	if err != nil {
		return fmt.Errorf("failed to count exits: %w", err)
	}

	fmt.Printf("People:  %d\n", people)
	fmt.Printf("Entries: %d\n", entries)
	fmt.Printf("Exits:   %d\n", exits)
	return nil
}
