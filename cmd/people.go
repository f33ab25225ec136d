package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-tracker/internal/config"
)

var peopleCmd = &cobra.Command{
	Use:   "people",
	Short: "List known people",
	Long:  `List every known person with their display name, visit count and last-seen time.`,
	RunE:  runPeople,
}

func init() {
	rootCmd.AddCommand(peopleCmd)
}

func runPeople(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	people, err := st.People(context.Background())
	if err != nil {
		return fmt.Errorf("failed to load people: %w", err)
	}

	if len(people) == 0 {
		fmt.Println("No people recorded yet")
		return nil
	}

	for _, p := range people {
		name := p.DisplayName
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Printf("%-12s %-24s visits: %-4d last seen: %s\n",
			p.PersonID, name, p.VisitCount, p.LastSeen.Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("\nTotal: %d people\n", len(people))
	return nil
}
