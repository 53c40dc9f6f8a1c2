package commands

import (
	"errors"
	"fmt"

	"camserver/internal/service/storage"

	"github.com/spf13/cobra"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete the oldest captures beyond a limit",
	RunE:  runPrune,
}

func init() {
	pruneCmd.Flags().Int("max-results", 0, "Number of most recent captures to keep")
	rootCmd.AddCommand(pruneCmd)
}

func runPrune(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Close()

	if cfg.MaxResults <= 0 {
		return errors.New("prune needs a positive --max-results")
	}

	store, err := storage.NewStore(cfg.ImageDirectory, log)
	if err != nil {
		return err
	}

	deleted, err := store.Prune(cfg.MaxResults)
	if err != nil {
		return fmt.Errorf("prune failed: %w", err)
	}

	fmt.Printf("Deleted %d capture(s), kept at most %d\n", len(deleted), cfg.MaxResults)
	for _, id := range deleted {
		fmt.Printf("  %s\n", id)
	}
	return nil
}
