package commands

import (
	"fmt"

	"camserver/internal/model"
	"camserver/internal/repository/sqlite"
	"camserver/internal/service/history"
	"camserver/internal/service/storage"

	"github.com/spf13/cobra"
)

var sweepsCmd = &cobra.Command{
	Use:   "sweeps",
	Short: "Show the sweep history",
	RunE:  runSweeps,
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the sweep history from the records in the image folder",
	RunE:  runReindex,
}

func init() {
	sweepsCmd.Flags().Int("limit", 20, "Number of sweeps to show (0 shows all)")
	rootCmd.AddCommand(sweepsCmd)
	rootCmd.AddCommand(reindexCmd)
}

func runSweeps(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Close()

	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}

	db, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("db init failed: %w", err)
	}
	defer db.Close()

	sweeps, err := sqlite.NewSweepRepository(db).List(limit)
	if err != nil {
		return fmt.Errorf("list failed: %w", err)
	}

	if len(sweeps) == 0 {
		fmt.Println("No sweeps found")
		return nil
	}

	fmt.Printf("%-26s %-19s %-7s %-20s %-5s\n", "SWEEP", "CREATED", "CAMERA", "FOCUS (MIN:MAX:STEP)", "JOBS")
	fmt.Println("-------------------------------------------------------------------------------------")

	for _, sweep := range sweeps {
		focus := fmt.Sprintf("%d:%s:%s", sweep.FocusMin, model.FormatOptional(sweep.FocusMax), model.FormatOptional(sweep.FocusStep))
		fmt.Printf("%-26s %-19s %-7s %-20s %-5d\n",
			sweep.ID, sweep.CreatedAt.Format("2006-01-02 15:04:05"), sweep.CameraType, focus, len(sweep.Jobs))
	}
	return nil
}

func runReindex(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Close()

	store, err := storage.NewStore(cfg.ImageDirectory, log)
	if err != nil {
		return err
	}

	db, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("db init failed: %w", err)
	}
	defer db.Close()

	fmt.Printf("Reindexing captures from %s into %s\n", cfg.ImageDirectory, cfg.DBPath)

	result, err := history.Reindex(store, sqlite.NewSweepRepository(db), log)
	if err != nil {
		return err
	}

	fmt.Printf("Inserted %d sweep(s), %d already indexed\n", result.Inserted, result.Existing)
	if result.Orphans > 0 {
		fmt.Printf("Skipped %d capture(s) without a sweep\n", result.Orphans)
	}
	return nil
}
