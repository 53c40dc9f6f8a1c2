package commands

import (
	"fmt"

	"camserver/internal/model"
	"camserver/internal/service/storage"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List captures, most recent first",
	Long:  `Lists the capture records of the image folder. With --max-results, records beyond the limit are deleted.`,
	RunE:  runList,
}

func init() {
	listCmd.Flags().Int("max-results", 0, "Keep and show at most this many records (0 shows all)")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Close()

	store, err := storage.NewStore(cfg.ImageDirectory, log)
	if err != nil {
		return err
	}

	images, err := store.List(cfg.MaxResults)
	if err != nil {
		return fmt.Errorf("list failed: %w", err)
	}

	if len(images) == 0 {
		fmt.Println("No captures found")
		return nil
	}

	fmt.Printf("%-17s %-8s %-6s %-8s %-8s %-5s %-5s %s\n", "ID", "STATE", "FOCUS", "APERTURE", "EXPOSURE", "GAIN", "THUMB", "ERROR")
	fmt.Println("----------------------------------------------------------------------------------------")

	for _, img := range images {
		errMsg := "-"
		if img.Error != nil {
			errMsg = *img.Error
		}
		thumb := "no"
		if img.HasThumbnail {
			thumb = "yes"
		}
		fmt.Printf("%-17s %-8s %-6s %-8s %-8d %-5d %-5s %s\n",
			img.ID, img.State(), model.FormatOptional(img.Focus), model.FormatOptional(img.Aperture),
			img.Exposure, img.Gain, thumb, errMsg)
	}

	return nil
}
