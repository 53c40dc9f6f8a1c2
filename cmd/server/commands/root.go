package commands

import (
	"fmt"
	"os"

	"camserver/internal/config"
	"camserver/internal/logger"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Focus sweep capture server",
	Long: `Drives a camera through focus sweeps, stores every capture with its
metadata and serves the results over HTTP. Without a subcommand it serves.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("image-dir", "", "Directory holding captures and metadata")
	rootCmd.PersistentFlags().String("db-path", "", "SQLite sweep history path")
	rootCmd.PersistentFlags().String("log-dir", "", "Directory for info/warning/error logs")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
}

// setup loads the configuration, with cmd's flags taking precedence, and
// opens the logger.
func setup(cmd *cobra.Command) (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, nil, fmt.Errorf("config load failed: %w", err)
	}
	log, err := logger.NewLogger(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("logger init failed: %w", err)
	}
	return cfg, log, nil
}
