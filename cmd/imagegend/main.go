package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dreamforge/imagegen/cmd/imagegend/commands"
	"github.com/dreamforge/imagegen/logger"
)

var rootCmd = &cobra.Command{
	Use:   "imagegend",
	Short: "imagegend - image generation job orchestration core",
	Long: `imagegend runs the worker pool, priority job queue, model registry,
WebSocket session router, and HTTP bridge that together form the job
orchestration core of the image generation service.

Available commands:
  serve   - Start the orchestration core (WS hub + HTTP bridge + worker pool)
  config  - Show and validate the loaded configuration
  mode    - List modes and trigger a mode-config reload on a running server
  queue   - Inspect the worker pool's queue on a running server
  version - Show build version information

Examples:
  imagegend serve                    # Start the server
  imagegend config show              # Print the loaded configuration
  imagegend mode ls                  # List configured modes
  imagegend queue ls                 # List queued jobs on localhost:8080`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")
		if err := logger.Initialize(jsonLogs); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Emit structured JSON logs instead of human-readable console output")

	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.ModeCmd)
	rootCmd.AddCommand(commands.QueueCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
