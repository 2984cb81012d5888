// Command planwatch follows PlanExe plan generation streams from the
// terminal: it connects to a running API server, accumulates the
// streamed output, and renders progress as it arrives.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	serverURL  string
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "planwatch",
	Short: "Follow PlanExe plan streams from the terminal",
	Long: `Planwatch attaches to a PlanExe API server and follows plan
generation in real time: pipeline status, log lines, and the streamed
LLM output of each stage, reconstructed from deltas as they arrive.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "API server base URL (default http://localhost:8000, or from config file)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to planwatch.yaml (default: search cwd and $HOME)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger creates a structured logger with the configured verbosity.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
