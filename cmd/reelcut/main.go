package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/heimdex/reelcut/internal/config"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "reelcut",
	Short: "Cut reaction reels from a main video and its reactions",
	Long: `reelcut plans an alternating edit between a main video and one or more
reaction videos, then renders it with ffmpeg.

Run 'reelcut serve' for the local API and tray, or 'reelcut plan' and
'reelcut export' against a project file.`,
	Version:       config.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides REELCUT_LOG_LEVEL")
	rootCmd.AddCommand(serveCmd, planCmd, exportCmd, doctorCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
