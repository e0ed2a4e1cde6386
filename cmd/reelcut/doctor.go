package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that ffmpeg and ffprobe are installed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()
		tc, err := rt.doctor.Refresh(ctx)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "ffmpeg   %s (%s)\n", tc.FFmpegVersion, tc.FFmpeg)
		fmt.Fprintf(cmd.OutOrStdout(), "ffprobe  %s (%s)\n", tc.FFprobeVersion, tc.FFprobe)
		if !tc.Ready() {
			return fmt.Errorf("toolchain incomplete")
		}
		return nil
	},
}
