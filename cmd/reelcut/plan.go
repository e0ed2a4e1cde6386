package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/heimdex/reelcut/internal/allocator"
	"github.com/heimdex/reelcut/internal/api"
	"github.com/heimdex/reelcut/internal/export"
	"github.com/heimdex/reelcut/internal/project"
)

var (
	planFormat    string
	planOutput    string
	planFrameRate float64
)

var planCmd = &cobra.Command{
	Use:   "plan <project.yaml>",
	Short: "Plan a project's timeline without rendering it",
	Long: `Plan probes every source in the project and prints the resulting timeline
as JSON, or as a CMX 3600 EDL for import into an editor.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return plan(cmd.Context(), args[0], cmd.OutOrStdout())
	},
}

func init() {
	planCmd.Flags().StringVarP(&planFormat, "format", "f", "json", "output format: json or edl")
	planCmd.Flags().StringVarP(&planOutput, "output", "o", "", "write to this file instead of stdout")
	planCmd.Flags().Float64Var(&planFrameRate, "frame-rate", 30, "EDL timecode frame rate")
}

func plan(ctx context.Context, path string, stdout io.Writer) error {
	if planFormat != "json" && planFormat != "edl" {
		return fmt.Errorf("unknown format %q (want json or edl)", planFormat)
	}

	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	proj, err := project.Load(path, rt.planner.Defaults())
	if err != nil {
		return err
	}
	tl, err := rt.planner.Plan(ctx, proj.Request())
	if err != nil {
		return err
	}
	if tl.IsEmpty() {
		rt.logger.Warn("planned timeline is empty", "project", path)
	}

	out := stdout
	if planOutput != "" {
		f, err := os.Create(planOutput)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	if planFormat == "edl" {
		_, err := io.WriteString(out, export.GenerateEDL(tl, proj.Title, planFrameRate))
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(api.PlanResponse{
		Timeline:   tl,
		Allocation: allocator.Allocate(tl.VideoClips),
		Empty:      tl.IsEmpty(),
		DurationS:  tl.TotalDuration.Seconds(),
	})
}
