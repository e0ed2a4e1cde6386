package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/heimdex/reelcut/internal/compose"
	"github.com/heimdex/reelcut/internal/library"
	"github.com/heimdex/reelcut/internal/progressui"
	"github.com/heimdex/reelcut/internal/project"
)

var (
	exportPlain     bool
	exportToLibrary bool
)

var exportCmd = &cobra.Command{
	Use:   "export <project.yaml>",
	Short: "Plan and render a project",
	Long: `Export plans the project and renders it with ffmpeg, showing progress
until the render finishes. Ctrl+C cancels the render and removes the
partial file.

With --library the reel is rendered into the work directory and filed in
the reelcut library instead of the project's output path.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExport(cmd.Context(), args[0])
	},
}

func init() {
	exportCmd.Flags().BoolVar(&exportPlain, "plain", false, "print progress lines instead of the interactive view")
	exportCmd.Flags().BoolVar(&exportToLibrary, "library", false, "file the finished reel in the library")
}

func runExport(ctx context.Context, path string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	proj, err := project.Load(path, rt.planner.Defaults())
	if err != nil {
		return err
	}
	tl, err := rt.planner.Plan(ctx, proj.Request())
	if err != nil {
		return err
	}

	opts := proj.ExportOptions()
	if exportToLibrary {
		opts.Output.Path = filepath.Join(rt.cfg.WorkDir(), filepath.Base(opts.Output.Path))
	}
	send, updates, stopFeed := progressui.Feed()
	defer stopFeed()
	opts.OnUpdate = send

	h, err := rt.orch.Export(ctx, compose.Job{Timeline: tl, Options: opts})
	if errors.Is(err, compose.ErrEmptyTimeline) {
		return fmt.Errorf("nothing to export: %s plans to an empty timeline", path)
	}
	if err != nil {
		return err
	}

	var recorded <-chan *library.Entry
	if exportToLibrary {
		absPath, _ := filepath.Abs(path)
		recorded, err = rt.library.Track(ctx, h, proj.Title, absPath)
		if err != nil {
			h.Cancel()
			return err
		}
	}

	if exportPlain {
		for u := range updates {
			fmt.Fprintf(os.Stderr, "%-15s %s%%\n", u.State, humanize.FtoaWithDigits(u.Progress*100, 1))
		}
	} else {
		_, err := tea.NewProgram(progressui.New(proj.Title, updates, h.Cancel)).Run()
		stopFeed()
		if err != nil {
			// Let the export clean up its partial output before exiting.
			h.Cancel()
			h.Wait(context.Background())
			if recorded != nil {
				<-recorded
			}
			return fmt.Errorf("progress view: %w", err)
		}
	}

	res, err := h.Wait(context.Background())
	if err != nil {
		return err
	}

	switch res.State {
	case compose.StateCompleted:
		out := res.OutputPath
		if recorded != nil {
			if e := <-recorded; e != nil {
				out = e.Path
			}
		}
		fmt.Println(out)
		return nil
	case compose.StateCancelled:
		if recorded != nil {
			<-recorded
		}
		return errors.New("export cancelled")
	default:
		if recorded != nil {
			<-recorded
		}
		return fmt.Errorf("export failed (%s): %s", res.Failure, res.Error)
	}
}
