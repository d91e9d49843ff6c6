package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Jayphen/dida-digest/internal/pipeline"
	"github.com/Jayphen/dida-digest/internal/tui"
)

var (
	runDryRun    bool
	runSource    string
	runQuiet     bool
	runSkipEmpty bool
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build the task digest once and push it",
		Long: `Fetch all open tasks, build the digest and push it to the WeCom robot.

If no Dida365 credential is stored, a re-authorization reminder is pushed
instead and the command exits with an error.`,
		Example: `  # Normal run, e.g. from cron
  dida-digest run --quiet

  # Preview without sending
  dida-digest run --dry-run

  # Use a local snapshot instead of the API
  dida-digest run --dry-run --source file:path=tasks.yaml`,
		RunE: runRun,
	}

	cmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Build and print the digest without sending it")
	cmd.Flags().StringVar(&runSource, "source", "", "Task source spec (overrides config), e.g. file:path=tasks.yaml")
	cmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "Do not print the digest preview")
	cmd.Flags().BoolVar(&runSkipEmpty, "skip-empty", false, "Do not send anything when no task qualifies")

	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, "run", false)
	if err != nil {
		return err
	}
	defer a.Close()

	if !runDryRun {
		if err := a.cfg.Validate(); err != nil {
			return err
		}
	}

	runner, src, err := a.runner(runOptions{
		source:    runSource,
		dryRun:    runDryRun,
		skipEmpty: runSkipEmpty,
	})
	if err != nil {
		return err
	}
	defer src.Close()

	res, runErr := runner.Run(ctx)

	if !runQuiet && res.Status != pipeline.StatusReminded {
		fmt.Println(tui.RenderPreview(res.Digest, tui.PreviewInfo{
			Source:    src.Info().Name,
			Generated: res.Finished.In(a.loc),
			Outcome:   res.Status,
		}))
	}

	if runErr != nil {
		if res.Status == pipeline.StatusReminded {
			return fmt.Errorf("not authorized, run 'dida-digest auth login': %w", runErr)
		}
		return runErr
	}
	return nil
}
