package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/akrishnanDG/ct1-migrate/internal/migrator"
	"github.com/akrishnanDG/ct1-migrate/internal/models"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

type runOptions struct {
	maxBatches int
	force      bool
}

// NewPreviewCmd creates the preview command
func NewPreviewCmd(opts *globalOptions) *cobra.Command {
	ro := &runOptions{}

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Preview the migration without changing any event",
		Long: `Run every event through its migration strategy without committing the
result, and report what will change and how long the migration will take.

  ct1-migrate preview --config config.yaml

A preview in progress is resumed from its checkpoint.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPhase(cmd, opts, models.PhasePreviewInProgress, ro)
		},
	}

	addRunFlags(cmd, opts, ro)
	return cmd
}

// NewMigrateCmd creates the migrate command
func NewMigrateCmd(opts *globalOptions) *cobra.Command {
	ro := &runOptions{}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate legacy events to the custom tables",
		Long: `Migrate every legacy event to the normalized events and occurrences
tables. A preview without errors is required unless --force is set.

  ct1-migrate preview --config config.yaml
  ct1-migrate migrate --config config.yaml

Process a bounded number of batches per run:
  ct1-migrate migrate --config config.yaml --max-batches 10

A migration in progress is resumed from its checkpoint.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPhase(cmd, opts, models.PhaseMigrationInProgress, ro)
		},
	}

	addRunFlags(cmd, opts, ro)
	cmd.Flags().BoolVar(&ro.force, "force", false, "Migrate even without a clean preview")
	return cmd
}

func addRunFlags(cmd *cobra.Command, opts *globalOptions, ro *runOptions) {
	flags := cmd.Flags()
	flags.IntVar(&ro.maxBatches, "max-batches", 0, "Stop after this many batches (0 runs to completion)")
	flags.IntVar(&opts.flags.Concurrency.Workers, "workers", opts.flags.Concurrency.Workers, "Number of post prefetch workers")
	flags.StringVar(&opts.flags.Output.ReportFile, "report-file", "", "Write the site report as JSON to this file")
	flags.BoolVar(&opts.flags.Output.Progress, "progress", opts.flags.Output.Progress, "Show a progress bar")
}

func runPhase(cmd *cobra.Command, opts *globalOptions, phase models.Phase, ro *runOptions) error {
	cfg, err := opts.load(cmd)
	if err != nil {
		return err
	}

	// Create context with cancellation
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	s, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	w := cmd.OutOrStdout()
	status := s.migrator.Status()
	if status.Phase == phase {
		fmt.Fprintf(w, "Resuming %s (%d/%d events)\n", phase, status.Processed(), status.TotalEvents)
	} else {
		if err := s.migrator.Start(ctx, phase, ro.force); err != nil {
			if errors.Is(err, migrator.ErrMigrationBlocked) {
				return fmt.Errorf("%w\nRun a preview and fix the reported errors, or use --force", err)
			}
			return fmt.Errorf("failed to start: %w", err)
		}
		status = s.migrator.Status()
		fmt.Fprintf(w, "Started %s of %d events %s\n", phase, status.TotalEvents, EstimatedTime(status.EstimatedTimeInHours))
	}

	startTime := time.Now()
	done, err := driveBatches(ctx, s, ro.maxBatches, status.TotalEvents, status.Processed())
	duration := time.Since(startTime)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	report := s.migrator.Status()
	if err := printSiteReport(w, report, cfg.Output.Format); err != nil {
		return err
	}
	if err := writeReportFile(cfg.Output.ReportFile, report); err != nil {
		return err
	}
	fmt.Fprintf(w, "  Duration:        %s\n", duration.Round(time.Second))

	if !done {
		fmt.Fprintf(w, "Stopped after %d batches; run the command again to continue.\n", ro.maxBatches)
		return nil
	}
	if phase == models.PhaseMigrationInProgress && report.HasErrors() {
		return fmt.Errorf("migration completed with %d failures", report.Failed())
	}
	return nil
}

// driveBatches runs batches until the phase completes or maxBatches ran
func driveBatches(ctx context.Context, s *session, maxBatches, total, already int) (bool, error) {
	bar := newProgressBar(s.cfg.Output.Progress, total, string(s.migrator.Status().Phase))
	_ = bar.Set(already)
	defer func() {
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)
	}()

	for i := 0; maxBatches <= 0 || i < maxBatches; i++ {
		res, err := s.migrator.RunBatch(ctx)
		if err != nil {
			return false, err
		}
		_ = bar.Add(res.Processed)
		if res.Done {
			return true, nil
		}
	}
	return false, nil
}

func newProgressBar(visible bool, total int, description string) *progressbar.ProgressBar {
	var w io.Writer = os.Stderr
	if !visible {
		w = io.Discard
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("      "+description),
		progressbar.OptionSetWidth(50),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
