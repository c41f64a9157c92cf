package cli

import (
	"context"
	"fmt"

	"github.com/akrishnanDG/ct1-migrate/internal/migrator"
	"github.com/akrishnanDG/ct1-migrate/internal/models"
	"github.com/spf13/cobra"
)

// NewCancelCmd creates the cancel command
func NewCancelCmd(opts *globalOptions) *cobra.Command {
	ro := &runOptions{}

	cmd := &cobra.Command{
		Use:   "cancel",
		Short: "Cancel the preview or migration in progress",
		Long: `Cancel the phase in progress. A canceled preview is discarded. A canceled
migration reverses every event migrated so far.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReversal(cmd, opts, ro, (*migrator.Migrator).Cancel)
		},
	}

	addRunFlags(cmd, opts, ro)
	return cmd
}

// NewRevertCmd creates the revert command
func NewRevertCmd(opts *globalOptions) *cobra.Command {
	ro := &runOptions{}

	cmd := &cobra.Command{
		Use:   "revert",
		Short: "Reverse a completed migration",
		Long: `Undo a completed migration: the normalized events, occurrences and series
created by the migration are removed and the legacy events are left as
they were before it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReversal(cmd, opts, ro, (*migrator.Migrator).Revert)
		},
	}

	addRunFlags(cmd, opts, ro)
	return cmd
}

func runReversal(cmd *cobra.Command, opts *globalOptions, ro *runOptions, begin func(*migrator.Migrator, context.Context) error) error {
	cfg, err := opts.load(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	s, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	w := cmd.OutOrStdout()
	// A reversal in progress is resumed.
	switch s.migrator.Status().Phase {
	case models.PhaseCancelInProgress, models.PhaseRevertInProgress:
	default:
		if err := begin(s.migrator, ctx); err != nil {
			return err
		}
	}

	status := s.migrator.Status()
	if status.IsRunning() {
		total := status.Succeeded()
		done, err := driveBatches(ctx, s, ro.maxBatches, total, status.Reverted+status.RevertFailed)
		if err != nil {
			return fmt.Errorf("reversal failed: %w", err)
		}
		if !done {
			fmt.Fprintf(w, "Stopped after %d batches; run the command again to continue.\n", ro.maxBatches)
		}
	}

	report := s.migrator.Status()
	if err := printSiteReport(w, report, cfg.Output.Format); err != nil {
		return err
	}
	if err := writeReportFile(cfg.Output.ReportFile, report); err != nil {
		return err
	}
	if report.RevertFailed > 0 {
		return fmt.Errorf("reversal completed with %d failures", report.RevertFailed)
	}
	return nil
}
