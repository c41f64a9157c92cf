package cli

import (
	"fmt"

	"github.com/akrishnanDG/ct1-migrate/internal/migrator"
	"github.com/akrishnanDG/ct1-migrate/internal/scheduler"
	"github.com/spf13/cobra"
)

// NewWorkerCmd creates the worker command
func NewWorkerCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Process the phase in progress in the background on a cron schedule",
		Long: `Run one batch of the phase in progress on every tick of the cron
schedule until the phase completes.

  ct1-migrate migrate --config config.yaml --max-batches 1
  ct1-migrate worker --config config.yaml --cron "*/5 * * * *"`,
		RunE: func(cmd *cobra.Command, args []string) error {
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

			sched, err := scheduler.New(s.migrator, cfg.Schedule.Cron, s.logger)
			if err != nil {
				return err
			}
			sched.OnBatch(func(res *migrator.BatchResult) {
				s.logger.Info("batch processed",
					"phase", res.Phase,
					"processed", res.Processed,
					"succeeded", res.Succeeded,
					"failed", res.Failed,
					"done", res.Done)
			})

			s.logger.Info("worker started", "cron", cfg.Schedule.Cron, "phase", s.migrator.Status().Phase)
			if err := sched.Run(ctx); err != nil {
				return fmt.Errorf("worker stopped: %w", err)
			}
			return printSiteReport(cmd.OutOrStdout(), s.migrator.Status(), cfg.Output.Format)
		},
	}

	cmd.Flags().StringVar(&opts.flags.Schedule.Cron, "cron", opts.flags.Schedule.Cron, "Cron expression of the batch schedule")
	return cmd
}
