package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewStatusCmd creates the status command
func NewStatusCmd(opts *globalOptions) *cobra.Command {
	var reset bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current migration phase and report",
		Long: `Show the site report of the current or last migration phase.

With --reset the report of a finished run is discarded and its checkpoint
removed, so a new preview can be started. Migrated events are not changed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}

			s, err := openSession(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			if reset {
				if err := s.migrator.Reset(cmd.Context()); err != nil {
					return fmt.Errorf("failed to reset: %w", err)
				}
			}
			return printSiteReport(cmd.OutOrStdout(), s.migrator.Status(), cfg.Output.Format)
		},
	}

	cmd.Flags().BoolVar(&reset, "reset", false, "Discard the report of a finished run")
	return cmd
}
