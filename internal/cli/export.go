package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/akrishnanDG/ct1-migrate/internal/export"
	"github.com/spf13/cobra"
)

// NewExportCmd creates the export command
func NewExportCmd(opts *globalOptions) *cobra.Command {
	var outFile string

	cmd := &cobra.Command{
		Use:   "export [post-id...]",
		Short: "Export migrated occurrences as an iCalendar feed",
		Long: `Write every occurrence of the migrated events as a VEVENT. Without post
IDs all migrated events are exported.

  ct1-migrate export --config config.yaml --out events.ics
  ct1-migrate export --config config.yaml 42 43`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid post id %q: %w", arg, err)
				}
				ids = append(ids, id)
			}

			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}

			s, err := openSession(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			var w io.Writer = cmd.OutOrStdout()
			if outFile != "" && outFile != "-" {
				f, err := os.Create(outFile)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer f.Close()
				w = f
			}

			n, err := export.New(s.store).Write(cmd.Context(), w, ids...)
			if err != nil {
				return fmt.Errorf("export failed: %w", err)
			}
			s.logger.Info("calendar exported", "events", n, "file", outFile)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outFile, "out", "o", "", "Output file (default stdout)")
	return cmd
}
