package cli

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/akrishnanDG/ct1-migrate/internal/validator"
	"github.com/akrishnanDG/ct1-migrate/internal/worker"
	"github.com/spf13/cobra"
)

// NewValidateCmd creates the validate command
func NewValidateCmd(opts *globalOptions) *cobra.Command {
	var checkPosts bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration without running migration",
		Long: `Validate the configuration file or command-line arguments without
actually performing the migration.

With --posts every legacy event is also checked for missing or invalid
dates and unknown timezones.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return fmt.Errorf("validation failed:\n%w", err)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, "✓ Configuration is valid")

			if !checkPosts {
				return nil
			}

			s, err := openSession(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			ids, err := listEventIDs(cmd.Context(), s)
			if err != nil {
				return err
			}

			v := validator.New(cfg)
			result := &validator.ValidationResult{}
			var mu sync.Mutex
			bar := newProgressBar(cfg.Output.Progress, len(ids), "validate")

			errs := worker.NewPool(cfg).ExecuteWithProgress(cmd.Context(), ids, func(ctx context.Context, postID int64) error {
				post, err := s.store.GetPost(ctx, postID)
				if err != nil {
					return err
				}
				if post == nil {
					return nil
				}
				postErrs, postWarns := v.ValidatePost(post)
				mu.Lock()
				result.Errors = append(result.Errors, postErrs...)
				result.Warnings = append(result.Warnings, postWarns...)
				mu.Unlock()
				return nil
			}, func() { _ = bar.Add(1) })
			_ = bar.Finish()
			for i, err := range errs {
				if err != nil {
					return fmt.Errorf("failed to load post %d: %w", ids[i], err)
				}
			}

			byPost := func(issues []validator.Issue) {
				sort.SliceStable(issues, func(i, j int) bool { return issues[i].PostID < issues[j].PostID })
			}
			byPost(result.Warnings)
			byPost(result.Errors)

			for _, issue := range result.Warnings {
				fmt.Fprintf(w, "  [WARN]  post %d: %s\n", issue.PostID, issue)
			}
			for _, issue := range result.Errors {
				fmt.Fprintf(w, "  [ERROR] post %d: %s\n", issue.PostID, issue)
			}
			if result.HasErrors() {
				return fmt.Errorf("%d of %d events cannot be migrated", len(result.Errors), len(ids))
			}
			fmt.Fprintf(w, "✓ %d events are ready to migrate\n", len(ids))
			return nil
		},
	}

	cmd.Flags().BoolVar(&checkPosts, "posts", false, "Also validate every legacy event")

	return cmd
}

// listEventIDs pages through the IDs of every legacy event
func listEventIDs(ctx context.Context, s *session) ([]int64, error) {
	var all []int64
	var after int64
	size := s.cfg.Migration.BatchSize
	for {
		ids, err := s.store.ListEventIDs(ctx, s.cfg.Migration.PostType, after, size)
		if err != nil {
			return nil, fmt.Errorf("failed to list events: %w", err)
		}
		all = append(all, ids...)
		if len(ids) < size {
			return all, nil
		}
		after = ids[len(ids)-1]
	}
}
