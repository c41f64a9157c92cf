package cli

import (
	"fmt"

	"github.com/akrishnanDG/ct1-migrate/pkg/config"
	"github.com/spf13/cobra"
)

// globalOptions holds the flags shared by every command. Flag values only
// override the config file when they were set explicitly.
type globalOptions struct {
	configFile string
	flags      *config.Config
}

// NewRootCmd creates the root command
func NewRootCmd(version, buildTime string) *cobra.Command {
	opts := &globalOptions{flags: config.NewDefaultConfig()}

	rootCmd := &cobra.Command{
		Use:   "ct1-migrate",
		Short: "Migrate legacy recurring events to the Custom Tables v1 schema",
		Long: `A resumable, batch-driven CLI tool for migrating legacy event posts and
their recurrence meta to the normalized events and occurrences tables.

Features:
  - Preview (dry run) report with per-event changes and a time estimate
  - Single, recurring, split and rule/exclusion-rewrite strategies
  - Checkpointing and resume for large sites
  - Cancel during migration and revert after completion
  - Cron-driven background worker and iCalendar export`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "Config file path")
	flags.StringVar(&opts.flags.Database.Path, "db", opts.flags.Database.Path, "SQLite database path")
	flags.BoolVar(&opts.flags.Database.Transactions, "transactions", opts.flags.Database.Transactions, "Use transactions for each migration step")
	flags.IntVar(&opts.flags.Migration.BatchSize, "batch-size", opts.flags.Migration.BatchSize, "Events processed per batch")
	flags.StringVar(&opts.flags.Checkpoint.File, "checkpoint", opts.flags.Checkpoint.File, "Checkpoint file path")
	flags.StringVar(&opts.flags.Output.Format, "format", opts.flags.Output.Format, "Report format: table, json")
	flags.StringVar(&opts.flags.Output.LogLevel, "log-level", opts.flags.Output.LogLevel, "Log level: debug, info, warn, error")

	// Add subcommands
	rootCmd.AddCommand(NewPreviewCmd(opts))
	rootCmd.AddCommand(NewMigrateCmd(opts))
	rootCmd.AddCommand(NewCancelCmd(opts))
	rootCmd.AddCommand(NewRevertCmd(opts))
	rootCmd.AddCommand(NewStatusCmd(opts))
	rootCmd.AddCommand(NewWorkerCmd(opts))
	rootCmd.AddCommand(NewExportCmd(opts))
	rootCmd.AddCommand(NewValidateCmd(opts))
	rootCmd.AddCommand(NewInitCmd())
	rootCmd.AddCommand(NewVersionCmd(version, buildTime))

	return rootCmd
}

// load builds the effective configuration of a command
func (o *globalOptions) load(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewDefaultConfig()
	if o.configFile != "" {
		loaded, err := config.LoadFromFile(o.configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
		cfg = loaded
	}
	cfg = mergeConfigs(cfg, o.flags, cmd)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// mergeConfigs merges loaded config with CLI flags, giving precedence to CLI flags
func mergeConfigs(fileConfig, cliConfig *config.Config, cmd *cobra.Command) *config.Config {
	merged := fileConfig

	// Override with CLI flags if they were explicitly set
	flags := cmd.Flags()

	if flags.Changed("db") {
		merged.Database.Path = cliConfig.Database.Path
	}
	if flags.Changed("transactions") {
		merged.Database.Transactions = cliConfig.Database.Transactions
	}
	if flags.Changed("batch-size") {
		merged.Migration.BatchSize = cliConfig.Migration.BatchSize
	}
	if flags.Changed("checkpoint") {
		merged.Checkpoint.File = cliConfig.Checkpoint.File
	}
	if flags.Changed("cron") {
		merged.Schedule.Cron = cliConfig.Schedule.Cron
	}
	if flags.Changed("workers") {
		merged.Concurrency.Workers = cliConfig.Concurrency.Workers
	}
	if flags.Changed("format") {
		merged.Output.Format = cliConfig.Output.Format
	}
	if flags.Changed("report-file") {
		merged.Output.ReportFile = cliConfig.Output.ReportFile
	}
	if flags.Changed("progress") {
		merged.Output.Progress = cliConfig.Output.Progress
	}
	if flags.Changed("log-level") {
		merged.Output.LogLevel = cliConfig.Output.LogLevel
	}

	return merged
}
