package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/taxii/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose   bool
	Format    string // "json" | "text"
	Database  string
	LogLevel  string
	SyncLimit int64
	Metrics   bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the taxii CLI. Flag defaults
// come from the TAXII_* environment.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}
	env, envErr := config.LoadEnv()

	cmd := &cobra.Command{
		Use:   "taxii",
		Short: "TAXII 1.x poll, inbox and subscription engine",
		Long: `Operate a TAXII 1.x content store: provision services and collections,
dispatch poll, inbox and subscription messages, and purge old content.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envErr != nil {
				return WrapExitError(ExitCommandError, "invalid environment", envErr)
			}
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", env.DBPath, "path to SQLite database")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", env.LogLevel, "log level (debug|info|warn|error)")
	cmd.PersistentFlags().Int64Var(&opts.SyncLimit, "sync-limit", env.SyncLimit, "defer first polls matching more blocks than this (0 disables)")
	cmd.PersistentFlags().BoolVar(&opts.Metrics, "metrics", false, "write Prometheus metrics to stderr on exit")

	// Add subcommands
	cmd.AddCommand(NewProvisionCommand(opts))
	cmd.AddCommand(NewDispatchCommand(opts))
	cmd.AddCommand(NewPurgeCommand(opts))
	cmd.AddCommand(NewCollectionsCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
