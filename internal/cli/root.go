package cli

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/sensorsync/internal/config"
	"github.com/roach88/sensorsync/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Env supplies defaults for flags; explicit flags win.
	Env config.Env
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the sensorsync CLI, taking
// flag defaults from the environment and an optional .env file.
func NewRootCommand() *cobra.Command {
	env, err := config.Load()
	cmd := NewRootCommandWithEnv(env)
	if err != nil {
		// Surface the problem when a command runs, not at construction, so
		// --help still works with a broken environment.
		prev := cmd.PersistentPreRunE
		cmd.PersistentPreRunE = func(c *cobra.Command, args []string) error {
			if err := prev(c, args); err != nil {
				return err
			}
			return WrapExitError(ExitCommandError, "invalid environment", err)
		}
	}
	return cmd
}

// NewRootCommandWithEnv creates the root command with explicit defaults.
// Tests use it to stay independent of the process environment.
func NewRootCommandWithEnv(env config.Env) *cobra.Command {
	opts := &RootOptions{Env: env}

	cmd := &cobra.Command{
		Use:   "sensorsync",
		Short: "Align and replay multi-rate sensor recordings",
		Long: `sensorsync stores timestamped sensor series, aligns them onto a common
clock by interpolation, and replays several streams in global timestamp
order on a virtual clock.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			configureLogging(cmd, opts)
			return nil
		},
	}

	format := env.Format
	if format == "" {
		format = "text"
	}
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", format, "output format (json|text)")

	cmd.AddCommand(NewGenCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewAlignCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewRunsCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// configureLogging routes slog to stderr. --verbose forces debug; otherwise
// the level comes from the environment.
func configureLogging(cmd *cobra.Command, opts *RootOptions) {
	level := parseLevel(opts.Env.LogLevel)
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// dbFlag registers --db with the environment default.
func dbFlag(cmd *cobra.Command, target *string, rootOpts *RootOptions) {
	def := rootOpts.Env.DB
	if def == "" {
		def = "sensorsync.db"
	}
	cmd.Flags().StringVar(target, "db", def, "path to SQLite database")
}

// openStore opens the database with the configured cache lifetime.
// Callers report failures with ExitCommandError.
func openStore(path string, rootOpts *RootOptions) (*store.Store, error) {
	ttl := rootOpts.Env.CacheTTL
	if ttl < 0 {
		ttl = 0
	}
	st, err := store.Open(path, store.WithCacheTTL(ttl))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	slog.Debug("database open", "path", path, "cache_ttl", ttl.Round(time.Millisecond))
	return st, nil
}

// closeStore closes st, logging rather than returning the error so it never
// masks the command result.
func closeStore(st *store.Store) {
	if err := st.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}
