package cli

import (
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/sensorsync/internal/ir"
	"github.com/roach88/sensorsync/internal/session"
)

// ValidationError is one problem found in a session file.
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool              `json:"valid"`
	Session string            `json:"session,omitempty"`
	Streams []ir.StreamID     `json:"streams,omitempty"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	DB         string
	CheckStore bool
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <session.cue>",
		Short: "Validate a session file without replaying it",
		Long: `Validate a CUE session file against the session schema.

Checks syntax, types and defaults, duplicate or unknown stream ids, and
the replay window. With --check-store every referenced series must also
exist in the database.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	dbFlag(cmd, &opts.DB, rootOpts)
	cmd.Flags().BoolVar(&opts.CheckStore, "check-store", false, "require every referenced series to exist in the database")

	return cmd
}

func runValidate(opts *ValidateOptions, path string, cmd *cobra.Command) error {
	out := newFormatter(cmd, opts.RootOptions)

	sess, err := session.Load(path)
	if err != nil {
		return outputValidationErrors(out, []ValidationError{validationError(err)})
	}
	out.VerboseLog("Loaded session %q with %d stream(s)", sess.Name, len(sess.Streams))

	if opts.CheckStore {
		if errs := checkStore(cmd, opts, sess); len(errs) > 0 {
			return outputValidationErrors(out, errs)
		}
	}

	result := ValidationResult{Valid: true, Session: sess.Name}
	for _, s := range sess.Streams {
		result.Streams = append(result.Streams, s.ID)
	}
	if out.JSON() {
		return out.Success(result)
	}
	out.Printf("✓ %s is valid (%d stream(s))\n", path, len(sess.Streams))
	return nil
}

// checkStore reports every session stream whose series is missing.
func checkStore(cmd *cobra.Command, opts *ValidateOptions, sess *session.Session) []ValidationError {
	st, err := openStore(opts.DB, opts.RootOptions)
	if err != nil {
		return []ValidationError{{Code: ErrCodeNotFound, Message: err.Error()}}
	}
	defer closeStore(st)

	infos, err := st.ListSeries(cmd.Context())
	if err != nil {
		return []ValidationError{{Code: ErrCodeGeneric, Message: err.Error()}}
	}
	stored := make([]string, len(infos))
	for i, info := range infos {
		stored[i] = string(info.ID)
	}

	var errs []ValidationError
	for _, s := range sess.Streams {
		if !slices.Contains(stored, s.Series) {
			errs = append(errs, ValidationError{
				Code:    ErrCodeNotFound,
				Message: fmt.Sprintf("stream %q: series %q not found in %s", s.ID, s.Series, opts.DB),
			})
		}
	}
	return errs
}

func validationError(err error) ValidationError {
	var loadErr *session.LoadError
	if errors.As(err, &loadErr) {
		ve := ValidationError{Code: loadErr.Code, Message: loadErr.Message}
		if loadErr.Pos.IsValid() {
			ve.Line = loadErr.Pos.Line()
		}
		return ve
	}
	return ValidationError{Code: ErrCodeGeneric, Message: err.Error()}
}

func outputValidationErrors(out *OutputFormatter, errs []ValidationError) error {
	if out.JSON() {
		if err := out.encode(CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: fmt.Sprintf("%d validation error(s)", len(errs)),
			},
		}); err != nil {
			return err
		}
	} else {
		out.Printf("✗ Validation failed:\n")
		for _, e := range errs {
			if e.Line > 0 {
				out.Printf("  %s (line %d): %s\n", e.Code, e.Line, e.Message)
			} else {
				out.Printf("  %s: %s\n", e.Code, e.Message)
			}
		}
	}
	return NewExitError(ExitFailure, fmt.Sprintf("%d validation error(s)", len(errs)))
}
