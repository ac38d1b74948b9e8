package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/relsync/internal/schema"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool              `json:"valid"`
	Files     int               `json:"files"`
	Relations []RelationSummary `json:"relations,omitempty"`
	Errors    []ValidationError `json:"errors,omitempty"`
}

// RelationSummary describes one compiled relation policy.
type RelationSummary struct {
	Name      string            `json:"name"`
	Container string            `json:"container"`
	Item      string            `json:"item"`
	Capacity  int               `json:"capacity,omitempty"`
	Overrides []ContainerLimits `json:"overrides,omitempty"`
}

// ContainerLimits is a per-container policy override.
type ContainerLimits struct {
	Name     string `json:"name"`
	Capacity int    `json:"capacity,omitempty"`
	Frozen   bool   `json:"frozen,omitempty"`
}

// ValidationError is a policy error with an optional source line.
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <specs-dir>",
		Short: "Validate relation policies",
		Long: `Compile the CUE relation policies in a directory and list them.

Every relation must name distinct container and item kinds. Capacities
must be non-negative ints and frozen flags must be bools.

Exit codes:
  0 - All policies valid
  1 - One or more policies invalid
  2 - Command error (directory not found, no CUE files, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	set, loadErrs := schema.LoadDir(specsDir)

	// Directory not found, no files, unbuildable package
	if set == nil {
		code, message := loadErrorParts(loadErrs[0])
		_ = formatter.Error(code, message, nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", set.FileCount, specsDir)

	result := ValidationResult{
		Valid:     len(loadErrs) == 0,
		Files:     set.FileCount,
		Relations: summarize(set),
	}
	for _, err := range loadErrs {
		result.Errors = append(result.Errors, toValidationError(err))
	}

	if !result.Valid {
		return outputValidationErrors(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

func summarize(set *schema.Set) []RelationSummary {
	out := make([]RelationSummary, 0, len(set.Relations))
	for _, rel := range set.Relations {
		s := RelationSummary{
			Name:      rel.Name,
			Container: rel.Container,
			Item:      rel.Item,
			Capacity:  rel.Capacity,
		}
		for _, name := range rel.ContainerNames() {
			p := rel.Containers[name]
			s.Overrides = append(s.Overrides, ContainerLimits{Name: name, Capacity: p.Capacity, Frozen: p.Frozen})
		}
		out = append(out, s)
	}
	return out
}

func loadErrorParts(err error) (code, message string) {
	var loadErr *schema.LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	return ErrCodeGeneric, err.Error()
}

func toValidationError(err error) ValidationError {
	var loadErr *schema.LoadError
	if errors.As(err, &loadErr) {
		ve := ValidationError{Code: loadErr.Code, Message: loadErr.Message}
		if loadErr.Pos.IsValid() {
			ve.Line = loadErr.Pos.Line()
		}
		return ve
	}
	return ValidationError{Code: ErrCodeGeneric, Message: err.Error()}
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	for _, rel := range result.Relations {
		fmt.Fprintf(w, "%s: %s -> %s", rel.Name, rel.Container, rel.Item)
		if rel.Capacity > 0 {
			fmt.Fprintf(w, " (capacity %d)", rel.Capacity)
		}
		fmt.Fprintln(w)
		for _, o := range rel.Overrides {
			fmt.Fprintf(w, "  %s:%s\n", o.Name, describeLimits(o))
		}
	}
	fmt.Fprintf(w, "✓ %d relation(s) valid\n", len(result.Relations))
	return nil
}

func describeLimits(o ContainerLimits) string {
	var s string
	if o.Capacity > 0 {
		s += fmt.Sprintf(" capacity %d", o.Capacity)
	}
	if o.Frozen {
		s += " frozen"
	}
	if s == "" {
		s = " unbounded"
	}
	return s
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	errs := result.Errors
	exitErr := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.Format == "json" {
		if err := formatter.Failure(errs[0].Code, errs[0].Message, result); err != nil {
			return err
		}
		return exitErr
	}

	w := formatter.Writer
	fmt.Fprintln(w, "✗ Validation failed")
	fmt.Fprintln(w)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(w, "line %d\n", err.Line)
		}
		fmt.Fprintf(w, "  %s: %s\n\n", err.Code, err.Message)
	}

	// Validation failures = exit code 1 (test/validation failure)
	return exitErr
}
