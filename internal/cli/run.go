package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/relsync/internal/harness"
	"github.com/roach88/relsync/internal/journal"
	"github.com/roach88/relsync/internal/metrics"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Specs    string

	// SessionGenerator allows overriding the session token generator (for
	// testing). If nil, defaults to UUIDv7Generator.
	SessionGenerator journal.SessionGenerator
}

// RunResult summarizes one journaled scenario run.
type RunResult struct {
	Session   string         `json:"session"`
	Scenario  string         `json:"scenario"`
	Relation  string         `json:"relation"`
	Pass      bool           `json:"pass"`
	Errors    []string       `json:"errors,omitempty"`
	Mutations int            `json:"mutations"`
	Outcomes  map[string]int `json:"outcomes"`
	Detached  int            `json:"detached"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario>",
		Short: "Run one scenario and journal its mutations",
		Long: `Run a scenario under a fresh UUIDv7 session and journal every
terminal mutation to a SQLite database (created if it doesn't exist).

The session token is printed so the run can be inspected later with
"relsync journal".

Example:
  relsync run --db ./relsync.db --specs ./specs ./scenarios/order_lines.yaml
  relsync run --db /tmp/test.db ./scenarios/move.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioJournaled(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Specs, "specs", "", "directory spec paths are resolved against (default: the scenario's directory)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runScenarioJournaled(opts *RunOptions, scenarioFile string, cmd *cobra.Command) error {
	logger := opts.logger()
	formatter := newFormatter(opts.RootOptions, cmd)

	var (
		scenario *harness.Scenario
		err      error
	)
	if opts.Specs != "" {
		scenario, err = harness.LoadScenarioWithBasePath(scenarioFile, opts.Specs)
	} else {
		scenario, err = harness.LoadScenario(scenarioFile)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("opening journal", "path", opts.Database)
	j, err := journal.Open(opts.Database, journal.WithLogger(logger))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := j.Close(); closeErr != nil {
			logger.Error("error closing journal", "error", closeErr)
		}
	}()

	gen := opts.SessionGenerator
	if gen == nil {
		gen = journal.UUIDv7Generator{}
	}
	session := gen.Generate()

	if err := j.BeginSession(ctx, session, scenario.Relation); err != nil {
		return WrapExitError(ExitCommandError, "failed to begin session", err)
	}

	reg := prometheus.NewRegistry()
	counters, err := metrics.NewRecorder(reg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to register metrics", err)
	}
	rec := j.Recorder()

	logger.Info("running scenario", "scenario", scenario.Name, "session", session)
	result, err := harness.Run(scenario,
		harness.WithSession(session),
		harness.WithRecorder(rec),
		harness.WithRecorder(counters),
		harness.WithLogger(logger),
	)
	if err != nil {
		return WrapExitError(ExitCommandError, "scenario execution failed", err)
	}

	written, err := rec.Flush(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to flush journal", err)
	}
	logger.Debug("journal flushed", "session", session, "mutations", written)

	out := RunResult{
		Session:   session,
		Scenario:  scenario.Name,
		Relation:  scenario.Relation,
		Pass:      result.Pass,
		Errors:    result.Errors,
		Mutations: written,
	}
	if out.Outcomes, out.Detached, err = gatherOutcomes(reg); err != nil {
		return WrapExitError(ExitCommandError, "failed to gather metrics", err)
	}

	return outputRunResult(formatter, out)
}

// gatherOutcomes sums relsync_mutations_total by phase and reads the
// detached-move counter.
func gatherOutcomes(g prometheus.Gatherer) (map[string]int, int, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, 0, err
	}

	outcomes := map[string]int{}
	detached := 0
	for _, mf := range families {
		switch mf.GetName() {
		case "relsync_mutations_total":
			for _, m := range mf.GetMetric() {
				for _, lp := range m.GetLabel() {
					if lp.GetName() == "phase" {
						outcomes[lp.GetValue()] += int(m.GetCounter().GetValue())
					}
				}
			}
		case "relsync_moves_detached_total":
			for _, m := range mf.GetMetric() {
				detached += int(m.GetCounter().GetValue())
			}
		}
	}
	return outcomes, detached, nil
}

func outputRunResult(formatter *OutputFormatter, r RunResult) error {
	var exitErr error
	if !r.Pass {
		exitErr = NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", r.Scenario))
	}

	if formatter.Format == "json" {
		if r.Pass {
			return formatter.Success(r)
		}
		if err := formatter.Failure(ErrCodeRunFailed, fmt.Sprintf("scenario %s failed", r.Scenario), r); err != nil {
			return err
		}
		return exitErr
	}

	w := formatter.Writer
	fmt.Fprintf(w, "Session: %s\n", r.Session)
	fmt.Fprintf(w, "Scenario: %s (relation %s)\n", r.Scenario, r.Relation)
	fmt.Fprintf(w, "Journaled %d mutation(s)\n", r.Mutations)

	phases := make([]string, 0, len(r.Outcomes))
	for p := range r.Outcomes {
		phases = append(phases, p)
	}
	sort.Strings(phases)
	for _, p := range phases {
		fmt.Fprintf(w, "  %s: %d\n", p, r.Outcomes[p])
	}
	if r.Detached > 0 {
		fmt.Fprintf(w, "Detached moves: %d\n", r.Detached)
	}

	if r.Pass {
		fmt.Fprintln(w, "✓ Scenario passed")
		return nil
	}
	fmt.Fprintln(w, "✗ Scenario failed")
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
	return exitErr
}
