package harness

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/relsync/internal/relation"
	"github.com/roach88/relsync/internal/schema"
	"github.com/roach88/relsync/internal/testutil"
)

// Harness is the scenario execution engine.
// It runs one scenario over a fresh graph with a deterministic clock.
type Harness struct {
	sync   *relation.Sync[*Container, *Item]
	graph  *graph
	clock  *testutil.DeterministicClock
	log    *testutil.MutationLog
	logger *slog.Logger
}

// Option configures a scenario run.
type Option func(*config)

type config struct {
	logger    *slog.Logger
	session   string
	recorders []relation.Recorder
}

// WithLogger sets the logger handed to the synchronizer. Runs are silent
// by default.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithSession overrides the scenario's session token.
func WithSession(token string) Option {
	return func(c *config) {
		c.session = token
	}
}

// WithRecorder attaches an additional mutation recorder, e.g. a journal or
// metrics recorder.
func WithRecorder(r relation.Recorder) Option {
	return func(c *config) {
		if r != nil {
			c.recorders = append(c.recorders, r)
		}
	}
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Load the relation policy named by the scenario
//  2. Build the container/item graph shaped by that policy
//  3. Install guards and the trace observer
//  4. Execute steps, checking expect clauses
//  5. Evaluate assertions
//
// A returned error means the scenario could not be executed at all;
// step and assertion failures are reported through Result.Errors.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := config{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	rel, err := loadRelation(scenario.Specs, scenario.Relation)
	if err != nil {
		return nil, err
	}

	session := cfg.session
	if session == "" {
		session = testutil.NewFixedSessionGenerator(scenario.Session).Generate()
	}

	h := &Harness{
		graph:  newGraph(rel, scenario.Containers, scenario.Items),
		clock:  testutil.NewDeterministicClock(),
		log:    &testutil.MutationLog{},
		logger: cfg.logger,
	}

	syncOpts := []relation.Option{
		relation.WithLogger(cfg.logger),
		relation.WithClock(h.clock),
		relation.WithSession(session),
		relation.WithRecorder(h.log),
	}
	for _, r := range cfg.recorders {
		syncOpts = append(syncOpts, relation.WithRecorder(r))
	}
	h.sync = relation.NewShape[*Container, *Item](syncOpts...)

	result := NewResult()
	result.Session = session

	for _, g := range scenario.Guards {
		h.sync.OnBefore(h.guard(g))
	}
	h.sync.OnAfter(func(ev relation.Event[*Container, *Item]) {
		var item string
		if ev.Item != nil {
			item = ev.Item.name
		}
		var items []string
		if ev.Type == relation.EventClearing || ev.Type == relation.EventCleared {
			items = names(ev.Items)
		}
		result.AddPhaseTrace(ev.Type.String(), ev.Container.name, item, items, ev.Seq)
	})

	for i, step := range scenario.Steps {
		h.executeStep(i, step, result)
	}

	for _, msg := range h.EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	result.Mutations = h.log.Mutations()

	return result, nil
}

// executeStep applies one step and checks its expect clause.
func (h *Harness) executeStep(index int, step Step, result *Result) {
	var container, outcome string

	switch step.Op {
	case StepAdd:
		container = step.Container
		outcome = mutationOutcome(h.sync.Add(h.graph.containers[step.Container], h.graph.items[step.Item]))
	case StepRemove:
		container = step.Container
		outcome = mutationOutcome(h.sync.Remove(h.graph.containers[step.Container], h.graph.items[step.Item]))
	case StepMove:
		container = step.To
		mo, _ := h.sync.MoveTo(h.graph.items[step.Item], h.graph.containers[step.To])
		outcome = mo.String()
	case StepClear:
		container = step.Container
		outcome = mutationOutcome(h.sync.Clear(h.graph.containers[step.Container]))
	case StepReplace:
		container = step.Container
		h.graph.replace(h.graph.containers[step.Container], step.Items)
		outcome = "done"
	case StepInvalidate:
		container = step.Container
		h.sync.Rebind(h.graph.containers[step.Container])
		outcome = "done"
	}

	result.AddOutcomeTrace(step.Op, container, step.Item, outcome, h.clock.Current())

	h.logger.Debug("step completed",
		"step", index,
		"op", step.Op,
		"container", container,
		"item", step.Item,
		"outcome", outcome,
	)

	if step.Expect != "" && step.Expect != outcome {
		result.AddError(fmt.Sprintf("steps[%d] %s: expected %s, got %s", index, step.Op, step.Expect, outcome))
	}
}

// guard builds the OnBefore guard for one rule.
func (h *Harness) guard(rule GuardRule) relation.Guard[*Container, *Item] {
	deny, _ := relation.ParseEventType(rule.Deny)
	reason := rule.Reason
	if reason == "" {
		reason = "denied by scenario"
	}
	return func(ev relation.Event[*Container, *Item]) error {
		if ev.Type != deny {
			return nil
		}
		if rule.Container != "" && ev.Container.name != rule.Container {
			return nil
		}
		if rule.Item != "" && ev.Item.name != rule.Item {
			return nil
		}
		return errors.New(reason)
	}
}

// mutationOutcome maps an Add/Remove/Clear result onto a step outcome.
func mutationOutcome(err error) string {
	if err == nil {
		return "committed"
	}
	if code := relation.CodeOf(err); code != "" {
		return strings.ToLower(string(code))
	}
	return "error"
}

// loadRelation compiles the CUE policies behind specs and returns the
// named relation. Spec files are loaded by directory, since a CUE package
// spans every file in it.
func loadRelation(specs []string, name string) (*schema.Relation, error) {
	var dirs []string
	seen := make(map[string]bool)
	for _, p := range specs {
		dir := p
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			dir = filepath.Dir(p)
		}
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}

	for _, dir := range dirs {
		set, errs := schema.LoadDir(dir)
		if len(errs) > 0 {
			return nil, fmt.Errorf("failed to load specs from %s: %w", dir, errors.Join(errs...))
		}
		if rel, ok := set.Lookup(name); ok {
			return rel, nil
		}
	}
	return nil, fmt.Errorf("relation %q not found in specs", name)
}
