package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/relsync/internal/relation"
)

// Scenario defines a relation scenario: a graph, the steps applied to it
// and the assertions that must hold afterwards.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Specs lists CUE policy files or directories.
	// Relative paths are resolved against the scenario's base path.
	Specs []string `yaml:"specs"`

	// Relation names the relation policy to run against.
	Relation string `yaml:"relation"`

	// Session is an optional fixed session token.
	// If empty, defaults to "test-session-default".
	Session string `yaml:"session,omitempty"`

	// Containers and Items declare the graph. Names must be unique across
	// both lists.
	Containers []string `yaml:"containers"`
	Items      []string `yaml:"items"`

	// Guards are installed with OnBefore before the first step.
	Guards []GuardRule `yaml:"guards,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions"`
}

// GuardRule denies one cancellable phase, optionally only for a given
// container or item.
type GuardRule struct {
	// Deny is "adding" or "removing".
	Deny      string `yaml:"deny"`
	Container string `yaml:"container,omitempty"`
	Item      string `yaml:"item,omitempty"`

	// Reason becomes the guard's error text.
	Reason string `yaml:"reason,omitempty"`
}

// Step is a single operation on the graph.
type Step struct {
	Op        string   `yaml:"op"`
	Container string   `yaml:"container,omitempty"`
	Item      string   `yaml:"item,omitempty"`
	To        string   `yaml:"to,omitempty"`    // move target; empty detaches
	Items     []string `yaml:"items,omitempty"` // replace
	Expect    string   `yaml:"expect,omitempty"`
}

// Assertion validates the final graph or the trace.
type Assertion struct {
	// Type specifies the assertion type:
	// - "members": container's view lists Items in order
	// - "owner": Item's back-reference is Container
	// - "consistent": bidirectional invariant over the whole graph
	// - "trace_contains": Event appears, optionally for Container/Item
	// - "trace_order": Events appear in order
	// - "trace_count": Event appears exactly Count times
	Type string `yaml:"type"`

	Container string   `yaml:"container,omitempty"`
	Item      string   `yaml:"item,omitempty"`
	Items     []string `yaml:"items,omitempty"`
	Event     string   `yaml:"event,omitempty"`
	Events    []string `yaml:"events,omitempty"`
	Count     int      `yaml:"count,omitempty"`
}

// Step op constants.
const (
	StepAdd        = "add"
	StepRemove     = "remove"
	StepMove       = "move"
	StepClear      = "clear"
	StepReplace    = "replace"
	StepInvalidate = "invalidate"
)

// Assertion type constants.
const (
	AssertMembers       = "members"
	AssertOwner         = "owner"
	AssertConsistent    = "consistent"
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
)

var (
	mutationOutcomes = []string{"committed", "conflict", "canceled", "adapter_failure"}
	moveOutcomes     = []string{
		relation.MoveNoop.String(),
		relation.MoveCompleted.String(),
		relation.MoveDetached.String(),
		relation.MoveUnchanged.String(),
	}
)

// LoadScenario reads and parses a scenario YAML file.
// Spec paths are resolved relative to the scenario file's directory.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving spec paths relative to the provided base path.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or fails validation.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	// Resolve spec paths relative to base path BEFORE validation
	for i, specPath := range scenario.Specs {
		if !filepath.IsAbs(specPath) && basePath != "" {
			scenario.Specs[i] = filepath.Join(basePath, specPath)
		}
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return scenario, nil
}

// ParseScenario decodes scenario YAML without validating spec paths.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Specs) == 0 {
		return fmt.Errorf("specs list is required and must be non-empty")
	}
	if s.Relation == "" {
		return fmt.Errorf("relation is required")
	}
	if len(s.Containers) == 0 {
		return fmt.Errorf("containers list is required and must be non-empty")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for _, specPath := range s.Specs {
		if _, err := os.Stat(specPath); os.IsNotExist(err) {
			return fmt.Errorf("spec file not found: %s", specPath)
		}
	}

	seen := make(map[string]string)
	for _, n := range s.Containers {
		if n == "" {
			return fmt.Errorf("containers: empty name")
		}
		if _, dup := seen[n]; dup {
			return fmt.Errorf("containers: duplicate name %q", n)
		}
		seen[n] = "container"
	}
	for _, n := range s.Items {
		if n == "" {
			return fmt.Errorf("items: empty name")
		}
		if kind, dup := seen[n]; dup {
			return fmt.Errorf("items: name %q already used by a %s", n, kind)
		}
		seen[n] = "item"
	}
	isContainer := func(n string) bool { return seen[n] == "container" }
	isItem := func(n string) bool { return seen[n] == "item" }

	for i, g := range s.Guards {
		et, ok := relation.ParseEventType(g.Deny)
		if !ok || !et.Cancellable() {
			return fmt.Errorf("guards[%d]: deny must be adding or removing, got %q", i, g.Deny)
		}
		if g.Container != "" && !isContainer(g.Container) {
			return fmt.Errorf("guards[%d]: unknown container %q", i, g.Container)
		}
		if g.Item != "" && !isItem(g.Item) {
			return fmt.Errorf("guards[%d]: unknown item %q", i, g.Item)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step, isContainer, isItem); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion, isContainer, isItem); err != nil {
			return err
		}
	}

	return nil
}

// validateStep checks one step's fields against its op.
func validateStep(index int, st *Step, isContainer, isItem func(string) bool) error {
	needContainer := func() error {
		if !isContainer(st.Container) {
			return fmt.Errorf("steps[%d]: %s requires a known container, got %q", index, st.Op, st.Container)
		}
		return nil
	}
	needItem := func() error {
		if !isItem(st.Item) {
			return fmt.Errorf("steps[%d]: %s requires a known item, got %q", index, st.Op, st.Item)
		}
		return nil
	}

	switch st.Op {
	case StepAdd, StepRemove:
		if err := needContainer(); err != nil {
			return err
		}
		if err := needItem(); err != nil {
			return err
		}
		return checkExpect(index, st.Expect, mutationOutcomes)
	case StepMove:
		if err := needItem(); err != nil {
			return err
		}
		if st.To != "" && !isContainer(st.To) {
			return fmt.Errorf("steps[%d]: move target %q is not a known container", index, st.To)
		}
		return checkExpect(index, st.Expect, moveOutcomes)
	case StepClear:
		if err := needContainer(); err != nil {
			return err
		}
		return checkExpect(index, st.Expect, mutationOutcomes)
	case StepReplace:
		if err := needContainer(); err != nil {
			return err
		}
		for _, n := range st.Items {
			if !isItem(n) {
				return fmt.Errorf("steps[%d]: replace lists unknown item %q", index, n)
			}
		}
	case StepInvalidate:
		if err := needContainer(); err != nil {
			return err
		}
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, st.Op)
	}

	if st.Expect != "" {
		return fmt.Errorf("steps[%d]: %s does not take expect", index, st.Op)
	}
	return nil
}

func checkExpect(index int, expect string, allowed []string) error {
	if expect == "" || slices.Contains(allowed, expect) {
		return nil
	}
	return fmt.Errorf("steps[%d]: expect must be one of %v, got %q", index, allowed, expect)
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, isContainer, isItem func(string) bool) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertMembers:
		if !isContainer(a.Container) {
			return fmt.Errorf("assertions[%d]: members requires a known container, got %q", index, a.Container)
		}
		for _, n := range a.Items {
			if !isItem(n) {
				return fmt.Errorf("assertions[%d]: members lists unknown item %q", index, n)
			}
		}
	case AssertOwner:
		if !isItem(a.Item) {
			return fmt.Errorf("assertions[%d]: owner requires a known item, got %q", index, a.Item)
		}
		if a.Container != "" && !isContainer(a.Container) {
			return fmt.Errorf("assertions[%d]: owner names unknown container %q", index, a.Container)
		}
	case AssertConsistent:
	case AssertTraceContains:
		if _, ok := relation.ParseEventType(a.Event); !ok {
			return fmt.Errorf("assertions[%d]: event is required for trace_contains, got %q", index, a.Event)
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
	case AssertTraceCount:
		if _, ok := relation.ParseEventType(a.Event); !ok {
			return fmt.Errorf("assertions[%d]: event is required for trace_count, got %q", index, a.Event)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
