package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScenario writes body to a fresh test.yaml and returns its path.
func writeScenario(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func specsDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.Abs("testdata/specs")
	require.NoError(t, err)
	return dir
}

const validScenario = `
name: test_scenario
description: "Test scenario for validation"
specs:
  - orders.cue
relation: LineItems
session: test-session-fixed
containers: [Order, OtherOrder]
items: [A]
guards:
  - deny: adding
    container: OtherOrder
    reason: "closed"
steps:
  - op: add
    container: Order
    item: A
    expect: committed
  - op: move
    item: A
    to: OtherOrder
    expect: detached
assertions:
  - type: owner
    item: A
    container: ""
`

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, validScenario)

	scenario, err := LoadScenarioWithBasePath(path, specsDir(t))
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "LineItems", scenario.Relation)
	assert.Equal(t, "test-session-fixed", scenario.Session)
	assert.Equal(t, []string{"Order", "OtherOrder"}, scenario.Containers)
	assert.Equal(t, filepath.Join(specsDir(t), "orders.cue"), scenario.Specs[0])
	require.Len(t, scenario.Guards, 1)
	assert.Equal(t, GuardRule{Deny: "adding", Container: "OtherOrder", Reason: "closed"}, scenario.Guards[0])
	require.Len(t, scenario.Steps, 2)
	assert.Equal(t, Step{Op: StepMove, Item: "A", To: "OtherOrder", Expect: "detached"}, scenario.Steps[1])
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_RelativeToScenarioDir(t *testing.T) {
	path := writeScenario(t, validScenario)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "spec file not found")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, validScenario+"assertion:\n  - type: consistent\n")

	_, err := LoadScenarioWithBasePath(path, specsDir(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_MalformedYAML(t *testing.T) {
	path := writeScenario(t, "name: [unterminated\n")

	_, err := LoadScenarioWithBasePath(path, specsDir(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

// base returns a minimal valid scenario for validation tests.
func base(t *testing.T) *Scenario {
	return &Scenario{
		Name:        "s",
		Description: "d",
		Specs:       []string{filepath.Join(specsDir(t), "orders.cue")},
		Relation:    "LineItems",
		Containers:  []string{"Order", "OtherOrder"},
		Items:       []string{"A", "B"},
		Steps:       []Step{{Op: StepAdd, Container: "Order", Item: "A"}},
		Assertions:  []Assertion{{Type: AssertConsistent}},
	}
}

func TestValidateScenario(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *Scenario)
		errMsg string
	}{
		{"valid", func(s *Scenario) {}, ""},
		{"missing name", func(s *Scenario) { s.Name = "" }, "name is required"},
		{"missing description", func(s *Scenario) { s.Description = "" }, "description is required"},
		{"missing specs", func(s *Scenario) { s.Specs = nil }, "specs list is required"},
		{"missing relation", func(s *Scenario) { s.Relation = "" }, "relation is required"},
		{"missing containers", func(s *Scenario) { s.Containers = nil }, "containers list is required"},
		{"missing steps", func(s *Scenario) { s.Steps = nil }, "steps list is required"},
		{"missing assertions", func(s *Scenario) { s.Assertions = nil }, "assertions list is required"},
		{"spec not found", func(s *Scenario) { s.Specs = []string{"/nonexistent.cue"} }, "spec file not found"},
		{"duplicate container", func(s *Scenario) { s.Containers = []string{"Order", "Order"} }, `duplicate name "Order"`},
		{"item shadows container", func(s *Scenario) { s.Items = []string{"Order"} }, `name "Order" already used by a container`},
		{"empty item", func(s *Scenario) { s.Items = []string{""} }, "items: empty name"},

		{"guard on added", func(s *Scenario) { s.Guards = []GuardRule{{Deny: "added"}} }, "deny must be adding or removing"},
		{"guard unknown container", func(s *Scenario) { s.Guards = []GuardRule{{Deny: "adding", Container: "X"}} }, `guards[0]: unknown container "X"`},
		{"guard unknown item", func(s *Scenario) { s.Guards = []GuardRule{{Deny: "removing", Item: "Z"}} }, `guards[0]: unknown item "Z"`},

		{"step without op", func(s *Scenario) { s.Steps[0].Op = "" }, "steps[0]: op is required"},
		{"unknown op", func(s *Scenario) { s.Steps[0].Op = "swap" }, `steps[0]: unknown op "swap"`},
		{"add unknown container", func(s *Scenario) { s.Steps[0].Container = "X" }, "add requires a known container"},
		{"add item is container", func(s *Scenario) { s.Steps[0].Item = "Order" }, "add requires a known item"},
		{"bad add expect", func(s *Scenario) { s.Steps[0].Expect = "completed" }, "expect must be one of"},
		{"move unknown target", func(s *Scenario) { s.Steps[0] = Step{Op: StepMove, Item: "A", To: "X"} }, `move target "X"`},
		{"move detach", func(s *Scenario) { s.Steps[0] = Step{Op: StepMove, Item: "A", Expect: "noop"} }, ""},
		{"bad move expect", func(s *Scenario) { s.Steps[0] = Step{Op: StepMove, Item: "A", Expect: "committed"} }, "expect must be one of"},
		{"clear", func(s *Scenario) { s.Steps[0] = Step{Op: StepClear, Container: "Order", Expect: "adapter_failure"} }, ""},
		{"replace unknown item", func(s *Scenario) { s.Steps[0] = Step{Op: StepReplace, Container: "Order", Items: []string{"Q"}} }, `replace lists unknown item "Q"`},
		{"invalidate with expect", func(s *Scenario) { s.Steps[0] = Step{Op: StepInvalidate, Container: "Order", Expect: "committed"} }, "invalidate does not take expect"},

		{"assertion without type", func(s *Scenario) { s.Assertions[0].Type = "" }, "assertions[0]: type is required"},
		{"unknown assertion", func(s *Scenario) { s.Assertions[0].Type = "final_state" }, `unknown assertion type "final_state"`},
		{"members without container", func(s *Scenario) { s.Assertions[0] = Assertion{Type: AssertMembers} }, "members requires a known container"},
		{"members unknown item", func(s *Scenario) { s.Assertions[0] = Assertion{Type: AssertMembers, Container: "Order", Items: []string{"Q"}} }, `members lists unknown item "Q"`},
		{"owner detached", func(s *Scenario) { s.Assertions[0] = Assertion{Type: AssertOwner, Item: "A"} }, ""},
		{"owner unknown container", func(s *Scenario) { s.Assertions[0] = Assertion{Type: AssertOwner, Item: "A", Container: "X"} }, `owner names unknown container "X"`},
		{"trace_contains bad event", func(s *Scenario) { s.Assertions[0] = Assertion{Type: AssertTraceContains, Event: "moved"} }, "event is required for trace_contains"},
		{"trace_order empty", func(s *Scenario) { s.Assertions[0] = Assertion{Type: AssertTraceOrder} }, "events list is required"},
		{"trace_count negative", func(s *Scenario) { s.Assertions[0] = Assertion{Type: AssertTraceCount, Event: "added", Count: -1} }, "count must be non-negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base(t)
			tt.mutate(s)
			err := validateScenario(s)
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
