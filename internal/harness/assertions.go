package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/relsync/internal/relation"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, event := range e.Trace {
			switch event.Type {
			case TracePhase:
				fmt.Fprintf(&buf, "  [%d] seq=%d %s\n", i+1, event.Seq, event.Key())
			case TraceOutcome:
				fmt.Fprintf(&buf, "  [%d] seq=%d %s -> %s\n", i+1, event.Seq, event.Op, event.Outcome)
			}
		}
	}

	return buf.String()
}

// EvaluateAssertions evaluates all assertions against the harness graph
// and the result trace. Returns a slice of error messages for failed
// assertions.
func (h *Harness) EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertMembers:
			err = h.assertMembers(assertion)
		case AssertOwner:
			err = h.assertOwner(assertion)
		case AssertConsistent:
			err = h.assertConsistent()
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

// assertMembers reads the container through its synchronized view, so a
// view that was not invalidated after a replace still shows the old items.
func (h *Harness) assertMembers(a Assertion) error {
	c := h.graph.containers[a.Container]
	got := names(h.sync.View(c).Items())
	want := a.Items
	if want == nil {
		want = []string{}
	}
	if !slices.Equal(got, want) {
		return &AssertionError{
			Type:     AssertMembers,
			Expected: fmt.Sprintf("%s lists %v", a.Container, want),
			Actual:   fmt.Sprintf("%s lists %v", a.Container, got),
		}
	}
	return nil
}

func (h *Harness) assertOwner(a Assertion) error {
	var got string
	if owner := h.sync.ContainerOf(h.graph.items[a.Item]); owner != nil {
		got = owner.name
	}
	if got != a.Container {
		return &AssertionError{
			Type:     AssertOwner,
			Expected: fmt.Sprintf("%s owned by %s", a.Item, ownerLabel(a.Container)),
			Actual:   fmt.Sprintf("%s owned by %s", a.Item, ownerLabel(got)),
		}
	}
	return nil
}

func ownerLabel(name string) string {
	if name == "" {
		return "nothing"
	}
	return name
}

// assertConsistent checks the bidirectional invariant over the raw graph.
func (h *Harness) assertConsistent() error {
	adapter := relation.ShapeAdapter[*Container, *Item]{}
	bad := relation.Verify[*Container, *Item](adapter, h.graph.containerList, h.graph.itemList)
	if len(bad) == 0 {
		return nil
	}
	reasons := make([]string, len(bad))
	for i, x := range bad {
		reasons[i] = x.String()
	}
	return &AssertionError{
		Type:     AssertConsistent,
		Expected: "every listing matched by its back-reference",
		Actual:   strings.Join(reasons, "; "),
	}
}

// matchPhase reports whether a phase event matches the assertion filter.
// Empty container or item match anything.
func matchPhase(event TraceEvent, name, container, item string) bool {
	if event.Type != TracePhase || event.Event != name {
		return false
	}
	if container != "" && event.Container != container {
		return false
	}
	if item != "" && event.Item != item {
		return false
	}
	return true
}

// assertTraceContains checks that a matching phase event exists.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, event := range trace {
		if matchPhase(event, a.Event, a.Container, a.Item) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("event %s", describeFilter(a.Event, a.Container, a.Item)),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that events appear in the specified order.
// Each entry is "event", "event:container" or "event:container:item";
// intervening events are allowed.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	pos := 0
	prev := ""
	for _, want := range a.Events {
		name, container, item := splitKey(want)
		found := -1
		for i := pos; i < len(trace); i++ {
			if matchPhase(trace[i], name, container, item) {
				found = i
				break
			}
		}
		if found < 0 {
			actual := fmt.Sprintf("missing event: %s", want)
			if prev != "" && slices.ContainsFunc(trace[:pos], func(e TraceEvent) bool {
				return matchPhase(e, name, container, item)
			}) {
				actual = fmt.Sprintf("%s appears only before %s", want, prev)
			}
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("events in order: %v", a.Events),
				Actual:   actual,
				Trace:    trace,
			}
		}
		pos = found + 1
		prev = want
	}
	return nil
}

// assertTraceCount checks that the event appears exactly Count times.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if matchPhase(event, a.Event, a.Container, a.Item) {
			count++
		}
	}

	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", a.Count, describeFilter(a.Event, a.Container, a.Item)),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

func splitKey(key string) (event, container, item string) {
	parts := strings.SplitN(key, ":", 3)
	event = parts[0]
	if len(parts) > 1 {
		container = parts[1]
	}
	if len(parts) > 2 {
		item = parts[2]
	}
	return event, container, item
}

func describeFilter(event, container, item string) string {
	return TraceEvent{Event: event, Container: container, Item: item}.Key()
}
