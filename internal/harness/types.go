package harness

import "github.com/roach88/relsync/internal/relation"

// Trace event kinds.
const (
	TracePhase   = "event"
	TraceOutcome = "outcome"
)

// TraceEvent is one entry of a scenario trace: either a phase event
// observed on the synchronizer or the outcome of a step.
type TraceEvent struct {
	Type      string   `json:"type"` // "event" or "outcome"
	Seq       int64    `json:"seq"`
	Event     string   `json:"event,omitempty"`
	Op        string   `json:"op,omitempty"`
	Container string   `json:"container,omitempty"`
	Item      string   `json:"item,omitempty"`
	Items     []string `json:"items,omitempty"`
	Outcome   string   `json:"outcome,omitempty"`
}

// Key renders a phase event as "event:container:item", the form used by
// trace_order. Clear events have no item and render as "event:container".
func (e TraceEvent) Key() string {
	key := e.Event
	if e.Container != "" {
		key += ":" + e.Container
	}
	if e.Item != "" {
		key += ":" + e.Item
	}
	return key
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every step matched its expect clause and every
	// assertion held.
	Pass bool `json:"pass"`

	// Trace holds phase events and step outcomes in execution order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Session is the token stamped on every recorded mutation.
	Session string `json:"session"`

	// Mutations holds every terminal mutation in record order.
	Mutations []relation.Mutation `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddPhaseTrace adds an observed phase event to the trace.
func (r *Result) AddPhaseTrace(event, container, item string, items []string, seq int64) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:      TracePhase,
		Seq:       seq,
		Event:     event,
		Container: container,
		Item:      item,
		Items:     items,
	})
}

// AddOutcomeTrace adds a step outcome to the trace.
func (r *Result) AddOutcomeTrace(op, container, item, outcome string, seq int64) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:      TraceOutcome,
		Seq:       seq,
		Op:        op,
		Container: container,
		Item:      item,
		Outcome:   outcome,
	})
}
