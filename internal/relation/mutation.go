package relation

import "fmt"

// Op names a relation primitive.
type Op string

const (
	OpAdd    Op = "add"
	OpRemove Op = "remove"
	OpMove   Op = "move"
	OpClear  Op = "clear"

	// OpRebind reports a container's raw collection after its storage was
	// replaced behind the Sync. See Sync.Rebind.
	OpRebind Op = "rebind"
)

// Phase is a state of the per-mutation state machine.
type Phase string

const (
	PhaseRequested  Phase = "requested"
	PhaseValidating Phase = "validating"
	PhaseRejected   Phase = "rejected"
	PhaseApplying   Phase = "applying"
	PhaseCommitted  Phase = "committed"
	PhaseRolledBack Phase = "rolled_back"
)

// transitions lists the legal successor phases.
var transitions = map[Phase][]Phase{
	PhaseRequested:  {PhaseValidating},
	PhaseValidating: {PhaseRejected, PhaseApplying},
	PhaseApplying:   {PhaseCommitted, PhaseRolledBack},
}

// CanTransition reports whether from -> to is a legal phase change.
func CanTransition(from, to Phase) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (p Phase) Terminal() bool {
	return p == PhaseRejected || p == PhaseCommitted || p == PhaseRolledBack
}

// Mutation is the record of one terminal mutation, handed to recorders.
type Mutation struct {
	Seq       int64
	Session   string
	Op        Op
	Container string
	Item      string
	Phase     Phase
	Code      ErrorCode
	Detail    string
}

// DetailNotMember marks a committed remove that found nothing to detach.
const DetailNotMember = "not a member"

// Recorder receives every terminal Mutation in sequence order.
// Record is called synchronously on the mutating goroutine and must not
// block on I/O; buffer and flush instead.
type Recorder interface {
	Record(m Mutation)
}

// RecorderFunc adapts a function to the Recorder interface.
type RecorderFunc func(m Mutation)

// Record implements Recorder.
func (f RecorderFunc) Record(m Mutation) { f(m) }

// mutation tracks one in-flight mutation through its phases.
type mutation struct {
	op        Op
	seq       int64
	container string
	item      string
	phase     Phase
}

// advance moves to the next phase. An illegal transition is a programming
// error in this package and panics.
func (m *mutation) advance(to Phase) {
	if !CanTransition(m.phase, to) {
		panic(fmt.Sprintf("relation: illegal phase transition %s -> %s (op=%s, seq=%d)", m.phase, to, m.op, m.seq))
	}
	m.phase = to
}

// MoveOutcome is the tri-state result of MoveTo.
type MoveOutcome int

const (
	// MoveNoop means the item was already attached to the target.
	MoveNoop MoveOutcome = iota + 1
	// MoveCompleted means the item now belongs to the target (or is
	// detached, when the target is the zero container).
	MoveCompleted
	// MoveDetached means the item left its old container but the add to
	// the target failed; it now has no container.
	MoveDetached
	// MoveUnchanged means nothing changed: the removal from the old
	// container failed, or the item was detached and the add failed.
	MoveUnchanged
)

var moveOutcomeNames = map[MoveOutcome]string{
	MoveNoop:      "noop",
	MoveCompleted: "completed",
	MoveDetached:  "detached",
	MoveUnchanged: "unchanged",
}

func (o MoveOutcome) String() string {
	if name, ok := moveOutcomeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("move(%d)", int(o))
}

// Succeeded reports whether the item ended up where MoveTo was asked to put it.
func (o MoveOutcome) Succeeded() bool {
	return o == MoveNoop || o == MoveCompleted
}
