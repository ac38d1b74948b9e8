package relation

import "fmt"

// EventType distinguishes the phases a mutation passes through.
type EventType int

const (
	// EventAdding fires before an item is attached. Guards may deny it.
	EventAdding EventType = iota + 1
	// EventAdded fires after the raw add and the back-reference write.
	EventAdded
	// EventRemoving fires before an item is detached. Guards may deny it.
	EventRemoving
	// EventRemoved fires after the raw removal and the back-reference clear.
	EventRemoved
	// EventClearing fires before a container is emptied.
	EventClearing
	// EventCleared fires after every item has been processed.
	EventCleared
)

var eventNames = map[EventType]string{
	EventAdding:   "adding",
	EventAdded:    "added",
	EventRemoving: "removing",
	EventRemoved:  "removed",
	EventClearing: "clearing",
	EventCleared:  "cleared",
}

// String returns the lowercase phase name ("adding", "cleared", ...).
func (t EventType) String() string {
	if name, ok := eventNames[t]; ok {
		return name
	}
	return fmt.Sprintf("event(%d)", int(t))
}

// ParseEventType maps a phase name back to its EventType.
func ParseEventType(name string) (EventType, bool) {
	for t, n := range eventNames {
		if n == name {
			return t, true
		}
	}
	return 0, false
}

// Cancellable reports whether guards are consulted for this phase.
func (t EventType) Cancellable() bool {
	return t == EventAdding || t == EventRemoving
}

// Event describes one phase of a mutation.
type Event[C, I comparable] struct {
	Type EventType

	// Seq is the sequence number of the mutation (Adding/Added,
	// Removing/Removed) or of the clear (Clearing/Cleared).
	Seq int64

	Container C

	// Item is set for add and remove phases.
	Item I

	// Items holds the affected items for Clearing (all items about to be
	// removed) and Cleared (items actually removed).
	Items []I
}

// Guard is consulted synchronously before an Adding or Removing phase takes
// effect. A non-nil error denies the mutation; nothing changes and the
// caller receives ErrCodeCanceled wrapping that error.
type Guard[C, I comparable] func(ev Event[C, I]) error

// Observer receives every phase event after the Sync has acted on it.
type Observer[C, I comparable] func(ev Event[C, I])
