package relation

import (
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"sync"
)

// Sync keeps a container's raw item collection and each item's
// back-reference consistent under add, remove, move and clear.
//
// Thread-safety model:
//   - Without WithLocking: one logical thread per relationship
//   - With WithLocking: all mutations serialized behind one mutex; reads
//     (View, ContainerOf) only wait for raw writes in progress
//   - With WithLocking, observers run after the mutation releases its lock,
//     so they may read and mutate through the Sync
//   - Guards run inside the mutation: they may read through the Sync but
//     must not mutate it
//   - OnBefore/OnAfter: register before the Sync is shared
type Sync[C, I comparable] struct {
	adapter   Adapter[C, I]
	logger    *slog.Logger
	clock     Sequencer
	session   string
	describe  func(any) string
	recorders []Recorder
	guards    []Guard[C, I]
	observers []Observer[C, I]

	locking bool
	mu      sync.Mutex   // held for a whole mutation when locking is enabled
	state   sync.RWMutex // held for writing only around raw storage writes
	pending []Event[C, I]

	viewsMu sync.Mutex
	views   map[C]*View[C, I]
}

// New creates a Sync over the given adapter.
//
// A nil adapter, including a typed nil pointer, is a configuration error and
// panics immediately rather than at the first mutation.
func New[C, I comparable](adapter Adapter[C, I], opts ...Option) *Sync[C, I] {
	if isNil(adapter) {
		panic("relation: adapter must not be nil")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	return &Sync[C, I]{
		adapter:   adapter,
		logger:    o.logger,
		clock:     o.clock,
		session:   o.session,
		describe:  o.describe,
		recorders: o.recorders,
		locking:   o.locking,
		views:     make(map[C]*View[C, I]),
	}
}

// OnBefore registers a guard for the Adding and Removing phases.
// Guards run in registration order; the first denial wins.
func (s *Sync[C, I]) OnBefore(g Guard[C, I]) {
	if g != nil {
		s.guards = append(s.guards, g)
	}
}

// OnAfter registers an observer for every phase event. Adding and Removing
// reach observers only once every guard has allowed the mutation.
func (s *Sync[C, I]) OnAfter(o Observer[C, I]) {
	if o != nil {
		s.observers = append(s.observers, o)
	}
}

// Session returns the session token stamped on recorded mutations.
func (s *Sync[C, I]) Session() string {
	return s.session
}

// ContainerOf returns the item's current container, or the zero C.
func (s *Sync[C, I]) ContainerOf(i I) C {
	s.mustItem(i, "ContainerOf")
	defer s.read()()
	return s.adapter.RawContainer(i)
}

// Add attaches i to c.
//
// Returns a *SyncError with ErrCodeConflict if i belongs to another
// container, ErrCodeCanceled if a guard denies the Adding phase, or
// ErrCodeAdapterFailure if the raw collection refuses the item. In every
// failure case neither the collection nor the back-reference changes.
//
// Adding an item to the container it already belongs to re-applies the add
// and succeeds.
func (s *Sync[C, I]) Add(c C, i I) error {
	s.mustContainer(c, "Add")
	s.mustItem(i, "Add")
	defer s.lock()()
	return s.add(c, i)
}

// Remove detaches i from c.
//
// If i does not currently belong to c this is a no-op that returns nil.
// Otherwise returns ErrCodeCanceled or ErrCodeAdapterFailure on failure,
// with nothing changed.
func (s *Sync[C, I]) Remove(c C, i I) error {
	s.mustContainer(c, "Remove")
	s.mustItem(i, "Remove")
	defer s.lock()()
	return s.remove(c, i)
}

// MoveTo attaches i to c, detaching it from its current container first.
// A zero c only detaches.
//
// The two halves are independent: if the removal commits and the add fails,
// the item stays detached (MoveDetached) and the add's error is returned.
// Callers that need the item somewhere specific must check the outcome.
func (s *Sync[C, I]) MoveTo(i I, c C) (MoveOutcome, error) {
	s.mustItem(i, "MoveTo")
	defer s.lock()()

	var zero C
	m := s.begin(OpMove, c, i)
	m.advance(PhaseValidating)

	current := s.adapter.RawContainer(i)
	if current == c {
		m.advance(PhaseApplying)
		s.commit(m, "already attached")
		return MoveNoop, nil
	}
	m.advance(PhaseApplying)

	if current != zero {
		if err := s.remove(current, i); err != nil {
			s.rollback(m, CodeOf(err), MoveUnchanged.String())
			return MoveUnchanged, err
		}
	}

	if c != zero {
		if err := s.add(c, i); err != nil {
			outcome := MoveUnchanged
			if current != zero {
				outcome = MoveDetached
				s.logger.Warn("move left item detached",
					"item", m.item,
					"from", s.name(current),
					"to", m.container,
					"code", CodeOf(err),
					"session", s.session,
				)
			}
			s.rollback(m, CodeOf(err), outcome.String())
			return outcome, err
		}
	}

	s.commit(m, "")
	return MoveCompleted, nil
}

// Clear detaches every item from c.
//
// Observers see Clearing with the items about to go, then Cleared with the
// items actually removed. Items whose raw removal fails keep their
// back-reference and the call returns ErrCodeAdapterFailure.
func (s *Sync[C, I]) Clear(c C) error {
	s.mustContainer(c, "Clear")
	defer s.lock()()

	var zero C
	items := slices.Clone(s.adapter.RawItems(c))
	s.notify(Event[C, I]{Type: EventClearing, Seq: s.clock.Next(), Container: c, Items: items})

	removed := make([]I, 0, len(items))
	failed := 0
	for _, i := range items {
		m := s.begin(OpClear, c, i)
		m.advance(PhaseValidating)
		m.advance(PhaseApplying)
		if !s.apply(c, func() bool {
			if !s.adapter.RawRemoveItem(c, i) {
				return false
			}
			if s.adapter.RawContainer(i) == c {
				s.adapter.SetRawContainer(i, zero)
			}
			return true
		}) {
			s.rollback(m, ErrCodeAdapterFailure, "raw collection refused removal")
			failed++
			continue
		}
		s.commit(m, "")
		removed = append(removed, i)
	}

	s.invalidate(c)
	s.notify(Event[C, I]{Type: EventCleared, Seq: s.clock.Next(), Container: c, Items: removed})

	if failed > 0 {
		return &SyncError{
			Code:      ErrCodeAdapterFailure,
			Op:        OpClear,
			Container: s.name(c),
			Message:   fmt.Sprintf("%d of %d items could not be removed", failed, len(items)),
		}
	}
	return nil
}

// View returns the synchronized view of c, creating it on first use.
// The same *View is returned for the lifetime of the Sync unless Forget
// drops it.
func (s *Sync[C, I]) View(c C) *View[C, I] {
	s.mustContainer(c, "View")
	s.viewsMu.Lock()
	defer s.viewsMu.Unlock()

	if v, ok := s.views[c]; ok {
		return v
	}
	v := &View[C, I]{sync: s, container: c}
	s.views[c] = v
	return v
}

// Invalidate forces c's view, if one exists, to re-fetch the raw
// collection on its next read. Containers call this after replacing their
// backing storage.
func (s *Sync[C, I]) Invalidate(c C) {
	s.invalidate(c)
}

// Rebind invalidates c's view like Invalidate and records the raw
// collection as it now stands, so recorders learn about storage replaced
// behind the Sync. It records one committed OpRebind with no item, which
// resets c's membership, followed by one per listed item in raw order.
//
// Back-references are not touched; whoever swapped the storage owns them.
func (s *Sync[C, I]) Rebind(c C) {
	s.mustContainer(c, "Rebind")
	defer s.lock()()

	var none I
	items := slices.Clone(s.adapter.RawItems(c))
	s.invalidate(c)

	m := s.begin(OpRebind, c, none)
	m.advance(PhaseValidating)
	m.advance(PhaseApplying)
	s.commit(m, fmt.Sprintf("%d item(s)", len(items)))

	for _, i := range items {
		m := s.begin(OpRebind, c, i)
		m.advance(PhaseValidating)
		m.advance(PhaseApplying)
		s.commit(m, "")
	}
	s.logger.Debug("container rebound",
		"container", s.name(c),
		"items", len(items),
		"session", s.session,
	)
}

// Forget drops c's view. A later View(c) creates a fresh one.
func (s *Sync[C, I]) Forget(c C) {
	s.viewsMu.Lock()
	defer s.viewsMu.Unlock()
	delete(s.views, c)
}

func (s *Sync[C, I]) add(c C, i I) error {
	var zero C
	m := s.begin(OpAdd, c, i)
	m.advance(PhaseValidating)

	if owner := s.adapter.RawContainer(i); owner != zero && owner != c {
		return s.reject(m, &SyncError{
			Code:      ErrCodeConflict,
			Op:        OpAdd,
			Container: m.container,
			Item:      m.item,
			Message:   fmt.Sprintf("item already owned by %s", s.name(owner)),
		})
	}

	if err := s.consult(Event[C, I]{Type: EventAdding, Seq: m.seq, Container: c, Item: i}); err != nil {
		return s.reject(m, &SyncError{
			Code:      ErrCodeCanceled,
			Op:        OpAdd,
			Container: m.container,
			Item:      m.item,
			Message:   "denied by guard",
			Err:       err,
		})
	}

	s.notify(Event[C, I]{Type: EventAdding, Seq: m.seq, Container: c, Item: i})

	m.advance(PhaseApplying)
	if !s.apply(c, func() bool {
		if !s.adapter.RawAddItem(c, i) {
			return false
		}
		s.adapter.SetRawContainer(i, c)
		return true
	}) {
		err := &SyncError{
			Code:      ErrCodeAdapterFailure,
			Op:        OpAdd,
			Container: m.container,
			Item:      m.item,
			Message:   "raw collection refused item",
		}
		s.rollback(m, err.Code, err.Message)
		return err
	}
	s.commit(m, "")

	s.notify(Event[C, I]{Type: EventAdded, Seq: m.seq, Container: c, Item: i})
	return nil
}

func (s *Sync[C, I]) remove(c C, i I) error {
	var zero C
	m := s.begin(OpRemove, c, i)
	m.advance(PhaseValidating)

	if s.adapter.RawContainer(i) != c {
		m.advance(PhaseApplying)
		s.commit(m, DetailNotMember)
		return nil
	}

	if err := s.consult(Event[C, I]{Type: EventRemoving, Seq: m.seq, Container: c, Item: i}); err != nil {
		return s.reject(m, &SyncError{
			Code:      ErrCodeCanceled,
			Op:        OpRemove,
			Container: m.container,
			Item:      m.item,
			Message:   "denied by guard",
			Err:       err,
		})
	}

	s.notify(Event[C, I]{Type: EventRemoving, Seq: m.seq, Container: c, Item: i})

	m.advance(PhaseApplying)
	if !s.apply(c, func() bool {
		if !s.adapter.RawRemoveItem(c, i) {
			return false
		}
		s.adapter.SetRawContainer(i, zero)
		return true
	}) {
		err := &SyncError{
			Code:      ErrCodeAdapterFailure,
			Op:        OpRemove,
			Container: m.container,
			Item:      m.item,
			Message:   "raw collection refused removal",
		}
		s.rollback(m, err.Code, err.Message)
		return err
	}
	s.commit(m, "")

	s.notify(Event[C, I]{Type: EventRemoved, Seq: m.seq, Container: c, Item: i})
	return nil
}

func (s *Sync[C, I]) begin(op Op, c C, i I) *mutation {
	return &mutation{
		op:        op,
		seq:       s.clock.Next(),
		container: s.name(c),
		item:      s.itemName(i),
		phase:     PhaseRequested,
	}
}

func (s *Sync[C, I]) consult(ev Event[C, I]) error {
	for _, g := range s.guards {
		if err := g(ev); err != nil {
			return err
		}
	}
	return nil
}

// notify dispatches ev now, or queues it until the lock is released when
// locking is enabled.
func (s *Sync[C, I]) notify(ev Event[C, I]) {
	if s.locking {
		if len(s.observers) > 0 {
			s.pending = append(s.pending, ev)
		}
		return
	}
	s.dispatch(ev)
}

func (s *Sync[C, I]) dispatch(events ...Event[C, I]) {
	for _, ev := range events {
		for _, o := range s.observers {
			o(ev)
		}
	}
}

// apply runs a raw storage write and invalidates c's view on success.
// Readers are held off for its duration.
func (s *Sync[C, I]) apply(c C, write func() bool) bool {
	if s.locking {
		s.state.Lock()
		defer s.state.Unlock()
	}
	if !write() {
		return false
	}
	s.invalidate(c)
	return true
}

func (s *Sync[C, I]) reject(m *mutation, err *SyncError) error {
	m.advance(PhaseRejected)
	s.logger.Warn("mutation rejected",
		"op", m.op,
		"container", m.container,
		"item", m.item,
		"code", err.Code,
		"seq", m.seq,
		"session", s.session,
	)
	s.record(m, err.Code, err.Message)
	return err
}

func (s *Sync[C, I]) rollback(m *mutation, code ErrorCode, detail string) {
	m.advance(PhaseRolledBack)
	s.logger.Warn("mutation rolled back",
		"op", m.op,
		"container", m.container,
		"item", m.item,
		"code", code,
		"detail", detail,
		"seq", m.seq,
		"session", s.session,
	)
	s.record(m, code, detail)
}

func (s *Sync[C, I]) commit(m *mutation, detail string) {
	m.advance(PhaseCommitted)
	s.logger.Debug("mutation committed",
		"op", m.op,
		"container", m.container,
		"item", m.item,
		"seq", m.seq,
		"session", s.session,
	)
	s.record(m, "", detail)
}

func (s *Sync[C, I]) record(m *mutation, code ErrorCode, detail string) {
	if len(s.recorders) == 0 {
		return
	}
	rec := Mutation{
		Seq:       m.seq,
		Session:   s.session,
		Op:        m.op,
		Container: m.container,
		Item:      m.item,
		Phase:     m.phase,
		Code:      code,
		Detail:    detail,
	}
	for _, r := range s.recorders {
		r.Record(rec)
	}
}

func (s *Sync[C, I]) invalidate(c C) {
	s.viewsMu.Lock()
	v, ok := s.views[c]
	s.viewsMu.Unlock()
	if ok {
		v.Invalidate()
	}
}

// lock acquires the mutation mutex when locking is enabled and returns the
// matching unlock, which also dispatches the events queued meanwhile.
func (s *Sync[C, I]) lock() func() {
	if !s.locking {
		return func() {}
	}
	s.mu.Lock()
	return func() {
		events := s.pending
		s.pending = nil
		s.mu.Unlock()
		s.dispatch(events...)
	}
}

// read holds off raw storage writes when locking is enabled. It does not
// take the mutation mutex, so guards running inside a mutation can read.
func (s *Sync[C, I]) read() func() {
	if !s.locking {
		return func() {}
	}
	s.state.RLock()
	return s.state.RUnlock
}

func isNil(a any) bool {
	if a == nil {
		return true
	}
	v := reflect.ValueOf(a)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}

func (s *Sync[C, I]) name(c C) string {
	var zero C
	if c == zero {
		return ""
	}
	return s.describe(c)
}

func (s *Sync[C, I]) itemName(i I) string {
	var zero I
	if i == zero {
		return ""
	}
	return s.describe(i)
}

func (s *Sync[C, I]) mustContainer(c C, op string) {
	var zero C
	if c == zero {
		panic(fmt.Sprintf("relation: %s requires a container", op))
	}
}

func (s *Sync[C, I]) mustItem(i I, op string) {
	var zero I
	if i == zero {
		panic(fmt.Sprintf("relation: %s requires an item", op))
	}
}
