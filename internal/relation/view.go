package relation

import (
	"slices"
	"sync"
)

// Reader is the read-only projection of a container's items.
type Reader[I comparable] interface {
	Items() []I
	Len() int
	Contains(i I) bool
}

// View is the synchronized view of one container's raw collection.
//
// A View binds to the adapter's raw items on first read and serves that
// snapshot until invalidated. Every mutation made through the owning Sync
// invalidates the affected views; containers that swap their backing storage
// behind the Sync's back must call Invalidate themselves.
type View[C, I comparable] struct {
	sync      *Sync[C, I]
	container C

	mu    sync.Mutex
	items []I
	bound bool
}

// Container returns the container this view wraps.
func (v *View[C, I]) Container() C {
	return v.container
}

// Items returns a copy of the container's items in raw collection order.
func (v *View[C, I]) Items() []I {
	defer v.sync.read()()
	v.mu.Lock()
	defer v.mu.Unlock()
	return slices.Clone(v.bind())
}

// Len returns the number of items.
func (v *View[C, I]) Len() int {
	defer v.sync.read()()
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.bind())
}

// Contains reports whether i is in the container's raw collection.
func (v *View[C, I]) Contains(i I) bool {
	defer v.sync.read()()
	v.mu.Lock()
	defer v.mu.Unlock()
	return slices.Contains(v.bind(), i)
}

// Invalidate drops the bound snapshot. Safe to call at any time.
func (v *View[C, I]) Invalidate() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.items = nil
	v.bound = false
}

// Bound reports whether the view currently holds a snapshot.
func (v *View[C, I]) Bound() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.bound
}

// ReadOnly returns the read-only projection.
func (v *View[C, I]) ReadOnly() Reader[I] {
	return readOnly[C, I]{v: v}
}

// Monitored returns the mutable projection. Its mutations go through the
// Sync, so guards and observers see them.
func (v *View[C, I]) Monitored() *Collection[C, I] {
	return &Collection[C, I]{View: v}
}

// bind must be called with v.mu held.
func (v *View[C, I]) bind() []I {
	if !v.bound {
		v.items = slices.Clone(v.sync.adapter.RawItems(v.container))
		v.bound = true
	}
	return v.items
}

// readOnly hides the View's mutating and lifecycle methods.
type readOnly[C, I comparable] struct {
	v *View[C, I]
}

func (r readOnly[C, I]) Items() []I { return r.v.Items() }
func (r readOnly[C, I]) Len() int { return r.v.Len() }
func (r readOnly[C, I]) Contains(i I) bool { return r.v.Contains(i) }

// Collection is the monitored projection of a View.
type Collection[C, I comparable] struct {
	*View[C, I]
}

// Add attaches i to the view's container.
func (c *Collection[C, I]) Add(i I) error {
	return c.sync.Add(c.container, i)
}

// Remove detaches i from the view's container.
func (c *Collection[C, I]) Remove(i I) error {
	return c.sync.Remove(c.container, i)
}

// Clear detaches every item from the view's container.
func (c *Collection[C, I]) Clear() error {
	return c.sync.Clear(c.container)
}
