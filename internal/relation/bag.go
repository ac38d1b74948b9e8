package relation

import "slices"

// Bag is an insertion-ordered, duplicate-free raw item collection.
// Containers embed it as the storage behind their Owner methods.
//
// A Bag with a capacity rejects additions once full, and a frozen Bag rejects
// every mutation. Both surface through the Sync as adapter failures.
//
// The zero value is an empty, unbounded, unfrozen Bag ready for use.
type Bag[I comparable] struct {
	items    []I
	capacity int
	frozen   bool
}

// NewBag creates an empty Bag. A capacity of 0 means unbounded.
func NewBag[I comparable](capacity int) *Bag[I] {
	return &Bag[I]{capacity: capacity}
}

// Items returns a copy of the stored items in insertion order.
func (b *Bag[I]) Items() []I {
	return slices.Clone(b.items)
}

// Len returns the number of stored items.
func (b *Bag[I]) Len() int {
	return len(b.items)
}

// Contains reports whether i is stored.
func (b *Bag[I]) Contains(i I) bool {
	return slices.Contains(b.items, i)
}

// Add stores i. Returns true iff i is present afterwards.
func (b *Bag[I]) Add(i I) bool {
	if b.Contains(i) {
		return true
	}
	if b.frozen {
		return false
	}
	if b.capacity > 0 && len(b.items) >= b.capacity {
		return false
	}
	b.items = append(b.items, i)
	return true
}

// Remove drops i. Returns true iff i is absent afterwards.
func (b *Bag[I]) Remove(i I) bool {
	idx := slices.Index(b.items, i)
	if idx < 0 {
		return true
	}
	if b.frozen {
		return false
	}
	b.items = slices.Delete(b.items, idx, idx+1)
	return true
}

// Capacity returns the configured capacity (0 = unbounded).
func (b *Bag[I]) Capacity() int {
	return b.capacity
}

// SetCapacity changes the capacity. Items already stored are kept even if
// they exceed the new limit.
func (b *Bag[I]) SetCapacity(n int) {
	b.capacity = n
}

// Freeze makes the Bag reject all further mutations.
func (b *Bag[I]) Freeze() { b.frozen = true }

// Thaw undoes Freeze.
func (b *Bag[I]) Thaw() { b.frozen = false }

// Frozen reports whether the Bag rejects mutations.
func (b *Bag[I]) Frozen() bool { return b.frozen }

// Replace swaps the stored items wholesale, dropping duplicates.
// It bypasses capacity and frozen checks because it models the storage
// itself being replaced (e.g. after deserialization). Views bound to the
// owning container must be invalidated afterwards.
func (b *Bag[I]) Replace(items []I) {
	next := make([]I, 0, len(items))
	for _, i := range items {
		if !slices.Contains(next, i) {
			next = append(next, i)
		}
	}
	b.items = next
}
