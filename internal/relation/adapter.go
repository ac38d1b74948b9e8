package relation

// Adapter mediates all access to the raw storage of a one-to-many relation.
//
// The zero value of C means "no container" (nil for pointer types).
// Implementations are stateless strategies; the Sync is the only caller.
type Adapter[C, I comparable] interface {
	// RawItems returns the container's current raw item collection.
	RawItems(c C) []I

	// RawContainer returns the item's raw back-reference, or the zero C.
	RawContainer(i I) C

	// SetRawContainer overwrites the item's raw back-reference.
	SetRawContainer(i I, c C)

	// RawAddItem registers i in c's collection. It returns true iff i is
	// present afterwards, including when it already was.
	RawAddItem(c C, i I) bool

	// RawRemoveItem unregisters i from c's collection. It returns true iff
	// i is absent afterwards, including when it already was.
	RawRemoveItem(c C, i I) bool
}

// Owner is the container half of the simple relation shape: an item
// collection plus raw add/remove.
type Owner[I comparable] interface {
	Items() []I
	RawAddItem(i I) bool
	RawRemoveItem(i I) bool
}

// Member is the item half of the simple relation shape: a mutable
// container back-reference.
type Member[C comparable] interface {
	Container() C
	SetContainer(c C)
}

// ShapeAdapter derives an Adapter for types that already expose the simple
// shape, so no hand-written adapter is needed.
type ShapeAdapter[C interface {
	comparable
	Owner[I]
}, I interface {
	comparable
	Member[C]
}] struct{}

// RawItems implements Adapter.
func (ShapeAdapter[C, I]) RawItems(c C) []I { return c.Items() }

// RawContainer implements Adapter.
func (ShapeAdapter[C, I]) RawContainer(i I) C { return i.Container() }

// SetRawContainer implements Adapter.
func (ShapeAdapter[C, I]) SetRawContainer(i I, c C) { i.SetContainer(c) }

// RawAddItem implements Adapter.
func (ShapeAdapter[C, I]) RawAddItem(c C, i I) bool { return c.RawAddItem(i) }

// RawRemoveItem implements Adapter.
func (ShapeAdapter[C, I]) RawRemoveItem(c C, i I) bool { return c.RawRemoveItem(i) }

// NewShape creates a Sync over a ShapeAdapter.
//
// Example:
//
//	lines := relation.NewShape[*Order, *LineItem]()
//	err := lines.Add(order, item)
func NewShape[C interface {
	comparable
	Owner[I]
}, I interface {
	comparable
	Member[C]
}](opts ...Option) *Sync[C, I] {
	return New[C, I](ShapeAdapter[C, I]{}, opts...)
}
