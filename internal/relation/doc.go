// Package relation keeps a one-to-many relationship consistent in memory.
//
// A relationship has a "one" side (the container) and a "many" side (the
// items). The container owns a raw item collection; every item holds a raw
// back-reference to its container. The package never touches that storage
// directly: an Adapter supplies the five primitives that read and write it,
// so containers and items do not need to share a base type.
//
// # Source of Truth
//
// The container's collection is authoritative for membership. Items are
// attached, detached and moved only through a Sync, which mutates the raw
// collection first and writes the back-reference second. If the raw
// mutation fails, the back-reference is never touched.
//
// For every item i and container c, once no mutation is in flight:
//
//	i in RawItems(c)  <=>  RawContainer(i) == c
//
// # Mutation Lifecycle
//
// Each mutation walks a small state machine:
//
//	requested -> validating -> rejected
//	                        -> applying -> committed
//	                                    -> rolled_back
//
// Validating checks ownership (Add) or presence (Remove) and consults the
// registered guards. Applying performs the raw mutation and then the
// back-reference write. Terminal mutations are handed to every Recorder.
//
// # Events
//
// Observers receive phased events: Adding/Added, Removing/Removed and
// Clearing/Cleared. Guards receive the pre-phase events Adding and Removing
// and may deny them by returning an error; a denied mutation changes nothing
// and reports ErrCodeCanceled. Clear is not cancellable.
//
// # Failures
//
// Conflicts, cancellations and adapter failures are ordinary outcomes and are
// returned as *SyncError values. Misuse (nil adapter, zero container or item
// where one is required) panics at the call site.
//
// MoveTo is a best-effort remove-then-add. If the add half fails the item is
// left detached, not restored to its previous container; the returned
// MoveOutcome says which half happened.
//
// # Concurrency
//
// A Sync assumes one logical thread per relationship. WithLocking serializes
// every mutation of a Sync behind one mutex. Reads (View, ContainerOf) wait
// only for raw storage writes, so guards, which run inside the mutation, may
// read through the Sync but must not mutate it. Observers are queued and run
// once the mutation has released its lock, in event order; they may read and
// mutate freely.
package relation
