package relation

import "fmt"

// Inconsistency is one violation of bidirectional consistency.
type Inconsistency[C, I comparable] struct {
	Container C
	Item      I
	Reason    string
}

func (x Inconsistency[C, I]) String() string {
	return fmt.Sprintf("%v/%v: %s", x.Container, x.Item, x.Reason)
}

// Verify checks the graph spanned by containers and items through the raw
// adapter, without going through any Sync. An empty result means every item
// listed by a container points back at it and every back-reference is
// matched by exactly one listing.
//
// An item whose back-reference names a container outside containers is
// reported as out of scope rather than as a missing listing.
func Verify[C, I comparable](a Adapter[C, I], containers []C, items []I) []Inconsistency[C, I] {
	var zero C
	var out []Inconsistency[C, I]

	scope := make(map[C]bool, len(containers))
	for _, c := range containers {
		scope[c] = true
	}

	listed := make(map[I]C)
	for _, c := range containers {
		seen := make(map[I]bool)
		for _, i := range a.RawItems(c) {
			if seen[i] {
				out = append(out, Inconsistency[C, I]{Container: c, Item: i, Reason: "item listed more than once"})
				continue
			}
			seen[i] = true

			if prev, ok := listed[i]; ok {
				out = append(out, Inconsistency[C, I]{
					Container: c,
					Item:      i,
					Reason:    fmt.Sprintf("item also listed by %v", prev),
				})
			} else {
				listed[i] = c
			}

			if owner := a.RawContainer(i); owner != c {
				out = append(out, Inconsistency[C, I]{
					Container: c,
					Item:      i,
					Reason:    fmt.Sprintf("container lists item but back-reference is %v", owner),
				})
			}
		}
	}

	for _, i := range items {
		owner := a.RawContainer(i)
		if owner == zero {
			continue
		}
		if _, ok := listed[i]; ok {
			continue
		}
		reason := "back-reference points at a container that does not list the item"
		if !scope[owner] {
			reason = "back-reference points at a container outside the checked set"
		}
		out = append(out, Inconsistency[C, I]{Container: owner, Item: i, Reason: reason})
	}
	return out
}
