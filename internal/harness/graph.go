package harness

import (
	"github.com/roach88/relsync/internal/relation"
	"github.com/roach88/relsync/internal/schema"
)

// Container is a scenario container. Its raw storage is a relation.Bag
// configured from the relation policy.
type Container struct {
	name string
	bag  *relation.Bag[*Item]
}

func (c *Container) String() string { return c.name }

// Items implements relation.Owner.
func (c *Container) Items() []*Item { return c.bag.Items() }

// RawAddItem implements relation.Owner.
func (c *Container) RawAddItem(i *Item) bool { return c.bag.Add(i) }

// RawRemoveItem implements relation.Owner.
func (c *Container) RawRemoveItem(i *Item) bool { return c.bag.Remove(i) }

// Item is a scenario item holding its back-reference.
type Item struct {
	name  string
	owner *Container
}

func (i *Item) String() string { return i.name }

// Container implements relation.Member.
func (i *Item) Container() *Container { return i.owner }

// SetContainer implements relation.Member.
func (i *Item) SetContainer(c *Container) { i.owner = c }

// graph is the set of named containers and items of one scenario run.
type graph struct {
	containers map[string]*Container
	items      map[string]*Item

	// declaration order, for Verify and stable output
	containerList []*Container
	itemList      []*Item
}

// newGraph creates the scenario's containers with bags shaped by the
// relation policy, and its detached items.
func newGraph(rel *schema.Relation, containers, items []string) *graph {
	g := &graph{
		containers: make(map[string]*Container, len(containers)),
		items:      make(map[string]*Item, len(items)),
	}
	for _, name := range containers {
		policy := rel.PolicyFor(name)
		bag := relation.NewBag[*Item](policy.Capacity)
		if policy.Frozen {
			bag.Freeze()
		}
		c := &Container{name: name, bag: bag}
		g.containers[name] = c
		g.containerList = append(g.containerList, c)
	}
	for _, name := range items {
		i := &Item{name: name}
		g.items[name] = i
		g.itemList = append(g.itemList, i)
	}
	return g
}

// replace swaps c's storage for the named items and rewrites their
// back-references, bypassing the synchronizer. Items dropped from c lose
// their back-reference if it still pointed at c.
func (g *graph) replace(c *Container, names []string) {
	for _, old := range c.bag.Items() {
		if old.owner == c {
			old.owner = nil
		}
	}
	items := make([]*Item, 0, len(names))
	for _, n := range names {
		items = append(items, g.items[n])
	}
	c.bag.Replace(items)
	for _, i := range items {
		i.owner = c
	}
}

func names[T interface{ String() string }](xs []T) []string {
	out := make([]string, len(xs))
	for i, x := range xs {
		out[i] = x.String()
	}
	return out
}
