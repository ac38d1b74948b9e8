package relation

import "sync"

// order and line implement the simple relation shape for tests.
type order struct {
	name  string
	lines *Bag[*line]
}

func newOrder(name string) *order {
	return &order{name: name, lines: NewBag[*line](0)}
}

func (o *order) String() string { return o.name }
func (o *order) Items() []*line { return o.lines.Items() }
func (o *order) RawAddItem(l *line) bool { return o.lines.Add(l) }
func (o *order) RawRemoveItem(l *line) bool { return o.lines.Remove(l) }

type line struct {
	name  string
	owner *order
}

func (l *line) String() string { return l.name }
func (l *line) Container() *order { return l.owner }
func (l *line) SetContainer(o *order) { l.owner = o }

// graph is a small order/line fixture with a recorder attached.
type graph struct {
	sync      *Sync[*order, *line]
	order     *order
	other     *order
	a, b      *line
	mutations []Mutation

	// observers run outside the Sync's lock with WithLocking
	eventsMu sync.Mutex
	events   []Event[*order, *line]
}

func newGraph(opts ...Option) *graph {
	g := &graph{
		order: newOrder("Order"),
		other: newOrder("OtherOrder"),
		a:     &line{name: "A"},
		b:     &line{name: "B"},
	}
	opts = append(opts, WithRecorder(RecorderFunc(func(m Mutation) {
		g.mutations = append(g.mutations, m)
	})))
	g.sync = NewShape[*order, *line](opts...)
	g.sync.OnAfter(func(ev Event[*order, *line]) {
		g.eventsMu.Lock()
		defer g.eventsMu.Unlock()
		g.events = append(g.events, ev)
	})
	return g
}

func (g *graph) containers() []*order { return []*order{g.order, g.other} }
func (g *graph) items() []*line { return []*line{g.a, g.b} }

func (g *graph) eventTypes() []EventType {
	out := make([]EventType, 0, len(g.events))
	for _, ev := range g.events {
		out = append(out, ev.Type)
	}
	return out
}

func (g *graph) phases(op Op) []Phase {
	var out []Phase
	for _, m := range g.mutations {
		if m.Op == op {
			out = append(out, m.Phase)
		}
	}
	return out
}

// mapAdapter is a hand-written Adapter over plain maps, keyed by string ids.
type mapAdapter struct {
	members map[string][]string
	owners  map[string]string
	refuse  map[string]bool // containers whose raw collection rejects mutations
}

func newMapAdapter() *mapAdapter {
	return &mapAdapter{
		members: make(map[string][]string),
		owners:  make(map[string]string),
		refuse:  make(map[string]bool),
	}
}

func (m *mapAdapter) RawItems(c string) []string { return m.members[c] }
func (m *mapAdapter) RawContainer(i string) string { return m.owners[i] }
func (m *mapAdapter) SetRawContainer(i, c string) { m.owners[i] = c }

func (m *mapAdapter) RawAddItem(c, i string) bool {
	for _, x := range m.members[c] {
		if x == i {
			return true
		}
	}
	if m.refuse[c] {
		return false
	}
	m.members[c] = append(m.members[c], i)
	return true
}

func (m *mapAdapter) RawRemoveItem(c, i string) bool {
	items := m.members[c]
	for idx, x := range items {
		if x == i {
			if m.refuse[c] {
				return false
			}
			m.members[c] = append(items[:idx:idx], items[idx+1:]...)
			return true
		}
	}
	return true
}
