package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relsync/internal/relation"
)

func TestRecorder_CountsOutcomes(t *testing.T) {
	rec, err := NewRecorder(nil)
	require.NoError(t, err)

	adapter := newPairs()
	s := relation.New[string, string](adapter, relation.WithRecorder(rec))

	require.NoError(t, s.Add("c1", "x"))
	require.Error(t, s.Add("c2", "x"))
	require.NoError(t, s.Remove("c2", "x"))

	assert.Equal(t, 1.0, testutil.ToFloat64(rec.Mutations().WithLabelValues("add", "committed", "none")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.Mutations().WithLabelValues("add", "rejected", "CONFLICT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.Mutations().WithLabelValues("remove", "committed", "none")))
}

func TestRecorder_DetachedMoves(t *testing.T) {
	rec, err := NewRecorder(nil)
	require.NoError(t, err)

	adapter := newPairs()
	s := relation.New[string, string](adapter, relation.WithRecorder(rec))
	require.NoError(t, s.Add("c1", "x"))
	adapter.full["c2"] = true

	outcome, err := s.MoveTo("x", "c2")
	require.Error(t, err)
	assert.Equal(t, relation.MoveDetached, outcome)
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.Detached()))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.Mutations().WithLabelValues("move", "rolled_back", "ADAPTER_FAILURE")))
}

func TestRecorder_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewRecorder(reg)
	require.NoError(t, err)

	rec.Record(relation.Mutation{Op: relation.OpClear, Phase: relation.PhaseCommitted})

	expected := `
# HELP relsync_mutations_total Terminal relation mutations by op, phase and error code.
# TYPE relsync_mutations_total counter
relsync_mutations_total{code="none",op="clear",phase="committed"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "relsync_mutations_total"))

	_, err = NewRecorder(reg)
	assert.Error(t, err, "duplicate registration")
}

// pairs is a string-keyed adapter whose containers can be marked full.
type pairs struct {
	items  map[string][]string
	owners map[string]string
	full   map[string]bool
}

func newPairs() *pairs {
	return &pairs{items: map[string][]string{}, owners: map[string]string{}, full: map[string]bool{}}
}

func (p *pairs) RawItems(c string) []string { return p.items[c] }
func (p *pairs) RawContainer(i string) string { return p.owners[i] }
func (p *pairs) SetRawContainer(i, c string) { p.owners[i] = c }

func (p *pairs) RawAddItem(c, i string) bool {
	if p.full[c] {
		return false
	}
	p.items[c] = append(p.items[c], i)
	return true
}

func (p *pairs) RawRemoveItem(c, i string) bool {
	kept := p.items[c][:0]
	for _, x := range p.items[c] {
		if x != i {
			kept = append(kept, x)
		}
	}
	p.items[c] = kept
	return true
}
