package journal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relsync/internal/relation"
)

func TestReplay_OrderScenario(t *testing.T) {
	moveSummary := committed(6, relation.OpMove, "OtherOrder", "B")
	m := Replay([]relation.Mutation{
		committed(1, relation.OpAdd, "Order", "A"),
		committed(2, relation.OpAdd, "Order", "B"),
		committed(3, relation.OpRemove, "Order", "A"),
		committed(4, relation.OpRemove, "Order", "B"),
		committed(5, relation.OpAdd, "OtherOrder", "B"),
		moveSummary,
	})

	assert.Empty(t, m.Violations)
	assert.Equal(t, map[string]string{"B": "OtherOrder"}, m.Owners)
	assert.Equal(t, []string{"B"}, m.Members["OtherOrder"])
	assert.Empty(t, m.Members["Order"])
	assert.Equal(t, []string{"OtherOrder"}, m.Containers())
}

func TestReplay_SkipsFailedMutations(t *testing.T) {
	rejected := committed(2, relation.OpAdd, "Other", "A")
	rejected.Phase = relation.PhaseRejected
	rolledBack := committed(3, relation.OpRemove, "Order", "A")
	rolledBack.Phase = relation.PhaseRolledBack
	noop := committed(4, relation.OpRemove, "Other", "A")
	noop.Detail = relation.DetailNotMember

	m := Replay([]relation.Mutation{
		committed(1, relation.OpAdd, "Order", "A"),
		rejected,
		rolledBack,
		noop,
	})

	assert.Empty(t, m.Violations)
	assert.Equal(t, "Order", m.Owners["A"])
}

func TestReplay_Violations(t *testing.T) {
	pending := committed(5, relation.OpAdd, "Order", "C")
	pending.Phase = relation.PhaseApplying

	m := Replay([]relation.Mutation{
		committed(1, relation.OpAdd, "Order", "A"),
		committed(2, relation.OpAdd, "Other", "A"),
		committed(2, relation.OpRemove, "Order", "A"),
		committed(3, relation.OpClear, "Order", "B"),
		pending,
	})

	var got []string
	for _, v := range m.Violations {
		got = append(got, v.String())
	}
	assert.Equal(t, []string{
		"seq 2: add of A to Other while owned by Order",
		"seq 2: sequence number 2 does not follow 2",
		"seq 2: remove of A from Order which does not own it",
		"seq 3: clear of B from Order which does not own it",
		`seq 5: non-terminal phase "applying"`,
	}, got)
	assert.Equal(t, "Other", m.Owners["A"])
	assert.Empty(t, m.Members["Order"])
}

func TestReplaySession_MatchesLiveGraph(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)
	beginSession(t, j, "sess-live")

	rec := j.Recorder()
	s := relation.NewShape[*box, *entry](relation.WithRecorder(rec), relation.WithSession("sess-live"))
	order, other := &box{name: "Order"}, &box{name: "OtherOrder"}
	a, b := &entry{name: "A"}, &entry{name: "B"}

	require.NoError(t, s.Add(order, a))
	require.NoError(t, s.Add(order, b))
	require.NoError(t, s.Remove(order, a))
	_, err := s.MoveTo(b, other)
	require.NoError(t, err)
	require.NoError(t, s.Add(order, a))
	require.NoError(t, s.Clear(order))

	_, err = rec.Flush(ctx)
	require.NoError(t, err)

	m, err := j.ReplaySession(ctx, "sess-live")
	require.NoError(t, err)
	assert.Empty(t, m.Violations)
	assert.Equal(t, map[string]string{"B": "OtherOrder"}, m.Owners)
}

func TestReplay_RebindResetsContainer(t *testing.T) {
	reset := committed(3, relation.OpRebind, "Order", "")
	m := Replay([]relation.Mutation{
		committed(1, relation.OpAdd, "Order", "A"),
		committed(2, relation.OpAdd, "Other", "C"),
		reset,
		committed(4, relation.OpRebind, "Order", "B"),
		committed(5, relation.OpRebind, "Order", "C"),
		committed(6, relation.OpRemove, "Order", "B"),
	})

	assert.Empty(t, m.Violations)
	assert.Equal(t, map[string]string{"C": "Order"}, m.Owners)
	assert.Equal(t, []string{"C"}, m.Members["Order"])
	assert.Empty(t, m.Members["Other"])
}

func TestReplaySession_RebindAfterStorageSwap(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)
	beginSession(t, j, "sess-rebind")

	rec := j.Recorder()
	s := relation.NewShape[*box, *entry](relation.WithRecorder(rec), relation.WithSession("sess-rebind"))
	order := &box{name: "Order"}
	a, b := &entry{name: "A"}, &entry{name: "B"}

	require.NoError(t, s.Add(order, a))

	// storage reloaded behind the Sync
	order.bag.Replace([]*entry{a, b})
	b.SetContainer(order)
	s.Rebind(order)

	require.NoError(t, s.Remove(order, b))

	_, err := rec.Flush(ctx)
	require.NoError(t, err)

	m, err := j.ReplaySession(ctx, "sess-rebind")
	require.NoError(t, err)
	assert.Empty(t, m.Violations)
	assert.Equal(t, map[string]string{"A": "Order"}, m.Owners)
	assert.Equal(t, []string{"A"}, m.Members["Order"])
}
