package journal

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/relsync/internal/relation"
)

// openTestJournal opens a fresh journal in a temp dir.
func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func beginSession(t *testing.T, j *Journal, token string) {
	t.Helper()
	if err := j.BeginSession(context.Background(), token, "LineItems"); err != nil {
		t.Fatalf("BeginSession() failed: %v", err)
	}
}

func committed(seq int64, op relation.Op, container, item string) relation.Mutation {
	return relation.Mutation{
		Seq:       seq,
		Session:   "sess",
		Op:        op,
		Container: container,
		Item:      item,
		Phase:     relation.PhaseCommitted,
	}
}

// box and entry are a minimal relation shape backed by relation.Bag.
type box struct {
	name string
	bag  relation.Bag[*entry]
}

func (b *box) String() string { return b.name }
func (b *box) Items() []*entry { return b.bag.Items() }
func (b *box) RawAddItem(e *entry) bool { return b.bag.Add(e) }
func (b *box) RawRemoveItem(e *entry) bool { return b.bag.Remove(e) }

type entry struct {
	name  string
	owner *box
}

func (e *entry) String() string { return e.name }
func (e *entry) Container() *box { return e.owner }
func (e *entry) SetContainer(b *box) { e.owner = b }
