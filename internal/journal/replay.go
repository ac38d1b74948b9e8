package journal

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/roach88/relsync/internal/relation"
)

// Membership is the relation state implied by a journal.
type Membership struct {
	// Owners maps item to container for every attached item.
	Owners map[string]string

	// Members maps container to its items in attach order.
	Members map[string][]string

	// Violations lists log entries that contradict the replayed state.
	Violations []Violation
}

// Violation is one journal entry inconsistent with the state before it.
type Violation struct {
	Seq     int64
	Message string
}

func (v Violation) String() string {
	return fmt.Sprintf("seq %d: %s", v.Seq, v.Message)
}

// Containers returns the containers with at least one member, sorted.
func (m *Membership) Containers() []string {
	out := make([]string, 0, len(m.Members))
	for c, items := range m.Members {
		if len(items) > 0 {
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}

// Replay folds committed add, remove and clear mutations into membership.
// A rebind with no item resets the container; the rebinds that follow it
// list its new members. Move records are summaries of their inner add and
// remove and are skipped, as are rejected and rolled-back mutations, which
// changed nothing.
//
// Replay also checks the log: sequence numbers must strictly increase, every
// record must be terminal, a committed add must not steal an item owned
// elsewhere, and a committed remove or clear must detach an actual member.
func Replay(muts []relation.Mutation) *Membership {
	m := &Membership{
		Owners:  make(map[string]string),
		Members: make(map[string][]string),
	}

	var last int64
	for _, mu := range muts {
		if mu.Seq <= last {
			m.violate(mu.Seq, "sequence number %d does not follow %d", mu.Seq, last)
		}
		last = mu.Seq

		if !mu.Phase.Terminal() {
			m.violate(mu.Seq, "non-terminal phase %q", mu.Phase)
			continue
		}
		if mu.Phase != relation.PhaseCommitted {
			continue
		}

		switch mu.Op {
		case relation.OpAdd:
			if owner, ok := m.Owners[mu.Item]; ok && owner != mu.Container {
				m.violate(mu.Seq, "add of %s to %s while owned by %s", mu.Item, mu.Container, owner)
				m.detach(owner, mu.Item)
			}
			m.Owners[mu.Item] = mu.Container
			if !slices.Contains(m.Members[mu.Container], mu.Item) {
				m.Members[mu.Container] = append(m.Members[mu.Container], mu.Item)
			}
		case relation.OpRemove, relation.OpClear:
			owner, ok := m.Owners[mu.Item]
			if !ok || owner != mu.Container {
				if mu.Op == relation.OpClear || mu.Detail != relation.DetailNotMember {
					m.violate(mu.Seq, "%s of %s from %s which does not own it", mu.Op, mu.Item, mu.Container)
				}
				continue
			}
			m.detach(mu.Container, mu.Item)
		case relation.OpRebind:
			// storage replaced behind the Sync: the record is authoritative
			if mu.Item == "" {
				for _, item := range m.Members[mu.Container] {
					delete(m.Owners, item)
				}
				delete(m.Members, mu.Container)
				continue
			}
			if owner, ok := m.Owners[mu.Item]; ok {
				m.detach(owner, mu.Item)
			}
			m.Owners[mu.Item] = mu.Container
			if !slices.Contains(m.Members[mu.Container], mu.Item) {
				m.Members[mu.Container] = append(m.Members[mu.Container], mu.Item)
			}
		case relation.OpMove:
			// summary record
		default:
			m.violate(mu.Seq, "unknown op %q", mu.Op)
		}
	}
	return m
}

// ReplaySession reads a session and replays it.
func (j *Journal) ReplaySession(ctx context.Context, token string) (*Membership, error) {
	muts, err := j.ReadSession(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("replay session: %w", err)
	}
	return Replay(muts), nil
}

func (m *Membership) detach(container, item string) {
	delete(m.Owners, item)
	items := m.Members[container]
	if idx := slices.Index(items, item); idx >= 0 {
		m.Members[container] = slices.Delete(items, idx, idx+1)
	}
}

func (m *Membership) violate(seq int64, format string, args ...any) {
	m.Violations = append(m.Violations, Violation{Seq: seq, Message: fmt.Sprintf(format, args...)})
}
