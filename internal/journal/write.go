package journal

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/roach88/relsync/internal/canon"
	"github.com/roach88/relsync/internal/relation"
)

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// WriteMutation inserts one mutation record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
// The session must have been registered with BeginSession.
func (j *Journal) WriteMutation(ctx context.Context, m relation.Mutation) error {
	if err := writeMutation(ctx, j.db, m); err != nil {
		return fmt.Errorf("write mutation: %w", err)
	}
	return nil
}

func writeMutation(ctx context.Context, ex execer, m relation.Mutation) error {
	id, err := canon.MutationID(m.Session, m.Seq, string(m.Op), m.Container, m.Item, string(m.Phase))
	if err != nil {
		return err
	}

	_, err = ex.ExecContext(ctx, `
		INSERT INTO mutations
		(id, session, seq, op, container, item, phase, code, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		id,
		m.Session,
		m.Seq,
		string(m.Op),
		m.Container,
		m.Item,
		string(m.Phase),
		string(m.Code),
		m.Detail,
	)
	return err
}

// Recorder buffers mutations from a relation.Sync and writes them to the
// journal on Flush. Record never touches the database, so it is safe to
// attach to a Sync whose mutations must not block on I/O.
//
// Thread-safety: Recorder is safe for concurrent use.
type Recorder struct {
	journal *Journal

	mu      sync.Mutex
	pending []relation.Mutation
}

// Recorder returns a new buffered recorder writing to j.
func (j *Journal) Recorder() *Recorder {
	return &Recorder{journal: j}
}

// Record implements relation.Recorder.
func (r *Recorder) Record(m relation.Mutation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, m)
}

// Pending returns the number of buffered, unflushed mutations.
func (r *Recorder) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Flush writes all buffered mutations in a single transaction and returns
// how many were written. On error nothing is committed and the buffer is
// kept for a later retry.
func (r *Recorder) Flush(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.pending) == 0 {
		return 0, nil
	}

	tx, err := r.journal.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("flush: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, m := range r.pending {
		if err := writeMutation(ctx, tx, m); err != nil {
			return 0, fmt.Errorf("flush: seq %d: %w", m.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("flush: commit: %w", err)
	}

	n := len(r.pending)
	r.pending = nil
	r.journal.logger.Debug("journal flushed", "mutations", n)
	return n, nil
}
