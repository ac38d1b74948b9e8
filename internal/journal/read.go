package journal

import (
	"context"
	"fmt"

	"github.com/roach88/relsync/internal/relation"
)

// Session summarizes one journaled session.
type Session struct {
	Token     string
	Relation  string
	Mutations int
	LastSeq   int64
}

// ReadSession returns every mutation of a session.
// Results are ordered deterministically: ORDER BY seq ASC, id ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) if the session has no records.
func (j *Journal) ReadSession(ctx context.Context, token string) ([]relation.Mutation, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT session, seq, op, container, item, phase, code, detail
		FROM mutations
		WHERE session = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, token)
	if err != nil {
		return nil, fmt.Errorf("query mutations: %w", err)
	}
	defer rows.Close()

	out := []relation.Mutation{}
	for rows.Next() {
		var (
			m               relation.Mutation
			op, phase, code string
		)
		if err := rows.Scan(&m.Session, &m.Seq, &op, &m.Container, &m.Item, &phase, &code, &m.Detail); err != nil {
			return nil, fmt.Errorf("scan mutation: %w", err)
		}
		m.Op = relation.Op(op)
		m.Phase = relation.Phase(phase)
		m.Code = relation.ErrorCode(code)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mutations: %w", err)
	}
	return out, nil
}

// Sessions lists all sessions ordered by token.
func (j *Journal) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT s.token, s.relation, COUNT(m.id), COALESCE(MAX(m.seq), 0)
		FROM sessions s
		LEFT JOIN mutations m ON m.session = s.token
		GROUP BY s.token, s.relation
		ORDER BY s.token COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	out := []Session{}
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.Token, &s.Relation, &s.Mutations, &s.LastSeq); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

// LastSeq returns the highest sequence number journaled for a session, or 0.
// A Sync resuming the session passes relation.NewClockAt(LastSeq) so new
// mutations continue the sequence.
func (j *Journal) LastSeq(ctx context.Context, token string) (int64, error) {
	var seq int64
	err := j.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM mutations WHERE session = ?`, token,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq, nil
}

// OutcomeCounts returns the number of mutations per terminal phase.
func (j *Journal) OutcomeCounts(ctx context.Context, token string) (map[relation.Phase]int, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT phase, COUNT(*)
		FROM mutations
		WHERE session = ?
		GROUP BY phase
	`, token)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	out := make(map[relation.Phase]int)
	for rows.Next() {
		var (
			phase string
			n     int
		)
		if err := rows.Scan(&phase, &n); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		out[relation.Phase(phase)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}
	return out, nil
}
