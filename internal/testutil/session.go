package testutil

import (
	"sync"

	"github.com/roach88/relsync/internal/relation"
)

// FixedSessionGenerator generates the same session token every time.
//
// Unlike journal.FixedGenerator which returns tokens in sequence, this
// generator always returns the same token, so repeated scenario runs write
// byte-identical journals.
//
// Thread-safety: FixedSessionGenerator is stateless and safe for concurrent use.
type FixedSessionGenerator struct {
	token string
}

// NewFixedSessionGenerator creates a new fixed session token generator.
//
// The token is typically set in the scenario YAML:
//
//	session: "test-session-00000000-0000-0000-0000-000000000001"
//
// If token is empty, Generate() returns "test-session-default".
func NewFixedSessionGenerator(token string) *FixedSessionGenerator {
	if token == "" {
		token = "test-session-default"
	}
	return &FixedSessionGenerator{token: token}
}

// Generate returns the fixed session token.
func (g *FixedSessionGenerator) Generate() string {
	return g.token
}

// MutationLog is a relation.Recorder that keeps every mutation in memory.
//
// Thread-safety: MutationLog is safe for concurrent use.
type MutationLog struct {
	mu        sync.Mutex
	mutations []relation.Mutation
}

// Record implements relation.Recorder.
func (l *MutationLog) Record(m relation.Mutation) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.mutations = append(l.mutations, m)
}

// Mutations returns a copy of the recorded mutations in record order.
func (l *MutationLog) Mutations() []relation.Mutation {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]relation.Mutation, len(l.mutations))
	copy(out, l.mutations)
	return out
}

// Phases returns the phase of every recorded mutation with the given op.
func (l *MutationLog) Phases(op relation.Op) []relation.Phase {
	var out []relation.Phase
	for _, m := range l.Mutations() {
		if m.Op == op {
			out = append(out, m.Phase)
		}
	}
	return out
}
