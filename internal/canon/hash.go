package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainMutation = "relsync/mutation/v1"
	DomainTrace    = "relsync/trace/v1"
)

// HashWithDomain computes SHA256(domain + 0x00 + data) as lowercase hex.
// The null separator prevents domain/data boundary ambiguity.
func HashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// MutationID computes the journal identity of one terminal mutation.
// The same session, sequence and participants always hash to the same ID,
// which makes re-flushing a journal idempotent.
func MutationID(session string, seq int64, op, container, item, phase string) (string, error) {
	obj := map[string]any{
		"session":   session,
		"seq":       seq,
		"op":        op,
		"container": container,
		"item":      item,
		"phase":     phase,
	}
	b, err := Marshal(obj)
	if err != nil {
		return "", fmt.Errorf("mutation id: %w", err)
	}
	return HashWithDomain(DomainMutation, b), nil
}

// TraceHash fingerprints a canonical trace.
func TraceHash(trace []any) (string, error) {
	b, err := Marshal(trace)
	if err != nil {
		return "", fmt.Errorf("trace hash: %w", err)
	}
	return HashWithDomain(DomainTrace, b), nil
}
