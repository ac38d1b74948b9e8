// Package canon produces canonical JSON (RFC 8785 subset) and
// domain-separated SHA-256 identities.
//
// Canonical bytes are what the journal hashes into mutation IDs and what the
// scenario harness writes into golden traces, so two runs that did the same
// thing produce byte-identical output.
//
// Supported values: string, int, int64, bool, []string, []any and
// map[string]any. Null and floats are rejected.
package canon
