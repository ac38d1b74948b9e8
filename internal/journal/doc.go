// Package journal provides a SQLite-backed audit log of relation mutations.
//
// Every terminal mutation a relation.Sync produces (committed, rejected or
// rolled back) can be recorded here under a session token, read back in
// sequence order, and replayed into the membership it implies.
//
// # Patterns
//
// Idempotent writes:
//   - Mutation IDs are content-addressed (canon.MutationID)
//   - INSERT ... ON CONFLICT(id) DO NOTHING, so re-flushing is harmless
//
// Logical time:
//   - All ordering uses the seq column (logical clock), never timestamps
//   - Queries use ORDER BY seq ASC, id ASC COLLATE BINARY
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Mutations must belong to a known session
package journal
