// Package harness runs given/when/then scenarios against relation policies.
//
// A scenario names a relation from the CUE policies, declares the containers
// and items of a small graph, optionally installs guards, executes a list of
// steps through a relation.Sync and finally checks assertions over the
// resulting graph and trace.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: order_lines
//	description: "Lines move between orders"
//	specs:
//	  - orders.cue
//	relation: LineItems
//	session: test-session-orders
//	containers: [Order, OtherOrder]
//	items: [A, B]
//	guards:
//	  - deny: adding
//	    container: Order
//	    item: B
//	    reason: "order locked"
//	steps:
//	  - op: add
//	    container: Order
//	    item: A
//	    expect: committed
//	  - op: move
//	    item: A
//	    to: OtherOrder
//	    expect: completed
//	assertions:
//	  - type: members
//	    container: OtherOrder
//	    items: [A]
//	  - type: owner
//	    item: A
//	    container: OtherOrder
//	  - type: consistent
//	  - type: trace_order
//	    events: ["removed:Order:A", "added:OtherOrder:A"]
//
// # Steps
//
//   - add, remove: container and item; outcome committed, conflict,
//     canceled or adapter_failure
//   - move: item and optional to (empty detaches); outcome noop, completed,
//     detached or unchanged
//   - clear: container; outcome as for add
//   - replace: container and items; swaps the container's storage behind the
//     synchronizer, the way a deserializer would
//   - invalidate: container; forces its view to rebind and journals the
//     container's raw collection as rebind mutations
//
// # Assertion Types
//
//   - members: the container's view lists exactly items, in order
//   - owner: the item's back-reference names container ("" for detached)
//   - consistent: the raw graph satisfies the bidirectional invariant
//   - trace_contains: a phase event with the given event/container/item exists
//   - trace_order: the listed events appear in order (gaps allowed)
//   - trace_count: a phase event appears exactly count times
//
// # Deterministic Testing
//
// Every run uses a fresh graph, a testutil.DeterministicClock and a fixed
// session token, so the same scenario always produces the same trace and
// golden files compare byte for byte.
package harness
