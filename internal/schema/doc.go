// Package schema compiles relation policies written in CUE.
//
// A policy names the container and item kinds of a relation and bounds the
// raw collections scenarios build for it:
//
//	relation: LineItems: {
//		container:   "Order"
//		item:        "LineItem"
//		description: "Lines of an order"
//		capacity:    3
//		containers: Archive: {frozen: true}
//	}
//
// capacity 0 (the default) means unbounded. Per-container overrides replace
// the relation-wide capacity and can freeze a container entirely.
package schema
