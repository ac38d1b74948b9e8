package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const ordersSpec = `package specs

relation: LineItems: {
	container: "Order"
	item:      "LineItem"
	capacity:  2
	containers: {
		Archive: {frozen: true}
	}
}
`

const addLineScenario = `name: add_line
description: "One line is added to an order"
specs: [orders.cue]
relation: LineItems
session: test-session-cli
containers: [Order, OtherOrder]
items: [A]
steps:
  - op: add
    container: Order
    item: A
    expect: committed
assertions:
  - type: owner
    item: A
    container: Order
  - type: consistent
`

// moveLineScenario leaves A detached: the guard denies the add half of
// the move after the remove half has committed.
const moveLineScenario = `name: move_line
description: "A guarded move detaches the line"
specs: [orders.cue]
relation: LineItems
session: test-session-move
containers: [Order, OtherOrder]
items: [A]
guards:
  - deny: adding
    container: OtherOrder
steps:
  - op: add
    container: Order
    item: A
  - op: move
    item: A
    to: OtherOrder
    expect: detached
assertions:
  - type: owner
    item: A
    container: ""
`

// replaceStorageScenario swaps Order's storage behind the synchronizer.
const replaceStorageScenario = `name: replace_storage
description: "Storage swapped behind the synchronizer is journaled on invalidation"
specs: [orders.cue]
relation: LineItems
containers: [Order]
items: [A, B]
steps:
  - op: add
    container: Order
    item: A
  - op: replace
    container: Order
    items: [A, B]
  - op: invalidate
    container: Order
  - op: remove
    container: Order
    item: B
    expect: committed
assertions:
  - type: members
    container: Order
    items: [A]
  - type: consistent
`

const failingScenario = `name: wrong_owner
description: "Asserts the wrong owner"
specs: [orders.cue]
relation: LineItems
containers: [Order, OtherOrder]
items: [A]
steps:
  - op: add
    container: Order
    item: A
assertions:
  - type: owner
    item: A
    container: OtherOrder
`

// writeFile writes content to dir/name, creating dir.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// workspace creates a specs dir holding ordersSpec and an empty scenarios
// dir under a fresh temp dir.
func workspace(t *testing.T) (specsDir, scenariosDir string) {
	t.Helper()
	root := t.TempDir()
	specsDir = filepath.Join(root, "specs")
	scenariosDir = filepath.Join(root, "scenarios")
	writeFile(t, specsDir, "orders.cue", ordersSpec)
	require.NoError(t, os.MkdirAll(scenariosDir, 0755))
	return specsDir, scenariosDir
}

// execute runs cmd with args and returns its stdout.
func execute(cmd *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}
