package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sameKindSpec = `package specs

relation: Broken: {
	container: "Order"
	item:      "Order"
}
`

func validate(t *testing.T, format, dir string) (string, error) {
	t.Helper()
	return execute(NewValidateCommand(&RootOptions{Format: format}), dir)
}

func TestValidate_ValidSpecs(t *testing.T) {
	specsDir, _ := workspace(t)

	out, err := validate(t, "text", specsDir)
	require.NoError(t, err)
	assert.Equal(t, "LineItems: Order -> LineItem (capacity 2)\n"+
		"  Archive: frozen\n"+
		"✓ 1 relation(s) valid\n", out)
}

func TestValidate_ValidSpecsJSON(t *testing.T) {
	specsDir, _ := workspace(t)

	out, err := validate(t, "json", specsDir)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, 1, resp.Data.Files)
	assert.Equal(t, []RelationSummary{{
		Name:      "LineItems",
		Container: "Order",
		Item:      "LineItem",
		Capacity:  2,
		Overrides: []ContainerLimits{{Name: "Archive", Frozen: true}},
	}}, resp.Data.Relations)
}

func TestValidate_DirectoryNotFound(t *testing.T) {
	out, err := validate(t, "text", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")
}

func TestValidate_NoCUEFiles(t *testing.T) {
	out, err := validate(t, "json", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "E003", resp.Error.Code)
}

func TestValidate_SameKinds(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.cue", sameKindSpec)

	out, err := validate(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, "E102: relation.Broken: item kind must differ")
}

func TestValidate_PartialFailureJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "orders.cue", ordersSpec)
	writeFile(t, dir, "broken.cue", sameKindSpec)

	out, err := validate(t, "json", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.Len(t, resp.Data.Relations, 1, "valid relations are still listed")
	assert.Equal(t, "LineItems", resp.Data.Relations[0].Name)
	require.Len(t, resp.Data.Errors, 1)
	assert.Equal(t, "E102", resp.Data.Errors[0].Code)
	assert.Equal(t, "E102", resp.Error.Code)
}

func TestValidate_NegativeCapacity(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "neg.cue", `package specs

relation: Neg: {
	container: "Order"
	item:      "Line"
	capacity:  -1
}
`)

	out, err := validate(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "E103")
}

func TestValidate_NoRelations(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "empty.cue", "package specs\n\nname: \"nothing\"\n")

	out, err := validate(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "E105: no relations found in specs")
}

func TestDescribeLimits(t *testing.T) {
	assert.Equal(t, " capacity 3", describeLimits(ContainerLimits{Capacity: 3}))
	assert.Equal(t, " capacity 1 frozen", describeLimits(ContainerLimits{Capacity: 1, Frozen: true}))
	assert.Equal(t, " unbounded", describeLimits(ContainerLimits{}))
}
