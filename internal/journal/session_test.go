package journal

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDv7Generator(t *testing.T) {
	var g UUIDv7Generator
	a, b := g.Generate(), g.Generate()

	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)

	parsed, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestFixedGenerator(t *testing.T) {
	g := NewFixedGenerator("sess-1", "sess-2")
	assert.Equal(t, "sess-1", g.Generate())
	assert.Equal(t, "sess-2", g.Generate())
	assert.PanicsWithValue(t, "FixedGenerator: all tokens exhausted", func() { g.Generate() })
}
