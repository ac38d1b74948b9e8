package cli

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "relsync", cmd.Use)
	assert.Contains(t, cmd.Long, "back-references")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"validate", "test", "run", "journal"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestRequiredDatabaseFlags(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"run", "journal"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)

			dbFlag := sub.Flags().Lookup("db")
			require.NotNil(t, dbFlag)
			// --db is required, so default is empty
			assert.Equal(t, "", dbFlag.DefValue)
		})
	}
}

func TestTestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	testCmd, _, err := cmd.Find([]string{"test"})
	require.NoError(t, err)

	assert.NotNil(t, testCmd.Flags().Lookup("update"))
	assert.NotNil(t, testCmd.Flags().Lookup("filter"))
}

func TestInvalidFormat(t *testing.T) {
	specsDir, _ := workspace(t)

	_, err := execute(NewRootCommand(), "--format", "xml", "validate", specsDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestIsValidFormat(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))
	assert.False(t, isValidFormat("yaml"))
	assert.False(t, isValidFormat(""))
}

func TestNewLogger_Level(t *testing.T) {
	quiet := newLogger(&errWriter{}, "text", false)
	assert.False(t, quiet.Enabled(t.Context(), slog.LevelInfo))
	assert.True(t, quiet.Enabled(t.Context(), slog.LevelWarn))

	loud := newLogger(&errWriter{}, "json", true)
	assert.True(t, loud.Enabled(t.Context(), slog.LevelDebug))
}

func TestRootOptions_LoggerDefault(t *testing.T) {
	opts := &RootOptions{}
	require.NotNil(t, opts.logger())
}

// errWriter fails every write; loggers built on it must never be used.
type errWriter struct{}

func (errWriter) Write([]byte) (int, error) { return 0, errors.New("unexpected write") }
