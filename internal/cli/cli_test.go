package cli

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/connvault/connvault/internal/output"
)

func TestParseConnectionIDs(t *testing.T) {
	t.Run("valid UUIDs", func(t *testing.T) {
		a := uuid.New()
		b := uuid.New()
		ids, err := parseConnectionIDs([]string{a.String(), b.String()})
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{a, b}, ids)
	})

	t.Run("invalid UUID is a usage error", func(t *testing.T) {
		_, err := parseConnectionIDs([]string{"not-a-uuid"})
		require.Error(t, err)
		cliErr, ok := err.(*output.CLIError)
		require.True(t, ok)
		assert.Equal(t, output.ExitUsage, cliErr.ExitCode)
		assert.Contains(t, cliErr.Message, "not-a-uuid")
	})

	t.Run("empty input", func(t *testing.T) {
		ids, err := parseConnectionIDs(nil)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})
}

func TestResolvedOutputExplicitModes(t *testing.T) {
	for _, mode := range []string{"json", "plain", "rich"} {
		g := &Globals{Output: mode}
		assert.Equal(t, mode, g.ResolvedOutput())
	}
}

func TestConfirmForceSkipsPrompt(t *testing.T) {
	assert.NoError(t, confirm("Delete everything?", &Globals{Force: true}))
}

func TestConfirmNoInputFails(t *testing.T) {
	err := confirm("Delete everything?", &Globals{NoInput: true})
	require.Error(t, err)
	cliErr, ok := err.(*output.CLIError)
	require.True(t, ok)
	assert.Equal(t, output.ExitUsage, cliErr.ExitCode)
}

func TestReadSecretNoInputWithoutStdinFails(t *testing.T) {
	_, err := readSecret("Password: ", false, &Globals{NoInput: true})
	require.Error(t, err)
	cliErr, ok := err.(*output.CLIError)
	require.True(t, ok)
	assert.Equal(t, output.ExitUsage, cliErr.ExitCode)
	assert.NotEmpty(t, cliErr.Hint)
}
