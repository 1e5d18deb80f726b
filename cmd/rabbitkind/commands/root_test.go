package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoot(t *testing.T) {
	cmd := Root()

	require.NotNil(t, cmd)
	assert.Equal(t, "rabbitkind", cmd.Use)
	assert.Equal(t, "Provision RabbitMQ with LDAP authentication on kind", cmd.Short)
}

func TestRoot_HasSubcommands(t *testing.T) {
	cmd := Root()

	expectedSubcommands := []string{
		"apply",
		"destroy",
		"report",
		"check",
		"doctor",
		"version",
		"completion",
	}

	subcommands := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		subcommands[sub.Name()] = true
	}

	for _, expected := range expectedSubcommands {
		assert.True(t, subcommands[expected], "Expected subcommand %s not found", expected)
	}
	assert.Len(t, cmd.Commands(), len(expectedSubcommands))
}

func TestRoot_PersistentFlags(t *testing.T) {
	cmd := Root()

	for name, short := range map[string]string{"config": "c", "verbose": "v", "log-json": ""} {
		flag := cmd.PersistentFlags().Lookup(name)
		require.NotNil(t, flag, "flag %s", name)
		assert.Equal(t, short, flag.Shorthand, "flag %s", name)
	}
}

func TestRoot_VersionRunsWithLogger(t *testing.T) {
	cmd := Root()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version", "--log-json"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "rabbitkind")
}

func TestOptionalBool(t *testing.T) {
	cmd := Apply()
	assert.Nil(t, optionalBool(cmd, "tui", false))

	require.NoError(t, cmd.Flags().Set("tui", "false"))
	got := optionalBool(cmd, "tui", false)
	require.NotNil(t, got)
	assert.False(t, *got)
}
