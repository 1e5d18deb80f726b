package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply_Flags(t *testing.T) {
	cmd := Apply()

	require.NotNil(t, cmd)
	assert.Equal(t, "apply", cmd.Use)
	assert.NotNil(t, cmd.RunE)
	for _, name := range []string{"resume", "no-rollback", "tui", "metrics-file", "show-secrets", "skip-prerequisites"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "flag %s", name)
	}
	assert.Contains(t, cmd.Long, "reverse order")
}

func TestDestroy_Flags(t *testing.T) {
	cmd := Destroy()

	require.NotNil(t, cmd)
	assert.Equal(t, "destroy", cmd.Use)
	yes := cmd.Flags().Lookup("yes")
	require.NotNil(t, yes)
	assert.Equal(t, "y", yes.Shorthand)
	assert.Equal(t, "false", yes.DefValue)
	assert.Contains(t, cmd.Long, "WARNING")
}

func TestReport_Flags(t *testing.T) {
	cmd := Report()

	format := cmd.Flags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "o", format.Shorthand)
	assert.Equal(t, "text", format.DefValue)
	assert.NotNil(t, cmd.Flags().Lookup("from-s3"))
}

func TestCheck_FlagDefaults(t *testing.T) {
	cmd := Check()

	tests := []struct {
		name      string
		shorthand string
		def       string
	}{
		{"server", "", "localhost"},
		{"port", "", "5672"},
		{"vhost", "", "/"},
		{"username", "u", ""},
		{"password", "p", ""},
		{"queue", "q", ""},
		{"exchange", "e", ""},
		{"message", "m", "[]"},
		{"receive", "r", "false"},
		{"count", "n", "1"},
		{"sleep", "", "0"},
		{"ssl", "", "false"},
		{"sslserver", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag := cmd.Flags().Lookup(tt.name)
			require.NotNil(t, flag)
			assert.Equal(t, tt.shorthand, flag.Shorthand)
			assert.Equal(t, tt.def, flag.DefValue)
		})
	}
}

func TestCheck_BareSleepUsesDefault(t *testing.T) {
	cmd := Check()
	require.NoError(t, cmd.ParseFlags([]string{"--sleep"}))
	assert.Equal(t, "10", cmd.Flags().Lookup("sleep").Value.String())

	cmd = Check()
	require.NoError(t, cmd.ParseFlags([]string{"--sleep=3"}))
	assert.Equal(t, "3", cmd.Flags().Lookup("sleep").Value.String())
}

func TestCheck_RepeatedMessages(t *testing.T) {
	cmd := Check()
	require.NoError(t, cmd.ParseFlags([]string{"-m", "a,b", "-m", "c"}))

	values, err := cmd.Flags().GetStringArray("message")
	require.NoError(t, err)
	assert.Equal(t, []string{"a,b", "c"}, values)
}

func TestCheck_SendAndReceiveExclusive(t *testing.T) {
	cmd := Root()
	cmd.SetArgs([]string{"check", "-q", "x", "-m", "hi", "-r"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "none of the others can be")
}

func TestDoctor(t *testing.T) {
	cmd := Doctor()
	assert.Equal(t, "doctor", cmd.Use)
	assert.NotNil(t, cmd.RunE)
}
