package prerequisites

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeChecker(present map[string]string) Checker {
	return Checker{
		LookPath: func(name string) (string, error) {
			if _, ok := present[name]; ok {
				return "/usr/local/bin/" + name, nil
			}
			return "", errors.New("executable file not found in $PATH")
		},
		Output: func(_ context.Context, name string, _ ...string) ([]byte, error) {
			v := present[name]
			if v == "" {
				return nil, errors.New("exit status 1")
			}
			return []byte(v + "\nmore output\n"), nil
		},
	}
}

func TestChecker_AllPresent(t *testing.T) {
	t.Parallel()

	c := fakeChecker(map[string]string{
		"docker":  "Docker version 27.3.1",
		"kind":    "kind v0.25.0 go1.23.3 linux/amd64",
		"kubectl": "Client Version: v1.31.2",
	})
	results := c.Check(context.Background(), DefaultTools())

	require.Len(t, results.Results, 3)
	assert.False(t, results.HasErrors())
	require.NoError(t, results.Error())
	assert.Equal(t, "/usr/local/bin/kind", results.Results[1].Path)
	assert.Equal(t, "kind v0.25.0 go1.23.3 linux/amd64", results.Results[1].Version)
}

func TestChecker_MissingRequired(t *testing.T) {
	t.Parallel()

	c := fakeChecker(map[string]string{"docker": "Docker version 27.3.1"})
	results := c.Check(context.Background(), DefaultTools())

	assert.True(t, results.HasErrors())
	require.Len(t, results.Missing, 2)
	err := results.Error()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kind (https://kind.sigs.k8s.io")
	assert.Contains(t, err.Error(), "kubectl")
	assert.NotContains(t, err.Error(), "docker")
}

func TestChecker_MissingOptional(t *testing.T) {
	t.Parallel()

	c := fakeChecker(map[string]string{})
	results := c.Check(context.Background(), OptionalTools())

	assert.False(t, results.HasErrors())
	assert.NoError(t, results.Error())
	assert.Len(t, results.Missing, 1)
}

func TestChecker_VersionFailureIsBestEffort(t *testing.T) {
	t.Parallel()

	c := fakeChecker(map[string]string{"helm": ""})
	results := c.Check(context.Background(), OptionalTools())

	require.Len(t, results.Results, 1)
	assert.True(t, results.Results[0].Found)
	assert.Empty(t, results.Results[0].Version)
}

func TestCheck_RealPath(t *testing.T) {
	t.Parallel()

	results := Check(context.Background(), []Tool{{Name: "nonexistent-tool-xyz123", Required: true, InstallURL: "https://example.com"}})
	assert.True(t, results.HasErrors())
	assert.False(t, results.Results[0].Found)
}

func TestDefaultTools(t *testing.T) {
	t.Parallel()

	var names []string
	for _, tool := range DefaultTools() {
		assert.True(t, tool.Required)
		assert.NotEmpty(t, tool.InstallURL)
		assert.NotEmpty(t, tool.VersionArgs)
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{"docker", "kind", "kubectl"}, names)
}
