package labels

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLabelBuilder(t *testing.T) {
	t.Parallel()

	got := NewLabelBuilder("dev").Build()
	assert.Equal(t, map[string]string{
		KeyCluster:   "dev",
		KeyManagedBy: "rabbitkind",
	}, got)
}

func TestLabelBuilder_Chain(t *testing.T) {
	t.Parallel()

	got := NewLabelBuilder("dev").
		WithName("openldap").
		WithComponent("credentials").
		Merge(map[string]string{"team": "messaging"}).
		Build()

	assert.Equal(t, "openldap", got[KeyName])
	assert.Equal(t, "credentials", got[KeyComponent])
	assert.Equal(t, "messaging", got["team"])
	assert.Equal(t, "dev", got[KeyCluster])
}

func TestLabelBuilder_BuildReturnsCopy(t *testing.T) {
	t.Parallel()

	lb := NewLabelBuilder("dev")
	first := lb.Build()
	first[KeyCluster] = "mutated"

	assert.Equal(t, "dev", lb.Build()[KeyCluster])
}

func TestSelectorForCluster(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "rabbitkind.io/cluster=dev", SelectorForCluster("dev"))
}
