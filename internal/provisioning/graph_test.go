package provisioning

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func position(order []string) map[string]int {
	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	return pos
}

func TestGraph_TopologicalOrder_Diamond(t *testing.T) {
	g := mustGraph(t, diamond(newTracer(), nil))

	order, err := g.TopologicalOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C", "D"}, order)
}

func TestGraph_TopologicalOrder_TiesFollowInsertion(t *testing.T) {
	tr := newTracer()
	g := mustGraph(t, []Step{
		tr.step("z", nil),
		tr.step("y", deps("x")),
		tr.step("x", nil),
		tr.step("w", deps("z")),
	})

	order, err := g.TopologicalOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "x", "y", "w"}, order)

	// Stable across calls.
	for range 10 {
		again, err := g.TopologicalOrder()
		require.NoError(t, err)
		assert.Equal(t, order, again)
	}
}

func TestGraph_TopologicalOrder_DependenciesFirst(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for trial := range 50 {
		tr := newTracer()
		n := 5 + r.Intn(20)
		steps := make([]Step, n)
		for i := range n {
			var ds []string
			// Only depend on lower indices so the graph stays acyclic.
			for j := range i {
				if r.Intn(4) == 0 {
					ds = append(ds, fmt.Sprintf("s%d", j))
				}
			}
			steps[i] = tr.step(fmt.Sprintf("s%d", i), ds)
		}
		// Register in a shuffled order; edges are resolved on validate.
		r.Shuffle(n, func(i, j int) { steps[i], steps[j] = steps[j], steps[i] })

		g := mustGraph(t, steps)
		order, err := g.TopologicalOrder()
		require.NoError(t, err, "trial %d", trial)
		require.Len(t, order, n)

		pos := position(order)
		for _, s := range steps {
			for _, d := range s.DependsOn {
				assert.Less(t, pos[d], pos[s.ID], "trial %d: %s must come after %s", trial, s.ID, d)
			}
		}
	}
}

func TestGraph_Validate_UnknownDependency(t *testing.T) {
	tr := newTracer()
	g := NewGraph()
	require.NoError(t, g.AddStep(tr.step("a", nil)))
	require.NoError(t, g.AddStep(tr.step("b", deps("a", "ghost"))))

	err := g.Validate()
	var unknown *UnknownDependencyError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "b", unknown.StepID)
	assert.Equal(t, "ghost", unknown.MissingID)

	_, err = g.TopologicalOrder()
	assert.ErrorAs(t, err, &unknown)
}

func TestGraph_Validate_Cycle(t *testing.T) {
	tests := []struct {
		name  string
		steps func(*tracer) []Step
		want  []string
	}{
		{
			name: "two nodes",
			steps: func(tr *tracer) []Step {
				return []Step{tr.step("a", deps("b")), tr.step("b", deps("a"))}
			},
			want: []string{"a", "b", "a"},
		},
		{
			name: "self loop",
			steps: func(tr *tracer) []Step {
				return []Step{tr.step("root", nil), tr.step("a", deps("a", "root"))}
			},
			want: []string{"a", "a"},
		},
		{
			name: "cycle behind acyclic prefix",
			steps: func(tr *tracer) []Step {
				return []Step{
					tr.step("root", nil),
					tr.step("x", deps("root", "z")),
					tr.step("y", deps("x")),
					tr.step("z", deps("y")),
				}
			},
			want: []string{"x", "z", "y", "x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGraph()
			for _, s := range tt.steps(newTracer()) {
				require.NoError(t, g.AddStep(s))
			}

			err := g.Validate()
			var cycle *CycleError
			require.ErrorAs(t, err, &cycle)
			assert.Equal(t, tt.want, cycle.IDs)
			assert.Contains(t, err.Error(), "dependency cycle detected")
		})
	}
}

func TestGraph_Validate_UnknownReportedBeforeCycle(t *testing.T) {
	tr := newTracer()
	g := NewGraph()
	require.NoError(t, g.AddStep(tr.step("a", deps("b"))))
	require.NoError(t, g.AddStep(tr.step("b", deps("a", "missing"))))

	var unknown *UnknownDependencyError
	assert.ErrorAs(t, g.Validate(), &unknown)
}

func TestGraph_AddStep(t *testing.T) {
	tr := newTracer()

	t.Run("duplicate", func(t *testing.T) {
		g := NewGraph()
		require.NoError(t, g.AddStep(tr.step("a", nil)))
		err := g.AddStep(tr.step("a", nil))
		var dup *DuplicateStepError
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, "a", dup.StepID)
		assert.Equal(t, 1, g.Len())
	})

	t.Run("empty id", func(t *testing.T) {
		assert.Error(t, NewGraph().AddStep(tr.step("", nil)))
	})

	t.Run("no create", func(t *testing.T) {
		assert.Error(t, NewGraph().AddStep(Step{ID: "a"}))
	})

	t.Run("dependencies are copied", func(t *testing.T) {
		g := NewGraph()
		ds := []string{"x"}
		require.NoError(t, g.AddStep(tr.step("x", nil)))
		require.NoError(t, g.AddStep(tr.step("a", ds)))
		ds[0] = "mutated"

		s, ok := g.Step("a")
		require.True(t, ok)
		assert.Equal(t, []string{"x"}, s.DependsOn)
	})
}

func TestGraph_DuplicateDependencyIsIgnored(t *testing.T) {
	tr := newTracer()
	g := mustGraph(t, []Step{tr.step("a", nil), tr.step("b", deps("a", "a"))})

	order, err := g.TopologicalOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestNewGraphFromSteps_Invalid(t *testing.T) {
	tr := newTracer()
	_, err := NewGraphFromSteps([]Step{tr.step("a", deps("b")), tr.step("b", deps("a"))})
	var cycle *CycleError
	assert.ErrorAs(t, err, &cycle)
}
