package provisioning

import (
	"errors"
	"fmt"
	"slices"
)

// Graph holds steps in an arena indexed by insertion order. Edges are stored
// as indices and resolved during Validate, so steps may be added in any order.
type Graph struct {
	steps []Step
	index map[string]int

	// Resolved by Validate.
	deps       [][]int
	dependents [][]int
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{index: make(map[string]int)}
}

// NewGraphFromSteps creates a graph from steps in the given order and validates it.
func NewGraphFromSteps(steps []Step) (*Graph, error) {
	g := NewGraph()
	for _, s := range steps {
		if err := g.AddStep(s); err != nil {
			return nil, err
		}
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// AddStep appends a step to the graph. Its insertion position is used to
// break ties in the topological order.
func (g *Graph) AddStep(step Step) error {
	if step.ID == "" {
		return errors.New("step ID must not be empty")
	}
	if step.Create == nil {
		return fmt.Errorf("step %q has no create action", step.ID)
	}
	if g.index == nil {
		g.index = make(map[string]int)
	}
	if _, exists := g.index[step.ID]; exists {
		return &DuplicateStepError{StepID: step.ID}
	}
	step.DependsOn = slices.Clone(step.DependsOn)
	g.index[step.ID] = len(g.steps)
	g.steps = append(g.steps, step)
	g.deps, g.dependents = nil, nil
	return nil
}

// Len returns the number of steps.
func (g *Graph) Len() int { return len(g.steps) }

// Step returns the step with the given ID.
func (g *Graph) Step(id string) (Step, bool) {
	i, ok := g.index[id]
	if !ok {
		return Step{}, false
	}
	return g.steps[i], true
}

// IDs returns step IDs in insertion order.
func (g *Graph) IDs() []string {
	ids := make([]string, len(g.steps))
	for i, s := range g.steps {
		ids[i] = s.ID
	}
	return ids
}

func (g *Graph) has(id string) bool {
	_, ok := g.index[id]
	return ok
}

// Validate checks that every dependency names a known step and that the
// edges are acyclic. Unknown dependencies are reported before cycles.
func (g *Graph) Validate() error {
	deps := make([][]int, len(g.steps))
	dependents := make([][]int, len(g.steps))
	for i, s := range g.steps {
		seen := make(map[int]bool, len(s.DependsOn))
		for _, d := range s.DependsOn {
			j, ok := g.index[d]
			if !ok {
				return &UnknownDependencyError{StepID: s.ID, MissingID: d}
			}
			if seen[j] {
				continue
			}
			seen[j] = true
			deps[i] = append(deps[i], j)
			dependents[j] = append(dependents[j], i)
		}
	}
	g.deps, g.dependents = deps, dependents

	if _, ok := g.kahn(); !ok {
		return &CycleError{IDs: g.findCycle()}
	}
	return nil
}

// TopologicalOrder returns step IDs such that every step appears after all of
// its dependencies. Among steps that are ready at the same time, the one
// added first comes first, so the order is stable for a given input.
func (g *Graph) TopologicalOrder() ([]string, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	order, _ := g.kahn()
	ids := make([]string, len(order))
	for i, n := range order {
		ids[i] = g.steps[n].ID
	}
	return ids, nil
}

// kahn runs Kahn's algorithm with the ready set kept sorted by insertion index.
func (g *Graph) kahn() ([]int, bool) {
	indegree := make([]int, len(g.steps))
	for i := range g.steps {
		indegree[i] = len(g.deps[i])
	}

	var ready []int
	for i, d := range indegree {
		if d == 0 {
			ready = append(ready, i)
		}
	}

	order := make([]int, 0, len(g.steps))
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)
		for _, m := range g.dependents[n] {
			indegree[m]--
			if indegree[m] == 0 {
				pos, _ := slices.BinarySearch(ready, m)
				ready = slices.Insert(ready, pos, m)
			}
		}
	}
	return order, len(order) == len(g.steps)
}

// findCycle returns one cycle as a path of IDs, first ID repeated at the end.
func (g *Graph) findCycle() []string {
	const (
		unvisited = iota
		visiting
		done
	)
	color := make([]int, len(g.steps))
	var stack []int
	var cycle []int

	var dfs func(n int) bool
	dfs = func(n int) bool {
		color[n] = visiting
		stack = append(stack, n)
		for _, d := range g.deps[n] {
			switch color[d] {
			case visiting:
				idx := slices.Index(stack, d)
				cycle = append(slices.Clone(stack[idx:]), d)
				return true
			case unvisited:
				if dfs(d) {
					return true
				}
			}
		}
		color[n] = done
		stack = stack[:len(stack)-1]
		return false
	}

	for i := range g.steps {
		if color[i] == unvisited && dfs(i) {
			break
		}
	}

	ids := make([]string, len(cycle))
	for i, n := range cycle {
		ids[i] = g.steps[n].ID
	}
	return ids
}
