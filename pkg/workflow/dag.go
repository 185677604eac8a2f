package workflow

import (
	"fmt"
	"sort"
	"strings"
)

// DAG is the validated dependency graph of a workflow. It is read-only
// once built and safe to share across concurrent readers.
type DAG struct {
	steps      map[string]*WorkflowStep
	order      []string
	dependents map[string][]string
}

// NewDAG builds and validates a dependency graph from the given steps.
// It rejects empty step lists, duplicate IDs, dependencies on unknown or
// self step IDs, and cycles; the cycle error names the offending path.
func NewDAG(steps []WorkflowStep) (*DAG, error) {
	if len(steps) == 0 {
		return nil, &InvalidDefinitionError{Reason: "no steps defined"}
	}

	d := &DAG{
		steps:      make(map[string]*WorkflowStep, len(steps)),
		order:      make([]string, 0, len(steps)),
		dependents: make(map[string][]string),
	}

	for i := range steps {
		step := &steps[i]
		if step.ID == "" {
			return nil, &InvalidDefinitionError{Reason: "step has an empty id"}
		}
		if _, dup := d.steps[step.ID]; dup {
			return nil, &InvalidDefinitionError{Reason: fmt.Sprintf("duplicate step id %q", step.ID)}
		}
		d.steps[step.ID] = step
		d.order = append(d.order, step.ID)
	}

	for _, id := range d.order {
		step := d.steps[id]
		for _, dep := range step.DependsOn {
			if dep == step.ID {
				return nil, &InvalidDefinitionError{Reason: fmt.Sprintf("step %q depends on itself", step.ID)}
			}
			if _, ok := d.steps[dep]; !ok {
				return nil, &InvalidDefinitionError{
					Reason: fmt.Sprintf("step %q depends on %q which does not exist", step.ID, dep),
				}
			}
			d.dependents[dep] = append(d.dependents[dep], step.ID)
		}
	}

	if cycle := d.findCycle(); cycle != nil {
		return nil, &InvalidDefinitionError{
			Reason: fmt.Sprintf("dependency cycle: %s", strings.Join(cycle, " -> ")),
		}
	}

	return d, nil
}

// findCycle runs DFS over the dependency edges and returns the step IDs
// along the first cycle found, or nil if the graph is acyclic.
func (d *DAG) findCycle() []string {
	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	var path []string

	var dfs func(id string) bool
	dfs = func(id string) bool {
		visited[id] = true
		onStack[id] = true
		path = append(path, id)

		for _, dep := range d.steps[id].DependsOn {
			if onStack[dep] {
				path = append(path, dep)
				return true
			}
			if !visited[dep] && dfs(dep) {
				return true
			}
		}

		onStack[id] = false
		path = path[:len(path)-1]
		return false
	}

	for _, id := range d.order {
		if !visited[id] {
			path = path[:0]
			if dfs(id) {
				// Trim the path down to the cycle itself.
				start := path[len(path)-1]
				for i, id := range path {
					if id == start {
						return path[i:]
					}
				}
				return path
			}
		}
	}
	return nil
}

// ReadySteps returns the IDs of steps whose every dependency is present
// in done and which are not themselves in done. It knows nothing of
// running or failed steps; the engine filters those before dispatch.
// Results follow definition order, so output is deterministic.
func (d *DAG) ReadySteps(done map[string]bool) []string {
	var ready []string
	for _, id := range d.order {
		if done[id] {
			continue
		}
		step := d.steps[id]
		satisfied := true
		for _, dep := range step.DependsOn {
			if !done[dep] {
				satisfied = false
				break
			}
		}
		if satisfied {
			ready = append(ready, id)
		}
	}
	return ready
}

// Step returns the step definition for id.
func (d *DAG) Step(id string) (*WorkflowStep, bool) {
	step, ok := d.steps[id]
	return step, ok
}

// TopologicalSort returns all step IDs with every dependency ordered
// before its dependents (Kahn's algorithm; ties follow definition order).
func (d *DAG) TopologicalSort() []string {
	inDegree := make(map[string]int, len(d.steps))
	for _, id := range d.order {
		inDegree[id] = len(d.steps[id].DependsOn)
	}

	var queue []string
	for _, id := range d.order {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	sorted := make([]string, 0, len(d.steps))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		sorted = append(sorted, id)

		for _, dep := range d.dependents[id] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}
	return sorted
}

// Roots returns steps with no dependencies.
func (d *DAG) Roots() []string {
	var roots []string
	for _, id := range d.order {
		if len(d.steps[id].DependsOn) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// Leaves returns steps no other step depends on.
func (d *DAG) Leaves() []string {
	var leaves []string
	for _, id := range d.order {
		if len(d.dependents[id]) == 0 {
			leaves = append(leaves, id)
		}
	}
	return leaves
}

// Dependencies returns the direct dependencies of a step.
func (d *DAG) Dependencies(id string) []string {
	step, ok := d.steps[id]
	if !ok {
		return nil
	}
	return append([]string(nil), step.DependsOn...)
}

// Dependents returns the steps that directly depend on id, sorted.
func (d *DAG) Dependents(id string) []string {
	deps := append([]string(nil), d.dependents[id]...)
	sort.Strings(deps)
	return deps
}

// Len returns the number of steps in the graph.
func (d *DAG) Len() int {
	return len(d.steps)
}
