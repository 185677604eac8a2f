package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func step(id string, deps ...string) WorkflowStep {
	return WorkflowStep{
		ID:        id,
		Name:      id,
		Kind:      StepKindAction,
		Action:    StepAction{Type: ActionWait, WaitSeconds: 0},
		DependsOn: deps,
	}
}

func TestNewDAGValidation(t *testing.T) {
	tests := []struct {
		name    string
		steps   []WorkflowStep
		wantErr string
	}{
		{
			name:    "empty step list",
			steps:   nil,
			wantErr: "no steps defined",
		},
		{
			name:    "empty step id",
			steps:   []WorkflowStep{step("")},
			wantErr: "empty id",
		},
		{
			name:    "duplicate step id",
			steps:   []WorkflowStep{step("a"), step("a")},
			wantErr: "duplicate step id",
		},
		{
			name:    "self dependency",
			steps:   []WorkflowStep{step("a", "a")},
			wantErr: "depends on itself",
		},
		{
			name:    "dangling dependency",
			steps:   []WorkflowStep{step("a", "ghost")},
			wantErr: "does not exist",
		},
		{
			name:    "two step cycle",
			steps:   []WorkflowStep{step("a", "b"), step("b", "a")},
			wantErr: "dependency cycle",
		},
		{
			name:  "valid diamond",
			steps: []WorkflowStep{step("a"), step("b", "a"), step("c", "a"), step("d", "b", "c")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dag, err := NewDAG(tt.steps)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.True(t, IsInvalidDefinition(err))
				assert.Nil(t, dag)
			} else {
				require.NoError(t, err)
				assert.Equal(t, len(tt.steps), dag.Len())
			}
		})
	}
}

func TestDAGCycleErrorNamesPath(t *testing.T) {
	_, err := NewDAG([]WorkflowStep{step("a", "c"), step("b", "a"), step("c", "b")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), " -> ")
}

func TestReadySteps(t *testing.T) {
	dag, err := NewDAG([]WorkflowStep{
		step("a"),
		step("b", "a"),
		step("c", "a"),
		step("d", "b", "c"),
	})
	require.NoError(t, err)

	t.Run("roots ready at start", func(t *testing.T) {
		assert.Equal(t, []string{"a"}, dag.ReadySteps(map[string]bool{}))
	})

	t.Run("parallel branch after root", func(t *testing.T) {
		ready := dag.ReadySteps(map[string]bool{"a": true})
		assert.Equal(t, []string{"b", "c"}, ready)
	})

	t.Run("join waits for both branches", func(t *testing.T) {
		ready := dag.ReadySteps(map[string]bool{"a": true, "b": true})
		assert.Equal(t, []string{"c"}, ready)

		ready = dag.ReadySteps(map[string]bool{"a": true, "b": true, "c": true})
		assert.Equal(t, []string{"d"}, ready)
	})

	t.Run("all done means empty frontier", func(t *testing.T) {
		ready := dag.ReadySteps(map[string]bool{"a": true, "b": true, "c": true, "d": true})
		assert.Empty(t, ready)
	})

	t.Run("skipped dependency satisfies dependents", func(t *testing.T) {
		// The done set is the union of completed and skipped steps, so a
		// skipped step unblocks its dependents just like a completed one.
		ready := dag.ReadySteps(map[string]bool{"a": true, "b": true, "c": true})
		assert.Equal(t, []string{"d"}, ready)
	})
}

func TestTopologicalSort(t *testing.T) {
	dag, err := NewDAG([]WorkflowStep{
		step("d", "b", "c"),
		step("b", "a"),
		step("c", "a"),
		step("a"),
	})
	require.NoError(t, err)

	sorted := dag.TopologicalSort()
	require.Len(t, sorted, 4)

	pos := make(map[string]int)
	for i, id := range sorted {
		pos[id] = i
	}
	assert.Less(t, pos["a"], pos["b"])
	assert.Less(t, pos["a"], pos["c"])
	assert.Less(t, pos["b"], pos["d"])
	assert.Less(t, pos["c"], pos["d"])
}

func TestDAGShape(t *testing.T) {
	dag, err := NewDAG([]WorkflowStep{
		step("a"),
		step("b", "a"),
		step("c", "a"),
		step("d", "b", "c"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, dag.Roots())
	assert.Equal(t, []string{"d"}, dag.Leaves())
	assert.Equal(t, []string{"b", "c"}, dag.Dependents("a"))
	assert.Equal(t, []string{"b", "c"}, dag.Dependencies("d"))
	assert.Nil(t, dag.Dependencies("ghost"))
}
