package workflow

import (
	"time"

	"github.com/google/uuid"
)

// WorkflowStatus is the lifecycle state of one execution.
type WorkflowStatus string

const (
	StatusPending   WorkflowStatus = "pending"
	StatusRunning   WorkflowStatus = "running"
	StatusPaused    WorkflowStatus = "paused"
	StatusCompleted WorkflowStatus = "completed"
	StatusFailed    WorkflowStatus = "failed"
	StatusCancelled WorkflowStatus = "cancelled"
)

// IsTerminal reports whether the status admits no further transitions.
func (s WorkflowStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// StepKind distinguishes ordinary actions from human approval gates.
type StepKind string

const (
	StepKindAction   StepKind = "action"
	StepKindApproval StepKind = "approval"
)

// StepState is the terminal per-step outcome recorded in a StepResult.
type StepState string

const (
	StepStatePending   StepState = "pending"
	StepStateRunning   StepState = "running"
	StepStateCompleted StepState = "completed"
	StepStateFailed    StepState = "failed"
	StepStateSkipped   StepState = "skipped"
)

// ActionType selects the built-in actuator behavior for a step.
type ActionType string

const (
	// ActionWait sleeps for a fixed duration.
	ActionWait ActionType = "wait"
	// ActionHandler dispatches to a named handler in the registry.
	ActionHandler ActionType = "handler"
)

// StepAction is the action payload of a step. Wait and Handler are the
// built-in variants; anything else is resolved by a custom actuator.
type StepAction struct {
	Type        ActionType     `yaml:"type" json:"type"`
	WaitSeconds int            `yaml:"wait_seconds,omitempty" json:"wait_seconds,omitempty"`
	Handler     string         `yaml:"handler,omitempty" json:"handler,omitempty"`
	Params      map[string]any `yaml:"params,omitempty" json:"params,omitempty"`
}

// RetryPolicy controls re-execution of a failed step before its result
// is recorded.
type RetryPolicy struct {
	MaxAttempts    int     `yaml:"max_attempts" json:"max_attempts"`
	InitialDelayMS int     `yaml:"initial_delay_ms" json:"initial_delay_ms"`
	Multiplier     float64 `yaml:"multiplier,omitempty" json:"multiplier,omitempty"`
}

// WorkflowStep is one unit of work inside a definition.
type WorkflowStep struct {
	ID          string       `yaml:"id" json:"id"`
	Name        string       `yaml:"name" json:"name"`
	Kind        StepKind     `yaml:"kind" json:"kind"`
	Action      StepAction   `yaml:"action" json:"action"`
	DependsOn   []string     `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
	FailOnError bool         `yaml:"fail_on_error,omitempty" json:"fail_on_error,omitempty"`
	TimeoutSecs int          `yaml:"timeout_secs,omitempty" json:"timeout_secs,omitempty"`
	Retry       *RetryPolicy `yaml:"retry,omitempty" json:"retry,omitempty"`
}

// WorkflowDefinition is the immutable description handed to the engine.
type WorkflowDefinition struct {
	ID          string         `yaml:"id,omitempty" json:"id"`
	Name        string         `yaml:"name" json:"name"`
	Description string         `yaml:"description,omitempty" json:"description,omitempty"`
	Steps       []WorkflowStep `yaml:"steps" json:"steps"`
	TimeoutSecs int            `yaml:"timeout_secs,omitempty" json:"timeout_secs,omitempty"`
	Metadata    map[string]any `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// NewDefinition creates a definition with a generated ID.
func NewDefinition(name, description string) *WorkflowDefinition {
	return &WorkflowDefinition{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
	}
}

// AddStep appends a step and returns the definition for chaining.
func (d *WorkflowDefinition) AddStep(step WorkflowStep) *WorkflowDefinition {
	d.Steps = append(d.Steps, step)
	return d
}

// Validate checks the definition for structural problems. It builds a
// throwaway DAG, so every error NewDAG can report surfaces here too.
func (d *WorkflowDefinition) Validate() error {
	if d.ID == "" {
		return &InvalidDefinitionError{Reason: "workflow id is empty"}
	}
	_, err := NewDAG(d.Steps)
	return err
}

// StepResult is the terminal outcome of one step execution.
type StepResult struct {
	StepID      string         `json:"step_id"`
	State       StepState      `json:"state"`
	Error       string         `json:"error,omitempty"`
	Output      map[string]any `json:"output,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt time.Time      `json:"completed_at"`
	Attempts    int            `json:"attempts,omitempty"`
}

// WorkflowState is the full observable state of one execution.
//
// A step ID lives in at most one of the four sets, and once Status is
// terminal none of the sets change again.
type WorkflowState struct {
	ExecutionID      string                 `json:"execution_id"`
	WorkflowID       string                 `json:"workflow_id"`
	Status           WorkflowStatus         `json:"status"`
	CompletedSteps   map[string]bool        `json:"completed_steps"`
	RunningSteps     map[string]bool        `json:"running_steps"`
	FailedSteps      map[string]bool        `json:"failed_steps"`
	SkippedSteps     map[string]bool        `json:"skipped_steps"`
	StepResults      map[string]*StepResult `json:"step_results"`
	PendingApprovals []string               `json:"pending_approvals,omitempty"`
	StartedAt        *time.Time             `json:"started_at,omitempty"`
	CompletedAt      *time.Time             `json:"completed_at,omitempty"`
	Error            string                 `json:"error,omitempty"`
}

// NewWorkflowState creates a pending state for the given execution.
func NewWorkflowState(workflowID, executionID string) *WorkflowState {
	return &WorkflowState{
		ExecutionID:    executionID,
		WorkflowID:     workflowID,
		Status:         StatusPending,
		CompletedSteps: make(map[string]bool),
		RunningSteps:   make(map[string]bool),
		FailedSteps:    make(map[string]bool),
		SkippedSteps:   make(map[string]bool),
		StepResults:    make(map[string]*StepResult),
	}
}

// Progress returns the fraction of settled steps as a percentage.
func (s *WorkflowState) Progress(totalSteps int) float64 {
	if totalSteps == 0 {
		return 100.0
	}
	settled := len(s.CompletedSteps) + len(s.FailedSteps) + len(s.SkippedSteps)
	return float64(settled) / float64(totalSteps) * 100.0
}

// Clone returns a deep copy safe to hand to callers while the dispatch
// loop keeps mutating the original.
func (s *WorkflowState) Clone() *WorkflowState {
	c := &WorkflowState{
		ExecutionID:    s.ExecutionID,
		WorkflowID:     s.WorkflowID,
		Status:         s.Status,
		CompletedSteps: make(map[string]bool, len(s.CompletedSteps)),
		RunningSteps:   make(map[string]bool, len(s.RunningSteps)),
		FailedSteps:    make(map[string]bool, len(s.FailedSteps)),
		SkippedSteps:   make(map[string]bool, len(s.SkippedSteps)),
		StepResults:    make(map[string]*StepResult, len(s.StepResults)),
		Error:          s.Error,
	}
	for id := range s.CompletedSteps {
		c.CompletedSteps[id] = true
	}
	for id := range s.RunningSteps {
		c.RunningSteps[id] = true
	}
	for id := range s.FailedSteps {
		c.FailedSteps[id] = true
	}
	for id := range s.SkippedSteps {
		c.SkippedSteps[id] = true
	}
	for id, r := range s.StepResults {
		rc := *r
		c.StepResults[id] = &rc
	}
	c.PendingApprovals = append([]string(nil), s.PendingApprovals...)
	if s.StartedAt != nil {
		t := *s.StartedAt
		c.StartedAt = &t
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	return c
}

// ExecutionContext carries per-execution data into the actuator.
type ExecutionContext struct {
	WorkflowID  string         `json:"workflow_id"`
	ExecutionID string         `json:"execution_id"`
	Input       map[string]any `json:"input,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
}
