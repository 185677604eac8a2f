package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cascadehq/cascade/pkg/infra/logger"
)

const (
	defaultPollInterval = 100 * time.Millisecond
	defaultApprovalPoll = 250 * time.Millisecond
	defaultRetryDelay   = 500 * time.Millisecond
)

// Engine owns the per-execution state machines and drives their
// dispatch loops. One loop goroutine runs per execution; each ready
// step is dispatched as its own goroutine with no global ceiling.
type Engine struct {
	mu         sync.RWMutex
	executions map[string]*execution

	gate         *ApprovalGate
	actuator     StepActuator
	pollInterval time.Duration
	approvalPoll time.Duration
}

// execution is the registry entry for one run. Its mutex guards the
// state record; the engine map lock only guards registry membership, so
// unrelated executions never contend.
type execution struct {
	mu        sync.Mutex
	def       *WorkflowDefinition
	dag       *DAG
	state     *WorkflowState
	execCtx   *ExecutionContext
	cancelled bool
	// notify wakes the dispatch loop ahead of its poll tick.
	notify chan struct{}
}

func (x *execution) wake() {
	select {
	case x.notify <- struct{}{}:
	default:
	}
}

// Option configures an Engine.
type Option func(*Engine)

// WithActuator replaces the default step actuator.
func WithActuator(a StepActuator) Option {
	return func(e *Engine) { e.actuator = a }
}

// WithPollInterval sets the dispatch loop's fallback tick.
func WithPollInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.pollInterval = d
		}
	}
}

// WithApprovalGate replaces the default approval gate.
func WithApprovalGate(g *ApprovalGate) Option {
	return func(e *Engine) { e.gate = g }
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		executions:   make(map[string]*execution),
		gate:         NewApprovalGate(),
		actuator:     NewDefaultActuator(nil),
		pollInterval: defaultPollInterval,
		approvalPoll: defaultApprovalPoll,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ApprovalGate returns the engine's approval gate.
func (e *Engine) ApprovalGate() *ApprovalGate {
	return e.gate
}

// CreateWorkflow validates a definition and returns its ID.
func (e *Engine) CreateWorkflow(def *WorkflowDefinition) (string, error) {
	if err := def.Validate(); err != nil {
		return "", err
	}

	logger.Info("workflow created",
		"workflow_id", def.ID,
		"name", def.Name,
		"step_count", len(def.Steps))
	return def.ID, nil
}

// ExecuteWorkflow validates the definition, registers a new execution
// and starts its dispatch loop asynchronously. The returned execution
// ID can be polled with GetStatus immediately.
func (e *Engine) ExecuteWorkflow(ctx context.Context, def *WorkflowDefinition, input map[string]any) (string, error) {
	if err := def.Validate(); err != nil {
		return "", err
	}

	dag, err := NewDAG(def.Steps)
	if err != nil {
		return "", err
	}

	executionID := uuid.NewString()
	now := time.Now().UTC()

	state := NewWorkflowState(def.ID, executionID)
	state.Status = StatusRunning
	state.StartedAt = &now

	x := &execution{
		def:   def,
		dag:   dag,
		state: state,
		execCtx: &ExecutionContext{
			WorkflowID:  def.ID,
			ExecutionID: executionID,
			Input:       input,
			StartedAt:   now,
		},
		notify: make(chan struct{}, 1),
	}

	e.mu.Lock()
	e.executions[executionID] = x
	e.mu.Unlock()

	logger.Info("workflow execution started",
		"workflow_id", def.ID,
		"execution_id", executionID)

	go e.runLoop(executionID)

	return executionID, nil
}

// GetStatus returns a snapshot of the execution's state.
func (e *Engine) GetStatus(executionID string) (*WorkflowState, error) {
	x := e.lookup(executionID)
	if x == nil {
		return nil, fmt.Errorf("execution %s: %w", executionID, ErrNotFound)
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.state.Clone(), nil
}

// PauseWorkflow moves a running execution to Paused. The loop stops
// admitting steps until resumed; in-flight steps keep running.
func (e *Engine) PauseWorkflow(executionID string) error {
	x := e.lookup(executionID)
	if x == nil {
		return fmt.Errorf("execution %s: %w", executionID, ErrNotFound)
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.state.Status != StatusRunning {
		return fmt.Errorf("execution %s: %w", executionID, ErrNotRunning)
	}
	x.state.Status = StatusPaused
	logger.Info("workflow paused", "execution_id", executionID)
	return nil
}

// ResumeWorkflow moves a paused execution back to Running.
func (e *Engine) ResumeWorkflow(executionID string) error {
	x := e.lookup(executionID)
	if x == nil {
		return fmt.Errorf("execution %s: %w", executionID, ErrNotFound)
	}
	x.mu.Lock()
	if x.state.Status != StatusPaused {
		x.mu.Unlock()
		return fmt.Errorf("execution %s: %w", executionID, ErrNotPaused)
	}
	x.state.Status = StatusRunning
	x.mu.Unlock()

	x.wake()
	logger.Info("workflow resumed", "execution_id", executionID)
	return nil
}

// CancelWorkflow requests cooperative cancellation. No new steps are
// dispatched once the loop observes the flag; in-flight steps are not
// interrupted.
func (e *Engine) CancelWorkflow(executionID string) error {
	x := e.lookup(executionID)
	if x == nil {
		return fmt.Errorf("execution %s: %w", executionID, ErrNotFound)
	}
	x.mu.Lock()
	x.cancelled = true
	x.mu.Unlock()

	x.wake()
	logger.Info("workflow cancel requested", "execution_id", executionID)
	return nil
}

// WaitForTerminal polls until the execution reaches a terminal status
// or ctx is done, then returns the final state snapshot.
func (e *Engine) WaitForTerminal(ctx context.Context, executionID string, pollInterval time.Duration) (*WorkflowState, error) {
	if pollInterval <= 0 {
		pollInterval = e.pollInterval
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		state, err := e.GetStatus(executionID)
		if err != nil {
			return nil, err
		}
		if state.Status.IsTerminal() {
			return state, nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return state, ctx.Err()
		}
	}
}

func (e *Engine) lookup(executionID string) *execution {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.executions[executionID]
}

// runLoop is the dispatch loop for one execution. Each iteration
// selects dispatchable steps and marks them running under the same
// lock, so a step can never be dispatched twice.
func (e *Engine) runLoop(executionID string) {
	x := e.lookup(executionID)
	if x == nil {
		return
	}

	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		x.mu.Lock()

		if x.state.Status.IsTerminal() {
			x.mu.Unlock()
			return
		}

		if x.cancelled {
			e.finishLocked(x, StatusCancelled, "")
			x.mu.Unlock()
			return
		}

		if x.state.Status == StatusPaused {
			x.mu.Unlock()
			e.waitWake(x, ticker)
			continue
		}

		done := make(map[string]bool, len(x.state.CompletedSteps)+len(x.state.SkippedSteps))
		for id := range x.state.CompletedSteps {
			done[id] = true
		}
		for id := range x.state.SkippedSteps {
			done[id] = true
		}

		var toRun []string
		for _, id := range x.dag.ReadySteps(done) {
			if x.state.RunningSteps[id] || x.state.FailedSteps[id] {
				continue
			}
			toRun = append(toRun, id)
		}

		if len(toRun) == 0 {
			if len(x.state.RunningSteps) == 0 {
				e.finishLocked(x, StatusCompleted, "")
				x.mu.Unlock()
				return
			}
			x.mu.Unlock()
			e.waitWake(x, ticker)
			continue
		}

		for _, id := range toRun {
			x.state.RunningSteps[id] = true
		}
		x.mu.Unlock()

		for _, id := range toRun {
			go e.executeStep(executionID, id)
		}

		e.waitWake(x, ticker)
	}
}

// waitWake blocks until the fallback tick fires or a state change
// wakes the loop early.
func (e *Engine) waitWake(x *execution, ticker *time.Ticker) {
	select {
	case <-ticker.C:
	case <-x.notify:
	}
}

// finishLocked records a terminal status. Caller holds x.mu.
func (e *Engine) finishLocked(x *execution, status WorkflowStatus, errMsg string) {
	now := time.Now().UTC()
	x.state.Status = status
	x.state.CompletedAt = &now
	if errMsg != "" {
		x.state.Error = errMsg
	}
	logger.Info("workflow finished",
		"execution_id", x.state.ExecutionID,
		"status", string(status))
}

// executeStep runs one step to its terminal result and applies it.
func (e *Engine) executeStep(executionID, stepID string) {
	x := e.lookup(executionID)
	if x == nil {
		return
	}

	step, ok := x.dag.Step(stepID)
	if !ok {
		logger.Error("step not in graph", "execution_id", executionID, "step_id", stepID)
		return
	}

	ctx := context.Background()
	if step.TimeoutSecs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(step.TimeoutSecs)*time.Second)
		defer cancel()
	}

	var result *StepResult
	if step.Kind == StepKindApproval {
		result = e.runApprovalStep(ctx, x, step)
	} else {
		result = e.runActionStep(ctx, x, step)
	}

	e.applyResult(x, step, result)
}

// runActionStep invokes the actuator, retrying failed attempts with
// exponential backoff when the step carries a retry policy. Collaborator
// errors are logged and recorded as a Failed result.
func (e *Engine) runActionStep(ctx context.Context, x *execution, step *WorkflowStep) *StepResult {
	maxAttempts := 1
	delay := defaultRetryDelay
	multiplier := 2.0
	if step.Retry != nil {
		if step.Retry.MaxAttempts > 1 {
			maxAttempts = step.Retry.MaxAttempts
		}
		if step.Retry.InitialDelayMS > 0 {
			delay = time.Duration(step.Retry.InitialDelayMS) * time.Millisecond
		}
		if step.Retry.Multiplier > 1 {
			multiplier = step.Retry.Multiplier
		}
	}

	var result *StepResult
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		res, err := e.actuator.Execute(ctx, step, x.execCtx)
		if err != nil {
			logger.Error("step actuation error",
				"execution_id", x.state.ExecutionID,
				"step_id", step.ID,
				"error", err)
			res = failedResult(step.ID, err.Error())
		}
		res.Attempts = attempt
		result = res

		if res.State != StepStateFailed || attempt == maxAttempts {
			break
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			result = failedResult(step.ID, ctx.Err().Error())
			result.Attempts = attempt
			return result
		}
		delay = time.Duration(float64(delay) * multiplier)
	}
	return result
}

// runApprovalStep raises a gate request for the step and blocks until
// it is resolved or expires. Expiry is a Failed outcome; an
// administratively cancelled request skips the step.
func (e *Engine) runApprovalStep(ctx context.Context, x *execution, step *WorkflowStep) *StepResult {
	started := time.Now().UTC()

	title := step.Name
	if title == "" {
		title = step.ID
	}
	req := NewApprovalRequest(x.def.ID, x.state.ExecutionID, step.ID, title, "engine", step.TimeoutSecs)
	e.gate.Request(req)

	x.mu.Lock()
	x.state.PendingApprovals = append(x.state.PendingApprovals, req.ID)
	x.mu.Unlock()

	status, err := e.gate.WaitForDecision(ctx, req.ID, e.approvalPoll)

	x.mu.Lock()
	x.state.PendingApprovals = removeString(x.state.PendingApprovals, req.ID)
	x.mu.Unlock()

	result := &StepResult{
		StepID:    step.ID,
		StartedAt: started,
	}
	switch {
	case err != nil:
		result.State = StepStateFailed
		result.Error = fmt.Sprintf("approval %s timed out: %v", req.ID, err)
	case status == ApprovalApproved:
		result.State = StepStateCompleted
	case status == ApprovalDenied:
		result.State = StepStateFailed
		result.Error = fmt.Sprintf("approval %s denied", req.ID)
	case status == ApprovalTimeout:
		result.State = StepStateFailed
		result.Error = fmt.Sprintf("approval %s timed out", req.ID)
	case status == ApprovalCancelled:
		result.State = StepStateSkipped
	default:
		result.State = StepStateFailed
		result.Error = fmt.Sprintf("approval %s resolved to unexpected status %s", req.ID, status)
	}
	result.CompletedAt = time.Now().UTC()
	return result
}

// applyResult moves the step out of the running set into its terminal
// set. Results arriving after the execution reached a terminal status
// are discarded so the state invariant holds.
func (e *Engine) applyResult(x *execution, step *WorkflowStep, result *StepResult) {
	x.mu.Lock()
	defer func() {
		x.mu.Unlock()
		x.wake()
	}()

	if x.state.Status.IsTerminal() {
		logger.Debug("discarding step result for finished execution",
			"execution_id", x.state.ExecutionID,
			"step_id", step.ID)
		return
	}

	delete(x.state.RunningSteps, step.ID)

	switch result.State {
	case StepStateCompleted:
		x.state.CompletedSteps[step.ID] = true
	case StepStateFailed:
		x.state.FailedSteps[step.ID] = true
		if step.FailOnError {
			msg := result.Error
			if msg == "" {
				msg = fmt.Sprintf("step %s failed", step.ID)
			}
			e.finishLocked(x, StatusFailed, msg)
		}
	case StepStateSkipped:
		x.state.SkippedSteps[step.ID] = true
	}

	x.state.StepResults[step.ID] = result
}

func failedResult(stepID, errMsg string) *StepResult {
	now := time.Now().UTC()
	return &StepResult{
		StepID:      stepID,
		State:       StepStateFailed,
		Error:       errMsg,
		StartedAt:   now,
		CompletedAt: now,
	}
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
