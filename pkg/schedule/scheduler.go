package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cascadehq/cascade/pkg/infra/logger"
	"github.com/cascadehq/cascade/pkg/workflow"
)

const (
	defaultPollInterval = time.Minute
	defaultBufferSize   = 100
)

// ScheduledExecution is one "this schedule is due" record emitted by
// the poll loop.
type ScheduledExecution struct {
	ScheduleID    string
	WorkflowID    string
	Input         map[string]any
	ScheduledTime time.Time
}

// Scheduler polls a ScheduleRepository for due entries and emits one
// ScheduledExecution per firing onto its output channel. It does not
// start workflows itself; an ExecutionProcessor consumes the channel.
type Scheduler struct {
	repo         ScheduleRepository
	out          chan ScheduledExecution
	pollInterval time.Duration

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithPollInterval sets the poll tick.
func WithPollInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithBufferSize sets the output channel capacity.
func WithBufferSize(n int) SchedulerOption {
	return func(s *Scheduler) {
		if n > 0 {
			s.out = make(chan ScheduledExecution, n)
		}
	}
}

func NewScheduler(repo ScheduleRepository, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		repo:         repo,
		out:          make(chan ScheduledExecution, defaultBufferSize),
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Executions returns the channel due firings are emitted on.
func (s *Scheduler) Executions() <-chan ScheduledExecution {
	return s.out
}

// Create validates and stores a new schedule entry.
func (s *Scheduler) Create(ctx context.Context, sw *ScheduledWorkflow) error {
	if err := sw.Schedule.Validate(); err != nil {
		return fmt.Errorf("schedule %s: %w", sw.ID, err)
	}
	if err := s.repo.Save(ctx, sw); err != nil {
		return err
	}
	logger.Info("schedule created",
		"schedule_id", sw.ID,
		"workflow_id", sw.WorkflowID,
		"next_execution", sw.NextExecution)
	return nil
}

// Get returns a schedule entry by ID.
func (s *Scheduler) Get(ctx context.Context, id string) (*ScheduledWorkflow, error) {
	return s.repo.Get(ctx, id)
}

// List returns all schedule entries.
func (s *Scheduler) List(ctx context.Context) ([]*ScheduledWorkflow, error) {
	return s.repo.List(ctx)
}

// Enable turns a schedule on and recomputes its next fire time.
func (s *Scheduler) Enable(ctx context.Context, id string) error {
	sw, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	sw.Enabled = true
	sw.UpdateNextExecution(time.Now().UTC())
	if err := s.repo.Update(ctx, sw); err != nil {
		return err
	}
	logger.Info("schedule enabled", "schedule_id", id)
	return nil
}

// Disable turns a schedule off. Its entry is kept.
func (s *Scheduler) Disable(ctx context.Context, id string) error {
	sw, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	sw.Enabled = false
	if err := s.repo.Update(ctx, sw); err != nil {
		return err
	}
	logger.Info("schedule disabled", "schedule_id", id)
	return nil
}

// Delete removes a schedule entry.
func (s *Scheduler) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	logger.Info("schedule deleted", "schedule_id", id)
	return nil
}

// Start launches the poll loop. It returns immediately; the loop runs
// until Stop is called or ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		logger.Warn("scheduler already running")
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.mu.Unlock()

	logger.Info("scheduler started", "poll_interval", s.pollInterval.String())

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := s.checkDue(ctx); err != nil {
					logger.Error("schedule poll failed", "error", err)
				}
			case <-s.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the poll loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	done := s.done
	s.mu.Unlock()

	<-done
	logger.Info("scheduler stopped")
}

// checkDue emits one execution per due entry and advances its next
// fire time. A full output channel skips the entry for this cycle
// without advancing it, so it fires on a later tick instead of being
// lost.
func (s *Scheduler) checkDue(ctx context.Context) error {
	now := time.Now().UTC()
	due, err := s.repo.ListDue(ctx, now)
	if err != nil {
		return err
	}

	logger.Debug("checking due schedules", "count", len(due))

	for _, sw := range due {
		scheduledTime := now
		if sw.NextExecution != nil {
			scheduledTime = *sw.NextExecution
		}

		exec := ScheduledExecution{
			ScheduleID:    sw.ID,
			WorkflowID:    sw.WorkflowID,
			Input:         sw.Input,
			ScheduledTime: scheduledTime,
		}

		select {
		case s.out <- exec:
		default:
			logger.Warn("execution channel full, deferring schedule",
				"schedule_id", sw.ID)
			continue
		}

		sw.LastExecution = &now
		sw.UpdateNextExecution(now)
		if err := s.repo.Update(ctx, sw); err != nil {
			logger.Error("failed to update schedule after firing",
				"schedule_id", sw.ID,
				"error", err)
			continue
		}

		logger.Info("schedule fired",
			"schedule_id", sw.ID,
			"workflow_id", sw.WorkflowID,
			"next_execution", sw.NextExecution)
	}

	return nil
}

// ExecutionProcessor consumes ScheduledExecution records, resolves the
// target definition and starts the workflow on the engine. Failures
// are logged and the record is dropped; the processor never stops on a
// bad entry.
type ExecutionProcessor struct {
	executions <-chan ScheduledExecution
	engine     *workflow.Engine
	provider   workflow.DefinitionProvider
}

func NewExecutionProcessor(executions <-chan ScheduledExecution, engine *workflow.Engine, provider workflow.DefinitionProvider) *ExecutionProcessor {
	return &ExecutionProcessor{
		executions: executions,
		engine:     engine,
		provider:   provider,
	}
}

// Run consumes the channel until it is closed or ctx is done.
func (p *ExecutionProcessor) Run(ctx context.Context) {
	logger.Info("scheduled execution processor started")

	for {
		select {
		case exec, ok := <-p.executions:
			if !ok {
				logger.Info("scheduled execution processor stopped")
				return
			}
			p.process(ctx, exec)
		case <-ctx.Done():
			logger.Info("scheduled execution processor stopped")
			return
		}
	}
}

func (p *ExecutionProcessor) process(ctx context.Context, exec ScheduledExecution) {
	def, err := p.provider.GetDefinition(exec.WorkflowID)
	if err != nil {
		logger.Error("workflow definition not found for schedule",
			"schedule_id", exec.ScheduleID,
			"workflow_id", exec.WorkflowID,
			"error", err)
		return
	}

	executionID, err := p.engine.ExecuteWorkflow(ctx, def, exec.Input)
	if err != nil {
		logger.Error("failed to start scheduled workflow",
			"schedule_id", exec.ScheduleID,
			"error", err)
		return
	}

	logger.Info("scheduled workflow started",
		"schedule_id", exec.ScheduleID,
		"execution_id", executionID)
}
