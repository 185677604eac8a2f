package trigger

import (
	"context"
	"time"

	"github.com/cascadehq/cascade/pkg/infra/logger"
	"github.com/cascadehq/cascade/pkg/infra/ratelimit"
	"github.com/cascadehq/cascade/pkg/workflow"
)

// Manager evaluates incoming events against the registered triggers
// and starts matching workflows.
type Manager struct {
	repo     TriggerRepository
	engine   *workflow.Engine
	provider workflow.DefinitionProvider
	limiter  *ratelimit.SlidingWindow
}

func NewManager(repo TriggerRepository, engine *workflow.Engine, provider workflow.DefinitionProvider) *Manager {
	return &Manager{
		repo:     repo,
		engine:   engine,
		provider: provider,
		limiter:  ratelimit.NewSlidingWindow(),
	}
}

// Create stores a new trigger.
func (m *Manager) Create(ctx context.Context, t *Trigger) error {
	if err := m.repo.Save(ctx, t); err != nil {
		return err
	}
	logger.Info("trigger created",
		"trigger_id", t.ID,
		"workflow_id", t.WorkflowID,
		"priority", t.Priority)
	return nil
}

// Get returns a trigger by ID.
func (m *Manager) Get(ctx context.Context, id string) (*Trigger, error) {
	return m.repo.Get(ctx, id)
}

// List returns all triggers.
func (m *Manager) List(ctx context.Context) ([]*Trigger, error) {
	return m.repo.List(ctx)
}

// Enable turns a trigger on.
func (m *Manager) Enable(ctx context.Context, id string) error {
	t, err := m.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	t.Enabled = true
	if err := m.repo.Update(ctx, t); err != nil {
		return err
	}
	logger.Info("trigger enabled", "trigger_id", id)
	return nil
}

// Disable turns a trigger off.
func (m *Manager) Disable(ctx context.Context, id string) error {
	t, err := m.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	t.Enabled = false
	if err := m.repo.Update(ctx, t); err != nil {
		return err
	}
	logger.Info("trigger disabled", "trigger_id", id)
	return nil
}

// Delete removes a trigger and its rate-limit history.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if err := m.repo.Delete(ctx, id); err != nil {
		return err
	}
	m.limiter.Reset(id)
	logger.Info("trigger deleted", "trigger_id", id)
	return nil
}

// ProcessEvent evaluates every enabled trigger against the event, in
// priority order, and returns the execution IDs it started. A trigger
// that cannot fire (tenant mismatch, condition miss, rate limit, a
// missing definition, an engine refusal) is skipped; it never fails
// the whole batch.
func (m *Manager) ProcessEvent(ctx context.Context, event *Event) ([]string, error) {
	triggers, err := m.repo.ListEnabled(ctx)
	if err != nil {
		return nil, err
	}

	logger.Debug("processing event",
		"event_id", event.ID,
		"event_type", event.Type,
		"trigger_count", len(triggers))

	var started []string
	for _, t := range triggers {
		if t.TenantID != "" && t.TenantID != event.TenantID {
			continue
		}
		if !t.Condition.Matches(event) {
			continue
		}
		if t.RateLimit != nil {
			window := time.Duration(t.RateLimit.WindowSeconds) * time.Second
			if !m.limiter.Allow(t.ID, t.RateLimit.MaxExecutions, window) {
				logger.Warn("trigger rate limited",
					"trigger_id", t.ID,
					"event_id", event.ID)
				continue
			}
		}

		input := t.BuildInput(event)

		def, err := m.provider.GetDefinition(t.WorkflowID)
		if err != nil {
			logger.Error("workflow definition not found for trigger",
				"trigger_id", t.ID,
				"workflow_id", t.WorkflowID,
				"error", err)
			continue
		}

		executionID, err := m.engine.ExecuteWorkflow(ctx, def, input)
		if err != nil {
			logger.Error("failed to start triggered workflow",
				"trigger_id", t.ID,
				"error", err)
			continue
		}

		// Only successful starts consume rate-limit quota.
		if t.RateLimit != nil {
			m.limiter.Record(t.ID)
		}

		logger.Info("workflow triggered by event",
			"trigger_id", t.ID,
			"workflow_id", t.WorkflowID,
			"execution_id", executionID,
			"event_id", event.ID)
		started = append(started, executionID)
	}

	return started, nil
}
