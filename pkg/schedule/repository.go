package schedule

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cascadehq/cascade/pkg/workflow"
)

// ScheduleRepository persists ScheduledWorkflow entries. Implementations
// must treat an unknown ID as workflow.ErrNotFound.
type ScheduleRepository interface {
	Save(ctx context.Context, s *ScheduledWorkflow) error
	Get(ctx context.Context, id string) (*ScheduledWorkflow, error)
	List(ctx context.Context) ([]*ScheduledWorkflow, error)
	ListByWorkflow(ctx context.Context, workflowID string) ([]*ScheduledWorkflow, error)
	// ListDue returns enabled entries whose next execution is at or
	// before until.
	ListDue(ctx context.Context, until time.Time) ([]*ScheduledWorkflow, error)
	Update(ctx context.Context, s *ScheduledWorkflow) error
	Delete(ctx context.Context, id string) error
}

// InMemoryScheduleRepository keeps schedules in a map. Suitable for a
// single-process deployment or tests.
type InMemoryScheduleRepository struct {
	mu        sync.RWMutex
	schedules map[string]*ScheduledWorkflow
}

func NewInMemoryScheduleRepository() *InMemoryScheduleRepository {
	return &InMemoryScheduleRepository{schedules: make(map[string]*ScheduledWorkflow)}
}

func (r *InMemoryScheduleRepository) Save(ctx context.Context, s *ScheduledWorkflow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.schedules[s.ID] = &cp
	return nil
}

func (r *InMemoryScheduleRepository) Get(ctx context.Context, id string) (*ScheduledWorkflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schedules[id]
	if !ok {
		return nil, fmt.Errorf("schedule %s: %w", id, workflow.ErrNotFound)
	}
	cp := *s
	return &cp, nil
}

func (r *InMemoryScheduleRepository) List(ctx context.Context) ([]*ScheduledWorkflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ScheduledWorkflow, 0, len(r.schedules))
	for _, s := range r.schedules {
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *InMemoryScheduleRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*ScheduledWorkflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*ScheduledWorkflow
	for _, s := range r.schedules {
		if s.WorkflowID == workflowID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *InMemoryScheduleRepository) ListDue(ctx context.Context, until time.Time) ([]*ScheduledWorkflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*ScheduledWorkflow
	for _, s := range r.schedules {
		if s.Due(until) {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *InMemoryScheduleRepository) Update(ctx context.Context, s *ScheduledWorkflow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.schedules[s.ID]; !ok {
		return fmt.Errorf("schedule %s: %w", s.ID, workflow.ErrNotFound)
	}
	cp := *s
	r.schedules[s.ID] = &cp
	return nil
}

func (r *InMemoryScheduleRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.schedules[id]; !ok {
		return fmt.Errorf("schedule %s: %w", id, workflow.ErrNotFound)
	}
	delete(r.schedules, id)
	return nil
}
