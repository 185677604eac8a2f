package trigger

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cascadehq/cascade/pkg/workflow"
)

// TriggerRepository persists triggers. Implementations must treat an
// unknown ID as workflow.ErrNotFound.
type TriggerRepository interface {
	Save(ctx context.Context, t *Trigger) error
	Get(ctx context.Context, id string) (*Trigger, error)
	List(ctx context.Context) ([]*Trigger, error)
	// ListEnabled returns enabled triggers ordered by ascending
	// priority.
	ListEnabled(ctx context.Context) ([]*Trigger, error)
	ListByWorkflow(ctx context.Context, workflowID string) ([]*Trigger, error)
	Update(ctx context.Context, t *Trigger) error
	Delete(ctx context.Context, id string) error
}

// InMemoryTriggerRepository keeps triggers in a map.
type InMemoryTriggerRepository struct {
	mu       sync.RWMutex
	triggers map[string]*Trigger
}

func NewInMemoryTriggerRepository() *InMemoryTriggerRepository {
	return &InMemoryTriggerRepository{triggers: make(map[string]*Trigger)}
}

func (r *InMemoryTriggerRepository) Save(ctx context.Context, t *Trigger) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.triggers[t.ID] = &cp
	return nil
}

func (r *InMemoryTriggerRepository) Get(ctx context.Context, id string) (*Trigger, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.triggers[id]
	if !ok {
		return nil, fmt.Errorf("trigger %s: %w", id, workflow.ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

func (r *InMemoryTriggerRepository) List(ctx context.Context) ([]*Trigger, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Trigger, 0, len(r.triggers))
	for _, t := range r.triggers {
		cp := *t
		out = append(out, &cp)
	}
	sortByPriority(out)
	return out, nil
}

func (r *InMemoryTriggerRepository) ListEnabled(ctx context.Context) ([]*Trigger, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Trigger
	for _, t := range r.triggers {
		if t.Enabled {
			cp := *t
			out = append(out, &cp)
		}
	}
	sortByPriority(out)
	return out, nil
}

func (r *InMemoryTriggerRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*Trigger, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Trigger
	for _, t := range r.triggers {
		if t.WorkflowID == workflowID {
			cp := *t
			out = append(out, &cp)
		}
	}
	sortByPriority(out)
	return out, nil
}

func (r *InMemoryTriggerRepository) Update(ctx context.Context, t *Trigger) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.triggers[t.ID]; !ok {
		return fmt.Errorf("trigger %s: %w", t.ID, workflow.ErrNotFound)
	}
	cp := *t
	r.triggers[t.ID] = &cp
	return nil
}

func (r *InMemoryTriggerRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.triggers[id]; !ok {
		return fmt.Errorf("trigger %s: %w", id, workflow.ErrNotFound)
	}
	delete(r.triggers, id)
	return nil
}

func sortByPriority(triggers []*Trigger) {
	sort.SliceStable(triggers, func(i, j int) bool {
		if triggers[i].Priority != triggers[j].Priority {
			return triggers[i].Priority < triggers[j].Priority
		}
		return triggers[i].CreatedAt.Before(triggers[j].CreatedAt)
	})
}
