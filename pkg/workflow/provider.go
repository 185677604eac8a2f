package workflow

import (
	"fmt"
	"sort"
	"sync"
)

// DefinitionProvider resolves workflow IDs to definitions. The engine's
// schedulers and trigger pipeline depend on this instead of a concrete
// store.
type DefinitionProvider interface {
	GetDefinition(workflowID string) (*WorkflowDefinition, error)
}

// DefinitionStore is an in-memory DefinitionProvider with registration.
type DefinitionStore struct {
	mu   sync.RWMutex
	defs map[string]*WorkflowDefinition
}

func NewDefinitionStore() *DefinitionStore {
	return &DefinitionStore{defs: make(map[string]*WorkflowDefinition)}
}

// Register validates and stores a definition, replacing any previous
// definition with the same ID.
func (s *DefinitionStore) Register(def *WorkflowDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defs[def.ID] = def
	return nil
}

func (s *DefinitionStore) GetDefinition(workflowID string) (*WorkflowDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	def, ok := s.defs[workflowID]
	if !ok {
		return nil, fmt.Errorf("workflow %s: %w", workflowID, ErrNotFound)
	}
	return def, nil
}

func (s *DefinitionStore) Delete(workflowID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.defs, workflowID)
}

// List returns all registered definitions sorted by name.
func (s *DefinitionStore) List() []*WorkflowDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*WorkflowDefinition, 0, len(s.defs))
	for _, def := range s.defs {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
