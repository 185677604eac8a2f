package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// StepActuator executes one step and resolves it to a terminal result.
// Expected failures are data: the actuator returns a Failed StepResult,
// not an error. A non-nil error means a collaborator fault the actuator
// could not translate into an outcome; the engine logs it and records
// the step as failed.
type StepActuator interface {
	Execute(ctx context.Context, step *WorkflowStep, execCtx *ExecutionContext) (*StepResult, error)
}

// HandlerFunc is a named step handler. The returned map becomes the
// step's output payload.
type HandlerFunc func(ctx context.Context, execCtx *ExecutionContext, params map[string]any) (map[string]any, error)

// HandlerRegistry maps handler names to implementations. Registration is
// expected at startup but is safe at any time.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: make(map[string]HandlerFunc)}
}

// Register adds or replaces a named handler.
func (r *HandlerRegistry) Register(name string, fn HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = fn
}

// Get looks up a handler by name.
func (r *HandlerRegistry) Get(name string) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.handlers[name]
	return fn, ok
}

// Names returns the registered handler names.
func (r *HandlerRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	return names
}

// DefaultActuator supports the built-in wait action and named-handler
// dispatch through a HandlerRegistry.
type DefaultActuator struct {
	registry *HandlerRegistry
}

func NewDefaultActuator(registry *HandlerRegistry) *DefaultActuator {
	if registry == nil {
		registry = NewHandlerRegistry()
	}
	return &DefaultActuator{registry: registry}
}

// Registry returns the actuator's handler registry.
func (a *DefaultActuator) Registry() *HandlerRegistry {
	return a.registry
}

func (a *DefaultActuator) Execute(ctx context.Context, step *WorkflowStep, execCtx *ExecutionContext) (*StepResult, error) {
	started := time.Now().UTC()
	result := &StepResult{
		StepID:    step.ID,
		StartedAt: started,
	}

	switch step.Action.Type {
	case ActionWait:
		d := time.Duration(step.Action.WaitSeconds) * time.Second
		select {
		case <-time.After(d):
			result.State = StepStateCompleted
		case <-ctx.Done():
			result.State = StepStateFailed
			result.Error = ctx.Err().Error()
		}

	case ActionHandler:
		fn, ok := a.registry.Get(step.Action.Handler)
		if !ok {
			return nil, fmt.Errorf("handler %q not registered", step.Action.Handler)
		}
		output, err := fn(ctx, execCtx, step.Action.Params)
		if err != nil {
			result.State = StepStateFailed
			result.Error = err.Error()
		} else {
			result.State = StepStateCompleted
			result.Output = output
		}

	default:
		return nil, fmt.Errorf("unsupported action type %q", step.Action.Type)
	}

	result.CompletedAt = time.Now().UTC()
	return result, nil
}
