package trigger

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// RateLimit caps how often a trigger may fire: at most MaxExecutions
// successful starts within any rolling window of WindowSeconds.
type RateLimit struct {
	MaxExecutions int `json:"max_executions"`
	WindowSeconds int `json:"window_seconds"`
}

// Trigger binds a condition tree to a target workflow. Matching events
// start the workflow with an input derived from the event.
type Trigger struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	WorkflowID string    `json:"workflow_id"`
	Condition  Condition `json:"condition"`
	Enabled    bool      `json:"enabled"`

	// InputMapping maps payload dot-paths to input field names.
	InputMapping map[string]string `json:"input_mapping,omitempty"`
	// StaticInputs seed the derived input before mapped values overlay.
	StaticInputs map[string]any `json:"static_inputs,omitempty"`

	RateLimit *RateLimit `json:"rate_limit,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	TenantID  string     `json:"tenant_id,omitempty"`
	// Priority orders evaluation; lower fires first.
	Priority int      `json:"priority"`
	Tags     []string `json:"tags,omitempty"`
}

// NewTrigger creates an enabled trigger with default priority.
func NewTrigger(name, workflowID string, condition Condition) *Trigger {
	return &Trigger{
		ID:           "trg_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Name:         name,
		WorkflowID:   workflowID,
		Condition:    condition,
		Enabled:      true,
		InputMapping: make(map[string]string),
		CreatedAt:    time.Now().UTC(),
		Priority:     100,
	}
}

// WithInputMapping maps one payload dot-path to an input field.
func (t *Trigger) WithInputMapping(eventPath, inputName string) *Trigger {
	if t.InputMapping == nil {
		t.InputMapping = make(map[string]string)
	}
	t.InputMapping[eventPath] = inputName
	return t
}

// WithStaticInputs sets the static input seed.
func (t *Trigger) WithStaticInputs(inputs map[string]any) *Trigger {
	t.StaticInputs = inputs
	return t
}

// WithRateLimit caps firings to max per rolling window.
func (t *Trigger) WithRateLimit(maxExecutions, windowSeconds int) *Trigger {
	t.RateLimit = &RateLimit{MaxExecutions: maxExecutions, WindowSeconds: windowSeconds}
	return t
}

// WithTenant scopes the trigger to one tenant's events.
func (t *Trigger) WithTenant(tenantID string) *Trigger {
	t.TenantID = tenantID
	return t
}

// WithPriority sets the evaluation priority.
func (t *Trigger) WithPriority(priority int) *Trigger {
	t.Priority = priority
	return t
}

// WithTags sets the tag list.
func (t *Trigger) WithTags(tags ...string) *Trigger {
	t.Tags = tags
	return t
}

// BuildInput derives the workflow input for an event: static inputs
// first, mapped payload values overlaid, then bookkeeping fields for
// tracing the execution back to its event.
func (t *Trigger) BuildInput(event *Event) map[string]any {
	input := make(map[string]any, len(t.StaticInputs)+len(t.InputMapping)+3)
	for k, v := range t.StaticInputs {
		input[k] = v
	}

	for eventPath, inputName := range t.InputMapping {
		if value, ok := lookupPath(event.Payload, eventPath); ok {
			input[inputName] = value
		}
	}

	input["_event_id"] = event.ID
	input["_event_type"] = event.Type
	if event.CorrelationID != "" {
		input["_correlation_id"] = event.CorrelationID
	}

	return input
}
