package trigger

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventSource names where an event came from. Any other string is a
// custom source.
type EventSource string

const (
	SourceSystem       EventSource = "system"
	SourceWebhook      EventSource = "webhook"
	SourceAPI          EventSource = "api"
	SourceMessageQueue EventSource = "message_queue"
	SourceDatabase     EventSource = "database"
	SourceFileSystem   EventSource = "file_system"
)

// Event is one immutable occurrence submitted by an external producer.
type Event struct {
	ID            string            `json:"id"`
	Type          string            `json:"event_type"`
	Source        EventSource       `json:"source"`
	Payload       map[string]any    `json:"payload,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
	TenantID      string            `json:"tenant_id,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
}

// NewEvent creates an event with a generated ID and the current time.
func NewEvent(eventType string, source EventSource, payload map[string]any) *Event {
	return &Event{
		ID:        "evt_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Type:      eventType,
		Source:    source,
		Payload:   payload,
		Metadata:  make(map[string]string),
		Timestamp: time.Now().UTC(),
	}
}

// WithMetadata adds one metadata entry.
func (e *Event) WithMetadata(key, value string) *Event {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// WithTenant sets the owning tenant.
func (e *Event) WithTenant(tenantID string) *Event {
	e.TenantID = tenantID
	return e
}

// WithCorrelationID sets the correlation identifier.
func (e *Event) WithCorrelationID(correlationID string) *Event {
	e.CorrelationID = correlationID
	return e
}

// lookupPath walks a dot-separated path through nested maps and
// slices. Numeric path segments index into slices.
func lookupPath(value any, path string) (any, bool) {
	current := value
	for _, part := range strings.Split(path, ".") {
		switch v := current.(type) {
		case map[string]any:
			next, ok := v[part]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil, false
			}
			current = v[idx]
		default:
			return nil, false
		}
	}
	return current, true
}
