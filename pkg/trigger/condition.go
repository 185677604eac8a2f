package trigger

import (
	"reflect"
	"regexp"
)

// ConditionType selects the variant of a Condition node.
type ConditionType string

const (
	CondEventType          ConditionType = "event_type"
	CondEventTypePattern   ConditionType = "event_type_pattern"
	CondEventSource        ConditionType = "event_source"
	CondPayloadField       ConditionType = "payload_field"
	CondPayloadFieldExists ConditionType = "payload_field_exists"
	CondMetadata           ConditionType = "metadata"
	CondTenant             ConditionType = "tenant"
	CondAll                ConditionType = "all"
	CondAny                ConditionType = "any"
	CondNot                ConditionType = "not"
)

// Condition is one node of a boolean predicate tree evaluated against
// an Event. Leaves compare a single event attribute; All, Any and Not
// combine children.
type Condition struct {
	Type ConditionType `json:"type"`

	// Value holds the expected event type, source, metadata value or
	// payload value depending on Type.
	Value any `json:"value,omitempty"`

	// Path is the dot-path into the payload for payload predicates.
	Path string `json:"path,omitempty"`

	// Key is the metadata key for the metadata predicate.
	Key string `json:"key,omitempty"`

	// Pattern is the regular expression for event_type_pattern.
	Pattern string `json:"pattern,omitempty"`

	// TenantID is the expected tenant for the tenant predicate.
	TenantID string `json:"tenant_id,omitempty"`

	// Conditions are the children of All and Any.
	Conditions []Condition `json:"conditions,omitempty"`

	// Condition is the single child of Not.
	Condition *Condition `json:"condition,omitempty"`
}

// EventTypeIs matches an exact event type.
func EventTypeIs(eventType string) Condition {
	return Condition{Type: CondEventType, Value: eventType}
}

// EventTypeMatches matches the event type against a regular expression.
func EventTypeMatches(pattern string) Condition {
	return Condition{Type: CondEventTypePattern, Pattern: pattern}
}

// SourceIs matches an exact event source.
func SourceIs(source EventSource) Condition {
	return Condition{Type: CondEventSource, Value: string(source)}
}

// PayloadFieldEquals matches a payload value at a dot-path.
func PayloadFieldEquals(path string, value any) Condition {
	return Condition{Type: CondPayloadField, Path: path, Value: value}
}

// PayloadFieldExists matches when the dot-path resolves at all.
func PayloadFieldExists(path string) Condition {
	return Condition{Type: CondPayloadFieldExists, Path: path}
}

// MetadataEquals matches one metadata entry.
func MetadataEquals(key, value string) Condition {
	return Condition{Type: CondMetadata, Key: key, Value: value}
}

// TenantIs matches the event's tenant.
func TenantIs(tenantID string) Condition {
	return Condition{Type: CondTenant, TenantID: tenantID}
}

// All matches when every child matches. An empty All matches.
func All(conditions ...Condition) Condition {
	return Condition{Type: CondAll, Conditions: conditions}
}

// Any matches when at least one child matches.
func Any(conditions ...Condition) Condition {
	return Condition{Type: CondAny, Conditions: conditions}
}

// Not inverts its child.
func Not(condition Condition) Condition {
	return Condition{Type: CondNot, Condition: &condition}
}

// Matches evaluates the tree against an event. Malformed nodes (an
// invalid regex, a Not without a child) evaluate to false rather than
// erroring.
func (c Condition) Matches(event *Event) bool {
	switch c.Type {
	case CondEventType:
		expected, ok := c.Value.(string)
		return ok && event.Type == expected

	case CondEventTypePattern:
		matched, err := regexp.MatchString(c.Pattern, event.Type)
		return err == nil && matched

	case CondEventSource:
		expected, ok := c.Value.(string)
		return ok && string(event.Source) == expected

	case CondPayloadField:
		got, ok := lookupPath(event.Payload, c.Path)
		return ok && reflect.DeepEqual(got, c.Value)

	case CondPayloadFieldExists:
		_, ok := lookupPath(event.Payload, c.Path)
		return ok

	case CondMetadata:
		expected, ok := c.Value.(string)
		if !ok {
			return false
		}
		got, present := event.Metadata[c.Key]
		return present && got == expected

	case CondTenant:
		return event.TenantID != "" && event.TenantID == c.TenantID

	case CondAll:
		for _, child := range c.Conditions {
			if !child.Matches(event) {
				return false
			}
		}
		return true

	case CondAny:
		for _, child := range c.Conditions {
			if child.Matches(event) {
				return true
			}
		}
		return false

	case CondNot:
		return c.Condition != nil && !c.Condition.Matches(event)
	}

	return false
}
