package trigger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func orderEvent() *Event {
	return NewEvent("order.created", SourceAPI, map[string]any{
		"order": map[string]any{
			"status": "pending",
			"total":  42.5,
			"items": []any{
				map[string]any{"id": "item-1"},
				map[string]any{"id": "item-2"},
			},
		},
	}).WithMetadata("region", "eu-west").WithTenant("acme")
}

func TestLeafConditions(t *testing.T) {
	event := orderEvent()

	tests := []struct {
		name  string
		cond  Condition
		match bool
	}{
		{"event type equal", EventTypeIs("order.created"), true},
		{"event type different", EventTypeIs("order.deleted"), false},
		{"pattern match", EventTypeMatches(`^order\.`), true},
		{"pattern miss", EventTypeMatches(`^user\.`), false},
		{"invalid pattern is false", EventTypeMatches(`[`), false},
		{"source equal", SourceIs(SourceAPI), true},
		{"source different", SourceIs(SourceWebhook), false},
		{"payload field equal", PayloadFieldEquals("order.status", "pending"), true},
		{"payload field different value", PayloadFieldEquals("order.status", "shipped"), false},
		{"payload number equal", PayloadFieldEquals("order.total", 42.5), true},
		{"payload field in array", PayloadFieldEquals("order.items.1.id", "item-2"), true},
		{"payload index out of range", PayloadFieldExists("order.items.7"), false},
		{"payload field exists", PayloadFieldExists("order.items"), true},
		{"payload field missing", PayloadFieldExists("order.discount"), false},
		{"metadata equal", MetadataEquals("region", "eu-west"), true},
		{"metadata missing key", MetadataEquals("zone", "a"), false},
		{"tenant equal", TenantIs("acme"), true},
		{"tenant different", TenantIs("globex"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.match, tt.cond.Matches(event))
		})
	}
}

func TestTenantConditionAgainstTenantlessEvent(t *testing.T) {
	event := NewEvent("x", SourceSystem, nil)
	assert.False(t, TenantIs("acme").Matches(event))
}

func TestCombinators(t *testing.T) {
	event := orderEvent()

	t.Run("all", func(t *testing.T) {
		assert.True(t, All(
			EventTypeIs("order.created"),
			TenantIs("acme"),
		).Matches(event))

		assert.False(t, All(
			EventTypeIs("order.created"),
			TenantIs("globex"),
		).Matches(event))

		assert.True(t, All().Matches(event))
	})

	t.Run("any", func(t *testing.T) {
		assert.True(t, Any(
			EventTypeIs("order.deleted"),
			EventTypeIs("order.created"),
		).Matches(event))

		assert.False(t, Any(
			EventTypeIs("order.deleted"),
		).Matches(event))

		assert.False(t, Any().Matches(event))
	})

	t.Run("not", func(t *testing.T) {
		assert.True(t, Not(EventTypeIs("order.deleted")).Matches(event))
		assert.False(t, Not(EventTypeIs("order.created")).Matches(event))
	})

	t.Run("nested tree", func(t *testing.T) {
		cond := All(
			EventTypeMatches(`^order\.`),
			Any(
				PayloadFieldEquals("order.status", "pending"),
				PayloadFieldEquals("order.status", "confirmed"),
			),
			Not(MetadataEquals("region", "us-east")),
		)
		assert.True(t, cond.Matches(event))
	})

	t.Run("malformed not is false", func(t *testing.T) {
		assert.False(t, Condition{Type: CondNot}.Matches(event))
	})

	t.Run("unknown type is false", func(t *testing.T) {
		assert.False(t, Condition{Type: "lunar"}.Matches(event))
	})
}

func TestLookupPath(t *testing.T) {
	payload := map[string]any{
		"a": map[string]any{"b": []any{"x", map[string]any{"c": 1.0}}},
	}

	v, ok := lookupPath(payload, "a.b.0")
	assert.True(t, ok)
	assert.Equal(t, "x", v)

	v, ok = lookupPath(payload, "a.b.1.c")
	assert.True(t, ok)
	assert.Equal(t, 1.0, v)

	_, ok = lookupPath(payload, "a.b.2")
	assert.False(t, ok)

	_, ok = lookupPath(payload, "a.z")
	assert.False(t, ok)

	_, ok = lookupPath(payload, "a.b.x")
	assert.False(t, ok)
}
