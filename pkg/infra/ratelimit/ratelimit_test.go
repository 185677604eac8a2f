package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSlidingWindow(t *testing.T) {
	current := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	s := NewSlidingWindow()
	s.now = func() time.Time { return current }

	window := time.Minute

	t.Run("allows up to max", func(t *testing.T) {
		assert.True(t, s.Allow("trg", 2, window))
		s.Record("trg")
		assert.True(t, s.Allow("trg", 2, window))
		s.Record("trg")
		assert.False(t, s.Allow("trg", 2, window))
		assert.Equal(t, 2, s.Count("trg", window))
	})

	t.Run("old entries slide out", func(t *testing.T) {
		current = current.Add(61 * time.Second)
		assert.True(t, s.Allow("trg", 2, window))
		assert.Equal(t, 0, s.Count("trg", window))
	})

	t.Run("keys are independent", func(t *testing.T) {
		s.Record("a")
		assert.False(t, s.Allow("a", 1, window))
		assert.True(t, s.Allow("b", 1, window))
	})

	t.Run("partial expiry", func(t *testing.T) {
		s.Reset("p")
		s.Record("p")
		current = current.Add(30 * time.Second)
		s.Record("p")
		current = current.Add(31 * time.Second)
		// First record is outside the window, second still inside.
		assert.Equal(t, 1, s.Count("p", window))
		assert.True(t, s.Allow("p", 2, window))
	})

	t.Run("reset clears quota", func(t *testing.T) {
		s.Record("r")
		assert.False(t, s.Allow("r", 1, window))
		s.Reset("r")
		assert.True(t, s.Allow("r", 1, window))
	})
}
