package circuitbreaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCircuitBreaker(t *testing.T) {
	t.Run("trips after threshold", func(t *testing.T) {
		cb := NewCircuitBreaker(true, 3, time.Minute, time.Minute, nil)

		assert.False(t, cb.RecordFailure())
		assert.False(t, cb.RecordFailure())
		assert.True(t, cb.RecordFailure())
		assert.True(t, cb.IsOpen())
	})

	t.Run("disabled breaker never opens", func(t *testing.T) {
		cb := NewCircuitBreaker(false, 1, time.Minute, time.Minute, nil)

		assert.False(t, cb.RecordFailure())
		assert.False(t, cb.RecordFailure())
		assert.False(t, cb.IsOpen())
	})

	t.Run("closes after reset timeout", func(t *testing.T) {
		cb := NewCircuitBreaker(true, 1, time.Minute, 10*time.Millisecond, nil)

		assert.True(t, cb.RecordFailure())
		assert.True(t, cb.IsOpen())

		time.Sleep(20 * time.Millisecond)
		assert.False(t, cb.IsOpen())
	})

	t.Run("manual reset", func(t *testing.T) {
		cb := NewCircuitBreaker(true, 1, time.Minute, time.Minute, nil)

		assert.True(t, cb.RecordFailure())
		cb.Reset()
		assert.False(t, cb.IsOpen())
	})
}
