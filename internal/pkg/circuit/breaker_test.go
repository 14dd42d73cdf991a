package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreaker(t *testing.T) {
	t.Run("OpensAtThreshold", func(t *testing.T) {
		b := NewBreaker("test", 3, time.Minute)
		for i := 0; i < 2; i++ {
			b.RecordFailure()
			assert.True(t, b.Allow())
		}
		b.RecordFailure()
		assert.False(t, b.Allow())
	})

	t.Run("SuccessResetsFailureCount", func(t *testing.T) {
		b := NewBreaker("test", 3, time.Minute)
		b.RecordFailure()
		b.RecordFailure()
		b.RecordSuccess()
		b.RecordFailure()
		b.RecordFailure()
		assert.True(t, b.Allow())
	})

	t.Run("HalfOpenProbeAfterCooldown", func(t *testing.T) {
		b := NewBreaker("test", 1, 30*time.Millisecond)
		b.RecordFailure()
		assert.False(t, b.Allow())

		time.Sleep(50 * time.Millisecond)
		// 冷却期过后放行一次探测
		assert.True(t, b.Allow())
	})

	t.Run("HalfOpenFailureReopens", func(t *testing.T) {
		b := NewBreaker("test", 1, 30*time.Millisecond)
		b.RecordFailure()
		time.Sleep(50 * time.Millisecond)
		assert.True(t, b.Allow())
		b.RecordFailure()
		assert.False(t, b.Allow())
	})

	t.Run("HalfOpenSuccessCloses", func(t *testing.T) {
		b := NewBreaker("test", 1, 30*time.Millisecond)
		b.RecordFailure()
		time.Sleep(50 * time.Millisecond)
		assert.True(t, b.Allow())
		b.RecordSuccess()
		assert.True(t, b.Allow())
		// 关闭后需要重新累计到阈值才再次熔断
		assert.True(t, b.Allow())
	})
}
