package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterAdmitsUpToMax(t *testing.T) {
	l := New(time.Minute, 30)

	for i := 1; i <= 30; i++ {
		allowed, calls, _ := l.CheckAndRecord("s1", "get_market_data")
		require.True(t, allowed, "call %d", i)
		assert.Equal(t, i, calls)
	}

	allowed, calls, retryAfter := l.CheckAndRecord("s1", "get_market_data")
	assert.False(t, allowed)
	assert.Equal(t, 30, calls)
	assert.GreaterOrEqual(t, retryAfter, time.Second)
	assert.LessOrEqual(t, retryAfter, time.Minute)
}

func TestLimiterDenialDoesNotConsume(t *testing.T) {
	l := New(time.Minute, 2)

	l.CheckAndRecord("s1", "op")
	l.CheckAndRecord("s1", "op")
	for i := 0; i < 5; i++ {
		allowed, calls, _ := l.CheckAndRecord("s1", "op")
		assert.False(t, allowed)
		assert.Equal(t, 2, calls, "denied calls must not grow the window")
	}
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	l := New(time.Minute, 1)

	allowed, _, _ := l.CheckAndRecord("s1", "op")
	require.True(t, allowed)
	allowed, _, _ = l.CheckAndRecord("s1", "op")
	require.False(t, allowed)

	// a different session is unaffected
	allowed, _, _ = l.CheckAndRecord("s2", "op")
	assert.True(t, allowed)

	// and so is a different operation for the same session
	allowed, _, _ = l.CheckAndRecord("s1", "other_op")
	assert.True(t, allowed)
}

func TestLimiterWindowSlides(t *testing.T) {
	l := New(30*time.Millisecond, 1)

	allowed, _, _ := l.CheckAndRecord("s1", "op")
	require.True(t, allowed)
	allowed, _, _ = l.CheckAndRecord("s1", "op")
	require.False(t, allowed)

	time.Sleep(40 * time.Millisecond)

	allowed, calls, _ := l.CheckAndRecord("s1", "op")
	assert.True(t, allowed, "old timestamps must fall out of the window")
	assert.Equal(t, 1, calls)
}

func TestLimiterCountAndReset(t *testing.T) {
	l := New(time.Minute, 10)

	l.CheckAndRecord("s1", "op")
	l.CheckAndRecord("s1", "op")
	assert.Equal(t, 2, l.Count("s1", "op"))

	l.Reset("s1", "op")
	assert.Equal(t, 0, l.Count("s1", "op"))

	allowed, calls, _ := l.CheckAndRecord("s1", "op")
	assert.True(t, allowed)
	assert.Equal(t, 1, calls)
}

func TestLimiterConcurrentAdmission(t *testing.T) {
	l := New(time.Minute, 50)

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed, _, _ := l.CheckAndRecord("s1", "op")
			if allowed {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, admitted, "concurrent callers must never exceed the ceiling")
}
