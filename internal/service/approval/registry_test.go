package approval

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryAwaitResolve(t *testing.T) {
	r := NewRegistry()

	type outcome struct {
		approved bool
		approver string
		err      error
	}
	done := make(chan outcome, 1)
	go func() {
		a, err := r.Await(context.Background(), "TSLA", time.Second)
		done <- outcome{a.Approved, a.ApproverID, err}
	}()

	require.Eventually(t, func() bool {
		return len(r.Pending()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"TSLA"}, r.Pending())

	require.True(t, r.Resolve("TSLA", true, "officer-1"))

	got := <-done
	require.NoError(t, got.err)
	assert.True(t, got.approved)
	assert.Equal(t, "officer-1", got.approver)
	assert.Empty(t, r.Pending())
}

func TestRegistryAwaitTimeout(t *testing.T) {
	r := NewRegistry()

	_, err := r.Await(context.Background(), "TSLA", 10*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Empty(t, r.Pending(), "timed-out waiter must be removed")
}

func TestRegistryAwaitContextCancel(t *testing.T) {
	r := NewRegistry()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := r.Await(ctx, "TSLA", time.Minute)
		done <- err
	}()

	require.Eventually(t, func() bool {
		return len(r.Pending()) == 1
	}, time.Second, 5*time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestRegistryResolveWithoutWaiter(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Resolve("GME", true, "officer-1"))
}

func TestRegistryResolveFansOut(t *testing.T) {
	r := NewRegistry()

	results := make(chan bool, 2)
	for i := 0; i < 2; i++ {
		go func() {
			a, err := r.Await(context.Background(), "TSLA", time.Second)
			results <- err == nil && !a.Approved
		}()
	}

	require.Eventually(t, func() bool {
		return len(r.Pending()) == 1
	}, time.Second, 5*time.Millisecond)
	require.True(t, r.Resolve("TSLA", false, "officer-2"))

	assert.True(t, <-results)
	assert.True(t, <-results)
}
