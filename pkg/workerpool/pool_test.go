package workerpool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRunsSubmittedTasks(t *testing.T) {
	p := New(4, 8)
	defer p.Stop()

	var ran int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		err := p.Submit(context.Background(), func() {
			defer wg.Done()
			atomic.AddInt32(&ran, 1)
		})
		require.NoError(t, err)
	}
	wg.Wait()

	assert.Equal(t, int32(20), atomic.LoadInt32(&ran))
}

func TestPoolSubmitAfterStop(t *testing.T) {
	p := New(2, 2)
	p.Stop()

	err := p.Submit(context.Background(), func() {})
	assert.ErrorIs(t, err, ErrStopped)
}

func TestPoolStopWaitsForInFlight(t *testing.T) {
	p := New(1, 1)

	var finished int32
	require.NoError(t, p.Submit(context.Background(), func() {
		time.Sleep(30 * time.Millisecond)
		atomic.StoreInt32(&finished, 1)
	}))

	p.Stop()
	assert.Equal(t, int32(1), atomic.LoadInt32(&finished), "Stop must drain in-flight work")
}

func TestPoolStopUnblocksParkedSubmit(t *testing.T) {
	p := New(1, 1)

	block := make(chan struct{})
	// occupy the single worker and fill the single queue slot
	require.NoError(t, p.Submit(context.Background(), func() { <-block }))
	require.NoError(t, p.Submit(context.Background(), func() {}))

	errCh := make(chan error, 1)
	go func() {
		errCh <- p.Submit(context.Background(), func() {})
	}()
	time.Sleep(20 * time.Millisecond) // let the submit park on the full queue

	stopped := make(chan struct{})
	go func() {
		p.Stop()
		close(stopped)
	}()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrStopped, "a parked Submit must unblock cleanly on Stop")
	case <-time.After(time.Second):
		t.Fatal("Submit still parked after Stop")
	}

	close(block)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not finish after workers drained")
	}
}

func TestPoolSubmitHonorsContext(t *testing.T) {
	p := New(1, 1)
	defer p.Stop()

	block := make(chan struct{})
	defer close(block)

	// occupy the single worker and fill the single queue slot
	require.NoError(t, p.Submit(context.Background(), func() { <-block }))
	require.NoError(t, p.Submit(context.Background(), func() {}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Submit(ctx, func() {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
