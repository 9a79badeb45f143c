package provider

import (
	"context"
	"time"

	"MarketGate/internal/domain/models"
	"MarketGate/internal/domain/repository"
	"MarketGate/pkg/workerpool"
)

// Offloaded decorates a DataProvider so every upstream call runs on a
// bounded worker pool with a per-call timeout. A slow or throttled upstream
// can then never starve the goroutines serving validation and screening.
type Offloaded struct {
	inner   repository.DataProvider
	pool    *workerpool.Pool
	timeout time.Duration
}

// NewOffloaded wraps inner with pool offload and the given call timeout.
func NewOffloaded(inner repository.DataProvider, pool *workerpool.Pool, timeout time.Duration) *Offloaded {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Offloaded{inner: inner, pool: pool, timeout: timeout}
}

func (o *Offloaded) FetchRawAttributes(ctx context.Context, symbol string) (map[string]any, error) {
	type result struct {
		attrs map[string]any
		err   error
	}
	return await(ctx, o, func(callCtx context.Context) result {
		attrs, err := o.inner.FetchRawAttributes(callCtx, symbol)
		return result{attrs: attrs, err: err}
	}, func(r result) (map[string]any, error) { return r.attrs, r.err })
}

func (o *Offloaded) ProbeOwnership(ctx context.Context, symbol string) (models.OwnershipCheckResult, error) {
	type result struct {
		check models.OwnershipCheckResult
		err   error
	}
	return await(ctx, o, func(callCtx context.Context) result {
		check, err := o.inner.ProbeOwnership(callCtx, symbol)
		return result{check: check, err: err}
	}, func(r result) (models.OwnershipCheckResult, error) { return r.check, r.err })
}

// await submits call to the pool and waits for its result or cancellation.
func await[R, T any](ctx context.Context, o *Offloaded, call func(context.Context) R, unpack func(R) (T, error)) (T, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	ch := make(chan R, 1)
	if err := o.pool.Submit(ctx, func() { ch <- call(callCtx) }); err != nil {
		var zero T
		return zero, err
	}

	select {
	case r := <-ch:
		return unpack(r)
	case <-callCtx.Done():
		var zero T
		return zero, callCtx.Err()
	}
}
