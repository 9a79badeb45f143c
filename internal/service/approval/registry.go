package approval

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"MarketGate/internal/domain/models"
)

// ErrTimeout is returned when no human decision arrives within the allowed
// wait; the workflow converts it into a denial, never an indefinite hang.
var ErrTimeout = errors.New("approval: timed out waiting for decision")

// Registry is an in-process ApprovalGateway. A workflow holding on a
// watchlist symbol parks here; the transport layer resolves the hold with an
// explicit approver identity.
type Registry struct {
	mu      sync.Mutex
	waiters map[string][]chan models.Approval
}

// NewRegistry creates an empty approval registry.
func NewRegistry() *Registry {
	return &Registry{waiters: make(map[string][]chan models.Approval)}
}

// Await blocks until a decision for symbol arrives, the timeout elapses, or
// ctx is done.
func (r *Registry) Await(ctx context.Context, symbol string, timeout time.Duration) (models.Approval, error) {
	ch := make(chan models.Approval, 1)

	r.mu.Lock()
	r.waiters[symbol] = append(r.waiters[symbol], ch)
	r.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case a := <-ch:
		return a, nil
	case <-timer.C:
		r.remove(symbol, ch)
		return models.Approval{}, ErrTimeout
	case <-ctx.Done():
		r.remove(symbol, ch)
		return models.Approval{}, ctx.Err()
	}
}

// Resolve delivers a decision to every workflow holding on symbol and
// reports whether any waiter received it.
func (r *Registry) Resolve(symbol string, approved bool, approverID string) bool {
	a := models.Approval{
		Approved:   approved,
		ApproverID: approverID,
		ApprovedAt: time.Now(),
	}

	r.mu.Lock()
	chans := r.waiters[symbol]
	delete(r.waiters, symbol)
	r.mu.Unlock()

	for _, ch := range chans {
		ch <- a
	}
	return len(chans) > 0
}

// Pending lists symbols currently awaiting a decision.
func (r *Registry) Pending() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.waiters))
	for sym := range r.waiters {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) remove(symbol string, ch chan models.Approval) {
	r.mu.Lock()
	defer r.mu.Unlock()

	chans := r.waiters[symbol]
	for i, c := range chans {
		if c == ch {
			r.waiters[symbol] = append(chans[:i], chans[i+1:]...)
			break
		}
	}
	if len(r.waiters[symbol]) == 0 {
		delete(r.waiters, symbol)
	}
}
