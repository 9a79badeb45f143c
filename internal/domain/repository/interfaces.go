package repository

import (
	"context"
	"time"

	"MarketGate/internal/domain/models"
)

// DataProvider is the abstract upstream market-data capability. The wire
// protocol behind it is deliberately out of scope; implementations return a
// flat attribute map keyed by provider field names.
type DataProvider interface {
	FetchRawAttributes(ctx context.Context, symbol string) (map[string]any, error)
	ProbeOwnership(ctx context.Context, symbol string) (models.OwnershipCheckResult, error)
}

// RecordCache stores normalized records keyed by symbol with a TTL.
// Implementations own their entries exclusively; Get returns a deep copy.
type RecordCache interface {
	Get(ctx context.Context, symbol string) (*models.NormalizedRecord, bool, error)
	Put(ctx context.Context, symbol string, record *models.NormalizedRecord, ttl time.Duration) error
	Stats(ctx context.Context) (CacheStats, error)
}

// CacheStats is a monitoring snapshot of a RecordCache.
type CacheStats struct {
	Entries   int   `json:"entries"`
	TotalHits int64 `json:"total_hits"`
	Expired   int   `json:"expired_entries"`
}

// AuditEvent is a structured compliance/audit record. Security marks the
// event for separate routing (dedicated topic / log stream).
type AuditEvent struct {
	Type          string         `json:"event_type"`
	ToolName      string         `json:"tool_name,omitempty"`
	Symbol        string         `json:"ticker,omitempty"`
	SessionID     string         `json:"session_id,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Decision      string         `json:"compliance_decision,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	Security      bool           `json:"security_alert,omitempty"`
	Fields        map[string]any `json:"fields,omitempty"`
	At            time.Time      `json:"timestamp"`
}

// AuditSink receives audit events. Emit must not block request handling on
// slow transports; implementations buffer or drop instead.
type AuditSink interface {
	Emit(ctx context.Context, ev AuditEvent)
}

// ApprovalGateway suspends a workflow pending an external human decision.
// Await blocks until a decision arrives, the timeout elapses, or ctx is done.
type ApprovalGateway interface {
	Await(ctx context.Context, symbol string, timeout time.Duration) (models.Approval, error)
}

// Metrics records operational counters for the gate.
type Metrics interface {
	RecordDecision(status, level string)
	RecordCacheHit(symbol string)
	RecordCacheMiss(symbol string)
	RecordRateLimited(operation string)
	RecordFetchLatency(seconds float64)
	RecordWorkflowResult(state string)
	RecordError(kind string)
}
