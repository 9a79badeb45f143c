package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"MarketGate/internal/domain/models"
	"MarketGate/internal/domain/repository"
	"MarketGate/internal/service/approval"
	"MarketGate/internal/service/normalize"
	"MarketGate/internal/service/ratelimit"
	"MarketGate/internal/service/sanitize"
	"MarketGate/internal/service/screening"
)

const toolGetMarketData = "get_market_data"

// Config holds the orchestrator's tunables.
type Config struct {
	CacheTTL        time.Duration
	ApprovalTimeout time.Duration
}

// Gate sequences validation, screening, and conditional retrieval for one
// request at a time. Each Run owns a private workflow state that is
// discarded on completion; the cache, rate limiter, and approval registry
// are the only long-lived collaborators.
type Gate struct {
	cfg        Config
	validator  *sanitize.Validator
	engine     *screening.Engine
	cache      repository.RecordCache
	limiter    *ratelimit.Limiter
	normalizer *normalize.Normalizer
	provider   repository.DataProvider
	approvals  repository.ApprovalGateway
	audit      repository.AuditSink
	metrics    repository.Metrics
}

// NewGate wires the orchestrator. approvals may be nil, in which case every
// watchlist hold is denied immediately.
func NewGate(
	cfg Config,
	validator *sanitize.Validator,
	engine *screening.Engine,
	cache repository.RecordCache,
	limiter *ratelimit.Limiter,
	normalizer *normalize.Normalizer,
	provider repository.DataProvider,
	approvals repository.ApprovalGateway,
	audit repository.AuditSink,
	metrics repository.Metrics,
) *Gate {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 300 * time.Second
	}
	if cfg.ApprovalTimeout <= 0 {
		cfg.ApprovalTimeout = 2 * time.Minute
	}
	return &Gate{
		cfg:        cfg,
		validator:  validator,
		engine:     engine,
		cache:      cache,
		limiter:    limiter,
		normalizer: normalizer,
		provider:   provider,
		approvals:  approvals,
		audit:      audit,
		metrics:    metrics,
	}
}

// Result is the terminal outcome of one workflow run. Exactly one of Record
// and Err is set.
type Result struct {
	Record   *models.NormalizedRecord   `json:"record,omitempty"`
	Err      *models.RetrievalError     `json:"error,omitempty"`
	Decision *models.ComplianceDecision `json:"decision,omitempty"`
	State    models.State               `json:"final_state"`
}

// run tracks the state of a single request.
type run struct {
	correlationID string
	sessionID     string
	state         models.State
}

// successor routes a decision-bearing state to the next workflow phase.
// RETRIEVING is offered for APPROVED and for nothing else; the absence of
// any other case is what makes retrieval unreachable after a denial.
func successor(s models.State) models.State {
	switch s {
	case models.StateApproved:
		return models.StateRetrieving
	case models.StateDenied, models.StateError:
		return models.StateComplete
	default:
		return models.StateError
	}
}

// Run executes the full gated workflow for a raw symbol.
func (g *Gate) Run(ctx context.Context, rawSymbol, sessionID string) Result {
	r := &run{
		correlationID: uuid.NewString(),
		sessionID:     sessionID,
		state:         models.StateInitial,
	}

	// VALIDATING: deterministic, never retried.
	g.transition(ctx, r, models.StateValidating, rawSymbol)
	symbol, verr := g.validator.ValidateSymbol(ctx, rawSymbol)
	if verr != nil {
		g.transition(ctx, r, models.StateError, rawSymbol)
		return g.finish(ctx, r, Result{Err: verr})
	}

	// SCREENING: decision is created once and never mutated.
	g.transition(ctx, r, models.StateScreening, symbol)
	decision := g.engine.Screen(ctx, symbol, g.provider.ProbeOwnership)
	if g.metrics != nil {
		g.metrics.RecordDecision(string(decision.Status), string(decision.Level))
	}

	switch decision.Status {
	case models.StatusApproved:
		g.transition(ctx, r, models.StateApproved, symbol)

	case models.StatusHold:
		g.transition(ctx, r, models.StateWatchlistHold, symbol)
		if reason := g.awaitApproval(ctx, r, symbol); reason != "" {
			g.transition(ctx, r, models.StateDenied, symbol)
			return g.finish(ctx, r, Result{Decision: &decision, Err: holdDenialError(symbol, reason)})
		}
		g.transition(ctx, r, models.StateApproved, symbol)

	default:
		g.transition(ctx, r, models.StateDenied, symbol)
		return g.finish(ctx, r, Result{Decision: &decision, Err: denialError(&decision)})
	}

	// The only route into RETRIEVING is the APPROVED successor above.
	g.transition(ctx, r, successor(r.state), symbol)
	record, rerr := g.retrieve(ctx, r, symbol)
	if rerr != nil {
		g.transition(ctx, r, models.StateError, symbol)
		return g.finish(ctx, r, Result{Decision: &decision, Err: rerr})
	}
	return g.finish(ctx, r, Result{Decision: &decision, Record: record})
}

// CheckEntity validates and screens a symbol without touching retrieval.
func (g *Gate) CheckEntity(ctx context.Context, rawSymbol string) (models.ComplianceDecision, *models.RetrievalError) {
	symbol, verr := g.validator.ValidateSymbol(ctx, rawSymbol)
	if verr != nil {
		return models.ComplianceDecision{}, verr
	}
	decision := g.engine.Screen(ctx, symbol, g.provider.ProbeOwnership)
	if g.metrics != nil {
		g.metrics.RecordDecision(string(decision.Status), string(decision.Level))
	}
	return decision, nil
}

// GetEntityData runs the retrieval half of the pipeline: cache, rate limit,
// fetch, normalize. Callers invoking this directly are expected to have
// cleared screening via CheckEntity or Run, but hard-blocked symbols are
// refused here regardless: the validator lets blocklist terms past the format
// gate so screening can name them, and that exemption must never turn into an
// upstream fetch.
func (g *Gate) GetEntityData(ctx context.Context, rawSymbol, sessionID string) (*models.NormalizedRecord, *models.RetrievalError) {
	symbol, verr := g.validator.ValidateSymbol(ctx, rawSymbol)
	if verr != nil {
		return nil, verr
	}
	r := &run{correlationID: uuid.NewString(), sessionID: sessionID, state: models.StateRetrieving}
	if g.engine.Blocked(symbol) {
		if g.metrics != nil {
			g.metrics.RecordDecision(string(models.StatusDenied), string(models.LevelHardBlock))
		}
		g.emit(ctx, r, repository.AuditEvent{
			Type:     "compliance_check",
			Symbol:   symbol,
			ToolName: toolGetMarketData,
			Decision: "DENIED",
			Reason:   fmt.Sprintf("CRITICAL: Ticker matches blocklisted term %q", symbol),
			Security: true,
		})
		return nil, models.NewRetrievalError(models.ErrCodeComplianceDenied, symbol,
			fmt.Sprintf("Access to %s is prohibited by compliance policy", symbol)).
			WithDetail("Analysis prohibited by compliance policy").
			WithTroubleshooting("Contact the Compliance team if you believe this is an error.")
	}
	return g.retrieve(ctx, r, symbol)
}

// awaitApproval parks the workflow on the approval gateway. The screening
// decision stays untouched; a non-empty return is the denial reason. Only an
// explicit approved=true reopens the retrieval path.
func (g *Gate) awaitApproval(ctx context.Context, r *run, symbol string) string {
	if g.approvals == nil {
		return "WATCHLIST HOLD: no approval channel configured"
	}

	a, err := g.approvals.Await(ctx, symbol, g.cfg.ApprovalTimeout)
	if err != nil {
		reason := "approval timeout"
		if !errors.Is(err, approval.ErrTimeout) {
			reason = fmt.Sprintf("approval wait aborted: %v", err)
		}
		g.emit(ctx, r, repository.AuditEvent{
			Type: "hitl_timeout", Symbol: symbol, Reason: reason, Security: true,
		})
		return reason
	}

	g.emit(ctx, r, repository.AuditEvent{
		Type:   "hitl_approval",
		Symbol: symbol,
		Reason: fmt.Sprintf("approved=%t by %s", a.Approved, a.ApproverID),
		Fields: map[string]any{"approver_id": a.ApproverID, "approved": a.Approved},
	})
	if !a.Approved {
		return fmt.Sprintf("Human reviewer %s denied access", a.ApproverID)
	}
	return ""
}

// retrieve consults the cache, then the rate limiter, then the upstream
// fetch and the normalizer. Cache hits never count against the limit.
func (g *Gate) retrieve(ctx context.Context, r *run, symbol string) (*models.NormalizedRecord, *models.RetrievalError) {
	if rec, ok, err := g.cache.Get(ctx, symbol); err == nil && ok {
		if g.metrics != nil {
			g.metrics.RecordCacheHit(symbol)
		}
		g.emit(ctx, r, repository.AuditEvent{Type: "cache_hit", Symbol: symbol, ToolName: toolGetMarketData})
		return rec, nil
	} else if err != nil {
		// a broken cache degrades to a miss; retrieval still works
		g.emit(ctx, r, repository.AuditEvent{Type: "cache_error", Symbol: symbol, Reason: err.Error()})
	}
	if g.metrics != nil {
		g.metrics.RecordCacheMiss(symbol)
	}
	g.emit(ctx, r, repository.AuditEvent{Type: "cache_miss", Symbol: symbol, ToolName: toolGetMarketData})

	allowed, calls, retryAfter := g.limiter.CheckAndRecord(r.sessionID, toolGetMarketData)
	if !allowed {
		if g.metrics != nil {
			g.metrics.RecordRateLimited(toolGetMarketData)
		}
		g.emit(ctx, r, repository.AuditEvent{
			Type: "rate_limit_exceeded", Symbol: symbol, ToolName: toolGetMarketData, Security: true,
			Fields: map[string]any{"calls_in_window": calls, "retry_after_seconds": int(retryAfter.Seconds())},
		})
		e := models.NewRetrievalError(models.ErrCodeRateLimitExceeded, symbol,
			fmt.Sprintf("Rate limit exceeded: %d calls in window", calls)).
			WithTroubleshooting(fmt.Sprintf("Wait %d seconds before retrying. Consider caching results or reducing request frequency.", int(retryAfter.Seconds())))
		e.RetryAfter = int(retryAfter.Seconds())
		return nil, e
	}

	start := time.Now()
	raw, err := g.provider.FetchRawAttributes(ctx, symbol)
	if g.metrics != nil {
		g.metrics.RecordFetchLatency(time.Since(start).Seconds())
	}
	if err != nil {
		if g.metrics != nil {
			g.metrics.RecordError("network")
		}
		g.emit(ctx, r, repository.AuditEvent{
			Type: "data_retrieval_error", Symbol: symbol, ToolName: toolGetMarketData,
			Reason: sanitize.Redact(err.Error()),
		})
		return nil, models.NewRetrievalError(models.ErrCodeNetworkError, symbol,
			fmt.Sprintf("Unable to retrieve entity data for %s", symbol)).
			WithDetail(sanitize.Redact(err.Error())).
			WithTroubleshooting("Check network connectivity and provider availability.")
	}

	g.transition(ctx, r, models.StateValidatingData, symbol)
	record, nerr := g.normalizer.Normalize(symbol, raw, time.Now())
	if nerr != nil {
		if g.metrics != nil {
			g.metrics.RecordError(string(nerr.Code))
		}
		g.emit(ctx, r, repository.AuditEvent{
			Type: "silent_failure_detected", Symbol: symbol, ToolName: toolGetMarketData,
			Reason: string(nerr.Code), Fields: map[string]any{"detail": nerr.Detail},
		})
		return nil, nerr
	}

	if err := g.cache.Put(ctx, symbol, record, g.cfg.CacheTTL); err != nil {
		g.emit(ctx, r, repository.AuditEvent{Type: "cache_error", Symbol: symbol, Reason: err.Error()})
	}
	g.emit(ctx, r, repository.AuditEvent{
		Type: "tool_success", Symbol: symbol, ToolName: toolGetMarketData,
		Reason: fmt.Sprintf("Retrieved and cached market data for %s", symbol),
	})
	return record, nil
}

// transition advances the run's state and audits the step. DENIED is always
// security-relevant.
func (g *Gate) transition(ctx context.Context, r *run, to models.State, symbol string) {
	from := r.state
	r.state = to
	g.emit(ctx, r, repository.AuditEvent{
		Type:     "workflow_transition",
		Symbol:   symbol,
		Reason:   fmt.Sprintf("%s -> %s", from, to),
		Security: to == models.StateDenied,
	})
}

// emit stamps the run's identity onto an event and forwards it.
func (g *Gate) emit(ctx context.Context, r *run, ev repository.AuditEvent) {
	if g.audit == nil {
		return
	}
	ev.SessionID = r.sessionID
	ev.CorrelationID = r.correlationID
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	g.audit.Emit(ctx, ev)
}

func (g *Gate) finish(ctx context.Context, r *run, res Result) Result {
	if r.state != models.StateComplete {
		g.transition(ctx, r, models.StateComplete, symbolOf(res))
	}
	res.State = models.StateComplete
	if g.metrics != nil {
		switch {
		case res.Err != nil:
			g.metrics.RecordWorkflowResult(string(res.Err.Code))
		default:
			g.metrics.RecordWorkflowResult("SUCCESS")
		}
	}
	return res
}

func symbolOf(res Result) string {
	if res.Record != nil {
		return res.Record.EntityInformation.Symbol
	}
	if res.Err != nil {
		return res.Err.Symbol
	}
	if res.Decision != nil {
		return res.Decision.Symbol
	}
	return ""
}

// holdDenialError is the terminal error for an unresolved watchlist hold.
func holdDenialError(symbol, reason string) *models.RetrievalError {
	return models.NewRetrievalError(models.ErrCodeComplianceDenied, symbol, reason).
		WithDetail("Watchlist hold was not approved").
		WithTroubleshooting("A compliance officer must approve this symbol before retrieval.")
}

// denialError converts a non-approved decision into its terminal error.
// Layer-4 data unavailability keeps its own code for reporting purposes.
func denialError(d *models.ComplianceDecision) *models.RetrievalError {
	code := models.ErrCodeComplianceDenied
	if d.Level == models.LevelOwnershipDataUnavailable {
		code = models.ErrCodeOwnershipDataUnavailable
	}
	return models.NewRetrievalError(code, d.Symbol, d.Reason).
		WithDetail("Analysis prohibited by compliance policy").
		WithTroubleshooting("Contact the Compliance team if you believe this is an error.")
}
