package screening

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"MarketGate/internal/domain/models"
	"MarketGate/internal/domain/repository"
)

// OwnershipProbe is the external capability used by the final screening layer.
type OwnershipProbe func(ctx context.Context, symbol string) (models.OwnershipCheckResult, error)

// Config is the immutable screening configuration. It is injected at
// construction so tests can substitute fixtures; the engine never reads
// module-level state.
type Config struct {
	Blocklist         []string
	Watchlist         map[string]models.WatchlistEntry
	OwnershipPatterns map[string]string // pattern term -> concern text
}

// Engine evaluates a symbol against four ordered screening layers,
// short-circuiting on the first trigger. A hard block always wins over a
// milder finding; the ownership probe runs last because it may hit the
// network.
type Engine struct {
	cfg   Config
	audit repository.AuditSink
}

// New creates a screening engine over the given configuration.
func New(cfg Config, audit repository.AuditSink) *Engine {
	normalized := Config{
		Blocklist:         make([]string, 0, len(cfg.Blocklist)),
		Watchlist:         make(map[string]models.WatchlistEntry, len(cfg.Watchlist)),
		OwnershipPatterns: make(map[string]string, len(cfg.OwnershipPatterns)),
	}
	for _, t := range cfg.Blocklist {
		normalized.Blocklist = append(normalized.Blocklist, strings.ToUpper(strings.TrimSpace(t)))
	}
	for sym, e := range cfg.Watchlist {
		normalized.Watchlist[strings.ToUpper(sym)] = e
	}
	for term, concern := range cfg.OwnershipPatterns {
		normalized.OwnershipPatterns[strings.ToUpper(term)] = concern
	}
	return &Engine{cfg: normalized, audit: audit}
}

// Blocked reports whether symbol is an exact blocklist match. Retrieval-only
// entry points use it to refuse hard-blocked symbols without a full screening
// pass.
func (e *Engine) Blocked(symbol string) bool {
	for _, term := range e.cfg.Blocklist {
		if symbol == term {
			return true
		}
	}
	return false
}

// Screen produces a fresh ComplianceDecision for symbol. The symbol must
// already be validated and normalized; Screen never mutates a prior decision.
func (e *Engine) Screen(ctx context.Context, symbol string, probe OwnershipProbe) models.ComplianceDecision {
	checkedAt := time.Now()

	// Layer 1: hard blocklist. Exact term match is an immediate denial; a
	// coincidental substring containment is held for review instead of being
	// conflated with the blocked entity.
	for _, term := range e.cfg.Blocklist {
		if symbol == term {
			d := models.ComplianceDecision{
				Symbol:             symbol,
				Status:             models.StatusDenied,
				Level:              models.LevelHardBlock,
				Reason:             fmt.Sprintf("CRITICAL: Ticker matches blocklisted term %q", term),
				RiskLevel:          models.RiskHigh,
				EscalationRequired: true,
				CheckedAt:          checkedAt,
			}
			e.emitDecision(ctx, d)
			return d
		}
	}
	for _, term := range e.cfg.Blocklist {
		if strings.Contains(symbol, term) {
			d := models.ComplianceDecision{
				Symbol:    symbol,
				Status:    models.StatusHold,
				Level:     models.LevelWatchlistHold,
				Reason:    fmt.Sprintf("SUSPICIOUS PATTERN: Ticker contains restricted term %q", term),
				RiskLevel: models.RiskHigh,
				Alerts:    []string{fmt.Sprintf("Partial blocklist match on %q", term)},
				NextSteps: []string{
					"Manual compliance review required",
					"Confirm the symbol is unrelated to the restricted entity",
				},
				RequiresReview:     true,
				EscalationRequired: true,
				CheckedAt:          checkedAt,
			}
			e.emitDecision(ctx, d)
			return d
		}
	}

	// Layer 2: enhanced watchlist. A match is a hold, not a denial; retrieval
	// may only proceed after explicit human approval.
	if entry, ok := e.cfg.Watchlist[symbol]; ok {
		d := models.ComplianceDecision{
			Symbol:            symbol,
			Status:            models.StatusHold,
			Level:             models.LevelWatchlistHold,
			Reason:            fmt.Sprintf("WATCHLIST ALERT: %s", entry.Alert),
			RiskLevel:         entry.RiskLevel,
			Alerts:            []string{entry.Alert},
			OwnershipConcerns: []string{entry.Concern},
			NextSteps: []string{
				"Manual compliance review required",
				"Ownership structure verification needed",
				"Enhanced due diligence (EDD) process initiated",
				"Approval from Compliance Officer required",
			},
			RequiresReview:     true,
			EscalationRequired: true,
			CheckedAt:          checkedAt,
		}
		e.emitDecision(ctx, d)
		return d
	}

	// Layer 3: ownership-pattern detection for structurally high-risk symbols.
	for _, term := range sortedKeys(e.cfg.OwnershipPatterns) {
		if strings.Contains(symbol, term) {
			concern := e.cfg.OwnershipPatterns[term]
			d := models.ComplianceDecision{
				Symbol:            symbol,
				Status:            models.StatusDenied,
				Level:             models.LevelOwnershipReview,
				Reason:            fmt.Sprintf("OWNERSHIP CONCERN: %s", concern),
				RiskLevel:         models.RiskHigh,
				OwnershipConcerns: []string{concern},
				NextSteps: []string{
					"Beneficial ownership verification required",
					"Ultimate beneficial owner (UBO) identification needed",
					"Compliance review by senior officer",
				},
				RequiresReview:     true,
				EscalationRequired: true,
				CheckedAt:          checkedAt,
			}
			e.emitDecision(ctx, d)
			return d
		}
	}

	// Layer 4: beneficial-owner verification. Only reached once the cheap
	// layers pass; approval requires holder records to actually exist.
	result, err := probe(ctx, symbol)
	if err != nil || (!result.InstitutionalHolders && !result.MajorHolders) {
		concerns := []string{
			"No institutional ownership data available",
			"No major holders data available",
		}
		if err != nil {
			concerns = []string{fmt.Sprintf("Ownership verification error: %s", truncate(err.Error(), 100))}
		}
		d := models.ComplianceDecision{
			Symbol:            symbol,
			Status:            models.StatusDenied,
			Level:             models.LevelOwnershipDataUnavailable,
			Reason:            "OWNERSHIP VERIFICATION FAILED: Unable to verify beneficial ownership structure",
			RiskLevel:         models.RiskHigh,
			OwnershipConcerns: concerns,
			NextSteps: []string{
				"Manual ownership verification required",
				"Direct company filing review needed (SEC EDGAR, etc.)",
				"Compliance officer approval required for override",
			},
			RequiresReview:     true,
			EscalationRequired: true,
			CheckedAt:          checkedAt,
		}
		e.emitDecision(ctx, d)
		return d
	}

	d := models.ComplianceDecision{
		Symbol:    symbol,
		Status:    models.StatusApproved,
		Level:     models.LevelCleared,
		Reason:    "Passed all enhanced compliance checks with verified ownership structure",
		RiskLevel: models.RiskLow,
		ChecksPerformed: []string{
			"Hard blocklist screening (Layer 1)",
			"Enhanced watchlist verification (Layer 2)",
			"Ownership structure analysis (Layer 3)",
			"Beneficial owner screening (Layer 4) - Ownership data verified",
		},
		CheckedAt: checkedAt,
	}
	e.emitDecision(ctx, d)
	return d
}

func (e *Engine) emitDecision(ctx context.Context, d models.ComplianceDecision) {
	if e.audit == nil {
		return
	}
	e.audit.Emit(ctx, repository.AuditEvent{
		Type:     "compliance_check",
		Symbol:   d.Symbol,
		Decision: strings.ToUpper(string(d.Status)),
		Reason:   d.Reason,
		Security: d.Status == models.StatusDenied,
		Fields:   map[string]any{"compliance_level": string(d.Level), "risk_level": string(d.RiskLevel)},
		At:       d.CheckedAt,
	})
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
