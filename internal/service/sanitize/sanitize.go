package sanitize

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"MarketGate/internal/domain/models"
	"MarketGate/internal/domain/repository"
)

// symbolPattern is the strict format for a normalized entity identifier.
var symbolPattern = regexp.MustCompile(`^[A-Z]{1,5}$`)

// injectionPatterns match instruction-override phrases and structured payloads
// that have no business appearing in a ticker field. Matching any of these is
// treated as a probing attempt, not a typo.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(previous|above|all)\s+(instructions|prompts)`),
	regexp.MustCompile(`(?i)system\s*[:=]\s*["']?`),
	regexp.MustCompile(`(?i)<\s*script\s*>`),
	regexp.MustCompile("(?s)```.*```"),
	regexp.MustCompile(`(?s)\{.*\}`),
}

// Validator turns raw caller input into a validated symbol, auditing
// injection-like rejections as security events.
type Validator struct {
	audit       repository.AuditSink
	passThrough map[string]struct{}
}

// NewValidator creates an input validator. audit may be nil in tests.
// passThroughTerms are exact normalized strings (typically the blocklist)
// that are allowed past the 5-letter format rule so the screening engine can
// classify them as compliance denials instead of format errors.
func NewValidator(audit repository.AuditSink, passThroughTerms []string) *Validator {
	pt := make(map[string]struct{}, len(passThroughTerms))
	for _, t := range passThroughTerms {
		pt[strings.ToUpper(strings.TrimSpace(t))] = struct{}{}
	}
	return &Validator{audit: audit, passThrough: pt}
}

// ValidateSymbol returns the normalized symbol or a terminal INVALID_INPUT
// error. The symbol is immutable once validated: all downstream components
// receive only the value returned here.
func (v *Validator) ValidateSymbol(ctx context.Context, raw string) (string, *models.RetrievalError) {
	if looksLikeInjection(raw) {
		v.emitSecurity(ctx, raw, "PROMPT_INJECTION_ATTEMPT")
		return "", invalidInput(raw, fmt.Sprintf(
			"Invalid ticker format: %q. Ticker symbols must be 1-5 uppercase letters only (e.g., 'AAPL', 'MSFT', 'JPM').",
			truncate(raw, 50)))
	}

	if hasControlChars(raw) {
		v.emitSecurity(ctx, raw, "CONTROL_CHARACTERS")
		return "", invalidInput(raw, "Invalid ticker format: control characters are not permitted.")
	}

	symbol := strings.ToUpper(strings.TrimSpace(raw))
	if _, ok := v.passThrough[symbol]; ok {
		return symbol, nil
	}
	if !symbolPattern.MatchString(symbol) {
		if v.audit != nil {
			v.audit.Emit(ctx, repository.AuditEvent{
				Type:   "input_validation_failure",
				Symbol: truncate(symbol, 50),
				Reason: "INVALID_TICKER_FORMAT",
				At:     time.Now(),
			})
		}
		return "", invalidInput(raw, fmt.Sprintf(
			"Invalid ticker format: %q. Ticker symbols must be 1-5 uppercase letters only (e.g., 'AAPL', 'MSFT', 'JPM').",
			truncate(symbol, 50)))
	}

	return symbol, nil
}

func (v *Validator) emitSecurity(ctx context.Context, raw, failure string) {
	if v.audit == nil {
		return
	}
	v.audit.Emit(ctx, repository.AuditEvent{
		Type:     "security_validation_failure",
		Reason:   failure,
		Security: true,
		Fields:   map[string]any{"input_value": truncate(raw, 50)},
		At:       time.Now(),
	})
}

func looksLikeInjection(raw string) bool {
	for _, p := range injectionPatterns {
		if p.MatchString(raw) {
			return true
		}
	}
	// Braces and angle brackets never occur in a legitimate symbol; single
	// occurrences are caught here even when the full-pattern regexps miss.
	return strings.ContainsAny(raw, "{}<>")
}

func hasControlChars(raw string) bool {
	for _, r := range raw {
		if r < 0x20 || r == 0x7f {
			return true
		}
	}
	return false
}

func invalidInput(raw, msg string) *models.RetrievalError {
	return models.NewRetrievalError(models.ErrCodeInvalidInput, truncate(strings.TrimSpace(raw), 50), msg).
		WithTroubleshooting("Provide a plain ticker symbol such as AAPL.")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
