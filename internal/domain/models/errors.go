package models

import (
	"fmt"
	"time"
)

// ErrorCode is a stable, caller-facing failure classification.
type ErrorCode string

const (
	ErrCodeInvalidInput             ErrorCode = "INVALID_INPUT"
	ErrCodeComplianceDenied         ErrorCode = "COMPLIANCE_DENIED"
	ErrCodeRateLimitExceeded        ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeAPIThrottle              ErrorCode = "API_THROTTLE"
	ErrCodeInvalidTicker            ErrorCode = "INVALID_TICKER"
	ErrCodeInsufficientData         ErrorCode = "INSUFFICIENT_DATA"
	ErrCodeNetworkError             ErrorCode = "NETWORK_ERROR"
	ErrCodeOwnershipDataUnavailable ErrorCode = "OWNERSHIP_DATA_UNAVAILABLE"
	ErrCodeUnknownError             ErrorCode = "UNKNOWN_ERROR"
)

// RetrievalError is the terminal value returned instead of a NormalizedRecord.
// These are never retried internally.
type RetrievalError struct {
	IsError         bool      `json:"error"`
	Code            ErrorCode `json:"error_code"`
	Symbol          string    `json:"ticker"`
	Message         string    `json:"message"`
	Detail          string    `json:"detail,omitempty"`
	Troubleshooting string    `json:"troubleshooting,omitempty"`
	RetryAfter      int       `json:"retry_after_seconds,omitempty"`
	RetrievedAt     time.Time `json:"retrieved_at"`
}

func (e *RetrievalError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewRetrievalError builds a terminal error for a symbol.
func NewRetrievalError(code ErrorCode, symbol, message string) *RetrievalError {
	return &RetrievalError{
		IsError:     true,
		Code:        code,
		Symbol:      symbol,
		Message:     message,
		RetrievedAt: time.Now(),
	}
}

// WithDetail attaches machine-oriented detail text.
func (e *RetrievalError) WithDetail(detail string) *RetrievalError {
	e.Detail = detail
	return e
}

// WithTroubleshooting attaches operator guidance text.
func (e *RetrievalError) WithTroubleshooting(hint string) *RetrievalError {
	e.Troubleshooting = hint
	return e
}
