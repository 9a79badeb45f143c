package models

import "time"

// ComplianceStatus is the outcome of a screening pass.
type ComplianceStatus string

const (
	StatusApproved ComplianceStatus = "approved"
	StatusDenied   ComplianceStatus = "denied"
	StatusHold     ComplianceStatus = "hold"
)

// ComplianceLevel identifies which screening layer produced the decision.
type ComplianceLevel string

const (
	LevelHardBlock                ComplianceLevel = "HARD_BLOCK"
	LevelWatchlistHold            ComplianceLevel = "WATCHLIST_HOLD"
	LevelOwnershipReview          ComplianceLevel = "OWNERSHIP_REVIEW"
	LevelOwnershipDataUnavailable ComplianceLevel = "OWNERSHIP_DATA_UNAVAILABLE"
	LevelCleared                  ComplianceLevel = "CLEARED"
)

// RiskLevel grades a screening finding.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// ComplianceDecision is produced once per request by the screening engine
// and never mutated afterwards.
type ComplianceDecision struct {
	Symbol             string           `json:"ticker"`
	Status             ComplianceStatus `json:"compliance_status"`
	Level              ComplianceLevel  `json:"compliance_level"`
	Reason             string           `json:"compliance_reason"`
	RiskLevel          RiskLevel        `json:"risk_level,omitempty"`
	Alerts             []string         `json:"watchlist_alerts,omitempty"`
	OwnershipConcerns  []string         `json:"ownership_concerns,omitempty"`
	NextSteps          []string         `json:"next_steps,omitempty"`
	ChecksPerformed    []string         `json:"checks_performed,omitempty"`
	RequiresReview     bool             `json:"requires_review"`
	EscalationRequired bool             `json:"escalation_required"`
	CheckedAt          time.Time        `json:"compliance_checked_at"`
}

// WatchlistEntry is static per-symbol screening configuration, loaded at
// process start and read-only thereafter.
type WatchlistEntry struct {
	Alert     string    `yaml:"alert" json:"alert"`
	Concern   string    `yaml:"concern" json:"concern"`
	RiskLevel RiskLevel `yaml:"risk_level" json:"risk_level"`
}

// OwnershipCheckResult reports whether holder records exist for a symbol.
// It feeds the beneficial-owner verification layer.
type OwnershipCheckResult struct {
	Symbol               string `json:"ticker"`
	InstitutionalHolders bool   `json:"institutional_holders_present"`
	MajorHolders         bool   `json:"major_holders_present"`
}
