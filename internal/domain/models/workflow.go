package models

import "time"

// State tags one phase of a single request's workflow. State is owned by the
// orchestrator for the lifetime of one request and discarded on completion.
type State string

const (
	StateInitial        State = "INITIAL"
	StateValidating     State = "VALIDATING"
	StateScreening      State = "SCREENING"
	StateWatchlistHold  State = "WATCHLIST_HOLD"
	StateApproved       State = "APPROVED"
	StateDenied         State = "DENIED"
	StateRetrieving     State = "RETRIEVING"
	StateValidatingData State = "VALIDATING_DATA"
	StateComplete       State = "COMPLETE"
	StateError          State = "ERROR"
)

// Approval is the outcome of a human-in-the-loop hold resolution.
type Approval struct {
	Approved   bool      `json:"approved"`
	ApproverID string    `json:"approver_id"`
	ApprovedAt time.Time `json:"approved_at"`
}
