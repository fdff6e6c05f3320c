package model

import "time"

// Decision is the outcome a human reviewer records for a flagged transaction.
type Decision string

// Review decisions.
const (
	DecisionApproved Decision = "APPROVED"
	DecisionRejected Decision = "REJECTED"
)

// Valid reports whether d is a known decision.
func (d Decision) Valid() bool {
	return d == DecisionApproved || d == DecisionRejected
}

// Status returns the transaction status matching the decision.
func (d Decision) Status() Status {
	if d == DecisionRejected {
		return StatusRejected
	}
	return StatusApproved
}

// Review records a human decision for one transaction. There is at most one
// review per transaction id; a later review replaces the earlier one.
type Review struct {
	CreatedAt     time.Time `json:"created_at"`
	TransactionID string    `json:"transaction_id"`
	Reviewer      string    `json:"reviewer"`
	Decision      Decision  `json:"decision"`
	Notes         string    `json:"notes,omitempty"`
}
