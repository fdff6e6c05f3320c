// Package model defines the core domain types shared across the service.
package model

import "time"

// Status is the review lifecycle state of a transaction.
type Status string

// Transaction statuses. Clean transactions auto-approve on ingestion;
// flagged ones wait for a human decision.
const (
	StatusPendingReview Status = "PENDING_REVIEW"
	StatusApproved      Status = "APPROVED"
	StatusRejected      Status = "REJECTED"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPendingReview, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// StatusForFraud derives the lifecycle status from the authoritative fraud flag.
func StatusForFraud(isFraud bool) Status {
	if isFraud {
		return StatusPendingReview
	}
	return StatusApproved
}

// Transaction is the canonical enriched record persisted by the store.
// ID is externally supplied and never regenerated; re-ingesting the same
// id updates score, flag and status in place.
type Transaction struct {
	Timestamp        *time.Time `json:"timestamp,omitempty"` // event time; nil when unparseable
	Lat              *float64   `json:"lat,omitempty"`
	Lon              *float64   `json:"lon,omitempty"`
	DeviceID         *string    `json:"device_id,omitempty"`
	ID               string     `json:"id"`
	UserID           string     `json:"user_id"`
	Currency         string     `json:"currency"`
	MerchantID       string     `json:"merchant_id"`
	MerchantCategory string     `json:"merchant_category"`
	Channel          string     `json:"channel"`
	IP               string     `json:"ip"`
	Status           Status     `json:"status"`
	Amount           float64    `json:"amount"`
	Score            float64    `json:"score"`
	IsFraud          bool       `json:"is_fraud"`
}
