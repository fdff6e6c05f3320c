// Package common provides shared utilities and types used across the service.
package common

import "errors"

// Common application errors.
var (
	// Database errors.
	ErrNotFound = errors.New("not found")

	// Scoring errors.
	ErrModelCorrupted = errors.New("anomaly model artifact corrupted")

	// Broker errors.
	ErrBrokerUnavailable = errors.New("broker unavailable")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
)
