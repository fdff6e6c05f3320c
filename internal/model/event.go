package model

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Geo is the optional location attached to an inbound event.
type Geo struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

// InboundEvent is the wire shape of a transaction event as published to the
// broker: the message key is TransactionID as raw bytes, the value is the
// UTF-8 JSON encoding of this object.
type InboundEvent struct {
	Geo              *Geo    `json:"geo,omitempty"`
	DeviceID         *string `json:"device_id,omitempty"`
	TransactionID    string  `json:"transaction_id" validate:"required"`
	UserID           string  `json:"user_id" validate:"required"`
	Currency         string  `json:"currency" validate:"required"`
	MerchantID       string  `json:"merchant_id" validate:"required"`
	MerchantCategory string  `json:"merchant_category" validate:"required"`
	Timestamp        string  `json:"timestamp" validate:"required"` // ISO-8601
	Channel          string  `json:"channel" validate:"required"`
	IP               string  `json:"ip" validate:"required,ip"`
	Amount           float64 `json:"amount"`
}

// UnmarshalJSON decodes an event, tolerating a malformed amount. Only a body
// that is not valid JSON rejects; an amount that is not a number (or a numeric
// string) degrades to 0 so the event still scores and persists.
func (e *InboundEvent) UnmarshalJSON(data []byte) error {
	type alias InboundEvent
	aux := struct {
		Amount json.RawMessage `json:"amount"`
		*alias
	}{alias: (*alias)(e)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	e.Amount = lenientAmount(aux.Amount)
	return nil
}

func lenientAmount(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return v
		}
	}

	return 0
}

// ScoringResult is the transient outcome of evaluating one event. It is
// computed per message, consumed immediately, and never persisted as its
// own entity.
type ScoringResult struct {
	RuleReasons []string
	Score       float64
	RuleFlag    bool
	ModelFlag   bool
	IsFraud     bool // RuleFlag OR ModelFlag
}
