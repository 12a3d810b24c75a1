package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Measurement is the raw record of a single real-money withdrawal test.
// It is supplied by the caller and never mutated by the engine.
type Measurement struct {
	// Core identifiers
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`

	// Platform is the audited payout channel or site.
	Platform string `json:"platform,omitempty"`

	// Amounts as entered by the auditor
	AppliedAmount  decimal.Decimal `json:"appliedAmount"`
	ReceivedAmount decimal.Decimal `json:"receivedAmount"`

	// Currency codes (ISO-ish tokens, e.g. "USDT", "CNY")
	AppliedCurrency  string `json:"appliedCurrency"`
	ReceivedCurrency string `json:"receivedCurrency"`

	// ReferenceRate is the market mid-rate: 1 unit of applied currency
	// buys ReferenceRate units of received currency. Nil when unavailable.
	ReferenceRate *decimal.Decimal `json:"referenceRate,omitempty"`

	// Temporal: either both timestamps (unix seconds) or a direct duration.
	StartTimestamp  *int64   `json:"startTimestamp,omitempty"`
	EndTimestamp    *int64   `json:"endTimestamp,omitempty"`
	DurationMinutes *float64 `json:"durationMinutes,omitempty"`

	// KycStatus is the friction token observed during the test
	// ("none", "sms", "id_card", "video", "face", "stuck", ...).
	// Empty means the auditor recorded nothing.
	KycStatus string `json:"kycStatus,omitempty"`

	// SettlementStatus is one of the Settlement* constants, or empty/other
	// tokens for pending and unrecognized outcomes.
	SettlementStatus string `json:"settlementStatus,omitempty"`

	CreatedAt time.Time `json:"createdAt"`

	// Optional metadata
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Settlement status tokens.
const (
	SettlementSuccess = "success"
	SettlementFailed  = "failed"
	SettlementBlocked = "blocked"
)

// MeasurementRequest is the API request payload for measurement ingestion
// and synchronous evaluation.
type MeasurementRequest struct {
	Platform         string                 `json:"platform,omitempty"`
	AppliedAmount    decimal.Decimal        `json:"appliedAmount"`
	ReceivedAmount   decimal.Decimal        `json:"receivedAmount"`
	AppliedCurrency  string                 `json:"appliedCurrency"`
	ReceivedCurrency string                 `json:"receivedCurrency"`
	ReferenceRate    *decimal.Decimal       `json:"referenceRate,omitempty"`
	StartTimestamp   *int64                 `json:"startTimestamp,omitempty"`
	EndTimestamp     *int64                 `json:"endTimestamp,omitempty"`
	DurationMinutes  *float64               `json:"durationMinutes,omitempty"`
	KycStatus        string                 `json:"kycStatus,omitempty"`
	SettlementStatus string                 `json:"settlementStatus,omitempty"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`

	// Thresholds may carry per-call overrides, merged field-by-field
	// against the active profile.
	Thresholds *ThresholdOverrides `json:"thresholds,omitempty"`

	// Profile names a stored threshold profile to evaluate against.
	Profile string `json:"profile,omitempty"`
}

// ToMeasurement converts a request to a Measurement domain object.
func (r *MeasurementRequest) ToMeasurement() *Measurement {
	return &Measurement{
		Platform:         r.Platform,
		AppliedAmount:    r.AppliedAmount,
		ReceivedAmount:   r.ReceivedAmount,
		AppliedCurrency:  r.AppliedCurrency,
		ReceivedCurrency: r.ReceivedCurrency,
		ReferenceRate:    r.ReferenceRate,
		StartTimestamp:   r.StartTimestamp,
		EndTimestamp:     r.EndTimestamp,
		DurationMinutes:  r.DurationMinutes,
		KycStatus:        r.KycStatus,
		SettlementStatus: r.SettlementStatus,
		CreatedAt:        time.Now().UTC(),
		Metadata:         r.Metadata,
	}
}
