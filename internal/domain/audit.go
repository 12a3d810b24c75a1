package domain

import (
	"time"
)

// Audit is the persisted read model for one evaluated withdrawal test.
// Presentation layers consume it as-is; it is never recomputed on read.
type Audit struct {
	ID            string    `json:"id"`
	TenantID      string    `json:"tenantId"`
	MeasurementID string    `json:"measurementId"`
	Platform      string    `json:"platform,omitempty"`
	Timestamp     time.Time `json:"timestamp"`

	Overall OverallResult `json:"overall"`

	// Raw FX figures for callers that need the underlying amounts and
	// percentages independent of the banding. At most one of these is
	// set, by computation mode.
	SameCurrencyFx  *FxResult `json:"sameCurrencyFx,omitempty"`
	CrossCurrencyFx *FxResult `json:"crossCurrencyFx,omitempty"`

	// DurationText is the human-readable duration string, empty when the
	// duration was unavailable.
	DurationText string `json:"durationText,omitempty"`

	// Flags are the matched flag-rule annotations.
	Flags []FlagResult `json:"flags,omitempty"`

	Metadata AuditMetadata `json:"metadata"`
}

// AuditMetadata contains processing information.
type AuditMetadata struct {
	TraceID        string `json:"traceId"`
	ScoreMs        int64  `json:"scoreMs"`
	FlagsMs        int64  `json:"flagsMs"`
	TotalMs        int64  `json:"totalMs"`
	FlagsEvaluated int    `json:"flagsEvaluated"`
	EngineVersion  string `json:"engineVersion"`
}

// AuditResponse is the API response for an evaluation.
type AuditResponse struct {
	AuditID       string        `json:"auditId"`
	MeasurementID string        `json:"measurementId,omitempty"`
	TenantID      string        `json:"tenantId,omitempty"`
	Overall       OverallResult `json:"overall"`
	Fx            *FxResult     `json:"fx,omitempty"`
	DurationText  string        `json:"durationText,omitempty"`
	Tags          []string      `json:"tags,omitempty"`
	Metadata      AuditMetadata `json:"metadata"`
}

// ToResponse converts an Audit to an API response. Tags aggregates the
// dimension tags and matched flag tags in a stable order.
func (a *Audit) ToResponse() *AuditResponse {
	fx := a.CrossCurrencyFx
	if fx == nil {
		fx = a.SameCurrencyFx
	}

	var tags []string
	for _, dim := range []DimensionResult{a.Overall.Speed, a.Overall.Fx, a.Overall.Kyc, a.Overall.Settlement} {
		tags = append(tags, dim.Tags...)
	}
	for _, f := range a.Flags {
		if f.Matched && f.Tag != "" {
			tags = append(tags, f.Tag)
		}
	}

	return &AuditResponse{
		AuditID:       a.ID,
		MeasurementID: a.MeasurementID,
		TenantID:      a.TenantID,
		Overall:       a.Overall,
		Fx:            fx,
		DurationText:  a.DurationText,
		Tags:          tags,
		Metadata:      a.Metadata,
	}
}
