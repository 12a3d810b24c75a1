package domain

import "time"

// Thresholds carries the per-dimension classification thresholds consumed
// by the scoring engine. A Thresholds value is immutable once built: the
// engine never writes to it, and Apply returns a copy, so concurrent
// evaluations may share one instance freely.
type Thresholds struct {
	// Speed bands, minutes. Callers must keep Instant <= Fast <= Slow;
	// the classifier does not enforce it.
	SpeedInstantMins float64 `json:"speedInstantMins"`
	SpeedFastMins    float64 `json:"speedFastMins"`
	SpeedSlowMins    float64 `json:"speedSlowMins"`

	// Loss bands, fractional percentages: (0, normal] is minimal,
	// (normal, warn] is moderate, above warn is severe.
	LossNormalPct float64 `json:"lossNormalPct"`
	LossWarnPct   float64 `json:"lossWarnPct"`

	// SevereLossPct feeds the FX calculator's own binary severe-loss
	// flag. It is independent of the normal/warn banding above; the two
	// threshold sets must not be conflated.
	SevereLossPct float64 `json:"severeLossPct"`
}

// DefaultThresholds returns the documented default deployment profile.
func DefaultThresholds() Thresholds {
	return Thresholds{
		SpeedInstantMins: 5,
		SpeedFastMins:    30,
		SpeedSlowMins:    240,
		LossNormalPct:    0.5,
		LossWarnPct:      2.0,
		SevereLossPct:    2.0,
	}
}

// ThresholdOverrides carries optional per-field replacements. Unset
// fields keep the base value; supplying one field never resets another.
type ThresholdOverrides struct {
	SpeedInstantMins *float64 `json:"speedInstantMins,omitempty"`
	SpeedFastMins    *float64 `json:"speedFastMins,omitempty"`
	SpeedSlowMins    *float64 `json:"speedSlowMins,omitempty"`
	LossNormalPct    *float64 `json:"lossNormalPct,omitempty"`
	LossWarnPct      *float64 `json:"lossWarnPct,omitempty"`
	SevereLossPct    *float64 `json:"severeLossPct,omitempty"`
}

// Apply merges overrides field-by-field into a copy of t.
func (t Thresholds) Apply(o *ThresholdOverrides) Thresholds {
	if o == nil {
		return t
	}
	if o.SpeedInstantMins != nil {
		t.SpeedInstantMins = *o.SpeedInstantMins
	}
	if o.SpeedFastMins != nil {
		t.SpeedFastMins = *o.SpeedFastMins
	}
	if o.SpeedSlowMins != nil {
		t.SpeedSlowMins = *o.SpeedSlowMins
	}
	if o.LossNormalPct != nil {
		t.LossNormalPct = *o.LossNormalPct
	}
	if o.LossWarnPct != nil {
		t.LossWarnPct = *o.LossWarnPct
	}
	if o.SevereLossPct != nil {
		t.SevereLossPct = *o.SevereLossPct
	}
	return t
}

// ThresholdProfile is a named, persisted set of threshold overrides.
// Deployments store the active profile and reference it per evaluation.
type ThresholdProfile struct {
	ID          string             `json:"id"`
	TenantID    string             `json:"tenantId,omitempty"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Overrides   ThresholdOverrides `json:"overrides"`
	Enabled     bool               `json:"enabled"`
	CreatedAt   time.Time          `json:"createdAt,omitempty"`
	UpdatedAt   time.Time          `json:"updatedAt,omitempty"`
}

// Resolve returns the effective thresholds for the profile.
func (p *ThresholdProfile) Resolve() Thresholds {
	return DefaultThresholds().Apply(&p.Overrides)
}
