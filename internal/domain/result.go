package domain

import (
	"github.com/shopspring/decimal"
)

// DimensionResult is the classification outcome of one audit dimension.
type DimensionResult struct {
	// Code is the stable machine identifier for the band.
	Code string `json:"code"`

	// Label is the localized display string for the band.
	Label string `json:"label"`

	// Score is the dimension's contribution to the overall total.
	Score int `json:"score"`

	// Tags are display/structured-data annotations, used verbatim.
	Tags []string `json:"tags,omitempty"`
}

// FxErrorKind tags a failed FX computation. A bad amount or rate is a
// true data-entry defect and is surfaced, not silently defaulted.
type FxErrorKind string

const (
	// FxErrInvalidInput marks a non-positive applied amount or reference rate.
	FxErrInvalidInput FxErrorKind = "invalid_input"

	// FxErrExpectedAmountZero marks a degenerate rate/amount combination.
	FxErrExpectedAmountZero FxErrorKind = "expected_amount_zero"

	// FxErrDataEntry marks a received amount implausibly above the
	// requested/expected amount (beyond the 5% tolerance band).
	FxErrDataEntry FxErrorKind = "data_entry_error"
)

// FxResult is the output of one FX-loss computation. Exactly one of
// Err set or LossAmount/LossPct populated holds, never both.
type FxResult struct {
	LossAmount     *decimal.Decimal `json:"lossAmount,omitempty"`
	LossPct        *decimal.Decimal `json:"lossPct,omitempty"`
	DeviationPct   *decimal.Decimal `json:"deviationPct,omitempty"`
	ExpectedAmount *decimal.Decimal `json:"expectedAmount,omitempty"`

	// SevereLoss is the coarse binary signal from the single severe-loss
	// threshold, independent of the four-band severity classification.
	SevereLoss bool `json:"severeLoss"`

	CrossCurrency bool `json:"crossCurrency"`

	// Normalized currency codes and the rate used, kept for auditability
	// in cross-currency mode.
	AppliedCurrency  string           `json:"appliedCurrency,omitempty"`
	ReceivedCurrency string           `json:"receivedCurrency,omitempty"`
	RateUsed         *decimal.Decimal `json:"rateUsed,omitempty"`

	Err FxErrorKind `json:"error,omitempty"`
}

// EffectiveLossPct returns the percentage downstream code should classify:
// the market-rate deviation when present, else the same-currency loss.
func (r *FxResult) EffectiveLossPct() *decimal.Decimal {
	if r == nil {
		return nil
	}
	if r.DeviationPct != nil {
		return r.DeviationPct
	}
	return r.LossPct
}

// Overall risk codes and display colors.
const (
	OverallHighRisk   = "high_risk"
	OverallMediumRisk = "medium_risk"
	OverallLowRisk    = "low_risk"

	ColorRed    = "red"
	ColorOrange = "orange"
	ColorGreen  = "green"
)

// OverallResult is the composite audit verdict: the four dimension
// results plus the banded total. Constructed fresh per evaluation and
// never mutated afterwards.
type OverallResult struct {
	Speed      DimensionResult `json:"speed"`
	Fx         DimensionResult `json:"fx"`
	Kyc        DimensionResult `json:"kyc"`
	Settlement DimensionResult `json:"settlement"`

	TotalScore   int    `json:"totalScore"`
	OverallCode  string `json:"overallCode"`
	OverallLabel string `json:"overallLabel"`
	OverallColor string `json:"overallColor"`
}
