package scoring

import (
	"github.com/shopspring/decimal"

	"github.com/cashout-watch/kestrel/internal/domain"
)

// Aggregate sums the four dimension scores and bands the total.
// Totals of -3 through 0 all land in medium risk: the asymmetric gap
// between the high-risk and low-risk boundaries is intentional banding.
// Each score is trusted to already be in its documented range.
func Aggregate(speed, fx, kyc, settlement domain.DimensionResult) domain.OverallResult {
	total := speed.Score + fx.Score + kyc.Score + settlement.Score

	code, label, color := domain.OverallMediumRisk, labelOverallMedium, domain.ColorOrange
	switch {
	case total <= -4:
		code, label, color = domain.OverallHighRisk, labelOverallHigh, domain.ColorRed
	case total >= 1:
		code, label, color = domain.OverallLowRisk, labelOverallLow, domain.ColorGreen
	}

	return domain.OverallResult{
		Speed:        speed,
		Fx:           fx,
		Kyc:          kyc,
		Settlement:   settlement,
		TotalScore:   total,
		OverallCode:  code,
		OverallLabel: label,
		OverallColor: color,
	}
}

// Outcome is the full result of one evaluation: the banded verdict plus
// the raw FX figures for callers that need the underlying amounts.
type Outcome struct {
	Overall domain.OverallResult

	// At most one of these is set, by computation mode.
	SameCurrency  *domain.FxResult
	CrossCurrency *domain.FxResult

	// DurationMinutes is the resolved duration (direct or derived from
	// timestamps); nil when unavailable.
	DurationMinutes *float64

	// DurationText is the display rendering of DurationMinutes.
	DurationText string
}

// Fx returns whichever FX result was computed, or nil.
func (o *Outcome) Fx() *domain.FxResult {
	if o.CrossCurrency != nil {
		return o.CrossCurrency
	}
	return o.SameCurrency
}

// Evaluate runs all classifiers over a measurement and composes the
// overall result. It is a pure function: the same measurement and
// thresholds always produce an identical outcome, and neither input is
// mutated. Missing or malformed inputs resolve to unknown-coded
// dimensions at score -1 so a partial record still yields a verdict.
func Evaluate(m *domain.Measurement, t domain.Thresholds) *Outcome {
	minutes := m.DurationMinutes
	if minutes == nil && m.StartTimestamp != nil && m.EndTimestamp != nil {
		minutes = DurationFromTimestamps(*m.StartTimestamp, *m.EndTimestamp)
	}
	speed := ClassifySpeed(minutes, t)

	var same, cross *domain.FxResult
	appliedCcy := normalizeCurrency(m.AppliedCurrency)
	receivedCcy := normalizeCurrency(m.ReceivedCurrency)
	if appliedCcy != "" && receivedCcy != "" && appliedCcy != receivedCcy {
		// A missing reference rate leaves the loss unknowable; that is
		// incomplete data, not a data-entry error.
		if m.ReferenceRate != nil {
			cross = ComputeCrossCurrency(m.AppliedAmount, appliedCcy, m.ReceivedAmount, receivedCcy, *m.ReferenceRate, t)
		}
	} else {
		same = ComputeSameCurrency(m.AppliedAmount, m.ReceivedAmount, t)
	}

	var pct *decimal.Decimal
	if cross != nil && cross.Err == "" {
		pct = cross.EffectiveLossPct()
	} else if same != nil && same.Err == "" {
		pct = same.EffectiveLossPct()
	}
	fx := ClassifySeverity(pct, t)

	kyc := ClassifyKycFriction(m.KycStatus)
	settlement := ClassifySettlement(m.SettlementStatus, m.ReceivedAmount)

	return &Outcome{
		Overall:         Aggregate(speed, fx, kyc, settlement),
		SameCurrency:    same,
		CrossCurrency:   cross,
		DurationMinutes: minutes,
		DurationText:    FormatDuration(minutes),
	}
}
