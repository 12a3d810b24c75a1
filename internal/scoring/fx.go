package scoring

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cashout-watch/kestrel/internal/domain"
)

var (
	// receivedSlack is the tolerance band for credited amounts: rounding
	// and fee noise can push the received amount slightly above the
	// request, but more than 5% over is a transcription error.
	receivedSlack = decimal.RequireFromString("1.05")

	hundred = decimal.NewFromInt(100)
)

const (
	amountPlaces = 8
	pctPlaces    = 4
)

// ComputeSameCurrency computes the loss when the withdrawal was requested
// and credited in the same currency. DeviationPct is always nil in this
// mode; there is no market-rate deviation concept without a conversion.
func ComputeSameCurrency(applied, received decimal.Decimal, t domain.Thresholds) *domain.FxResult {
	if !applied.IsPositive() {
		return &domain.FxResult{Err: domain.FxErrInvalidInput}
	}
	if received.GreaterThan(applied.Mul(receivedSlack)) {
		return &domain.FxResult{Err: domain.FxErrDataEntry}
	}

	lossAmount := applied.Sub(received).Round(amountPlaces)
	lossPct := lossAmount.Div(applied).Mul(hundred).Round(pctPlaces)

	return &domain.FxResult{
		LossAmount: &lossAmount,
		LossPct:    &lossPct,
		SevereLoss: lossPct.GreaterThan(decimal.NewFromFloat(t.SevereLossPct)),
	}
}

// ComputeCrossCurrency computes the loss against what a fair mid-rate
// conversion should have yielded. LossPct and DeviationPct intentionally
// carry the same value in this mode: same-currency results only populate
// LossPct, so downstream code can use DeviationPct when present and fall
// back to LossPct otherwise.
func ComputeCrossCurrency(applied decimal.Decimal, appliedCcy string, received decimal.Decimal, receivedCcy string, rate decimal.Decimal, t domain.Thresholds) *domain.FxResult {
	base := &domain.FxResult{
		CrossCurrency:    true,
		AppliedCurrency:  normalizeCurrency(appliedCcy),
		ReceivedCurrency: normalizeCurrency(receivedCcy),
	}

	if !applied.IsPositive() || !rate.IsPositive() {
		base.Err = domain.FxErrInvalidInput
		return base
	}

	expected := applied.Mul(rate).Round(amountPlaces)
	if !expected.IsPositive() {
		base.Err = domain.FxErrExpectedAmountZero
		return base
	}
	if received.GreaterThan(expected.Mul(receivedSlack)) {
		base.Err = domain.FxErrDataEntry
		return base
	}

	lossAmount := expected.Sub(received).Round(amountPlaces)
	lossPct := lossAmount.Div(expected).Mul(hundred).Round(pctPlaces)
	deviationPct := lossPct

	base.LossAmount = &lossAmount
	base.LossPct = &lossPct
	base.DeviationPct = &deviationPct
	base.ExpectedAmount = &expected
	base.RateUsed = &rate
	base.SevereLoss = deviationPct.GreaterThan(decimal.NewFromFloat(t.SevereLossPct))
	return base
}

// ClassifySeverity bands an effective loss percentage. The caller picks
// the percentage with the fallback rule "prefer deviation, else loss"
// (FxResult.EffectiveLossPct). A strictly negative value means the rate
// moved in the user's favor; exactly zero is kept as its own
// non-penalizing code so display can distinguish the two.
func ClassifySeverity(pct *decimal.Decimal, t domain.Thresholds) domain.DimensionResult {
	if pct == nil {
		return domain.DimensionResult{
			Code:  FxUnknown,
			Label: labelFxUnknown,
			Score: -1,
			Tags:  []string{labelFxUnknown},
		}
	}

	switch {
	case pct.IsNegative():
		return domain.DimensionResult{
			Code:  FxRateGain,
			Label: labelFxRateGain,
			Score: 1,
			Tags:  []string{labelFxRateGain},
		}
	case pct.IsZero():
		return domain.DimensionResult{
			Code:  FxZeroLoss,
			Label: labelFxZeroLoss,
			Score: 1,
			Tags:  []string{labelFxZeroLoss},
		}
	case pct.LessThanOrEqual(decimal.NewFromFloat(t.LossNormalPct)):
		return domain.DimensionResult{
			Code:  FxNormal,
			Label: labelFxNormal,
			Score: 1,
			Tags:  []string{labelFxNormal},
		}
	case pct.LessThanOrEqual(decimal.NewFromFloat(t.LossWarnPct)):
		return domain.DimensionResult{
			Code:  FxModerate,
			Label: labelFxModerate,
			Score: -1,
			Tags:  []string{labelFxModerate},
		}
	default:
		return domain.DimensionResult{
			Code:  FxSevere,
			Label: labelFxSevere,
			Score: -3,
			Tags:  []string{labelFxSevere, "谨慎出金"},
		}
	}
}

func normalizeCurrency(ccy string) string {
	return strings.ToUpper(strings.TrimSpace(ccy))
}
