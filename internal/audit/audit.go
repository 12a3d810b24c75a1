// Package audit builds the persisted audit record for one withdrawal
// measurement: it runs the scorer, evaluates flag rules, and assembles
// the read model with processing metadata.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cashout-watch/kestrel/internal/domain"
	"github.com/cashout-watch/kestrel/internal/rules"
	"github.com/cashout-watch/kestrel/internal/scoring"
)

// EngineVersion is stamped into every audit's metadata.
const EngineVersion = "kestrel-1.0"

// Processor turns a measurement into a persisted audit record.
type Processor struct {
	flags    *rules.Engine
	defaults domain.Thresholds
}

// NewProcessor creates a processor. The flag engine may be nil, in which
// case no flag rules are evaluated.
func NewProcessor(flags *rules.Engine, defaults domain.Thresholds) *Processor {
	return &Processor{
		flags:    flags,
		defaults: defaults,
	}
}

// ProcessInput contains all data needed to build one audit.
type ProcessInput struct {
	TenantID    string
	TraceID     string
	Measurement *domain.Measurement

	// Overrides are per-request threshold overrides layered over the
	// processor defaults; nil means defaults apply unchanged.
	Overrides *domain.ThresholdOverrides

	StartTime time.Time
}

// Process scores the measurement, evaluates flag rules, and returns the
// assembled audit. Flag evaluation failures are recorded per-flag and
// never fail the audit.
func (p *Processor) Process(ctx context.Context, input *ProcessInput) (*domain.Audit, error) {
	thresholds := p.defaults.Apply(input.Overrides)

	scoreStart := time.Now()
	outcome := scoring.Evaluate(input.Measurement, thresholds)
	scoreMs := time.Since(scoreStart).Milliseconds()

	var flagResults []domain.FlagResult
	var flagsMs int64
	if p.flags != nil {
		flagsStart := time.Now()
		results, err := p.flags.EvaluateAll(ctx, &rules.EvaluateInput{
			TenantID:      input.TenantID,
			MeasurementID: input.Measurement.ID,
			Measurement:   input.Measurement,
			Outcome:       outcome,
		})
		flagsMs = time.Since(flagsStart).Milliseconds()
		if err == nil {
			flagResults = results
		}
	}

	audit := &domain.Audit{
		ID:              uuid.New().String(),
		TenantID:        input.TenantID,
		MeasurementID:   input.Measurement.ID,
		Platform:        input.Measurement.Platform,
		Timestamp:       time.Now().UTC(),
		Overall:         outcome.Overall,
		SameCurrencyFx:  outcome.SameCurrency,
		CrossCurrencyFx: outcome.CrossCurrency,
		DurationText:    outcome.DurationText,
		Flags:           flagResults,
	}

	startTime := input.StartTime
	if startTime.IsZero() {
		startTime = scoreStart
	}

	audit.Metadata = domain.AuditMetadata{
		TraceID:        input.TraceID,
		ScoreMs:        scoreMs,
		FlagsMs:        flagsMs,
		TotalMs:        time.Since(startTime).Milliseconds(),
		FlagsEvaluated: len(flagResults),
		EngineVersion:  EngineVersion,
	}

	return audit, nil
}

// ShouldAlert reports whether an audit warrants an alert event: a
// high-risk verdict or a severe FX loss.
func ShouldAlert(a *domain.Audit) bool {
	if a.Overall.OverallCode == domain.OverallHighRisk {
		return true
	}
	fx := a.CrossCurrencyFx
	if fx == nil {
		fx = a.SameCurrencyFx
	}
	return fx != nil && fx.SevereLoss
}

// AlertReasons extracts human-readable reasons from an audit's matched
// flags and risk dimensions.
func AlertReasons(a *domain.Audit) []string {
	var reasons []string
	if a.Overall.OverallCode == domain.OverallHighRisk {
		reasons = append(reasons, a.Overall.OverallLabel)
	}
	for _, dim := range []domain.DimensionResult{a.Overall.Speed, a.Overall.Fx, a.Overall.Kyc, a.Overall.Settlement} {
		if dim.Score <= -2 {
			reasons = append(reasons, dim.Label)
		}
	}
	for _, f := range a.Flags {
		if f.Matched && f.Tag != "" {
			reasons = append(reasons, f.Tag)
		}
	}
	return reasons
}
