// Package scoring implements the withdrawal-audit scoring engine: five
// independent classifications (speed, FX loss, KYC friction, settlement
// outcome, overall risk) over a raw measurement. Every function here is a
// pure computation over its inputs; the engine holds no state, performs
// no I/O, and never mutates the thresholds or the measurement it is given.
package scoring

import (
	"math"
	"strconv"
	"strings"

	"github.com/cashout-watch/kestrel/internal/domain"
)

// DurationFromTimestamps derives the processing duration in minutes from
// two unix-second timestamps, rounded to 2 decimal places. A negative
// span (end before start) is "unavailable", not a fault: it returns nil.
func DurationFromTimestamps(start, end int64) *float64 {
	if end < start {
		return nil
	}
	minutes := math.Round(float64(end-start)/60*100) / 100
	return &minutes
}

// FormatDuration renders a duration for display. Nil, negative, or
// non-finite input yields an empty string. Under one minute renders the
// instant marker; one hour and above renders in hours with one decimal
// place and a stripped trailing zero, otherwise in minutes the same way.
func FormatDuration(minutes *float64) string {
	if minutes == nil {
		return ""
	}
	m := *minutes
	if m < 0 || math.IsNaN(m) || math.IsInf(m, 0) {
		return ""
	}
	if m < 1 {
		return durationInstantText
	}
	if m >= 60 {
		return renderOneDecimal(m/60) + durationHourSuffix
	}
	return renderOneDecimal(m) + durationMinuteSuffix
}

// renderOneDecimal renders with one decimal place and strips a trailing
// ".0" ("1.0" → "1", "2.5" stays). An empty render falls back to "1".
func renderOneDecimal(v float64) string {
	s := strconv.FormatFloat(v, 'f', 1, 64)
	s = strings.TrimSuffix(s, ".0")
	if s == "" {
		s = "1"
	}
	return s
}

// ClassifySpeed bands the processing duration. Band boundaries are
// inclusive on the lower side: a value exactly at the instant threshold
// is instant, not fast. The classifier trusts the caller to supply
// thresholds with instant <= fast <= slow.
func ClassifySpeed(minutes *float64, t domain.Thresholds) domain.DimensionResult {
	if minutes == nil || *minutes < 0 || math.IsNaN(*minutes) || math.IsInf(*minutes, 0) {
		return domain.DimensionResult{
			Code:  SpeedUnknown,
			Label: labelSpeedUnknown,
			Score: -1,
			Tags:  []string{labelSpeedUnknown},
		}
	}

	m := *minutes
	switch {
	case m <= t.SpeedInstantMins:
		return domain.DimensionResult{
			Code:  SpeedInstant,
			Label: labelSpeedInstant,
			Score: 2,
			Tags:  []string{labelSpeedInstant, durationInstantText},
		}
	case m <= t.SpeedFastMins:
		return domain.DimensionResult{
			Code:  SpeedFast,
			Label: labelSpeedFast,
			Score: 1,
			Tags:  []string{labelSpeedFast},
		}
	case m <= t.SpeedSlowMins:
		return domain.DimensionResult{
			Code:  SpeedNormal,
			Label: labelSpeedNormal,
			Score: 0,
			Tags:  []string{labelSpeedNormal},
		}
	default:
		return domain.DimensionResult{
			Code:  SpeedSlow,
			Label: labelSpeedSlow,
			Score: -2,
			Tags:  []string{labelSpeedSlow},
		}
	}
}
