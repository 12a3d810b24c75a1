package scoring

import (
	"github.com/shopspring/decimal"

	"github.com/cashout-watch/kestrel/internal/domain"
)

// ClassifySettlement maps the settlement status plus the received amount
// to an outcome band. A success status with no positive credited amount
// is an inconsistent record; it is treated as a risk signal rather than a
// data-entry fault, because it reflects an ambiguous real-world outcome.
func ClassifySettlement(status string, received decimal.Decimal) domain.DimensionResult {
	switch status {
	case domain.SettlementSuccess:
		if received.IsPositive() {
			return domain.DimensionResult{
				Code:  SettlementSuccess,
				Label: labelSettlementSuccess,
				Score: 2,
				Tags:  []string{labelSettlementSuccess},
			}
		}
		return failureRisk()
	case domain.SettlementFailed, domain.SettlementBlocked:
		return failureRisk()
	default:
		// Pending, unrecognized, or missing status.
		return domain.DimensionResult{
			Code:  SettlementNeedsReview,
			Label: labelSettlementReview,
			Score: -1,
			Tags:  []string{labelSettlementReview},
		}
	}
}

func failureRisk() domain.DimensionResult {
	return domain.DimensionResult{
		Code:  SettlementFailureRisk,
		Label: labelSettlementFailure,
		Score: -3,
		Tags:  []string{labelSettlementFailure},
	}
}
