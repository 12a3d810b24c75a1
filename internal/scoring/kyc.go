package scoring

import (
	"github.com/cashout-watch/kestrel/internal/domain"
)

// ClassifyKycFriction maps a KYC status token to a friction band.
// Matching is case-sensitive on a small closed token set. An empty token
// means nothing was recorded (insufficient_info); an unrecognized
// non-empty token means a value was observed but not understood, which
// lands in the moderate bucket rather than unknown.
func ClassifyKycFriction(status string) domain.DimensionResult {
	switch status {
	case "":
		return domain.DimensionResult{
			Code:  KycInsufficientInfo,
			Label: labelKycInsufficient,
			Score: -1,
			Tags:  []string{labelKycInsufficient},
		}
	case "none":
		return domain.DimensionResult{
			Code:  KycLowFriction,
			Label: labelKycLow,
			Score: 1,
			Tags:  []string{labelKycLow},
		}
	case "sms", "id_card":
		return domain.DimensionResult{
			Code:  KycLightFriction,
			Label: labelKycLight,
			Score: 0,
			Tags:  []string{labelKycLight},
		}
	case "video", "face", "stuck":
		return domain.DimensionResult{
			Code:  KycHighFriction,
			Label: labelKycHigh,
			Score: -2,
			Tags:  []string{labelKycHigh, "风控严格"},
		}
	default:
		return domain.DimensionResult{
			Code:  KycModerateFriction,
			Label: labelKycModerate,
			Score: -1,
			Tags:  []string{labelKycModerate},
		}
	}
}
