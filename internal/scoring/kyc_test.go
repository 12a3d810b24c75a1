package scoring

import (
	"testing"
)

func TestClassifyKycFriction(t *testing.T) {
	tests := []struct {
		status    string
		wantCode  string
		wantScore int
	}{
		{"", KycInsufficientInfo, -1},
		{"none", KycLowFriction, 1},
		{"sms", KycLightFriction, 0},
		{"id_card", KycLightFriction, 0},
		{"video", KycHighFriction, -2},
		{"face", KycHighFriction, -2},
		{"stuck", KycHighFriction, -2},
		{"manual_review", KycModerateFriction, -1},
		// Matching is case-sensitive: an uppercased known token is an
		// unrecognized value, not a recognized band.
		{"NONE", KycModerateFriction, -1},
		{"Sms", KycModerateFriction, -1},
	}

	for _, tt := range tests {
		t.Run("status="+tt.status, func(t *testing.T) {
			got := ClassifyKycFriction(tt.status)
			if got.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Score != tt.wantScore {
				t.Errorf("score = %d, want %d", got.Score, tt.wantScore)
			}
		})
	}
}
