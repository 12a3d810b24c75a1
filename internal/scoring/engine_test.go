package scoring

import (
	"reflect"
	"testing"

	"github.com/cashout-watch/kestrel/internal/domain"
)

func dim(score int) domain.DimensionResult {
	return domain.DimensionResult{Code: "x", Label: "x", Score: score}
}

func TestAggregateBanding(t *testing.T) {
	tests := []struct {
		name      string
		scores    [4]int
		wantTotal int
		wantCode  string
		wantColor string
	}{
		{"exactly -4 is high risk", [4]int{-3, -1, 0, 0}, -4, domain.OverallHighRisk, domain.ColorRed},
		{"worst case", [4]int{-2, -3, -2, -3}, -10, domain.OverallHighRisk, domain.ColorRed},
		{"exactly 0 is medium risk", [4]int{2, 1, -1, -2}, 0, domain.OverallMediumRisk, domain.ColorOrange},
		{"-3 is still medium risk", [4]int{0, -1, -1, -1}, -3, domain.OverallMediumRisk, domain.ColorOrange},
		{"exactly +1 is low risk", [4]int{2, 1, -1, -1}, 1, domain.OverallLowRisk, domain.ColorGreen},
		{"best case", [4]int{2, 1, 1, 2}, 6, domain.OverallLowRisk, domain.ColorGreen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Aggregate(dim(tt.scores[0]), dim(tt.scores[1]), dim(tt.scores[2]), dim(tt.scores[3]))
			if got.TotalScore != tt.wantTotal {
				t.Errorf("totalScore = %d, want %d", got.TotalScore, tt.wantTotal)
			}
			if got.OverallCode != tt.wantCode {
				t.Errorf("overallCode = %q, want %q", got.OverallCode, tt.wantCode)
			}
			if got.OverallColor != tt.wantColor {
				t.Errorf("overallColor = %q, want %q", got.OverallColor, tt.wantColor)
			}
			if got.OverallLabel == "" {
				t.Error("overallLabel must not be empty")
			}
		})
	}
}

func TestEvaluateCleanWithdrawal(t *testing.T) {
	cfg := domain.DefaultThresholds()
	m := &domain.Measurement{
		AppliedAmount:    dec("1000"),
		ReceivedAmount:   dec("998"),
		AppliedCurrency:  "USDT",
		ReceivedCurrency: "USDT",
		DurationMinutes:  fptr(3),
		KycStatus:        "none",
		SettlementStatus: domain.SettlementSuccess,
	}

	out := Evaluate(m, cfg)

	// instant(+2) + normal loss(+1) + low friction(+1) + success(+2) = 6
	if out.Overall.TotalScore != 6 {
		t.Errorf("totalScore = %d, want 6", out.Overall.TotalScore)
	}
	if out.Overall.OverallCode != domain.OverallLowRisk {
		t.Errorf("overallCode = %q, want low_risk", out.Overall.OverallCode)
	}
	if out.SameCurrency == nil || out.CrossCurrency != nil {
		t.Fatal("expected a same-currency result only")
	}
	if !out.SameCurrency.LossPct.Equal(dec("0.2")) {
		t.Errorf("lossPct = %s, want 0.2", out.SameCurrency.LossPct)
	}
	if out.DurationText != "3分钟" {
		t.Errorf("durationText = %q, want 3分钟", out.DurationText)
	}
}

func TestEvaluateCrossCurrency(t *testing.T) {
	cfg := domain.DefaultThresholds()
	rate := dec("0.62")
	m := &domain.Measurement{
		AppliedAmount:    dec("5000"),
		ReceivedAmount:   dec("3050"),
		AppliedCurrency:  "CNY",
		ReceivedCurrency: "MYR",
		ReferenceRate:    &rate,
		DurationMinutes:  fptr(20),
		KycStatus:        "sms",
		SettlementStatus: domain.SettlementSuccess,
	}

	out := Evaluate(m, cfg)

	if out.CrossCurrency == nil || out.SameCurrency != nil {
		t.Fatal("expected a cross-currency result only")
	}
	if !out.CrossCurrency.ExpectedAmount.Equal(dec("3100")) {
		t.Errorf("expectedAmount = %s, want 3100", out.CrossCurrency.ExpectedAmount)
	}
	// fast(+1) + moderate loss(-1) + light friction(0) + success(+2) = 2
	if out.Overall.TotalScore != 2 {
		t.Errorf("totalScore = %d, want 2", out.Overall.TotalScore)
	}
	if out.Fx() != out.CrossCurrency {
		t.Error("Fx() must return the cross-currency result")
	}
}

func TestEvaluateCrossCurrencyWithoutRate(t *testing.T) {
	cfg := domain.DefaultThresholds()
	m := &domain.Measurement{
		AppliedAmount:    dec("5000"),
		ReceivedAmount:   dec("3050"),
		AppliedCurrency:  "CNY",
		ReceivedCurrency: "MYR",
		SettlementStatus: domain.SettlementSuccess,
	}

	out := Evaluate(m, cfg)

	if out.CrossCurrency != nil || out.SameCurrency != nil {
		t.Fatal("no FX computation possible without a reference rate")
	}
	if out.Overall.Fx.Code != FxUnknown || out.Overall.Fx.Score != -1 {
		t.Errorf("fx dimension = %+v, want unknown at -1", out.Overall.Fx)
	}
}

func TestEvaluatePartialRecordStillScores(t *testing.T) {
	cfg := domain.DefaultThresholds()

	// A nearly empty record: every dimension falls back, nothing faults.
	m := &domain.Measurement{
		AppliedCurrency:  "USDT",
		ReceivedCurrency: "USDT",
	}
	out := Evaluate(m, cfg)

	// speed unknown(-1) + fx unknown(-1, zero applied amount is an input
	// error) + kyc insufficient(-1) + settlement review(-1) = -4
	if out.Overall.TotalScore != -4 {
		t.Errorf("totalScore = %d, want -4", out.Overall.TotalScore)
	}
	if out.Overall.OverallCode != domain.OverallHighRisk {
		t.Errorf("overallCode = %q, want high_risk", out.Overall.OverallCode)
	}
	if out.SameCurrency == nil || out.SameCurrency.Err != domain.FxErrInvalidInput {
		t.Errorf("expected invalid_input FX error, got %+v", out.SameCurrency)
	}
}

func TestEvaluateTimestampsFallback(t *testing.T) {
	cfg := domain.DefaultThresholds()
	start, end := int64(1000), int64(1000+45*60)
	m := &domain.Measurement{
		AppliedAmount:    dec("100"),
		ReceivedAmount:   dec("100"),
		AppliedCurrency:  "USDT",
		ReceivedCurrency: "USDT",
		StartTimestamp:   &start,
		EndTimestamp:     &end,
		KycStatus:        "none",
		SettlementStatus: domain.SettlementSuccess,
	}

	out := Evaluate(m, cfg)
	if out.DurationMinutes == nil || *out.DurationMinutes != 45 {
		t.Fatalf("durationMinutes = %v, want 45", out.DurationMinutes)
	}
	if out.Overall.Speed.Code != SpeedNormal {
		t.Errorf("speed code = %q, want normal", out.Overall.Speed.Code)
	}
	if out.Overall.Fx.Code != FxZeroLoss {
		t.Errorf("fx code = %q, want zero_loss", out.Overall.Fx.Code)
	}
}

func TestEvaluateIdempotent(t *testing.T) {
	cfg := domain.DefaultThresholds()
	rate := dec("7.25")
	m := &domain.Measurement{
		AppliedAmount:    dec("1000"),
		ReceivedAmount:   dec("7100"),
		AppliedCurrency:  "USD",
		ReceivedCurrency: "CNY",
		ReferenceRate:    &rate,
		DurationMinutes:  fptr(12.5),
		KycStatus:        "id_card",
		SettlementStatus: domain.SettlementSuccess,
	}

	first := Evaluate(m, cfg)
	second := Evaluate(m, cfg)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("evaluations differ:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}
