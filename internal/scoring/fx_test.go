package scoring

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/cashout-watch/kestrel/internal/domain"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestComputeSameCurrency(t *testing.T) {
	cfg := domain.DefaultThresholds()

	res := ComputeSameCurrency(dec("1000"), dec("995"), cfg)
	if res.Err != "" {
		t.Fatalf("unexpected error: %s", res.Err)
	}
	if !res.LossAmount.Equal(dec("5")) {
		t.Errorf("lossAmount = %s, want 5", res.LossAmount)
	}
	if !res.LossPct.Equal(dec("0.5")) {
		t.Errorf("lossPct = %s, want 0.5", res.LossPct)
	}
	if res.DeviationPct != nil {
		t.Errorf("deviationPct must be nil in same-currency mode, got %s", res.DeviationPct)
	}
	if res.CrossCurrency {
		t.Error("crossCurrency must be false")
	}
	if res.SevereLoss {
		t.Error("0.5%% loss must not set the severe flag at the 2.0 default")
	}
}

func TestComputeSameCurrencyInvalidApplied(t *testing.T) {
	cfg := domain.DefaultThresholds()

	for _, applied := range []string{"0", "-10"} {
		res := ComputeSameCurrency(dec(applied), dec("100"), cfg)
		if res.Err != domain.FxErrInvalidInput {
			t.Errorf("applied=%s: error = %q, want %q", applied, res.Err, domain.FxErrInvalidInput)
		}
		if res.LossAmount != nil || res.LossPct != nil {
			t.Errorf("applied=%s: amount fields must be nil on error", applied)
		}
	}
}

func TestComputeSameCurrencyDataEntryError(t *testing.T) {
	cfg := domain.DefaultThresholds()

	// Received exceeds applied by more than the 5% slack.
	res := ComputeSameCurrency(dec("1000"), dec("1100"), cfg)
	if res.Err != domain.FxErrDataEntry {
		t.Fatalf("error = %q, want %q", res.Err, domain.FxErrDataEntry)
	}
	if res.LossAmount != nil || res.LossPct != nil || res.ExpectedAmount != nil {
		t.Error("amount fields must be nil on data entry error")
	}

	// Exactly at the slack boundary is still acceptable.
	res = ComputeSameCurrency(dec("1000"), dec("1050"), cfg)
	if res.Err != "" {
		t.Errorf("received at exactly 105%% must pass, got error %q", res.Err)
	}
	if !res.LossAmount.Equal(dec("-50")) {
		t.Errorf("lossAmount = %s, want -50", res.LossAmount)
	}
}

func TestComputeCrossCurrency(t *testing.T) {
	cfg := domain.DefaultThresholds()

	res := ComputeCrossCurrency(dec("5000"), "cny", dec("3050"), "myr", dec("0.62"), cfg)
	if res.Err != "" {
		t.Fatalf("unexpected error: %s", res.Err)
	}
	if !res.ExpectedAmount.Equal(dec("3100")) {
		t.Errorf("expectedAmount = %s, want 3100", res.ExpectedAmount)
	}
	if !res.LossAmount.Equal(dec("50")) {
		t.Errorf("lossAmount = %s, want 50", res.LossAmount)
	}
	if !res.DeviationPct.Equal(dec("1.6129")) {
		t.Errorf("deviationPct = %s, want 1.6129", res.DeviationPct)
	}
	if !res.LossPct.Equal(res.DeviationPct.Copy()) {
		t.Errorf("lossPct (%s) must mirror deviationPct (%s) in cross mode", res.LossPct, res.DeviationPct)
	}
	if !res.CrossCurrency {
		t.Error("crossCurrency must be true")
	}
	if res.AppliedCurrency != "CNY" || res.ReceivedCurrency != "MYR" {
		t.Errorf("currency codes not normalized: %s/%s", res.AppliedCurrency, res.ReceivedCurrency)
	}
	if res.RateUsed == nil || !res.RateUsed.Equal(dec("0.62")) {
		t.Errorf("rateUsed = %v, want 0.62", res.RateUsed)
	}
	if res.SevereLoss {
		t.Error("1.6129%% deviation must not set the severe flag at the 2.0 default")
	}
}

func TestComputeCrossCurrencyGuards(t *testing.T) {
	cfg := domain.DefaultThresholds()

	tests := []struct {
		name     string
		applied  string
		received string
		rate     string
		wantErr  domain.FxErrorKind
	}{
		{"zero applied", "0", "100", "1.2", domain.FxErrInvalidInput},
		{"negative rate", "100", "100", "-1", domain.FxErrInvalidInput},
		{"zero rate", "100", "100", "0", domain.FxErrInvalidInput},
		{"received above slack", "1000", "1300", "1.2", domain.FxErrDataEntry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ComputeCrossCurrency(dec(tt.applied), "USD", dec(tt.received), "EUR", dec(tt.rate), cfg)
			if res.Err != tt.wantErr {
				t.Errorf("error = %q, want %q", res.Err, tt.wantErr)
			}
			if res.LossAmount != nil || res.LossPct != nil {
				t.Error("amount fields must be nil on error")
			}
		})
	}
}

func TestComputeCrossCurrencySevereFlag(t *testing.T) {
	cfg := domain.DefaultThresholds()

	// 1000 * 1.0 expected, 950 received: 5% deviation, above the 2.0 flag.
	res := ComputeCrossCurrency(dec("1000"), "USD", dec("950"), "USDT", dec("1.0"), cfg)
	if res.Err != "" {
		t.Fatalf("unexpected error: %s", res.Err)
	}
	if !res.SevereLoss {
		t.Error("5%% deviation must set the severe-loss flag")
	}

	// The flag threshold is independent of the normal/warn banding.
	loose := cfg
	loose.SevereLossPct = 10
	res = ComputeCrossCurrency(dec("1000"), "USD", dec("950"), "USDT", dec("1.0"), loose)
	if res.SevereLoss {
		t.Error("5%% deviation must not set the flag at a 10.0 threshold")
	}
}

func TestClassifySeverity(t *testing.T) {
	cfg := domain.DefaultThresholds()

	tests := []struct {
		name      string
		pct       *decimal.Decimal
		wantCode  string
		wantScore int
	}{
		{"nil", nil, FxUnknown, -1},
		{"favorable", decPtr("-0.3"), FxRateGain, 1},
		{"exactly zero", decPtr("0"), FxZeroLoss, 1},
		{"minimal", decPtr("0.3"), FxNormal, 1},
		{"at normal boundary", decPtr("0.5"), FxNormal, 1},
		{"moderate", decPtr("1.0"), FxModerate, -1},
		{"at warn boundary", decPtr("2.0"), FxModerate, -1},
		{"severe", decPtr("2.0001"), FxSevere, -3},
		{"very severe", decPtr("15"), FxSevere, -3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifySeverity(tt.pct, cfg)
			if got.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Score != tt.wantScore {
				t.Errorf("score = %d, want %d", got.Score, tt.wantScore)
			}
		})
	}
}

func TestEffectiveLossPct(t *testing.T) {
	loss := dec("0.4")
	devi := dec("1.2")

	same := &domain.FxResult{LossPct: &loss}
	if got := same.EffectiveLossPct(); !got.Equal(loss) {
		t.Errorf("same-currency effective = %s, want %s", got, loss)
	}

	cross := &domain.FxResult{LossPct: &loss, DeviationPct: &devi}
	if got := cross.EffectiveLossPct(); !got.Equal(devi) {
		t.Errorf("cross-currency effective = %s, want deviation %s", got, devi)
	}

	var missing *domain.FxResult
	if got := missing.EffectiveLossPct(); got != nil {
		t.Errorf("nil result effective = %s, want nil", got)
	}
}

func TestRoundingPlaces(t *testing.T) {
	cfg := domain.DefaultThresholds()

	// 1/3-ish amounts exercise the fixed rounding: 8 places for amounts,
	// 4 for percentages, regardless of magnitude.
	res := ComputeSameCurrency(dec("3"), dec("2"), cfg)
	if res.Err != "" {
		t.Fatalf("unexpected error: %s", res.Err)
	}
	if got := res.LossPct.String(); got != "33.3333" {
		t.Errorf("lossPct = %s, want 33.3333", got)
	}

	res = ComputeCrossCurrency(dec("1"), "BTC", dec("0.1"), "ETH", dec("0.123456789123"), cfg)
	if res.Err != "" {
		t.Fatalf("unexpected error: %s", res.Err)
	}
	if got := res.ExpectedAmount.String(); got != "0.12345679" {
		t.Errorf("expectedAmount = %s, want 0.12345679", got)
	}
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}
