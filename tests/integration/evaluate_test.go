//go:build integration
// +build integration

// Package integration provides end-to-end tests for the Kestrel withdrawal
// audit engine.
//
// These tests verify the COMPLETE evaluation pipeline:
//
//	Measurement → Speed/FX/KYC/Settlement scoring → Flags → Audit verdict
//
// Run with: go test -tags=integration -v ./tests/integration/...
//
// UNDERSTANDING THE DOMAIN:
//
// 1. MEASUREMENT: One real-money withdrawal test on an audited platform:
//    how much was requested, how much arrived, how long it took, what
//    verification the platform demanded, and whether funds settled.
//
// 2. DIMENSIONS: Four independent classifiers, each contributing a score:
//    - Speed: instant +2 / fast +1 / normal 0 / slow -2 (unknown -1)
//    - FX loss: gain or zero +1 / normal +1 / moderate -1 / severe -3
//    - KYC friction: none +1 / light 0 / heavy or stuck -2
//    - Settlement: success +2 / failed or blocked -3 / pending -1
//
// 3. VERDICT: total <= -4 → high_risk, total >= 1 → low_risk,
//    else medium_risk.
//
// 4. FLAGS: operator-configured CEL annotations, attached as tags.
//
// Default thresholds: instant <= 5 min, fast <= 30, slow > 240;
// loss normal <= 0.5%, warn <= 2%, severe > 2%.
package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

// TestConfig holds test environment configuration
type TestConfig struct {
	BaseURL  string
	TenantID string
}

func getTestConfig() TestConfig {
	baseURL := os.Getenv("KESTREL_TEST_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return TestConfig{
		BaseURL:  baseURL,
		TenantID: "test-tenant",
	}
}

// ============================================================================
// API Request/Response Types (matching Kestrel's API contract)
// ============================================================================

// EvaluateRequest is the measurement sent to POST /evaluate
type EvaluateRequest struct {
	Platform         string   `json:"platform,omitempty"`
	AppliedAmount    float64  `json:"appliedAmount"`
	ReceivedAmount   float64  `json:"receivedAmount"`
	AppliedCurrency  string   `json:"appliedCurrency"`
	ReceivedCurrency string   `json:"receivedCurrency"`
	ReferenceRate    *float64 `json:"referenceRate,omitempty"`
	DurationMinutes  *float64 `json:"durationMinutes,omitempty"`
	KycStatus        string   `json:"kycStatus,omitempty"`
	SettlementStatus string   `json:"settlementStatus,omitempty"`
}

// Dimension is one scored audit dimension in the response.
type Dimension struct {
	Code  string `json:"code"`
	Label string `json:"label"`
	Score int    `json:"score"`
}

// EvaluateResponse is what POST /evaluate returns
type EvaluateResponse struct {
	AuditID       string `json:"auditId"`
	MeasurementID string `json:"measurementId"`
	Overall       struct {
		Speed      Dimension `json:"speed"`
		Fx         Dimension `json:"fx"`
		Kyc        Dimension `json:"kyc"`
		Settlement Dimension `json:"settlement"`

		TotalScore   int    `json:"totalScore"`
		OverallCode  string `json:"overallCode"`
		OverallColor string `json:"overallColor"`
	} `json:"overall"`
	Fx *struct {
		SevereLoss bool `json:"severeLoss"`
	} `json:"fx"`
	DurationText string   `json:"durationText"`
	Tags         []string `json:"tags"`
	Metadata     struct {
		TraceID       string `json:"traceId"`
		TotalMs       int64  `json:"totalMs"`
		EngineVersion string `json:"engineVersion"`
	} `json:"metadata"`
}

// ============================================================================
// Test Helper Functions
// ============================================================================

func evaluate(t *testing.T, config TestConfig, req EvaluateRequest) EvaluateResponse {
	t.Helper()

	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}

	httpReq, err := http.NewRequest("POST", config.BaseURL+"/evaluate", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", config.TenantID)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, string(respBody))
	}

	var result EvaluateResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		t.Fatalf("Failed to unmarshal response: %v (body: %s)", err, string(respBody))
	}

	return result
}

func minutes(m float64) *float64 { return &m }

// ============================================================================
// SCENARIO 1: Clean Withdrawal (Low Risk)
// ============================================================================

func TestCleanWithdrawal_LowRisk(t *testing.T) {
	/*
	   SCENARIO: A fast same-currency withdrawal with minimal loss,
	   no verification demanded, funds settled.

	   EXPECTED BEHAVIOR:
	   - Speed: 10 min → fast → +1
	   - FX: 5/1000 = 0.5% loss → normal (inclusive bound) → +1
	   - KYC: none → +1
	   - Settlement: success → +2
	   - Total +5 → low_risk / green
	*/
	config := getTestConfig()

	req := EvaluateRequest{
		Platform:         "site-clean",
		AppliedAmount:    1000,
		ReceivedAmount:   995,
		AppliedCurrency:  "CNY",
		ReceivedCurrency: "CNY",
		DurationMinutes:  minutes(10),
		KycStatus:        "none",
		SettlementStatus: "success",
	}

	result := evaluate(t, config, req)

	if result.Overall.OverallCode != "low_risk" {
		t.Errorf("Expected low_risk, got %s", result.Overall.OverallCode)
	}
	if result.Overall.OverallColor != "green" {
		t.Errorf("Expected green, got %s", result.Overall.OverallColor)
	}
	if result.Overall.Speed.Code != "fast" {
		t.Errorf("Expected fast speed band, got %s", result.Overall.Speed.Code)
	}
	// 0.5% sits exactly on the normal bound, which is inclusive.
	if result.Overall.Fx.Code != "normal" {
		t.Errorf("Expected normal fx band for exactly 0.5%% loss, got %s", result.Overall.Fx.Code)
	}
	if result.DurationText != "10分钟" {
		t.Errorf("Expected duration text 10分钟, got %s", result.DurationText)
	}

	t.Logf("Clean withdrawal: code=%s total=%d", result.Overall.OverallCode, result.Overall.TotalScore)
}

// ============================================================================
// SCENARIO 2: Severe Loss (Alert Signal Without High Risk)
// ============================================================================

func TestSevereLoss_MediumRisk(t *testing.T) {
	/*
	   SCENARIO: 5% loss on an otherwise clean withdrawal.

	   EXPECTED BEHAVIOR:
	   - FX: 5% > 2% warn → severe → -3 and severeLoss=true
	   - Speed fast +1, KYC sms 0, settlement success +2
	   - Total 0 → medium_risk, but the severe-loss signal still fires
	*/
	config := getTestConfig()

	req := EvaluateRequest{
		Platform:         "site-lossy",
		AppliedAmount:    1000,
		ReceivedAmount:   950,
		AppliedCurrency:  "CNY",
		ReceivedCurrency: "CNY",
		DurationMinutes:  minutes(10),
		KycStatus:        "sms",
		SettlementStatus: "success",
	}

	result := evaluate(t, config, req)

	if result.Overall.Fx.Code != "severe" {
		t.Errorf("Expected severe fx band, got %s", result.Overall.Fx.Code)
	}
	if result.Overall.OverallCode != "medium_risk" {
		t.Errorf("Expected medium_risk, got %s", result.Overall.OverallCode)
	}
	if result.Fx == nil || !result.Fx.SevereLoss {
		t.Error("Expected severeLoss signal in fx result")
	}

	t.Logf("Severe loss: code=%s total=%d severe=%v",
		result.Overall.OverallCode, result.Overall.TotalScore, result.Fx.SevereLoss)
}

// ============================================================================
// SCENARIO 3: Compound Failure (High Risk)
// ============================================================================

func TestCompoundFailure_HighRisk(t *testing.T) {
	/*
	   SCENARIO: Severe loss, stuck verification, failed settlement.

	   EXPECTED BEHAVIOR:
	   - FX severe -3, KYC stuck -2, settlement failed -3, speed fast +1
	   - Total -7 → high_risk / red
	*/
	config := getTestConfig()

	req := EvaluateRequest{
		Platform:         "site-bad",
		AppliedAmount:    1000,
		ReceivedAmount:   900,
		AppliedCurrency:  "CNY",
		ReceivedCurrency: "CNY",
		DurationMinutes:  minutes(10),
		KycStatus:        "stuck",
		SettlementStatus: "failed",
	}

	result := evaluate(t, config, req)

	if result.Overall.OverallCode != "high_risk" {
		t.Errorf("Expected high_risk, got %s", result.Overall.OverallCode)
	}
	if result.Overall.OverallColor != "red" {
		t.Errorf("Expected red, got %s", result.Overall.OverallColor)
	}
	if result.Overall.Settlement.Score != -3 {
		t.Errorf("Expected settlement score -3, got %d", result.Overall.Settlement.Score)
	}

	t.Logf("Compound failure: code=%s total=%d tags=%v",
		result.Overall.OverallCode, result.Overall.TotalScore, result.Tags)
}

// ============================================================================
// SCENARIO 4: Cross-Currency Deviation
// ============================================================================

func TestCrossCurrency_DeviationBanded(t *testing.T) {
	/*
	   SCENARIO: CNY→MYR withdrawal with an explicit reference rate.

	   EXPECTED BEHAVIOR:
	   - Expected amount: 1000 * 0.62 = 620 MYR
	   - Received 610 → deviation 10/620 = 1.61% → moderate band → -1
	*/
	config := getTestConfig()

	rate := 0.62
	req := EvaluateRequest{
		Platform:         "site-fx",
		AppliedAmount:    1000,
		ReceivedAmount:   610,
		AppliedCurrency:  "CNY",
		ReceivedCurrency: "MYR",
		ReferenceRate:    &rate,
		DurationMinutes:  minutes(10),
		KycStatus:        "none",
		SettlementStatus: "success",
	}

	result := evaluate(t, config, req)

	if result.Overall.Fx.Code != "moderate" {
		t.Errorf("Expected moderate fx band for 1.61%% deviation, got %s", result.Overall.Fx.Code)
	}

	t.Logf("Cross-currency: fx=%s total=%d", result.Overall.Fx.Code, result.Overall.TotalScore)
}

// ============================================================================
// SCENARIO 5: Missing Duration (Unknown Speed)
// ============================================================================

func TestMissingDuration_UnknownSpeed(t *testing.T) {
	/*
	   SCENARIO: No timestamps and no duration supplied.

	   EXPECTED BEHAVIOR:
	   - Speed: unknown → -1, empty duration text
	*/
	config := getTestConfig()

	req := EvaluateRequest{
		Platform:         "site-notime",
		AppliedAmount:    1000,
		ReceivedAmount:   995,
		AppliedCurrency:  "CNY",
		ReceivedCurrency: "CNY",
		KycStatus:        "none",
		SettlementStatus: "success",
	}

	result := evaluate(t, config, req)

	if result.Overall.Speed.Code != "unknown" {
		t.Errorf("Expected unknown speed band, got %s", result.Overall.Speed.Code)
	}
	if result.Overall.Speed.Score != -1 {
		t.Errorf("Expected speed score -1, got %d", result.Overall.Speed.Score)
	}
	if result.DurationText != "" {
		t.Errorf("Expected empty duration text, got %s", result.DurationText)
	}

	t.Logf("Missing duration: speed=%s total=%d", result.Overall.Speed.Code, result.Overall.TotalScore)
}

// ============================================================================
// SCENARIO 6: Input Validation
// ============================================================================

func postRaw(t *testing.T, config TestConfig, req EvaluateRequest, withTenant bool) int {
	t.Helper()

	body, _ := json.Marshal(req)
	httpReq, _ := http.NewRequest("POST", config.BaseURL+"/evaluate", bytes.NewReader(body))
	httpReq.Header.Set("Content-Type", "application/json")
	if withTenant {
		httpReq.Header.Set("X-Tenant-ID", config.TenantID)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()
	return resp.StatusCode
}

func TestZeroAmount_Error(t *testing.T) {
	config := getTestConfig()

	req := EvaluateRequest{
		AppliedAmount:    0, // Invalid!
		ReceivedAmount:   100,
		AppliedCurrency:  "CNY",
		ReceivedCurrency: "CNY",
	}

	if code := postRaw(t, config, req, true); code != http.StatusBadRequest {
		t.Errorf("Expected 400 for zero amount, got %d", code)
	}
}

func TestMissingCurrency_Error(t *testing.T) {
	config := getTestConfig()

	req := EvaluateRequest{
		AppliedAmount:   1000,
		ReceivedAmount:  995,
		AppliedCurrency: "CNY",
		// ReceivedCurrency missing!
	}

	if code := postRaw(t, config, req, true); code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing currency, got %d", code)
	}
}

func TestMissingTenantHeader_Error(t *testing.T) {
	config := getTestConfig()

	req := EvaluateRequest{
		AppliedAmount:    1000,
		ReceivedAmount:   995,
		AppliedCurrency:  "CNY",
		ReceivedCurrency: "CNY",
	}

	if code := postRaw(t, config, req, false); code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing tenant, got %d", code)
	}
}

// ============================================================================
// SCENARIO 7: Response Metadata Verification
// ============================================================================

func TestResponseMetadata(t *testing.T) {
	/*
	   SCENARIO: Verify the response includes all required metadata.

	   This ensures the API contract is stable for clients.
	*/
	config := getTestConfig()

	req := EvaluateRequest{
		Platform:         "site-meta",
		AppliedAmount:    1000,
		ReceivedAmount:   995,
		AppliedCurrency:  "CNY",
		ReceivedCurrency: "CNY",
		DurationMinutes:  minutes(10),
		KycStatus:        "none",
		SettlementStatus: "success",
	}

	result := evaluate(t, config, req)

	if result.AuditID == "" {
		t.Error("Missing auditId")
	}
	if result.MeasurementID == "" {
		t.Error("Missing measurementId")
	}

	switch result.Overall.OverallCode {
	case "high_risk", "medium_risk", "low_risk":
	default:
		t.Errorf("Invalid overallCode: %s", result.Overall.OverallCode)
	}

	if result.Metadata.TraceID == "" {
		t.Error("Missing metadata.traceId")
	}
	if result.Metadata.EngineVersion == "" {
		t.Error("Missing metadata.engineVersion")
	}
	// Note: TotalMs can be 0 for very fast operations (sub-millisecond)
	if result.Metadata.TotalMs < 0 {
		t.Error("Invalid metadata.totalMs (negative)")
	}

	t.Logf("Metadata complete: auditId=%s traceId=%s totalMs=%d",
		result.AuditID[:8], result.Metadata.TraceID[:8], result.Metadata.TotalMs)
}
