// Benchmark tool for replaying labeled withdrawal measurements against Kestrel.
//
// Usage:
//   go run cmd/benchmark/main.go -csv /path/to/withdrawals.csv -url http://localhost:8080
//
// This tool:
//   1. Reads withdrawal measurement data (with expected risk labels)
//   2. Sends each measurement to Kestrel's /evaluate endpoint
//   3. Compares Kestrel's verdict (high_risk or not) with the expected label
//   4. Calculates precision, recall, F1-score, and confusion matrix
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Row is one labeled withdrawal test from the input CSV.
type Row struct {
	Platform         string
	AppliedAmount    float64
	ReceivedAmount   float64
	AppliedCurrency  string
	ReceivedCurrency string
	ReferenceRate    float64
	DurationMinutes  float64
	HasDuration      bool
	KycStatus        string
	SettlementStatus string
	ExpectedHighRisk bool
}

// EvaluateRequest is the Kestrel API request format.
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

// EvaluateResponse is the subset of the audit response the benchmark reads.
type EvaluateResponse struct {
	AuditID string `json:"auditId"`
	Overall struct {
		TotalScore  int    `json:"totalScore"`
		OverallCode string `json:"overallCode"`
	} `json:"overall"`
	Tags []string `json:"tags"`
}

// Metrics tracks benchmark results.
type Metrics struct {
	TruePositives  int64 // Expected high risk, scored high_risk
	FalsePositives int64 // Expected benign, scored high_risk
	TrueNegatives  int64 // Expected benign, scored benign
	FalseNegatives int64 // Expected high risk, scored benign

	TotalProcessed int64
	TotalHighRisk  int64
	TotalBenign    int64
	TotalErrors    int64

	ProcessingTimeMs int64
}

func main() {
	csvPath := flag.String("csv", "", "Path to withdrawal measurement CSV file")
	baseURL := flag.String("url", "http://localhost:8080", "Kestrel base URL")
	tenantID := flag.String("tenant", "benchmark-test", "Tenant ID for requests")
	limit := flag.Int("limit", 10000, "Maximum measurements to process (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	verbose := flag.Bool("verbose", false, "Print each measurement result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: benchmark -csv /path/to/withdrawals.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("+---------------------------------------------------------------+")
	fmt.Println("|          KESTREL BENCHMARK - Withdrawal Audit Replay          |")
	fmt.Println("+---------------------------------------------------------------+")
	fmt.Printf("\nCSV File:    %s\n", *csvPath)
	fmt.Printf("Kestrel URL: %s\n", *baseURL)
	fmt.Printf("Tenant ID:   %s\n", *tenantID)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Printf("Limit:       %d\n", *limit)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Kestrel not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Kestrel is running:")
		fmt.Println("  go run cmd/kestrel/main.go")
		os.Exit(1)
	}
	fmt.Println("Kestrel is healthy")

	fmt.Printf("\nReading measurements from %s...\n", *csvPath)
	rows, err := readCSV(*csvPath, *limit)
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %d measurements\n", len(rows))

	highRiskCount := 0
	for _, row := range rows {
		if row.ExpectedHighRisk {
			highRiskCount++
		}
	}
	fmt.Printf("  - High risk: %d (%.2f%%)\n", highRiskCount, 100*float64(highRiskCount)/float64(len(rows)))
	fmt.Printf("  - Benign:    %d (%.2f%%)\n", len(rows)-highRiskCount, 100*float64(len(rows)-highRiskCount)/float64(len(rows)))

	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(rows, *baseURL, *tenantID, *workers, *verbose)
	duration := time.Since(startTime)

	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// readCSV parses the measurement CSV. Expected header columns:
// platform, applied_amount, received_amount, applied_currency,
// received_currency, reference_rate, duration_minutes, kyc_status,
// settlement_status, expected_high_risk.
func readCSV(path string, limit int) ([]Row, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}

	field := func(record []string, name string) string {
		i, ok := colIndex[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var rows []Row

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}

		applied, _ := strconv.ParseFloat(field(record, "applied_amount"), 64)
		received, _ := strconv.ParseFloat(field(record, "received_amount"), 64)
		rate, _ := strconv.ParseFloat(field(record, "reference_rate"), 64)

		row := Row{
			Platform:         field(record, "platform"),
			AppliedAmount:    applied,
			ReceivedAmount:   received,
			AppliedCurrency:  field(record, "applied_currency"),
			ReceivedCurrency: field(record, "received_currency"),
			ReferenceRate:    rate,
			KycStatus:        field(record, "kyc_status"),
			SettlementStatus: field(record, "settlement_status"),
			ExpectedHighRisk: field(record, "expected_high_risk") == "1",
		}

		if raw := field(record, "duration_minutes"); raw != "" {
			if mins, err := strconv.ParseFloat(raw, 64); err == nil {
				row.DurationMinutes = mins
				row.HasDuration = true
			}
		}

		rows = append(rows, row)

		if limit > 0 && len(rows) >= limit {
			break
		}
	}

	return rows, nil
}

func runBenchmark(rows []Row, baseURL, tenantID string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	work := make(chan Row, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for row := range work {
				start := time.Now()
				result, err := evaluateMeasurement(client, baseURL, tenantID, row)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", row.Platform, err)
					}
					continue
				}

				if row.ExpectedHighRisk {
					atomic.AddInt64(&metrics.TotalHighRisk, 1)
				} else {
					atomic.AddInt64(&metrics.TotalBenign, 1)
				}

				predicted := result.Overall.OverallCode == "high_risk"
				actual := row.ExpectedHighRisk

				if predicted && actual {
					atomic.AddInt64(&metrics.TruePositives, 1)
				} else if predicted && !actual {
					atomic.AddInt64(&metrics.FalsePositives, 1)
				} else if !predicted && !actual {
					atomic.AddInt64(&metrics.TrueNegatives, 1)
				} else { // !predicted && actual
					atomic.AddInt64(&metrics.FalseNegatives, 1)
				}

				if verbose {
					status := "ok "
					if (predicted && !actual) || (!predicted && actual) {
						status = "BAD"
					}
					fmt.Printf("%s %-12s | Applied: %10.2f %s | Received: %10.2f %s | Expected high: %-5v | Kestrel: %-11s (%d)\n",
						status,
						row.Platform,
						row.AppliedAmount,
						row.AppliedCurrency,
						row.ReceivedAmount,
						row.ReceivedCurrency,
						actual,
						result.Overall.OverallCode,
						result.Overall.TotalScore,
					)
				}
			}
		}()
	}

	for _, row := range rows {
		work <- row
	}
	close(work)

	wg.Wait()

	return metrics
}

func evaluateMeasurement(client *http.Client, baseURL, tenantID string, row Row) (*EvaluateResponse, error) {
	req := EvaluateRequest{
		Platform:         row.Platform,
		AppliedAmount:    row.AppliedAmount,
		ReceivedAmount:   row.ReceivedAmount,
		AppliedCurrency:  row.AppliedCurrency,
		ReceivedCurrency: row.ReceivedCurrency,
		KycStatus:        row.KycStatus,
		SettlementStatus: row.SettlementStatus,
	}
	if row.ReferenceRate > 0 {
		req.ReferenceRate = &row.ReferenceRate
	}
	if row.HasDuration {
		req.DurationMinutes = &row.DurationMinutes
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/evaluate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", tenantID)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result EvaluateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n+---------------------------------------------------------------+")
	fmt.Println("|                      BENCHMARK RESULTS                        |")
	fmt.Println("+---------------------------------------------------------------+")

	fmt.Printf("\nDATASET STATISTICS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Total High Risk:  %d\n", m.TotalHighRisk)
	fmt.Printf("   Total Benign:     %d\n", m.TotalBenign)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	fmt.Printf("\nCONFUSION MATRIX\n")
	fmt.Println("                          Predicted")
	fmt.Println("                    high_risk    benign")
	fmt.Printf("   Actual   HR    %10d %10d   (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Printf("            B     %10d %10d   (FP, TN)\n", m.FalsePositives, m.TrueNegatives)

	precision := float64(0)
	if m.TruePositives+m.FalsePositives > 0 {
		precision = float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
	}

	recall := float64(0)
	if m.TruePositives+m.FalseNegatives > 0 {
		recall = float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives)
	}

	f1 := float64(0)
	if precision+recall > 0 {
		f1 = 2 * (precision * recall) / (precision + recall)
	}

	accuracy := float64(0)
	total := m.TruePositives + m.TrueNegatives + m.FalsePositives + m.FalseNegatives
	if total > 0 {
		accuracy = float64(m.TruePositives+m.TrueNegatives) / float64(total)
	}

	fmt.Printf("\nDETECTION METRICS\n")
	fmt.Printf("   Precision:  %.4f  (of high-risk verdicts, how many were expected)\n", precision)
	fmt.Printf("   Recall:     %.4f  (of expected high-risk, how many were caught)\n", recall)
	fmt.Printf("   F1-Score:   %.4f  (harmonic mean of precision & recall)\n", f1)
	fmt.Printf("   Accuracy:   %.4f  (overall correct verdicts)\n", accuracy)

	fmt.Printf("\nDETECTION ANALYSIS\n")
	if m.TotalHighRisk > 0 {
		detectionRate := float64(m.TruePositives) / float64(m.TotalHighRisk) * 100
		missRate := float64(m.FalseNegatives) / float64(m.TotalHighRisk) * 100
		fmt.Printf("   High Risk Caught:  %d / %d (%.2f%%)\n", m.TruePositives, m.TotalHighRisk, detectionRate)
		fmt.Printf("   High Risk Missed:  %d / %d (%.2f%%)\n", m.FalseNegatives, m.TotalHighRisk, missRate)
	}
	if m.TotalBenign > 0 {
		falseAlarmRate := float64(m.FalsePositives) / float64(m.TotalBenign) * 100
		fmt.Printf("   False Alarms:      %d / %d (%.2f%%)\n", m.FalsePositives, m.TotalBenign, falseAlarmRate)
	}

	fmt.Printf("\nPERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		tps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f req/sec\n", tps)
	}

	fmt.Println()
}
