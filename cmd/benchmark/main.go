// Benchmark tool for testing the OCPD engine against a labeled portfolio.
//
// Usage:
//   go run cmd/benchmark/main.go -csv /path/to/portfolio.csv -url http://localhost:8080
//
// This tool:
//   1. Reads a broker portfolio CSV (with expected-referral labels)
//   2. Sends each application to the engine for calculation
//   3. Compares the engine's decision (REFERRED/AUTO_APPROVED) with the labels
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

// PortfolioApplication represents a row from the portfolio dataset.
type PortfolioApplication struct {
	ApplicantID       string
	SumInsured        float64
	TerritorialScope  string
	Clauses           []string
	YearsInBusiness   int
	FleetSize         int
	Claims            int
	HighValueGoods    bool
	UnattendedParking bool
	ExpectReferral    bool
}

// CalculateRequest is the engine API request format.
type CalculateRequest struct {
	ApplicantID      string   `json:"applicantId"`
	SumInsured       float64  `json:"sumInsured"`
	TerritorialScope string   `json:"territorialScope"`
	SelectedClauses  []string `json:"selectedClauses,omitempty"`
	APK              struct {
		ClaimsLastThreeYears int  `json:"claimsLastThreeYears"`
		HighValueGoods       bool `json:"highValueGoods"`
		UnattendedParking    bool `json:"unattendedParking"`
	} `json:"apk"`
	YearsInBusiness int `json:"yearsInBusiness"`
	FleetSize       int `json:"fleetSize"`
}

// CalculateResponse is the engine API response format.
type CalculateResponse struct {
	Quote struct {
		ID     string `json:"id"`
		Status string `json:"status"` // "AUTO_APPROVED" or "REFERRED"
		Result struct {
			RiskLevel       string   `json:"riskLevel"`
			ReferralReasons []string `json:"referralReasons"`
		} `json:"result"`
	} `json:"quote"`
}

// Metrics tracks benchmark results.
type Metrics struct {
	TruePositives  int64 // Expected referral decided as REFERRED
	FalsePositives int64 // Auto-approvable decided as REFERRED
	TrueNegatives  int64 // Auto-approvable decided as AUTO_APPROVED
	FalseNegatives int64 // Expected referral decided as AUTO_APPROVED

	TotalProcessed int64
	TotalReferral  int64
	TotalClean     int64
	TotalErrors    int64

	ProcessingTimeMs int64
}

func main() {
	// Parse flags
	csvPath := flag.String("csv", "", "Path to portfolio CSV file")
	baseURL := flag.String("url", "http://localhost:8080", "Engine base URL")
	tenantID := flag.String("tenant", "benchmark-broker", "Broker tenant ID for requests")
	limit := flag.Int("limit", 10000, "Maximum applications to process (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	verbose := flag.Bool("verbose", false, "Print each application result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: benchmark -csv /path/to/portfolio.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("================================================================")
	fmt.Println("        OCPD BENCHMARK - Portfolio Referral Accuracy")
	fmt.Println("================================================================")
	fmt.Printf("\nCSV File:    %s\n", *csvPath)
	fmt.Printf("Engine URL:  %s\n", *baseURL)
	fmt.Printf("Tenant ID:   %s\n", *tenantID)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Printf("Limit:       %d\n", *limit)
	fmt.Println()

	// Check the engine is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: engine not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure the engine is running:")
		fmt.Println("  go run cmd/ocpd/main.go")
		os.Exit(1)
	}
	fmt.Println("engine is healthy")

	// Read portfolio data
	fmt.Printf("\nReading portfolio data from %s...\n", *csvPath)
	applications, err := readPortfolioCSV(*csvPath, *limit)
	if err != nil {
		fmt.Printf("ERROR: failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("loaded %d applications\n", len(applications))

	referralCount := 0
	for _, app := range applications {
		if app.ExpectReferral {
			referralCount++
		}
	}
	fmt.Printf("  - Expected referrals: %d (%.2f%%)\n", referralCount, 100*float64(referralCount)/float64(len(applications)))
	fmt.Printf("  - Auto-approvable:    %d (%.2f%%)\n", len(applications)-referralCount, 100*float64(len(applications)-referralCount)/float64(len(applications)))

	// Run benchmark
	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(applications, *baseURL, *tenantID, *workers, *verbose)
	duration := time.Since(startTime)

	// Print results
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

// readPortfolioCSV expects columns:
//
//	applicant_id, sum_insured, territorial_scope, clauses (pipe separated),
//	years_in_business, fleet_size, claims, high_value_goods,
//	unattended_parking, expect_referral
func readPortfolioCSV(path string, limit int) ([]PortfolioApplication, error) {
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

	var applications []PortfolioApplication

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}

		sumInsured, _ := strconv.ParseFloat(record[colIndex["sum_insured"]], 64)
		years, _ := strconv.Atoi(record[colIndex["years_in_business"]])
		fleet, _ := strconv.Atoi(record[colIndex["fleet_size"]])
		claims, _ := strconv.Atoi(record[colIndex["claims"]])

		var clauses []string
		if raw := strings.TrimSpace(record[colIndex["clauses"]]); raw != "" {
			clauses = strings.Split(raw, "|")
		}

		app := PortfolioApplication{
			ApplicantID:       record[colIndex["applicant_id"]],
			SumInsured:        sumInsured,
			TerritorialScope:  record[colIndex["territorial_scope"]],
			Clauses:           clauses,
			YearsInBusiness:   years,
			FleetSize:         fleet,
			Claims:            claims,
			HighValueGoods:    record[colIndex["high_value_goods"]] == "1",
			UnattendedParking: record[colIndex["unattended_parking"]] == "1",
			ExpectReferral:    record[colIndex["expect_referral"]] == "1",
		}

		applications = append(applications, app)

		if limit > 0 && len(applications) >= limit {
			break
		}
	}

	return applications, nil
}

func runBenchmark(applications []PortfolioApplication, baseURL, tenantID string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	work := make(chan PortfolioApplication, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for app := range work {
				start := time.Now()
				result, err := calculateQuote(client, baseURL, tenantID, app)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", app.ApplicantID, err)
					}
					continue
				}

				if app.ExpectReferral {
					atomic.AddInt64(&metrics.TotalReferral, 1)
				} else {
					atomic.AddInt64(&metrics.TotalClean, 1)
				}

				predicted := result.Quote.Status == "REFERRED"
				actual := app.ExpectReferral

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
						status = "MISS"
					}
					fmt.Printf("%s %-12s | Sum: %12.0f | Scope: %-6s | Expect: %-5v | Engine: %-13s | Level: %s\n",
						status,
						app.ApplicantID,
						app.SumInsured,
						app.TerritorialScope,
						app.ExpectReferral,
						result.Quote.Status,
						result.Quote.Result.RiskLevel,
					)
				}
			}
		}()
	}

	for _, app := range applications {
		work <- app
	}
	close(work)

	wg.Wait()

	return metrics
}

func calculateQuote(client *http.Client, baseURL, tenantID string, app PortfolioApplication) (*CalculateResponse, error) {
	req := CalculateRequest{
		ApplicantID:      app.ApplicantID,
		SumInsured:       app.SumInsured,
		TerritorialScope: app.TerritorialScope,
		SelectedClauses:  app.Clauses,
		YearsInBusiness:  app.YearsInBusiness,
		FleetSize:        app.FleetSize,
	}
	req.APK.ClaimsLastThreeYears = app.Claims
	req.APK.HighValueGoods = app.HighValueGoods
	req.APK.UnattendedParking = app.UnattendedParking

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/quotes/calculate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Broker-ID", tenantID)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result CalculateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n================================================================")
	fmt.Println("                      BENCHMARK RESULTS")
	fmt.Println("================================================================")

	fmt.Printf("\nDATASET STATISTICS\n")
	fmt.Printf("   Total Processed:     %d\n", m.TotalProcessed)
	fmt.Printf("   Expected Referrals:  %d\n", m.TotalReferral)
	fmt.Printf("   Auto-Approvable:     %d\n", m.TotalClean)
	fmt.Printf("   Errors:              %d\n", m.TotalErrors)

	fmt.Printf("\nCONFUSION MATRIX\n")
	fmt.Println("                          Predicted")
	fmt.Println("                    REFERRED    APPROVED")
	fmt.Printf("   Actual  Ref   %10d  %10d   (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Printf("           App   %10d  %10d   (FP, TN)\n", m.FalsePositives, m.TrueNegatives)

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

	fmt.Printf("\nDECISION METRICS\n")
	fmt.Printf("   Precision:  %.4f  (of referrals, how many were expected)\n", precision)
	fmt.Printf("   Recall:     %.4f  (of expected referrals, how many were caught)\n", recall)
	fmt.Printf("   F1-Score:   %.4f  (harmonic mean of precision & recall)\n", f1)
	fmt.Printf("   Accuracy:   %.4f  (overall correct decisions)\n", accuracy)

	fmt.Printf("\nPERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		qps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f quotes/sec\n", qps)
	}

	fmt.Println()
}
