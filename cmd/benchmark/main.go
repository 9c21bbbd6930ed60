// Benchmark tool for testing Kestrel against a labeled manuscript corpus.
//
// Usage:
//   go run cmd/benchmark/main.go -csv /path/to/corpus.csv -url http://localhost:8080
//
// The CSV needs a "text" column with the manuscript plain text and a
// "label" column (1 = known conflict-of-interest problem, 0 = clean).
// An optional "filename" column is passed through to the API.
//
// This tool:
//   1. Reads the labeled corpus
//   2. Sends each document to Kestrel for screening
//   3. Compares Kestrel's verdict (score >= threshold) with the labels
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
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Manuscript represents a row from the labeled corpus.
type Manuscript struct {
	Filename  string
	Text      string
	IsFlagged bool
}

// AnalyzeRequest is the Kestrel API request format.
type AnalyzeRequest struct {
	Text     string `json:"text"`
	Filename string `json:"filename,omitempty"`
}

// AnalyzeResponse is the Kestrel API response format.
type AnalyzeResponse struct {
	AnalysisID  string `json:"analysisId"`
	Score       int    `json:"score"`
	OverallRisk string `json:"overallRisk"`
	Summary     string `json:"summary"`
}

// Metrics tracks benchmark results.
type Metrics struct {
	TruePositives  int64 // Flagged manuscript scored at or above threshold
	FalsePositives int64 // Clean manuscript scored at or above threshold
	TrueNegatives  int64 // Clean manuscript scored below threshold
	FalseNegatives int64 // Flagged manuscript scored below threshold (missed!)

	TotalProcessed int64
	TotalFlagged   int64
	TotalClean     int64
	TotalErrors    int64

	ProcessingTimeMs int64
}

func main() {
	// Parse flags
	csvPath := flag.String("csv", "", "Path to labeled corpus CSV file")
	baseURL := flag.String("url", "http://localhost:8080", "Kestrel base URL")
	tenantID := flag.String("tenant", "benchmark-test", "Tenant ID for requests")
	limit := flag.Int("limit", 10000, "Maximum documents to process (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	threshold := flag.Int("threshold", 67, "Score at which a document counts as flagged")
	verbose := flag.Bool("verbose", false, "Print each document result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: benchmark -csv /path/to/corpus.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║        KESTREL BENCHMARK - Manuscript COI Screening           ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nCSV File:    %s\n", *csvPath)
	fmt.Printf("Kestrel URL: %s\n", *baseURL)
	fmt.Printf("Tenant ID:   %s\n", *tenantID)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Printf("Limit:       %d\n", *limit)
	fmt.Printf("Threshold:   %d\n", *threshold)
	fmt.Println()

	// Check Kestrel is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Kestrel not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Kestrel is running:")
		fmt.Println("  cd kestrel && go run cmd/kestrel/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Kestrel is healthy")

	// Read corpus
	fmt.Printf("\nReading corpus from %s...\n", *csvPath)
	manuscripts, err := readCorpusCSV(*csvPath, *limit)
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Loaded %d documents\n", len(manuscripts))

	// Count flagged vs clean
	flaggedCount := 0
	for _, m := range manuscripts {
		if m.IsFlagged {
			flaggedCount++
		}
	}
	fmt.Printf("  - Flagged: %d (%.2f%%)\n", flaggedCount, 100*float64(flaggedCount)/float64(len(manuscripts)))
	fmt.Printf("  - Clean:   %d (%.2f%%)\n", len(manuscripts)-flaggedCount, 100*float64(len(manuscripts)-flaggedCount)/float64(len(manuscripts)))

	// Run benchmark
	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(manuscripts, *baseURL, *tenantID, *workers, *threshold, *verbose)
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

func readCorpusCSV(path string, limit int) ([]Manuscript, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	// Read header
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	// Map column indices
	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}

	textCol, ok := colIndex["text"]
	if !ok {
		return nil, fmt.Errorf("corpus CSV needs a 'text' column")
	}
	labelCol, ok := colIndex["label"]
	if !ok {
		return nil, fmt.Errorf("corpus CSV needs a 'label' column")
	}
	filenameCol, hasFilename := colIndex["filename"]

	var manuscripts []Manuscript
	row := 0

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}
		row++

		m := Manuscript{
			Text:      record[textCol],
			IsFlagged: strings.TrimSpace(record[labelCol]) == "1",
			Filename:  fmt.Sprintf("corpus-%d.txt", row),
		}
		if hasFilename && filenameCol < len(record) && record[filenameCol] != "" {
			m.Filename = record[filenameCol]
		}
		if strings.TrimSpace(m.Text) == "" {
			continue
		}

		manuscripts = append(manuscripts, m)

		if limit > 0 && len(manuscripts) >= limit {
			break
		}
	}

	return manuscripts, nil
}

func runBenchmark(manuscripts []Manuscript, baseURL, tenantID string, numWorkers, threshold int, verbose bool) *Metrics {
	metrics := &Metrics{}

	// Create work channel
	work := make(chan Manuscript, 100)
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 30 * time.Second}

			for m := range work {
				start := time.Now()
				result, err := analyzeDocument(client, baseURL, tenantID, m)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", m.Filename, err)
					}
					continue
				}

				// Track actual labels
				if m.IsFlagged {
					atomic.AddInt64(&metrics.TotalFlagged, 1)
				} else {
					atomic.AddInt64(&metrics.TotalClean, 1)
				}

				// Calculate confusion matrix
				predicted := result.Score >= threshold
				actual := m.IsFlagged

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
					status := "✓"
					if (predicted && !actual) || (!predicted && actual) {
						status = "✗"
					}
					name := m.Filename
					if len(name) > 20 {
						name = name[:20]
					}
					fmt.Printf("%s %-20s | Flagged: %-5v | Kestrel: %-6s (%3d)\n",
						status,
						name,
						m.IsFlagged,
						result.OverallRisk,
						result.Score,
					)
				}
			}
		}()
	}

	// Send work
	for _, m := range manuscripts {
		work <- m
	}
	close(work)

	// Wait for completion
	wg.Wait()

	return metrics
}

func analyzeDocument(client *http.Client, baseURL, tenantID string, m Manuscript) (*AnalyzeResponse, error) {
	req := AnalyzeRequest{
		Text:     m.Text,
		Filename: m.Filename,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/analyze", bytes.NewReader(body))
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

	var result AnalyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 CORPUS STATISTICS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Total Flagged:    %d\n", m.TotalFlagged)
	fmt.Printf("   Total Clean:      %d\n", m.TotalClean)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	fmt.Printf("\n📈 CONFUSION MATRIX\n")
	fmt.Println("                        Predicted")
	fmt.Println("                    RISK        CLEAR")
	fmt.Println("              ┌──────────┬──────────┐")
	fmt.Printf("   Actual  F  │ %8d │ %8d │  (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Println("              ├──────────┼──────────┤")
	fmt.Printf("           C  │ %8d │ %8d │  (FP, TN)\n", m.FalsePositives, m.TrueNegatives)
	fmt.Println("              └──────────┴──────────┘")

	// Calculate metrics
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

	fmt.Printf("\n🎯 DETECTION METRICS\n")
	fmt.Printf("   Precision:  %.4f  (of risk calls, how many were real problems)\n", precision)
	fmt.Printf("   Recall:     %.4f  (of real problems, how many did we catch)\n", recall)
	fmt.Printf("   F1-Score:   %.4f  (harmonic mean of precision & recall)\n", f1)
	fmt.Printf("   Accuracy:   %.4f  (overall correct predictions)\n", accuracy)

	// Detection rate analysis
	fmt.Printf("\n🔍 DETECTION ANALYSIS\n")
	if m.TotalFlagged > 0 {
		detectionRate := float64(m.TruePositives) / float64(m.TotalFlagged) * 100
		missRate := float64(m.FalseNegatives) / float64(m.TotalFlagged) * 100
		fmt.Printf("   Problems Detected: %d / %d (%.2f%%)\n", m.TruePositives, m.TotalFlagged, detectionRate)
		fmt.Printf("   Problems Missed:   %d / %d (%.2f%%) ⚠️\n", m.FalseNegatives, m.TotalFlagged, missRate)
	}
	if m.TotalClean > 0 {
		falseAlarmRate := float64(m.FalsePositives) / float64(m.TotalClean) * 100
		fmt.Printf("   False Alarms:      %d / %d (%.2f%%)\n", m.FalsePositives, m.TotalClean, falseAlarmRate)
	}

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		dps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f docs/sec\n", dps)
	}

	// Interpretation
	fmt.Printf("\n💡 INTERPRETATION\n")
	if recall >= 0.9 {
		fmt.Println("   ✅ Excellent recall - catching most problems")
	} else if recall >= 0.7 {
		fmt.Println("   ⚠️  Good recall - but missing some problems")
	} else if recall >= 0.5 {
		fmt.Println("   ⚠️  Moderate recall - significant problems being missed")
	} else {
		fmt.Println("   ❌ Poor recall - most problems are being missed!")
	}

	if precision >= 0.5 {
		fmt.Println("   ✅ Good precision - risk calls are meaningful")
	} else if precision >= 0.2 {
		fmt.Println("   ⚠️  Low precision - many false alarms")
	} else {
		fmt.Println("   ❌ Very low precision - mostly false alarms")
	}

	fmt.Println()
}
