//go:build integration
// +build integration

// Package integration provides end-to-end tests for the Kestrel
// document integrity scoring engine.
//
// These tests verify the COMPLETE screening pipeline:
//
//	Document text → Extraction → Dimension scoring → Registry check →
//	Narrative → Persistence
//
// Run with: go test -tags=integration -v ./tests/integration/...
//
// UNDERSTANDING THE DOMAIN:
//
// 1. DOCUMENT: Extracted plain text of a scientific manuscript.
//
// 2. DIMENSIONS: Five independent risk sub-scores (0-100):
//   - Disclosure & Transparency (missing COI/funding statements)
//   - Funding-Outcome Alignment (commercial sponsors)
//   - Author-Institution Network (commercial affiliations)
//   - Journal Integrity (predatory registry match)
//   - Textual Bias (promotional language)
//
// 3. SCORE: The integer mean of the five dimensions. A predatory
//    registry match overrides the score to 100.
//
// 4. RISK TIERS: low < 34, medium 34-66, high >= 67.
//
// The tests seed the built-in predatory registry entries via
// POST /registry/seed; everything else ships with the server.
package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
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

// AnalyzeRequest is the document sent to POST /analyze
type AnalyzeRequest struct {
	Text     string `json:"text"`
	Filename string `json:"filename,omitempty"`
}

// DimensionScore is one of the five risk sub-scores.
type DimensionScore struct {
	Name      string `json:"name"`
	Score     int    `json:"score"`
	RiskLevel string `json:"risk_level"`
}

// AnalysisResult is the structured scoring output.
type AnalysisResult struct {
	Score          int              `json:"score"`
	OverallRisk    string           `json:"overall_risk"`
	Categories     []DimensionScore `json:"categories"`
	RulesTriggered []string         `json:"rules_triggered"`
}

// AnalyzeResponse is what POST /analyze returns
type AnalyzeResponse struct {
	AnalysisID  string          `json:"analysisId"`
	DocumentID  string          `json:"documentId"`
	Score       int             `json:"score"`
	OverallRisk string          `json:"overallRisk"`
	Summary     string          `json:"summary"`
	Result      *AnalysisResult `json:"result"`
	Cached      bool            `json:"cached"`
}

// ============================================================================
// Test Helper Functions
// ============================================================================

func analyze(t *testing.T, config TestConfig, req AnalyzeRequest) AnalyzeResponse {
	t.Helper()

	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}

	httpReq, err := http.NewRequest(http.MethodPost, config.BaseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", config.TenantID)

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result AnalyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return result
}

func seedRegistry(t *testing.T, config TestConfig) {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, config.BaseURL+"/registry/seed", nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("X-Tenant-ID", config.TenantID)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("seed request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("seed failed with status %d", resp.StatusCode)
	}
}

func requireServer(t *testing.T, config TestConfig) {
	t.Helper()

	resp, err := http.Get(config.BaseURL + "/health")
	if err != nil {
		t.Skipf("kestrel not reachable at %s: %v", config.BaseURL, err)
	}
	resp.Body.Close()
}

func dimensionScore(t *testing.T, result *AnalysisResult, name string) int {
	t.Helper()

	for _, c := range result.Categories {
		if c.Name == name {
			return c.Score
		}
	}
	t.Fatalf("dimension %q not found", name)
	return 0
}

// ============================================================================
// Scenarios
// ============================================================================

func TestAnalyzeCleanManuscript(t *testing.T) {
	config := getTestConfig()
	requireServer(t, config)

	text := "A Longitudinal Study of Sleep Patterns in Adolescents\n" +
		"By Jane Doe\n" +
		"Funding: National Institutes of Health grant R01.\n" +
		"Conflict of interest: none declared.\n"

	resp := analyze(t, config, AnalyzeRequest{Text: text, Filename: "clean.txt"})

	if resp.OverallRisk != "low" {
		t.Errorf("expected low risk, got %s (score %d)", resp.OverallRisk, resp.Score)
	}
	if resp.Score >= 34 {
		t.Errorf("expected score below medium threshold, got %d", resp.Score)
	}
	if resp.Summary == "" {
		t.Error("expected a narrative summary")
	}
}

func TestAnalyzeCommercialManuscript(t *testing.T) {
	config := getTestConfig()
	requireServer(t, config)

	text := "Funding: Pharma Corp Inc provided support.\n" +
		"Conflict of interest: none declared.\n" +
		"Department of Research, Pharma Corp Inc\n" +
		"This is a miracle cure.\n"

	resp := analyze(t, config, AnalyzeRequest{Text: text, Filename: "commercial.txt"})

	if resp.OverallRisk != "medium" {
		t.Errorf("expected medium risk, got %s (score %d)", resp.OverallRisk, resp.Score)
	}
	if resp.Result == nil {
		t.Fatal("expected structured result")
	}

	if got := dimensionScore(t, resp.Result, "Funding-Outcome Alignment"); got != 80 {
		t.Errorf("expected funding dimension 80, got %d", got)
	}
	if got := dimensionScore(t, resp.Result, "Author-Institution Network"); got != 60 {
		t.Errorf("expected network dimension 60, got %d", got)
	}
	if got := dimensionScore(t, resp.Result, "Textual Bias"); got != 40 {
		t.Errorf("expected bias dimension 40, got %d", got)
	}

	if len(resp.Result.RulesTriggered) == 0 {
		t.Error("expected triggered rules")
	}
}

func TestAnalyzePredatoryManuscript(t *testing.T) {
	config := getTestConfig()
	requireServer(t, config)
	seedRegistry(t, config)

	text := "Novel Approaches to Protein Folding\n" +
		"ISSN: 1234-5678\n" +
		"Funding: National Science Foundation grant 123.\n" +
		"Conflict of interest: none declared.\n"

	resp := analyze(t, config, AnalyzeRequest{Text: text, Filename: "predatory.txt"})

	if resp.Score != 100 {
		t.Errorf("expected forced score 100, got %d", resp.Score)
	}
	if resp.OverallRisk != "high" {
		t.Errorf("expected high risk, got %s", resp.OverallRisk)
	}

	found := false
	for _, rule := range resp.Result.RulesTriggered {
		if rule == "CRITICAL: Journal or publisher found in predatory registry" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected predatory override rule, got %v", resp.Result.RulesTriggered)
	}
}

func TestAnalyzeRepeatSubmissionIsCached(t *testing.T) {
	config := getTestConfig()
	requireServer(t, config)

	text := fmt.Sprintf("A Reproducible Manuscript Submitted at %d\n"+
		"Funding: Public grant.\nConflict of interest: none declared.\n",
		time.Now().UnixNano())

	first := analyze(t, config, AnalyzeRequest{Text: text})
	second := analyze(t, config, AnalyzeRequest{Text: text})

	if !second.Cached {
		t.Error("expected repeat submission to be served from cache")
	}
	if first.AnalysisID != second.AnalysisID {
		t.Errorf("expected same analysis ID, got %s and %s", first.AnalysisID, second.AnalysisID)
	}
	if first.Score != second.Score {
		t.Errorf("expected identical scores, got %d and %d", first.Score, second.Score)
	}
}
