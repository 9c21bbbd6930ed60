package narrative

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/opensource-integrity/kestrel/internal/domain"
)

func resultWithScore(score int) *domain.AnalysisResult {
	return &domain.AnalysisResult{
		Score:       score,
		OverallRisk: domain.RiskLevelFor(score),
	}
}

func TestHeuristicTemplates(t *testing.T) {
	cases := []struct {
		score int
		want  string
	}{
		{10, "The analysis indicates a LOW risk of conflict of interest. Disclosures appear transparent, and funding sources are likely public or non-commercial."},
		{55, "The analysis indicates a MEDIUM risk. There may be some commercial affiliations or vague funding statements that require further scrutiny."},
		{90, "The analysis indicates a HIGH risk of conflict of interest. Significant commercial ties, lack of clear disclosures, or potential funding bias detected."},
		// Bucket boundaries share the risk-tier thresholds.
		{33, "The analysis indicates a LOW risk of conflict of interest. Disclosures appear transparent, and funding sources are likely public or non-commercial."},
		{34, "The analysis indicates a MEDIUM risk. There may be some commercial affiliations or vague funding statements that require further scrutiny."},
		{67, "The analysis indicates a HIGH risk of conflict of interest. Significant commercial ties, lack of clear disclosures, or potential funding bias detected."},
	}

	h := Heuristic{}
	for _, tc := range cases {
		got, err := h.Summarize(context.Background(), resultWithScore(tc.score))
		if err != nil {
			t.Fatalf("score %d: unexpected error: %v", tc.score, err)
		}
		if got != tc.want {
			t.Errorf("score %d:\ngot  %q\nwant %q", tc.score, got, tc.want)
		}
	}
}

func TestServiceWithoutProviderUsesHeuristic(t *testing.T) {
	svc := NewService(domain.NarrativeConfig{Provider: "heuristic"}, nil)
	got := svc.Summarize(context.Background(), resultWithScore(90))
	if got != highSummary {
		t.Errorf("got %q", got)
	}
}

func TestServiceIgnoresProviderWithoutKey(t *testing.T) {
	svc := NewService(domain.NarrativeConfig{Provider: "openai"}, nil)
	if svc.primary != nil {
		t.Error("provider without API key should not be configured")
	}
}

type failingSummarizer struct{}

func (failingSummarizer) Summarize(context.Context, *domain.AnalysisResult) (string, error) {
	return "", errors.New("backend unavailable")
}

func TestServiceFallsBackOnFailure(t *testing.T) {
	svc := NewService(domain.NarrativeConfig{}, nil)
	svc.primary = failingSummarizer{}

	got := svc.Summarize(context.Background(), resultWithScore(10))
	if got != lowSummary {
		t.Errorf("expected heuristic fallback, got %q", got)
	}
}

func TestOpenAIClient(t *testing.T) {
	t.Run("successful completion", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer test-key" {
				t.Errorf("missing auth header")
			}
			w.Write([]byte(`{"choices":[{"message":{"content":"A crisp verdict."}}]}`))
		}))
		defer server.Close()

		client := NewOpenAIClient(domain.NarrativeConfig{APIKey: "test-key"})
		client.endpoint = server.URL

		got, err := client.Summarize(context.Background(), resultWithScore(38))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "A crisp verdict." {
			t.Errorf("got %q", got)
		}
	})

	t.Run("api error surfaces", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"error":{"message":"quota exceeded"}}`))
		}))
		defer server.Close()

		client := NewOpenAIClient(domain.NarrativeConfig{APIKey: "test-key"})
		client.endpoint = server.URL

		if _, err := client.Summarize(context.Background(), resultWithScore(38)); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("empty choices is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"choices":[]}`))
		}))
		defer server.Close()

		client := NewOpenAIClient(domain.NarrativeConfig{APIKey: "test-key"})
		client.endpoint = server.URL

		if _, err := client.Summarize(context.Background(), resultWithScore(38)); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestBuildPrompt(t *testing.T) {
	result := resultWithScore(38)
	result.Evidence.Funding = []string{"Pharma Corp Inc provided support"}
	result.Evidence.PredatoryCheck = domain.MatchResult{
		PredatoryFlag: true,
		Details:       "Matched ISSN: 1234-5678 in beall",
	}
	result.RulesTriggered = []string{"Commercial funding detected: pharma"}

	prompt := buildPrompt(result)
	for _, want := range []string{
		"Risk Score: 38/100",
		"Pharma Corp Inc provided support",
		"Matched ISSN: 1234-5678 in beall",
		"Commercial funding detected: pharma",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
