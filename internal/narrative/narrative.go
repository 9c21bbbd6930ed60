// Package narrative turns a structured analysis result into a short
// prose explanation. A generative backend may be configured; the
// heuristic summarizer is the unconditional fallback and the only
// path guaranteed to work offline.
package narrative

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/opensource-integrity/kestrel/internal/domain"
)

// Summarizer produces a human-readable explanation of a score.
type Summarizer interface {
	Summarize(ctx context.Context, result *domain.AnalysisResult) (string, error)
}

// Service wraps a primary summarizer with the heuristic fallback.
// Any primary failure, including timeout, degrades to the heuristic
// summary; Summarize on the service never returns an error.
type Service struct {
	primary   Summarizer
	heuristic *Heuristic
	timeout   time.Duration
	logger    *slog.Logger
}

// NewService builds a summarizer from configuration. An unknown or
// unconfigured provider yields the heuristic summarizer alone.
func NewService(cfg domain.NarrativeConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	var primary Summarizer
	switch cfg.Provider {
	case "anthropic":
		if cfg.APIKey != "" {
			primary = NewAnthropicClient(cfg)
		}
	case "openai":
		if cfg.APIKey != "" {
			primary = NewOpenAIClient(cfg)
		}
	}

	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Service{
		primary:   primary,
		heuristic: &Heuristic{},
		timeout:   timeout,
		logger:    logger,
	}
}

// Summarize explains the result. The generative path is bounded by
// the configured timeout.
func (s *Service) Summarize(ctx context.Context, result *domain.AnalysisResult) string {
	if s.primary == nil {
		summary, _ := s.heuristic.Summarize(ctx, result)
		return summary
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	summary, err := s.primary.Summarize(ctx, result)
	if err != nil {
		s.logger.Warn("generative summary failed, using heuristic fallback", "error", err)
		summary, _ = s.heuristic.Summarize(ctx, result)
		return summary
	}
	return strings.TrimSpace(summary)
}

// buildPrompt condenses the result into the analyst prompt shared by
// the generative providers.
func buildPrompt(result *domain.AnalysisResult) string {
	var b strings.Builder
	b.WriteString("Analyze the following conflict-of-interest data extracted from a scientific paper.\n\n")
	fmt.Fprintf(&b, "Risk Score: %d/100 (Higher is worse)\n", result.Score)
	fmt.Fprintf(&b, "Risk Level: %s\n\n", result.OverallRisk)
	b.WriteString("Key Evidence Found:\n")
	fmt.Fprintf(&b, "- Funding: %v\n", result.Evidence.Funding)
	fmt.Fprintf(&b, "- COI Statements: %v\n", result.Evidence.COIStatements)
	fmt.Fprintf(&b, "- Affiliations: %v\n", result.Evidence.Affiliations)
	predatory := "Not detected"
	if result.Evidence.PredatoryCheck.PredatoryFlag {
		predatory = result.Evidence.PredatoryCheck.Details
	}
	fmt.Fprintf(&b, "- Predatory Journal Check: %s\n", predatory)
	fmt.Fprintf(&b, "- Rules Triggered: %v\n\n", result.RulesTriggered)
	b.WriteString("Task:\n")
	b.WriteString("Write a concise, professional executive summary (max 3 sentences) explaining why this paper received this score. ")
	b.WriteString("Focus on the specific evidence found (e.g., commercial funding, missing disclosures). Be objective but firm.")
	return b.String()
}

const systemPrompt = "You are an expert Research Integrity Analyst."
