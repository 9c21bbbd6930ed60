// Package stats provides screening volume and risk statistics.
package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/opensource-integrity/kestrel/internal/domain"
)

// summaryWindowLimit caps how many recent analyses feed a summary.
const summaryWindowLimit = 1000

// summaryCacheTTL keeps summaries cheap on dashboard-style polling.
const summaryCacheTTL = 30 * time.Second

// Service aggregates per-tenant screening statistics from stored
// analyses, with a short-lived cache in front of the repository.
type Service struct {
	repo  domain.Repository
	cache domain.Cache
}

// NewService creates a new stats service.
func NewService(repo domain.Repository, cache domain.Cache) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
	}
}

// Summary describes a tenant's recent screening activity.
type Summary struct {
	TotalAnalyses    int     `json:"totalAnalyses"`
	HighRisk         int     `json:"highRisk"`
	MediumRisk       int     `json:"mediumRisk"`
	LowRisk          int     `json:"lowRisk"`
	PredatoryMatches int     `json:"predatoryMatches"`
	AverageScore     float64 `json:"averageScore"`
}

// Summarize computes the screening summary over the tenant's most
// recent analyses. Results are cached briefly.
func (s *Service) Summarize(ctx context.Context, tenantID string) (*Summary, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenantID is required")
	}

	if s.cache != nil {
		if data, err := s.cache.Get(ctx, tenantID, "stats:summary"); err == nil && data != nil {
			var cached Summary
			if err := json.Unmarshal(data, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	analyses, err := s.repo.ListAnalyses(ctx, tenantID, summaryWindowLimit, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}

	summary := &Summary{TotalAnalyses: len(analyses)}
	scoreSum := 0
	for _, a := range analyses {
		scoreSum += a.Score
		switch a.OverallRisk {
		case domain.RiskHigh:
			summary.HighRisk++
		case domain.RiskMedium:
			summary.MediumRisk++
		default:
			summary.LowRisk++
		}
		if a.Result != nil && a.Result.Evidence.PredatoryCheck.PredatoryFlag {
			summary.PredatoryMatches++
		}
	}
	if len(analyses) > 0 {
		summary.AverageScore = float64(scoreSum) / float64(len(analyses))
	}

	if s.cache != nil {
		if data, err := json.Marshal(summary); err == nil {
			_ = s.cache.Set(ctx, tenantID, "stats:summary", data, summaryCacheTTL)
		}
	}

	return summary, nil
}

// Volume counts analyses recorded within the given window. Used for
// capacity monitoring alongside the cache-backed rate limiter.
func (s *Service) Volume(ctx context.Context, tenantID string, window time.Duration) (int64, error) {
	if tenantID == "" {
		return 0, fmt.Errorf("tenantID is required")
	}

	analyses, err := s.repo.ListAnalyses(ctx, tenantID, summaryWindowLimit, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to list analyses: %w", err)
	}

	since := time.Now().Add(-window)
	var count int64
	for _, a := range analyses {
		if a.Timestamp.After(since) {
			count++
		}
	}
	return count, nil
}
