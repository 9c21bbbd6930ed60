package narrative

import (
	"context"

	"github.com/opensource-integrity/kestrel/internal/domain"
)

// Fixed summary templates, one per score bucket.
const (
	lowSummary    = "The analysis indicates a LOW risk of conflict of interest. Disclosures appear transparent, and funding sources are likely public or non-commercial."
	mediumSummary = "The analysis indicates a MEDIUM risk. There may be some commercial affiliations or vague funding statements that require further scrutiny."
	highSummary   = "The analysis indicates a HIGH risk of conflict of interest. Significant commercial ties, lack of clear disclosures, or potential funding bias detected."
)

// Heuristic is the deterministic summarizer keyed purely by score
// bucket. It performs no I/O and never fails.
type Heuristic struct{}

// Summarize returns the fixed template for the result's score bucket.
func (Heuristic) Summarize(_ context.Context, result *domain.AnalysisResult) (string, error) {
	switch {
	case result.Score < domain.MediumRiskThreshold:
		return lowSummary, nil
	case result.Score < domain.HighRiskThreshold:
		return mediumSummary, nil
	default:
		return highSummary, nil
	}
}
