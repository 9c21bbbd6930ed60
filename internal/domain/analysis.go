package domain

import (
	"time"
)

// RiskLevel grades a score into one of three tiers.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Risk tier thresholds. The same banding applies to dimension scores
// and the aggregate score.
const (
	MediumRiskThreshold = 34
	HighRiskThreshold   = 67
)

// RiskLevelFor maps a 0-100 score to its risk tier.
func RiskLevelFor(score int) RiskLevel {
	switch {
	case score >= HighRiskThreshold:
		return RiskHigh
	case score >= MediumRiskThreshold:
		return RiskMedium
	default:
		return RiskLow
	}
}

// EvidenceSet holds the textual evidence extracted for one analysis
// run. Each slice is deduplicated in insertion order and owned
// exclusively by that run.
type EvidenceSet struct {
	Funding       []string `json:"funding"`
	COIStatements []string `json:"coi_statements"`
	Affiliations  []string `json:"affiliations"`
}

// DimensionScore is one of the five independent risk sub-scores.
type DimensionScore struct {
	Name          string    `json:"name"`
	Score         int       `json:"score"`
	RiskLevel     RiskLevel `json:"risk_level"`
	EvidenceFound []string  `json:"evidence_found"`
	RulesApplied  []string  `json:"rules_applied"`
}

// AnalysisEvidence bundles everything the scorer looked at.
type AnalysisEvidence struct {
	EvidenceSet
	Metadata       DocumentMetadata `json:"metadata"`
	PredatoryCheck MatchResult      `json:"predatory_check"`
}

// AnalysisResult is the terminal output of one scoring run.
// Scores are integers clamped to [0, 100]; OverallRisk is a pure
// function of Score. RulesTriggered accumulates append-only in
// evaluation order and is never deduplicated.
type AnalysisResult struct {
	Score          int              `json:"score"`
	OverallRisk    RiskLevel        `json:"overall_risk"`
	Categories     []DimensionScore `json:"categories"`
	Evidence       AnalysisEvidence `json:"evidence"`
	RulesTriggered []string         `json:"rules_triggered"`
}

// Analysis is the persisted record of a completed screening run.
type Analysis struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenantId"`
	DocumentID string    `json:"documentId"`
	Filename   string    `json:"filename"`
	Timestamp  time.Time `json:"timestamp"`

	Score       int       `json:"score"`
	OverallRisk RiskLevel `json:"overallRisk"`
	Summary     string    `json:"summary"`

	Result *AnalysisResult `json:"result"`

	// Advisory findings from custom CEL rules (informational only;
	// they never alter the score or risk tier)
	Advisories []Advisory `json:"advisories,omitempty"`

	Metadata AnalysisMetadata `json:"metadata"`
}

// AnalysisMetadata contains processing information.
type AnalysisMetadata struct {
	TraceID        string `json:"traceId"`
	ExtractMs      int64  `json:"extractMs"`
	ScoreMs        int64  `json:"scoreMs"`
	NarrativeMs    int64  `json:"narrativeMs"`
	TotalMs        int64  `json:"totalMs"`
	RulesEvaluated int    `json:"rulesEvaluated"`
	EngineVersion  string `json:"engineVersion"`
}
