package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/opensource-integrity/kestrel/internal/domain"
	"github.com/opensource-integrity/kestrel/internal/extract"
)

// Dimension names, in fixed evaluation order.
const (
	DimensionTransparency = "Disclosure & Transparency"
	DimensionFunding      = "Funding-Outcome Alignment"
	DimensionNetwork      = "Author-Institution Network"
	DimensionJournal      = "Journal Integrity"
	DimensionBias         = "Textual Bias"
)

// RulePredatoryOverride is appended to rules_triggered when the
// registry confirms a predatory venue and the score is forced to 100.
const RulePredatoryOverride = "CRITICAL: Journal or publisher found in predatory registry"

// journalBaseline is the fixed journal-integrity score when no
// registry match is found. It is a floor, not a clean bill of health.
const journalBaseline = 10

// PredatoryChecker looks up document metadata against the predatory
// registry.
type PredatoryChecker interface {
	Detect(ctx context.Context, md domain.DocumentMetadata) (domain.MatchResult, error)
}

// Input carries the text, extracted evidence, and metadata for one
// run. Text is kept for keyword scans that work on the whole
// document rather than extracted snippets.
type Input struct {
	Text     string
	Evidence domain.EvidenceSet
	Metadata domain.DocumentMetadata
}

// Scorer turns extracted evidence and a registry verdict into a
// graded report. It holds no per-run state; one Scorer serves
// concurrent analyses.
type Scorer struct {
	checker PredatoryChecker
	tables  KeywordTables
	logger  *slog.Logger
}

// NewScorer creates a scorer with the given registry checker and
// keyword tables.
func NewScorer(checker PredatoryChecker, tables KeywordTables, logger *slog.Logger) *Scorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{
		checker: checker,
		tables:  tables,
		logger:  logger,
	}
}

// ScoreText extracts evidence and metadata from raw text and scores
// them.
func (s *Scorer) ScoreText(ctx context.Context, text string) *domain.AnalysisResult {
	return s.Score(ctx, Input{
		Text:     text,
		Evidence: extract.Evidence(text),
		Metadata: extract.Metadata(text),
	})
}

// Score computes the five dimension scores, aggregates them, and
// applies the predatory override. It never fails: a missing or empty
// evidence category degrades to that dimension's zero-evidence
// branch, and an unavailable registry degrades journal integrity to
// its baseline.
func (s *Scorer) Score(ctx context.Context, in Input) *domain.AnalysisResult {
	rulesTriggered := []string{}

	d1 := s.scoreTransparency(in.Evidence, &rulesTriggered)
	d2 := s.scoreFundingAlignment(in.Evidence.Funding, &rulesTriggered)
	d3 := s.scoreNetwork(in.Evidence.Affiliations, &rulesTriggered)
	d4, predatory := s.scoreJournal(ctx, in.Metadata, &rulesTriggered)
	d5 := s.scoreBias(in.Text, &rulesTriggered)

	overall := (d1.Score + d2.Score + d3.Score + d4.Score + d5.Score) / 5
	if predatory.PredatoryFlag {
		overall = 100
		rulesTriggered = append(rulesTriggered, RulePredatoryOverride)
	}
	overall = clamp(overall)

	result := &domain.AnalysisResult{
		Score:       overall,
		OverallRisk: domain.RiskLevelFor(overall),
		Categories:  []domain.DimensionScore{d1, d2, d3, d4, d5},
		Evidence: domain.AnalysisEvidence{
			EvidenceSet:    in.Evidence,
			Metadata:       in.Metadata,
			PredatoryCheck: predatory,
		},
		RulesTriggered: rulesTriggered,
	}

	s.logger.Debug("scoring complete",
		"score", result.Score,
		"risk", result.OverallRisk,
		"rules", len(result.RulesTriggered))

	return result
}

// scoreTransparency grades disclosure completeness. A missing COI
// statement alone maxes the dimension; a missing funding statement
// adds half on top, clamped.
func (s *Scorer) scoreTransparency(ev domain.EvidenceSet, rules *[]string) domain.DimensionScore {
	score := 0
	var applied []string

	switch {
	case len(ev.COIStatements) == 0:
		score += 100
		applied = append(applied, "Missing COI statement")
	case anyContains(ev.COIStatements, "declared", "none"):
		// Explicit declaration, no penalty.
	default:
		score += 20
	}

	if len(ev.Funding) == 0 {
		score += 50
		applied = append(applied, "Missing funding statement")
	}

	*rules = append(*rules, applied...)

	evidence := append([]string{}, ev.COIStatements...)
	evidence = append(evidence, ev.Funding...)

	return dimension(DimensionTransparency, clamp(score), evidence, applied)
}

// scoreFundingAlignment flags funding statements naming commercial
// sponsors.
func (s *Scorer) scoreFundingAlignment(funding []string, rules *[]string) domain.DimensionScore {
	var matched []string
	var keywords []string
	for _, f := range funding {
		lower := strings.ToLower(f)
		hit := false
		for _, kw := range s.tables.Commercial {
			if strings.Contains(lower, kw) {
				keywords = append(keywords, kw)
				hit = true
			}
		}
		if hit {
			matched = append(matched, f)
		}
	}

	if len(keywords) == 0 {
		return dimension(DimensionFunding, 0, nil, nil)
	}

	rule := fmt.Sprintf("Commercial funding detected: %s", strings.Join(uniqueInOrder(keywords), ", "))
	*rules = append(*rules, rule)
	return dimension(DimensionFunding, 80, matched, []string{rule})
}

// scoreNetwork flags commercial author affiliations. The penalty is
// counted once however many affiliations match.
func (s *Scorer) scoreNetwork(affiliations []string, rules *[]string) domain.DimensionScore {
	for _, aff := range affiliations {
		lower := strings.ToLower(aff)
		for _, kw := range s.tables.CommercialAffiliation {
			if strings.Contains(lower, kw) {
				rule := fmt.Sprintf("Commercial affiliation: %s", aff)
				*rules = append(*rules, rule)
				return dimension(DimensionNetwork, 60, []string{aff}, []string{rule})
			}
		}
	}
	return dimension(DimensionNetwork, 0, nil, nil)
}

// scoreJournal delegates to the predatory registry. An unavailable
// registry degrades to the baseline with an evidence note rather than
// aborting the run.
func (s *Scorer) scoreJournal(ctx context.Context, md domain.DocumentMetadata, rules *[]string) (domain.DimensionScore, domain.MatchResult) {
	check, err := s.checker.Detect(ctx, md)
	if err != nil {
		s.logger.Warn("predatory registry unavailable, journal check skipped", "error", err)
		check = domain.MatchResult{MatchType: domain.MatchNone, Sources: []string{}}
		evidence := []string{"Predatory registry unavailable; journal check skipped"}
		return dimension(DimensionJournal, journalBaseline, evidence, nil), check
	}

	if check.PredatoryFlag {
		rule := fmt.Sprintf("Predatory venue match: %s", check.Details)
		*rules = append(*rules, rule)
		return dimension(DimensionJournal, 100, []string{check.Details}, []string{rule}), check
	}

	return dimension(DimensionJournal, journalBaseline, nil, nil), check
}

// scoreBias flags promotional language anywhere in the text.
func (s *Scorer) scoreBias(text string, rules *[]string) domain.DimensionScore {
	found := extract.Keywords(text, s.tables.Promotional)
	if len(found) == 0 {
		return dimension(DimensionBias, 0, nil, nil)
	}
	rule := fmt.Sprintf("Promotional language used: %s", strings.Join(found, ", "))
	*rules = append(*rules, rule)
	return dimension(DimensionBias, 40, found, []string{rule})
}

func dimension(name string, score int, evidence, applied []string) domain.DimensionScore {
	if evidence == nil {
		evidence = []string{}
	}
	if applied == nil {
		applied = []string{}
	}
	return domain.DimensionScore{
		Name:          name,
		Score:         score,
		RiskLevel:     domain.RiskLevelFor(score),
		EvidenceFound: evidence,
		RulesApplied:  applied,
	}
}

func anyContains(items []string, substrings ...string) bool {
	for _, item := range items {
		lower := strings.ToLower(item)
		for _, sub := range substrings {
			if strings.Contains(lower, sub) {
				return true
			}
		}
	}
	return false
}

func uniqueInOrder(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
