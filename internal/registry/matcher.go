package registry

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/opensource-integrity/kestrel/internal/domain"
)

// Match confidences by lookup priority.
const (
	confidenceISSN      = 1.0
	confidenceName      = 0.9
	confidencePublisher = 0.8
)

// Detector decides whether a document's journal identity appears in
// the predatory registry.
type Detector struct {
	registry domain.Registry
}

// NewDetector creates a detector over the given registry.
func NewDetector(registry domain.Registry) *Detector {
	return &Detector{registry: registry}
}

// Detect checks metadata against the registry in fixed priority
// order, short-circuiting at the first hit: ISSN, then journal name,
// then publisher. A missing metadata field skips that priority level.
// A lookup error means the registry is unavailable; the caller
// decides how to degrade.
func (d *Detector) Detect(ctx context.Context, md domain.DocumentMetadata) (domain.MatchResult, error) {
	result := domain.MatchResult{
		MatchType: domain.MatchNone,
		Sources:   []string{},
	}

	if md.ISSN != "" {
		entry, err := d.registry.LookupByISSN(ctx, md.ISSN)
		if err != nil {
			return result, fmt.Errorf("registry lookup by issn: %w", err)
		}
		if entry != nil {
			return hit(domain.MatchISSN, confidenceISSN, entry,
				fmt.Sprintf("Matched ISSN: %s in %s", md.ISSN, entry.Source)), nil
		}
	}

	if md.Journal != "" {
		entry, err := d.registry.LookupByName(ctx, md.Journal)
		if err != nil {
			return result, fmt.Errorf("registry lookup by name: %w", err)
		}
		if entry != nil {
			return hit(domain.MatchName, confidenceName, entry,
				fmt.Sprintf("Matched Journal Name: %s in %s", md.Journal, entry.Source)), nil
		}
	}

	if md.Publisher != "" {
		entry, err := d.registry.LookupByPublisher(ctx, md.Publisher)
		if err != nil {
			return result, fmt.Errorf("registry lookup by publisher: %w", err)
		}
		if entry != nil {
			return hit(domain.MatchPublisher, confidencePublisher, entry,
				fmt.Sprintf("Matched Publisher: %s in %s", md.Publisher, entry.Source)), nil
		}
	}

	return result, nil
}

func hit(matchType domain.MatchType, confidence float64, entry *domain.RegistryEntry, details string) domain.MatchResult {
	return domain.MatchResult{
		PredatoryFlag: true,
		MatchType:     matchType,
		Sources:       []string{entry.Source},
		Confidence:    confidence,
		Details:       details,
	}
}

var nonWordRe = regexp.MustCompile(`[^\w\s]`)

// Normalize lowercases a string and strips punctuation. The exact and
// case-insensitive lookup paths do not use it; fuzzy name matching
// would build on it.
func Normalize(s string) string {
	return strings.TrimSpace(nonWordRe.ReplaceAllString(strings.ToLower(s), ""))
}
