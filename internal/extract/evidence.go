// Package extract provides evidence and metadata extraction from
// manuscript text. All functions are pure: they operate only on the
// input text, never raise for absent matches, and return empty
// collections when nothing is found.
package extract

import (
	"regexp"
	"strings"

	"github.com/opensource-integrity/kestrel/internal/domain"
)

// maxAffiliations caps the affiliation list to avoid noise from long
// author blocks.
const maxAffiliations = 10

// Disclosure patterns are applied case-insensitively per line, each
// capturing text up to the next period or end of line.
var fundingPatterns = compileAll(
	`funding[:\s]+(.*?)(?:\.|$)`,
	`supported by[:\s]+(.*?)(?:\.|$)`,
	`grant[:\s]+(.*?)(?:\.|$)`,
	`financial support[:\s]+(.*?)(?:\.|$)`,
	`funded by[:\s]+(.*?)(?:\.|$)`,
	`funding provided by[:\s]+(.*?)(?:\.|$)`,
)

// The last two patterns carry no capture group: the matched literal
// itself is the evidence.
var coiPatterns = compileAll(
	`conflict of interest[:\s]+(.*?)(?:\.|$)`,
	`competing interest[:\s]+(.*?)(?:\.|$)`,
	`disclosure[:\s]+(.*?)(?:\.|$)`,
	`declaration of interest[:\s]+(.*?)(?:\.|$)`,
	`authors declare[:\s]+(.*?)(?:\.|$)`,
	`no conflict of interest declared`,
	`no competing interests declared`,
)

var affiliationPatterns = compileAll(
	`((?:Department|Institute|University|Hospital) of [^\n\.]+)`,
	`([a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,})`,
)

func compileAll(patterns ...string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		res[i] = regexp.MustCompile(`(?im)` + p)
	}
	return res
}

// Funding returns funding disclosure snippets found in the text.
func Funding(text string) []string {
	return matchAll(fundingPatterns, text, 0)
}

// COIStatements returns conflict-of-interest disclosure snippets
// found in the text.
func COIStatements(text string) []string {
	return matchAll(coiPatterns, text, 0)
}

// Affiliations returns institutional affiliations and email-shaped
// tokens found in the text, capped at the first 10 unique matches in
// pattern-then-document order.
func Affiliations(text string) []string {
	return matchAll(affiliationPatterns, text, maxAffiliations)
}

// Keywords returns the keywords that occur in the text as
// case-insensitive substrings, in input order.
func Keywords(text string, keywords []string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			found = append(found, kw)
		}
	}
	return found
}

// Evidence runs all evidence extractors over the text.
func Evidence(text string) domain.EvidenceSet {
	return domain.EvidenceSet{
		Funding:       Funding(text),
		COIStatements: COIStatements(text),
		Affiliations:  Affiliations(text),
	}
}

// matchAll pools matches across all patterns and deduplicates them
// preserving first-seen order, so a truncation limit always keeps the
// same entries for the same text. A pattern without a capture group
// contributes its full match.
func matchAll(patterns []*regexp.Regexp, text string, limit int) []string {
	var pooled []string
	for _, re := range patterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if len(m) > 1 {
				pooled = append(pooled, m[1])
			} else {
				pooled = append(pooled, m[0])
			}
		}
	}

	seen := make(map[string]struct{}, len(pooled))
	out := make([]string, 0, len(pooled))
	for _, s := range pooled {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
