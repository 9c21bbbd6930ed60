package extract

import (
	"regexp"
	"strings"

	"github.com/opensource-integrity/kestrel/internal/domain"
)

// JournalPhrases mark a line as a probable journal name.
var JournalPhrases = []string{
	"Journal of",
	"Transactions on",
	"Proceedings of",
	"Review",
	"Annals",
}

// KnownPublishers is the allow-list of publishers recognized anywhere
// in the text by case-insensitive substring match.
var KnownPublishers = []string{
	"Elsevier",
	"Springer",
	"Wiley",
	"Taylor & Francis",
	"Sage",
	"MDPI",
	"Frontiers",
	"Hindawi",
	"IEEE",
	"ACM",
}

var (
	yearRe     = regexp.MustCompile(`\b(19\d{2}|20[0-2]\d)\b`)
	issnRe     = regexp.MustCompile(`(?i)ISSN[:\s]+(\d{4}-\d{3}[\dX])`)
	bareISSNRe = regexp.MustCompile(`\d{4}-\d{3}[\dX]`)
	doiRe      = regexp.MustCompile(`10\.\d{4,}/[-._;()/:A-Za-z0-9]+`)
)

// Metadata performs best-effort bibliographic identification from the
// document text. Fields that cannot be determined are left empty,
// except title, authors, and year, which fall back to sentinels.
func Metadata(text string) domain.DocumentMetadata {
	lines := strings.Split(text, "\n")

	return domain.DocumentMetadata{
		Title:     extractTitle(lines),
		Journal:   extractJournal(lines),
		ISSN:      extractISSN(text),
		DOI:       doiRe.FindString(text),
		Publisher: extractPublisher(text),
		Authors:   extractAuthors(lines),
		Year:      extractYear(text),
	}
}

// extractTitle takes the first non-empty line of the first 5 lines
// that is longer than 10 characters.
func extractTitle(lines []string) string {
	for _, line := range head(lines, 5) {
		trimmed := strings.TrimSpace(line)
		if len(trimmed) > 10 {
			return trimmed
		}
	}
	return domain.UnknownTitle
}

// extractAuthors takes the first of the first 10 lines containing
// "By " and strips that prefix.
func extractAuthors(lines []string) string {
	for _, line := range head(lines, 10) {
		if i := strings.Index(line, "By "); i >= 0 {
			return strings.TrimSpace(line[i+len("By "):])
		}
	}
	return domain.UnknownAuthors
}

// extractYear returns the maximum plausible publication year token in
// the first 2000 characters.
func extractYear(text string) string {
	if len(text) > 2000 {
		text = text[:2000]
	}
	best := ""
	for _, y := range yearRe.FindAllString(text, -1) {
		if y > best {
			best = y
		}
	}
	if best == "" {
		return domain.FallbackYear
	}
	return best
}

// extractISSN prefers an explicitly labeled ISSN; otherwise it falls
// back to any bare dddd-dddX token that does not begin with 19 or 20,
// which would more likely be a year range.
func extractISSN(text string) string {
	if m := issnRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	for _, c := range bareISSNRe.FindAllString(text, -1) {
		if !strings.HasPrefix(c, "19") && !strings.HasPrefix(c, "20") {
			return c
		}
	}
	return ""
}

func extractJournal(lines []string) string {
	for _, line := range head(lines, 20) {
		for _, phrase := range JournalPhrases {
			if strings.Contains(line, phrase) {
				return strings.TrimSpace(line)
			}
		}
	}
	return ""
}

func extractPublisher(text string) string {
	lower := strings.ToLower(text)
	for _, pub := range KnownPublishers {
		if strings.Contains(lower, strings.ToLower(pub)) {
			return pub
		}
	}
	return ""
}

func head(lines []string, n int) []string {
	if len(lines) > n {
		return lines[:n]
	}
	return lines
}
