package rules

import "github.com/opensource-integrity/kestrel/internal/domain"

// BuiltinRules returns the default advisory rules loaded for every
// tenant until replaced from the database.
func BuiltinRules() []*domain.RuleConfig {
	return []*domain.RuleConfig{
		{
			ID:          "builtin-undisclosed-commercial",
			Name:        "Undisclosed commercial funding",
			Description: "Commercial funding was detected but no conflict-of-interest statement was found.",
			Version:     "1.0",
			Expression:  `commercial_funding && coi_count == 0`,
			Severity:    domain.SeverityCritical,
			Enabled:     true,
		},
		{
			ID:          "builtin-promotional-high-risk",
			Name:        "Promotional language in high-risk manuscript",
			Description: "Promotional language combined with an overall high risk score warrants editorial review.",
			Version:     "1.0",
			Expression:  `promotional && risk == "high"`,
			Severity:    domain.SeverityWarn,
			Enabled:     true,
		},
		{
			ID:          "builtin-missing-identifiers",
			Name:        "Missing bibliographic identifiers",
			Description: "Neither an ISSN nor a DOI could be extracted; the journal integrity check ran on reduced metadata.",
			Version:     "1.0",
			Expression:  `!has_issn && !has_doi`,
			Severity:    domain.SeverityInfo,
			Enabled:     true,
		},
	}
}
