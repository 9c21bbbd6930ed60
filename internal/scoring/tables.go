// Package scoring computes the five-dimension conflict-of-interest
// risk score for a manuscript. The scorer is stateless: each run
// operates on the input text and a registry snapshot passed in by the
// caller, and every branch has defined zero-evidence behavior.
package scoring

// KeywordTables holds the static keyword lists driving the scoring
// policy. They are injected into the scorer so the policy stays
// swappable and testable in isolation.
type KeywordTables struct {
	// Commercial flags funding statements as commercially sourced.
	Commercial []string

	// CommercialAffiliation flags author affiliations as commercial.
	CommercialAffiliation []string

	// Promotional flags promotional language in the text.
	Promotional []string
}

// DefaultTables returns the standard keyword tables.
func DefaultTables() KeywordTables {
	return KeywordTables{
		Commercial:            []string{"pharma", "inc", "ltd", "corp", "company", "laboratories"},
		CommercialAffiliation: []string{"pharma", "inc", "ltd", "corp", "company"},
		Promotional:           []string{"groundbreaking", "miracle", "unprecedented", "perfect", "amazing"},
	}
}
