package domain

import (
	"context"
	"time"
)

// RegistryEntry is one record in the predatory-journal reference
// registry. Entries are owned by the registry; the scoring engine
// only reads them.
type RegistryEntry struct {
	Name        string    `json:"name"`
	ISSN        string    `json:"issn,omitempty"`
	Publisher   string    `json:"publisher,omitempty"`
	Source      string    `json:"source"` // e.g. "beall", "predatoryjournals"
	EntityType  string    `json:"entityType"`
	URL         string    `json:"url,omitempty"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Registry entity types.
const (
	EntityJournal   = "journal"
	EntityPublisher = "publisher"
)

// MatchType identifies which lookup level produced a registry hit.
type MatchType string

const (
	MatchNone      MatchType = "None"
	MatchISSN      MatchType = "ISSN"
	MatchName      MatchType = "Name"
	MatchPublisher MatchType = "Publisher"
)

// MatchResult is the outcome of a predatory-registry lookup.
// Produced fresh per lookup and never persisted by the engine.
type MatchResult struct {
	PredatoryFlag bool      `json:"predatory_flag"`
	MatchType     MatchType `json:"match_type"`
	Sources       []string  `json:"sources"`
	Confidence    float64   `json:"confidence"`
	Details       string    `json:"details"`
}

// Registry is the read-only lookup capability over the predatory
// registry. Implementations return (nil, nil) on a miss; a non-nil
// error means the registry is unavailable and the caller degrades.
// Lookups against one snapshot must be safe for concurrent use.
type Registry interface {
	// LookupByISSN finds an entry by exact ISSN.
	LookupByISSN(ctx context.Context, issn string) (*RegistryEntry, error)

	// LookupByName finds an entry by journal name, exact match first,
	// then case-insensitive.
	LookupByName(ctx context.Context, name string) (*RegistryEntry, error)

	// LookupByPublisher finds an entry whose name field matches the
	// given publisher, case-insensitive.
	LookupByPublisher(ctx context.Context, name string) (*RegistryEntry, error)

	// Generation returns a stamp identifying the current snapshot. It
	// changes whenever the registry contents change, so callers can
	// version state derived from lookups, such as cached analyses.
	Generation() uint64
}
