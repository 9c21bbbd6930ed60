package domain

import (
	"time"
)

// Document represents a manuscript submitted for integrity screening.
// The text has already been extracted from its source format (PDF
// decoding is owned by the caller).
type Document struct {
	// Core identifiers
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`

	// Original filename as submitted
	Filename string `json:"filename"`

	// SHA-256 hash of the extracted text, used for result caching
	SHA256 string `json:"sha256"`

	// Full extracted plain text
	Text string `json:"text"`

	CreatedAt time.Time `json:"createdAt"`
}

// DocumentMetadata holds best-effort bibliographic identification
// extracted from the document text. Optional fields are empty strings
// when the heuristics find nothing; Title, Authors, and Year carry
// sentinel fallbacks instead.
type DocumentMetadata struct {
	Title     string `json:"title"`
	Journal   string `json:"journal,omitempty"`
	ISSN      string `json:"issn,omitempty"`
	DOI       string `json:"doi,omitempty"`
	Publisher string `json:"publisher,omitempty"`
	Authors   string `json:"authors"`
	Year      string `json:"year"`
}

// Metadata sentinel values for fields with no extractable data.
const (
	UnknownTitle   = "Unknown Title"
	UnknownAuthors = "Unknown Authors"
	FallbackYear   = "2024"
)
