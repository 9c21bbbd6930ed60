// Package ingest turns submitted manuscript text into documents
// ready for screening.
package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-integrity/kestrel/internal/domain"
)

// Hash returns the hex-encoded SHA-256 of the document text. The
// hash keys analysis caching: identical text yields an identical
// result against an unchanged registry snapshot.
func Hash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// NewDocument builds a document record for the submitted text.
func NewDocument(tenantID, filename, text string) *domain.Document {
	return &domain.Document{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Filename:  filename,
		SHA256:    Hash(text),
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
}
