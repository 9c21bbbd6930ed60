package ingest

import "testing"

func TestHash(t *testing.T) {
	// SHA-256 of the empty string.
	if got := Hash(""); got != "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Errorf("empty hash = %q", got)
	}

	if Hash("a") == Hash("b") {
		t.Error("distinct texts must hash differently")
	}
	if Hash("same") != Hash("same") {
		t.Error("hash must be deterministic")
	}
}

func TestNewDocument(t *testing.T) {
	doc := NewDocument("tenant-a", "paper.pdf", "some extracted text")

	if doc.ID == "" {
		t.Error("expected generated ID")
	}
	if doc.TenantID != "tenant-a" || doc.Filename != "paper.pdf" {
		t.Errorf("unexpected fields: %+v", doc)
	}
	if doc.SHA256 != Hash("some extracted text") {
		t.Error("document hash must match text hash")
	}
	if doc.CreatedAt.IsZero() {
		t.Error("expected creation timestamp")
	}
}
