package extract

import (
	"strings"
	"testing"

	"github.com/opensource-integrity/kestrel/internal/domain"
)

func TestMetadata(t *testing.T) {
	text := strings.Join([]string{
		"Remarkable Advances in Cellular Therapy",
		"By Jane Doe, John Roe",
		"Journal of Implausible Results",
		"ISSN: 1234-5678",
		"Published 2019, revised 2023",
		"DOI: 10.1234/jir.2023.042",
		"Copyright Elsevier",
	}, "\n")

	md := Metadata(text)

	if md.Title != "Remarkable Advances in Cellular Therapy" {
		t.Errorf("title = %q", md.Title)
	}
	if md.Authors != "Jane Doe, John Roe" {
		t.Errorf("authors = %q", md.Authors)
	}
	if md.Journal != "Journal of Implausible Results" {
		t.Errorf("journal = %q", md.Journal)
	}
	if md.ISSN != "1234-5678" {
		t.Errorf("issn = %q", md.ISSN)
	}
	if md.Year != "2023" {
		t.Errorf("year = %q, want max token", md.Year)
	}
	if md.DOI != "10.1234/jir.2023.042" {
		t.Errorf("doi = %q", md.DOI)
	}
	if md.Publisher != "Elsevier" {
		t.Errorf("publisher = %q", md.Publisher)
	}
}

func TestMetadataFallbacks(t *testing.T) {
	md := Metadata("")

	if md.Title != domain.UnknownTitle {
		t.Errorf("title = %q, want sentinel", md.Title)
	}
	if md.Authors != domain.UnknownAuthors {
		t.Errorf("authors = %q, want sentinel", md.Authors)
	}
	if md.Year != domain.FallbackYear {
		t.Errorf("year = %q, want fallback", md.Year)
	}
	if md.ISSN != "" || md.DOI != "" || md.Journal != "" || md.Publisher != "" {
		t.Errorf("expected empty optional fields, got %+v", md)
	}
}

func TestMetadataTitleSkipsShortLines(t *testing.T) {
	md := Metadata("Abstract\n\nA Longer Manuscript Title Here\nbody text")
	if md.Title != "A Longer Manuscript Title Here" {
		t.Errorf("title = %q", md.Title)
	}
}

func TestMetadataBareISSNRejectsYearTokens(t *testing.T) {
	t.Run("year-like token skipped", func(t *testing.T) {
		md := Metadata("The study ran 2010-2015 at several sites.")
		if md.ISSN != "" {
			t.Errorf("issn = %q, want empty for year range", md.ISSN)
		}
	})

	t.Run("bare token accepted", func(t *testing.T) {
		md := Metadata("Serial 1049-964X appears without a label.")
		if md.ISSN != "1049-964X" {
			t.Errorf("issn = %q", md.ISSN)
		}
	})
}

func TestMetadataYearOutsideWindowIgnored(t *testing.T) {
	// Year tokens beyond the first 2000 characters do not count.
	text := strings.Repeat("x", 2100) + " 2021"
	md := Metadata(text)
	if md.Year != domain.FallbackYear {
		t.Errorf("year = %q, want fallback", md.Year)
	}
}
