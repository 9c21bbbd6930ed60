package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/opensource-integrity/kestrel/internal/domain"
)

func TestSQLiteRepository(t *testing.T) {
	// Create temp database file
	tmpFile, err := os.CreateTemp("", "kestrel-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(tmpPath)

	cfg := domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	}

	repo, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	tenantID := "tenant-001"

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("SaveAndGetDocument", func(t *testing.T) {
		doc := &domain.Document{
			ID:        "doc-001",
			Filename:  "manuscript.pdf",
			SHA256:    "abc123",
			Text:      "Funding: Pharma Corp Inc.",
			CreatedAt: time.Now().UTC(),
		}

		if err := repo.SaveDocument(ctx, tenantID, doc); err != nil {
			t.Fatalf("SaveDocument failed: %v", err)
		}

		retrieved, err := repo.GetDocument(ctx, tenantID, doc.ID)
		if err != nil {
			t.Fatalf("GetDocument failed: %v", err)
		}

		if retrieved.ID != doc.ID {
			t.Errorf("expected ID %s, got %s", doc.ID, retrieved.ID)
		}
		if retrieved.SHA256 != doc.SHA256 {
			t.Errorf("expected SHA256 %s, got %s", doc.SHA256, retrieved.SHA256)
		}
		if retrieved.TenantID != tenantID {
			t.Errorf("expected TenantID %s, got %s", tenantID, retrieved.TenantID)
		}
	})

	t.Run("SaveAndGetAnalysis", func(t *testing.T) {
		analysis := &domain.Analysis{
			ID:          "analysis-001",
			DocumentID:  "doc-001",
			Filename:    "manuscript.pdf",
			Timestamp:   time.Now().UTC(),
			Score:       38,
			OverallRisk: domain.RiskMedium,
			Summary:     "Medium risk summary.",
			Result: &domain.AnalysisResult{
				Score:          38,
				OverallRisk:    domain.RiskMedium,
				RulesTriggered: []string{"Commercial funding detected: pharma"},
			},
			Advisories: []domain.Advisory{
				{RuleID: "r-1", Name: "Test", Severity: domain.SeverityWarn, Message: "check"},
			},
			Metadata: domain.AnalysisMetadata{EngineVersion: "1.0.0", TotalMs: 12},
		}

		if err := repo.SaveAnalysis(ctx, tenantID, analysis); err != nil {
			t.Fatalf("SaveAnalysis failed: %v", err)
		}

		retrieved, err := repo.GetAnalysis(ctx, tenantID, analysis.ID)
		if err != nil {
			t.Fatalf("GetAnalysis failed: %v", err)
		}

		if retrieved.Score != 38 || retrieved.OverallRisk != domain.RiskMedium {
			t.Errorf("unexpected analysis: %+v", retrieved)
		}
		if retrieved.Result == nil || len(retrieved.Result.RulesTriggered) != 1 {
			t.Errorf("result did not round-trip: %+v", retrieved.Result)
		}
		if len(retrieved.Advisories) != 1 || retrieved.Advisories[0].RuleID != "r-1" {
			t.Errorf("advisories did not round-trip: %+v", retrieved.Advisories)
		}
		if retrieved.Metadata.EngineVersion != "1.0.0" {
			t.Errorf("metadata did not round-trip: %+v", retrieved.Metadata)
		}
	})

	t.Run("ListAnalyses", func(t *testing.T) {
		for i, id := range []string{"analysis-010", "analysis-011"} {
			a := &domain.Analysis{
				ID:          id,
				DocumentID:  "doc-001",
				Filename:    "manuscript.pdf",
				Timestamp:   time.Now().UTC().Add(time.Duration(i) * time.Second),
				Score:       22,
				OverallRisk: domain.RiskLow,
				Summary:     "ok",
			}
			if err := repo.SaveAnalysis(ctx, tenantID, a); err != nil {
				t.Fatalf("SaveAnalysis failed: %v", err)
			}
		}

		analyses, err := repo.ListAnalyses(ctx, tenantID, 10, 0)
		if err != nil {
			t.Fatalf("ListAnalyses failed: %v", err)
		}
		if len(analyses) < 3 {
			t.Errorf("expected at least 3 analyses, got %d", len(analyses))
		}

		limited, err := repo.ListAnalyses(ctx, tenantID, 1, 0)
		if err != nil {
			t.Fatalf("ListAnalyses with limit failed: %v", err)
		}
		if len(limited) != 1 {
			t.Errorf("expected 1 analysis with limit, got %d", len(limited))
		}
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		otherTenant := "tenant-002"

		if _, err := repo.GetDocument(ctx, otherTenant, "doc-001"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound for different tenant, got: %v", err)
		}
		if _, err := repo.GetAnalysis(ctx, otherTenant, "analysis-001"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound for different tenant, got: %v", err)
		}
	})

	t.Run("RequiresTenantID", func(t *testing.T) {
		if err := repo.SaveDocument(ctx, "", &domain.Document{ID: "doc-x"}); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got: %v", err)
		}
		if _, err := repo.ListAnalyses(ctx, "", 10, 0); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got: %v", err)
		}
	})

	t.Run("RegistryEntries", func(t *testing.T) {
		entry := &domain.RegistryEntry{
			Name:        "Fake Predatory Journal",
			ISSN:        "1234-5678",
			Source:      "test",
			EntityType:  domain.EntityJournal,
			URL:         "http://fake.com",
			LastUpdated: time.Now().UTC(),
		}

		if err := repo.SaveRegistryEntry(ctx, entry); err != nil {
			t.Fatalf("SaveRegistryEntry failed: %v", err)
		}

		// Upsert on the same (name, source) must not duplicate.
		entry.URL = "http://fake.example"
		if err := repo.SaveRegistryEntry(ctx, entry); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}

		entries, err := repo.ListRegistryEntries(ctx)
		if err != nil {
			t.Fatalf("ListRegistryEntries failed: %v", err)
		}
		if len(entries) != 1 {
			t.Fatalf("expected 1 entry after upsert, got %d", len(entries))
		}
		if entries[0].URL != "http://fake.example" {
			t.Errorf("upsert did not update fields: %+v", entries[0])
		}
	})

	t.Run("RuleConfigs", func(t *testing.T) {
		rule := &domain.RuleConfig{
			ID:          "rule-001",
			Name:        "Commercial without COI",
			Description: "desc",
			Version:     "1.0",
			Expression:  "commercial_funding && coi_count == 0",
			Severity:    domain.SeverityCritical,
			Enabled:     true,
		}

		if err := repo.SaveRuleConfig(ctx, tenantID, rule); err != nil {
			t.Fatalf("SaveRuleConfig failed: %v", err)
		}

		configs, err := repo.ListRuleConfigs(ctx, tenantID)
		if err != nil {
			t.Fatalf("ListRuleConfigs failed: %v", err)
		}
		if len(configs) != 1 {
			t.Fatalf("expected 1 rule config, got %d", len(configs))
		}
		if configs[0].Severity != domain.SeverityCritical || !configs[0].Enabled {
			t.Errorf("unexpected rule config: %+v", configs[0])
		}

		// Disabled rules are excluded from the list.
		rule.Enabled = false
		if err := repo.SaveRuleConfig(ctx, tenantID, rule); err != nil {
			t.Fatalf("update failed: %v", err)
		}
		configs, _ = repo.ListRuleConfigs(ctx, tenantID)
		if len(configs) != 0 {
			t.Errorf("expected disabled rule to be excluded, got %d", len(configs))
		}
	})
}

func TestUnsupportedDriver(t *testing.T) {
	_, err := New(domain.RepositoryConfig{Driver: "oracle"})
	if err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	sqlite := &SQLRepository{driver: "sqlite"}
	if got := sqlite.rebind("SELECT ?, ?"); got != "SELECT ?, ?" {
		t.Errorf("sqlite rebind changed query: %q", got)
	}

	pg := &SQLRepository{driver: "postgres"}
	if got := pg.rebind("SELECT ?, ?"); got != "SELECT $1, $2" {
		t.Errorf("postgres rebind = %q", got)
	}
}
