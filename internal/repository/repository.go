// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-integrity/kestrel/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveDocument stores a document with tenant isolation.
func (r *SQLRepository) SaveDocument(ctx context.Context, tenantID string, doc *domain.Document) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO documents (
			id, tenant_id, filename, sha256, text, created_at
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		doc.ID, tenantID, doc.Filename, doc.SHA256, doc.Text, doc.CreatedAt,
	)
	return err
}

// GetDocument retrieves a document by ID with tenant isolation.
func (r *SQLRepository) GetDocument(ctx context.Context, tenantID string, docID string) (*domain.Document, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, filename, sha256, text, created_at
		FROM documents
		WHERE tenant_id = ? AND id = ?
	`

	var doc domain.Document
	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, docID).Scan(
		&doc.ID, &doc.TenantID, &doc.Filename, &doc.SHA256, &doc.Text, &doc.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &doc, nil
}

// SaveAnalysis stores an analysis record with tenant isolation.
func (r *SQLRepository) SaveAnalysis(ctx context.Context, tenantID string, analysis *domain.Analysis) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	result, _ := json.Marshal(analysis.Result)
	advisories, _ := json.Marshal(analysis.Advisories)
	metadata, _ := json.Marshal(analysis.Metadata)

	query := `
		INSERT INTO analyses (
			id, tenant_id, document_id, filename, timestamp,
			score, overall_risk, summary, result, advisories, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		analysis.ID, tenantID, analysis.DocumentID, analysis.Filename, analysis.Timestamp,
		analysis.Score, string(analysis.OverallRisk), analysis.Summary,
		string(result), string(advisories), string(metadata),
	)
	return err
}

// GetAnalysis retrieves an analysis by ID with tenant isolation.
func (r *SQLRepository) GetAnalysis(ctx context.Context, tenantID string, analysisID string) (*domain.Analysis, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, document_id, filename, timestamp,
			   score, overall_risk, summary, result, advisories, metadata
		FROM analyses
		WHERE tenant_id = ? AND id = ?
	`

	analysis, err := scanAnalysis(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, analysisID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return analysis, err
}

// ListAnalyses retrieves analyses for a tenant, newest first.
func (r *SQLRepository) ListAnalyses(ctx context.Context, tenantID string, limit, offset int) ([]*domain.Analysis, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, tenant_id, document_id, filename, timestamp,
			   score, overall_risk, summary, result, advisories, metadata
		FROM analyses
		WHERE tenant_id = ?
		ORDER BY timestamp DESC
		LIMIT ? OFFSET ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var analyses []*domain.Analysis
	for rows.Next() {
		analysis, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		analyses = append(analyses, analysis)
	}

	return analyses, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row scanner) (*domain.Analysis, error) {
	var a domain.Analysis
	var risk, result, advisories, metadata string

	if err := row.Scan(
		&a.ID, &a.TenantID, &a.DocumentID, &a.Filename, &a.Timestamp,
		&a.Score, &risk, &a.Summary, &result, &advisories, &metadata,
	); err != nil {
		return nil, err
	}

	a.OverallRisk = domain.RiskLevel(risk)
	if result != "" {
		json.Unmarshal([]byte(result), &a.Result)
	}
	if advisories != "" {
		json.Unmarshal([]byte(advisories), &a.Advisories)
	}
	if metadata != "" {
		json.Unmarshal([]byte(metadata), &a.Metadata)
	}

	return &a, nil
}

// SaveRegistryEntry upserts a predatory registry entry. Registry data
// is shared reference data, not tenant scoped.
func (r *SQLRepository) SaveRegistryEntry(ctx context.Context, entry *domain.RegistryEntry) error {
	if entry == nil || entry.Name == "" {
		return fmt.Errorf("%w: entry name is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO registry_entries (
			name, issn, publisher, source, entity_type, url, last_updated
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name, source) DO UPDATE SET
			issn = excluded.issn,
			publisher = excluded.publisher,
			entity_type = excluded.entity_type,
			url = excluded.url,
			last_updated = excluded.last_updated
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		entry.Name, entry.ISSN, entry.Publisher, entry.Source,
		entry.EntityType, entry.URL, entry.LastUpdated,
	)
	return err
}

// ListRegistryEntries retrieves all registry entries.
func (r *SQLRepository) ListRegistryEntries(ctx context.Context) ([]*domain.RegistryEntry, error) {
	query := `
		SELECT name, issn, publisher, source, entity_type, url, last_updated
		FROM registry_entries
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.RegistryEntry
	for rows.Next() {
		var e domain.RegistryEntry
		var issn, publisher, url sql.NullString
		if err := rows.Scan(
			&e.Name, &issn, &publisher, &e.Source, &e.EntityType, &url, &e.LastUpdated,
		); err != nil {
			return nil, err
		}
		e.ISSN = issn.String
		e.Publisher = publisher.String
		e.URL = url.String
		entries = append(entries, &e)
	}

	return entries, rows.Err()
}

// SaveRuleConfig stores a rule configuration with tenant isolation.
func (r *SQLRepository) SaveRuleConfig(ctx context.Context, tenantID string, rule *domain.RuleConfig) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO rule_configs (
			id, tenant_id, name, description, version, expression, severity, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id, version) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			severity = excluded.severity,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, tenantID, rule.Name, rule.Description,
		rule.Version, rule.Expression, rule.Severity, enabled,
		now, now,
	)
	return err
}

// ListRuleConfigs retrieves all active rule configurations for a tenant.
func (r *SQLRepository) ListRuleConfigs(ctx context.Context, tenantID string) ([]*domain.RuleConfig, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression, severity, enabled
		FROM rule_configs
		WHERE tenant_id = ? AND enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []*domain.RuleConfig
	for rows.Next() {
		var cfg domain.RuleConfig
		var enabled int

		if err := rows.Scan(
			&cfg.ID, &cfg.TenantID, &cfg.Name, &cfg.Description,
			&cfg.Version, &cfg.Expression, &cfg.Severity, &enabled,
		); err != nil {
			return nil, err
		}

		cfg.Enabled = enabled == 1
		configs = append(configs, &cfg)
	}

	return configs, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
