package repository

// Schema definitions for Kestrel database.
// Compatible with both SQLite and PostgreSQL.

const schemaDocuments = `
CREATE TABLE IF NOT EXISTS documents (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    filename TEXT NOT NULL,
    sha256 TEXT NOT NULL,
    text TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_tenant ON documents(tenant_id);
CREATE INDEX IF NOT EXISTS idx_documents_sha256 ON documents(tenant_id, sha256);
`

const schemaAnalyses = `
CREATE TABLE IF NOT EXISTS analyses (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    document_id TEXT NOT NULL,
    filename TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    score INTEGER NOT NULL,
    overall_risk TEXT NOT NULL,
    summary TEXT NOT NULL,
    result TEXT NOT NULL,
    advisories TEXT,
    metadata TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analyses_tenant ON analyses(tenant_id);
CREATE INDEX IF NOT EXISTS idx_analyses_document ON analyses(tenant_id, document_id);
CREATE INDEX IF NOT EXISTS idx_analyses_timestamp ON analyses(tenant_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_analyses_risk ON analyses(tenant_id, overall_risk);
`

// schemaRegistryEntries holds the predatory registry. Entries are
// shared reference data, not tenant scoped.
const schemaRegistryEntries = `
CREATE TABLE IF NOT EXISTS registry_entries (
    name TEXT NOT NULL,
    issn TEXT,
    publisher TEXT,
    source TEXT NOT NULL,
    entity_type TEXT NOT NULL,
    url TEXT,
    last_updated TIMESTAMP NOT NULL,
    PRIMARY KEY (name, source)
);

CREATE INDEX IF NOT EXISTS idx_registry_issn ON registry_entries(issn);
`

const schemaRuleConfigs = `
CREATE TABLE IF NOT EXISTS rule_configs (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT NOT NULL,
    expression TEXT NOT NULL,
    severity TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id, version)
);

CREATE INDEX IF NOT EXISTS idx_rule_configs_tenant ON rule_configs(tenant_id);
CREATE INDEX IF NOT EXISTS idx_rule_configs_enabled ON rule_configs(tenant_id, enabled);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaDocuments,
		schemaAnalyses,
		schemaRegistryEntries,
		schemaRuleConfigs,
	}
}
