package repository

// Schema definitions for the OCPD engine database.
// Compatible with both SQLite and PostgreSQL.

const schemaQuotes = `
CREATE TABLE IF NOT EXISTS quotes (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    applicant_id TEXT NOT NULL,
    input TEXT NOT NULL,
    clauses TEXT NOT NULL,
    result TEXT NOT NULL,
    risk_level TEXT NOT NULL,
    auto_approved INTEGER NOT NULL,
    status TEXT NOT NULL,
    total TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_quotes_tenant ON quotes(tenant_id);
CREATE INDEX IF NOT EXISTS idx_quotes_applicant ON quotes(tenant_id, applicant_id);
CREATE INDEX IF NOT EXISTS idx_quotes_status ON quotes(tenant_id, status);
CREATE INDEX IF NOT EXISTS idx_quotes_created ON quotes(tenant_id, created_at);
`

const schemaUnderwritingRules = `
CREATE TABLE IF NOT EXISTS underwriting_rules (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT NOT NULL,
    expression TEXT NOT NULL,
    reason TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id, version)
);

CREATE INDEX IF NOT EXISTS idx_uw_rules_tenant ON underwriting_rules(tenant_id);
CREATE INDEX IF NOT EXISTS idx_uw_rules_enabled ON underwriting_rules(tenant_id, enabled);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaQuotes,
		schemaUnderwritingRules,
	}
}
