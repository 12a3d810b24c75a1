package repository

// Schema definitions for the Kestrel database.
// Compatible with both SQLite and PostgreSQL. Monetary amounts and rates
// are stored as decimal strings to avoid float drift.

const schemaMeasurements = `
CREATE TABLE IF NOT EXISTS measurements (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    platform TEXT,
    applied_amount TEXT NOT NULL,
    received_amount TEXT NOT NULL,
    applied_currency TEXT NOT NULL,
    received_currency TEXT NOT NULL,
    reference_rate TEXT,
    start_timestamp INTEGER,
    end_timestamp INTEGER,
    duration_minutes REAL,
    kyc_status TEXT,
    settlement_status TEXT,
    created_at TIMESTAMP NOT NULL,
    metadata TEXT
);

CREATE INDEX IF NOT EXISTS idx_measurements_tenant ON measurements(tenant_id);
CREATE INDEX IF NOT EXISTS idx_measurements_platform ON measurements(tenant_id, platform);
CREATE INDEX IF NOT EXISTS idx_measurements_created ON measurements(tenant_id, created_at);
`

const schemaAudits = `
CREATE TABLE IF NOT EXISTS audits (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    measurement_id TEXT NOT NULL,
    platform TEXT,
    timestamp TIMESTAMP NOT NULL,
    overall_code TEXT NOT NULL,
    total_score INTEGER NOT NULL,
    overall TEXT NOT NULL,
    same_currency_fx TEXT,
    cross_currency_fx TEXT,
    duration_text TEXT,
    flags TEXT,
    metadata TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audits_tenant ON audits(tenant_id);
CREATE INDEX IF NOT EXISTS idx_audits_measurement ON audits(tenant_id, measurement_id);
CREATE INDEX IF NOT EXISTS idx_audits_code ON audits(tenant_id, overall_code);
CREATE INDEX IF NOT EXISTS idx_audits_timestamp ON audits(tenant_id, timestamp);
`

const schemaFlagRules = `
CREATE TABLE IF NOT EXISTS flag_rules (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT NOT NULL,
    expression TEXT NOT NULL,
    tag TEXT,
    severity TEXT,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id, version)
);

CREATE INDEX IF NOT EXISTS idx_flag_rules_tenant ON flag_rules(tenant_id);
CREATE INDEX IF NOT EXISTS idx_flag_rules_enabled ON flag_rules(tenant_id, enabled);
`

const schemaThresholdProfiles = `
CREATE TABLE IF NOT EXISTS threshold_profiles (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    overrides TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_threshold_profiles_tenant ON threshold_profiles(tenant_id);
`

const schemaReferenceRates = `
CREATE TABLE IF NOT EXISTS reference_rates (
    tenant_id TEXT NOT NULL,
    base TEXT NOT NULL,
    quote TEXT NOT NULL,
    rate TEXT NOT NULL,
    as_of TIMESTAMP NOT NULL,
    source TEXT,
    PRIMARY KEY (tenant_id, base, quote, as_of)
);

CREATE INDEX IF NOT EXISTS idx_reference_rates_pair ON reference_rates(tenant_id, base, quote, as_of);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaMeasurements,
		schemaAudits,
		schemaFlagRules,
		schemaThresholdProfiles,
		schemaReferenceRates,
	}
}
