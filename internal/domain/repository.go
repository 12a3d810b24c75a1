// Package domain defines the core interfaces and types for Kestrel.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Measurement operations
	SaveMeasurement(ctx context.Context, tenantID string, m *Measurement) error
	GetMeasurement(ctx context.Context, tenantID string, measurementID string) (*Measurement, error)

	// Audit read model
	SaveAudit(ctx context.Context, tenantID string, audit *Audit) error
	GetAudit(ctx context.Context, tenantID string, auditID string) (*Audit, error)
	GetAuditByMeasurement(ctx context.Context, tenantID string, measurementID string) (*Audit, error)

	// Flag rule operations
	SaveFlagRule(ctx context.Context, tenantID string, rule *FlagRule) error
	GetFlagRule(ctx context.Context, tenantID string, ruleID string) (*FlagRule, error)
	ListFlagRules(ctx context.Context, tenantID string) ([]*FlagRule, error)

	// Threshold profile operations (the configuration store)
	SaveThresholdProfile(ctx context.Context, tenantID string, profile *ThresholdProfile) error
	GetThresholdProfile(ctx context.Context, tenantID string, profileID string) (*ThresholdProfile, error)
	ListThresholdProfiles(ctx context.Context, tenantID string) ([]*ThresholdProfile, error)

	// Reference rate store
	SaveReferenceRate(ctx context.Context, tenantID string, rate *ReferenceRate) error
	GetLatestRate(ctx context.Context, tenantID string, base, quote string) (*ReferenceRate, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
