// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cashout-watch/kestrel/internal/domain"
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

// SaveMeasurement stores a measurement with tenant isolation.
func (r *SQLRepository) SaveMeasurement(ctx context.Context, tenantID string, m *domain.Measurement) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	metadata, _ := json.Marshal(m.Metadata)

	query := `
		INSERT INTO measurements (
			id, tenant_id, platform, applied_amount, received_amount,
			applied_currency, received_currency, reference_rate,
			start_timestamp, end_timestamp, duration_minutes,
			kyc_status, settlement_status, created_at, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		m.ID, tenantID, m.Platform,
		m.AppliedAmount.String(), m.ReceivedAmount.String(),
		m.AppliedCurrency, m.ReceivedCurrency,
		decimalOrNil(m.ReferenceRate),
		m.StartTimestamp, m.EndTimestamp, m.DurationMinutes,
		m.KycStatus, m.SettlementStatus,
		m.CreatedAt, string(metadata),
	)
	return err
}

// GetMeasurement retrieves a measurement by ID with tenant isolation.
func (r *SQLRepository) GetMeasurement(ctx context.Context, tenantID string, measurementID string) (*domain.Measurement, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, platform, applied_amount, received_amount,
			   applied_currency, received_currency, reference_rate,
			   start_timestamp, end_timestamp, duration_minutes,
			   kyc_status, settlement_status, created_at, metadata
		FROM measurements
		WHERE tenant_id = ? AND id = ?
	`

	var m domain.Measurement
	var applied, received string
	var rate, platform, kyc, settlement, metadata sql.NullString
	var startTS, endTS sql.NullInt64
	var duration sql.NullFloat64

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, measurementID).Scan(
		&m.ID, &m.TenantID, &platform, &applied, &received,
		&m.AppliedCurrency, &m.ReceivedCurrency, &rate,
		&startTS, &endTS, &duration,
		&kyc, &settlement, &m.CreatedAt, &metadata,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	m.Platform = platform.String
	m.KycStatus = kyc.String
	m.SettlementStatus = settlement.String

	if m.AppliedAmount, err = decimal.NewFromString(applied); err != nil {
		return nil, fmt.Errorf("corrupt applied_amount for %s: %w", m.ID, err)
	}
	if m.ReceivedAmount, err = decimal.NewFromString(received); err != nil {
		return nil, fmt.Errorf("corrupt received_amount for %s: %w", m.ID, err)
	}
	if rate.Valid {
		d, err := decimal.NewFromString(rate.String)
		if err != nil {
			return nil, fmt.Errorf("corrupt reference_rate for %s: %w", m.ID, err)
		}
		m.ReferenceRate = &d
	}

	if startTS.Valid {
		v := startTS.Int64
		m.StartTimestamp = &v
	}
	if endTS.Valid {
		v := endTS.Int64
		m.EndTimestamp = &v
	}
	if duration.Valid {
		v := duration.Float64
		m.DurationMinutes = &v
	}

	if metadata.Valid && metadata.String != "" {
		json.Unmarshal([]byte(metadata.String), &m.Metadata)
	}

	return &m, nil
}

// SaveAudit stores an audit record with tenant isolation.
func (r *SQLRepository) SaveAudit(ctx context.Context, tenantID string, audit *domain.Audit) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	overall, _ := json.Marshal(audit.Overall)
	flags, _ := json.Marshal(audit.Flags)
	metadata, _ := json.Marshal(audit.Metadata)

	query := `
		INSERT INTO audits (
			id, tenant_id, measurement_id, platform, timestamp,
			overall_code, total_score, overall,
			same_currency_fx, cross_currency_fx,
			duration_text, flags, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		audit.ID, tenantID, audit.MeasurementID, audit.Platform, audit.Timestamp,
		audit.Overall.OverallCode, audit.Overall.TotalScore, string(overall),
		jsonOrNil(audit.SameCurrencyFx), jsonOrNil(audit.CrossCurrencyFx),
		audit.DurationText, string(flags), string(metadata),
	)
	return err
}

// GetAudit retrieves an audit by ID with tenant isolation.
func (r *SQLRepository) GetAudit(ctx context.Context, tenantID string, auditID string) (*domain.Audit, error) {
	query := `
		SELECT id, tenant_id, measurement_id, platform, timestamp,
			   overall, same_currency_fx, cross_currency_fx,
			   duration_text, flags, metadata
		FROM audits
		WHERE tenant_id = ? AND id = ?
	`
	return r.getAudit(ctx, tenantID, query, auditID)
}

// GetAuditByMeasurement retrieves the most recent audit for a measurement.
func (r *SQLRepository) GetAuditByMeasurement(ctx context.Context, tenantID string, measurementID string) (*domain.Audit, error) {
	query := `
		SELECT id, tenant_id, measurement_id, platform, timestamp,
			   overall, same_currency_fx, cross_currency_fx,
			   duration_text, flags, metadata
		FROM audits
		WHERE tenant_id = ? AND measurement_id = ?
		ORDER BY timestamp DESC
		LIMIT 1
	`
	return r.getAudit(ctx, tenantID, query, measurementID)
}

func (r *SQLRepository) getAudit(ctx context.Context, tenantID, query, arg string) (*domain.Audit, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	var a domain.Audit
	var platform, sameFx, crossFx, durationText, flags sql.NullString
	var overall, metadata string

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, arg).Scan(
		&a.ID, &a.TenantID, &a.MeasurementID, &platform, &a.Timestamp,
		&overall, &sameFx, &crossFx,
		&durationText, &flags, &metadata,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	a.Platform = platform.String
	a.DurationText = durationText.String

	if err := json.Unmarshal([]byte(overall), &a.Overall); err != nil {
		return nil, fmt.Errorf("corrupt overall for audit %s: %w", a.ID, err)
	}
	if sameFx.Valid && sameFx.String != "" {
		a.SameCurrencyFx = &domain.FxResult{}
		if err := json.Unmarshal([]byte(sameFx.String), a.SameCurrencyFx); err != nil {
			return nil, fmt.Errorf("corrupt fx figures for audit %s: %w", a.ID, err)
		}
	}
	if crossFx.Valid && crossFx.String != "" {
		a.CrossCurrencyFx = &domain.FxResult{}
		if err := json.Unmarshal([]byte(crossFx.String), a.CrossCurrencyFx); err != nil {
			return nil, fmt.Errorf("corrupt fx figures for audit %s: %w", a.ID, err)
		}
	}
	if flags.Valid && flags.String != "" {
		json.Unmarshal([]byte(flags.String), &a.Flags)
	}
	json.Unmarshal([]byte(metadata), &a.Metadata)

	return &a, nil
}

// SaveFlagRule stores a flag rule with tenant isolation.
func (r *SQLRepository) SaveFlagRule(ctx context.Context, tenantID string, rule *domain.FlagRule) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO flag_rules (
			id, tenant_id, name, description, version, expression, tag, severity, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id, version) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			tag = excluded.tag,
			severity = excluded.severity,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, tenantID, rule.Name, rule.Description,
		rule.Version, rule.Expression, rule.Tag, rule.Severity, enabled,
		now, now,
	)
	return err
}

// GetFlagRule retrieves a flag rule with tenant isolation.
func (r *SQLRepository) GetFlagRule(ctx context.Context, tenantID string, ruleID string) (*domain.FlagRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression, tag, severity, enabled
		FROM flag_rules
		WHERE tenant_id = ? AND id = ? AND enabled = 1
		ORDER BY version DESC
		LIMIT 1
	`

	var rule domain.FlagRule
	var description, tag, severity sql.NullString
	var enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, ruleID).Scan(
		&rule.ID, &rule.TenantID, &rule.Name, &description,
		&rule.Version, &rule.Expression, &tag, &severity, &enabled,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rule.Description = description.String
	rule.Tag = tag.String
	rule.Severity = severity.String
	rule.Enabled = enabled == 1

	return &rule, nil
}

// ListFlagRules retrieves all active flag rules for a tenant.
func (r *SQLRepository) ListFlagRules(ctx context.Context, tenantID string) ([]*domain.FlagRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression, tag, severity, enabled
		FROM flag_rules
		WHERE tenant_id = ? AND enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.FlagRule
	for rows.Next() {
		var rule domain.FlagRule
		var description, tag, severity sql.NullString
		var enabled int

		if err := rows.Scan(
			&rule.ID, &rule.TenantID, &rule.Name, &description,
			&rule.Version, &rule.Expression, &tag, &severity, &enabled,
		); err != nil {
			return nil, err
		}

		rule.Description = description.String
		rule.Tag = tag.String
		rule.Severity = severity.String
		rule.Enabled = enabled == 1
		rules = append(rules, &rule)
	}

	return rules, rows.Err()
}

// SaveThresholdProfile stores a threshold profile with tenant isolation.
func (r *SQLRepository) SaveThresholdProfile(ctx context.Context, tenantID string, profile *domain.ThresholdProfile) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	overrides, _ := json.Marshal(profile.Overrides)

	enabled := 0
	if profile.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO threshold_profiles (
			id, tenant_id, name, description, overrides, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			overrides = excluded.overrides,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		profile.ID, tenantID, profile.Name, profile.Description,
		string(overrides), enabled, now, now,
	)
	return err
}

// GetThresholdProfile retrieves a threshold profile with tenant isolation.
func (r *SQLRepository) GetThresholdProfile(ctx context.Context, tenantID string, profileID string) (*domain.ThresholdProfile, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, overrides, enabled, created_at, updated_at
		FROM threshold_profiles
		WHERE tenant_id = ? AND id = ? AND enabled = 1
	`

	var p domain.ThresholdProfile
	var description sql.NullString
	var overrides string
	var enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, profileID).Scan(
		&p.ID, &p.TenantID, &p.Name, &description,
		&overrides, &enabled, &p.CreatedAt, &p.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	p.Description = description.String
	p.Enabled = enabled == 1
	if err := json.Unmarshal([]byte(overrides), &p.Overrides); err != nil {
		return nil, fmt.Errorf("corrupt overrides for profile %s: %w", p.ID, err)
	}

	return &p, nil
}

// ListThresholdProfiles retrieves all active threshold profiles for a tenant.
func (r *SQLRepository) ListThresholdProfiles(ctx context.Context, tenantID string) ([]*domain.ThresholdProfile, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, overrides, enabled, created_at, updated_at
		FROM threshold_profiles
		WHERE tenant_id = ? AND enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []*domain.ThresholdProfile
	for rows.Next() {
		var p domain.ThresholdProfile
		var description sql.NullString
		var overrides string
		var enabled int

		if err := rows.Scan(
			&p.ID, &p.TenantID, &p.Name, &description,
			&overrides, &enabled, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}

		p.Description = description.String
		p.Enabled = enabled == 1
		if err := json.Unmarshal([]byte(overrides), &p.Overrides); err != nil {
			return nil, fmt.Errorf("corrupt overrides for profile %s: %w", p.ID, err)
		}
		profiles = append(profiles, &p)
	}

	return profiles, rows.Err()
}

// SaveReferenceRate stores a reference rate observation.
func (r *SQLRepository) SaveReferenceRate(ctx context.Context, tenantID string, rate *domain.ReferenceRate) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO reference_rates (tenant_id, base, quote, rate, as_of, source)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, base, quote, as_of) DO UPDATE SET
			rate = excluded.rate,
			source = excluded.source
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		tenantID, rate.Base, rate.Quote, rate.Rate.String(), rate.AsOf, rate.Source,
	)
	return err
}

// GetLatestRate retrieves the most recent rate for a currency pair.
func (r *SQLRepository) GetLatestRate(ctx context.Context, tenantID string, base, quote string) (*domain.ReferenceRate, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT base, quote, rate, as_of, source
		FROM reference_rates
		WHERE tenant_id = ? AND base = ? AND quote = ?
		ORDER BY as_of DESC
		LIMIT 1
	`

	var rate domain.ReferenceRate
	var value string
	var source sql.NullString

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, base, quote).Scan(
		&rate.Base, &rate.Quote, &value, &rate.AsOf, &source,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rate.Source = source.String
	if rate.Rate, err = decimal.NewFromString(value); err != nil {
		return nil, fmt.Errorf("corrupt rate for %s/%s: %w", base, quote, err)
	}

	return &rate, nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// decimalOrNil renders a nullable decimal for storage.
func decimalOrNil(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return d.String()
}

// jsonOrNil marshals FX figures for storage, keeping NULL for the
// computation mode that did not run.
func jsonOrNil(fx *domain.FxResult) interface{} {
	if fx == nil {
		return nil
	}
	b, _ := json.Marshal(fx)
	return string(b)
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
