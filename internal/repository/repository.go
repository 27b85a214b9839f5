// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/brokerops/ocpd-engine/internal/domain"
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

// SaveQuote stores a priced quote with tenant isolation.
func (r *SQLRepository) SaveQuote(ctx context.Context, tenantID string, quote *domain.Quote) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	input, err := json.Marshal(quote.Input)
	if err != nil {
		return fmt.Errorf("failed to marshal quote input: %w", err)
	}
	clauses, err := json.Marshal(quote.Clauses)
	if err != nil {
		return fmt.Errorf("failed to marshal quote clauses: %w", err)
	}
	result, err := json.Marshal(quote.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal quote result: %w", err)
	}

	autoApproved := 0
	if quote.Result.IsAutoApproved {
		autoApproved = 1
	}

	query := `
		INSERT INTO quotes (
			id, tenant_id, applicant_id, input, clauses, result,
			risk_level, auto_approved, status, total, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		quote.ID, tenantID, quote.ApplicantID,
		string(input), string(clauses), string(result),
		string(quote.Result.RiskLevel), autoApproved, quote.Status,
		quote.Result.Breakdown.Total.String(), quote.CreatedAt,
	)
	return err
}

// GetQuote retrieves a quote by ID with tenant isolation.
func (r *SQLRepository) GetQuote(ctx context.Context, tenantID string, quoteID string) (*domain.Quote, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, applicant_id, input, clauses, result, status, created_at
		FROM quotes
		WHERE tenant_id = ? AND id = ?
	`

	row := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, quoteID)
	quote, err := scanQuote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return quote, err
}

// GetQuotesByApplicant retrieves an applicant's quotes since the given time.
func (r *SQLRepository) GetQuotesByApplicant(ctx context.Context, tenantID string, applicantID string, since time.Time) ([]*domain.Quote, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, applicant_id, input, clauses, result, status, created_at
		FROM quotes
		WHERE tenant_id = ? AND applicant_id = ? AND created_at >= ?
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, applicantID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectQuotes(rows)
}

// ListReferrals retrieves quotes awaiting underwriter review, newest first.
func (r *SQLRepository) ListReferrals(ctx context.Context, tenantID string, limit int) ([]*domain.Quote, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, tenant_id, applicant_id, input, clauses, result, status, created_at
		FROM quotes
		WHERE tenant_id = ? AND status = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, domain.QuoteStatusReferred, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectQuotes(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuote(row rowScanner) (*domain.Quote, error) {
	var quote domain.Quote
	var input, clauses, result string

	if err := row.Scan(
		&quote.ID, &quote.TenantID, &quote.ApplicantID,
		&input, &clauses, &result,
		&quote.Status, &quote.CreatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(input), &quote.Input); err != nil {
		return nil, fmt.Errorf("failed to decode quote input: %w", err)
	}
	if err := json.Unmarshal([]byte(clauses), &quote.Clauses); err != nil {
		return nil, fmt.Errorf("failed to decode quote clauses: %w", err)
	}
	if err := json.Unmarshal([]byte(result), &quote.Result); err != nil {
		return nil, fmt.Errorf("failed to decode quote result: %w", err)
	}

	return &quote, nil
}

func collectQuotes(rows *sql.Rows) ([]*domain.Quote, error) {
	var quotes []*domain.Quote
	for rows.Next() {
		quote, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, quote)
	}
	return quotes, rows.Err()
}

// SaveRule stores an underwriting rule with tenant isolation.
func (r *SQLRepository) SaveRule(ctx context.Context, tenantID string, rule *domain.UnderwritingRule) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO underwriting_rules (
			id, tenant_id, name, description, version, expression, reason, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id, version) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			reason = excluded.reason,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, tenantID, rule.Name, rule.Description,
		rule.Version, rule.Expression, rule.Reason, enabled,
		now, now,
	)
	return err
}

// GetRule retrieves an underwriting rule with tenant isolation.
func (r *SQLRepository) GetRule(ctx context.Context, tenantID string, ruleID string) (*domain.UnderwritingRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression, reason, enabled
		FROM underwriting_rules
		WHERE tenant_id = ? AND id = ? AND enabled = 1
		ORDER BY version DESC
		LIMIT 1
	`

	var rule domain.UnderwritingRule
	var enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, ruleID).Scan(
		&rule.ID, &rule.TenantID, &rule.Name, &rule.Description,
		&rule.Version, &rule.Expression, &rule.Reason, &enabled,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rule.Enabled = enabled == 1
	return &rule, nil
}

// ListRules retrieves all active underwriting rules for a tenant.
func (r *SQLRepository) ListRules(ctx context.Context, tenantID string) ([]*domain.UnderwritingRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression, reason, enabled
		FROM underwriting_rules
		WHERE tenant_id = ? AND enabled = 1
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.UnderwritingRule
	for rows.Next() {
		var rule domain.UnderwritingRule
		var enabled int

		if err := rows.Scan(
			&rule.ID, &rule.TenantID, &rule.Name, &rule.Description,
			&rule.Version, &rule.Expression, &rule.Reason, &enabled,
		); err != nil {
			return nil, err
		}

		rule.Enabled = enabled == 1
		rules = append(rules, &rule)
	}

	return rules, rows.Err()
}

// DeleteRule disables an underwriting rule (soft delete).
func (r *SQLRepository) DeleteRule(ctx context.Context, tenantID string, ruleID string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		UPDATE underwriting_rules
		SET enabled = 0, updated_at = ?
		WHERE tenant_id = ? AND id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), time.Now().UTC(), tenantID, ruleID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
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
