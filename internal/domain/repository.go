package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict per-broker isolation.
type Repository interface {
	// Quote operations
	SaveQuote(ctx context.Context, tenantID string, quote *Quote) error
	GetQuote(ctx context.Context, tenantID string, quoteID string) (*Quote, error)
	GetQuotesByApplicant(ctx context.Context, tenantID string, applicantID string, since time.Time) ([]*Quote, error)
	ListReferrals(ctx context.Context, tenantID string, limit int) ([]*Quote, error)

	// Underwriting rule operations
	SaveRule(ctx context.Context, tenantID string, rule *UnderwritingRule) error
	GetRule(ctx context.Context, tenantID string, ruleID string) (*UnderwritingRule, error)
	ListRules(ctx context.Context, tenantID string) ([]*UnderwritingRule, error)
	DeleteRule(ctx context.Context, tenantID string, ruleID string) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}
