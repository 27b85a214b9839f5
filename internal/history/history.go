// Package history provides applicant quoting-history lookups.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/brokerops/ocpd-engine/internal/domain"
)

// Service counts recent quotes per applicant. The count feeds the
// quote_count variable of the underwriting rule engine, so brokers can
// write rules against unusual quoting activity.
type Service struct {
	repo  domain.Repository
	cache domain.Cache
}

// NewService creates a new history service.
func NewService(repo domain.Repository, cache domain.Cache) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
	}
}

// GetQuoteCount returns the number of quotes an applicant requested within
// the window. The rolling cache counter maintained by RecordQuote answers
// first; a cold or missing counter falls back to the repository. This
// matches the HistoryGetter signature expected by the rule engine.
func (s *Service) GetQuoteCount(ctx context.Context, tenantID, applicantID string, windowDays int) (int64, error) {
	if tenantID == "" || applicantID == "" {
		return 0, fmt.Errorf("tenantID and applicantID are required")
	}

	if s.cache != nil {
		if count, err := s.cache.GetCounter(ctx, tenantID, counterKey(applicantID)); err == nil && count > 0 {
			return count, nil
		}
	}

	if s.repo == nil {
		return 0, fmt.Errorf("no data source available")
	}

	since := time.Now().AddDate(0, 0, -windowDays)
	quotes, err := s.repo.GetQuotesByApplicant(ctx, tenantID, applicantID, since)
	if err != nil {
		return 0, fmt.Errorf("failed to get quotes: %w", err)
	}
	return int64(len(quotes)), nil
}

// RecordQuote bumps the applicant's rolling quote counter in the cache.
// Best effort; the repository remains the fallback source of truth.
func (s *Service) RecordQuote(ctx context.Context, tenantID, applicantID string, windowDays int) {
	if s.cache == nil || applicantID == "" {
		return
	}
	window := time.Duration(windowDays) * 24 * time.Hour
	_, _ = s.cache.IncrementCounter(ctx, tenantID, counterKey(applicantID), window)
}

func counterKey(applicantID string) string {
	return "quote-count:" + applicantID
}

// Getter returns a HistoryGetter-compatible function for the rule engine.
func (s *Service) Getter() func(ctx context.Context, tenantID, applicantID string, windowDays int) (int64, error) {
	return s.GetQuoteCount
}
