package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/brokerops/ocpd-engine/internal/cache"
	"github.com/brokerops/ocpd-engine/internal/domain"
	"github.com/brokerops/ocpd-engine/internal/repository"
)

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()
	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "history_test.db"),
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func saveQuote(t *testing.T, repo domain.Repository, tenantID, applicantID, id string) {
	t.Helper()
	quote := &domain.Quote{
		ID:          id,
		TenantID:    tenantID,
		ApplicantID: applicantID,
		Input: domain.CalculationInput{
			SumInsured:       decimal.NewFromInt(500_000),
			TerritorialScope: domain.ScopePoland,
			YearsInBusiness:  5,
			FleetSize:        10,
		},
		Result: domain.CalculationResult{
			Breakdown: domain.PremiumBreakdown{
				BasePremium: decimal.NewFromInt(750),
				Total:       decimal.NewFromInt(750),
			},
			RiskLevel:      domain.RiskStandard,
			IsAutoApproved: true,
		},
		Status:    domain.QuoteStatusAutoApproved,
		CreatedAt: time.Now().UTC(),
	}
	if err := repo.SaveQuote(context.Background(), tenantID, quote); err != nil {
		t.Fatalf("failed to save quote %s: %v", id, err)
	}
}

func TestGetQuoteCount(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	svc := NewService(repo, cache.NewLRUCache(10))

	saveQuote(t, repo, "broker-001", "applicant-001", "q-1")
	saveQuote(t, repo, "broker-001", "applicant-001", "q-2")
	saveQuote(t, repo, "broker-001", "applicant-002", "q-3")
	saveQuote(t, repo, "broker-002", "applicant-001", "q-4")

	t.Run("CountsPerApplicant", func(t *testing.T) {
		count, err := svc.GetQuoteCount(ctx, "broker-001", "applicant-001", 30)
		if err != nil {
			t.Fatalf("failed to count quotes: %v", err)
		}
		if count != 2 {
			t.Errorf("expected 2 quotes, got %d", count)
		}
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		count, err := svc.GetQuoteCount(ctx, "broker-002", "applicant-001", 30)
		if err != nil {
			t.Fatalf("failed to count quotes: %v", err)
		}
		if count != 1 {
			t.Errorf("expected 1 quote for the other broker, got %d", count)
		}
	})

	t.Run("UnknownApplicant", func(t *testing.T) {
		count, err := svc.GetQuoteCount(ctx, "broker-001", "applicant-999", 30)
		if err != nil {
			t.Fatalf("failed to count quotes: %v", err)
		}
		if count != 0 {
			t.Errorf("expected 0 quotes, got %d", count)
		}
	})

	t.Run("CounterFastPath", func(t *testing.T) {
		// A warm rolling counter answers without touching the repository,
		// even when it disagrees with the persisted count.
		svc.RecordQuote(ctx, "broker-001", "applicant-001", 30)
		svc.RecordQuote(ctx, "broker-001", "applicant-001", 30)
		svc.RecordQuote(ctx, "broker-001", "applicant-001", 30)

		count, err := svc.GetQuoteCount(ctx, "broker-001", "applicant-001", 30)
		if err != nil {
			t.Fatalf("failed to count quotes: %v", err)
		}
		if count != 3 {
			t.Errorf("expected the counter value 3, got %d", count)
		}
	})

	t.Run("RequiresIdentifiers", func(t *testing.T) {
		if _, err := svc.GetQuoteCount(ctx, "", "applicant-001", 30); err == nil {
			t.Error("expected an error without a tenant ID")
		}
		if _, err := svc.GetQuoteCount(ctx, "broker-001", "", 30); err == nil {
			t.Error("expected an error without an applicant ID")
		}
	})

	t.Run("NoRepository", func(t *testing.T) {
		bare := NewService(nil, nil)
		if _, err := bare.GetQuoteCount(ctx, "broker-001", "applicant-001", 30); err == nil {
			t.Error("expected an error without a data source")
		}
	})
}

func TestRecordQuote(t *testing.T) {
	ctx := context.Background()
	lru := cache.NewLRUCache(10)
	svc := NewService(newTestRepo(t), lru)

	svc.RecordQuote(ctx, "broker-001", "applicant-001", 30)
	svc.RecordQuote(ctx, "broker-001", "applicant-001", 30)

	count, err := lru.GetCounter(ctx, "broker-001", "quote-count:applicant-001")
	if err != nil {
		t.Fatalf("failed to read counter: %v", err)
	}
	if count != 2 {
		t.Errorf("expected counter at 2 after two records, got %d", count)
	}

	// No cache configured and no applicant are both quiet no-ops.
	NewService(nil, nil).RecordQuote(ctx, "broker-001", "applicant-001", 30)
	svc.RecordQuote(ctx, "broker-001", "", 30)
}

func TestGetterMatchesEngineSignature(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewService(repo, nil)

	saveQuote(t, repo, "broker-001", "applicant-001", "q-1")

	getter := svc.Getter()
	count, err := getter(context.Background(), "broker-001", "applicant-001", 7)
	if err != nil {
		t.Fatalf("getter failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1, got %d", count)
	}
}
