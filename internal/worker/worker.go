// Package worker provides async quote processing for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/brokerops/ocpd-engine/internal/catalog"
	"github.com/brokerops/ocpd-engine/internal/domain"
	"github.com/brokerops/ocpd-engine/internal/pricing"
	"github.com/brokerops/ocpd-engine/internal/underwriting"
)

// Worker prices quote requests arriving on the EventBus, for brokers that
// submit batches instead of calling the synchronous API.
type Worker struct {
	bus     domain.EventBus
	repo    domain.Repository
	calc    *pricing.Calculator
	rules   *underwriting.RuleEngine
	catalog *catalog.Catalog

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of broker tenants to process
	TenantIDs []string
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, calc *pricing.Calculator, rules *underwriting.RuleEngine, cat *catalog.Catalog) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:     bus,
		repo:    repo,
		calc:    calc,
		rules:   rules,
		catalog: cat,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start begins processing quote requests for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.TenantIDs) == 0 {
		return w.startGlobalWorker()
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

// startGlobalWorker starts a worker that processes all tenants (for testing/dev).
func (w *Worker) startGlobalWorker() error {
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicQuoteRequested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startTenantWorker starts a worker for a specific tenant.
func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicQuoteRequested, func(ctx context.Context, msg *domain.Message) error {
		return w.processQuoteRequest(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicQuoteRequested,
	)

	return nil
}

// handleMessage handles messages from the global subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processQuoteRequest(ctx, msg.TenantID, msg)
}

// processQuoteRequest runs the full pricing pipeline on a queued request
// and persists the resulting quote.
func (w *Worker) processQuoteRequest(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	var req domain.QuoteRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		slog.Error("failed to parse quote request message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	if msg.TenantID != "" {
		tenantID = msg.TenantID
	}

	slog.Debug("processing quote request",
		"applicant_id", req.ApplicantID,
		"tenant_id", tenantID,
	)

	input := req.ToInput()
	result, err := w.calc.Calculate(input)
	if err != nil {
		// Malformed input is terminal for this message; redelivery cannot
		// fix it, so log and drop.
		slog.Error("premium calculation failed",
			"applicant_id", req.ApplicantID,
			"error", err,
		)
		return nil
	}

	if w.rules != nil {
		extra := w.rules.Evaluate(ctx, &underwriting.EvalContext{
			TenantID:    tenantID,
			ApplicantID: req.ApplicantID,
			Input:       input,
			Result:      result,
		})
		result = underwriting.AppendReferrals(result, extra)
	}

	clauses := make([]domain.PolicyClause, 0, len(result.Breakdown.Clauses))
	for _, line := range result.Breakdown.Clauses {
		var override *decimal.Decimal
		if pct, ok := input.SublimitOverrides[line.Type]; ok {
			override = &pct
		}
		clause, err := w.catalog.Instantiate(line.Type, input.SumInsured, result.Breakdown.BasePremium, override)
		if err != nil {
			slog.Error("failed to instantiate clause",
				"clause", line.Type,
				"error", err,
			)
			return nil
		}
		clauses = append(clauses, clause)
	}

	status := domain.QuoteStatusAutoApproved
	if !result.IsAutoApproved {
		status = domain.QuoteStatusReferred
	}

	quote := &domain.Quote{
		ID:          uuid.New().String(),
		TenantID:    tenantID,
		ApplicantID: req.ApplicantID,
		Input:       input,
		Clauses:     clauses,
		Result:      result,
		Status:      status,
		CreatedAt:   time.Now().UTC(),
	}

	if w.repo != nil {
		if err := w.repo.SaveQuote(ctx, tenantID, quote); err != nil {
			slog.Error("failed to save quote",
				"id", quote.ID,
				"error", err,
			)
		}
	}

	payload, _ := json.Marshal(quote)
	if err := w.bus.Publish(ctx, tenantID, domain.TopicQuotePriced, payload); err != nil {
		slog.Error("failed to publish priced quote",
			"id", quote.ID,
			"error", err,
		)
	}

	if status == domain.QuoteStatusReferred {
		if err := w.bus.Publish(ctx, tenantID, domain.TopicQuoteReferred, payload); err != nil {
			slog.Error("failed to publish referral",
				"id", quote.ID,
				"error", err,
			)
		}
	}

	slog.Info("quote request processed",
		"id", quote.ID,
		"tenant_id", tenantID,
		"status", quote.Status,
		"total", result.Breakdown.Total.StringFixed(2),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
