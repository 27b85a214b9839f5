package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/brokerops/ocpd-engine/internal/catalog"
	"github.com/brokerops/ocpd-engine/internal/domain"
	"github.com/brokerops/ocpd-engine/internal/history"
	"github.com/brokerops/ocpd-engine/internal/pricing"
	"github.com/brokerops/ocpd-engine/internal/underwriting"
)

// GlobalTenantID is used for underwriting rules that apply to all brokers.
const GlobalTenantID = "*"

// historyWindowDays bounds the quote_count lookup for rule evaluation.
const historyWindowDays = 30

// quickQuoteTTL is how long a quick estimate stays cached. The pricing
// table is immutable at runtime, so a short TTL only bounds memory.
const quickQuoteTTL = 5 * time.Minute

// Handler holds dependencies for API handlers.
type Handler struct {
	repo     domain.Repository
	cache    domain.Cache
	bus      domain.EventBus
	calc     *pricing.Calculator
	rules    *underwriting.RuleEngine
	catalog  *catalog.Catalog
	variants *catalog.Variants
	history  *history.Service
	version  string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, calc *pricing.Calculator, rules *underwriting.RuleEngine, cat *catalog.Catalog, variants *catalog.Variants, hist *history.Service, version string) *Handler {
	return &Handler{
		repo:     repo,
		cache:    cache,
		bus:      bus,
		calc:     calc,
		rules:    rules,
		catalog:  cat,
		variants: variants,
		history:  hist,
		version:  version,
	}
}

// QuickQuoteRequest is the request body for POST /quotes/quick.
type QuickQuoteRequest struct {
	SumInsured       float64 `json:"sumInsured"`
	TerritorialScope string  `json:"territorialScope"`
}

// QuickQuote handles POST /quotes/quick requests. Estimates are cached per
// tenant because the inputs are coarse and brokers poll them from forms.
func (h *Handler) QuickQuote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req QuickQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	cacheKey := fmt.Sprintf("quick:%.2f:%s", req.SumInsured, req.TerritorialScope)
	if h.cache != nil {
		if cached, err := h.cache.Get(ctx, tenantID, cacheKey); err == nil && cached != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write(cached)
			return
		}
	}

	quote, err := h.calc.QuickQuote(decimal.NewFromFloat(req.SumInsured), domain.TerritorialScope(req.TerritorialScope))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	if h.cache != nil {
		if body, err := json.Marshal(quote); err == nil {
			if err := h.cache.Set(ctx, tenantID, cacheKey, body, quickQuoteTTL); err != nil {
				slog.Debug("failed to cache quick quote", "error", err)
			}
		}
	}

	writeJSON(w, http.StatusOK, quote)
}

// CalculateResponse is the response for POST /quotes/calculate.
type CalculateResponse struct {
	Quote    *domain.Quote `json:"quote"`
	Metadata struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// Calculate handles POST /quotes/calculate requests: the full premium
// pipeline, underwriting decision, custom rule evaluation and persistence.
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	var req domain.QuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ApplicantID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "applicantId is required",
		})
		return
	}

	// Announce the request before pricing so downstream consumers see
	// abandoned calculations too. The announce topic is distinct from
	// quote.requested; this handler prices the quote itself and must not
	// hand the same request to the async workers.
	if h.bus != nil {
		if payload, err := json.Marshal(req); err == nil {
			if err := h.bus.Publish(ctx, tenantID, domain.TopicQuoteReceived, payload); err != nil {
				slog.Debug("failed to publish quote request", "error", err)
			}
		}
	}

	input := req.ToInput()
	result, err := h.calc.Calculate(input)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) || errors.Is(err, domain.ErrUnknownClauseType) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
			return
		}
		slog.Error("premium calculation failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "premium calculation failed",
		})
		return
	}

	// Tenant-configured referral rules run after the built-in triggers and
	// can only add reasons, never remove them.
	if h.rules != nil {
		extra := h.rules.Evaluate(ctx, &underwriting.EvalContext{
			TenantID:          tenantID,
			ApplicantID:       req.ApplicantID,
			Input:             input,
			Result:            result,
			HistoryWindowDays: historyWindowDays,
		})
		result = underwriting.AppendReferrals(result, extra)
	}

	clauses := make([]domain.PolicyClause, 0, len(input.SelectedClauses))
	for _, line := range result.Breakdown.Clauses {
		var override *decimal.Decimal
		if pct, ok := input.SublimitOverrides[line.Type]; ok {
			override = &pct
		}
		clause, err := h.catalog.Instantiate(line.Type, input.SumInsured, result.Breakdown.BasePremium, override)
		if err != nil {
			slog.Error("failed to instantiate clause", "clause", line.Type, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to build policy clauses",
			})
			return
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

	if h.repo != nil {
		if err := h.repo.SaveQuote(ctx, tenantID, quote); err != nil {
			slog.Error("failed to save quote", "id", quote.ID, "error", err)
		}
	}
	if h.history != nil {
		h.history.RecordQuote(ctx, tenantID, req.ApplicantID, historyWindowDays)
	}

	if h.bus != nil {
		if payload, err := json.Marshal(quote); err == nil {
			if err := h.bus.Publish(ctx, tenantID, domain.TopicQuotePriced, payload); err != nil {
				slog.Debug("failed to publish priced quote", "error", err)
			}
			if status == domain.QuoteStatusReferred {
				if err := h.bus.Publish(ctx, tenantID, domain.TopicQuoteReferred, payload); err != nil {
					slog.Debug("failed to publish referral", "error", err)
				}
			}
		}
	}

	resp := CalculateResponse{Quote: quote}
	resp.Metadata.TraceID = traceID
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusOK, resp)
}

// GetQuote retrieves a quote by ID.
func (h *Handler) GetQuote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	quoteID := chi.URLParam(r, "id")

	if quoteID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "quote id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	quote, err := h.repo.GetQuote(ctx, tenantID, quoteID)
	if err != nil {
		slog.Error("failed to get quote", "id", quoteID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "quote not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, quote)
}

// ListReferrals returns the referral queue for the tenant, newest first.
func (h *Handler) ListReferrals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "limit must be a positive integer",
			})
			return
		}
		limit = parsed
	}

	referrals, err := h.repo.ListReferrals(ctx, tenantID, limit)
	if err != nil {
		slog.Error("failed to list referrals", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list referrals",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"referrals": referrals,
		"count":     len(referrals),
	})
}

// ListClauses returns the clause catalog in canonical order.
func (h *Handler) ListClauses(w http.ResponseWriter, r *http.Request) {
	defs := h.catalog.Definitions()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"clauses": defs,
		"count":   len(defs),
	})
}

// ListVariants returns the coverage variant definitions.
func (h *Handler) ListVariants(w http.ResponseWriter, r *http.Request) {
	defs := h.variants.Definitions()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"variants": defs,
		"count":    len(defs),
	})
}

// ListRules returns all loaded underwriting rules from the engine.
// Rules are loaded from the database at startup and can be reloaded via
// POST /underwriting/rules/reload.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loadedRules := h.rules.GetLoadedRules()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules":  loadedRules,
		"count":  len(loadedRules),
		"source": "database",
	})
}

// GetRule retrieves an underwriting rule by ID from the loaded engine rules.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	for _, rule := range h.rules.GetLoadedRules() {
		if rule.ID == ruleID {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "rule not found",
	})
}

// CreateRuleRequest is the request body for creating an underwriting rule.
type CreateRuleRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Expression  string `json:"expression"`
	Reason      string `json:"reason"`
	Enabled     bool   `json:"enabled"`
}

// CreateRule creates a new underwriting rule and saves it to the database.
// Rules are saved globally (tenant_id = "*") so they apply to all brokers.
// After saving, call POST /underwriting/rules/reload to hot-reload into the
// engine.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" || req.Reason == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, expression and reason are required",
		})
		return
	}

	rule := &domain.UnderwritingRule{
		ID:          req.ID,
		TenantID:    GlobalTenantID,
		Name:        req.Name,
		Description: req.Description,
		Version:     "1.0.0",
		Expression:  req.Expression,
		Reason:      req.Reason,
		Enabled:     req.Enabled,
	}

	// Validate CEL expression by attempting to load
	if err := h.rules.LoadRule(rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveRule(ctx, GlobalTenantID, rule); err != nil {
			slog.Error("failed to save underwriting rule", "id", rule.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save rule",
			})
			return
		}
	}

	slog.Info("underwriting rule created", "id", rule.ID, "name", rule.Name)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"rule":    rule,
		"message": "Rule created. Call POST /underwriting/rules/reload to apply changes.",
	})
}

// DeleteRule disables an underwriting rule and auto-reloads the engine.
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.DeleteRule(ctx, GlobalTenantID, ruleID); err != nil {
			slog.Error("failed to delete underwriting rule", "id", ruleID, "error", err)
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "rule not found",
			})
			return
		}

		// Auto-reload the engine after delete
		dbRules, err := h.repo.ListRules(ctx, GlobalTenantID)
		if err != nil {
			slog.Error("failed to reload rules after delete", "error", err)
		} else if err := h.rules.ReloadRules(dbRules); err != nil {
			slog.Error("failed to reload rules into engine after delete", "error", err)
		} else {
			slog.Info("rules auto-reloaded after delete", "count", len(dbRules))
		}
	}

	slog.Info("underwriting rule deleted", "id", ruleID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Rule deleted and engine reloaded.",
	})
}

// ReloadRules reloads all underwriting rules from the database into the
// engine. This enables hot-reloading without server restart.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	dbRules, err := h.repo.ListRules(ctx, GlobalTenantID)
	if err != nil {
		slog.Error("failed to list rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules from database",
		})
		return
	}

	if err := h.rules.ReloadRules(dbRules); err != nil {
		slog.Error("failed to reload rules into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("underwriting rules reloaded from database", "count", len(dbRules))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded successfully",
		"count":   len(dbRules),
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
