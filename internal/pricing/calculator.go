// Package pricing implements the OCPD premium calculation pipeline.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/brokerops/ocpd-engine/internal/catalog"
	"github.com/brokerops/ocpd-engine/internal/domain"
)

// Decider produces the underwriting decision for a priced quote. Keeping it
// behind an interface keeps the auditable breakdown independent of the
// approval policy, so the policy is swappable per product line.
type Decider interface {
	Decide(input domain.CalculationInput, breakdown domain.PremiumBreakdown) (domain.RiskCategory, []string)
}

// Calculator composes the clause catalog, the variant matcher and a Decider
// into the full premium pipeline. It holds no mutable state; every call is
// a pure function of its input and safe for unlimited concurrent use.
type Calculator struct {
	catalog  *catalog.Catalog
	variants *catalog.Variants
	cfg      domain.PricingConfig
	decider  Decider
}

// NewCalculator creates a calculator over the immutable pricing tables.
func NewCalculator(cat *catalog.Catalog, variants *catalog.Variants, cfg domain.PricingConfig, decider Decider) *Calculator {
	return &Calculator{
		catalog:  cat,
		variants: variants,
		cfg:      cfg,
		decider:  decider,
	}
}

// QuickQuote returns a coarse, clause-free estimate for pre-qualification:
// a fixed rate on the sum insured scaled by the territorial multiplier.
// No risk loading, no clauses, no decision.
func (c *Calculator) QuickQuote(sumInsured decimal.Decimal, scope domain.TerritorialScope) (domain.QuickQuote, error) {
	if !sumInsured.IsPositive() {
		return domain.QuickQuote{}, fmt.Errorf("%w: sum insured must be positive", domain.ErrInvalidInput)
	}
	if !scope.Valid() {
		return domain.QuickQuote{}, fmt.Errorf("%w: unknown territorial scope %q", domain.ErrInvalidInput, scope)
	}

	multiplier := c.cfg.TerritorialMultipliers[scope]
	estimate := sumInsured.Mul(c.cfg.QuickRate).Mul(multiplier).Round(2)

	return domain.QuickQuote{
		SumInsured:            sumInsured,
		TerritorialScope:      scope,
		Estimate:              estimate,
		TerritorialMultiplier: multiplier,
	}, nil
}

// Calculate runs the full premium pipeline and appends the underwriting
// decision. Validation happens before any arithmetic; no partial breakdown
// is ever returned.
func (c *Calculator) Calculate(input domain.CalculationInput) (domain.CalculationResult, error) {
	if err := c.validate(input); err != nil {
		return domain.CalculationResult{}, err
	}

	// Base premium anchors every subsequent loading.
	basePremium := input.SumInsured.Mul(c.cfg.BaseRates[input.TerritorialScope]).Round(2)

	// Clause premiums are computed against the base premium, not a running
	// total, which keeps clause pricing independent of selection order.
	// Iterating the canonical clause order makes the breakdown byte-stable
	// under permuted input.
	selected := make(map[domain.ClauseType]bool, len(input.SelectedClauses))
	for _, t := range input.SelectedClauses {
		selected[t] = true
	}

	clauseLines := make([]domain.ClauseLine, 0, len(selected))
	clauseSubtotal := decimal.Zero
	for _, t := range domain.AllClauseTypes {
		if !selected[t] {
			continue
		}
		def, err := c.catalog.Lookup(t)
		if err != nil {
			return domain.CalculationResult{}, err
		}

		sublimitPct := def.DefaultSublimitPct
		var override *decimal.Decimal
		if pct, ok := input.SublimitOverrides[t]; ok {
			override = &pct
			sublimitPct = pct
		}

		premium, err := c.catalog.ClausePremium(t, basePremium, override)
		if err != nil {
			return domain.CalculationResult{}, err
		}

		clauseLines = append(clauseLines, domain.ClauseLine{
			Type:        t,
			Name:        def.Name,
			SublimitPct: sublimitPct,
			Premium:     premium,
		})
		clauseSubtotal = clauseSubtotal.Add(premium)
	}

	// Risk loadings apply to the base+clause subtotal, each recorded as a
	// named line item.
	subtotal := basePremium.Add(clauseSubtotal)
	loadings := c.riskLoadings(input, subtotal)
	loadingTotal := decimal.Zero
	for _, l := range loadings {
		loadingTotal = loadingTotal.Add(l.Amount)
	}

	// Bundle discount applies to the clause subtotal only, never to the
	// base premium or the risk loading.
	variant := c.variants.Match(input.SelectedClauses)
	savings := c.variants.BundleSavings(clauseSubtotal, variant)

	total := subtotal.Add(loadingTotal).Sub(savings)

	floorApplied := false
	if total.LessThanOrEqual(c.cfg.MinimumPremium) {
		total = c.cfg.MinimumPremium
		floorApplied = true
	}

	breakdown := domain.PremiumBreakdown{
		BasePremium:    basePremium,
		Clauses:        clauseLines,
		ClauseSubtotal: clauseSubtotal,
		Loadings:       loadings,
		LoadingTotal:   loadingTotal,
		Variant:        variant,
		BundleDiscount: savings,
		Total:          total,
	}

	riskLevel, reasons := c.decider.Decide(input, breakdown)

	return domain.CalculationResult{
		Breakdown:       breakdown,
		RiskLevel:       riskLevel,
		IsAutoApproved:  len(reasons) == 0,
		ReferralReasons: reasons,
		MinimumPremium:  c.cfg.MinimumPremium,
		FloorApplied:    floorApplied,
	}, nil
}

// riskLoadings evaluates each loading factor against the base+clause
// subtotal. The factor order is fixed for deterministic breakdowns.
func (c *Calculator) riskLoadings(input domain.CalculationInput, subtotal decimal.Decimal) []domain.LoadingLine {
	var loadings []domain.LoadingLine

	add := func(code, name string, rate decimal.Decimal) {
		loadings = append(loadings, domain.LoadingLine{
			Code:   code,
			Name:   name,
			Rate:   rate,
			Amount: subtotal.Mul(rate).Round(2),
		})
	}

	switch {
	case input.YearsInBusiness < c.cfg.ShortHistoryYears:
		add("SHORT_HISTORY", "Short operating history", c.cfg.ShortHistoryLoading)
	case input.YearsInBusiness < c.cfg.MidHistoryYears:
		add("MID_HISTORY", "Limited operating history", c.cfg.MidHistoryLoading)
	}

	if input.FleetSize < c.cfg.FleetMin {
		add("SMALL_FLEET", "Small fleet concentration", c.cfg.SmallFleetLoading)
	} else if input.FleetSize > c.cfg.FleetMax {
		add("LARGE_FLEET", "Large fleet oversight", c.cfg.LargeFleetLoading)
	}

	if input.APK.ClaimsLastThreeYears > 0 {
		add("PRIOR_CLAIMS", "Declared claims in the last three years", c.cfg.ClaimsLoading)
	}
	if input.APK.HighValueGoods {
		add("HIGH_VALUE_GOODS", "High-value cargo", c.cfg.HighValueLoading)
	}
	if input.APK.UnattendedParking {
		add("UNATTENDED_PARKING", "Overnight parking outside guarded lots", c.cfg.UnattendedLoading)
	}

	return loadings
}

// validate rejects out-of-range input before any arithmetic runs.
func (c *Calculator) validate(input domain.CalculationInput) error {
	if !input.SumInsured.IsPositive() {
		return fmt.Errorf("%w: sum insured must be positive", domain.ErrInvalidInput)
	}
	if !input.TerritorialScope.Valid() {
		return fmt.Errorf("%w: unknown territorial scope %q", domain.ErrInvalidInput, input.TerritorialScope)
	}
	if input.YearsInBusiness < 0 {
		return fmt.Errorf("%w: years in business must not be negative", domain.ErrInvalidInput)
	}
	if input.FleetSize < 1 {
		return fmt.Errorf("%w: fleet size must be at least 1", domain.ErrInvalidInput)
	}
	if input.APK.ClaimsLastThreeYears < 0 {
		return fmt.Errorf("%w: claim count must not be negative", domain.ErrInvalidInput)
	}
	for _, t := range input.SelectedClauses {
		if !t.Valid() {
			return fmt.Errorf("%w: unknown clause type %q", domain.ErrInvalidInput, t)
		}
	}
	for t, pct := range input.SublimitOverrides {
		if !t.Valid() {
			return fmt.Errorf("%w: sublimit override for unknown clause %q", domain.ErrInvalidInput, t)
		}
		if !selected(input.SelectedClauses, t) {
			return fmt.Errorf("%w: sublimit override for unselected clause %s", domain.ErrInvalidInput, t)
		}
		if !pct.IsPositive() || pct.GreaterThan(hundredPct) {
			return fmt.Errorf("%w: sublimit override for %s must be in (0, 100]", domain.ErrInvalidInput, t)
		}
	}
	return nil
}

var hundredPct = decimal.NewFromInt(100)

func selected(clauses []domain.ClauseType, t domain.ClauseType) bool {
	for _, c := range clauses {
		if c == t {
			return true
		}
	}
	return false
}
