// Package catalog holds the static clause and coverage-variant tables of
// the OCPD product and the pricing helpers derived from them.
package catalog

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/brokerops/ocpd-engine/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// clauseTable is the code-level constant clause catalog. There is exactly
// one definition per clause type; rates are percentages of the base
// policy premium.
func clauseTable() []domain.ClauseDefinition {
	return []domain.ClauseDefinition{
		{
			Type:               domain.ClauseGrossNegligence,
			Name:               "Gross negligence",
			NamePL:             "Rażące niedbalstwo",
			DefaultSublimitPct: decimal.NewFromInt(100),
			BasePremiumRate:    decimal.NewFromInt(15),
			RiskCategory:       domain.RiskElevated,
		},
		{
			Type:               domain.ClauseParking,
			Name:               "Parking outside guarded lots",
			NamePL:             "Postój poza parkingami strzeżonymi",
			DefaultSublimitPct: decimal.NewFromInt(30),
			BasePremiumRate:    decimal.NewFromInt(8),
			RiskCategory:       domain.RiskStandard,
		},
		{
			Type:               domain.ClauseUnauthorizedRelease,
			Name:               "Release to an unauthorized person",
			NamePL:             "Wydanie osobie nieuprawnionej",
			DefaultSublimitPct: decimal.NewFromInt(50),
			BasePremiumRate:    decimal.NewFromInt(12),
			RiskCategory:       domain.RiskElevated,
		},
		{
			Type:               domain.ClauseDocuments,
			Name:               "Transport documents",
			NamePL:             "Dokumenty przewozowe",
			DefaultSublimitPct: decimal.NewFromInt(10),
			BasePremiumRate:    decimal.NewFromInt(4),
			RiskCategory:       domain.RiskStandard,
		},
		{
			Type:               domain.ClauseSubcontractors,
			Name:               "Subcontractor liability",
			NamePL:             "Odpowiedzialność za podwykonawców",
			DefaultSublimitPct: decimal.NewFromInt(100),
			BasePremiumRate:    decimal.NewFromInt(10),
			RiskCategory:       domain.RiskElevated,
		},
		{
			Type:               domain.ClauseRefrigerated,
			Name:               "Refrigerated transport",
			NamePL:             "Transport chłodniczy",
			DefaultSublimitPct: decimal.NewFromInt(100),
			BasePremiumRate:    decimal.NewFromInt(10),
			RiskCategory:       domain.RiskElevated,
		},
		{
			Type:               domain.ClauseADR,
			Name:               "Dangerous goods (ADR)",
			NamePL:             "Materiały niebezpieczne (ADR)",
			DefaultSublimitPct: decimal.NewFromInt(100),
			BasePremiumRate:    decimal.NewFromInt(14),
			RiskCategory:       domain.RiskHigh,
		},
	}
}

// Catalog is the immutable clause lookup table. Built once at startup and
// injected by reference; concurrent readers need no locking because no
// writer exists post-initialization.
type Catalog struct {
	definitions map[domain.ClauseType]domain.ClauseDefinition
	ordered     []domain.ClauseDefinition
}

// New builds the catalog from the constant clause table.
func New() *Catalog {
	table := clauseTable()
	defs := make(map[domain.ClauseType]domain.ClauseDefinition, len(table))
	for _, def := range table {
		defs[def.Type] = def
	}
	return &Catalog{
		definitions: defs,
		ordered:     table,
	}
}

// Lookup returns the definition for a clause type.
// An unknown type is a programming defect, not a user-facing condition.
func (c *Catalog) Lookup(t domain.ClauseType) (domain.ClauseDefinition, error) {
	def, ok := c.definitions[t]
	if !ok {
		return domain.ClauseDefinition{}, fmt.Errorf("%w: %q", domain.ErrUnknownClauseType, t)
	}
	return def, nil
}

// Definitions returns every clause definition in canonical order.
func (c *Catalog) Definitions() []domain.ClauseDefinition {
	out := make([]domain.ClauseDefinition, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// ClausePremium computes the premium for including a clause, given the base
// policy premium. A custom sublimit scales the premium linearly against the
// default sublimit: a buyer who halves the sublimit pays half the clause
// premium. The linearity is deliberate and must not gain a curve.
func (c *Catalog) ClausePremium(t domain.ClauseType, basePremium decimal.Decimal, customSublimitPct *decimal.Decimal) (decimal.Decimal, error) {
	def, err := c.Lookup(t)
	if err != nil {
		return decimal.Zero, err
	}

	premium := basePremium.Mul(def.BasePremiumRate).Div(hundred)
	if customSublimitPct != nil && !def.DefaultSublimitPct.IsZero() {
		premium = premium.Mul(*customSublimitPct).Div(def.DefaultSublimitPct)
	}
	return premium.Round(2), nil
}

// Instantiate creates an active PolicyClause for a quote: sublimit resolved
// from the override or the default, amounts computed against the quote's
// sum insured and base premium.
func (c *Catalog) Instantiate(t domain.ClauseType, sumInsured, basePremium decimal.Decimal, customSublimitPct *decimal.Decimal) (domain.PolicyClause, error) {
	def, err := c.Lookup(t)
	if err != nil {
		return domain.PolicyClause{}, err
	}

	sublimitPct := def.DefaultSublimitPct
	if customSublimitPct != nil {
		sublimitPct = *customSublimitPct
	}

	premium, err := c.ClausePremium(t, basePremium, customSublimitPct)
	if err != nil {
		return domain.PolicyClause{}, err
	}

	return domain.PolicyClause{
		ID:             uuid.New().String(),
		Type:           t,
		SublimitPct:    sublimitPct,
		SublimitAmount: sumInsured.Mul(sublimitPct).Div(hundred).Round(2),
		Premium:        premium,
		IsActive:       true,
	}, nil
}
