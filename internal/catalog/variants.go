package catalog

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/brokerops/ocpd-engine/internal/domain"
)

// variantTable defines the three predefined bundles. BASIC is contained in
// STANDARD, STANDARD in PREMIUM, but matching is strict set equality: a
// superset of STANDARD is CUSTOM, not STANDARD.
func variantTable() []domain.VariantDefinition {
	return []domain.VariantDefinition{
		{
			Variant: domain.VariantBasic,
			Clauses: []domain.ClauseType{
				domain.ClauseGrossNegligence,
				domain.ClauseParking,
			},
			BundleDiscount: decimal.NewFromFloat(0.05),
		},
		{
			Variant: domain.VariantStandard,
			Clauses: []domain.ClauseType{
				domain.ClauseGrossNegligence,
				domain.ClauseParking,
				domain.ClauseSubcontractors,
			},
			BundleDiscount: decimal.NewFromFloat(0.10),
		},
		{
			Variant: domain.VariantPremium,
			Clauses: []domain.ClauseType{
				domain.ClauseGrossNegligence,
				domain.ClauseParking,
				domain.ClauseUnauthorizedRelease,
				domain.ClauseDocuments,
				domain.ClauseSubcontractors,
				domain.ClauseRefrigerated,
				domain.ClauseADR,
			},
			BundleDiscount: decimal.NewFromFloat(0.15),
		},
	}
}

// Variants is the immutable bundle table plus the matching logic.
type Variants struct {
	ordered []domain.VariantDefinition
}

// NewVariants builds the variant table.
func NewVariants() *Variants {
	return &Variants{ordered: variantTable()}
}

// Definitions returns the predefined bundles in matching priority order.
func (v *Variants) Definitions() []domain.VariantDefinition {
	out := make([]domain.VariantDefinition, len(v.ordered))
	copy(out, v.ordered)
	return out
}

// Match maps a clause selection to a variant. Matching is order-insensitive
// exact set equality against BASIC, then STANDARD, then PREMIUM; the first
// exact match wins and anything else, including the empty selection and
// supersets of a bundle, is CUSTOM.
func (v *Variants) Match(selected []domain.ClauseType) domain.CoverageVariant {
	selection := normalize(selected)
	for _, def := range v.ordered {
		if sameSet(selection, normalize(def.Clauses)) {
			return def.Variant
		}
	}
	return domain.VariantCustom
}

// DiscountFor returns the variant's bundle discount fraction, zero for
// CUSTOM.
func (v *Variants) DiscountFor(variant domain.CoverageVariant) decimal.Decimal {
	for _, def := range v.ordered {
		if def.Variant == variant {
			return def.BundleDiscount
		}
	}
	return decimal.Zero
}

// BundleSavings returns the discount amount for a clause-premium subtotal,
// rounded to the nearest whole currency unit so re-runs match reference
// outputs exactly.
func (v *Variants) BundleSavings(clauseSubtotal decimal.Decimal, variant domain.CoverageVariant) decimal.Decimal {
	return clauseSubtotal.Mul(v.DiscountFor(variant)).Round(0)
}

// normalize dedupes and sorts a clause selection. Sorting is only an
// implementation detail for the set comparison.
func normalize(clauses []domain.ClauseType) []domain.ClauseType {
	seen := make(map[domain.ClauseType]struct{}, len(clauses))
	out := make([]domain.ClauseType, 0, len(clauses))
	for _, c := range clauses {
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sameSet(a, b []domain.ClauseType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
