package domain

import (
	"github.com/shopspring/decimal"
)

// CoverageVariant names a predefined clause bundle, or CUSTOM for any
// selection that matches no bundle exactly.
type CoverageVariant string

const (
	VariantBasic    CoverageVariant = "BASIC"
	VariantStandard CoverageVariant = "STANDARD"
	VariantPremium  CoverageVariant = "PREMIUM"
	VariantCustom   CoverageVariant = "CUSTOM"
)

// VariantDefinition is an immutable bundle definition: a fixed clause set
// and the fractional discount applied to the clause-premium subtotal.
type VariantDefinition struct {
	Variant        CoverageVariant `json:"variant"`
	Clauses        []ClauseType    `json:"clauses"`
	BundleDiscount decimal.Decimal `json:"bundleDiscount"`
}
