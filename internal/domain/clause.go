// Package domain defines the core types and interfaces for the OCPD engine.
package domain

import (
	"github.com/shopspring/decimal"
)

// ClauseType identifies an optional coverage rider on an OCPD policy.
type ClauseType string

const (
	ClauseGrossNegligence     ClauseType = "GROSS_NEGLIGENCE"
	ClauseParking             ClauseType = "PARKING"
	ClauseUnauthorizedRelease ClauseType = "UNAUTHORIZED_RELEASE"
	ClauseDocuments           ClauseType = "DOCUMENTS"
	ClauseSubcontractors      ClauseType = "SUBCONTRACTORS"
	ClauseRefrigerated        ClauseType = "REFRIGERATED"
	ClauseADR                 ClauseType = "ADR"
)

// AllClauseTypes lists every clause type in canonical order.
// The order is used wherever deterministic iteration matters.
var AllClauseTypes = []ClauseType{
	ClauseGrossNegligence,
	ClauseParking,
	ClauseUnauthorizedRelease,
	ClauseDocuments,
	ClauseSubcontractors,
	ClauseRefrigerated,
	ClauseADR,
}

// Valid reports whether t is one of the enumerated clause types.
func (t ClauseType) Valid() bool {
	for _, known := range AllClauseTypes {
		if t == known {
			return true
		}
	}
	return false
}

// RiskCategory classifies a clause or an entire quote.
type RiskCategory string

const (
	RiskStandard RiskCategory = "STANDARD"
	RiskElevated RiskCategory = "ELEVATED"
	RiskHigh     RiskCategory = "HIGH"
)

// rank orders categories for max comparisons: STANDARD < ELEVATED < HIGH.
func (c RiskCategory) rank() int {
	switch c {
	case RiskElevated:
		return 1
	case RiskHigh:
		return 2
	default:
		return 0
	}
}

// Max returns the higher of the two categories.
func (c RiskCategory) Max(other RiskCategory) RiskCategory {
	if other.rank() > c.rank() {
		return other
	}
	return c
}

// AtLeast reports whether c is at or above the given category.
func (c RiskCategory) AtLeast(other RiskCategory) bool {
	return c.rank() >= other.rank()
}

// ClauseDefinition is the immutable catalog entry for a clause type.
// Exactly one definition exists per ClauseType; the table is built once
// at startup and never mutated.
type ClauseDefinition struct {
	Type   ClauseType `json:"type"`
	Name   string     `json:"name"`
	NamePL string     `json:"namePl"`

	// DefaultSublimitPct is the share of the sum insured covered under
	// this clause when no override is supplied (0-100).
	DefaultSublimitPct decimal.Decimal `json:"defaultSublimitPct"`

	// BasePremiumRate is the percentage of the base policy premium
	// charged for including this clause at its default sublimit.
	BasePremiumRate decimal.Decimal `json:"basePremiumRate"`

	RiskCategory RiskCategory `json:"riskCategory"`
}

// PolicyClause is a clause instantiated for a specific quote. It is owned
// exclusively by that quote and recomputed whenever the sum insured or the
// sublimit override changes.
type PolicyClause struct {
	ID             string          `json:"id"`
	Type           ClauseType      `json:"type"`
	SublimitPct    decimal.Decimal `json:"sublimitPct"`
	SublimitAmount decimal.Decimal `json:"sublimitAmount"`
	Premium        decimal.Decimal `json:"premium"`
	IsActive       bool            `json:"isActive"`
}
