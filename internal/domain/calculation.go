package domain

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Engine-level error taxonomy. ErrInvalidInput covers malformed requests
// and is surfaced to the caller; ErrUnknownClauseType marks internal misuse
// of the catalog and is a programming defect.
var (
	ErrInvalidInput      = errors.New("invalid calculation input")
	ErrUnknownClauseType = errors.New("unknown clause type")
)

// TerritorialScope is the geographic extent of coverage.
type TerritorialScope string

const (
	ScopePoland TerritorialScope = "POLAND"
	ScopeEurope TerritorialScope = "EUROPE"
	ScopeWorld  TerritorialScope = "WORLD"
)

// Valid reports whether s is one of the three supported scopes.
func (s TerritorialScope) Valid() bool {
	return s == ScopePoland || s == ScopeEurope || s == ScopeWorld
}

// APKData holds the applicant's risk-questionnaire answers.
type APKData struct {
	// ClaimsLastThreeYears is the declared number of liability claims
	// in the last three years.
	ClaimsLastThreeYears int `json:"claimsLastThreeYears"`

	// HighValueGoods indicates regular carriage of high-value cargo.
	HighValueGoods bool `json:"highValueGoods"`

	// UnattendedParking indicates overnight parking outside guarded lots.
	UnattendedParking bool `json:"unattendedParking"`
}

// CalculationInput is the validated risk profile a premium calculation
// runs against. The engine never persists it.
type CalculationInput struct {
	SumInsured       decimal.Decimal  `json:"sumInsured"`
	TerritorialScope TerritorialScope `json:"territorialScope"`
	SelectedClauses  []ClauseType     `json:"selectedClauses"`
	APK              APKData          `json:"apk"`
	YearsInBusiness  int              `json:"yearsInBusiness"`
	FleetSize        int              `json:"fleetSize"`

	// SublimitOverrides lowers (or raises) a selected clause's sublimit
	// percentage from the catalog default. Keys must be selected clauses.
	SublimitOverrides map[ClauseType]decimal.Decimal `json:"sublimitOverrides,omitempty"`
}

// ClauseLine is one clause's contribution to the premium breakdown.
type ClauseLine struct {
	Type        ClauseType      `json:"type"`
	Name        string          `json:"name"`
	SublimitPct decimal.Decimal `json:"sublimitPct"`
	Premium     decimal.Decimal `json:"premium"`
}

// LoadingLine is one risk-loading factor applied to the base+clause
// subtotal, recorded by name for auditability.
type LoadingLine struct {
	Code   string          `json:"code"`
	Name   string          `json:"name"`
	Rate   decimal.Decimal `json:"rate"`
	Amount decimal.Decimal `json:"amount"`
}

// PremiumBreakdown itemizes every line contributing to the total so the
// caller can render a fully auditable quote document.
type PremiumBreakdown struct {
	BasePremium    decimal.Decimal `json:"basePremium"`
	Clauses        []ClauseLine    `json:"clauses"`
	ClauseSubtotal decimal.Decimal `json:"clauseSubtotal"`
	Loadings       []LoadingLine   `json:"loadings"`
	LoadingTotal   decimal.Decimal `json:"loadingTotal"`
	Variant        CoverageVariant `json:"variant"`
	BundleDiscount decimal.Decimal `json:"bundleDiscount"`
	Total          decimal.Decimal `json:"total"`
}

// CalculationResult is the engine output: the monetary breakdown plus the
// underwriting decision. Immutable once constructed.
type CalculationResult struct {
	Breakdown       PremiumBreakdown `json:"breakdown"`
	RiskLevel       RiskCategory     `json:"riskLevel"`
	IsAutoApproved  bool             `json:"isAutoApproved"`
	ReferralReasons []string         `json:"referralReasons,omitempty"`
	MinimumPremium  decimal.Decimal  `json:"minimumPremium"`
	FloorApplied    bool             `json:"floorApplied"`
}

// QuickQuote is the reduced, clause-free pre-qualification estimate.
type QuickQuote struct {
	SumInsured            decimal.Decimal  `json:"sumInsured"`
	TerritorialScope      TerritorialScope `json:"territorialScope"`
	Estimate              decimal.Decimal  `json:"estimate"`
	TerritorialMultiplier decimal.Decimal  `json:"territorialMultiplier"`
}
