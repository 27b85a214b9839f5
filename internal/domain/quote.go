package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote statuses reflecting the underwriting decision.
const (
	QuoteStatusAutoApproved = "AUTO_APPROVED"
	QuoteStatusReferred     = "REFERRED"
)

// Quote is a priced quote stored alongside its input snapshot and the
// instantiated clauses, so an underwriter can audit exactly what was priced.
type Quote struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	ApplicantID string `json:"applicantId"`

	Input   CalculationInput  `json:"input"`
	Clauses []PolicyClause    `json:"clauses"`
	Result  CalculationResult `json:"result"`

	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// QuoteRequest is the API request payload for a full premium calculation.
type QuoteRequest struct {
	ApplicantID       string             `json:"applicantId"`
	SumInsured        float64            `json:"sumInsured"`
	TerritorialScope  string             `json:"territorialScope"`
	SelectedClauses   []string           `json:"selectedClauses,omitempty"`
	APK               APKData            `json:"apk"`
	YearsInBusiness   int                `json:"yearsInBusiness"`
	FleetSize         int                `json:"fleetSize"`
	SublimitOverrides []SublimitOverride `json:"sublimitOverrides,omitempty"`
}

// SublimitOverride lowers (or raises) a selected clause's sublimit
// percentage from the catalog default.
type SublimitOverride struct {
	Clause      string  `json:"clause"`
	SublimitPct float64 `json:"sublimitPct"`
}

// ToInput converts the request to a CalculationInput. Validation happens
// in the calculator; this is a pure shape conversion.
func (r *QuoteRequest) ToInput() CalculationInput {
	clauses := make([]ClauseType, 0, len(r.SelectedClauses))
	for _, c := range r.SelectedClauses {
		clauses = append(clauses, ClauseType(c))
	}

	var overrides map[ClauseType]decimal.Decimal
	if len(r.SublimitOverrides) > 0 {
		overrides = make(map[ClauseType]decimal.Decimal, len(r.SublimitOverrides))
		for _, o := range r.SublimitOverrides {
			overrides[ClauseType(o.Clause)] = decimal.NewFromFloat(o.SublimitPct)
		}
	}

	return CalculationInput{
		SumInsured:        decimal.NewFromFloat(r.SumInsured),
		TerritorialScope:  TerritorialScope(r.TerritorialScope),
		SelectedClauses:   clauses,
		APK:               r.APK,
		YearsInBusiness:   r.YearsInBusiness,
		FleetSize:         r.FleetSize,
		SublimitOverrides: overrides,
	}
}
