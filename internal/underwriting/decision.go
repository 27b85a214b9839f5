// Package underwriting classifies quote risk and decides auto-approval
// versus referral to a human underwriter.
package underwriting

import (
	"fmt"

	"github.com/brokerops/ocpd-engine/internal/catalog"
	"github.com/brokerops/ocpd-engine/internal/domain"
)

// Decider is the built-in, state-free referral policy. Each call is a
// single evaluation; triggers run in a fixed order and a fired trigger's
// reason is never suppressed.
type Decider struct {
	catalog *catalog.Catalog
	cfg     domain.PricingConfig
}

// NewDecider creates the built-in decision engine over the immutable
// clause catalog.
func NewDecider(cat *catalog.Catalog, cfg domain.PricingConfig) *Decider {
	return &Decider{catalog: cat, cfg: cfg}
}

// Decide classifies the overall risk level and collects referral reasons.
// Auto-approval is the absence of reasons; callers must derive the flag
// from the returned slice, never set it independently.
func (d *Decider) Decide(input domain.CalculationInput, breakdown domain.PremiumBreakdown) (domain.RiskCategory, []string) {
	level := d.riskLevel(input)

	var reasons []string

	// Trigger order is fixed: clause risk categories, sum insured
	// materiality, business history, fleet size, APK declarations.
	for _, t := range domain.AllClauseTypes {
		if !contains(input.SelectedClauses, t) {
			continue
		}
		def, err := d.catalog.Lookup(t)
		if err != nil {
			continue
		}
		switch def.RiskCategory {
		case domain.RiskHigh:
			reasons = append(reasons, fmt.Sprintf("clause %s carries a HIGH risk category and requires underwriter review", def.Name))
		case domain.RiskElevated:
			reasons = append(reasons, fmt.Sprintf("clause %s carries an ELEVATED risk category", def.Name))
		}
	}

	if input.SumInsured.GreaterThan(d.cfg.MaterialitySumInsured) {
		reasons = append(reasons, fmt.Sprintf("sum insured %s exceeds the materiality threshold %s",
			input.SumInsured.StringFixed(0), d.cfg.MaterialitySumInsured.StringFixed(0)))
	}

	if input.YearsInBusiness < d.cfg.MinYearsInBusiness {
		reasons = append(reasons, fmt.Sprintf("only %d year(s) in business, minimum for auto-approval is %d",
			input.YearsInBusiness, d.cfg.MinYearsInBusiness))
	}

	if input.FleetSize < d.cfg.FleetMin {
		reasons = append(reasons, fmt.Sprintf("fleet of %d vehicles is below the auto-approval band", input.FleetSize))
	} else if input.FleetSize > d.cfg.FleetMax {
		reasons = append(reasons, fmt.Sprintf("fleet of %d vehicles is above the auto-approval band", input.FleetSize))
	}

	if input.APK.ClaimsLastThreeYears > 0 {
		reasons = append(reasons, fmt.Sprintf("%d declared claim(s) in the last three years", input.APK.ClaimsLastThreeYears))
	}
	if input.APK.HighValueGoods && input.APK.UnattendedParking {
		reasons = append(reasons, "high-value cargo combined with unattended overnight parking")
	}

	// A non-standard risk level always blocks auto-approval; if no
	// individual trigger explained it, record the classification itself.
	if level != domain.RiskStandard && len(reasons) == 0 {
		reasons = append(reasons, fmt.Sprintf("overall risk level classified as %s", level))
	}

	return level, reasons
}

// riskLevel classifies the quote. A single ELEVATED clause does not raise
// the level on its own (it still fires a referral trigger); two or more
// do, and any HIGH clause forces HIGH. APK and history thresholds can
// raise the floor independently.
func (d *Decider) riskLevel(input domain.CalculationInput) domain.RiskCategory {
	level := domain.RiskStandard

	elevatedClauses := 0
	for _, t := range input.SelectedClauses {
		def, err := d.catalog.Lookup(t)
		if err != nil {
			continue
		}
		switch def.RiskCategory {
		case domain.RiskHigh:
			level = level.Max(domain.RiskHigh)
		case domain.RiskElevated:
			elevatedClauses++
		}
	}
	if elevatedClauses >= 2 {
		level = level.Max(domain.RiskElevated)
	}

	if input.APK.ClaimsLastThreeYears >= d.cfg.HighClaimCount {
		level = level.Max(domain.RiskHigh)
	} else if input.APK.ClaimsLastThreeYears >= d.cfg.ElevatedClaimCount {
		level = level.Max(domain.RiskElevated)
	}

	if input.YearsInBusiness < d.cfg.NewBusinessYears {
		level = level.Max(domain.RiskElevated)
	}

	return level
}

// AppendReferrals returns a copy of the result with extra referral reasons
// appended and the auto-approval flag re-derived, keeping the invariant
// that approval means an empty reasons list.
func AppendReferrals(result domain.CalculationResult, extra []string) domain.CalculationResult {
	if len(extra) == 0 {
		return result
	}
	reasons := make([]string, 0, len(result.ReferralReasons)+len(extra))
	reasons = append(reasons, result.ReferralReasons...)
	reasons = append(reasons, extra...)
	result.ReferralReasons = reasons
	result.IsAutoApproved = false
	return result
}

func contains(clauses []domain.ClauseType, t domain.ClauseType) bool {
	for _, c := range clauses {
		if c == t {
			return true
		}
	}
	return false
}
