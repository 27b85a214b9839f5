package pricing

import (
	"errors"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/brokerops/ocpd-engine/internal/catalog"
	"github.com/brokerops/ocpd-engine/internal/domain"
	"github.com/brokerops/ocpd-engine/internal/underwriting"
)

func newCalculator() *Calculator {
	cat := catalog.New()
	variants := catalog.NewVariants()
	cfg := domain.DefaultPricingConfig()
	decider := underwriting.NewDecider(cat, cfg)
	return NewCalculator(cat, variants, cfg, decider)
}

func TestQuickQuote(t *testing.T) {
	calc := newCalculator()

	t.Run("Poland", func(t *testing.T) {
		quote, err := calc.QuickQuote(decimal.NewFromInt(1_000_000), domain.ScopePoland)
		if err != nil {
			t.Fatalf("QuickQuote failed: %v", err)
		}
		if !quote.Estimate.Equal(decimal.NewFromInt(1500)) {
			t.Errorf("expected estimate 1500, got %s", quote.Estimate)
		}
	})

	t.Run("ScopeOrdering", func(t *testing.T) {
		sum := decimal.NewFromInt(1_000_000)
		poland, _ := calc.QuickQuote(sum, domain.ScopePoland)
		europe, _ := calc.QuickQuote(sum, domain.ScopeEurope)
		world, _ := calc.QuickQuote(sum, domain.ScopeWorld)

		if !poland.Estimate.LessThan(europe.Estimate) {
			t.Errorf("expected POLAND %s < EUROPE %s", poland.Estimate, europe.Estimate)
		}
		if !europe.Estimate.LessThan(world.Estimate) {
			t.Errorf("expected EUROPE %s < WORLD %s", europe.Estimate, world.Estimate)
		}
	})

	t.Run("InvalidInput", func(t *testing.T) {
		if _, err := calc.QuickQuote(decimal.Zero, domain.ScopePoland); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for zero sum, got: %v", err)
		}
		if _, err := calc.QuickQuote(decimal.NewFromInt(100), domain.TerritorialScope("MARS")); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for unknown scope, got: %v", err)
		}
	})
}

// TestCalculateReferenceCase prices a mid-size carrier with only the gross
// negligence clause and pins every component of the breakdown.
func TestCalculateReferenceCase(t *testing.T) {
	calc := newCalculator()

	input := domain.CalculationInput{
		SumInsured:       decimal.NewFromInt(1_000_000),
		TerritorialScope: domain.ScopePoland,
		SelectedClauses:  []domain.ClauseType{domain.ClauseGrossNegligence},
		YearsInBusiness:  5,
		FleetSize:        10,
	}

	result, err := calc.Calculate(input)
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}

	b := result.Breakdown
	if !b.BasePremium.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("expected base premium 1500, got %s", b.BasePremium)
	}
	if len(b.Clauses) != 1 {
		t.Fatalf("expected 1 clause line, got %d", len(b.Clauses))
	}
	if !b.Clauses[0].Premium.Equal(decimal.NewFromInt(225)) {
		t.Errorf("expected clause premium 225, got %s", b.Clauses[0].Premium)
	}
	if len(b.Loadings) != 0 {
		t.Errorf("expected no loadings, got %+v", b.Loadings)
	}
	if b.Variant != domain.VariantCustom {
		t.Errorf("expected CUSTOM variant, got %s", b.Variant)
	}
	if !b.BundleDiscount.IsZero() {
		t.Errorf("expected no bundle discount, got %s", b.BundleDiscount)
	}
	if !b.Total.Equal(decimal.NewFromInt(1725)) {
		t.Errorf("expected total 1725, got %s", b.Total)
	}
	if result.FloorApplied {
		t.Error("floor should not apply at this total")
	}

	// One ELEVATED clause refers the quote but leaves the level STANDARD.
	if result.RiskLevel != domain.RiskStandard {
		t.Errorf("expected STANDARD risk level, got %s", result.RiskLevel)
	}
	if result.IsAutoApproved {
		t.Error("expected referral, got auto-approval")
	}
	if len(result.ReferralReasons) != 1 {
		t.Errorf("expected exactly 1 referral reason, got %v", result.ReferralReasons)
	}
}

func TestCalculateCleanAutoApproval(t *testing.T) {
	calc := newCalculator()

	input := domain.CalculationInput{
		SumInsured:       decimal.NewFromInt(800_000),
		TerritorialScope: domain.ScopeEurope,
		SelectedClauses:  []domain.ClauseType{domain.ClauseParking, domain.ClauseDocuments},
		YearsInBusiness:  7,
		FleetSize:        15,
	}

	result, err := calc.Calculate(input)
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}

	if !result.IsAutoApproved {
		t.Errorf("expected auto-approval, reasons: %v", result.ReferralReasons)
	}
	if len(result.ReferralReasons) != 0 {
		t.Errorf("expected no referral reasons, got %v", result.ReferralReasons)
	}
	if result.RiskLevel != domain.RiskStandard {
		t.Errorf("expected STANDARD risk level, got %s", result.RiskLevel)
	}
}

func TestCalculateOrderIndependence(t *testing.T) {
	calc := newCalculator()

	base := domain.CalculationInput{
		SumInsured:       decimal.NewFromInt(2_500_000),
		TerritorialScope: domain.ScopeWorld,
		SelectedClauses: []domain.ClauseType{
			domain.ClauseADR, domain.ClauseParking, domain.ClauseGrossNegligence,
		},
		APK:             domain.APKData{ClaimsLastThreeYears: 1, HighValueGoods: true},
		YearsInBusiness: 1,
		FleetSize:       2,
	}

	permuted := base
	permuted.SelectedClauses = []domain.ClauseType{
		domain.ClauseParking, domain.ClauseGrossNegligence, domain.ClauseADR,
	}

	r1, err := calc.Calculate(base)
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	r2, err := calc.Calculate(permuted)
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}

	// Selection order must not leak into the breakdown or the decision.
	if !reflect.DeepEqual(r1.Breakdown.Clauses, r2.Breakdown.Clauses) {
		t.Error("clause lines differ under permuted selection")
	}
	if !r1.Breakdown.Total.Equal(r2.Breakdown.Total) {
		t.Errorf("totals differ: %s vs %s", r1.Breakdown.Total, r2.Breakdown.Total)
	}
	if !reflect.DeepEqual(r1.ReferralReasons, r2.ReferralReasons) {
		t.Errorf("referral reasons differ:\n%v\n%v", r1.ReferralReasons, r2.ReferralReasons)
	}
}

func TestCalculateIdempotent(t *testing.T) {
	calc := newCalculator()

	input := domain.CalculationInput{
		SumInsured:       decimal.NewFromInt(1_200_000),
		TerritorialScope: domain.ScopeEurope,
		SelectedClauses:  []domain.ClauseType{domain.ClauseGrossNegligence, domain.ClauseParking},
		APK:              domain.APKData{UnattendedParking: true},
		YearsInBusiness:  3,
		FleetSize:        20,
	}

	r1, err := calc.Calculate(input)
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	r2, err := calc.Calculate(input)
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}

	if !reflect.DeepEqual(r1, r2) {
		t.Error("repeated calculation produced a different result")
	}
}

func TestCalculateLoadings(t *testing.T) {
	calc := newCalculator()

	input := domain.CalculationInput{
		SumInsured:       decimal.NewFromInt(1_000_000),
		TerritorialScope: domain.ScopePoland,
		SelectedClauses:  []domain.ClauseType{domain.ClauseParking},
		APK: domain.APKData{
			ClaimsLastThreeYears: 1,
			HighValueGoods:       true,
			UnattendedParking:    true,
		},
		YearsInBusiness: 1,
		FleetSize:       2,
	}

	result, err := calc.Calculate(input)
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}

	// base 1500 + parking clause 120 = 1620 loading basis
	wantCodes := []string{"SHORT_HISTORY", "SMALL_FLEET", "PRIOR_CLAIMS", "HIGH_VALUE_GOODS", "UNATTENDED_PARKING"}
	if len(result.Breakdown.Loadings) != len(wantCodes) {
		t.Fatalf("expected %d loadings, got %+v", len(wantCodes), result.Breakdown.Loadings)
	}
	for i, code := range wantCodes {
		if result.Breakdown.Loadings[i].Code != code {
			t.Errorf("loading %d: expected %s, got %s", i, code, result.Breakdown.Loadings[i].Code)
		}
	}

	// SHORT_HISTORY is 25% of 1620
	if !result.Breakdown.Loadings[0].Amount.Equal(decimal.NewFromInt(405)) {
		t.Errorf("expected short history loading 405, got %s", result.Breakdown.Loadings[0].Amount)
	}
}

func TestCalculateBundleDiscount(t *testing.T) {
	calc := newCalculator()

	input := domain.CalculationInput{
		SumInsured:       decimal.NewFromInt(1_000_000),
		TerritorialScope: domain.ScopePoland,
		SelectedClauses:  []domain.ClauseType{domain.ClauseGrossNegligence, domain.ClauseParking},
		YearsInBusiness:  6,
		FleetSize:        10,
	}

	result, err := calc.Calculate(input)
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}

	if result.Breakdown.Variant != domain.VariantBasic {
		t.Fatalf("expected BASIC variant, got %s", result.Breakdown.Variant)
	}

	// Clause subtotal 225 + 120 = 345; 5% of that rounded is 17.
	if !result.Breakdown.BundleDiscount.Equal(decimal.NewFromInt(17)) {
		t.Errorf("expected bundle discount 17, got %s", result.Breakdown.BundleDiscount)
	}

	// Discount applies to clause subtotal only: 1500 + 345 - 17 = 1828
	if !result.Breakdown.Total.Equal(decimal.NewFromInt(1828)) {
		t.Errorf("expected total 1828, got %s", result.Breakdown.Total)
	}
}

func TestCalculateMinimumPremiumFloor(t *testing.T) {
	calc := newCalculator()

	t.Run("FloorApplied", func(t *testing.T) {
		input := domain.CalculationInput{
			SumInsured:       decimal.NewFromInt(50_000),
			TerritorialScope: domain.ScopePoland,
			YearsInBusiness:  6,
			FleetSize:        10,
		}

		result, err := calc.Calculate(input)
		if err != nil {
			t.Fatalf("Calculate failed: %v", err)
		}

		if !result.FloorApplied {
			t.Error("expected floor to apply for tiny sum insured")
		}
		if !result.Breakdown.Total.Equal(result.MinimumPremium) {
			t.Errorf("expected total %s to equal minimum, got %s", result.MinimumPremium, result.Breakdown.Total)
		}
	})

	t.Run("FloorNotApplied", func(t *testing.T) {
		input := domain.CalculationInput{
			SumInsured:       decimal.NewFromInt(1_000_000),
			TerritorialScope: domain.ScopePoland,
			YearsInBusiness:  6,
			FleetSize:        10,
		}

		result, err := calc.Calculate(input)
		if err != nil {
			t.Fatalf("Calculate failed: %v", err)
		}

		if result.FloorApplied {
			t.Error("floor should not apply")
		}
		if !result.Breakdown.Total.GreaterThan(result.MinimumPremium) {
			t.Errorf("expected total above the minimum, got %s", result.Breakdown.Total)
		}
	})
}

func TestCalculateValidation(t *testing.T) {
	calc := newCalculator()

	valid := domain.CalculationInput{
		SumInsured:       decimal.NewFromInt(500_000),
		TerritorialScope: domain.ScopePoland,
		YearsInBusiness:  5,
		FleetSize:        5,
	}

	tests := []struct {
		name   string
		mutate func(in *domain.CalculationInput)
	}{
		{"ZeroSumInsured", func(in *domain.CalculationInput) { in.SumInsured = decimal.Zero }},
		{"NegativeSumInsured", func(in *domain.CalculationInput) { in.SumInsured = decimal.NewFromInt(-1) }},
		{"UnknownScope", func(in *domain.CalculationInput) { in.TerritorialScope = "MARS" }},
		{"NegativeYears", func(in *domain.CalculationInput) { in.YearsInBusiness = -1 }},
		{"ZeroFleet", func(in *domain.CalculationInput) { in.FleetSize = 0 }},
		{"NegativeClaims", func(in *domain.CalculationInput) { in.APK.ClaimsLastThreeYears = -1 }},
		{"UnknownClause", func(in *domain.CalculationInput) {
			in.SelectedClauses = []domain.ClauseType{"THEFT"}
		}},
		{"OverrideAboveHundred", func(in *domain.CalculationInput) {
			in.SelectedClauses = []domain.ClauseType{domain.ClauseParking}
			in.SublimitOverrides = map[domain.ClauseType]decimal.Decimal{
				domain.ClauseParking: decimal.NewFromInt(150),
			}
		}},
		{"OverrideZero", func(in *domain.CalculationInput) {
			in.SelectedClauses = []domain.ClauseType{domain.ClauseParking}
			in.SublimitOverrides = map[domain.ClauseType]decimal.Decimal{
				domain.ClauseParking: decimal.Zero,
			}
		}},
		{"OverrideForUnselectedClause", func(in *domain.CalculationInput) {
			in.SelectedClauses = []domain.ClauseType{domain.ClauseParking}
			in.SublimitOverrides = map[domain.ClauseType]decimal.Decimal{
				domain.ClauseDocuments: decimal.NewFromInt(5),
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := valid
			tt.mutate(&input)

			_, err := calc.Calculate(input)
			if !errors.Is(err, domain.ErrInvalidInput) && !errors.Is(err, domain.ErrUnknownClauseType) {
				t.Errorf("expected validation error, got: %v", err)
			}
		})
	}
}

func TestSublimitOverridePricing(t *testing.T) {
	calc := newCalculator()

	input := domain.CalculationInput{
		SumInsured:       decimal.NewFromInt(1_000_000),
		TerritorialScope: domain.ScopePoland,
		SelectedClauses:  []domain.ClauseType{domain.ClauseParking},
		SublimitOverrides: map[domain.ClauseType]decimal.Decimal{
			domain.ClauseParking: decimal.NewFromInt(15),
		},
		YearsInBusiness: 6,
		FleetSize:       10,
	}

	result, err := calc.Calculate(input)
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}

	line := result.Breakdown.Clauses[0]
	if !line.SublimitPct.Equal(decimal.NewFromInt(15)) {
		t.Errorf("expected sublimit 15, got %s", line.SublimitPct)
	}
	// 8% of 1500 is 120; halving the sublimit halves it to 60.
	if !line.Premium.Equal(decimal.NewFromInt(60)) {
		t.Errorf("expected clause premium 60, got %s", line.Premium)
	}
}
