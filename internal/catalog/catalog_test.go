package catalog

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/brokerops/ocpd-engine/internal/domain"
)

func TestCatalogLookup(t *testing.T) {
	cat := New()

	t.Run("AllClausesDefined", func(t *testing.T) {
		for _, clauseType := range domain.AllClauseTypes {
			def, err := cat.Lookup(clauseType)
			if err != nil {
				t.Fatalf("Lookup(%s) failed: %v", clauseType, err)
			}
			if def.Type != clauseType {
				t.Errorf("expected type %s, got %s", clauseType, def.Type)
			}
			if def.Name == "" || def.NamePL == "" {
				t.Errorf("clause %s is missing a display name", clauseType)
			}
			if !def.BasePremiumRate.IsPositive() {
				t.Errorf("clause %s has non-positive premium rate", clauseType)
			}
		}
	})

	t.Run("UnknownClause", func(t *testing.T) {
		_, err := cat.Lookup(domain.ClauseType("THEFT"))
		if !errors.Is(err, domain.ErrUnknownClauseType) {
			t.Errorf("expected ErrUnknownClauseType, got: %v", err)
		}
	})

	t.Run("DefinitionsCanonicalOrder", func(t *testing.T) {
		defs := cat.Definitions()
		if len(defs) != len(domain.AllClauseTypes) {
			t.Fatalf("expected %d definitions, got %d", len(domain.AllClauseTypes), len(defs))
		}
		for i, def := range defs {
			if def.Type != domain.AllClauseTypes[i] {
				t.Errorf("position %d: expected %s, got %s", i, domain.AllClauseTypes[i], def.Type)
			}
		}
	})

	t.Run("RiskCategories", func(t *testing.T) {
		adr, _ := cat.Lookup(domain.ClauseADR)
		if adr.RiskCategory != domain.RiskHigh {
			t.Errorf("expected ADR to be HIGH risk, got %s", adr.RiskCategory)
		}

		parking, _ := cat.Lookup(domain.ClauseParking)
		if parking.RiskCategory != domain.RiskStandard {
			t.Errorf("expected PARKING to be STANDARD risk, got %s", parking.RiskCategory)
		}

		negligence, _ := cat.Lookup(domain.ClauseGrossNegligence)
		if negligence.RiskCategory != domain.RiskElevated {
			t.Errorf("expected GROSS_NEGLIGENCE to be ELEVATED risk, got %s", negligence.RiskCategory)
		}
	})
}

func TestClausePremium(t *testing.T) {
	cat := New()
	basePremium := decimal.NewFromInt(1000)

	t.Run("DefaultSublimit", func(t *testing.T) {
		// GROSS_NEGLIGENCE is 15% of the base premium
		premium, err := cat.ClausePremium(domain.ClauseGrossNegligence, basePremium, nil)
		if err != nil {
			t.Fatalf("ClausePremium failed: %v", err)
		}
		if !premium.Equal(decimal.NewFromInt(150)) {
			t.Errorf("expected 150, got %s", premium)
		}
	})

	t.Run("CustomSublimitScalesLinearly", func(t *testing.T) {
		// PARKING defaults to a 30% sublimit at 8% of base premium.
		// Halving the sublimit to 15% halves the clause premium.
		half := decimal.NewFromInt(15)
		premium, err := cat.ClausePremium(domain.ClauseParking, basePremium, &half)
		if err != nil {
			t.Fatalf("ClausePremium failed: %v", err)
		}
		if !premium.Equal(decimal.NewFromInt(40)) {
			t.Errorf("expected 40, got %s", premium)
		}
	})

	t.Run("UnknownClause", func(t *testing.T) {
		_, err := cat.ClausePremium(domain.ClauseType("THEFT"), basePremium, nil)
		if !errors.Is(err, domain.ErrUnknownClauseType) {
			t.Errorf("expected ErrUnknownClauseType, got: %v", err)
		}
	})
}

func TestInstantiate(t *testing.T) {
	cat := New()
	sumInsured := decimal.NewFromInt(500000)
	basePremium := decimal.NewFromInt(1000)

	t.Run("Defaults", func(t *testing.T) {
		clause, err := cat.Instantiate(domain.ClauseParking, sumInsured, basePremium, nil)
		if err != nil {
			t.Fatalf("Instantiate failed: %v", err)
		}

		if clause.ID == "" {
			t.Error("expected generated clause ID")
		}
		if !clause.IsActive {
			t.Error("expected instantiated clause to be active")
		}
		if !clause.SublimitPct.Equal(decimal.NewFromInt(30)) {
			t.Errorf("expected sublimit 30%%, got %s", clause.SublimitPct)
		}
		// 30% of 500,000
		if !clause.SublimitAmount.Equal(decimal.NewFromInt(150000)) {
			t.Errorf("expected sublimit amount 150000, got %s", clause.SublimitAmount)
		}
		if !clause.Premium.Equal(decimal.NewFromInt(80)) {
			t.Errorf("expected premium 80, got %s", clause.Premium)
		}
	})

	t.Run("Override", func(t *testing.T) {
		override := decimal.NewFromInt(10)
		clause, err := cat.Instantiate(domain.ClauseDocuments, sumInsured, basePremium, &override)
		if err != nil {
			t.Fatalf("Instantiate failed: %v", err)
		}
		if !clause.SublimitPct.Equal(override) {
			t.Errorf("expected sublimit 10%%, got %s", clause.SublimitPct)
		}
		if !clause.SublimitAmount.Equal(decimal.NewFromInt(50000)) {
			t.Errorf("expected sublimit amount 50000, got %s", clause.SublimitAmount)
		}
	})
}

func TestVariantMatch(t *testing.T) {
	variants := NewVariants()

	tests := []struct {
		name     string
		selected []domain.ClauseType
		want     domain.CoverageVariant
	}{
		{
			name:     "Basic",
			selected: []domain.ClauseType{domain.ClauseGrossNegligence, domain.ClauseParking},
			want:     domain.VariantBasic,
		},
		{
			name:     "BasicPermuted",
			selected: []domain.ClauseType{domain.ClauseParking, domain.ClauseGrossNegligence},
			want:     domain.VariantBasic,
		},
		{
			name: "Standard",
			selected: []domain.ClauseType{
				domain.ClauseSubcontractors, domain.ClauseGrossNegligence, domain.ClauseParking,
			},
			want: domain.VariantStandard,
		},
		{
			name:     "Premium",
			selected: domain.AllClauseTypes,
			want:     domain.VariantPremium,
		},
		{
			name:     "EmptyIsCustom",
			selected: nil,
			want:     domain.VariantCustom,
		},
		{
			name: "SupersetOfBasicIsCustom",
			selected: []domain.ClauseType{
				domain.ClauseGrossNegligence, domain.ClauseParking, domain.ClauseADR,
			},
			want: domain.VariantCustom,
		},
		{
			name:     "SingleClauseIsCustom",
			selected: []domain.ClauseType{domain.ClauseRefrigerated},
			want:     domain.VariantCustom,
		},
		{
			name: "DuplicatesCollapse",
			selected: []domain.ClauseType{
				domain.ClauseParking, domain.ClauseGrossNegligence, domain.ClauseParking,
			},
			want: domain.VariantBasic,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := variants.Match(tt.selected)
			if got != tt.want {
				t.Errorf("Match(%v) = %s, want %s", tt.selected, got, tt.want)
			}
		})
	}
}

func TestBundleSavings(t *testing.T) {
	variants := NewVariants()
	subtotal := decimal.NewFromInt(1000)

	t.Run("BasicDiscount", func(t *testing.T) {
		savings := variants.BundleSavings(subtotal, domain.VariantBasic)
		if !savings.Equal(decimal.NewFromInt(50)) {
			t.Errorf("expected 50, got %s", savings)
		}
	})

	t.Run("PremiumDiscount", func(t *testing.T) {
		savings := variants.BundleSavings(subtotal, domain.VariantPremium)
		if !savings.Equal(decimal.NewFromInt(150)) {
			t.Errorf("expected 150, got %s", savings)
		}
	})

	t.Run("CustomHasNoDiscount", func(t *testing.T) {
		savings := variants.BundleSavings(subtotal, domain.VariantCustom)
		if !savings.IsZero() {
			t.Errorf("expected 0, got %s", savings)
		}
	})

	t.Run("RoundsToWholeUnit", func(t *testing.T) {
		odd := decimal.NewFromFloat(1234.56)
		savings := variants.BundleSavings(odd, domain.VariantBasic)
		// 5% of 1234.56 is 61.728, rounded to 62
		if !savings.Equal(decimal.NewFromInt(62)) {
			t.Errorf("expected 62, got %s", savings)
		}
	})
}
