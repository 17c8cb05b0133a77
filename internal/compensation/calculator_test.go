package compensation

import (
	"strings"
	"testing"

	"github.com/agriguard/agriguard/internal/domain"
)

func TestCalculate(t *testing.T) {
	t.Run("StandardWheatClaim", func(t *testing.T) {
		claim := &domain.Claim{
			CropType:        domain.CropWheat,
			LandSize:        10,
			CoveragePercent: 70,
			Region:          "North District",
		}
		result := &domain.AIResult{DamageScore: 80, FraudRisk: 10}

		b := Calculate(claim, result)

		if b.BaseAmount != 200000 {
			t.Errorf("expected base 200000, got %v", b.BaseAmount)
		}
		if b.DamageAdjusted != 160000 {
			t.Errorf("expected damage adjusted 160000, got %v", b.DamageAdjusted)
		}
		if b.CoverageAdjusted != 112000 {
			t.Errorf("expected coverage adjusted 112000, got %v", b.CoverageAdjusted)
		}
		if b.FinalAmount != 112000 {
			t.Errorf("expected final 112000, got %v", b.FinalAmount)
		}
		if len(b.Adjustments) != 0 {
			t.Errorf("expected no adjustments, got %+v", b.Adjustments)
		}
		if b.IsHighRiskZone {
			t.Error("North District is not a high risk zone")
		}
	})

	t.Run("HighRiskZoneWithFraudPenalty", func(t *testing.T) {
		claim := &domain.Claim{
			CropType:        domain.CropWheat,
			LandSize:        10,
			CoveragePercent: 70,
			Region:          "Coastal Region",
		}
		result := &domain.AIResult{DamageScore: 80, FraudRisk: 70}

		b := Calculate(claim, result)

		if !b.IsHighRiskZone {
			t.Error("Coastal Region should be high risk")
		}
		if len(b.Adjustments) != 2 {
			t.Fatalf("expected 2 adjustments, got %d", len(b.Adjustments))
		}

		// Relief bonus applies first: 112000 * 0.15 = 16800.
		bonus := b.Adjustments[0]
		if bonus.Type != domain.AdjustmentReliefBonus || bonus.Amount != 16800 {
			t.Errorf("unexpected relief bonus: %+v", bonus)
		}

		// Penalty applies to the post-bonus total: 128800 * 0.10 = 12880.
		penalty := b.Adjustments[1]
		if penalty.Type != domain.AdjustmentFraudPenalty || penalty.Amount != -12880 {
			t.Errorf("unexpected fraud penalty: %+v", penalty)
		}

		if b.FinalAmount != 115920 {
			t.Errorf("expected final 115920, got %v", b.FinalAmount)
		}
	})

	t.Run("FraudThresholdIsExclusive", func(t *testing.T) {
		claim := &domain.Claim{
			CropType:        domain.CropRice,
			LandSize:        5,
			CoveragePercent: 100,
			Region:          "Plain Region",
		}
		result := &domain.AIResult{DamageScore: 50, FraudRisk: 60}

		b := Calculate(claim, result)
		if len(b.Adjustments) != 0 {
			t.Errorf("fraud risk of exactly 60 must not trigger the penalty: %+v", b.Adjustments)
		}
	})

	t.Run("UnknownCropUsesDefaultRate", func(t *testing.T) {
		claim := &domain.Claim{
			CropType:        "barley",
			LandSize:        2,
			CoveragePercent: 100,
			Region:          "Plain Region",
		}
		result := &domain.AIResult{DamageScore: 100, FraudRisk: 0}

		b := Calculate(claim, result)
		if b.BaseRate != 20000 {
			t.Errorf("expected default rate 20000, got %v", b.BaseRate)
		}
		if b.FinalAmount != 40000 {
			t.Errorf("expected final 40000, got %v", b.FinalAmount)
		}
	})

	t.Run("FractionalResultsRounded", func(t *testing.T) {
		claim := &domain.Claim{
			CropType:        domain.CropCorn,
			LandSize:        3.3,
			CoveragePercent: 65,
			Region:          "West District",
		}
		result := &domain.AIResult{DamageScore: 47.5, FraudRisk: 0}

		b := Calculate(claim, result)
		if b.FinalAmount != float64(int64(b.FinalAmount)) {
			t.Errorf("final amount %v is not a whole rupee value", b.FinalAmount)
		}
	})
}

func TestBaseRates(t *testing.T) {
	tests := []struct {
		crop string
		want float64
	}{
		{domain.CropWheat, 20000},
		{domain.CropRice, 25000},
		{domain.CropCotton, 30000},
		{domain.CropCorn, 18000},
		{domain.CropSoybean, 22000},
		{domain.CropSugarcane, 28000},
		{"Wheat", 20000}, // case-insensitive
		{"unknown", 20000},
	}

	for _, tt := range tests {
		if got := BaseRate(tt.crop); got != tt.want {
			t.Errorf("BaseRate(%q) = %v, want %v", tt.crop, got, tt.want)
		}
	}
}

func TestFormatSummary(t *testing.T) {
	claim := &domain.Claim{
		CropType:        domain.CropWheat,
		LandSize:        10,
		CoveragePercent: 70,
		Region:          "Coastal Region",
	}
	result := &domain.AIResult{DamageScore: 80, FraudRisk: 70}

	summary := FormatSummary(Calculate(claim, result))

	for _, want := range []string{
		"Base Amount: ₹2,00,000",
		"Damage Adjusted: ₹1,60,000",
		"Coverage Applied: ₹1,12,000",
		"High Risk Zone Relief (15%): +₹16,800",
		"Fraud Risk Penalty (10%)",
		"Final Amount: ₹1,15,920",
	} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary missing %q:\n%s", want, summary)
		}
	}
}
