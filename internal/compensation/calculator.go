// Package compensation derives the payable amount for an approved claim.
package compensation

import (
	"fmt"
	"math"
	"strings"

	"github.com/agriguard/agriguard/internal/currency"
	"github.com/agriguard/agriguard/internal/domain"
)

// Per-acre base rates in rupees.
var baseRates = map[string]float64{
	domain.CropWheat:     20000,
	domain.CropRice:      25000,
	domain.CropCotton:    30000,
	domain.CropCorn:      18000,
	domain.CropSoybean:   22000,
	domain.CropSugarcane: 28000,
}

const (
	defaultBaseRate = 20000

	reliefBonusRate = 0.15

	fraudPenaltyThreshold = 60
	fraudPenaltyRate      = 0.10
)

// BaseRate returns the per-acre rate for a crop, falling back to the
// default for unknown crops.
func BaseRate(cropType string) float64 {
	if rate, ok := baseRates[strings.ToLower(cropType)]; ok {
		return rate
	}
	return defaultBaseRate
}

// Calculate derives the compensation breakdown for a scored claim. The
// derivation is ordered: base amount, damage scaling, coverage scaling,
// then the relief bonus before the fraud penalty so the penalty applies to
// the post-bonus total.
func Calculate(claim *domain.Claim, result *domain.AIResult) *domain.CompensationBreakdown {
	baseRate := BaseRate(claim.CropType)
	baseAmount := claim.LandSize * baseRate

	damageAdjusted := baseAmount * (result.DamageScore / 100)
	coverageAdjusted := damageAdjusted * (claim.CoveragePercent / 100)

	finalAmount := coverageAdjusted
	var adjustments []domain.Adjustment

	isHighRisk := domain.IsHighRiskZone(claim.Region)
	if isHighRisk {
		reliefBonus := coverageAdjusted * reliefBonusRate
		finalAmount += reliefBonus
		adjustments = append(adjustments, domain.Adjustment{
			Type:        domain.AdjustmentReliefBonus,
			Description: "High Risk Zone Relief (15%)",
			Amount:      reliefBonus,
		})
	}

	if result.FraudRisk > fraudPenaltyThreshold {
		fraudPenalty := finalAmount * fraudPenaltyRate
		finalAmount -= fraudPenalty
		adjustments = append(adjustments, domain.Adjustment{
			Type:        domain.AdjustmentFraudPenalty,
			Description: "Fraud Risk Penalty (10%)",
			Amount:      -fraudPenalty,
		})
	}

	return &domain.CompensationBreakdown{
		BaseAmount:       math.Round(baseAmount),
		BaseRate:         baseRate,
		LandSize:         claim.LandSize,
		CropType:         claim.CropType,
		DamageScore:      result.DamageScore,
		DamageAdjusted:   math.Round(damageAdjusted),
		CoveragePercent:  claim.CoveragePercent,
		CoverageAdjusted: math.Round(coverageAdjusted),
		Adjustments:      adjustments,
		FinalAmount:      math.Round(finalAmount),
		IsHighRiskZone:   isHighRisk,
		FraudRisk:        result.FraudRisk,
	}
}

// FormatSummary renders a human-readable derivation of the breakdown.
func FormatSummary(b *domain.CompensationBreakdown) string {
	lines := []string{
		fmt.Sprintf("Base Amount: %s", currency.Format(b.BaseAmount)),
		fmt.Sprintf("  (%v acres × %s/acre)", b.LandSize, currency.Format(b.BaseRate)),
		"",
		fmt.Sprintf("Damage Adjusted: %s", currency.Format(b.DamageAdjusted)),
		fmt.Sprintf("  (%v%% damage)", b.DamageScore),
		"",
		fmt.Sprintf("Coverage Applied: %s", currency.Format(b.CoverageAdjusted)),
		fmt.Sprintf("  (%v%% coverage)", b.CoveragePercent),
		"",
	}

	if len(b.Adjustments) > 0 {
		for _, adj := range b.Adjustments {
			sign := ""
			if adj.Amount >= 0 {
				sign = "+"
			}
			lines = append(lines, fmt.Sprintf("%s: %s%s", adj.Description, sign, currency.Format(adj.Amount)))
		}
		lines = append(lines, "")
	}

	lines = append(lines, fmt.Sprintf("Final Amount: %s", currency.Format(b.FinalAmount)))

	return strings.Join(lines, "\n")
}
