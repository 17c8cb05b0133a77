package domain

import (
	"time"
)

// Decision is the outcome of scoring a claim.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionReview   Decision = "review"
	DecisionRejected Decision = "rejected"
)

// ScoreWeights are the relative weights of the five scoring signals.
// They must sum to exactly 1.00.
type ScoreWeights struct {
	Damage       float64 `json:"damage"`
	Weather      float64 `json:"weather"`
	Soil         float64 `json:"soil"`
	Trust        float64 `json:"trust"`
	FraudInverse float64 `json:"fraudInverse"`
}

// DefaultWeights returns the production weight configuration.
func DefaultWeights() ScoreWeights {
	return ScoreWeights{
		Damage:       0.35,
		Weather:      0.25,
		Soil:         0.15,
		Trust:        0.15,
		FraudInverse: 0.10,
	}
}

// Sum returns the total of all weights.
func (w ScoreWeights) Sum() float64 {
	return w.Damage + w.Weather + w.Soil + w.Trust + w.FraudInverse
}

// DecisionThresholds map a final score to a decision.
// approved >= Approved > Review <= score < Approved maps to review.
type DecisionThresholds struct {
	Approved float64 `json:"approved"`
	Review   float64 `json:"review"`
}

// DefaultThresholds returns the production decision thresholds.
func DefaultThresholds() DecisionThresholds {
	return DecisionThresholds{Approved: 75, Review: 50}
}

// ClaimStatus maps a decision to the claim status it implies.
func (d Decision) ClaimStatus() ClaimStatus {
	switch d {
	case DecisionApproved:
		return ClaimApproved
	case DecisionReview:
		return ClaimReview
	default:
		return ClaimRejected
	}
}

// Decide maps a final score to a decision.
func (t DecisionThresholds) Decide(score float64) Decision {
	switch {
	case score >= t.Approved:
		return DecisionApproved
	case score >= t.Review:
		return DecisionReview
	default:
		return DecisionRejected
	}
}

// AIResult is the complete scoring outcome for a claim. The weights and
// thresholds in effect at computation time are recorded for auditability.
type AIResult struct {
	DamageScore   float64 `json:"damageScore"`
	WeatherMatch  float64 `json:"weatherMatch"`
	SoilFactor    float64 `json:"soilFactor"`
	TrustModifier float64 `json:"trustModifier"`
	FraudRisk     float64 `json:"fraudRisk"`
	FinalScore    float64 `json:"finalScore"`

	Decision Decision `json:"decision"`

	// Weather is the snapshot used for the weather-match signal.
	Weather *WeatherSnapshot `json:"weatherData,omitempty"`

	// Indicators lists custom fraud indicators that triggered, if any.
	Indicators []IndicatorResult `json:"indicators,omitempty"`

	Weights     ScoreWeights       `json:"weights"`
	Thresholds  DecisionThresholds `json:"thresholds"`
	EvaluatedAt time.Time          `json:"evaluatedAt"`
}
