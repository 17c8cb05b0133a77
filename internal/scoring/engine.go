// Package scoring computes the five claim risk/damage signals and combines
// them into a final score and decision.
package scoring

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/agriguard/agriguard/internal/domain"
	"github.com/agriguard/agriguard/internal/rules"
)

// Noise supplies the stochastic inputs of the damage estimator and the
// weather fallback. Production uses a seeded PRNG; tests supply a fixed
// source so scoring is reproducible.
type Noise interface {
	// Float64 returns a value in [0,1).
	Float64() float64
}

type randNoise struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (n *randNoise) Float64() float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.r.Float64()
}

// Engine computes claim scores. All sub-scores are pure functions over the
// claim, a weather snapshot and the farmer's history; the only variability
// comes from the injected noise source and clock.
type Engine struct {
	weather    domain.WeatherProvider
	indicators *rules.Engine

	noise      Noise
	now        func() time.Time
	weights    domain.ScoreWeights
	thresholds domain.DecisionThresholds
}

// Option configures an Engine.
type Option func(*Engine)

// WithNoise overrides the stochastic source.
func WithNoise(n Noise) Option {
	return func(e *Engine) { e.noise = n }
}

// WithClock overrides the time source used for recency computations.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a scoring engine. weather supplies the snapshot for the
// weather-match signal and may be nil (the randomized fallback baseline is
// used). indicators supplies custom fraud indicators and may be nil.
func NewEngine(weather domain.WeatherProvider, indicators *rules.Engine, opts ...Option) *Engine {
	e := &Engine{
		weather:    weather,
		indicators: indicators,
		noise:      &randNoise{r: rand.New(rand.NewSource(time.Now().UnixNano()))},
		now:        time.Now,
		weights:    domain.DefaultWeights(),
		thresholds: domain.DefaultThresholds(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DamageScore estimates the percentage of crop loss from the claim's
// declared facts and a bounded stochastic base estimate standing in for an
// image-analysis model. Result is in [10,100] at one decimal.
func (e *Engine) DamageScore(claim *domain.Claim) float64 {
	baseDamage := 30 + e.noise.Float64()*35

	landSizeFactor := math.Min(claim.LandSize/10, 1) * 15
	imageFactor := math.Min(float64(claim.ImageCount)/3, 1) * 20

	vulnerabilityFactor := 0.5
	if vulns, ok := cropVulnerability[claim.CropType]; ok {
		sum := 0.0
		for _, key := range hazardKeys {
			sum += vulns[key]
		}
		vulnerabilityFactor = sum / float64(len(hazardKeys))
	}

	score := baseDamage*0.4 + landSizeFactor*0.3 + imageFactor*0.2 + vulnerabilityFactor*10

	if len(claim.Description) > 50 {
		score += 5
	}

	return round1(clamp(score, 10, 100))
}

// WeatherMatch scores how well the reported weather severity aligns with
// the seasonal expectation for the claim's month. A nil snapshot falls back
// to a randomized baseline. Result is in [20,100] at one decimal.
func (e *Engine) WeatherMatch(claim *domain.Claim, snapshot *domain.WeatherSnapshot) float64 {
	seasonal := seasonTable[claim.DamageDate.Month()-1]

	var matchScore float64
	if snapshot != nil {
		severity := snapshot.Severity
		if severity == 0 {
			severity = 0.5 // unreported severity
		}
		matchScore = (1 - math.Abs(severity-seasonal.Severity)) * 100
	} else {
		matchScore = 60 + e.noise.Float64()*20
	}

	if vulns, ok := cropVulnerability[claim.CropType]; ok {
		hazard := seasonHazards[seasonal.Name]
		if v, ok := vulns[hazard]; ok {
			matchScore = math.Min(100, matchScore+v*20)
		}
	}

	return round1(clamp(matchScore, 20, 100))
}

// SoilFactor is the inverse of the regional soil risk, or 70 for regions
// without a soil mapping.
func (e *Engine) SoilFactor(region string) float64 {
	soilType, ok := regionSoil[region]
	if !ok {
		return 70
	}
	return (1 - soilRisks[soilType]) * 100
}

// TrustModifier derives a reliability score from the farmer's claim
// history. No history yields the neutral default of 50.
func (e *Engine) TrustModifier(history []*domain.Claim) float64 {
	if len(history) == 0 {
		return 50
	}

	approved := 0
	rejected := 0
	for _, c := range history {
		switch c.Status {
		case domain.ClaimApproved:
			approved++
		case domain.ClaimRejected:
			rejected++
		}
	}

	total := float64(len(history))
	trustScore := float64(approved) / total * 100

	if rejected > 0 {
		trustScore -= float64(rejected) / total * 30
	}

	if e.countRecent(history, 3) > 2 {
		trustScore -= 10
	}

	return round1(clamp(trustScore, 0, 100))
}

// FraudRisk computes the additive fraud heuristic plus any triggered custom
// indicators. Returns the clamped score and the triggered indicators.
func (e *Engine) FraudRisk(claim *domain.Claim, history []*domain.Claim) (float64, []domain.IndicatorResult) {
	riskScore := 0.0

	if len(history) > 0 {
		recent := e.recentClaims(history, 6)

		if len(recent) > 3 {
			riskScore += 25
		}

		sameCrop := 0
		for _, c := range recent {
			if c.CropType == claim.CropType {
				sameCrop++
			}
		}
		if sameCrop > 2 {
			riskScore += 20
		}
	}

	if claim.LandSize > 50 {
		riskScore += 15
	}

	if claim.ImageCount < 2 {
		riskScore += 10
	} else if claim.ImageCount > 10 {
		riskScore += 5
	}

	daysSinceDamage := e.now().Sub(claim.DamageDate).Hours() / 24
	if daysSinceDamage > 30 {
		riskScore += 10
	}

	if len(claim.BankAccount) >= 4 {
		prefix := claim.BankAccount[:4]
		if prefix == "0000" || prefix == "1111" {
			riskScore += 15
		}
	}

	var triggered []domain.IndicatorResult
	if e.indicators != nil && e.indicators.IndicatorCount() > 0 {
		facts := rules.FactsFromClaim(claim, history, e.now())
		triggered = e.indicators.Evaluate(facts)
		for _, ind := range triggered {
			riskScore += ind.Points
		}
	}

	return round1(clamp(riskScore, 0, 100)), triggered
}

// CalculateFinalScore computes all five sub-scores and combines them into
// the weighted final score and decision. The weather snapshot is drawn from
// the provider's uncached instant path; it is not correlated with the
// session snapshot served elsewhere.
func (e *Engine) CalculateFinalScore(claim *domain.Claim, history []*domain.Claim) *domain.AIResult {
	var snapshot *domain.WeatherSnapshot
	if e.weather != nil {
		snapshot = e.weather.Instant(claim.Region)
	}

	damageScore := e.DamageScore(claim)
	weatherMatch := e.WeatherMatch(claim, snapshot)
	soilFactor := e.SoilFactor(claim.Region)
	trustModifier := e.TrustModifier(history)
	fraudRisk, triggered := e.FraudRisk(claim, history)

	fraudInverse := 100 - fraudRisk

	finalScore := round1(
		e.weights.Damage*damageScore +
			e.weights.Weather*weatherMatch +
			e.weights.Soil*soilFactor +
			e.weights.Trust*trustModifier +
			e.weights.FraudInverse*fraudInverse,
	)

	return &domain.AIResult{
		DamageScore:   damageScore,
		WeatherMatch:  weatherMatch,
		SoilFactor:    soilFactor,
		TrustModifier: trustModifier,
		FraudRisk:     fraudRisk,
		FinalScore:    finalScore,
		Decision:      e.thresholds.Decide(finalScore),
		Weather:       snapshot,
		Indicators:    triggered,
		Weights:       e.weights,
		Thresholds:    e.thresholds,
		EvaluatedAt:   e.now().UTC(),
	}
}

// Weights returns the weight configuration in effect.
func (e *Engine) Weights() domain.ScoreWeights {
	return e.weights
}

// Thresholds returns the decision thresholds in effect.
func (e *Engine) Thresholds() domain.DecisionThresholds {
	return e.thresholds
}

// recentClaims returns claims from the trailing number of months.
func (e *Engine) recentClaims(history []*domain.Claim, months float64) []*domain.Claim {
	now := e.now()
	var recent []*domain.Claim
	for _, c := range history {
		monthsDiff := now.Sub(c.DamageDate).Hours() / 24 / 30
		if monthsDiff < months {
			recent = append(recent, c)
		}
	}
	return recent
}

func (e *Engine) countRecent(history []*domain.Claim, months float64) int {
	return len(e.recentClaims(history, months))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// round1 rounds to one decimal place.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
