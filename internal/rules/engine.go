// Package rules provides the CEL-Go based fraud indicator engine.
//
// Indicators are operator-configured boolean expressions over claim facts.
// Each triggered indicator contributes its configured points to the fraud
// risk score on top of the built-in heuristics.
package rules

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/agriguard/agriguard/internal/domain"
)

// Engine compiles and evaluates fraud indicator expressions.
type Engine struct {
	mu       sync.RWMutex
	env      *cel.Env
	compiled map[string]*CompiledIndicator
}

// CompiledIndicator holds a pre-compiled CEL program.
type CompiledIndicator struct {
	Config  *domain.FraudIndicator
	Program cel.Program
}

// NewEngine creates a new fraud indicator engine.
func NewEngine() (*Engine, error) {
	// Claim facts available to indicator expressions
	env, err := cel.NewEnv(
		cel.Variable("land_size", cel.DoubleType),
		cel.Variable("image_count", cel.IntType),
		cel.Variable("coverage_percent", cel.DoubleType),
		cel.Variable("crop_type", cel.StringType),
		cel.Variable("region", cel.StringType),
		cel.Variable("description_length", cel.IntType),
		cel.Variable("bank_account", cel.StringType),
		cel.Variable("claim_age_days", cel.DoubleType),
		cel.Variable("history_count", cel.IntType),
		cel.Variable("recent_claim_count", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:      env,
		compiled: make(map[string]*CompiledIndicator),
	}, nil
}

// ValidateIndicator compiles an indicator without loading it.
func (e *Engine) ValidateIndicator(cfg *domain.FraudIndicator) error {
	if cfg == nil {
		return fmt.Errorf("indicator config is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileIndicator(cfg)
	return err
}

// LoadIndicator compiles and loads an indicator into the engine.
func (e *Engine) LoadIndicator(cfg *domain.FraudIndicator) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileIndicator(cfg)
	if err != nil {
		return err
	}

	e.compiled[cfg.ID] = compiled

	return nil
}

// LoadIndicators compiles and loads multiple indicators.
func (e *Engine) LoadIndicators(configs []*domain.FraudIndicator) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := e.LoadIndicator(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReloadIndicators clears all existing indicators and loads new ones.
// This enables hot-reloading from the database.
func (e *Engine) ReloadIndicators(configs []*domain.FraudIndicator) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	fresh := make(map[string]*CompiledIndicator)

	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}

		compiled, err := e.compileIndicator(cfg)
		if err != nil {
			return err
		}
		fresh[cfg.ID] = compiled
	}

	e.compiled = fresh

	return nil
}

// Facts are the claim attributes indicator expressions can reference.
type Facts struct {
	LandSize          float64
	ImageCount        int
	CoveragePercent   float64
	CropType          string
	Region            string
	DescriptionLength int
	BankAccount       string
	ClaimAgeDays      float64
	HistoryCount      int
	RecentClaimCount  int // claims filed in the trailing 6 months
}

// FactsFromClaim derives indicator facts from a claim and its history.
func FactsFromClaim(claim *domain.Claim, history []*domain.Claim, now time.Time) Facts {
	recent := 0
	for _, c := range history {
		if now.Sub(c.DamageDate).Hours()/24/30 < 6 {
			recent++
		}
	}

	return Facts{
		LandSize:          claim.LandSize,
		ImageCount:        claim.ImageCount,
		CoveragePercent:   claim.CoveragePercent,
		CropType:          claim.CropType,
		Region:            claim.Region,
		DescriptionLength: len(claim.Description),
		BankAccount:       claim.BankAccount,
		ClaimAgeDays:      now.Sub(claim.DamageDate).Hours() / 24,
		HistoryCount:      len(history),
		RecentClaimCount:  recent,
	}
}

// Evaluate runs all loaded indicators against the facts and returns the
// triggered ones. Indicators that fail to evaluate are skipped.
func (e *Engine) Evaluate(facts Facts) []domain.IndicatorResult {
	e.mu.RLock()
	indicators := make([]*CompiledIndicator, 0, len(e.compiled))
	for _, ind := range e.compiled {
		indicators = append(indicators, ind)
	}
	e.mu.RUnlock()

	if len(indicators) == 0 {
		return nil
	}

	activation := map[string]any{
		"land_size":          facts.LandSize,
		"image_count":        facts.ImageCount,
		"coverage_percent":   facts.CoveragePercent,
		"crop_type":          facts.CropType,
		"region":             facts.Region,
		"description_length": facts.DescriptionLength,
		"bank_account":       facts.BankAccount,
		"claim_age_days":     facts.ClaimAgeDays,
		"history_count":      facts.HistoryCount,
		"recent_claim_count": facts.RecentClaimCount,
	}

	var triggered []domain.IndicatorResult
	for _, ind := range indicators {
		out, _, err := ind.Program.Eval(activation)
		if err != nil {
			slog.Warn("indicator evaluation failed",
				"indicator_id", ind.Config.ID,
				"error", err,
			)
			continue
		}

		if b, ok := out.(types.Bool); ok && bool(b) {
			triggered = append(triggered, domain.IndicatorResult{
				IndicatorID: ind.Config.ID,
				Name:        ind.Config.Name,
				Points:      ind.Config.Points,
			})
		}
	}

	return triggered
}

// IndicatorCount returns the number of loaded indicators.
func (e *Engine) IndicatorCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiled)
}

// GetLoadedIndicators returns the currently loaded indicator configurations.
func (e *Engine) GetLoadedIndicators() []*domain.FraudIndicator {
	e.mu.RLock()
	defer e.mu.RUnlock()

	indicators := make([]*domain.FraudIndicator, 0, len(e.compiled))
	for _, compiled := range e.compiled {
		indicators = append(indicators, compiled.Config)
	}
	return indicators
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiled = make(map[string]*CompiledIndicator)
	return nil
}

func (e *Engine) compileIndicator(cfg *domain.FraudIndicator) (*CompiledIndicator, error) {
	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile indicator %s: %w", cfg.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("indicator %s: expression must return bool, got %s", cfg.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for indicator %s: %w", cfg.ID, err)
	}

	return &CompiledIndicator{
		Config:  cfg,
		Program: program,
	}, nil
}
