// Package pipeline runs the staged claim evaluation.
//
// Evaluation is presented to callers as four named stages with fixed
// durations. The stages pace the user-visible progress feed; the actual
// scoring happens in a single pass once the feed completes.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/agriguard/agriguard/internal/domain"
	"github.com/agriguard/agriguard/internal/scoring"
)

// Stage is one step of the evaluation progress feed.
type Stage struct {
	Name     string
	Duration time.Duration
}

// Stages returns the fixed evaluation stages in order.
func Stages() []Stage {
	return []Stage{
		{Name: "Damage Analysis", Duration: 1500 * time.Millisecond},
		{Name: "Weather Matching", Duration: 1200 * time.Millisecond},
		{Name: "Risk Assessment", Duration: 1000 * time.Millisecond},
		{Name: "Fraud Detection", Duration: 800 * time.Millisecond},
	}
}

// ProgressFunc observes stage transitions. index is 1-based.
type ProgressFunc func(stage string, index, total int)

// Processor drives a claim through staged evaluation.
type Processor struct {
	repo   domain.Repository
	engine *scoring.Engine
	sleep  func(time.Duration)
}

// Option configures a Processor.
type Option func(*Processor)

// WithSleep overrides the stage pacing, for tests.
func WithSleep(sleep func(time.Duration)) Option {
	return func(p *Processor) { p.sleep = sleep }
}

// NewProcessor creates an evaluation processor.
func NewProcessor(repo domain.Repository, engine *scoring.Engine, opts ...Option) *Processor {
	p := &Processor{
		repo:   repo,
		engine: engine,
		sleep:  time.Sleep,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Evaluate runs the staged evaluation for a claim and returns the scoring
// result. Each stage notifies the observer before its delay elapses; the
// delays run even without an observer so evaluation timing is uniform.
// Evaluation can be abandoned between stages via the context.
func (p *Processor) Evaluate(ctx context.Context, claim *domain.Claim, progress ProgressFunc) (*domain.AIResult, error) {
	stages := Stages()
	total := len(stages)

	for i, stage := range stages {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("evaluation abandoned at %s: %w", stage.Name, err)
		}

		if progress != nil {
			progress(stage.Name, i+1, total)
		}

		p.sleep(stage.Duration)
	}

	history, err := p.repo.GetClaimsByFarmer(ctx, claim.FarmerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load claim history: %w", err)
	}

	// The claim under evaluation may already be persisted; keep it out of
	// its own history.
	filtered := history[:0]
	for _, c := range history {
		if c.ID != claim.ID {
			filtered = append(filtered, c)
		}
	}

	result := p.engine.CalculateFinalScore(claim, filtered)

	slog.Info("claim evaluated",
		"claim_id", claim.ID,
		"final_score", result.FinalScore,
		"decision", result.Decision,
	)

	return result, nil
}
