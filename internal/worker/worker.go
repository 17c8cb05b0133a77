// Package worker provides async claim evaluation off the event bus.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/agriguard/agriguard/internal/domain"
	"github.com/agriguard/agriguard/internal/pipeline"
)

// Worker evaluates submitted claims asynchronously from the EventBus.
type Worker struct {
	bus       domain.EventBus
	repo      domain.Repository
	processor *pipeline.Processor

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	mu            sync.Mutex
	stopped       bool
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, processor *pipeline.Processor) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:       bus,
		repo:      repo,
		processor: processor,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start subscribes to the claim-submitted topic.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicClaimSubmitted, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("worker started",
		"topic", domain.TopicClaimSubmitted,
	)

	return nil
}

// ClaimMessage is the payload published on claim submission.
type ClaimMessage struct {
	ClaimID  string `json:"claimId"`
	FarmerID string `json:"farmerId"`
	TraceID  string `json:"traceId,omitempty"`
}

// ProgressMessage is published as each evaluation stage begins.
type ProgressMessage struct {
	ClaimID string `json:"claimId"`
	Stage   string `json:"stage"`
	Index   int    `json:"index"`
	Total   int    `json:"total"`
}

// DecisionMessage is published when evaluation completes.
type DecisionMessage struct {
	ClaimID    string          `json:"claimId"`
	FarmerID   string          `json:"farmerId"`
	Decision   domain.Decision `json:"decision"`
	FinalScore float64         `json:"finalScore"`
}

func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	// A message landing mid-shutdown must not race Stop's Wait: the stopped
	// flag and the Add share a lock, so after Stop flips it no new work joins
	// the group.
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.wg.Add(1)
	w.mu.Unlock()
	defer w.wg.Done()

	return w.evaluateClaim(ctx, msg)
}

// evaluateClaim loads the claim, runs the staged evaluation with progress
// bridged back onto the bus, and persists the outcome.
func (w *Worker) evaluateClaim(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	var claimMsg ClaimMessage
	if err := json.Unmarshal(msg.Payload, &claimMsg); err != nil {
		slog.Error("failed to parse claim message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	claim, err := w.repo.GetClaim(ctx, claimMsg.ClaimID)
	if err != nil {
		slog.Error("failed to load claim",
			"claim_id", claimMsg.ClaimID,
			"error", err,
		)
		return err
	}

	result, err := w.processor.Evaluate(ctx, claim, func(stage string, index, total int) {
		payload, _ := json.Marshal(ProgressMessage{
			ClaimID: claim.ID,
			Stage:   stage,
			Index:   index,
			Total:   total,
		})
		if err := w.bus.Publish(ctx, domain.TopicClaimProgress, payload); err != nil {
			slog.Warn("failed to publish progress",
				"claim_id", claim.ID,
				"stage", stage,
				"error", err,
			)
		}
	})
	if err != nil {
		slog.Error("claim evaluation failed",
			"claim_id", claim.ID,
			"error", err,
		)
		return err
	}

	claim.AIResult = result
	claim.Status = result.Decision.ClaimStatus()
	claim.UpdatedAt = time.Now().UTC()

	if err := w.repo.SaveClaim(ctx, claim); err != nil {
		slog.Error("failed to save evaluated claim",
			"claim_id", claim.ID,
			"error", err,
		)
		return err
	}

	decisionPayload, _ := json.Marshal(DecisionMessage{
		ClaimID:    claim.ID,
		FarmerID:   claim.FarmerID,
		Decision:   result.Decision,
		FinalScore: result.FinalScore,
	})
	if err := w.bus.Publish(ctx, domain.TopicClaimDecision, decisionPayload); err != nil {
		slog.Error("failed to publish decision",
			"claim_id", claim.ID,
			"error", err,
		)
	}

	slog.Info("claim processed",
		"claim_id", claim.ID,
		"decision", result.Decision,
		"final_score", result.FinalScore,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()

	w.wg.Wait()

	slog.Info("worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
