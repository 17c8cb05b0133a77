package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/agriguard/agriguard/internal/compensation"
	"github.com/agriguard/agriguard/internal/domain"
	"github.com/agriguard/agriguard/internal/payment"
	"github.com/agriguard/agriguard/internal/pipeline"
	"github.com/agriguard/agriguard/internal/repository"
	"github.com/agriguard/agriguard/internal/rules"
	"github.com/agriguard/agriguard/internal/signal"
	"github.com/agriguard/agriguard/internal/worker"
)

// submissionLimit caps claim submissions per farmer per hour.
const (
	submissionLimit  = 20
	submissionWindow = time.Hour
)

// maxImageBytes caps uploads to the image analysis endpoint.
const maxImageBytes = 10 << 20

// Handler holds dependencies for API handlers.
type Handler struct {
	repo       domain.Repository
	cache      domain.Cache
	bus        domain.EventBus
	weather    *signal.WeatherService
	images     domain.ImageAnalyzer
	evaluator  *pipeline.Processor
	payments   *payment.Processor
	indicators *rules.Engine
	version    string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, weather *signal.WeatherService, images domain.ImageAnalyzer, evaluator *pipeline.Processor, payments *payment.Processor, indicators *rules.Engine, version string) *Handler {
	return &Handler{
		repo:       repo,
		cache:      cache,
		bus:        bus,
		weather:    weather,
		images:     images,
		evaluator:  evaluator,
		payments:   payments,
		indicators: indicators,
		version:    version,
	}
}

// SubmitClaim handles POST /claims. Valid claims are persisted as pending
// and handed to the async worker over the bus.
func (h *Handler) SubmitClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req domain.ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	damageDate, fieldErrs := validateClaimRequest(&req)
	if len(fieldErrs) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "Validation failed",
			"errors": fieldErrs,
		})
		return
	}

	// Per-farmer submission throttle.
	if h.cache != nil {
		count, err := h.cache.IncrementCounter(ctx, "submissions:"+req.FarmerID, submissionWindow)
		if err != nil {
			slog.Warn("submission counter unavailable", "farmer_id", req.FarmerID, "error", err)
		} else if count > submissionLimit {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{
				"error": "Too many claims submitted. Please try again later.",
			})
			return
		}
	}

	dup, err := h.repo.IsDuplicateClaim(ctx, req.FarmerID, req.CropType, damageDate)
	if err != nil {
		slog.Error("duplicate check failed", "farmer_id", req.FarmerID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to check for duplicate claims",
		})
		return
	}
	if dup {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "A claim for this crop and damage date already exists",
		})
		return
	}

	claim := req.ToClaim(uuid.New().String(), damageDate)
	if err := h.repo.SaveClaim(ctx, claim); err != nil {
		slog.Error("failed to save claim", "claim_id", claim.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save claim",
		})
		return
	}

	// Hand off to the async worker. The claim stays pending if publishing
	// fails; it can still be evaluated synchronously.
	if h.bus != nil {
		payload, _ := json.Marshal(worker.ClaimMessage{
			ClaimID:  claim.ID,
			FarmerID: claim.FarmerID,
			TraceID:  GetTraceID(ctx),
		})
		if err := h.bus.Publish(ctx, domain.TopicClaimSubmitted, payload); err != nil {
			slog.Error("failed to publish claim", "claim_id", claim.ID, "error", err)
		}
	}

	slog.Info("claim submitted", "claim_id", claim.ID, "farmer_id", claim.FarmerID)
	writeJSON(w, http.StatusAccepted, claim)
}

func validateClaimRequest(req *domain.ClaimRequest) (time.Time, map[string]string) {
	errs := make(map[string]string)

	if req.FarmerID == "" {
		errs["farmerId"] = "Farmer ID is required"
	}
	if req.FarmerName == "" {
		errs["farmerName"] = "Farmer name is required"
	}
	if !domain.IsSupportedCrop(req.CropType) {
		errs["cropType"] = "Unsupported crop type"
	}
	if !domain.IsKnownRegion(req.Region) {
		errs["region"] = "Unknown region"
	}
	if req.LandSize <= 0 {
		errs["landSize"] = "Land size must be positive"
	}
	if req.CoveragePercent < 30 || req.CoveragePercent > 100 {
		errs["coveragePercent"] = "Coverage must be between 30 and 100"
	}

	var damageDate time.Time
	if req.DamageDate == "" {
		errs["damageDate"] = "Damage date is required"
	} else {
		parsed, err := time.Parse("2006-01-02", req.DamageDate)
		switch {
		case err != nil:
			errs["damageDate"] = "Damage date must be YYYY-MM-DD"
		case parsed.After(time.Now()):
			errs["damageDate"] = "Damage date cannot be in the future"
		default:
			damageDate = parsed
		}
	}

	return damageDate, errs
}

// ListClaims handles GET /claims, optionally filtered by farmerId.
func (h *Handler) ListClaims(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		claims []*domain.Claim
		err    error
	)
	if farmerID := r.URL.Query().Get("farmerId"); farmerID != "" {
		claims, err = h.repo.GetClaimsByFarmer(ctx, farmerID)
	} else {
		claims, err = h.repo.ListClaims(ctx)
	}
	if err != nil {
		slog.Error("failed to list claims", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list claims",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"claims": claims,
		"count":  len(claims),
	})
}

// GetClaim handles GET /claims/{id}.
func (h *Handler) GetClaim(w http.ResponseWriter, r *http.Request) {
	claim, ok := h.loadClaim(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, claim)
}

// EvaluateClaim handles POST /claims/{id}/evaluate: the synchronous staged
// evaluation path.
func (h *Handler) EvaluateClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claim, ok := h.loadClaim(w, r)
	if !ok {
		return
	}

	result, err := h.evaluator.Evaluate(ctx, claim, nil)
	if err != nil {
		slog.Error("claim evaluation failed", "claim_id", claim.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "claim evaluation failed",
		})
		return
	}

	claim.AIResult = result
	claim.Status = result.Decision.ClaimStatus()
	claim.UpdatedAt = time.Now().UTC()

	if err := h.repo.SaveClaim(ctx, claim); err != nil {
		slog.Error("failed to save evaluated claim", "claim_id", claim.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save claim",
		})
		return
	}

	writeJSON(w, http.StatusOK, claim)
}

// GetScore handles GET /claims/{id}/score.
func (h *Handler) GetScore(w http.ResponseWriter, r *http.Request) {
	claim, ok := h.loadClaim(w, r)
	if !ok {
		return
	}

	if claim.AIResult == nil {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "claim has not been evaluated yet",
		})
		return
	}

	writeJSON(w, http.StatusOK, claim.AIResult)
}

// GetCompensation handles GET /claims/{id}/compensation.
func (h *Handler) GetCompensation(w http.ResponseWriter, r *http.Request) {
	claim, ok := h.loadClaim(w, r)
	if !ok {
		return
	}

	if claim.AIResult == nil {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "claim has not been evaluated yet",
		})
		return
	}

	breakdown := compensation.Calculate(claim, claim.AIResult)
	writeJSON(w, http.StatusOK, map[string]any{
		"breakdown": breakdown,
		"summary":   compensation.FormatSummary(breakdown),
	})
}

// ProcessPayout handles POST /claims/{id}/payout.
func (h *Handler) ProcessPayout(w http.ResponseWriter, r *http.Request) {
	h.executePayout(w, r, h.payments.ProcessPayment)
}

// RetryPayout handles POST /claims/{id}/payout/retry.
func (h *Handler) RetryPayout(w http.ResponseWriter, r *http.Request) {
	h.executePayout(w, r, h.payments.RetryPayment)
}

type payoutFunc func(ctx context.Context, claim *domain.Claim, comp *domain.CompensationBreakdown, payee *domain.PayeeDetails) (*payment.Result, error)

func (h *Handler) executePayout(w http.ResponseWriter, r *http.Request, execute payoutFunc) {
	ctx := r.Context()

	claim, ok := h.loadClaim(w, r)
	if !ok {
		return
	}

	if claim.AIResult == nil || claim.Status != domain.ClaimApproved {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "payout requires an approved claim",
		})
		return
	}

	var payee domain.PayeeDetails
	if err := json.NewDecoder(r.Body).Decode(&payee); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	comp := compensation.Calculate(claim, claim.AIResult)

	result, err := execute(ctx, claim, comp, &payee)
	if err != nil {
		slog.Error("payout failed", "claim_id", claim.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "payout failed",
		})
		return
	}

	h.publishPayoutEvent(ctx, claim, result)

	switch {
	case result.Success:
		writeJSON(w, http.StatusOK, result)
	case len(result.FieldErrors) > 0:
		writeJSON(w, http.StatusBadRequest, result)
	case result.Retryable:
		writeJSON(w, http.StatusBadGateway, result)
	default:
		writeJSON(w, http.StatusConflict, result)
	}
}

// PayoutEvent is published on payout completion or failure.
type PayoutEvent struct {
	ClaimID       string  `json:"claimId"`
	FarmerID      string  `json:"farmerId"`
	TransactionID string  `json:"transactionId,omitempty"`
	Amount        float64 `json:"amount,omitempty"`
	Error         string  `json:"error,omitempty"`
	Retryable     bool    `json:"retryable,omitempty"`
}

func (h *Handler) publishPayoutEvent(ctx context.Context, claim *domain.Claim, result *payment.Result) {
	if h.bus == nil {
		return
	}

	event := PayoutEvent{
		ClaimID:   claim.ID,
		FarmerID:  claim.FarmerID,
		Error:     result.Error,
		Retryable: result.Retryable,
	}
	topic := domain.TopicPayoutFailed
	if result.Success {
		topic = domain.TopicPayoutCompleted
		event.TransactionID = result.Transaction.ID
		event.Amount = result.Transaction.Amount
		event.Error = ""
		event.Retryable = false
	}

	payload, _ := json.Marshal(event)
	if err := h.bus.Publish(ctx, topic, payload); err != nil {
		slog.Warn("failed to publish payout event",
			"claim_id", claim.ID,
			"topic", topic,
			"error", err,
		)
	}
}

// PayoutStatus handles GET /claims/{id}/payout.
func (h *Handler) PayoutStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claimID := chi.URLParam(r, "id")

	info, err := h.payments.PaymentStatus(ctx, claimID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "claim not found",
			})
			return
		}
		slog.Error("failed to get payout status", "claim_id", claimID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get payout status",
		})
		return
	}

	writeJSON(w, http.StatusOK, info)
}

// ListTransactions handles GET /transactions.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	transactions, err := h.repo.ListTransactions(r.Context())
	if err != nil {
		slog.Error("failed to list transactions", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list transactions",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"transactions": transactions,
		"count":        len(transactions),
	})
}

// GetTransaction handles GET /transactions/{id}.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	txID := chi.URLParam(r, "id")

	tx, err := h.repo.GetTransaction(r.Context(), txID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "transaction not found",
			})
			return
		}
		slog.Error("failed to get transaction", "id", txID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get transaction",
		})
		return
	}

	writeJSON(w, http.StatusOK, tx)
}

// PayoutSummary handles GET /payouts/summary with optional region and
// date-range filters.
func (h *Handler) PayoutSummary(w http.ResponseWriter, r *http.Request) {
	filters := payment.PayoutFilters{
		Region: r.URL.Query().Get("region"),
	}

	if s := r.URL.Query().Get("startDate"); s != "" {
		parsed, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "startDate must be YYYY-MM-DD",
			})
			return
		}
		filters.StartDate = parsed
	}
	if s := r.URL.Query().Get("endDate"); s != "" {
		parsed, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "endDate must be YYYY-MM-DD",
			})
			return
		}
		filters.EndDate = parsed
	}

	summary, err := h.payments.TotalPayouts(r.Context(), filters)
	if err != nil {
		slog.Error("failed to summarize payouts", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to summarize payouts",
		})
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// GetWeather handles GET /weather/{region}: the cached session snapshot.
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	region := chi.URLParam(r, "region")
	if !domain.IsKnownRegion(region) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "Unknown region",
		})
		return
	}

	snapshot, err := h.weather.Snapshot(r.Context(), region)
	if err != nil {
		slog.Error("failed to get weather snapshot", "region", region, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get weather snapshot",
		})
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}

// AnalyzeImage handles POST /images/analyze: runs the damage analyzer over
// a raw image payload.
func (h *Handler) AnalyzeImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes)

	image, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "failed to read image payload",
		})
		return
	}
	if len(image) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "image payload is required",
		})
		return
	}

	analysis, err := h.images.AnalyzeImage(r.Context(), image)
	if err != nil {
		slog.Error("image analysis failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "image analysis failed",
		})
		return
	}

	writeJSON(w, http.StatusOK, analysis)
}

// ListIndicators returns the fraud indicators loaded in the engine.
// Indicators are loaded from the database at startup and can be reloaded
// via POST /indicators/reload.
func (h *Handler) ListIndicators(w http.ResponseWriter, r *http.Request) {
	loaded := h.indicators.GetLoadedIndicators()

	writeJSON(w, http.StatusOK, map[string]any{
		"indicators": loaded,
		"count":      len(loaded),
		"source":     "database",
	})
}

// CreateIndicatorRequest is the request body for creating a fraud indicator.
type CreateIndicatorRequest struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Expression  string  `json:"expression"`
	Points      float64 `json:"points"`
	Enabled     bool    `json:"enabled"`
}

// CreateIndicator creates a fraud indicator and saves it to the database.
// After saving, call POST /indicators/reload to hot-reload into the engine.
func (h *Handler) CreateIndicator(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateIndicatorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}
	if req.Points <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "points must be positive",
		})
		return
	}

	indicator := &domain.FraudIndicator{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Expression:  req.Expression,
		Points:      req.Points,
		Enabled:     req.Enabled,
	}

	// Validate the CEL expression before persisting.
	if err := h.indicators.ValidateIndicator(indicator); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid indicator expression: " + err.Error(),
		})
		return
	}

	if err := h.repo.SaveFraudIndicator(ctx, indicator); err != nil {
		slog.Error("failed to save indicator", "id", indicator.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save indicator",
		})
		return
	}

	slog.Info("fraud indicator created", "id", indicator.ID, "name", indicator.Name)
	writeJSON(w, http.StatusCreated, map[string]any{
		"indicator": indicator,
		"message":   "Indicator created. Call POST /indicators/reload to apply changes.",
	})
}

// DeleteIndicator deletes a fraud indicator and auto-reloads the engine.
func (h *Handler) DeleteIndicator(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	indicatorID := chi.URLParam(r, "id")

	if err := h.repo.DeleteFraudIndicator(ctx, indicatorID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "indicator not found",
			})
			return
		}
		slog.Error("failed to delete indicator", "id", indicatorID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to delete indicator",
		})
		return
	}

	// Auto-reload after delete so the engine drops the indicator.
	if remaining, err := h.repo.ListFraudIndicators(ctx); err != nil {
		slog.Error("failed to reload indicators after delete", "error", err)
	} else if err := h.indicators.ReloadIndicators(remaining); err != nil {
		slog.Error("failed to reload indicators after delete", "error", err)
	}

	slog.Info("fraud indicator deleted", "id", indicatorID)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Indicator deleted and engine reloaded.",
	})
}

// ReloadIndicators reloads all fraud indicators from the database into the
// engine. This enables hot-reloading without server restart.
func (h *Handler) ReloadIndicators(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	indicators, err := h.repo.ListFraudIndicators(ctx)
	if err != nil {
		slog.Error("failed to list indicators from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load indicators from database",
		})
		return
	}

	if err := h.indicators.ReloadIndicators(indicators); err != nil {
		slog.Error("failed to reload indicators into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload indicators: " + err.Error(),
		})
		return
	}

	slog.Info("fraud indicators reloaded from database", "count", len(indicators))
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "indicators reloaded successfully",
		"count":   len(indicators),
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func (h *Handler) loadClaim(w http.ResponseWriter, r *http.Request) (*domain.Claim, bool) {
	claimID := chi.URLParam(r, "id")

	claim, err := h.repo.GetClaim(r.Context(), claimID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "claim not found",
			})
			return nil, false
		}
		slog.Error("failed to get claim", "id", claimID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get claim",
		})
		return nil, false
	}

	return claim, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
