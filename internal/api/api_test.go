package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/agriguard/agriguard/internal/bus"
	"github.com/agriguard/agriguard/internal/cache"
	"github.com/agriguard/agriguard/internal/domain"
	"github.com/agriguard/agriguard/internal/payment"
	"github.com/agriguard/agriguard/internal/pipeline"
	"github.com/agriguard/agriguard/internal/repository"
	"github.com/agriguard/agriguard/internal/rules"
	"github.com/agriguard/agriguard/internal/scoring"
	"github.com/agriguard/agriguard/internal/signal"
)

type testEnv struct {
	server *Server
	repo   domain.Repository
	bus    domain.EventBus
}

func newTestServer(t *testing.T) *testEnv {
	t.Helper()

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: t.TempDir() + "/api-test.db",
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	c := cache.NewLRUCache(100)
	t.Cleanup(func() { c.Close() })

	eventBus := bus.NewChannelBus(100)
	t.Cleanup(func() { eventBus.Close() })

	indicators, err := rules.NewEngine()
	if err != nil {
		t.Fatalf("failed to create rules engine: %v", err)
	}

	noSleep := func(time.Duration) {}
	weather := signal.NewWeatherService(c, signal.WithWeatherSeed(42), signal.WithWeatherSleep(noSleep))
	images := signal.NewImageService(signal.WithImageSeed(7), signal.WithImageSleep(noSleep))

	engine := scoring.NewEngine(weather, indicators)
	evaluator := pipeline.NewProcessor(repo, engine, pipeline.WithSleep(noSleep))

	// Seed 1 makes the simulated gateway succeed on the first attempt.
	payments := payment.NewProcessor(repo,
		payment.WithSeed(1),
		payment.WithSleep(noSleep),
	)

	server := NewServer(domain.ServerConfig{Host: "127.0.0.1", Port: 0},
		repo, c, eventBus, weather, images, evaluator, payments, indicators, "test")

	return &testEnv{server: server, repo: repo, bus: eventBus}
}

func doRequest(t *testing.T, env *testEnv, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.server.Router().ServeHTTP(rec, req)
	return rec
}

func validClaimRequest() domain.ClaimRequest {
	return domain.ClaimRequest{
		FarmerID:        "farmer-001",
		FarmerName:      "Test Farmer",
		CropType:        domain.CropWheat,
		LandSize:        10,
		CoveragePercent: 80,
		Region:          "North District",
		DamageDate:      time.Now().AddDate(0, 0, -7).Format("2006-01-02"),
		Description:     "Flooding destroyed most of the standing crop",
		ImageCount:      4,
	}
}

func TestSubmitClaim(t *testing.T) {
	env := newTestServer(t)

	rec := doRequest(t, env, http.MethodPost, "/claims", validClaimRequest())
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var claim domain.Claim
	if err := json.Unmarshal(rec.Body.Bytes(), &claim); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if claim.ID == "" {
		t.Error("expected claim ID to be assigned")
	}
	if claim.Status != domain.ClaimPending {
		t.Errorf("expected pending status, got %s", claim.Status)
	}

	stored, err := env.repo.GetClaim(context.Background(), claim.ID)
	if err != nil {
		t.Fatalf("claim not persisted: %v", err)
	}
	if stored.FarmerID != "farmer-001" {
		t.Errorf("unexpected farmer ID %s", stored.FarmerID)
	}
}

func TestSubmitClaimValidation(t *testing.T) {
	env := newTestServer(t)

	tests := []struct {
		name    string
		mutate  func(*domain.ClaimRequest)
		wantKey string
	}{
		{"MissingFarmerID", func(r *domain.ClaimRequest) { r.FarmerID = "" }, "farmerId"},
		{"MissingFarmerName", func(r *domain.ClaimRequest) { r.FarmerName = "" }, "farmerName"},
		{"UnsupportedCrop", func(r *domain.ClaimRequest) { r.CropType = "barley" }, "cropType"},
		{"UnknownRegion", func(r *domain.ClaimRequest) { r.Region = "Atlantis" }, "region"},
		{"ZeroLandSize", func(r *domain.ClaimRequest) { r.LandSize = 0 }, "landSize"},
		{"CoverageOverLimit", func(r *domain.ClaimRequest) { r.CoveragePercent = 120 }, "coveragePercent"},
		{"BadDateFormat", func(r *domain.ClaimRequest) { r.DamageDate = "07/01/2026" }, "damageDate"},
		{"FutureDate", func(r *domain.ClaimRequest) {
			r.DamageDate = time.Now().AddDate(0, 0, 7).Format("2006-01-02")
		}, "damageDate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validClaimRequest()
			tt.mutate(&req)

			rec := doRequest(t, env, http.MethodPost, "/claims", req)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}

			var resp struct {
				Errors map[string]string `json:"errors"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if _, ok := resp.Errors[tt.wantKey]; !ok {
				t.Errorf("expected field error for %s, got %v", tt.wantKey, resp.Errors)
			}
		})
	}
}

func TestSubmitDuplicateClaim(t *testing.T) {
	env := newTestServer(t)
	req := validClaimRequest()

	if rec := doRequest(t, env, http.MethodPost, "/claims", req); rec.Code != http.StatusAccepted {
		t.Fatalf("first submission failed: %d", rec.Code)
	}
	if rec := doRequest(t, env, http.MethodPost, "/claims", req); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSubmissionThrottle(t *testing.T) {
	env := newTestServer(t)

	for i := 0; i < submissionLimit; i++ {
		req := validClaimRequest()
		// Vary the damage date so the duplicate check does not fire first.
		req.DamageDate = time.Now().AddDate(0, 0, -(i + 1)).Format("2006-01-02")
		if rec := doRequest(t, env, http.MethodPost, "/claims", req); rec.Code != http.StatusAccepted {
			t.Fatalf("submission %d failed: %d: %s", i, rec.Code, rec.Body.String())
		}
	}

	req := validClaimRequest()
	req.DamageDate = time.Now().AddDate(0, 0, -30).Format("2006-01-02")
	if rec := doRequest(t, env, http.MethodPost, "/claims", req); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 past the limit, got %d", rec.Code)
	}
}

func TestEvaluateAndScore(t *testing.T) {
	env := newTestServer(t)

	rec := doRequest(t, env, http.MethodPost, "/claims", validClaimRequest())
	var claim domain.Claim
	if err := json.Unmarshal(rec.Body.Bytes(), &claim); err != nil {
		t.Fatalf("failed to decode claim: %v", err)
	}

	// Score before evaluation is a conflict.
	if rec := doRequest(t, env, http.MethodGet, "/claims/"+claim.ID+"/score", nil); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 before evaluation, got %d", rec.Code)
	}

	rec = doRequest(t, env, http.MethodPost, "/claims/"+claim.ID+"/evaluate", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("evaluate failed: %d: %s", rec.Code, rec.Body.String())
	}

	var evaluated domain.Claim
	if err := json.Unmarshal(rec.Body.Bytes(), &evaluated); err != nil {
		t.Fatalf("failed to decode evaluated claim: %v", err)
	}
	if evaluated.AIResult == nil {
		t.Fatal("expected AI result after evaluation")
	}
	if evaluated.Status == domain.ClaimPending {
		t.Error("expected status to advance from pending")
	}

	rec = doRequest(t, env, http.MethodGet, "/claims/"+claim.ID+"/score", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("score failed: %d", rec.Code)
	}
	var result domain.AIResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode score: %v", err)
	}
	if result.FinalScore < 0 || result.FinalScore > 100 {
		t.Errorf("final score out of range: %v", result.FinalScore)
	}
}

func TestCompensationEndpoint(t *testing.T) {
	env := newTestServer(t)

	rec := doRequest(t, env, http.MethodPost, "/claims", validClaimRequest())
	var claim domain.Claim
	json.Unmarshal(rec.Body.Bytes(), &claim)

	if rec := doRequest(t, env, http.MethodGet, "/claims/"+claim.ID+"/compensation", nil); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 before evaluation, got %d", rec.Code)
	}

	doRequest(t, env, http.MethodPost, "/claims/"+claim.ID+"/evaluate", nil)

	rec = doRequest(t, env, http.MethodGet, "/claims/"+claim.ID+"/compensation", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("compensation failed: %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Breakdown *domain.CompensationBreakdown `json:"breakdown"`
		Summary   string                        `json:"summary"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Breakdown == nil || resp.Breakdown.FinalAmount <= 0 {
		t.Errorf("expected positive final amount, got %+v", resp.Breakdown)
	}
	if resp.Summary == "" {
		t.Error("expected a formatted summary")
	}
}

func TestPayoutFlow(t *testing.T) {
	env := newTestServer(t)
	ctx := context.Background()

	// Seed an approved, evaluated claim directly.
	now := time.Now().UTC()
	claim := &domain.Claim{
		ID:              "claim-payout-001",
		FarmerID:        "farmer-009",
		FarmerName:      "Payout Farmer",
		CropType:        domain.CropRice,
		LandSize:        8,
		CoveragePercent: 80,
		Region:          "North District",
		DamageDate:      now.AddDate(0, 0, -10),
		ImageCount:      5,
		Status:          domain.ClaimApproved,
		AIResult: &domain.AIResult{
			DamageScore: 70,
			FinalScore:  80,
			Decision:    domain.DecisionApproved,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := env.repo.SaveClaim(ctx, claim); err != nil {
		t.Fatalf("SaveClaim failed: %v", err)
	}

	payee := domain.PayeeDetails{
		AccountNumber: "123456789012",
		IFSCCode:      "SBIN0001234",
		AccountHolder: "Payout Farmer",
	}

	// Pending before any payout.
	rec := doRequest(t, env, http.MethodGet, "/claims/"+claim.ID+"/payout", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("payout status failed: %d", rec.Code)
	}
	var status payment.StatusInfo
	json.Unmarshal(rec.Body.Bytes(), &status)
	if status.Status != domain.PayoutPending {
		t.Errorf("expected pending, got %s", status.Status)
	}

	// Invalid payee is a 400 with field errors.
	rec = doRequest(t, env, http.MethodPost, "/claims/"+claim.ID+"/payout", domain.PayeeDetails{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid payee, got %d", rec.Code)
	}

	rec = doRequest(t, env, http.MethodPost, "/claims/"+claim.ID+"/payout", payee)
	if rec.Code != http.StatusOK {
		t.Fatalf("payout failed: %d: %s", rec.Code, rec.Body.String())
	}

	var result payment.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
	if !result.Success || result.Transaction == nil || result.Receipt == nil {
		t.Fatalf("expected successful payout, got %+v", result)
	}

	// Second payout for the same claim is rejected.
	rec = doRequest(t, env, http.MethodPost, "/claims/"+claim.ID+"/payout", payee)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate payout, got %d", rec.Code)
	}

	// Status now reflects the completed transaction.
	rec = doRequest(t, env, http.MethodGet, "/claims/"+claim.ID+"/payout", nil)
	json.Unmarshal(rec.Body.Bytes(), &status)
	if status.Status != domain.PayoutCompleted || status.TransactionID != result.Transaction.ID {
		t.Errorf("unexpected status after payout: %+v", status)
	}

	// The transaction is retrievable and listed.
	rec = doRequest(t, env, http.MethodGet, "/transactions/"+result.Transaction.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get transaction failed: %d", rec.Code)
	}

	rec = doRequest(t, env, http.MethodGet, "/payouts/summary", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("payout summary failed: %d", rec.Code)
	}
	var summary payment.PayoutSummary
	json.Unmarshal(rec.Body.Bytes(), &summary)
	if summary.Total != 1 || summary.Amount != result.Transaction.Amount {
		t.Errorf("unexpected summary: %+v", summary)
	}
}

func TestPayoutRequiresApprovedClaim(t *testing.T) {
	env := newTestServer(t)

	rec := doRequest(t, env, http.MethodPost, "/claims", validClaimRequest())
	var claim domain.Claim
	json.Unmarshal(rec.Body.Bytes(), &claim)

	payee := domain.PayeeDetails{
		AccountNumber: "123456789012",
		AccountHolder: "Test Farmer",
	}
	rec = doRequest(t, env, http.MethodPost, "/claims/"+claim.ID+"/payout", payee)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for unevaluated claim, got %d", rec.Code)
	}
}

func TestWeatherEndpoint(t *testing.T) {
	env := newTestServer(t)

	rec := doRequest(t, env, http.MethodGet, "/weather/North%20District", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("weather failed: %d: %s", rec.Code, rec.Body.String())
	}
	var snap domain.WeatherSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("failed to decode snapshot: %v", err)
	}
	if snap.Condition == "" {
		t.Error("expected a weather condition")
	}

	if rec := doRequest(t, env, http.MethodGet, "/weather/Atlantis", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown region, got %d", rec.Code)
	}
}

func TestAnalyzeImageEndpoint(t *testing.T) {
	env := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/images/analyze", bytes.NewReader([]byte("fake-image-bytes")))
	rec := httptest.NewRecorder()
	env.server.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("analyze failed: %d: %s", rec.Code, rec.Body.String())
	}

	var analysis domain.ImageAnalysis
	if err := json.Unmarshal(rec.Body.Bytes(), &analysis); err != nil {
		t.Fatalf("failed to decode analysis: %v", err)
	}
	if analysis.DamagePercentage < 0 || analysis.DamagePercentage > 100 {
		t.Errorf("damage percentage out of range: %d", analysis.DamagePercentage)
	}
	if analysis.Confidence < 70 || analysis.Confidence > 95 {
		t.Errorf("confidence out of range: %d", analysis.Confidence)
	}
	if len(analysis.DetectedFeatures) == 0 {
		t.Error("expected detected features")
	}

	// An empty payload is rejected.
	req = httptest.NewRequest(http.MethodPost, "/images/analyze", nil)
	rec = httptest.NewRecorder()
	env.server.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty payload, got %d", rec.Code)
	}
}

func TestIndicatorLifecycle(t *testing.T) {
	env := newTestServer(t)

	create := CreateIndicatorRequest{
		ID:         "large-claim",
		Name:       "Large claim",
		Expression: "land_size > 40.0 && image_count < 3",
		Points:     20,
		Enabled:    true,
	}

	rec := doRequest(t, env, http.MethodPost, "/indicators", create)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create failed: %d: %s", rec.Code, rec.Body.String())
	}

	// Engine is empty until reload.
	rec = doRequest(t, env, http.MethodGet, "/indicators", nil)
	var list struct {
		Count int `json:"count"`
	}
	json.Unmarshal(rec.Body.Bytes(), &list)
	if list.Count != 0 {
		t.Errorf("expected empty engine before reload, got %d", list.Count)
	}

	rec = doRequest(t, env, http.MethodPost, "/indicators/reload", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("reload failed: %d", rec.Code)
	}

	rec = doRequest(t, env, http.MethodGet, "/indicators", nil)
	json.Unmarshal(rec.Body.Bytes(), &list)
	if list.Count != 1 {
		t.Errorf("expected 1 loaded indicator, got %d", list.Count)
	}

	// Delete auto-reloads.
	rec = doRequest(t, env, http.MethodDelete, "/indicators/large-claim", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete failed: %d", rec.Code)
	}
	rec = doRequest(t, env, http.MethodGet, "/indicators", nil)
	json.Unmarshal(rec.Body.Bytes(), &list)
	if list.Count != 0 {
		t.Errorf("expected empty engine after delete, got %d", list.Count)
	}
}

func TestCreateIndicatorRejectsBadExpression(t *testing.T) {
	env := newTestServer(t)

	create := CreateIndicatorRequest{
		ID:         "bad",
		Name:       "Bad",
		Expression: "land_size +", // not valid CEL
		Points:     10,
		Enabled:    true,
	}
	if rec := doRequest(t, env, http.MethodPost, "/indicators", create); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid expression, got %d", rec.Code)
	}

	create.Expression = "land_size + 1.0" // valid but not boolean
	if rec := doRequest(t, env, http.MethodPost, "/indicators", create); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-boolean expression, got %d", rec.Code)
	}
}

func TestHealthAndReady(t *testing.T) {
	env := newTestServer(t)

	rec := doRequest(t, env, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health failed: %d", rec.Code)
	}
	var health map[string]string
	json.Unmarshal(rec.Body.Bytes(), &health)
	if health["status"] != "healthy" {
		t.Errorf("expected healthy, got %s", health["status"])
	}
	if health["version"] != "test" {
		t.Errorf("expected version test, got %s", health["version"])
	}

	if rec := doRequest(t, env, http.MethodGet, "/ready", nil); rec.Code != http.StatusOK {
		t.Errorf("ready failed: %d", rec.Code)
	}
}

func TestGetClaimNotFound(t *testing.T) {
	env := newTestServer(t)

	if rec := doRequest(t, env, http.MethodGet, "/claims/missing", nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if rec := doRequest(t, env, http.MethodGet, "/transactions/missing", nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}
