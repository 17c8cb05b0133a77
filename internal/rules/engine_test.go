package rules

import (
	"testing"
	"time"

	"github.com/agriguard/agriguard/internal/domain"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	t.Cleanup(func() { engine.Close() })
	return engine
}

func TestValidateIndicator(t *testing.T) {
	engine := newTestEngine(t)

	tests := []struct {
		name       string
		expression string
		wantErr    bool
	}{
		{"ValidComparison", "land_size > 50.0", false},
		{"ValidCompound", "image_count < 2 && coverage_percent > 90.0", false},
		{"ValidStringMatch", `crop_type == "wheat" && region == "Coastal Region"`, false},
		{"ValidHistoryFacts", "recent_claim_count > 3 && history_count > 5", false},
		{"NonBoolOutput", "land_size * 2.0", true},
		{"SyntaxError", "land_size >", true},
		{"UnknownVariable", "altitude > 100.0", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := engine.ValidateIndicator(&domain.FraudIndicator{
				ID:         "test",
				Expression: tt.expression,
			})
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateIndicator(%q) error = %v, wantErr %v", tt.expression, err, tt.wantErr)
			}
		})
	}

	if err := engine.ValidateIndicator(nil); err == nil {
		t.Error("expected error for nil config")
	}
}

func TestEvaluate(t *testing.T) {
	engine := newTestEngine(t)

	indicators := []*domain.FraudIndicator{
		{ID: "ind-land", Name: "Oversized holding", Expression: "land_size > 50.0", Points: 15, Enabled: true},
		{ID: "ind-images", Name: "Sparse evidence", Expression: "image_count < 2", Points: 10, Enabled: true},
		{ID: "ind-disabled", Name: "Disabled", Expression: "true", Points: 99, Enabled: false},
	}
	if err := engine.LoadIndicators(indicators); err != nil {
		t.Fatalf("failed to load indicators: %v", err)
	}

	if got := engine.IndicatorCount(); got != 2 {
		t.Fatalf("expected 2 loaded indicators, got %d", got)
	}

	t.Run("BothTrigger", func(t *testing.T) {
		triggered := engine.Evaluate(Facts{LandSize: 60, ImageCount: 1})
		if len(triggered) != 2 {
			t.Fatalf("expected 2 triggered, got %d", len(triggered))
		}
		total := 0.0
		for _, r := range triggered {
			total += r.Points
		}
		if total != 25 {
			t.Errorf("expected 25 total points, got %v", total)
		}
	})

	t.Run("NoneTrigger", func(t *testing.T) {
		triggered := engine.Evaluate(Facts{LandSize: 5, ImageCount: 4})
		if len(triggered) != 0 {
			t.Errorf("expected no triggered indicators, got %d", len(triggered))
		}
	})
}

func TestReloadIndicators(t *testing.T) {
	engine := newTestEngine(t)

	if err := engine.LoadIndicator(&domain.FraudIndicator{
		ID: "old", Expression: "true", Points: 5, Enabled: true,
	}); err != nil {
		t.Fatalf("failed to load indicator: %v", err)
	}

	fresh := []*domain.FraudIndicator{
		{ID: "new-1", Expression: "land_size > 10.0", Points: 5, Enabled: true},
		{ID: "new-2", Expression: "claim_age_days > 30.0", Points: 10, Enabled: true},
	}
	if err := engine.ReloadIndicators(fresh); err != nil {
		t.Fatalf("failed to reload: %v", err)
	}

	if got := engine.IndicatorCount(); got != 2 {
		t.Errorf("expected 2 indicators after reload, got %d", got)
	}
	for _, ind := range engine.GetLoadedIndicators() {
		if ind.ID == "old" {
			t.Error("stale indicator survived reload")
		}
	}
}

func TestReloadRejectsInvalid(t *testing.T) {
	engine := newTestEngine(t)

	if err := engine.LoadIndicator(&domain.FraudIndicator{
		ID: "keep", Expression: "true", Points: 5, Enabled: true,
	}); err != nil {
		t.Fatalf("failed to load indicator: %v", err)
	}

	bad := []*domain.FraudIndicator{
		{ID: "bad", Expression: "land_size >", Points: 5, Enabled: true},
	}
	if err := engine.ReloadIndicators(bad); err == nil {
		t.Fatal("expected reload to fail on invalid expression")
	}

	// Failed reload must not clobber the loaded set.
	if got := engine.IndicatorCount(); got != 1 {
		t.Errorf("expected 1 indicator after failed reload, got %d", got)
	}
}

func TestFactsFromClaim(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	claim := &domain.Claim{
		LandSize:        25,
		ImageCount:      4,
		CoveragePercent: 80,
		CropType:        domain.CropRice,
		Region:          "Coastal Region",
		Description:     "flooding",
		BankAccount:     "9876543210",
		DamageDate:      now.AddDate(0, 0, -10),
	}
	history := []*domain.Claim{
		{DamageDate: now.AddDate(0, 0, -30)},  // recent
		{DamageDate: now.AddDate(0, -2, 0)},   // recent
		{DamageDate: now.AddDate(-1, 0, 0)},   // old
	}

	facts := FactsFromClaim(claim, history, now)

	if facts.LandSize != 25 || facts.CropType != domain.CropRice {
		t.Errorf("unexpected claim facts: %+v", facts)
	}
	if facts.DescriptionLength != len("flooding") {
		t.Errorf("expected description length %d, got %d", len("flooding"), facts.DescriptionLength)
	}
	if facts.ClaimAgeDays != 10 {
		t.Errorf("expected claim age 10 days, got %v", facts.ClaimAgeDays)
	}
	if facts.HistoryCount != 3 {
		t.Errorf("expected history count 3, got %d", facts.HistoryCount)
	}
	if facts.RecentClaimCount != 2 {
		t.Errorf("expected 2 recent claims, got %d", facts.RecentClaimCount)
	}
}
