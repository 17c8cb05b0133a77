// Package signal provides the external evidence sources consumed by
// scoring: weather observations and damage-photo analysis. Both are
// simulated implementations standing in for real provider integrations.
package signal

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/agriguard/agriguard/internal/domain"
)

// snapshotTTL is how long a regional snapshot stays valid in the cache.
const snapshotTTL = 30 * time.Minute

// fetchLatency models the round trip to a weather provider.
const fetchLatency = 100 * time.Millisecond

type weatherCondition struct {
	Name     string
	Severity float64
}

// weatherConditions the simulator can generate. The last entry (Normal) is
// excluded from random generation so simulated claims always coincide with
// an adverse event.
var weatherConditions = []weatherCondition{
	{"Drought", 0.9},
	{"Flood", 0.85},
	{"Heavy Rain", 0.6},
	{"Storm", 0.5},
	{"Heatwave", 0.8},
	{"Frost", 0.75},
	{"Normal", 0.1},
}

// WeatherService is a simulated domain.WeatherProvider. Snapshot consults
// the shared cache first and synthesizes an observation on a miss; Instant
// always synthesizes without touching the cache.
type WeatherService struct {
	cache domain.Cache

	mu    sync.Mutex
	r     *rand.Rand
	sleep func(time.Duration)
}

// WeatherOption configures a WeatherService.
type WeatherOption func(*WeatherService)

// WithWeatherSeed seeds the condition generator, for reproducible runs.
func WithWeatherSeed(seed int64) WeatherOption {
	return func(s *WeatherService) { s.r = rand.New(rand.NewSource(seed)) }
}

// WithWeatherSleep overrides the simulated fetch latency.
func WithWeatherSleep(sleep func(time.Duration)) WeatherOption {
	return func(s *WeatherService) { s.sleep = sleep }
}

// NewWeatherService creates a simulated weather provider backed by cache.
func NewWeatherService(cache domain.Cache, opts ...WeatherOption) *WeatherService {
	s := &WeatherService{
		cache: cache,
		r:     rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep: time.Sleep,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns the cached snapshot for a region, synthesizing and
// caching a fresh one on a miss. Cache failures degrade to uncached
// generation rather than failing the evaluation.
func (s *WeatherService) Snapshot(ctx context.Context, region string) (*domain.WeatherSnapshot, error) {
	if s.cache != nil {
		snap, err := s.cache.GetSnapshot(ctx, region)
		if err != nil {
			slog.Warn("weather cache lookup failed", "region", region, "error", err)
		} else if snap != nil {
			return snap, nil
		}
	}

	s.sleep(fetchLatency)

	snap := s.generate()

	if s.cache != nil {
		if err := s.cache.SetSnapshot(ctx, region, snap, snapshotTTL); err != nil {
			slog.Warn("weather cache store failed", "region", region, "error", err)
		}
	}

	return snap, nil
}

// Instant synthesizes a snapshot immediately, bypassing the cache.
func (s *WeatherService) Instant(region string) *domain.WeatherSnapshot {
	_ = region
	return s.generate()
}

func (s *WeatherService) generate() *domain.WeatherSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Skip the trailing Normal entry.
	cond := weatherConditions[s.r.Intn(len(weatherConditions)-1)]

	return &domain.WeatherSnapshot{
		Condition:   cond.Name,
		Severity:    cond.Severity,
		Humidity:    int(math.Round(40 + s.r.Float64()*50)),
		Temperature: int(math.Round(20 + s.r.Float64()*20)),
		WindSpeed:   int(math.Round(5 + s.r.Float64()*25)),
		Rainfall:    int(math.Round(s.r.Float64() * 100)),
	}
}
