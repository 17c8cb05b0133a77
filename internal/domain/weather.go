package domain

import (
	"context"
)

// WeatherSnapshot is an opaque weather observation for a region.
// Severity is normalized to [0,1].
type WeatherSnapshot struct {
	Condition   string  `json:"condition"`
	Severity    float64 `json:"severity"`
	Humidity    int     `json:"humidity"`
	Temperature int     `json:"temperature"`
	WindSpeed   int     `json:"windSpeed"`
	Rainfall    int     `json:"rainfall"`
}

// WeatherProvider supplies weather snapshots for a region.
//
// Snapshot is the cached session path: implementations may hold a snapshot
// per region for the lifetime of the session and may incur latency on a miss.
// Instant generates an immediate, uncached snapshot; the two paths are not
// guaranteed to agree.
type WeatherProvider interface {
	Snapshot(ctx context.Context, region string) (*WeatherSnapshot, error)
	Instant(region string) *WeatherSnapshot
}

// ImageAnalysis is the result of analyzing a single damage photo.
type ImageAnalysis struct {
	HasDamage        bool     `json:"hasDamage"`
	DamagePercentage int      `json:"damagePercentage"`
	Confidence       int      `json:"confidence"`
	DetectedFeatures []string `json:"detectedFeatures"`
}

// ImageAnalyzer estimates crop damage from an image. Real implementations
// may call a vision model; the simulated one is used for development.
type ImageAnalyzer interface {
	AnalyzeImage(ctx context.Context, image []byte) (*ImageAnalysis, error)
}
