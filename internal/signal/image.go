package signal

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/agriguard/agriguard/internal/domain"
)

// analysisLatency models the round trip to a vision model.
const analysisLatency = 500 * time.Millisecond

var damageFeatures = []string{
	"Leaf discoloration",
	"Wilting patterns",
	"Unusual growth patterns",
}

var healthyFeatures = []string{
	"Healthy foliage",
	"Normal coloration",
}

// ImageService is a simulated domain.ImageAnalyzer. It does not inspect the
// image bytes; it synthesizes a plausible analysis with model-like latency.
type ImageService struct {
	mu    sync.Mutex
	r     *rand.Rand
	sleep func(time.Duration)
}

// ImageOption configures an ImageService.
type ImageOption func(*ImageService)

// WithImageSeed seeds the analysis generator, for reproducible runs.
func WithImageSeed(seed int64) ImageOption {
	return func(s *ImageService) { s.r = rand.New(rand.NewSource(seed)) }
}

// WithImageSleep overrides the simulated analysis latency.
func WithImageSleep(sleep func(time.Duration)) ImageOption {
	return func(s *ImageService) { s.sleep = sleep }
}

// NewImageService creates a simulated image analyzer.
func NewImageService(opts ...ImageOption) *ImageService {
	s := &ImageService{
		r:     rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep: time.Sleep,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AnalyzeImage synthesizes a damage analysis. Roughly four in five images
// show damage.
func (s *ImageService) AnalyzeImage(ctx context.Context, image []byte) (*domain.ImageAnalysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.sleep(analysisLatency)

	s.mu.Lock()
	defer s.mu.Unlock()

	hasDamage := s.r.Float64() > 0.2

	var pct int
	features := healthyFeatures
	if hasDamage {
		pct = int(math.Round(20 + s.r.Float64()*70))
		features = damageFeatures
	} else {
		pct = int(math.Round(s.r.Float64() * 15))
	}

	return &domain.ImageAnalysis{
		HasDamage:        hasDamage,
		DamagePercentage: pct,
		Confidence:       int(math.Round(70 + s.r.Float64()*25)),
		DetectedFeatures: features,
	}, nil
}
