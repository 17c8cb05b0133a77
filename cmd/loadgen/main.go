// Load generator for exercising an AgriGuard instance with synthetic claims.
//
// Usage:
//   go run cmd/loadgen/main.go -url http://localhost:8080 -claims 200
//
// This tool:
//  1. Generates synthetic claims across the supported crops and regions
//  2. Submits each claim, then runs the synchronous evaluation path
//  3. Reports the decision distribution, rejection causes, and latency
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agriguard/agriguard/internal/domain"
)

// Metrics tracks load generation results.
type Metrics struct {
	Submitted  int64
	Rejected4x int64
	Errors     int64

	Approved int64
	Review   int64
	Denied   int64

	SubmitTimeMs   int64
	EvaluateTimeMs int64
}

var crops = []string{
	domain.CropWheat,
	domain.CropRice,
	domain.CropCotton,
	domain.CropCorn,
	domain.CropSoybean,
	domain.CropSugarcane,
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "AgriGuard base URL")
	claimCount := flag.Int("claims", 100, "Number of claims to submit")
	workers := flag.Int("workers", 5, "Number of concurrent workers")
	farmers := flag.Int("farmers", 50, "Size of the synthetic farmer pool")
	evaluate := flag.Bool("evaluate", true, "Run synchronous evaluation after submitting")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	verbose := flag.Bool("verbose", false, "Print each claim result")
	flag.Parse()

	fmt.Println("================================================")
	fmt.Println("  AGRIGUARD LOAD GENERATOR")
	fmt.Println("================================================")
	fmt.Printf("\nTarget URL:  %s\n", *baseURL)
	fmt.Printf("Claims:      %d\n", *claimCount)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Printf("Farmers:     %d\n", *farmers)
	fmt.Printf("Evaluate:    %v\n", *evaluate)
	fmt.Printf("Seed:        %d\n", *seed)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: AgriGuard not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure AgriGuard is running:")
		fmt.Println("  go run cmd/agriguard/main.go")
		os.Exit(1)
	}
	fmt.Println("AgriGuard is healthy")

	requests := generateClaims(*claimCount, *farmers, *seed)

	fmt.Printf("\nSubmitting %d claims with %d workers...\n", len(requests), *workers)
	start := time.Now()
	metrics := run(requests, *baseURL, *workers, *evaluate, *verbose)
	duration := time.Since(start)

	printResults(metrics, duration, *evaluate)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func generateClaims(count, farmerPool int, seed int64) []domain.ClaimRequest {
	r := rand.New(rand.NewSource(seed))
	requests := make([]domain.ClaimRequest, 0, count)

	for i := 0; i < count; i++ {
		farmer := r.Intn(farmerPool)
		// Spread damage dates over the trailing year so duplicate checks
		// rarely collide.
		daysAgo := 1 + r.Intn(364)

		requests = append(requests, domain.ClaimRequest{
			FarmerID:        fmt.Sprintf("farmer-%04d", farmer),
			FarmerName:      fmt.Sprintf("Farmer %04d", farmer),
			CropType:        crops[r.Intn(len(crops))],
			LandSize:        1 + r.Float64()*60,
			CoveragePercent: 40 + r.Float64()*60,
			Region:          domain.Regions[r.Intn(len(domain.Regions))],
			DamageDate:      time.Now().AddDate(0, 0, -daysAgo).Format("2006-01-02"),
			Description:     "Synthetic load test claim reporting substantial crop damage",
			ImageCount:      r.Intn(12),
			BankAccount:     fmt.Sprintf("%012d", r.Int63n(1e12)),
			AccountHolder:   fmt.Sprintf("Farmer %04d", farmer),
		})
	}

	return requests
}

func run(requests []domain.ClaimRequest, baseURL string, numWorkers int, evaluate, verbose bool) *Metrics {
	metrics := &Metrics{}

	work := make(chan domain.ClaimRequest, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 30 * time.Second}

			for req := range work {
				claim, status, elapsed, err := submitClaim(client, baseURL, req)
				atomic.AddInt64(&metrics.SubmitTimeMs, elapsed)

				switch {
				case err != nil:
					atomic.AddInt64(&metrics.Errors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", req.FarmerID, err)
					}
					continue
				case status != http.StatusAccepted:
					atomic.AddInt64(&metrics.Rejected4x, 1)
					if verbose {
						fmt.Printf("REJECTED (%d): %s %s %s\n", status, req.FarmerID, req.CropType, req.DamageDate)
					}
					continue
				}
				atomic.AddInt64(&metrics.Submitted, 1)

				if !evaluate {
					continue
				}

				result, elapsed, err := evaluateClaim(client, baseURL, claim.ID)
				atomic.AddInt64(&metrics.EvaluateTimeMs, elapsed)
				if err != nil {
					atomic.AddInt64(&metrics.Errors, 1)
					continue
				}

				switch result.Decision {
				case domain.DecisionApproved:
					atomic.AddInt64(&metrics.Approved, 1)
				case domain.DecisionReview:
					atomic.AddInt64(&metrics.Review, 1)
				default:
					atomic.AddInt64(&metrics.Denied, 1)
				}

				if verbose {
					fmt.Printf("%-12s | %-10s | %-16s | score %6.1f | %s\n",
						req.FarmerID, req.CropType, req.Region, result.FinalScore, result.Decision)
				}
			}
		}()
	}

	for _, req := range requests {
		work <- req
	}
	close(work)

	wg.Wait()

	return metrics
}

func submitClaim(client *http.Client, baseURL string, req domain.ClaimRequest) (*domain.Claim, int, int64, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, 0, 0, err
	}

	start := time.Now()
	resp, err := client.Post(baseURL+"/claims", "application/json", bytes.NewReader(body))
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		return nil, 0, elapsed, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return nil, resp.StatusCode, elapsed, nil
	}

	var claim domain.Claim
	if err := json.NewDecoder(resp.Body).Decode(&claim); err != nil {
		return nil, resp.StatusCode, elapsed, err
	}
	return &claim, resp.StatusCode, elapsed, nil
}

func evaluateClaim(client *http.Client, baseURL, claimID string) (*domain.AIResult, int64, error) {
	start := time.Now()
	resp, err := client.Post(baseURL+"/claims/"+claimID+"/evaluate", "application/json", nil)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		return nil, elapsed, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, elapsed, fmt.Errorf("status %d", resp.StatusCode)
	}

	var claim domain.Claim
	if err := json.NewDecoder(resp.Body).Decode(&claim); err != nil {
		return nil, elapsed, err
	}
	if claim.AIResult == nil {
		return nil, elapsed, fmt.Errorf("no result on evaluated claim")
	}
	return claim.AIResult, elapsed, nil
}

func printResults(m *Metrics, duration time.Duration, evaluated bool) {
	fmt.Println("\n================================================")
	fmt.Println("  RESULTS")
	fmt.Println("================================================")

	fmt.Printf("\nSUBMISSIONS\n")
	fmt.Printf("   Accepted:   %d\n", m.Submitted)
	fmt.Printf("   Rejected:   %d  (validation / duplicate / throttle)\n", m.Rejected4x)
	fmt.Printf("   Errors:     %d\n", m.Errors)

	if evaluated {
		total := m.Approved + m.Review + m.Denied
		fmt.Printf("\nDECISIONS\n")
		if total > 0 {
			fmt.Printf("   Approved:   %d (%.1f%%)\n", m.Approved, 100*float64(m.Approved)/float64(total))
			fmt.Printf("   Review:     %d (%.1f%%)\n", m.Review, 100*float64(m.Review)/float64(total))
			fmt.Printf("   Rejected:   %d (%.1f%%)\n", m.Denied, 100*float64(m.Denied)/float64(total))
		} else {
			fmt.Println("   (no claims evaluated)")
		}
	}

	fmt.Printf("\nPERFORMANCE\n")
	fmt.Printf("   Total Duration:  %v\n", duration.Round(time.Millisecond))
	if m.Submitted > 0 {
		fmt.Printf("   Avg Submit:      %.2f ms\n", float64(m.SubmitTimeMs)/float64(m.Submitted))
		if evaluated {
			fmt.Printf("   Avg Evaluate:    %.2f ms\n", float64(m.EvaluateTimeMs)/float64(m.Submitted))
		}
		fmt.Printf("   Throughput:      %.2f claims/sec\n", float64(m.Submitted)/duration.Seconds())
	}

	fmt.Println()
}
