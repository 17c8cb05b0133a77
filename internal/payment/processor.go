// Package payment executes payouts for approved claims.
//
// Payment execution is simulated but the surrounding protocol is real:
// payee validation, a duplicate-payment guard keyed on the claim, and
// retry semantics that distinguish transient failures from terminal ones.
// Only completed transactions are ever persisted, which is what makes the
// duplicate guard sound.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/agriguard/agriguard/internal/domain"
	"github.com/agriguard/agriguard/internal/repository"
)

var (
	accountNumberRegex = regexp.MustCompile(`^\d{9,18}$`)
	ifscRegex          = regexp.MustCompile(`^[A-Z]{4}0[A-Z0-9]{6}$`)
)

// Gateway latency and failure odds for the simulated payment rail.
const (
	processLatency = 1500 * time.Millisecond
	retryDelay     = 2 * time.Second

	failureRate      = 0.1
	retryFailureRate = 0.2
)

// Result is the outcome of a payment attempt.
type Result struct {
	Success     bool                `json:"success"`
	Transaction *domain.Transaction `json:"transaction,omitempty"`
	Receipt     *domain.Receipt     `json:"receipt,omitempty"`

	Error       string            `json:"error,omitempty"`
	FieldErrors map[string]string `json:"errors,omitempty"`

	// Retryable marks transient failures the caller may retry.
	Retryable bool `json:"retryable,omitempty"`
}

// PayoutSummary aggregates completed payouts for reporting.
type PayoutSummary struct {
	Total        int                   `json:"total"`
	Amount       float64               `json:"amount"`
	Average      float64               `json:"average"`
	Transactions []*domain.Transaction `json:"transactions"`
}

// PayoutFilters narrows a payout summary.
type PayoutFilters struct {
	Region    string
	StartDate time.Time
	EndDate   time.Time
}

// StatusInfo is the payment-status projection for a claim.
type StatusInfo struct {
	Status        domain.PayoutStatus `json:"status"`
	TransactionID string              `json:"transactionId,omitempty"`
	Amount        float64             `json:"amount,omitempty"`
	Date          time.Time           `json:"date,omitempty"`
	Message       string              `json:"message,omitempty"`
}

// Processor executes payouts against the simulated rail.
type Processor struct {
	repo domain.Repository

	mu    sync.Mutex
	r     *rand.Rand
	sleep func(time.Duration)
	now   func() time.Time
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithSeed seeds the failure simulator, for reproducible runs.
func WithSeed(seed int64) ProcessorOption {
	return func(p *Processor) { p.r = rand.New(rand.NewSource(seed)) }
}

// WithSleep overrides the simulated gateway latency.
func WithSleep(sleep func(time.Duration)) ProcessorOption {
	return func(p *Processor) { p.sleep = sleep }
}

// WithClock overrides the time source for transaction timestamps.
func WithClock(now func() time.Time) ProcessorOption {
	return func(p *Processor) { p.now = now }
}

// NewProcessor creates a payment processor.
func NewProcessor(repo domain.Repository, opts ...ProcessorOption) *Processor {
	p := &Processor{
		repo:  repo,
		r:     rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep: time.Sleep,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ValidatePayee checks payee details without mutating them. Returns a
// field-to-message map (empty when valid) and the sanitized details.
func ValidatePayee(payee *domain.PayeeDetails) (map[string]string, *domain.PayeeDetails) {
	errs := make(map[string]string)
	sanitized := &domain.PayeeDetails{}

	account := strings.ReplaceAll(payee.AccountNumber, " ", "")
	switch {
	case payee.AccountNumber == "":
		errs["accountNumber"] = "Account number is required"
	case !accountNumberRegex.MatchString(account):
		errs["accountNumber"] = "Account number must be 9-18 digits"
	default:
		sanitized.AccountNumber = account
	}

	// IFSC is optional but validated when present.
	if payee.IFSCCode != "" {
		ifsc := strings.ToUpper(strings.ReplaceAll(payee.IFSCCode, " ", ""))
		if !ifscRegex.MatchString(ifsc) {
			errs["ifscCode"] = "Invalid IFSC code format (e.g., SBIN0001234)"
		} else {
			sanitized.IFSCCode = ifsc
		}
	}

	holder := strings.TrimSpace(payee.AccountHolder)
	if len(holder) < 2 {
		errs["accountHolder"] = "Account holder name is required"
	} else {
		sanitized.AccountHolder = holder
	}

	return errs, sanitized
}

// MaskAccountNumber reduces an account number to its last four digits.
func MaskAccountNumber(accountNumber string) string {
	if len(accountNumber) < 4 {
		return "****"
	}
	return "XXXX" + accountNumber[len(accountNumber)-4:]
}

// ProcessPayment executes a payout for a claim. The claim is only updated
// and the transaction only persisted on success; a transient gateway
// failure leaves no trace and is marked retryable.
func (p *Processor) ProcessPayment(ctx context.Context, claim *domain.Claim, comp *domain.CompensationBreakdown, payee *domain.PayeeDetails) (*Result, error) {
	fieldErrs, sanitized := ValidatePayee(payee)
	if len(fieldErrs) > 0 {
		return &Result{
			Success:     false,
			Error:       "Validation failed",
			FieldErrors: fieldErrs,
		}, nil
	}

	dup, err := p.isDuplicate(ctx, claim.ID)
	if err != nil {
		return nil, err
	}
	if dup {
		return &Result{
			Success: false,
			Error:   "Payment has already been processed for this claim",
		}, nil
	}

	p.sleep(processLatency)

	if p.roll() < failureRate {
		slog.Warn("payment gateway failure",
			"claim_id", claim.ID,
			"retryable", true,
		)
		return &Result{
			Success:   false,
			Error:     "Payment processing failed. Please try again.",
			Retryable: true,
		}, nil
	}

	now := p.now().UTC()
	tx := &domain.Transaction{
		ID:            newTransactionID(),
		ClaimID:       claim.ID,
		FarmerID:      claim.FarmerID,
		FarmerName:    claim.FarmerName,
		CropType:      domain.CropDisplayName(claim.CropType),
		LandSize:      claim.LandSize,
		BankAccount:   MaskAccountNumber(sanitized.AccountNumber),
		AccountHolder: sanitized.AccountHolder,
		IFSCCode:      sanitized.IFSCCode,
		Amount:        comp.FinalAmount,
		Breakdown:     comp,
		Status:        domain.TransactionCompleted,
		Date:          now,
		ProcessedAt:   now,
	}

	if err := p.repo.SaveTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to save transaction: %w", err)
	}

	claim.Status = domain.ClaimApproved
	claim.PayoutStatus = domain.PayoutCompleted
	claim.TransactionID = tx.ID
	claim.PayoutAmount = comp.FinalAmount
	claim.UpdatedAt = now
	if err := p.repo.SaveClaim(ctx, claim); err != nil {
		return nil, fmt.Errorf("failed to update claim: %w", err)
	}

	slog.Info("payment completed",
		"claim_id", claim.ID,
		"transaction_id", tx.ID,
		"amount", tx.Amount,
	)

	return &Result{
		Success:     true,
		Transaction: tx,
		Receipt:     tx.ToReceipt(),
	}, nil
}

// RetryPayment re-attempts a payout after a transient failure. The retry
// waits out a constant backoff, and a failure at this stage is terminal.
func (p *Processor) RetryPayment(ctx context.Context, claim *domain.Claim, comp *domain.CompensationBreakdown, payee *domain.PayeeDetails) (*Result, error) {
	pause := backoff.NewConstantBackOff(retryDelay)
	p.sleep(pause.NextBackOff())

	if p.roll() < retryFailureRate {
		slog.Warn("payment retry failed",
			"claim_id", claim.ID,
			"retryable", false,
		)
		return &Result{
			Success:   false,
			Error:     "Payment still failing. Please contact support.",
			Retryable: false,
		}, nil
	}

	return p.ProcessPayment(ctx, claim, comp, payee)
}

// PaymentStatus projects a claim's payout state.
func (p *Processor) PaymentStatus(ctx context.Context, claimID string) (*StatusInfo, error) {
	claim, err := p.repo.GetClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}

	switch claim.PayoutStatus {
	case domain.PayoutCompleted:
		info := &StatusInfo{
			Status: domain.PayoutCompleted,
			Amount: claim.PayoutAmount,
		}
		tx, err := p.repo.GetTransactionByClaimID(ctx, claimID)
		if err == nil && tx != nil {
			info.TransactionID = tx.ID
			info.Date = tx.ProcessedAt
		} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return info, nil

	case domain.PayoutProcessing:
		return &StatusInfo{
			Status:  domain.PayoutProcessing,
			Message: "Payment is being processed",
		}, nil

	default:
		return &StatusInfo{
			Status:  domain.PayoutPending,
			Message: "Payment not yet initiated",
		}, nil
	}
}

// TotalPayouts aggregates completed payouts, optionally filtered by the
// claim's region and the transaction date range.
func (p *Processor) TotalPayouts(ctx context.Context, filters PayoutFilters) (*PayoutSummary, error) {
	transactions, err := p.repo.ListTransactions(ctx)
	if err != nil {
		return nil, err
	}

	var regionClaims map[string]bool
	if filters.Region != "" {
		claims, err := p.repo.ListClaims(ctx)
		if err != nil {
			return nil, err
		}
		regionClaims = make(map[string]bool)
		for _, c := range claims {
			if c.Region == filters.Region {
				regionClaims[c.ID] = true
			}
		}
	}

	filtered := make([]*domain.Transaction, 0, len(transactions))
	var amount float64
	for _, tx := range transactions {
		if tx.Status != domain.TransactionCompleted {
			continue
		}
		if regionClaims != nil && !regionClaims[tx.ClaimID] {
			continue
		}
		if !filters.StartDate.IsZero() && tx.Date.Before(filters.StartDate) {
			continue
		}
		if !filters.EndDate.IsZero() && tx.Date.After(filters.EndDate) {
			continue
		}
		filtered = append(filtered, tx)
		amount += tx.Amount
	}

	summary := &PayoutSummary{
		Total:        len(filtered),
		Amount:       amount,
		Transactions: filtered,
	}
	if len(filtered) > 0 {
		summary.Average = amount / float64(len(filtered))
	}

	return summary, nil
}

func (p *Processor) isDuplicate(ctx context.Context, claimID string) (bool, error) {
	tx, err := p.repo.GetTransactionByClaimID(ctx, claimID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return tx != nil && tx.Status == domain.TransactionCompleted, nil
}

func (p *Processor) roll() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.r.Float64()
}

func newTransactionID() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return "TXN-" + raw[:12]
}
