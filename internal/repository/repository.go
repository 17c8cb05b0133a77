// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/agriguard/agriguard/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveClaim inserts or updates a claim. The claim's AI result is stored as
// a JSON document alongside the scalar columns.
func (r *SQLRepository) SaveClaim(ctx context.Context, claim *domain.Claim) error {
	if claim == nil || claim.ID == "" {
		return fmt.Errorf("%w: claim ID is required", ErrInvalidInput)
	}

	var aiResult []byte
	if claim.AIResult != nil {
		var err error
		aiResult, err = json.Marshal(claim.AIResult)
		if err != nil {
			return fmt.Errorf("failed to encode AI result: %w", err)
		}
	}

	query := `
		INSERT INTO claims (
			id, farmer_id, farmer_name, crop_type, land_size,
			coverage_percent, region, damage_date, description, image_count,
			bank_account, ifsc_code, account_holder,
			status, ai_result, payout_status, transaction_id, payout_amount,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			ai_result = excluded.ai_result,
			payout_status = excluded.payout_status,
			transaction_id = excluded.transaction_id,
			payout_amount = excluded.payout_amount,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		claim.ID, claim.FarmerID, claim.FarmerName,
		claim.CropType, claim.LandSize,
		claim.CoveragePercent, claim.Region, claim.DamageDate,
		claim.Description, claim.ImageCount,
		claim.BankAccount, claim.IFSCCode, claim.AccountHolder,
		string(claim.Status), nullableText(aiResult),
		string(claim.PayoutStatus), claim.TransactionID, claim.PayoutAmount,
		claim.CreatedAt, claim.UpdatedAt,
	)
	return err
}

// GetClaim retrieves a claim by ID.
func (r *SQLRepository) GetClaim(ctx context.Context, claimID string) (*domain.Claim, error) {
	if claimID == "" {
		return nil, fmt.Errorf("%w: claim ID is required", ErrInvalidInput)
	}

	query := selectClaim + ` WHERE id = ?`

	row := r.db.QueryRowContext(ctx, r.rebind(query), claimID)
	claim, err := scanClaim(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return claim, err
}

// ListClaims retrieves all claims, newest first.
func (r *SQLRepository) ListClaims(ctx context.Context) ([]*domain.Claim, error) {
	query := selectClaim + ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectClaims(rows)
}

// GetClaimsByFarmer retrieves a farmer's claim history, newest first.
func (r *SQLRepository) GetClaimsByFarmer(ctx context.Context, farmerID string) ([]*domain.Claim, error) {
	if farmerID == "" {
		return nil, fmt.Errorf("%w: farmer ID is required", ErrInvalidInput)
	}

	query := selectClaim + ` WHERE farmer_id = ? ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), farmerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectClaims(rows)
}

// IsDuplicateClaim reports whether the farmer already has a non-rejected
// claim for the same crop and damage date.
func (r *SQLRepository) IsDuplicateClaim(ctx context.Context, farmerID, cropType string, damageDate time.Time) (bool, error) {
	if farmerID == "" {
		return false, fmt.Errorf("%w: farmer ID is required", ErrInvalidInput)
	}

	query := `
		SELECT COUNT(*)
		FROM claims
		WHERE farmer_id = ? AND crop_type = ? AND damage_date = ? AND status != ?
	`

	var count int
	err := r.db.QueryRowContext(ctx, r.rebind(query),
		farmerID, cropType, damageDate, string(domain.ClaimRejected),
	).Scan(&count)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// SaveTransaction stores a completed payout transaction.
func (r *SQLRepository) SaveTransaction(ctx context.Context, tx *domain.Transaction) error {
	if tx == nil || tx.ID == "" {
		return fmt.Errorf("%w: transaction ID is required", ErrInvalidInput)
	}

	var breakdown []byte
	if tx.Breakdown != nil {
		var err error
		breakdown, err = json.Marshal(tx.Breakdown)
		if err != nil {
			return fmt.Errorf("failed to encode breakdown: %w", err)
		}
	}

	query := `
		INSERT INTO transactions (
			id, claim_id, farmer_id, farmer_name, crop_type, land_size,
			bank_account, account_holder, ifsc_code,
			amount, breakdown, status, date, processed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		tx.ID, tx.ClaimID, tx.FarmerID, tx.FarmerName,
		tx.CropType, tx.LandSize,
		tx.BankAccount, tx.AccountHolder, tx.IFSCCode,
		tx.Amount, nullableText(breakdown),
		string(tx.Status), tx.Date, tx.ProcessedAt,
	)
	return err
}

// GetTransaction retrieves a transaction by ID.
func (r *SQLRepository) GetTransaction(ctx context.Context, txID string) (*domain.Transaction, error) {
	if txID == "" {
		return nil, fmt.Errorf("%w: transaction ID is required", ErrInvalidInput)
	}

	query := selectTransaction + ` WHERE id = ?`

	row := r.db.QueryRowContext(ctx, r.rebind(query), txID)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return tx, err
}

// ListTransactions retrieves all transactions, newest first.
func (r *SQLRepository) ListTransactions(ctx context.Context) ([]*domain.Transaction, error) {
	query := selectTransaction + ` ORDER BY date DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []*domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}

	return transactions, rows.Err()
}

// GetTransactionByClaimID retrieves the transaction for a claim, if any.
// This backs the duplicate-payment guard.
func (r *SQLRepository) GetTransactionByClaimID(ctx context.Context, claimID string) (*domain.Transaction, error) {
	if claimID == "" {
		return nil, fmt.Errorf("%w: claim ID is required", ErrInvalidInput)
	}

	query := selectTransaction + ` WHERE claim_id = ? ORDER BY date DESC LIMIT 1`

	row := r.db.QueryRowContext(ctx, r.rebind(query), claimID)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return tx, err
}

// SaveFraudIndicator inserts or updates a fraud indicator configuration.
func (r *SQLRepository) SaveFraudIndicator(ctx context.Context, indicator *domain.FraudIndicator) error {
	if indicator == nil || indicator.ID == "" {
		return fmt.Errorf("%w: indicator ID is required", ErrInvalidInput)
	}

	enabled := 0
	if indicator.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO fraud_indicators (
			id, name, description, expression, points, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			points = excluded.points,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		indicator.ID, indicator.Name, indicator.Description,
		indicator.Expression, indicator.Points, enabled,
		now, now,
	)
	return err
}

// ListFraudIndicators retrieves all fraud indicator configurations.
func (r *SQLRepository) ListFraudIndicators(ctx context.Context) ([]*domain.FraudIndicator, error) {
	query := `
		SELECT id, name, description, expression, points, enabled
		FROM fraud_indicators
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var indicators []*domain.FraudIndicator
	for rows.Next() {
		var ind domain.FraudIndicator
		var enabled int

		if err := rows.Scan(
			&ind.ID, &ind.Name, &ind.Description,
			&ind.Expression, &ind.Points, &enabled,
		); err != nil {
			return nil, err
		}

		ind.Enabled = enabled == 1
		indicators = append(indicators, &ind)
	}

	return indicators, rows.Err()
}

// DeleteFraudIndicator removes a fraud indicator configuration.
func (r *SQLRepository) DeleteFraudIndicator(ctx context.Context, indicatorID string) error {
	if indicatorID == "" {
		return fmt.Errorf("%w: indicator ID is required", ErrInvalidInput)
	}

	query := `DELETE FROM fraud_indicators WHERE id = ?`

	result, err := r.db.ExecContext(ctx, r.rebind(query), indicatorID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

const selectClaim = `
	SELECT id, farmer_id, farmer_name, crop_type, land_size,
		   coverage_percent, region, damage_date, description, image_count,
		   bank_account, ifsc_code, account_holder,
		   status, ai_result, payout_status, transaction_id, payout_amount,
		   created_at, updated_at
	FROM claims`

const selectTransaction = `
	SELECT id, claim_id, farmer_id, farmer_name, crop_type, land_size,
		   bank_account, account_holder, ifsc_code,
		   amount, breakdown, status, date, processed_at
	FROM transactions`

// scanner abstracts sql.Row and sql.Rows for the shared scan helpers.
type scanner interface {
	Scan(dest ...any) error
}

func scanClaim(s scanner) (*domain.Claim, error) {
	var claim domain.Claim
	var status, payoutStatus string
	var aiResult sql.NullString

	err := s.Scan(
		&claim.ID, &claim.FarmerID, &claim.FarmerName,
		&claim.CropType, &claim.LandSize,
		&claim.CoveragePercent, &claim.Region, &claim.DamageDate,
		&claim.Description, &claim.ImageCount,
		&claim.BankAccount, &claim.IFSCCode, &claim.AccountHolder,
		&status, &aiResult,
		&payoutStatus, &claim.TransactionID, &claim.PayoutAmount,
		&claim.CreatedAt, &claim.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	claim.Status = domain.ClaimStatus(status)
	claim.PayoutStatus = domain.PayoutStatus(payoutStatus)

	if aiResult.Valid && aiResult.String != "" {
		var result domain.AIResult
		if err := json.Unmarshal([]byte(aiResult.String), &result); err != nil {
			return nil, fmt.Errorf("failed to parse AI result for claim %s: %w", claim.ID, err)
		}
		claim.AIResult = &result
	}

	return &claim, nil
}

func collectClaims(rows *sql.Rows) ([]*domain.Claim, error) {
	var claims []*domain.Claim
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		claims = append(claims, claim)
	}
	return claims, rows.Err()
}

func scanTransaction(s scanner) (*domain.Transaction, error) {
	var tx domain.Transaction
	var status string
	var breakdown sql.NullString

	err := s.Scan(
		&tx.ID, &tx.ClaimID, &tx.FarmerID, &tx.FarmerName,
		&tx.CropType, &tx.LandSize,
		&tx.BankAccount, &tx.AccountHolder, &tx.IFSCCode,
		&tx.Amount, &breakdown,
		&status, &tx.Date, &tx.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}

	tx.Status = domain.TransactionStatus(status)

	if breakdown.Valid && breakdown.String != "" {
		var bd domain.CompensationBreakdown
		if err := json.Unmarshal([]byte(breakdown.String), &bd); err != nil {
			return nil, fmt.Errorf("failed to parse breakdown for transaction %s: %w", tx.ID, err)
		}
		tx.Breakdown = &bd
	}

	return &tx, nil
}

func nullableText(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
