// Package domain defines the core interfaces and types for AgriGuard.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence. Duplicate and
// history checks operate over the full record set with plain filters;
// callers must not rely on any ordering or uniqueness the schema does not
// declare.
type Repository interface {
	// Claim operations
	SaveClaim(ctx context.Context, claim *Claim) error
	GetClaim(ctx context.Context, claimID string) (*Claim, error)
	ListClaims(ctx context.Context) ([]*Claim, error)
	GetClaimsByFarmer(ctx context.Context, farmerID string) ([]*Claim, error)
	IsDuplicateClaim(ctx context.Context, farmerID, cropType string, damageDate time.Time) (bool, error)

	// Transaction operations
	SaveTransaction(ctx context.Context, tx *Transaction) error
	GetTransaction(ctx context.Context, txID string) (*Transaction, error)
	ListTransactions(ctx context.Context) ([]*Transaction, error)
	GetTransactionByClaimID(ctx context.Context, claimID string) (*Transaction, error)

	// Fraud indicator configuration
	SaveFraudIndicator(ctx context.Context, indicator *FraudIndicator) error
	ListFraudIndicators(ctx context.Context) ([]*FraudIndicator, error)
	DeleteFraudIndicator(ctx context.Context, indicatorID string) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
