package repository

// Schema definitions for the AgriGuard database.
// Compatible with both SQLite and PostgreSQL.

const schemaClaims = `
CREATE TABLE IF NOT EXISTS claims (
    id TEXT PRIMARY KEY,
    farmer_id TEXT NOT NULL,
    farmer_name TEXT NOT NULL,
    crop_type TEXT NOT NULL,
    land_size REAL NOT NULL,
    coverage_percent REAL NOT NULL,
    region TEXT NOT NULL,
    damage_date TIMESTAMP NOT NULL,
    description TEXT,
    image_count INTEGER NOT NULL DEFAULT 0,
    bank_account TEXT,
    ifsc_code TEXT,
    account_holder TEXT,
    status TEXT NOT NULL,
    ai_result TEXT,
    payout_status TEXT,
    transaction_id TEXT,
    payout_amount REAL NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_claims_farmer ON claims(farmer_id);
CREATE INDEX IF NOT EXISTS idx_claims_status ON claims(status);
CREATE INDEX IF NOT EXISTS idx_claims_damage_date ON claims(farmer_id, crop_type, damage_date);
CREATE INDEX IF NOT EXISTS idx_claims_created ON claims(created_at);
`

const schemaTransactions = `
CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    claim_id TEXT NOT NULL,
    farmer_id TEXT NOT NULL,
    farmer_name TEXT NOT NULL,
    crop_type TEXT NOT NULL,
    land_size REAL NOT NULL,
    bank_account TEXT NOT NULL,
    account_holder TEXT,
    ifsc_code TEXT,
    amount REAL NOT NULL,
    breakdown TEXT,
    status TEXT NOT NULL,
    date TIMESTAMP NOT NULL,
    processed_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_claim ON transactions(claim_id);
CREATE INDEX IF NOT EXISTS idx_transactions_farmer ON transactions(farmer_id);
CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(date);
`

const schemaFraudIndicators = `
CREATE TABLE IF NOT EXISTS fraud_indicators (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    expression TEXT NOT NULL,
    points REAL NOT NULL DEFAULT 0,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fraud_indicators_enabled ON fraud_indicators(enabled);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaClaims,
		schemaTransactions,
		schemaFraudIndicators,
	}
}
