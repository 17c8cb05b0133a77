package domain

import (
	"time"
)

// TransactionStatus is the terminal state of a payout transaction.
type TransactionStatus string

const (
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
)

// Transaction is the persisted record of a completed payout. It is created
// once, on payment success, and never mutated afterwards.
type Transaction struct {
	ID         string `json:"id"`
	ClaimID    string `json:"claimId"`
	FarmerID   string `json:"farmerId"`
	FarmerName string `json:"farmerName"`

	CropType string  `json:"cropType"` // display name
	LandSize float64 `json:"landSize"`

	// BankAccount is stored masked to the last 4 digits.
	BankAccount   string `json:"bankAccount"`
	AccountHolder string `json:"accountHolder"`
	IFSCCode      string `json:"ifscCode,omitempty"`

	Amount    float64                `json:"amount"`
	Breakdown *CompensationBreakdown `json:"breakdown,omitempty"`

	Status      TransactionStatus `json:"status"`
	Date        time.Time         `json:"date"`
	ProcessedAt time.Time         `json:"processedAt"`
}

// Receipt is the display projection of a transaction returned to callers
// on payment success.
type Receipt struct {
	TransactionID string    `json:"transactionId"`
	ClaimID       string    `json:"claimId"`
	FarmerName    string    `json:"farmerName"`
	CropType      string    `json:"cropType"`
	LandSize      float64   `json:"landSize"`
	BankAccount   string    `json:"bankAccount"`
	Amount        float64   `json:"amount"`
	Date          time.Time `json:"date"`
}

// ToReceipt builds the receipt projection for a transaction.
func (t *Transaction) ToReceipt() *Receipt {
	return &Receipt{
		TransactionID: t.ID,
		ClaimID:       t.ClaimID,
		FarmerName:    t.FarmerName,
		CropType:      t.CropType,
		LandSize:      t.LandSize,
		BankAccount:   t.BankAccount,
		Amount:        t.Amount,
		Date:          t.Date,
	}
}
