package domain

import (
	"time"
)

// ClaimStatus is the lifecycle state of a claim.
type ClaimStatus string

const (
	ClaimPending  ClaimStatus = "pending"
	ClaimReview   ClaimStatus = "review"
	ClaimApproved ClaimStatus = "approved"
	ClaimRejected ClaimStatus = "rejected"
)

// PayoutStatus tracks the payment state of an approved claim.
type PayoutStatus string

const (
	PayoutPending    PayoutStatus = "pending"
	PayoutProcessing PayoutStatus = "processing"
	PayoutCompleted  PayoutStatus = "completed"
	PayoutFailed     PayoutStatus = "failed"
)

// Supported crop types.
const (
	CropWheat     = "wheat"
	CropRice      = "rice"
	CropCotton    = "cotton"
	CropCorn      = "corn"
	CropSoybean   = "soybean"
	CropSugarcane = "sugarcane"
)

// CropNames maps crop identifiers to display names.
var CropNames = map[string]string{
	CropWheat:     "Wheat",
	CropRice:      "Rice",
	CropCotton:    "Cotton",
	CropCorn:      "Corn",
	CropSoybean:   "Soybean",
	CropSugarcane: "Sugarcane",
}

// Regions is the fixed list of districts and zones claims can reference.
var Regions = []string{
	"North District",
	"South District",
	"East District",
	"West District",
	"Central District",
	"Coastal Region",
	"Hill Region",
	"Plain Region",
}

// HighRiskZones are regions eligible for the relief bonus.
var HighRiskZones = []string{"Coastal Region", "Hill Region"}

// IsSupportedCrop reports whether cropType is a known crop.
func IsSupportedCrop(cropType string) bool {
	_, ok := CropNames[cropType]
	return ok
}

// IsKnownRegion reports whether region is one of the fixed districts/zones.
func IsKnownRegion(region string) bool {
	for _, r := range Regions {
		if r == region {
			return true
		}
	}
	return false
}

// IsHighRiskZone reports whether region qualifies for the relief bonus.
func IsHighRiskZone(region string) bool {
	for _, z := range HighRiskZones {
		if z == region {
			return true
		}
	}
	return false
}

// CropDisplayName returns the display name for a crop, falling back to
// the raw identifier for unknown crops.
func CropDisplayName(cropType string) string {
	if name, ok := CropNames[cropType]; ok {
		return name
	}
	return cropType
}

// Claim represents a farmer's request for crop-damage compensation.
type Claim struct {
	ID         string `json:"id"`
	FarmerID   string `json:"farmerId"`
	FarmerName string `json:"farmerName"`

	// Damage details
	CropType        string    `json:"cropType"`
	LandSize        float64   `json:"landSize"` // acres
	CoveragePercent float64   `json:"coveragePercent"`
	Region          string    `json:"region"`
	DamageDate      time.Time `json:"damageDate"`
	Description     string    `json:"description"`
	ImageCount      int       `json:"imageCount"`

	// Payout destination
	BankAccount   string `json:"bankAccount,omitempty"`
	IFSCCode      string `json:"ifscCode,omitempty"`
	AccountHolder string `json:"accountHolder,omitempty"`

	// Evaluation outcome, attached once the staged pipeline completes.
	Status   ClaimStatus `json:"status"`
	AIResult *AIResult   `json:"aiResult,omitempty"`

	// Payout outcome, set by the payment processor on success.
	PayoutStatus  PayoutStatus `json:"payoutStatus,omitempty"`
	TransactionID string       `json:"transactionId,omitempty"`
	PayoutAmount  float64      `json:"payoutAmount,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ClaimRequest is the API request payload for claim submission.
type ClaimRequest struct {
	FarmerID        string  `json:"farmerId"`
	FarmerName      string  `json:"farmerName"`
	CropType        string  `json:"cropType"`
	LandSize        float64 `json:"landSize"`
	CoveragePercent float64 `json:"coveragePercent"`
	Region          string  `json:"region"`
	DamageDate      string  `json:"damageDate"` // YYYY-MM-DD
	Description     string  `json:"description,omitempty"`
	ImageCount      int     `json:"imageCount"`
	BankAccount     string  `json:"bankAccount,omitempty"`
	IFSCCode        string  `json:"ifscCode,omitempty"`
	AccountHolder   string  `json:"accountHolder,omitempty"`
}

// ToClaim converts a request to a Claim domain object.
func (r *ClaimRequest) ToClaim(id string, damageDate time.Time) *Claim {
	now := time.Now().UTC()
	return &Claim{
		ID:              id,
		FarmerID:        r.FarmerID,
		FarmerName:      r.FarmerName,
		CropType:        r.CropType,
		LandSize:        r.LandSize,
		CoveragePercent: r.CoveragePercent,
		Region:          r.Region,
		DamageDate:      damageDate,
		Description:     r.Description,
		ImageCount:      r.ImageCount,
		BankAccount:     r.BankAccount,
		IFSCCode:        r.IFSCCode,
		AccountHolder:   r.AccountHolder,
		Status:          ClaimPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// PayeeDetails is the payout destination submitted with a payment request.
type PayeeDetails struct {
	AccountNumber string `json:"accountNumber"`
	IFSCCode      string `json:"ifscCode,omitempty"`
	AccountHolder string `json:"accountHolder"`
}
