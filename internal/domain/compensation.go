package domain

// AdjustmentType identifies a named compensation adjustment.
type AdjustmentType string

const (
	AdjustmentReliefBonus  AdjustmentType = "relief_bonus"
	AdjustmentFraudPenalty AdjustmentType = "fraud_penalty"
)

// Adjustment is a single signed correction applied to a compensation total.
type Adjustment struct {
	Type        AdjustmentType `json:"type"`
	Description string         `json:"description"`
	Amount      float64        `json:"amount"`
}

// CompensationBreakdown is the itemized derivation of the payable amount.
// Adjustments are recorded in application order for audit display.
type CompensationBreakdown struct {
	BaseAmount       float64      `json:"baseAmount"`
	BaseRate         float64      `json:"baseRate"`
	LandSize         float64      `json:"landSize"`
	CropType         string       `json:"cropType"`
	DamageScore      float64      `json:"damageScore"`
	DamageAdjusted   float64      `json:"damageAdjusted"`
	CoveragePercent  float64      `json:"coveragePercent"`
	CoverageAdjusted float64      `json:"coverageAdjusted"`
	Adjustments      []Adjustment `json:"adjustments"`
	FinalAmount      float64      `json:"finalAmount"`
	IsHighRiskZone   bool         `json:"isHighRiskZone"`
	FraudRisk        float64      `json:"fraudRisk"`
}
