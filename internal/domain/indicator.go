package domain

// FraudIndicator is an operator-configured fraud signal: a boolean CEL
// expression over claim facts plus the points it contributes to fraud risk
// when it triggers. Indicators supplement the built-in heuristics; none are
// configured by default.
type FraudIndicator struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Expression  string  `json:"expression"`
	Points      float64 `json:"points"`
	Enabled     bool    `json:"enabled"`
}

// IndicatorResult records a triggered indicator in an AIResult.
type IndicatorResult struct {
	IndicatorID string  `json:"indicatorId"`
	Name        string  `json:"name"`
	Points      float64 `json:"points"`
}
