package scoring

// Fixed lookup tables backing the scoring signals. Severities and risks are
// normalized to [0,1].

// soilRisks maps soil types to their inherent crop-loss risk.
var soilRisks = map[string]float64{
	"Clay":   0.3,
	"Sandy":  0.4,
	"Loamy":  0.2,
	"Silty":  0.25,
	"Peaty":  0.35,
	"Chalky": 0.45,
}

// regionSoil maps each district/zone to its dominant soil type.
var regionSoil = map[string]string{
	"North District":   "Loamy",
	"South District":   "Clay",
	"East District":    "Sandy",
	"West District":    "Silty",
	"Central District": "Loamy",
	"Coastal Region":   "Silty",
	"Hill Region":      "Peaty",
	"Plain Region":     "Sandy",
}

// cropVulnerability maps each crop to its per-hazard vulnerability.
var cropVulnerability = map[string]map[string]float64{
	"wheat":     {"drought": 0.9, "flood": 0.7, "storm": 0.4, "heatwave": 0.85},
	"rice":      {"drought": 0.3, "flood": 0.9, "storm": 0.6, "heatwave": 0.5},
	"cotton":    {"drought": 0.7, "flood": 0.5, "storm": 0.3, "heatwave": 0.8},
	"corn":      {"drought": 0.8, "flood": 0.6, "storm": 0.5, "heatwave": 0.85},
	"soybean":   {"drought": 0.7, "flood": 0.65, "storm": 0.45, "heatwave": 0.75},
	"sugarcane": {"drought": 0.6, "flood": 0.5, "storm": 0.35, "heatwave": 0.7},
}

// hazardKeys are the columns of the vulnerability table.
var hazardKeys = []string{"drought", "flood", "storm", "heatwave"}

type season struct {
	Name     string
	Severity float64
}

// seasonTable is the expected seasonal weather severity by calendar month
// (January first), reflecting regional monsoon and season patterns.
var seasonTable = [12]season{
	{"Winter", 0.3},
	{"Winter", 0.2},
	{"Spring", 0.3},
	{"Spring", 0.4},
	{"Summer", 0.7},
	{"Summer", 0.8},
	{"Monsoon", 0.85},
	{"Monsoon", 0.9},
	{"Monsoon", 0.8},
	{"Autumn", 0.4},
	{"Autumn", 0.3},
	{"Winter", 0.25},
}

// seasonHazards maps each season to its dominant hazard type, used for the
// crop vulnerability bonus in weather matching. Winter's dominant hazard
// (frost) has no vulnerability column, so winter claims earn no bonus.
var seasonHazards = map[string]string{
	"Winter":  "frost",
	"Spring":  "storm",
	"Summer":  "heatwave",
	"Monsoon": "flood",
	"Autumn":  "drought",
}
