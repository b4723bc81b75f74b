package analytics

// Level is a congestion classification.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Thresholds shared by every producer and consumer of congestion levels.
const (
	DensityHighPerHour   = 30.0
	DensityMediumPerHour = 15.0
	OccupancyHighPct     = 70.0
	OccupancyMediumPct   = 40.0

	// TightSpacingMinutes is the minimum gap below which spacing is flagged.
	TightSpacingMinutes = 3.0
	// ImbalancePct is the allowed deviation of the arrival share from 50%.
	ImbalancePct = 30.0
)

// Metric names understood by the explainer and forecaster.
const (
	FieldDensity       = "traffic_density"
	FieldOccupancyPct  = "runway_occupancy_percent"
	FieldMinSpacing    = "min_spacing_minutes"
	FieldArrivalPct    = "arrival_percentage"
	FieldDeparturePct  = "departure_percentage"
	FieldArrivalRate   = "arrival_rate"
	FieldDepartureRate = "departure_rate"
)

// Classify maps a traffic density (movements per hour) and a runway occupancy
// (percent of the window) to a congestion level. It is the only
// classification rule in the system; callers must round their inputs before
// classifying so the reported values reproduce the reported level.
func Classify(densityPerHour, occupancyPct float64) Level {
	switch {
	case densityPerHour > DensityHighPerHour || occupancyPct > OccupancyHighPct:
		return LevelHigh
	case densityPerHour > DensityMediumPerHour || occupancyPct > OccupancyMediumPct:
		return LevelMedium
	default:
		return LevelLow
	}
}

// Score returns the numeric congestion score reported by workers for a level.
func Score(l Level) int {
	switch l {
	case LevelHigh:
		return 9
	case LevelMedium:
		return 5
	default:
		return 2
	}
}
