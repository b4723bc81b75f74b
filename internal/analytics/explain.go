package analytics

import (
	"fmt"
	"math"
)

// Explanation is a human-readable rationale for a congestion level.
type Explanation struct {
	Level   Level              `json:"level,omitempty"`
	Reasons []string           `json:"reasons"`
	Drivers []string           `json:"drivers"`
	Signals map[string]float64 `json:"signals"`
}

// Explain derives a rationale from a metrics snapshot. Only signals present
// in m produce a reason. The level is computed with Classify, treating an
// absent density or occupancy as zero, and is left empty when both are
// absent. Explain returns nil for an empty snapshot.
func Explain(m Metrics) *Explanation {
	if len(m) == 0 {
		return nil
	}
	e := &Explanation{
		Reasons: []string{},
		Drivers: []string{},
		Signals: map[string]float64{},
	}

	density, hasDensity := m.Get(FieldDensity)
	occupancy, hasOccupancy := m.Get(FieldOccupancyPct)

	if hasDensity {
		e.Signals[FieldDensity] = density
		switch {
		case density > DensityHighPerHour:
			e.reason(FieldDensity, "traffic density %.1f/hr is above the high threshold of %.0f/hr", density, DensityHighPerHour)
		case density > DensityMediumPerHour:
			e.reason(FieldDensity, "traffic density %.1f/hr is above the medium threshold of %.0f/hr", density, DensityMediumPerHour)
		default:
			e.Reasons = append(e.Reasons, fmt.Sprintf("traffic density %.1f/hr is within normal range", density))
		}
	}

	if hasOccupancy {
		e.Signals[FieldOccupancyPct] = occupancy
		switch {
		case occupancy > OccupancyHighPct:
			e.reason(FieldOccupancyPct, "runway occupancy %.1f%% is above the high threshold of %.0f%%", occupancy, OccupancyHighPct)
		case occupancy > OccupancyMediumPct:
			e.reason(FieldOccupancyPct, "runway occupancy %.1f%% is above the medium threshold of %.0f%%", occupancy, OccupancyMediumPct)
		default:
			e.Reasons = append(e.Reasons, fmt.Sprintf("runway occupancy %.1f%% is within normal range", occupancy))
		}
	}

	if spacing, ok := m.Get(FieldMinSpacing); ok {
		e.Signals[FieldMinSpacing] = spacing
		if spacing > 0 && spacing < TightSpacingMinutes {
			e.reason(FieldMinSpacing, "minimum spacing %.1f min is below %.0f min", spacing, TightSpacingMinutes)
		} else {
			e.Reasons = append(e.Reasons, fmt.Sprintf("minimum spacing %.1f min is adequate", spacing))
		}
	}

	if share, field, ok := movementShare(m); ok {
		e.Signals[field] = share
		label := "arrival"
		if field == FieldDeparturePct {
			label = "departure"
		}
		if math.Abs(share-50) > ImbalancePct {
			e.reason(field, "%s share %.0f%% indicates an arrival/departure imbalance", label, share)
		} else {
			e.Reasons = append(e.Reasons, fmt.Sprintf("%s share %.0f%% is balanced", label, share))
		}
	}

	if hasDensity || hasOccupancy {
		e.Level = Classify(density, occupancy)
	}
	return e
}

func (e *Explanation) reason(driver, format string, args ...any) {
	e.Reasons = append(e.Reasons, fmt.Sprintf(format, args...))
	e.Drivers = append(e.Drivers, driver)
}

// movementShare prefers the arrival share and falls back to the departure
// share; the imbalance test is symmetric around 50%.
func movementShare(m Metrics) (float64, string, bool) {
	if v, ok := m.Get(FieldArrivalPct); ok {
		return v, FieldArrivalPct, true
	}
	if v, ok := m.Get(FieldDeparturePct); ok {
		return v, FieldDeparturePct, true
	}
	return 0, "", false
}
