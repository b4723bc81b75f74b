package analytics

// ForecastMethod tags forecasts produced by Predict. It is a plain moving
// average over recent history, not a fitted model.
const ForecastMethod = "moving_average"

// Forecast is a short-horizon prediction derived from recent history.
type Forecast struct {
	Method             string             `json:"method"`
	Window             int                `json:"window"`
	Samples            int                `json:"samples"`
	Averages           map[string]float64 `json:"averages"`
	PredictedDensity   *float64           `json:"predicted_traffic_density_per_hr,omitempty"`
	PredictedOccupancy *float64           `json:"predicted_runway_occupancy_percent,omitempty"`
	PredictedLevel     Level              `json:"predicted_congestion_level,omitempty"`
}

// Predict averages each field over the given entries independently: an
// entry missing a field is left out of that field's denominator. The level
// is Classify applied to the averaged density and occupancy (absent fields
// count as zero; no level when both are absent). Predict returns nil when
// entries is empty. window is the configured k and only reported.
func Predict(entries []Metrics, window int) *Forecast {
	if len(entries) == 0 {
		return nil
	}

	sums := map[string]float64{}
	counts := map[string]int{}
	for _, e := range entries {
		for k, v := range e {
			sums[k] += v
			counts[k]++
		}
	}

	f := &Forecast{
		Method:   ForecastMethod,
		Window:   window,
		Samples:  len(entries),
		Averages: make(map[string]float64, len(sums)),
	}
	for k, s := range sums {
		f.Averages[k] = s / float64(counts[k])
	}

	density, hasDensity := f.Averages[FieldDensity]
	occupancy, hasOccupancy := f.Averages[FieldOccupancyPct]
	if hasDensity {
		f.PredictedDensity = &density
	}
	if hasOccupancy {
		f.PredictedOccupancy = &occupancy
	}
	if hasDensity || hasOccupancy {
		f.PredictedLevel = Classify(density, occupancy)
	}
	return f
}

// ForecastFrom predicts from the newest window entries of h.
func ForecastFrom(h *History, window int) *Forecast {
	return Predict(h.Last(window), window)
}
