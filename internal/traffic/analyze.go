package traffic

import (
	"errors"
	"math"
	"time"

	"golang.org/x/exp/slices"

	"github.com/dreamware/runwaymesh/internal/analytics"
)

// ErrNoMovements is returned by Analyze for an empty batch.
var ErrNoMovements = errors.New("no traffic data provided")

// trendBin is the bin width used by Trend.
const trendBin = 5 * time.Minute

// Analyze computes the metrics a worker reports for one batch. Values are
// rounded before the congestion level is derived from them.
func Analyze(b Batch, windowMinutes int, now time.Time) (map[string]any, error) {
	if len(b.Movements) == 0 {
		return nil, ErrNoMovements
	}

	var arrivals, departures, occupied, arrivalOcc, departureOcc int
	hourly := map[int]int{}
	for _, m := range b.Movements {
		switch m.MovementType {
		case Arrival:
			arrivals++
			arrivalOcc += m.OccupancySeconds
		case Departure:
			departures++
			departureOcc += m.OccupancySeconds
		}
		occupied += m.OccupancySeconds
		hourly[m.Timestamp.UTC().Hour()]++
	}
	total := arrivals + departures

	hours := float64(windowMinutes) / 60
	seconds := float64(windowMinutes) * 60

	var density, arrivalRate, departureRate, occupancyPct float64
	if hours > 0 {
		density = round(float64(total)/hours, 2)
		arrivalRate = round(float64(arrivals)/hours, 2)
		departureRate = round(float64(departures)/hours, 2)
	}
	if seconds > 0 {
		occupancyPct = round(min(1.0, float64(occupied)/seconds)*100, 1)
	}

	peakHour, peakCount := -1, 0
	for h, c := range hourly {
		if c > peakCount || (c == peakCount && h < peakHour) {
			peakHour, peakCount = h, c
		}
	}

	avgSpacing, minSpacing := spacing(b.Movements)
	avgSpacing = round(avgSpacing, 2)
	minSpacing = round(minSpacing, 2)

	level := analytics.Classify(density, occupancyPct)
	score := analytics.Score(level)
	if minSpacing > 0 && minSpacing < analytics.TightSpacingMinutes {
		score += 2
	}

	var arrivalPct, departurePct float64
	if total > 0 {
		arrivalPct = round(float64(arrivals)/float64(total)*100, 1)
		departurePct = round(float64(departures)/float64(total)*100, 1)
	}
	var avgArrival, avgDeparture float64
	if arrivals > 0 {
		avgArrival = round(float64(arrivalOcc)/float64(arrivals), 1)
	}
	if departures > 0 {
		avgDeparture = round(float64(departureOcc)/float64(departures), 1)
	}

	out := map[string]any{
		"congestion_level":                string(level),
		"congestion_score":                score,
		"total_movements":                 total,
		"arrivals":                        arrivals,
		"departures":                      departures,
		analytics.FieldArrivalPct:         arrivalPct,
		analytics.FieldDeparturePct:       departurePct,
		analytics.FieldDensity:            density,
		analytics.FieldArrivalRate:        arrivalRate,
		analytics.FieldDepartureRate:      departureRate,
		analytics.FieldOccupancyPct:       occupancyPct,
		"total_occupancy_seconds":         occupied,
		"avg_arrival_occupancy_seconds":   avgArrival,
		"avg_departure_occupancy_seconds": avgDeparture,
		"avg_spacing_minutes":             avgSpacing,
		analytics.FieldMinSpacing:         minSpacing,
		"peak_hour":                       peakHour,
		"peak_hour_movements":             peakCount,
		"window_minutes":                  windowMinutes,
		"computed_at":                     now.UTC().Format(time.RFC3339),
		"airport_code":                    orUnknown(b.AirportCode),
		"runway":                          orUnknown(b.Runway),
	}
	if trend := Trend(b, windowMinutes); trend != nil {
		out["ml"] = trend
	}
	return out, nil
}

// spacing returns the mean and minimum gap in minutes between consecutive
// movements in time order.
func spacing(movements []Record) (avg, minGap float64) {
	if len(movements) < 2 {
		return 0, 0
	}
	sorted := slices.Clone(movements)
	slices.SortFunc(sorted, func(a, b Record) int { return a.Timestamp.Compare(b.Timestamp) })

	var sum float64
	minGap = math.Inf(1)
	for i := 1; i < len(sorted); i++ {
		gap := sorted[i].Timestamp.Sub(sorted[i-1].Timestamp).Minutes()
		sum += gap
		minGap = math.Min(minGap, gap)
	}
	return sum / float64(len(sorted)-1), minGap
}

// Trend fits a least-squares line through 5-minute bins of the batch and
// projects density and occupancy one bin ahead. It returns nil for an empty
// batch.
func Trend(b Batch, windowMinutes int) map[string]any {
	if len(b.Movements) == 0 {
		return nil
	}
	start, end := b.WindowStart, b.WindowEnd
	if start.IsZero() || end.IsZero() {
		start, end = b.Movements[0].Timestamp, b.Movements[0].Timestamp
		for _, m := range b.Movements[1:] {
			if m.Timestamp.Before(start) {
				start = m.Timestamp
			}
			if m.Timestamp.After(end) {
				end = m.Timestamp
			}
		}
	}

	span := max(time.Duration(0), end.Sub(start))
	bins := int(span/trendBin) + 1
	counts := make([]float64, bins)
	occupied := make([]float64, bins)
	for _, m := range b.Movements {
		if m.Timestamp.Before(start) {
			continue
		}
		idx := int(m.Timestamp.Sub(start) / trendBin)
		if idx >= bins {
			idx = bins - 1
		}
		counts[idx]++
		occupied[idx] += float64(m.OccupancySeconds)
	}

	binSeconds := trendBin.Seconds()
	perHour := 60 / trendBin.Minutes()
	xs := make([]float64, bins)
	density := make([]float64, bins)
	occupancy := make([]float64, bins)
	for i := range xs {
		xs[i] = float64(i)
		density[i] = counts[i] * perHour
		occupancy[i] = math.Min(100, occupied[i]/binSeconds*100)
	}

	slopeD, interceptD := linearRegression(xs, density)
	slopeO, interceptO := linearRegression(xs, occupancy)
	next := float64(bins)
	predDensity := round(math.Max(0, slopeD*next+interceptD), 2)
	predOccupancy := round(math.Max(0, math.Min(100, slopeO*next+interceptO)), 1)

	return map[string]any{
		"method":                             "linear_regression",
		"bin_minutes":                        int(trendBin.Minutes()),
		"samples":                            bins,
		"predicted_traffic_density_per_hr":   predDensity,
		"predicted_runway_occupancy_percent": predOccupancy,
		"predicted_congestion_level":         string(analytics.Classify(predDensity, predOccupancy)),
		"trend_density_per_bin":              round(slopeD, 3),
		"trend_occupancy_percent_per_bin":    round(slopeO, 3),
		"window_minutes":                     windowMinutes,
	}
}

func linearRegression(xs, ys []float64) (slope, intercept float64) {
	if len(xs) == 0 || len(xs) != len(ys) {
		return 0, 0
	}
	n := float64(len(xs))
	var xSum, ySum float64
	for i := range xs {
		xSum += xs[i]
		ySum += ys[i]
	}
	xMean, yMean := xSum/n, ySum/n

	var num, den float64
	for i := range xs {
		num += (xs[i] - xMean) * (ys[i] - yMean)
		den += (xs[i] - xMean) * (xs[i] - xMean)
	}
	if den == 0 {
		return 0, yMean
	}
	slope = num / den
	return slope, yMean - slope*xMean
}

func orUnknown(s string) string {
	if s == "" {
		return "UNKNOWN"
	}
	return s
}
