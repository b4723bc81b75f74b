package traffic

import (
	"time"

	"github.com/dreamware/runwaymesh/internal/analytics"
)

// Summary is the coordinator's own congestion view of the current window.
type Summary struct {
	Airport                  string          `json:"airport"`
	Runway                   string          `json:"runway"`
	Timestamp                time.Time       `json:"timestamp_utc"`
	WindowMinutes            int             `json:"window_minutes"`
	TrafficDensity           float64         `json:"traffic_density"`
	ArrivalRate              float64         `json:"arrival_rate"`
	DepartureRate            float64         `json:"departure_rate"`
	EstimatedRunwayOccupancy float64         `json:"estimated_runway_occupancy"`
	RunwayOccupancyPercent   float64         `json:"runway_occupancy_percent"`
	CongestionLevel          analytics.Level `json:"congestion_level"`
	TotalMovements           int             `json:"total_movements"`
	// CombinedNodes is set when the figures average worker results rather
	// than the coordinator's own window.
	CombinedNodes int `json:"combined_nodes,omitempty"`
}

// FromCombined overlays the cluster-wide worker averages on base, keeping
// its airport, runway, window and movement count.
func FromCombined(base Summary, c analytics.Combined, now time.Time) Summary {
	s := base
	s.Timestamp = now.UTC()
	s.TrafficDensity = c.TrafficDensity
	s.ArrivalRate = c.ArrivalRate
	s.DepartureRate = c.DepartureRate
	s.RunwayOccupancyPercent = c.OccupancyPercent
	s.EstimatedRunwayOccupancy = round(c.OccupancyPercent/100, 2)
	s.CongestionLevel = c.Level
	s.CombinedNodes = c.Nodes
	return s
}

// Summarize computes the congestion summary for the records inside the
// window ending at now.
func Summarize(records []Record, windowMinutes int, now time.Time, airport, runway string) Summary {
	window := time.Duration(windowMinutes) * time.Minute
	inWindow := InWindow(records, window, now)

	var arrivals, departures, occupied int
	for _, r := range inWindow {
		switch r.MovementType {
		case Arrival:
			arrivals++
		case Departure:
			departures++
		}
		occupied += r.OccupancySeconds
	}
	total := arrivals + departures

	hours := float64(windowMinutes) / 60
	seconds := float64(windowMinutes) * 60

	s := Summary{
		Airport:        airport,
		Runway:         runway,
		Timestamp:      now.UTC(),
		WindowMinutes:  windowMinutes,
		TotalMovements: total,
	}
	if hours > 0 {
		s.TrafficDensity = round(float64(total)/hours, 2)
		s.ArrivalRate = round(float64(arrivals)/hours, 2)
		s.DepartureRate = round(float64(departures)/hours, 2)
	}
	if seconds > 0 {
		fraction := min(1.0, float64(occupied)/seconds)
		s.EstimatedRunwayOccupancy = round(fraction, 2)
		s.RunwayOccupancyPercent = round(fraction*100, 1)
	}
	s.CongestionLevel = analytics.Classify(s.TrafficDensity, s.RunwayOccupancyPercent)
	return s
}
