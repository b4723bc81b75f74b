package analytics

import "math"

// Combined is the cluster-wide view built from each node's latest metrics.
type Combined struct {
	Nodes            int     `json:"nodes"`
	TrafficDensity   float64 `json:"traffic_density"`
	ArrivalRate      float64 `json:"arrival_rate"`
	DepartureRate    float64 `json:"departure_rate"`
	OccupancyPercent float64 `json:"runway_occupancy_percent"`
	Level            Level   `json:"congestion_level"`
}

// Combine averages density, rates and occupancy over byNode and classifies
// the averages. A node that did not report a field counts as zero for it.
// It returns false when byNode is empty.
func Combine(byNode map[string]Metrics) (Combined, bool) {
	if len(byNode) == 0 {
		return Combined{}, false
	}
	var c Combined
	for _, m := range byNode {
		c.TrafficDensity += m[FieldDensity]
		c.ArrivalRate += m[FieldArrivalRate]
		c.DepartureRate += m[FieldDepartureRate]
		c.OccupancyPercent += m[FieldOccupancyPct]
	}
	n := float64(len(byNode))
	c.Nodes = len(byNode)
	c.TrafficDensity = roundTo(c.TrafficDensity/n, 2)
	c.ArrivalRate = roundTo(c.ArrivalRate/n, 2)
	c.DepartureRate = roundTo(c.DepartureRate/n, 2)
	c.OccupancyPercent = roundTo(c.OccupancyPercent/n, 1)
	c.Level = Classify(c.TrafficDensity, c.OccupancyPercent)
	return c, true
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
