package traffic

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/runwaymesh/internal/analytics"
)

var base = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func movement(offset time.Duration, kind string, occ int) Record {
	return Record{Timestamp: base.Add(offset), MovementType: kind, Runway: "09/27", OccupancySeconds: occ}
}

func TestReadWriteCSV(t *testing.T) {
	records := []Record{
		movement(0, Arrival, 60),
		movement(5*time.Minute, Departure, 90),
	}
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, records))

	// Append a malformed row that must be skipped.
	buf.WriteString("not-a-time,arrival,09/27,60\n")
	buf.WriteString("2026-03-01T10:10:00,departure,09/27,75\n")

	got, err := ReadCSV(&buf)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.True(t, got[0].Timestamp.Equal(records[0].Timestamp))
	assert.Equal(t, Departure, got[1].MovementType)
	assert.Equal(t, 90, got[1].OccupancySeconds)
	assert.Equal(t, base.Add(10*time.Minute), got[2].Timestamp)
}

func TestLoaderMissingFile(t *testing.T) {
	rows, err := Loader{Path: filepath.Join(t.TempDir(), "missing.csv")}.Load()
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestGenerator(t *testing.T) {
	g := Generator{Runway: "09/27", Hours: 2, Interval: 5 * time.Minute, Rand: rand.New(rand.NewSource(7))}
	rows := g.Generate(base)
	require.NotEmpty(t, rows)
	assert.LessOrEqual(t, len(rows), 25)
	for _, r := range rows {
		assert.GreaterOrEqual(t, r.OccupancySeconds, 40)
		assert.LessOrEqual(t, r.OccupancySeconds, 120)
		assert.Contains(t, []string{Arrival, Departure}, r.MovementType)
		assert.False(t, r.Timestamp.After(base))
		assert.False(t, r.Timestamp.Before(base.Add(-2*time.Hour)))
	}
}

func TestCSVSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "runway.csv")
	gen := Generator{Runway: "09/27", Hours: 2, Interval: 5 * time.Minute, Rand: rand.New(rand.NewSource(1))}
	src := NewCSVSource(path, gen, 24*time.Hour, nil)

	t.Run("generates when missing", func(t *testing.T) {
		rows, err := src.Records(context.Background(), base, 60*time.Minute)
		require.NoError(t, err)
		for _, r := range rows {
			assert.False(t, r.Timestamp.Before(base.Add(-time.Hour)))
		}
		_, err = os.Stat(path)
		require.NoError(t, err)
	})

	t.Run("regenerates when stale", func(t *testing.T) {
		later := base.Add(48 * time.Hour)
		_, err := src.Records(context.Background(), later, 60*time.Minute)
		require.NoError(t, err)

		stored, err := src.Loader.Load()
		require.NoError(t, err)
		require.NotEmpty(t, stored)
		assert.False(t, stored[0].Timestamp.Before(later.Add(-2*time.Hour)))
	})

	t.Run("honours cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := src.Records(ctx, base, time.Hour)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestSummarize(t *testing.T) {
	records := []Record{
		movement(-90*time.Minute, Arrival, 100), // outside the window
		movement(-50*time.Minute, Arrival, 60),
		movement(-40*time.Minute, Departure, 60),
		movement(-30*time.Minute, Arrival, 60),
	}
	s := Summarize(records, 60, base, "VABB", "09/27")

	assert.Equal(t, 3, s.TotalMovements)
	assert.Equal(t, 3.0, s.TrafficDensity)
	assert.Equal(t, 2.0, s.ArrivalRate)
	assert.Equal(t, 1.0, s.DepartureRate)
	assert.Equal(t, 0.05, s.EstimatedRunwayOccupancy)
	assert.Equal(t, 5.0, s.RunwayOccupancyPercent)
	assert.Equal(t, analytics.LevelLow, s.CongestionLevel)
	assert.Equal(t, "VABB", s.Airport)
}

func TestAnalyze(t *testing.T) {
	t.Run("empty batch", func(t *testing.T) {
		_, err := Analyze(Batch{}, 60, base)
		assert.ErrorIs(t, err, ErrNoMovements)
	})

	t.Run("busy batch", func(t *testing.T) {
		var movements []Record
		for i := 0; i < 20; i++ {
			kind := Arrival
			if i%4 == 0 {
				kind = Departure
			}
			movements = append(movements, movement(time.Duration(i*2)*time.Minute, kind, 120))
		}
		b := Batch{Movements: movements, AirportCode: "VABB", Runway: "09/27"}

		out, err := Analyze(b, 60, base)
		require.NoError(t, err)

		assert.Equal(t, 20, out["total_movements"])
		assert.Equal(t, 15, out["arrivals"])
		assert.Equal(t, 5, out["departures"])
		assert.Equal(t, 20.0, out[analytics.FieldDensity])
		assert.Equal(t, 66.7, out[analytics.FieldOccupancyPct])
		assert.Equal(t, 2.0, out[analytics.FieldMinSpacing])
		assert.Equal(t, 75.0, out[analytics.FieldArrivalPct])
		assert.Equal(t, "medium", out["congestion_level"])
		// Medium score plus the tight spacing penalty.
		assert.Equal(t, 7, out["congestion_score"])
		assert.Equal(t, 10, out["peak_hour"])
		assert.Contains(t, out, "ml")

		// The reported numbers reproduce the reported level.
		m, ok := analytics.Normalize(out)
		require.True(t, ok)
		e := analytics.Explain(m)
		require.NotNil(t, e)
		assert.Equal(t, analytics.Level(out["congestion_level"].(string)), e.Level)
	})
}

func TestTrend(t *testing.T) {
	assert.Nil(t, Trend(Batch{}, 60))

	// One movement per bin, increasing occupancy.
	var movements []Record
	for i := 0; i < 6; i++ {
		movements = append(movements, movement(time.Duration(i*5)*time.Minute, Arrival, 30*(i+1)))
	}
	out := Trend(Batch{Movements: movements}, 30)
	require.NotNil(t, out)
	assert.Equal(t, "linear_regression", out["method"])
	assert.Equal(t, 6, out["samples"])
	assert.Equal(t, 12.0, out["predicted_traffic_density_per_hr"])
	assert.Equal(t, 0.0, out["trend_density_per_bin"])
	assert.Greater(t, out["trend_occupancy_percent_per_bin"].(float64), 0.0)
	assert.True(t, strings.Contains("low medium high", out["predicted_congestion_level"].(string)))
}

func TestDecodeBatch(t *testing.T) {
	b := Batch{
		Movements:   []Record{movement(0, Arrival, 60), movement(3*time.Minute, Departure, 75)},
		WindowStart: base.Add(-time.Hour),
		WindowEnd:   base,
		AirportCode: "VABB",
		Runway:      "09/27",
	}

	t.Run("direct payload", func(t *testing.T) {
		got, err := DecodeBatch(b.Payload())
		require.NoError(t, err)
		assert.Equal(t, b, got)
	})

	t.Run("after json transport", func(t *testing.T) {
		raw, err := json.Marshal(b.Payload())
		require.NoError(t, err)
		var data map[string]any
		require.NoError(t, json.Unmarshal(raw, &data))

		got, err := DecodeBatch(data)
		require.NoError(t, err)
		assert.Equal(t, b, got)
	})

	t.Run("empty", func(t *testing.T) {
		got, err := DecodeBatch(nil)
		require.NoError(t, err)
		assert.Empty(t, got.Movements)
	})

	t.Run("wrong shape", func(t *testing.T) {
		_, err := DecodeBatch(map[string]any{"traffic_movements": "nope"})
		assert.Error(t, err)
	})
}
