package traffic

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var csvHeader = []string{"timestamp_utc", "movement_type", "runway", "occupancy_seconds"}

// Source supplies the movement records for a rolling window.
type Source interface {
	Records(ctx context.Context, now time.Time, window time.Duration) ([]Record, error)
}

// Loader reads movement records from a CSV file.
type Loader struct {
	Path string
}

// Save replaces the file with rows, creating its directory when needed.
func (l Loader) Save(rows []Record) error {
	if dir := filepath.Dir(l.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(l.Path)
	if err != nil {
		return err
	}
	if err := WriteCSV(f, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Load returns every well-formed row in the file. A missing file yields no
// rows and no error; malformed rows are skipped.
func (l Loader) Load() ([]Record, error) {
	f, err := os.Open(l.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.Path, err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV parses records from r, skipping the header and malformed rows.
func ReadCSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var out []Record
	first := true
	for {
		row, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("read csv: %w", err)
		}
		if first {
			first = false
			if len(row) > 0 && row[0] == csvHeader[0] {
				continue
			}
		}
		rec, ok := parseRow(row)
		if !ok {
			continue
		}
		out = append(out, rec)
	}
}

func parseRow(row []string) (Record, bool) {
	if len(row) < len(csvHeader) {
		return Record{}, false
	}
	ts, err := parseTimestamp(row[0])
	if err != nil {
		return Record{}, false
	}
	occ, err := strconv.Atoi(row[3])
	if err != nil {
		return Record{}, false
	}
	return Record{Timestamp: ts, MovementType: row[1], Runway: row[2], OccupancySeconds: occ}, true
}

// parseTimestamp accepts RFC 3339 and zone-less ISO-8601, which is read as UTC.
func parseTimestamp(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts.UTC(), nil
	}
	return time.ParseInLocation("2006-01-02T15:04:05.999999999", s, time.UTC)
}

// WriteCSV writes records with a header row.
func WriteCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.Timestamp.UTC().Format(time.RFC3339),
			r.MovementType,
			r.Runway,
			strconv.Itoa(r.OccupancySeconds),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Generator produces simulated movements for a runway.
type Generator struct {
	Runway   string
	Hours    int
	Interval time.Duration
	Rand     *rand.Rand
}

// Generate returns movements from now-Hours to now, one candidate per
// Interval with a 75% chance of a movement, evenly split between arrivals
// and departures, each occupying the runway for 40 to 120 seconds.
func (g Generator) Generate(now time.Time) []Record {
	rng := g.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(now.UnixNano()))
	}
	interval := g.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	hours := g.Hours
	if hours <= 0 {
		hours = 2
	}

	var out []Record
	for cur := now.Add(-time.Duration(hours) * time.Hour); !cur.After(now); cur = cur.Add(interval) {
		if rng.Float64() >= 0.75 {
			continue
		}
		kind := Departure
		if rng.Float64() < 0.5 {
			kind = Arrival
		}
		out = append(out, Record{
			Timestamp:        cur.UTC(),
			MovementType:     kind,
			Runway:           g.Runway,
			OccupancySeconds: 40 + rng.Intn(81),
		})
	}
	return out
}

// CSVSource serves records from a CSV file and regenerates the file when it
// is missing or holds nothing newer than StaleAfter.
type CSVSource struct {
	Loader     Loader
	Generator  Generator
	StaleAfter time.Duration
	Log        *logrus.Entry

	mu sync.Mutex
}

// NewCSVSource creates a source backed by path.
func NewCSVSource(path string, gen Generator, staleAfter time.Duration, log *logrus.Entry) *CSVSource {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &CSVSource{
		Loader:     Loader{Path: path},
		Generator:  gen,
		StaleAfter: staleAfter,
		Log:        log,
	}
}

// Records implements Source.
func (s *CSVSource) Records(ctx context.Context, now time.Time, window time.Duration) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.Loader.Load()
	if err != nil {
		return nil, err
	}
	if s.stale(rows, now) {
		rows = s.Generator.Generate(now)
		if err := s.write(rows); err != nil {
			s.Log.WithError(err).Warn("failed to persist generated traffic data")
		} else {
			s.Log.WithField("rows", len(rows)).Info("regenerated traffic data")
		}
	}
	return InWindow(rows, window, now), nil
}

func (s *CSVSource) stale(rows []Record, now time.Time) bool {
	if len(rows) == 0 {
		return true
	}
	if s.StaleAfter <= 0 {
		return false
	}
	cutoff := now.Add(-s.StaleAfter)
	for _, r := range rows {
		if !r.Timestamp.Before(cutoff) {
			return false
		}
	}
	return true
}

func (s *CSVSource) write(rows []Record) error {
	return s.Loader.Save(rows)
}
