package traffic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultAviationstackURL is the Aviationstack flights endpoint.
const DefaultAviationstackURL = "https://api.aviationstack.com/v1/flights"

// LiveConfig configures a LiveSource.
type LiveConfig struct {
	BaseURL   string
	AccessKey string
	// Airport is the ICAO code flights are queried by.
	Airport string
	Runway  string
	// MinFetchInterval throttles API calls. Between fetches the cached
	// snapshot is served.
	MinFetchInterval time.Duration
	// OccupancySeconds is assumed for every movement; the API reports no
	// runway times.
	OccupancySeconds int
	Limit            int
	Timeout          time.Duration
}

// LiveSource serves departures and arrivals from the Aviationstack API and
// caches every fetch to a CSV snapshot. Calls are throttled to one per
// MinFetchInterval, attempts included, so a failing API is not hammered;
// the snapshot stands in whenever no fetch is due or a fetch fails.
type LiveSource struct {
	cfg    LiveConfig
	cache  Loader
	client *http.Client
	log    *logrus.Entry

	mu        sync.Mutex
	lastFetch time.Time
}

// NewLiveSource creates a source caching to cachePath. log may be nil.
func NewLiveSource(cfg LiveConfig, cachePath string, log *logrus.Entry) *LiveSource {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultAviationstackURL
	}
	if cfg.MinFetchInterval <= 0 {
		cfg.MinFetchInterval = 5 * time.Minute
	}
	if cfg.OccupancySeconds <= 0 {
		cfg.OccupancySeconds = 75
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 100
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &LiveSource{
		cfg:    cfg,
		cache:  Loader{Path: cachePath},
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log.WithFields(logrus.Fields{"source": "aviationstack", "airport": cfg.Airport}),
	}
}

// Records implements Source.
func (s *LiveSource) Records(ctx context.Context, now time.Time, window time.Duration) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.lastFetch.IsZero() && now.Sub(s.lastFetch) < s.cfg.MinFetchInterval {
		return s.cached(now, window)
	}
	s.lastFetch = now

	rows, err := s.fetch(ctx, now, window)
	if err != nil {
		s.log.WithError(err).Warn("live fetch failed; serving cached snapshot")
		return s.cached(now, window)
	}
	if err := s.cache.Save(rows); err != nil {
		s.log.WithError(err).Warn("failed to cache live traffic data")
	}
	s.log.WithField("rows", len(rows)).Info("fetched live traffic data")
	return InWindow(rows, window, now), nil
}

func (s *LiveSource) cached(now time.Time, window time.Duration) ([]Record, error) {
	rows, err := s.cache.Load()
	if err != nil {
		return nil, err
	}
	return InWindow(rows, window, now), nil
}

func (s *LiveSource) fetch(ctx context.Context, now time.Time, window time.Duration) ([]Record, error) {
	date := now.UTC().Format("2006-01-02")
	departures, err := s.flights(ctx, "dep_icao", date)
	if err != nil {
		return nil, fmt.Errorf("fetch departures: %w", err)
	}
	arrivals, err := s.flights(ctx, "arr_icao", date)
	if err != nil {
		return nil, fmt.Errorf("fetch arrivals: %w", err)
	}

	start := now.Add(-window)
	var rows []Record
	add := func(ts time.Time, ok bool, kind string) {
		if !ok || ts.Before(start) {
			return
		}
		rows = append(rows, Record{
			Timestamp:        ts,
			MovementType:     kind,
			Runway:           s.cfg.Runway,
			OccupancySeconds: s.cfg.OccupancySeconds,
		})
	}
	for _, f := range departures {
		ts, ok := f.Departure.best()
		add(ts, ok, Departure)
	}
	for _, f := range arrivals {
		ts, ok := f.Arrival.best()
		add(ts, ok, Arrival)
	}
	return rows, nil
}

type flightsResponse struct {
	Data  []flight  `json:"data"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type flight struct {
	Departure flightTimes `json:"departure"`
	Arrival   flightTimes `json:"arrival"`
}

type flightTimes struct {
	Scheduled string `json:"scheduled"`
	Estimated string `json:"estimated"`
	Actual    string `json:"actual"`
}

// best returns the actual time, else the estimate, else the schedule.
func (ft flightTimes) best() (time.Time, bool) {
	for _, v := range []string{ft.Actual, ft.Estimated, ft.Scheduled} {
		if v == "" {
			continue
		}
		ts, err := parseFlightTime(v)
		if err != nil {
			return time.Time{}, false
		}
		return ts, true
	}
	return time.Time{}, false
}

func parseFlightTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.UTC(), nil
	}
	return time.ParseInLocation("2006-01-02T15:04:05", s, time.UTC)
}

func (s *LiveSource) flights(ctx context.Context, airportParam, date string) ([]flight, error) {
	q := url.Values{}
	q.Set("access_key", s.cfg.AccessKey)
	q.Set(airportParam, s.cfg.Airport)
	q.Set("flight_date", date)
	q.Set("limit", strconv.Itoa(s.cfg.Limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, redactKey(err, s.cfg.AccessKey)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("aviationstack: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var body flightsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode aviationstack response: %w", err)
	}
	if body.Error != nil {
		return nil, fmt.Errorf("aviationstack: %s: %s", body.Error.Code, body.Error.Message)
	}
	return body.Data, nil
}

// redactKey keeps the access key out of transport errors, which quote the
// request URL.
func redactKey(err error, key string) error {
	if key == "" {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), url.QueryEscape(key), "REDACTED"))
}
