package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/dreamware/runwaymesh/internal/api"
	"github.com/dreamware/runwaymesh/internal/config"
	"github.com/dreamware/runwaymesh/internal/coordinator"
	"github.com/dreamware/runwaymesh/internal/engine"
	"github.com/dreamware/runwaymesh/internal/events"
	"github.com/dreamware/runwaymesh/internal/logging"
	"github.com/dreamware/runwaymesh/internal/storage"
	"github.com/dreamware/runwaymesh/internal/telemetry"
	"github.com/dreamware/runwaymesh/internal/traffic"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 5 * time.Second

// server wires the coordinator, its production cycle and the HTTP API.
type server struct {
	cfg       *config.Config
	coord     *coordinator.Coordinator
	engine    *engine.Engine
	store     storage.SummaryStore
	publisher events.Publisher
	handler   http.Handler
	log       *logrus.Entry

	closers []func() error
}

// newServer builds every component cfg selects. The returned server owns
// the store and publisher connections; release them with Close.
func newServer(ctx context.Context, cfg *config.Config, logger *logrus.Logger, reg *prometheus.Registry) (*server, error) {
	s := &server{cfg: cfg, log: logging.Component(logger, "coordinator")}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	exporter, err := telemetry.NewExporter(cfg.Coordinator.MetricsNamespace, reg)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	s.coord = coordinator.New(cfg.Coordinator.Core(),
		coordinator.WithLogger(logging.Component(logger, "queue")),
		coordinator.WithRecorder(exporter),
		coordinator.WithLateResultPolicy(cfg.Coordinator.LateResultPolicy()),
	)

	if err := s.openStore(ctx); err != nil {
		return nil, err
	}
	if err := s.openPublisher(); err != nil {
		s.Close()
		return nil, err
	}

	source := newSource(cfg.Traffic, logging.Component(logger, "traffic"))

	s.engine = engine.New(engine.Config{
		Interval:      cfg.Coordinator.CycleInterval,
		TasksPerCycle: cfg.Coordinator.TasksPerCycle,
		WindowMinutes: cfg.Coordinator.WindowMinutes,
		Airport:       cfg.Traffic.Airport,
		Runway:        cfg.Traffic.Runway,
	}, s.coord, source, s.store, exporter, logging.Component(logger, "engine"))

	metrics := promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
	handlers := api.NewAPI(s.coord, s.store, s.publisher, exporter, logging.Component(logger, "http"))
	s.handler = api.NewRouter(handlers, metrics)
	return s, nil
}

// newSource returns the live Aviationstack feed when an access key is
// configured and the simulated CSV feed otherwise.
func newSource(cfg config.TrafficConfig, log *logrus.Entry) traffic.Source {
	if av := cfg.Aviationstack; av.Enabled() {
		log.WithField("airport", cfg.Airport).Info("traffic source: aviationstack")
		return traffic.NewLiveSource(traffic.LiveConfig{
			BaseURL:          av.BaseURL,
			AccessKey:        av.AccessKey,
			Airport:          cfg.Airport,
			Runway:           cfg.Runway,
			MinFetchInterval: av.MinFetchInterval,
			OccupancySeconds: av.OccupancySeconds,
		}, cfg.DataFile, log)
	}
	gen := traffic.Generator{
		Runway:   cfg.Runway,
		Hours:    cfg.GenerateHours,
		Interval: time.Duration(cfg.IntervalMinutes) * time.Minute,
		Rand:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	return traffic.NewCSVSource(cfg.DataFile, gen, cfg.StaleAfter, log)
}

func (s *server) openStore(ctx context.Context) error {
	switch s.cfg.Summary.Backend {
	case "redis":
		rs, err := storage.NewRedisStore(ctx, s.cfg.Summary.Redis)
		if err != nil {
			return err
		}
		s.store = rs
		s.closers = append(s.closers, rs.Close)
		s.log.WithField("address", s.cfg.Summary.Redis.Address).Info("summary store: redis")
	default:
		s.store = storage.NewMemoryStore()
		s.log.Info("summary store: memory")
	}
	return nil
}

func (s *server) openPublisher() error {
	switch s.cfg.Events.Backend {
	case "kafka":
		kp, err := events.NewKafkaPublisher(s.cfg.Events.Kafka)
		if err != nil {
			return err
		}
		s.publisher = kp
		s.closers = append(s.closers, kp.Close)
		s.log.WithFields(logrus.Fields{
			"brokers": s.cfg.Events.Kafka.Brokers,
			"topic":   kp.Topic(),
		}).Info("event publisher: kafka")
	default:
		s.publisher = events.NopPublisher{}
	}
	return nil
}

// serve runs the production cycle and the HTTP server on ln until ctx is
// cancelled, then shuts both down.
func (s *server) serve(ctx context.Context, ln net.Listener) error {
	httpSrv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.engine.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.log.WithFields(logrus.Fields{
			"addr":   ln.Addr().String(),
			"engine": s.engine.String(),
		}).Info("coordinator listening")
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	s.engine.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		s.log.WithError(err).Warn("http shutdown")
	}
	s.log.WithField("cycles", s.engine.Cycles()).Info("coordinator stopped")
	return serveErr
}

// Close releases the store and publisher connections.
func (s *server) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// newRegistry returns a registry with the runtime collectors registered.
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func ginMode(level string) string {
	if level == "debug" {
		return gin.DebugMode
	}
	return gin.ReleaseMode
}
