// Package config provides YAML-based configuration loading for runwaymesh.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/dreamware/runwaymesh/internal/coordinator"
	"github.com/dreamware/runwaymesh/internal/events"
	"github.com/dreamware/runwaymesh/internal/storage"
	"github.com/dreamware/runwaymesh/internal/traffic"
)

// EnvPrefix prefixes environment overrides, e.g. RUNWAY_COORDINATOR_LISTEN.
const EnvPrefix = "RUNWAY"

// Config is the root configuration shared by both binaries.
type Config struct {
	Coordinator CoordinatorConfig `mapstructure:"coordinator" yaml:"coordinator"`
	Traffic     TrafficConfig     `mapstructure:"traffic" yaml:"traffic"`
	Summary     SummaryConfig     `mapstructure:"summary" yaml:"summary"`
	Events      EventsConfig      `mapstructure:"events" yaml:"events"`
	Node        NodeConfig        `mapstructure:"node" yaml:"node"`
	Log         LogConfig         `mapstructure:"log" yaml:"log"`
}

// CoordinatorConfig holds the coordinator tunables.
type CoordinatorConfig struct {
	Listen          string        `mapstructure:"listen" yaml:"listen"`
	NodeTimeout     time.Duration `mapstructure:"node_timeout" yaml:"node_timeout"`
	TaskTimeout     time.Duration `mapstructure:"task_timeout" yaml:"task_timeout"`
	WorkingGrace    time.Duration `mapstructure:"working_grace" yaml:"working_grace"`
	TasksPerCycle   int           `mapstructure:"tasks_per_cycle" yaml:"tasks_per_cycle"`
	CycleInterval   time.Duration `mapstructure:"cycle_interval" yaml:"cycle_interval"`
	HistoryCapacity int           `mapstructure:"history_capacity" yaml:"history_capacity"`
	ForecastWindow  int           `mapstructure:"forecast_window" yaml:"forecast_window"`
	RecentTasks     int           `mapstructure:"recent_tasks" yaml:"recent_tasks"`
	RetainFinished  int           `mapstructure:"retain_finished" yaml:"retain_finished"`
	WindowMinutes   int           `mapstructure:"window_minutes" yaml:"window_minutes"`
	// LatePolicy is "drop" or "accept".
	LatePolicy       string `mapstructure:"late_policy" yaml:"late_policy"`
	MetricsNamespace string `mapstructure:"metrics_namespace" yaml:"metrics_namespace"`
}

// TrafficConfig controls where movement data comes from.
type TrafficConfig struct {
	DataFile        string        `mapstructure:"data_file" yaml:"data_file"`
	Airport         string        `mapstructure:"airport" yaml:"airport"`
	Runway          string        `mapstructure:"runway" yaml:"runway"`
	GenerateHours   int           `mapstructure:"generate_hours" yaml:"generate_hours"`
	IntervalMinutes int           `mapstructure:"interval_minutes" yaml:"interval_minutes"`
	StaleAfter      time.Duration `mapstructure:"stale_after" yaml:"stale_after"`

	// Aviationstack replaces the simulated feed when an access key is set.
	Aviationstack AviationstackConfig `mapstructure:"aviationstack" yaml:"aviationstack"`
}

// AviationstackConfig configures the live flight-data feed.
type AviationstackConfig struct {
	AccessKey        string        `mapstructure:"access_key" yaml:"access_key"`
	BaseURL          string        `mapstructure:"base_url" yaml:"base_url"`
	MinFetchInterval time.Duration `mapstructure:"min_fetch_interval" yaml:"min_fetch_interval"`
	OccupancySeconds int           `mapstructure:"occupancy_seconds" yaml:"occupancy_seconds"`
}

// Enabled reports whether the live feed should be used.
func (a AviationstackConfig) Enabled() bool { return a.AccessKey != "" }

// SummaryConfig selects the summary store.
type SummaryConfig struct {
	// Backend is "memory" or "redis".
	Backend string              `mapstructure:"backend" yaml:"backend"`
	Redis   storage.RedisConfig `mapstructure:"redis" yaml:"redis"`
}

// EventsConfig selects the event publisher.
type EventsConfig struct {
	// Backend is "none" or "kafka".
	Backend string             `mapstructure:"backend" yaml:"backend"`
	Kafka   events.KafkaConfig `mapstructure:"kafka" yaml:"kafka"`
}

// NodeConfig configures a worker node.
type NodeConfig struct {
	// ID is generated when empty.
	ID                string        `mapstructure:"id" yaml:"id"`
	CoordinatorURL    string        `mapstructure:"coordinator_url" yaml:"coordinator_url"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" yaml:"heartbeat_interval"`
	PollInterval      time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	MaxRetries        int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryPause        time.Duration `mapstructure:"retry_pause" yaml:"retry_pause"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level" yaml:"level"`
	// Format: text or json
	Format string `mapstructure:"format" yaml:"format"`
	// Outputs: stdout, stderr, or file paths
	Outputs  []string       `mapstructure:"outputs" yaml:"outputs"`
	Rotation RotationConfig `mapstructure:"rotation" yaml:"rotation"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
	Enable     bool `mapstructure:"enable" yaml:"enable"`
	MaxSizeMB  int  `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress   bool `mapstructure:"compress" yaml:"compress"`
}

// Default returns a Config populated with the documented defaults.
func Default() *Config {
	return &Config{
		Coordinator: CoordinatorConfig{
			Listen:           ":8000",
			NodeTimeout:      15 * time.Second,
			TaskTimeout:      60 * time.Second,
			WorkingGrace:     10 * time.Second,
			TasksPerCycle:    2,
			CycleInterval:    45 * time.Second,
			HistoryCapacity:  100,
			ForecastWindow:   5,
			RecentTasks:      20,
			RetainFinished:   1000,
			WindowMinutes:    60,
			LatePolicy:       string(coordinator.DropLate),
			MetricsNamespace: "runwaymesh",
		},
		Traffic: TrafficConfig{
			DataFile:        "data/runway_traffic.csv",
			Airport:         "VABB",
			Runway:          "09/27",
			GenerateHours:   2,
			IntervalMinutes: 5,
			StaleAfter:      24 * time.Hour,
			Aviationstack: AviationstackConfig{
				BaseURL:          traffic.DefaultAviationstackURL,
				MinFetchInterval: 5 * time.Minute,
				OccupancySeconds: 75,
			},
		},
		Summary: SummaryConfig{
			Backend: "memory",
			Redis:   storage.RedisConfig{Address: "localhost:6379", Key: storage.DefaultRedisKey},
		},
		Events: EventsConfig{
			Backend: "none",
			Kafka:   events.KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: events.DefaultTopic},
		},
		Node: NodeConfig{
			CoordinatorURL:    "http://localhost:8000",
			HeartbeatInterval: 5 * time.Second,
			PollInterval:      3 * time.Second,
			MaxRetries:        3,
			RetryPause:        time.Second,
			RequestTimeout:    5 * time.Second,
		},
		Log: LogConfig{
			Level:   "info",
			Format:  "text",
			Outputs: []string{"stdout"},
			Rotation: RotationConfig{
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 28,
				Compress:   true,
			},
		},
	}
}

// Load reads configuration from path when non-empty, otherwise from
// runwaymesh.yaml in the usual locations when one exists. Environment
// variables override both; they use the RUNWAY prefix with `.` and `-`
// replaced by `_`, e.g. RUNWAY_COORDINATOR_TASK_TIMEOUT=90s.
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	seedDefaults(v, cfg)

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("runwaymesh")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".runwaymesh"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// seedDefaults registers every key so env-only configuration works.
func seedDefaults(v *viper.Viper, cfg *Config) {
	c := cfg.Coordinator
	v.SetDefault("coordinator.listen", c.Listen)
	v.SetDefault("coordinator.node_timeout", c.NodeTimeout)
	v.SetDefault("coordinator.task_timeout", c.TaskTimeout)
	v.SetDefault("coordinator.working_grace", c.WorkingGrace)
	v.SetDefault("coordinator.tasks_per_cycle", c.TasksPerCycle)
	v.SetDefault("coordinator.cycle_interval", c.CycleInterval)
	v.SetDefault("coordinator.history_capacity", c.HistoryCapacity)
	v.SetDefault("coordinator.forecast_window", c.ForecastWindow)
	v.SetDefault("coordinator.recent_tasks", c.RecentTasks)
	v.SetDefault("coordinator.retain_finished", c.RetainFinished)
	v.SetDefault("coordinator.window_minutes", c.WindowMinutes)
	v.SetDefault("coordinator.late_policy", c.LatePolicy)
	v.SetDefault("coordinator.metrics_namespace", c.MetricsNamespace)

	t := cfg.Traffic
	v.SetDefault("traffic.data_file", t.DataFile)
	v.SetDefault("traffic.airport", t.Airport)
	v.SetDefault("traffic.runway", t.Runway)
	v.SetDefault("traffic.generate_hours", t.GenerateHours)
	v.SetDefault("traffic.interval_minutes", t.IntervalMinutes)
	v.SetDefault("traffic.stale_after", t.StaleAfter)
	v.SetDefault("traffic.aviationstack.access_key", t.Aviationstack.AccessKey)
	v.SetDefault("traffic.aviationstack.base_url", t.Aviationstack.BaseURL)
	v.SetDefault("traffic.aviationstack.min_fetch_interval", t.Aviationstack.MinFetchInterval)
	v.SetDefault("traffic.aviationstack.occupancy_seconds", t.Aviationstack.OccupancySeconds)
	// The bare variable name is accepted too.
	_ = v.BindEnv("traffic.aviationstack.access_key", EnvPrefix+"_TRAFFIC_AVIATIONSTACK_ACCESS_KEY", "AVIATIONSTACK_ACCESS_KEY")

	v.SetDefault("summary.backend", cfg.Summary.Backend)
	v.SetDefault("summary.redis.address", cfg.Summary.Redis.Address)
	v.SetDefault("summary.redis.password", cfg.Summary.Redis.Password)
	v.SetDefault("summary.redis.db", cfg.Summary.Redis.DB)
	v.SetDefault("summary.redis.key", cfg.Summary.Redis.Key)
	v.SetDefault("summary.redis.ttl", cfg.Summary.Redis.TTL)

	v.SetDefault("events.backend", cfg.Events.Backend)
	v.SetDefault("events.kafka.brokers", cfg.Events.Kafka.Brokers)
	v.SetDefault("events.kafka.topic", cfg.Events.Kafka.Topic)
	v.SetDefault("events.kafka.batch_timeout", cfg.Events.Kafka.BatchTimeout)

	n := cfg.Node
	v.SetDefault("node.id", n.ID)
	v.SetDefault("node.coordinator_url", n.CoordinatorURL)
	v.SetDefault("node.heartbeat_interval", n.HeartbeatInterval)
	v.SetDefault("node.poll_interval", n.PollInterval)
	v.SetDefault("node.max_retries", n.MaxRetries)
	v.SetDefault("node.retry_pause", n.RetryPause)
	v.SetDefault("node.request_timeout", n.RequestTimeout)

	l := cfg.Log
	v.SetDefault("log.level", l.Level)
	v.SetDefault("log.format", l.Format)
	v.SetDefault("log.outputs", l.Outputs)
	v.SetDefault("log.rotation.enable", l.Rotation.Enable)
	v.SetDefault("log.rotation.max_size_mb", l.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", l.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", l.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", l.Rotation.Compress)
}

func (c *Config) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Log.Level)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log.level: %q", c.Log.Level)
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if len(c.Log.Outputs) == 0 {
		c.Log.Outputs = []string{"stdout"}
	}

	c.Summary.Backend = strings.ToLower(strings.TrimSpace(c.Summary.Backend))
	switch c.Summary.Backend {
	case "", "memory":
		c.Summary.Backend = "memory"
	case "redis":
	default:
		return fmt.Errorf("invalid summary.backend: %q", c.Summary.Backend)
	}

	c.Events.Backend = strings.ToLower(strings.TrimSpace(c.Events.Backend))
	switch c.Events.Backend {
	case "", "none":
		c.Events.Backend = "none"
	case "kafka":
		if len(c.Events.Kafka.Brokers) == 0 {
			return errors.New("events.kafka.brokers is required when events.backend is kafka")
		}
	default:
		return fmt.Errorf("invalid events.backend: %q", c.Events.Backend)
	}

	switch coordinator.LateDecision(strings.ToLower(c.Coordinator.LatePolicy)) {
	case coordinator.DropLate, "":
		c.Coordinator.LatePolicy = string(coordinator.DropLate)
	case coordinator.AcceptLate:
		c.Coordinator.LatePolicy = string(coordinator.AcceptLate)
	default:
		return fmt.Errorf("invalid coordinator.late_policy: %q", c.Coordinator.LatePolicy)
	}

	if c.Coordinator.TasksPerCycle < 0 {
		return fmt.Errorf("coordinator.tasks_per_cycle must not be negative, got %d", c.Coordinator.TasksPerCycle)
	}
	if c.Coordinator.CycleInterval <= 0 {
		return fmt.Errorf("coordinator.cycle_interval must be positive, got %s", c.Coordinator.CycleInterval)
	}
	if c.Coordinator.RetainFinished < 0 {
		return fmt.Errorf("coordinator.retain_finished must not be negative, got %d", c.Coordinator.RetainFinished)
	}
	if c.Coordinator.WindowMinutes <= 0 {
		return fmt.Errorf("coordinator.window_minutes must be positive, got %d", c.Coordinator.WindowMinutes)
	}
	if c.Node.MaxRetries < 1 {
		c.Node.MaxRetries = 1
	}
	c.Node.CoordinatorURL = strings.TrimRight(c.Node.CoordinatorURL, "/")
	return nil
}

// Core returns the coordinator.Config these settings describe.
func (c CoordinatorConfig) Core() coordinator.Config {
	return coordinator.Config{
		NodeTimeout:     c.NodeTimeout,
		TaskTimeout:     c.TaskTimeout,
		WorkingGrace:    c.WorkingGrace,
		HistoryCapacity: c.HistoryCapacity,
		ForecastWindow:  c.ForecastWindow,
		RecentTasks:     c.RecentTasks,
		RetainFinished:  c.RetainFinished,
	}
}

// LateResultPolicy returns the configured policy.
func (c CoordinatorConfig) LateResultPolicy() coordinator.LateResultPolicy {
	if coordinator.LateDecision(c.LatePolicy) == coordinator.AcceptLate {
		return coordinator.AcceptLateResults
	}
	return coordinator.DropLateResults
}

// Dump renders cfg as YAML.
func Dump(cfg *Config) ([]byte, error) {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return out, nil
}
