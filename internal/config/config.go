package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfiguration is returned when a configuration value is rejected.
var ErrInvalidConfiguration = errors.New("invalid configuration")

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Counting    CountingConfig    `yaml:"counting"`
	Aggregation AggregationConfig `yaml:"aggregation"`
	Source      SourceConfig      `yaml:"source"`
	NATS        NATSConfig        `yaml:"nats"`
	MinIO       MinIOConfig       `yaml:"minio"`
	Logging     LoggingConfig     `yaml:"logging"`
}

type ServerConfig struct {
	Port              int `yaml:"port"`
	MetricsPort       int `yaml:"metrics_port"`
	UpdateFrequencyMs int `yaml:"update_frequency_ms"`
}

// CountingConfig holds the tracker and line settings.
type CountingConfig struct {
	Label                         string  `yaml:"label"`
	LineX                         float64 `yaml:"line_x"`
	ConfidenceThreshold           float64 `yaml:"confidence_threshold"`
	MaxMatchDistance              float64 `yaml:"max_match_distance"`
	MissingFrameEvictionThreshold int     `yaml:"missing_frame_eviction_threshold"`
	TrajectoryCapacity            int     `yaml:"trajectory_capacity"`
	FrameWidth                    int     `yaml:"frame_width"`
	FrameHeight                   int     `yaml:"frame_height"`
}

type AggregationConfig struct {
	HistoryCapacity int           `yaml:"history_capacity"`
	LockTimeout     time.Duration `yaml:"lock_timeout"`
}

type SourceKind string

const (
	SourceDir   SourceKind = "dir"
	SourceMinIO SourceKind = "minio"
	SourceNATS  SourceKind = "nats"
)

// SourceConfig selects where detection events come from.
type SourceConfig struct {
	Kind         SourceKind    `yaml:"kind"`
	Dir          string        `yaml:"dir"`
	Prefix       string        `yaml:"prefix"`
	PollInterval time.Duration `yaml:"poll_interval"`
	ProcessedCap int           `yaml:"processed_cap"`
	Buffer       int           `yaml:"buffer"`
}

type NATSConfig struct {
	URL string `yaml:"url"`
	// Enabled turns on crossing publication and the control subject. It is
	// implied by the nats source kind.
	Enabled bool `yaml:"enabled"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
	// Archive makes the ingestor copy every forwarded document to the bucket.
	Archive bool `yaml:"archive"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
// An empty path yields the defaults plus overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a config populated only with defaults.
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.MetricsPort == 0 {
		cfg.Server.MetricsPort = 8081
	}
	if cfg.Server.UpdateFrequencyMs == 0 {
		cfg.Server.UpdateFrequencyMs = 200
	}
	if cfg.Counting.Label == "" {
		cfg.Counting.Label = "person"
	}
	if cfg.Counting.LineX == 0 {
		cfg.Counting.LineX = 320
	}
	if cfg.Counting.ConfidenceThreshold == 0 {
		cfg.Counting.ConfidenceThreshold = 0.4
	}
	if cfg.Counting.MaxMatchDistance == 0 {
		cfg.Counting.MaxMatchDistance = 192
	}
	if cfg.Counting.MissingFrameEvictionThreshold == 0 {
		cfg.Counting.MissingFrameEvictionThreshold = 5
	}
	if cfg.Counting.TrajectoryCapacity == 0 {
		cfg.Counting.TrajectoryCapacity = 30
	}
	if cfg.Counting.FrameWidth == 0 {
		cfg.Counting.FrameWidth = 640
	}
	if cfg.Counting.FrameHeight == 0 {
		cfg.Counting.FrameHeight = 480
	}
	if cfg.Aggregation.HistoryCapacity == 0 {
		cfg.Aggregation.HistoryCapacity = 50
	}
	if cfg.Aggregation.LockTimeout == 0 {
		cfg.Aggregation.LockTimeout = 2 * time.Second
	}
	if cfg.Source.Kind == "" {
		cfg.Source.Kind = SourceDir
	}
	if cfg.Source.Dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.Source.Dir = home + "/temp"
		} else {
			cfg.Source.Dir = "temp"
		}
	}
	if cfg.Source.PollInterval == 0 {
		cfg.Source.PollInterval = time.Second
	}
	if cfg.Source.ProcessedCap == 0 {
		cfg.Source.ProcessedCap = 1000
	}
	if cfg.Source.Buffer == 0 {
		cfg.Source.Buffer = 64
	}
	if cfg.NATS.URL == "" {
		cfg.NATS.URL = "nats://127.0.0.1:4222"
	}
	if cfg.Source.Kind == SourceNATS {
		cfg.NATS.Enabled = true
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = "detections"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate rejects values the counter cannot run with.
func (c *Config) Validate() error {
	cnt := c.Counting
	switch {
	case !validThreshold(cnt.ConfidenceThreshold):
		return fmt.Errorf("%w: confidence_threshold %v not in [0,1]", ErrInvalidConfiguration, cnt.ConfidenceThreshold)
	case cnt.MaxMatchDistance <= 0:
		return fmt.Errorf("%w: max_match_distance must be positive", ErrInvalidConfiguration)
	case cnt.MissingFrameEvictionThreshold <= 0:
		return fmt.Errorf("%w: missing_frame_eviction_threshold must be positive", ErrInvalidConfiguration)
	case cnt.TrajectoryCapacity < 2:
		return fmt.Errorf("%w: trajectory_capacity must be at least 2", ErrInvalidConfiguration)
	case cnt.FrameWidth <= 0 || cnt.FrameHeight <= 0:
		return fmt.Errorf("%w: frame dimensions must be positive", ErrInvalidConfiguration)
	case c.Aggregation.HistoryCapacity <= 0:
		return fmt.Errorf("%w: history_capacity must be positive", ErrInvalidConfiguration)
	case c.Aggregation.LockTimeout <= 0:
		return fmt.Errorf("%w: lock_timeout must be positive", ErrInvalidConfiguration)
	case c.Server.UpdateFrequencyMs <= 0:
		return fmt.Errorf("%w: update_frequency_ms must be positive", ErrInvalidConfiguration)
	}
	switch c.Source.Kind {
	case SourceDir, SourceNATS:
	case SourceMinIO:
		if c.MinIO.Endpoint == "" {
			return fmt.Errorf("%w: minio source requires minio.endpoint", ErrInvalidConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown source kind %q", ErrInvalidConfiguration, c.Source.Kind)
	}
	return nil
}

func validThreshold(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0 && v <= 1
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PC_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("PC_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.MetricsPort = port
		}
	}
	if v := os.Getenv("PC_LINE_X"); v != "" {
		if x, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Counting.LineX = x
		}
	}
	if v := os.Getenv("PC_CONFIDENCE_THRESHOLD"); v != "" {
		if t, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Counting.ConfidenceThreshold = t
		}
	}
	if v := os.Getenv("PC_LOCK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Aggregation.LockTimeout = d
		}
	}
	if v := os.Getenv("PC_SOURCE_KIND"); v != "" {
		cfg.Source.Kind = SourceKind(v)
	}
	if v := os.Getenv("PC_RESULTS_DIR"); v != "" {
		cfg.Source.Dir = v
	}
	if v := os.Getenv("PC_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("PC_NATS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.NATS.Enabled = b
		}
	}
	if v := os.Getenv("PC_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("PC_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("PC_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("PC_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("PC_MINIO_ARCHIVE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.MinIO.Archive = b
		}
	}
	if v := os.Getenv("PC_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
