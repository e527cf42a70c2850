package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/gatehouse/gatehouse/pkg/types"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration for YAML values like "200ms" or "5s"
type Duration time.Duration

// UnmarshalYAML parses a Go duration string
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"200ms\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration string form
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the service configuration file
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Retry   RetryConfig   `yaml:"retry"`
	Buffer  BufferConfig  `yaml:"buffer"`
	Cache   CacheConfig   `yaml:"cache"`
	Routing RoutingConfig `yaml:"routing"`
	Metrics MetricsConfig `yaml:"metrics"`
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
}

// StorageConfig locates the persistent store
type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
}

// RetryConfig bounds retries of transient store failures
type RetryConfig struct {
	MaxAttempts     int      `yaml:"max_attempts"`
	InitialInterval Duration `yaml:"initial_interval"`
	MaxElapsed      Duration `yaml:"max_elapsed"`
}

// BufferConfig tunes the event buffer
type BufferConfig struct {
	SizeLimit         int      `yaml:"size_limit"`
	FlushLoopInterval Duration `yaml:"flush_loop_interval"`
}

// CacheConfig tunes the event cache
type CacheConfig struct {
	CachedEventCount int `yaml:"cached_event_count"`
}

// RoutingConfig holds the shard set and the dual-routing window
type RoutingConfig struct {
	SourceRangeStart   int32               `yaml:"source_range_start"`
	SourceRangeEnd     int32               `yaml:"source_range_end"`
	TargetRangeStart   int32               `yaml:"target_range_start"`
	TargetRangeEnd     int32               `yaml:"target_range_end"`
	DataElementKind    string              `yaml:"data_element_kind"`
	TargetURL          string              `yaml:"target_url"`
	RoutingInitiallyOn bool                `yaml:"routing_initially_on"`
	Shards             []types.ShardConfig `yaml:"shards"`
}

// MetricsConfig toggles the metrics endpoint
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// ServerConfig tunes the HTTP listener
type ServerConfig struct {
	ListenAddr      string   `yaml:"listen_addr"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// LogConfig tunes logging output
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns the configuration used when a section or field is
// absent from the file
func Default() *Config {
	return &Config{
		Storage: StorageConfig{DataDir: "/var/lib/gatehouse"},
		Retry: RetryConfig{
			MaxAttempts:     3,
			InitialInterval: Duration(50 * time.Millisecond),
			MaxElapsed:      Duration(5 * time.Second),
		},
		Buffer: BufferConfig{
			SizeLimit:         200,
			FlushLoopInterval: Duration(200 * time.Millisecond),
		},
		Cache:   CacheConfig{CachedEventCount: 10000},
		Metrics: MetricsConfig{Enabled: true},
		Server: ServerConfig{
			ListenAddr:      ":8460",
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Log: LogConfig{Level: "info", JSON: true},
	}
}

// Load reads and validates a configuration file, filling absent fields
// from defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot start with
func (c *Config) Validate() error {
	if c.Storage.DataDir == "" {
		return &types.ValidationError{Field: "storage.data_dir", Reason: "must not be empty"}
	}
	if c.Retry.MaxAttempts < 0 {
		return &types.ValidationError{Field: "retry.max_attempts", Reason: "must not be negative"}
	}
	if c.Buffer.SizeLimit <= 0 {
		return &types.ValidationError{Field: "buffer.size_limit", Reason: "must be positive"}
	}
	if c.Buffer.FlushLoopInterval <= 0 {
		return &types.ValidationError{Field: "buffer.flush_loop_interval", Reason: "must be positive"}
	}
	if c.Cache.CachedEventCount <= 0 {
		return &types.ValidationError{Field: "cache.cached_event_count", Reason: "must be positive"}
	}
	if c.Server.ListenAddr == "" {
		return &types.ValidationError{Field: "server.listen_addr", Reason: "must not be empty"}
	}

	r := c.Routing
	if r.SourceRangeEnd < r.SourceRangeStart {
		return &types.ValidationError{Field: "routing.source_range_end", Reason: "must not precede source_range_start"}
	}
	if r.TargetRangeEnd < r.TargetRangeStart {
		return &types.ValidationError{Field: "routing.target_range_end", Reason: "must not precede target_range_start"}
	}
	if r.DataElementKind != "" {
		switch types.ElementKind(r.DataElementKind) {
		case types.ElementUser, types.ElementGroup, types.ElementGroupToGroup:
		default:
			return &types.ValidationError{
				Field:  "routing.data_element_kind",
				Reason: fmt.Sprintf("unknown element kind %q", r.DataElementKind),
			}
		}
	}
	if r.TargetURL != "" {
		if err := validateURL("routing.target_url", r.TargetURL); err != nil {
			return err
		}
	}
	for i, shard := range r.Shards {
		if err := shard.Validate(); err != nil {
			return fmt.Errorf("routing.shards[%d]: %w", i, err)
		}
	}
	if err := types.ShardConfigSet(r.Shards).Validate(); err != nil {
		return fmt.Errorf("routing.shards: %w", err)
	}

	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return &types.ValidationError{Field: "log.level", Reason: fmt.Sprintf("unknown level %q", c.Log.Level)}
	}
	return nil
}

func validateURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return &types.ValidationError{Field: field, Reason: fmt.Sprintf("malformed URL %q", raw)}
	}
	return nil
}
