package config

import (
	"fmt"
	"time"
)

// Config is the top-level runtime configuration. Values are layered:
// built-in defaults, then an optional YAML file, then RUNNEL_* environment
// variables.
type Config struct {
	DataDir string `koanf:"data_dir"`
	Fsync   string `koanf:"fsync"` // always | interval | never

	Streams    StreamsConfig    `koanf:"streams"`
	Producer   ProducerConfig   `koanf:"producer"`
	Dispatcher DispatcherConfig `koanf:"dispatcher"`
	Window     WindowConfig     `koanf:"window"`
	Notifier   NotifierConfig   `koanf:"notifier"`
	Retention  RetentionConfig  `koanf:"retention"`
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// StreamsConfig names the two internal streams and sets the partition count
// for the ingest stream. The alerts stream is always single-partition so
// notification order follows alert order.
type StreamsConfig struct {
	Ingest     string `koanf:"ingest"`
	Alerts     string `koanf:"alerts"`
	Partitions int    `koanf:"partitions"`
}

type ProducerConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Interval time.Duration `koanf:"interval"`
	PoolPath string        `koanf:"pool_path"` // optional JSON sample pool; empty uses built-in
	Seed     int64         `koanf:"seed"`      // 0 seeds from the clock
}

type DispatcherConfig struct {
	BatchSize    int           `koanf:"batch_size"`
	PollInterval time.Duration `koanf:"poll_interval"`
	Retry        RetryConfig   `koanf:"retry"`
}

// RetryConfig shapes redelivery of failed batches before dead-lettering.
type RetryConfig struct {
	Policy      string        `koanf:"policy"` // exp | exp-jitter | fixed | none
	Base        time.Duration `koanf:"base"`
	Cap         time.Duration `koanf:"cap"`
	Factor      float64       `koanf:"factor"`
	MaxAttempts int           `koanf:"max_attempts"`
}

type WindowConfig struct {
	Size      time.Duration `koanf:"size"`
	Predicate string        `koanf:"predicate"` // CEL expression over event attributes
	Dedup     bool          `koanf:"dedup"`     // one alert per entity per window
}

type NotifierConfig struct {
	Kind       string        `koanf:"kind"` // console | webhook
	Recipient  string        `koanf:"recipient"`
	WebhookURL string        `koanf:"webhook_url"`
	Timeout    time.Duration `koanf:"timeout"`
	DedupTTL   time.Duration `koanf:"dedup_ttl"`
}

type RetentionConfig struct {
	MaxAge   time.Duration `koanf:"max_age"`   // 0 disables age-based trims
	MaxBytes int64         `koanf:"max_bytes"` // 0 disables size-based trims
	Interval time.Duration `koanf:"interval"`
}

type ServerConfig struct {
	Addr string `koanf:"addr"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // text | json
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		DataDir: DefaultDataDir(),
		Fsync:   "always",
		Streams: StreamsConfig{
			Ingest:     "ingest",
			Alerts:     "alerts",
			Partitions: 4,
		},
		Producer: ProducerConfig{
			Enabled:  false,
			Interval: 100 * time.Millisecond,
		},
		Dispatcher: DispatcherConfig{
			BatchSize:    64,
			PollInterval: 250 * time.Millisecond,
			Retry: RetryConfig{
				Policy:      "exp-jitter",
				Base:        100 * time.Millisecond,
				Cap:         5 * time.Second,
				Factor:      2.0,
				MaxAttempts: 5,
			},
		},
		Window: WindowConfig{
			Size:      time.Minute,
			Predicate: `int(attrs.inventory) < 10`,
			Dedup:     true,
		},
		Notifier: NotifierConfig{
			Kind:      "console",
			Recipient: "ops@example.com",
			Timeout:   5 * time.Second,
			DedupTTL:  10 * time.Minute,
		},
		Retention: RetentionConfig{
			Interval: time.Minute,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate rejects configurations the runtime cannot start with.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	switch c.Fsync {
	case "always", "interval", "never":
	default:
		return fmt.Errorf("fsync: unknown mode %q", c.Fsync)
	}
	if c.Streams.Ingest == "" || c.Streams.Alerts == "" {
		return fmt.Errorf("streams: ingest and alerts names are required")
	}
	if c.Streams.Ingest == c.Streams.Alerts {
		return fmt.Errorf("streams: ingest and alerts must differ")
	}
	if c.Streams.Partitions < 1 {
		return fmt.Errorf("streams: partitions must be >= 1, got %d", c.Streams.Partitions)
	}
	if c.Dispatcher.BatchSize < 1 {
		return fmt.Errorf("dispatcher: batch_size must be >= 1")
	}
	switch c.Dispatcher.Retry.Policy {
	case "exp", "exp-jitter", "fixed", "none":
	default:
		return fmt.Errorf("dispatcher: unknown retry policy %q", c.Dispatcher.Retry.Policy)
	}
	if c.Window.Size <= 0 {
		return fmt.Errorf("window: size must be positive")
	}
	if c.Window.Predicate == "" {
		return fmt.Errorf("window: predicate is required")
	}
	switch c.Notifier.Kind {
	case "console":
	case "webhook":
		if c.Notifier.WebhookURL == "" {
			return fmt.Errorf("notifier: webhook_url is required for kind webhook")
		}
	default:
		return fmt.Errorf("notifier: unknown kind %q", c.Notifier.Kind)
	}
	if c.Producer.Enabled && c.Producer.Interval <= 0 {
		return fmt.Errorf("producer: interval must be positive")
	}
	return nil
}
