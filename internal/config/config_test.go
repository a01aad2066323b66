package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Streams.Ingest != "ingest" || cfg.Streams.Alerts != "alerts" {
		t.Fatalf("unexpected stream names: %+v", cfg.Streams)
	}
	if cfg.Producer.Interval != 100*time.Millisecond {
		t.Fatalf("producer interval default: %v", cfg.Producer.Interval)
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "runnel.yaml")
	data := []byte(`
data_dir: /tmp/runnel-test
streams:
  partitions: 8
dispatcher:
  batch_size: 16
  retry:
    policy: fixed
    max_attempts: 3
window:
  size: 30s
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDir != "/tmp/runnel-test" {
		t.Fatalf("data_dir: %q", cfg.DataDir)
	}
	if cfg.Streams.Partitions != 8 {
		t.Fatalf("partitions: %d", cfg.Streams.Partitions)
	}
	if cfg.Dispatcher.Retry.Policy != "fixed" || cfg.Dispatcher.Retry.MaxAttempts != 3 {
		t.Fatalf("retry: %+v", cfg.Dispatcher.Retry)
	}
	if cfg.Window.Size != 30*time.Second {
		t.Fatalf("window size: %v", cfg.Window.Size)
	}
	// untouched sections keep defaults
	if cfg.Notifier.Kind != "console" {
		t.Fatalf("notifier kind: %q", cfg.Notifier.Kind)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("RUNNEL_STREAMS_PARTITIONS", "2")
	t.Setenv("RUNNEL_DISPATCHER_RETRY_POLICY", "none")
	t.Setenv("RUNNEL_NOTIFIER_RECIPIENT", "alerts@example.com")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Streams.Partitions != 2 {
		t.Fatalf("partitions: %d", cfg.Streams.Partitions)
	}
	if cfg.Dispatcher.Retry.Policy != "none" {
		t.Fatalf("retry policy: %q", cfg.Dispatcher.Retry.Policy)
	}
	if cfg.Notifier.Recipient != "alerts@example.com" {
		t.Fatalf("recipient: %q", cfg.Notifier.Recipient)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
		{"bad fsync", func(c *Config) { c.Fsync = "sometimes" }},
		{"same streams", func(c *Config) { c.Streams.Alerts = c.Streams.Ingest }},
		{"zero partitions", func(c *Config) { c.Streams.Partitions = 0 }},
		{"bad retry policy", func(c *Config) { c.Dispatcher.Retry.Policy = "quadratic" }},
		{"zero window", func(c *Config) { c.Window.Size = 0 }},
		{"webhook without url", func(c *Config) { c.Notifier.Kind = "webhook"; c.Notifier.WebhookURL = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
