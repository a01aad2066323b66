package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix for environment overrides, e.g.
// RUNNEL_STREAMS_PARTITIONS=8 sets streams.partitions.
const EnvPrefix = "RUNNEL_"

// Load builds the config in three layers: defaults, an optional YAML file,
// then RUNNEL_* environment variables. An empty path skips the file layer.
func Load(path string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKeyToPath), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// envKeyToPath maps RUNNEL_SECTION_FIELD to section.field. Multi-word leaves
// need explicit mappings since underscores are ambiguous.
func envKeyToPath(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))

	explicit := map[string]string{
		"data_dir":                    "data_dir",
		"producer_pool_path":          "producer.pool_path",
		"dispatcher_batch_size":       "dispatcher.batch_size",
		"dispatcher_poll_interval":    "dispatcher.poll_interval",
		"dispatcher_retry_policy":     "dispatcher.retry.policy",
		"dispatcher_retry_base":       "dispatcher.retry.base",
		"dispatcher_retry_cap":        "dispatcher.retry.cap",
		"dispatcher_retry_factor":     "dispatcher.retry.factor",
		"dispatcher_retry_max_attempts": "dispatcher.retry.max_attempts",
		"notifier_webhook_url":        "notifier.webhook_url",
		"notifier_dedup_ttl":          "notifier.dedup_ttl",
		"retention_max_age":           "retention.max_age",
		"retention_max_bytes":         "retention.max_bytes",
	}
	if path, ok := explicit[key]; ok {
		return path
	}
	return strings.Replace(key, "_", ".", 1)
}

// FindConfigFile returns the first existing config file among the path in
// RUNNEL_CONFIG, ./runnel.yaml, and /etc/runnel/runnel.yaml. Empty if none.
func FindConfigFile() string {
	if p := os.Getenv("RUNNEL_CONFIG"); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range []string{"runnel.yaml", "/etc/runnel/runnel.yaml"} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
