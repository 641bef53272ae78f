package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Config controls the frontend logger's flush cadence and its retry
// policy against the external log writer.
type Config struct {
	// FlushInterval is how often the background loop drains committed
	// transactions when no explicit flush is requested.
	FlushInterval time.Duration `yaml:"-"`

	// MaxFlushRetries bounds the writer retry loop of a single flush
	// cycle. Once exhausted the affected transactions are reported as
	// durability-unknown.
	MaxFlushRetries uint64 `yaml:"maxFlushRetries"`

	// RetryInitialWait seeds the exponential backoff between writer
	// retries.
	RetryInitialWait time.Duration `yaml:"-"`
}

// UnmarshalYAML accepts durations in time.ParseDuration form ("250ms",
// "1s") and leaves absent keys at their prior values.
func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	raw := struct {
		FlushInterval    string  `yaml:"flushInterval"`
		MaxFlushRetries  *uint64 `yaml:"maxFlushRetries"`
		RetryInitialWait string  `yaml:"retryInitialWait"`
	}{}
	if err := unmarshal(&raw); err != nil {
		return err
	}
	if raw.FlushInterval != "" {
		d, err := time.ParseDuration(raw.FlushInterval)
		if err != nil {
			return fmt.Errorf("invalid flushInterval: %w", err)
		}
		c.FlushInterval = d
	}
	if raw.MaxFlushRetries != nil {
		c.MaxFlushRetries = *raw.MaxFlushRetries
	}
	if raw.RetryInitialWait != "" {
		d, err := time.ParseDuration(raw.RetryInitialWait)
		if err != nil {
			return fmt.Errorf("invalid retryInitialWait: %w", err)
		}
		c.RetryInitialWait = d
	}
	return nil
}

func DefaultConfig() Config {
	return Config{
		FlushInterval:    250 * time.Millisecond,
		MaxFlushRetries:  5,
		RetryInitialWait: 10 * time.Millisecond,
	}
}

// Load reads a yaml config file over the defaults, so a partial file only
// overrides the keys it names.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}
