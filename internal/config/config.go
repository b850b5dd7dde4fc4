// Package config assembles the service-level configuration: compiled-in
// defaults, then an optional YAML file named by BACKEND_CONFIG, then
// environment overrides, merged in that order. Infrastructure
// connections (database, tracing, object store, auth) are configured by
// their own platform packages.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/storefront-labs/storefront-go/internal/platform/env"
	"github.com/storefront-labs/storefront-go/internal/retry"
)

type Config struct {
	App        App        `yaml:"app"`
	HTTP       HTTP       `yaml:"http"`
	Retry      Retry      `yaml:"retry"`
	Simulation Simulation `yaml:"simulation"`
}

type App struct {
	Name string `yaml:"name"`
}

type HTTP struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type Retry struct {
	MaxRetries     int           `yaml:"max_retries"`
	BaseDelay      time.Duration `yaml:"base_delay"`
	MaxDelay       time.Duration `yaml:"max_delay"`
	JitterFraction float64       `yaml:"jitter_fraction"`
}

// Simulation controls the artificial latency the demo injects into
// request handling. Each range is sampled uniformly per call.
type Simulation struct {
	Enabled         bool          `yaml:"enabled"`
	ListMin         time.Duration `yaml:"list_min"`
	ListMax         time.Duration `yaml:"list_max"`
	OrderMin        time.Duration `yaml:"order_min"`
	OrderMax        time.Duration `yaml:"order_max"`
	PaymentMin      time.Duration `yaml:"payment_min"`
	PaymentMax      time.Duration `yaml:"payment_max"`
	InventoryMin    time.Duration `yaml:"inventory_min"`
	InventoryMax    time.Duration `yaml:"inventory_max"`
	NotificationMin time.Duration `yaml:"notification_min"`
	NotificationMax time.Duration `yaml:"notification_max"`
}

func Defaults() Config {
	return Config{
		App: App{Name: "backend"},
		HTTP: HTTP{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Retry: Retry{
			MaxRetries:     3,
			BaseDelay:      time.Second,
			MaxDelay:       10 * time.Second,
			JitterFraction: 0.1,
		},
		Simulation: Simulation{
			Enabled:         true,
			ListMin:         100 * time.Millisecond,
			ListMax:         500 * time.Millisecond,
			OrderMin:        200 * time.Millisecond,
			OrderMax:        time.Second,
			PaymentMin:      100 * time.Millisecond,
			PaymentMax:      300 * time.Millisecond,
			InventoryMin:    100 * time.Millisecond,
			InventoryMax:    200 * time.Millisecond,
			NotificationMin: 50 * time.Millisecond,
			NotificationMax: 100 * time.Millisecond,
		},
	}
}

// Load merges defaults, the optional YAML file, and env overrides.
func Load() (Config, error) {
	cfg := Defaults()

	if path := env.String("BACKEND_CONFIG", ""); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var err error
	c.App.Name = env.String("BACKEND_SERVICE_NAME", c.App.Name)
	c.HTTP.Addr = env.String("BACKEND_HTTP_ADDR", c.HTTP.Addr)
	if c.HTTP.ShutdownTimeout, err = env.Duration("BACKEND_SHUTDOWN_TIMEOUT", c.HTTP.ShutdownTimeout); err != nil {
		return err
	}
	if c.Retry.MaxRetries, err = env.Int("BACKEND_RETRY_MAX_RETRIES", c.Retry.MaxRetries); err != nil {
		return err
	}
	if c.Retry.BaseDelay, err = env.Duration("BACKEND_RETRY_BASE_DELAY", c.Retry.BaseDelay); err != nil {
		return err
	}
	if c.Retry.MaxDelay, err = env.Duration("BACKEND_RETRY_MAX_DELAY", c.Retry.MaxDelay); err != nil {
		return err
	}
	if c.Retry.JitterFraction, err = env.Float64("BACKEND_RETRY_JITTER_FRACTION", c.Retry.JitterFraction); err != nil {
		return err
	}
	if c.Simulation.Enabled, err = env.Bool("BACKEND_SIMULATION_ENABLED", c.Simulation.Enabled); err != nil {
		return err
	}
	return nil
}

func (c Config) Validate() error {
	if c.App.Name == "" {
		return errors.New("app name is required")
	}
	if c.HTTP.Addr == "" {
		return errors.New("http addr is required")
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		return errors.New("http shutdown timeout must be positive")
	}
	if err := c.RetryPolicy().Validate(); err != nil {
		return fmt.Errorf("retry: %w", err)
	}
	if err := c.Simulation.validate(); err != nil {
		return fmt.Errorf("simulation: %w", err)
	}
	return nil
}

func (s Simulation) validate() error {
	ranges := []struct {
		name     string
		min, max time.Duration
	}{
		{"list", s.ListMin, s.ListMax},
		{"order", s.OrderMin, s.OrderMax},
		{"payment", s.PaymentMin, s.PaymentMax},
		{"inventory", s.InventoryMin, s.InventoryMax},
		{"notification", s.NotificationMin, s.NotificationMax},
	}
	for _, r := range ranges {
		if r.min < 0 {
			return fmt.Errorf("%s min must be >= 0", r.name)
		}
		if r.max < r.min {
			return fmt.Errorf("%s max must be >= min", r.name)
		}
	}
	return nil
}

// RetryPolicy converts the retry section into an executor policy.
func (c Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxRetries:     c.Retry.MaxRetries,
		BaseDelay:      c.Retry.BaseDelay,
		MaxDelay:       c.Retry.MaxDelay,
		JitterFraction: c.Retry.JitterFraction,
	}
}
