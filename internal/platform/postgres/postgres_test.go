package postgres

import (
	"strings"
	"testing"
	"time"
)

func TestConfigFromEnv_Defaults(t *testing.T) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv() err=%v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() err=%v", err)
	}
}

func TestConfigFromEnv_URLWins(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/app?sslmode=disable")
	t.Setenv("DATABASE_HOST", "ignored")
	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv() err=%v", err)
	}
	if cfg.URL != "postgres://u:p@db:5432/app?sslmode=disable" {
		t.Fatalf("URL=%q", cfg.URL)
	}
}

func TestConfigFromEnv_ComposedURL(t *testing.T) {
	t.Setenv("DATABASE_HOST", "db.internal")
	t.Setenv("DATABASE_PORT", "5433")
	t.Setenv("DATABASE_NAME", "shop")
	t.Setenv("DATABASE_USER", "app")
	t.Setenv("DATABASE_PASSWORD", "secret")
	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv() err=%v", err)
	}
	if !strings.Contains(cfg.URL, "db.internal:5433") {
		t.Fatalf("URL=%q, want composed host", cfg.URL)
	}
	if !strings.Contains(cfg.URL, "/shop") {
		t.Fatalf("URL=%q, want composed database name", cfg.URL)
	}
}

func TestConfigValidate(t *testing.T) {
	valid := Config{
		URL:          "postgres://u:p@localhost:5432/app",
		PingTimeout:  time.Second,
		MaxOpenConns: 10,
		MaxIdleConns: 5,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() err=%v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty url", func(c *Config) { c.URL = "" }},
		{"zero ping timeout", func(c *Config) { c.PingTimeout = 0 }},
		{"zero open conns", func(c *Config) { c.MaxOpenConns = 0 }},
		{"idle above open", func(c *Config) { c.MaxIdleConns = 20 }},
		{"negative lifetime", func(c *Config) { c.ConnMaxLifetime = -time.Second }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("Validate() expected error")
			}
		})
	}
}
