package config

import (
	"strings"
	"testing"
	"time"
)

type envTestConfig struct {
	ChartDir  string        `env:"TEST_CHART_DIR" envDefault:"charts"`
	FirstYear int           `env:"TEST_FIRST_YEAR" envDefault:"2020"`
	Timeout   time.Duration `env:"TEST_TIMEOUT" envDefault:"30s"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.ChartDir != "charts" {
		t.Fatalf("chart dir = %q, want %q", cfg.ChartDir, "charts")
	}
	if cfg.FirstYear != 2020 {
		t.Fatalf("first year = %d, want 2020", cfg.FirstYear)
	}
	if cfg.Timeout != 30*time.Second {
		t.Fatalf("timeout = %v, want 30s", cfg.Timeout)
	}
}

func TestParseEnvReadsPrefixedVariables(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("LIFESIGNAL_TEST_CHART_DIR", "/tmp/charts")
	t.Setenv("TEST_FIRST_YEAR", "1999")

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.ChartDir != "/tmp/charts" {
		t.Fatalf("chart dir = %q, want %q", cfg.ChartDir, "/tmp/charts")
	}
	if cfg.FirstYear != 2020 {
		t.Fatalf("unprefixed variable must be ignored, got first year %d", cfg.FirstYear)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("LIFESIGNAL_TEST_FIRST_YEAR", "not-an-int")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}
