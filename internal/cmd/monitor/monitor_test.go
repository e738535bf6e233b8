package monitor

import (
	"context"
	"errors"
	"flag"
	"net"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	monitorapp "github.com/lifesignal/monitor/internal/services/monitor/app"
)

func TestParseConfig_ParsesDefaultsAndFlags(t *testing.T) {
	fs := flag.NewFlagSet("monitor", flag.ContinueOnError)
	t.Setenv("LIFESIGNAL_MONITOR_DB_PATH", "/var/lib/monitor.db")
	t.Setenv("LIFESIGNAL_MONITOR_KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")

	cfg, err := ParseConfig(fs, []string{"-kind", "org", "-today", "2024-05-05", "-locale", "it-IT"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.DBPath != "/var/lib/monitor.db" {
		t.Fatalf("db path = %q, want env value", cfg.DBPath)
	}
	if want := []string{"kafka-1:9092", "kafka-2:9092"}; !reflect.DeepEqual(cfg.KafkaBrokers, want) {
		t.Fatalf("brokers = %v, want %v", cfg.KafkaBrokers, want)
	}
	if cfg.Kind != "org" || cfg.Today != "2024-05-05" || cfg.Locale != "it-IT" {
		t.Fatalf("config = %+v", cfg)
	}
	if cfg.FirstYear != 2020 || cfg.KafkaTopic != "lifesignal.monitor" {
		t.Fatalf("defaults = %d %q", cfg.FirstYear, cfg.KafkaTopic)
	}
}

func TestParseConfig_KafkaBrokersFlag(t *testing.T) {
	fs := flag.NewFlagSet("monitor", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-kind", "daily_log", "-kafka-brokers", " a:1, ,b:2"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if want := []string{"a:1", "b:2"}; !reflect.DeepEqual(cfg.KafkaBrokers, want) {
		t.Fatalf("brokers = %v, want %v", cfg.KafkaBrokers, want)
	}
}

func TestParseConfig_Rejects(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "nothing to do", args: nil},
		{name: "unknown report", args: []string{"-report", "monthly"}},
		{name: "unknown kind", args: []string{"-kind", "hourly"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fs := flag.NewFlagSet("monitor", flag.ContinueOnError)
			if _, err := ParseConfig(fs, tc.args); err == nil {
				t.Fatal("expected error")
			}
		})
	}

	fs := flag.NewFlagSet("monitor", flag.ContinueOnError)
	_, err := ParseConfig(fs, []string{"-kind", "hourly"})
	if !errors.Is(err, monitorapp.ErrUnknownKind) {
		t.Fatalf("err = %v, want ErrUnknownKind", err)
	}
}

func TestRunImportsAndDispatches(t *testing.T) {
	dir := t.TempDir()
	importPath := filepath.Join(dir, "records.jsonl")
	lines := strings.Join([]string{
		`{"timestamp":"2024-05-03T07:00:00Z","value":5,"category":"running"}`,
		`{"timestamp":"2024-05-04T07:00:00Z","value":6,"category":"running"}`,
		`{"timestamp":"2024-05-05T07:00:00Z","value":7,"category":"running"}`,
	}, "\n")
	if err := os.WriteFile(importPath, []byte(lines), 0o644); err != nil {
		t.Fatalf("write import file: %v", err)
	}

	cfg := Config{
		DBPath:     filepath.Join(dir, "monitor.db"),
		Locale:     "en-US",
		FirstYear:  2020,
		Kind:       "calendar",
		Today:      "2024-05-05",
		ImportPath: importPath,
		Format:     "jsonl",
		Report:     ReportVariety,
	}
	var out strings.Builder
	if err := run(context.Background(), cfg, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "2024: 3 activities") {
		t.Fatalf("output missing variety report:\n%s", got)
	}
	if !strings.Contains(got, "[running/daily] Wow! A streak of 3 running activities!") {
		t.Fatalf("output missing streak delivery:\n%s", got)
	}
}

func TestRunRejectsBadToday(t *testing.T) {
	cfg := Config{DBPath: filepath.Join(t.TempDir(), "monitor.db"), Kind: "org", Today: "05/05/2024"}
	if err := run(context.Background(), cfg, &strings.Builder{}); err == nil {
		t.Fatal("expected error for malformed -today")
	}
}

func TestParseConfig_HealthProbeAlone(t *testing.T) {
	fs := flag.NewFlagSet("monitor", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-health-probe", "localhost:8091"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HealthProbe != "localhost:8091" {
		t.Fatalf("health probe = %q", cfg.HealthProbe)
	}
}

func TestRunHealthProbe(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	stop := monitorapp.ServeHealth(context.Background(), listener)
	defer stop()

	var out strings.Builder
	if err := run(context.Background(), Config{HealthProbe: listener.Addr().String()}, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "SERVING" {
		t.Fatalf("output = %q, want SERVING", got)
	}
}
