// Package monitor parses the one-shot monitor command and runs it.
package monitor

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	entrypoint "github.com/lifesignal/monitor/internal/platform/cmd"
	platformgrpc "github.com/lifesignal/monitor/internal/platform/grpc"
	monitorapp "github.com/lifesignal/monitor/internal/services/monitor/app"
	"github.com/lifesignal/monitor/internal/services/monitor/source"
)

// ReportVariety prints the per-year activity variety.
const ReportVariety = "variety"

const healthProbeTimeout = 5 * time.Second

// Config holds monitor command configuration.
type Config struct {
	DBPath       string   `env:"MONITOR_DB_PATH" envDefault:"data/monitor.db"`
	ChartDir     string   `env:"MONITOR_CHART_DIR"`
	Locale       string   `env:"MONITOR_LOCALE" envDefault:"en-US"`
	FirstYear    int      `env:"MONITOR_FIRST_YEAR" envDefault:"2020"`
	RegistryPath string   `env:"MONITOR_REGISTRY"`
	KafkaBrokers []string `env:"MONITOR_KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"MONITOR_KAFKA_TOPIC" envDefault:"lifesignal.monitor"`

	Kind       string
	Today      string
	ImportPath string
	Format     string
	LogYear    int
	Report     string
	DryRun     bool
	// HealthProbe is a monitord health address to check instead of running.
	HealthProbe string
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The monitor SQLite database path")
	fs.StringVar(&cfg.ChartDir, "chart-dir", cfg.ChartDir, "Directory for chart images; empty disables charts")
	fs.StringVar(&cfg.Locale, "locale", cfg.Locale, "Message locale")
	fs.IntVar(&cfg.FirstYear, "first-year", cfg.FirstYear, "Oldest year of history to load")
	fs.StringVar(&cfg.RegistryPath, "registry", cfg.RegistryPath, "YAML file overriding registry entries")
	fs.Func("kafka-brokers", "Comma-separated Kafka brokers for the message topic", func(raw string) error {
		cfg.KafkaBrokers = splitList(raw)
		return nil
	})
	fs.StringVar(&cfg.KafkaTopic, "kafka-topic", cfg.KafkaTopic, "Kafka topic receiving deliveries")
	fs.StringVar(&cfg.Kind, "kind", "", "Request kind to dispatch (daily_activity, weekly_activity, daily_log, weekly_log)")
	fs.StringVar(&cfg.Today, "today", "", "Evaluation day as YYYY-MM-DD; empty means now")
	fs.StringVar(&cfg.ImportPath, "import", "", "File of raw records to import before dispatching")
	fs.StringVar(&cfg.Format, "format", string(source.FormatJSONLines), "Import format (jsonl, calendar, dailylog)")
	fs.IntVar(&cfg.LogYear, "log-year", 0, "Year of a daily-log import; zero means the current year")
	fs.StringVar(&cfg.Report, "report", "", "Print a report instead of dispatching (variety)")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "Evaluate and print without delivering")
	fs.StringVar(&cfg.HealthProbe, "health-probe", "", "Check a monitord gRPC health address and exit")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if cfg.HealthProbe != "" {
		return cfg, nil
	}
	if cfg.Kind == "" && cfg.ImportPath == "" && cfg.Report == "" {
		return Config{}, errors.New("one of -kind, -import, -report or -health-probe is required")
	}
	if cfg.Report != "" && cfg.Report != ReportVariety {
		return Config{}, fmt.Errorf("unknown report %q", cfg.Report)
	}
	if cfg.Kind != "" {
		if _, err := monitorapp.ParseKind(cfg.Kind); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Run imports, reports or dispatches as configured, writing output to out.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceMonitor, func(ctx context.Context) error {
		return run(ctx, cfg, out)
	})
}

func run(ctx context.Context, cfg Config, out io.Writer) error {
	if cfg.HealthProbe != "" {
		if err := platformgrpc.Probe(ctx, cfg.HealthProbe, monitorapp.HealthServiceName, healthProbeTimeout, log.Printf); err != nil {
			return err
		}
		fmt.Fprintln(out, "SERVING")
		return nil
	}
	today, err := parseToday(cfg.Today)
	if err != nil {
		return err
	}
	rt, err := monitorapp.Open(monitorapp.RuntimeConfig{
		DBPath:       cfg.DBPath,
		ChartDir:     cfg.ChartDir,
		Locale:       cfg.Locale,
		FirstYear:    cfg.FirstYear,
		RegistryPath: cfg.RegistryPath,
		KafkaBrokers: cfg.KafkaBrokers,
		KafkaTopic:   cfg.KafkaTopic,
		DryRun:       cfg.DryRun,
		Stdout:       out,
	})
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rt.Close(); closeErr != nil {
			log.Printf("close monitor runtime: %v", closeErr)
		}
	}()

	if cfg.ImportPath != "" {
		if err := importFile(ctx, rt.Dispatcher, cfg); err != nil {
			return err
		}
	}

	if cfg.Report == ReportVariety {
		lines, err := rt.Dispatcher.VarietyReport(ctx)
		if err != nil {
			return err
		}
		for _, line := range lines {
			fmt.Fprintln(out, line)
		}
	}

	if cfg.Kind == "" {
		return nil
	}
	kind, err := monitorapp.ParseKind(cfg.Kind)
	if err != nil {
		return err
	}
	summary, err := rt.Dispatcher.Dispatch(ctx, kind, today)
	if err != nil {
		return err
	}
	if cfg.DryRun {
		for _, item := range summary.Deliveries {
			if item.ChartPath != "" {
				fmt.Fprintf(out, "chart: %s\n", item.ChartPath)
				continue
			}
			fmt.Fprintln(out, item.Text)
		}
	}
	log.Printf("%s: %d delivered, %d duplicates, %d failed", summary.Kind, summary.Delivered, summary.Duplicates, summary.Failed)
	return nil
}

func parseToday(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	today, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse -today: %w", err)
	}
	return today, nil
}

func importFile(ctx context.Context, d *monitorapp.Dispatcher, cfg Config) error {
	format, err := source.ParseFormat(cfg.Format)
	if err != nil {
		return err
	}
	f, err := os.Open(cfg.ImportPath)
	if err != nil {
		return fmt.Errorf("open import file: %w", err)
	}
	defer f.Close()

	records, err := source.Read(f, format, source.Options{
		DailyLog: source.DailyLogOptions{Year: cfg.LogYear},
	})
	if err != nil {
		return fmt.Errorf("read %s: %w", cfg.ImportPath, err)
	}
	inserted, err := d.Import(ctx, records)
	if err != nil {
		return err
	}
	log.Printf("imported %d of %d records from %s", inserted, len(records), cfg.ImportPath)
	return nil
}
