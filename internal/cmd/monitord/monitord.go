// Package monitord parses the monitor server command and runs it.
package monitord

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"strings"

	entrypoint "github.com/lifesignal/monitor/internal/platform/cmd"
	httpapi "github.com/lifesignal/monitor/internal/services/monitor/api/http"
	monitorapp "github.com/lifesignal/monitor/internal/services/monitor/app"
)

// Config holds monitord command configuration.
type Config struct {
	HTTPAddr     string   `env:"MONITOR_HTTP_ADDR" envDefault:":8080"`
	HealthPort   int      `env:"MONITOR_HEALTH_PORT" envDefault:"8091"`
	DBPath       string   `env:"MONITOR_DB_PATH" envDefault:"data/monitor.db"`
	ChartDir     string   `env:"MONITOR_CHART_DIR"`
	Locale       string   `env:"MONITOR_LOCALE" envDefault:"en-US"`
	FirstYear    int      `env:"MONITOR_FIRST_YEAR" envDefault:"2020"`
	RegistryPath string   `env:"MONITOR_REGISTRY"`
	KafkaBrokers []string `env:"MONITOR_KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"MONITOR_KAFKA_TOPIC" envDefault:"lifesignal.monitor"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "The HTTP listen address")
	fs.IntVar(&cfg.HealthPort, "health-port", cfg.HealthPort, "The gRPC health server port; zero disables it")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The monitor SQLite database path")
	fs.StringVar(&cfg.ChartDir, "chart-dir", cfg.ChartDir, "Directory for chart images; empty disables charts")
	fs.StringVar(&cfg.Locale, "locale", cfg.Locale, "Message locale")
	fs.IntVar(&cfg.FirstYear, "first-year", cfg.FirstYear, "Oldest year of history to load")
	fs.StringVar(&cfg.RegistryPath, "registry", cfg.RegistryPath, "YAML file overriding registry entries")
	fs.StringVar(&cfg.KafkaTopic, "kafka-topic", cfg.KafkaTopic, "Kafka topic receiving deliveries")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(cfg.HTTPAddr) == "" {
		return Config{}, fmt.Errorf("http address is required")
	}
	return cfg, nil
}

// Run starts the monitor server and blocks until ctx ends.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceMonitord, func(ctx context.Context) error {
		return serve(ctx, cfg)
	})
}

func serve(ctx context.Context, cfg Config) error {
	rt, err := monitorapp.Open(monitorapp.RuntimeConfig{
		DBPath:       cfg.DBPath,
		ChartDir:     cfg.ChartDir,
		Locale:       cfg.Locale,
		FirstYear:    cfg.FirstYear,
		RegistryPath: cfg.RegistryPath,
		KafkaBrokers: cfg.KafkaBrokers,
		KafkaTopic:   cfg.KafkaTopic,
	})
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rt.Close(); closeErr != nil {
			log.Printf("close monitor runtime: %v", closeErr)
		}
	}()

	if cfg.HealthPort > 0 {
		healthListener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.HealthPort))
		if err != nil {
			return fmt.Errorf("listen on health port %d: %w", cfg.HealthPort, err)
		}
		stopHealth := monitorapp.ServeHealth(ctx, healthListener)
		defer stopHealth()
	}

	listener, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.HTTPAddr, err)
	}
	server := httpapi.NewServer(rt.Dispatcher,
		httpapi.WithMetrics(rt.Metrics),
		httpapi.WithLocale(cfg.Locale),
		httpapi.WithAccessLog(os.Stdout),
	)
	return httpapi.Serve(ctx, listener, server.Router())
}
