package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"

	platformgrpc "github.com/lifesignal/monitor/internal/platform/grpc"
	"github.com/lifesignal/monitor/internal/services/monitor/charts"
	"github.com/lifesignal/monitor/internal/services/monitor/delivery"
	"github.com/lifesignal/monitor/internal/services/monitor/engine"
	"github.com/lifesignal/monitor/internal/services/monitor/metrics"
	"github.com/lifesignal/monitor/internal/services/monitor/registry"
	"github.com/lifesignal/monitor/internal/services/monitor/render"
	"github.com/lifesignal/monitor/internal/services/monitor/storage"
	monitorsqlite "github.com/lifesignal/monitor/internal/services/monitor/storage/sqlite"
	"google.golang.org/grpc"
)

// RuntimeConfig controls monitor startup and dependencies.
type RuntimeConfig struct {
	DBPath       string
	ChartDir     string
	Locale       string
	FirstYear    int
	RegistryPath string
	KafkaBrokers []string
	KafkaTopic   string
	DryRun       bool
	// Stdout receives rendered deliveries; nil means os.Stdout.
	Stdout io.Writer
}

const (
	defaultMonitorDB = "data/monitor.db"

	// HealthServiceName is reported SERVING alongside the overall status.
	HealthServiceName = "monitor.runtime"
)

// Runtime owns the long-lived dependencies behind a Dispatcher.
type Runtime struct {
	Dispatcher *Dispatcher
	Metrics    *metrics.Metrics
	Registry   *registry.Registry
	Renderer   *render.Renderer

	store storage.Store
	sink  delivery.Sink
}

// Open builds a runtime from cfg. Callers must Close it.
func Open(cfg RuntimeConfig) (*Runtime, error) {
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = defaultMonitorDB
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create monitor storage dir: %w", err)
		}
	}

	reg := registry.Default()
	if path := strings.TrimSpace(cfg.RegistryPath); path != "" {
		overridden, err := registry.LoadOverridesFile(reg, path)
		if err != nil {
			return nil, fmt.Errorf("load registry overrides: %w", err)
		}
		reg = overridden
	}

	sink, err := openSink(cfg)
	if err != nil {
		return nil, err
	}

	store, err := monitorsqlite.Open(cfg.DBPath)
	if err != nil {
		closeSink(sink)
		return nil, fmt.Errorf("open monitor sqlite store: %w", err)
	}

	m := metrics.New()
	renderer := render.New(cfg.Locale)
	eng := engine.New(reg,
		engine.WithDrawer(charts.NewDrawer(renderer.Localizer())),
		engine.WithObserver(m),
	)
	dispatcher := NewDispatcher(store, eng, renderer, sink, m, DispatcherConfig{
		FirstYear: cfg.FirstYear,
		ChartDir:  cfg.ChartDir,
		DryRun:    cfg.DryRun,
	})

	return &Runtime{
		Dispatcher: dispatcher,
		Metrics:    m,
		Registry:   reg,
		Renderer:   renderer,
		store:      store,
		sink:       sink,
	}, nil
}

func openSink(cfg RuntimeConfig) (delivery.Sink, error) {
	stdout := delivery.NewWriterSink("stdout", cfg.Stdout)
	if len(cfg.KafkaBrokers) == 0 {
		return stdout, nil
	}
	kafkaSink, err := delivery.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
	if err != nil {
		return nil, fmt.Errorf("configure kafka sink: %w", err)
	}
	return delivery.NewMultiSink(stdout, kafkaSink), nil
}

func closeSink(sink delivery.Sink) {
	if err := sink.Close(); err != nil {
		log.Printf("close delivery sink: %v", err)
	}
}

// Close releases the store and the sinks.
func (r *Runtime) Close() error {
	if r == nil {
		return nil
	}
	return errors.Join(r.sink.Close(), r.store.Close())
}

// ServeHealth exposes the gRPC health protocol on listener until ctx ends or
// the returned stop func is called.
func ServeHealth(ctx context.Context, listener net.Listener) (stop func()) {
	grpcServer, healthServer := platformgrpc.NewHealthServer(HealthServiceName)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- grpcServer.Serve(listener)
	}()
	log.Printf("monitor health server listening at %v", listener.Addr())

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		select {
		case <-ctx.Done():
		case <-done:
		}
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		if err := <-serveErr; err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			log.Printf("monitor health server: %v", err)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
		<-stopped
	}
}
