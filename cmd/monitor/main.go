// Package main runs one monitor dispatch, import or report.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	monitorcmd "github.com/lifesignal/monitor/internal/cmd/monitor"
	entrypoint "github.com/lifesignal/monitor/internal/platform/cmd"
	"github.com/lifesignal/monitor/internal/platform/config"
)

func main() {
	log.SetPrefix(entrypoint.LogPrefix(entrypoint.ServiceMonitor))
	cfg, err := monitorcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := monitorcmd.Run(ctx, cfg, os.Stdout); err != nil {
		log.Fatalf("monitor: %v", err)
	}
}
