package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"

	"github.com/lifesignal/monitor/internal/platform/timeouts"
)

// Serve runs handler on listener until ctx ends.
//
// On cancellation, it performs a bounded shutdown so in-flight dispatches
// are drained before hard close.
func Serve(ctx context.Context, listener net.Listener, handler http.Handler) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	httpServer := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	serveErr := make(chan error, 1)
	log.Printf("monitor http listening on %s", listener.Addr())
	go func() {
		serveErr <- httpServer.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		err := httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}
