package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kilianp07/dersize/infra/logger"
)

// StartPromServer serves the metrics of gatherer on addr under /metrics until
// ctx is canceled. A nil gatherer exposes the default registry.
func StartPromServer(ctx context.Context, addr string, gatherer prometheus.Gatherer, log logger.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return ServePrometheus(ctx, ln, gatherer, log)
}

// ServePrometheus is StartPromServer on an existing listener.
func ServePrometheus(ctx context.Context, ln net.Listener, gatherer prometheus.Gatherer, log logger.Logger) error {
	log = logger.OrNop(log)
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("prom server shutdown: %v", err)
		}
		cancel()
	}()
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
