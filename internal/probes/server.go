// Package probes serves liveness, readiness and metrics endpoints for a
// supervised engine, so that a Kubernetes pod can probe the supervisor
// instead of the engine process directly.
package probes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// shutdownTimeout bounds the graceful shutdown of the probe server.
const shutdownTimeout = 60 * time.Second

// State holds the answers the probe endpoints give. The zero value reports
// neither live nor ready.
type State struct {
	live  atomic.Bool
	ready atomic.Bool
}

// SetLive records whether the engine process is running.
func (s *State) SetLive(v bool) { s.live.Store(v) }

// SetReady records whether the engine answers its health check.
func (s *State) SetReady(v bool) { s.ready.Store(v) }

// Live reports the last value passed to SetLive.
func (s *State) Live() bool { return s.live.Load() }

// Ready reports the last value passed to SetReady.
func (s *State) Ready() bool { return s.ready.Load() }

func boolHandler(get func() bool) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if get() {
			w.WriteHeader(http.StatusOK)
			fmt.Fprintln(w, "OK") //nolint:errcheck
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintln(w, "Service Unavailable") //nolint:errcheck
	}
}

// Handler returns the probe routes: GET /live, GET /ready and GET /metrics.
func Handler(state *State, gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /live", boolHandler(state.Live))
	mux.HandleFunc("GET /ready", boolHandler(state.Ready))
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return mux
}

// Serve listens on addr and serves handler until ctx is canceled, then shuts
// down gracefully. A listen failure is returned immediately.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "probes-server")

	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	log.Info("starting server", "addr", l.Addr().String())

	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("failed to gracefully shutdown", "error", err)
		}
	}()

	if err := server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve probes: %w", err)
	}
	<-stopped
	log.Info("server stopped")
	return nil
}
