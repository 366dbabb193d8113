package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/m3rciful/sdbot/core/buildinfo"
	"github.com/m3rciful/sdbot/core/logger"
)

const shutdownTimeout = 5 * time.Second

// Health states reported by /healthz.
const (
	HealthInitializing = "initializing"
	HealthHealthy      = "healthy"
)

// Server exposes the Prometheus registry and a health probe.
type Server struct {
	addr  string
	path  string
	ready atomic.Bool
}

// NewServer returns a server for addr. An empty path serves metrics at /metrics.
func NewServer(addr, path string) *Server {
	if path == "" {
		path = "/metrics"
	}
	return &Server{addr: addr, path: path}
}

// SetReady flips /healthz to healthy.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// Handler returns the HTTP routes served by Run.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(s.path, promhttp.Handler())
	mux.HandleFunc("/healthz", s.health)
	return mux
}

type healthBody struct {
	Status string         `json:"status"`
	Build  buildinfo.Info `json:"build"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	body := healthBody{Status: HealthInitializing, Build: buildinfo.Get()}
	code := http.StatusServiceUnavailable
	if s.ready.Load() {
		body.Status = HealthHealthy
		code = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// Run serves until ctx is cancelled and then shuts the listener down.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Info(ctx, logger.CompHTTP, "metrics.listen",
		slog.String("listen", ln.Addr().String()),
		slog.String("path", s.path),
	)

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn(ctx, logger.CompHTTP, "metrics.shutdown", slog.String("err", err.Error()))
		return err
	}
	return nil
}
