package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vault-md/versionable/internal/logger"
)

// Server exposes /metrics and /health over HTTP
type Server struct {
	server *http.Server
	log    *logger.Logger
}

// NewServer creates a metrics server listening on addr. A nil gatherer
// serves the default registry.
func NewServer(addr string, gatherer prometheus.Gatherer, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		server: &http.Server{
			Addr:         addr,
			Handler:      Handler(gatherer),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		log: log.Component("metrics"),
	}
}

// Handler routes /metrics to gatherer and answers /health.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	metricsHandler := promhttp.Handler()
	if gatherer != nil {
		metricsHandler = promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metricsHandler)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy","service":"versionable"}`))
	})
	return mux
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.log.Info().
		Str("metrics", fmt.Sprintf("http://%s/metrics", s.server.Addr)).
		Msg("metrics endpoint available")

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server failed: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Debug().Msg("shutting down metrics server")
	return s.server.Shutdown(ctx)
}
