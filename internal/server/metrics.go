package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rosesr/steam-trade-offer-enhancer-sub000/internal/observability"
)

// MetricsServer serves Prometheus metrics on /metrics as a Service.
type MetricsServer struct {
	srv    *http.Server
	logger *zap.Logger
}

// NewMetricsServer exposes g on addr.
//
// Precondition: addr must be a valid listen address; g must be non-nil.
func NewMetricsServer(addr string, g prometheus.Gatherer, logger *zap.Logger) *MetricsServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	return &MetricsServer{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: observability.OrNop(logger),
	}
}

// Handler returns the HTTP handler serving /metrics.
func (m *MetricsServer) Handler() http.Handler { return m.srv.Handler }

// Start listens until Stop is called.
func (m *MetricsServer) Start() error {
	m.logger.Info("metrics endpoint listening", zap.String("addr", m.srv.Addr))
	if err := m.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the server down, waiting up to five seconds for scrapes in flight.
func (m *MetricsServer) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.srv.Shutdown(ctx); err != nil {
		m.logger.Warn("metrics endpoint shutdown", zap.Error(err))
	}
}
