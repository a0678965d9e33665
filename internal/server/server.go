// Package server wires the signgate HTTP API: router, middleware chain,
// authentication and listeners.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/net/netutil"

	"github.com/vitalvas/signgate/internal/campaign"
	"github.com/vitalvas/signgate/internal/config"
	"github.com/vitalvas/signgate/internal/logger"
	"github.com/vitalvas/signgate/internal/metrics"
	"github.com/vitalvas/signgate/querysig"
)

// Deps are the collaborators the server needs. All but Now are required.
type Deps struct {
	Logger   *logger.Logger
	Metrics  *metrics.Metrics
	Verifier querysig.Verifier
	Campaign *campaign.Service

	// Now returns the server time used for freshness checks and /v1/time.
	// Defaults to time.Now.
	Now func() time.Time
}

// Server serves the API and, when enabled, the metrics endpoint.
type Server struct {
	cfg      *config.Config
	log      *logger.Logger
	metrics  *metrics.Metrics
	verifier querysig.Verifier
	campaign *campaign.Service
	now      func() time.Time

	handler    http.Handler
	apiServer  *http.Server
	metricsSrv *http.Server
}

// New builds the server and its handler chain.
func New(cfg *config.Config, deps Deps) (*Server, error) {
	switch {
	case cfg == nil:
		return nil, errors.New("server: config must not be nil")
	case deps.Logger == nil:
		return nil, errors.New("server: logger must not be nil")
	case deps.Metrics == nil:
		return nil, errors.New("server: metrics must not be nil")
	case deps.Verifier == nil:
		return nil, querysig.ErrNoVerifier
	case deps.Campaign == nil:
		return nil, errors.New("server: campaign service must not be nil")
	}

	now := deps.Now
	if now == nil {
		now = time.Now
	}

	s := &Server{
		cfg:      cfg,
		log:      deps.Logger,
		metrics:  deps.Metrics,
		verifier: deps.Verifier,
		campaign: deps.Campaign,
		now:      now,
	}

	handler, err := s.routes()
	if err != nil {
		return nil, err
	}

	s.handler = handler

	s.apiServer = &http.Server{
		Handler:           handler,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
		MaxHeaderBytes:    cfg.HTTP.MaxHeaderBytes,
	}

	if cfg.Metrics.Enabled {
		r := chi.NewRouter()
		r.Handle(cfg.Metrics.Path, s.metrics.Handler())

		s.metricsSrv = &http.Server{
			Handler:           r,
			ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		}
	}

	return s, nil
}

// Handler returns the complete API handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run listens on the configured addresses and serves until ctx is done or
// a listener fails, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	apiLn, err := net.Listen("tcp", s.cfg.HTTP.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.HTTP.Address, err)
	}

	var metricsLn net.Listener
	if s.metricsSrv != nil {
		metricsLn, err = net.Listen("tcp", s.cfg.Metrics.Address)
		if err != nil {
			apiLn.Close()
			return fmt.Errorf("failed to listen on %s: %w", s.cfg.Metrics.Address, err)
		}
	}

	return s.serve(ctx, apiLn, metricsLn)
}

func (s *Server) serve(ctx context.Context, apiLn, metricsLn net.Listener) error {
	if limit := s.cfg.HTTP.MaxConnections; limit > 0 {
		apiLn = netutil.LimitListener(apiLn, limit)
	}

	errCh := make(chan error, 2)

	go func() {
		s.log.Info("starting API server", "address", apiLn.Addr().String(), "max_connections", s.cfg.HTTP.MaxConnections)

		if err := s.apiServer.Serve(apiLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()

	if metricsLn != nil {
		go func() {
			s.log.Info("starting metrics server", "address", metricsLn.Addr().String(), "path", s.cfg.Metrics.Path)

			if err := s.metricsSrv.Serve(metricsLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		s.log.Error("server failed", "error", runErr)
	}

	if err := s.shutdown(); err != nil && runErr == nil {
		runErr = err
	}

	return runErr
}

func (s *Server) shutdown() error {
	s.log.Info("shutting down", "timeout", s.cfg.HTTP.ShutdownTimeout)

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.HTTP.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := s.apiServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("api server shutdown: %w", err))
	}

	if s.metricsSrv != nil {
		if err := s.metricsSrv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}

	s.log.Info("server stopped")

	return nil
}
