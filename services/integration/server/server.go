// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package server exposes prediction over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/foresight/services/integration/history"
	"github.com/AleutianAI/foresight/services/integration/model"
	"github.com/AleutianAI/foresight/services/integration/predictor"
	"github.com/AleutianAI/foresight/services/integration/rules"
)

// Version is reported by GET /health.
const Version = "0.1.0"

// Runner runs one prediction.
type Runner interface {
	Analyze(ctx context.Context) (*predictor.Result, error)
}

// HistoryStore is the subset of history.Store the server uses.
type HistoryStore interface {
	Record(ctx context.Context, runID string, pred *model.IntegrationPrediction, at time.Time) (history.Entry, error)
	Latest(ctx context.Context) (history.Entry, error)
	List(ctx context.Context, limit int) ([]history.Entry, error)
}

// Option configures a Server.
type Option func(*Server)

// WithHistory records every run and serves GET /v1/history.
func WithHistory(h HistoryStore) Option {
	return func(s *Server) { s.history = h }
}

// WithMetricsHandler serves GET /metrics. Nil leaves it unregistered.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithRateLimit bounds POST /v1/predictions to perMinute runs with a burst
// of one. Values below 1 disable limiting.
func WithRateLimit(perMinute int) Option {
	return func(s *Server) {
		if perMinute < 1 {
			s.limiter = nil
			return
		}
		s.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCatalog sets the catalog used for generated tests.
func WithCatalog(c *rules.Catalog) Option {
	return func(s *Server) { s.catalog = c }
}

// Server serves predictions.
//
// # Thread Safety
//
// Safe for concurrent use. Prediction runs are serialized.
type Server struct {
	runner  Runner
	history HistoryStore
	metrics http.Handler
	limiter *rate.Limiter
	catalog *rules.Catalog
	logger  *slog.Logger

	runMu sync.Mutex

	mu     sync.RWMutex
	latest *PredictionResponse
}

// New creates a Server. Rate limiting defaults to 30 runs per minute.
func New(runner Runner, opts ...Option) *Server {
	s := &Server{
		runner: runner,
		logger: slog.Default(),
	}
	WithRateLimit(30)(s)
	for _, opt := range opts {
		opt(s)
	}
	if s.catalog == nil {
		s.catalog = rules.NewDefault()
	}
	s.logger = s.logger.With(slog.String("component", "server"))
	return s
}

// Router builds the gin engine with every route registered.
//
// # Routes
//
//	GET  /health
//	POST /v1/predictions
//	GET  /v1/predictions/latest
//	GET  /v1/predictions/latest/report?format=text|markdown|json
//	POST /v1/predictions/latest/tests?lang=go|python
//	GET  /v1/history?limit=N
//	GET  /metrics (when a metrics handler is set)
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("foresight"))
	r.Use(requestID())

	r.GET("/health", s.handleHealth)

	v1 := r.Group("/v1")
	v1.POST("/predictions", s.handleCreatePrediction)
	v1.GET("/predictions/latest", s.handleLatest)
	v1.GET("/predictions/latest/report", s.handleReport)
	v1.POST("/predictions/latest/tests", s.handleTests)
	v1.GET("/history", s.handleHistory)

	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics))
	}
	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	}
}
