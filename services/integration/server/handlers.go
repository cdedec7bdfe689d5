// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/foresight/services/integration/history"
	"github.com/AleutianAI/foresight/services/integration/report"
	"github.com/AleutianAI/foresight/services/integration/synth"
	"github.com/AleutianAI/foresight/services/integration/telemetry"
)

const requestIDKey = "request_id"

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Header("X-Request-ID", id)
		c.Set(requestIDKey, id)
		c.Next()
	}
}

func (s *Server) requestLogger(c *gin.Context, handler string) *slog.Logger {
	logger := s.logger.With(slog.String("request_id", c.GetString(requestIDKey)), slog.String("handler", handler))
	return telemetry.LoggerWithTrace(c.Request.Context(), logger)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Version: Version})
}

// handleCreatePrediction handles POST /v1/predictions.
//
// Response:
//
//	201 Created: PredictionResponse
//	429 Too Many Requests: rate limited
//	500 Internal Server Error: prediction failed
func (s *Server) handleCreatePrediction(c *gin.Context) {
	logger := s.requestLogger(c, "CreatePrediction")

	if s.limiter != nil && !s.limiter.Allow() {
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "prediction rate limit exceeded", Code: "RATE_LIMITED"})
		return
	}

	s.runMu.Lock()
	defer s.runMu.Unlock()

	res, err := s.runner.Analyze(c.Request.Context())
	if err != nil {
		logger.Error("prediction failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "PREDICTION_FAILED"})
		return
	}

	resp := &PredictionResponse{
		RunID:      res.RunID,
		RecordedAt: time.Now().UTC(),
		DurationMs: res.Duration.Milliseconds(),
		Prediction: res.Prediction,
	}

	if s.history != nil {
		resp.Delta = s.recordHistory(c.Request.Context(), logger, resp)
	}

	s.mu.Lock()
	s.latest = resp
	s.mu.Unlock()

	logger.Info("prediction served",
		slog.String("run_id", res.RunID),
		slog.Int("failures", len(res.Prediction.PredictedFailures)))
	c.JSON(http.StatusCreated, resp)
}

// recordHistory stores resp and returns the delta against the previous run.
// History failures are logged and never fail the request.
func (s *Server) recordHistory(ctx context.Context, logger *slog.Logger, resp *PredictionResponse) *history.Delta {
	var delta *history.Delta
	prev, err := s.history.Latest(ctx)
	switch {
	case err == nil:
		d := history.Compare(prev.Prediction, resp.Prediction)
		delta = &d
	case !errors.Is(err, history.ErrNotFound):
		logger.Warn("read previous prediction", slog.String("error", err.Error()))
	}

	entry, err := s.history.Record(ctx, resp.RunID, resp.Prediction, resp.RecordedAt)
	if err != nil {
		logger.Warn("record prediction", slog.String("error", err.Error()))
		return delta
	}
	resp.RecordedAt = entry.RecordedAt
	return delta
}

// latestPrediction returns the in-memory latest run, falling back to history.
func (s *Server) latestPrediction(ctx context.Context) (*PredictionResponse, error) {
	s.mu.RLock()
	latest := s.latest
	s.mu.RUnlock()
	if latest != nil {
		return latest, nil
	}
	if s.history == nil {
		return nil, history.ErrNotFound
	}
	entry, err := s.history.Latest(ctx)
	if err != nil {
		return nil, err
	}
	return &PredictionResponse{RunID: entry.RunID, RecordedAt: entry.RecordedAt, Prediction: entry.Prediction}, nil
}

func (s *Server) respondLatestError(c *gin.Context, err error) {
	if errors.Is(err, history.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no prediction has been run yet", Code: "NOT_FOUND"})
		return
	}
	s.requestLogger(c, "latest").Error("load latest prediction", slog.String("error", err.Error()))
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "HISTORY_FAILED"})
}

func (s *Server) handleLatest(c *gin.Context) {
	latest, err := s.latestPrediction(c.Request.Context())
	if err != nil {
		s.respondLatestError(c, err)
		return
	}
	c.JSON(http.StatusOK, latest)
}

// handleReport handles GET /v1/predictions/latest/report.
func (s *Server) handleReport(c *gin.Context) {
	var q reportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_FORMAT"})
		return
	}
	latest, err := s.latestPrediction(c.Request.Context())
	if err != nil {
		s.respondLatestError(c, err)
		return
	}

	f, err := report.New(q.Format, report.Options{})
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_FORMAT"})
		return
	}
	body, err := f.Format(latest.Prediction)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "RENDER_FAILED"})
		return
	}

	contentType := "text/plain; charset=utf-8"
	switch f.Name() {
	case report.FormatMarkdown:
		contentType = "text/markdown; charset=utf-8"
	case report.FormatJSON:
		contentType = "application/json; charset=utf-8"
	}
	c.Data(http.StatusOK, contentType, []byte(body))
}

// handleTests handles POST /v1/predictions/latest/tests.
func (s *Server) handleTests(c *gin.Context) {
	var q testsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_LANGUAGE"})
		return
	}
	if q.Lang == "" {
		q.Lang = string(synth.LanguageGo)
	}
	lang, err := synth.ParseLanguage(q.Lang)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_LANGUAGE"})
		return
	}
	latest, err := s.latestPrediction(c.Request.Context())
	if err != nil {
		s.respondLatestError(c, err)
		return
	}

	suite, err := synth.Generate(latest.Prediction, lang, synth.WithCatalog(s.catalog))
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "GENERATION_FAILED"})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+lang.FileName()+`"`)
	c.Data(http.StatusOK, "text/plain; charset=utf-8", suite.Source)
}

// handleHistory handles GET /v1/history.
func (s *Server) handleHistory(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "history is disabled", Code: "HISTORY_DISABLED"})
		return
	}
	q := historyQuery{Limit: 20}
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_LIMIT"})
		return
	}
	entries, err := s.history.List(c.Request.Context(), q.Limit)
	if err != nil {
		s.requestLogger(c, "History").Error("list history", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "HISTORY_FAILED"})
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	c.JSON(http.StatusOK, HistoryResponse{Entries: entries})
}
