// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package server exposes the patch engine over HTTP with gin.
//
// Routes:
//
//	POST /v1/patch/apply   apply a patch to a document
//	POST /v1/patch/parse   parse a patch without applying it
//	GET  /v1/health        liveness
//	GET  /metrics          Prometheus metrics
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/petar-djukic/go-patch/internal/editor"
	"github.com/petar-djukic/go-patch/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	defaultAddr         = ":8080"
	defaultMaxBodyBytes = 8 << 20
	shutdownTimeout     = 10 * time.Second
	requestIDHeader     = "X-Request-ID"
	requestIDKey        = "request_id"
)

// Config configures the HTTP service.
type Config struct {
	Addr         string               // Listen address (default ":8080")
	MaxBodyBytes int64                // Request body limit (default 8 MiB)
	Version      string               // Reported by /v1/health
	Registry     *prometheus.Registry // Metrics registry (default: a new registry)
	Logger       *slog.Logger         // Nil discards
}

// Server serves the patch API.
type Server struct {
	cfg      Config
	router   *gin.Engine
	engine   *editor.Engine
	metrics  *metrics.Metrics
	registry *prometheus.Registry
	logger   *slog.Logger
}

// New builds a Server and registers its routes.
func New(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = defaultAddr
	}
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &Server{
		cfg:      cfg,
		metrics:  metrics.New(cfg.Registry),
		registry: cfg.Registry,
		logger:   cfg.Logger,
	}
	s.engine = &editor.Engine{Logger: cfg.Logger}

	router := gin.New()
	router.Use(gin.Recovery(), s.requestContext())

	v1 := router.Group("/v1")
	v1.GET("/health", s.handleHealth)
	patch := v1.Group("/patch")
	patch.POST("/apply", s.handleApply)
	patch.POST("/parse", s.handleParse)

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	s.router = router
	return s
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// requestContext assigns a request ID, limits the body size and logs each
// request when it completes.
func (s *Server) requestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)
		c.Set(requestIDKey, requestID)
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxBodyBytes)
		}

		start := time.Now()
		c.Next()

		s.logger.Info("request",
			"request_id", requestID,
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func (s *Server) requestLogger(c *gin.Context, handler string) *slog.Logger {
	return s.logger.With("request_id", c.GetString(requestIDKey), "handler", handler)
}
