// Copyright 2025 The Arzani Authors
// SPDX-License-Identifier: Apache-2.0

// Package server implements the orchestration service: the REST façade,
// task lifecycle management, stream brokering, agent directory, and
// webhook dispatch.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arzani/a2a/auth"
	"github.com/arzani/a2a/client"
	"github.com/arzani/a2a/config"
	"github.com/arzani/a2a/server/task"
)

// Server bundles the orchestrator's components behind two HTTP
// listeners: the protocol surface and the operational surface (health
// and metrics).
type Server struct {
	cfg    *config.Config
	logger *slog.Logger

	tasks     *task.Manager
	streams   *StreamRegistry
	directory *Directory
	webhooks  *Dispatcher
	metrics   *Metrics

	httpServer *http.Server
	opsServer  *http.Server
}

// Options inject replacement components. Nil fields fall back to the
// configuration-driven defaults.
type Options struct {
	// Store is the durable task side-store. Nil leaves the manager
	// memory-only; cmd wiring passes the database store here.
	Store task.DurableStore

	// Directory replaces the config-built agent directory.
	Directory *Directory

	// Logger is the structured logger shared by every component.
	Logger *slog.Logger

	// Registry receives the Prometheus collectors. Nil uses the default
	// registry.
	Registry prometheus.Registerer
}

// New assembles a Server from configuration.
func New(cfg *config.Config, opts Options) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	registry := opts.Registry
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	metrics := NewMetrics(registry)

	directory := opts.Directory
	if directory == nil {
		var clientOpts []client.Option
		if cfg.Auth.OutboundToken != "" {
			clientOpts = append(clientOpts, client.WithBearerToken(cfg.Auth.OutboundToken))
		}
		clientOpts = append(clientOpts, client.WithLogger(logger))

		built, err := NewDirectoryFromConfig(cfg.Agents, clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("build agent directory: %w", err)
		}
		directory = built
	}

	managerOpts := []task.ManagerOption{task.WithLogger(logger)}
	if opts.Store != nil {
		managerOpts = append(managerOpts, task.WithStore(opts.Store))
	}
	tasks := task.NewManager(managerOpts...)

	streams := NewStreamRegistry(cfg.Stream.GraceDelay, logger)
	webhooks := NewDispatcher(cfg.Webhook.DefaultSecret,
		WithDispatcherLogger(logger),
		WithDispatcherTimeout(cfg.Webhook.Timeout),
		WithDispatcherMetrics(metrics),
	)

	var verifier *auth.TokenVerifier
	if cfg.Auth.Secret != "" {
		v, err := auth.NewTokenVerifier(cfg.Auth.Secret, cfg.Auth.Issuer)
		if err != nil {
			return nil, fmt.Errorf("build token verifier: %w", err)
		}
		verifier = v
	}

	handler := NewHandler(tasks, streams, directory, webhooks, cfg.Stream.IdleTimeout, logger, metrics)

	mux := http.NewServeMux()
	handler.Register(mux, authMiddleware(verifier, cfg.Auth.DevBypass, logger))

	opsMux := http.NewServeMux()
	opsMux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "ok",
			"agents": directory.Names(),
		})
	})
	opsMux.Handle("GET /metrics", promhttp.Handler())

	return &Server{
		cfg:       cfg,
		logger:    logger,
		tasks:     tasks,
		streams:   streams,
		directory: directory,
		webhooks:  webhooks,
		metrics:   metrics,
		httpServer: &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           observeMiddleware(logger, metrics)(mux),
			ReadHeaderTimeout: 10 * time.Second,
		},
		opsServer: &http.Server{
			Addr:              cfg.OpsAddr,
			Handler:           opsMux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Tasks exposes the task manager, for cmd wiring and tests.
func (s *Server) Tasks() *task.Manager {
	return s.tasks
}

// Recover replays the durable store into the task manager. It must run
// before ListenAndServe.
func (s *Server) Recover(ctx context.Context) error {
	return s.tasks.Recover(ctx)
}

// ListenAndServe starts both listeners and blocks until the protocol
// listener stops.
func (s *Server) ListenAndServe() error {
	go func() {
		s.logger.Info("ops listener starting", "addr", s.cfg.OpsAddr)
		if err := s.opsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("ops listener failed", "error", err)
		}
	}()

	s.logger.Info("orchestrator listening",
		"addr", s.cfg.ListenAddr, "agents", s.directory.Names())
	return s.httpServer.ListenAndServe()
}

// Shutdown drains both listeners, closes every open stream, and flushes
// the task manager's persistence queue.
func (s *Server) Shutdown(ctx context.Context) error {
	var firstErr error

	if err := s.httpServer.Shutdown(ctx); err != nil {
		firstErr = err
	}
	if err := s.opsServer.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = err
	}

	s.streams.CloseAll()

	if err := s.tasks.Close(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
