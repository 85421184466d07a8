// Copyright 2025 The Arzani Authors
// SPDX-License-Identifier: Apache-2.0

// Command a2ad runs the task orchestration service.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/arzani/a2a/config"
	"github.com/arzani/a2a/server"
	"github.com/arzani/a2a/server/task"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(*configPath, logger); err != nil {
		logger.Error("orchestrator exited", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, logger *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store task.DurableStore
	if cfg.Database.Path != "" {
		db, err := gorm.Open(sqlite.Open(cfg.Database.Path), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err != nil {
			return err
		}
		dbStore, err := task.NewDatabaseStore(db, logger)
		if err != nil {
			return err
		}
		if err := dbStore.Initialize(ctx); err != nil {
			return err
		}
		store = dbStore
		logger.Info("durable task store ready", "path", cfg.Database.Path)
	}

	srv, err := server.New(cfg, server.Options{Store: store, Logger: logger})
	if err != nil {
		return err
	}

	// Replay persisted tasks before accepting traffic.
	if err := srv.Recover(ctx); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
