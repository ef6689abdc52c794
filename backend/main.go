// ABOUTME: Entry point for the fabric planner backend service
// ABOUTME: Serves the fabric compilation pipeline and artifact store over HTTP

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/markalston/fabric-planner/backend/cache"
	"github.com/markalston/fabric-planner/backend/config"
	"github.com/markalston/fabric-planner/backend/handlers"
	"github.com/markalston/fabric-planner/backend/logger"
	"github.com/markalston/fabric-planner/backend/middleware"
	"github.com/markalston/fabric-planner/backend/models"
	"github.com/markalston/fabric-planner/backend/services"
	"github.com/markalston/fabric-planner/backend/store"
)

func main() {
	// Initialize structured logging
	logger.Init()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting Fabric Planner Backend")

	registry, err := loadRegistry(cfg.SwitchCatalogPath)
	if err != nil {
		slog.Error("Failed to load switch catalog", "path", cfg.SwitchCatalogPath, "error", err)
		os.Exit(1)
	}
	slog.Info("Switch catalog loaded", "models", registry.Len())

	fabrics := store.New(cfg.DataDir)
	if !fabrics.Writable() {
		slog.Warn("Fabric store is not writable, saves will fail", "dir", cfg.DataDir)
	}

	// Initialize cache
	cacheTTL := time.Duration(cfg.CacheTTL) * time.Second
	c := cache.New[*models.CompileResult](cacheTTL)
	slog.Info("Cache initialized", "ttl", cacheTTL)

	h := handlers.NewHandler(cfg, registry, fabrics, c)
	defer h.Close()

	var limits *middleware.Limits
	if cfg.RateLimitEnabled {
		limits = middleware.NewLimits(cfg.RateLimitWrite, cfg.RateLimitDefault)
		slog.Info("Rate limiting enabled", "write_per_min", cfg.RateLimitWrite, "default_per_min", cfg.RateLimitDefault)
	} else {
		slog.Warn("Rate limiting disabled")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h.NewServeMux(limits),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
	}
}

// loadRegistry layers an optional YAML catalog over the built-in one
func loadRegistry(path string) (*services.SwitchProfileRegistry, error) {
	registry := services.DefaultRegistry()
	if path == "" {
		return registry, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	overrides, err := services.LoadRegistry(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return registry.Merge(overrides), nil
}
