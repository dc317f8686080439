package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yourname/sleepcat/internal"
	"github.com/yourname/sleepcat/internal/api"
	"github.com/yourname/sleepcat/internal/config"
	"github.com/yourname/sleepcat/internal/registry"
	"github.com/yourname/sleepcat/internal/service"
	"github.com/yourname/sleepcat/internal/storage"
)

func main() {
	cfg := config.Load()

	logger, err := internal.NewLogger(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	if cfg.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := storage.NewBackend(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("failed to init storage: %v", err)
	}
	defer backend.Close()

	pending, err := registry.OpenBoltRegistry(cfg.RegistryPath)
	if err != nil {
		logger.Fatalf("failed to open pending-session registry: %v", err)
	}
	defer pending.Close()

	loc := cfg.Location()
	lifecycle := service.NewLifecycle(backend, backend, pending, logger, service.WithLocation(loc))
	app := api.NewApp(logger, lifecycle, service.NewHistory(backend, loc), service.NewShop(backend))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Server running on %s (storage=%s, env=%s)", cfg.HTTPAddr, cfg.DBType, cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("server stopped: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("graceful shutdown failed: %v", err)
	}
}
