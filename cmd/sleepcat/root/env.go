package root

import (
	"context"
	"time"

	"github.com/yourname/sleepcat/internal"
	"github.com/yourname/sleepcat/internal/config"
	"github.com/yourname/sleepcat/internal/registry"
	"github.com/yourname/sleepcat/internal/service"
	"github.com/yourname/sleepcat/internal/storage"
)

const defaultUser = "local"

// env is everything a command needs, opened against the configured store and
// the device-local registry.
type env struct {
	userID    string
	loc       *time.Location
	lifecycle *service.Lifecycle
	history   *service.History
	shop      *service.Shop
}

func openEnv(ctx context.Context) (*env, func(), error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, nil, err
	}

	level := "error"
	if flagVerbose {
		level = cfg.LogLevel
	}
	logger, err := internal.NewLogger(level, cfg.Env)
	if err != nil {
		return nil, nil, err
	}

	backend, err := storage.NewBackend(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	pending, err := registry.OpenBoltRegistry(cfg.RegistryPath)
	if err != nil {
		_ = backend.Close()
		return nil, nil, err
	}

	userID := flagUser
	if userID == "" {
		userID = cfg.UserID
	}
	if userID == "" {
		userID = defaultUser
	}

	loc := cfg.Location()
	e := &env{
		userID:    userID,
		loc:       loc,
		lifecycle: service.NewLifecycle(backend, backend, pending, logger, service.WithLocation(loc)),
		history:   service.NewHistory(backend, loc),
		shop:      service.NewShop(backend),
	}
	cleanup := func() {
		_ = pending.Close()
		_ = backend.Close()
		_ = logger.Sync()
	}
	return e, cleanup, nil
}
