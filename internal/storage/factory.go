package storage

import (
	"context"
	"fmt"

	"github.com/yourname/sleepcat/internal"
	"github.com/yourname/sleepcat/internal/config"
)

// NewBackend opens the record store selected by cfg.DBType.
func NewBackend(ctx context.Context, cfg *config.Config, logger internal.Logger) (Backend, error) {
	var (
		b   Backend
		err error
	)
	switch cfg.DBType {
	case "file":
		b, err = wrap(NewFileStorage(cfg.FileSessions, cfg.FileCoins, logger))
	case "sqlite":
		b, err = wrap(OpenSQLite(ctx, cfg.SQLitePath, logger))
	case "postgres":
		b, err = wrap(NewPostgresStorage(ctx, cfg.DBDSN, logger))
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", cfg.DBType)
	}
	if err != nil {
		return nil, err
	}
	logger.Infof("storage: using %s backend", cfg.DBType)
	return b, nil
}

// wrap keeps a failed constructor's typed nil out of the Backend interface.
func wrap[T Backend](b T, err error) (Backend, error) {
	if err != nil {
		return nil, err
	}
	return b, nil
}
