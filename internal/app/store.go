package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cwrk-planet/call-service/config"
	"github.com/cwrk-planet/call-service/internal/storage"
	"github.com/cwrk-planet/call-service/internal/storage/memory"
	"github.com/cwrk-planet/call-service/internal/storage/postgres"
	"github.com/cwrk-planet/call-service/internal/storage/sqlite"
)

// OpenStore connects the driver named by cfg.Driver.
func OpenStore(ctx context.Context, cfg config.Store) (storage.Store, error) {
	switch cfg.Driver {
	case "postgres":
		s, err := postgres.Open(ctx, postgres.Config{
			DSN:               cfg.Postgres.DSN,
			MaxConns:          cfg.Postgres.MaxConns,
			MinConns:          cfg.Postgres.MinConns,
			MaxConnLifetime:   cfg.Postgres.MaxConnLifetime,
			MaxConnIdleTime:   cfg.Postgres.MaxConnIdleTime,
			HealthCheckPeriod: cfg.Postgres.HealthCheckPeriod,
			ApplicationName:   cfg.Postgres.ApplicationName,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case "sqlite":
		if dir := filepath.Dir(cfg.SQLite.Path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("sqlite: create dir: %w", err)
			}
		}
		s, err := sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "memory", "":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
