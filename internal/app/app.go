// Package app wires the configured components together for the server and
// the command line loader.
package app

import (
	"context"
	"fmt"

	"github.com/EmpoweredVote/EV-Geo/internal/cache"
	"github.com/EmpoweredVote/EV-Geo/internal/config"
	"github.com/EmpoweredVote/EV-Geo/internal/db"
	"github.com/EmpoweredVote/EV-Geo/internal/geodata"
	"github.com/EmpoweredVote/EV-Geo/internal/ingest"
	"github.com/EmpoweredVote/EV-Geo/internal/spatial"
	"github.com/EmpoweredVote/EV-Geo/internal/store"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type App struct {
	DB      *gorm.DB
	Loader  *ingest.Loader
	Spatial *spatial.Service

	redis *redis.Client
}

// Open connects to the database, makes sure PostGIS and the tables exist and
// builds the loader and query service.
func Open(ctx context.Context, cfg config.Config) (*App, error) {
	gdb, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.EnsureExtension(ctx, gdb, "postgis"); err != nil {
		return nil, err
	}
	if err := geodata.Migrate(ctx, gdb, geodata.Entities()); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	ttl, err := cfg.CacheTTL()
	if err != nil {
		return nil, err
	}
	rc := cache.Open(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if rc != nil {
		if err := rc.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unreachable, caching disabled")
			_ = rc.Close()
			rc = nil
		}
	}
	c := cache.New(rc, ttl)

	st := store.New(gdb, store.Options{
		AdvisoryLock: cfg.Ingest.AdvisoryLock,
		BatchSize:    cfg.Ingest.BatchSize,
	})
	loader := ingest.New(st, c, ingest.Paths{
		Cities: cfg.SourcePath(cfg.Data.Cities),
		Dmas:   cfg.SourcePath(cfg.Data.Dmas),
		Pipes:  cfg.SourcePath(cfg.Data.Pipes),
	}, cfg.Ingest.Policy)

	return &App{
		DB:      gdb,
		Loader:  loader,
		Spatial: spatial.New(st, c),
		redis:   rc,
	}, nil
}

// Ping checks the database connection.
func (a *App) Ping(ctx context.Context) error {
	return db.Ping(ctx, a.DB)
}

func (a *App) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
