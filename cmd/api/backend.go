package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"

	"giftregistry/api/db"
	"giftregistry/api/internal/config"
	"giftregistry/api/internal/gitrepo"
	"giftregistry/api/internal/logger"
	"giftregistry/api/internal/store"
)

// backend is the opened version store plus the postgres handle when the
// store runs on postgres.
type backend struct {
	store store.Store
	db    *sql.DB
}

func openBackend(ctx context.Context, cfg config.Config, log *logger.Logger) (backend, error) {
	switch cfg.StoreBackend {
	case "memory":
		log.Warn().Msg("memory store selected; data is lost on restart")
		return backend{store: store.NewMemory()}, nil

	case "bolt":
		s, err := store.OpenBolt(cfg.BoltPath)
		if err != nil {
			return backend{}, err
		}
		return backend{store: s}, nil

	case "redis":
		s, err := store.NewRedisStore(cfg.RedisURL, cfg.RedisPrefix)
		if err != nil {
			return backend{}, err
		}
		return backend{store: s}, nil

	case "postgres":
		s, err := store.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return backend{}, err
		}
		applied, err := store.ApplyMigrations(ctx, s.DB(), migrations(cfg))
		if err != nil {
			_ = s.Close()
			return backend{}, fmt.Errorf("migrations: %w", err)
		}
		for _, version := range applied {
			log.Info().Str("migration", version).Msg("migration applied")
		}
		return backend{store: s, db: s.DB()}, nil

	case "minio":
		s, err := store.NewMinioStore(ctx, store.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			return backend{}, err
		}
		return backend{store: s}, nil

	case "git":
		s, err := gitrepo.Open(cfg.GitDir, "registry")
		if err != nil {
			return backend{}, err
		}
		return backend{store: s}, nil
	}
	return backend{}, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

func migrations(cfg config.Config) fs.FS {
	if cfg.MigrationsDir != "" {
		return os.DirFS(cfg.MigrationsDir)
	}
	return db.Migrations()
}
