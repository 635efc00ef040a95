package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	"github.com/jwalitptl/clinic-api/internal/repository/sqlstore"
	"github.com/jwalitptl/clinic-api/internal/seed"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/security"
)

func NewLogger(cfg config.LoggingConfig) *logger.Logger {
	return logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Level),
		Format:     cfg.Format,
		File:       cfg.File,
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAgeDays: cfg.MaxAgeDays,
	})
}

func NewHasher(cfg config.UsersConfig) security.PasswordHasher {
	return security.NewBcryptHasher(cfg.BcryptCost)
}

// OpenStore connects the configured storage driver. The memory driver starts
// empty, so it is seeded straight away.
func OpenStore(ctx context.Context, cfg *config.Config, hasher security.PasswordHasher, log *logger.Logger) (repository.Store, func() error, error) {
	if cfg.Database.Driver == "memory" {
		store := memory.New()
		if err := Seed(ctx, store, hasher, cfg.Seed, cfg.Seed.Dev, log); err != nil {
			return nil, nil, err
		}
		log.Warn("Using in-memory storage, data is lost on exit")
		return store, func() error { return nil }, nil
	}

	db, err := sqlstore.NewDB(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	store := sqlstore.New(db, sqlstore.Options{
		RoleCacheTTL:    cfg.Cache.RoleTTL,
		CleanupInterval: cfg.Cache.CleanupInterval,
	})
	return store, db.Close, nil
}

// Seed installs the role catalog, the first administrator and, when dev is
// set, the demo roster. Steps that already happened are skipped.
func Seed(ctx context.Context, store repository.Store, hasher security.PasswordHasher, cfg config.SeedConfig, dev bool, log *logger.Logger) error {
	return store.WithTx(ctx, func(q repository.Queries) error {
		if err := seed.Catalog(ctx, q); err != nil {
			return fmt.Errorf("failed to seed role catalog: %w", err)
		}

		adminID, err := seed.DefaultAdmin(ctx, q, hasher, seed.Admin{
			UserName: cfg.AdminUserName,
			Email:    cfg.AdminEmail,
			Password: cfg.AdminPassword,
		})
		switch {
		case errors.Is(err, seed.ErrAlreadySeeded):
			log.Info("Administrator already present, skipping")
		case err != nil:
			return fmt.Errorf("failed to seed administrator: %w", err)
		default:
			log.Info("Created administrator", "user_id", adminID, "user_name", cfg.AdminUserName)
		}

		if !dev {
			return nil
		}
		err = seed.Dev(ctx, q, hasher)
		switch {
		case errors.Is(err, seed.ErrAlreadySeeded):
			log.Info("Demo users already present, skipping")
		case err != nil:
			return fmt.Errorf("failed to seed demo users: %w", err)
		default:
			log.Info("Created demo users")
		}
		return nil
	})
}
