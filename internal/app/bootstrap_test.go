package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/security"
)

func TestOpenStore_MemorySeedsDemoData(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{
		Database: config.DatabaseConfig{Driver: "memory"},
		Seed: config.SeedConfig{
			AdminUserName: "admin",
			AdminEmail:    "admin@clinic.local",
			AdminPassword: "admin-password",
			Dev:           true,
		},
	}
	hasher := security.NewBcryptHasher(bcrypt.MinCost)

	store, closeFn, err := OpenStore(ctx, cfg, hasher, logger.Nop())
	require.NoError(t, err)
	defer closeFn()

	count, err := store.Users().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, count)

	// reseeding is a no-op
	require.NoError(t, Seed(ctx, store, hasher, cfg.Seed, true, logger.Nop()))
	count, err = store.Users().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, count)
}

func TestOpenStore_MemoryRequiresAdminPassword(t *testing.T) {
	cfg := &config.Config{
		Database: config.DatabaseConfig{Driver: "memory"},
		Seed:     config.SeedConfig{AdminUserName: "admin", AdminEmail: "admin@clinic.local"},
	}

	_, _, err := OpenStore(context.Background(), cfg, security.NewBcryptHasher(bcrypt.MinCost), logger.Nop())
	assert.Error(t, err)
}
