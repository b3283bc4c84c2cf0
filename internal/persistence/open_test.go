package persistence_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/mergington/internal/config"
	"example.com/mergington/internal/domain"
	"example.com/mergington/internal/persistence"
	"example.com/mergington/internal/persistence/memory"
	"example.com/mergington/internal/persistence/sqlite"
)

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()

	backend, err := persistence.Open(ctx, config.Config{StoreDriver: config.StoreMemory})
	require.NoError(t, err)
	require.IsType(t, &memory.Store{}, backend.Store)
	require.Nil(t, backend.Pool)
	backend.Close()

	backend, err = persistence.Open(ctx, config.Config{
		StoreDriver: config.StoreSQLite,
		SQLitePath:  filepath.Join(t.TempDir(), "mergington.db"),
	})
	require.NoError(t, err)
	defer backend.Close()
	require.IsType(t, &sqlite.Store{}, backend.Store)

	result, err := persistence.Seed(ctx, domain.NewService(backend.Store), persistence.SampleActivities[:2], false)
	require.NoError(t, err)
	require.Equal(t, 2, result.Activities)

	_, err = persistence.Open(ctx, config.Config{StoreDriver: "mysql"})
	require.Error(t, err)
}
