package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/mergington/internal/domain"
	"example.com/mergington/internal/persistence/storetest"
)

func TestStoreBehaviour(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.Store { return NewStore() })
}

func TestStoreHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := NewStore()
	_, err := store.FindUserByEmail(ctx, "test1@mergington.edu")
	require.ErrorIs(t, err, context.Canceled)
	require.ErrorIs(t, store.AddEnrollment(ctx, domain.Enrollment{}), context.Canceled)
}
