package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tewereus/prime-property/internal/model"
)

func TestWishlistRepository_Add(t *testing.T) {
	db := setupTestDB(t)
	properties := NewPropertyRepository(db)
	repo := NewWishlistRepository(db)
	ctx := context.Background()

	property := seedProperty(t, properties, model.PropertyStateActive)

	t.Run("add entry", func(t *testing.T) {
		err := repo.Add(ctx, 10, property.ID)
		require.NoError(t, err)

		entries, err := repo.ListByUser(ctx, 10)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, property.ID, entries[0].Property.ID)
		assert.NotZero(t, entries[0].AddedAt)
	})

	t.Run("re-adding is idempotent", func(t *testing.T) {
		require.NoError(t, repo.Add(ctx, 10, property.ID))
		require.NoError(t, repo.Add(ctx, 10, property.ID))

		entries, err := repo.ListByUser(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("wishlists are per user", func(t *testing.T) {
		require.NoError(t, repo.Add(ctx, 11, property.ID))

		entries, err := repo.ListByUser(ctx, 11)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})
}

func TestWishlistRepository_Remove(t *testing.T) {
	db := setupTestDB(t)
	properties := NewPropertyRepository(db)
	repo := NewWishlistRepository(db)
	ctx := context.Background()

	property := seedProperty(t, properties, model.PropertyStateActive)
	require.NoError(t, repo.Add(ctx, 10, property.ID))

	t.Run("remove entry", func(t *testing.T) {
		require.NoError(t, repo.Remove(ctx, 10, property.ID))

		entries, err := repo.ListByUser(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("removing absent pair is a no-op", func(t *testing.T) {
		require.NoError(t, repo.Remove(ctx, 10, property.ID))
		require.NoError(t, repo.Remove(ctx, 42, 99999))
	})
}

func TestWishlistRepository_ListByUser(t *testing.T) {
	db := setupTestDB(t)
	properties := NewPropertyRepository(db)
	repo := NewWishlistRepository(db)
	ctx := context.Background()

	active := seedProperty(t, properties, model.PropertyStateActive)
	expired := seedProperty(t, properties, model.PropertyStateActive)
	require.NoError(t, repo.Add(ctx, 10, active.ID))
	require.NoError(t, repo.Add(ctx, 10, expired.ID))

	_, err := properties.Transition(ctx, expired.ID, model.PropertyStateActive, model.PropertyStateExpired)
	require.NoError(t, err)

	// The repository returns everything; visibility is filtered above it.
	entries, err := repo.ListByUser(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	states := make(map[model.PropertyState]bool)
	for _, e := range entries {
		states[e.Property.State] = true
	}
	assert.True(t, states[model.PropertyStateActive])
	assert.True(t, states[model.PropertyStateExpired])

	t.Run("empty wishlist", func(t *testing.T) {
		entries, err := repo.ListByUser(ctx, 999)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}
