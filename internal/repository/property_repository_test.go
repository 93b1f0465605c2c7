package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tewereus/prime-property/internal/model"
)

func newDraft(ownerID int64) *model.Property {
	return &model.Property{
		OwnerID:    ownerID,
		Type:       model.PropertyTypeVilla,
		Use:        model.ListingUseSell,
		Title:      "3BR villa in Bole",
		PriceCents: 12_500_000_00,
		Latitude:   8.9806,
		Longitude:  38.7578,
		State:      model.PropertyStateDraft,
	}
}

func TestPropertyRepository_Create(t *testing.T) {
	repo := NewPropertyRepository(setupTestDB(t))
	ctx := context.Background()

	t.Run("create draft successfully", func(t *testing.T) {
		p := newDraft(1)
		p.Attributes = map[string]any{"bedrooms": float64(3)}
		p.Images = []string{"img-001", "img-002"}

		created, err := repo.Create(ctx, p)
		require.NoError(t, err)
		assert.NotZero(t, created.ID)
		assert.Equal(t, p.OwnerID, created.OwnerID)
		assert.Equal(t, model.PropertyStateDraft, created.State)
		assert.Equal(t, p.Attributes, created.Attributes)
		assert.Equal(t, p.Images, created.Images)
		assert.NotZero(t, created.CreatedAt)
	})

	t.Run("view count starts at zero", func(t *testing.T) {
		created, err := repo.Create(ctx, newDraft(2))
		require.NoError(t, err)
		assert.Zero(t, created.ViewCount)
	})
}

func TestPropertyRepository_Get(t *testing.T) {
	repo := NewPropertyRepository(setupTestDB(t))
	ctx := context.Background()

	created, err := repo.Create(ctx, newDraft(1))
	require.NoError(t, err)

	t.Run("get existing", func(t *testing.T) {
		got, err := repo.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
		assert.Equal(t, created.Title, got.Title)
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := repo.Get(ctx, 99999)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestPropertyRepository_List(t *testing.T) {
	repo := NewPropertyRepository(setupTestDB(t))
	ctx := context.Background()

	ownerID := int64(100)
	for i := 0; i < 5; i++ {
		p := newDraft(ownerID)
		if i%2 == 0 {
			p.Type = model.PropertyTypeApartment
		}
		_, err := repo.Create(ctx, p)
		require.NoError(t, err)
	}
	other, err := repo.Create(ctx, newDraft(200))
	require.NoError(t, err)
	_, err = repo.Transition(ctx, other.ID, model.PropertyStateDraft, model.PropertyStateActive)
	require.NoError(t, err)

	t.Run("filter by owner", func(t *testing.T) {
		props, total, err := repo.List(ctx, model.PropertyFilter{OwnerID: &ownerID})
		require.NoError(t, err)
		assert.Equal(t, int64(5), total)
		assert.Len(t, props, 5)
	})

	t.Run("filter by type", func(t *testing.T) {
		apartment := model.PropertyTypeApartment
		props, total, err := repo.List(ctx, model.PropertyFilter{OwnerID: &ownerID, Type: &apartment})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, props, 3)
	})

	t.Run("filter by state", func(t *testing.T) {
		props, total, err := repo.List(ctx, model.PropertyFilter{
			States: []model.PropertyState{model.PropertyStateActive},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, props, 1)
		assert.Equal(t, other.ID, props[0].ID)
	})

	t.Run("pagination", func(t *testing.T) {
		props, total, err := repo.List(ctx, model.PropertyFilter{OwnerID: &ownerID, Limit: 2, Offset: 4})
		require.NoError(t, err)
		assert.Equal(t, int64(5), total)
		assert.Len(t, props, 1)
	})
}

func TestPropertyRepository_Transition(t *testing.T) {
	repo := NewPropertyRepository(setupTestDB(t))
	ctx := context.Background()

	t.Run("draft to pending payment", func(t *testing.T) {
		created, err := repo.Create(ctx, newDraft(1))
		require.NoError(t, err)

		updated, err := repo.Transition(ctx, created.ID, model.PropertyStateDraft, model.PropertyStatePendingPayment)
		require.NoError(t, err)
		assert.Equal(t, model.PropertyStatePendingPayment, updated.State)
	})

	t.Run("stale expectation conflicts", func(t *testing.T) {
		created, err := repo.Create(ctx, newDraft(1))
		require.NoError(t, err)

		_, err = repo.Transition(ctx, created.ID, model.PropertyStateDraft, model.PropertyStatePendingPayment)
		require.NoError(t, err)

		// A second transition from draft loses the race it already lost.
		_, err = repo.Transition(ctx, created.ID, model.PropertyStateDraft, model.PropertyStatePendingPayment)
		assert.ErrorIs(t, err, ErrStateConflict)

		got, err := repo.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, model.PropertyStatePendingPayment, got.State)
	})

	t.Run("missing property", func(t *testing.T) {
		_, err := repo.Transition(ctx, 99999, model.PropertyStateDraft, model.PropertyStateActive)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestPropertyRepository_UpdateDraft(t *testing.T) {
	repo := NewPropertyRepository(setupTestDB(t))
	ctx := context.Background()

	t.Run("patch draft fields", func(t *testing.T) {
		created, err := repo.Create(ctx, newDraft(1))
		require.NoError(t, err)

		title := "Renovated villa"
		price := int64(13_000_000_00)
		updated, err := repo.UpdateDraft(ctx, created.ID, model.PropertyPatch{
			Title:      &title,
			PriceCents: &price,
		})
		require.NoError(t, err)
		assert.Equal(t, title, updated.Title)
		assert.Equal(t, price, updated.PriceCents)
		assert.Equal(t, model.PropertyStateDraft, updated.State)
	})

	t.Run("editing rejected returns it to draft", func(t *testing.T) {
		created, err := repo.Create(ctx, newDraft(1))
		require.NoError(t, err)
		_, err = repo.Transition(ctx, created.ID, model.PropertyStateDraft, model.PropertyStatePendingPayment)
		require.NoError(t, err)
		_, err = repo.Transition(ctx, created.ID, model.PropertyStatePendingPayment, model.PropertyStateRejected)
		require.NoError(t, err)

		desc := "second attempt"
		updated, err := repo.UpdateDraft(ctx, created.ID, model.PropertyPatch{Description: &desc})
		require.NoError(t, err)
		assert.Equal(t, model.PropertyStateDraft, updated.State)
		assert.Equal(t, desc, updated.Description)
	})

	t.Run("active listing is not editable", func(t *testing.T) {
		created, err := repo.Create(ctx, newDraft(1))
		require.NoError(t, err)
		_, err = repo.Transition(ctx, created.ID, model.PropertyStateDraft, model.PropertyStateActive)
		require.NoError(t, err)

		title := "nope"
		_, err = repo.UpdateDraft(ctx, created.ID, model.PropertyPatch{Title: &title})
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("missing property", func(t *testing.T) {
		title := "nope"
		_, err := repo.UpdateDraft(ctx, 99999, model.PropertyPatch{Title: &title})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestPropertyRepository_ViewCounts(t *testing.T) {
	repo := NewPropertyRepository(setupTestDB(t))
	ctx := context.Background()

	active, err := repo.Create(ctx, newDraft(1))
	require.NoError(t, err)
	_, err = repo.Transition(ctx, active.ID, model.PropertyStateDraft, model.PropertyStateActive)
	require.NoError(t, err)

	draft, err := repo.Create(ctx, newDraft(1))
	require.NoError(t, err)

	t.Run("increment active listing", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			require.NoError(t, repo.IncrementViewCount(ctx, active.ID))
		}
		count, err := repo.GetViewCount(ctx, active.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(3), count)
	})

	t.Run("non-active listing is skipped", func(t *testing.T) {
		require.NoError(t, repo.IncrementViewCount(ctx, draft.ID))
		count, err := repo.GetViewCount(ctx, draft.ID)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("total views over active listings", func(t *testing.T) {
		total, err := repo.TotalViews(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
	})

	t.Run("missing property", func(t *testing.T) {
		_, err := repo.GetViewCount(ctx, 99999)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestPropertyRepository_ConcurrentViewIncrements(t *testing.T) {
	repo := NewPropertyRepository(setupTestDB(t))
	ctx := context.Background()

	created, err := repo.Create(ctx, newDraft(1))
	require.NoError(t, err)
	_, err = repo.Transition(ctx, created.ID, model.PropertyStateDraft, model.PropertyStateActive)
	require.NoError(t, err)

	const n = 20
	done := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			done <- repo.IncrementViewCount(ctx, created.ID)
		}()
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-done)
	}

	count, err := repo.GetViewCount(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(n), count)
}
