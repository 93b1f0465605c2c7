package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tewereus/prime-property/internal/model"
)

func TestPropertyService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("creates draft", func(t *testing.T) {
		repo := new(MockPropertyRepository)
		svc := NewPropertyService(repo)

		repo.On("Create", ctx, mock.MatchedBy(func(p *model.Property) bool {
			return p.State == model.PropertyStateDraft && p.Title == "Villa in Bole"
		})).Return(&model.Property{ID: 1, State: model.PropertyStateDraft}, nil)

		created, err := svc.Create(ctx, model.PropertyCreateRequest{
			OwnerID:    10,
			Type:       model.PropertyTypeVilla,
			Use:        model.ListingUseSell,
			Title:      "  Villa in Bole  ",
			PriceCents: 100_00,
			Attributes: map[string]any{"bedrooms": 3, "garden_size": 120},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), created.ID)
		repo.AssertExpectations(t)
	})

	t.Run("invalid request never reaches the repository", func(t *testing.T) {
		repo := new(MockPropertyRepository)
		svc := NewPropertyService(repo)

		_, err := svc.Create(ctx, model.PropertyCreateRequest{
			OwnerID:    10,
			Type:       model.PropertyTypeVilla,
			Use:        model.ListingUseSell,
			Title:      "",
			PriceCents: 100_00,
			Attributes: map[string]any{"bedrooms": 3, "garden_size": 120},
		})
		require.Error(t, err)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("hall cannot be listed for sale", func(t *testing.T) {
		repo := new(MockPropertyRepository)
		svc := NewPropertyService(repo)

		_, err := svc.Create(ctx, model.PropertyCreateRequest{
			OwnerID:    10,
			Type:       model.PropertyTypeHall,
			Use:        model.ListingUseSell,
			Title:      "Event hall",
			PriceCents: 100_00,
			Attributes: map[string]any{"capacity": 300},
		})
		require.Error(t, err)
	})
}

func TestPropertyService_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("active listing is public", func(t *testing.T) {
		repo := new(MockPropertyRepository)
		svc := NewPropertyService(repo)

		repo.On("Get", ctx, int64(1)).Return(&model.Property{
			ID: 1, OwnerID: 10, State: model.PropertyStateActive,
		}, nil)

		p, err := svc.Get(ctx, 1, 99)
		require.NoError(t, err)
		assert.Equal(t, int64(1), p.ID)
	})

	t.Run("draft is hidden from non-owners", func(t *testing.T) {
		repo := new(MockPropertyRepository)
		svc := NewPropertyService(repo)

		repo.On("Get", ctx, int64(1)).Return(&model.Property{
			ID: 1, OwnerID: 10, State: model.PropertyStateDraft,
		}, nil)

		_, err := svc.Get(ctx, 1, 99)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("owner sees every state", func(t *testing.T) {
		repo := new(MockPropertyRepository)
		svc := NewPropertyService(repo)

		repo.On("Get", ctx, int64(1)).Return(&model.Property{
			ID: 1, OwnerID: 10, State: model.PropertyStatePendingPayment,
		}, nil)

		p, err := svc.Get(ctx, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, model.PropertyStatePendingPayment, p.State)
	})
}

func TestPropertyService_List(t *testing.T) {
	ctx := context.Background()

	t.Run("public list is forced to active", func(t *testing.T) {
		repo := new(MockPropertyRepository)
		svc := NewPropertyService(repo)

		repo.On("List", ctx, mock.MatchedBy(func(f model.PropertyFilter) bool {
			return len(f.States) == 1 && f.States[0] == model.PropertyStateActive
		})).Return([]*model.Property{}, int64(0), nil)

		_, _, err := svc.List(ctx, model.PropertyFilter{
			States: []model.PropertyState{model.PropertyStateDraft},
		}, 99)
		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("owner-scoped list keeps requested states", func(t *testing.T) {
		repo := new(MockPropertyRepository)
		svc := NewPropertyService(repo)

		ownerID := int64(10)
		repo.On("List", ctx, mock.MatchedBy(func(f model.PropertyFilter) bool {
			return len(f.States) == 1 && f.States[0] == model.PropertyStateDraft
		})).Return([]*model.Property{}, int64(0), nil)

		_, _, err := svc.List(ctx, model.PropertyFilter{
			OwnerID: &ownerID,
			States:  []model.PropertyState{model.PropertyStateDraft},
		}, 10)
		require.NoError(t, err)
	})

	t.Run("owner filter for someone else is still forced to active", func(t *testing.T) {
		repo := new(MockPropertyRepository)
		svc := NewPropertyService(repo)

		otherID := int64(42)
		repo.On("List", ctx, mock.MatchedBy(func(f model.PropertyFilter) bool {
			return len(f.States) == 1 && f.States[0] == model.PropertyStateActive
		})).Return([]*model.Property{}, int64(0), nil)

		_, _, err := svc.List(ctx, model.PropertyFilter{OwnerID: &otherID}, 10)
		require.NoError(t, err)
	})
}

func TestPropertyService_ListOwner(t *testing.T) {
	ctx := context.Background()
	repo := new(MockPropertyRepository)
	svc := NewPropertyService(repo)

	repo.On("GetWithTransactions", ctx, mock.MatchedBy(func(f model.PropertyFilter) bool {
		return f.OwnerID != nil && *f.OwnerID == 10
	})).Return([]*model.PropertyWithTransactions{}, int64(0), nil)

	_, _, err := svc.ListOwner(ctx, 10, model.PropertyFilter{})
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestPropertyService_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("owner edits draft", func(t *testing.T) {
		repo := new(MockPropertyRepository)
		svc := NewPropertyService(repo)

		title := "Updated title"
		repo.On("Get", ctx, int64(1)).Return(&model.Property{
			ID: 1, OwnerID: 10, State: model.PropertyStateDraft,
		}, nil)
		repo.On("UpdateDraft", ctx, int64(1), mock.Anything).Return(&model.Property{
			ID: 1, Title: title, State: model.PropertyStateDraft,
		}, nil)

		updated, err := svc.Update(ctx, 1, 10, model.PropertyPatch{Title: &title})
		require.NoError(t, err)
		assert.Equal(t, title, updated.Title)
	})

	t.Run("non-owner is refused", func(t *testing.T) {
		repo := new(MockPropertyRepository)
		svc := NewPropertyService(repo)

		repo.On("Get", ctx, int64(1)).Return(&model.Property{
			ID: 1, OwnerID: 10, State: model.PropertyStateDraft,
		}, nil)

		_, err := svc.Update(ctx, 1, 99, model.PropertyPatch{})
		assert.ErrorIs(t, err, ErrNotOwner)
		repo.AssertNotCalled(t, "UpdateDraft", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("non-positive price is refused", func(t *testing.T) {
		repo := new(MockPropertyRepository)
		svc := NewPropertyService(repo)

		repo.On("Get", ctx, int64(1)).Return(&model.Property{
			ID: 1, OwnerID: 10, State: model.PropertyStateDraft,
		}, nil)

		zero := int64(0)
		_, err := svc.Update(ctx, 1, 10, model.PropertyPatch{PriceCents: &zero})
		require.Error(t, err)
	})
}
