package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tewereus/prime-property/internal/model"
	"github.com/tewereus/prime-property/internal/repository"
)

type MockWishlistRepository struct {
	mock.Mock
}

func (m *MockWishlistRepository) Add(ctx context.Context, userID, propertyID int64) error {
	args := m.Called(ctx, userID, propertyID)
	return args.Error(0)
}

func (m *MockWishlistRepository) Remove(ctx context.Context, userID, propertyID int64) error {
	args := m.Called(ctx, userID, propertyID)
	return args.Error(0)
}

func (m *MockWishlistRepository) ListByUser(ctx context.Context, userID int64) ([]*model.WishlistEntry, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.WishlistEntry), args.Error(1)
}

func TestWishlistService_Add(t *testing.T) {
	ctx := context.Background()

	t.Run("adds existing property", func(t *testing.T) {
		wishlistRepo := new(MockWishlistRepository)
		propertyRepo := new(MockPropertyRepository)
		svc := NewWishlistService(wishlistRepo, propertyRepo)

		propertyRepo.On("Get", ctx, int64(5)).Return(&model.Property{
			ID: 5, State: model.PropertyStateDraft,
		}, nil)
		wishlistRepo.On("Add", ctx, int64(10), int64(5)).Return(nil)

		require.NoError(t, svc.Add(ctx, 10, 5))
		wishlistRepo.AssertExpectations(t)
	})

	t.Run("missing property propagates not found", func(t *testing.T) {
		wishlistRepo := new(MockWishlistRepository)
		propertyRepo := new(MockPropertyRepository)
		svc := NewWishlistService(wishlistRepo, propertyRepo)

		propertyRepo.On("Get", ctx, int64(5)).Return(nil, repository.ErrNotFound)

		assert.ErrorIs(t, svc.Add(ctx, 10, 5), repository.ErrNotFound)
		wishlistRepo.AssertNotCalled(t, "Add", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestWishlistService_Remove(t *testing.T) {
	ctx := context.Background()
	wishlistRepo := new(MockWishlistRepository)
	svc := NewWishlistService(wishlistRepo, new(MockPropertyRepository))

	wishlistRepo.On("Remove", ctx, int64(10), int64(5)).Return(nil)
	require.NoError(t, svc.Remove(ctx, 10, 5))
}

func TestWishlistService_List(t *testing.T) {
	ctx := context.Background()

	entry := func(id, ownerID int64, state model.PropertyState) *model.WishlistEntry {
		return &model.WishlistEntry{
			Property: model.Property{ID: id, OwnerID: ownerID, State: state},
			AddedAt:  time.Now(),
		}
	}

	t.Run("hides foreign non-active properties", func(t *testing.T) {
		wishlistRepo := new(MockWishlistRepository)
		svc := NewWishlistService(wishlistRepo, new(MockPropertyRepository))

		wishlistRepo.On("ListByUser", ctx, int64(10)).Return([]*model.WishlistEntry{
			entry(1, 99, model.PropertyStateActive),
			entry(2, 99, model.PropertyStateExpired),
			entry(3, 99, model.PropertyStateDraft),
		}, nil)

		visible, err := svc.List(ctx, 10)
		require.NoError(t, err)
		require.Len(t, visible, 1)
		assert.Equal(t, int64(1), visible[0].Property.ID)
	})

	t.Run("own properties stay visible in any state", func(t *testing.T) {
		wishlistRepo := new(MockWishlistRepository)
		svc := NewWishlistService(wishlistRepo, new(MockPropertyRepository))

		wishlistRepo.On("ListByUser", ctx, int64(10)).Return([]*model.WishlistEntry{
			entry(1, 10, model.PropertyStateDraft),
			entry(2, 10, model.PropertyStateRejected),
		}, nil)

		visible, err := svc.List(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, visible, 2)
	})

	t.Run("empty wishlist", func(t *testing.T) {
		wishlistRepo := new(MockWishlistRepository)
		svc := NewWishlistService(wishlistRepo, new(MockPropertyRepository))

		wishlistRepo.On("ListByUser", ctx, int64(10)).Return([]*model.WishlistEntry{}, nil)

		visible, err := svc.List(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, visible)
	})
}
