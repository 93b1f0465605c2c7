package handlers

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tewereus/prime-property/internal/model"
	"github.com/tewereus/prime-property/internal/services"
)

type MockWishlistService struct {
	mock.Mock
}

func (m *MockWishlistService) Add(ctx context.Context, userID, propertyID int64) error {
	return m.Called(ctx, userID, propertyID).Error(0)
}

func (m *MockWishlistService) Remove(ctx context.Context, userID, propertyID int64) error {
	return m.Called(ctx, userID, propertyID).Error(0)
}

func (m *MockWishlistService) List(ctx context.Context, userID int64) ([]*model.WishlistEntry, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.WishlistEntry), args.Error(1)
}

func TestWishlistHandler_Add(t *testing.T) {
	t.Run("adds entry", func(t *testing.T) {
		svc := new(MockWishlistService)
		handler := NewWishlistHandler(svc)

		bodyBytes, _ := json.Marshal(wishlistRequest{UserID: 9, PropertyID: 5})
		svc.On("Add", mock.Anything, int64(9), int64(5)).Return(nil)

		ctx := setupTestContext("POST", "/api/v1/wishlist", bodyBytes)
		handler.AddToWishlist(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})

	t.Run("unknown property", func(t *testing.T) {
		svc := new(MockWishlistService)
		handler := NewWishlistHandler(svc)

		bodyBytes, _ := json.Marshal(wishlistRequest{UserID: 9, PropertyID: 404})
		svc.On("Add", mock.Anything, int64(9), int64(404)).Return(services.ErrNotFound)

		ctx := setupTestContext("POST", "/api/v1/wishlist", bodyBytes)
		handler.AddToWishlist(ctx)

		assert.Equal(t, 404, ctx.Response.StatusCode())
	})

	t.Run("missing ids", func(t *testing.T) {
		svc := new(MockWishlistService)
		handler := NewWishlistHandler(svc)

		bodyBytes, _ := json.Marshal(wishlistRequest{UserID: 9})

		ctx := setupTestContext("POST", "/api/v1/wishlist", bodyBytes)
		handler.AddToWishlist(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
		svc.AssertNotCalled(t, "Add")
	})
}

func TestWishlistHandler_Remove(t *testing.T) {
	svc := new(MockWishlistService)
	handler := NewWishlistHandler(svc)

	bodyBytes, _ := json.Marshal(wishlistRequest{UserID: 9, PropertyID: 5})
	svc.On("Remove", mock.Anything, int64(9), int64(5)).Return(nil)

	ctx := setupTestContext("DELETE", "/api/v1/wishlist", bodyBytes)
	handler.RemoveFromWishlist(ctx)

	assert.Equal(t, 200, ctx.Response.StatusCode())
	svc.AssertExpectations(t)
}

func TestWishlistHandler_List(t *testing.T) {
	t.Run("requires user_id", func(t *testing.T) {
		handler := NewWishlistHandler(new(MockWishlistService))

		ctx := setupTestContext("GET", "/api/v1/wishlist", nil)
		handler.ListWishlist(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})

	t.Run("returns entries", func(t *testing.T) {
		svc := new(MockWishlistService)
		handler := NewWishlistHandler(svc)

		entries := []*model.WishlistEntry{
			{Property: model.Property{ID: 5, State: model.PropertyStateActive}, AddedAt: time.Now()},
		}
		svc.On("List", mock.Anything, int64(9)).Return(entries, nil)

		ctx := setupTestContext("GET", "/api/v1/wishlist?user_id=9", nil)
		handler.ListWishlist(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())

		var response wishlistListResponse
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
		assert.Len(t, response.Items, 1)
	})
}
