package services

import (
	"context"

	"github.com/tewereus/prime-property/internal/model"
)

type WishlistRepository interface {
	Add(ctx context.Context, userID, propertyID int64) error
	Remove(ctx context.Context, userID, propertyID int64) error
	ListByUser(ctx context.Context, userID int64) ([]*model.WishlistEntry, error)
}

// WishlistService is independent of the publication lifecycle: users may
// favorite a property in any state, the filter is applied when reading.
type WishlistService struct {
	wishlistRepo WishlistRepository
	propertyRepo PropertyRepository
}

func NewWishlistService(wishlistRepo WishlistRepository, propertyRepo PropertyRepository) *WishlistService {
	return &WishlistService{
		wishlistRepo: wishlistRepo,
		propertyRepo: propertyRepo,
	}
}

func (s *WishlistService) Add(ctx context.Context, userID, propertyID int64) error {
	// existence check only, state does not matter
	if _, err := s.propertyRepo.Get(ctx, propertyID); err != nil {
		return err
	}
	return s.wishlistRepo.Add(ctx, userID, propertyID)
}

func (s *WishlistService) Remove(ctx context.Context, userID, propertyID int64) error {
	return s.wishlistRepo.Remove(ctx, userID, propertyID)
}

// List returns the user's wishlist. Non-ACTIVE properties owned by somebody
// else are hidden, the user's own are always visible.
func (s *WishlistService) List(ctx context.Context, userID int64) ([]*model.WishlistEntry, error) {
	entries, err := s.wishlistRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	visible := make([]*model.WishlistEntry, 0, len(entries))
	for _, e := range entries {
		if e.Property.State != model.PropertyStateActive && e.Property.OwnerID != userID {
			continue
		}
		visible = append(visible, e)
	}
	return visible, nil
}
