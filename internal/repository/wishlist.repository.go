package repository

import (
	"context"

	"github.com/tewereus/prime-property/internal/model"
	"github.com/tewereus/prime-property/pkg/pg"
	"gorm.io/gorm/clause"
)

type WishlistRepository struct {
	*pg.DB
}

func NewWishlistRepository(db *pg.DB) *WishlistRepository {
	return &WishlistRepository{
		db,
	}
}

// Add inserts the (user, property) pair. Re-adding an existing pair is a
// no-op, the unique index plus ON CONFLICT DO NOTHING makes it idempotent.
func (r *WishlistRepository) Add(ctx context.Context, userID, propertyID int64) error {
	entity := &WishlistEntity{
		UserID:     userID,
		PropertyID: propertyID,
	}
	return r.Write(ctx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "property_id"}},
			DoNothing: true,
		}).
		Create(entity).
		Error
}

// Remove deletes the pair. Removing an absent pair is a no-op.
func (r *WishlistRepository) Remove(ctx context.Context, userID, propertyID int64) error {
	return r.Write(ctx).WithContext(ctx).
		Where("user_id = ? AND property_id = ?", userID, propertyID).
		Delete(&WishlistEntity{}).
		Error
}

// ListByUser returns the user's wishlist joined with property rows, newest
// first. Visibility filtering is the service's concern.
func (r *WishlistRepository) ListByUser(ctx context.Context, userID int64) ([]*model.WishlistEntry, error) {
	var entities []*WishlistEntity
	err := r.Read(ctx).WithContext(ctx).
		Preload("Property").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}

	entries := make([]*model.WishlistEntry, 0, len(entities))
	for _, e := range entities {
		if e.Property == nil {
			continue
		}
		entries = append(entries, &model.WishlistEntry{
			Property: *toPropertyModel(e.Property),
			AddedAt:  e.CreatedAt,
		})
	}
	return entries, nil
}
