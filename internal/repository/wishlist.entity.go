package repository

import (
	"time"

	"github.com/tewereus/prime-property/internal/model"
)

type WishlistEntity struct {
	ID         int64     `db:"id"          gorm:"primaryKey;autoIncrement;column:id"`
	UserID     int64     `db:"user_id"     gorm:"column:user_id;not null;uniqueIndex:idx_wishlist_user_property"`
	PropertyID int64     `db:"property_id" gorm:"column:property_id;not null;uniqueIndex:idx_wishlist_user_property"`
	Property   *PropertyEntity `json:"-"   gorm:"foreignKey:PropertyID;references:ID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time `db:"created_at"  gorm:"column:created_at;autoCreateTime"`
}

func (WishlistEntity) TableName() string {
	return "wishlist_items"
}

func toWishlistModel(e *WishlistEntity) *model.WishlistItem {
	if e == nil {
		return nil
	}
	return &model.WishlistItem{
		ID:         e.ID,
		UserID:     e.UserID,
		PropertyID: e.PropertyID,
		CreatedAt:  e.CreatedAt,
	}
}
