package model

import "time"

// WishlistItem is one (user, property) favorite. Adding is idempotent, the
// pair is the identity.
type WishlistItem struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	PropertyID int64     `json:"property_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// WishlistEntry is a wishlist item joined with its property for listing.
type WishlistEntry struct {
	Property Property  `json:"property"`
	AddedAt  time.Time `json:"added_at"`
}
