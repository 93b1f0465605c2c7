package model

import (
	"errors"
	"fmt"
	"time"
)

// PropertyState is the publication lifecycle state of a property.
type PropertyState string

const (
	PropertyStateDraft          PropertyState = "draft"
	PropertyStatePendingPayment PropertyState = "pending_payment"
	PropertyStateActive         PropertyState = "active"
	PropertyStateRejected       PropertyState = "rejected"
	PropertyStateExpired        PropertyState = "expired"
)

type PropertyType string

const (
	PropertyTypeVilla     PropertyType = "villa"
	PropertyTypeApartment PropertyType = "apartment"
	PropertyTypeWarehouse PropertyType = "warehouse"
	PropertyTypeCar       PropertyType = "car"
	PropertyTypeHall      PropertyType = "hall"
)

type ListingUse string

const (
	ListingUseSell ListingUse = "sell"
	ListingUseRent ListingUse = "rent"
)

// requiredAttributes maps each property type to the attribute keys a draft
// must carry before it can be persisted. Kept in one table so per-type rules
// are not duplicated at every call site.
var requiredAttributes = map[PropertyType][]string{
	PropertyTypeVilla:     {"bedrooms", "garden_size"},
	PropertyTypeApartment: {"number_of_rooms"},
	PropertyTypeWarehouse: {"storage_capacity"},
	PropertyTypeCar:       {"make_model"},
	PropertyTypeHall:      {"capacity"},
}

// hall has no sell form in the client, rent only
var sellDisallowed = map[PropertyType]bool{
	PropertyTypeHall: true,
}

type Property struct {
	ID          int64          `json:"id"`
	OwnerID     int64          `json:"owner_id"`
	Type        PropertyType   `json:"property_type"`
	Use         ListingUse     `json:"listing_use"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Attributes  map[string]any `json:"attributes"`
	PriceCents  int64          `json:"price_cents"` // smallest currency unit (birr cents)
	Latitude    float64        `json:"latitude"`
	Longitude   float64        `json:"longitude"`
	Images      []string       `json:"images"`
	State       PropertyState  `json:"state"`
	ViewCount   int64          `json:"view_count"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// PropertyCreateRequest is the input for creating a draft.
type PropertyCreateRequest struct {
	OwnerID     int64
	Type        PropertyType
	Use         ListingUse
	Title       string
	Description string
	Attributes  map[string]any
	PriceCents  int64
	Latitude    float64
	Longitude   float64
	Images      []string
}

var (
	ErrUnknownPropertyType = errors.New("unknown property type")
	ErrUnknownListingUse   = errors.New("unknown listing use")
)

func (p PropertyCreateRequest) Validate() error {
	if p.OwnerID == 0 {
		return errors.New("owner_id is required")
	}
	required, ok := requiredAttributes[p.Type]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPropertyType, p.Type)
	}
	if p.Use != ListingUseSell && p.Use != ListingUseRent {
		return fmt.Errorf("%w: %q", ErrUnknownListingUse, p.Use)
	}
	if p.Use == ListingUseSell && sellDisallowed[p.Type] {
		return fmt.Errorf("property type %q cannot be listed for sale", p.Type)
	}
	if p.Title == "" {
		return errors.New("title is required")
	}
	if p.PriceCents <= 0 {
		return errors.New("price must be greater than zero")
	}
	for _, key := range required {
		v, ok := p.Attributes[key]
		if !ok || v == nil || v == "" {
			return fmt.Errorf("attribute %q is required for type %q", key, p.Type)
		}
	}
	return nil
}

// PropertyPatch carries owner edits. Nil fields are left untouched.
type PropertyPatch struct {
	Title       *string
	Description *string
	Attributes  map[string]any
	PriceCents  *int64
	Latitude    *float64
	Longitude   *float64
	Images      []string
}

// PropertyFilter controls List queries.
type PropertyFilter struct {
	OwnerID *int64          // equals
	Type    *PropertyType   // equals
	Use     *ListingUse     // equals
	States  []PropertyState // IN (...)
	Limit   int             // default 50
	Offset  int             // for pagination
	Desc    bool            // order by created_at
}

// PropertyWithTransactions is the owner view joining payment history.
type PropertyWithTransactions struct {
	Property
	Transactions []*PaymentTransaction `json:"transactions"`
}

// HasLocation reports whether a coordinate pair was set. Activation is gated
// on it, (0, 0) counts as unset.
func (p *Property) HasLocation() bool {
	return p.Latitude != 0 || p.Longitude != 0
}
