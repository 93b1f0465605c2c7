package fixtures

import (
	"time"

	"github.com/tewereus/prime-property/internal/model"
)

func NewTestProperty(ownerID int64, state model.PropertyState) *model.Property {
	return &model.Property{
		OwnerID:    ownerID,
		Type:       model.PropertyTypeVilla,
		Use:        model.ListingUseSell,
		Title:      "3BR villa in Bole",
		Attributes: map[string]any{"bedrooms": float64(3), "garden_size": float64(120)},
		PriceCents: 12_500_000_00,
		Latitude:   8.9806,
		Longitude:  38.7578,
		State:      state,
		CreatedAt:  time.Now(),
	}
}

func NewTestCreateRequest(ownerID int64) model.PropertyCreateRequest {
	return model.PropertyCreateRequest{
		OwnerID:    ownerID,
		Type:       model.PropertyTypeVilla,
		Use:        model.ListingUseSell,
		Title:      "3BR villa in Bole",
		Attributes: map[string]any{"bedrooms": 3, "garden_size": 120},
		PriceCents: 12_500_000_00,
		Latitude:   8.9806,
		Longitude:  38.7578,
	}
}

func CreateRequestApartmentRent(ownerID int64) model.PropertyCreateRequest {
	return model.PropertyCreateRequest{
		OwnerID:    ownerID,
		Type:       model.PropertyTypeApartment,
		Use:        model.ListingUseRent,
		Title:      "Studio near Meskel Square",
		Attributes: map[string]any{"number_of_rooms": 1},
		PriceCents: 25_000_00,
		Latitude:   9.0105,
		Longitude:  38.7613,
	}
}

func CreateRequestMissingTitle(ownerID int64) model.PropertyCreateRequest {
	req := NewTestCreateRequest(ownerID)
	req.Title = ""
	return req
}

func CreateRequestMissingAttributes(ownerID int64) model.PropertyCreateRequest {
	req := NewTestCreateRequest(ownerID)
	req.Attributes = nil
	return req
}

func CreateRequestNoLocation(ownerID int64) model.PropertyCreateRequest {
	req := NewTestCreateRequest(ownerID)
	req.Latitude = 0
	req.Longitude = 0
	return req
}

func NewTestTransaction(propertyID int64, providerRef string, status model.TransactionStatus) *model.PaymentTransaction {
	return &model.PaymentTransaction{
		PropertyID:  propertyID,
		Method:      model.PaymentMethodTelebirr,
		AmountCents: 500_00,
		Currency:    "ETB",
		Status:      status,
		ProviderRef: providerRef,
		CreatedAt:   time.Now(),
	}
}

func NewTestCallback(providerRef string, outcome model.CallbackOutcome) model.PaymentCallback {
	return model.PaymentCallback{
		ProviderRef: providerRef,
		Outcome:     outcome,
		ReceivedAt:  time.Now(),
	}
}

func FilterByOwner(ownerID int64) model.PropertyFilter {
	return model.PropertyFilter{
		OwnerID: &ownerID,
		Limit:   50,
	}
}

func FilterByState(states ...model.PropertyState) model.PropertyFilter {
	return model.PropertyFilter{
		States: states,
		Limit:  50,
	}
}

func FilterWithPagination(limit, offset int) model.PropertyFilter {
	return model.PropertyFilter{
		Limit:  limit,
		Offset: offset,
		Desc:   true,
	}
}
