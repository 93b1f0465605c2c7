package services

import (
	"context"
	"errors"
	"strings"

	"github.com/tewereus/prime-property/internal/model"
)

var (
	ErrNotFound      = errors.New("property not found")
	ErrNotOwner      = errors.New("caller does not own this property")
	ErrStateConflict = errors.New("concurrent state transition detected")
	ErrInvalidState  = errors.New("operation not allowed in current state")
)

type PropertyRepository interface {
	Create(ctx context.Context, p *model.Property) (*model.Property, error)
	Get(ctx context.Context, id int64) (*model.Property, error)
	List(ctx context.Context, f model.PropertyFilter) ([]*model.Property, int64, error)
	UpdateDraft(ctx context.Context, id int64, patch model.PropertyPatch) (*model.Property, error)
	Transition(ctx context.Context, id int64, from, to model.PropertyState) (*model.Property, error)
	GetWithTransactions(ctx context.Context, f model.PropertyFilter) ([]*model.PropertyWithTransactions, int64, error)
}

type PropertyService struct {
	propertyRepo PropertyRepository
}

func NewPropertyService(propertyRepo PropertyRepository) *PropertyService {
	return &PropertyService{
		propertyRepo: propertyRepo,
	}
}

// Create validates and persists a draft. Drafts are invisible to the public
// listing surface until a confirmed payment activates them.
func (s *PropertyService) Create(ctx context.Context, req model.PropertyCreateRequest) (*model.Property, error) {
	req.Title = strings.TrimSpace(req.Title)
	if err := req.Validate(); err != nil {
		return nil, err
	}

	p := &model.Property{
		OwnerID:     req.OwnerID,
		Type:        req.Type,
		Use:         req.Use,
		Title:       req.Title,
		Description: strings.TrimSpace(req.Description),
		Attributes:  req.Attributes,
		PriceCents:  req.PriceCents,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		Images:      req.Images,
		State:       model.PropertyStateDraft,
	}

	return s.propertyRepo.Create(ctx, p)
}

// Get returns a property. Non-owners only see ACTIVE listings, the draft
// and payment states of somebody else's property are not public.
func (s *PropertyService) Get(ctx context.Context, id, callerID int64) (*model.Property, error) {
	p, err := s.propertyRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.OwnerID != callerID && p.State != model.PropertyStateActive {
		return nil, ErrNotFound
	}
	return p, nil
}

// List serves the public listing surface: whatever the filter says, only
// ACTIVE properties are returned unless the filter is owner-scoped to the
// caller itself.
func (s *PropertyService) List(ctx context.Context, f model.PropertyFilter, callerID int64) ([]*model.Property, int64, error) {
	ownerScoped := f.OwnerID != nil && *f.OwnerID == callerID && callerID != 0
	if !ownerScoped {
		f.States = []model.PropertyState{model.PropertyStateActive}
	}
	return s.propertyRepo.List(ctx, f)
}

// ListOwner returns the caller's own properties with payment history.
func (s *PropertyService) ListOwner(ctx context.Context, ownerID int64, f model.PropertyFilter) ([]*model.PropertyWithTransactions, int64, error) {
	f.OwnerID = &ownerID
	return s.propertyRepo.GetWithTransactions(ctx, f)
}

// Update applies owner edits. Legal only in DRAFT and REJECTED, and editing
// a REJECTED property re-enters DRAFT so it can be resubmitted for payment.
func (s *PropertyService) Update(ctx context.Context, id, callerID int64, patch model.PropertyPatch) (*model.Property, error) {
	p, err := s.propertyRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.OwnerID != callerID {
		return nil, ErrNotOwner
	}
	if patch.PriceCents != nil && *patch.PriceCents <= 0 {
		return nil, errors.New("price must be greater than zero")
	}
	return s.propertyRepo.UpdateDraft(ctx, id, patch)
}
