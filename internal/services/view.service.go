package services

import (
	"context"
)

type ViewRepository interface {
	IncrementViewCount(ctx context.Context, id int64) error
	GetViewCount(ctx context.Context, id int64) (int64, error)
	TotalViews(ctx context.Context) (int64, error)
}

// ViewCounter tracks per-listing views. Increments on anything that is not
// ACTIVE are silently dropped, a draft being previewed by its owner is not
// a public view.
type ViewCounter struct {
	viewRepo ViewRepository
}

func NewViewCounter(viewRepo ViewRepository) *ViewCounter {
	return &ViewCounter{
		viewRepo: viewRepo,
	}
}

func (s *ViewCounter) Increment(ctx context.Context, propertyID int64) error {
	return s.viewRepo.IncrementViewCount(ctx, propertyID)
}

func (s *ViewCounter) GetCount(ctx context.Context, propertyID int64) (int64, error) {
	return s.viewRepo.GetViewCount(ctx, propertyID)
}

func (s *ViewCounter) Total(ctx context.Context) (int64, error) {
	return s.viewRepo.TotalViews(ctx)
}
