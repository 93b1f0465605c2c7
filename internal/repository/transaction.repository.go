package repository

import (
	"context"
	"errors"
	"time"

	"github.com/tewereus/prime-property/internal/model"
	"github.com/tewereus/prime-property/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrTransactionNotFound is returned when no transaction matches.
	ErrTransactionNotFound = errors.New("payment transaction not found")

	// ErrDuplicateTransaction is returned when a property already has an
	// INITIATED or CONFIRMED transaction. One pending charge per property,
	// ever, is the invariant that prevents double-charging.
	ErrDuplicateTransaction = errors.New("property already has a pending or confirmed transaction")

	// ErrAlreadyResolved is returned when a conditional resolve finds the
	// transaction no longer INITIATED. Callers treat it as already-applied.
	ErrAlreadyResolved = errors.New("transaction already resolved")
)

// pendingStatuses are the statuses that count against the one-pending
// invariant.
var pendingStatuses = []string{
	string(model.TransactionStatusInitiated),
	string(model.TransactionStatusConfirmed),
}

type TransactionRepository struct {
	*pg.DB
}

func NewTransactionRepository(db *pg.DB) *TransactionRepository {
	return &TransactionRepository{
		db,
	}
}

// CreateInitiated writes the INITIATED reservation for a publication charge.
// The property row is locked for the duration of the check-then-insert so
// two concurrent submissions cannot both pass the pending-transaction check.
func (r *TransactionRepository) CreateInitiated(ctx context.Context, txn *model.PaymentTransaction) (*model.PaymentTransaction, error) {
	entity := toTransactionEntity(txn)
	entity.Status = string(model.TransactionStatusInitiated)
	entity.ResolvedAt = nil

	err := r.WithinTransaction(ctx, func(ctx context.Context) error {
		var property PropertyEntity
		err := r.Write(ctx).WithContext(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", txn.PropertyID).
			First(&property).
			Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		var pending int64
		err = r.Write(ctx).WithContext(ctx).
			Model(&TransactionEntity{}).
			Where("property_id = ? AND status IN ?", txn.PropertyID, pendingStatuses).
			Count(&pending).
			Error
		if err != nil {
			return err
		}
		if pending > 0 {
			return ErrDuplicateTransaction
		}

		return r.Write(ctx).WithContext(ctx).Create(entity).Error
	})
	if err != nil {
		return nil, err
	}

	return toTransactionModel(entity), nil
}

func (r *TransactionRepository) Get(ctx context.Context, id int64) (*model.PaymentTransaction, error) {
	var entity TransactionEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return toTransactionModel(&entity), nil
}

func (r *TransactionRepository) GetByProviderRef(ctx context.Context, providerRef string) (*model.PaymentTransaction, error) {
	var entity TransactionEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("provider_ref = ?", providerRef).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return toTransactionModel(&entity), nil
}

func (r *TransactionRepository) ListByProperty(ctx context.Context, propertyID int64) ([]*model.PaymentTransaction, error) {
	var entities []*TransactionEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("property_id = ?", propertyID).
		Order("created_at DESC").
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	return toTransactionModels(entities), nil
}

// SetCheckoutURL records the redirect URL handed back by the provider after
// a successful initiate call.
func (r *TransactionRepository) SetCheckoutURL(ctx context.Context, id int64, url string) error {
	return r.Write(ctx).WithContext(ctx).
		Model(&TransactionEntity{}).
		Where("id = ?", id).
		Update("checkout_url", url).
		Error
}

// Resolve conditionally moves an INITIATED transaction to a terminal status.
// The WHERE clause on status makes repeated callbacks for the same
// provider_ref a no-op after the first one wins.
func (r *TransactionRepository) Resolve(ctx context.Context, providerRef string, status model.TransactionStatus, resolvedAt time.Time) (*model.PaymentTransaction, error) {
	result := r.Write(ctx).WithContext(ctx).
		Model(&TransactionEntity{}).
		Where("provider_ref = ? AND status = ?", providerRef, string(model.TransactionStatusInitiated)).
		Updates(map[string]any{
			"status":      string(status),
			"resolved_at": resolvedAt,
		})
	if result.Error != nil {
		return nil, result.Error
	}

	if result.RowsAffected == 0 {
		var count int64
		if err := r.Read(ctx).WithContext(ctx).
			Model(&TransactionEntity{}).
			Where("provider_ref = ?", providerRef).
			Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, ErrTransactionNotFound
		}
		return nil, ErrAlreadyResolved
	}

	return r.GetByProviderRef(ctx, providerRef)
}

// ListStaleInitiated returns INITIATED transactions created before cutoff,
// the expiry sweep's work queue.
func (r *TransactionRepository) ListStaleInitiated(ctx context.Context, cutoff time.Time, limit int) ([]*model.PaymentTransaction, error) {
	if limit <= 0 {
		limit = 100
	}
	var entities []*TransactionEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("status = ? AND created_at < ?", string(model.TransactionStatusInitiated), cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	return toTransactionModels(entities), nil
}
