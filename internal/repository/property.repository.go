package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/tewereus/prime-property/internal/model"
	"github.com/tewereus/prime-property/pkg/pg"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a property does not exist.
	ErrNotFound = errors.New("property not found")

	// ErrStateConflict is returned when a conditional state transition finds
	// the row in a different state than expected. The caller either lost a
	// race or the operation was already applied.
	ErrStateConflict = errors.New("property state conflict")

	// ErrInvalidState is returned when an operation is not legal in the
	// property's current state.
	ErrInvalidState = errors.New("operation not allowed in current property state")
)

type PropertyRepository struct {
	*pg.DB
}

func NewPropertyRepository(db *pg.DB) *PropertyRepository {
	return &PropertyRepository{
		db,
	}
}

func (r *PropertyRepository) Create(ctx context.Context, p *model.Property) (*model.Property, error) {
	entity := toPropertyEntity(p)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toPropertyModel(entity), nil
}

func (r *PropertyRepository) Get(ctx context.Context, id int64) (*model.Property, error) {
	var entity PropertyEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toPropertyModel(&entity), nil
}

func (r *PropertyRepository) List(ctx context.Context, f model.PropertyFilter) ([]*model.Property, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&PropertyEntity{})

	if f.OwnerID != nil {
		q = q.Where("owner_id = ?", *f.OwnerID)
	}
	if f.Type != nil {
		q = q.Where("type = ?", string(*f.Type))
	}
	if f.Use != nil {
		q = q.Where("use = ?", string(*f.Use))
	}
	if len(f.States) > 0 {
		states := make([]string, len(f.States))
		for i, s := range f.States {
			states[i] = string(s)
		}
		q = q.Where("state IN ?", states)
	}

	// Count before pagination
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "created_at"
	if f.Desc {
		order += " DESC"
	} else {
		order += " ASC"
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*PropertyEntity
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toPropertyModels(entities), total, nil
}

// Transition performs the compare-and-set that serializes all lifecycle
// writes for a property: the row is updated only if its current state still
// matches from. A zero-row update means somebody else transitioned first.
func (r *PropertyRepository) Transition(ctx context.Context, id int64, from, to model.PropertyState) (*model.Property, error) {
	result := r.Write(ctx).WithContext(ctx).
		Model(&PropertyEntity{}).
		Where("id = ? AND state = ?", id, string(from)).
		Updates(map[string]any{
			"state":      string(to),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return nil, result.Error
	}

	if result.RowsAffected == 0 {
		var count int64
		if err := r.Read(ctx).WithContext(ctx).
			Model(&PropertyEntity{}).
			Where("id = ?", id).
			Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, ErrNotFound
		}
		return nil, ErrStateConflict
	}

	return r.Get(ctx, id)
}

// UpdateDraft applies owner edits. Only DRAFT and REJECTED rows are
// writable, and editing a REJECTED row moves it back to DRAFT in the same
// statement so a fresh payment cycle can begin.
func (r *PropertyRepository) UpdateDraft(ctx context.Context, id int64, patch model.PropertyPatch) (*model.Property, error) {
	updates := map[string]any{
		"state":      string(model.PropertyStateDraft),
		"updated_at": time.Now(),
	}
	if patch.Title != nil {
		updates["title"] = *patch.Title
	}
	if patch.Description != nil {
		updates["description"] = *patch.Description
	}
	if patch.PriceCents != nil {
		updates["price_cents"] = *patch.PriceCents
	}
	if patch.Latitude != nil {
		updates["latitude"] = *patch.Latitude
	}
	if patch.Longitude != nil {
		updates["longitude"] = *patch.Longitude
	}
	if patch.Attributes != nil {
		attrs, err := json.Marshal(patch.Attributes)
		if err != nil {
			return nil, err
		}
		updates["attributes"] = string(attrs)
	}
	if patch.Images != nil {
		images, err := json.Marshal(patch.Images)
		if err != nil {
			return nil, err
		}
		updates["images"] = string(images)
	}

	result := r.Write(ctx).WithContext(ctx).
		Model(&PropertyEntity{}).
		Where("id = ? AND state IN ?", id, []string{
			string(model.PropertyStateDraft),
			string(model.PropertyStateRejected),
		}).
		Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}

	if result.RowsAffected == 0 {
		var count int64
		if err := r.Read(ctx).WithContext(ctx).
			Model(&PropertyEntity{}).
			Where("id = ?", id).
			Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, ErrNotFound
		}
		return nil, ErrInvalidState
	}

	return r.Get(ctx, id)
}

// IncrementViewCount bumps view_count by one, but only while the listing is
// publicly visible. Non-active rows are silently skipped. The arithmetic
// runs inside the database so concurrent increments never lose updates.
func (r *PropertyRepository) IncrementViewCount(ctx context.Context, id int64) error {
	return r.Write(ctx).WithContext(ctx).
		Model(&PropertyEntity{}).
		Where("id = ? AND state = ?", id, string(model.PropertyStateActive)).
		Update("view_count", gorm.Expr("view_count + 1")).
		Error
}

func (r *PropertyRepository) GetViewCount(ctx context.Context, id int64) (int64, error) {
	var entity PropertyEntity
	err := r.Read(ctx).WithContext(ctx).
		Select("view_count").
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return entity.ViewCount, nil
}

// TotalViews sums view counts over active listings.
func (r *PropertyRepository) TotalViews(ctx context.Context) (int64, error) {
	var total *int64
	err := r.Read(ctx).WithContext(ctx).
		Model(&PropertyEntity{}).
		Where("state = ?", string(model.PropertyStateActive)).
		Select("SUM(view_count)").
		Scan(&total).
		Error
	if err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}

// GetWithTransactions returns the owner view of properties joined with their
// payment history, aggregated as JSON on the database side.
func (r *PropertyRepository) GetWithTransactions(ctx context.Context, f model.PropertyFilter) ([]*model.PropertyWithTransactions, int64, error) {
	query := r.buildPropertiesWithTransactionsQuery(ctx)

	if f.OwnerID != nil {
		query = query.Where("p.owner_id = ?", *f.OwnerID)
	}
	if f.Type != nil {
		query = query.Where("p.type = ?", string(*f.Type))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "p.created_at ASC"
	if f.Desc {
		order = "p.created_at DESC"
	}
	query = query.Order(order)

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	query = query.Limit(limit).Offset(offset)

	var entities []*PropertyWithTransactionsEntity
	if err := query.Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toPropertyWithTransactionsModels(entities), total, nil
}

func (r *PropertyRepository) buildPropertiesWithTransactionsQuery(ctx context.Context) *gorm.DB {
	return r.Read(ctx).WithContext(ctx).
		Table("properties AS p").
		Select(`
            p.id                                    AS id,
            p.owner_id                              AS owner_id,
            p.type                                  AS type,
            p.use                                   AS use,
            p.title                                 AS title,
            p.price_cents                           AS price_cents,
            p.state                                 AS state,
            p.view_count                            AS view_count,
            p.created_at                            AS created_at,

            COALESCE(
                json_agg(
                    json_build_object(
                        'id', t.id,
                        'property_id', t.property_id,
                        'method', t.method,
                        'amount_cents', t.amount_cents,
                        'currency', t.currency,
                        'status', t.status,
                        'provider_ref', t.provider_ref,
                        'created_at', t.created_at,
                        'resolved_at', t.resolved_at
                    )
                    ORDER BY t.id DESC
                ) FILTER (WHERE t.id IS NOT NULL),
                '[]'::json
            )                                       AS transactions
        `).
		Joins("LEFT JOIN payment_transactions AS t ON t.property_id = p.id").
		Group(`
            p.id,
            p.owner_id,
            p.type,
            p.use,
            p.title,
            p.price_cents,
            p.state,
            p.view_count,
            p.created_at
        `)
}
