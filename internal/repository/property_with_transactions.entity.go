package repository

import (
	"encoding/json"
	"time"

	"github.com/tewereus/prime-property/internal/model"
)

// PropertyWithTransactionsEntity scans the json_agg owner view.
type PropertyWithTransactionsEntity struct {
	ID           int64     `gorm:"column:id"`
	OwnerID      int64     `gorm:"column:owner_id"`
	Type         string    `gorm:"column:type"`
	Use          string    `gorm:"column:use"`
	Title        string    `gorm:"column:title"`
	PriceCents   int64     `gorm:"column:price_cents"`
	State        string    `gorm:"column:state"`
	ViewCount    int64     `gorm:"column:view_count"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	Transactions string    `gorm:"column:transactions"` // JSON array from json_agg
}

func toPropertyWithTransactionsModel(e *PropertyWithTransactionsEntity) *model.PropertyWithTransactions {
	if e == nil {
		return nil
	}
	out := &model.PropertyWithTransactions{
		Property: model.Property{
			ID:         e.ID,
			OwnerID:    e.OwnerID,
			Type:       model.PropertyType(e.Type),
			Use:        model.ListingUse(e.Use),
			Title:      e.Title,
			PriceCents: e.PriceCents,
			State:      model.PropertyState(e.State),
			ViewCount:  e.ViewCount,
			CreatedAt:  e.CreatedAt,
		},
	}
	if e.Transactions != "" {
		_ = json.Unmarshal([]byte(e.Transactions), &out.Transactions)
	}
	return out
}

func toPropertyWithTransactionsModels(entities []*PropertyWithTransactionsEntity) []*model.PropertyWithTransactions {
	if entities == nil {
		return nil
	}
	models := make([]*model.PropertyWithTransactions, len(entities))
	for i, e := range entities {
		models[i] = toPropertyWithTransactionsModel(e)
	}
	return models
}
