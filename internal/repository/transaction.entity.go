package repository

import (
	"time"

	"github.com/tewereus/prime-property/internal/model"
)

type TransactionEntity struct {
	ID          int64      `db:"id"            gorm:"primaryKey;autoIncrement;column:id"`
	PropertyID  int64      `db:"property_id"   gorm:"column:property_id;not null;index"`
	Property    *PropertyEntity `json:"-"      gorm:"foreignKey:PropertyID;references:ID;constraint:OnDelete:CASCADE"`
	Method      string     `db:"method"        gorm:"column:method;not null"`
	AmountCents int64      `db:"amount_cents"  gorm:"column:amount_cents;not null"`
	Currency    string     `db:"currency"      gorm:"column:currency;not null"`
	Status      string     `db:"status"        gorm:"column:status;not null;index"`
	ProviderRef string     `db:"provider_ref"  gorm:"column:provider_ref;uniqueIndex"`
	CheckoutURL string     `db:"checkout_url"  gorm:"column:checkout_url"`
	CreatedAt   time.Time  `db:"created_at"    gorm:"column:created_at;autoCreateTime"`
	ResolvedAt  *time.Time `db:"resolved_at"   gorm:"column:resolved_at"` // nullable
}

func (TransactionEntity) TableName() string {
	return "payment_transactions"
}

func toTransactionEntity(t *model.PaymentTransaction) *TransactionEntity {
	if t == nil {
		return nil
	}
	return &TransactionEntity{
		ID:          t.ID,
		PropertyID:  t.PropertyID,
		Method:      string(t.Method),
		AmountCents: t.AmountCents,
		Currency:    t.Currency,
		Status:      string(t.Status),
		ProviderRef: t.ProviderRef,
		CheckoutURL: t.CheckoutURL,
		CreatedAt:   t.CreatedAt,
		ResolvedAt:  t.ResolvedAt,
	}
}

func toTransactionModel(e *TransactionEntity) *model.PaymentTransaction {
	if e == nil {
		return nil
	}
	return &model.PaymentTransaction{
		ID:          e.ID,
		PropertyID:  e.PropertyID,
		Method:      model.PaymentMethod(e.Method),
		AmountCents: e.AmountCents,
		Currency:    e.Currency,
		Status:      model.TransactionStatus(e.Status),
		ProviderRef: e.ProviderRef,
		CheckoutURL: e.CheckoutURL,
		CreatedAt:   e.CreatedAt,
		ResolvedAt:  e.ResolvedAt,
	}
}

func toTransactionModels(entities []*TransactionEntity) []*model.PaymentTransaction {
	if entities == nil {
		return nil
	}
	models := make([]*model.PaymentTransaction, len(entities))
	for i, e := range entities {
		models[i] = toTransactionModel(e)
	}
	return models
}
