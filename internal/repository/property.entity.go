package repository

import (
	"encoding/json"
	"time"

	"github.com/tewereus/prime-property/internal/model"
)

type PropertyEntity struct {
	ID          int64     `db:"id"           gorm:"primaryKey;autoIncrement;column:id"`
	OwnerID     int64     `db:"owner_id"     gorm:"column:owner_id;not null;index"`
	Type        string    `db:"type"         gorm:"column:type;not null;index"`
	Use         string    `db:"use"          gorm:"column:use;not null;index"`
	Title       string    `db:"title"        gorm:"column:title;not null"`
	Description string    `db:"description"  gorm:"column:description"`
	Attributes  string    `db:"attributes"   gorm:"column:attributes"` // JSON, keys per type
	PriceCents  int64     `db:"price_cents"  gorm:"column:price_cents;not null"`
	Latitude    float64   `db:"latitude"     gorm:"column:latitude"`
	Longitude   float64   `db:"longitude"    gorm:"column:longitude"`
	Images      string    `db:"images"       gorm:"column:images"` // JSON array of references
	State       string    `db:"state"        gorm:"column:state;not null;index"`
	ViewCount   int64     `db:"view_count"   gorm:"column:view_count;not null;default:0"`
	CreatedAt   time.Time `db:"created_at"   gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `db:"updated_at"   gorm:"column:updated_at;autoUpdateTime"`
}

func (PropertyEntity) TableName() string {
	return "properties"
}

func toPropertyEntity(p *model.Property) *PropertyEntity {
	if p == nil {
		return nil
	}
	attrs, _ := json.Marshal(p.Attributes)
	images, _ := json.Marshal(p.Images)
	return &PropertyEntity{
		ID:          p.ID,
		OwnerID:     p.OwnerID,
		Type:        string(p.Type),
		Use:         string(p.Use),
		Title:       p.Title,
		Description: p.Description,
		Attributes:  string(attrs),
		PriceCents:  p.PriceCents,
		Latitude:    p.Latitude,
		Longitude:   p.Longitude,
		Images:      string(images),
		State:       string(p.State),
		ViewCount:   p.ViewCount,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func toPropertyModel(e *PropertyEntity) *model.Property {
	if e == nil {
		return nil
	}
	var attrs map[string]any
	if e.Attributes != "" {
		_ = json.Unmarshal([]byte(e.Attributes), &attrs)
	}
	var images []string
	if e.Images != "" {
		_ = json.Unmarshal([]byte(e.Images), &images)
	}
	return &model.Property{
		ID:          e.ID,
		OwnerID:     e.OwnerID,
		Type:        model.PropertyType(e.Type),
		Use:         model.ListingUse(e.Use),
		Title:       e.Title,
		Description: e.Description,
		Attributes:  attrs,
		PriceCents:  e.PriceCents,
		Latitude:    e.Latitude,
		Longitude:   e.Longitude,
		Images:      images,
		State:       model.PropertyState(e.State),
		ViewCount:   e.ViewCount,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

func toPropertyModels(entities []*PropertyEntity) []*model.Property {
	if entities == nil {
		return nil
	}
	models := make([]*model.Property, len(entities))
	for i, e := range entities {
		models[i] = toPropertyModel(e)
	}
	return models
}
