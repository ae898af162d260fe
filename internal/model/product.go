package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a catalog item. Stock is owned by the inventory ledger: nothing
// else writes it, and a service product always carries zero stock.
type Product struct {
	BaseModel
	Name          string          `gorm:"type:varchar(200);not null" json:"name"`
	SKU           *string         `gorm:"type:varchar(100);index" json:"sku,omitempty"`
	CategoryID    *uuid.UUID      `gorm:"type:uuid;index" json:"category_id,omitempty"`
	Category      *Category       `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Price         decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"price"`
	CostPrice     decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"cost_price"`
	Stock         int             `gorm:"not null;default:0" json:"stock"`
	IsService     bool            `gorm:"not null;default:false" json:"is_service"`
	ImageFilename *string         `gorm:"type:varchar(255)" json:"image_filename,omitempty"`
}

// TracksStock reports whether sales and adjustments move this product's stock.
func (p *Product) TracksStock() bool {
	return !p.IsService
}
