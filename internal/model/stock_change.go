package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockChange is one append-only ledger row. Delta is the change actually
// applied to the stored stock, so StockBefore + Delta == StockAfter.
type StockChange struct {
	LedgerModel
	ProductID     uuid.UUID        `gorm:"type:uuid;not null;index" json:"product_id"`
	Product       *Product         `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	OperatorID    uuid.UUID        `gorm:"type:uuid;not null;index" json:"operator_id"`
	Delta         int              `gorm:"not null" json:"delta"`
	StockBefore   int              `gorm:"not null" json:"stock_before"`
	StockAfter    int              `gorm:"not null" json:"stock_after"`
	UnitCost      *decimal.Decimal `gorm:"type:decimal(10,2)" json:"unit_cost,omitempty"`
	Note          string           `gorm:"type:varchar(255)" json:"note"`
	TransactionID *uuid.UUID       `gorm:"type:uuid;index" json:"transaction_id,omitempty"`
}
