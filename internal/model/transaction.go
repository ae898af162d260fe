package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentCash    PaymentMethod = "cash"
	PaymentCard    PaymentMethod = "card"
	PaymentCheck   PaymentMethod = "check"
	PaymentEWallet PaymentMethod = "ewallet"
)

// ParsePaymentMethod normalizes user input; "gcash" is the legacy name of the e-wallet mode.
func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch PaymentMethod(s) {
	case PaymentCash, PaymentCard, PaymentCheck, PaymentEWallet:
		return PaymentMethod(s), true
	case "gcash":
		return PaymentEWallet, true
	}
	return "", false
}

// Transaction is a committed sale. It is written once, together with its items
// and stock changes, and never updated afterwards.
type Transaction struct {
	LedgerModel
	Number           int64             `gorm:"autoIncrement;uniqueIndex" json:"number"`
	OperatorID       uuid.UUID         `gorm:"type:uuid;not null;index" json:"operator_id"`
	OperatorName     string            `gorm:"type:varchar(255)" json:"operator_name"`
	PaymentMethod    PaymentMethod     `gorm:"type:varchar(20);not null;index" json:"payment_method"`
	CustomerName     *string           `gorm:"type:varchar(255)" json:"customer_name,omitempty"`
	CustomerPhone    *string           `gorm:"type:varchar(50)" json:"customer_phone,omitempty"`
	CashReceived     *decimal.Decimal  `gorm:"type:decimal(12,2)" json:"cash_received,omitempty"`
	ChangeAmount     *decimal.Decimal  `gorm:"type:decimal(12,2)" json:"change_amount,omitempty"`
	PaymentReference *string           `gorm:"type:varchar(255)" json:"payment_reference,omitempty"`
	TaxRate          decimal.Decimal   `gorm:"type:decimal(6,4);not null" json:"tax_rate"`
	TaxableBase      decimal.Decimal   `gorm:"type:decimal(12,2);not null" json:"taxable_base"`
	TaxAmount        decimal.Decimal   `gorm:"type:decimal(12,2);not null" json:"tax_amount"`
	Total            decimal.Decimal   `gorm:"type:decimal(12,2);not null" json:"total"`
	Items            []TransactionItem `gorm:"foreignKey:TransactionID" json:"items,omitempty"`
}

// TransactionItem snapshots the price and cost at sale time; later catalog
// edits never touch it.
type TransactionItem struct {
	LedgerModel
	TransactionID uuid.UUID       `gorm:"type:uuid;not null;index" json:"transaction_id"`
	ProductID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"product_id"`
	Product       *Product        `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	ProductName   string          `gorm:"type:varchar(200)" json:"product_name"`
	IsService     bool            `gorm:"not null;default:false" json:"is_service"`
	Quantity      int             `gorm:"not null" json:"quantity"`
	UnitPrice     decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"unit_price"`
	UnitCost      decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"unit_cost"`
}

func (i TransactionItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func (i TransactionItem) LineCost() decimal.Decimal {
	return i.UnitCost.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
