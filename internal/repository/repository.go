package repository

import (
	"context"
	"errors"
	"time"

	"go-pos-ws/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ErrNotFound is returned by every store when the requested row does not exist.
var ErrNotFound = errors.New("record not found")

type ProductRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	FindBySKU(ctx context.Context, sku string) (*model.Product, error)
	FindAll(ctx context.Context) ([]model.Product, error)
}

type CategoryRepository interface {
	FindAll(ctx context.Context) ([]model.Category, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Category, error)
	FindByName(ctx context.Context, name string) (*model.Category, error)
	Create(ctx context.Context, category *model.Category) error
	Update(ctx context.Context, category *model.Category) error
	// Delete removes the category and detaches every product filed under it.
	Delete(ctx context.Context, id uuid.UUID) error
}

// TransactionFilter narrows transaction reads. Zero values mean "no bound".
type TransactionFilter struct {
	From          time.Time
	To            time.Time
	PaymentMethod model.PaymentMethod
	Limit         int
}

// TransactionSummary is the count and summed total of a set of sales.
type TransactionSummary struct {
	Count int64
	Total decimal.Decimal
}

type TransactionRepository interface {
	FindAll(ctx context.Context, filter TransactionFilter) ([]model.Transaction, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Transaction, error)
	Summarize(ctx context.Context, from time.Time) (TransactionSummary, error)
	// CountCustomers counts distinct customer names, ignoring case and
	// surrounding spaces.
	CountCustomers(ctx context.Context) (int64, error)
}

type StockChangeRepository interface {
	FindByProduct(ctx context.Context, productID uuid.UUID, limit int) ([]model.StockChange, error)
	FindInRange(ctx context.Context, from, to time.Time) ([]model.StockChange, error)
	FindRecent(ctx context.Context, limit int) ([]model.StockChange, error)
}

// UnitOfWork runs fn inside one all-or-nothing store transaction. A nil return
// from fn commits; anything else rolls every write back.
type UnitOfWork interface {
	Within(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the write side available inside a unit of work.
type Tx interface {
	// LockProduct reads the product and holds its row until the unit of work ends.
	LockProduct(id uuid.UUID) (*model.Product, error)
	SaveStock(id uuid.UUID, stock int, updatedBy string) error
	CreateProduct(product *model.Product) error
	// UpdateProduct writes catalog fields only. Stock belongs to the ledger.
	UpdateProduct(product *model.Product) error
	DeleteProduct(id uuid.UUID, deletedBy string) error
	// CreateTransaction persists the sale and its items and fills in Number.
	CreateTransaction(txn *model.Transaction) error
	CreateStockChange(change *model.StockChange) error
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
