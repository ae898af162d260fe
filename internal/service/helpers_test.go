package service

import (
	"context"
	"testing"

	"go-pos-ws/internal/events"
	"go-pos-ws/internal/model"
	"go-pos-ws/internal/repository"
	"go-pos-ws/internal/repository/memory"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func strPtr(s string) *string {
	return &s
}

var (
	cashier = model.Operator{ID: uuid.New(), Name: "Cashier One", Privileges: []string{model.PrivSaleCreate, model.PrivTransactionView}}
	owner   = model.Operator{ID: uuid.New(), Name: "Owner", Privileges: []string{model.PrivSaleCreate, model.PrivStockAdjust, model.PrivProductCreate}}
)

type testEnv struct {
	store    *memory.Store
	bus      *events.Bus
	ledger   Ledger
	checkout CheckoutService
}

func newTestEnv(t *testing.T, cfg CheckoutConfig) *testEnv {
	t.Helper()
	store := memory.New()
	bus := events.New()
	ledger := NewLedger(store, store.StockChanges(), bus)
	return &testEnv{
		store:    store,
		bus:      bus,
		ledger:   ledger,
		checkout: NewCheckoutService(store, ledger, bus, cfg),
	}
}

// seedProduct writes a product row directly, bypassing the ledger, as a fixture.
func (e *testEnv) seedProduct(t *testing.T, name, price string, stock int, isService bool) model.Product {
	t.Helper()
	p := model.Product{
		Name:      name,
		Price:     dec(price),
		CostPrice: dec(price).Div(decimal.NewFromInt(2)).Round(2),
		Stock:     stock,
		IsService: isService,
	}
	if err := e.store.Within(context.Background(), func(tx repository.Tx) error {
		return tx.CreateProduct(&p)
	}); err != nil {
		t.Fatalf("seed product %s: %v", name, err)
	}
	return p
}

// editProduct writes catalog fields directly, as a fixture.
func (e *testEnv) editProduct(t *testing.T, p model.Product) {
	t.Helper()
	if err := e.store.Within(context.Background(), func(tx repository.Tx) error {
		return tx.UpdateProduct(&p)
	}); err != nil {
		t.Fatalf("edit product %s: %v", p.Name, err)
	}
}

func (e *testEnv) stock(t *testing.T, id uuid.UUID) int {
	t.Helper()
	p, err := e.store.Products().FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("find product: %v", err)
	}
	return p.Stock
}

func (e *testEnv) cart(t *testing.T, lines map[uuid.UUID]int) *Cart {
	t.Helper()
	c := NewCart(e.store.Products())
	for id, qty := range lines {
		if err := c.SetQuantity(context.Background(), id, qty); err != nil {
			t.Fatalf("set quantity: %v", err)
		}
	}
	return c
}

func (e *testEnv) transactionCount(t *testing.T) int {
	t.Helper()
	txns, err := e.store.Transactions().FindAll(context.Background(), repository.TransactionFilter{})
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	return len(txns)
}

func (e *testEnv) history(t *testing.T, id uuid.UUID) []model.StockChange {
	t.Helper()
	changes, err := e.store.StockChanges().FindByProduct(context.Background(), id, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	return changes
}

// failingUnitOfWork injects a store error at a chosen Tx call.
type failingUnitOfWork struct {
	repository.UnitOfWork
	failOn string
}

func (f failingUnitOfWork) Within(ctx context.Context, fn func(tx repository.Tx) error) error {
	return f.UnitOfWork.Within(ctx, func(tx repository.Tx) error {
		return fn(failingTx{Tx: tx, failOn: f.failOn})
	})
}

type failingTx struct {
	repository.Tx
	failOn string
}

var errInjected = &injectedError{}

type injectedError struct{}

func (*injectedError) Error() string { return "connection reset by peer" }

func (f failingTx) CreateTransaction(txn *model.Transaction) error {
	if f.failOn == "CreateTransaction" {
		return errInjected
	}
	return f.Tx.CreateTransaction(txn)
}

func (f failingTx) CreateStockChange(change *model.StockChange) error {
	if f.failOn == "CreateStockChange" {
		return errInjected
	}
	return f.Tx.CreateStockChange(change)
}

func (f failingTx) SaveStock(id uuid.UUID, stock int, updatedBy string) error {
	if f.failOn == "SaveStock" {
		return errInjected
	}
	return f.Tx.SaveStock(id, stock, updatedBy)
}
