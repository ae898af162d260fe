package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go-pos-ws/internal/repository"

	"github.com/google/uuid"
)

func newReports(env *testEnv) ReportService {
	return NewReportService(env.store.Products(), env.store.Transactions(), env.store.StockChanges())
}

func TestDashboardStats(t *testing.T) {
	env := newTestEnv(t, DefaultCheckoutConfig())
	env.seedProduct(t, "Plenty", "10.00", 20, false) // cost 5.00
	env.seedProduct(t, "Low", "4.00", 3, false)      // cost 2.00
	env.seedProduct(t, "Gone", "8.00", 0, false)
	env.seedProduct(t, "Delivery", "50.00", 0, true)

	stats, err := newReports(env).GetDashboardStats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalProducts != 4 || stats.LowStockCount != 2 || stats.OutOfStockCount != 1 {
		t.Fatalf("unexpected counts %+v", stats)
	}
	if !stats.InventoryValuation.Equal(dec("106.00")) {
		t.Fatalf("valuation = %s, want 106.00", stats.InventoryValuation)
	}
	if !stats.Sales30Days.IsZero() || stats.Orders30Days != 0 || stats.Customers != 0 {
		t.Fatalf("sales figures on an empty till %+v", stats)
	}
}

func TestDashboardSalesFigures(t *testing.T) {
	env := newTestEnv(t, DefaultCheckoutConfig())
	p := env.seedProduct(t, "Coffee", "100.00", 50, false)
	ctx := context.Background()

	for _, name := range []*string{strPtr("Ana"), strPtr(" ana"), strPtr("Ben"), nil} {
		req := CheckoutRequest{PaymentMethod: "card", CustomerName: name}
		if _, err := env.checkout.Checkout(ctx, cashier, env.cart(t, map[uuid.UUID]int{p.ID: 1}), req); err != nil {
			t.Fatalf("checkout: %v", err)
		}
	}

	stats, err := newReports(env).GetDashboardStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Orders30Days != 4 || !stats.Sales30Days.Equal(dec("400.00")) {
		t.Fatalf("orders=%d sales=%s", stats.Orders30Days, stats.Sales30Days)
	}
	if stats.Customers != 2 {
		t.Fatalf("customers = %d, want 2", stats.Customers)
	}
}

func TestSalesReportAggregates(t *testing.T) {
	env := newTestEnv(t, DefaultCheckoutConfig())
	a := env.seedProduct(t, "Coffee", "100.00", 50, false) // cost 50.00
	b := env.seedProduct(t, "Cake", "60.00", 50, false)    // cost 30.00
	ctx := context.Background()

	sales := []struct {
		lines map[uuid.UUID]int
		req   CheckoutRequest
	}{
		{map[uuid.UUID]int{a.ID: 2}, CheckoutRequest{PaymentMethod: "cash", CashReceived: decPtr("200"), CustomerName: strPtr("Ana")}},
		{map[uuid.UUID]int{a.ID: 1, b.ID: 3}, CheckoutRequest{PaymentMethod: "card", CustomerName: strPtr("ana ")}},
		{map[uuid.UUID]int{b.ID: 1}, CheckoutRequest{PaymentMethod: "ewallet"}},
	}
	for _, s := range sales {
		if _, err := env.checkout.Checkout(ctx, cashier, env.cart(t, s.lines), s.req); err != nil {
			t.Fatalf("checkout: %v", err)
		}
	}

	today := time.Now()
	report, err := newReports(env).GetSalesReport(ctx, today, today)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if report.Transactions != 3 || !report.GrossSales.Equal(dec("540.00")) {
		t.Fatalf("transactions=%d gross=%s", report.Transactions, report.GrossSales)
	}
	if !report.Cost.Equal(dec("270.00")) || !report.Profit.Equal(dec("270.00")) {
		t.Fatalf("cost=%s profit=%s", report.Cost, report.Profit)
	}
	if report.ByPayment["cash"] != 1 || report.ByPayment["card"] != 1 || report.ByPayment["ewallet"] != 1 {
		t.Fatalf("by payment %v", report.ByPayment)
	}
	if len(report.Daily) != 1 || report.Daily[0].Transactions != 3 {
		t.Fatalf("daily %+v", report.Daily)
	}
	if len(report.TopProducts) != 2 || report.TopProducts[0].Name != "Cake" || report.TopProducts[0].Quantity != 4 {
		t.Fatalf("top products %+v", report.TopProducts)
	}
	if len(report.Customers) != 1 || report.Customers[0].Transactions != 2 || !report.Customers[0].Total.Equal(dec("480.00")) {
		t.Fatalf("customers %+v", report.Customers)
	}

	if _, err := newReports(env).GetSalesReport(ctx, today, today.AddDate(0, 0, -1)); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("reversed range: got %v", err)
	}
}

func TestStockMovementBucketsDeltas(t *testing.T) {
	env := newTestEnv(t, DefaultCheckoutConfig())
	p := env.seedProduct(t, "Rice", "10.00", 5, false)
	ctx := context.Background()

	if _, err := env.ledger.AdjustStock(ctx, owner, p.ID, AdjustStockRequest{Mode: AdjustAdd, Quantity: 20, UnitCost: decPtr("5.00")}); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if _, err := env.checkout.Checkout(ctx, cashier, env.cart(t, map[uuid.UUID]int{p.ID: 7}), CheckoutRequest{PaymentMethod: "card"}); err != nil {
		t.Fatalf("checkout: %v", err)
	}

	movement, err := newReports(env).GetStockMovement(ctx, 0)
	if err != nil {
		t.Fatalf("movement: %v", err)
	}
	if len(movement) != 7 {
		t.Fatalf("expected 7 days, got %d", len(movement))
	}
	last := movement[len(movement)-1]
	if last.Date != time.Now().Format("2006-01-02") || last.Inbound != 20 || last.Outbound != 7 {
		t.Fatalf("unexpected bucket %+v", last)
	}
}

func TestTransactionsLookup(t *testing.T) {
	env := newTestEnv(t, DefaultCheckoutConfig())
	p := env.seedProduct(t, "Rice", "10.00", 5, false)
	ctx := context.Background()
	reports := newReports(env)

	res, err := env.checkout.Checkout(ctx, cashier, env.cart(t, map[uuid.UUID]int{p.ID: 1}), CheckoutRequest{PaymentMethod: "card"})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	got, err := reports.GetTransaction(ctx, res.Transaction.ID)
	if err != nil || got.Number != res.Transaction.Number || len(got.Items) != 1 {
		t.Fatalf("get transaction: %+v %v", got, err)
	}
	if _, err := reports.GetTransaction(ctx, uuid.New()); !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("expected ErrTransactionNotFound, got %v", err)
	}

	list, err := reports.ListTransactions(ctx, repository.TransactionFilter{PaymentMethod: "cash"})
	if err != nil || len(list) != 0 {
		t.Fatalf("cash filter: %v %v", list, err)
	}
	list, err = reports.ListTransactions(ctx, repository.TransactionFilter{})
	if err != nil || len(list) != 1 {
		t.Fatalf("unfiltered: %v %v", list, err)
	}
}
