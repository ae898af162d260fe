package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"go-pos-ws/internal/model"
	"go-pos-ws/internal/repository"
	"go-pos-ws/pkg/money"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// LowStockThreshold marks a stocked product as running low.
const LowStockThreshold = 5

const topProductsLimit = 15

// salesWindowDays is the trailing window behind the dashboard sales figures.
const salesWindowDays = 30

// StockMovementData untuk chart data
type StockMovementData struct {
	Date     string `json:"date"`
	Inbound  int    `json:"inbound"`
	Outbound int    `json:"outbound"`
}

type DashboardStats struct {
	TotalProducts      int64           `json:"total_products"`
	LowStockCount      int64           `json:"low_stock_count"`
	OutOfStockCount    int64           `json:"out_of_stock_count"`
	InventoryValuation decimal.Decimal `json:"inventory_valuation"`
	Sales30Days        decimal.Decimal `json:"sales_30_days"`
	Orders30Days       int64           `json:"orders_30_days"`
	Customers          int64           `json:"customers"`
}

type DailySales struct {
	Date         string          `json:"date"`
	Transactions int             `json:"transactions"`
	Sales        decimal.Decimal `json:"sales"`
	Cost         decimal.Decimal `json:"cost"`
	Profit       decimal.Decimal `json:"profit"`
}

type ProductSales struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Sales     decimal.Decimal `json:"sales"`
	Cost      decimal.Decimal `json:"cost"`
	Profit    decimal.Decimal `json:"profit"`
}

// CustomerSales groups sales by the free-text customer name typed at the till.
type CustomerSales struct {
	Name         string          `json:"name"`
	Transactions int             `json:"transactions"`
	Total        decimal.Decimal `json:"total"`
}

type SalesReport struct {
	From         time.Time       `json:"from"`
	To           time.Time       `json:"to"`
	Transactions int             `json:"transactions"`
	GrossSales   decimal.Decimal `json:"gross_sales"`
	TaxCollected decimal.Decimal `json:"tax_collected"`
	Cost         decimal.Decimal `json:"cost"`
	Profit       decimal.Decimal `json:"profit"`
	Daily        []DailySales    `json:"daily"`
	TopProducts  []ProductSales  `json:"top_products"`
	Customers    []CustomerSales `json:"customers"`
	ByPayment    map[string]int  `json:"by_payment_method"`
}

type ReportService interface {
	GetDashboardStats(ctx context.Context) (*DashboardStats, error)
	GetStockMovement(ctx context.Context, days int) ([]StockMovementData, error)
	GetSalesReport(ctx context.Context, from, to time.Time) (*SalesReport, error)
	ListTransactions(ctx context.Context, filter repository.TransactionFilter) ([]model.Transaction, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (*model.Transaction, error)
}

var ErrTransactionNotFound = errors.New("transaction not found")

type reportService struct {
	products     repository.ProductRepository
	transactions repository.TransactionRepository
	changes      repository.StockChangeRepository
	now          func() time.Time
}

func NewReportService(products repository.ProductRepository, transactions repository.TransactionRepository, changes repository.StockChangeRepository) ReportService {
	return &reportService{products: products, transactions: transactions, changes: changes, now: time.Now}
}

func (s *reportService) GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	products, err := s.products.FindAll(ctx)
	if err != nil {
		return nil, storeFailure("dashboard stats", err)
	}
	stats := &DashboardStats{InventoryValuation: decimal.Zero}
	for _, p := range products {
		stats.TotalProducts++
		if !p.TracksStock() {
			continue
		}
		if p.Stock == 0 {
			stats.OutOfStockCount++
		}
		if p.Stock <= LowStockThreshold {
			stats.LowStockCount++
		}
		stats.InventoryValuation = stats.InventoryValuation.Add(money.LineTotal(p.CostPrice, p.Stock))
	}
	stats.InventoryValuation = money.Round(stats.InventoryValuation)

	summary, err := s.transactions.Summarize(ctx, startOfDay(s.now()).AddDate(0, 0, -salesWindowDays))
	if err != nil {
		return nil, storeFailure("dashboard sales", err)
	}
	stats.Sales30Days = money.Round(summary.Total)
	stats.Orders30Days = summary.Count
	if stats.Customers, err = s.transactions.CountCustomers(ctx); err != nil {
		return nil, storeFailure("dashboard customers", err)
	}
	return stats, nil
}

// GetStockMovement buckets ledger deltas per day: positive into Inbound, negative into Outbound.
func (s *reportService) GetStockMovement(ctx context.Context, days int) ([]StockMovementData, error) {
	if days < 1 {
		days = 7
	}
	end := startOfDay(s.now()).AddDate(0, 0, 1)
	start := end.AddDate(0, 0, -days)

	changes, err := s.changes.FindInRange(ctx, start, end)
	if err != nil {
		return nil, storeFailure("stock movement", err)
	}

	results := make([]StockMovementData, 0, days)
	index := make(map[string]int, days)
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		key := d.Format("2006-01-02")
		index[key] = len(results)
		results = append(results, StockMovementData{Date: key})
	}
	for _, c := range changes {
		i, ok := index[c.CreatedAt.In(start.Location()).Format("2006-01-02")]
		if !ok {
			continue
		}
		if c.Delta > 0 {
			results[i].Inbound += c.Delta
		} else {
			results[i].Outbound -= c.Delta
		}
	}
	return results, nil
}

func (s *reportService) GetSalesReport(ctx context.Context, from, to time.Time) (*SalesReport, error) {
	if to.Before(from) {
		return nil, errors.Wrap(ErrInvalidArgument, "report end date is before its start date")
	}
	// whole days, end inclusive
	start := startOfDay(from)
	end := startOfDay(to).AddDate(0, 0, 1)

	txns, err := s.transactions.FindAll(ctx, repository.TransactionFilter{From: start, To: end})
	if err != nil {
		return nil, storeFailure("sales report", err)
	}

	report := &SalesReport{
		From:         start,
		To:           end,
		GrossSales:   decimal.Zero,
		TaxCollected: decimal.Zero,
		Cost:         decimal.Zero,
		Daily:        []DailySales{},
		TopProducts:  []ProductSales{},
		Customers:    []CustomerSales{},
		ByPayment:    map[string]int{},
	}
	daily := map[string]*DailySales{}
	byProduct := map[uuid.UUID]*ProductSales{}
	byCustomer := map[string]*CustomerSales{}

	for _, t := range txns {
		report.Transactions++
		report.GrossSales = report.GrossSales.Add(t.Total)
		report.TaxCollected = report.TaxCollected.Add(t.TaxAmount)
		report.ByPayment[string(t.PaymentMethod)]++

		day := t.CreatedAt.In(start.Location()).Format("2006-01-02")
		d, ok := daily[day]
		if !ok {
			d = &DailySales{Date: day, Sales: decimal.Zero, Cost: decimal.Zero}
			daily[day] = d
		}
		d.Transactions++
		d.Sales = d.Sales.Add(t.Total)

		for _, item := range t.Items {
			cost := item.LineCost()
			report.Cost = report.Cost.Add(cost)
			d.Cost = d.Cost.Add(cost)

			ps, ok := byProduct[item.ProductID]
			if !ok {
				ps = &ProductSales{ProductID: item.ProductID, Name: item.ProductName, Sales: decimal.Zero, Cost: decimal.Zero}
				byProduct[item.ProductID] = ps
			}
			ps.Quantity += item.Quantity
			ps.Sales = ps.Sales.Add(item.LineTotal())
			ps.Cost = ps.Cost.Add(cost)
		}

		if t.CustomerName != nil {
			name := strings.TrimSpace(*t.CustomerName)
			key := strings.ToLower(name)
			cs, ok := byCustomer[key]
			if !ok {
				cs = &CustomerSales{Name: name, Total: decimal.Zero}
				byCustomer[key] = cs
			}
			cs.Transactions++
			cs.Total = cs.Total.Add(t.Total)
		}
	}

	report.Profit = money.Round(report.GrossSales.Sub(report.Cost))
	report.Cost = money.Round(report.Cost)

	for _, d := range daily {
		d.Cost = money.Round(d.Cost)
		d.Profit = d.Sales.Sub(d.Cost)
		report.Daily = append(report.Daily, *d)
	}
	sort.Slice(report.Daily, func(i, j int) bool { return report.Daily[i].Date < report.Daily[j].Date })

	for _, ps := range byProduct {
		ps.Sales = money.Round(ps.Sales)
		ps.Cost = money.Round(ps.Cost)
		ps.Profit = ps.Sales.Sub(ps.Cost)
		report.TopProducts = append(report.TopProducts, *ps)
	}
	sort.Slice(report.TopProducts, func(i, j int) bool {
		a, b := report.TopProducts[i], report.TopProducts[j]
		if a.Quantity != b.Quantity {
			return a.Quantity > b.Quantity
		}
		return a.Name < b.Name
	})
	if len(report.TopProducts) > topProductsLimit {
		report.TopProducts = report.TopProducts[:topProductsLimit]
	}

	for _, cs := range byCustomer {
		report.Customers = append(report.Customers, *cs)
	}
	sort.Slice(report.Customers, func(i, j int) bool {
		a, b := report.Customers[i], report.Customers[j]
		if !a.Total.Equal(b.Total) {
			return a.Total.GreaterThan(b.Total)
		}
		return a.Name < b.Name
	})
	return report, nil
}

func (s *reportService) ListTransactions(ctx context.Context, filter repository.TransactionFilter) ([]model.Transaction, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	txns, err := s.transactions.FindAll(ctx, filter)
	if err != nil {
		return nil, storeFailure("list transactions", err)
	}
	return txns, nil
}

func (s *reportService) GetTransaction(ctx context.Context, id uuid.UUID) (*model.Transaction, error) {
	txn, err := s.transactions.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errors.Wrapf(ErrTransactionNotFound, "transaction %s", id)
	}
	if err != nil {
		return nil, storeFailure("get transaction", err)
	}
	return txn, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
