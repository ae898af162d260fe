package service

import (
	"bytes"
	"context"
	"sort"

	"go-pos-ws/internal/model"
	"go-pos-ws/internal/repository"
	"go-pos-ws/pkg/money"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// ProductLookup reads the live catalog row. The cart never caches stock or
// prices; every check re-reads.
type ProductLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
}

type CartLine struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

// Cart is an operator's in-progress sale. It is not safe for concurrent use;
// CartService serializes access per operator.
type Cart struct {
	lookup ProductLookup
	lines  map[uuid.UUID]int
}

func NewCart(lookup ProductLookup) *Cart {
	return &Cart{lookup: lookup, lines: make(map[uuid.UUID]int)}
}

func (c *Cart) product(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	p, err := c.lookup.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errors.Wrapf(ErrProductNotFound, "product %s", id)
	}
	if err != nil {
		return nil, storeFailure("load product", err)
	}
	return p, nil
}

// Add puts one more unit of the product in the cart and returns the new line quantity.
func (c *Cart) Add(ctx context.Context, id uuid.UUID) (int, error) {
	p, err := c.product(ctx, id)
	if err != nil {
		return 0, err
	}
	next := c.lines[id] + 1
	if p.TracksStock() && next > p.Stock {
		return c.lines[id], &StockError{
			ProductID:   p.ID,
			ProductName: p.Name,
			Requested:   next,
			Available:   p.Stock,
			OutOfStock:  true,
		}
	}
	c.lines[id] = next
	return next, nil
}

func (c *Cart) SetQuantity(ctx context.Context, id uuid.UUID, qty int) error {
	if qty < 1 {
		return ErrInvalidQuantity
	}
	p, err := c.product(ctx, id)
	if err != nil {
		return err
	}
	if p.TracksStock() && qty > p.Stock {
		return &StockError{
			ProductID:   p.ID,
			ProductName: p.Name,
			Requested:   qty,
			Available:   p.Stock,
			OutOfStock:  p.Stock == 0,
		}
	}
	c.lines[id] = qty
	return nil
}

func (c *Cart) Remove(id uuid.UUID) {
	delete(c.lines, id)
}

func (c *Cart) Clear() {
	c.lines = make(map[uuid.UUID]int)
}

func (c *Cart) Len() int {
	return len(c.lines)
}

func (c *Cart) Quantity(id uuid.UUID) int {
	return c.lines[id]
}

// Lines returns the cart contents ordered by product id, which is also the
// order checkout locks rows in.
func (c *Cart) Lines() []CartLine {
	lines := make([]CartLine, 0, len(c.lines))
	for id, qty := range c.lines {
		lines = append(lines, CartLine{ProductID: id, Quantity: qty})
	}
	sort.Slice(lines, func(i, j int) bool {
		return bytes.Compare(lines[i].ProductID[:], lines[j].ProductID[:]) < 0
	})
	return lines
}

// GrossTotal sums current price × quantity. Lines whose product has vanished
// are skipped here; checkout rejects them.
func (c *Cart) GrossTotal(ctx context.Context) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, line := range c.Lines() {
		p, err := c.product(ctx, line.ProductID)
		if errors.Is(err, ErrProductNotFound) {
			continue
		}
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(money.LineTotal(p.Price, line.Quantity))
	}
	return total, nil
}

type CartPreviewLine struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	IsService bool            `json:"is_service"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
	Stock     int             `json:"stock"`
	Missing   bool            `json:"missing,omitempty"`
}

type CartPreview struct {
	Lines []CartPreviewLine `json:"lines"`
	money.Breakdown
	TaxRate decimal.Decimal `json:"tax_rate"`
}

// Preview prices the cart for display with the same arithmetic checkout uses.
func (c *Cart) Preview(ctx context.Context, rate decimal.Decimal, pricesIncludeTax bool) (*CartPreview, error) {
	preview := &CartPreview{Lines: []CartPreviewLine{}, TaxRate: rate}
	gross := decimal.Zero
	for _, line := range c.Lines() {
		p, err := c.product(ctx, line.ProductID)
		if errors.Is(err, ErrProductNotFound) {
			preview.Lines = append(preview.Lines, CartPreviewLine{ProductID: line.ProductID, Quantity: line.Quantity, Missing: true})
			continue
		}
		if err != nil {
			return nil, err
		}
		lineTotal := money.LineTotal(p.Price, line.Quantity)
		gross = gross.Add(lineTotal)
		preview.Lines = append(preview.Lines, CartPreviewLine{
			ProductID: p.ID,
			Name:      p.Name,
			IsService: p.IsService,
			Quantity:  line.Quantity,
			UnitPrice: p.Price,
			LineTotal: money.Round(lineTotal),
			Stock:     p.Stock,
		})
	}
	breakdown, err := money.VATBreakdown(gross, rate, pricesIncludeTax)
	if err != nil {
		return nil, err
	}
	preview.Breakdown = breakdown
	return preview, nil
}
