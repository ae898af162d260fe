package service

import (
	"context"
	"fmt"
	"strings"

	"go-pos-ws/internal/events"
	"go-pos-ws/internal/model"
	"go-pos-ws/internal/repository"
	"go-pos-ws/pkg/money"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CashShortfallPolicy string

const (
	// CashShortfallBlock rejects a cash sale when the tendered amount is short.
	CashShortfallBlock CashShortfallPolicy = "block"
	// CashShortfallWarn records it anyway with negative change and a warning.
	CashShortfallWarn CashShortfallPolicy = "warn"
)

type CheckoutConfig struct {
	TaxRate          decimal.Decimal
	PricesIncludeTax bool
	CashShortfall    CashShortfallPolicy
}

func DefaultCheckoutConfig() CheckoutConfig {
	return CheckoutConfig{
		TaxRate:          money.DefaultVATRate,
		PricesIncludeTax: true,
		CashShortfall:    CashShortfallBlock,
	}
}

const (
	maxCustomerName  = 255
	maxCustomerPhone = 50
)

type CheckoutRequest struct {
	PaymentMethod    string           `json:"payment_method" validate:"required,payment_method"`
	CustomerName     *string          `json:"customer_name" validate:"omitempty,max=255"`
	CustomerPhone    *string          `json:"customer_phone" validate:"omitempty,max=50"`
	CashReceived     *decimal.Decimal `json:"cash_received" validate:"omitempty,money"`
	PaymentReference *string          `json:"payment_reference" validate:"omitempty,max=255"`
}

type CheckoutResult struct {
	Transaction *model.Transaction `json:"transaction"`
	Warnings    []string           `json:"warnings,omitempty"`
}

type CheckoutService interface {
	Checkout(ctx context.Context, op model.Operator, cart *Cart, req CheckoutRequest) (*CheckoutResult, error)
}

type checkoutService struct {
	uow    repository.UnitOfWork
	ledger Ledger
	bus    *events.Bus
	cfg    CheckoutConfig
}

func NewCheckoutService(uow repository.UnitOfWork, ledger Ledger, bus *events.Bus, cfg CheckoutConfig) CheckoutService {
	if cfg.CashShortfall == "" {
		cfg.CashShortfall = CashShortfallBlock
	}
	return &checkoutService{uow: uow, ledger: ledger, bus: bus, cfg: cfg}
}

// payment is the validated, method-specific part of a checkout request.
type payment struct {
	method       model.PaymentMethod
	cashReceived *decimal.Decimal
	reference    *string
}

func (s *checkoutService) Checkout(ctx context.Context, op model.Operator, cart *Cart, req CheckoutRequest) (*CheckoutResult, error) {
	if !op.Can(model.PrivSaleCreate) {
		return nil, errors.Wrapf(ErrForbidden, "requires '%s'", model.PrivSaleCreate)
	}
	pay, err := parsePayment(req)
	if err != nil {
		return nil, err
	}
	customerName, err := optionalText(req.CustomerName, maxCustomerName, "customer name")
	if err != nil {
		return nil, err
	}
	customerPhone, err := optionalText(req.CustomerPhone, maxCustomerPhone, "customer phone")
	if err != nil {
		return nil, err
	}
	if cart == nil || cart.Len() == 0 {
		return nil, ErrEmptyCart
	}
	lines := cart.Lines()

	var (
		txn      *model.Transaction
		warnings []string
		moved    []events.StockChanged
	)
	err = s.uow.Within(ctx, func(tx repository.Tx) error {
		products := make([]*model.Product, len(lines))
		items := make([]model.TransactionItem, len(lines))
		gross := decimal.Zero

		// Lines are sorted by product id, so every checkout takes row locks in
		// the same order.
		for i, line := range lines {
			p, err := tx.LockProduct(line.ProductID)
			if errors.Is(err, repository.ErrNotFound) {
				return errors.Wrapf(ErrProductNotFound, "product %s", line.ProductID)
			}
			if err != nil {
				return err
			}
			if p.TracksStock() && line.Quantity > p.Stock {
				return &StockError{
					ProductID:   p.ID,
					ProductName: p.Name,
					Requested:   line.Quantity,
					Available:   p.Stock,
				}
			}
			products[i] = p
			items[i] = model.TransactionItem{
				ProductID:   p.ID,
				ProductName: p.Name,
				IsService:   p.IsService,
				Quantity:    line.Quantity,
				UnitPrice:   p.Price,
				UnitCost:    p.CostPrice,
			}
			gross = gross.Add(money.LineTotal(p.Price, line.Quantity))
		}

		breakdown, err := money.VATBreakdown(gross, s.cfg.TaxRate, s.cfg.PricesIncludeTax)
		if err != nil {
			return err
		}

		txn = &model.Transaction{
			OperatorID:       op.ID,
			OperatorName:     op.Name,
			PaymentMethod:    pay.method,
			CustomerName:     customerName,
			CustomerPhone:    customerPhone,
			PaymentReference: pay.reference,
			TaxRate:          s.cfg.TaxRate,
			TaxableBase:      breakdown.TaxableBase,
			TaxAmount:        breakdown.TaxAmount,
			Total:            breakdown.Total,
			Items:            items,
		}
		if pay.method == model.PaymentCash {
			received := money.Round(*pay.cashReceived)
			if received.LessThan(breakdown.Total) {
				short := breakdown.Total.Sub(received)
				if s.cfg.CashShortfall != CashShortfallWarn {
					return errors.Wrapf(ErrInsufficientPayment, "cash received %s is %s short of total %s",
						received.StringFixed(2), short.StringFixed(2), breakdown.Total.StringFixed(2))
				}
				warnings = append(warnings, fmt.Sprintf("cash received %s is %s short of total %s",
					received.StringFixed(2), short.StringFixed(2), breakdown.Total.StringFixed(2)))
			}
			change := received.Sub(breakdown.Total)
			txn.CashReceived = &received
			txn.ChangeAmount = &change
		}

		if err := tx.CreateTransaction(txn); err != nil {
			return errors.Wrap(err, "create transaction")
		}

		note := fmt.Sprintf("Sold in transaction #%d", txn.Number)
		for i, p := range products {
			if !p.TracksStock() {
				continue
			}
			cost := p.CostPrice
			change, err := s.ledger.Apply(tx, p, -lines[i].Quantity, op, note, &cost, &txn.ID)
			if err != nil {
				return err
			}
			moved = append(moved, events.StockChanged{
				ProductID:    p.ID,
				ProductName:  p.Name,
				Delta:        change.Delta,
				Stock:        p.Stock,
				Note:         note,
				OperatorName: op.Name,
			})
		}
		return nil
	})
	if err != nil {
		zap.L().Warn("checkout rejected",
			zap.String("operator", op.Name),
			zap.Int("lines", len(lines)),
			zap.Error(err))
		return nil, storeFailure("checkout", err)
	}

	zap.L().Info("sale committed",
		zap.Int64("number", txn.Number),
		zap.String("transaction_id", txn.ID.String()),
		zap.String("operator", op.Name),
		zap.String("payment_method", string(txn.PaymentMethod)),
		zap.String("total", txn.Total.StringFixed(2)),
		zap.Strings("warnings", warnings))

	if s.bus != nil {
		s.bus.PublishSaleCompleted(events.SaleCompleted{Transaction: txn, OperatorName: op.Name})
		for _, e := range moved {
			s.bus.PublishStockChanged(e)
		}
	}
	return &CheckoutResult{Transaction: txn, Warnings: warnings}, nil
}

// parsePayment checks the method-specific fields and drops the ones that do
// not belong to the chosen method.
func parsePayment(req CheckoutRequest) (payment, error) {
	method, ok := model.ParsePaymentMethod(strings.ToLower(strings.TrimSpace(req.PaymentMethod)))
	if !ok {
		return payment{}, errors.Wrapf(ErrInvalidArgument, "unknown payment method %q", req.PaymentMethod)
	}
	pay := payment{method: method}

	switch method {
	case model.PaymentCash:
		if req.CashReceived == nil {
			return payment{}, errors.Wrap(ErrInvalidArgument, "cash received is required for cash payments")
		}
		if req.CashReceived.IsNegative() {
			return payment{}, errors.Wrap(ErrInvalidArgument, "cash received cannot be negative")
		}
		if !money.HasAtMostCents(*req.CashReceived) {
			return payment{}, errors.Wrap(ErrInvalidArgument, "cash received has more than 2 decimal places")
		}
		pay.cashReceived = req.CashReceived
	case model.PaymentEWallet:
		ref, err := optionalText(req.PaymentReference, 255, "payment reference")
		if err != nil {
			return payment{}, err
		}
		pay.reference = ref
	}
	return pay, nil
}

func optionalText(v *string, max int, field string) (*string, error) {
	if v == nil {
		return nil, nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil, nil
	}
	if len([]rune(s)) > max {
		return nil, errors.Wrapf(ErrInvalidArgument, "%s exceeds %d characters", field, max)
	}
	return &s, nil
}
