package service

import (
	"context"
	"fmt"

	"go-pos-ws/internal/events"
	"go-pos-ws/internal/model"
	"go-pos-ws/internal/repository"
	"go-pos-ws/pkg/money"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type AdjustMode string

const (
	AdjustAdd    AdjustMode = "add"
	AdjustRemove AdjustMode = "remove"
	AdjustSet    AdjustMode = "set"
)

type AdjustStockRequest struct {
	Mode     AdjustMode       `json:"mode" validate:"required,oneof=add remove set"`
	Quantity int              `json:"quantity" validate:"min=0"`
	UnitCost *decimal.Decimal `json:"unit_cost"`
	Note     string           `json:"note" validate:"max=255"`
}

type StockAdjustment struct {
	Product *model.Product     `json:"product"`
	Change  *model.StockChange `json:"change"`
}

// Ledger is the only writer of product stock. Every write appends exactly one
// StockChange row in the same unit of work.
type Ledger interface {
	Apply(tx repository.Tx, product *model.Product, delta int, op model.Operator, note string, unitCost *decimal.Decimal, txnID *uuid.UUID) (*model.StockChange, error)
	AdjustStock(ctx context.Context, op model.Operator, productID uuid.UUID, req AdjustStockRequest) (*StockAdjustment, error)
	History(ctx context.Context, productID uuid.UUID, limit int) ([]model.StockChange, error)
	// Log lists the latest ledger rows across all products, newest first.
	Log(ctx context.Context, limit int) ([]model.StockChange, error)
}

type ledger struct {
	uow     repository.UnitOfWork
	changes repository.StockChangeRepository
	bus     *events.Bus
}

func NewLedger(uow repository.UnitOfWork, changes repository.StockChangeRepository, bus *events.Bus) Ledger {
	return &ledger{uow: uow, changes: changes, bus: bus}
}

// Apply moves stock by delta, flooring at zero, and records the delta that was
// actually applied. Service products keep zero stock and get a zero-delta row.
func (l *ledger) Apply(tx repository.Tx, product *model.Product, delta int, op model.Operator, note string, unitCost *decimal.Decimal, txnID *uuid.UUID) (*model.StockChange, error) {
	before := product.Stock
	after := before
	if product.TracksStock() {
		after = before + delta
		if after < 0 {
			after = 0
		}
		if after != before {
			if err := tx.SaveStock(product.ID, after, op.ID.String()); err != nil {
				return nil, errors.Wrapf(err, "save stock for product %s", product.ID)
			}
		}
	}

	change := &model.StockChange{
		ProductID:     product.ID,
		OperatorID:    op.ID,
		Delta:         after - before,
		StockBefore:   before,
		StockAfter:    after,
		UnitCost:      unitCost,
		Note:          note,
		TransactionID: txnID,
	}
	if err := tx.CreateStockChange(change); err != nil {
		return nil, errors.Wrapf(err, "append stock change for product %s", product.ID)
	}
	product.Stock = after
	return change, nil
}

func (l *ledger) AdjustStock(ctx context.Context, op model.Operator, productID uuid.UUID, req AdjustStockRequest) (*StockAdjustment, error) {
	if !op.Can(model.PrivStockAdjust) {
		return nil, errors.Wrapf(ErrForbidden, "requires '%s'", model.PrivStockAdjust)
	}
	if err := validateAdjustment(req); err != nil {
		return nil, err
	}
	note := req.Note
	if note == "" {
		note = fmt.Sprintf("Stock: %s", req.Mode)
	}

	var result StockAdjustment
	err := l.uow.Within(ctx, func(tx repository.Tx) error {
		product, err := tx.LockProduct(productID)
		if errors.Is(err, repository.ErrNotFound) {
			return errors.Wrapf(ErrProductNotFound, "product %s", productID)
		}
		if err != nil {
			return err
		}
		if !product.TracksStock() {
			return errors.Wrapf(ErrInvalidArgument, "%s is a service and has no stock", product.Name)
		}

		var delta int
		var cost *decimal.Decimal
		switch req.Mode {
		case AdjustAdd:
			delta = req.Quantity
			cost = req.UnitCost
		case AdjustRemove:
			delta = -req.Quantity
		case AdjustSet:
			delta = req.Quantity - product.Stock
		}

		change, err := l.Apply(tx, product, delta, op, note, cost, nil)
		if err != nil {
			return err
		}
		result = StockAdjustment{Product: product, Change: change}
		return nil
	})
	if err != nil {
		return nil, storeFailure("adjust stock", err)
	}

	zap.L().Info("stock adjusted",
		zap.String("product_id", productID.String()),
		zap.String("mode", string(req.Mode)),
		zap.Int("delta", result.Change.Delta),
		zap.Int("stock", result.Product.Stock),
		zap.String("operator", op.Name))

	if l.bus != nil {
		l.bus.PublishStockChanged(events.StockChanged{
			ProductID:    result.Product.ID,
			ProductName:  result.Product.Name,
			Delta:        result.Change.Delta,
			Stock:        result.Product.Stock,
			Note:         note,
			OperatorName: op.Name,
		})
	}
	return &result, nil
}

func validateAdjustment(req AdjustStockRequest) error {
	switch req.Mode {
	case AdjustAdd, AdjustRemove:
		if req.Quantity < 1 {
			return ErrInvalidQuantity
		}
	case AdjustSet:
		if req.Quantity < 0 {
			return errors.Wrap(ErrInvalidArgument, "stock cannot be set below zero")
		}
	default:
		return errors.Wrapf(ErrInvalidArgument, "unknown adjustment mode %q", req.Mode)
	}

	if req.Mode == AdjustAdd {
		if req.UnitCost == nil || !req.UnitCost.IsPositive() {
			return errors.Wrap(ErrInvalidArgument, "unit cost must be greater than zero when adding stock")
		}
		if !money.HasAtMostCents(*req.UnitCost) {
			return errors.Wrap(ErrInvalidArgument, "unit cost has more than 2 decimal places")
		}
	}
	if len([]rune(req.Note)) > 255 {
		return errors.Wrap(ErrInvalidArgument, "note exceeds 255 characters")
	}
	return nil
}

func (l *ledger) History(ctx context.Context, productID uuid.UUID, limit int) ([]model.StockChange, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	changes, err := l.changes.FindByProduct(ctx, productID, limit)
	if err != nil {
		return nil, storeFailure("stock history", err)
	}
	return changes, nil
}

func (l *ledger) Log(ctx context.Context, limit int) ([]model.StockChange, error) {
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	changes, err := l.changes.FindRecent(ctx, limit)
	if err != nil {
		return nil, storeFailure("stock log", err)
	}
	return changes, nil
}
