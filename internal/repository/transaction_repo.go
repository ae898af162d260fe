package repository

import (
	"context"
	"time"

	"go-pos-ws/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type transactionRepo struct {
	db *gorm.DB
}

func NewTransactionRepo(db *gorm.DB) TransactionRepository {
	return &transactionRepo{db}
}

func (r *transactionRepo) FindAll(ctx context.Context, filter TransactionFilter) ([]model.Transaction, error) {
	var transactions []model.Transaction
	q := r.db.WithContext(ctx).Preload("Items")
	if !filter.From.IsZero() {
		q = q.Where("created_at >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		q = q.Where("created_at < ?", filter.To)
	}
	if filter.PaymentMethod != "" {
		q = q.Where("payment_method = ?", filter.PaymentMethod)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	err := q.Order("created_at DESC").Find(&transactions).Error
	return transactions, err
}

func (r *transactionRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Transaction, error) {
	var transaction model.Transaction
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("product_name ASC") }).
		First(&transaction, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &transaction, nil
}

func (r *transactionRepo) Summarize(ctx context.Context, from time.Time) (TransactionSummary, error) {
	var row struct {
		Count int64
		Total decimal.Decimal
	}
	err := r.db.WithContext(ctx).
		Model(&model.Transaction{}).
		Select("COUNT(*) AS count, COALESCE(SUM(total), 0) AS total").
		Where("created_at >= ?", from).
		Scan(&row).Error
	return TransactionSummary{Count: row.Count, Total: row.Total}, err
}

func (r *transactionRepo) CountCustomers(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.Transaction{}).
		Select("COUNT(DISTINCT LOWER(TRIM(customer_name)))").
		Where("customer_name IS NOT NULL AND TRIM(customer_name) <> ''").
		Scan(&n).Error
	return n, err
}

type stockChangeRepo struct {
	db *gorm.DB
}

func NewStockChangeRepo(db *gorm.DB) StockChangeRepository {
	return &stockChangeRepo{db}
}

func (r *stockChangeRepo) FindByProduct(ctx context.Context, productID uuid.UUID, limit int) ([]model.StockChange, error) {
	var changes []model.StockChange
	q := r.db.WithContext(ctx).Where("product_id = ?", productID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&changes).Error
	return changes, err
}

func (r *stockChangeRepo) FindInRange(ctx context.Context, from, to time.Time) ([]model.StockChange, error) {
	var changes []model.StockChange
	err := r.db.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", from, to).
		Order("created_at ASC").
		Find(&changes).Error
	return changes, err
}

func (r *stockChangeRepo) FindRecent(ctx context.Context, limit int) ([]model.StockChange, error) {
	var changes []model.StockChange
	err := r.db.WithContext(ctx).
		// deleted products still name their old rows
		Preload("Product", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Order("created_at DESC").
		Limit(limit).
		Find(&changes).Error
	return changes, err
}
