package repository

import (
	"context"

	"go-pos-ws/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type gormUnitOfWork struct {
	db *gorm.DB
}

func NewUnitOfWork(db *gorm.DB) UnitOfWork {
	return &gormUnitOfWork{db}
}

func (u *gormUnitOfWork) Within(ctx context.Context, fn func(tx Tx) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{tx})
	})
}

type gormTx struct {
	tx *gorm.DB
}

// LockProduct issues SELECT ... FOR UPDATE (pessimistic locking)
func (t *gormTx) LockProduct(id uuid.UUID) (*model.Product, error) {
	var product model.Product
	err := t.tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&product, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &product, nil
}

func (t *gormTx) SaveStock(id uuid.UUID, stock int, updatedBy string) error {
	return t.tx.Model(&model.Product{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"stock":      stock,
			"updated_by": updatedBy,
		}).Error
}

func (t *gormTx) CreateProduct(product *model.Product) error {
	return t.tx.Omit("Category").Create(product).Error
}

func (t *gormTx) UpdateProduct(product *model.Product) error {
	res := t.tx.Model(product).
		Select("name", "sku", "category_id", "price", "cost_price", "is_service", "image_filename", "updated_by", "updated_at").
		Updates(product)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteProduct soft-deletes the row; sale items and ledger rows keep pointing at it.
func (t *gormTx) DeleteProduct(id uuid.UUID, deletedBy string) error {
	if err := t.tx.Model(&model.Product{}).Where("id = ?", id).Update("deleted_by", deletedBy).Error; err != nil {
		return err
	}
	res := t.tx.Delete(&model.Product{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *gormTx) CreateTransaction(txn *model.Transaction) error {
	if err := t.tx.Omit("Items").Create(txn).Error; err != nil {
		return err
	}
	if len(txn.Items) == 0 {
		return nil
	}
	for i := range txn.Items {
		txn.Items[i].TransactionID = txn.ID
	}
	return t.tx.Omit("Product").Create(&txn.Items).Error
}

func (t *gormTx) CreateStockChange(change *model.StockChange) error {
	return t.tx.Omit("Product").Create(change).Error
}
