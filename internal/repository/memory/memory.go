// Package memory is a process-local store used when no database is configured
// and by the service tests. A single RWMutex guards everything; a unit of work
// holds the write lock from its first read to commit, so concurrent checkouts
// against the same product serialize exactly as they do under row locks.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go-pos-ws/internal/model"
	"go-pos-ws/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Store struct {
	mu           sync.RWMutex
	products     map[uuid.UUID]model.Product
	categories   map[uuid.UUID]model.Category
	transactions []model.Transaction
	stockChanges []model.StockChange
	users        map[uuid.UUID]model.User
	roles        []model.Role
	privileges   []model.Privilege
	lastNumber   int64
	now          func() time.Time
}

func New() *Store {
	return &Store{
		products:   make(map[uuid.UUID]model.Product),
		categories: make(map[uuid.UUID]model.Category),
		users:      make(map[uuid.UUID]model.User),
		now:        time.Now,
	}
}

func (s *Store) Products() repository.ProductRepository         { return productStore{s} }
func (s *Store) Categories() repository.CategoryRepository      { return categoryStore{s} }
func (s *Store) Transactions() repository.TransactionRepository { return transactionStore{s} }
func (s *Store) StockChanges() repository.StockChangeRepository { return stockChangeStore{s} }
func (s *Store) Users() repository.UserRepository               { return userStore{s} }
func (s *Store) Roles() repository.RoleRepository               { return roleStore{s} }
func (s *Store) Privileges() repository.PrivilegeRepository     { return privilegeStore{s} }

// Within implements repository.UnitOfWork. Writes are staged on the tx and
// only folded into the store when fn returns nil.
func (s *Store) Within(ctx context.Context, fn func(tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		store:      s,
		products:   make(map[uuid.UUID]model.Product),
		deleted:    make(map[uuid.UUID]bool),
		lastNumber: s.lastNumber,
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for id, p := range tx.products {
		s.products[id] = p
	}
	for id := range tx.deleted {
		delete(s.products, id)
	}
	s.transactions = append(s.transactions, tx.transactions...)
	s.stockChanges = append(s.stockChanges, tx.stockChanges...)
	s.lastNumber = tx.lastNumber
	return nil
}

type memTx struct {
	store        *Store
	products     map[uuid.UUID]model.Product
	deleted      map[uuid.UUID]bool
	transactions []model.Transaction
	stockChanges []model.StockChange
	lastNumber   int64
}

func (t *memTx) product(id uuid.UUID) (model.Product, bool) {
	if t.deleted[id] {
		return model.Product{}, false
	}
	if p, ok := t.products[id]; ok {
		return p, true
	}
	p, ok := t.store.products[id]
	return p, ok
}

func (t *memTx) LockProduct(id uuid.UUID) (*model.Product, error) {
	p, ok := t.product(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (t *memTx) SaveStock(id uuid.UUID, stock int, updatedBy string) error {
	p, ok := t.product(id)
	if !ok {
		return repository.ErrNotFound
	}
	p.Stock = stock
	p.UpdatedBy = updatedBy
	p.UpdatedAt = t.store.now()
	t.products[id] = p
	return nil
}

func (t *memTx) CreateProduct(product *model.Product) error {
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	if _, exists := t.product(product.ID); exists {
		return fmt.Errorf("product %s already exists", product.ID)
	}
	now := t.store.now()
	product.CreatedAt, product.UpdatedAt = now, now
	p := *product
	p.Category = nil
	t.products[p.ID] = p
	return nil
}

func (t *memTx) UpdateProduct(product *model.Product) error {
	p, ok := t.product(product.ID)
	if !ok {
		return repository.ErrNotFound
	}
	p.Name = product.Name
	p.SKU = product.SKU
	p.CategoryID = product.CategoryID
	p.Price = product.Price
	p.CostPrice = product.CostPrice
	p.IsService = product.IsService
	p.ImageFilename = product.ImageFilename
	p.UpdatedBy = product.UpdatedBy
	p.UpdatedAt = t.store.now()
	t.products[p.ID] = p
	return nil
}

func (t *memTx) DeleteProduct(id uuid.UUID, deletedBy string) error {
	if _, ok := t.product(id); !ok {
		return repository.ErrNotFound
	}
	delete(t.products, id)
	t.deleted[id] = true
	return nil
}

func (t *memTx) CreateTransaction(txn *model.Transaction) error {
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	t.lastNumber++
	txn.Number = t.lastNumber
	txn.CreatedAt = t.store.now()

	stored := *txn
	stored.Items = make([]model.TransactionItem, len(txn.Items))
	for i := range txn.Items {
		item := &txn.Items[i]
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		item.TransactionID = txn.ID
		item.CreatedAt = txn.CreatedAt
		stored.Items[i] = *item
		stored.Items[i].Product = nil
	}
	t.transactions = append(t.transactions, stored)
	return nil
}

func (t *memTx) CreateStockChange(change *model.StockChange) error {
	if change.ID == uuid.Nil {
		change.ID = uuid.New()
	}
	change.CreatedAt = t.store.now()
	c := *change
	c.Product = nil
	t.stockChanges = append(t.stockChanges, c)
	return nil
}

type productStore struct{ s *Store }

func (r productStore) withCategory(p model.Product) model.Product {
	if p.CategoryID != nil {
		if c, ok := r.s.categories[*p.CategoryID]; ok {
			p.Category = &c
		}
	}
	return p
}

func (r productStore) FindByID(_ context.Context, id uuid.UUID) (*model.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	p = r.withCategory(p)
	return &p, nil
}

func (r productStore) FindBySKU(_ context.Context, sku string) (*model.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, p := range r.s.products {
		if p.SKU != nil && *p.SKU == sku {
			p = r.withCategory(p)
			return &p, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r productStore) FindAll(_ context.Context) ([]model.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	products := make([]model.Product, 0, len(r.s.products))
	for _, p := range r.s.products {
		products = append(products, r.withCategory(p))
	}
	sort.Slice(products, func(i, j int) bool { return products[i].Name < products[j].Name })
	return products, nil
}

type categoryStore struct{ s *Store }

func (r categoryStore) FindAll(_ context.Context) ([]model.Category, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	categories := make([]model.Category, 0, len(r.s.categories))
	for _, c := range r.s.categories {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].Name < categories[j].Name })
	return categories, nil
}

func (r categoryStore) FindByID(_ context.Context, id uuid.UUID) (*model.Category, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.categories[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (r categoryStore) FindByName(_ context.Context, name string) (*model.Category, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, c := range r.s.categories {
		if strings.EqualFold(c.Name, name) {
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r categoryStore) Create(_ context.Context, category *model.Category) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.categories {
		if strings.EqualFold(c.Name, category.Name) {
			return fmt.Errorf("category %q already exists", category.Name)
		}
	}
	if category.ID == uuid.Nil {
		category.ID = uuid.New()
	}
	now := r.s.now()
	category.CreatedAt, category.UpdatedAt = now, now
	r.s.categories[category.ID] = *category
	return nil
}

func (r categoryStore) Update(_ context.Context, category *model.Category) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.categories[category.ID]
	if !ok {
		return repository.ErrNotFound
	}
	for id, other := range r.s.categories {
		if id != c.ID && strings.EqualFold(other.Name, category.Name) {
			return fmt.Errorf("category %q already exists", category.Name)
		}
	}
	c.Name = category.Name
	c.UpdatedBy = category.UpdatedBy
	c.UpdatedAt = r.s.now()
	r.s.categories[c.ID] = c
	*category = c
	return nil
}

func (r categoryStore) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.categories[id]; !ok {
		return repository.ErrNotFound
	}
	for pid, p := range r.s.products {
		if p.CategoryID != nil && *p.CategoryID == id {
			p.CategoryID = nil
			r.s.products[pid] = p
		}
	}
	delete(r.s.categories, id)
	return nil
}

type transactionStore struct{ s *Store }

func (r transactionStore) FindAll(_ context.Context, filter repository.TransactionFilter) ([]model.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []model.Transaction
	// newest first
	for i := len(r.s.transactions) - 1; i >= 0; i-- {
		t := r.s.transactions[i]
		if !filter.From.IsZero() && t.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !t.CreatedAt.Before(filter.To) {
			continue
		}
		if filter.PaymentMethod != "" && t.PaymentMethod != filter.PaymentMethod {
			continue
		}
		out = append(out, copyTransaction(t))
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (r transactionStore) FindByID(_ context.Context, id uuid.UUID) (*model.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, t := range r.s.transactions {
		if t.ID == id {
			c := copyTransaction(t)
			sort.SliceStable(c.Items, func(i, j int) bool { return c.Items[i].ProductName < c.Items[j].ProductName })
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r transactionStore) Summarize(_ context.Context, from time.Time) (repository.TransactionSummary, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sum := repository.TransactionSummary{Total: decimal.Zero}
	for _, t := range r.s.transactions {
		if t.CreatedAt.Before(from) {
			continue
		}
		sum.Count++
		sum.Total = sum.Total.Add(t.Total)
	}
	return sum, nil
}

func (r transactionStore) CountCustomers(_ context.Context) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	seen := map[string]bool{}
	for _, t := range r.s.transactions {
		if t.CustomerName == nil {
			continue
		}
		if name := strings.ToLower(strings.TrimSpace(*t.CustomerName)); name != "" {
			seen[name] = true
		}
	}
	return int64(len(seen)), nil
}

func copyTransaction(t model.Transaction) model.Transaction {
	items := make([]model.TransactionItem, len(t.Items))
	copy(items, t.Items)
	t.Items = items
	return t
}

type stockChangeStore struct{ s *Store }

func (r stockChangeStore) FindByProduct(_ context.Context, productID uuid.UUID, limit int) ([]model.StockChange, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []model.StockChange
	for i := len(r.s.stockChanges) - 1; i >= 0; i-- {
		c := r.s.stockChanges[i]
		if c.ProductID != productID {
			continue
		}
		out = append(out, c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r stockChangeStore) FindInRange(_ context.Context, from, to time.Time) ([]model.StockChange, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []model.StockChange
	for _, c := range r.s.stockChanges {
		if c.CreatedAt.Before(from) || !c.CreatedAt.Before(to) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (r stockChangeStore) FindRecent(_ context.Context, limit int) ([]model.StockChange, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []model.StockChange
	for i := len(r.s.stockChanges) - 1; i >= 0 && len(out) < limit; i-- {
		c := r.s.stockChanges[i]
		if p, ok := r.s.products[c.ProductID]; ok {
			c.Product = &p
		}
		out = append(out, c)
	}
	return out, nil
}
