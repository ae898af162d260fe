package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go-pos-ws/internal/model"
	"go-pos-ws/internal/repository"

	"github.com/google/uuid"
)

// countingCache is an in-process ProductCache that records how it was used.
type countingCache struct {
	mu          sync.Mutex
	products    []model.Product
	hits        int
	sets        int
	invalidated int
}

func (c *countingCache) GetProducts(_ context.Context) ([]model.Product, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.products == nil {
		return nil, false, nil
	}
	c.hits++
	return c.products, true, nil
}

func (c *countingCache) SetProducts(_ context.Context, products []model.Product, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.products = products
	return nil
}

func (c *countingCache) Invalidate(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated++
	c.products = nil
	return nil
}

func (c *countingCache) cached() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.products != nil
}

// hookedProducts runs a hook once, right after the first matching read returns,
// to land a concurrent write between a read and what the caller does next.
type hookedProducts struct {
	repository.ProductRepository
	once      sync.Once
	afterFind func()
	afterList func()
}

func (h *hookedProducts) FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	p, err := h.ProductRepository.FindByID(ctx, id)
	if h.afterFind != nil {
		h.once.Do(h.afterFind)
	}
	return p, err
}

func (h *hookedProducts) FindAll(ctx context.Context) ([]model.Product, error) {
	products, err := h.ProductRepository.FindAll(ctx)
	if h.afterList != nil {
		h.once.Do(h.afterList)
	}
	return products, err
}

func newCatalog(env *testEnv, c *countingCache) CatalogService {
	return NewCatalogService(env.store.Products(), env.store.Categories(), env.store, env.ledger, c, time.Minute, env.bus)
}

func TestCatalogCreateProductBooksInitialStock(t *testing.T) {
	env := newTestEnv(t, DefaultCheckoutConfig())
	catalog := newCatalog(env, &countingCache{})

	p, err := catalog.CreateProduct(context.Background(), owner, ProductRequest{
		Name:         "  Notebook ",
		SKU:          strPtr("NB-01"),
		Price:        dec("45.00"),
		CostPrice:    dec("30.00"),
		InitialStock: 12,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.Name != "Notebook" || p.Stock != 12 {
		t.Fatalf("unexpected product %+v", p)
	}
	h := env.history(t, p.ID)
	if len(h) != 1 || h[0].Delta != 12 || h[0].Note != "Initial stock" {
		t.Fatalf("initial stock not in the ledger: %+v", h)
	}
	if h[0].UnitCost == nil || !h[0].UnitCost.Equal(dec("30.00")) {
		t.Fatalf("unit cost not recorded")
	}
}

func TestCatalogCreateServiceIgnoresInitialStock(t *testing.T) {
	env := newTestEnv(t, DefaultCheckoutConfig())
	catalog := newCatalog(env, &countingCache{})

	p, err := catalog.CreateProduct(context.Background(), owner, ProductRequest{
		Name:         "Gift wrapping",
		Price:        dec("15.00"),
		IsService:    true,
		InitialStock: 40,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.Stock != 0 || len(env.history(t, p.ID)) != 0 {
		t.Fatalf("service product was stocked")
	}
}

func TestCatalogRejectsBadProducts(t *testing.T) {
	env := newTestEnv(t, DefaultCheckoutConfig())
	catalog := newCatalog(env, &countingCache{})
	ctx := context.Background()

	if _, err := catalog.CreateProduct(ctx, owner, ProductRequest{Name: "A", SKU: strPtr("DUP"), Price: dec("1")}); err != nil {
		t.Fatalf("create: %v", err)
	}
	missingCategory := uuid.New()
	cases := []struct {
		name string
		req  ProductRequest
	}{
		{"blank name", ProductRequest{Name: "  ", Price: dec("1")}},
		{"negative price", ProductRequest{Name: "B", Price: dec("-1")}},
		{"sub-cent price", ProductRequest{Name: "B", Price: dec("1.005")}},
		{"duplicate sku", ProductRequest{Name: "B", SKU: strPtr(" DUP "), Price: dec("1")}},
		{"unknown category", ProductRequest{Name: "B", Price: dec("1"), CategoryID: &missingCategory}},
		{"negative stock", ProductRequest{Name: "B", Price: dec("1"), InitialStock: -3}},
	}
	for _, tc := range cases {
		if _, err := catalog.CreateProduct(ctx, owner, tc.req); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("%s: expected ErrInvalidArgument, got %v", tc.name, err)
		}
	}
}

func TestCatalogUpdateNeverTouchesStock(t *testing.T) {
	env := newTestEnv(t, DefaultCheckoutConfig())
	catalog := newCatalog(env, &countingCache{})
	ctx := context.Background()
	p := env.seedProduct(t, "Mug", "80.00", 6, false)

	updated, err := catalog.UpdateProduct(ctx, owner, p.ID, ProductRequest{
		Name:         "Mug (large)",
		Price:        dec("95.00"),
		CostPrice:    dec("50.00"),
		InitialStock: 100,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Mug (large)" || !updated.Price.Equal(dec("95.00")) || updated.Stock != 6 {
		t.Fatalf("unexpected product %+v", updated)
	}
	if len(env.history(t, p.ID)) != 0 {
		t.Fatalf("update wrote to the ledger")
	}

	_, err = catalog.UpdateProduct(ctx, owner, p.ID, ProductRequest{Name: "Mug", Price: dec("95.00"), IsService: true})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("turning a stocked product into a service: got %v", err)
	}
	if _, err := catalog.UpdateProduct(ctx, owner, uuid.New(), ProductRequest{Name: "X", Price: dec("1")}); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestCatalogListProductsReadsThroughCache(t *testing.T) {
	env := newTestEnv(t, DefaultCheckoutConfig())
	c := &countingCache{}
	catalog := newCatalog(env, c)
	ctx := context.Background()
	p := env.seedProduct(t, "Pencil", "5.00", 10, false)

	for i := 0; i < 3; i++ {
		products, err := catalog.ListProducts(ctx, ProductFilter{})
		if err != nil || len(products) != 1 {
			t.Fatalf("list: %v %v", products, err)
		}
	}
	if c.sets != 1 || c.hits != 2 {
		t.Fatalf("sets=%d hits=%d, want 1 and 2", c.sets, c.hits)
	}

	// a stock move drops the cached list once its event is delivered
	if _, err := env.ledger.AdjustStock(ctx, owner, p.ID, AdjustStockRequest{Mode: AdjustAdd, Quantity: 5, UnitCost: decPtr("2.50")}); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	env.bus.WaitAsync()
	if c.cached() {
		t.Fatalf("cache still populated after a stock change")
	}
	products, err := catalog.ListProducts(ctx, ProductFilter{})
	if err != nil || products[0].Stock != 15 {
		t.Fatalf("stale list after invalidation: %v %v", products, err)
	}
}

func TestCatalogCategories(t *testing.T) {
	env := newTestEnv(t, DefaultCheckoutConfig())
	catalog := newCatalog(env, &countingCache{})
	ctx := context.Background()

	created, err := catalog.CreateCategory(ctx, owner, CategoryRequest{Name: " Drinks "})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Name != "Drinks" {
		t.Fatalf("name not trimmed: %q", created.Name)
	}
	if _, err := catalog.CreateCategory(ctx, owner, CategoryRequest{Name: "drinks"}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("duplicate category: got %v", err)
	}
	if _, err := catalog.CreateCategory(ctx, owner, CategoryRequest{Name: ""}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("empty category: got %v", err)
	}

	p, err := catalog.CreateProduct(ctx, owner, ProductRequest{Name: "Cola", Price: dec("25"), CategoryID: &created.ID})
	if err != nil {
		t.Fatalf("create product in category: %v", err)
	}
	if p.CategoryID == nil || *p.CategoryID != created.ID {
		t.Fatalf("category not linked")
	}
	categories, err := catalog.ListCategories(ctx)
	if err != nil || len(categories) != 1 {
		t.Fatalf("list categories: %v %v", categories, err)
	}
}

func TestCatalogServiceSwitchSeesConcurrentRestock(t *testing.T) {
	env := newTestEnv(t, DefaultCheckoutConfig())
	ctx := context.Background()
	p := env.seedProduct(t, "Gift Wrap", "5.00", 0, false)

	products := &hookedProducts{ProductRepository: env.store.Products()}
	products.afterFind = func() {
		// a delivery lands after the catalog read the product with no stock
		if _, err := env.ledger.AdjustStock(ctx, owner, p.ID, AdjustStockRequest{Mode: AdjustAdd, Quantity: 5, UnitCost: decPtr("1.00")}); err != nil {
			t.Errorf("adjust: %v", err)
		}
	}
	catalog := NewCatalogService(products, env.store.Categories(), env.store, env.ledger, &countingCache{}, time.Minute, env.bus)

	_, err := catalog.UpdateProduct(ctx, owner, p.ID, ProductRequest{Name: "Gift Wrap", Price: dec("5.00"), IsService: true})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	got, _ := env.store.Products().FindByID(ctx, p.ID)
	if got.IsService || got.Stock != 5 {
		t.Fatalf("service product with stock: %+v", got)
	}
}

func TestCatalogCacheSkipsFillWhenInvalidatedDuringRead(t *testing.T) {
	env := newTestEnv(t, DefaultCheckoutConfig())
	ctx := context.Background()
	p := env.seedProduct(t, "Pencil", "5.00", 10, false)

	products := &hookedProducts{ProductRepository: env.store.Products()}
	products.afterList = func() {
		// the stock move commits and its invalidation runs before the list is cached
		if _, err := env.ledger.AdjustStock(ctx, owner, p.ID, AdjustStockRequest{Mode: AdjustAdd, Quantity: 5, UnitCost: decPtr("2.50")}); err != nil {
			t.Errorf("adjust: %v", err)
		}
		env.bus.WaitAsync()
	}
	c := &countingCache{}
	catalog := NewCatalogService(products, env.store.Categories(), env.store, env.ledger, c, time.Minute, env.bus)

	stale, err := catalog.ListProducts(ctx, ProductFilter{})
	if err != nil || stale[0].Stock != 10 {
		t.Fatalf("first list: %v %v", stale, err)
	}
	if c.cached() || c.sets != 0 {
		t.Fatalf("list read before the invalidation was cached (sets=%d)", c.sets)
	}

	fresh, err := catalog.ListProducts(ctx, ProductFilter{})
	if err != nil || fresh[0].Stock != 15 {
		t.Fatalf("second list: %v %v", fresh, err)
	}
	if !c.cached() || c.sets != 1 {
		t.Fatalf("fresh list not cached (sets=%d)", c.sets)
	}
}

func TestCatalogListProductsFilters(t *testing.T) {
	env := newTestEnv(t, DefaultCheckoutConfig())
	catalog := newCatalog(env, &countingCache{})
	ctx := context.Background()

	drinks, err := catalog.CreateCategory(ctx, owner, CategoryRequest{Name: "Drinks"})
	if err != nil {
		t.Fatalf("category: %v", err)
	}
	for _, req := range []ProductRequest{
		{Name: "Iced Tea", Price: dec("30"), CategoryID: &drinks.ID},
		{Name: "Milk Tea", Price: dec("45"), CategoryID: &drinks.ID},
		{Name: "Tea Cake", Price: dec("60")},
		{Name: "Cola", Price: dec("25"), CategoryID: &drinks.ID},
	} {
		if _, err := catalog.CreateProduct(ctx, owner, req); err != nil {
			t.Fatalf("create %s: %v", req.Name, err)
		}
	}

	cases := []struct {
		filter ProductFilter
		want   []string
	}{
		{ProductFilter{}, []string{"Cola", "Iced Tea", "Milk Tea", "Tea Cake"}},
		{ProductFilter{Search: " TEA "}, []string{"Iced Tea", "Milk Tea", "Tea Cake"}},
		{ProductFilter{CategoryID: &drinks.ID}, []string{"Cola", "Iced Tea", "Milk Tea"}},
		{ProductFilter{Search: "tea", CategoryID: &drinks.ID}, []string{"Iced Tea", "Milk Tea"}},
		{ProductFilter{Search: "coffee"}, nil},
	}
	for _, tc := range cases {
		got, err := catalog.ListProducts(ctx, tc.filter)
		if err != nil {
			t.Fatalf("list %+v: %v", tc.filter, err)
		}
		if len(got) != len(tc.want) {
			t.Fatalf("list %+v: got %d products, want %v", tc.filter, len(got), tc.want)
		}
		for i := range got {
			if got[i].Name != tc.want[i] {
				t.Fatalf("list %+v: got %s at %d, want %s", tc.filter, got[i].Name, i, tc.want[i])
			}
		}
	}
}

func TestCatalogDeleteProduct(t *testing.T) {
	env := newTestEnv(t, DefaultCheckoutConfig())
	c := &countingCache{}
	catalog := newCatalog(env, c)
	ctx := context.Background()

	p, err := catalog.CreateProduct(ctx, owner, ProductRequest{Name: "Old Stock", Price: dec("10"), CostPrice: dec("4"), InitialStock: 3})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	cart := env.cart(t, map[uuid.UUID]int{p.ID: 1})
	if _, err := catalog.ListProducts(ctx, ProductFilter{}); err != nil {
		t.Fatalf("list: %v", err)
	}

	if err := catalog.DeleteProduct(ctx, owner, p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	env.bus.WaitAsync()
	if c.cached() {
		t.Fatalf("cached list still holds the deleted product")
	}
	if _, err := catalog.GetProduct(ctx, p.ID); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
	if list, _ := catalog.ListProducts(ctx, ProductFilter{}); len(list) != 0 {
		t.Fatalf("deleted product listed: %+v", list)
	}
	if len(env.history(t, p.ID)) != 1 {
		t.Fatalf("ledger rows lost with the product")
	}
	if _, err := env.checkout.Checkout(ctx, cashier, cart, CheckoutRequest{PaymentMethod: "card"}); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("checkout of a deleted product: %v", err)
	}
	if err := catalog.DeleteProduct(ctx, owner, p.ID); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("second delete: %v", err)
	}
}

func TestCatalogEditAndDeleteCategory(t *testing.T) {
	env := newTestEnv(t, DefaultCheckoutConfig())
	catalog := newCatalog(env, &countingCache{})
	ctx := context.Background()

	snacks, _ := catalog.CreateCategory(ctx, owner, CategoryRequest{Name: "Snacks"})
	drinks, _ := catalog.CreateCategory(ctx, owner, CategoryRequest{Name: "Drinks"})
	chips, err := catalog.CreateProduct(ctx, owner, ProductRequest{Name: "Chips", Price: dec("15"), CategoryID: &snacks.ID})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	renamed, err := catalog.UpdateCategory(ctx, owner, snacks.ID, CategoryRequest{Name: " Chips & Snacks "})
	if err != nil || renamed.Name != "Chips & Snacks" {
		t.Fatalf("rename: %v %v", renamed, err)
	}
	if _, err := catalog.UpdateCategory(ctx, owner, snacks.ID, CategoryRequest{Name: "chips & snacks"}); err != nil {
		t.Fatalf("renaming to its own name in another case: %v", err)
	}
	if _, err := catalog.UpdateCategory(ctx, owner, snacks.ID, CategoryRequest{Name: "DRINKS"}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("duplicate name: %v", err)
	}
	if _, err := catalog.UpdateCategory(ctx, owner, uuid.New(), CategoryRequest{Name: "X"}); !errors.Is(err, ErrCategoryNotFound) {
		t.Fatalf("unknown category: %v", err)
	}

	if err := catalog.DeleteCategory(ctx, owner, snacks.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err := catalog.GetProduct(ctx, chips.ID)
	if err != nil || got.CategoryID != nil {
		t.Fatalf("product not detached: %+v %v", got, err)
	}
	categories, _ := catalog.ListCategories(ctx)
	if len(categories) != 1 || categories[0].ID != drinks.ID {
		t.Fatalf("categories after delete: %+v", categories)
	}
	if err := catalog.DeleteCategory(ctx, owner, snacks.ID); !errors.Is(err, ErrCategoryNotFound) {
		t.Fatalf("second delete: %v", err)
	}
}
