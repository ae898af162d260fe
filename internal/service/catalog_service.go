package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"go-pos-ws/internal/cache"
	"go-pos-ws/internal/events"
	"go-pos-ws/internal/model"
	"go-pos-ws/internal/repository"
	"go-pos-ws/pkg/money"
	"go-pos-ws/pkg/validator"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type ProductRequest struct {
	Name          string          `json:"name" validate:"required,max=200"`
	SKU           *string         `json:"sku" validate:"omitempty,max=100"`
	CategoryID    *uuid.UUID      `json:"category_id"`
	Price         decimal.Decimal `json:"price" validate:"money"`
	CostPrice     decimal.Decimal `json:"cost_price" validate:"money"`
	IsService     bool            `json:"is_service"`
	ImageFilename *string         `json:"image_filename" validate:"omitempty,max=255"`
	// InitialStock is only honoured on create; it is booked through the ledger.
	InitialStock int `json:"initial_stock" validate:"min=0"`
}

type CategoryRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

// ProductFilter narrows the product list. Zero values match everything.
type ProductFilter struct {
	// Search matches anywhere in the name, ignoring case.
	Search     string
	CategoryID *uuid.UUID
}

type CatalogService interface {
	ListProducts(ctx context.Context, filter ProductFilter) ([]model.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*model.Product, error)
	CreateProduct(ctx context.Context, op model.Operator, req ProductRequest) (*model.Product, error)
	UpdateProduct(ctx context.Context, op model.Operator, id uuid.UUID, req ProductRequest) (*model.Product, error)
	DeleteProduct(ctx context.Context, op model.Operator, id uuid.UUID) error
	ListCategories(ctx context.Context) ([]model.Category, error)
	CreateCategory(ctx context.Context, op model.Operator, req CategoryRequest) (*model.Category, error)
	UpdateCategory(ctx context.Context, op model.Operator, id uuid.UUID, req CategoryRequest) (*model.Category, error)
	DeleteCategory(ctx context.Context, op model.Operator, id uuid.UUID) error
}

type catalogService struct {
	products   repository.ProductRepository
	categories repository.CategoryRepository
	uow        repository.UnitOfWork
	ledger     Ledger
	cache      cache.ProductCache
	cacheTTL   time.Duration
	bus        *events.Bus

	// generation counts invalidations. A list read from the store is only
	// written back when no invalidation happened since the read began.
	fillMu     sync.Mutex
	generation uint64
}

func NewCatalogService(
	products repository.ProductRepository,
	categories repository.CategoryRepository,
	uow repository.UnitOfWork,
	ledger Ledger,
	productCache cache.ProductCache,
	cacheTTL time.Duration,
	bus *events.Bus,
) CatalogService {
	if productCache == nil {
		productCache = cache.NoopProductCache{}
	}
	s := &catalogService{
		products:   products,
		categories: categories,
		uow:        uow,
		ledger:     ledger,
		cache:      productCache,
		cacheTTL:   cacheTTL,
		bus:        bus,
	}
	if bus != nil {
		// Stock moves change the cached list as much as catalog edits do.
		_ = bus.OnStockChanged(func(events.StockChanged) { s.invalidate() })
		_ = bus.OnCatalogChanged(func(events.CatalogChanged) { s.invalidate() })
	}
	return s
}

func (s *catalogService) invalidate() {
	s.fillMu.Lock()
	defer s.fillMu.Unlock()
	s.generation++
	if err := s.cache.Invalidate(context.Background()); err != nil {
		zap.L().Warn("product cache invalidation failed", zap.Error(err))
	}
}

func (s *catalogService) currentGeneration() uint64 {
	s.fillMu.Lock()
	defer s.fillMu.Unlock()
	return s.generation
}

// fill writes products back to the cache unless an invalidation landed after
// the store read started at generation gen.
func (s *catalogService) fill(ctx context.Context, gen uint64, products []model.Product) {
	s.fillMu.Lock()
	defer s.fillMu.Unlock()
	if s.generation != gen {
		return
	}
	if err := s.cache.SetProducts(ctx, products, s.cacheTTL); err != nil {
		zap.L().Warn("product cache write failed", zap.Error(err))
	}
}

func (s *catalogService) ListProducts(ctx context.Context, filter ProductFilter) ([]model.Product, error) {
	products, err := s.allProducts(ctx)
	if err != nil {
		return nil, err
	}
	return filterProducts(products, filter), nil
}

func (s *catalogService) allProducts(ctx context.Context) ([]model.Product, error) {
	if cached, ok, err := s.cache.GetProducts(ctx); err != nil {
		zap.L().Warn("product cache read failed", zap.Error(err))
	} else if ok {
		return cached, nil
	}

	gen := s.currentGeneration()
	products, err := s.products.FindAll(ctx)
	if err != nil {
		return nil, storeFailure("list products", err)
	}
	s.fill(ctx, gen, products)
	return products, nil
}

func filterProducts(products []model.Product, filter ProductFilter) []model.Product {
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	if search == "" && filter.CategoryID == nil {
		return products
	}
	out := make([]model.Product, 0, len(products))
	for _, p := range products {
		if filter.CategoryID != nil && (p.CategoryID == nil || *p.CategoryID != *filter.CategoryID) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (s *catalogService) GetProduct(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	p, err := s.products.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errors.Wrapf(ErrProductNotFound, "product %s", id)
	}
	if err != nil {
		return nil, storeFailure("get product", err)
	}
	return p, nil
}

func (s *catalogService) validateProduct(ctx context.Context, req *ProductRequest, self uuid.UUID) error {
	req.Name = strings.TrimSpace(req.Name)
	if req.SKU != nil {
		sku := strings.TrimSpace(*req.SKU)
		if sku == "" {
			req.SKU = nil
		} else {
			req.SKU = &sku
		}
	}
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		return errors.Wrapf(ErrInvalidArgument, "field '%s' failed on tag '%s'", errs[0].FailedField, errs[0].Tag)
	}

	// SKU duplicate check (business rule, not a DB constraint)
	if req.SKU != nil {
		existing, err := s.products.FindBySKU(ctx, *req.SKU)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return storeFailure("check sku", err)
		}
		if existing != nil && existing.ID != self {
			return errors.Wrapf(ErrInvalidArgument, "SKU %s already exists", *req.SKU)
		}
	}
	if req.CategoryID != nil {
		if _, err := s.categories.FindByID(ctx, *req.CategoryID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return errors.Wrapf(ErrInvalidArgument, "category %s does not exist", *req.CategoryID)
			}
			return storeFailure("check category", err)
		}
	}
	return nil
}

func (s *catalogService) CreateProduct(ctx context.Context, op model.Operator, req ProductRequest) (*model.Product, error) {
	if err := s.validateProduct(ctx, &req, uuid.Nil); err != nil {
		return nil, err
	}
	if req.IsService {
		req.InitialStock = 0
	}

	product := &model.Product{
		Name:          req.Name,
		SKU:           req.SKU,
		CategoryID:    req.CategoryID,
		Price:         money.Round(req.Price),
		CostPrice:     money.Round(req.CostPrice),
		IsService:     req.IsService,
		ImageFilename: req.ImageFilename,
	}
	product.CreatedBy = op.ID.String()
	product.UpdatedBy = op.ID.String()

	err := s.uow.Within(ctx, func(tx repository.Tx) error {
		if err := tx.CreateProduct(product); err != nil {
			return errors.Wrap(err, "create product")
		}
		if req.InitialStock > 0 {
			cost := product.CostPrice
			if _, err := s.ledger.Apply(tx, product, req.InitialStock, op, "Initial stock", &cost, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, storeFailure("create product", err)
	}

	zap.L().Info("product created",
		zap.String("product_id", product.ID.String()),
		zap.String("name", product.Name),
		zap.Int("stock", product.Stock),
		zap.String("operator", op.Name))
	s.publishCatalogChanged(product.ID, "created")
	return product, nil
}

// UpdateProduct edits catalog fields. Stock is never written here. The row is
// locked so a concurrent stock move cannot slip in between the stock check and
// the switch to a service.
func (s *catalogService) UpdateProduct(ctx context.Context, op model.Operator, id uuid.UUID, req ProductRequest) (*model.Product, error) {
	if _, err := s.GetProduct(ctx, id); err != nil {
		return nil, err
	}
	if err := s.validateProduct(ctx, &req, id); err != nil {
		return nil, err
	}

	err := s.uow.Within(ctx, func(tx repository.Tx) error {
		existing, err := tx.LockProduct(id)
		if errors.Is(err, repository.ErrNotFound) {
			return errors.Wrapf(ErrProductNotFound, "product %s", id)
		}
		if err != nil {
			return err
		}
		if req.IsService && !existing.IsService && existing.Stock > 0 {
			return errors.Wrapf(ErrInvalidArgument, "%s still has %d in stock; remove it before making it a service", existing.Name, existing.Stock)
		}

		existing.Name = req.Name
		existing.SKU = req.SKU
		existing.CategoryID = req.CategoryID
		existing.Price = money.Round(req.Price)
		existing.CostPrice = money.Round(req.CostPrice)
		existing.IsService = req.IsService
		existing.ImageFilename = req.ImageFilename
		existing.UpdatedBy = op.ID.String()
		return tx.UpdateProduct(existing)
	})
	if err != nil {
		return nil, storeFailure("update product", err)
	}
	s.publishCatalogChanged(id, "updated")
	return s.GetProduct(ctx, id)
}

// DeleteProduct removes a product from the catalog. Past sales keep their
// snapshots and the ledger keeps its rows.
func (s *catalogService) DeleteProduct(ctx context.Context, op model.Operator, id uuid.UUID) error {
	var name string
	err := s.uow.Within(ctx, func(tx repository.Tx) error {
		existing, err := tx.LockProduct(id)
		if errors.Is(err, repository.ErrNotFound) {
			return errors.Wrapf(ErrProductNotFound, "product %s", id)
		}
		if err != nil {
			return err
		}
		name = existing.Name
		return tx.DeleteProduct(id, op.ID.String())
	})
	if err != nil {
		return storeFailure("delete product", err)
	}

	zap.L().Info("product deleted",
		zap.String("product_id", id.String()),
		zap.String("name", name),
		zap.String("operator", op.Name))
	s.publishCatalogChanged(id, "deleted")
	return nil
}

func (s *catalogService) publishCatalogChanged(id uuid.UUID, action string) {
	if s.bus != nil {
		s.bus.PublishCatalogChanged(events.CatalogChanged{ProductID: id, Action: action})
		return
	}
	s.invalidate()
}

func (s *catalogService) ListCategories(ctx context.Context) ([]model.Category, error) {
	categories, err := s.categories.FindAll(ctx)
	if err != nil {
		return nil, storeFailure("list categories", err)
	}
	return categories, nil
}

func (s *catalogService) validateCategory(ctx context.Context, req *CategoryRequest, self uuid.UUID) error {
	req.Name = strings.TrimSpace(req.Name)
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		return errors.Wrapf(ErrInvalidArgument, "field '%s' failed on tag '%s'", errs[0].FailedField, errs[0].Tag)
	}
	existing, err := s.categories.FindByName(ctx, req.Name)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return storeFailure("check category", err)
	}
	if existing != nil && existing.ID != self {
		return errors.Wrapf(ErrInvalidArgument, "category %q already exists", req.Name)
	}
	return nil
}

func (s *catalogService) CreateCategory(ctx context.Context, op model.Operator, req CategoryRequest) (*model.Category, error) {
	if err := s.validateCategory(ctx, &req, uuid.Nil); err != nil {
		return nil, err
	}

	category := &model.Category{Name: req.Name}
	category.CreatedBy = op.ID.String()
	category.UpdatedBy = op.ID.String()
	if err := s.categories.Create(ctx, category); err != nil {
		return nil, storeFailure("create category", err)
	}
	return category, nil
}

func (s *catalogService) UpdateCategory(ctx context.Context, op model.Operator, id uuid.UUID, req CategoryRequest) (*model.Category, error) {
	category, err := s.findCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.validateCategory(ctx, &req, id); err != nil {
		return nil, err
	}

	category.Name = req.Name
	category.UpdatedBy = op.ID.String()
	if err := s.categories.Update(ctx, category); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errors.Wrapf(ErrCategoryNotFound, "category %s", id)
		}
		return nil, storeFailure("update category", err)
	}
	// cached products embed their category
	s.publishCatalogChanged(uuid.Nil, "category updated")
	return category, nil
}

// DeleteCategory removes the category; its products stay in the catalog uncategorised.
func (s *catalogService) DeleteCategory(ctx context.Context, op model.Operator, id uuid.UUID) error {
	category, err := s.findCategory(ctx, id)
	if err != nil {
		return err
	}
	if err := s.categories.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errors.Wrapf(ErrCategoryNotFound, "category %s", id)
		}
		return storeFailure("delete category", err)
	}

	zap.L().Info("category deleted",
		zap.String("category_id", id.String()),
		zap.String("name", category.Name),
		zap.String("operator", op.Name))
	s.publishCatalogChanged(uuid.Nil, "category deleted")
	return nil
}

func (s *catalogService) findCategory(ctx context.Context, id uuid.UUID) (*model.Category, error) {
	category, err := s.categories.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errors.Wrapf(ErrCategoryNotFound, "category %s", id)
	}
	if err != nil {
		return nil, storeFailure("get category", err)
	}
	return category, nil
}
