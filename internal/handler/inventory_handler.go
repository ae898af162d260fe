package handler

import (
	"go-pos-ws/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type InventoryHandler struct {
	catalog service.CatalogService
	ledger  service.Ledger
}

func NewInventoryHandler(catalog service.CatalogService, ledger service.Ledger) *InventoryHandler {
	return &InventoryHandler{catalog: catalog, ledger: ledger}
}

// GET /api/v1/products?search=&category_id=
func (h *InventoryHandler) GetProducts(c *fiber.Ctx) error {
	filter := service.ProductFilter{Search: c.Query("search")}
	if raw := c.Query("category_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "Invalid category ID"})
		}
		filter.CategoryID = &id
	}
	products, err := h.catalog.ListProducts(c.UserContext(), filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(products)
}

// GET /api/v1/products/:id
func (h *InventoryHandler) GetProduct(c *fiber.Ctx) error {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid product ID"})
	}
	product, err := h.catalog.GetProduct(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(product)
}

// POST /api/v1/products
func (h *InventoryHandler) CreateProduct(c *fiber.Ctx) error {
	op, ok, err := currentOperator(c)
	if !ok {
		return err
	}
	var req service.ProductRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}

	product, err := h.catalog.CreateProduct(c.UserContext(), op, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"message": "Product created", "data": product})
}

// PUT /api/v1/products/:id
func (h *InventoryHandler) UpdateProduct(c *fiber.Ctx) error {
	op, ok, err := currentOperator(c)
	if !ok {
		return err
	}
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid product ID"})
	}
	var req service.ProductRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}

	updated, err := h.catalog.UpdateProduct(c.UserContext(), op, id, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Product updated", "data": updated})
}

// DELETE /api/v1/products/:id
func (h *InventoryHandler) DeleteProduct(c *fiber.Ctx) error {
	op, ok, err := currentOperator(c)
	if !ok {
		return err
	}
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid product ID"})
	}
	if err := h.catalog.DeleteProduct(c.UserContext(), op, id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Product deleted"})
}

// POST /api/v1/products/:id/stock
func (h *InventoryHandler) AdjustStock(c *fiber.Ctx) error {
	op, ok, err := currentOperator(c)
	if !ok {
		return err
	}
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid product ID"})
	}
	var req service.AdjustStockRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}

	result, err := h.ledger.AdjustStock(c.UserContext(), op, id, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Stock updated", "data": result})
}

// GET /api/v1/products/:id/stock-history?limit=100
func (h *InventoryHandler) GetStockHistory(c *fiber.Ctx) error {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid product ID"})
	}
	if _, err := h.catalog.GetProduct(c.UserContext(), id); err != nil {
		return respondError(c, err)
	}
	history, err := h.ledger.History(c.UserContext(), id, c.QueryInt("limit", 100))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(history)
}

// GET /api/v1/stock-log?limit=200
func (h *InventoryHandler) GetStockLog(c *fiber.Ctx) error {
	changes, err := h.ledger.Log(c.UserContext(), c.QueryInt("limit", 200))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(changes)
}

// GET /api/v1/categories
func (h *InventoryHandler) GetCategories(c *fiber.Ctx) error {
	categories, err := h.catalog.ListCategories(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(categories)
}

// POST /api/v1/categories
func (h *InventoryHandler) CreateCategory(c *fiber.Ctx) error {
	op, ok, err := currentOperator(c)
	if !ok {
		return err
	}
	var req service.CategoryRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}

	category, err := h.catalog.CreateCategory(c.UserContext(), op, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"message": "Category created", "data": category})
}

// PUT /api/v1/categories/:id
func (h *InventoryHandler) UpdateCategory(c *fiber.Ctx) error {
	op, ok, err := currentOperator(c)
	if !ok {
		return err
	}
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid category ID"})
	}
	var req service.CategoryRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}

	category, err := h.catalog.UpdateCategory(c.UserContext(), op, id, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Category updated", "data": category})
}

// DELETE /api/v1/categories/:id
// Products in the category are kept and become uncategorised.
func (h *InventoryHandler) DeleteCategory(c *fiber.Ctx) error {
	op, ok, err := currentOperator(c)
	if !ok {
		return err
	}
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid category ID"})
	}
	if err := h.catalog.DeleteCategory(c.UserContext(), op, id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Category deleted"})
}
