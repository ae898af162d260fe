package handler

import (
	"go-pos-ws/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type CartHandler struct {
	carts service.CartService
}

func NewCartHandler(carts service.CartService) *CartHandler {
	return &CartHandler{carts: carts}
}

type AddCartItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"uuid_required"`
	Quantity  int       `json:"quantity" validate:"min=0"`
}

type SetCartItemRequest struct {
	Quantity int `json:"quantity" validate:"min=1"`
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(c *fiber.Ctx) error {
	op, ok, err := currentOperator(c)
	if !ok {
		return err
	}
	preview, err := h.carts.Get(c.UserContext(), op)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(preview)
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(c *fiber.Ctx) error {
	op, ok, err := currentOperator(c)
	if !ok {
		return err
	}
	var req AddCartItemRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}
	preview, err := h.carts.AddItem(c.UserContext(), op, req.ProductID, req.Quantity)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(preview)
}

// PUT /api/v1/cart/items/:productId
func (h *CartHandler) SetItemQuantity(c *fiber.Ctx) error {
	op, ok, err := currentOperator(c)
	if !ok {
		return err
	}
	productID, ok := parseUUIDParam(c, "productId")
	if !ok {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid product ID"})
	}
	var req SetCartItemRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}
	preview, err := h.carts.SetItemQuantity(c.UserContext(), op, productID, req.Quantity)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(preview)
}

// DELETE /api/v1/cart/items/:productId
func (h *CartHandler) RemoveItem(c *fiber.Ctx) error {
	op, ok, err := currentOperator(c)
	if !ok {
		return err
	}
	productID, ok := parseUUIDParam(c, "productId")
	if !ok {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid product ID"})
	}
	preview, err := h.carts.RemoveItem(c.UserContext(), op, productID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(preview)
}

// DELETE /api/v1/cart
func (h *CartHandler) ClearCart(c *fiber.Ctx) error {
	op, ok, err := currentOperator(c)
	if !ok {
		return err
	}
	if err := h.carts.Clear(c.UserContext(), op); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Cart cleared"})
}

// POST /api/v1/checkout
func (h *CartHandler) Checkout(c *fiber.Ctx) error {
	op, ok, err := currentOperator(c)
	if !ok {
		return err
	}
	var req service.CheckoutRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}

	result, err := h.carts.Checkout(c.UserContext(), op, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"message": "Transaction recorded", "data": result})
}
