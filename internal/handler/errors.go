package handler

import (
	"go-pos-ws/internal/middleware"
	"go-pos-ws/internal/model"
	"go-pos-ws/internal/service"
	"go-pos-ws/pkg/validator"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// statusFor maps the service error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	var stockErr *service.StockError
	switch {
	case errors.As(err, &stockErr):
		return fiber.StatusConflict
	case errors.Is(err, service.ErrProductNotFound), errors.Is(err, service.ErrTransactionNotFound),
		errors.Is(err, service.ErrCategoryNotFound), errors.Is(err, service.ErrUserNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, service.ErrInsufficientPayment):
		return fiber.StatusPaymentRequired
	case errors.Is(err, service.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, service.ErrInvalidArgument):
		return fiber.StatusBadRequest
	case errors.Is(err, service.ErrStoreFailure):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func respondError(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	body := fiber.Map{"error": err.Error()}

	var stockErr *service.StockError
	if errors.As(err, &stockErr) {
		body["product_id"] = stockErr.ProductID
		body["available"] = stockErr.Available
	}
	if status >= fiber.StatusInternalServerError {
		zap.L().Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err))
		if status == fiber.StatusInternalServerError {
			body["error"] = "Internal Server Error"
		}
	}
	return c.Status(status).JSON(body)
}

// currentOperator reads the identity set by RequireAuth. When it is missing
// the 401 has already been written and ok is false.
func currentOperator(c *fiber.Ctx) (op model.Operator, ok bool, err error) {
	op, ok = middleware.CurrentOperator(c)
	if !ok {
		err = c.Status(401).JSON(fiber.Map{"error": "Unauthorized"})
	}
	return op, ok, err
}

// Helper untuk parse UUID dari path param
func parseUUIDParam(c *fiber.Ctx, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params(name))
	return id, err == nil
}

// parseBody decodes and validates a request DTO. It writes the 400 itself and
// reports false when the handler should stop.
func parseBody(c *fiber.Ctx, out interface{}) (bool, error) {
	if err := c.BodyParser(out); err != nil {
		return false, c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}
	if errs := validator.ValidateStruct(out); len(errs) > 0 {
		return false, c.Status(400).JSON(fiber.Map{"error": "Validation failed", "details": errs})
	}
	return true, nil
}
