package handler

import (
	"strings"
	"time"

	"go-pos-ws/internal/model"
	"go-pos-ws/internal/repository"
	"go-pos-ws/internal/service"

	"github.com/gofiber/fiber/v2"
)

const dateLayout = "2006-01-02"

type DashboardHandler struct {
	reports service.ReportService
}

func NewDashboardHandler(reports service.ReportService) *DashboardHandler {
	return &DashboardHandler{reports: reports}
}

// GetStockMovement returns stock movement data for charts
// Query params: days (default 7)
func (h *DashboardHandler) GetStockMovement(c *fiber.Ctx) error {
	days := c.QueryInt("days", 7)
	if days <= 0 {
		days = 7
	}

	data, err := h.reports.GetStockMovement(c.UserContext(), days)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"period": days,
		"data":   data,
	})
}

// GetDashboardStats returns overview statistics
func (h *DashboardHandler) GetDashboardStats(c *fiber.Ctx) error {
	stats, err := h.reports.GetDashboardStats(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(stats)
}

// GetSalesReport summarises sales between two dates.
// Query params: range (7d|1m|3m|6m|12m, default 7d) or from/to as YYYY-MM-DD
func (h *DashboardHandler) GetSalesReport(c *fiber.Ctx) error {
	from, to, err := reportRange(c, time.Now())
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}
	report, err := h.reports.GetSalesReport(c.UserContext(), from, to)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(report)
}

func reportRange(c *fiber.Ctx, now time.Time) (time.Time, time.Time, error) {
	if c.Query("from") != "" || c.Query("to") != "" {
		from, err := time.ParseInLocation(dateLayout, c.Query("from"), now.Location())
		if err != nil {
			return time.Time{}, time.Time{}, fiber.NewError(400, "from must be YYYY-MM-DD")
		}
		to := now
		if c.Query("to") != "" {
			if to, err = time.ParseInLocation(dateLayout, c.Query("to"), now.Location()); err != nil {
				return time.Time{}, time.Time{}, fiber.NewError(400, "to must be YYYY-MM-DD")
			}
		}
		return from, to, nil
	}

	switch c.Query("range", "7d") {
	case "1m":
		return now.AddDate(0, -1, 0), now, nil
	case "3m":
		return now.AddDate(0, -3, 0), now, nil
	case "6m":
		return now.AddDate(0, -6, 0), now, nil
	case "12m":
		return now.AddDate(0, -12, 0), now, nil
	default:
		return now.AddDate(0, 0, -7), now, nil
	}
}

// GET /api/v1/transactions?from=&to=&payment_method=&limit=
func (h *DashboardHandler) GetTransactions(c *fiber.Ctx) error {
	filter := repository.TransactionFilter{Limit: c.QueryInt("limit", 100)}
	if raw := c.Query("payment_method"); raw != "" {
		method, ok := model.ParsePaymentMethod(strings.ToLower(raw))
		if !ok {
			return c.Status(400).JSON(fiber.Map{"error": "Unknown payment method"})
		}
		filter.PaymentMethod = method
	}
	if c.Query("from") != "" || c.Query("to") != "" {
		from, to, err := reportRange(c, time.Now())
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": err.Error()})
		}
		filter.From = from
		filter.To = to.AddDate(0, 0, 1)
	}

	transactions, err := h.reports.ListTransactions(c.UserContext(), filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(transactions)
}

// GET /api/v1/transactions/:id
func (h *DashboardHandler) GetTransaction(c *fiber.Ctx) error {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid transaction ID"})
	}
	txn, err := h.reports.GetTransaction(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(txn)
}
