package handler

import (
	"go-pos-ws/internal/middleware"
	"go-pos-ws/internal/model"
	"go-pos-ws/internal/repository"
	"go-pos-ws/pkg/jwt"

	"github.com/gofiber/fiber/v2"
)

// Routes bundles the handlers mounted under /api/v1.
type Routes struct {
	Auth      *AuthHandler
	Inventory *InventoryHandler
	Cart      *CartHandler
	Dashboard *DashboardHandler
	Users     *UserHandler
	Roles     *RoleHandler

	UserRepo repository.UserRepository
	Tokens   *jwt.Manager
}

func (r Routes) Mount(app *fiber.App) {
	api := app.Group("/api/v1")

	// ============ PUBLIC ROUTES ============
	auth := api.Group("/auth")
	auth.Post("/login", r.Auth.Login)
	auth.Post("/change-password", r.Auth.ChangePassword)
	auth.Post("/validate-token", r.Auth.ValidateToken)

	// ============ PROTECTED ROUTES ============
	protected := api.Group("", middleware.RequireAuth(r.UserRepo, r.Tokens))

	// Dashboard Routes
	reports := middleware.RequirePrivilege(model.PrivReportView)
	protected.Get("/dashboard/stats", reports, r.Dashboard.GetDashboardStats)
	protected.Get("/dashboard/stock-movement", reports, r.Dashboard.GetStockMovement)
	protected.Get("/reports/sales", reports, r.Dashboard.GetSalesReport)

	// Catalog Routes
	protected.Get("/products", r.Inventory.GetProducts)
	protected.Get("/products/:id", r.Inventory.GetProduct)
	protected.Post("/products", middleware.RequirePrivilege(model.PrivProductCreate), r.Inventory.CreateProduct)
	protected.Put("/products/:id", middleware.RequirePrivilege(model.PrivProductUpdate), r.Inventory.UpdateProduct)
	protected.Delete("/products/:id", middleware.RequirePrivilege(model.PrivProductDelete), r.Inventory.DeleteProduct)
	categories := middleware.RequirePrivilege(model.PrivCategoryManage)
	protected.Get("/categories", r.Inventory.GetCategories)
	protected.Post("/categories", categories, r.Inventory.CreateCategory)
	protected.Put("/categories/:id", categories, r.Inventory.UpdateCategory)
	protected.Delete("/categories/:id", categories, r.Inventory.DeleteCategory)

	// Stock Routes (the ledger re-checks stock:adjust itself)
	protected.Post("/products/:id/stock", r.Inventory.AdjustStock)
	protected.Get("/products/:id/stock-history", r.Inventory.GetStockHistory)
	protected.Get("/stock-log", middleware.RequireAnyPrivilege(model.PrivStockAdjust, model.PrivReportView), r.Inventory.GetStockLog)

	// Cart & Checkout Routes (checkout re-checks sale:create itself)
	protected.Get("/cart", r.Cart.GetCart)
	protected.Delete("/cart", r.Cart.ClearCart)
	protected.Post("/cart/items", r.Cart.AddItem)
	protected.Put("/cart/items/:productId", r.Cart.SetItemQuantity)
	protected.Delete("/cart/items/:productId", r.Cart.RemoveItem)
	protected.Post("/checkout", r.Cart.Checkout)

	// Transaction Routes
	receipts := middleware.RequireAnyPrivilege(model.PrivTransactionView, model.PrivReportView)
	protected.Get("/transactions", receipts, r.Dashboard.GetTransactions)
	protected.Get("/transactions/:id", receipts, r.Dashboard.GetTransaction)

	// User & Role Routes
	protected.Get("/users", middleware.RequirePrivilege(model.PrivUserView), r.Users.GetUsers)
	protected.Get("/users/:id", middleware.RequirePrivilege(model.PrivUserView), r.Users.GetUser)
	protected.Post("/users", middleware.RequirePrivilege(model.PrivUserCreate), r.Users.CreateUser)
	protected.Put("/users/:id", middleware.RequirePrivilege(model.PrivUserUpdate), r.Users.UpdateUser)
	protected.Put("/users/:id/password", middleware.RequirePrivilege(model.PrivUserUpdate), r.Users.ResetPassword)
	protected.Put("/users/:id/privileges", middleware.RequirePrivilege(model.PrivUserUpdate), r.Users.UpdateUserPrivileges)
	protected.Delete("/users/:id", middleware.RequirePrivilege(model.PrivUserDelete), r.Users.DeleteUser)
	protected.Get("/roles", r.Roles.GetRoles)
	protected.Get("/privileges", r.Roles.GetPrivileges)
}
