package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-pos-ws/internal/cache"
	"go-pos-ws/internal/config"
	"go-pos-ws/internal/events"
	"go-pos-ws/internal/handler"
	"go-pos-ws/internal/model"
	"go-pos-ws/internal/repository"
	"go-pos-ws/internal/repository/memory"
	"go-pos-ws/internal/seed"
	"go-pos-ws/internal/service"
	"go-pos-ws/internal/ws"
	"go-pos-ws/pkg/database"
	"go-pos-ws/pkg/jwt"
	"go-pos-ws/pkg/logger"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	jsoniter "github.com/json-iterator/go"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// stores is the persistence the services are wired against: postgres when
// configured, otherwise the in-memory store.
type stores struct {
	uow          repository.UnitOfWork
	products     repository.ProductRepository
	categories   repository.CategoryRepository
	transactions repository.TransactionRepository
	stockChanges repository.StockChangeRepository
	users        repository.UserRepository
	roles        repository.RoleRepository
	privileges   repository.PrivilegeRepository
}

func openStores(cfg config.Config) stores {
	if !cfg.UsesDatabase() {
		zap.L().Warn("no database configured, using the in-memory store (data is lost on restart)")
		m := memory.New()
		return stores{
			uow:          m,
			products:     m.Products(),
			categories:   m.Categories(),
			transactions: m.Transactions(),
			stockChanges: m.StockChanges(),
			users:        m.Users(),
			roles:        m.Roles(),
			privileges:   m.Privileges(),
		}
	}

	db, err := database.ConnectDB(cfg.DatabaseURL, cfg.LogMode != "production")
	if err != nil {
		zap.L().Fatal("failed to connect to database", zap.Error(err))
	}
	// Auto Migrate (Hati-hati di production, sebaiknya pakai tools migrasi terpisah)
	if err := db.AutoMigrate(model.Tables...); err != nil {
		zap.L().Fatal("database migration failed", zap.Error(err))
	}
	return stores{
		uow:          repository.NewUnitOfWork(db),
		products:     repository.NewProductRepo(db),
		categories:   repository.NewCategoryRepo(db),
		transactions: repository.NewTransactionRepo(db),
		stockChanges: repository.NewStockChangeRepo(db),
		users:        repository.NewUserRepo(db),
		roles:        repository.NewRoleRepo(db),
		privileges:   repository.NewPrivilegeRepo(db),
	}
}

func openProductCache(cfg config.Config) cache.ProductCache {
	if cfg.RedisAddr == "" {
		return cache.NoopProductCache{}
	}
	c := cache.NewRedisProductCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Ping(ctx); err != nil {
		zap.L().Warn("redis unavailable, product cache disabled", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		_ = c.Close()
		return cache.NoopProductCache{}
	}
	return c
}

func main() {
	// 1. Load Env
	envErr := godotenv.Load()
	cfg := config.Load()

	if _, err := logger.Setup(cfg.LogMode, cfg.LogFile); err != nil {
		panic(err)
	}
	defer func() { _ = zap.L().Sync() }()
	if envErr != nil {
		zap.L().Info(".env file not found, relying on system env")
	}

	// 2. Setup persistence and seed privileges, roles, and admin user
	st := openStores(cfg)
	if err := seed.Run(seed.Repos{Privileges: st.privileges, Roles: st.roles, Users: st.users}, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		zap.L().Warn("seeding failed", zap.Error(err))
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// 3. Events and WebSocket Hub
	bus := events.New()
	wsHub := ws.NewHub()
	go wsHub.Run(ctx)
	if err := wsHub.Attach(bus); err != nil {
		zap.L().Fatal("ws hub subscribe failed", zap.Error(err))
	}

	// 4. Dependency Injection (Wiring Layers)
	tokens := jwt.NewManager(cfg.JWTSecret, cfg.TokenTTL)
	if cfg.JWTSecret == "" {
		zap.L().Warn("JWT_SECRET not set, using the built-in development secret")
	}
	checkoutCfg := service.CheckoutConfig{
		TaxRate:          cfg.VATRate,
		PricesIncludeTax: cfg.PricesIncludeTax,
		CashShortfall:    service.CashShortfallPolicy(cfg.CashShortfall),
	}

	productCache := openProductCache(cfg)
	ledger := service.NewLedger(st.uow, st.stockChanges, bus)
	checkout := service.NewCheckoutService(st.uow, ledger, bus, checkoutCfg)
	carts := service.NewCartService(st.products, checkout, checkoutCfg)
	catalog := service.NewCatalogService(st.products, st.categories, st.uow, ledger, productCache, cfg.CatalogTTL, bus)
	reports := service.NewReportService(st.products, st.transactions, st.stockChanges)
	authService := service.NewAuthService(st.users, tokens)

	// 5. Idle carts are dropped in the background
	sweeper := cron.New()
	if _, err := sweeper.AddFunc("@every 1m", func() { carts.SweepIdle(cfg.CartIdleTTL) }); err != nil {
		zap.L().Fatal("cart sweeper schedule failed", zap.Error(err))
	}
	sweeper.Start()

	// 6. Setup Fiber
	app := fiber.New(fiber.Config{
		AppName:     cfg.AppName,
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,
	})

	// Middleware
	app.Use(fiberlogger.New()) // Logging request
	app.Use(recover.New())     // Panic recovery
	app.Use(cors.New())        // CORS

	// 7. Routes
	handler.Routes{
		Auth:      handler.NewAuthHandler(authService),
		Inventory: handler.NewInventoryHandler(catalog, ledger),
		Cart:      handler.NewCartHandler(carts),
		Dashboard: handler.NewDashboardHandler(reports),
		Users:     handler.NewUserHandler(service.NewUserService(st.users, st.privileges, st.roles)),
		Roles:     handler.NewRoleHandler(st.roles, st.privileges),
		UserRepo:  st.users,
		Tokens:    tokens,
	}.Mount(app)

	// WebSocket Route
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})
	app.Get("/ws", websocket.New(func(c *websocket.Conn) {
		wsHub.Register <- c
		defer func() { wsHub.Unregister <- c }()

		for {
			// Keep alive loop
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
	}))

	// 8. Graceful Shutdown
	go func() {
		if err := app.Listen(cfg.Address()); err != nil {
			zap.L().Panic("server stopped", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zap.L().Info("shutting down server")
	<-sweeper.Stop().Done()
	if err := app.Shutdown(); err != nil {
		zap.L().Error("server forced to shutdown", zap.Error(err))
	}
	stop()
	bus.WaitAsync()

	zap.L().Info("server exited")
}
