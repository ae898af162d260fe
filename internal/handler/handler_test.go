package handler

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"go-pos-ws/internal/events"
	"go-pos-ws/internal/model"
	"go-pos-ws/internal/repository"
	"go-pos-ws/internal/repository/memory"
	"go-pos-ws/internal/service"
	"go-pos-ws/pkg/jwt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type fixture struct {
	app      *fiber.App
	store    *memory.Store
	employee uint
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	bus := events.New()
	tokens := jwt.NewManager("handler-test", time.Hour)
	cfg := service.DefaultCheckoutConfig()

	ledger := service.NewLedger(store, store.StockChanges(), bus)
	checkout := service.NewCheckoutService(store, ledger, bus, cfg)
	catalog := service.NewCatalogService(store.Products(), store.Categories(), store, ledger, nil, time.Minute, bus)
	reports := service.NewReportService(store.Products(), store.Transactions(), store.StockChanges())

	if err := store.Privileges().SeedDefaults(); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := store.Roles().SeedDefaults(); err != nil {
		t.Fatalf("seed roles: %v", err)
	}
	employee, err := store.Roles().FindByCode(model.RoleEmployee)
	if err != nil {
		t.Fatalf("employee role: %v", err)
	}
	all, _ := store.Privileges().FindAll()
	cashierPrivileges, _ := store.Privileges().FindByCodes(model.CashierPrivileges)
	addUser(t, store, "owner@shop.test", "Owner", all)
	addUser(t, store, "till@shop.test", "Till", cashierPrivileges)

	app := fiber.New(fiber.Config{JSONEncoder: json.Marshal, JSONDecoder: json.Unmarshal})
	Routes{
		Auth:      NewAuthHandler(service.NewAuthService(store.Users(), tokens)),
		Inventory: NewInventoryHandler(catalog, ledger),
		Cart:      NewCartHandler(service.NewCartService(store.Products(), checkout, cfg)),
		Dashboard: NewDashboardHandler(reports),
		Users:     NewUserHandler(service.NewUserService(store.Users(), store.Privileges(), store.Roles())),
		Roles:     NewRoleHandler(store.Roles(), store.Privileges()),
		UserRepo:  store.Users(),
		Tokens:    tokens,
	}.Mount(app)
	return &fixture{app: app, store: store, employee: employee.ID}
}

func addUser(t *testing.T, store *memory.Store, email, name string, privileges []model.Privilege) {
	t.Helper()
	u := &model.User{Email: email, FullName: name, IsActive: true, Privileges: privileges}
	if err := u.SetPassword("password1"); err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := store.Users().Create(u); err != nil {
		t.Fatalf("create user: %v", err)
	}
}

func (f *fixture) do(t *testing.T, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if s, ok := body.(string); ok {
		reader = bytes.NewBufferString(s)
	} else if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := f.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	out := map[string]interface{}{}
	if len(raw) > 0 && raw[0] == '{' {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
	}
	return resp.StatusCode, out
}

// getJSON decodes a list response into out and returns the status code.
func (f *fixture) getJSON(t *testing.T, path, token string, out interface{}) int {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := f.app.Test(req, -1)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == 200 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return resp.StatusCode
}

func (f *fixture) login(t *testing.T, email string) string {
	t.Helper()
	code, body := f.do(t, "POST", "/api/v1/auth/login", "", fiber.Map{"email": email, "password": "password1"})
	if code != 200 {
		t.Fatalf("login %s: %d %v", email, code, body)
	}
	return body["token"].(string)
}

func (f *fixture) product(t *testing.T, token, name, price string, stock int) string {
	t.Helper()
	code, body := f.do(t, "POST", "/api/v1/products", token, fiber.Map{
		"name": name, "price": price, "cost_price": "1.00", "initial_stock": stock,
	})
	if code != 201 {
		t.Fatalf("create product: %d %v", code, body)
	}
	return body["data"].(map[string]interface{})["id"].(string)
}

func TestCheckoutFlow(t *testing.T) {
	f := newFixture(t)
	owner := f.login(t, "owner@shop.test")
	till := f.login(t, "till@shop.test")
	id := f.product(t, owner, "Lamp", "100.00", 2)

	code, body := f.do(t, "POST", "/api/v1/cart/items", till, fiber.Map{"product_id": id, "quantity": 1})
	if code != 200 || body["total"] != "100" || body["tax_amount"] != "10.71" {
		t.Fatalf("add item: %d %v", code, body)
	}

	code, body = f.do(t, "POST", "/api/v1/checkout", till, fiber.Map{"payment_method": "cash", "cash_received": "150.00"})
	if code != 201 {
		t.Fatalf("checkout: %d %v", code, body)
	}
	txn := body["data"].(map[string]interface{})["transaction"].(map[string]interface{})
	if txn["change_amount"] != "50" || txn["taxable_base"] != "89.29" {
		t.Fatalf("unexpected transaction %v", txn)
	}

	p, _ := f.store.Products().FindByID(context.Background(), uuid.MustParse(id))
	if p.Stock != 1 {
		t.Fatalf("stock = %d, want 1", p.Stock)
	}

	code, body = f.do(t, "GET", "/api/v1/cart", till, nil)
	if code != 200 || len(body["lines"].([]interface{})) != 0 {
		t.Fatalf("cart not cleared: %d %v", code, body)
	}
}

func TestCheckoutErrorStatuses(t *testing.T) {
	f := newFixture(t)
	owner := f.login(t, "owner@shop.test")
	till := f.login(t, "till@shop.test")
	id := f.product(t, owner, "Lamp", "100.00", 1)

	if code, _ := f.do(t, "POST", "/api/v1/checkout", till, fiber.Map{"payment_method": "card"}); code != 400 {
		t.Fatalf("empty cart: %d", code)
	}
	if code, _ := f.do(t, "POST", "/api/v1/cart/items", till, fiber.Map{"product_id": uuid.NewString()}); code != 404 {
		t.Fatalf("unknown product: %d", code)
	}
	if code, _ := f.do(t, "POST", "/api/v1/cart/items", till, `{"product_id":`); code != 400 {
		t.Fatalf("broken json: %d", code)
	}

	if code, _ := f.do(t, "POST", "/api/v1/cart/items", till, fiber.Map{"product_id": id}); code != 200 {
		t.Fatalf("add: %d", code)
	}
	code, body := f.do(t, "POST", "/api/v1/cart/items", till, fiber.Map{"product_id": id})
	if code != 409 || body["available"] != float64(1) {
		t.Fatalf("out of stock: %d %v", code, body)
	}
	if code, _ := f.do(t, "POST", "/api/v1/checkout", till, fiber.Map{"payment_method": "cash", "cash_received": "99.99"}); code != 402 {
		t.Fatalf("short cash: %d", code)
	}
	if code, _ := f.do(t, "POST", "/api/v1/checkout", till, fiber.Map{"payment_method": "barter"}); code != 400 {
		t.Fatalf("unknown method: %d", code)
	}
}

func TestCheckoutRequestValidation(t *testing.T) {
	f := newFixture(t)
	owner := f.login(t, "owner@shop.test")
	till := f.login(t, "till@shop.test")
	id := f.product(t, owner, "Lamp", "100.00", 3)
	if code, _ := f.do(t, "POST", "/api/v1/cart/items", till, fiber.Map{"product_id": id}); code != 200 {
		t.Fatalf("add: %d", code)
	}

	long := string(bytes.Repeat([]byte("a"), 256))
	cases := []struct {
		name string
		body fiber.Map
		tag  string
	}{
		{"unknown method", fiber.Map{"payment_method": "barter"}, "payment_method"},
		{"missing method", fiber.Map{}, "required"},
		{"negative cash", fiber.Map{"payment_method": "cash", "cash_received": "-5.00"}, "money"},
		{"sub-cent cash", fiber.Map{"payment_method": "cash", "cash_received": "150.005"}, "money"},
		{"long customer name", fiber.Map{"payment_method": "card", "customer_name": long}, "max"},
	}
	for _, tc := range cases {
		code, body := f.do(t, "POST", "/api/v1/checkout", till, tc.body)
		if code != 400 || body["error"] != "Validation failed" {
			t.Fatalf("%s: %d %v", tc.name, code, body)
		}
		details := body["details"].([]interface{})
		if got := details[0].(map[string]interface{})["Tag"]; got != tc.tag {
			t.Fatalf("%s: failed on %v, want %s", tc.name, got, tc.tag)
		}
	}

	// nothing was sold and the cart is intact
	code, body := f.do(t, "GET", "/api/v1/cart", till, nil)
	if code != 200 || len(body["lines"].([]interface{})) != 1 {
		t.Fatalf("cart changed: %d %v", code, body)
	}
	p, _ := f.store.Products().FindByID(context.Background(), uuid.MustParse(id))
	if p.Stock != 3 {
		t.Fatalf("stock = %d, want 3", p.Stock)
	}
}

func TestStockAdjustRequiresPrivilege(t *testing.T) {
	f := newFixture(t)
	owner := f.login(t, "owner@shop.test")
	till := f.login(t, "till@shop.test")
	id := f.product(t, owner, "Rice", "10.00", 4)
	path := "/api/v1/products/" + id + "/stock"

	if code, _ := f.do(t, "POST", path, till, fiber.Map{"mode": "remove", "quantity": 1}); code != 403 {
		t.Fatalf("cashier adjust: %d", code)
	}
	code, body := f.do(t, "POST", path, owner, fiber.Map{"mode": "add", "quantity": 6, "unit_cost": "2.00", "note": "Delivery"})
	if code != 200 {
		t.Fatalf("owner adjust: %d %v", code, body)
	}
	if code, _ := f.do(t, "POST", path, owner, fiber.Map{"mode": "steal", "quantity": 1}); code != 400 {
		t.Fatalf("bad mode: %d", code)
	}

	req := httptest.NewRequest("GET", "/api/v1/products/"+id+"/stock-history", nil)
	req.Header.Set("Authorization", "Bearer "+owner)
	resp, err := f.app.Test(req, -1)
	if err != nil || resp.StatusCode != 200 {
		t.Fatalf("history: %v %v", resp, err)
	}
	var history []model.StockChange
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(history) != 2 || history[0].Delta != 6 || history[0].StockAfter != 10 {
		t.Fatalf("unexpected history %+v", history)
	}
}

func TestCatalogEditRoutes(t *testing.T) {
	f := newFixture(t)
	owner := f.login(t, "owner@shop.test")
	till := f.login(t, "till@shop.test")

	code, body := f.do(t, "POST", "/api/v1/categories", owner, fiber.Map{"name": "Drinks"})
	if code != 201 {
		t.Fatalf("create category: %d %v", code, body)
	}
	drinks := body["data"].(map[string]interface{})["id"].(string)
	code, body = f.do(t, "POST", "/api/v1/products", owner, fiber.Map{
		"name": "Iced Tea", "price": "5.00", "cost_price": "2.00", "category_id": drinks, "initial_stock": 3,
	})
	if code != 201 {
		t.Fatalf("create tea: %d %v", code, body)
	}
	tea := body["data"].(map[string]interface{})["id"].(string)
	f.product(t, owner, "Teapot", "40.00", 1)
	f.product(t, owner, "Lamp", "100.00", 1)

	var products []model.Product
	if code := f.getJSON(t, "/api/v1/products?search=TEA", till, &products); code != 200 || len(products) != 2 {
		t.Fatalf("search: %d %d products", code, len(products))
	}
	if code := f.getJSON(t, "/api/v1/products?search=tea&category_id="+drinks, till, &products); code != 200 || len(products) != 1 || products[0].ID.String() != tea {
		t.Fatalf("search in category: %d %+v", code, products)
	}
	if code, _ := f.do(t, "GET", "/api/v1/products?category_id=nope", till, nil); code != 400 {
		t.Fatalf("bad category filter: %d", code)
	}

	if code, _ := f.do(t, "PUT", "/api/v1/categories/"+drinks, till, fiber.Map{"name": "Beverages"}); code != 403 {
		t.Fatalf("cashier rename: %d", code)
	}
	if code, body := f.do(t, "PUT", "/api/v1/categories/"+drinks, owner, fiber.Map{"name": "Beverages"}); code != 200 {
		t.Fatalf("rename: %d %v", code, body)
	}

	if code, _ := f.do(t, "DELETE", "/api/v1/products/"+tea, till, nil); code != 403 {
		t.Fatalf("cashier delete: %d", code)
	}
	if code, body := f.do(t, "DELETE", "/api/v1/products/"+tea, owner, nil); code != 200 {
		t.Fatalf("delete product: %d %v", code, body)
	}
	if code, _ := f.do(t, "GET", "/api/v1/products/"+tea, owner, nil); code != 404 {
		t.Fatalf("deleted product still served: %d", code)
	}

	if code, _ := f.do(t, "DELETE", "/api/v1/categories/"+drinks, owner, nil); code != 200 {
		t.Fatalf("delete category: %d", code)
	}
	if code, _ := f.do(t, "DELETE", "/api/v1/categories/"+drinks, owner, nil); code != 404 {
		t.Fatalf("second delete: %d", code)
	}
}

func TestStockLogRoute(t *testing.T) {
	f := newFixture(t)
	owner := f.login(t, "owner@shop.test")
	till := f.login(t, "till@shop.test")
	rice := f.product(t, owner, "Rice", "10.00", 4)
	salt := f.product(t, owner, "Salt", "2.00", 9)

	if code, _ := f.do(t, "POST", "/api/v1/products/"+rice+"/stock", owner, fiber.Map{"mode": "remove", "quantity": 1, "note": "Spilled"}); code != 200 {
		t.Fatalf("adjust: %d", code)
	}

	var log []model.StockChange
	if code := f.getJSON(t, "/api/v1/stock-log", owner, &log); code != 200 {
		t.Fatalf("stock log: %d", code)
	}
	if len(log) != 3 || log[0].Note != "Spilled" || log[1].ProductID.String() != salt {
		t.Fatalf("unexpected log %+v", log)
	}
	if code := f.getJSON(t, "/api/v1/stock-log?limit=1", owner, &log); code != 200 || len(log) != 1 {
		t.Fatalf("limited log: %d %d rows", code, len(log))
	}
	if code, _ := f.do(t, "GET", "/api/v1/stock-log", till, nil); code != 403 {
		t.Fatalf("cashier stock log: %d", code)
	}
}

func TestUserAdministrationRoutes(t *testing.T) {
	f := newFixture(t)
	owner := f.login(t, "owner@shop.test")
	till := f.login(t, "till@shop.test")
	self, _ := f.store.Users().FindByEmail("owner@shop.test")

	newUser := fiber.Map{"email": "kasir@shop.test", "password": "secret1", "full_name": "Kasir", "role_id": f.employee}
	if code, _ := f.do(t, "POST", "/api/v1/users", till, newUser); code != 403 {
		t.Fatalf("cashier create: %d", code)
	}
	code, body := f.do(t, "POST", "/api/v1/users", owner, newUser)
	if code != 201 {
		t.Fatalf("create user: %d %v", code, body)
	}
	id := body["data"].(map[string]interface{})["id"].(string)
	if code, _ := f.do(t, "POST", "/api/v1/users", owner, newUser); code != 400 {
		t.Fatalf("duplicate email: %d", code)
	}
	if code, _ := f.do(t, "POST", "/api/v1/users", owner, fiber.Map{"email": "not-an-email", "password": "secret1", "full_name": "X", "role_id": f.employee}); code != 400 {
		t.Fatalf("bad email: %d", code)
	}

	code, body = f.do(t, "PUT", "/api/v1/users/"+id, owner, fiber.Map{"email": "kasir@shop.test", "full_name": "Kasir Pagi", "role_id": f.employee})
	if code != 200 || body["data"].(map[string]interface{})["full_name"] != "Kasir Pagi" {
		t.Fatalf("update user: %d %v", code, body)
	}

	code, body = f.do(t, "POST", "/api/v1/auth/login", "", fiber.Map{"email": "kasir@shop.test", "password": "secret1"})
	if code != 200 {
		t.Fatalf("new user login: %d %v", code, body)
	}
	session := body["token"].(string)
	if code, _ := f.do(t, "PUT", "/api/v1/users/"+id+"/password", owner, fiber.Map{"password": "fresh12"}); code != 200 {
		t.Fatalf("reset password: %d", code)
	}
	if code, _ := f.do(t, "GET", "/api/v1/cart", session, nil); code != 401 {
		t.Fatalf("session survived a password reset: %d", code)
	}
	if code, _ := f.do(t, "POST", "/api/v1/auth/login", "", fiber.Map{"email": "kasir@shop.test", "password": "fresh12"}); code != 200 {
		t.Fatalf("login with reset password: %d", code)
	}

	if code, _ := f.do(t, "PUT", "/api/v1/users/"+id+"/privileges", owner, fiber.Map{"privileges": []string{"shop:burn"}}); code != 400 {
		t.Fatalf("unknown privilege: %d", code)
	}
	code, body = f.do(t, "DELETE", "/api/v1/users/"+self.ID.String(), owner, nil)
	if code != 400 || body["error"] != service.ErrCannotDeleteSelf.Error() {
		t.Fatalf("self delete: %d %v", code, body)
	}
	if code, _ := f.do(t, "DELETE", "/api/v1/users/"+id, till, nil); code != 403 {
		t.Fatalf("cashier delete: %d", code)
	}
	if code, _ := f.do(t, "DELETE", "/api/v1/users/"+id, owner, nil); code != 200 {
		t.Fatalf("delete user: %d", code)
	}
	if code, _ := f.do(t, "GET", "/api/v1/users/"+id, owner, nil); code != 404 {
		t.Fatalf("deleted user still served: %d", code)
	}
}

func TestRoutesRequireAuth(t *testing.T) {
	f := newFixture(t)
	till := f.login(t, "till@shop.test")

	if code, _ := f.do(t, "GET", "/api/v1/cart", "", nil); code != 401 {
		t.Fatalf("no token: %d", code)
	}
	if code, _ := f.do(t, "GET", "/api/v1/dashboard/stats", till, nil); code != 403 {
		t.Fatalf("cashier dashboard: %d", code)
	}
	if code, _ := f.do(t, "GET", "/api/v1/transactions", till, nil); code != 200 {
		t.Fatalf("cashier receipts: %d", code)
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{service.ErrEmptyCart, 400},
		{errors.Wrap(service.ErrInvalidArgument, "x"), 400},
		{errors.Wrap(service.ErrProductNotFound, "x"), 404},
		{service.ErrTransactionNotFound, 404},
		{errors.Wrap(service.ErrCategoryNotFound, "x"), 404},
		{service.ErrUserNotFound, 404},
		{service.ErrCannotDeleteSelf, 400},
		{service.ErrEmailExists, 400},
		{&service.StockError{Requested: 2, Available: 1}, 409},
		{service.ErrInsufficientPayment, 402},
		{service.ErrForbidden, 403},
		{&service.StoreError{Op: "checkout", Err: repository.ErrNotFound}, 503},
		{errors.New("boom"), 500},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Fatalf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
