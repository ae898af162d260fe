package model

// Privilege represents a permission that can be assigned to users
type Privilege struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Code string `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"` // e.g., "sale:create"
	Name string `gorm:"type:varchar(100)" json:"name"`                     // e.g., "Ring Up Sales"
}

const (
	PrivSaleCreate      = "sale:create"
	PrivStockAdjust     = "stock:adjust"
	PrivProductCreate   = "product:create"
	PrivProductUpdate   = "product:update"
	PrivProductDelete   = "product:delete"
	PrivCategoryManage  = "category:manage"
	PrivTransactionView = "transaction:view"
	PrivReportView      = "report:view"
	PrivUserView        = "user:view"
	PrivUserCreate      = "user:create"
	PrivUserUpdate      = "user:update"
	PrivUserDelete      = "user:delete"
)

// Default privileges for the system
var DefaultPrivileges = []Privilege{
	// Selling
	{Code: PrivSaleCreate, Name: "Ring Up Sales"},
	{Code: PrivTransactionView, Name: "View Transactions"},
	// Catalog and inventory
	{Code: PrivProductCreate, Name: "Create Product"},
	{Code: PrivProductUpdate, Name: "Update Product"},
	{Code: PrivProductDelete, Name: "Delete Product"},
	{Code: PrivCategoryManage, Name: "Manage Categories"},
	{Code: PrivStockAdjust, Name: "Adjust Stock"},
	// Back office
	{Code: PrivReportView, Name: "View Reports"},
	{Code: PrivUserView, Name: "View Users"},
	{Code: PrivUserCreate, Name: "Create User"},
	{Code: PrivUserUpdate, Name: "Update User"},
	{Code: PrivUserDelete, Name: "Delete User"},
}

// CashierPrivileges is what the EMPLOYEE role gets: sell and look up sales, nothing else.
var CashierPrivileges = []string{PrivSaleCreate, PrivTransactionView}
