package model

import "github.com/google/uuid"

// Operator is the authenticated user behind a sale or stock adjustment. Only
// its identity and capabilities matter to the ledger and checkout.
type Operator struct {
	ID         uuid.UUID
	Name       string
	Privileges []string
}

func (o Operator) Can(privilege string) bool {
	for _, p := range o.Privileges {
		if p == privilege {
			return true
		}
	}
	return false
}

// Tables lists every persisted model, in migration order.
var Tables = []interface{}{
	&Privilege{},
	&Role{},
	&User{},
	&Category{},
	&Product{},
	&Transaction{},
	&TransactionItem{},
	&StockChange{},
}
