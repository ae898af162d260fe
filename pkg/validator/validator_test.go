package validator

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type moneyInput struct {
	Amount   decimal.Decimal  `validate:"money"`
	Tendered *decimal.Decimal `validate:"omitempty,money"`
}

func TestMoneyTag(t *testing.T) {
	cases := []struct {
		amount string
		ok     bool
	}{
		{"0", true},
		{"12.50", true},
		{"12.505", false},
		{"-1", false},
	}
	for _, tc := range cases {
		errs := ValidateStruct(moneyInput{Amount: decimal.RequireFromString(tc.amount)})
		if (len(errs) == 0) != tc.ok {
			t.Fatalf("amount %s: got %d errors, want ok=%v", tc.amount, len(errs), tc.ok)
		}
	}

	bad := decimal.RequireFromString("0.001")
	if errs := ValidateStruct(moneyInput{Tendered: &bad}); len(errs) != 1 || errs[0].Tag != "money" {
		t.Fatalf("expected money failure on tendered, got %+v", errs)
	}
}

type itemInput struct {
	ProductID uuid.UUID `validate:"uuid_required"`
	Method    string    `validate:"payment_method"`
}

func TestUUIDRequiredAndPaymentMethod(t *testing.T) {
	errs := ValidateStruct(itemInput{Method: "bitcoin"})
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(errs))
	}

	if errs := ValidateStruct(itemInput{ProductID: uuid.New(), Method: "gcash"}); len(errs) != 0 {
		t.Fatalf("unexpected errors: %+v", errs)
	}
}
