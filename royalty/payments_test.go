package royalty

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestBalanceDeltaIsRelative(t *testing.T) {
	amount := decimal.RequireFromString("925.875")
	expr := balanceDelta(amount)
	if expr.SQL != "amount + ?" {
		t.Fatalf("SQL = %q, want a delta applied to the stored value", expr.SQL)
	}
	if len(expr.Vars) != 1 {
		t.Fatalf("vars = %v", expr.Vars)
	}
	if v := expr.Vars[0].(decimal.Decimal); !v.Equal(amount) {
		t.Errorf("delta = %s, want %s", v, amount)
	}
}

func TestPaymentReversalNetsToZero(t *testing.T) {
	amount := decimal.RequireFromString("0.0487333333")
	credit := balanceDelta(amount).Vars[0].(decimal.Decimal)
	debit := balanceDelta(amount.Neg()).Vars[0].(decimal.Decimal)
	if !credit.Add(debit).IsZero() {
		t.Errorf("credit %s + reversal %s != 0", credit, debit)
	}
}
