package royalty

import "github.com/shopspring/decimal"

// clientRevenuePrecision is the fixed number of fractional digits every
// computed share is truncated to. Thousands of rows are summed downstream, so
// the arithmetic stays in decimals end to end.
const clientRevenuePrecision = 10

// ComputeClientShare applies the contract PPD to the distributor's revenue
// field: share = gross * ppd / 100, truncated to 10 decimal places.
//
// A negative computed share (distributor data anomalies produce these) falls
// back to the raw revenue field instead of the computed value. Deliberate
// policy; do not "fix" it.
func ComputeClientShare(gross decimal.Decimal, ppd decimal.Decimal) decimal.Decimal {
	share := gross.Mul(ppd).
		Div(decimal.NewFromInt(100)).
		Truncate(clientRevenuePrecision)
	if share.IsNegative() {
		return gross
	}
	return share
}
