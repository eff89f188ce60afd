package escrow

import "github.com/shopspring/decimal"

// feeRate is the operator's commission: 1% of the transaction amount.
var feeRate = decimal.NewFromInt(1).Div(decimal.NewFromInt(100))

// ComputeFee returns the escrow fee for an amount, rounded to 2 decimal
// places. The fee is computed once at creation and fixed thereafter.
func ComputeFee(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(feeRate).Round(2)
}
