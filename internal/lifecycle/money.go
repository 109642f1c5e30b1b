package lifecycle

import "github.com/shopspring/decimal"

var half = decimal.NewFromFloat(0.5)

// Deposit returns the upfront share of total: ceil(total*0.5), capped at total
// so that a sub-unit total never produces a deposit larger than the price.
func Deposit(total decimal.Decimal) decimal.Decimal {
	if total.IsNegative() {
		return decimal.Zero
	}
	d := total.Mul(half).Ceil()
	if d.GreaterThan(total) {
		return total
	}
	return d
}

// Remainder returns what is left to pay after the deposit. Deposit+Remainder == total.
func Remainder(total decimal.Decimal) decimal.Decimal {
	if total.IsNegative() {
		return decimal.Zero
	}
	return total.Sub(Deposit(total))
}
