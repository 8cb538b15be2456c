package service

import "github.com/shopspring/decimal"

// percentLimit separates the two meanings of a salary rate: below it the rate
// is a percentage of the service price, from it upwards an absolute amount.
var percentLimit = decimal.NewFromInt(100)

// Payout is what the employee earns for a service performed at price.
func Payout(price, rate decimal.Decimal) decimal.Decimal {
	if rate.LessThan(percentLimit) {
		return price.Mul(rate).Div(percentLimit)
	}
	return rate
}

// ParseRate validates a rate typed into the rate-entry form.
func ParseRate(s string) (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(s)
	if err != nil || !rate.IsPositive() {
		return decimal.Zero, ErrInvalidRate
	}
	return rate, nil
}
