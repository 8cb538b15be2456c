package model

import "github.com/shopspring/decimal"

// SalaryRule maps a (service, user) pair to a rate. Rates below 100 are a
// percentage of the service price, anything else is an absolute amount.
type SalaryRule struct {
	ServiceID int64           `json:"serviceId"`
	UserID    UserID          `json:"aspNetUserId"`
	Rate      decimal.Decimal `json:"salary"`
}
