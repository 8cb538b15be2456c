package model

import "github.com/shopspring/decimal"

// Service is an entry of the wash service catalog.
type Service struct {
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}
