package model

import "github.com/shopspring/decimal"

// AssignedService binds a service performed on an order to the user doing it.
type AssignedService struct {
	ID          int64           `json:"id"`
	ServiceID   int64           `json:"serviceId"`
	WashOrderID int64           `json:"washOrderId"`
	ServiceName string          `json:"serviceName"`
	Price       decimal.Decimal `json:"price"`
	UserID      UserID          `json:"whomAspNetUserId"`
	Salary      decimal.Decimal `json:"salary"`
	Completed   bool            `json:"isCompleted"`
}

type Order struct {
	ID           int64             `json:"id"`
	CarNumber    string            `json:"carNumber"`
	CarBrand     string            `json:"carBrand"`
	CarModel     string            `json:"carModel"`
	TotalPrice   decimal.Decimal   `json:"totalPrice"`
	WashServices []AssignedService `json:"washServices"`
}

// AssignedServiceDetail is an assignment together with the objects it refers to.
type AssignedServiceDetail struct {
	AssignedService
	Service   *Service `json:"service"`
	WashOrder *Order   `json:"washOrder"`
	User      *User    `json:"whomAspNetUser"`
}

// WashServiceRequest is the body of a create-assignment call.
type WashServiceRequest struct {
	ServiceID   int64   `json:"serviceId"`
	WashOrderID int64   `json:"washOrderId"`
	Price       float64 `json:"price"`
	ServiceName string  `json:"serviceName"`
	UserID      UserID  `json:"whomAspNetUserId"`
	Salary      float64 `json:"salary"`
}

// SalarySettingRequest is the body of a create-salary-rule call.
type SalarySettingRequest struct {
	ServiceID int64   `json:"serviceId"`
	UserID    UserID  `json:"aspNetUserId"`
	Salary    float64 `json:"salary"`
}
