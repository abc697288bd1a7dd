package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire format of order dates.
const DateLayout = "2006-01-02"

type Customer struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Product struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Order owns its product association but not the referenced records.
// TotalAmount is the sum of product prices when the order was created and
// is never recomputed.
type Order struct {
	ID          int64           `json:"id"`
	Customer    Customer        `json:"customer"`
	Products    []Product       `json:"products"`
	OrderDate   time.Time       `json:"order_date"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ProductIDs returns the ids of the order's products in order.
func (o *Order) ProductIDs() []int64 {
	ids := make([]int64, len(o.Products))
	for i, p := range o.Products {
		ids[i] = p.ID
	}
	return ids
}

type CustomerInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

type ProductInput struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
}

// OrderInput references existing records by id. OrderDate is optional and
// uses DateLayout.
type OrderInput struct {
	CustomerID int64   `json:"customer"`
	ProductIDs []int64 `json:"products"`
	OrderDate  string  `json:"order_date,omitempty"`
}

// Summary aggregates the whole store for reporting.
type Summary struct {
	Customers int64           `json:"customers"`
	Orders    int64           `json:"orders"`
	Revenue   decimal.Decimal `json:"revenue"`
}
