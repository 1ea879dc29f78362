// Package crm defines the domain entities of the CRM: customers, products
// and orders, together with their validation rules and list filters.
package crm

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Cents is a monetary amount in integer cents. Product prices and order
// totals are carried as cents end to end to avoid float drift; the API
// boundary renders them as 2-decimal strings.
type Cents int64

// String renders the amount as a 2-decimal string, e.g. "19.99".
func (c Cents) String() string {
	sign := ""
	v := int64(c)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// Customer is a person or company tracked by the CRM.
type Customer struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Phone string    `json:"phone,omitempty"`
}

// Product is an item available in the store.
type Product struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Price Cents     `json:"-"`
	Stock int       `json:"stock"`
}

// Order is a purchase of one or more products by a customer. The total is
// fixed at creation time from the prices of the ordered products.
type Order struct {
	ID         uuid.UUID   `json:"id"`
	CustomerID uuid.UUID   `json:"customer_id"`
	ProductIDs []uuid.UUID `json:"product_ids"`
	Total      Cents       `json:"-"`
	OrderedAt  time.Time   `json:"order_date"`
}

// Report is one persisted run of the report-generation task.
type Report struct {
	ID          uuid.UUID `json:"id"`
	Customers   int64     `json:"customers"`
	Orders      int64     `json:"orders"`
	Revenue     Cents     `json:"-"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Summary is the live aggregate behind reports and the summary endpoint.
type Summary struct {
	Customers int64 `json:"customers"`
	Orders    int64 `json:"orders"`
	Revenue   Cents `json:"-"`
}

// OrderReminder is the slice of an order the reminder task cares about.
type OrderReminder struct {
	OrderID       uuid.UUID
	CustomerEmail string
	OrderedAt     time.Time
}
