package crm

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Page is limit/offset pagination shared by all list operations.
type Page struct {
	Limit  int
	Offset int
}

// Normalize clamps the page to sane bounds.
func (p Page) Normalize() Page {
	if p.Limit <= 0 || p.Limit > 500 {
		p.Limit = 50
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// CustomerFilter narrows customer listings. Name and email match
// case-insensitive substrings; PhonePrefix matches the start of the
// phone number.
type CustomerFilter struct {
	Name        string
	Email       string
	PhonePrefix string
	OrderBy     string
	Page        Page
}

// ProductFilter narrows product listings by name substring and
// price/stock ranges. Nil bounds are open.
type ProductFilter struct {
	Name     string
	PriceMin *Cents
	PriceMax *Cents
	StockMin *int
	StockMax *int
	OrderBy  string
	Page     Page
}

// OrderFilter narrows order listings by related customer/product names,
// a specific product, total range and date range.
type OrderFilter struct {
	CustomerName string
	ProductName  string
	ProductID    *uuid.UUID
	TotalMin     *Cents
	TotalMax     *Cents
	Since        *time.Time
	Until        *time.Time
	OrderBy      string
	Page         Page
}

// ParseOrderBy validates an ordering key against the allowed columns for
// an entity. A leading '-' selects descending order. It returns the
// column and direction, or the provided default when key is empty.
func ParseOrderBy(key, defaultKey string, allowed map[string]string) (column, direction string, err error) {
	if key == "" {
		key = defaultKey
	}
	direction = "ASC"
	if strings.HasPrefix(key, "-") {
		direction = "DESC"
		key = key[1:]
	}
	column, ok := allowed[key]
	if !ok {
		return "", "", fmt.Errorf("unsupported ordering key %q", key)
	}
	return column, direction, nil
}
