package crm

import (
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
)

// Sentinel errors for domain validation. The API layer maps these onto
// HTTP status codes.
var (
	ErrNameRequired     = errors.New("name is required")
	ErrNameTooLong      = errors.New("name must be at most 200 characters")
	ErrInvalidEmail     = errors.New("invalid email address format")
	ErrDuplicateEmail   = errors.New("email already exists")
	ErrInvalidPhone     = errors.New("invalid phone number format, want +999999999 with up to 15 digits")
	ErrNonPositivePrice = errors.New("price must be a positive number")
	ErrNegativeStock    = errors.New("stock cannot be a negative number")
	ErrUnknownCustomer  = errors.New("customer with the given ID does not exist")
	ErrUnknownProduct   = errors.New("product with the given ID does not exist")
	ErrEmptyOrder       = errors.New("an order must contain at least one product")
	ErrNotFound         = errors.New("not found")
)

// phonePattern matches an optional leading +, an optional country code 1,
// then 9 to 15 digits.
var phonePattern = regexp.MustCompile(`^\+?1?\d{9,15}$`)

const maxNameLen = 200

// ValidateCustomer checks a customer's fields before persistence.
// Phone is optional; email must be parseable as an address.
func ValidateCustomer(c Customer) error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrNameRequired
	}
	if len(c.Name) > maxNameLen {
		return ErrNameTooLong
	}
	if _, err := mail.ParseAddress(c.Email); err != nil || strings.ContainsAny(c.Email, " <>") {
		return ErrInvalidEmail
	}
	if c.Phone != "" && !phonePattern.MatchString(c.Phone) {
		return ErrInvalidPhone
	}
	return nil
}

// ValidateProduct checks a product's fields before persistence.
func ValidateProduct(p Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrNameRequired
	}
	if len(p.Name) > maxNameLen {
		return ErrNameTooLong
	}
	if p.Price <= 0 {
		return ErrNonPositivePrice
	}
	if p.Stock < 0 {
		return ErrNegativeStock
	}
	return nil
}

// ValidateOrder checks the shape of an order request. Existence of the
// customer and products is the store's to verify.
func ValidateOrder(o Order) error {
	if len(o.ProductIDs) == 0 {
		return ErrEmptyOrder
	}
	return nil
}

// ParsePrice converts a decimal string like "19.99" into cents. At most
// two fraction digits are accepted.
func ParsePrice(s string) (Cents, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty price")
	}
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > 2 {
		return 0, fmt.Errorf("price %q has more than two decimal places", s)
	}
	for len(frac) < 2 {
		frac += "0"
	}
	var cents Cents
	for _, part := range []string{whole, frac} {
		for _, r := range part {
			if r < '0' || r > '9' {
				return 0, fmt.Errorf("invalid price %q", s)
			}
		}
	}
	var wholeVal, fracVal int64
	if _, err := fmt.Sscanf(whole, "%d", &wholeVal); err != nil {
		return 0, fmt.Errorf("invalid price %q", s)
	}
	if _, err := fmt.Sscanf(frac, "%d", &fracVal); err != nil {
		return 0, fmt.Errorf("invalid price %q", s)
	}
	cents = Cents(wholeVal*100 + fracVal)
	if neg {
		cents = -cents
	}
	return cents, nil
}
