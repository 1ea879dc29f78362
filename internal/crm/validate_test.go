package crm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateCustomer(t *testing.T) {
	tests := []struct {
		name     string
		customer Customer
		wantErr  error
	}{
		{"valid", Customer{Name: "Alice", Email: "alice@example.com", Phone: "+1234567890"}, nil},
		{"valid without phone", Customer{Name: "Bob", Email: "bob@example.com"}, nil},
		{"missing name", Customer{Email: "x@example.com"}, ErrNameRequired},
		{"whitespace name", Customer{Name: "   ", Email: "x@example.com"}, ErrNameRequired},
		{"name too long", Customer{Name: strings.Repeat("a", 201), Email: "x@example.com"}, ErrNameTooLong},
		{"bad email", Customer{Name: "Carol", Email: "not-an-email"}, ErrInvalidEmail},
		{"empty email", Customer{Name: "Carol"}, ErrInvalidEmail},
		{"phone too short", Customer{Name: "Dan", Email: "dan@example.com", Phone: "+12345"}, ErrInvalidPhone},
		{"phone too long", Customer{Name: "Dan", Email: "dan@example.com", Phone: "+2345678901234567"}, ErrInvalidPhone},
		{"phone with country code 1", Customer{Name: "Dan", Email: "dan@example.com", Phone: "+1202555012345678"}, nil},
		{"phone with letters", Customer{Name: "Dan", Email: "dan@example.com", Phone: "+12345abcde"}, ErrInvalidPhone},
		{"phone without plus", Customer{Name: "Eve", Email: "eve@example.com", Phone: "123456789"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCustomer(tt.customer)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestValidateProduct(t *testing.T) {
	assert.NoError(t, ValidateProduct(Product{Name: "Widget", Price: 1999, Stock: 5}))
	assert.NoError(t, ValidateProduct(Product{Name: "Widget", Price: 1, Stock: 0}))
	assert.ErrorIs(t, ValidateProduct(Product{Price: 100}), ErrNameRequired)
	assert.ErrorIs(t, ValidateProduct(Product{Name: "Free", Price: 0}), ErrNonPositivePrice)
	assert.ErrorIs(t, ValidateProduct(Product{Name: "Refund", Price: -100}), ErrNonPositivePrice)
	assert.ErrorIs(t, ValidateProduct(Product{Name: "Widget", Price: 100, Stock: -1}), ErrNegativeStock)
}

func TestValidateOrder(t *testing.T) {
	assert.ErrorIs(t, ValidateOrder(Order{}), ErrEmptyOrder)
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in      string
		want    Cents
		wantErr bool
	}{
		{"19.99", 1999, false},
		{"19", 1900, false},
		{"0.05", 5, false},
		{"100.5", 10050, false},
		{".99", 99, false},
		{"-3.50", -350, false},
		{"19.999", 0, true},
		{"abc", 0, true},
		{"", 0, true},
		{"19,99", 0, true},
	}
	for _, tt := range tests {
		got, err := ParsePrice(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.in)
			continue
		}
		assert.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestCentsString(t *testing.T) {
	assert.Equal(t, "19.99", Cents(1999).String())
	assert.Equal(t, "0.05", Cents(5).String())
	assert.Equal(t, "0.00", Cents(0).String())
	assert.Equal(t, "-3.50", Cents(-350).String())
}

func TestParseOrderBy(t *testing.T) {
	allowed := map[string]string{"name": "name", "price": "price_cents"}

	col, dir, err := ParseOrderBy("price", "name", allowed)
	assert.NoError(t, err)
	assert.Equal(t, "price_cents", col)
	assert.Equal(t, "ASC", dir)

	col, dir, err = ParseOrderBy("-price", "name", allowed)
	assert.NoError(t, err)
	assert.Equal(t, "price_cents", col)
	assert.Equal(t, "DESC", dir)

	col, dir, err = ParseOrderBy("", "name", allowed)
	assert.NoError(t, err)
	assert.Equal(t, "name", col)
	assert.Equal(t, "ASC", dir)

	_, _, err = ParseOrderBy("stock; DROP TABLE", "name", allowed)
	assert.Error(t, err)
}
