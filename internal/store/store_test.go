package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alxcrm/crm/internal/crm"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "crm.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mustCustomer(t *testing.T, s *Store, name, email, phone string) crm.Customer {
	t.Helper()
	c, err := s.CreateCustomer(context.Background(), crm.Customer{Name: name, Email: email, Phone: phone})
	require.NoError(t, err)
	return c
}

func mustProduct(t *testing.T, s *Store, name string, price crm.Cents, stock int) crm.Product {
	t.Helper()
	p, err := s.CreateProduct(context.Background(), crm.Product{Name: name, Price: price, Stock: stock})
	require.NoError(t, err)
	return p
}

func TestOpenAppliesPragmas(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var journalMode string
	require.NoError(t, s.db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var busyTimeout int
	require.NoError(t, s.db.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&busyTimeout))
	assert.Equal(t, 5000, busyTimeout)

	var foreignKeys int
	require.NoError(t, s.db.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&foreignKeys))
	assert.Equal(t, 1, foreignKeys)

	// REFERENCES clauses must actually be enforced.
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO orders (id, customer_id, total_cents, ordered_at) VALUES (?, ?, 0, ?)`,
		uuid.NewString(), uuid.NewString(), time.Now().UTC().Format(time.RFC3339))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FOREIGN KEY constraint failed")
}

func TestCreateCustomer(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := mustCustomer(t, s, "Ada Lovelace", "ada@example.com", "+491701234567")
	require.NotEqual(t, uuid.Nil, c.ID)

	got, err := s.GetCustomer(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c, got)

	_, err = s.CreateCustomer(ctx, crm.Customer{Name: "Other", Email: "ada@example.com"})
	assert.ErrorIs(t, err, crm.ErrDuplicateEmail)

	_, err = s.CreateCustomer(ctx, crm.Customer{Name: "", Email: "x@example.com"})
	assert.ErrorIs(t, err, crm.ErrNameRequired)

	_, err = s.GetCustomer(ctx, uuid.New())
	assert.ErrorIs(t, err, crm.ErrNotFound)
}

func TestBulkCreateCustomersPartial(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCustomer(t, s, "Existing", "taken@example.com", "")

	in := []crm.Customer{
		{Name: "Alice", Email: "alice@example.com"},
		{Name: "", Email: "noname@example.com"},
		{Name: "Taken", Email: "taken@example.com"},
		{Name: "Bob", Email: "bob@example.com", Phone: "+441234567890"},
		{Name: "Dup In Batch", Email: "alice@example.com"},
	}
	created, failures, err := s.BulkCreateCustomers(ctx, in)
	require.NoError(t, err)
	require.Len(t, created, 2)
	require.Len(t, failures, 3)

	assert.Equal(t, 1, failures[0].Index)
	assert.Equal(t, crm.ErrNameRequired.Error(), failures[0].Err)
	assert.Equal(t, 2, failures[1].Index)
	assert.Equal(t, crm.ErrDuplicateEmail.Error(), failures[1].Err)
	assert.Equal(t, 4, failures[2].Index)
	assert.Equal(t, crm.ErrDuplicateEmail.Error(), failures[2].Err)

	// Valid rows are committed despite the failures.
	n, err := s.CountCustomers(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestListCustomersFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCustomer(t, s, "Ada Lovelace", "ada@math.example", "+491701112222")
	mustCustomer(t, s, "Grace Hopper", "grace@navy.example", "+12025550123")
	mustCustomer(t, s, "Adam Smith", "adam@econ.example", "+442073331234")

	list, total, err := s.ListCustomers(ctx, crm.CustomerFilter{Name: "ada"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, list, 2)
	assert.Equal(t, "Ada Lovelace", list[0].Name)
	assert.Equal(t, "Adam Smith", list[1].Name)

	list, total, err = s.ListCustomers(ctx, crm.CustomerFilter{Email: "NAVY"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Grace Hopper", list[0].Name)

	list, total, err = s.ListCustomers(ctx, crm.CustomerFilter{PhonePrefix: "+44"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Adam Smith", list[0].Name)

	list, _, err = s.ListCustomers(ctx, crm.CustomerFilter{OrderBy: "-name"})
	require.NoError(t, err)
	assert.Equal(t, "Grace Hopper", list[0].Name)

	_, _, err = s.ListCustomers(ctx, crm.CustomerFilter{OrderBy: "created_at; DROP TABLE customers"})
	assert.Error(t, err)

	list, total, err = s.ListCustomers(ctx, crm.CustomerFilter{Page: crm.Page{Limit: 2, Offset: 2}})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, list, 1)
}

func TestListCustomersLiteralWildcards(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCustomer(t, s, "a_b Trading", "underscore@example.com", "")
	mustCustomer(t, s, "aXb Trading", "letter@example.com", "")
	mustCustomer(t, s, "100% Organic", "percent@example.com", "")

	// Wildcard characters in the filter match themselves, not any character.
	list, total, err := s.ListCustomers(ctx, crm.CustomerFilter{Name: "a_b"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, "a_b Trading", list[0].Name)

	list, total, err = s.ListCustomers(ctx, crm.CustomerFilter{Name: "100%"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "100% Organic", list[0].Name)

	_, total, err = s.ListCustomers(ctx, crm.CustomerFilter{Name: "%"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestProductsAndRestock(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustProduct(t, s, "Keyboard", 4999, 3)
	mustProduct(t, s, "Monitor", 19999, 25)
	mustProduct(t, s, "Mouse", 1999, 7)

	_, err := s.CreateProduct(ctx, crm.Product{Name: "Free", Price: 0, Stock: 1})
	assert.ErrorIs(t, err, crm.ErrNonPositivePrice)

	min := crm.Cents(2000)
	list, total, err := s.ListProducts(ctx, crm.ProductFilter{PriceMin: &min})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, list, 2)

	stockMax := 10
	list, _, err = s.ListProducts(ctx, crm.ProductFilter{StockMax: &stockMax, OrderBy: "-stock"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Mouse", list[0].Name)

	restocked, err := s.RestockBelow(ctx, 10, 10)
	require.NoError(t, err)
	require.Len(t, restocked, 2)
	assert.Equal(t, "Keyboard", restocked[0].Name)
	assert.Equal(t, 13, restocked[0].Stock)
	assert.Equal(t, "Mouse", restocked[1].Name)
	assert.Equal(t, 17, restocked[1].Stock)

	// Second pass finds nothing below the threshold.
	restocked, err = s.RestockBelow(ctx, 10, 10)
	require.NoError(t, err)
	assert.Empty(t, restocked)
}

func TestCreateOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cust := mustCustomer(t, s, "Ada Lovelace", "ada@example.com", "")
	kb := mustProduct(t, s, "Keyboard", 4999, 3)
	ms := mustProduct(t, s, "Mouse", 1999, 7)

	o, err := s.CreateOrder(ctx, cust.ID, []uuid.UUID{kb.ID, ms.ID, kb.ID})
	require.NoError(t, err)
	assert.Equal(t, crm.Cents(6998), o.Total)
	assert.Len(t, o.ProductIDs, 2)

	got, err := s.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.Total, got.Total)
	assert.ElementsMatch(t, o.ProductIDs, got.ProductIDs)

	_, err = s.CreateOrder(ctx, uuid.New(), []uuid.UUID{kb.ID})
	assert.ErrorIs(t, err, crm.ErrUnknownCustomer)

	_, err = s.CreateOrder(ctx, cust.ID, []uuid.UUID{kb.ID, uuid.New()})
	assert.ErrorIs(t, err, crm.ErrUnknownProduct)

	_, err = s.CreateOrder(ctx, cust.ID, nil)
	assert.ErrorIs(t, err, crm.ErrEmptyOrder)

	// The aborted orders left no partial rows behind.
	_, total, err := s.ListOrders(ctx, crm.OrderFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestListOrdersFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ada := mustCustomer(t, s, "Ada Lovelace", "ada@example.com", "")
	bob := mustCustomer(t, s, "Bob Martin", "bob@example.com", "")
	kb := mustProduct(t, s, "Keyboard", 4999, 10)
	mon := mustProduct(t, s, "Monitor", 19999, 10)

	o1, err := s.CreateOrder(ctx, ada.ID, []uuid.UUID{kb.ID})
	require.NoError(t, err)
	o2, err := s.CreateOrder(ctx, bob.ID, []uuid.UUID{kb.ID, mon.ID})
	require.NoError(t, err)

	list, total, err := s.ListOrders(ctx, crm.OrderFilter{CustomerName: "ada"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, o1.ID, list[0].ID)

	list, total, err = s.ListOrders(ctx, crm.OrderFilter{ProductName: "monitor"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, o2.ID, list[0].ID)

	list, total, err = s.ListOrders(ctx, crm.OrderFilter{ProductID: &kb.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	min := crm.Cents(10000)
	list, total, err = s.ListOrders(ctx, crm.OrderFilter{TotalMin: &min})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, o2.ID, list[0].ID)

	// Default ordering is newest first.
	list, _, err = s.ListOrders(ctx, crm.OrderFilter{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.False(t, list[0].OrderedAt.Before(list[1].OrderedAt))

	list, _, err = s.ListOrders(ctx, crm.OrderFilter{OrderBy: "total"})
	require.NoError(t, err)
	assert.Equal(t, o1.ID, list[0].ID)
}

func TestRecentOrders(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ada := mustCustomer(t, s, "Ada Lovelace", "ada@example.com", "")
	kb := mustProduct(t, s, "Keyboard", 4999, 10)
	o, err := s.CreateOrder(ctx, ada.ID, []uuid.UUID{kb.ID})
	require.NoError(t, err)

	recent, err := s.RecentOrders(ctx, time.Now().Add(-7*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, o.ID, recent[0].OrderID)
	assert.Equal(t, "ada@example.com", recent[0].CustomerEmail)

	recent, err = s.RecentOrders(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestSummaryAndReports(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ada := mustCustomer(t, s, "Ada Lovelace", "ada@example.com", "")
	mustCustomer(t, s, "Bob Martin", "bob@example.com", "")
	kb := mustProduct(t, s, "Keyboard", 4999, 10)

	_, err := s.CreateOrder(ctx, ada.ID, []uuid.UUID{kb.ID})
	require.NoError(t, err)
	_, err = s.CreateOrder(ctx, ada.ID, []uuid.UUID{kb.ID})
	require.NoError(t, err)

	sum, err := s.Summary(ctx, time.Time{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, sum.Customers)
	assert.EqualValues(t, 2, sum.Orders)
	assert.Equal(t, crm.Cents(9998), sum.Revenue)

	sum, err = s.Summary(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 2, sum.Customers)
	assert.EqualValues(t, 0, sum.Orders)
	assert.Equal(t, crm.Cents(0), sum.Revenue)

	last, err := s.LastReportTime(ctx)
	require.NoError(t, err)
	assert.True(t, last.IsZero())

	now := time.Now().UTC().Truncate(time.Second)
	r := crm.Report{ID: uuid.New(), Customers: 2, Orders: 2, Revenue: 9998, GeneratedAt: now}
	require.NoError(t, s.InsertReport(ctx, r))
	require.NoError(t, s.InsertReport(ctx, crm.Report{
		ID: uuid.New(), Customers: 2, Orders: 3, Revenue: 14997, GeneratedAt: now.Add(time.Minute),
	}))

	reports, err := s.ListReports(ctx, 10)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.EqualValues(t, 3, reports[0].Orders)
	assert.Equal(t, r.ID, reports[1].ID)

	last, err = s.LastReportTime(ctx)
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Minute), last)
}
