package tasks

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alxcrm/crm/internal/broker"
	"github.com/alxcrm/crm/internal/crm"
	"github.com/alxcrm/crm/internal/report"
)

type fakeTaskStore struct {
	restocked      []crm.Product
	gotThreshold   int
	gotIncrement   int
	reminders      []crm.OrderReminder
	gotRemindSince time.Time
}

func (f *fakeTaskStore) RestockBelow(ctx context.Context, threshold, increment int) ([]crm.Product, error) {
	f.gotThreshold = threshold
	f.gotIncrement = increment
	return f.restocked, nil
}

func (f *fakeTaskStore) RecentOrders(ctx context.Context, since time.Time) ([]crm.OrderReminder, error) {
	f.gotRemindSince = since
	return f.reminders, nil
}

func newTestSet(t *testing.T, st *fakeTaskStore) (*Set, string) {
	t.Helper()
	dir := t.TempDir()
	j, err := report.NewJournal(dir)
	require.NoError(t, err)
	return New(nil, st, j), dir
}

func TestRestockProductsDefaults(t *testing.T) {
	st := &fakeTaskStore{restocked: []crm.Product{
		{Name: "Keyboard", Stock: 13},
		{Name: "Mouse", Stock: 17},
	}}
	s, dir := newTestSet(t, st)
	s.now = func() time.Time { return time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC) }

	require.NoError(t, s.RestockProducts(context.Background(), broker.Task{Name: StockRestock}))

	assert.Equal(t, DefaultRestockThreshold, st.gotThreshold)
	assert.Equal(t, DefaultRestockIncrement, st.gotIncrement)

	raw, err := os.ReadFile(filepath.Join(dir, report.RestockLogFile))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "2026-08-24 12:00:00 - Restocked Keyboard to 13", lines[0])
	assert.Equal(t, "2026-08-24 12:00:00 - Restocked Mouse to 17", lines[1])
}

func TestRestockProductsPayloadOverrides(t *testing.T) {
	st := &fakeTaskStore{}
	s, _ := newTestSet(t, st)

	task := broker.Task{Name: StockRestock, Payload: []byte(`{"threshold":5,"increment":20}`)}
	require.NoError(t, s.RestockProducts(context.Background(), task))

	assert.Equal(t, 5, st.gotThreshold)
	assert.Equal(t, 20, st.gotIncrement)
}

func TestRemindOrders(t *testing.T) {
	orderID := uuid.New()
	st := &fakeTaskStore{reminders: []crm.OrderReminder{{
		OrderID:       orderID,
		CustomerEmail: "ada@example.com",
		OrderedAt:     time.Date(2026, 8, 20, 9, 30, 0, 0, time.UTC),
	}}}
	s, dir := newTestSet(t, st)
	now := time.Date(2026, 8, 24, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	require.NoError(t, s.RemindOrders(context.Background(), broker.Task{Name: OrdersRemind}))

	assert.Equal(t, now.Add(-DefaultReminderWindow), st.gotRemindSince)

	raw, err := os.ReadFile(filepath.Join(dir, report.ReminderLogFile))
	require.NoError(t, err)
	want := "2026-08-24 08:00:00 - Reminder: order " + orderID.String() + " for ada@example.com placed 2026-08-20"
	assert.Equal(t, want+"\n", string(raw))
}

func TestRemindOrdersWindowOverride(t *testing.T) {
	st := &fakeTaskStore{}
	s, _ := newTestSet(t, st)
	now := time.Date(2026, 8, 24, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	task := broker.Task{Name: OrdersRemind, Payload: []byte(`{"days":1}`)}
	require.NoError(t, s.RemindOrders(context.Background(), task))

	assert.Equal(t, now.Add(-24*time.Hour), st.gotRemindSince)
}

func TestBadPayloadRejected(t *testing.T) {
	s, _ := newTestSet(t, &fakeTaskStore{})

	task := broker.Task{Name: StockRestock, Payload: []byte(`{`)}
	assert.Error(t, s.RestockProducts(context.Background(), task))
}
