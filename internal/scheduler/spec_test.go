package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alxcrm/crm/internal/broker"
)

func TestParseSpec(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"every 5m", false},
		{"every 12h", false},
		{"daily 08:00", false},
		{"mon 06:00", false},
		{"Monday 06:00", false},
		{"every 5", true},
		{"every 100ms", true},
		{"daily 25:00", true},
		{"daily 08:61", true},
		{"someday 08:00", true},
		{"mon", true},
		{"", true},
		{"mon 06:00 extra", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, err := ParseSpec(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSpecNextInterval(t *testing.T) {
	spec, err := ParseSpec("every 5m")
	require.NoError(t, err)

	after := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, after.Add(5*time.Minute), spec.Next(after))
}

func TestSpecNextDaily(t *testing.T) {
	spec, err := ParseSpec("daily 08:00")
	require.NoError(t, err)

	before := time.Date(2026, 8, 24, 6, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 24, 8, 0, 0, 0, time.UTC), spec.Next(before))

	after := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 25, 8, 0, 0, 0, time.UTC), spec.Next(after))

	// Strictly after: firing exactly at 08:00 schedules the next day.
	at := time.Date(2026, 8, 24, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 25, 8, 0, 0, 0, time.UTC), spec.Next(at))
}

func TestSpecNextWeekly(t *testing.T) {
	spec, err := ParseSpec("mon 06:00")
	require.NoError(t, err)

	// 2026-08-24 is a Monday.
	sunday := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 24, 6, 0, 0, 0, time.UTC), spec.Next(sunday))

	mondayLater := time.Date(2026, 8, 24, 7, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 31, 6, 0, 0, 0, time.UTC), spec.Next(mondayLater))

	mondayEarlier := time.Date(2026, 8, 24, 5, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 24, 6, 0, 0, 0, time.UTC), spec.Next(mondayEarlier))
}

func TestDefaultEntries(t *testing.T) {
	entries, err := DefaultEntries("mon 06:00", 5*time.Minute, 12*time.Hour, "daily 08:00")
	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.Equal(t, "weekly-report", entries[0].Name)
	assert.Equal(t, "report.generate", entries[0].Task)

	_, err = DefaultEntries("bogus", 5*time.Minute, 12*time.Hour, "daily 08:00")
	assert.Error(t, err)
}

func TestSchedulerFiresEntry(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	b := broker.NewWithClient(rdb, 3)

	s := New(b, []Entry{{Name: "heartbeat", Task: "crm.heartbeat", Spec: Every(100 * time.Millisecond)}})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		depth, err := b.Depth(context.Background())
		require.NoError(t, err)
		if depth >= 1 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("scheduled task was not enqueued")
}

func TestSchedulerSkipsHeldLease(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	b := broker.NewWithClient(rdb, 3)

	// Another instance holds the tick lease.
	require.NoError(t, mr.Set("crm:beat:lock:heartbeat", "other"))

	s := New(b, []Entry{{Name: "heartbeat", Task: "crm.heartbeat", Spec: Every(time.Hour)}})
	e := s.entries[0]
	s.fire(context.Background(), e)

	depth, err := b.Depth(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 0, depth)
}
