package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthAlways200(t *testing.T) {
	m := NewManager("test")
	m.RegisterChecker(NewPingChecker("redis", time.Second, func(ctx context.Context) error {
		return errors.New("connection refused")
	}))

	rec := httptest.NewRecorder()
	m.ServeHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "test", resp.Version)
	assert.Empty(t, resp.Checks)
}

func TestHealthVerboseIncludesChecks(t *testing.T) {
	m := NewManager("test")
	m.RegisterChecker(NewPingChecker("database", time.Second, func(ctx context.Context) error {
		return nil
	}))

	rec := httptest.NewRecorder()
	m.ServeHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz?verbose=true", nil))

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Contains(t, resp.Checks, "database")
	assert.Equal(t, StatusHealthy, resp.Checks["database"].Status)
}

func TestReadyUnhealthyDependency(t *testing.T) {
	m := NewManager("test")
	m.RegisterChecker(NewPingChecker("redis", time.Second, func(ctx context.Context) error {
		return errors.New("connection refused")
	}))

	rec := httptest.NewRecorder()
	m.ServeReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Ready)
	assert.Equal(t, StatusUnhealthy, resp.Status)
}

func TestReadyDegradedStillReady(t *testing.T) {
	m := NewManager("test")
	m.RegisterChecker(NewLastReportChecker(8*24*time.Hour, func(ctx context.Context) (time.Time, error) {
		return time.Time{}, nil
	}))

	resp := m.Ready(context.Background())
	assert.True(t, resp.Ready)
	assert.Equal(t, StatusDegraded, resp.Status)
}

func TestLastReportChecker(t *testing.T) {
	tests := []struct {
		name string
		last time.Time
		err  error
		want Status
	}{
		{"fresh", time.Now().Add(-time.Hour), nil, StatusHealthy},
		{"stale", time.Now().Add(-9 * 24 * time.Hour), nil, StatusDegraded},
		{"never", time.Time{}, nil, StatusDegraded},
		{"error", time.Time{}, errors.New("db closed"), StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewLastReportChecker(8*24*time.Hour, func(ctx context.Context) (time.Time, error) {
				return tt.last, tt.err
			})
			assert.Equal(t, tt.want, c.Check(context.Background()).Status)
		})
	}
}
