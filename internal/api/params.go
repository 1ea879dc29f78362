package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/alxcrm/crm/internal/crm"
)

// pageFromQuery reads limit/offset pagination from the query string.
func pageFromQuery(r *http.Request) (crm.Page, error) {
	var p crm.Page
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return p, fmt.Errorf("invalid limit %q", raw)
		}
		p.Limit = n
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return p, fmt.Errorf("invalid offset %q", raw)
		}
		p.Offset = n
	}
	return p, nil
}

// idParam parses the {id} route parameter as a UUID.
func idParam(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

// priceParam parses an optional decimal money query parameter.
func priceParam(r *http.Request, key string) (*crm.Cents, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	c, err := crm.ParsePrice(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", key, err)
	}
	return &c, nil
}

// intParam parses an optional integer query parameter.
func intParam(r *http.Request, key string) (*int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q", key, raw)
	}
	return &n, nil
}

// timeParam parses an optional RFC3339 query parameter.
func timeParam(r *http.Request, key string) (*time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: want RFC3339 timestamp", key)
	}
	return &t, nil
}

// listResponse is the common shape of paginated list bodies.
type listResponse struct {
	Items any `json:"items"`
	Total int `json:"total"`
}
