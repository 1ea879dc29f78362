package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/alxcrm/crm/internal/crm"
	"github.com/alxcrm/crm/internal/metrics"
)

type orderRequest struct {
	CustomerID uuid.UUID   `json:"customer_id"`
	ProductIDs []uuid.UUID `json:"product_ids"`
}

// orderResponse renders the total as a 2-decimal string.
type orderResponse struct {
	ID         uuid.UUID   `json:"id"`
	CustomerID uuid.UUID   `json:"customer_id"`
	ProductIDs []uuid.UUID `json:"product_ids"`
	Total      string      `json:"total"`
	OrderedAt  time.Time   `json:"order_date"`
}

func toOrderResponse(o crm.Order) orderResponse {
	return orderResponse{
		ID:         o.ID,
		CustomerID: o.CustomerID,
		ProductIDs: o.ProductIDs,
		Total:      o.Total.String(),
		OrderedAt:  o.OrderedAt,
	}
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, err)
		return
	}

	o, err := s.store.CreateOrder(r.Context(), req.CustomerID, req.ProductIDs)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	metrics.RecordOrderCreated(int64(o.Total))
	s.invalidateLists(r, "orders")
	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	key := listCacheKey("orders", r)
	if body, ok := s.cacheGet(r.Context(), key); ok {
		writeRaw(w, http.StatusOK, body)
		return
	}

	page, err := pageFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	q := r.URL.Query()

	f := crm.OrderFilter{
		CustomerName: q.Get("customer_name"),
		ProductName:  q.Get("product_name"),
		OrderBy:      q.Get("order_by"),
		Page:         page,
	}
	if raw := q.Get("product_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, fmt.Errorf("invalid product_id %q", raw))
			return
		}
		f.ProductID = &id
	}
	if f.TotalMin, err = priceParam(r, "total_min"); err != nil {
		writeError(w, err)
		return
	}
	if f.TotalMax, err = priceParam(r, "total_max"); err != nil {
		writeError(w, err)
		return
	}
	if f.Since, err = timeParam(r, "since"); err != nil {
		writeError(w, err)
		return
	}
	if f.Until, err = timeParam(r, "until"); err != nil {
		writeError(w, err)
		return
	}

	list, total, err := s.store.ListOrders(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}

	items := make([]orderResponse, 0, len(list))
	for _, o := range list {
		items = append(items, toOrderResponse(o))
	}
	s.writeList(w, r, key, listResponse{Items: items, Total: total})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	o, err := s.store.GetOrder(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}
