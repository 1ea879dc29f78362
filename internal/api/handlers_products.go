package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/alxcrm/crm/internal/crm"
	"github.com/alxcrm/crm/internal/metrics"
)

type productRequest struct {
	Name  string `json:"name"`
	Price string `json:"price"`
	Stock int    `json:"stock"`
}

// productResponse renders the price as a 2-decimal string.
type productResponse struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Price string    `json:"price"`
	Stock int       `json:"stock"`
}

func toProductResponse(p crm.Product) productResponse {
	return productResponse{
		ID:    p.ID,
		Name:  p.Name,
		Price: p.Price.String(),
		Stock: p.Stock,
	}
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, err)
		return
	}

	price, err := crm.ParsePrice(req.Price)
	if err != nil {
		writeError(w, err)
		return
	}

	p, err := s.store.CreateProduct(r.Context(), crm.Product{
		Name:  req.Name,
		Price: price,
		Stock: req.Stock,
	})
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	metrics.IncProductsCreated()
	s.invalidateLists(r, "products")
	writeJSON(w, http.StatusCreated, toProductResponse(p))
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	key := listCacheKey("products", r)
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

	f := crm.ProductFilter{
		Name:    q.Get("name"),
		OrderBy: q.Get("order_by"),
		Page:    page,
	}
	if f.PriceMin, err = priceParam(r, "price_min"); err != nil {
		writeError(w, err)
		return
	}
	if f.PriceMax, err = priceParam(r, "price_max"); err != nil {
		writeError(w, err)
		return
	}
	if f.StockMin, err = intParam(r, "stock_min"); err != nil {
		writeError(w, err)
		return
	}
	if f.StockMax, err = intParam(r, "stock_max"); err != nil {
		writeError(w, err)
		return
	}

	list, total, err := s.store.ListProducts(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}

	items := make([]productResponse, 0, len(list))
	for _, p := range list {
		items = append(items, toProductResponse(p))
	}
	s.writeList(w, r, key, listResponse{Items: items, Total: total})
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := s.store.GetProduct(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p))
}
