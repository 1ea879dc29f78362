package api

import (
	"encoding/json"
	"net/http"

	"github.com/alxcrm/crm/internal/crm"
	"github.com/alxcrm/crm/internal/metrics"
)

type customerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

func (s *Server) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, err)
		return
	}

	c, err := s.store.CreateCustomer(r.Context(), crm.Customer{
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
	})
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	metrics.IncCustomersCreated(1)
	s.invalidateLists(r, "customers")
	writeJSON(w, http.StatusCreated, c)
}

type bulkCustomerFailure struct {
	Index int    `json:"index"`
	Email string `json:"email,omitempty"`
	Error string `json:"error"`
}

type bulkCustomerResponse struct {
	Created  []crm.Customer        `json:"created"`
	Failures []bulkCustomerFailure `json:"failures"`
}

// handleBulkCreateCustomers imports a batch. Valid rows are committed
// even when others fail; the response lists both sides.
func (s *Server) handleBulkCreateCustomers(w http.ResponseWriter, r *http.Request) {
	var reqs []customerRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		writeError(w, err)
		return
	}

	in := make([]crm.Customer, 0, len(reqs))
	for _, req := range reqs {
		in = append(in, crm.Customer{Name: req.Name, Email: req.Email, Phone: req.Phone})
	}

	created, failures, err := s.store.BulkCreateCustomers(r.Context(), in)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	resp := bulkCustomerResponse{
		Created:  created,
		Failures: make([]bulkCustomerFailure, 0, len(failures)),
	}
	for _, f := range failures {
		resp.Failures = append(resp.Failures, bulkCustomerFailure{
			Index: f.Index,
			Email: f.Email,
			Error: f.Err,
		})
	}

	metrics.IncCustomersCreated(len(created))
	metrics.IncCustomersRejected(len(failures))
	if len(created) > 0 {
		s.invalidateLists(r, "customers")
	}

	status := http.StatusCreated
	if len(failures) > 0 {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	key := listCacheKey("customers", r)
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
	f := crm.CustomerFilter{
		Name:        q.Get("name"),
		Email:       q.Get("email"),
		PhonePrefix: q.Get("phone"),
		OrderBy:     q.Get("order_by"),
		Page:        page,
	}

	list, total, err := s.store.ListCustomers(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []crm.Customer{}
	}
	s.writeList(w, r, key, listResponse{Items: list, Total: total})
}

func (s *Server) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	c, err := s.store.GetCustomer(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// invalidateLists drops cached list and summary bodies after a write.
func (s *Server) invalidateLists(r *http.Request, prefix string) {
	if s.cache == nil {
		return
	}
	s.cache.Invalidate(r.Context(), prefix)
	s.cache.Delete(r.Context(), "summary")
}
