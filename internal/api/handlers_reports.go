package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/alxcrm/crm/internal/tasks"
)

type runReportResponse struct {
	TaskID string `json:"task_id"`
	Task   string `json:"task"`
}

// handleRunReport enqueues a report generation task and returns 202 with
// the task ID for polling.
func (s *Server) handleRunReport(w http.ResponseWriter, r *http.Request) {
	task, err := s.queue.Enqueue(r.Context(), tasks.ReportGenerate, nil)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, runReportResponse{TaskID: task.ID, Task: task.Name})
}

// reportResponse renders the revenue as a 2-decimal string.
type reportResponse struct {
	ID          uuid.UUID `json:"id"`
	Customers   int64     `json:"customers"`
	Orders      int64     `json:"orders"`
	Revenue     string    `json:"revenue"`
	GeneratedAt time.Time `json:"generated_at"`
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	key := listCacheKey("reports", r)
	if body, ok := s.cacheGet(r.Context(), key); ok {
		writeRaw(w, http.StatusOK, body)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, err)
			return
		}
		limit = n
	}

	list, err := s.store.ListReports(r.Context(), limit)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	items := make([]reportResponse, 0, len(list))
	for _, rep := range list {
		items = append(items, reportResponse{
			ID:          rep.ID,
			Customers:   rep.Customers,
			Orders:      rep.Orders,
			Revenue:     rep.Revenue.String(),
			GeneratedAt: rep.GeneratedAt,
		})
	}
	s.writeList(w, r, key, listResponse{Items: items, Total: len(items)})
}

type summaryResponse struct {
	Customers int64  `json:"customers"`
	Orders    int64  `json:"orders"`
	Revenue   string `json:"revenue"`
}

// handleSummary serves the live aggregate, behind the cache when one is
// configured. Only the unfiltered summary goes through the cache; a
// since filter always hits the store.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	var since time.Time
	if t, err := timeParam(r, "since"); err != nil {
		writeError(w, err)
		return
	} else if t != nil {
		since = *t
	}

	if since.IsZero() {
		if body, ok := s.cacheGet(r.Context(), "summary"); ok {
			writeRaw(w, http.StatusOK, body)
			return
		}
	}

	sum, err := s.store.Summary(r.Context(), since)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	body, err := json.Marshal(summaryResponse{
		Customers: sum.Customers,
		Orders:    sum.Orders,
		Revenue:   sum.Revenue.String(),
	})
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	if since.IsZero() {
		s.cacheSet(r.Context(), "summary", body)
	}
	writeRaw(w, http.StatusOK, body)
}
