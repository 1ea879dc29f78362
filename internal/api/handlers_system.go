package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/alxcrm/crm/internal/results"
)

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	if s.results == nil {
		writeJSON(w, http.StatusOK, listResponse{Items: []results.Result{}, Total: 0})
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

	list, err := s.results.Recent(r.Context(), limit)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if list == nil {
		list = []results.Result{}
	}
	writeJSON(w, http.StatusOK, listResponse{Items: list, Total: len(list)})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	if s.results == nil {
		writeNotFound(w)
		return
	}

	id := chi.URLParam(r, "id")
	res, err := s.results.Get(r.Context(), id)
	if errors.Is(err, results.ErrNotFound) {
		writeNotFound(w)
		return
	}
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
