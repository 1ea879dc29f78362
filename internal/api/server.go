// Package api is the HTTP surface of the CRM: CRUD over customers,
// products and orders, report operations and task inspection.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/alxcrm/crm/internal/api/middleware"
	"github.com/alxcrm/crm/internal/broker"
	"github.com/alxcrm/crm/internal/cache"
	"github.com/alxcrm/crm/internal/health"
	"github.com/alxcrm/crm/internal/log"
	"github.com/alxcrm/crm/internal/results"
	"github.com/alxcrm/crm/internal/store"
)

// Config holds the server's request-handling settings.
type Config struct {
	Version        string
	APIToken       string
	CacheTTL       time.Duration
	RateLimitRPM   int
	TracingService string // empty disables tracing
}

// Enqueuer pushes tasks onto the queue. Satisfied by the broker client.
type Enqueuer interface {
	Enqueue(ctx context.Context, name string, payload any) (broker.Task, error)
}

// ResultsReader reads recorded task results.
type ResultsReader interface {
	Get(ctx context.Context, taskID string) (results.Result, error)
	Recent(ctx context.Context, limit int) ([]results.Result, error)
}

// Server handles the CRM HTTP API.
type Server struct {
	cfg     Config
	store   *store.Store
	queue   Enqueuer
	results ResultsReader
	cache   cache.Cache
	health  *health.Manager
	logger  zerolog.Logger
}

// New creates the API server. results and cache may be nil.
func New(cfg Config, st *store.Store, queue Enqueuer, rs ResultsReader, c cache.Cache, hm *health.Manager) *Server {
	return &Server{
		cfg:     cfg,
		store:   st,
		queue:   queue,
		results: rs,
		cache:   c,
		health:  hm,
		logger:  log.WithComponent("api"),
	}
}

// Router builds the full route tree with the middleware stack applied.
func (s *Server) Router() http.Handler {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableSecurityHeaders: true,
		EnableMetrics:         true,
		TracingService:        s.cfg.TracingService,
		EnableLogging:         true,
		RateLimitRPM:          s.cfg.RateLimitRPM,
	})

	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Route("/customers", func(r chi.Router) {
			r.Post("/", s.handleCreateCustomer)
			r.Post("/bulk", s.handleBulkCreateCustomers)
			r.Get("/", s.handleListCustomers)
			r.Get("/{id}", s.handleGetCustomer)
		})

		r.Route("/products", func(r chi.Router) {
			r.Post("/", s.handleCreateProduct)
			r.Get("/", s.handleListProducts)
			r.Get("/{id}", s.handleGetProduct)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", s.handleCreateOrder)
			r.Get("/", s.handleListOrders)
			r.Get("/{id}", s.handleGetOrder)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Post("/run", s.handleRunReport)
			r.Get("/", s.handleListReports)
			r.Get("/summary", s.handleSummary)
		})

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", s.handleListTasks)
			r.Get("/{id}", s.handleGetTask)
		})
	})

	return r
}

// cacheGet reads a cached body, when a cache is configured.
func (s *Server) cacheGet(ctx context.Context, key string) ([]byte, bool) {
	if s.cache == nil {
		return nil, false
	}
	return s.cache.Get(ctx, key)
}

// cacheSet stores a body under the configured TTL.
func (s *Server) cacheSet(ctx context.Context, key string, body []byte) {
	if s.cache == nil || s.cfg.CacheTTL <= 0 {
		return
	}
	s.cache.Set(ctx, key, body, s.cfg.CacheTTL)
}

// listCacheKey builds the cache key for a list endpoint. Keys share the
// entity prefix so writes can invalidate every cached page at once.
func listCacheKey(prefix string, r *http.Request) string {
	return prefix + ":" + r.URL.RawQuery
}

// writeList marshals a list payload, caches it under key and writes it.
func (s *Server) writeList(w http.ResponseWriter, r *http.Request, key string, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	s.cacheSet(r.Context(), key, body)
	writeRaw(w, http.StatusOK, body)
}
