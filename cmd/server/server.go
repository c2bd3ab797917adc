package main

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/liamcoop/docrules/rules"
	"github.com/liamcoop/docrules/transaction"
)

// Server exposes schema evaluation and the transaction intake workflow over HTTP
type Server struct {
	db       *sql.DB
	engine   *rules.Engine
	service  *transaction.Service
	cache    *rules.InMemorySchemaCache
	validate *validator.Validate
	opts     ServerOptions
	router   *chi.Mux
}

// ServerOptions tunes request handling
type ServerOptions struct {
	// DB is pinged by the health check when set
	DB                   *sql.DB
	Cache                *rules.InMemorySchemaCache
	RequestTimeout       time.Duration
	SlowRequestThreshold time.Duration
}

// NewServer wires handlers around an engine and a transaction service
func NewServer(engine *rules.Engine, service *transaction.Service, opts ServerOptions) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}

	s := &Server{
		db:       opts.DB,
		engine:   engine,
		service:  service,
		cache:    opts.Cache,
		validate: validator.New(),
		opts:     opts,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.opts.SlowRequestThreshold))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.opts.RequestTimeout))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		// Schemas
		r.Get("/schemas", s.handleListSchemas)
		r.Get("/schemas/{transactionType}/{ownershipStatus}", s.handleGetSchema)

		// Stateless evaluation
		r.Post("/evaluate", s.handleEvaluate)

		// Transaction workflow
		r.Route("/tenants/{tenantId}/transactions", func(r chi.Router) {
			r.Post("/", s.handleCreateTransaction)
			r.Get("/", s.handleListTransactions)

			r.Route("/{transactionId}", func(r chi.Router) {
				r.Get("/", s.handleGetTransaction)
				r.Put("/answers", s.handleSubmitAnswers)
				r.Get("/preview", s.handlePreview)
				r.Post("/documents", s.handleGeneratePackage)
				r.Get("/documents", s.handleListDocuments)
			})
		})
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
