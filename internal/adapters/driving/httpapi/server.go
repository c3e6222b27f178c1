// Package httpapi exposes documents, ingestion and grounded answers over HTTP.
// Every /v1 route requires a bearer token resolved to an owner by the
// configured OwnerVerifier.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/custodia-labs/studyrag/internal/core/ports/driven"
	"github.com/custodia-labs/studyrag/internal/core/ports/driving"
	"github.com/custodia-labs/studyrag/internal/logger"
)

// Config holds server configuration.
type Config struct {
	Addr string

	// CORSOrigins lists allowed browser origins. Empty allows localhost only.
	CORSOrigins []string

	// RequestTimeout bounds non-streaming requests (default: 60s).
	RequestTimeout time.Duration
}

// Services are the driving ports the API calls.
type Services struct {
	Documents driving.DocumentService
	Ingestion driving.IngestionService
	Query     driving.QueryService
}

// Server is the HTTP API.
type Server struct {
	cfg      Config
	svc      Services
	verifier driven.OwnerVerifier
	router   chi.Router
}

// New creates the server and builds its routes.
func New(cfg Config, svc Services, verifier driven.OwnerVerifier) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	s := &Server{cfg: cfg, svc: svc, verifier: verifier}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	origins := s.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1/documents", func(r chi.Router) {
		r.Use(s.authenticate)

		// The websocket outlives the request timeout.
		r.Get("/{id}/stream", s.handleStream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.cfg.RequestTimeout))

			r.Post("/", s.handleRegister)
			r.Get("/", s.handleList)
			r.Get("/{id}", s.handleGet)
			r.Patch("/{id}", s.handleRename)
			r.Delete("/{id}", s.handleDelete)
			r.Post("/{id}/ingest", s.handleIngest)
			r.Get("/{id}/status", s.handleStatus)
			r.Post("/{id}/query", s.handleQuery)
		})
	})

	return r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// Run listens on cfg.Addr until ctx is cancelled, then drains connections.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening on %s", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.Debug("%s %s %d %s req=%s", r.Method, r.URL.Path, ww.Status(), time.Since(start), middleware.GetReqID(r.Context()))
	})
}
