package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Server represents the HTTP server
type Server struct {
	router  *mux.Router
	handler *Handler
	http    *http.Server
	logger  *zap.Logger
}

// NewServer creates a new HTTP server listening on address
func NewServer(handler *Handler, address string, logger *zap.Logger) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		handler: handler,
		logger:  logger.Named("http"),
	}
	s.setupRoutes()
	s.http = &http.Server{
		Addr:        address,
		Handler:     s.router,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
	return s
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes() {
	h := s.handler
	s.router.HandleFunc("/print/voters/{id}", h.PrintHandler).Methods(http.MethodPost)
	s.router.HandleFunc("/preview/voters/{id}", h.PreviewHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/share/voters/{id}", h.ShareHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/voters/{id}/contact", h.ContactHandler).Methods(http.MethodPut)
	s.router.HandleFunc("/printer", h.PrinterStatusHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/printer/connect", h.ConnectHandler).Methods(http.MethodPost)
	s.router.HandleFunc("/printer/disconnect", h.DisconnectHandler).Methods(http.MethodPost)
	s.router.HandleFunc("/health", h.HealthHandler).Methods(http.MethodGet)

	s.router.Use(s.loggingMiddleware)
}

// Router returns the configured routes
func (s *Server) Router() http.Handler {
	return s.router
}

// Start listens and serves until Shutdown
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("address", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for active ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(start)))
	})
}
