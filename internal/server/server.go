// Package server is the HTTP presentation layer of the portal. It translates
// form and JSON requests into lifecycle and gateway calls and maps their
// errors onto status codes.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/dharsanguruparan/RestorePortal/internal/blob"
	"github.com/dharsanguruparan/RestorePortal/internal/config"
	"github.com/dharsanguruparan/RestorePortal/internal/gateway"
	"github.com/dharsanguruparan/RestorePortal/internal/lifecycle"
	"github.com/dharsanguruparan/RestorePortal/internal/metrics"
)

// Deps are the collaborators a Server needs.
type Deps struct {
	Config    *config.Config
	Lifecycle *lifecycle.Controller
	Gateway   *gateway.Gateway
	Blobs     blob.Store
	Metrics   *metrics.Metrics
	Log       logrus.FieldLogger
}

// Server hosts the portal HTTP handlers.
type Server struct {
	cfg       *config.Config
	lifecycle *lifecycle.Controller
	gateway   *gateway.Gateway
	blobs     blob.Store
	metrics   *metrics.Metrics
	log       logrus.FieldLogger
	limiter   *rateLimiter
	handler   http.Handler
}

// New creates a configured server.
func New(d Deps) *Server {
	if d.Log == nil {
		d.Log = logrus.StandardLogger()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	s := &Server{
		cfg:       d.Config,
		lifecycle: d.Lifecycle,
		gateway:   d.Gateway,
		blobs:     d.Blobs,
		metrics:   d.Metrics,
		log:       d.Log,
		limiter:   newRateLimiter(d.Config.APIRateLimit, d.Config.APIRateBurst),
	}
	s.handler = requestID(s.logRequests(cors(s.routes())))
	return s
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Serve listens on the configured address until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.Address,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()
	s.log.WithField("address", s.cfg.Address).Info("portal listening")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()
	r.Use(s.instrument)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	for _, path := range []string{"/register", "/ngo/register"} {
		r.HandleFunc(path, s.handleRegister).Methods(http.MethodPost)
	}
	for _, path := range []string{"/login", "/ngo/login"} {
		r.HandleFunc(path, s.handleLogin).Methods(http.MethodPost)
	}
	r.HandleFunc("/ngo/status/{id:[0-9]+}", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/ngo/dashboard/{id:[0-9]+}", s.handleDashboard).Methods(http.MethodGet)
	r.HandleFunc("/uploads/{filename}", s.handleUpload).Methods(http.MethodGet, http.MethodHead)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.limiter.Handler)
	api.HandleFunc("/login", s.handleAPILogin).Methods(http.MethodPost)
	api.HandleFunc("/flutter/login", s.handleAPILogin).Methods(http.MethodPost)

	// The administrative routes carry no authentication.
	admin := r.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/dashboard", s.handleAdminDashboard).Methods(http.MethodGet)
	admin.HandleFunc("/update-status", s.handleUpdateStatus).Methods(http.MethodPost)
	admin.HandleFunc("/update-ngo-status", s.handleUpdateStatus).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusNotFound, errorBody{Error: "not found", Code: "not_found"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed", Code: "method_not_allowed"})
	})
	return r
}
