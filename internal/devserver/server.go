// Package devserver is the bundled stub backend. It speaks the same REST
// surface the engine and session store consume, persists to a local pebble
// database, and exists so the CLI and tests can run without a real deployment.
package devserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"chatkit/pkg/config"
	"chatkit/pkg/logger"
)

// Server is a self-contained chat backend over a local pebble database.
type Server struct {
	cfg   config.DevServeConfig
	store *storage
	limit *limiterPool
}

// New opens the server's database and prepares its routes.
func New(cfg config.DevServeConfig) (*Server, error) {
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./devserver-db"
	}
	st, err := openStorage(dbPath)
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg:   cfg,
		store: st,
		limit: &limiterPool{rps: cfg.RateRPS, burst: cfg.RateBurst},
	}, nil
}

// Close releases the underlying database.
func (s *Server) Close() error {
	return s.store.close()
}

// Handler returns the full route tree.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", healthzHandler).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.logMiddleware, s.rateLimitMiddleware)
	s.registerMessages(api)
	s.registerSessions(api)
	s.registerUploads(api)

	r.HandleFunc("/uploads/{id}", s.serveUpload).Methods(http.MethodGet)
	r.PathPrefix("/docs/").Handler(httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))
	r.Handle("/openapi.yaml", http.FileServer(http.Dir("./docs")))
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := s.cfg.Address
	if addr == "" {
		addr = ":8970"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	stopRetention := s.startRetention(ctx)
	defer stopRetention()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("devserver_listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			logger.Error("devserver_shutdown_failed", "error", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
