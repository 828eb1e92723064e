// Package api serves the controller's HTTP surface: the web page, status,
// settings, firmware upload, history and metrics.
package api

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/itohio/keyclimate/pkg/control"
	"github.com/itohio/keyclimate/pkg/history"
	"github.com/itohio/keyclimate/pkg/settings"
	"github.com/itohio/keyclimate/pkg/store"
)

//go:embed index.html
var indexHTML []byte

const shutdownTimeout = 5 * time.Second

// Controller is the running controller the API reports on.
type Controller interface {
	Latest() control.Status
	Settings() *settings.Settings
}

// ImageStore records uploaded firmware images.
type ImageStore interface {
	PutImage(img store.Image) error
	Images() ([]store.Image, error)
}

// Options wires optional collaborators. Nil fields disable the matching routes.
type Options struct {
	OTADir  string
	Images  ImageStore
	History *history.Window
	Metrics http.Handler
	// Restart is invoked after a successful upload.
	Restart func()
}

// Server implements the HTTP handlers.
type Server struct {
	ctl  Controller
	opts Options
}

// New creates a server for ctl.
func New(ctl Controller, opts Options) *Server {
	if opts.OTADir == "" {
		opts.OTADir = "ota"
	}
	return &Server{ctl: ctl, opts: opts}
}

// LoadAPI registers all endpoints on r.
func (s *Server) LoadAPI(r *mux.Router) {
	r.HandleFunc("/", s.index).Methods("GET")
	r.HandleFunc("/ota", s.uploadImage).Methods("POST")
	r.HandleFunc("/ota", s.listImages).Methods("GET")
	if s.opts.Metrics != nil {
		r.Handle("/metrics", s.opts.Metrics).Methods("GET")
	}

	sr := r.PathPrefix("/api").Subrouter()
	sr.HandleFunc("/status", s.getStatus).Methods("GET")
	sr.HandleFunc("/settings", s.postSettings).Methods("POST")
	sr.HandleFunc("/history", s.getHistory).Methods("GET")
}

// Router returns a new router with every endpoint registered.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	s.LoadAPI(r)
	return r
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("api: listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexHTML)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: encode response: %v", err)
	}
}

type historyResponse struct {
	Trend  float64         `json:"trend"`
	Points []history.Point `json:"points"`
}

// DefaultHistoryPoints caps /api/history when no max is given.
const DefaultHistoryPoints = 300

func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	if s.opts.History == nil {
		http.Error(w, "history not enabled", http.StatusNotFound)
		return
	}
	maxPoints := DefaultHistoryPoints
	if v := r.URL.Query().Get("max"); v != "" {
		if _, err := fmt.Sscanf(v, "%d", &maxPoints); err != nil || maxPoints <= 0 {
			http.Error(w, "invalid max", http.StatusBadRequest)
			return
		}
	}
	writeJSON(w, historyResponse{
		Trend:  s.opts.History.Trend(),
		Points: history.Downsample(nil, s.opts.History.Points(), maxPoints),
	})
}
