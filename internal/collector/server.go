// Package collector receives alerts from sensors, stores them and serves
// them back to operators.
package collector

import (
	"NetSentinel/internal/metrics"
	"NetSentinel/internal/model"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultRecentLimit = 50
	MaxRecentLimit     = 500

	maxBodyBytes = 1 << 20
)

// Server holds the dependencies of the collector HTTP API.
type Server struct {
	store       model.AlertStore
	metrics     *metrics.Collector
	gatherer    prometheus.Gatherer
	recentLimit int
	now         func() time.Time
}

// Option customizes a Server.
type Option func(*Server)

// WithMetrics records ingestion metrics and serves g at /metrics.
func WithMetrics(m *metrics.Collector, g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = g
	}
}

// WithRecentLimit sets the default number of alerts returned by /alerts.
func WithRecentLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.recentLimit = clamp(n)
		}
	}
}

// WithClock overrides the time source used for missing timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// NewServer creates the HTTP API over store.
func NewServer(store model.AlertStore, opts ...Option) *Server {
	s := &Server{store: store, recentLimit: DefaultRecentLimit, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router returns the routes of the collector.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/alert", s.ingestHandler).Methods("POST")
	r.HandleFunc("/alerts", s.listHandler).Methods("GET")
	r.HandleFunc("/", s.indexHandler).Methods("GET")
	r.HandleFunc("/dashboard", s.dashboardHandler).Methods("GET")
	r.HandleFunc("/healthz", s.healthHandler).Methods("GET")
	if s.gatherer != nil {
		r.Handle("/metrics", metrics.Handler(s.gatherer)).Methods("GET")
	}
	return r
}

// ingestHandler stores whatever it receives after coercion. A body that is
// not a JSON object is treated as an empty object.
func (s *Server) ingestHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		log.Printf("Collector: failed to read request body: %v", err)
	}

	var raw map[string]interface{}
	if err := decodeJSON(body, &raw); err != nil {
		raw = nil
	}

	if _, err := s.Ingest(r.Context(), raw, "http"); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ingest coerces and stores one payload.
func (s *Server) Ingest(ctx context.Context, raw map[string]interface{}, source string) (int64, error) {
	alert := Coerce(raw, s.now())
	id, err := s.store.Insert(ctx, alert)
	if err != nil {
		s.metrics.IngestFailed(source)
		log.Printf("Collector: failed to store alert from %s: %v", source, err)
		return 0, err
	}
	s.metrics.Ingested(source)
	return id, nil
}

func (s *Server) listHandler(w http.ResponseWriter, r *http.Request) {
	limit := s.recentLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = clamp(n)
		}
	}

	alerts, err := s.store.Recent(r.Context(), limit)
	if err != nil {
		log.Printf("Collector: failed to list alerts: %v", err)
		http.Error(w, "failed to list alerts", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"alerts": alerts})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func clamp(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxRecentLimit {
		return MaxRecentLimit
	}
	return n
}

// decodeJSON keeps numbers as json.Number so large integers survive coercion.
func decodeJSON(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Collector: failed to write response: %v", err)
	}
}
