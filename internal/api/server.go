// Package api is the thin HTTP layer over the query engine and store. It
// parses parameters, maps the error taxonomy onto status codes, and encodes
// JSON; all domain logic lives below it.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yycdata/collisionwx/internal/metrics"
	"github.com/yycdata/collisionwx/internal/query"
	"github.com/yycdata/collisionwx/internal/store"
)

type Server struct {
	store  *store.Store
	engine *query.Engine
	addr   string
}

func NewServer(st *store.Store, addr string) *Server {
	return &Server{store: st, engine: query.NewEngine(st), addr: addr}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/v1/collisions", s.instrument("collisions", s.handleCollisions))
	mux.HandleFunc("GET /api/v1/collisions/near", s.instrument("near", s.handleNear))
	mux.HandleFunc("GET /api/v1/collisions/{id}", s.instrument("collision_detail", s.handleCollisionDetail))

	mux.HandleFunc("GET /api/v1/stats/monthly-trend", s.instrument("stats_monthly", s.handleMonthlyTrend))
	mux.HandleFunc("GET /api/v1/stats/by-hour", s.instrument("stats_hour", s.handleByHour))
	mux.HandleFunc("GET /api/v1/stats/weekday", s.instrument("stats_weekday", s.handleByWeekday))
	mux.HandleFunc("GET /api/v1/stats/quadrant-share", s.instrument("stats_quadrant", s.handleQuadrantShare))
	mux.HandleFunc("GET /api/v1/stats/top-intersections", s.instrument("stats_intersections", s.handleTopIntersections))
	mux.HandleFunc("GET /api/v1/stats/by-weather", s.instrument("stats_weather", s.handleByWeather))

	mux.HandleFunc("GET /api/v1/flags", s.instrument("flags_list", s.handleListFlags))
	mux.HandleFunc("POST /api/v1/flags", s.instrument("flags_create", s.handleCreateFlag))
	mux.HandleFunc("DELETE /api/v1/flags/{id}", s.instrument("flags_delete", s.handleDeleteFlag))

	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Printf("api: listening on %s", s.addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	version, err := s.store.MigrationVersion()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "schema_version": version})
}

// statusRecorder captures the written status for the request counter.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		metrics.HTTPRequests.WithLabelValues(route, fmt.Sprintf("%dxx", rec.status/100)).Inc()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// fail maps the error taxonomy: malformed client input is a 400 with the
// parse detail, anything else a logged 500.
func fail(w http.ResponseWriter, err error) {
	if errors.Is(err, query.ErrBadParam) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	log.Printf("api: %v", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}
