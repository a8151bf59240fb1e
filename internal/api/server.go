// Package api serves the simulation to the page frontend over HTTP.
// GET endpoints are public (read-only observation).
// POST endpoints are the control plane and require a bearer token.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/parsa83KH/virus/internal/engine"
	"github.com/parsa83KH/virus/internal/llm"
	"github.com/parsa83KH/virus/internal/persistence"
	"github.com/parsa83KH/virus/internal/render"
	"github.com/parsa83KH/virus/internal/stats"
)

// Server serves one simulation session over HTTP.
type Server struct {
	Session  *engine.SimulationSession
	Driver   *engine.Driver
	LLM      *llm.Client
	Store    *persistence.Store
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	// Cached narratives, one per stage per run.
	narrativeMu     sync.Mutex
	narrativeRun    string
	cachedNarrative map[engine.Stage]*llm.Narrative
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	narrativeLimiter := NewRateLimiter(30, time.Hour)

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/agents", s.handleAgents)
	mux.HandleFunc("/api/v1/stats", s.handleStats)
	mux.HandleFunc("/api/v1/stats/history", s.handleStatsHistory)
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/chart.png", s.handleChart)
	mux.HandleFunc("/api/v1/field", s.handleField)
	mux.HandleFunc("/api/v1/narrative", RateLimitMiddleware(narrativeLimiter, s.handleNarrative))

	// Control endpoints (POST, bearer token).
	mux.HandleFunc("/api/v1/start", s.adminOnly(s.handleStart))
	mux.HandleFunc("/api/v1/advance", s.adminOnly(s.handleAdvance))
	mux.HandleFunc("/api/v1/reset", s.adminOnly(s.handleReset))
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))

	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		handler := corsMiddleware(mux)
		if err := http.ListenAndServe(addr, handler); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list of additional allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request carries the admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a control handler to require POST with a bearer token.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if s.AdminKey == "" {
			http.Error(w, "control endpoints disabled (no admin key set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	counts := s.Session.Counts()
	named := make(map[string]int, len(counts))
	for status, n := range counts {
		named[status.String()] = n
	}

	writeJSON(w, map[string]any{
		"run":        s.Session.ID.String(),
		"stage":      s.Session.CurrentStage(),
		"complete":   s.Session.IsComplete(),
		"tick":       s.Session.CurrentTick(),
		"running":    s.Driver.Running(),
		"speed":      s.Driver.Speed(),
		"counts":     named,
		"parameters": s.Session.Parameters(),
	})
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Session.AgentSnapshot())
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"overall": encodeSeries(s.Session.OverallSeries()),
		"stage":   encodeSeries(s.Session.StageSeries()),
	})
}

// encodeSeries converts status-keyed counts to name-keyed JSON objects.
func encodeSeries(series []stats.Sample) []map[string]any {
	out := make([]map[string]any, len(series))
	for i, sample := range series {
		counts := make(map[string]int, len(sample.Counts))
		for status, n := range sample.Counts {
			counts[status.String()] = n
		}
		out[i] = map[string]any{"tick": sample.Tick, "counts": counts}
	}
	return out
}

func (s *Server) handleStatsHistory(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		http.Error(w, "history store not available", http.StatusServiceUnavailable)
		return
	}

	fromTick := uint64(0)
	toTick := uint64(1<<63 - 1) // keep within int64 for the sqlite driver
	limit := 200

	if f := r.URL.Query().Get("from"); f != "" {
		if v, err := strconv.ParseUint(f, 10, 64); err == nil {
			fromTick = v
		}
	}
	if t := r.URL.Query().Get("to"); t != "" {
		if v, err := strconv.ParseUint(t, 10, 64); err == nil && v < toTick {
			toTick = v
		}
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 1000 {
			limit = v
		}
	}

	rows, err := s.Store.SampleHistory(s.Session.ID.String(), fromTick, toTick, limit)
	if err != nil {
		slog.Error("stats history query failed", "error", err)
		http.Error(w, "history query failed", http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []persistence.SampleRow{}
	}
	writeJSON(w, rows)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		http.Error(w, "history store not available", http.StatusServiceUnavailable)
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 500 {
			limit = v
		}
	}

	events, err := s.Store.RecentEvents(s.Session.ID.String(), limit)
	if err != nil {
		slog.Error("events query failed", "error", err)
		http.Error(w, "events query failed", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []persistence.EventRow{}
	}
	writeJSON(w, events)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	series := s.Session.OverallSeries()
	if r.URL.Query().Get("scope") == "stage" {
		series = s.Session.StageSeries()
	}

	png, err := render.StatusChart(series, 800, 400)
	if err != nil {
		http.Error(w, "not enough samples yet", http.StatusConflict)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

func (s *Server) handleField(w http.ResponseWriter, r *http.Request) {
	seed := int64(1)
	cols, rows := 64, 40
	if v := r.URL.Query().Get("seed"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			seed = n
		}
	}
	if v := r.URL.Query().Get("cols"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 512 {
			cols = n
		}
	}
	if v := r.URL.Query().Get("rows"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 512 {
			rows = n
		}
	}

	field, err := render.DensityField(seed, cols, rows, 3)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]any{"cols": cols, "rows": rows, "values": field})
}

// handleNarrative returns the narrative for the current stage, generating and
// caching it once per stage per run. Collaborator failures degrade to the
// local fallback inside the llm package and never affect the simulation.
func (s *Server) handleNarrative(w http.ResponseWriter, r *http.Request) {
	if !s.Session.IsComplete() && s.Session.CurrentStage() != engine.StageVaccineDeveloping {
		http.Error(w, "stage not complete yet", http.StatusConflict)
		return
	}

	stage := s.Session.CurrentStage()
	runID := s.Session.ID.String()

	s.narrativeMu.Lock()
	defer s.narrativeMu.Unlock()

	if s.narrativeRun != runID {
		s.narrativeRun = runID
		s.cachedNarrative = make(map[engine.Stage]*llm.Narrative)
	}
	if cached, ok := s.cachedNarrative[stage]; ok {
		writeJSON(w, cached)
		return
	}

	narrative := llm.GenerateStageNarrative(s.LLM, s.Session.Report())
	s.cachedNarrative[stage] = narrative
	writeJSON(w, narrative)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.Driver.Start(); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	slog.Info("run started", "run", s.Session.ID)
	writeJSON(w, map[string]any{"running": true})
}

// handleAdvance moves the run to its next stage. The driver is halted first
// so a stale tick loop can never mutate the re-seeded population, and it is
// restarted automatically when distribution begins. A rejected advance is a
// no-op: if the driver was running it is resumed before the error returns.
func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	wasRunning := s.Driver.Running()
	s.Driver.Stop()

	if err := s.Session.AdvanceStage(); err != nil {
		if wasRunning {
			if startErr := s.Driver.Start(); startErr != nil {
				slog.Error("driver resume after rejected advance failed", "error", startErr)
			}
		}
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	stage := s.Session.CurrentStage()
	if stage == engine.StageDistributing {
		if err := s.Driver.Start(); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
	}
	writeJSON(w, map[string]any{"stage": stage, "running": s.Driver.Running()})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.Driver.Stop()
	if err := s.Session.Reset(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	slog.Info("run reset", "run", s.Session.ID)
	writeJSON(w, map[string]any{"run": s.Session.ID.String(), "stage": s.Session.CurrentStage()})
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Speed float64 `json:"speed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Speed <= 0 || req.Speed > 100 {
		http.Error(w, "speed must be within (0, 100]", http.StatusBadRequest)
		return
	}
	s.Driver.SetSpeed(req.Speed)
	slog.Info("speed changed", "speed", req.Speed)
	writeJSON(w, map[string]float64{"speed": s.Driver.Speed()})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write JSON response", "error", err)
	}
}
