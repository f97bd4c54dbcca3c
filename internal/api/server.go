// Package api serves one simulation run over HTTP. All endpoints are
// read-only views of the recorded round history; the run itself is driven by
// the controller, never by requests.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/signalsfoundry/permit-simulator/history"
	"github.com/signalsfoundry/permit-simulator/internal/logging"
	"github.com/signalsfoundry/permit-simulator/model"
	"github.com/signalsfoundry/permit-simulator/runctrl"
)

// Server exposes a run's history, scenario, and metrics.
type Server struct {
	Store    *history.Store
	Ctrl     *runctrl.Controller
	Scenario model.ScenarioConfig
	Metrics  http.Handler // optional; /metrics 404s when nil
	Log      logging.Logger
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/scenario", s.handleScenario)
	mux.HandleFunc("/api/v1/summary", s.handleSummary)
	mux.HandleFunc("/api/v1/rounds", s.handleRounds)
	mux.HandleFunc("/api/v1/rounds/", s.handleRoundDetail)
	mux.HandleFunc("/api/v1/agents", s.handleAgents)
	mux.HandleFunc("/api/v1/agents/", s.handleAgentDetail)

	if s.Metrics != nil {
		mux.Handle("/metrics", s.Metrics)
	}
	return mux
}

type statusResponse struct {
	RunID    string `json:"run_id"`
	Scenario string `json:"scenario"`
	Seed     int64  `json:"seed"`
	Rounds   int    `json:"rounds"`
	Running  bool   `json:"running"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !s.allowGet(w, r) {
		return
	}
	resp := statusResponse{
		RunID:    s.Store.RunID(),
		Scenario: s.Store.Scenario(),
		Seed:     s.Store.Seed(),
		Rounds:   s.Store.Len(),
	}
	if s.Ctrl != nil {
		resp.Running = s.Ctrl.Running()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleScenario(w http.ResponseWriter, r *http.Request) {
	if !s.allowGet(w, r) {
		return
	}
	s.writeJSON(w, http.StatusOK, s.Scenario)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if !s.allowGet(w, r) {
		return
	}
	s.writeJSON(w, http.StatusOK, s.Store.Summarize())
}

func (s *Server) handleRounds(w http.ResponseWriter, r *http.Request) {
	if !s.allowGet(w, r) {
		return
	}
	s.writeJSON(w, http.StatusOK, s.Store.All())
}

// handleRoundDetail serves /api/v1/rounds/latest and /api/v1/rounds/{n}.
func (s *Server) handleRoundDetail(w http.ResponseWriter, r *http.Request) {
	if !s.allowGet(w, r) {
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/rounds/")

	if rest == "latest" {
		snap, ok := s.Store.Latest()
		if !ok {
			s.writeError(w, http.StatusNotFound, "no rounds recorded yet")
			return
		}
		s.writeJSON(w, http.StatusOK, snap)
		return
	}

	n, err := strconv.Atoi(rest)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "round must be a number or \"latest\"")
		return
	}
	snap, ok := s.Store.Round(n)
	if !ok {
		s.writeError(w, http.StatusNotFound, "round not recorded")
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	if !s.allowGet(w, r) {
		return
	}
	snap, ok := s.Store.Latest()
	if !ok {
		s.writeError(w, http.StatusNotFound, "no rounds recorded yet")
		return
	}
	if snap.Agents == nil {
		s.writeError(w, http.StatusNotFound, "scenario does not record per-agent state")
		return
	}
	s.writeJSON(w, http.StatusOK, snap.Agents)
}

func (s *Server) handleAgentDetail(w http.ResponseWriter, r *http.Request) {
	if !s.allowGet(w, r) {
		return
	}
	id, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/api/v1/agents/"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "agent id must be a number")
		return
	}
	snap, ok := s.Store.Latest()
	if !ok {
		s.writeError(w, http.StatusNotFound, "no rounds recorded yet")
		return
	}
	for _, rec := range snap.Agents {
		if rec.ID == id {
			s.writeJSON(w, http.StatusOK, rec)
			return
		}
	}
	s.writeError(w, http.StatusNotFound, "unknown agent")
}

func (s *Server) allowGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "read-only API")
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil && s.Log != nil {
		s.Log.Warn(context.Background(), "encode response", logging.Err(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	s.writeJSON(w, code, map[string]string{"error": msg})
}
