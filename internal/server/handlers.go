package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/SolarWolf-Code/quantedge/internal/backtest"
	"github.com/SolarWolf-Code/quantedge/internal/strategy"
)

const dateLayout = "2006-01-02"

type backtestRequest struct {
	StartDate         string            `json:"start_date"`
	EndDate           string            `json:"end_date"`
	StartingCapital   float64           `json:"starting_capital"`
	MonthlyInvestment float64           `json:"monthly_investment"`
	Rules             strategy.NodeList `json:"rules"`
}

type saveStrategyRequest struct {
	Name   string          `json:"name"`
	UserID string          `json:"user_id"`
	Rules  json.RawMessage `json:"rules"`
}

type saveStrategyResponse struct {
	Success    bool  `json:"success"`
	StrategyID int64 `json:"strategy_id"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// handleHealth returns service health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleBacktest runs a strategy simulation over a date window
func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	var req backtestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid start_date", err)
		return
	}
	end, err := time.Parse(dateLayout, req.EndDate)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid end_date", err)
		return
	}
	if end.Before(start) {
		s.writeError(w, http.StatusBadRequest, "end_date precedes start_date", nil)
		return
	}
	if len(req.Rules) == 0 {
		s.writeError(w, http.StatusBadRequest, "rules must not be empty", nil)
		return
	}

	outcome, err := s.simulator.Run(r.Context(), req.Rules, backtest.Params{
		StartDate:         start,
		EndDate:           end,
		StartingCapital:   req.StartingCapital,
		MonthlyInvestment: req.MonthlyInvestment,
	})
	if err != nil {
		// Strategy faults (bad weights, unknown indicators) and store
		// failures alike abort the run; the details string tells them apart.
		s.log.Error().Err(err).Msg("Backtest failed")
		s.writeError(w, http.StatusInternalServerError, "backtest failed", err)
		return
	}

	s.writeJSON(w, http.StatusOK, backtest.Assemble(outcome))
}

// handleSaveStrategy persists a strategy rule tree
func (s *Server) handleSaveStrategy(w http.ResponseWriter, r *http.Request) {
	var req saveStrategyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Name == "" {
		s.writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	if len(req.Rules) == 0 {
		s.writeError(w, http.StatusBadRequest, "rules must not be empty", nil)
		return
	}

	// Reject rule trees that would not decode at backtest time.
	var rules strategy.NodeList
	if err := json.Unmarshal(req.Rules, &rules); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid rules", err)
		return
	}

	id, err := s.strategies.Save(req.Name, req.UserID, req.Rules)
	if err != nil {
		s.log.Error().Err(err).Str("name", req.Name).Msg("Failed to save strategy")
		s.writeError(w, http.StatusInternalServerError, "failed to save strategy", err)
		return
	}

	s.writeJSON(w, http.StatusOK, saveStrategyResponse{Success: true, StrategyID: id})
}

// handleGetAllStrategies lists stored strategies
func (s *Server) handleGetAllStrategies(w http.ResponseWriter, r *http.Request) {
	records, err := s.strategies.List()
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list strategies")
		s.writeError(w, http.StatusInternalServerError, "failed to list strategies", err)
		return
	}
	s.writeJSON(w, http.StatusOK, records)
}

// handleGetStrategy fetches a single strategy by id
func (s *Server) handleGetStrategy(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("strategy_id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid strategy_id", err)
		return
	}

	record, err := s.strategies.Get(id)
	if err != nil {
		if errors.Is(err, strategy.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "strategy not found", nil)
			return
		}
		s.log.Error().Err(err).Int64("strategy_id", id).Msg("Failed to load strategy")
		s.writeError(w, http.StatusInternalServerError, "failed to load strategy", err)
		return
	}

	s.writeJSON(w, http.StatusOK, record)
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode response")
	}
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, status int, msg string, err error) {
	resp := errorResponse{Error: msg}
	if err != nil {
		resp.Details = err.Error()
	}
	s.writeJSON(w, status, resp)
}
