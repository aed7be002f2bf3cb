package web

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, logger *zap.Logger, status int, msg string) {
	writeJSON(w, logger, status, map[string]string{"error": msg})
}

// handleHealth reports process liveness for the env vars named in
// spec.md §6 (PORT/HOST-bound health probe).
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"subscriptions": s.hub.Count(),
	})
}

// handleExchangeInfo reports the configured symbol set, per the
// testnet exchange-info contract in spec.md §6.
func (s *Server) handleExchangeInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, map[string]interface{}{
		"symbols": s.symbols,
	})
}

func (s *Server) handleExecutionStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, s.session.Status())
}

func (s *Server) handleExecutionConnect(w http.ResponseWriter, r *http.Request) {
	s.session.Connect()
	writeJSON(w, s.logger, http.StatusOK, s.session.Status())
}

func (s *Server) handleExecutionDisconnect(w http.ResponseWriter, r *http.Request) {
	s.session.Disconnect()
	writeJSON(w, s.logger, http.StatusOK, s.session.Status())
}

func (s *Server) handleExecutionEnabled(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, s.logger, http.StatusBadRequest, "invalid request body")
		return
	}
	s.session.SetEnabled(body.Enabled)
	writeJSON(w, s.logger, http.StatusOK, s.session.Status())
}

func (s *Server) handleExecutionSettings(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Leverage float64 `json:"leverage"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, s.logger, http.StatusBadRequest, "invalid request body")
		return
	}
	settings := s.session.UpdateSettings(body.Leverage)
	writeJSON(w, s.logger, http.StatusOK, settings)
}

func (s *Server) handleExecutionSymbol(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Symbol string `json:"symbol"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, s.logger, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Symbol == "" {
		writeError(w, s.logger, http.StatusBadRequest, "symbol is required")
		return
	}
	s.session.SetSymbol(body.Symbol)
	writeJSON(w, s.logger, http.StatusOK, s.session.Status())
}
