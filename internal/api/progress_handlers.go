package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/vytor/lingoflash/internal/errors"
	"github.com/vytor/lingoflash/internal/logger"
	"github.com/vytor/lingoflash/internal/models"
)

const defaultProgressDays = 7

type statsResponse struct {
	models.ItemStats
	PendingOutcomes int `json:"pending_outcomes"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	log.Debug("getting item stats")

	resp := statsResponse{
		ItemStats:       s.Runner.Stats(s.now()),
		PendingOutcomes: len(s.Runner.Pending()),
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// handleProgress returns DailyProgress for the last ?days= calendar days.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	days := defaultProgressDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			handleError(w, r, errors.NewBadRequestError("days must be a positive integer"))
			return
		}
		days = n
	}
	log.Debug("getting daily progress: days=%d", days)

	since := s.now().AddDate(0, 0, -(days - 1))
	daily, err := s.Progress.Daily(r.Context(), since)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, daily)
}

func (s *Server) handleToday(w http.ResponseWriter, r *http.Request) {
	today, err := s.Progress.Today(r.Context(), s.now())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, today)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.FromContext(r.Context()).Error("failed to encode response: %v", err)
	}
}
