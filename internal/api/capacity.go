package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/templegate/capacity-core/internal/capacity"
)

// maxQueryParamLen limits query parameter length to prevent DoS via oversized URL params.
const maxQueryParamLen = 100

// defaultEvaluationLimit is how many evaluation records are returned when
// the caller does not specify a limit.
const (
	defaultEvaluationLimit = 20
	maxEvaluationLimit     = 100
)

// handleGetState returns the most recently evaluated capacity snapshot.
func (s *Server) handleGetState(w http.ResponseWriter, _ *http.Request) {
	state := s.engine.State()
	if state == nil {
		writeNotFound(w, "no evaluated state yet")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// handleEvaluate runs a full evaluation immediately and returns the
// resulting snapshot. Scheduled evaluation continues independently;
// this endpoint exists for admin tooling that needs fresh figures after
// a change.
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	state, err := s.engine.Evaluate(r.Context(), time.Now().UTC())
	if err != nil {
		s.logger.Error("evaluation via API failed", "error", err)
		writeInternalError(w, "evaluation failed")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// handleAvailability answers a public capacity query for one slot.
//
// Query parameters:
//   - date: booking date, YYYY-MM-DD (required)
//   - slot: time slot, e.g. "09:00-10:00" (required)
//   - darshan_type: darshan category (optional)
//   - user_type: priority class of the caller (optional, defaults to public)
func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	date := q.Get("date")
	slot := q.Get("slot")
	if date == "" || slot == "" {
		writeBadRequest(w, "date and slot query parameters are required")
		return
	}
	if len(date) > maxQueryParamLen || len(slot) > maxQueryParamLen {
		writeBadRequest(w, "query parameter exceeds maximum length")
		return
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		writeBadRequest(w, "date must be YYYY-MM-DD")
		return
	}

	darshanType := q.Get("darshan_type")
	userType := q.Get("user_type")
	if len(darshanType) > maxQueryParamLen || len(userType) > maxQueryParamLen {
		writeBadRequest(w, "query parameter exceeds maximum length")
		return
	}

	avail, err := s.engine.Availability(r.Context(), date, slot, darshanType, userType)
	if err != nil {
		s.logger.Error("availability query failed", "error", err, "date", date, "slot", slot)
		writeInternalError(w, "availability query failed")
		return
	}

	writeJSON(w, http.StatusOK, avail)
}

// handleListEvaluations returns the most recent evaluation audit records.
//
// Query parameters:
//   - limit: maximum number of records (default 20, max 100)
func (s *Server) handleListEvaluations(w http.ResponseWriter, r *http.Request) {
	limit := defaultEvaluationLimit
	if s.historyLimit > 0 {
		limit = s.historyLimit
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		if n > maxEvaluationLimit {
			n = maxEvaluationLimit
		}
		limit = n
	}

	evals, err := s.repo.ListEvaluations(r.Context(), limit)
	if err != nil {
		writeInternalError(w, "failed to list evaluations")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"evaluations": evals, "count": len(evals)})
}

// analyticsPeriods maps the period query parameter to its lookback window.
var analyticsPeriods = map[string]time.Duration{
	"day":   24 * time.Hour,
	"week":  7 * 24 * time.Hour,
	"month": 30 * 24 * time.Hour,
}

// handleGetAnalytics returns the raw evaluation series for a period, oldest
// first. Only the series is served here; insight and recommendation
// generation belongs to the analytics consumers reading it.
//
// Query parameters:
//   - period: day, week or month (default day)
func (s *Server) handleGetAnalytics(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	if period == "" {
		period = "day"
	}
	window, ok := analyticsPeriods[period]
	if !ok {
		writeBadRequest(w, "period must be day, week or month")
		return
	}

	since := time.Now().UTC().Add(-window)
	evals, err := s.repo.ListEvaluationsSince(r.Context(), since)
	if err != nil {
		writeInternalError(w, "failed to load evaluation series")
		return
	}
	if evals == nil {
		evals = []capacity.Evaluation{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"period": period,
		"since":  since,
		"data":   evals,
		"count":  len(evals),
	})
}
