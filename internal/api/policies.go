package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/templegate/capacity-core/internal/capacity"
)

// handleListPriorityRules returns all priority booking rules.
func (s *Server) handleListPriorityRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.store.ListPriorityRules(r.Context())
	if err != nil {
		writeInternalError(w, "failed to list priority rules")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"priority_rules": rules, "count": len(rules)})
}

// handleCreatePriorityRule creates a new priority booking rule.
func (s *Server) handleCreatePriorityRule(w http.ResponseWriter, r *http.Request) {
	var rule capacity.PriorityBookingRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	created, err := s.store.CreatePriorityRule(r.Context(), &rule)
	if err != nil {
		if errors.Is(err, capacity.ErrInvalidPriorityRule) {
			writeBadRequest(w, err.Error())
			return
		}
		writeInternalError(w, "failed to create priority rule")
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// handleListWeatherRules returns all weather capacity rules.
func (s *Server) handleListWeatherRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.store.ListWeatherRules(r.Context())
	if err != nil {
		writeInternalError(w, "failed to list weather rules")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"weather_rules": rules, "count": len(rules)})
}

// handleCreateWeatherRule creates a new weather capacity rule. The rule
// materialises ordinary capacity rules when matching weather reports
// arrive on the feed bus.
func (s *Server) handleCreateWeatherRule(w http.ResponseWriter, r *http.Request) {
	var rule capacity.WeatherCapacityRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	created, err := s.store.CreateWeatherRule(r.Context(), &rule)
	if err != nil {
		if errors.Is(err, capacity.ErrInvalidWeatherRule) {
			writeBadRequest(w, err.Error())
			return
		}
		writeInternalError(w, "failed to create weather rule")
		return
	}

	writeJSON(w, http.StatusCreated, created)
}
