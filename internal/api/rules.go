package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/templegate/capacity-core/internal/capacity"
)

// handleListRules returns all capacity rules, active and inactive.
func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.store.ListRules(r.Context())
	if err != nil {
		writeInternalError(w, "failed to list rules")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": rules, "count": len(rules)})
}

// handleGetRule returns a single capacity rule by ID.
func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxQueryParamLen {
		writeBadRequest(w, "invalid rule ID")
		return
	}

	rule, err := s.store.GetRule(r.Context(), id)
	if err != nil {
		if errors.Is(err, capacity.ErrRuleNotFound) {
			writeNotFound(w, "rule not found")
			return
		}
		writeInternalError(w, "failed to get rule")
		return
	}

	writeJSON(w, http.StatusOK, rule)
}

// handleCreateRule creates a new capacity rule. The rule takes effect on
// the next evaluation; creation itself triggers one.
func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var rule capacity.CapacityRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	created, err := s.store.CreateRule(r.Context(), &rule)
	if err != nil {
		if errors.Is(err, capacity.ErrInvalidRule) || errors.Is(err, capacity.ErrInvalidName) ||
			errors.Is(err, capacity.ErrInvalidCondition) || errors.Is(err, capacity.ErrInvalidEffect) {
			writeBadRequest(w, err.Error())
			return
		}
		if errors.Is(err, capacity.ErrRuleExists) {
			writeConflict(w, err.Error())
			return
		}
		writeInternalError(w, "failed to create rule")
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// handleUpdateRule partially updates a capacity rule.
func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxQueryParamLen {
		writeBadRequest(w, "invalid rule ID")
		return
	}

	// Get existing rule
	existing, err := s.store.GetRule(r.Context(), id)
	if err != nil {
		if errors.Is(err, capacity.ErrRuleNotFound) {
			writeNotFound(w, "rule not found")
			return
		}
		writeInternalError(w, "failed to get rule")
		return
	}

	// Decode partial update onto existing rule
	if err := json.NewDecoder(r.Body).Decode(existing); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	existing.ID = id // Ensure ID cannot be changed

	updated, err := s.store.UpdateRule(r.Context(), existing)
	if err != nil {
		if errors.Is(err, capacity.ErrInvalidRule) || errors.Is(err, capacity.ErrInvalidName) ||
			errors.Is(err, capacity.ErrInvalidCondition) || errors.Is(err, capacity.ErrInvalidEffect) {
			writeBadRequest(w, err.Error())
			return
		}
		if errors.Is(err, capacity.ErrRuleNotFound) {
			writeNotFound(w, "rule not found")
			return
		}
		writeInternalError(w, "failed to update rule")
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// handleDeleteRule removes a capacity rule by ID.
func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxQueryParamLen {
		writeBadRequest(w, "invalid rule ID")
		return
	}

	if err := s.store.DeleteRule(r.Context(), id); err != nil {
		if errors.Is(err, capacity.ErrRuleNotFound) {
			writeNotFound(w, "rule not found")
			return
		}
		writeInternalError(w, "failed to delete rule")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
