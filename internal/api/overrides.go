package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/templegate/capacity-core/internal/capacity"
)

// handleListOverrides returns all overrides, including pending and expired
// ones. Clients filter by validity window and approval state.
func (s *Server) handleListOverrides(w http.ResponseWriter, r *http.Request) {
	overrides, err := s.store.ListOverrides(r.Context())
	if err != nil {
		writeInternalError(w, "failed to list overrides")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"overrides": overrides, "count": len(overrides)})
}

// handleCreateOverride creates a new manual override. Overrides that
// require approval stay inert until approved.
func (s *Server) handleCreateOverride(w http.ResponseWriter, r *http.Request) {
	var override capacity.Override
	if err := json.NewDecoder(r.Body).Decode(&override); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	// Site policy may mandate approval regardless of the client's request.
	if s.requireApproval {
		override.RequiresApproval = true
	}

	created, err := s.store.CreateOverride(r.Context(), &override)
	if err != nil {
		if errors.Is(err, capacity.ErrInvalidOverride) {
			writeBadRequest(w, err.Error())
			return
		}
		if errors.Is(err, capacity.ErrOverrideExists) {
			writeConflict(w, err.Error())
			return
		}
		writeInternalError(w, "failed to create override")
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// approveOverrideRequest is the request body for POST /overrides/{id}/approve.
type approveOverrideRequest struct {
	ApprovedBy string `json:"approved_by"`
}

// handleApproveOverride records an approver on a pending override.
func (s *Server) handleApproveOverride(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxQueryParamLen {
		writeBadRequest(w, "invalid override ID")
		return
	}

	var req approveOverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	approved, err := s.store.ApproveOverride(r.Context(), id, req.ApprovedBy)
	if err != nil {
		if errors.Is(err, capacity.ErrOverrideNotFound) {
			writeNotFound(w, "override not found")
			return
		}
		if errors.Is(err, capacity.ErrInvalidOverride) {
			writeBadRequest(w, err.Error())
			return
		}
		writeInternalError(w, "failed to approve override")
		return
	}

	writeJSON(w, http.StatusOK, approved)
}

// handleDeleteOverride removes an override by ID. Removal takes effect on
// the next evaluation.
func (s *Server) handleDeleteOverride(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxQueryParamLen {
		writeBadRequest(w, "invalid override ID")
		return
	}

	if err := s.store.DeleteOverride(r.Context(), id); err != nil {
		if errors.Is(err, capacity.ErrOverrideNotFound) {
			writeNotFound(w, "override not found")
			return
		}
		writeInternalError(w, "failed to delete override")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
