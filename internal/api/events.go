package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/templegate/capacity-core/internal/capacity"
)

// handleListEvents returns all special events.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.store.ListEvents(r.Context())
	if err != nil {
		writeInternalError(w, "failed to list events")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events, "count": len(events)})
}

// handleGetEvent returns a single special event by ID.
func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxQueryParamLen {
		writeBadRequest(w, "invalid event ID")
		return
	}

	event, err := s.store.GetEvent(r.Context(), id)
	if err != nil {
		if errors.Is(err, capacity.ErrEventNotFound) {
			writeNotFound(w, "event not found")
			return
		}
		writeInternalError(w, "failed to get event")
		return
	}

	writeJSON(w, http.StatusOK, event)
}

// handleCreateEvent creates a new special event. Any inline capacity rules
// the event carries are owned by the event and fold during its window.
func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var event capacity.SpecialEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	created, err := s.store.CreateEvent(r.Context(), &event)
	if err != nil {
		if errors.Is(err, capacity.ErrInvalidEvent) || errors.Is(err, capacity.ErrInvalidName) ||
			errors.Is(err, capacity.ErrInvalidRule) {
			writeBadRequest(w, err.Error())
			return
		}
		if errors.Is(err, capacity.ErrEventExists) {
			writeConflict(w, err.Error())
			return
		}
		writeInternalError(w, "failed to create event")
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// handleUpdateEvent partially updates a special event.
func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxQueryParamLen {
		writeBadRequest(w, "invalid event ID")
		return
	}

	// Get existing event
	existing, err := s.store.GetEvent(r.Context(), id)
	if err != nil {
		if errors.Is(err, capacity.ErrEventNotFound) {
			writeNotFound(w, "event not found")
			return
		}
		writeInternalError(w, "failed to get event")
		return
	}

	// Decode partial update onto existing event
	if err := json.NewDecoder(r.Body).Decode(existing); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	existing.ID = id // Ensure ID cannot be changed

	updated, err := s.store.UpdateEvent(r.Context(), existing)
	if err != nil {
		if errors.Is(err, capacity.ErrInvalidEvent) || errors.Is(err, capacity.ErrInvalidName) ||
			errors.Is(err, capacity.ErrInvalidRule) {
			writeBadRequest(w, err.Error())
			return
		}
		if errors.Is(err, capacity.ErrEventNotFound) {
			writeNotFound(w, "event not found")
			return
		}
		writeInternalError(w, "failed to update event")
		return
	}

	writeJSON(w, http.StatusOK, updated)
}
