package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/ideastockexchange/beliefgraph/internal/domain"
	"github.com/ideastockexchange/beliefgraph/internal/service"
)

// EventHandler receives mutation notifications from upstream collaborators.
// Delivery is at-least-once; each handler only enqueues, so redelivery is
// harmless and the caller is never blocked on recomputation.
type EventHandler struct {
	coordinator *service.Coordinator
}

func NewEventHandler(coordinator *service.Coordinator) *EventHandler {
	return &EventHandler{coordinator: coordinator}
}

type eventRequest struct {
	ArgumentID string `json:"argument_id"`
	Change     string `json:"change,omitempty"`
}

func (h *EventHandler) VoteChanged(w http.ResponseWriter, r *http.Request) {
	argumentID, _, ok := h.parse(w, r, false)
	if !ok {
		return
	}
	if err := h.coordinator.OnVoteChanged(r.Context(), argumentID); err != nil {
		writeError(w, http.StatusServiceUnavailable, "event queue unavailable")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (h *EventHandler) AspectRatingChanged(w http.ResponseWriter, r *http.Request) {
	argumentID, _, ok := h.parse(w, r, false)
	if !ok {
		return
	}
	if err := h.coordinator.OnAspectRatingChanged(r.Context(), argumentID); err != nil {
		writeError(w, http.StatusServiceUnavailable, "event queue unavailable")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (h *EventHandler) ArgumentChanged(w http.ResponseWriter, r *http.Request) {
	argumentID, change, ok := h.parse(w, r, true)
	if !ok {
		return
	}
	if err := h.coordinator.OnArgumentChanged(r.Context(), argumentID, change); err != nil {
		writeError(w, http.StatusServiceUnavailable, "event queue unavailable")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

type archiveRequest struct {
	BeliefID string `json:"belief_id"`
}

// BeliefArchived cascades an upstream belief archive into the link graph.
func (h *EventHandler) BeliefArchived(w http.ResponseWriter, r *http.Request) {
	var req archiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	beliefID, err := uuid.Parse(req.BeliefID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "is not a valid UUID", "field": "belief_id"})
		return
	}
	if err := h.coordinator.OnBeliefArchived(r.Context(), beliefID); err != nil {
		writeError(w, http.StatusServiceUnavailable, "event queue unavailable")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (h *EventHandler) parse(w http.ResponseWriter, r *http.Request, needChange bool) (uuid.UUID, domain.ArgumentChange, bool) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return uuid.Nil, "", false
	}

	argumentID, err := uuid.Parse(req.ArgumentID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "is not a valid UUID", "field": "argument_id"})
		return uuid.Nil, "", false
	}

	if needChange && !domain.ValidArgumentChange(req.Change) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "must be created, edited or deleted", "field": "change"})
		return uuid.Nil, "", false
	}

	return argumentID, domain.ArgumentChange(req.Change), true
}
