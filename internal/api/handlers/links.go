package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/ideastockexchange/beliefgraph/internal/domain"
	"github.com/ideastockexchange/beliefgraph/internal/service"
)

type LinkHandler struct {
	svc *service.QueryService
}

func NewLinkHandler(svc *service.QueryService) *LinkHandler {
	return &LinkHandler{svc: svc}
}

type listLinksResponse struct {
	Links      []domain.NeighborLink `json:"links"`
	Count      int                   `json:"count"`
	NextCursor string                `json:"next_cursor,omitempty"`
}

func (h *LinkHandler) Incoming(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.svc.Incoming)
}

func (h *LinkHandler) Outgoing(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.svc.Outgoing)
}

func (h *LinkHandler) list(w http.ResponseWriter, r *http.Request, query func(ctx context.Context, beliefID uuid.UUID, linkType *domain.LinkType, page domain.LinkPage) (*domain.LinkListing, error)) {
	beliefID, ok := parseBeliefID(w, r)
	if !ok {
		return
	}

	linkType, ok := parseLinkType(w, r)
	if !ok {
		return
	}

	page := domain.LinkPage{Limit: parseLimit(r, domain.DefaultPageLimit, domain.MaxPageLimit)}
	cursor, err := decodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	page.Cursor = cursor

	listing, err := query(r.Context(), beliefID, linkType, page)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, listLinksResponse{
		Links:      listing.Links,
		Count:      len(listing.Links),
		NextCursor: encodeCursor(listing.NextCursor),
	})
}

func (h *LinkHandler) Graph(w http.ResponseWriter, r *http.Request) {
	beliefID, ok := parseBeliefID(w, r)
	if !ok {
		return
	}

	depth := 1
	if depthStr := r.URL.Query().Get("depth"); depthStr != "" {
		d, err := strconv.Atoi(depthStr)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "must be an integer", "field": "depth"})
			return
		}
		depth = d
	}

	slice, err := h.svc.Graph(r.Context(), beliefID, depth)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, slice)
}

func (h *LinkHandler) Summary(w http.ResponseWriter, r *http.Request) {
	beliefID, ok := parseBeliefID(w, r)
	if !ok {
		return
	}

	summary, err := h.svc.Summary(r.Context(), beliefID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func parseBeliefID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	idStr := r.URL.Query().Get("belief_id")
	if idStr == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "is required", "field": "belief_id"})
		return uuid.Nil, false
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "is not a valid UUID", "field": "belief_id"})
		return uuid.Nil, false
	}
	return id, true
}

func parseLinkType(w http.ResponseWriter, r *http.Request) (*domain.LinkType, bool) {
	typeStr := r.URL.Query().Get("link_type")
	if typeStr == "" {
		return nil, true
	}
	if !domain.ValidLinkType(typeStr) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "must be SUPPORTS or OPPOSES", "field": "link_type"})
		return nil, false
	}
	lt := domain.LinkType(typeStr)
	return &lt, true
}

func parseLimit(r *http.Request, def, max int) int {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return def
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
