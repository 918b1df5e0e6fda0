package handlers

import (
	"net/http"
	"time"

	"github.com/ideastockexchange/beliefgraph/internal/domain"
	"github.com/ideastockexchange/beliefgraph/internal/service"
)

type NetworkHandler struct {
	snapshots service.SnapshotProvider
}

func NewNetworkHandler(snapshots service.SnapshotProvider) *NetworkHandler {
	return &NetworkHandler{snapshots: snapshots}
}

type rankingResponse struct {
	Rankings        []domain.NodeRank `json:"rankings"`
	SnapshotVersion int64             `json:"snapshot_version"`
	ComputedAt      time.Time         `json:"computed_at"`
	Degraded        bool              `json:"degraded"`
}

type statsResponse struct {
	Stats           domain.NetworkStats `json:"stats"`
	SnapshotVersion int64               `json:"snapshot_version"`
	ComputedAt      time.Time           `json:"computed_at"`
	Degraded        bool                `json:"degraded"`
}

func (h *NetworkHandler) TopInfluential(w http.ResponseWriter, r *http.Request) {
	h.ranking(w, r, func(s *domain.MetricsSnapshot) []domain.NodeRank { return s.TopInfluential })
}

func (h *NetworkHandler) MostCentral(w http.ResponseWriter, r *http.Request) {
	h.ranking(w, r, func(s *domain.MetricsSnapshot) []domain.NodeRank { return s.MostCentral })
}

// ranking serves a projection of the latest published snapshot. A degraded
// snapshot is still served; the flag tells consumers the values are
// approximate.
func (h *NetworkHandler) ranking(w http.ResponseWriter, r *http.Request, pick func(*domain.MetricsSnapshot) []domain.NodeRank) {
	snap := h.snapshots.Snapshot()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "no metrics snapshot published yet")
		return
	}

	rankings := pick(snap)
	if limit := parseLimit(r, len(rankings), len(rankings)); limit < len(rankings) {
		rankings = rankings[:limit]
	}

	writeJSON(w, http.StatusOK, rankingResponse{
		Rankings:        rankings,
		SnapshotVersion: snap.Version,
		ComputedAt:      snap.ComputedAt,
		Degraded:        snap.Degraded,
	})
}

func (h *NetworkHandler) Stats(w http.ResponseWriter, r *http.Request) {
	snap := h.snapshots.Snapshot()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "no metrics snapshot published yet")
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{
		Stats:           snap.Stats,
		SnapshotVersion: snap.Version,
		ComputedAt:      snap.ComputedAt,
		Degraded:        snap.Degraded,
	})
}
