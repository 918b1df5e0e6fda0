package domain

import (
	"time"

	"github.com/google/uuid"
)

// NetworkMetrics are derived node-level annotations. All three values in one
// struct always come from the same analytics pass.
type NetworkMetrics struct {
	BeliefID        uuid.UUID `json:"belief_id"`
	Centrality      float64   `json:"centrality"`
	Influence       float64   `json:"influence"`
	Dependency      float64   `json:"dependency"`
	SnapshotVersion int64     `json:"snapshot_version"`
}

type NodeRank struct {
	BeliefID uuid.UUID `json:"belief_id"`
	Score    float64   `json:"score"`
}

type StrengthBucket struct {
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
	Count int     `json:"count"`
}

type NetworkStats struct {
	NodeCount    int              `json:"node_count"`
	EdgeCount    int              `json:"edge_count"`
	SupportCount int              `json:"support_count"`
	OpposeCount  int              `json:"oppose_count"`
	MeanStrength float64          `json:"mean_strength"`
	Distribution []StrengthBucket `json:"distribution"`
}

// MetricsSnapshot is an immutable, internally consistent result of one
// analytics pass. It is published by a single pointer swap and safely shared
// by concurrent readers without further synchronization.
type MetricsSnapshot struct {
	Version    int64                        `json:"version"`
	ComputedAt time.Time                    `json:"computed_at"`
	Degraded   bool                         `json:"degraded"`
	Rounds     int                          `json:"rounds"`
	Nodes      map[uuid.UUID]NetworkMetrics `json:"-"`

	TopInfluential []NodeRank   `json:"top_influential"`
	MostCentral    []NodeRank   `json:"most_central"`
	Stats          NetworkStats `json:"stats"`
}

// MetricsFor returns the node's metrics from this snapshot, or zero-valued
// metrics stamped with the snapshot version when the node is unknown.
func (s *MetricsSnapshot) MetricsFor(beliefID uuid.UUID) NetworkMetrics {
	if s != nil {
		if m, ok := s.Nodes[beliefID]; ok {
			return m
		}
	}
	m := NetworkMetrics{BeliefID: beliefID}
	if s != nil {
		m.SnapshotVersion = s.Version
	}
	return m
}
