package domain

import (
	"time"

	"github.com/google/uuid"
)

type LinkType string

const (
	LinkSupports LinkType = "SUPPORTS"
	LinkOpposes  LinkType = "OPPOSES"
)

func ValidLinkType(t string) bool {
	switch LinkType(t) {
	case LinkSupports, LinkOpposes:
		return true
	}
	return false
}

// ScoreComponent is one weighted signal inside a hybrid score, with its raw
// inputs retained so the stored strength can be audited later.
type ScoreComponent struct {
	Raw        float64 `json:"raw"`
	Normalized float64 `json:"normalized"`
	Weight     float64 `json:"weight"`
	Weighted   float64 `json:"weighted"`
}

// ScoreBreakdown records how an edge strength was computed. The stored
// strength is always a deterministic function of this breakdown.
type ScoreBreakdown struct {
	ReasonRank ScoreComponent `json:"reason_rank"`
	Votes      ScoreComponent `json:"votes"`
	Aspects    ScoreComponent `json:"aspects"`
	Upvotes    int            `json:"upvotes"`
	Downvotes  int            `json:"downvotes"`
	RatingN    int            `json:"rating_count"`
}

// BeliefLink is a directed, argument-backed edge between two beliefs.
// Exactly one live link exists per backing argument; self-loops are forbidden.
type BeliefLink struct {
	ArgumentID   uuid.UUID      `json:"argument_id"`
	FromBeliefID uuid.UUID      `json:"from_belief_id"`
	ToBeliefID   uuid.UUID      `json:"to_belief_id"`
	LinkType     LinkType       `json:"link_type"`
	Strength     float64        `json:"strength"`
	Breakdown    ScoreBreakdown `json:"breakdown"`
	Version      int64          `json:"version"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func (l *BeliefLink) Validate() error {
	if l.ArgumentID == uuid.Nil {
		return &ValidationError{Field: "argument_id", Msg: "is required"}
	}
	if l.FromBeliefID == uuid.Nil || l.ToBeliefID == uuid.Nil {
		return &ValidationError{Field: "belief_id", Msg: "both endpoints are required"}
	}
	if l.FromBeliefID == l.ToBeliefID {
		return &ValidationError{Field: "to_belief_id", Msg: "self-loops are forbidden"}
	}
	if !ValidLinkType(string(l.LinkType)) {
		return &ValidationError{Field: "link_type", Msg: "must be SUPPORTS or OPPOSES"}
	}
	if l.Strength < 0 || l.Strength > 100 {
		return &ValidationError{Field: "strength", Msg: "must be in [0,100]"}
	}
	return nil
}

// LinkCursor is a keyset pagination cursor over (strength DESC, argument_id).
// Offset cursors would skip or repeat rows when strengths shift between pages.
type LinkCursor struct {
	Strength   float64   `json:"strength"`
	ArgumentID uuid.UUID `json:"argument_id"`
}

type LinkPage struct {
	Limit  int
	Cursor *LinkCursor
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
	MaxGraphDepth    = 3
)

func (p LinkPage) Normalized() LinkPage {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

// NeighborLink is a link enriched with the counterpart node's snapshot
// centrality for ranking context.
type NeighborLink struct {
	BeliefLink
	NeighborCentrality float64 `json:"neighbor_centrality"`
	SnapshotVersion    int64   `json:"snapshot_version"`
}

type LinkListing struct {
	Links      []NeighborLink `json:"links"`
	NextCursor *LinkCursor    `json:"next_cursor,omitempty"`
}

// GraphSlice is the result of a bounded bidirectional expansion: a node set
// and a deduplicated edge set.
type GraphSlice struct {
	Root  uuid.UUID    `json:"root"`
	Depth int          `json:"depth"`
	Nodes []GraphNode  `json:"nodes"`
	Edges []BeliefLink `json:"edges"`
}

type GraphNode struct {
	BeliefID uuid.UUID       `json:"belief_id"`
	Hops     int             `json:"hops"`
	Metrics  *NetworkMetrics `json:"metrics,omitempty"`
}

// LinkSummary aggregates one node's incident edges plus its latest metrics.
type LinkSummary struct {
	BeliefID        uuid.UUID       `json:"belief_id"`
	IncomingByType  map[LinkType]int `json:"incoming_by_type"`
	OutgoingByType  map[LinkType]int `json:"outgoing_by_type"`
	MeanStrength    float64         `json:"mean_strength"`
	MedianStrength  float64         `json:"median_strength"`
	Metrics         *NetworkMetrics `json:"metrics,omitempty"`
	SnapshotVersion int64           `json:"snapshot_version"`
}
